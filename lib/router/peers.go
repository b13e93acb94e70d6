package router

import (
	"sync"

	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-i2p/logger"
)

// Peers is the built-in topology: the set of live connections and the
// generation counter of every slot.
type Peers struct {
	mu    sync.RWMutex
	live  map[uint32]peer
	gens  map[uint32]uint32
	order []uint32
}

type peer struct {
	ref     gnet.ConnRef
	network gnet.Network
}

// NewPeers returns an empty registry.
func NewPeers() *Peers {
	return &Peers{
		live: make(map[uint32]peer),
		gens: make(map[uint32]uint32),
	}
}

// Connect registers slot as live and returns a fresh reference to it. A slot
// that is still registered is replaced, so the previous reference goes stale.
// Generations start at 1, so no reference ever equals gnet.LocalRef.
func (p *Peers) Connect(slot uint32, network gnet.Network) gnet.ConnRef {
	p.mu.Lock()
	defer p.mu.Unlock()

	gen := p.gens[slot] + 1
	p.gens[slot] = gen
	ref := gnet.ConnRef{ID: slot, Gen: gen}
	if _, exists := p.live[slot]; !exists {
		p.order = append(p.order, slot)
	}
	p.live[slot] = peer{ref: ref, network: network}

	log.WithFields(logger.Fields{
		"at":      "(Peers) Connect",
		"conn":    ref.String(),
		"network": network.String(),
	}).Debug("peer_connected")
	return ref
}

// Disconnect removes ref. Stale references are ignored.
func (p *Peers) Disconnect(ref gnet.ConnRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, ok := p.live[ref.ID]
	if !ok || cur.ref != ref {
		return false
	}
	delete(p.live, ref.ID)
	for i, slot := range p.order {
		if slot == ref.ID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	log.WithFields(logger.Fields{
		"at":   "(Peers) Disconnect",
		"conn": ref.String(),
	}).Debug("peer_disconnected")
	return true
}

// IsLive reports whether ref still designates a registered connection. The
// local reference is always live.
func (p *Peers) IsLive(ref gnet.ConnRef) bool {
	if ref.IsLocal() {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	cur, ok := p.live[ref.ID]
	return ok && cur.ref == ref
}

// BroadcastCandidates returns the live connections on network in connection
// order.
func (p *Peers) BroadcastCandidates(network gnet.Network) []gnet.ConnRef {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]gnet.ConnRef, 0, len(p.order))
	for _, slot := range p.order {
		if cur := p.live[slot]; cur.network == network {
			out = append(out, cur.ref)
		}
	}
	return out
}

// Len returns the number of live connections.
func (p *Peers) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.live)
}
