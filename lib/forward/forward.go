package forward

import (
	"net/netip"

	"github.com/go-gnutella/go-gnutella/lib/admission"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/util"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Class says how a delivery leaves this node.
type Class uint8

const (
	// ToConnection sends the frame on an established connection.
	ToConnection Class = iota
	// ToOOB sends the frame as a datagram to the out-of-band address a
	// query asked for.
	ToOOB
	// ToLocal hands the message to this node's own consumers.
	ToLocal
)

func (c Class) String() string {
	switch c {
	case ToOOB:
		return "oob"
	case ToLocal:
		return "local"
	default:
		return "connection"
	}
}

// Delivery is one outbound instance of an accepted message.
type Delivery struct {
	Class Class
	// Conn is set for ToConnection.
	Conn gnet.ConnRef
	// Addr is set for ToOOB.
	Addr netip.AddrPort
	TTL  uint8
	Hops uint8
	// Frame is the complete wire frame.
	Frame []byte
}

// Topology lists the connections a broadcast may be relayed to. Candidates
// are the live connections negotiated for network.
type Topology interface {
	BroadcastCandidates(network gnet.Network) []gnet.ConnRef
}

// Config bounds relaying.
type Config struct {
	MaxHops uint8
}

// Forwarder is stateless apart from its topology and safe for concurrent use.
type Forwarder struct {
	cfg  Config
	topo Topology
}

// New returns a forwarder relaying over topo.
func New(cfg Config, topo Topology) *Forwarder {
	return &Forwarder{cfg: cfg, topo: topo}
}

// Route computes the deliveries of an accepted message. It returns nil for
// dropped messages and for kinds this node consumes itself.
func (f *Forwarder) Route(msg *gnet.Message, origin gnet.Origin, v *admission.Verdict) []Delivery {
	if !v.Accepted() {
		return nil
	}
	var out []Delivery
	switch msg.Kind.Role() {
	case gnet.RoleBroadcast:
		out = f.broadcast(msg, origin, v)
	case gnet.RoleReply, gnet.RolePush:
		out = f.follow(msg, v)
	case gnet.RoleLocal, gnet.RoleLinkLocal:
		out = []Delivery{{Class: ToLocal, TTL: msg.TTL, Hops: msg.Hops, Frame: msg.Raw}}
	}
	for _, d := range out {
		util.Assert(d.Class == ToLocal || d.TTL > 0, "relayed copy of %s with ttl 0", msg.Kind)
	}
	return out
}

// next returns the ttl and hops of a relayed copy, or ok=false when the
// message must not travel further.
func (f *Forwarder) next(msg *gnet.Message) (ttl, hops uint8, ok bool) {
	if msg.TTL <= 1 || msg.Hops == 255 {
		return 0, 0, false
	}
	ttl, hops = msg.TTL-1, msg.Hops+1
	if f.cfg.MaxHops > 0 && hops > f.cfg.MaxHops {
		return 0, 0, false
	}
	return ttl, hops, true
}

func (f *Forwarder) broadcast(msg *gnet.Message, origin gnet.Origin, v *admission.Verdict) []Delivery {
	ttl, hops, ok := f.next(msg)
	if !ok || msg.Variant == gnet.VariantG2 || f.topo == nil {
		return nil
	}
	frame := gnet.EncodeHeader(msg.ID, msg.Function, ttl, hops, v.Payload)
	var out []Delivery
	for _, conn := range f.topo.BroadcastCandidates(msg.Variant.Network()) {
		if conn == origin.Conn || conn.IsLocal() {
			continue
		}
		out = append(out, Delivery{Class: ToConnection, Conn: conn, TTL: ttl, Hops: hops, Frame: frame})
	}
	log.WithFields(logger.Fields{
		"at":     "forward.broadcast",
		"kind":   msg.Kind.String(),
		"copies": len(out),
		"ttl":    ttl,
		"hops":   hops,
	}).Debug("broadcast_relayed")
	return out
}

func (f *Forwarder) follow(msg *gnet.Message, v *admission.Verdict) []Delivery {
	if !v.HasRoute {
		return nil
	}
	route := v.Route
	if route.Local() {
		return []Delivery{{Class: ToLocal, TTL: msg.TTL, Hops: msg.Hops, Frame: msg.Raw}}
	}
	if msg.Variant == gnet.VariantG2 {
		// G2 packets carry no ttl; they are passed along unchanged.
		return []Delivery{{Class: ToConnection, Conn: route.Origin, TTL: msg.TTL, Hops: msg.Hops, Frame: msg.Raw}}
	}
	if msg.Kind == gnet.KindQueryHit && route.WantsOOB() {
		frame := gnet.EncodeHeader(msg.ID, msg.Function, 1, msg.Hops+1, v.Payload)
		return []Delivery{{Class: ToOOB, Addr: route.OOB, TTL: 1, Hops: msg.Hops + 1, Frame: frame}}
	}
	ttl, hops, ok := f.next(msg)
	if !ok {
		return nil
	}
	frame := gnet.EncodeHeader(msg.ID, msg.Function, ttl, hops, v.Payload)
	return []Delivery{{Class: ToConnection, Conn: route.Origin, TTL: ttl, Hops: hops, Frame: frame}}
}
