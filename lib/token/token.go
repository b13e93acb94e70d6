// Package token issues and checks the address-bound tokens carried by GUESS
// queries (query keys) and DHT STORE requests (security tokens).
//
// A token is a keyed BLAKE2b MAC over the purpose, the remote IP and port.
// Secrets rotate every period; a token minted under the previous secret is
// still honoured, so a token stays valid between one and two periods.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"net/netip"
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/crypto/blake2b"
)

var log = logger.GetGoI2PLogger()

// Purpose separates the token namespaces.
type Purpose uint8

const (
	PurposeGUESS Purpose = iota + 1
	PurposeDHT
)

const (
	TOKEN_SIZE  = 8
	SECRET_SIZE = 32
)

// Keeper is safe for concurrent use.
type Keeper struct {
	period time.Duration

	mu       sync.RWMutex
	current  [SECRET_SIZE]byte
	previous [SECRET_SIZE]byte
	rotated  time.Time
}

// NewKeeper creates a keeper with fresh random secrets.
func NewKeeper(period time.Duration, now time.Time) (*Keeper, error) {
	k := &Keeper{period: period, rotated: now}
	if _, err := rand.Read(k.current[:]); err != nil {
		return nil, oops.Wrapf(err, "failed to seed token secret")
	}
	k.previous = k.current
	return k, nil
}

// Maintain rotates the secret once period has elapsed since the last
// rotation. It reports whether a rotation happened.
func (k *Keeper) Maintain(now time.Time) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.period <= 0 || now.Sub(k.rotated) < k.period {
		return false
	}
	var next [SECRET_SIZE]byte
	if _, err := rand.Read(next[:]); err != nil {
		log.WithError(err).Error("token_rotation_failed")
		return false
	}
	k.previous = k.current
	k.current = next
	k.rotated = now
	log.WithFields(logger.Fields{"at": "token.Keeper.Maintain"}).Debug("token_secret_rotated")
	return true
}

func mac(secret *[SECRET_SIZE]byte, purpose Purpose, addr netip.AddrPort) []byte {
	h, err := blake2b.New(TOKEN_SIZE, secret[:])
	if err != nil {
		// Only reachable with an invalid size or key length, both constants.
		panic(err)
	}
	ip := addr.Addr().Unmap().As16()
	port := addr.Port()
	h.Write([]byte{byte(purpose)})
	h.Write(ip[:])
	h.Write([]byte{byte(port >> 8), byte(port)})
	return h.Sum(nil)
}

// Issue returns the token addr must present for purpose.
func (k *Keeper) Issue(purpose Purpose, addr netip.AddrPort) []byte {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return mac(&k.current, purpose, addr)
}

// Valid reports whether tok was issued to addr for purpose under the current
// or previous secret.
func (k *Keeper) Valid(purpose Purpose, addr netip.AddrPort, tok []byte) bool {
	if len(tok) != TOKEN_SIZE {
		return false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if subtle.ConstantTimeCompare(tok, mac(&k.current, purpose, addr)) == 1 {
		return true
	}
	return subtle.ConstantTimeCompare(tok, mac(&k.previous, purpose, addr)) == 1
}
