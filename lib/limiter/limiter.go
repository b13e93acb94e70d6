// Package limiter meters inbound traffic with token buckets: one per
// connection, one per connection and quota class, one shared by every
// connection, and one per remote address for DHT STORE values.
package limiter

import (
	"net/netip"
	"sync"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-i2p/logger"
	"github.com/hashicorp/golang-lru/simplelru"
	"golang.org/x/time/rate"
)

var log = logger.GetGoI2PLogger()

// Class groups the kinds that share a per-connection quota.
type Class uint8

const (
	ClassNone Class = iota
	ClassQuery
	ClassPush
	classCount
)

// ClassOf returns the quota class of kind k.
func ClassOf(k gnet.Kind) Class {
	switch k {
	case gnet.KindQuery, gnet.KindG2Query:
		return ClassQuery
	case gnet.KindPush, gnet.KindG2Push:
		return ClassPush
	default:
		return ClassNone
	}
}

// Bucket is a token bucket refilled at Rate tokens per second up to Burst.
// A zero Rate disables the bucket.
type Bucket struct {
	Rate  float64
	Burst int
}

func (b Bucket) enabled() bool {
	return b.Rate > 0 && b.Burst > 0
}

func (b Bucket) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(b.Rate), b.Burst)
}

// Config holds the bucket parameters.
type Config struct {
	Conn   Bucket
	Global Bucket
	Query  Bucket
	Push   Bucket
	// Store meters DHT STORE values per remote address.
	Store Bucket
	// MaxTracked bounds the number of connections and addresses with state.
	MaxTracked int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		Conn:       Bucket{Rate: 200, Burst: 400},
		Global:     Bucket{Rate: 5000, Burst: 10000},
		Query:      Bucket{Rate: 20, Burst: 60},
		Push:       Bucket{Rate: 10, Burst: 30},
		Store:      Bucket{Rate: 1, Burst: 20},
		MaxTracked: 4096,
	}
}

type connBuckets struct {
	total   *rate.Limiter
	classes [classCount]*rate.Limiter
}

// Limiter is safe for concurrent use.
type Limiter struct {
	cfg    Config
	global *rate.Limiter

	mu     sync.Mutex
	conns  *simplelru.LRU // gnet.ConnRef → *connBuckets
	stores *simplelru.LRU // netip.Addr → *rate.Limiter
}

// New creates a limiter with full buckets.
func New(cfg Config) *Limiter {
	if cfg.MaxTracked < 1 {
		cfg.MaxTracked = 1
	}
	l := &Limiter{cfg: cfg}
	if cfg.Global.enabled() {
		l.global = cfg.Global.limiter()
	}
	l.conns, _ = simplelru.NewLRU(cfg.MaxTracked, nil)
	l.stores, _ = simplelru.NewLRU(cfg.MaxTracked, nil)
	return l
}

func (l *Limiter) bucketsFor(conn gnet.ConnRef) *connBuckets {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.conns.Get(conn); ok {
		return v.(*connBuckets)
	}
	b := &connBuckets{}
	if l.cfg.Conn.enabled() {
		b.total = l.cfg.Conn.limiter()
	}
	if l.cfg.Query.enabled() {
		b.classes[ClassQuery] = l.cfg.Query.limiter()
	}
	if l.cfg.Push.enabled() {
		b.classes[ClassPush] = l.cfg.Push.limiter()
	}
	l.conns.Add(conn, b)
	return b
}

// AdmitConn charges cost tokens for a message of kind k against the buckets
// of its connection: first the connection budget, then the quota of the kind
// class. When the quota refuses, the connection tokens are given back.
//
// The result is drop.None, drop.Throttle or drop.Limit.
func (l *Limiter) AdmitConn(origin gnet.Origin, k gnet.Kind, cost int, now time.Time) drop.Reason {
	b := l.bucketsFor(origin.Conn)
	var total *rate.Reservation
	if b.total != nil {
		total = b.total.ReserveN(now, cost)
		if !granted(total, now) {
			l.refused(origin, k, drop.Throttle)
			return drop.Throttle
		}
	}
	if quota := b.classes[ClassOf(k)]; quota != nil {
		if !granted(quota.ReserveN(now, cost), now) {
			if total != nil {
				total.CancelAt(now)
			}
			l.refused(origin, k, drop.Limit)
			return drop.Limit
		}
	}
	return drop.None
}

// AdmitGlobal charges cost tokens against the budget shared by every
// connection. The result is drop.None or drop.FlowControl.
func (l *Limiter) AdmitGlobal(origin gnet.Origin, k gnet.Kind, cost int, now time.Time) drop.Reason {
	if l.global == nil || granted(l.global.ReserveN(now, cost), now) {
		return drop.None
	}
	l.refused(origin, k, drop.FlowControl)
	return drop.FlowControl
}

// granted cancels r unless it can be used right away.
func granted(r *rate.Reservation, now time.Time) bool {
	if r.OK() && r.DelayFrom(now) == 0 {
		return true
	}
	r.CancelAt(now)
	return false
}

func (l *Limiter) refused(origin gnet.Origin, k gnet.Kind, reason drop.Reason) {
	log.WithFields(logger.Fields{
		"at":     "limiter.Admit",
		"conn":   origin.Conn.String(),
		"kind":   k.String(),
		"reason": reason.Name(),
	}).Debug("budget_exhausted")
}

// AdmitStore charges values tokens against the STORE budget of addr.
func (l *Limiter) AdmitStore(addr netip.Addr, values int, now time.Time) bool {
	if !l.cfg.Store.enabled() {
		return true
	}
	l.mu.Lock()
	var lim *rate.Limiter
	if v, ok := l.stores.Get(addr); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = l.cfg.Store.limiter()
		l.stores.Add(addr, lim)
	}
	l.mu.Unlock()
	return lim.AllowN(now, values)
}

// Forget drops the state of a closed connection.
func (l *Limiter) Forget(conn gnet.ConnRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conns.Remove(conn)
}

// Tracked returns the number of connections with bucket state.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conns.Len()
}
