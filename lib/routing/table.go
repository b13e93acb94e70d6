package routing

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/util"
	"github.com/go-i2p/logger"
	"github.com/hashicorp/golang-lru/simplelru"
)

var log = logger.GetGoI2PLogger()

// Config sizes a Table and sets how long entries live.
type Config struct {
	// Capacity is the upper bound on live entries across all shards.
	Capacity int
	Shards   int
	// Horizons holds the maximum entry age per variant; DefaultHorizon applies
	// to variants missing from the map.
	Horizons       map[gnet.Variant]time.Duration
	DefaultHorizon time.Duration
	// LostCapacity bounds the memory of identifiers that left the table.
	LostCapacity int
	// ReplyLinger is how long a replied entry survives, so that a burst of
	// replies from several responders can follow the same path.
	ReplyLinger time.Duration
}

// DefaultConfig returns the sizing used when none is configured.
func DefaultConfig() Config {
	return Config{
		Capacity: 200000,
		Shards:   64,
		Horizons: map[gnet.Variant]time.Duration{
			gnet.VariantClassic: 10 * time.Minute,
			gnet.VariantGUESS:   5 * time.Minute,
			gnet.VariantG2:      5 * time.Minute,
			gnet.VariantDHT:     time.Minute,
		},
		DefaultHorizon: 10 * time.Minute,
		LostCapacity:   50000,
		ReplyLinger:    90 * time.Second,
	}
}

// Horizon returns the maximum age of an entry of variant v.
func (c Config) Horizon(v gnet.Variant) time.Duration {
	if h, ok := c.Horizons[v]; ok {
		return h
	}
	return c.DefaultHorizon
}

// Table is a bounded, sharded map from message identifier to route Entry.
// It is safe for concurrent use.
type Table struct {
	cfg      Config
	shards   []*shard
	perShard int

	evicted atomic.Uint64
	swept   atomic.Uint64
}

type shard struct {
	mu      sync.Mutex
	entries *simplelru.LRU // gnet.GUID → *Entry, oldest first
	lost    *simplelru.LRU // gnet.GUID → struct{}
}

// NewTable creates a table. The shard count is lowered if needed so that
// every shard holds at least one entry and the total never exceeds
// cfg.Capacity.
func NewTable(cfg Config) *Table {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	if cfg.Shards > cfg.Capacity {
		cfg.Shards = cfg.Capacity
	}
	if cfg.LostCapacity < cfg.Shards {
		cfg.LostCapacity = cfg.Shards
	}
	t := &Table{
		cfg:      cfg,
		shards:   make([]*shard, cfg.Shards),
		perShard: cfg.Capacity / cfg.Shards,
	}
	lostPerShard := cfg.LostCapacity / cfg.Shards
	for i := range t.shards {
		s := &shard{}
		s.lost, _ = simplelru.NewLRU(lostPerShard, nil)
		s.entries, _ = simplelru.NewLRU(t.perShard, func(key, _ interface{}) {
			// Every way out of the table goes through here with the shard
			// lock held: capacity eviction, Remove and Sweep alike.
			s.lost.Add(key, struct{}{})
		})
		t.shards[i] = s
	}
	log.WithFields(logger.Fields{
		"at":        "routing.NewTable",
		"capacity":  cfg.Capacity,
		"shards":    cfg.Shards,
		"per_shard": t.perShard,
	}).Debug("route_table_created")
	return t
}

// Config returns the effective configuration after NewTable adjustments.
func (t *Table) Config() Config {
	return t.cfg
}

func (t *Table) shardFor(id gnet.GUID) *shard {
	return t.shards[xxhash.Sum64(id[:])%uint64(len(t.shards))]
}

func entryOf(v interface{}) *Entry {
	e, ok := v.(*Entry)
	util.Assert(ok, "route table holds %T instead of *Entry", v)
	return e
}

// Lookup returns a copy of the entry for id.
func (t *Table) Lookup(id gnet.GUID) (Entry, bool) {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries.Peek(id)
	if !ok {
		return Entry{}, false
	}
	return *entryOf(v), true
}

// Insert records e unless a live entry exists for e.ID, in which case it
// returns false and leaves the table untouched. An entry that expired before
// e.Arrived but was not swept yet is replaced.
func (t *Table) Insert(e Entry) bool {
	s := t.shardFor(e.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.entries.Peek(e.ID); ok {
		if !t.Expired(*entryOf(v), e.Arrived) {
			return false
		}
		s.entries.Remove(e.ID)
	}
	t.add(s, e)
	return true
}

// InsertOrTouch records e, replacing any entry for the same identifier and
// making it the most recently seen one.
func (t *Table) InsertOrTouch(e Entry) {
	s := t.shardFor(e.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	// Remove first so the refreshed entry moves to the young end.
	s.entries.Remove(e.ID)
	t.add(s, e)
}

// add must be called with s.mu held.
func (t *Table) add(s *shard, e Entry) {
	entry := e
	if s.entries.Add(e.ID, &entry) {
		t.evicted.Add(1)
	}
	s.lost.Remove(e.ID)
	util.Assert(s.entries.Len() <= t.perShard, "route shard holds %d entries, limit %d", s.entries.Len(), t.perShard)
}

// MarkReplied flags the entry for id as answered. The entry stays routable
// until a Sweep past ReplyLinger removes it.
func (t *Table) MarkReplied(id gnet.GUID, now time.Time) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries.Peek(id)
	if !ok {
		return false
	}
	e := entryOf(v)
	if !e.Replied {
		e.Replied = true
		e.RepliedAt = now
	}
	return true
}

// Remove deletes the entry for id and remembers the identifier as lost.
func (t *Table) Remove(id gnet.GUID) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Remove(id)
}

// Lost reports whether id had an entry that has since left the table.
func (t *Table) Lost(id gnet.GUID) bool {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost.Contains(id)
}

// Expired reports whether e is past the horizon of its variant or past the
// reply linger, independently of whether a Sweep already removed it.
func (t *Table) Expired(e Entry, now time.Time) bool {
	if e.Age(now) > t.cfg.Horizon(e.Variant) {
		return true
	}
	return e.Replied && now.Sub(e.RepliedAt) >= t.cfg.ReplyLinger
}

// Sweep removes every expired entry and returns how many were removed.
// Running it twice with the same now removes nothing the second time.
func (t *Table) Sweep(now time.Time) int {
	removed := 0
	for _, s := range t.shards {
		removed += t.sweepShard(s, now)
	}
	t.swept.Add(uint64(removed))
	if removed > 0 {
		log.WithFields(logger.Fields{
			"at":      "routing.Table.Sweep",
			"removed": removed,
			"entries": t.Len(),
		}).Debug("route_table_swept")
	}
	return removed
}

func (t *Table) sweepShard(s *shard, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, key := range s.entries.Keys() {
		v, ok := s.entries.Peek(key)
		if !ok {
			continue
		}
		if t.Expired(*entryOf(v), now) {
			s.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += s.entries.Len()
		s.mu.Unlock()
	}
	return n
}

// Counters reports cumulative evictions for capacity and removals by Sweep.
func (t *Table) Counters() (evicted, swept uint64) {
	return t.evicted.Load(), t.swept.Load()
}
