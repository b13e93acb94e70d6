// Package stats counts admission outcomes: one counter per drop reason and
// one per accepted message kind. Counters only ever grow and are updated with
// atomic increments; their relative order is not observable.
package stats

import (
	"sync/atomic"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
)

// ACCEPTED_PREFIX prefixes accepted-kind keys in Snapshot.ByName.
const ACCEPTED_PREFIX = "ACCEPTED:"

// Outcome is the terminal result of one admission.
type Outcome struct {
	Accepted bool
	Kind     gnet.Kind
	Reason   drop.Reason
}

// Recorder holds the counters of one engine instance.
type Recorder struct {
	drops    [drop.COUNT]atomic.Uint64
	accepted [gnet.KindCount]atomic.Uint64
}

// NewRecorder returns a recorder with every counter at zero.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record counts exactly one outcome. An outcome that is neither accepted nor
// carries a valid reason is counted as drop.BadSize so that every call is
// attributed somewhere.
func (r *Recorder) Record(o Outcome) {
	if o.Accepted {
		k := o.Kind
		if int(k) >= gnet.KindCount {
			k = gnet.KindUnknown
		}
		r.accepted[k].Add(1)
		return
	}
	reason := o.Reason
	if !reason.Valid() {
		reason = drop.BadSize
	}
	r.drops[reason].Add(1)
}

// Dropped returns the counter of reason.
func (r *Recorder) Dropped(reason drop.Reason) uint64 {
	if !reason.Valid() {
		return 0
	}
	return r.drops[reason].Load()
}

// Accepted returns the counter of kind k.
func (r *Recorder) Accepted(k gnet.Kind) uint64 {
	if int(k) >= gnet.KindCount {
		return 0
	}
	return r.accepted[k].Load()
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Drops    [drop.COUNT]uint64
	Accepted [gnet.KindCount]uint64
}

// Snapshot copies the counters. Concurrent increments may or may not be
// included, but each counter is read once.
func (r *Recorder) Snapshot() Snapshot {
	var s Snapshot
	for i := range r.drops {
		s.Drops[i] = r.drops[i].Load()
	}
	for i := range r.accepted {
		s.Accepted[i] = r.accepted[i].Load()
	}
	return s
}

// Total returns the number of recorded outcomes.
func (s Snapshot) Total() uint64 {
	var n uint64
	for _, v := range s.Drops {
		n += v
	}
	for _, v := range s.Accepted {
		n += v
	}
	return n
}

// TotalDropped returns the number of recorded drops.
func (s Snapshot) TotalDropped() uint64 {
	var n uint64
	for _, v := range s.Drops {
		n += v
	}
	return n
}

// ByName maps every drop reason name and every accepted kind, prefixed with
// ACCEPTED_PREFIX, to its count. Zero counters are included.
func (s Snapshot) ByName() map[string]uint64 {
	out := make(map[string]uint64, len(s.Drops)+len(s.Accepted))
	for _, reason := range drop.All() {
		out[reason.Name()] = s.Drops[reason]
	}
	for k := range s.Accepted {
		out[ACCEPTED_PREFIX+gnet.Kind(k).String()] = s.Accepted[k]
	}
	return out
}
