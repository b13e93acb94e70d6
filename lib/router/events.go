package router

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/forward"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
)

// Event reports one Submit to subscribers.
type Event struct {
	Result Result
	At     time.Time
}

type subscribers struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan Event
	closed bool
	missed atomic.Uint64
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[uint64]chan Event)}
}

func (s *subscribers) empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs) == 0
}

// publish never blocks: a subscriber whose buffer is full misses the event.
func (s *subscribers) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.missed.Add(1)
		}
	}
}

func (s *subscribers) add(buffer int) (uint64, chan Event) {
	ch := make(chan Event, buffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return 0, ch
	}
	s.nextID++
	s.subs[s.nextID] = ch
	return s.nextID, ch
}

func (s *subscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.closed = true
}

// detach copies every byte slice of res out of the caller's buffer so the
// event outlives the Submit call.
func detach(res Result) Result {
	orig := res.Message.Raw
	res.Message = res.Message.Clone()
	if len(res.Deliveries) == 0 {
		return res
	}
	deliveries := make([]forward.Delivery, len(res.Deliveries))
	for i, d := range res.Deliveries {
		d.Frame = gnet.Rebase(d.Frame, orig, res.Message.Raw)
		deliveries[i] = d
	}
	res.Deliveries = deliveries
	return res
}

// Subscribe returns a channel receiving an Event per Submit, and a cancel
// function that closes it. Events own their bytes and stay valid after the
// submitted buffer is reused. The engine never waits for a subscriber: when the
// buffer is full the event is discarded and counted in MissedEvents. Close
// also closes the channel.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	id, ch := e.subs.add(buffer)
	var once sync.Once
	return ch, func() {
		once.Do(func() { e.subs.remove(id) })
	}
}

// MissedEvents returns how many events full subscriber buffers discarded.
func (e *Engine) MissedEvents() uint64 {
	return e.subs.missed.Load()
}
