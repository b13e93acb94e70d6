package router

import (
	"sync"
	"sync/atomic"
	"time"
)

// throughputSample is the traffic seen during one sampling interval.
type throughputSample struct {
	timestamp time.Time
	accepted  uint64
	dropped   uint64
}

// ThroughputTracker turns the cumulative accepted and dropped counters into
// rolling 1-second and 15-second rates.
type ThroughputTracker struct {
	mu             sync.Mutex
	samples        []throughputSample
	maxSamples     int
	sampleInterval time.Duration
	lastAccepted   uint64
	lastDropped    uint64

	acceptedRate1s  atomic.Uint64
	acceptedRate15s atomic.Uint64
	droppedRate1s   atomic.Uint64
	droppedRate15s  atomic.Uint64

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewThroughputTracker creates a tracker with 1-second sampling.
func NewThroughputTracker() *ThroughputTracker {
	return &ThroughputTracker{
		samples:        make([]throughputSample, 0, 15),
		maxSamples:     15,
		sampleInterval: time.Second,
	}
}

// Start launches the sampling goroutine. counters returns the cumulative
// accepted and dropped totals. Start and Stop must not race each other; a
// stopped tracker may be started again.
func (tt *ThroughputTracker) Start(counters func() (accepted, dropped uint64)) {
	accepted, dropped := counters()
	tt.mu.Lock()
	tt.lastAccepted, tt.lastDropped = accepted, dropped
	tt.mu.Unlock()

	tt.stopChan = make(chan struct{})
	tt.stopOnce = sync.Once{}

	tt.wg.Add(1)
	go tt.samplingLoop(counters, tt.stopChan)
}

// Stop ends the sampling goroutine. Safe to call more than once.
func (tt *ThroughputTracker) Stop() {
	if tt.stopChan == nil {
		return
	}
	tt.stopOnce.Do(func() { close(tt.stopChan) })
	tt.wg.Wait()
}

func (tt *ThroughputTracker) samplingLoop(counters func() (accepted, dropped uint64), stop chan struct{}) {
	defer tt.wg.Done()

	ticker := time.NewTicker(tt.sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			accepted, dropped := counters()
			tt.sample(now, accepted, dropped)
		case <-stop:
			return
		}
	}
}

// sample records the deltas since the previous sample and refreshes the
// cached rates.
func (tt *ThroughputTracker) sample(now time.Time, accepted, dropped uint64) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	// counters never decrease; guard anyway so a reset cannot wrap around
	var da, dd uint64
	if accepted >= tt.lastAccepted {
		da = accepted - tt.lastAccepted
	}
	if dropped >= tt.lastDropped {
		dd = dropped - tt.lastDropped
	}
	tt.lastAccepted, tt.lastDropped = accepted, dropped

	tt.samples = append(tt.samples, throughputSample{timestamp: now, accepted: da, dropped: dd})
	if len(tt.samples) > tt.maxSamples {
		tt.samples = tt.samples[1:]
	}
	tt.updateRates(now)
}

// updateRates must be called with tt.mu held.
func (tt *ThroughputTracker) updateRates(now time.Time) {
	if len(tt.samples) == 0 {
		tt.acceptedRate1s.Store(0)
		tt.droppedRate1s.Store(0)
		tt.acceptedRate15s.Store(0)
		tt.droppedRate15s.Store(0)
		return
	}

	last := tt.samples[len(tt.samples)-1]
	tt.acceptedRate1s.Store(last.accepted)
	tt.droppedRate1s.Store(last.dropped)

	var totalAccepted, totalDropped uint64
	var count uint64
	for i := len(tt.samples) - 1; i >= 0; i-- {
		s := tt.samples[i]
		if now.Sub(s.timestamp) > 15*time.Second {
			break
		}
		totalAccepted += s.accepted
		totalDropped += s.dropped
		count++
	}
	if count == 0 {
		tt.acceptedRate15s.Store(0)
		tt.droppedRate15s.Store(0)
		return
	}
	tt.acceptedRate15s.Store(totalAccepted / count)
	tt.droppedRate15s.Store(totalDropped / count)
}

// Rate1s returns the accepted and dropped frames of the last second.
func (tt *ThroughputTracker) Rate1s() (accepted, dropped uint64) {
	return tt.acceptedRate1s.Load(), tt.droppedRate1s.Load()
}

// Rate15s returns the per-second averages over the last 15 seconds.
func (tt *ThroughputTracker) Rate15s() (accepted, dropped uint64) {
	return tt.acceptedRate15s.Load(), tt.droppedRate15s.Load()
}
