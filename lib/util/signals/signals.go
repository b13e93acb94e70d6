// Package signals dispatches process signals to registered handlers.
//
// SIGHUP runs the reload handlers. SIGINT and SIGTERM first run the drain
// handlers, bounded by the drain timeout, and then the interrupt handlers.
// The engine registers BeginShutdown as a drain handler so that in-flight
// frames are refused with SHUTDOWN before the router stops.
package signals

import (
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

const DEFAULT_DRAIN_TIMEOUT = 10 * time.Second

// sigChan is buffered to avoid missing signals delivered while no receiver is ready.
var sigChan = make(chan os.Signal, 1)

// Handler is a function called when a signal is received.
type Handler func()

// HandlerID identifies a registration for Deregister.
type HandlerID int

type kind int

const (
	kindReload kind = iota
	kindDrain
	kindInterrupt
)

func (k kind) String() string {
	switch k {
	case kindReload:
		return "reload"
	case kindDrain:
		return "drain"
	default:
		return "interrupt"
	}
}

type registeredHandler struct {
	id   HandlerID
	kind kind
	fn   Handler
}

var (
	mu           sync.RWMutex
	handlers     []registeredHandler
	nextID       HandlerID
	drainTimeout = DEFAULT_DRAIN_TIMEOUT
	stopOnce     sync.Once
)

func register(k kind, f Handler) HandlerID {
	if f == nil {
		return -1
	}
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handlers = append(handlers, registeredHandler{id: id, kind: k, fn: f})
	return id
}

// RegisterReloadHandler registers a handler called on SIGHUP.
// Nil handlers are ignored and return -1.
func RegisterReloadHandler(f Handler) HandlerID { return register(kindReload, f) }

// RegisterDrainHandler registers a handler that runs before the interrupt
// handlers on SIGINT/SIGTERM.
func RegisterDrainHandler(f Handler) HandlerID { return register(kindDrain, f) }

// RegisterInterruptHandler registers a handler called on SIGINT/SIGTERM after
// the drain handlers returned or timed out.
func RegisterInterruptHandler(f Handler) HandlerID { return register(kindInterrupt, f) }

// Deregister removes a handler of any kind.
func Deregister(id HandlerID) {
	mu.Lock()
	defer mu.Unlock()
	for i, h := range handlers {
		if h.id == id {
			handlers = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

// SetDrainTimeout bounds how long drain handlers may run. Non-positive values
// restore the default.
func SetDrainTimeout(timeout time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if timeout <= 0 {
		timeout = DEFAULT_DRAIN_TIMEOUT
	}
	drainTimeout = timeout
}

func snapshot(k kind) []Handler {
	mu.RLock()
	defer mu.RUnlock()
	var out []Handler
	for _, h := range handlers {
		if h.kind == k {
			out = append(out, h.fn)
		}
	}
	return out
}

func run(k kind, fns []Handler) {
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(logger.Fields{
						"at":    "signals.run",
						"kind":  k.String(),
						"panic": r,
					}).Error("signal handler panicked")
				}
			}()
			fn()
		}()
	}
}

func handleReload() {
	run(kindReload, snapshot(kindReload))
}

// handleDrain reports whether every drain handler returned within the timeout.
func handleDrain() bool {
	fns := snapshot(kindDrain)
	if len(fns) == 0 {
		return true
	}
	mu.RLock()
	timeout := drainTimeout
	mu.RUnlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		run(kindDrain, fns)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		log.WithFields(logger.Fields{
			"at":      "signals.handleDrain",
			"timeout": timeout,
		}).Warn("drain handlers timed out")
		return false
	}
}

func handleInterrupted() {
	handleDrain()
	run(kindInterrupt, snapshot(kindInterrupt))
}

// StopHandle makes Handle return. Safe to call multiple times.
func StopHandle() {
	stopOnce.Do(func() {
		signal.Stop(sigChan)
		close(sigChan)
	})
}
