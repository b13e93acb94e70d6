package router

import (
	"errors"
	"io/fs"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/admission"
	"github.com/go-gnutella/go-gnutella/lib/config"
	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/forward"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/limiter"
	"github.com/go-gnutella/go-gnutella/lib/policy"
	"github.com/go-gnutella/go-gnutella/lib/routing"
	"github.com/go-gnutella/go-gnutella/lib/stats"
	"github.com/go-gnutella/go-gnutella/lib/token"
	"github.com/go-gnutella/go-gnutella/lib/util/time/monotonic"
	"github.com/go-i2p/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// METRICS_NAMESPACE prefixes every exported metric.
const METRICS_NAMESPACE = "gnutella"

// Topology is an external view of the connections, replacing the built-in
// Peers registry.
type Topology interface {
	forward.Topology
	admission.Liveness
}

// Result is the outcome of one Submit.
type Result struct {
	Origin gnet.Origin
	// Message is only meaningful when the frame decoded.
	Message gnet.Message
	// Reason is drop.None when the frame was accepted.
	Reason     drop.Reason
	Deliveries []forward.Delivery
}

// Accepted reports whether the frame passed admission.
func (r Result) Accepted() bool {
	return r.Reason == drop.None
}

// Engine is safe for concurrent use; Submit may run on any number of
// goroutines.
type Engine struct {
	cfg   *config.EngineConfig
	clock monotonic.Source

	peers      *Peers
	topo       Topology
	limiter    *limiter.Limiter
	policy     *policy.Policy
	tokens     *token.Keeper
	classifier *admission.Classifier
	forwarder  *forward.Forwarder
	stats      *stats.Recorder
	throughput *ThroughputTracker
	subs       *subscribers

	// runMux protects running.
	runMux    sync.Mutex
	running   bool
	closeChnl chan bool
	loopDone  chan struct{}
}

// Option customises New.
type Option func(*Engine)

// WithClock replaces the wall clock, typically with a monotonic.Manual.
func WithClock(clock monotonic.Source) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithTopology replaces the built-in Peers registry.
func WithTopology(topo Topology) Option {
	return func(e *Engine) { e.topo = topo }
}

// WithPolicy replaces the policy loaded from the configured path.
func WithPolicy(p *policy.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// New builds an engine. The policy file is optional: a configured path that
// does not exist yields empty lists; one that exists but fails to parse is an
// error.
func New(cfg *config.EngineConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	e := &Engine{
		cfg:        cfg,
		peers:      NewPeers(),
		limiter:    limiter.New(cfg.Limiter),
		stats:      stats.NewRecorder(),
		throughput: NewThroughputTracker(),
		subs:       newSubscribers(),
		closeChnl:  make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = monotonic.NewClock()
	}
	if e.topo == nil {
		e.topo = e.peers
	}
	if e.policy == nil {
		p, err := loadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, err
		}
		e.policy = p
	}

	keeper, err := token.NewKeeper(cfg.TokenRotation, e.clock.Now())
	if err != nil {
		return nil, oops.Wrapf(err, "token keeper")
	}
	e.tokens = keeper

	e.classifier = admission.New(cfg.Admission, admission.Deps{
		Routes:  routing.NewTable(cfg.Routing),
		Pushes:  routing.NewTable(cfg.Routing),
		Limiter: e.limiter,
		Bans:    e.policy,
		Spam:    e.policy,
		Tokens:  e.tokens,
		Live:    e.topo,
	})
	e.forwarder = forward.New(cfg.Forward, e.topo)

	log.WithFields(logger.Fields{
		"at":        "router.New",
		"servent":   cfg.Admission.ServentID.String(),
		"max_ttl":   cfg.Admission.MaxTTL,
		"capacity":  cfg.Routing.Capacity,
		"policy":    cfg.PolicyPath,
		"sweep_int": cfg.SweepInterval,
	}).Debug("engine_created")
	return e, nil
}

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		return policy.New(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.WithFields(logger.Fields{
			"at":   "router.loadPolicy",
			"path": path,
		}).Warn("policy file not found, starting with empty lists")
		return policy.New(), nil
	}
	p, err := policy.Load(path)
	if err != nil {
		return nil, oops.Wrapf(err, "load policy")
	}
	return p, nil
}

// Submit decodes, classifies and routes one raw frame. raw is borrowed for
// the duration of the call; deliveries reference it and must be consumed or
// copied before raw is reused. Subscribers receive their own copy.
func (e *Engine) Submit(raw []byte, origin gnet.Origin) Result {
	now := e.clock.Now()
	res := Result{Origin: origin}

	msg, reason := gnet.Decode(raw, origin, e.cfg.Limits, now)
	res.Message = msg
	if reason != drop.None {
		res.Reason = reason
		log.WithFields(logger.Fields{
			"at":     "(Engine) Submit",
			"reason": reason.Name(),
			"conn":   origin.Conn.String(),
		}).Debug("frame_rejected")
	} else {
		v := e.classifier.Classify(&msg, origin, now)
		res.Reason = v.Reason
		res.Message = msg
		if v.Accepted() {
			res.Deliveries = e.forwarder.Route(&msg, origin, &v)
		}
	}

	e.stats.Record(stats.Outcome{
		Accepted: res.Accepted(),
		Kind:     res.Message.Kind,
		Reason:   res.Reason,
	})
	if !e.subs.empty() {
		e.subs.publish(Event{Result: detach(res), At: now})
	}
	return res
}

// NewQueryGUID mints a timestamped identifier for a query this node
// originates and records a local route for it. Echoes of the query are then
// dropped as OWN_QUERY and its hits are delivered locally.
func (e *Engine) NewQueryGUID() gnet.GUID {
	now := e.clock.Now()
	id := gnet.NewTimestampedGUID(now)
	e.classifier.Routes().InsertOrTouch(routing.Entry{
		ID:      id,
		Origin:  gnet.LocalRef,
		Variant: gnet.VariantClassic,
		Kind:    gnet.KindQuery,
		TTL:     e.cfg.Admission.MaxTTL,
		Arrived: now,
	})
	return id
}

// IssueToken returns the GUESS query key or DHT security token addr must
// present.
func (e *Engine) IssueToken(purpose token.Purpose, addr netip.AddrPort) []byte {
	return e.tokens.Issue(purpose, addr)
}

// Connect registers a connection with the built-in registry.
func (e *Engine) Connect(slot uint32, network gnet.Network) gnet.ConnRef {
	return e.peers.Connect(slot, network)
}

// Disconnect unregisters ref and releases its flow-control state. Routes
// pointing at ref become ROUTE_LOST.
func (e *Engine) Disconnect(ref gnet.ConnRef) {
	if e.peers.Disconnect(ref) {
		e.limiter.Forget(ref)
	}
}

// Peers returns the built-in registry.
func (e *Engine) Peers() *Peers {
	return e.peers
}

// Routes returns the query route table.
func (e *Engine) Routes() *routing.Table {
	return e.classifier.Routes()
}

// Pushes returns the servent route table.
func (e *Engine) Pushes() *routing.Table {
	return e.classifier.Pushes()
}

// Policy returns the active ban and spam lists.
func (e *Engine) Policy() *policy.Policy {
	return e.policy
}

// ReloadPolicy re-reads the policy file. The previous rules stay in force on
// error.
func (e *Engine) ReloadPolicy() error {
	if err := e.policy.Reload(); err != nil {
		log.WithFields(logger.Fields{
			"at": "(Engine) ReloadPolicy",
		}).WithError(err).Error("policy reload failed")
		return err
	}
	banned, hostile, shunned := e.policy.Counts()
	log.WithFields(logger.Fields{
		"at":      "(Engine) ReloadPolicy",
		"banned":  banned,
		"hostile": hostile,
		"shunned": shunned,
	}).Info("policy_reloaded")
	return nil
}

// BeginShutdown makes every later frame drop with SHUTDOWN.
func (e *Engine) BeginShutdown() {
	e.classifier.BeginShutdown()
}

// Sweep removes expired routes and rotates the token secret when due. The
// sweeper calls it periodically; it is idempotent.
func (e *Engine) Sweep() (routes, pushes int) {
	now := e.clock.Now()
	routes = e.classifier.Routes().Sweep(now)
	pushes = e.classifier.Pushes().Sweep(now)

	rotated := e.tokens.Maintain(now)

	if routes > 0 || pushes > 0 || rotated {
		log.WithFields(logger.Fields{
			"at":      "(Engine) Sweep",
			"routes":  routes,
			"pushes":  pushes,
			"rotated": rotated,
		}).Debug("sweep_done")
	}
	return routes, pushes
}

// Stats returns a point-in-time copy of the counters.
func (e *Engine) Stats() stats.Snapshot {
	return e.stats.Snapshot()
}

// StatsSnapshot returns every counter by its stable name.
func (e *Engine) StatsSnapshot() map[string]uint64 {
	return e.stats.Snapshot().ByName()
}

// Throughput returns the accepted and dropped frames per second, averaged
// over 15 seconds. Rates are only sampled while the engine runs.
func (e *Engine) Throughput() (accepted, dropped uint64) {
	return e.throughput.Rate15s()
}

// Register exposes the counters on reg.
func (e *Engine) Register(reg prometheus.Registerer) error {
	if err := reg.Register(stats.NewCollector(METRICS_NAMESPACE, e.stats)); err != nil {
		return oops.Wrapf(err, "register collector")
	}
	return nil
}

func (e *Engine) counters() (accepted, dropped uint64) {
	snap := e.stats.Snapshot()
	dropped = snap.TotalDropped()
	return snap.Total() - dropped, dropped
}

// Start launches the sweeper and the throughput sampler.
func (e *Engine) Start() {
	e.runMux.Lock()
	defer e.runMux.Unlock()

	if e.running {
		log.WithFields(logger.Fields{
			"at":     "(Engine) Start",
			"reason": "engine is already running",
		}).Error("Error starting engine")
		return
	}
	log.Debug("Starting engine")
	e.running = true
	e.loopDone = make(chan struct{})
	e.throughput.Start(e.counters)
	go e.mainloop(e.loopDone)
	if len(e.cfg.NTPServers) > 0 {
		go e.syncClock()
	}
}

// Stop ends the background loops. Submit keeps working.
func (e *Engine) Stop() {
	log.Debug("Stopping engine")
	e.runMux.Lock()
	defer e.runMux.Unlock()

	if !e.running {
		log.Debug("Engine already stopped")
		return
	}
	e.running = false

	select {
	case e.closeChnl <- true:
		log.Debug("Engine stop signal sent")
	default:
		log.Debug("Engine stop signal already pending")
	}
	<-e.loopDone
	e.throughput.Stop()
}

// Wait blocks until the sweeper exited after Stop.
func (e *Engine) Wait() {
	e.runMux.Lock()
	done := e.loopDone
	e.runMux.Unlock()
	if done == nil {
		return
	}
	<-done
}

// Close stops the engine and closes every subscription.
func (e *Engine) Close() error {
	e.BeginShutdown()
	e.Stop()
	e.subs.closeAll()
	return nil
}

func (e *Engine) mainloop(done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	log.Debug("Entering engine mainloop")
	for {
		select {
		case <-ticker.C:
			e.Sweep()
		case <-e.closeChnl:
			log.Debug("Exiting engine mainloop")
			return
		}
	}
}

// syncClock corrects the wall clock once from the configured servers. Only
// the built-in clock can be corrected.
func (e *Engine) syncClock() {
	clock, ok := e.clock.(*monotonic.Clock)
	if !ok {
		return
	}
	if err := clock.Sync(nil, e.cfg.NTPServers, e.cfg.NTPTimeout); err != nil {
		log.WithFields(logger.Fields{
			"at":      "(Engine) syncClock",
			"servers": e.cfg.NTPServers,
		}).WithError(err).Warn("clock not synchronised, using system time")
		return
	}
	log.WithFields(logger.Fields{
		"at":     "(Engine) syncClock",
		"offset": clock.Offset(),
	}).Info("clock_synchronised")
}
