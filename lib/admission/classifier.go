package admission

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/routing"
	"github.com/go-gnutella/go-gnutella/lib/token"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Limiter meters admission. *limiter.Limiter implements it.
type Limiter interface {
	AdmitConn(origin gnet.Origin, k gnet.Kind, cost int, now time.Time) drop.Reason
	AdmitGlobal(origin gnet.Origin, k gnet.Kind, cost int, now time.Time) drop.Reason
	AdmitStore(addr netip.Addr, values int, now time.Time) bool
}

// BanPolicy answers source and target questions. *policy.Policy implements it.
type BanPolicy interface {
	IsBanned(addr netip.Addr) bool
	IsHostile(addr netip.Addr) bool
	IsShunned(addr netip.Addr) bool
	IsBannedServent(id gnet.GUID) bool
}

// SpamPolicy judges message content. The payload it sees is inflated.
type SpamPolicy interface {
	IsSpam(msg *gnet.Message) bool
	IsEvil(msg *gnet.Message) bool
}

// TokenChecker validates GUESS query keys and DHT security tokens.
type TokenChecker interface {
	Valid(purpose token.Purpose, addr netip.AddrPort, tok []byte) bool
}

// Liveness tells whether a connection reference still names an open
// connection.
type Liveness interface {
	IsLive(conn gnet.ConnRef) bool
}

// Config holds the thresholds of the classifier.
type Config struct {
	MaxTTL       uint8
	HardTTLLimit uint8
	MaxHops      uint8
	// MinQueryLength is the shortest query text, in runes, accepted from a
	// query that carries no URN.
	MinQueryLength   int
	MaxQueryOverhead int
	AncientHorizon   time.Duration
	FilteredMedia    uint32
	MaxStoreValues   int
	// ServentID identifies this node in query hits and pushes.
	ServentID gnet.GUID
	// Cost is the number of tokens charged per message.
	Cost int
}

// DefaultConfig returns the thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxTTL:           7,
		HardTTLLimit:     16,
		MaxHops:          14,
		MinQueryLength:   2,
		MaxQueryOverhead: 512,
		AncientHorizon:   10 * time.Minute,
		MaxStoreValues:   16,
		Cost:             1,
	}
}

// Deps are the collaborators of a Classifier. Routes is required; the push
// table defaults to a private one and missing policies allow everything.
type Deps struct {
	Routes  *routing.Table
	Pushes  *routing.Table
	Limiter Limiter
	Bans    BanPolicy
	Spam    SpamPolicy
	Tokens  TokenChecker
	Live    Liveness
}

// Verdict is the outcome of Classify.
type Verdict struct {
	// Reason is drop.None when the message is accepted.
	Reason drop.Reason
	// Route is the entry replies and pushes follow, or the entry recorded for
	// an accepted broadcast.
	Route    routing.Entry
	HasRoute bool
	// Payload is the message payload, inflated if it arrived deflated.
	Payload []byte
}

// Accepted reports whether the message passed every stage.
func (v Verdict) Accepted() bool {
	return v.Reason == drop.None
}

// Classifier is safe for concurrent use.
type Classifier struct {
	cfg      Config
	routes   *routing.Table
	pushes   *routing.Table
	limiter  Limiter
	bans     BanPolicy
	spam     SpamPolicy
	tokens   TokenChecker
	live     Liveness
	shutdown atomic.Bool

	stages []stage
}

type stage struct {
	name  string
	check func(*inspection) drop.Reason
}

// New builds a classifier.
func New(cfg Config, deps Deps) *Classifier {
	if cfg.Cost < 1 {
		cfg.Cost = 1
	}
	c := &Classifier{
		cfg:     cfg,
		routes:  deps.Routes,
		pushes:  deps.Pushes,
		limiter: deps.Limiter,
		bans:    deps.Bans,
		spam:    deps.Spam,
		tokens:  deps.Tokens,
		live:    deps.Live,
	}
	if c.routes == nil {
		c.routes = routing.NewTable(routing.DefaultConfig())
	}
	if c.pushes == nil {
		c.pushes = routing.NewTable(c.routes.Config())
	}
	if c.limiter == nil {
		c.limiter = allowAll{}
	}
	if c.bans == nil {
		c.bans = allowAll{}
	}
	if c.spam == nil {
		c.spam = allowAll{}
	}
	if c.tokens == nil {
		c.tokens = allowAll{}
	}
	if c.live == nil {
		c.live = allowAll{}
	}
	c.stages = []stage{
		{"ttl", c.checkTTL},
		{"admission", c.checkAdmission},
		{"source", c.checkSource},
		{"routing", c.checkRouting},
		{"self", c.checkSelf},
		{"payload", c.checkPayload},
	}
	return c
}

// BeginShutdown makes every later message fail stage 3 with drop.Shutdown.
func (c *Classifier) BeginShutdown() {
	if !c.shutdown.Swap(true) {
		log.WithFields(logger.Fields{"at": "admission.BeginShutdown"}).Info("admission_shutdown_started")
	}
}

// ShuttingDown reports whether BeginShutdown was called.
func (c *Classifier) ShuttingDown() bool {
	return c.shutdown.Load()
}

// Routes returns the identifier route table.
func (c *Classifier) Routes() *routing.Table {
	return c.routes
}

// Pushes returns the servent identifier route table.
func (c *Classifier) Pushes() *routing.Table {
	return c.pushes
}

// Classify runs stages 2 to 7 on a message that gnet.Decode accepted. It
// never panics on peer input and always returns exactly one outcome.
func (c *Classifier) Classify(msg *gnet.Message, origin gnet.Origin, now time.Time) Verdict {
	in := &inspection{msg: msg, origin: origin, now: now}
	for _, s := range c.stages {
		if reason := s.check(in); reason != drop.None {
			log.WithFields(logger.Fields{
				"at":     "admission.Classify",
				"stage":  s.name,
				"reason": reason.Name(),
				"kind":   msg.Kind.String(),
				"conn":   origin.Conn.String(),
			}).Debug("message_dropped")
			return Verdict{Reason: reason}
		}
	}
	return c.accept(in)
}

// allowAll stands in for missing collaborators.
type allowAll struct{}

func (allowAll) AdmitConn(gnet.Origin, gnet.Kind, int, time.Time) drop.Reason   { return drop.None }
func (allowAll) AdmitGlobal(gnet.Origin, gnet.Kind, int, time.Time) drop.Reason { return drop.None }
func (allowAll) AdmitStore(netip.Addr, int, time.Time) bool                     { return true }
func (allowAll) IsBanned(netip.Addr) bool                                       { return false }
func (allowAll) IsHostile(netip.Addr) bool                                      { return false }
func (allowAll) IsShunned(netip.Addr) bool                                      { return false }
func (allowAll) IsBannedServent(gnet.GUID) bool                                 { return false }
func (allowAll) IsSpam(*gnet.Message) bool                                      { return false }
func (allowAll) IsEvil(*gnet.Message) bool                                      { return false }
func (allowAll) Valid(token.Purpose, netip.AddrPort, []byte) bool               { return true }
func (allowAll) IsLive(gnet.ConnRef) bool                                       { return true }
