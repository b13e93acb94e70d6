package config

import (
	"path/filepath"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-i2p/logger"
)

// ConfigDefaults contains every tunable of the engine. It is the single source
// of truth for defaults and the shape of the config file.
type ConfigDefaults struct {
	Decoder DecoderDefaults
	TTL     TTLDefaults
	Routing RoutingDefaults
	Flow    FlowDefaults
	Query   QueryDefaults
	Policy  PolicyDefaults
	Clock   ClockDefaults
	Tokens  TokenDefaults
}

// DecoderDefaults bound the structural checks.
type DecoderDefaults struct {
	// MaxSize is the absolute ceiling for a frame, header included.
	// Default: 65559 bytes
	MaxSize int

	// MaxQueueDelay is how long a frame may wait before it is decoded.
	// Default: 30 seconds
	MaxQueueDelay time.Duration
}

// TTLDefaults drive the hop accounting checks.
type TTLDefaults struct {
	// MaxTTL is the highest ttl accepted on arrival.
	// Default: 7
	MaxTTL int

	// HardLimit caps ttl+hops.
	// Default: 16
	HardLimit int

	// MaxHops is the highest hop count accepted or relayed.
	// Default: 14
	MaxHops int
}

// RoutingDefaults size the route tables.
type RoutingDefaults struct {
	// Capacity is the number of live route entries per table.
	// Default: 200000
	Capacity int

	// Shards is the number of independently locked partitions.
	// Default: 64
	Shards int

	ClassicHorizon time.Duration
	GUESSHorizon   time.Duration
	G2Horizon      time.Duration
	DHTHorizon     time.Duration

	// LostCapacity bounds how many removed identifiers are remembered.
	// Default: 50000
	LostCapacity int

	// ReplyLinger keeps answered entries routable for late replies.
	// Default: 90 seconds
	ReplyLinger time.Duration

	// SweepInterval is how often expired entries are removed.
	// Default: 30 seconds
	SweepInterval time.Duration
}

// FlowDefaults parameterise the token buckets. Rates are per second.
type FlowDefaults struct {
	ConnRate    float64
	ConnBurst   int
	GlobalRate  float64
	GlobalBurst int
	QueryRate   float64
	QueryBurst  int
	PushRate    float64
	PushBurst   int
	StoreRate   float64
	StoreBurst  int
	// MaxTracked bounds the connections and addresses holding bucket state.
	MaxTracked int
}

// QueryDefaults drive the query and DHT payload checks.
type QueryDefaults struct {
	MinLength      int
	MaxOverhead    int
	AncientHorizon time.Duration
	// FilteredMedia is the GGEP "M" mask whose queries are dropped.
	// Default: 0 (nothing filtered)
	FilteredMedia  uint32
	MaxStoreValues int
}

// PolicyDefaults locate the ban and spam rules.
type PolicyDefaults struct {
	// Path of the policy file. Empty disables every list.
	// Default: $HOME/.go-gnutella/policy.yaml
	Path string
}

// ClockDefaults configure NTP correction of the wall clock.
type ClockDefaults struct {
	// Servers are queried in order. Empty disables synchronisation.
	Servers []string
	Timeout time.Duration
}

// TokenDefaults configure GUESS query keys and DHT security tokens.
type TokenDefaults struct {
	// Rotation is how often the signing secret changes. Tokens stay valid
	// for up to two periods.
	// Default: 1 hour
	Rotation time.Duration

	// ServentID is the hex encoded identifier this node puts in query hits.
	// Empty means a random identifier per run.
	ServentID string
}

// Defaults returns a ConfigDefaults instance with all default values set.
func Defaults() ConfigDefaults {
	return ConfigDefaults{
		Decoder: buildDecoderDefaults(),
		TTL:     buildTTLDefaults(),
		Routing: buildRoutingDefaults(),
		Flow:    buildFlowDefaults(),
		Query:   buildQueryDefaults(),
		Policy:  buildPolicyDefaults(BuildDirPath()),
		Clock:   buildClockDefaults(),
		Tokens:  buildTokenDefaults(),
	}
}

func buildDecoderDefaults() DecoderDefaults {
	return DecoderDefaults{
		MaxSize:       gnet.DEFAULT_MAX_MESSAGE_SIZE,
		MaxQueueDelay: 30 * time.Second,
	}
}

func buildTTLDefaults() TTLDefaults {
	return TTLDefaults{
		MaxTTL:    7,
		HardLimit: 16,
		MaxHops:   14,
	}
}

func buildRoutingDefaults() RoutingDefaults {
	return RoutingDefaults{
		Capacity:       200000,
		Shards:         64,
		ClassicHorizon: 10 * time.Minute,
		GUESSHorizon:   5 * time.Minute,
		G2Horizon:      5 * time.Minute,
		DHTHorizon:     time.Minute,
		LostCapacity:   50000,
		ReplyLinger:    90 * time.Second,
		SweepInterval:  30 * time.Second,
	}
}

func buildFlowDefaults() FlowDefaults {
	return FlowDefaults{
		ConnRate:    200,
		ConnBurst:   400,
		GlobalRate:  5000,
		GlobalBurst: 10000,
		QueryRate:   20,
		QueryBurst:  60,
		PushRate:    10,
		PushBurst:   30,
		StoreRate:   1,
		StoreBurst:  20,
		MaxTracked:  4096,
	}
}

func buildQueryDefaults() QueryDefaults {
	return QueryDefaults{
		MinLength:      2,
		MaxOverhead:    512,
		AncientHorizon: 10 * time.Minute,
		MaxStoreValues: 16,
	}
}

func buildPolicyDefaults(dir string) PolicyDefaults {
	return PolicyDefaults{Path: filepath.Join(dir, "policy.yaml")}
}

func buildClockDefaults() ClockDefaults {
	return ClockDefaults{
		Servers: []string{"pool.ntp.org", "time.google.com"},
		Timeout: 5 * time.Second,
	}
}

func buildTokenDefaults() TokenDefaults {
	return TokenDefaults{Rotation: time.Hour}
}

// Validate checks if the provided configuration values are reasonable.
// Returns an error describing the first invalid value found.
func Validate(cfg ConfigDefaults) error {
	log.WithFields(logger.Fields{
		"at":     "config.Validate",
		"reason": "verification_requested",
	}).Debug("validating configuration")
	validators := []func() error{
		func() error { return validateDecoder(cfg.Decoder) },
		func() error { return validateTTL(cfg.TTL) },
		func() error { return validateRouting(cfg.Routing) },
		func() error { return validateFlow(cfg.Flow) },
		func() error { return validateQuery(cfg.Query) },
		func() error { return validateTokens(cfg.Tokens) },
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			log.WithError(err).Error("Configuration validation failed")
			return err
		}
	}
	return nil
}

func validateDecoder(d DecoderDefaults) error {
	if d.MaxSize < gnet.GTA_HEADER_SIZE {
		return newValidationError("Decoder.MaxSize must hold at least a header")
	}
	if d.MaxQueueDelay < 0 {
		return newValidationError("Decoder.MaxQueueDelay cannot be negative")
	}
	return nil
}

func validateTTL(t TTLDefaults) error {
	if t.MaxTTL < 1 || t.MaxTTL > 255 {
		return newValidationError("TTL.MaxTTL must be between 1 and 255")
	}
	if t.HardLimit < t.MaxTTL || t.HardLimit > 510 {
		return newValidationError("TTL.HardLimit must be at least TTL.MaxTTL")
	}
	if t.MaxHops < 1 || t.MaxHops > 254 {
		return newValidationError("TTL.MaxHops must be between 1 and 254")
	}
	return nil
}

func validateRouting(r RoutingDefaults) error {
	if r.Capacity < 1 {
		return newValidationError("Routing.Capacity must be at least 1")
	}
	if r.Shards < 1 {
		return newValidationError("Routing.Shards must be at least 1")
	}
	for _, h := range []time.Duration{r.ClassicHorizon, r.GUESSHorizon, r.G2Horizon, r.DHTHorizon} {
		if h <= 0 {
			return newValidationError("Routing horizons must be positive")
		}
	}
	if r.LostCapacity < 0 {
		return newValidationError("Routing.LostCapacity cannot be negative")
	}
	if r.SweepInterval < time.Second {
		return newValidationError("Routing.SweepInterval must be at least 1 second")
	}
	return nil
}

func validateFlow(f FlowDefaults) error {
	rates := []float64{f.ConnRate, f.GlobalRate, f.QueryRate, f.PushRate, f.StoreRate}
	bursts := []int{f.ConnBurst, f.GlobalBurst, f.QueryBurst, f.PushBurst, f.StoreBurst}
	for i := range rates {
		if rates[i] < 0 || bursts[i] < 0 {
			return newValidationError("Flow rates and bursts cannot be negative")
		}
		if rates[i] > 0 && bursts[i] == 0 {
			return newValidationError("Flow bursts must be positive when a rate is set")
		}
	}
	if f.MaxTracked < 1 {
		return newValidationError("Flow.MaxTracked must be at least 1")
	}
	return nil
}

func validateQuery(q QueryDefaults) error {
	if q.MinLength < 0 || q.MaxOverhead < 0 || q.MaxStoreValues < 0 {
		return newValidationError("Query limits cannot be negative")
	}
	if q.AncientHorizon < 0 {
		return newValidationError("Query.AncientHorizon cannot be negative")
	}
	return nil
}

func validateTokens(t TokenDefaults) error {
	if t.Rotation < time.Minute {
		return newValidationError("Tokens.Rotation must be at least 1 minute")
	}
	if t.ServentID != "" {
		if _, err := parseServentID(t.ServentID); err != nil {
			return newValidationError("Tokens.ServentID must be 32 hex digits")
		}
	}
	return nil
}

// validationError is returned when configuration validation fails
type validationError struct {
	message string
}

func newValidationError(message string) error {
	return &validationError{message: message}
}

func (e *validationError) Error() string {
	return "configuration validation failed: " + e.message
}
