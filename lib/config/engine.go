package config

import (
	"encoding/hex"
	"time"

	"github.com/go-gnutella/go-gnutella/lib/admission"
	"github.com/go-gnutella/go-gnutella/lib/forward"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/go-gnutella/go-gnutella/lib/limiter"
	"github.com/go-gnutella/go-gnutella/lib/routing"
	"github.com/samber/oops"
)

// EngineConfig is the runtime configuration of one engine instance.
type EngineConfig struct {
	Limits    gnet.Limits
	Admission admission.Config
	Routing   routing.Config
	Limiter   limiter.Config
	Forward   forward.Config

	SweepInterval time.Duration
	TokenRotation time.Duration
	// PolicyPath may be empty, in which case every list is empty.
	PolicyPath string
	NTPServers []string
	NTPTimeout time.Duration
}

// EngineConfig converts the defaults tree into the types the engine packages
// consume. A missing servent identifier is generated.
func (c ConfigDefaults) EngineConfig() *EngineConfig {
	servent, err := parseServentID(c.Tokens.ServentID)
	if err != nil || servent.IsZero() {
		servent = gnet.NewGUID()
	}
	return &EngineConfig{
		Limits: gnet.Limits{
			MaxSize:       c.Decoder.MaxSize,
			MaxQueueDelay: c.Decoder.MaxQueueDelay,
		},
		Admission: admission.Config{
			MaxTTL:           clampUint8(c.TTL.MaxTTL),
			HardTTLLimit:     clampUint8(c.TTL.HardLimit),
			MaxHops:          clampUint8(c.TTL.MaxHops),
			MinQueryLength:   c.Query.MinLength,
			MaxQueryOverhead: c.Query.MaxOverhead,
			AncientHorizon:   c.Query.AncientHorizon,
			FilteredMedia:    c.Query.FilteredMedia,
			MaxStoreValues:   c.Query.MaxStoreValues,
			ServentID:        servent,
			Cost:             1,
		},
		Routing: routing.Config{
			Capacity: c.Routing.Capacity,
			Shards:   c.Routing.Shards,
			Horizons: map[gnet.Variant]time.Duration{
				gnet.VariantClassic: c.Routing.ClassicHorizon,
				gnet.VariantGUESS:   c.Routing.GUESSHorizon,
				gnet.VariantG2:      c.Routing.G2Horizon,
				gnet.VariantDHT:     c.Routing.DHTHorizon,
			},
			DefaultHorizon: c.Routing.ClassicHorizon,
			LostCapacity:   c.Routing.LostCapacity,
			ReplyLinger:    c.Routing.ReplyLinger,
		},
		Limiter: limiter.Config{
			Conn:       limiter.Bucket{Rate: c.Flow.ConnRate, Burst: c.Flow.ConnBurst},
			Global:     limiter.Bucket{Rate: c.Flow.GlobalRate, Burst: c.Flow.GlobalBurst},
			Query:      limiter.Bucket{Rate: c.Flow.QueryRate, Burst: c.Flow.QueryBurst},
			Push:       limiter.Bucket{Rate: c.Flow.PushRate, Burst: c.Flow.PushBurst},
			Store:      limiter.Bucket{Rate: c.Flow.StoreRate, Burst: c.Flow.StoreBurst},
			MaxTracked: c.Flow.MaxTracked,
		},
		Forward:       forward.Config{MaxHops: clampUint8(c.TTL.MaxHops)},
		SweepInterval: c.Routing.SweepInterval,
		TokenRotation: c.Tokens.Rotation,
		PolicyPath:    c.Policy.Path,
		NTPServers:    c.Clock.Servers,
		NTPTimeout:    c.Clock.Timeout,
	}
}

// DefaultEngineConfig returns the engine configuration built from Defaults.
func DefaultEngineConfig() *EngineConfig {
	return Defaults().EngineConfig()
}

func parseServentID(s string) (gnet.GUID, error) {
	var id gnet.GUID
	if s == "" {
		return id, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, oops.Wrapf(err, "servent id %q", s)
	}
	if len(b) != gnet.GUID_SIZE {
		return id, oops.Errorf("servent id %q has %d bytes", s, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func clampUint8(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
