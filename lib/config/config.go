package config

import (
	"os"
	"path/filepath"

	"github.com/go-gnutella/go-gnutella/lib/util"
	"github.com/go-i2p/logger"
	"github.com/spf13/viper"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const GOGNUTELLA_BASE_DIR = ".go-gnutella"

func InitConfig() {
	if CfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	handleConfigFile()
}

func setDefaults() {
	d := Defaults()

	viper.SetDefault("decoder.max_size", d.Decoder.MaxSize)
	viper.SetDefault("decoder.max_queue_delay", d.Decoder.MaxQueueDelay)

	viper.SetDefault("ttl.max_ttl", d.TTL.MaxTTL)
	viper.SetDefault("ttl.hard_limit", d.TTL.HardLimit)
	viper.SetDefault("ttl.max_hops", d.TTL.MaxHops)

	viper.SetDefault("routing.capacity", d.Routing.Capacity)
	viper.SetDefault("routing.shards", d.Routing.Shards)
	viper.SetDefault("routing.horizon.classic", d.Routing.ClassicHorizon)
	viper.SetDefault("routing.horizon.guess", d.Routing.GUESSHorizon)
	viper.SetDefault("routing.horizon.g2", d.Routing.G2Horizon)
	viper.SetDefault("routing.horizon.dht", d.Routing.DHTHorizon)
	viper.SetDefault("routing.lost_capacity", d.Routing.LostCapacity)
	viper.SetDefault("routing.reply_linger", d.Routing.ReplyLinger)
	viper.SetDefault("routing.sweep_interval", d.Routing.SweepInterval)

	viper.SetDefault("flow.conn_rate", d.Flow.ConnRate)
	viper.SetDefault("flow.conn_burst", d.Flow.ConnBurst)
	viper.SetDefault("flow.global_rate", d.Flow.GlobalRate)
	viper.SetDefault("flow.global_burst", d.Flow.GlobalBurst)
	viper.SetDefault("flow.query_rate", d.Flow.QueryRate)
	viper.SetDefault("flow.query_burst", d.Flow.QueryBurst)
	viper.SetDefault("flow.push_rate", d.Flow.PushRate)
	viper.SetDefault("flow.push_burst", d.Flow.PushBurst)
	viper.SetDefault("flow.store_rate", d.Flow.StoreRate)
	viper.SetDefault("flow.store_burst", d.Flow.StoreBurst)
	viper.SetDefault("flow.max_tracked", d.Flow.MaxTracked)

	viper.SetDefault("query.min_length", d.Query.MinLength)
	viper.SetDefault("query.max_overhead", d.Query.MaxOverhead)
	viper.SetDefault("query.ancient_horizon", d.Query.AncientHorizon)
	viper.SetDefault("query.filtered_media", d.Query.FilteredMedia)
	viper.SetDefault("query.max_store_values", d.Query.MaxStoreValues)

	viper.SetDefault("policy.path", d.Policy.Path)

	viper.SetDefault("clock.ntp_servers", d.Clock.Servers)
	viper.SetDefault("clock.ntp_timeout", d.Clock.Timeout)

	viper.SetDefault("tokens.rotation", d.Tokens.Rotation)
	viper.SetDefault("tokens.servent_id", d.Tokens.ServentID)
}

// ConfigFromViper reads the current viper settings into a ConfigDefaults tree.
func ConfigFromViper() ConfigDefaults {
	return ConfigDefaults{
		Decoder: DecoderDefaults{
			MaxSize:       viper.GetInt("decoder.max_size"),
			MaxQueueDelay: viper.GetDuration("decoder.max_queue_delay"),
		},
		TTL: TTLDefaults{
			MaxTTL:    viper.GetInt("ttl.max_ttl"),
			HardLimit: viper.GetInt("ttl.hard_limit"),
			MaxHops:   viper.GetInt("ttl.max_hops"),
		},
		Routing: RoutingDefaults{
			Capacity:       viper.GetInt("routing.capacity"),
			Shards:         viper.GetInt("routing.shards"),
			ClassicHorizon: viper.GetDuration("routing.horizon.classic"),
			GUESSHorizon:   viper.GetDuration("routing.horizon.guess"),
			G2Horizon:      viper.GetDuration("routing.horizon.g2"),
			DHTHorizon:     viper.GetDuration("routing.horizon.dht"),
			LostCapacity:   viper.GetInt("routing.lost_capacity"),
			ReplyLinger:    viper.GetDuration("routing.reply_linger"),
			SweepInterval:  viper.GetDuration("routing.sweep_interval"),
		},
		Flow: FlowDefaults{
			ConnRate:    viper.GetFloat64("flow.conn_rate"),
			ConnBurst:   viper.GetInt("flow.conn_burst"),
			GlobalRate:  viper.GetFloat64("flow.global_rate"),
			GlobalBurst: viper.GetInt("flow.global_burst"),
			QueryRate:   viper.GetFloat64("flow.query_rate"),
			QueryBurst:  viper.GetInt("flow.query_burst"),
			PushRate:    viper.GetFloat64("flow.push_rate"),
			PushBurst:   viper.GetInt("flow.push_burst"),
			StoreRate:   viper.GetFloat64("flow.store_rate"),
			StoreBurst:  viper.GetInt("flow.store_burst"),
			MaxTracked:  viper.GetInt("flow.max_tracked"),
		},
		Query: QueryDefaults{
			MinLength:      viper.GetInt("query.min_length"),
			MaxOverhead:    viper.GetInt("query.max_overhead"),
			AncientHorizon: viper.GetDuration("query.ancient_horizon"),
			FilteredMedia:  viper.GetUint32("query.filtered_media"),
			MaxStoreValues: viper.GetInt("query.max_store_values"),
		},
		Policy: PolicyDefaults{
			Path: viper.GetString("policy.path"),
		},
		Clock: ClockDefaults{
			Servers: viper.GetStringSlice("clock.ntp_servers"),
			Timeout: viper.GetDuration("clock.ntp_timeout"),
		},
		Tokens: TokenDefaults{
			Rotation:  viper.GetDuration("tokens.rotation"),
			ServentID: viper.GetString("tokens.servent_id"),
		},
	}
}

// NewEngineConfigFromViper validates the current viper settings and converts
// them for the engine.
func NewEngineConfigFromViper() (*EngineConfig, error) {
	cfg := ConfigFromViper()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg.EngineConfig(), nil
}

func createDefaultConfig(defaultConfigDir string) {
	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := os.MkdirAll(defaultConfigDir, 0o755); err != nil {
		log.Fatalf("Could not create config directory: %s", err)
	}
	if err := viper.SafeWriteConfigAs(defaultConfigFile); err != nil {
		log.Fatalf("Could not write default config file: %s", err)
	}
	log.Debugf("Created default configuration at: %s", defaultConfigFile)
}

func handleConfigFile() {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if CfgFile != "" {
				log.Fatalf("Config file %s is not found: %s", CfgFile, err)
			} else {
				createDefaultConfig(BuildDirPath())
			}
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// BuildDirPath returns the directory holding the config and policy files.
func BuildDirPath() string {
	return filepath.Join(util.UserHome(), GOGNUTELLA_BASE_DIR)
}
