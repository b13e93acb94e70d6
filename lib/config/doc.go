// Package config provides configuration management for the go-gnutella engine.
//
// Defaults lives in one ConfigDefaults tree; setDefaults registers it with
// viper, and ConfigFromViper reads it back after the config file and flags
// were applied. EngineConfig converts the tree into the types the engine
// packages consume.
//
// The config file lives in $HOME/.go-gnutella/config.yaml and is created with
// the defaults on first run. The policy file referenced by policy.path holds
// the ban and spam lists and can be reloaded at runtime.
package config
