// internal/monitor/config.go
// Centralised loader for monitor configuration. It complements the Config
// struct declared in server.go by populating it from (highest precedence
// first):
//  1. Environment variables under the caller-supplied prefix, for keys that
//     the config file also sets
//  2. Optional YAML/TOML/JSON config file path
//  3. Explicit options struct passed by the caller
//
// TLS-pair loading is intentionally absent: the monitor is documented as a
// local/trusted-network surface (see DESIGN.md) rather than a cross-host
// fan-out hub.
package monitor

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultConfig returns defaults suitable for local dev.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":4040",
		AuthToken:    "",
		RetentionDur: 15 * time.Minute,
	}
}

// LoadConfig merges file + env into cfg pointer (caller typically passes
// DefaultConfig()). filePath may be empty.
func LoadConfig(cfg *Config, filePath, envPrefix string) {
	if cfg == nil {
		tmp := DefaultConfig()
		cfg = &tmp
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if filePath != "" {
		v.SetConfigFile(filePath)
		_ = v.ReadInConfig() // treat missing file as non-fatal
	}

	_ = v.Unmarshal(cfg)
}
