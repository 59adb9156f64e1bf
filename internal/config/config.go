// internal/config/config.go
// Package config is flamecore's viper-backed configuration loader: env vars
// under a fixed prefix, an optional file, and an Args slice that spec.md
// §6's "Configuration file" collaborator describes — a key `args` mapping
// to a list of strings prepended to the effective argv, with later CLI
// tokens overriding earlier ones.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds every flamecore knob that can be set outside the CLI flags
// themselves: environment variables (FLAMECORE_*) and an optional
// YAML/TOML/JSON file.
type Config struct {
	// Args is prepended to os.Args[1:] before cobra parses flags, letting a
	// config file supply default flags that the actual CLI invocation can
	// still override.
	Args []string `mapstructure:"args"`

	Interval     time.Duration `mapstructure:"interval"`
	IgnoreFrozen bool          `mapstructure:"ignore_frozen"`
	FocusMode    bool          `mapstructure:"focus_mode"`
	TreeMode     bool          `mapstructure:"tree_mode"`
	Merge        bool          `mapstructure:"merge"`
	Timeout      time.Duration `mapstructure:"timeout"`

	MonitorListenAddr string `mapstructure:"monitor_listen_addr"`
	MonitorAuthToken  string `mapstructure:"monitor_auth_token"`
}

// DefaultConfig returns the baseline used when no file/env override exists.
func DefaultConfig() Config {
	return Config{
		Interval: time.Millisecond,
		Merge:    true,
		Timeout:  10 * time.Second,
	}
}

// Load reads FLAMECORE_* environment variables and, if filePath is
// non-empty, an optional config file, merging over DefaultConfig(). A
// missing or malformed file is treated as absent rather than fatal — the
// CLI surface remains the collaborator responsible for surfacing a hard
// argument error.
func Load(filePath string) Config {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("FLAMECORE")
	v.AutomaticEnv()
	for _, key := range []string{"args", "interval", "ignore_frozen", "focus_mode", "tree_mode",
		"merge", "timeout", "monitor_listen_addr", "monitor_auth_token"} {
		_ = v.BindEnv(key)
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		_ = v.ReadInConfig()
	}
	_ = v.Unmarshal(&cfg)
	return cfg
}

// DefaultFilePath returns the well-known path spec.md §6 describes: a file
// in the user's home directory config dir.
func DefaultFilePath(home string) string {
	if home == "" {
		return ""
	}
	return home + "/.config/flamecore/config.yaml"
}
