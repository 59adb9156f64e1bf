// cmd/flamecore-monitor/config.go
// Helper for parsing CLI flags and env vars into monitor.Config and
// monitor.RouterConfig so that main.go stays minimal.
//
// Environment variables (prefixed FLAMECORE_MONITOR_):
//
//	LISTEN         – HTTP listen address (default :4040)
//	RETENTION      – retention window (e.g., 15m)
//	AUTH_TOKEN     – static bearer token (optional)
//	REDIS_ADDR     – host:port of a shared Redis retention store (optional)
//	REDIS_PASSWORD – Redis auth password (optional)
//	REDIS_DB       – Redis logical DB index (optional)
//
// Usage pattern from main.go:
//
//	cfg, rcfg := loadMonitorConfig()
package main

import (
	"flag"
	"time"

	"github.com/spf13/viper"

	"github.com/flamecore/flamecore/internal/monitor"
)

// loadMonitorConfig parses flags and env vars once during program start.
func loadMonitorConfig() (monitor.Config, monitor.RouterConfig) {
	cfg := monitor.DefaultConfig()
	rcfg := monitor.RouterConfig{
		ListenAddr:     cfg.ListenAddr,
		HTTP:           monitor.HTTPConfig{EnableMetrics: true},
		BroadcastEvery: time.Second,
	}

	v := viper.New()
	v.SetEnvPrefix("FLAMECORE_MONITOR")
	v.AutomaticEnv()

	listen := flag.String("listen", cfg.ListenAddr, "HTTP listen address (host:port)")
	authToken := flag.String("auth-token", "", "Static bearer token required from clients (optional)")
	retention := flag.Duration("retention", cfg.RetentionDur, "Retention window for replayable snapshots (e.g., 15m)")
	disableMetrics := flag.Bool("no-metrics", false, "Disable Prometheus /metrics endpoint")
	broadcastEvery := flag.Duration("broadcast-every", rcfg.BroadcastEvery, "Period between unsolicited /ws live-tail pushes; 0 disables")
	redisAddr := flag.String("redis-addr", "", "Shared Redis retention store address (enables multi-replica deployments)")
	redisPassword := flag.String("redis-password", "", "Redis auth password")
	redisDB := flag.Int("redis-db", 0, "Redis logical DB index")
	flag.Parse()

	if s := v.GetString("LISTEN"); s != "" {
		cfg.ListenAddr = s
	}
	if d := v.GetDuration("RETENTION"); d > 0 {
		cfg.RetentionDur = d
	}
	if tok := v.GetString("AUTH_TOKEN"); tok != "" {
		cfg.AuthToken = tok
	}
	if s := v.GetString("REDIS_ADDR"); s != "" {
		cfg.RedisAddr = s
	}
	if s := v.GetString("REDIS_PASSWORD"); s != "" {
		cfg.RedisPassword = s
	}
	if n := v.GetInt("REDIS_DB"); n != 0 {
		cfg.RedisDB = n
	}

	set := map[string]bool{}
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if set["listen"] {
		cfg.ListenAddr = *listen
	}
	if set["auth-token"] {
		cfg.AuthToken = *authToken
	}
	if set["retention"] {
		cfg.RetentionDur = *retention
	}
	if cfg.RetentionDur < time.Minute {
		cfg.RetentionDur = time.Minute
	}
	if *redisAddr != "" {
		cfg.RedisAddr = *redisAddr
	}
	if *redisPassword != "" {
		cfg.RedisPassword = *redisPassword
	}
	if *redisDB != 0 {
		cfg.RedisDB = *redisDB
	}

	rcfg.ListenAddr = cfg.ListenAddr
	rcfg.HTTP.EnableMetrics = !*disableMetrics
	rcfg.BroadcastEvery = *broadcastEvery

	return cfg, rcfg
}
