// cmd/flamecore-monitor/main.go
// Binary entrypoint for flamecore-monitor: a standalone process that arms a
// sampler.Engine on itself and serves spec.md §6's optional JSON-over-HTTP
// monitor surface (/ping, /stack, /profile start|stop, /shutdown) plus a
// /ws live-tail stream and /metrics, against its own running workload. It is
// the collaborator spec.md §1 describes ("the embedded HTTP monitor ... an
// optional consumer that calls start_profiling/stop_profiling and
// current_stacks on the core"), packaged as its own binary so it can be
// pointed at a synthetic workload for local experimentation without
// instrumenting a separate target process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flamecore/flamecore/internal/logging"
	"github.com/flamecore/flamecore/internal/monitor"
	"github.com/flamecore/flamecore/internal/sampler"
)

// runDemoWorkload gives the monitor's own sampler something nontrivial to
// observe when no other process is being profiled — a tiny recursive
// Fibonacci loop.
func runDemoWorkload() {
	var fib func(n int) int
	fib = func(n int) int {
		if n < 2 {
			return n
		}
		return fib(n-1) + fib(n-2)
	}
	for {
		fib(24)
	}
}

func main() {
	cfg, rcfg := loadMonitorConfig()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	logging.Set(lg)
	defer lg.Sync()

	engine, err := sampler.New(sampler.Config{
		Interval:   time.Millisecond,
		IgnoreSelf: true,
		Mode:       sampler.ModeAuto,
	})
	if err != nil {
		lg.Fatal("sampler.New", zap.Error(err))
	}
	if err := engine.Start(); err != nil {
		lg.Fatal("engine.Start", zap.Error(err))
	}
	defer sampler.Clear()

	go runDemoWorkload()

	srv, err := monitor.New(cfg, engine)
	if err != nil {
		lg.Fatal("monitor.New", zap.Error(err))
	}
	router := monitor.NewRouter(rcfg, srv)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		lg.Info("signal received, shutting down")
		cancel()
	}()

	lg.Info("flamecore-monitor listening", zap.String("addr", cfg.ListenAddr))
	if err := router.Start(ctx); err != nil {
		lg.Fatal("serve", zap.Error(err))
	}

	_ = engine.Stop()
	lg.Info("goodbye")
}
