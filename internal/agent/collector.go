// internal/agent/collector.go
// Package agent wires together the core components SPEC_FULL.md's module
// map lists as leaves — internal/sampler's Engine, internal/topology's
// Orchestrator, and the internal/agent/middleware Hooks — into the single
// object a CLI command or embedding program drives. The lifecycle shape
// (AddExporter/Start/Stop, a ticking export loop snapshotting into
// independent exporters) stays the same shape across both payload kinds;
// what changed here is the payload itself (folded text instead of a
// *flamegraph.Frame tree) and the addition of the topology orchestrator
// wiring on construction.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/flamecore/flamecore/internal/sampler"
	"github.com/flamecore/flamecore/internal/topology"
)

// Exporter delivers a folded-text snapshot to an external sink (file,
// monitor, stdout). Implementations must be safe for concurrent use.
type Exporter interface {
	Export(ctx context.Context, folded string) error
	Close() error
}

// Config tunes the Collector.
type Config struct {
	Sampler     sampler.Config
	ExportEvery time.Duration
}

// Collector owns the sampler engine, the topology orchestrator, and a set of
// exporters fed by a periodic export loop.
type Collector struct {
	engine *sampler.Engine
	orch   *topology.Orchestrator

	cfg Config

	mu        sync.Mutex
	exporters []Exporter

	exportT *time.Ticker
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewCollector constructs a Collector around a freshly created sampler
// Engine singleton. Returns sampler.ErrSamplerExists if one already exists
// in this process (e.g. a stale singleton from a prior test).
func NewCollector(cfg Config) (*Collector, error) {
	engine, err := sampler.New(cfg.Sampler)
	if err != nil {
		return nil, err
	}
	return &Collector{
		engine: engine,
		orch:   topology.New(),
		cfg:    cfg,
		quit:   make(chan struct{}),
	}, nil
}

// Engine exposes the underlying sampler engine, e.g. so callers can register
// middleware hooks before Start.
func (c *Collector) Engine() *sampler.Engine { return c.engine }

// Orchestrator exposes the process-topology orchestrator.
func (c *Collector) Orchestrator() *topology.Orchestrator { return c.orch }

// AddExporter registers an exporter; safe to call before or after Start.
func (c *Collector) AddExporter(e Exporter) {
	c.mu.Lock()
	c.exporters = append(c.exporters, e)
	c.mu.Unlock()
}

// Start arms the sampler engine and, if configured, the periodic export
// loop.
func (c *Collector) Start() error {
	if err := c.engine.Start(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.cfg.ExportEvery > 0 {
		c.exportT = time.NewTicker(c.cfg.ExportEvery)
		c.wg.Add(1)
		go c.runExportLoop()
	}
	c.mu.Unlock()
	return nil
}

func (c *Collector) runExportLoop() {
	defer c.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-c.exportT.C:
			_ = c.TriggerExport(ctx)
		case <-c.quit:
			return
		}
	}
}

// TriggerExport dumps the engine's current table (through middleware) and
// fans it out to every exporter sequentially, stopping at the first error.
func (c *Collector) TriggerExport(ctx context.Context) error {
	text := c.engine.Dumps()

	c.mu.Lock()
	exporters := append([]Exporter(nil), c.exporters...)
	c.mu.Unlock()

	for _, e := range exporters {
		if err := e.Export(ctx, text); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the export loop and the sampler engine, then closes every
// exporter. It does not perform the topology save/merge step — callers that
// need the full stop+save+merge sequence should use topology.Exit or call
// Orchestrator().Save directly with the engine's final table.
func (c *Collector) Stop() error {
	c.mu.Lock()
	if c.quit == nil {
		c.mu.Unlock()
		return nil
	}
	close(c.quit)
	c.quit = nil
	t := c.exportT
	c.exportT = nil
	exporters := append([]Exporter(nil), c.exporters...)
	c.mu.Unlock()

	if t != nil {
		t.Stop()
	}
	c.wg.Wait()

	err := c.engine.Stop()

	for _, e := range exporters {
		_ = e.Close()
	}
	return err
}
