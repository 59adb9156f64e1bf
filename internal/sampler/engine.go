// internal/sampler/engine.go
// Package sampler is the Go rendering of spec.md §4.C's Sampler Engine: it
// arms a periodic tick (either a signal-driven timer or a worker-thread
// ticker), and on every tick walks every live goroutine's frames,
// canonicalises and folds them, exactly mirroring the on_tick procedure.
//
// The Engine is a per-process singleton, installed the same way
// internal/logging installs its global *zap.Logger: an atomic.Pointer CAS in
// New, never replaced afterward except via Clear (the post-re-exec child
// hook).
package sampler

import (
	"context"
	"regexp"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/flamecore/flamecore/internal/logging"
	"github.com/flamecore/flamecore/internal/metrics"
	"github.com/flamecore/flamecore/pkg/folded"
	"github.com/flamecore/flamecore/pkg/frame"
	"go.uber.org/zap"
)

// Mode selects which driver arms the tick.
type Mode string

const (
	// ModeAuto picks Signal when the platform supports it, Worker otherwise.
	ModeAuto   Mode = "auto"
	ModeSignal Mode = "signal"
	ModeWorker Mode = "worker"
)

// TimerSource mirrors spec's cpu/wall timer sources.
type TimerSource string

const (
	TimerCPU  TimerSource = "cpu"
	TimerWall TimerSource = "wall"
)

// minInterval is spec's "minimum enforced ≥ 5" clamp, expressed in
// microseconds.
const minInterval = 5 * time.Microsecond

// schedulerFloor is the floor-clamp described in SPEC_FULL.md §4.C: the
// sampling period is never allowed finer than the Go scheduler's informal
// forced-preemption period (~10ms), logged at debug level when it triggers.
// This is a logged floor, not a runtime mutation — runtime.GOMAXPROCS is
// never touched.
const schedulerFloor = 40 * time.Millisecond / 4

// Config is the immutable-per-instance sampler configuration, mirroring
// spec.md §3 exactly plus the Go-specific Mode/RootName knobs.
type Config struct {
	Interval     time.Duration
	IgnoreFrozen bool
	IgnoreSelf   bool
	TreeMode     bool
	FocusMode    bool
	RegexPatterns []string
	TimerSource  TimerSource
	Mode         Mode

	// RootThreadName labels the goroutine the engine treats as the "main
	// thread" equivalent in signal-driven mode; defaults to "MainThread".
	RootThreadName string

	// SelfPrefix/ThirdPartyPrefixes feed pkg/frame.Config's ignore-self and
	// focus-mode filters.
	SelfPrefix         string
	ThirdPartyPrefixes []string
}

func (c Config) normalized() Config {
	if c.Interval < minInterval {
		c.Interval = minInterval
	}
	if c.Interval < schedulerFloor {
		logging.Logger().Debug("sampler: interval below scheduler floor, clamping",
			zap.Duration("requested", c.Interval), zap.Duration("floor", schedulerFloor))
		c.Interval = schedulerFloor
	}
	if c.RootThreadName == "" {
		c.RootThreadName = "MainThread"
	}
	if c.TimerSource == "" {
		c.TimerSource = TimerCPU
	}
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	if c.SelfPrefix == "" {
		c.SelfPrefix = "flamecore/internal/sampler"
	}
	return c
}

func (c Config) frameConfig(compiled []*regexp.Regexp) frame.Config {
	return frame.Config{
		IgnoreFrozen:       c.IgnoreFrozen,
		IgnoreSelf:         c.IgnoreSelf,
		TreeMode:           c.TreeMode,
		FocusMode:          c.FocusMode,
		RegexPatterns:      compiled,
		TimerSource:        string(c.TimerSource),
		SelfPrefix:         c.SelfPrefix,
		ThirdPartyPrefixes: c.ThirdPartyPrefixes,
	}
}

// Hook is the middleware contract of spec.md §4.C: five callbacks, executed
// in registration order, each shielded by a recover() so a misbehaving hook
// never takes down sampling.
type Hook interface {
	BeforeStart()
	AfterStart()
	BeforeStop()
	AfterStop()
	// ProcessDump may return a replacement for the dump text and true, or
	// ("", false) to leave the text unchanged.
	ProcessDump(text string) (string, bool)
}

// NopHook can be embedded by hooks that only need a subset of the contract.
type NopHook struct{}

func (NopHook) BeforeStart()                             {}
func (NopHook) AfterStart()                              {}
func (NopHook) BeforeStop()                               {}
func (NopHook) AfterStop()                                {}
func (NopHook) ProcessDump(string) (string, bool)         { return "", false }

// Engine is the sampler singleton.
type Engine struct {
	cfg      Config
	compiled []*regexp.Regexp

	mu    sync.Mutex
	state State

	table *folded.Table
	drv   driver

	samplesTaken atomic.Int64
	startedAt    time.Time
	switchAdjusted bool

	hooks []Hook
}

var current atomic.Pointer[Engine]

// New constructs the process-wide Engine singleton. A second call before
// Clear returns ErrSamplerExists, the Go rendering of spec's "exactly one
// sampler instance per process".
func New(cfg Config) (*Engine, error) {
	compiled, err := frame.CompileRegexPatterns(cfg.RegexPatterns)
	if err != nil {
		return nil, &Error{Kind: KindConfigInvalid, Message: "bad regex pattern", Cause: err}
	}
	e := &Engine{
		cfg:      cfg.normalized(),
		compiled: compiled,
		state:    Initialised,
		table:    folded.New(),
	}
	if !current.CompareAndSwap(nil, e) {
		return nil, ErrSamplerExists
	}
	return e, nil
}

// Current returns the process singleton, or nil if none has been
// constructed yet.
func Current() *Engine { return current.Load() }

// Clear resets process-wide singleton state so a re-exec'd child (the fork
// analogue) can install its own Engine, preserving nothing from the parent.
func Clear() { current.Store(nil) }

func (e *Engine) transition(to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !canTransition(e.state, to) {
		return ErrStateViolation
	}
	e.state = to
	return nil
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start arms the sampler. See spec.md §4.C for the lifecycle contract.
func (e *Engine) Start() error {
	if err := e.transition(Started); err != nil {
		return err
	}
	e.runHook(func(h Hook) { h.BeforeStart() })

	drv, err := e.newDriver()
	if err != nil {
		e.mu.Lock()
		e.state = Initialised
		e.mu.Unlock()
		return err
	}
	e.mu.Lock()
	e.drv = drv
	e.startedAt = time.Now()
	e.mu.Unlock()

	if err := drv.arm(e.cfg.Interval, e.onTick); err != nil {
		e.mu.Lock()
		e.state = Initialised
		e.drv = nil
		e.mu.Unlock()
		return err
	}
	e.runHook(func(h Hook) { h.AfterStart() })
	return nil
}

func (e *Engine) newDriver() (driver, error) {
	mode := e.cfg.Mode
	if mode == ModeAuto {
		if signalDriverSupported() {
			mode = ModeSignal
		} else {
			mode = ModeWorker
		}
	}
	if mode == ModeSignal {
		sd, err := newSignalDriver(e.cfg.TimerSource)
		if err != nil {
			return nil, err
		}
		return sd, nil
	}
	return newWorkerDriver(), nil
}

// Pause disarms the timer without flushing, per spec.md §4.C.
func (e *Engine) Pause() error {
	if err := e.transition(Paused); err != nil {
		return err
	}
	e.mu.Lock()
	drv := e.drv
	e.mu.Unlock()
	if drv != nil {
		drv.disarm()
	}
	return nil
}

// Resume re-arms the timer after a Pause.
func (e *Engine) Resume() error {
	if err := e.transition(Started); err != nil {
		return err
	}
	drv, err := e.newDriver()
	if err != nil {
		e.mu.Lock()
		e.state = Paused
		e.mu.Unlock()
		return err
	}
	e.mu.Lock()
	e.drv = drv
	e.mu.Unlock()
	return drv.arm(e.cfg.Interval, e.onTick)
}

// Stop disarms the sampler terminally, running before/after-stop hooks.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cur := e.state
	e.mu.Unlock()
	if cur != Started && cur != Paused {
		return ErrStateViolation
	}

	e.runHook(func(h Hook) { h.BeforeStop() })

	if err := e.transition(Finished); err != nil {
		return err
	}
	e.mu.Lock()
	drv := e.drv
	e.drv = nil
	e.mu.Unlock()
	if drv != nil {
		drv.disarm()
	}

	e.runHook(func(h Hook) { h.AfterStop() })
	return nil
}

// AddHook registers a middleware hook. Safe to call before or after Start.
func (e *Engine) AddHook(h Hook) {
	e.mu.Lock()
	e.hooks = append(e.hooks, h)
	e.mu.Unlock()
}

func (e *Engine) runHook(call func(Hook)) {
	e.mu.Lock()
	hooks := append([]Hook(nil), e.hooks...)
	e.mu.Unlock()
	for _, h := range hooks {
		func(h Hook) {
			defer func() {
				if r := recover(); r != nil {
					logging.Logger().Warn("sampler: middleware hook panicked", zap.Any("recover", r))
				}
			}()
			call(h)
		}(h)
	}
}

// Dumps serialises the current table to folded text, passing it through
// every registered hook's ProcessDump in order, valid in any
// post-Initialised state.
func (e *Engine) Dumps() string {
	text := e.table.Dump()
	e.mu.Lock()
	hooks := append([]Hook(nil), e.hooks...)
	e.mu.Unlock()
	for _, h := range hooks {
		func(h Hook) {
			defer func() {
				if r := recover(); r != nil {
					logging.Logger().Warn("sampler: process_dump hook panicked", zap.Any("recover", r))
				}
			}()
			if replaced, ok := h.ProcessDump(text); ok {
				text = replaced
			}
		}(h)
	}
	return text
}

// Table exposes the underlying aggregation table, e.g. for the topology
// orchestrator's save strategy.
func (e *Engine) Table() *folded.Table { return e.table }

// SamplesTaken reports the number of completed ticks.
func (e *Engine) SamplesTaken() int64 { return e.samplesTaken.Load() }

// ClearTable resets the aggregation table and tick counter while preserving
// Config, used exclusively by the post-fork child hook (spec.md §4.C
// clear()).
func (e *Engine) ClearTable() {
	e.table.Clear()
	e.samplesTaken.Store(0)
}

var stackBufPool = sync.Pool{New: func() any { return make([]runtime.StackRecord, 256) }}

// onTick implements the shared 6-step procedure of spec.md §4.C: snapshot
// via runtime.GoroutineProfile (the closest Go primitive to "hold the
// runtime's global execution lock while walking frames"), per-goroutine
// runtime.CallersFrames walk, canonicalise+fold, increment the tick counter.
func (e *Engine) onTick() {
	defer func() {
		if r := recover(); r != nil {
			// Per-tick errors are logged and swallowed; sampling continues
			// (spec.md §4.C failure semantics).
			logging.Logger().Warn("sampler: tick panicked, skipping", zap.Any("recover", r))
		}
	}()

	metrics.TicksTotal.Inc()

	buf := stackBufPool.Get().([]runtime.StackRecord)
	defer stackBufPool.Put(buf)

	var n int
	var ok bool
	for {
		n, ok = runtime.GoroutineProfile(buf)
		if ok {
			break
		}
		buf = make([]runtime.StackRecord, len(buf)*2)
	}
	records := buf[:n]

	fc := e.cfg.frameConfig(e.compiled)

	for i, rec := range records {
		pcs := rec.Stack()
		if len(pcs) == 0 {
			continue
		}
		frames := runtime.CallersFrames(pcs)
		var walked []runtime.Frame
		for {
			rf, more := frames.Next()
			walked = append(walked, rf)
			if !more {
				break
			}
		}
		// walked is leaf-first (runtime.CallersFrames walks callee→caller).
		// Tree-mode's "call-site line in caller" for walked[i] is the
		// execution line recorded in walked[i+1] (its caller) — the line at
		// which the caller was paused making the call. The outermost frame
		// has no caller, so it falls back to its own line.
		var canon []string
		for i, rf := range walked {
			callsite := rf.Line
			if i+1 < len(walked) {
				callsite = walked[i+1].Line
			}
			fr := frame.FromRuntime(rf)
			if s, keep := frame.Canonicalize(fr, callsite, fc); keep {
				canon = append(canon, s)
			} else {
				metrics.DroppedFramesTotal.Inc()
			}
		}
		if len(canon) == 0 {
			continue
		}
		// The stored convention is leaf-last, so reverse.
		reverseStrings(canon)

		thread := e.cfg.RootThreadName
		if i > 0 {
			thread = "Worker-" + strconv.Itoa(i)
		}
		e.table.Add(thread, canon)
		metrics.SamplesTotal.Inc()
	}

	e.samplesTaken.Inc()
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// WaitForFirstTick blocks until at least one tick has completed or ctx is
// done; used by tests and by --attach self-profiling demos that want a
// non-empty table before exiting quickly.
func (e *Engine) WaitForFirstTick(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if e.samplesTaken.Load() > 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
