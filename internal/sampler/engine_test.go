package sampler

import (
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	Clear()
	e, err := New(Config{Interval: time.Microsecond, Mode: ModeWorker})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(Clear)
	return e
}

func TestSingletonEnforced(t *testing.T) {
	newTestEngine(t)
	if _, err := New(Config{}); err != ErrSamplerExists {
		t.Fatalf("expected ErrSamplerExists, got %v", err)
	}
}

func TestIntervalClamp(t *testing.T) {
	e := newTestEngine(t)
	if e.cfg.Interval < minInterval {
		t.Fatalf("expected interval clamped to >= %v, got %v", minInterval, e.cfg.Interval)
	}
}

func TestStateViolations(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Stop(); err != ErrStateViolation {
		t.Fatalf("expected state-violation stopping before start, got %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(); err != ErrStateViolation {
		t.Fatalf("expected state-violation on double start, got %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := e.Start(); err != ErrStateViolation {
		t.Fatalf("expected state-violation starting after stop, got %v", err)
	}
}

func TestPauseResume(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := e.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

type panicHook struct{ NopHook }

func (panicHook) BeforeStart() { panic("boom") }

func TestMiddlewarePanicContained(t *testing.T) {
	e := newTestEngine(t)
	e.AddHook(panicHook{})
	if err := e.Start(); err != nil {
		t.Fatalf("expected Start to survive a panicking hook, got %v", err)
	}
	_ = e.Stop()
}

func TestOnTickAccumulates(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	deadline := time.After(2 * time.Second)
	for e.SamplesTaken() == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a tick")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if e.Table().Total() == 0 {
		t.Fatalf("expected at least one aggregated stack")
	}
}

func TestDumpsAppliesHooks(t *testing.T) {
	e := newTestEngine(t)
	e.table.Add("MainThread", []string{"a:f:1"})
	e.AddHook(appendLineHook{"(GC)"})
	dump := e.Dumps()
	if want := "MainThread;a:f:1 1\n(GC) 1"; dump != want {
		t.Fatalf("dump = %q, want %q", dump, want)
	}
}

type appendLineHook struct{ suffix string }

func (appendLineHook) BeforeStart()  {}
func (appendLineHook) AfterStart()   {}
func (appendLineHook) BeforeStop()   {}
func (appendLineHook) AfterStop()    {}
func (h appendLineHook) ProcessDump(text string) (string, bool) {
	return text + "\n" + h.suffix + " 1", true
}
