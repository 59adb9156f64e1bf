// internal/agent/middleware/blocked.go
// BlockedHook estimates goroutine contention pressure and folds it into a
// "(Blocked)" pseudo-stack. The heuristic (total goroutines minus those
// captured by GoroutineProfile) is a deliberate simplification; a precise
// blocked/runnable classification would require parsing each goroutine's
// wait reason, which runtime.GoroutineProfile does not expose.
package middleware

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/flamecore/flamecore/internal/metrics"
	"github.com/flamecore/flamecore/internal/sampler"
)

// BlockedHook polls at hz (clamped [5,500]).
type BlockedHook struct {
	sampler.NopHook

	hz int

	quit chan struct{}
	done chan struct{}

	pending int64 // accessed atomically
}

func NewBlockedHook(hz int) *BlockedHook {
	if hz < 5 {
		hz = 5
	}
	if hz > 500 {
		hz = 500
	}
	return &BlockedHook{hz: hz}
}

func (h *BlockedHook) BeforeStart() {
	h.quit = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop()
}

func (h *BlockedHook) loop() {
	defer close(h.done)
	interval := time.Second / time.Duration(h.hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := make([]runtime.StackRecord, 256)
	for {
		select {
		case <-ticker.C:
			for {
				n, ok := runtime.GoroutineProfile(buf)
				if ok {
					buf = buf[:n]
					break
				}
				buf = make([]runtime.StackRecord, len(buf)*2)
			}
			total := int64(runtime.NumGoroutine())
			running := int64(len(buf))
			blocked := total - running
			if blocked < 0 {
				blocked = 0
			}
			metrics.BlockedGoroutines.Set(float64(blocked))
			if blocked > 0 {
				atomic.AddInt64(&h.pending, blocked)
			}
		case <-h.quit:
			return
		}
	}
}

func (h *BlockedHook) AfterStop() {
	if h.quit == nil {
		return
	}
	select {
	case <-h.done:
	default:
		close(h.quit)
		<-h.done
	}
}

// ProcessDump appends a "(Blocked)" line summing observed contention since
// the last dump.
func (h *BlockedHook) ProcessDump(text string) (string, bool) {
	n := atomic.SwapInt64(&h.pending, 0)
	if n == 0 {
		return "", false
	}
	line := fmt.Sprintf("(Blocked) %d", n)
	if text == "" {
		return line, true
	}
	return text + "\n" + line, true
}
