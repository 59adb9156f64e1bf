// internal/agent/middleware/heap.go
// HeapHook tracks runtime.MemStats.Alloc deltas and folds them into a
// "(Heap)" pseudo-stack.
package middleware

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/flamecore/flamecore/internal/metrics"
	"github.com/flamecore/flamecore/internal/sampler"
)

// HeapHook polls heap allocation at hz (clamped [1,4] — higher rates
// rarely add value for heap trends).
type HeapHook struct {
	sampler.NopHook

	hz   int
	prev uint64

	quit chan struct{}
	done chan struct{}

	pendingDelta int64 // accessed atomically
}

func NewHeapHook(hz int) *HeapHook {
	if hz < 1 {
		hz = 1
	}
	if hz > 4 {
		hz = 4
	}
	return &HeapHook{hz: hz}
}

func (h *HeapHook) BeforeStart() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	h.prev = ms.Alloc

	h.quit = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop()
}

func (h *HeapHook) loop() {
	defer close(h.done)
	interval := time.Second / time.Duration(h.hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var ms runtime.MemStats
	for {
		select {
		case <-ticker.C:
			runtime.ReadMemStats(&ms)
			metrics.HeapBytes.Set(float64(ms.Alloc))
			cur := ms.Alloc
			var delta int64
			if cur >= h.prev {
				delta = int64(cur - h.prev)
			} else {
				delta = -int64(h.prev - cur)
			}
			h.prev = cur
			if delta != 0 {
				atomic.AddInt64(&h.pendingDelta, delta)
			}
		case <-h.quit:
			return
		}
	}
}

func (h *HeapHook) AfterStop() {
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

// ProcessDump appends a "(Heap)" line whose count is the absolute value of
// the net byte delta observed since the previous dump; the sign of the delta
// is not recorded. A zero net delta produces no line.
func (h *HeapHook) ProcessDump(text string) (string, bool) {
	delta := atomic.SwapInt64(&h.pendingDelta, 0)
	if delta == 0 {
		return "", false
	}
	count := delta
	if count < 0 {
		count = -count
	}
	line := fmt.Sprintf("(Heap) %d", count)
	if text == "" {
		return line, true
	}
	return text + "\n" + line, true
}
