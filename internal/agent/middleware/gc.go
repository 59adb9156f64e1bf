// internal/agent/middleware/gc.go
// GCHook watches runtime.MemStats for new garbage-collection cycles and
// appends a "(GC)" pseudo-stack line into the sampler's dump text, the same
// idea as a standalone GC sampler, reimplemented as a sampler.Hook so GC
// activity folds into the same aggregation the core sampler produces
// instead of a separate flamegraph.Builder.
package middleware

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/flamecore/flamecore/internal/metrics"
	"github.com/flamecore/flamecore/internal/sampler"
)

// GCHook polls runtime.MemStats.NumGC at a fixed frequency (Hz; values below
// 1 become 10, values above 1000 become 1000) while the sampler is started, and
// records one synthetic "(GC)" entry per observed cycle.
type GCHook struct {
	sampler.NopHook

	hz             int
	lastGCCount    uint32
	lastPauseTotal uint64

	quit chan struct{}
	done chan struct{}

	pending int64 // accessed atomically; count of unreported GC cycles
}

// NewGCHook constructs a hook with frequency hz polls per second.
func NewGCHook(hz int) *GCHook {
	if hz < 1 {
		hz = 10
	}
	if hz > 1000 {
		hz = 1000
	}
	return &GCHook{hz: hz}
}

func (h *GCHook) BeforeStart() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	atomic.StoreUint32(&h.lastGCCount, stats.NumGC)
	h.lastPauseTotal = stats.PauseTotalNs

	h.quit = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop()
}

func (h *GCHook) loop() {
	defer close(h.done)
	interval := time.Second / time.Duration(h.hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var stats runtime.MemStats
	for {
		select {
		case <-ticker.C:
			runtime.ReadMemStats(&stats)
			if stats.PauseTotalNs > h.lastPauseTotal {
				metrics.GcPauseTotalNs.Add(float64(stats.PauseTotalNs - h.lastPauseTotal))
				h.lastPauseTotal = stats.PauseTotalNs
			}
			prev := atomic.LoadUint32(&h.lastGCCount)
			cur := stats.NumGC
			if cur == prev {
				continue
			}
			for i := prev; i != cur; i++ {
				atomic.AddInt64(&h.pending, 1)
			}
			atomic.StoreUint32(&h.lastGCCount, cur)
		case <-h.quit:
			return
		}
	}
}

func (h *GCHook) AfterStop() {
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

// ProcessDump appends one "(GC) <n>" line recording how many GC
// cycles were observed since the dump was last produced.
func (h *GCHook) ProcessDump(text string) (string, bool) {
	n := atomic.SwapInt64(&h.pending, 0)
	if n == 0 {
		return "", false
	}
	line := fmt.Sprintf("(GC) %d", n)
	if text == "" {
		return line, true
	}
	return text + "\n" + line, true
}
