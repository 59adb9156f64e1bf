//go:build !windows && !js && !wasm

// internal/sampler/signal_unix.go
// signalDriver realises spec's "signal-driven, main-thread mode": an
// interval timer delivering SIGPROF (cpu) or SIGALRM (wall), matching the
// two timer sources spec.md §4.C names, via golang.org/x/sys/unix for the
// low-level Setitimer plumbing the standard library doesn't expose.
package sampler

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// signalHandlerRegistry is a process-wide record of which signals flamecore
// itself has installed a Notify for, used to detect the handler-conflict
// failure spec.md §4.C/§7 names. signal.Notify does not expose "is there
// already a non-default handler", so this is a best-effort, in-process
// record rather than a kernel-level check — documented in DESIGN.md.
var signalHandlerRegistry = struct {
	mu   sync.Mutex
	held map[syscall.Signal]bool
}{held: make(map[syscall.Signal]bool)}

type signalDriver struct {
	source TimerSource
	sig    syscall.Signal
	stopCh chan struct{}
	doneCh chan struct{}
}

func newSignalDriver(source TimerSource) (*signalDriver, error) {
	sig := syscall.SIGPROF
	if source == TimerWall {
		sig = syscall.SIGALRM
	}

	signalHandlerRegistry.mu.Lock()
	if signalHandlerRegistry.held[sig] {
		signalHandlerRegistry.mu.Unlock()
		return nil, ErrHandlerConflict
	}
	signalHandlerRegistry.held[sig] = true
	signalHandlerRegistry.mu.Unlock()

	return &signalDriver{source: source, sig: sig}, nil
}

func (d *signalDriver) arm(interval time.Duration, tick func()) error {
	itimer := unix.ITIMER_PROF
	if d.source == TimerWall {
		itimer = unix.ITIMER_REAL
	}

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, d.sig)

	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go func() {
		defer close(d.doneCh)
		for {
			select {
			case <-sigCh:
				tick()
			case <-d.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	us := interval.Microseconds()
	if us <= 0 {
		us = 1
	}
	val := unix.Itimerval{
		Interval: unix.Timeval{Sec: us / 1e6, Usec: us % 1e6},
		Value:    unix.Timeval{Sec: us / 1e6, Usec: us % 1e6},
	}
	if err := unix.Setitimer(itimer, &val, nil); err != nil {
		close(d.stopCh)
		<-d.doneCh
		return err
	}
	return nil
}

func (d *signalDriver) disarm() {
	itimer := unix.ITIMER_PROF
	if d.source == TimerWall {
		itimer = unix.ITIMER_REAL
	}
	_ = unix.Setitimer(itimer, &unix.Itimerval{}, nil)

	if d.stopCh != nil {
		select {
		case <-d.doneCh:
		default:
			close(d.stopCh)
			<-d.doneCh
		}
	}

	signalHandlerRegistry.mu.Lock()
	delete(signalHandlerRegistry.held, d.sig)
	signalHandlerRegistry.mu.Unlock()
}

func signalDriverSupported() bool { return true }
