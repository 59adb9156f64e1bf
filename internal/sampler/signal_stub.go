//go:build windows || js || wasm

// internal/sampler/signal_stub.go
// Platforms without a per-process interval timer delivering signals to a
// specific thread (windows, js/wasm) fall back to worker-thread mode
// automatically, matching spec.md §4.C's "required on platforms that do not
// support per-process interval timers".
package sampler

import "time"

type signalDriver struct{}

func newSignalDriver(source TimerSource) (*signalDriver, error) {
	return nil, &Error{Kind: KindConfigInvalid, Message: "signal-driven mode is unsupported on this platform"}
}

func (d *signalDriver) arm(interval time.Duration, tick func()) error { return nil }
func (d *signalDriver) disarm()                                       {}

func signalDriverSupported() bool { return false }
