// internal/topology/orchestrator.go
// Orchestrator wires the re-exec/spawn/forkserver mechanisms of
// spec.md §4.D onto os/exec, using explicit, wrapped constructors rather
// than monkey-patching any global process-creation function — the same
// never-monkey-patch preference internal/agent/collector.go applies to
// sampler lifecycle, applied here to command construction instead.
package topology

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gopsutil "github.com/shirou/gopsutil/v4/process"

	"github.com/flamecore/flamecore/internal/logging"
	"github.com/flamecore/flamecore/internal/metrics"
	"github.com/flamecore/flamecore/internal/util"
	"github.com/flamecore/flamecore/pkg/folded"
	"go.uber.org/zap"
)

// Orchestrator propagates and later reconciles sampling across the process
// tree rooted at the current process.
type Orchestrator struct {
	Role Role
	// WorkDir is where per-process folded files are written and read;
	// defaults to the process's working directory.
	WorkDir string
	// InstanceID is a ULID identifying this process instance in logs,
	// grounded on internal/util/id.go.
	InstanceID string

	pidsMu       sync.Mutex
	expectedPIDs []int32
}

// TrackChildPID records the OS pid of a child this orchestrator expects a
// folded file from, once the caller has actually started it (WrapReexec/
// WrapCommand/WrapForkServer only rewrite the *exec.Cmd; they run before
// exec.Cmd.Start assigns a pid). WaitAndMerge uses this to detect a child
// that exits without ever writing its file, instead of idling out the full
// merge timeout for it.
func (o *Orchestrator) TrackChildPID(pid int) {
	o.pidsMu.Lock()
	o.expectedPIDs = append(o.expectedPIDs, int32(pid))
	o.pidsMu.Unlock()
}

func (o *Orchestrator) trackedPIDs() []int32 {
	o.pidsMu.Lock()
	defer o.pidsMu.Unlock()
	return append([]int32(nil), o.expectedPIDs...)
}

// New returns an Orchestrator for the current process, deriving Role from
// the environment markers left by a parent (if any).
func New() *Orchestrator {
	wd, _ := os.Getwd()
	id, err := util.New()
	if err != nil {
		id = strconv.Itoa(os.Getpid())
	}
	return &Orchestrator{Role: RoleFromEnv(), WorkDir: wd, InstanceID: id}
}

// configEnv serialises cfg (anything JSON-marshalable, typically
// sampler.Config) to the base64-JSON form carried in FLAMECORE_CONFIG.
func configEnv(cfg any) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeConfig reverses configEnv, populating dst (a pointer).
func DecodeConfig(dst any) error {
	raw := os.Getenv(EnvConfig)
	if raw == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("topology: decode config: %w", err)
	}
	return json.Unmarshal(data, dst)
}

// WrapReexec builds an *exec.Cmd that relaunches the current binary with
// FLAMECORE_ROLE=child and the parent's sampler.Config, the re-exec
// analogue of fork's after-fork-in-child handling. Calling this also
// performs fork's after-fork-in-parent step: ChildCount.Add(1).
func (o *Orchestrator) WrapReexec(cfg any, extra ...string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("topology: resolve executable: %w", err)
	}
	encCfg, err := configEnv(cfg)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(exe, extra...)
	cmd.Env = append(os.Environ(), EnvRole+"="+string(RoleReexec), EnvConfig+"="+encCfg)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	o.Role.ChildCount.Add(1)
	return cmd, nil
}

// unrecognisedCommand reports whether cmd looks like a shape the
// orchestrator should not rewrite: Go's own test binary harness, or an
// already-rewritten flamecore re-exec. Spec.md §4.D calls this the
// "unrecognised command shape" no-op, logged in debug mode.
func unrecognisedCommand(cmd *exec.Cmd) bool {
	base := filepath.Base(cmd.Path)
	return strings.HasSuffix(base, ".test") || base == "flamecore"
}

// baseEnv returns cmd.Env, or a copy of the current process's environment
// when cmd.Env is nil — os/exec.Cmd treats a nil Env as "inherit the parent
// environment", so without this the rewritten child would launch with only
// the appended FLAMECORE_* vars and lose PATH/HOME/etc entirely.
func baseEnv(cmd *exec.Cmd) []string {
	if cmd.Env != nil {
		return append([]string{}, cmd.Env...)
	}
	return append([]string{}, os.Environ()...)
}

// WrapCommand is the spawn analogue: it rewrites cmd's Env to inject the
// --mp-equivalent role marker and configuration, skipping commands that
// don't look like ordinary subprocesses (logged at debug level).
func (o *Orchestrator) WrapCommand(cmd *exec.Cmd, cfg any) error {
	if unrecognisedCommand(cmd) {
		logging.Logger().Debug("topology: skipping argv rewrite for unrecognised command", zap.String("path", cmd.Path))
		return nil
	}
	encCfg, err := configEnv(cfg)
	if err != nil {
		logging.Logger().Debug("topology: argv rewrite failed, running child unprofiled", zap.Error(err))
		return nil
	}
	cmd.Env = append(baseEnv(cmd), EnvRole+"="+string(RoleSpawned), EnvConfig+"="+encCfg)
	o.Role.ChildCount.Add(1)
	return nil
}

// WrapForkServer marks cmd as a forkserver: its children will sample, but
// merging back into this root is disabled — spec.md §4.D's documented
// limitation.
func (o *Orchestrator) WrapForkServer(cmd *exec.Cmd, cfg any) error {
	encCfg, err := configEnv(cfg)
	if err != nil {
		return err
	}
	cmd.Env = append(baseEnv(cmd),
		EnvRole+"="+string(RoleForkServer), EnvConfig+"="+encCfg, EnvNoMerge+"=1")
	return nil
}

// Exit performs stop+save before calling os.Exit, standing in for spec's
// wrapped exit/_exit handlers. Programs instrumented by flamecore must call
// topology.Exit instead of os.Exit directly — an un-wrapped os.Exit
// elsewhere in the process bypasses this, the same structural limitation
// spec.md §9 notes for sys.exit/_exit wrapping.
func Exit(code int, save func()) {
	if save != nil {
		save()
	}
	os.Exit(code)
}

// foldedFileName returns the "<pid>-<ppid>.folded" name spec.md §4.D
// specifies for a non-root process's saved table.
func (o *Orchestrator) foldedFileName() string {
	return fmt.Sprintf("%d-%d.folded", o.Role.PID, o.Role.PPID)
}

// processPrefix returns the "Process(pid=X, ppid=Y);" tag prepended to every
// stack key of a non-root process, or "Process(root, pid=X);" for the root.
func (o *Orchestrator) processPrefix() string {
	if o.Role.IsRoot {
		return fmt.Sprintf("Process(root, pid=%d);", o.Role.PID)
	}
	return fmt.Sprintf("Process(pid=%d, ppid=%d);", o.Role.PID, o.Role.PPID)
}

// TagTable rewrites every key in t to carry this process's Process(...)
// prefix, returning a new table (the input is left untouched).
func (o *Orchestrator) TagTable(t *folded.Table) *folded.Table {
	tagged := folded.New()
	prefix := o.processPrefix()
	for _, e := range t.Entries() {
		tagged.AddN(prefix+e.Key, e.Count)
	}
	return tagged
}

// SaveStrategy implements the exact role × merge-mode table of spec.md §4.D.
// merge selects merge=true/false; hasChildren/isIntermediate are supplied by
// the caller (the CLI layer knows the topology shape it constructed).
type SaveStrategy struct {
	Merge         bool
	HasChildren   bool
	IsIntermediate bool
	Timeout       time.Duration
}

// Save writes this process's contribution to disk/returns the table to
// render, following spec.md §4.D's table. When merge=true and this process
// has children, it blocks (via WaitAndMerge) until they report or time out.
func (o *Orchestrator) Save(ctx context.Context, t *folded.Table, strat SaveStrategy) (*folded.Table, bool, error) {
	switch {
	case o.Role.IsRoot && !strat.HasChildren:
		return t, false, nil

	case o.Role.IsRoot && strat.HasChildren && strat.Merge:
		merged, timedOut, err := o.WaitAndMerge(ctx, strat.Timeout)
		if err != nil {
			return t, timedOut, err
		}
		for _, e := range o.TagTable(t).Entries() {
			merged.AddN(e.Key, e.Count)
		}
		return merged, timedOut, nil

	case o.Role.IsRoot && strat.HasChildren && !strat.Merge:
		return t, false, nil

	case !o.Role.IsRoot && strat.IsIntermediate && strat.Merge:
		childTable, err := o.collectChildren(strat.Timeout)
		if err != nil {
			return nil, false, err
		}
		tagged := o.TagTable(t)
		for _, e := range childTable.Entries() {
			tagged.AddN(e.Key, e.Count)
		}
		if err := o.writeFoldedFile(tagged); err != nil {
			return nil, false, err
		}
		return tagged, false, nil

	case !o.Role.IsRoot && strat.Merge:
		tagged := o.TagTable(t)
		if err := o.writeFoldedFile(tagged); err != nil {
			return nil, false, err
		}
		return tagged, false, nil

	default: // non-root, merge disabled: nothing is written here; the tagged table is returned for the caller to render
		tagged := o.TagTable(t)
		return tagged, false, nil
	}
}

func (o *Orchestrator) writeFoldedFile(t *folded.Table) error {
	path := filepath.Join(o.WorkDir, o.foldedFileName())
	return os.WriteFile(path, []byte(t.Dump()), 0o644)
}

// collectChildren reads and unlinks every "<pid>-<mypid>.folded" file
// belonging to this process's direct children before it writes its own.
func (o *Orchestrator) collectChildren(timeout time.Duration) (*folded.Table, error) {
	merged, _, err := o.waitAndMergeInto(timeout, o.Role.PID)
	return merged, err
}

// WaitAndMerge polls the working directory for the expected
// "<child_pid>-<my_pid>.folded" files, consulting gopsutil for liveness so a
// dead child that never flushed doesn't waste the full timeout. It never
// returns an error for a timeout — spec.md §4.D/§7 treat that as "reported,
// not fatal".
func (o *Orchestrator) WaitAndMerge(ctx context.Context, timeout time.Duration) (*folded.Table, bool, error) {
	return o.waitAndMergeInto(timeout, o.Role.PID)
}

func (o *Orchestrator) waitAndMergeInto(timeout time.Duration, parentPID int) (*folded.Table, bool, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	merged := folded.New()
	expected := int(o.Role.ChildCount.Load())
	if expected == 0 {
		return merged, false, nil
	}

	tracked := o.trackedPIDs()

	suffix := fmt.Sprintf("-%d.folded", parentPID)
	deadline := time.Now().Add(timeout)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond

	seen := make(map[string]bool)
	seenPIDs := make(map[int32]bool)
	givenUp := make(map[int32]bool)
	for len(seen) < expected && time.Now().Before(deadline) {
		entries, _ := os.ReadDir(o.WorkDir)
		for _, ent := range entries {
			name := ent.Name()
			if seen[name] || !strings.HasSuffix(name, suffix) {
				continue
			}
			pidStr := strings.TrimSuffix(name, suffix)
			path := filepath.Join(o.WorkDir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			childTable, _, err := folded.ParseTable(bytes.NewReader(data))
			if err == nil {
				for _, e := range childTable.Entries() {
					merged.AddN(e.Key, e.Count)
				}
			}
			_ = os.Remove(path)
			seen[name] = true

			if pid, convErr := strconv.Atoi(pidStr); convErr == nil {
				seenPIDs[int32(pid)] = true
			}
		}
		if len(seen) >= expected {
			break
		}

		// Give up early on a tracked child that has already exited without
		// ever writing its folded file — it never will, so there is no
		// point idling out the rest of the timeout waiting for it.
		for _, pid := range tracked {
			if seenPIDs[pid] || givenUp[pid] {
				continue
			}
			if !childAlive(pid) {
				givenUp[pid] = true
				logging.Logger().Debug("topology: child exited without reporting, giving up on it",
					zap.Int32("pid", pid))
			}
		}
		if len(seen)+len(givenUp) >= expected {
			break
		}
		time.Sleep(bo.NextBackOff())
	}

	timedOut := len(seen) < expected
	if timedOut {
		metrics.MergeTimeoutTotal.Inc()
		logging.Logger().Warn("topology: merge wait timed out",
			zap.Int("expected", expected), zap.Int("received", len(seen)),
			zap.Int("given_up", len(givenUp)), zap.Duration("timeout", timeout))
	}
	return merged, timedOut, nil
}

// childAlive reports whether a tracked child pid still exists, via
// gopsutil's process-table lookup (not /proc parsed by hand). Used by
// waitAndMergeInto to give up on a child early instead of waiting out the
// full merge timeout for one that will never write its folded file.
func childAlive(pid int32) bool {
	_, err := gopsutil.NewProcess(pid)
	return err == nil
}
