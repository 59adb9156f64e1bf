// cmd/flamecore/profile.go
// Implements `flamecore profile`, the CLI surface for spec.md §4.C/§4.D's
// sampler engine and process-topology orchestrator. Two shapes are
// supported:
//
//	flamecore profile --attach                 # sample this flamecore process itself (demo/self-profiling)
//	flamecore profile [flags] -- <command>...   # spawn <command> and collect its folded contribution
//
// The second shape cannot ptrace an arbitrary unmodified binary the way
// py-spy/pyflame do — Go has no stable cross-platform equivalent without
// cgo — so it instead launches <command> with FLAMECORE_ROLE/FLAMECORE_CONFIG
// set via internal/topology.Orchestrator.WrapCommand: a <command> that itself
// calls topology.DecodeConfig/sampler.New on startup self-profiles and
// reports a folded file back through the same re-exec/spawn contract. See
// DESIGN.md for this translation's scope.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flamecore/flamecore/internal/agent"
	"github.com/flamecore/flamecore/internal/agent/exporter"
	"github.com/flamecore/flamecore/internal/logging"
	"github.com/flamecore/flamecore/internal/render"
	"github.com/flamecore/flamecore/internal/sampler"
	"github.com/flamecore/flamecore/internal/topology"
	"github.com/flamecore/flamecore/pkg/folded"
)

type profileFlags struct {
	attach        bool
	intervalUs    int64
	verbose       bool
	fullPath      bool
	ignoreFrozen  bool
	focusMode     bool
	regexPatterns []string
	foldedSave    bool
	foldedFile    string
	output        string
	merge         bool
	timeoutSec    int
	treeMode      bool
	inverted      bool
	timeSource    string
	reverse       bool
	disableTB     bool
	parseFile     string
	mp            bool
	forkServer    bool
	width         int
	title         string
	pprof         bool
}

func newProfileCmd() *cobra.Command {
	var f profileFlags

	cmd := &cobra.Command{
		Use:   "profile [flags] [--] [command] [args...]",
		Short: "Sample live call stacks and produce a folded/flame-graph snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if noMerge, _ := cmd.Flags().GetBool("no-merge"); noMerge {
				f.merge = false
			}
			if noVerbose, _ := cmd.Flags().GetBool("no-verbose"); noVerbose {
				f.verbose = false
			}
			if f.parseFile != "" {
				return runParseOnly(f)
			}
			if f.attach && len(args) > 0 {
				return newArgError("--attach and a target command are mutually exclusive")
			}
			if !f.attach && len(args) == 0 {
				return newArgError("profile requires --attach or a command to run")
			}
			if f.timeSource != "cpu" && f.timeSource != "wall" {
				return newArgError("--time must be cpu or wall, got %q", f.timeSource)
			}

			cfg := buildSamplerConfig(f)

			if f.attach {
				return runAttach(cmd.Context(), f, cfg)
			}
			return runSpawn(cmd.Context(), f, cfg, args)
		},
	}

	cmd.Flags().BoolVar(&f.attach, "attach", false, "Sample the flamecore process itself instead of spawning a command")
	cmd.Flags().Int64Var(&f.intervalUs, "interval", 1000, "Sampling interval in microseconds (>= 5, clamped)")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "Verbose progress output")
	cmd.Flags().Bool("no-verbose", false, "Disable verbose progress output (overrides --verbose)")
	cmd.Flags().BoolVar(&f.fullPath, "full-path", false, "Accepted for compatibility; frame keys always carry full source paths")
	cmd.Flags().BoolVar(&f.ignoreFrozen, "ignore-frozen", false, "Drop frames marked frozen")
	cmd.Flags().BoolVar(&f.focusMode, "focus-mode", false, "Drop frames under the Go runtime and recognised third-party package roots, keeping user code only")
	cmd.Flags().StringArrayVar(&f.regexPatterns, "regex-patterns", nil, "Allow-list regex for frame names (repeatable)")
	cmd.Flags().BoolVar(&f.foldedSave, "folded-save", false, "Write the folded-text snapshot to --folded-file")
	cmd.Flags().StringVar(&f.foldedFile, "folded-file", "", "Destination path for --folded-save")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file path (flame graph SVG); default stdout")
	cmd.Flags().BoolVar(&f.merge, "merge", true, "Merge child process contributions before rendering")
	cmd.Flags().Bool("no-merge", false, "Disable merging child process contributions (overrides --merge)")
	cmd.Flags().IntVar(&f.timeoutSec, "timeout", 10, "Seconds to wait for child contributions when --merge is set")
	cmd.Flags().BoolVar(&f.treeMode, "tree-mode", false, "Key frames by call-site line instead of definition line")
	cmd.Flags().BoolVar(&f.inverted, "inverted", false, "Render an icicle graph (roots at top)")
	cmd.Flags().StringVar(&f.timeSource, "time", "cpu", "Timer source: cpu or wall")
	cmd.Flags().BoolVar(&f.reverse, "reverse", false, "Reverse stack order before rendering (callers at top)")
	cmd.Flags().BoolVar(&f.disableTB, "disable-traceback", false, "Do not log a warning when the target command exits non-zero")
	cmd.Flags().StringVar(&f.parseFile, "parse", "", "Render-only mode: parse an existing folded file, no sampling")
	cmd.Flags().BoolVar(&f.mp, "mp", false, "Internal: marks this process as a re-exec'd child (set by the orchestrator)")
	cmd.Flags().BoolVar(&f.forkServer, "fork-server", false, "Internal: marks this process as a forkserver (set by the orchestrator)")
	_ = cmd.Flags().MarkHidden("mp")
	_ = cmd.Flags().MarkHidden("fork-server")
	cmd.Flags().IntVar(&f.width, "width", 1200, "SVG width in pixels")
	cmd.Flags().StringVar(&f.title, "title", "", "SVG document title")
	cmd.Flags().BoolVar(&f.pprof, "pprof", false, "Additionally emit a pprof profile alongside the SVG")

	return cmd
}

func buildSamplerConfig(f profileFlags) sampler.Config {
	ts := sampler.TimerCPU
	if f.timeSource == "wall" {
		ts = sampler.TimerWall
	}
	return sampler.Config{
		Interval:           time.Duration(f.intervalUs) * time.Microsecond,
		IgnoreFrozen:       f.ignoreFrozen,
		IgnoreSelf:         true,
		TreeMode:           f.treeMode,
		FocusMode:          f.focusMode,
		ThirdPartyPrefixes: []string{"/pkg/mod/", "/vendor/"},
		RegexPatterns:      f.regexPatterns,
		TimerSource:        ts,
		Mode:               sampler.ModeAuto,
	}
}

// runAttach samples this flamecore process itself until interrupted.
func runAttach(ctx context.Context, f profileFlags, cfg sampler.Config) error {
	col, err := agent.NewCollector(agent.Config{Sampler: cfg})
	if err != nil {
		return err
	}
	defer sampler.Clear()

	if f.foldedSave && f.foldedFile != "" {
		fe, err := exporter.NewFileExporter(exporter.FileConfig{Dir: dirOf(f.foldedFile), Prefix: "attach"})
		if err == nil {
			col.AddExporter(fe)
		}
	}

	if err := col.Start(); err != nil {
		return err
	}
	logging.Sugar().Infow("self-profiling started", "interval_us", f.intervalUs)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	select {
	case <-ctx.Done():
	case <-sigCh:
		logging.Sugar().Info("received interrupt, stopping")
	}

	if err := col.Stop(); err != nil {
		return err
	}

	orch := col.Orchestrator()
	table, _, err := orch.Save(context.Background(), col.Engine().Table(), topology.SaveStrategy{
		Merge: f.merge, Timeout: time.Duration(f.timeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}
	return emit(f, table)
}

// runSpawn launches args as a child process, wires the orchestrator's
// spawn-time environment, waits for completion, then merges any reported
// contributions and emits the result.
func runSpawn(ctx context.Context, f profileFlags, cfg sampler.Config, args []string) error {
	orch := topology.New()

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Stdin = os.Stdin

	if f.forkServer {
		if err := orch.WrapForkServer(child, cfg); err != nil {
			return err
		}
	} else if err := orch.WrapCommand(child, cfg); err != nil {
		return err
	}

	var runErr error
	if err := child.Start(); err != nil {
		return err
	}
	orch.TrackChildPID(child.Process.Pid)
	runErr = child.Wait()
	if runErr != nil && !f.disableTB {
		logging.Sugar().Warnw("child command exited non-zero", "err", runErr)
	}

	table, _, err := orch.Save(context.Background(), folded.New(), topology.SaveStrategy{
		Merge:       f.merge,
		HasChildren: true,
		Timeout:     time.Duration(f.timeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}
	if err := emit(f, table); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("child command: %w", runErr)
	}
	return nil
}

// emit applies --folded-save, then renders and writes --output, honouring
// --reverse/--inverted/--pprof.
func emit(f profileFlags, table *folded.Table) error {
	text := table.Dump()
	if f.reverse {
		text = reverseFoldedLines(text)
	}

	if f.foldedSave {
		path := f.foldedFile
		if path == "" {
			path = fmt.Sprintf("flamecore-%s.folded", time.Now().UTC().Format("20060102T150405"))
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return err
		}
		logging.Sugar().Infow("folded snapshot saved", "path", path)
	}

	return renderToOutput(f, text)
}

func renderToOutput(f profileFlags, text string) error {
	tree, stats, err := render.Parse(strings.NewReader(text))
	if err != nil {
		return err
	}
	if stats.Warnings > 0 {
		logging.Sugar().Warnw("folded input had malformed lines", "skipped", stats.Warnings)
	}

	opts := render.DefaultOptions()
	opts.Inverted = f.inverted
	opts.Width = f.width
	opts.Title = f.title

	svg, advisory, err := render.Render(tree, opts)
	if err != nil {
		return err
	}
	if advisory != "" {
		logging.Sugar().Warn(advisory)
	}

	if f.output == "" {
		_, err = os.Stdout.Write(svg)
		return err
	}
	if err := os.WriteFile(f.output, svg, 0o644); err != nil {
		return err
	}
	if f.pprof {
		prof := render.BuildPprofProfile(tree)
		data, err := prof.Marshal()
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.output+".pprof", data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func runParseOnly(f profileFlags) error {
	data, err := os.ReadFile(f.parseFile)
	if err != nil {
		return err
	}
	return renderToOutput(f, string(data))
}

func reverseFoldedLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		sp := strings.LastIndexByte(line, ' ')
		if sp < 0 {
			continue
		}
		frames := strings.Split(line[:sp], ";")
		for a, b := 0, len(frames)-1; a < b; a, b = a+1, b-1 {
			frames[a], frames[b] = frames[b], frames[a]
		}
		lines[i] = strings.Join(frames, ";") + line[sp:]
	}
	return strings.Join(lines, "\n")
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}
