// pkg/frame/frame.go
// Package frame turns a raw runtime.Frame into the stable, filterable string
// key that the rest of flamecore folds and renders.  It is the Go analogue of
// an interpreter's per-call "Frame" object: ephemeral, built fresh on every
// sample tick, and never retained past the tick that produced it.
package frame

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Frame is one entry of a walked call stack.
//
//   - File is the source path runtime.Frame reports (may be empty for frames
//     without debug info).
//   - Line is the line of definition (default mode) — the stable line
//     reported by runtime.FuncForPC(rf.Entry), not the dynamic execution
//     line, which would make the default-mode key flap between otherwise
//     identical samples. Callers that need the call-site line for tree-mode
//     pass it separately to Canonicalize.
//   - Func is the fully qualified function name, e.g.
//     "github.com/flamecore/flamecore/pkg/folded.(*Table).Add".
//   - Frozen is true when File sits under runtime.GOROOT(); Go has no
//     separate "frozen bootstrap importer" the way an interpreter does, so
//     the whole standard library tree plays that role.
type Frame struct {
	File   string
	Line   int
	Func   string
	Frozen bool
}

// goroot is resolved once, at package initialisation.
var goroot = runtime.GOROOT()

// FromRuntime builds a Frame from a runtime.Frame as produced by
// runtime.CallersFrames. The Line field is the line of definition (resolved
// from the function's entry PC), matching the interpreter's
// co_firstlineno-style "line of definition" that default mode renders.
func FromRuntime(rf runtime.Frame) Frame {
	name := rf.Function
	if name == "" {
		// Fall back to the base name of the source file when the function
		// name is unavailable.
		if idx := strings.LastIndexByte(rf.File, '/'); idx >= 0 {
			name = rf.File[idx+1:]
		} else {
			name = rf.File
		}
	}
	defLine := rf.Line
	if fn := runtime.FuncForPC(rf.Entry); fn != nil {
		if _, l := fn.FileLine(rf.Entry); l > 0 {
			defLine = l
		}
	}
	return Frame{
		File:   rf.File,
		Line:   defLine,
		Func:   name,
		Frozen: goroot != "" && strings.HasPrefix(rf.File, goroot),
	}
}

// Config mirrors the sampler configuration fields that influence frame
// filtering and rendering, compiled once and reused across every tick.
type Config struct {
	IgnoreFrozen bool
	IgnoreSelf   bool
	TreeMode     bool
	FocusMode    bool

	// RegexPatterns is an allow-list: a frame survives step 4 of the filter
	// only if its "<path>:<func>" matches at least one pattern. Empty means
	// no filtering at this step.
	RegexPatterns []*regexp.Regexp

	// TimerSource is carried here purely for display/headers; it does not
	// affect canonicalisation.
	TimerSource string

	// SelfPrefix is the import-path prefix treated as "the profiler's own
	// installation directory" for the ignore-self filter.
	SelfPrefix string

	// ThirdPartyPrefixes are path prefixes treated as vendored/third-party
	// for focus-mode (in addition to GOROOT, which is always excluded by
	// focus-mode).
	ThirdPartyPrefixes []string
}

// CompileRegexPatterns compiles the given pattern strings, returning a
// config-invalid-flavoured error on the first bad pattern — stdlib regexp is
// used here deliberately; see DESIGN.md for why no pack library covers
// user-supplied pattern filtering.
func CompileRegexPatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("regex pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Canonicalize implements spec's 5-step short-circuit filter order and
// renders the surviving frame to its canonical string. callsite is the line
// at which the caller invoked this frame; it is only used in tree mode.
func Canonicalize(f Frame, callsite int, cfg Config) (string, bool) {
	if cfg.IgnoreFrozen && f.Frozen {
		return "", false
	}
	if cfg.IgnoreSelf && cfg.SelfPrefix != "" && strings.Contains(f.Func, cfg.SelfPrefix) {
		return "", false
	}
	if cfg.FocusMode {
		if f.Frozen {
			return "", false
		}
		for _, prefix := range cfg.ThirdPartyPrefixes {
			if prefix != "" && strings.Contains(f.File, prefix) {
				return "", false
			}
		}
	}
	if len(cfg.RegexPatterns) > 0 {
		composed := f.File + ":" + f.Func
		matched := false
		for _, re := range cfg.RegexPatterns {
			if re.MatchString(composed) {
				matched = true
				break
			}
		}
		if !matched {
			return "", false
		}
	}

	line := f.Line
	if cfg.TreeMode {
		line = callsite
	}
	if line <= 0 {
		line = 0
	}
	return f.File + ":" + f.Func + ":" + strconv.Itoa(line), true
}
