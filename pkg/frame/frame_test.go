package frame

import "testing"

func TestCanonicalizeDefaultMode(t *testing.T) {
	f := Frame{File: "/home/user/app/main.go", Func: "main.b", Line: 42}
	s, ok := Canonicalize(f, 7, Config{})
	if !ok {
		t.Fatalf("expected frame to survive with empty config")
	}
	want := "/home/user/app/main.go:main.b:42"
	if s != want {
		t.Fatalf("got %q want %q", s, want)
	}
}

func TestCanonicalizeTreeMode(t *testing.T) {
	f := Frame{File: "/home/user/app/main.go", Func: "main.b", Line: 42}
	s, ok := Canonicalize(f, 7, Config{TreeMode: true})
	if !ok {
		t.Fatalf("expected frame to survive")
	}
	want := "/home/user/app/main.go:main.b:7"
	if s != want {
		t.Fatalf("got %q want %q", s, want)
	}
}

func TestCanonicalizeIgnoreFrozen(t *testing.T) {
	f := Frame{File: "/usr/local/go/src/runtime/proc.go", Func: "runtime.schedule", Line: 1, Frozen: true}
	if _, ok := Canonicalize(f, 0, Config{IgnoreFrozen: true}); ok {
		t.Fatalf("expected frozen frame to be dropped")
	}
}

func TestCanonicalizeIgnoreSelf(t *testing.T) {
	f := Frame{File: "/src/internal/sampler/engine.go", Func: "github.com/flamecore/flamecore/internal/sampler.onTick"}
	cfg := Config{IgnoreSelf: true, SelfPrefix: "flamecore/internal/sampler"}
	if _, ok := Canonicalize(f, 0, cfg); ok {
		t.Fatalf("expected self frame to be dropped")
	}
}

func TestCanonicalizeFocusMode(t *testing.T) {
	cfg := Config{FocusMode: true, ThirdPartyPrefixes: []string{"/vendor/"}}
	vendored := Frame{File: "/app/vendor/lib/x.go", Func: "lib.X", Line: 3}
	if _, ok := Canonicalize(vendored, 0, cfg); ok {
		t.Fatalf("expected vendored frame to be dropped in focus mode")
	}
	user := Frame{File: "/app/main.go", Func: "main.run", Line: 3}
	if _, ok := Canonicalize(user, 0, cfg); !ok {
		t.Fatalf("expected user frame to survive focus mode")
	}
}

func TestCanonicalizeRegexAllowList(t *testing.T) {
	patterns, err := CompileRegexPatterns([]string{".*fib.*"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cfg := Config{RegexPatterns: patterns}

	match := Frame{File: "/app/main.go", Func: "main.fibonacci", Line: 10}
	if _, ok := Canonicalize(match, 0, cfg); !ok {
		t.Fatalf("expected matching frame to survive")
	}

	noMatch := Frame{File: "/app/main.go", Func: "main.other", Line: 10}
	if _, ok := Canonicalize(noMatch, 0, cfg); ok {
		t.Fatalf("expected non-matching frame to be dropped")
	}
}

func TestCanonicalizeUnknownLine(t *testing.T) {
	f := Frame{File: "/app/main.go", Func: "main.weird", Line: -1}
	s, ok := Canonicalize(f, 0, Config{})
	if !ok {
		t.Fatalf("expected frame to survive")
	}
	if s != "/app/main.go:main.weird:0" {
		t.Fatalf("expected unknown line to render as 0, got %q", s)
	}
}

func TestCompileRegexPatternsInvalid(t *testing.T) {
	if _, err := CompileRegexPatterns([]string{"(unclosed"}); err == nil {
		t.Fatalf("expected error for invalid regex")
	}
}

func TestFilterShortCircuitOrder(t *testing.T) {
	// A frozen frame is dropped at step 1 even though it would also fail the
	// regex allow-list at step 4 — the short-circuit must stop at step 1, but
	// since both would drop the frame this test instead checks that
	// ignore_frozen takes priority over a regex that WOULD have matched.
	patterns, _ := CompileRegexPatterns([]string{".*"})
	f := Frame{File: "/usr/local/go/src/runtime/proc.go", Func: "runtime.schedule", Frozen: true}
	cfg := Config{IgnoreFrozen: true, RegexPatterns: patterns}
	if _, ok := Canonicalize(f, 0, cfg); ok {
		t.Fatalf("expected ignore_frozen to short-circuit before the regex step")
	}
}
