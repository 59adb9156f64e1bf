package topology

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flamecore/flamecore/pkg/folded"
)

func TestRoleFromEnvDefaultsToRoot(t *testing.T) {
	os.Unsetenv(EnvRole)
	r := RoleFromEnv()
	if !r.IsRoot {
		t.Fatalf("expected root role with no env markers")
	}
}

func TestRoleFromEnvChild(t *testing.T) {
	t.Setenv(EnvRole, string(RoleReexec))
	r := RoleFromEnv()
	if !r.FromReexec || r.IsRoot {
		t.Fatalf("expected FromReexec role, got %+v", r)
	}
}

func TestSaveSoleRoot(t *testing.T) {
	dir := t.TempDir()
	o := &Orchestrator{Role: Role{IsRoot: true, PID: 100}, WorkDir: dir}
	tbl := folded.New()
	tbl.Add("MainThread", []string{"a:f:1"})

	out, timedOut, err := o.Save(context.Background(), tbl, SaveStrategy{Merge: true, HasChildren: false})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if timedOut {
		t.Fatalf("sole root should never time out")
	}
	if out.Total() != 1 {
		t.Fatalf("expected total 1, got %d", out.Total())
	}
}

func TestSaveNonRootWritesFoldedFile(t *testing.T) {
	dir := t.TempDir()
	o := &Orchestrator{Role: Role{PID: 200, PPID: 100}, WorkDir: dir}
	tbl := folded.New()
	tbl.Add("MainThread", []string{"a:f:1"})

	if _, _, err := o.Save(context.Background(), tbl, SaveStrategy{Merge: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	path := filepath.Join(dir, "200-100.folded")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected folded file written: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty folded file")
	}
}

func TestWaitAndMergeTimesOutWithoutError(t *testing.T) {
	dir := t.TempDir()
	o := &Orchestrator{Role: Role{IsRoot: true, PID: 1}, WorkDir: dir}
	o.Role.ChildCount.Add(1)

	_, timedOut, err := o.WaitAndMerge(context.Background(), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("merge timeout must not be a hard error, got %v", err)
	}
	if !timedOut {
		t.Fatalf("expected timedOut=true when no child file ever appears")
	}
}

func TestWaitAndMergeConsumesAndUnlinks(t *testing.T) {
	dir := t.TempDir()
	o := &Orchestrator{Role: Role{IsRoot: true, PID: 1}, WorkDir: dir}
	o.Role.ChildCount.Add(1)

	childFile := filepath.Join(dir, "2-1.folded")
	if err := os.WriteFile(childFile, []byte("Process(pid=2, ppid=1);a:f:1 3"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	merged, timedOut, err := o.WaitAndMerge(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if timedOut {
		t.Fatalf("did not expect a timeout")
	}
	if merged.Total() != 3 {
		t.Fatalf("expected merged total 3, got %d", merged.Total())
	}
	if _, err := os.Stat(childFile); !os.IsNotExist(err) {
		t.Fatalf("expected child file to be unlinked after consumption")
	}
}

func TestProcessPrefixTagging(t *testing.T) {
	o := &Orchestrator{Role: Role{PID: 42, PPID: 7}}
	tbl := folded.New()
	tbl.Add("MainThread", []string{"a:f:1"})
	tagged := o.TagTable(tbl)
	entries := tagged.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	want := "Process(pid=42, ppid=7);MainThread;a:f:1"
	if entries[0].Key != want {
		t.Fatalf("got %q want %q", entries[0].Key, want)
	}
}
