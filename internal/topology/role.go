// internal/topology/role.go
// Package topology is the Go rendering of spec.md §4.D's Process-Topology
// Orchestrator: it propagates the sampler across the three child-creation
// paths spec names (fork, spawn, forkserver), re-architected onto Go's
// process model per SPEC_FULL.md §0 — Go cannot clone its address space, so
// "fork" becomes a re-exec of the current binary with an explicit role
// encoded in the environment.
package topology

import (
	"os"
	"strconv"

	"go.uber.org/atomic"
)

const (
	// EnvRole carries the process role assigned by the parent orchestrator
	// to a re-exec'd or spawned child.
	EnvRole = "FLAMECORE_ROLE"
	// EnvConfig carries the parent's base64-JSON sampler.Config.
	EnvConfig = "FLAMECORE_CONFIG"
	// EnvNoMerge disables the merge-wait step entirely; set on forkserver
	// children, whose descendants are never merged back into the root
	// (spec.md §4.D's documented, permanent limitation — see DESIGN.md's
	// Open Question resolution).
	EnvNoMerge = "FLAMECORE_NO_MERGE"
)

// RoleKind enumerates the process roles spec.md §3 names.
type RoleKind string

const (
	RoleRoot       RoleKind = "root"
	RoleReexec     RoleKind = "child"
	RoleSpawned    RoleKind = "spawned"
	RoleForkServer RoleKind = "forkserver"
)

// Role mirrors spec.md §3's "Process role" record.
type Role struct {
	IsRoot     bool
	FromReexec bool
	FromSpawn  bool
	ForkServer bool

	// ChildCount tracks how many children this process has created that are
	// expected to report a folded file back.
	ChildCount atomic.Int64

	PID  int
	PPID int
}

// RoleFromEnv inspects the environment to determine this process's role, the
// Go analogue of reading fork/spawn markers left by the parent.
func RoleFromEnv() Role {
	r := Role{PID: os.Getpid(), PPID: os.Getppid()}
	switch RoleKind(os.Getenv(EnvRole)) {
	case RoleReexec:
		r.FromReexec = true
	case RoleSpawned:
		r.FromSpawn = true
	case RoleForkServer:
		r.ForkServer = true
	default:
		r.IsRoot = true
	}
	return r
}

// MergeDisabled reports whether this process's merge-wait step should be
// skipped entirely (forkserver descendants).
func MergeDisabled() bool {
	return os.Getenv(EnvNoMerge) == "1"
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
