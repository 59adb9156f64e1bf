package folded

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndDump(t *testing.T) {
	tbl := New()
	tbl.Add("MainThread", []string{"a.go:main.a:1", "b.go:main.b:2"})
	tbl.Add("MainThread", []string{"a.go:main.a:1", "b.go:main.b:2"})
	tbl.Add("MainThread", []string{"a.go:main.a:1", "c.go:main.c:3"})

	dump := tbl.Dump()
	lines := strings.Split(dump, "\n")
	require.Len(t, lines, 2)
	require.False(t, strings.HasSuffix(dump, "\n"), "last entry must not have a trailing newline")
}

func TestAddEmptyFramesNoOp(t *testing.T) {
	tbl := New()
	tbl.Add("MainThread", nil)
	require.Zero(t, tbl.Len(), "expected no update for empty frames")
}

func TestDumpIdempotent(t *testing.T) {
	tbl := New()
	tbl.Add("MainThread", []string{"x:f:1"})
	tbl.Add("Worker", []string{"y:g:2"})

	require.Equal(t, tbl.Dump(), tbl.Dump(), "dump must be idempotent")
}

func TestRoundTrip(t *testing.T) {
	tbl := New()
	tbl.Add("MainThread", []string{"a:f:1", "b:g:2"})
	tbl.Add("MainThread", []string{"a:f:1", "b:g:2"})
	tbl.Add("Worker-1", []string{"a:fib:9"})

	dump := tbl.Dump()
	parsed, skipped, err := ParseTable(strings.NewReader(dump))
	require.NoError(t, err)
	require.Zero(t, skipped)
	require.Equal(t, dump, parsed.Dump())
}

func TestParseTableMalformedLines(t *testing.T) {
	input := "a;b;c 10\nbogus line\nd;e 7"
	tbl, skipped, err := ParseTable(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, skipped)
	require.EqualValues(t, 17, tbl.Total())
	require.Equal(t, 2, tbl.Len())
}

func TestClearPreservesUsability(t *testing.T) {
	tbl := New()
	tbl.Add("MainThread", []string{"a:f:1"})
	tbl.Clear()
	require.Zero(t, tbl.Len())

	tbl.Add("MainThread", []string{"a:f:1"})
	require.EqualValues(t, 1, tbl.Total(), "expected table usable after Clear")
}

func TestEntriesPreserveInsertionOrder(t *testing.T) {
	tbl := New()
	tbl.Add("MainThread", []string{"a:f:1"})
	tbl.Add("Worker-1", []string{"b:g:2"})
	tbl.Add("MainThread", []string{"a:f:1"})

	entries := tbl.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "MainThread;a:f:1", entries[0].Key)
	require.EqualValues(t, 2, entries[0].Count)
	require.Equal(t, "Worker-1;b:g:2", entries[1].Key)
	require.EqualValues(t, 1, entries[1].Count)
}
