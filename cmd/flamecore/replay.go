// cmd/flamecore/replay.go
// Implements `flamecore replay`. flamecore has no cross-host capture format
// to replay: the artifact this command inspects is a folded-table-derived
// snapshot — either the raw "<key> <count>" wire format pkg/folded produces,
// or the same data serialised as a JSON array of {"key":...,"count":...}
// entries (what the monitor's retention ring buffer persists for later
// replay). The default output is a human summary; --json prints full detail.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/flamecore/flamecore/pkg/folded"
)

func newReplayCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "replay <snapshot.json|folded-file>",
		Short: "Inspect a saved folded-table snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			entries, err := decodeSnapshot(data)
			if err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			printSummary(path, entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output the full entry list as JSON instead of a summary")
	return cmd
}

// decodeSnapshot accepts either the JSON-array-of-entries shape or the raw
// folded wire format, auto-detecting by the first non-whitespace byte.
func decodeSnapshot(data []byte) ([]folded.Entry, error) {
	trimmed := data
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\n' || trimmed[0] == '\t' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []folded.Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	t, _, err := folded.ParseTable(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return t.Entries(), nil
}

func printSummary(path string, entries []folded.Entry) {
	var total int64
	sorted := append([]folded.Entry(nil), entries...)
	for _, e := range sorted {
		total += e.Count
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })

	fmt.Printf("File: %s\n", path)
	fmt.Printf("Distinct stacks: %d\n", len(entries))
	fmt.Printf("Total samples: %d\n", total)
	fmt.Println("Top 10 hottest stacks:")
	n := len(sorted)
	if n > 10 {
		n = 10
	}
	for i := 0; i < n; i++ {
		e := sorted[i]
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(e.Count) / float64(total)
		}
		fmt.Printf("%2d. %-60s %8d (%.1f%%)\n", i+1, truncate(e.Key, 60), e.Count, pct)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
