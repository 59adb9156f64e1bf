// cmd/flamecore/render.go
// Implements `flamecore render <folded-file>`, a standalone render-only
// entry point for a folded-text file produced by an earlier `flamecore
// profile --folded-save` run.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/flamecore/flamecore/internal/logging"
	"github.com/flamecore/flamecore/internal/render"
)

func newRenderCmd() *cobra.Command {
	var (
		output   string
		title    string
		width    int
		inverted bool
		pprof    bool
	)

	cmd := &cobra.Command{
		Use:   "render <folded-file>",
		Short: "Render a folded-text snapshot into an interactive SVG flame graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tree, stats, err := render.Parse(f)
			if err != nil {
				return err
			}
			if stats.Warnings > 0 {
				logging.Sugar().Warnw("folded input had malformed lines", "skipped", stats.Warnings)
			}

			opts := render.DefaultOptions()
			opts.Title = title
			opts.Width = width
			opts.Inverted = inverted

			svg, advisory, err := render.Render(tree, opts)
			if err != nil {
				return err
			}
			if advisory != "" {
				logging.Sugar().Warn(advisory)
			}

			if output == "" {
				_, err = os.Stdout.Write(svg)
				return err
			}
			if err := os.WriteFile(output, svg, 0o644); err != nil {
				return err
			}
			if pprof {
				prof := render.BuildPprofProfile(tree)
				data, err := prof.Marshal()
				if err != nil {
					return err
				}
				return os.WriteFile(output+".pprof", data, 0o644)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output SVG path; default stdout")
	cmd.Flags().StringVar(&title, "title", "", "SVG document title")
	cmd.Flags().IntVar(&width, "width", 1200, "SVG width in pixels")
	cmd.Flags().BoolVar(&inverted, "inverted", false, "Render an icicle graph (roots at top)")
	cmd.Flags().BoolVar(&pprof, "pprof", false, "Additionally emit a pprof profile next to the SVG")
	return cmd
}
