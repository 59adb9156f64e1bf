// internal/render/svg.go
// Render emits the self-contained SVG document spec.md §4.E describes:
// title, environment headers, one rectangle+text per retained node, a
// tooltip, and an embedded interactive controller.
package render

import (
	_ "embed"
	"fmt"
	"html"
	"strings"
)

//go:embed viewer.js
var viewerJS string

// lowSampleFloor is spec's "≈50" advisory threshold.
const lowSampleFloor = 50

// Render lays tree out per opts and returns a complete SVG document plus a
// non-fatal advisory string (empty when none applies).
func Render(tree *Tree, opts Options) ([]byte, string, error) {
	rects := Layout(tree, opts)

	maxDepth := 0
	for _, r := range rects {
		if r.Depth > maxDepth {
			maxDepth = r.Depth
		}
	}
	height := float64(maxDepth+2)*opts.FrameHeight + 40

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f" font-family="Verdana,Helvetica,Arial,sans-serif" font-size="11">`+"\n",
		opts.Width, height, opts.Width, height)

	fmt.Fprintf(&b, `<rect x="0" y="0" width="%.0f" height="%.0f" fill="#fffafa"/>`+"\n", opts.Width, height)

	title := opts.Title
	if title == "" {
		title = "flamecore"
	}
	fmt.Fprintf(&b, `<text x="%.0f" y="20" text-anchor="middle" font-size="16">%s</text>`+"\n",
		opts.Width/2, html.EscapeString(title))

	headerY := 34.0
	if opts.Command != "" {
		fmt.Fprintf(&b, `<text x="10" y="%.0f" font-size="10" fill="#666">command: %s</text>`+"\n", headerY, html.EscapeString(opts.Command))
		headerY += 12
	}
	if opts.WorkDir != "" {
		fmt.Fprintf(&b, `<text x="10" y="%.0f" font-size="10" fill="#666">workdir: %s</text>`+"\n", headerY, html.EscapeString(opts.WorkDir))
		headerY += 12
	}
	if opts.PackageRoot != "" {
		fmt.Fprintf(&b, `<text x="10" y="%.0f" font-size="10" fill="#666">package-root: %s</text>`+"\n", headerY, html.EscapeString(opts.PackageRoot))
	}

	fmt.Fprintf(&b, `<g transform="translate(0,%.0f)">`+"\n", height-40)
	for _, r := range rects {
		y := r.Y
		if !opts.Inverted {
			y = -r.Y - r.Height
		} else {
			y = r.Y
		}
		colour := Colour(r.Name)
		label := trimText(r.Name, r.Width)
		fmt.Fprintf(&b, `<g data-frame="1" data-name="%s">`+"\n", html.EscapeString(r.Name))
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" stroke="white" stroke-width="0.5"><title>%s (%d samples, %.2f%%)</title></rect>`+"\n",
			r.X, y, r.Width, r.Height, colour, html.EscapeString(r.Name), r.Total, r.Percent)
		if label != "" {
			fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" font-size="10">%s</text>`+"\n",
				r.X+2, y+r.Height-4, html.EscapeString(label))
		}
		b.WriteString("</g>\n")
	}
	b.WriteString("</g>\n")

	b.WriteString(`<input id="flamecore-search" type="text" style="display:none" />` + "\n")
	fmt.Fprintf(&b, "<script><![CDATA[\n%s\n]]></script>\n", viewerJS)
	b.WriteString("</svg>\n")

	var advisory string
	if tree.Root.Total < lowSampleFloor {
		advisory = fmt.Sprintf("sample count low (%d); consider a finer --interval", tree.Root.Total)
	}

	return []byte(b.String()), advisory, nil
}
