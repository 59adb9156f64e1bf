// internal/render/layout.go
// Layout implements spec.md §4.E's deterministic rectangle placement: a
// horizontal scale derived from the root's total sample count, a pre-order
// walk assigning x/width/depth, and presentational (not structural) omission
// of rectangles below a minimum pixel width.
package render

// Options tunes layout and rendering.
type Options struct {
	Width       float64
	FrameHeight float64
	MinWidth    float64
	Inverted    bool

	Title       string
	Command     string
	WorkDir     string
	PackageRoot string
}

// DefaultOptions picks a 1200px canvas and 16px rows, legible defaults for
// a browser-rendered flame graph.
func DefaultOptions() Options {
	return Options{Width: 1200, FrameHeight: 16, MinWidth: 0.2}
}

// Rect is one retained rectangle of the final layout.
type Rect struct {
	Name    string
	Total   int64
	Depth   int
	X       float64
	Y       float64
	Width   float64
	Height  float64
	Percent float64
}

// Layout performs the pre-order walk of spec.md §4.E: s = (width-20)/total,
// x starts at the cursor, width = node.Total*s, depth increments per
// descent. Rects under opts.MinWidth are omitted from the output slice —
// purely presentational, since every x-coordinate is already final and
// siblings are therefore unaffected by the omission.
func Layout(tree *Tree, opts Options) []Rect {
	root := tree.Root
	if root.Total == 0 {
		return nil
	}
	if opts.Width <= 20 {
		opts.Width = 1200
	}
	if opts.FrameHeight <= 0 {
		opts.FrameHeight = 16
	}
	scale := (opts.Width - 20) / float64(root.Total)

	var rects []Rect
	var walk func(n *Node, x float64, depth int)
	walk = func(n *Node, x float64, depth int) {
		width := float64(n.Total) * scale
		if n.Name != "" { // root itself is not rendered as a rect
			r := Rect{
				Name:    n.Name,
				Total:   n.Total,
				Depth:   depth,
				X:       x,
				Width:   width,
				Height:  opts.FrameHeight,
				Percent: 100 * float64(n.Total) / float64(root.Total),
			}
			if opts.Inverted {
				r.Y = float64(depth-1) * opts.FrameHeight
			} else {
				r.Y = 0 // finalised to (maxDepth-depth)*h by caller once maxDepth is known
			}
			if width >= opts.MinWidth {
				rects = append(rects, r)
			}
		}

		cursor := x
		for _, c := range n.OrderedChildren() {
			walk(c, cursor, depth+1)
			cursor += float64(c.Total) * scale
		}
	}
	walk(root, 10, 0)

	if !opts.Inverted {
		maxDepth := 0
		for _, r := range rects {
			if r.Depth > maxDepth {
				maxDepth = r.Depth
			}
		}
		for i := range rects {
			rects[i].Y = float64(maxDepth-rects[i].Depth) * opts.FrameHeight
		}
	}

	return rects
}
