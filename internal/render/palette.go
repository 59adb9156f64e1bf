// internal/render/palette.go
// Colour utilities for the flame graph: a hashHue/hslToRGB/hueToRGB trio.
// Fixed hues are reserved for the "(GC)"/"(Heap)"/"(Blocked)" pseudo-frames
// the middleware hooks append; everything else hashes to a muted pastel.
package render

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Colour returns a CSS hex colour for the given frame name, stable across
// renders of the same input.
func Colour(name string) string {
	switch name {
	case "(GC)":
		return "#b39ddb"
	case "(Heap)":
		return "#80cbc4"
	case "(Blocked)":
		return "#ef9a9a"
	}
	h := hashHue(name)
	r, g, b := hslToRGB(h, 0.55, 0.68)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hashHue(s string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum32() % 360)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	h = math.Mod(h, 360) / 360
	var r, g, b float64
	if s == 0 {
		r, g, b = l, l, l
	} else {
		var p, q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p = 2*l - q
		r = hueToRGB(p, q, h+1.0/3)
		g = hueToRGB(p, q, h)
		b = hueToRGB(p, q, h-1.0/3)
	}
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

// trimText implements spec.md §4.E's text-trimming rule: if the frame's
// width can't hold its full name, trim with a trailing ellipsis; below a
// floor, omit text entirely.
func trimText(name string, width float64) string {
	const charWidth = 6.2 // approximate px per monospace character at 11px
	const floor = 14.0

	if width < floor {
		return ""
	}
	maxChars := int(width / charWidth)
	if maxChars <= 0 {
		return ""
	}
	if len(name) <= maxChars {
		return name
	}
	if maxChars <= 1 {
		return ""
	}
	return name[:maxChars-1] + "…"
}
