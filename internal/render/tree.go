// internal/render/tree.go
// Package render is the Go rendering of spec.md §4.E's Folded-Stack
// Renderer: it parses folded text into a tree of aggregated call paths,
// lays the tree out as a grid of rectangles, and emits a self-contained SVG
// flame graph.
package render

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Node is one frame in the aggregated call tree. Root's Name is empty.
type Node struct {
	Name     string
	Total    int64
	Children map[string]*Node
	// order preserves first-seen insertion order, the fallback ordering
	// used when not every child's name ends in a numeric suffix.
	order []string
}

func newNode(name string) *Node {
	return &Node{Name: name, Children: make(map[string]*Node)}
}

func (n *Node) child(name string) *Node {
	c, ok := n.Children[name]
	if !ok {
		c = newNode(name)
		n.Children[name] = c
		n.order = append(n.order, name)
	}
	return c
}

// OrderedChildren implements spec.md §4.E's child ordering rule: sort by the
// trailing ":<int>" numeric suffix of the frame string when every sibling
// has one, else fall back to stable insertion order.
func (n *Node) OrderedChildren() []*Node {
	names := append([]string(nil), n.order...)

	allNumeric := true
	suffix := make(map[string]int64, len(names))
	for _, name := range names {
		v, ok := trailingInt(name)
		if !ok {
			allNumeric = false
			break
		}
		suffix[name] = v
	}

	if allNumeric {
		sort.SliceStable(names, func(i, j int) bool {
			return suffix[names[i]] < suffix[names[j]]
		})
	}

	out := make([]*Node, 0, len(names))
	for _, name := range names {
		out = append(out, n.Children[name])
	}
	return out
}

func trailingInt(s string) (int64, bool) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 || idx == len(s)-1 {
		return 0, false
	}
	v, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Tree is the parsed aggregation: Root's Total is the sum of every stack's
// count.
type Tree struct {
	Root *Node
}

// Stats summarises a Parse call: total samples, warning (malformed-line)
// count, and maximum observed depth.
type Stats struct {
	Total    int64
	Warnings int
	MaxDepth int
}

// Parse reads "<stack-key> <count>" lines (the same wire format pkg/folded
// produces) and builds the call tree. Malformed lines are skipped and
// counted, never fatal, mirroring pkg/folded.ParseTable and spec.md §4.E/§8
// scenario 4.
func Parse(r io.Reader) (*Tree, Stats, error) {
	root := newNode("")
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.LastIndexByte(line, ' ')
		if idx < 0 {
			stats.Warnings++
			continue
		}
		key, countStr := line[:idx], line[idx+1:]
		count, err := strconv.ParseInt(countStr, 10, 64)
		if err != nil || count < 0 || key == "" {
			stats.Warnings++
			continue
		}

		frames := strings.Split(key, ";")
		node := root
		node.Total += count
		depth := 0
		for _, f := range frames {
			if f == "" {
				continue
			}
			node = node.child(f)
			node.Total += count
			depth++
		}
		if depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
		stats.Total += count
	}
	if err := scanner.Err(); err != nil {
		return &Tree{Root: root}, stats, err
	}
	return &Tree{Root: root}, stats, nil
}
