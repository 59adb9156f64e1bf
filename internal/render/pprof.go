// internal/render/pprof.go
// Optional `--pprof` export path (SPEC_FULL.md §4.E, supplemental beyond
// spec.md's literal renderer scope but invited by it): materialises the same
// Tree as a github.com/google/pprof/profile.Profile, for operators who
// prefer `go tool pprof`'s UI over the SVG document, by interning
// Function/Location entries into a self-contained Profile.
package render

import (
	"github.com/google/pprof/profile"
)

// BuildPprofProfile walks tree and returns a self-contained *profile.Profile
// with one sample per root-to-leaf path, weighted by that path's Total.
func BuildPprofProfile(tree *Tree) *profile.Profile {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "samples", Unit: "count"},
	}

	funcCache := map[string]*profile.Function{}
	locCache := map[string]*profile.Location{}
	var nextFuncID, nextLocID uint64

	locationFor := func(name string) *profile.Location {
		if loc, ok := locCache[name]; ok {
			return loc
		}
		fn, ok := funcCache[name]
		if !ok {
			nextFuncID++
			fn = &profile.Function{ID: nextFuncID, Name: name, SystemName: name}
			funcCache[name] = fn
			prof.Function = append(prof.Function, fn)
		}
		nextLocID++
		loc := &profile.Location{
			ID:   nextLocID,
			Line: []profile.Line{{Function: fn}},
		}
		locCache[name] = loc
		prof.Location = append(prof.Location, loc)
		return loc
	}

	var path []*profile.Location
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Name != "" {
			path = append(path, locationFor(n.Name))
			if len(n.Children) == 0 {
				// Leaf: emit one sample for this root-to-leaf path,
				// locations ordered leaf-first as pprof expects.
				locs := make([]*profile.Location, len(path))
				for i, l := range path {
					locs[len(path)-1-i] = l
				}
				prof.Sample = append(prof.Sample, &profile.Sample{
					Location: locs,
					Value:    []int64{n.Total},
				})
			}
		}
		for _, c := range n.OrderedChildren() {
			walk(c)
		}
		if n.Name != "" {
			path = path[:len(path)-1]
		}
	}
	walk(tree.Root)

	return prof
}
