package function

import "github.com/cespare/xxhash/v2"

// GlobalLayout is the ordered list of global names a function addresses
// by index (GetGlobalIdx/SetGlobalIdx). An empty string is a hole: the
// slot exists to keep indices stable across a recompile but nothing
// currently occupies it.
//
// Grounded on aelys-runtime/src/vm/globals/layout.rs's GlobalLayout/id():
// two layouts with identical name lists collapse to the same mapping id
// (computed from content, via xxhash here in place of the original's
// hash), maximizing globals_by_index cache reuse across unrelated
// functions that happen to reference the same global set in the same
// order.
type GlobalLayout struct {
	names []string
	id    uint64
}

// EmptyLayout returns the canonical zero-global layout, mapping id 0.
func EmptyLayout() *GlobalLayout {
	return &GlobalLayout{}
}

// NewGlobalLayout builds a layout from an ordered name list, computing
// its mapping id from content so that two functions sharing the same
// global set (in the same order) share one cache entry.
func NewGlobalLayout(names []string) *GlobalLayout {
	if len(names) == 0 {
		return EmptyLayout()
	}
	h := xxhash.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0}) // separator so ["ab","c"] != ["a","bc"]
	}
	return &GlobalLayout{names: names, id: h.Sum64()}
}

func (g *GlobalLayout) Names() []string { return g.names }

// ID returns the layout's mapping id — its identity for the purposes of
// lang/globals's globals_by_index cache.
func (g *GlobalLayout) ID() uint64 { return g.id }

func (g *GlobalLayout) IsEmpty() bool { return len(g.names) == 0 }
