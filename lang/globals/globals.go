// Package globals implements Aelys's two-tier global-variable storage:
// a name-keyed map (the source of truth) and a per-function indexed
// array (globals_by_index) cached by global-layout mapping id so that
// repeated calls into the same function reuse a pre-materialized array
// instead of hashing names on every GetGlobalIdx/SetGlobalIdx.
//
// Grounded on aelys-runtime/src/vm/globals/{layout.rs,sync.rs}.
package globals

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/value"
)

const mappingCacheSize = 256

// Globals owns the name-keyed map, the active globals_by_index array, and
// the process-wide mapping_id -> []Value cache.
type Globals struct {
	byName map[string]value.Value

	byIndex         []value.Value
	currentMapping  uint64
	haveCurrent     bool
	mappingCache    *lru.Cache // uint64 -> []value.Value
}

func New() *Globals {
	cache, _ := lru.New(mappingCacheSize)
	return &Globals{
		byName:       make(map[string]value.Value),
		mappingCache: cache,
	}
}

func (g *Globals) Get(name string) (value.Value, bool) {
	v, ok := g.byName[name]
	return v, ok
}

func (g *Globals) Set(name string, v value.Value) {
	g.byName[name] = v
}

// PrepareForLayout switches the active globals_by_index array to the
// given layout, rebuilding it from the name map on a cache miss and
// populating the LRU cache for next time. Returns the mapping id now
// active, mirroring prepare_globals_for_function's short-circuit when
// the incoming id already matches the current mapping.
func (g *Globals) PrepareForLayout(layout *function.GlobalLayout) uint64 {
	mappingID := uint64(0)
	if layout != nil {
		mappingID = layout.ID()
	}

	if g.haveCurrent && mappingID == g.currentMapping {
		return mappingID
	}

	if layout == nil || layout.IsEmpty() {
		g.byIndex = g.byIndex[:0]
		g.currentMapping = mappingID
		g.haveCurrent = true
		g.mappingCache.Add(mappingID, []value.Value{})
		return mappingID
	}

	if cached, ok := g.mappingCache.Get(mappingID); ok {
		src := cached.([]value.Value)
		g.byIndex = append(g.byIndex[:0], src...)
		g.currentMapping = mappingID
		g.haveCurrent = true
		return mappingID
	}

	names := layout.Names()
	g.byIndex = make([]value.Value, len(names))
	for i, name := range names {
		if name == "" {
			g.byIndex[i] = value.Null
			continue
		}
		if v, ok := g.byName[name]; ok {
			g.byIndex[i] = v
		} else {
			g.byIndex[i] = value.Null
		}
	}

	g.currentMapping = mappingID
	g.haveCurrent = true
	snapshot := make([]value.Value, len(g.byIndex))
	copy(snapshot, g.byIndex)
	g.mappingCache.Add(mappingID, snapshot)
	return mappingID
}

// GetIndexed reads globals_by_index[idx] of the currently active mapping.
func (g *Globals) GetIndexed(idx int) value.Value {
	if idx < 0 || idx >= len(g.byIndex) {
		return value.Null
	}
	return g.byIndex[idx]
}

// SetIndexed writes globals_by_index[idx] of the currently active
// mapping; the write is flushed to the name map by SyncToNames.
func (g *Globals) SetIndexed(idx int, v value.Value) {
	if idx < 0 {
		return
	}
	for len(g.byIndex) <= idx {
		g.byIndex = append(g.byIndex, value.Null)
	}
	g.byIndex[idx] = v
}

// SyncToNames flushes the active globals_by_index array back into the
// name-keyed map for the given layout's name list, mirroring
// sync_globals_to_hashmap / sync_current_function_globals: it runs
// before a mapping switch (on call) and when a frame returns, so indexed writes are
// never silently lost when the active mapping changes underneath them.
func (g *Globals) SyncToNames(layout *function.GlobalLayout) {
	if layout == nil {
		return
	}
	for idx, name := range layout.Names() {
		if name == "" || idx >= len(g.byIndex) {
			continue
		}
		v := g.byIndex[idx]
		if !v.IsNull() {
			g.byName[name] = v
		}
	}
}

// InvalidateMappingCache drops every cached globals_by_index array. Used
// on any global write through SetGlobal (name path), since a write may
// change what a future PrepareForLayout would rebuild from the name map.
func (g *Globals) InvalidateMappingCache() {
	g.mappingCache.Purge()
	g.haveCurrent = false
}

// EachValue visits every value currently reachable through this table —
// both the name-keyed map and the active globals_by_index array — so the
// garbage collector can treat them as roots (spec.md §4.9).
func (g *Globals) EachValue(fn func(value.Value)) {
	for _, v := range g.byName {
		fn(v)
	}
	for _, v := range g.byIndex {
		fn(v)
	}
}

// Names returns every currently defined global name, for diagnostics
// (the "did you mean" hint).
func (g *Globals) Names() []string {
	names := make([]string, 0, len(g.byName))
	for n := range g.byName {
		names = append(names, n)
	}
	return names
}
