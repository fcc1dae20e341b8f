// Package callsite implements the polymorphic/monomorphic inline cache
// backing the CallGlobal/CallGlobalMono/CallGlobalNative instruction
// family: per-call-site metadata stored out-of-band so GC and global
// mutation can invalidate it by clearing the cache, without ever
// rewriting bytecode.
//
// Grounded on aelys-runtime/src/vm/core.rs's CallSiteCacheEntry; the
// original packs raw pointer+length pairs for dispatch-loop speed, Go's
// GC'd slices stand in for those pairs here with no unsafe pointer
// arithmetic required.
package callsite

import "github.com/aelys-lang/aelys/lang/heap"

// MaxSlots bounds how many call sites one function may declare (its
// CallSiteCount, checked by lang/verify), matching spec.md §5's
// MAX_CALL_SITE_SLOTS.
const MaxSlots = 4096

// Entry caches what a monomorphic CallGlobal* site resolved to: either a
// native function identity (for CallGlobalNative) or an Aelys
// function/closure's cached call shape (for CallGlobalMono).
type Entry struct {
	Valid bool

	IsNative  bool
	NativeRef heap.GcRef // identity check: must still be live and same kind

	IsClosure bool
	CalleeRef heap.GcRef // Function or Closure object this site resolved to

	Arity        uint8
	NumRegisters uint8
	CalleeGMap   uint64 // the callee's global_mapping_id, cached to skip relookup
}

// Cache is one calling function's call-site cache, indexed by a slot
// number the caller chooses (lang/vm uses the call instruction's word
// offset within the function).
type Cache struct {
	entries []Entry
}

func New() *Cache {
	return &Cache{}
}

// Get returns the entry at slot, growing the table if needed. A freshly
// grown or wiped slot reads back as !Valid.
func (c *Cache) Get(slot int) *Entry {
	for len(c.entries) <= slot {
		c.entries = append(c.entries, Entry{})
	}
	return &c.entries[slot]
}

// Set stores a resolved entry at slot.
func (c *Cache) Set(slot int, e Entry) {
	for len(c.entries) <= slot {
		c.entries = append(c.entries, Entry{})
	}
	c.entries[slot] = e
}

// WipeAll invalidates every cached entry. Called on any set_global,
// set_global_by_index, or GC sweep that may recycle object slot
// identities (spec.md §4.8's "wipe-all on any global write" strategy,
// the simpler of the two options spec.md §9 allows).
func (c *Cache) WipeAll() {
	for i := range c.entries {
		c.entries[i] = Entry{}
	}
}

// CheapRecheck re-validates a cached entry before use: pointer identity
// for a cached native, arity equality for a cached Aelys callable —
// because GC can recycle a slot for an object of a different kind
// between calls (spec.md §4.8's invariant).
func (c *Cache) CheapRecheck(h *heap.Heap, e *Entry) bool {
	if !e.Valid {
		return false
	}
	if e.IsNative {
		obj := h.Get(e.NativeRef)
		return obj != nil && obj.Kind == heap.KindNative
	}
	if e.IsClosure {
		obj := h.Get(e.CalleeRef)
		if obj == nil || obj.Kind != heap.KindClosure {
			return false
		}
		fnObj := h.Get(obj.Closure.FunctionRef)
		return fnObj != nil && fnObj.Kind == heap.KindFunction && fnObj.Func.Fn.Arity == e.Arity
	}
	obj := h.Get(e.CalleeRef)
	if obj == nil || obj.Kind != heap.KindFunction {
		return false
	}
	return obj.Func.Fn.Arity == e.Arity
}
