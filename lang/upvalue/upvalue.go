// Package upvalue tracks the set of stack indices that currently have a
// live Open upvalue, and implements the CloseUpvals lifecycle transition.
//
// Grounded on spec.md §4.7 and aelys-runtime/src/vm/frame.rs's framing of
// the "open upvalue list"; the teacher's dependency list includes
// deckarep/golang-set, used here for the open-index set exactly the way
// a production Go port would reach for a set type instead of hand-rolling
// map[int]struct{} bookkeeping.
package upvalue

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// Manager owns the mapping from an open stack index to its Upvalue
// object's GcRef. At most one Open upvalue exists per live stack slot
// (spec.md §4.7 invariant).
type Manager struct {
	openByIndex map[int]heap.GcRef
	openIndices mapset.Set
}

func New() *Manager {
	return &Manager{
		openByIndex: make(map[int]heap.GcRef),
		openIndices: mapset.NewSet(),
	}
}

// FindOrCreate returns the existing open upvalue for stackIndex, reusing
// it per spec.md §4.7 step 1, or allocates a new one via h.AllocUpvalue.
func (m *Manager) FindOrCreate(h *heap.Heap, stackIndex int) (heap.GcRef, error) {
	if ref, ok := m.openByIndex[stackIndex]; ok {
		return ref, nil
	}
	ref, err := h.AllocUpvalue(stackIndex)
	if err != nil {
		return 0, err
	}
	m.openByIndex[stackIndex] = ref
	m.openIndices.Add(stackIndex)
	return ref, nil
}

// CloseFrom closes every open upvalue at a stack index >= fromIndex: it
// copies the live register-stack value (read via stackGet) into the
// upvalue object and marks it Closed, then drops it from the open set.
// After this call no Open upvalue refers to a slot >= fromIndex, and a
// Closed upvalue never reverts to Open (spec.md §4.7 invariants).
func (m *Manager) CloseFrom(h *heap.Heap, fromIndex int, stackGet func(int) value.Value) {
	for idx := range m.openByIndex {
		if idx < fromIndex {
			continue
		}
		ref := m.openByIndex[idx]
		if obj := h.Get(ref); obj != nil && obj.Kind == heap.KindUpvalue {
			obj.Upvalue.Location = heap.UpvalueLocation{Open: false, Closed: stackGet(idx)}
		}
		delete(m.openByIndex, idx)
		m.openIndices.Remove(idx)
	}
}

// IsOpen reports whether stackIndex currently has a live open upvalue.
func (m *Manager) IsOpen(stackIndex int) bool {
	return m.openIndices.Contains(stackIndex)
}

// Len returns the number of currently open upvalues, for diagnostics.
func (m *Manager) Len() int {
	return len(m.openByIndex)
}
