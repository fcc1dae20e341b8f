// Package manualheap implements Aelys's handle-based manual-memory
// arena: alloc/free/load/store with mandatory use-after-free and
// double-free detection, orthogonal to the managed (GC'd) heap.
//
// Grounded on runtime/src/vm/manual_heap/{alloc.rs,access.rs}: allocations
// live in a growable slab with an explicit freed flag and a reusable free
// list of handle indices, so a double-free and a use-after-free are
// distinguishable outcomes — unlike the teacher's probe-lang/lang/vm/memory.go,
// whose Free deletes the map entry and so cannot tell a double-free from
// an invalid handle. DESIGN.md records this as a deliberate divergence
// from the teacher in favor of the original's more precise state machine.
package manualheap

import (
	"github.com/aelys-lang/aelys/lang/rterror"
	"github.com/aelys-lang/aelys/lang/value"
)

type allocation struct {
	data      []value.Value
	freed     bool
	allocLine uint32
	freedLine uint32
}

// ManualHeap is the slot arena. It counts its own bytes_allocated so the
// VM can enforce the combined budget against max_heap_bytes (spec.md
// §4.9) alongside the managed heap.
type ManualHeap struct {
	allocations    []allocation
	freeList       []int
	bytesAllocated uint64
}

func New() *ManualHeap {
	return &ManualHeap{}
}

func (m *ManualHeap) BytesAllocated() uint64 { return m.bytesAllocated }

func allocationBytes(size int) uint64 {
	const valueSize = 16
	return uint64(size) * valueSize
}

// Alloc reserves size slots, all initialized to null, and returns a
// handle usable with Load/Store/Free. size == 0 is rejected.
func (m *ManualHeap) Alloc(size int, line uint32) (int, error) {
	if size <= 0 {
		return 0, &rterror.RuntimeError{Kind: rterror.InvalidAllocationSize, Size: int64(size)}
	}

	data := make([]value.Value, size)
	alloc := allocation{data: data, allocLine: line}

	var handle int
	if n := len(m.freeList); n > 0 {
		handle = m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		m.allocations[handle] = alloc
	} else {
		handle = len(m.allocations)
		m.allocations = append(m.allocations, alloc)
	}

	m.bytesAllocated += allocationBytes(size)
	return handle, nil
}

func (m *ManualHeap) get(handle int) (*allocation, error) {
	if handle < 0 || handle >= len(m.allocations) {
		return nil, &rterror.RuntimeError{Kind: rterror.InvalidMemoryHandle}
	}
	return &m.allocations[handle], nil
}

// Free marks handle freed and returns its slot to the free list. A
// second Free on the same handle is a DoubleFree.
func (m *ManualHeap) Free(handle int, line uint32) error {
	alloc, err := m.get(handle)
	if err != nil {
		return err
	}
	if alloc.freed {
		return &rterror.RuntimeError{Kind: rterror.DoubleFree}
	}

	alloc.freed = true
	alloc.freedLine = line

	m.bytesAllocated -= minU64(m.bytesAllocated, allocationBytes(len(alloc.data)))
	alloc.data = nil
	m.freeList = append(m.freeList, handle)
	return nil
}

// Load reads offset within handle's allocation. Fails with UseAfterFree
// if handle was freed, or MemoryOutOfBounds if offset is out of range.
func (m *ManualHeap) Load(handle, offset int) (value.Value, error) {
	alloc, err := m.get(handle)
	if err != nil {
		return value.Null, err
	}
	if alloc.freed {
		return value.Null, &rterror.RuntimeError{Kind: rterror.UseAfterFree}
	}
	if offset < 0 || offset >= len(alloc.data) {
		return value.Null, &rterror.RuntimeError{Kind: rterror.MemoryOutOfBounds, Offset: offset, MemSize: len(alloc.data)}
	}
	return alloc.data[offset], nil
}

// Store writes v at offset within handle's allocation.
func (m *ManualHeap) Store(handle, offset int, v value.Value) error {
	alloc, err := m.get(handle)
	if err != nil {
		return err
	}
	if alloc.freed {
		return &rterror.RuntimeError{Kind: rterror.UseAfterFree}
	}
	if offset < 0 || offset >= len(alloc.data) {
		return &rterror.RuntimeError{Kind: rterror.MemoryOutOfBounds, Offset: offset, MemSize: len(alloc.data)}
	}
	alloc.data[offset] = v
	return nil
}

// Size returns the allocation's slot count.
func (m *ManualHeap) Size(handle int) (int, error) {
	alloc, err := m.get(handle)
	if err != nil {
		return 0, err
	}
	if alloc.freed {
		return 0, &rterror.RuntimeError{Kind: rterror.UseAfterFree}
	}
	return len(alloc.data), nil
}

// EachValue visits every value currently stored in a live (non-freed)
// allocation, so the managed heap's garbage collector can treat manual
// memory as a root set too — a Value stored via StoreMem may itself hold
// a GcRef into the managed heap (spec.md §4.9).
func (m *ManualHeap) EachValue(fn func(value.Value)) {
	for i := range m.allocations {
		if m.allocations[i].freed {
			continue
		}
		for _, v := range m.allocations[i].data {
			fn(v)
		}
	}
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
