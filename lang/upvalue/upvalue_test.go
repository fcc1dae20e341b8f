package upvalue

import (
	"testing"

	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

func TestFindOrCreateReusesExistingOpenUpvalue(t *testing.T) {
	h := heap.New(1 << 20)
	m := New()

	ref1, err := m.FindOrCreate(h, 2)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	ref2, err := m.FindOrCreate(h, 2)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if ref1 != ref2 {
		t.Fatalf("expected the same stack index to reuse one open upvalue, got %v and %v", ref1, ref2)
	}
	if !m.IsOpen(2) {
		t.Fatal("expected stack index 2 to report open")
	}
	if m.Len() != 1 {
		t.Fatalf("expected exactly one open upvalue, got %d", m.Len())
	}
}

func TestFindOrCreateDistinctIndicesAllocateDistinctUpvalues(t *testing.T) {
	h := heap.New(1 << 20)
	m := New()

	ref1, err := m.FindOrCreate(h, 0)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	ref2, err := m.FindOrCreate(h, 1)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if ref1 == ref2 {
		t.Fatal("expected distinct stack indices to get distinct upvalues")
	}
}

func TestCloseFromClosesUpvaluesAtOrAboveIndex(t *testing.T) {
	h := heap.New(1 << 20)
	m := New()

	if _, err := m.FindOrCreate(h, 0); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	ref1, err := m.FindOrCreate(h, 1)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	ref2, err := m.FindOrCreate(h, 2)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	stack := map[int]value.Value{1: value.Int(10), 2: value.Int(20)}
	m.CloseFrom(h, 1, func(idx int) value.Value { return stack[idx] })

	if m.IsOpen(1) || m.IsOpen(2) {
		t.Fatal("expected indices >= 1 to no longer be open")
	}
	if !m.IsOpen(0) {
		t.Fatal("expected index 0 (below fromIndex) to remain open")
	}
	if m.Len() != 1 {
		t.Fatalf("expected one remaining open upvalue, got %d", m.Len())
	}

	obj1 := h.Get(ref1)
	if obj1.Upvalue.Location.Open {
		t.Fatal("expected upvalue at index 1 to be closed")
	}
	got1, _ := obj1.Upvalue.Location.Closed.AsInt()
	if got1 != 10 {
		t.Fatalf("expected the closed value 10, got %d", got1)
	}

	obj2 := h.Get(ref2)
	got2, _ := obj2.Upvalue.Location.Closed.AsInt()
	if got2 != 20 {
		t.Fatalf("expected the closed value 20, got %d", got2)
	}
}

func TestCloseFromNeverReopens(t *testing.T) {
	h := heap.New(1 << 20)
	m := New()

	ref, err := m.FindOrCreate(h, 0)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	m.CloseFrom(h, 0, func(int) value.Value { return value.Int(5) })

	// Re-requesting the same stack index after it closed must allocate a
	// fresh, independent open upvalue rather than resurrecting the closed
	// one — the closed object itself never flips back to Open.
	ref2, err := m.FindOrCreate(h, 0)
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if ref2 == ref {
		t.Fatal("expected a fresh upvalue object for the re-requested index")
	}
	closedObj := h.Get(ref)
	if closedObj.Upvalue.Location.Open {
		t.Fatal("expected the original upvalue to remain closed")
	}
}
