package heap

import (
	"testing"

	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/value"
)

func TestInternStringIsIdempotent(t *testing.T) {
	h := New(1 << 20)

	ref1, err := h.InternString("hello")
	if err != nil {
		t.Fatalf("InternString: %v", err)
	}
	ref2, err := h.InternString("hello")
	if err != nil {
		t.Fatalf("InternString: %v", err)
	}
	if ref1 != ref2 {
		t.Fatalf("expected identical content to intern to the same ref, got %v and %v", ref1, ref2)
	}

	other, err := h.InternString("world")
	if err != nil {
		t.Fatalf("InternString: %v", err)
	}
	if other == ref1 {
		t.Fatal("distinct content interned to the same ref")
	}
}

func TestAllocFunctionTracksBytesAllocated(t *testing.T) {
	h := New(1 << 20)
	before := h.BytesAllocated()

	fn := function.New("f", 0)
	if _, err := h.AllocFunction(fn); err != nil {
		t.Fatalf("AllocFunction: %v", err)
	}

	if h.BytesAllocated() <= before {
		t.Fatalf("expected bytes_allocated to grow, stayed at %d", h.BytesAllocated())
	}
}

func TestReserveRejectsOverCombinedBudget(t *testing.T) {
	h := New(64)
	h.OtherBytes = func() uint64 { return 0 }

	if _, err := h.InternString("this string is long enough to exceed a 64 byte heap budget on its own"); err == nil {
		t.Fatal("expected an OutOfMemory error once the request exceeds MaxHeapBytes")
	}
}

func TestReserveCountsOtherBytesAgainstBudget(t *testing.T) {
	h := New(128)
	h.OtherBytes = func() uint64 { return 128 }

	if _, err := h.InternString("x"); err == nil {
		t.Fatal("expected manual-heap usage (OtherBytes) to count against the combined budget")
	}
}

func TestGetReturnsNilPastEndOfSlab(t *testing.T) {
	h := New(1 << 20)
	if obj := h.Get(GcRef(999)); obj != nil {
		t.Fatalf("expected nil for an unallocated ref, got %#v", obj)
	}
}

func TestAllocUpvalueStartsOpen(t *testing.T) {
	h := New(1 << 20)
	ref, err := h.AllocUpvalue(3)
	if err != nil {
		t.Fatalf("AllocUpvalue: %v", err)
	}
	obj := h.Get(ref)
	if obj == nil || obj.Kind != KindUpvalue {
		t.Fatalf("expected a KindUpvalue object, got %#v", obj)
	}
	if !obj.Upvalue.Location.Open || obj.Upvalue.Location.StackIndex != 3 {
		t.Fatalf("expected an open upvalue at stack index 3, got %#v", obj.Upvalue.Location)
	}
}

func TestAllocNativeRoundTripsThroughCall(t *testing.T) {
	h := New(1 << 20)
	called := false
	ref, err := h.AllocNative("probe", 0, func(_ any, _ []value.Value) (value.Value, error) {
		called = true
		return value.Int(1), nil
	})
	if err != nil {
		t.Fatalf("AllocNative: %v", err)
	}
	obj := h.Get(ref)
	if obj == nil || obj.Kind != KindNative {
		t.Fatalf("expected a KindNative object, got %#v", obj)
	}
	result, err := obj.Native.Go(nil, nil)
	if err != nil {
		t.Fatalf("Go: %v", err)
	}
	if !called {
		t.Fatal("expected the registered native to have run")
	}
	n, ok := result.AsInt()
	if !ok || n != 1 {
		t.Fatalf("expected 1, got %#v", result)
	}
}

func TestFreeSlotIsReusedByInsert(t *testing.T) {
	h := New(1 << 20)
	ref1, err := h.AllocUpvalue(0)
	if err != nil {
		t.Fatalf("AllocUpvalue: %v", err)
	}
	h.freeList = append(h.freeList, uint32(ref1))
	h.objects[ref1] = nil

	ref2, err := h.AllocUpvalue(1)
	if err != nil {
		t.Fatalf("AllocUpvalue: %v", err)
	}
	if ref2 != ref1 {
		t.Fatalf("expected insert to reuse the freed slot %v, got %v", ref1, ref2)
	}
}
