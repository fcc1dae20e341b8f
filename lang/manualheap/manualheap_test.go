package manualheap

import (
	"testing"

	"github.com/aelys-lang/aelys/lang/rterror"
	"github.com/aelys-lang/aelys/lang/value"
)

func asRuntimeError(t *testing.T, err error) *rterror.RuntimeError {
	t.Helper()
	rterr, ok := err.(*rterror.RuntimeError)
	if !ok {
		t.Fatalf("expected a *rterror.RuntimeError, got %T: %v", err, err)
	}
	return rterr
}

func TestAllocStoreLoadRoundTrip(t *testing.T) {
	m := New()
	handle, err := m.Alloc(4, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := m.Store(handle, 0, value.Int(42)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := m.Load(handle, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	n, ok := got.AsInt()
	if !ok || n != 42 {
		t.Fatalf("expected 42, got %#v", got)
	}
}

func TestAllocZeroSizeIsRejected(t *testing.T) {
	m := New()
	if _, err := m.Alloc(0, 1); err == nil {
		t.Fatal("expected alloc(0) to be rejected")
	} else if asRuntimeError(t, err).Kind != rterror.InvalidAllocationSize {
		t.Fatalf("expected InvalidAllocationSize, got %v", err)
	}
}

func TestDoubleFreeIsDistinguishedFromInvalidHandle(t *testing.T) {
	m := New()
	handle, err := m.Alloc(1, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := m.Free(handle, 2); err != nil {
		t.Fatalf("Free: %v", err)
	}

	err = m.Free(handle, 3)
	if err == nil {
		t.Fatal("expected the second free to error")
	}
	if asRuntimeError(t, err).Kind != rterror.DoubleFree {
		t.Fatalf("expected DoubleFree, got %v", err)
	}

	_, err = m.Load(999, 0)
	if err == nil {
		t.Fatal("expected loading a never-allocated handle to error")
	}
	if asRuntimeError(t, err).Kind != rterror.InvalidMemoryHandle {
		t.Fatalf("expected InvalidMemoryHandle for a bogus handle, got %v", err)
	}
}

func TestUseAfterFreeIsRejected(t *testing.T) {
	m := New()
	handle, err := m.Alloc(2, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := m.Free(handle, 2); err != nil {
		t.Fatalf("Free: %v", err)
	}

	if _, err := m.Load(handle, 0); err == nil {
		t.Fatal("expected loading a freed handle to error")
	} else if asRuntimeError(t, err).Kind != rterror.UseAfterFree {
		t.Fatalf("expected UseAfterFree, got %v", err)
	}

	if err := m.Store(handle, 0, value.Int(1)); err == nil {
		t.Fatal("expected storing into a freed handle to error")
	} else if asRuntimeError(t, err).Kind != rterror.UseAfterFree {
		t.Fatalf("expected UseAfterFree, got %v", err)
	}
}

func TestOutOfBoundsOffsetIsRejected(t *testing.T) {
	m := New()
	handle, err := m.Alloc(2, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := m.Load(handle, 5); err == nil {
		t.Fatal("expected an out-of-bounds load to error")
	} else if asRuntimeError(t, err).Kind != rterror.MemoryOutOfBounds {
		t.Fatalf("expected MemoryOutOfBounds, got %v", err)
	}
	if _, err := m.Load(handle, -1); err == nil {
		t.Fatal("expected a negative offset to error")
	}
}

func TestFreedHandleIsReusedByAlloc(t *testing.T) {
	m := New()
	h1, err := m.Alloc(1, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := m.Free(h1, 2); err != nil {
		t.Fatalf("Free: %v", err)
	}
	h2, err := m.Alloc(1, 3)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if h2 != h1 {
		t.Fatalf("expected the freed handle %d to be reused, got %d", h1, h2)
	}
	// The reused handle must read back as live, not freed.
	if _, err := m.Load(h2, 0); err != nil {
		t.Fatalf("expected the reused handle to be usable, got %v", err)
	}
}

func TestBytesAllocatedTracksAllocAndFree(t *testing.T) {
	m := New()
	if m.BytesAllocated() != 0 {
		t.Fatalf("expected a fresh heap to report 0 bytes, got %d", m.BytesAllocated())
	}
	handle, err := m.Alloc(4, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if m.BytesAllocated() == 0 {
		t.Fatal("expected bytes_allocated to grow after Alloc")
	}
	if err := m.Free(handle, 2); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if m.BytesAllocated() != 0 {
		t.Fatalf("expected bytes_allocated to return to 0 after freeing the only allocation, got %d", m.BytesAllocated())
	}
}

func TestEachValueSkipsFreedAllocations(t *testing.T) {
	m := New()
	live, err := m.Alloc(1, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := m.Store(live, 0, value.Int(7)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	freed, err := m.Alloc(1, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := m.Store(freed, 0, value.Int(99)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := m.Free(freed, 2); err != nil {
		t.Fatalf("Free: %v", err)
	}

	var seen []value.Value
	m.EachValue(func(v value.Value) { seen = append(seen, v) })

	if len(seen) != 1 {
		t.Fatalf("expected exactly one value from the still-live allocation, got %d", len(seen))
	}
	n, _ := seen[0].AsInt()
	if n != 7 {
		t.Fatalf("expected the live allocation's value 7, got %d", n)
	}
}
