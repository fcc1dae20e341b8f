package callsite

import (
	"testing"

	"github.com/aelys-lang/aelys/lang/heap"
)

func TestGetGrowsTableAndStartsInvalid(t *testing.T) {
	c := New()
	e := c.Get(10)
	if e.Valid {
		t.Fatal("expected a freshly grown slot to read back as !Valid")
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	c := New()
	c.Set(3, Entry{Valid: true, IsNative: true, Arity: 2})

	e := c.Get(3)
	if !e.Valid || !e.IsNative || e.Arity != 2 {
		t.Fatalf("expected the stored entry back, got %#v", e)
	}
}

func TestWipeAllInvalidatesEveryEntry(t *testing.T) {
	c := New()
	c.Set(0, Entry{Valid: true})
	c.Set(5, Entry{Valid: true})

	c.WipeAll()

	if c.Get(0).Valid || c.Get(5).Valid {
		t.Fatal("expected WipeAll to invalidate every previously set slot")
	}
}

func TestCheapRecheckRejectsInvalidEntry(t *testing.T) {
	c := New()
	h := heap.New(1 << 20)
	e := c.Get(0)
	if c.CheapRecheck(h, e) {
		t.Fatal("expected an invalid entry to fail recheck")
	}
}

func TestCheapRecheckDetectsRecycledNativeSlot(t *testing.T) {
	h := heap.New(1 << 20)
	ref, err := h.AllocNative("n", 1, nil)
	if err != nil {
		t.Fatalf("AllocNative: %v", err)
	}

	c := New()
	e := Entry{Valid: true, IsNative: true, NativeRef: ref}
	c.Set(0, e)

	if !c.CheapRecheck(h, c.Get(0)) {
		t.Fatal("expected a still-live native to pass recheck")
	}

	// Simulate the slot being recycled for a different object kind (e.g.
	// after a GC sweep reused the slot for a string).
	strRef, err := h.InternString("recycled")
	if err != nil {
		t.Fatalf("InternString: %v", err)
	}
	stale := Entry{Valid: true, IsNative: true, NativeRef: strRef}
	c.Set(1, stale)
	if c.CheapRecheck(h, c.Get(1)) {
		t.Fatal("expected recheck to reject a native ref now pointing at a non-native object")
	}
}

func TestCheapRecheckRejectsCalleeRefOfWrongKind(t *testing.T) {
	h := heap.New(1 << 20)

	// A CalleeRef pointing at a native (wrong kind for a cached
	// Aelys-callable entry) must fail recheck.
	nativeRef, err := h.AllocNative("n", 1, nil)
	if err != nil {
		t.Fatalf("AllocNative: %v", err)
	}

	c := New()
	e := Entry{Valid: true, CalleeRef: nativeRef, Arity: 1}
	c.Set(0, e)

	if c.CheapRecheck(h, c.Get(0)) {
		t.Fatal("expected recheck to reject a CalleeRef whose object kind isn't Function")
	}
}
