package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/host"
	"github.com/aelys-lang/aelys/lang/value"
)

// TestAllocStoreLoadFreeRoundTrip exercises spec.md §8 scenario 1 through
// the registered natives rather than raw opcodes: alloc(10); store two
// values at the ends; load them back; free; sum == 142.
func TestAllocStoreLoadFreeRoundTrip(t *testing.T) {
	h := host.New()
	require.NoError(t, Register(h))

	p, err := h.CallFunctionByName("alloc", value.Int(10))
	require.NoError(t, err)

	_, err = h.CallFunctionByName("store", p, value.Int(0), value.Int(42))
	require.NoError(t, err)
	_, err = h.CallFunctionByName("store", p, value.Int(9), value.Int(100))
	require.NoError(t, err)

	a, err := h.CallFunctionByName("load", p, value.Int(0))
	require.NoError(t, err)
	b, err := h.CallFunctionByName("load", p, value.Int(9))
	require.NoError(t, err)

	_, err = h.CallFunctionByName("free", p)
	require.NoError(t, err)

	av, _ := a.AsInt()
	bv, _ := b.AsInt()
	assert.Equal(t, int64(142), av+bv)
}

// TestDoubleFreeErrors exercises spec.md §8 scenario 2.
func TestDoubleFreeErrors(t *testing.T) {
	h := host.New()
	require.NoError(t, Register(h))

	p, err := h.CallFunctionByName("alloc", value.Int(10))
	require.NoError(t, err)

	_, err = h.CallFunctionByName("free", p)
	require.NoError(t, err)

	_, err = h.CallFunctionByName("free", p)
	assert.Error(t, err)
}

// TestTypeReportsDistinctKinds confirms type() differentiates primitive
// and heap-object kinds rather than collapsing everything heap-backed
// into a single "object" label.
func TestTypeReportsDistinctKinds(t *testing.T) {
	h := host.New()
	require.NoError(t, Register(h))

	result, err := h.CallFunctionByName("type", value.Int(1))
	require.NoError(t, err)
	ref, ok := result.AsPtr()
	require.True(t, ok)
	assert.Equal(t, "int", h.VM().Heap.Get(heap.GcRef(ref)).Str.String())
}

// TestToStringRendersInt exercises spec.md §8 scenario 7's concatenation
// building block: __tostring(42) == "42".
func TestToStringRendersInt(t *testing.T) {
	h := host.New()
	require.NoError(t, Register(h))

	result, err := h.CallFunctionByName("__tostring", value.Int(42))
	require.NoError(t, err)
	ref, ok := result.AsPtr()
	require.True(t, ok)
	assert.Equal(t, "42", h.VM().Heap.Get(heap.GcRef(ref)).Str.String())
}

// TestScenario7StringConcatenationViaToString exercises spec.md §8
// scenario 7 in full: `"x=" + __tostring(42)` == "x=42", composing the
// registered __tostring native with OpAdd's string+string fallback.
func TestScenario7StringConcatenationViaToString(t *testing.T) {
	h := host.New()
	require.NoError(t, Register(h))

	prefixRef, err := h.VM().Heap.InternString("x=")
	require.NoError(t, err)
	nameRef, err := h.VM().Heap.InternString("__tostring")
	require.NoError(t, err)

	// CallGlobal's argument window is dest+1..dest+nargs, so with dest=2
	// the sole argument to __tostring must land in r3 before the call.
	f := function.New("scenario7", 0)
	f.NumRegisters = 4
	f.Constants = []value.Value{value.Ptr(uint32(prefixRef)), value.Ptr(uint32(nameRef))}
	f.EmitB(bytecode.OpLoadK, 0, 0, 1)          // r0 = "x="
	f.EmitB(bytecode.OpLoadI, 3, 42, 1)         // r3 = 42, the argument
	f.EmitC(bytecode.OpCallGlobal, 2, 1, 1, 1)  // r2 = __tostring(r3)
	f.EmitCacheWords(1)
	f.EmitA(bytecode.OpAdd, 1, 0, 2, 1) // r1 = r0 + r2
	f.EmitA(bytecode.OpReturn, 1, 0, 0, 1)
	f.FinalizeBytecode()

	ref, err := h.AllocFunction("scenario7", f)
	require.NoError(t, err)
	result, err := h.Execute(ref, nil)
	require.NoError(t, err)

	strRef, ok := result.AsPtr()
	require.True(t, ok)
	assert.Equal(t, "x=42", h.VM().Heap.Get(heap.GcRef(strRef)).Str.String())
}
