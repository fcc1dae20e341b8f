package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/value"
)

// TestCallFunctionByNameRunsRegisteredFunction exercises the embedding
// surface end to end — the same "allocate, register under a name, call
// by name" flow a REPL or stdlib loader drives.
func TestCallFunctionByNameRunsRegisteredFunction(t *testing.T) {
	h := New()

	f := function.New("double", 1)
	f.NumRegisters = 2
	f.EmitB(bytecode.OpLoadI, 1, 2, 1)
	f.EmitA(bytecode.OpMul, 0, 0, 1, 1)
	f.EmitA(bytecode.OpReturn, 0, 0, 0, 1)
	f.FinalizeBytecode()

	_, err := h.AllocFunction("double", f)
	require.NoError(t, err)

	result, err := h.CallFunctionByName("double", value.Int(21))
	require.NoError(t, err)

	got, ok := result.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(42), got)
}

// TestCallFunctionByNameUnknownNameErrors confirms the host surfaces a
// plain error rather than panicking when no function was ever registered
// under the requested name.
func TestCallFunctionByNameUnknownNameErrors(t *testing.T) {
	h := New()
	_, err := h.CallFunctionByName("nonexistent")
	assert.Error(t, err)
}

// TestSetGlobalGetGlobalRoundTrips confirms spec.md §8 universal
// invariant 7's first half: set_global(name, v) then get_global(name)
// == v.
func TestSetGlobalGetGlobalRoundTrips(t *testing.T) {
	h := New()
	h.SetGlobal("answer", value.Int(42))

	got, ok := h.GetGlobal("answer")
	require.True(t, ok)
	n, ok := got.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)
}

// TestAllocNativeIsCallableByName confirms a host-registered Go native
// is reachable through the same by-name call path as a compiled function.
func TestAllocNativeIsCallableByName(t *testing.T) {
	h := New()
	_, err := h.AllocNative("negate", 1, func(_ any, args []value.Value) (value.Value, error) {
		n, _ := args[0].AsInt()
		return value.Int(-n), nil
	})
	require.NoError(t, err)

	result, err := h.CallFunctionByName("negate", value.Int(7))
	require.NoError(t, err)
	n, ok := result.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(-7), n)
}
