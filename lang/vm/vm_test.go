package vm

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/config"
	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/rterror"
	"github.com/aelys-lang/aelys/lang/value"
)

func newTestVM(t *testing.T) *VM {
	t.Helper()
	return New(&config.VmConfig{MaxHeapBytes: 1 << 20})
}

func mustExecute(t *testing.T, v *VM, fn *function.Function, args ...value.Value) value.Value {
	t.Helper()
	ref, err := v.Heap.AllocFunction(fn)
	if err != nil {
		t.Fatalf("AllocFunction: %v", err)
	}
	result, err := v.ExecuteFunction(ref, args)
	if err != nil {
		t.Fatalf("ExecuteFunction(%s, %s): %v", fn.Name, spew.Sdump(args), err)
	}
	return result
}

func TestExecuteFunctionAddsTwoInts(t *testing.T) {
	f := function.New("add", 2)
	f.NumRegisters = 3
	f.EmitA(bytecode.OpAdd, 2, 0, 1, 1)
	f.EmitA(bytecode.OpReturn, 2, 0, 0, 1)
	f.FinalizeBytecode()

	v := newTestVM(t)
	result := mustExecute(t, v, f, value.Int(3), value.Int(4))

	got, ok := result.AsInt()
	if !ok || got != 7 {
		t.Fatalf("expected 7, got %#v", result)
	}
}

func TestExecuteFunctionDivisionByZero(t *testing.T) {
	f := function.New("divzero", 0)
	f.NumRegisters = 2
	f.EmitB(bytecode.OpLoadI, 0, 1, 1)
	f.EmitB(bytecode.OpLoadI, 1, 0, 1)
	f.EmitA(bytecode.OpDiv, 0, 0, 1, 1)
	f.EmitA(bytecode.OpReturn, 0, 0, 0, 1)
	f.FinalizeBytecode()

	v := newTestVM(t)
	ref, err := v.Heap.AllocFunction(f)
	if err != nil {
		t.Fatalf("AllocFunction: %v", err)
	}
	_, err = v.ExecuteFunction(ref, nil)
	if err == nil {
		t.Fatal("expected a division-by-zero error")
	}
	rterr, ok := err.(*rterror.RuntimeError)
	if !ok || rterr.Kind != rterror.DivisionByZero {
		t.Fatalf("expected DivisionByZero, got %v", err)
	}
}

func TestExecuteFunctionCallsNativeFunction(t *testing.T) {
	v := newTestVM(t)

	double := func(_ any, args []value.Value) (value.Value, error) {
		n, _ := args[0].AsInt()
		return value.Int(n * 2), nil
	}
	nativeRef, err := v.Heap.AllocNative("double", 1, double)
	if err != nil {
		t.Fatalf("AllocNative: %v", err)
	}

	// Call reads its arguments from func+1..func+nargs, so the callee
	// (native ref) sits at r1 and its sole argument must land at r2 — the
	// incoming parameter (r0) is moved there first.
	f := function.New("caller", 1)
	f.NumRegisters = 3
	f.Constants = []value.Value{value.Ptr(uint32(nativeRef))}
	f.EmitB(bytecode.OpLoadK, 1, 0, 1)   // r1 = native ref
	f.EmitA(bytecode.OpMove, 2, 0, 0, 1) // r2 = r0 (the argument)
	f.EmitC(bytecode.OpCall, 1, 1, 1, 1) // r1 = call r1(r2)
	f.EmitA(bytecode.OpReturn, 1, 0, 0, 1)
	f.FinalizeBytecode()

	result := mustExecute(t, v, f, value.Int(21))
	got, ok := result.AsInt()
	if !ok || got != 42 {
		t.Fatalf("expected 42, got %#v", result)
	}
}

func TestExecuteFunctionClosureSharesUpvalueAcrossCalls(t *testing.T) {
	nested := function.New("increment", 0)
	nested.NumRegisters = 1
	nested.UpvalueDescs = []function.UpvalueDescriptor{{IsLocal: true, Index: 0}}
	nested.EmitB(bytecode.OpGetUpval, 0, 0, 1)
	nested.EmitB(bytecode.OpAddI, 0, 1, 1)
	nested.EmitB(bytecode.OpSetUpval, 0, 0, 1)
	nested.EmitA(bytecode.OpReturn, 0, 0, 0, 1)
	nested.FinalizeBytecode()

	outer := function.New("make_and_run", 0)
	outer.NumRegisters = 3
	outer.NestedFunctions = []*function.Function{nested}
	outer.EmitB(bytecode.OpLoadI, 0, 0, 1)      // r0 = 0, the captured counter
	outer.EmitB(bytecode.OpMakeClosure, 1, 0, 1) // r1 = closure over nested
	outer.EmitC(bytecode.OpCall, 2, 1, 0, 1)     // r2 = closure()
	outer.EmitC(bytecode.OpCall, 2, 1, 0, 1)     // r2 = closure() again
	outer.EmitA(bytecode.OpReturn, 2, 0, 0, 1)
	outer.FinalizeBytecode()

	v := newTestVM(t)
	result := mustExecute(t, v, outer)

	got, ok := result.AsInt()
	if !ok || got != 2 {
		t.Fatalf("expected the shared upvalue to read back 2, got %#v", result)
	}
}

func TestExecuteFunctionManualMemoryRoundTrip(t *testing.T) {
	f := function.New("mem_roundtrip", 0)
	f.NumRegisters = 5
	f.EmitB(bytecode.OpLoadI, 0, 4, 1)    // r0 = 4, allocation size
	f.EmitA(bytecode.OpAlloc, 1, 0, 0, 1) // r1 = alloc(r0)
	f.EmitB(bytecode.OpLoadI, 2, 0, 1)    // r2 = 0, offset
	f.EmitB(bytecode.OpLoadI, 3, 42, 1)   // r3 = 42, value
	f.EmitA(bytecode.OpStoreMem, 1, 2, 3, 1)
	f.EmitA(bytecode.OpLoadMem, 4, 1, 2, 1)
	f.EmitA(bytecode.OpFree, 1, 0, 0, 1)
	f.EmitA(bytecode.OpReturn, 4, 0, 0, 1)
	f.FinalizeBytecode()

	v := newTestVM(t)
	result := mustExecute(t, v, f)

	got, ok := result.AsInt()
	if !ok || got != 42 {
		t.Fatalf("expected 42 read back from manual memory, got %#v", result)
	}
}

func TestExecuteFunctionUseAfterFreeIsRejected(t *testing.T) {
	f := function.New("uaf", 0)
	f.NumRegisters = 3
	f.EmitB(bytecode.OpLoadI, 0, 1, 1)
	f.EmitA(bytecode.OpAlloc, 1, 0, 0, 1)
	f.EmitA(bytecode.OpFree, 1, 0, 0, 1)
	f.EmitB(bytecode.OpLoadI, 2, 0, 1)
	f.EmitA(bytecode.OpLoadMem, 1, 1, 2, 1)
	f.EmitA(bytecode.OpReturn, 1, 0, 0, 1)
	f.FinalizeBytecode()

	v := newTestVM(t)
	ref, err := v.Heap.AllocFunction(f)
	if err != nil {
		t.Fatalf("AllocFunction: %v", err)
	}
	if _, err := v.ExecuteFunction(ref, nil); err == nil {
		t.Fatal("expected a use-after-free error")
	}
}

func TestExecuteFunctionArrayGetSet(t *testing.T) {
	f := function.New("array_roundtrip", 0)
	f.NumRegisters = 4
	f.EmitB(bytecode.OpArrayNew, 0, 3, 1) // r0 = new array[3]
	f.EmitB(bytecode.OpLoadI, 1, 1, 1)    // r1 = index 1
	f.EmitB(bytecode.OpLoadI, 2, 99, 1)   // r2 = 99
	f.EmitA(bytecode.OpArraySet, 0, 1, 2, 1)
	f.EmitA(bytecode.OpArrayGet, 3, 0, 1, 1)
	f.EmitA(bytecode.OpReturn, 3, 0, 0, 1)
	f.FinalizeBytecode()

	v := newTestVM(t)
	result := mustExecute(t, v, f)
	got, ok := result.AsInt()
	if !ok || got != 99 {
		t.Fatalf("expected 99, got %#v", result)
	}
}

func TestSetArrayElemAtRejectsMismatchedKind(t *testing.T) {
	v := newTestVM(t)
	arr := &heap.ArrayObj{Elem: heap.ElemInt, Ints: make([]int64, 1)}

	if err := v.setArrayElemAt(arr, 0, value.Bool(true)); err == nil {
		t.Fatal("expected a TypeError storing a bool into an int array, not a silent drop")
	}
	if arr.Ints[0] != 0 {
		t.Fatalf("expected the element to be left untouched, got %d", arr.Ints[0])
	}
}

func TestExecuteFunctionVecPushPop(t *testing.T) {
	f := function.New("vec_roundtrip", 0)
	f.NumRegisters = 3
	f.EmitB(bytecode.OpVecNew, 0, 2, 1)  // r0 = new vec
	f.EmitB(bytecode.OpLoadI, 1, 7, 1)   // r1 = 7
	f.EmitA(bytecode.OpVecPush, 0, 1, 0, 1)
	f.EmitA(bytecode.OpVecPop, 2, 0, 0, 1)
	f.EmitA(bytecode.OpReturn, 2, 0, 0, 1)
	f.FinalizeBytecode()

	v := newTestVM(t)
	result := mustExecute(t, v, f)
	got, ok := result.AsInt()
	if !ok || got != 7 {
		t.Fatalf("expected 7, got %#v", result)
	}
}

func TestExecuteFunctionArityMismatch(t *testing.T) {
	f := function.New("wants_one", 1)
	f.NumRegisters = 1
	f.EmitA(bytecode.OpReturn, 0, 0, 0, 1)
	f.FinalizeBytecode()

	v := newTestVM(t)
	ref, err := v.Heap.AllocFunction(f)
	if err != nil {
		t.Fatalf("AllocFunction: %v", err)
	}
	if _, err := v.ExecuteFunction(ref, nil); err == nil {
		t.Fatal("expected an arity mismatch error")
	}
}

func TestExecuteFunctionAddConcatenatesTwoStrings(t *testing.T) {
	v := newTestVM(t)
	leftRef, err := v.Heap.InternString("x=")
	if err != nil {
		t.Fatalf("InternString: %v", err)
	}
	rightRef, err := v.Heap.InternString("42")
	if err != nil {
		t.Fatalf("InternString: %v", err)
	}

	f := function.New("concat", 0)
	f.NumRegisters = 3
	f.Constants = []value.Value{value.Ptr(uint32(leftRef)), value.Ptr(uint32(rightRef))}
	f.EmitB(bytecode.OpLoadK, 0, 0, 1)
	f.EmitB(bytecode.OpLoadK, 1, 1, 1)
	f.EmitA(bytecode.OpAdd, 2, 0, 1, 1)
	f.EmitA(bytecode.OpReturn, 2, 0, 0, 1)
	f.FinalizeBytecode()

	result := mustExecute(t, v, f)
	ref, ok := result.AsPtr()
	if !ok {
		t.Fatalf("expected a string reference, got %#v", result)
	}
	obj := v.Heap.Get(heap.GcRef(ref))
	if obj == nil || obj.Kind != heap.KindString || obj.Str.String() != "x=42" {
		t.Fatalf(`expected "x=42", got %#v`, obj)
	}
}

func TestExecuteFunctionAddRejectsStringPlusNumber(t *testing.T) {
	v := newTestVM(t)
	strRef, err := v.Heap.InternString("x=")
	if err != nil {
		t.Fatalf("InternString: %v", err)
	}

	f := function.New("mismatched_add", 0)
	f.NumRegisters = 3
	f.Constants = []value.Value{value.Ptr(uint32(strRef))}
	f.EmitB(bytecode.OpLoadK, 0, 0, 1)
	f.EmitB(bytecode.OpLoadI, 1, 42, 1)
	f.EmitA(bytecode.OpAdd, 2, 0, 1, 1)
	f.EmitA(bytecode.OpReturn, 2, 0, 0, 1)
	f.FinalizeBytecode()

	ref, err := v.Heap.AllocFunction(f)
	if err != nil {
		t.Fatalf("AllocFunction: %v", err)
	}
	if _, err := v.ExecuteFunction(ref, nil); err == nil {
		t.Fatal("expected string + int to raise a TypeError, not silently coerce")
	}
}

func TestExecuteFunctionStackOverflowOnUnboundedRecursion(t *testing.T) {
	f := function.New("rec", 0)
	f.NumRegisters = 2

	v := newTestVM(t)
	strRef, err := v.Heap.InternString("rec")
	if err != nil {
		t.Fatalf("InternString: %v", err)
	}
	f.Constants = []value.Value{value.Ptr(uint32(strRef))}
	f.EmitC(bytecode.OpCallGlobal, 1, 0, 0, 1)
	f.EmitCacheWords(1)
	f.EmitA(bytecode.OpReturn, 1, 0, 0, 1)
	f.FinalizeBytecode()

	ref, err := v.Heap.AllocFunction(f)
	if err != nil {
		t.Fatalf("AllocFunction: %v", err)
	}
	v.Globals.Set("rec", value.Ptr(uint32(ref)))

	if _, err := v.ExecuteFunction(ref, nil); err == nil {
		t.Fatal("expected a stack overflow error from unbounded recursion")
	} else if rterr, ok := err.(*rterror.RuntimeError); !ok || rterr.Kind != rterror.StackOverflow {
		t.Fatalf("expected StackOverflow, got %v", err)
	}
}
