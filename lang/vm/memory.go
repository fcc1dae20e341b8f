package vm

import (
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// Manual-memory and array/vector opcode handlers. Grounded on
// runtime/src/vm/manual_heap/{alloc.rs,access.rs} via lang/manualheap,
// which already implements the InvalidAllocationSize / DoubleFree /
// UseAfterFree / MemoryOutOfBounds taxonomy; this layer translates Value
// operands into the int handle/offset manualheap expects, raises
// NegativeMemoryIndex itself for a negative operand where it checks one,
// and stamps a frame-aware stack trace onto whatever manualheap returns.

func asMemIndex(v value.Value) (int, bool) {
	n, ok := v.AsInt()
	return int(n), ok
}

func (vm *VM) opAlloc(sizeVal value.Value) (value.Value, error) {
	size, ok := sizeVal.AsInt()
	if !ok {
		return value.Null, vm.typeError("alloc", "int", sizeVal.Kind().String())
	}
	handle, err := vm.Manual.Alloc(int(size), vm.currentLine())
	if err != nil {
		return value.Null, vm.attachTrace(err)
	}
	return value.Int(int64(handle)), nil
}

func (vm *VM) opFree(handleVal value.Value) error {
	handle, ok := asMemIndex(handleVal)
	if !ok {
		return vm.typeError("free", "int", handleVal.Kind().String())
	}
	if handle < 0 {
		return vm.attachTrace(negativeIndexErr(int64(handle)))
	}
	if err := vm.Manual.Free(handle, vm.currentLine()); err != nil {
		return vm.attachTrace(err)
	}
	return nil
}

func (vm *VM) opLoadMem(handleVal, offsetVal value.Value) (value.Value, error) {
	handle, ok := asMemIndex(handleVal)
	if !ok {
		return value.Null, vm.typeError("load", "int", handleVal.Kind().String())
	}
	offset, ok := asMemIndex(offsetVal)
	if !ok {
		return value.Null, vm.typeError("load", "int", offsetVal.Kind().String())
	}
	if handle < 0 || offset < 0 {
		return value.Null, vm.attachTrace(negativeIndexErr(int64(minInt(handle, offset))))
	}
	v, err := vm.Manual.Load(handle, offset)
	if err != nil {
		return value.Null, vm.attachTrace(err)
	}
	return v, nil
}

func (vm *VM) opStoreMem(handleVal, offsetVal, v value.Value) error {
	handle, ok := asMemIndex(handleVal)
	if !ok {
		return vm.typeError("store", "int", handleVal.Kind().String())
	}
	offset, ok := asMemIndex(offsetVal)
	if !ok {
		return vm.typeError("store", "int", offsetVal.Kind().String())
	}
	if handle < 0 || offset < 0 {
		return vm.attachTrace(negativeIndexErr(int64(minInt(handle, offset))))
	}
	if err := vm.Manual.Store(handle, offset, v); err != nil {
		return vm.attachTrace(err)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ---- arrays and vectors -----------------------------------------------

func (vm *VM) opArrayNew(length int) (value.Value, error) {
	ref, err := vm.Heap.AllocArray(&heap.ArrayObj{Elem: heap.ElemRef, Refs: make([]value.Value, length)})
	if err != nil {
		return value.Null, vm.attachTrace(err)
	}
	return value.Ptr(uint32(ref)), nil
}

func (vm *VM) opArrayGet(arr value.Value, idxVal value.Value) (value.Value, error) {
	ref, ok := arr.AsPtr()
	if !ok {
		return value.Null, vm.typeError("array index", "array", arr.Kind().String())
	}
	obj := vm.Heap.Get(heap.GcRef(ref))
	if obj == nil || obj.Kind != heap.KindArray {
		return value.Null, vm.typeError("array index", "array", "object")
	}
	idx, ok := idxVal.AsInt()
	if !ok {
		return value.Null, vm.typeError("array index", "int", idxVal.Kind().String())
	}
	if idx < 0 || idx >= int64(obj.Array.Len()) {
		return value.Null, vm.indexOutOfBounds(idx, int64(obj.Array.Len()))
	}
	return arrayElemAt(obj.Array, int(idx)), nil
}

func (vm *VM) opArraySet(arr, idxVal, v value.Value) error {
	ref, ok := arr.AsPtr()
	if !ok {
		return vm.typeError("array index", "array", arr.Kind().String())
	}
	obj := vm.Heap.Get(heap.GcRef(ref))
	if obj == nil || obj.Kind != heap.KindArray {
		return vm.typeError("array index", "array", "object")
	}
	idx, ok := idxVal.AsInt()
	if !ok {
		return vm.typeError("array index", "int", idxVal.Kind().String())
	}
	if idx < 0 || idx >= int64(obj.Array.Len()) {
		return vm.indexOutOfBounds(idx, int64(obj.Array.Len()))
	}
	return vm.setArrayElemAt(obj.Array, int(idx), v)
}

func arrayElemAt(a *heap.ArrayObj, i int) value.Value {
	switch a.Elem {
	case heap.ElemInt:
		return value.Int(a.Ints[i])
	case heap.ElemFloat:
		return value.Float(a.Flts[i])
	case heap.ElemBool:
		return value.Bool(a.Bools[i])
	default:
		return a.Refs[i]
	}
}

// setArrayElemAt stores v into a's element i, raising a TypeError rather
// than silently dropping the write when v's kind doesn't match the
// array's element kind, matching this file's other typed operations.
func (vm *VM) setArrayElemAt(a *heap.ArrayObj, i int, v value.Value) error {
	switch a.Elem {
	case heap.ElemInt:
		n, ok := v.AsInt()
		if !ok {
			return vm.typeError("array set", "int", v.Kind().String())
		}
		a.Ints[i] = n
	case heap.ElemFloat:
		f, ok := v.AsFloat()
		if !ok {
			return vm.typeError("array set", "float", v.Kind().String())
		}
		a.Flts[i] = f
	case heap.ElemBool:
		b, ok := v.AsBool()
		if !ok {
			return vm.typeError("array set", "bool", v.Kind().String())
		}
		a.Bools[i] = b
	default:
		a.Refs[i] = v
	}
	return nil
}

func (vm *VM) opVecNew(capacity int) (value.Value, error) {
	ref, err := vm.Heap.AllocVec(&heap.VecObj{Elem: heap.ElemRef, Refs: make([]value.Value, 0, capacity)})
	if err != nil {
		return value.Null, vm.attachTrace(err)
	}
	return value.Ptr(uint32(ref)), nil
}

func (vm *VM) opVecPush(vecVal, v value.Value) error {
	ref, ok := vecVal.AsPtr()
	if !ok {
		return vm.typeError("vec push", "vec", vecVal.Kind().String())
	}
	obj := vm.Heap.Get(heap.GcRef(ref))
	if obj == nil || obj.Kind != heap.KindVec {
		return vm.typeError("vec push", "vec", "object")
	}
	switch obj.VecData.Elem {
	case heap.ElemInt:
		n, ok := v.AsInt()
		if !ok {
			return vm.typeError("vec push", "int", v.Kind().String())
		}
		obj.VecData.Ints = append(obj.VecData.Ints, n)
	case heap.ElemFloat:
		f, ok := v.AsFloat()
		if !ok {
			return vm.typeError("vec push", "float", v.Kind().String())
		}
		obj.VecData.Flts = append(obj.VecData.Flts, f)
	case heap.ElemBool:
		b, ok := v.AsBool()
		if !ok {
			return vm.typeError("vec push", "bool", v.Kind().String())
		}
		obj.VecData.Bools = append(obj.VecData.Bools, b)
	default:
		obj.VecData.Refs = append(obj.VecData.Refs, v)
	}
	return nil
}

func (vm *VM) opVecPop(vecVal value.Value) (value.Value, error) {
	ref, ok := vecVal.AsPtr()
	if !ok {
		return value.Null, vm.typeError("vec pop", "vec", vecVal.Kind().String())
	}
	obj := vm.Heap.Get(heap.GcRef(ref))
	if obj == nil || obj.Kind != heap.KindVec {
		return value.Null, vm.typeError("vec pop", "vec", "object")
	}
	v := obj.VecData

	switch v.Elem {
	case heap.ElemInt:
		if len(v.Ints) == 0 {
			return value.Null, vm.indexOutOfBounds(0, 0)
		}
		n := v.Ints[len(v.Ints)-1]
		v.Ints = v.Ints[:len(v.Ints)-1]
		return value.Int(n), nil
	case heap.ElemFloat:
		if len(v.Flts) == 0 {
			return value.Null, vm.indexOutOfBounds(0, 0)
		}
		f := v.Flts[len(v.Flts)-1]
		v.Flts = v.Flts[:len(v.Flts)-1]
		return value.Float(f), nil
	case heap.ElemBool:
		if len(v.Bools) == 0 {
			return value.Null, vm.indexOutOfBounds(0, 0)
		}
		b := v.Bools[len(v.Bools)-1]
		v.Bools = v.Bools[:len(v.Bools)-1]
		return value.Bool(b), nil
	default:
		if len(v.Refs) == 0 {
			return value.Null, vm.indexOutOfBounds(0, 0)
		}
		r := v.Refs[len(v.Refs)-1]
		v.Refs = v.Refs[:len(v.Refs)-1]
		return r, nil
	}
}
