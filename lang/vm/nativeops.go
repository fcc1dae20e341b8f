package vm

import (
	"fmt"

	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// The six core natives (stdlib/builtins) receive the VM as their
// vmState argument and drive it through this exported surface rather
// than reaching into unexported handler internals — it is the same
// alloc/free/load/store/type/to-string plumbing dispatch.go's opcode
// handlers use, just exported for a registered native's benefit.
// Grounded on aelys-runtime/src/vm/builtins.rs, which drives the VM
// through its own inherent methods (manual_alloc, manual_free,
// value_type_name, value_to_string) rather than duplicating them.

// Alloc reserves size manual-heap slots and returns an integer handle.
func (vm *VM) Alloc(size value.Value) (value.Value, error) {
	return vm.opAlloc(size)
}

// Free releases a manual-heap handle. Freeing null is a no-op.
func (vm *VM) Free(handle value.Value) error {
	if handle.IsNull() {
		return nil
	}
	return vm.opFree(handle)
}

// LoadManual reads a manual-heap handle at offset.
func (vm *VM) LoadManual(handle, offset value.Value) (value.Value, error) {
	return vm.opLoadMem(handle, offset)
}

// StoreManual writes v into a manual-heap handle at offset.
func (vm *VM) StoreManual(handle, offset, v value.Value) error {
	return vm.opStoreMem(handle, offset, v)
}

// AllocString interns s on the managed heap and wraps its reference as
// a Value, the shape every natives that must hand back a string needs
// (type, __tostring).
func (vm *VM) AllocString(s string) (value.Value, error) {
	ref, err := vm.Heap.InternString(s)
	if err != nil {
		return value.Null, vm.attachTrace(err)
	}
	return value.Ptr(uint32(ref)), nil
}

// TypeName reports Aelys's user-visible type name for v, distinguishing
// the managed heap's object kinds where Value.Kind alone only says
// "object". Grounded on aelys-runtime/src/vm/value.rs's value_type_name.
func (vm *VM) TypeName(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindInt:
		return "int"
	case value.KindFloat:
		return "float"
	case value.KindBool:
		return "bool"
	}

	ref, _ := v.AsPtr()
	obj := vm.Heap.Get(heap.GcRef(ref))
	if obj == nil {
		return "object"
	}
	switch obj.Kind {
	case heap.KindString:
		return "string"
	case heap.KindFunction:
		return "function"
	case heap.KindClosure:
		return "function"
	case heap.KindNative:
		return "native"
	case heap.KindArray:
		return "array"
	case heap.KindVec:
		return "vec"
	case heap.KindUpvalue:
		return "upvalue"
	default:
		return "object"
	}
}

// ToDisplayString renders v the way __tostring and string concatenation
// do: strings render as their own bytes, everything else gets a
// type-appropriate literal rendering. Grounded on
// aelys-runtime/src/vm/value.rs's value_to_string.
func (vm *VM) ToDisplayString(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindInt:
		n, _ := v.AsInt()
		return fmt.Sprintf("%d", n)
	case value.KindFloat:
		f, _ := v.AsFloat()
		return fmt.Sprintf("%g", f)
	case value.KindBool:
		b, _ := v.AsBool()
		return fmt.Sprintf("%t", b)
	}

	ref, _ := v.AsPtr()
	obj := vm.Heap.Get(heap.GcRef(ref))
	if obj == nil {
		return "<dead reference>"
	}
	switch obj.Kind {
	case heap.KindString:
		return obj.Str.String()
	case heap.KindFunction:
		return fmt.Sprintf("<function %s>", obj.Func.Fn.Name)
	case heap.KindClosure:
		return "<closure>"
	case heap.KindNative:
		return fmt.Sprintf("<native %s>", obj.Native.Name)
	case heap.KindArray:
		return fmt.Sprintf("<array len=%d>", obj.Array.Len())
	case heap.KindVec:
		return fmt.Sprintf("<vec len=%d>", vecLen(obj.VecData))
	default:
		return "<object>"
	}
}

func vecLen(v *heap.VecObj) int {
	switch v.Elem {
	case heap.ElemInt:
		return len(v.Ints)
	case heap.ElemFloat:
		return len(v.Flts)
	case heap.ElemBool:
		return len(v.Bools)
	default:
		return len(v.Refs)
	}
}
