package vm

import (
	"github.com/aelys-lang/aelys/lang/frame"
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// opMakeClosure builds a Closure object over the nested function at
// nestedIdx, resolving each UpvalueDescriptor against either the current
// frame's live register window (IsLocal, via FindOrCreate so repeated
// captures of the same slot reuse one Upvalue object) or the current
// closure's already-captured upvalue list (transitive capture). Grounded
// on spec.md §4.7.
func (vm *VM) opMakeClosure(fr *frame.CallFrame, nestedIdx int) (value.Value, error) {
	callerFn := vm.resolveFunction(fr.FunctionRef)
	if callerFn == nil || nestedIdx >= len(callerFn.NestedFunctions) {
		return value.Null, vm.invalidBytecode("make-closure: nested function index out of range")
	}
	nested := callerFn.NestedFunctions[nestedIdx]

	nestedRef, err := vm.Heap.AllocFunction(nested)
	if err != nil {
		return value.Null, vm.attachTrace(err)
	}

	upvals := make([]heap.GcRef, len(nested.UpvalueDescs))
	for i, desc := range nested.UpvalueDescs {
		if desc.IsLocal {
			stackIdx := fr.RegisterIndex(desc.Index)
			ref, err := vm.Upvalues.FindOrCreate(vm.Heap, stackIdx)
			if err != nil {
				return value.Null, vm.attachTrace(err)
			}
			upvals[i] = ref
		} else {
			if int(desc.Index) >= len(fr.Upvalues) {
				return value.Null, vm.invalidBytecode("make-closure: transitive upvalue index out of range")
			}
			upvals[i] = fr.Upvalues[desc.Index]
		}
	}

	closureRef, err := vm.Heap.AllocClosure(nestedRef, upvals)
	if err != nil {
		return value.Null, vm.attachTrace(err)
	}
	return value.Ptr(uint32(closureRef)), nil
}

func (vm *VM) opGetUpval(fr *frame.CallFrame, idx int) (value.Value, error) {
	if idx >= len(fr.Upvalues) {
		return value.Null, vm.invalidBytecode("get-upval: index out of range")
	}
	obj := vm.Heap.Get(fr.Upvalues[idx])
	if obj == nil || obj.Kind != heap.KindUpvalue {
		return value.Null, vm.invalidBytecode("get-upval: dangling upvalue reference")
	}
	if obj.Upvalue.Location.Open {
		return vm.registers[obj.Upvalue.Location.StackIndex], nil
	}
	return obj.Upvalue.Location.Closed, nil
}

func (vm *VM) opSetUpval(fr *frame.CallFrame, idx int, v value.Value) error {
	if idx >= len(fr.Upvalues) {
		return vm.invalidBytecode("set-upval: index out of range")
	}
	obj := vm.Heap.Get(fr.Upvalues[idx])
	if obj == nil || obj.Kind != heap.KindUpvalue {
		return vm.invalidBytecode("set-upval: dangling upvalue reference")
	}
	if obj.Upvalue.Location.Open {
		vm.registers[obj.Upvalue.Location.StackIndex] = v
	} else {
		obj.Upvalue.Location.Closed = v
	}
	return nil
}

func (vm *VM) opCloseUpvals(fr *frame.CallFrame, fromLocal uint8) {
	fromIdx := fr.RegisterIndex(fromLocal)
	vm.Upvalues.CloseFrom(vm.Heap, fromIdx, func(i int) value.Value { return vm.registers[i] })
}
