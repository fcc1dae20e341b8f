// Package builtins registers Aelys's six core natives — the ones spec.md
// §4.11/§6.2 treats as part of the runtime's own host-exposed surface
// rather than stdlib proper: type, alloc, free, load, store, __tostring.
//
// Grounded on aelys-runtime/src/vm/builtins.rs's register_builtins and its
// per-builtin argument validation order (type-check before range-check
// before delegating to the manual heap), ported onto lang/host.Host's
// AllocNative/SetGlobal surface in place of the original's direct VM
// method calls.
package builtins

import (
	"github.com/aelys-lang/aelys/lang/host"
	"github.com/aelys-lang/aelys/lang/rterror"
	"github.com/aelys-lang/aelys/lang/value"
	"github.com/aelys-lang/aelys/lang/vm"
)

// Register installs the six core natives on h under their conventional
// global names.
func Register(h *host.Host) error {
	if _, err := h.AllocNative("type", 1, builtinType); err != nil {
		return err
	}
	if _, err := h.AllocNative("alloc", 1, builtinAlloc); err != nil {
		return err
	}
	if _, err := h.AllocNative("free", 1, builtinFree); err != nil {
		return err
	}
	if _, err := h.AllocNative("load", 2, builtinLoad); err != nil {
		return err
	}
	if _, err := h.AllocNative("store", 3, builtinStore); err != nil {
		return err
	}
	if _, err := h.AllocNative("__tostring", 1, builtinToString); err != nil {
		return err
	}
	for _, name := range []string{"type", "alloc", "free", "load", "store", "__tostring"} {
		ref, _ := h.CallableFunction(name)
		h.SetGlobal(name, value.Ptr(uint32(ref)))
	}
	return nil
}

// asVM recovers the concrete *vm.VM a native is always called with —
// lang/heap.NativeFunc's vmState is `any` only so lang/heap need not
// import lang/vm (heap is a dependency of vm, not the reverse).
func asVM(vmState any) *vm.VM {
	return vmState.(*vm.VM)
}

func builtinType(vmState any, args []value.Value) (value.Value, error) {
	m := asVM(vmState)
	return m.AllocString(m.TypeName(args[0]))
}

func builtinAlloc(vmState any, args []value.Value) (value.Value, error) {
	m := asVM(vmState)
	size, ok := args[0].AsInt()
	if !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "alloc", Expected: "int", Got: m.TypeName(args[0]),
		}
	}
	if size <= 0 {
		return value.Null, &rterror.RuntimeError{Kind: rterror.InvalidAllocationSize, Size: size}
	}
	return m.Alloc(args[0])
}

func builtinFree(vmState any, args []value.Value) (value.Value, error) {
	m := asVM(vmState)
	if args[0].IsNull() {
		return value.Null, nil
	}
	handle, ok := args[0].AsInt()
	if !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "free", Expected: "int (handle)", Got: m.TypeName(args[0]),
		}
	}
	if handle < 0 {
		return value.Null, &rterror.RuntimeError{Kind: rterror.NegativeMemoryIndex, Value: handle}
	}
	if err := m.Free(args[0]); err != nil {
		return value.Null, err
	}
	return value.Null, nil
}

func builtinLoad(vmState any, args []value.Value) (value.Value, error) {
	m := asVM(vmState)
	if _, ok := args[0].AsInt(); !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "load", Expected: "int (handle)", Got: m.TypeName(args[0]),
		}
	}
	if _, ok := args[1].AsInt(); !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "load", Expected: "int", Got: m.TypeName(args[1]),
		}
	}
	return m.LoadManual(args[0], args[1])
}

func builtinStore(vmState any, args []value.Value) (value.Value, error) {
	m := asVM(vmState)
	if _, ok := args[0].AsInt(); !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "store", Expected: "int (handle)", Got: m.TypeName(args[0]),
		}
	}
	if _, ok := args[1].AsInt(); !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "store", Expected: "int", Got: m.TypeName(args[1]),
		}
	}
	if err := m.StoreManual(args[0], args[1], args[2]); err != nil {
		return value.Null, err
	}
	return value.Null, nil
}

func builtinToString(vmState any, args []value.Value) (value.Value, error) {
	m := asVM(vmState)
	return m.AllocString(m.ToDisplayString(args[0]))
}
