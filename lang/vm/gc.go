package vm

import (
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// collectGarbage runs one mark/sweep cycle over every live root: each
// frame's function/closure object and upvalue list, every register slot
// in the active window of every frame, the globals tables (both the
// name-keyed map and the active indexed array), and manual memory (a
// Value stored via StoreMem may itself be a GcRef). Grounded on spec.md
// §4.9 and aelys-bytecode/src/heap/gc.rs's mark/sweep; call-site caches
// are wiped afterward since a sweep can recycle a slot index a cache
// entry still references.
func (vm *VM) collectGarbage() {
	for _, fr := range vm.frames {
		vm.Heap.Mark(fr.FunctionRef)
		for _, u := range fr.Upvalues {
			vm.Heap.Mark(u)
		}
		for i := 0; i < fr.NumRegisters; i++ {
			markIfPtr(vm, vm.registers[fr.RegisterBase+i])
		}
	}

	vm.Globals.EachValue(func(v value.Value) { markIfPtr(vm, v) })
	vm.Manual.EachValue(func(v value.Value) { markIfPtr(vm, v) })

	vm.Heap.Sweep()
	vm.wipeAllCallSiteCaches()
}

func markIfPtr(vm *VM, v value.Value) {
	if p, ok := v.AsPtr(); ok {
		vm.Heap.Mark(heap.GcRef(p))
	}
}
