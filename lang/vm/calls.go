package vm

import (
	"github.com/aelys-lang/aelys/lang/callsite"
	"github.com/aelys-lang/aelys/lang/frame"
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// wipeAllCallSiteCaches invalidates every function's call-site cache, the
// "wipe-all on any global write or GC sweep" strategy spec.md §4.8 allows
// in place of per-entry invalidation (see lang/callsite.Cache.WipeAll).
func (vm *VM) wipeAllCallSiteCaches() {
	for _, c := range vm.callSiteCaches {
		c.WipeAll()
	}
}

// doCall resolves the callee register to a Native, Function, or Closure
// object and dispatches accordingly (the three-way split in
// call_api/kinds.rs's FuncKind). It covers the register-addressed Call
// opcode; the name-addressed CallGlobal* family is handled by
// doCallGlobal below.
func (vm *VM) doCall(fr *frame.CallFrame, dest, calleeLocal, nargs uint8) (value.Value, bool, error) {
	calleeVal := vm.reg(fr, calleeLocal)
	ref, ok := calleeVal.AsPtr()
	if !ok {
		return value.Null, false, vm.notCallable("<register>")
	}
	args := make([]value.Value, nargs)
	for i := 0; i < int(nargs); i++ {
		args[i] = vm.reg(fr, calleeLocal+1+uint8(i))
	}
	return vm.invoke(fr, dest, heap.GcRef(ref), args)
}

// invoke is the shared call mechanics once a callee object and argument
// vector are known, used by both doCall and doCallGlobal.
func (vm *VM) invoke(fr *frame.CallFrame, dest uint8, ref heap.GcRef, args []value.Value) (value.Value, bool, error) {
	obj := vm.Heap.Get(ref)
	if obj == nil {
		return value.Null, false, vm.notCallable("<dead reference>")
	}

	switch obj.Kind {
	case heap.KindNative:
		if int(obj.Native.Arity) != len(args) {
			return value.Null, false, vm.arityMismatch(obj.Native.Arity, uint8(len(args)))
		}
		result, err := vm.callNative(obj.Native, args)
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, dest, result)
		return value.Null, false, nil

	case heap.KindFunction, heap.KindClosure:
		return vm.callAelysFunction(fr, dest, ref, obj, args)

	default:
		return value.Null, false, vm.notCallable("<non-callable object>")
	}
}

// callNative invokes a Go-implemented or FFI-shaped native, per spec.md
// §6.2. Grounded on aelys-runtime/src/vm/alloc.rs's Go/Foreign split.
func (vm *VM) callNative(n *heap.NativeObj, args []value.Value) (value.Value, error) {
	if n.Go != nil {
		result, err := n.Go(vm, args)
		if err != nil {
			return value.Null, vm.attachTrace(err)
		}
		return result, nil
	}
	if n.Foreign != nil {
		raw := make([]uintptr, len(args))
		for i, a := range args {
			if n, ok := a.AsInt(); ok {
				raw[i] = uintptr(n)
			} else if p, ok := a.AsPtr(); ok {
				raw[i] = uintptr(p)
			}
		}
		return value.Int(int64(n.Foreign(raw))), nil
	}
	return value.Null, vm.notCallable(n.Name)
}

func (vm *VM) callAelysFunction(callerFr *frame.CallFrame, dest uint8, ref heap.GcRef, obj *heap.Object, args []value.Value) (value.Value, bool, error) {
	fn := vm.resolveFunction(ref)
	if fn == nil {
		return value.Null, false, vm.notCallable("<function>")
	}
	if err := vm.ensureVerified(fn); err != nil {
		return value.Null, false, err
	}
	if int(fn.Arity) != len(args) {
		return value.Null, false, vm.arityMismatch(fn.Arity, uint8(len(args)))
	}
	if len(vm.frames) >= MaxFrames {
		return value.Null, false, vm.stackOverflow()
	}

	if callerFn := vm.resolveFunction(callerFr.FunctionRef); callerFn != nil {
		vm.Globals.SyncToNames(callerFn.GlobalLayout)
	}

	base := len(vm.registers)
	if err := vm.growRegisters(base + int(fn.NumRegisters)); err != nil {
		return value.Null, false, err
	}
	for i, a := range args {
		vm.registers[base+i] = a
	}

	var newFr *frame.CallFrame
	if obj.Kind == heap.KindClosure {
		newFr = frame.NewWithUpvalues(ref, base, int(dest), fn.Bytecode, fn.Constants, obj.Closure.Upvalues, int(fn.NumRegisters))
	} else {
		newFr = frame.New(ref, base, int(dest), fn.Bytecode, fn.Constants, int(fn.NumRegisters))
	}
	newFr.GlobalMappingID = vm.Globals.PrepareForLayout(fn.GlobalLayout)

	vm.frames = append(vm.frames, newFr)
	return value.Null, false, nil
}

// doCallGlobal resolves a global-scope call by name, through the
// call-site cache when possible. nameConstIdx indexes fr.Constants for
// the global's interned-string Ref; the call's own word offset (ip)
// doubles as its cache slot, scoped per calling function, since it is
// trivially unique within one function's bytecode.
//
// Grounded on spec.md §4.8 and aelys-runtime/src/vm/core.rs's
// CallSiteCacheEntry; unlike the original, which patches the entry
// in-place into the two trailing bytecode words for cache-line locality,
// this port keeps the cache in an out-of-band table (lang/callsite.Cache
// per function) because Go has no equivalent reason to fight its GC for
// that placement — Buffer.Patch remains available if a future revision
// wants the literal in-bytecode representation.
func (vm *VM) doCallGlobal(fr *frame.CallFrame, ip int, dest, nameConstIdx, nargs uint8, requireNative bool) (value.Value, bool, error) {
	cache := vm.cacheFor(fr.FunctionRef, 0)
	entry := cache.Get(ip)

	if entry.Valid && cache.CheapRecheck(vm.Heap, entry) && (!requireNative || entry.IsNative) {
		args := make([]value.Value, nargs)
		for i := 0; i < int(nargs); i++ {
			args[i] = vm.reg(fr, dest+1+uint8(i))
		}
		ref := entry.NativeRef
		if !entry.IsNative {
			ref = entry.CalleeRef
		}
		return vm.invoke(fr, dest, ref, args)
	}

	if int(nameConstIdx) >= len(fr.Constants) {
		return value.Null, false, vm.invalidBytecode("call-global: constant index out of range")
	}
	nameVal := fr.Constants[nameConstIdx]
	namePtr, ok := nameVal.AsPtr()
	if !ok {
		return value.Null, false, vm.invalidBytecode("call-global: constant is not a string")
	}
	strObj := vm.Heap.Get(heap.GcRef(namePtr))
	if strObj == nil || strObj.Kind != heap.KindString {
		return value.Null, false, vm.invalidBytecode("call-global: constant is not a string")
	}
	name := strObj.Str.String()

	gv, ok := vm.Globals.Get(name)
	if !ok {
		return value.Null, false, vm.undefinedVariable(name)
	}
	ref, ok := gv.AsPtr()
	if !ok {
		return value.Null, false, vm.notCallable(name)
	}
	obj := vm.Heap.Get(heap.GcRef(ref))
	if obj == nil {
		return value.Null, false, vm.notCallable(name)
	}
	if requireNative && obj.Kind != heap.KindNative {
		return value.Null, false, vm.notCallable(name)
	}

	newEntry := callsite.Entry{Valid: true}
	switch obj.Kind {
	case heap.KindNative:
		newEntry.IsNative = true
		newEntry.NativeRef = heap.GcRef(ref)
		newEntry.Arity = obj.Native.Arity
	case heap.KindClosure:
		fn := vm.resolveFunction(heap.GcRef(ref))
		if fn == nil {
			return value.Null, false, vm.notCallable(name)
		}
		newEntry.IsClosure = true
		newEntry.CalleeRef = heap.GcRef(ref)
		newEntry.Arity = fn.Arity
		newEntry.NumRegisters = fn.NumRegisters
		newEntry.CalleeGMap = fn.GlobalLayoutHash
	case heap.KindFunction:
		newEntry.CalleeRef = heap.GcRef(ref)
		newEntry.Arity = obj.Func.Fn.Arity
		newEntry.NumRegisters = obj.Func.Fn.NumRegisters
		newEntry.CalleeGMap = obj.Func.Fn.GlobalLayoutHash
	default:
		return value.Null, false, vm.notCallable(name)
	}
	cache.Set(ip, newEntry)

	args := make([]value.Value, nargs)
	for i := 0; i < int(nargs); i++ {
		args[i] = vm.reg(fr, dest+1+uint8(i))
	}
	return vm.invoke(fr, dest, heap.GcRef(ref), args)
}

// doReturn pops the current frame, flushes its globals_by_index writes
// back to the name map, closes every upvalue still open at or above its
// register window, and delivers the return value either to the caller's
// destination register (continuing the loop) or, for the outermost
// frame, back to ExecuteFunction.
func (vm *VM) doReturn(returnVal value.Value) (value.Value, bool, error) {
	fr := vm.currentFrame()

	if fn := vm.resolveFunction(fr.FunctionRef); fn != nil {
		vm.Globals.SyncToNames(fn.GlobalLayout)
	}
	vm.Upvalues.CloseFrom(vm.Heap, fr.RegisterBase, func(i int) value.Value { return vm.registers[i] })

	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.registers = vm.registers[:fr.RegisterBase]

	if fr.ReturnDest < 0 {
		return returnVal, true, nil
	}
	callerFr := vm.currentFrame()
	vm.setReg(callerFr, uint8(fr.ReturnDest), returnVal)
	return value.Null, true, nil
}
