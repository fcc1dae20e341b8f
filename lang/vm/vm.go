// Package vm implements Aelys's register-based bytecode dispatch loop:
// the decode/execute/advance cycle, function/native/closure call
// mechanics, arithmetic coercion, manual-memory and array/vector
// opcodes, and GC safepoint scheduling.
//
// Grounded on probe-lang/lang/vm/vm.go's texture (a single flat VM
// struct, setReg/getReg helpers, a big switch-based execute dispatcher,
// sentinel error values for the teacher's own failure modes) generalized
// to spec.md's register-window-per-frame model and the structured
// rterror.RuntimeError taxonomy in place of the teacher's plain
// errors.New sentinels.
package vm

import (
	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/callsite"
	"github.com/aelys-lang/aelys/lang/config"
	"github.com/aelys-lang/aelys/lang/frame"
	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/globals"
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/manualheap"
	"github.com/aelys-lang/aelys/lang/upvalue"
	"github.com/aelys-lang/aelys/lang/value"
	"github.com/aelys-lang/aelys/lang/verify"
)

// VM is one Aelys execution context: a managed heap, a manual-memory
// arena, the global-variable tables, the open-upvalue tracker, and the
// live frame/register stacks the dispatch loop walks.
type VM struct {
	Heap       *heap.Heap
	Manual     *manualheap.ManualHeap
	Globals    *globals.Globals
	Upvalues   *upvalue.Manager
	Config     *config.VmConfig

	frames    []*frame.CallFrame
	registers []value.Value

	noGCDepth int

	// callSiteCaches is keyed by the Function/Closure object's GcRef
	// rather than embedded in FunctionObj, since lang/heap cannot import
	// lang/callsite (callsite already imports heap).
	callSiteCaches map[heap.GcRef]*callsite.Cache
}

// New builds a VM over a fresh heap sized from cfg (config.Default() if
// cfg is nil).
func New(cfg *config.VmConfig) *VM {
	if cfg == nil {
		cfg = config.Default()
	}
	manual := manualheap.New()
	h := heap.New(cfg.MaxHeapBytes)
	h.OtherBytes = manual.BytesAllocated

	return &VM{
		Heap:           h,
		Manual:         manual,
		Globals:        globals.New(),
		Upvalues:       upvalue.New(),
		Config:         cfg,
		callSiteCaches: make(map[heap.GcRef]*callsite.Cache),
	}
}

// cacheFor returns (creating if necessary) the call-site cache belonging
// to the function object at ref. The slots argument is unused; the cache
// grows on demand as slots are first read or written.
func (vm *VM) cacheFor(ref heap.GcRef, slots int) *callsite.Cache {
	c, ok := vm.callSiteCaches[ref]
	if !ok {
		c = callsite.New()
		vm.callSiteCaches[ref] = c
	}
	return c
}

// resolveFunction returns the *function.Function a Function or Closure
// object ultimately runs, or nil if ref isn't callable.
func (vm *VM) resolveFunction(ref heap.GcRef) *function.Function {
	obj := vm.Heap.Get(ref)
	if obj == nil {
		return nil
	}
	switch obj.Kind {
	case heap.KindFunction:
		return obj.Func.Fn
	case heap.KindClosure:
		return vm.resolveFunction(obj.Closure.FunctionRef)
	default:
		return nil
	}
}

// growRegisters ensures the shared register stack has room for at least
// n slots, respecting MaxRegisters.
func (vm *VM) growRegisters(n int) error {
	if n > MaxRegisters {
		return vm.stackOverflow()
	}
	for len(vm.registers) < n {
		vm.registers = append(vm.registers, value.Null)
	}
	return nil
}

func (vm *VM) reg(fr *frame.CallFrame, local uint8) value.Value {
	return vm.registers[fr.RegisterIndex(local)]
}

func (vm *VM) setReg(fr *frame.CallFrame, local uint8, v value.Value) {
	vm.registers[fr.RegisterIndex(local)] = v
}

func (vm *VM) currentFrame() *frame.CallFrame {
	return vm.frames[len(vm.frames)-1]
}

// ExecuteFunction verifies (if needed) and runs fnRef from its entry
// point with the given arguments, returning its final return value. A
// native fnRef is arity-checked and called directly. This is the
// host-facing entry point Component 11 exposes to lang/host.
func (vm *VM) ExecuteFunction(fnRef heap.GcRef, args []value.Value) (value.Value, error) {
	if obj := vm.Heap.Get(fnRef); obj != nil && obj.Kind == heap.KindNative {
		if int(obj.Native.Arity) != len(args) {
			return value.Null, vm.arityMismatch(obj.Native.Arity, uint8(len(args)))
		}
		return vm.callNative(obj.Native, args)
	}
	fn := vm.resolveFunction(fnRef)
	if fn == nil {
		return value.Null, vm.notCallable("<non-function>")
	}
	if err := vm.ensureVerified(fn); err != nil {
		return value.Null, err
	}
	if int(fn.Arity) != len(args) {
		return value.Null, vm.arityMismatch(fn.Arity, uint8(len(args)))
	}

	base := len(vm.registers)
	if err := vm.growRegisters(base + int(fn.NumRegisters)); err != nil {
		return value.Null, err
	}
	for i, a := range args {
		vm.registers[base+i] = a
	}

	var fr *frame.CallFrame
	obj := vm.Heap.Get(fnRef)
	if obj.Kind == heap.KindClosure {
		fr = frame.NewWithUpvalues(fnRef, base, -1, fn.Bytecode, fn.Constants, obj.Closure.Upvalues, int(fn.NumRegisters))
	} else {
		fr = frame.New(fnRef, base, -1, fn.Bytecode, fn.Constants, int(fn.NumRegisters))
	}
	fr.GlobalMappingID = vm.Globals.PrepareForLayout(fn.GlobalLayout)

	if len(vm.frames) >= MaxFrames {
		return value.Null, vm.stackOverflow()
	}
	vm.frames = append(vm.frames, fr)

	result, err := vm.run()

	vm.registers = vm.registers[:base]
	return result, err
}

// run drives the decode/execute/advance loop until the outermost frame
// returns or halts.
func (vm *VM) run() (value.Value, error) {
	baseDepth := len(vm.frames) - 1

	for len(vm.frames) > baseDepth {
		fr := vm.currentFrame()
		if fr.IP >= fr.Bytecode.Len() {
			return value.Null, vm.invalidBytecode("instruction pointer ran past end of function")
		}

		word := fr.Bytecode.Read(fr.IP)
		d := bytecode.Decode(word)
		if !d.Op.IsValid() {
			return value.Null, vm.invalidOpcode(uint8(d.Op))
		}

		result, returned, err := vm.dispatch(fr, d)
		if err != nil {
			return value.Null, err
		}
		if returned {
			if len(vm.frames) == baseDepth {
				return result, nil
			}
			continue
		}

		if vm.noGCDepth == 0 && vm.Heap.ShouldCollect() {
			vm.collectGarbage()
		}
	}
	return value.Null, nil
}

// ensureVerified runs the structural verifier on fn (and anything nested
// inside it) exactly once, matching execute.rs's ensure_function_verified
// fast path on an already-Verified function.
func (vm *VM) ensureVerified(fn *function.Function) error {
	if fn.Verified {
		return nil
	}
	if err := verify.Function(fn); err != nil {
		return vm.invalidBytecode(err.Error())
	}
	return nil
}
