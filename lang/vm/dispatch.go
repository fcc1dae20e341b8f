package vm

import (
	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/frame"
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// dispatch executes one decoded instruction against fr. A Return/Return0/
// Halt pops the frame and reports returned=true; the returned value is the
// return value only when the popped frame was an entry frame (no caller
// destination register), and Null otherwise. Every other instruction
// advances fr.IP (or jumps) and reports returned=false. This is the single switch every opcode
// family funnels through, mirroring probe-lang/lang/vm/vm.go's execute().
func (vm *VM) dispatch(fr *frame.CallFrame, d bytecode.Decoded) (value.Value, bool, error) {
	switch d.Op {

	case bytecode.OpNop:
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpMove:
		vm.setReg(fr, d.A, vm.reg(fr, d.B))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpLoadI:
		vm.setReg(fr, d.A, value.Int(int64(d.Imm)))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpLoadK:
		idx := int(uint16(d.Imm))
		if idx >= len(fr.Constants) {
			return value.Null, false, vm.invalidBytecode("load-k: constant index out of range")
		}
		vm.setReg(fr, d.A, fr.Constants[idx])
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpLoadBool:
		vm.setReg(fr, d.A, value.Bool(d.Imm != 0))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpLoadNull:
		vm.setReg(fr, d.A, value.Null)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	// ---- generic arithmetic ------------------------------------------------

	case bytecode.OpAdd, bytecode.OpAddII, bytecode.OpAddIIG, bytecode.OpAddFF, bytecode.OpAddFFG:
		r, err := vm.addGeneric(vm.reg(fr, d.B), vm.reg(fr, d.C), d.Op.String())
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpSub, bytecode.OpSubII, bytecode.OpSubIIG, bytecode.OpSubFF, bytecode.OpSubFFG:
		r, err := vm.subGeneric(vm.reg(fr, d.B), vm.reg(fr, d.C), d.Op.String())
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpMul, bytecode.OpMulII, bytecode.OpMulIIG, bytecode.OpMulFF, bytecode.OpMulFFG:
		r, err := vm.mulGeneric(vm.reg(fr, d.B), vm.reg(fr, d.C), d.Op.String())
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpDiv, bytecode.OpDivII, bytecode.OpDivIIG, bytecode.OpDivFF, bytecode.OpDivFFG:
		r, err := vm.divGeneric(vm.reg(fr, d.B), vm.reg(fr, d.C), d.Op.String())
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpMod, bytecode.OpModII, bytecode.OpModIIG, bytecode.OpModFF, bytecode.OpModFFG:
		r, err := vm.modGeneric(vm.reg(fr, d.B), vm.reg(fr, d.C), d.Op.String())
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpNeg:
		r, err := vm.negGeneric(vm.reg(fr, d.B), "Neg")
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpAddI:
		n, ok := vm.reg(fr, d.A).AsInt()
		if !ok {
			return value.Null, false, vm.typeError("AddI", "int", vm.reg(fr, d.A).Kind().String())
		}
		vm.setReg(fr, d.A, value.Int(wrapInt(n+int64(d.Imm))))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpSubI:
		n, ok := vm.reg(fr, d.A).AsInt()
		if !ok {
			return value.Null, false, vm.typeError("SubI", "int", vm.reg(fr, d.A).Kind().String())
		}
		vm.setReg(fr, d.A, value.Int(wrapInt(n-int64(d.Imm))))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	// ---- bitwise ------------------------------------------------------------

	case bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShl, bytecode.OpShr:
		a, aok := vm.reg(fr, d.B).AsInt()
		b, bok := vm.reg(fr, d.C).AsInt()
		if !aok || !bok {
			return value.Null, false, vm.typeError(d.Op.String(), "int", mismatchedKind(vm.reg(fr, d.B), vm.reg(fr, d.C)))
		}
		vm.setReg(fr, d.A, value.Int(wrapInt(bitwiseOp(d.Op, a, b))))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpBitNot:
		a, ok := vm.reg(fr, d.B).AsInt()
		if !ok {
			return value.Null, false, vm.typeError("BitNot", "int", vm.reg(fr, d.B).Kind().String())
		}
		vm.setReg(fr, d.A, value.Int(wrapInt(^a)))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpShlIImm, bytecode.OpShrIImm, bytecode.OpAndIImm, bytecode.OpOrIImm, bytecode.OpXorIImm:
		a, ok := vm.reg(fr, d.A).AsInt()
		if !ok {
			return value.Null, false, vm.typeError(d.Op.String(), "int", vm.reg(fr, d.A).Kind().String())
		}
		vm.setReg(fr, d.A, value.Int(wrapInt(bitwiseImmOp(d.Op, a, int64(d.Imm)))))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	// ---- comparisons ----------------------------------------------------------

	case bytecode.OpEq, bytecode.OpEqII, bytecode.OpEqIIG, bytecode.OpEqFF, bytecode.OpEqFFG:
		vm.setReg(fr, d.A, boolValue(value.Equal(vm.reg(fr, d.B), vm.reg(fr, d.C))))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpNe, bytecode.OpNeII, bytecode.OpNeIIG, bytecode.OpNeFF, bytecode.OpNeFFG:
		vm.setReg(fr, d.A, boolValue(!value.Equal(vm.reg(fr, d.B), vm.reg(fr, d.C))))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpLt, bytecode.OpLtII, bytecode.OpLtIIG, bytecode.OpLtFF, bytecode.OpLtFFG:
		return vm.relOp(fr, d, func(c int) bool { return c < 0 })

	case bytecode.OpLe, bytecode.OpLeII, bytecode.OpLeIIG, bytecode.OpLeFF, bytecode.OpLeFFG:
		return vm.relOp(fr, d, func(c int) bool { return c <= 0 })

	case bytecode.OpGt, bytecode.OpGtII, bytecode.OpGtIIG, bytecode.OpGtFF, bytecode.OpGtFFG:
		return vm.relOp(fr, d, func(c int) bool { return c > 0 })

	case bytecode.OpGe, bytecode.OpGeII, bytecode.OpGeIIG, bytecode.OpGeFF, bytecode.OpGeFFG:
		return vm.relOp(fr, d, func(c int) bool { return c >= 0 })

	case bytecode.OpNot:
		b, ok := vm.reg(fr, d.B).AsBool()
		if !ok {
			return value.Null, false, vm.typeError("Not", "bool", vm.reg(fr, d.B).Kind().String())
		}
		vm.setReg(fr, d.A, value.Bool(!b))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpLtImm, bytecode.OpLeImm, bytecode.OpGtImm, bytecode.OpGeImm,
		bytecode.OpLtIImm, bytecode.OpLeIImm, bytecode.OpGtIImm, bytecode.OpGeIImm:
		return vm.relImmOp(fr, d)

	// ---- control flow -------------------------------------------------------

	case bytecode.OpJump:
		fr.Jump(d.Imm)
		return value.Null, false, nil

	case bytecode.OpJumpIf:
		b, ok := vm.reg(fr, d.A).AsBool()
		if !ok {
			return value.Null, false, vm.typeError("JumpIf", "bool", vm.reg(fr, d.A).Kind().String())
		}
		if b {
			fr.Jump(d.Imm)
		} else {
			fr.AdvanceIP(d.Op)
		}
		return value.Null, false, nil

	case bytecode.OpJumpIfNot:
		b, ok := vm.reg(fr, d.A).AsBool()
		if !ok {
			return value.Null, false, vm.typeError("JumpIfNot", "bool", vm.reg(fr, d.A).Kind().String())
		}
		if !b {
			fr.Jump(d.Imm)
		} else {
			fr.AdvanceIP(d.Op)
		}
		return value.Null, false, nil

	case bytecode.OpForLoopI, bytecode.OpForLoopIInc, bytecode.OpWhileLoopLt:
		return vm.loopOp(fr, d)

	// ---- globals --------------------------------------------------------------

	case bytecode.OpGetGlobalIdx:
		vm.setReg(fr, d.A, vm.Globals.GetIndexed(int(uint16(d.Imm))))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpSetGlobalIdx:
		vm.Globals.SetIndexed(int(uint16(d.Imm)), vm.reg(fr, d.A))
		vm.wipeAllCallSiteCaches()
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpGetGlobal:
		name, err := vm.constantString(fr, int(uint16(d.Imm)))
		if err != nil {
			return value.Null, false, err
		}
		v, ok := vm.Globals.Get(name)
		if !ok {
			return value.Null, false, vm.undefinedVariable(name)
		}
		vm.setReg(fr, d.A, v)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpSetGlobal:
		name, err := vm.constantString(fr, int(uint16(d.Imm)))
		if err != nil {
			return value.Null, false, err
		}
		vm.Globals.Set(name, vm.reg(fr, d.A))
		vm.Globals.InvalidateMappingCache()
		vm.wipeAllCallSiteCaches()
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	// ---- calls ------------------------------------------------------------

	case bytecode.OpCall:
		result, returned, err := vm.doCall(fr, d.A, d.B, d.C)
		if err != nil {
			return value.Null, false, err
		}
		if !returned {
			fr.AdvanceIP(d.Op)
		}
		return result, returned, nil

	case bytecode.OpCallGlobal:
		result, returned, err := vm.doCallGlobal(fr, fr.IP, d.A, d.B, d.C, false)
		if err != nil {
			return value.Null, false, err
		}
		if !returned {
			fr.AdvanceIP(d.Op)
		}
		return result, returned, nil

	case bytecode.OpCallGlobalMono:
		result, returned, err := vm.doCallGlobal(fr, fr.IP, d.A, d.B, d.C, false)
		if err != nil {
			return value.Null, false, err
		}
		if !returned {
			fr.AdvanceIP(d.Op)
		}
		return result, returned, nil

	case bytecode.OpCallGlobalNative:
		result, returned, err := vm.doCallGlobal(fr, fr.IP, d.A, d.B, d.C, true)
		if err != nil {
			return value.Null, false, err
		}
		if !returned {
			fr.AdvanceIP(d.Op)
		}
		return result, returned, nil

	// ---- closures -----------------------------------------------------------

	case bytecode.OpMakeClosure:
		r, err := vm.opMakeClosure(fr, int(uint16(d.Imm)))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpGetUpval:
		r, err := vm.opGetUpval(fr, int(uint16(d.Imm)))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpSetUpval:
		if err := vm.opSetUpval(fr, int(uint16(d.Imm)), vm.reg(fr, d.A)); err != nil {
			return value.Null, false, err
		}
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpCloseUpvals:
		vm.opCloseUpvals(fr, d.A)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	// ---- manual memory --------------------------------------------------------

	case bytecode.OpAlloc:
		r, err := vm.opAlloc(vm.reg(fr, d.B))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpFree:
		if err := vm.opFree(vm.reg(fr, d.A)); err != nil {
			return value.Null, false, err
		}
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpLoadMem:
		r, err := vm.opLoadMem(vm.reg(fr, d.B), vm.reg(fr, d.C))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpLoadMemI:
		r, err := vm.opLoadMem(vm.reg(fr, d.A), value.Int(int64(d.Imm)))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpStoreMem:
		if err := vm.opStoreMem(vm.reg(fr, d.A), vm.reg(fr, d.B), vm.reg(fr, d.C)); err != nil {
			return value.Null, false, err
		}
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpStoreMemI:
		// Format B carries only one register operand, so unlike StoreMem
		// (which takes handle/offset/value from three distinct registers)
		// this variant can only parameterize one side of the store. It
		// stores the sign-extended immediate as the value, at offset 0, into
		// the allocation named by r(a) — the immediate-offset counterpart
		// LoadMemI needed (handle doubling as result register) isn't
		// available here since the value has nowhere else to come from.
		if err := vm.opStoreMem(vm.reg(fr, d.A), value.Int(0), value.Int(int64(d.Imm))); err != nil {
			return value.Null, false, err
		}
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	// ---- arrays / vectors -----------------------------------------------------

	case bytecode.OpArrayNew:
		r, err := vm.opArrayNew(int(uint16(d.Imm)))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpArrayGet:
		r, err := vm.opArrayGet(vm.reg(fr, d.B), vm.reg(fr, d.C))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpArraySet:
		if err := vm.opArraySet(vm.reg(fr, d.A), vm.reg(fr, d.B), vm.reg(fr, d.C)); err != nil {
			return value.Null, false, err
		}
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpArrayLen:
		arr := vm.reg(fr, d.A)
		ref, ok := arr.AsPtr()
		if !ok {
			return value.Null, false, vm.typeError("ArrayLen", "array", arr.Kind().String())
		}
		obj := vm.Heap.Get(heap.GcRef(ref))
		if obj == nil || obj.Kind != heap.KindArray {
			return value.Null, false, vm.typeError("ArrayLen", "array", "object")
		}
		vm.setReg(fr, d.A, value.Int(int64(obj.Array.Len())))
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpVecNew:
		r, err := vm.opVecNew(int(uint16(d.Imm)))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpVecPush:
		if err := vm.opVecPush(vm.reg(fr, d.A), vm.reg(fr, d.B)); err != nil {
			return value.Null, false, err
		}
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpVecPop:
		r, err := vm.opVecPop(vm.reg(fr, d.B))
		if err != nil {
			return value.Null, false, err
		}
		vm.setReg(fr, d.A, r)
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	// ---- GC scope brackets ------------------------------------------------

	case bytecode.OpEnterNoGc:
		if vm.noGCDepth >= MaxNoGCDepth {
			return value.Null, false, vm.invalidBytecode("EnterNoGc: no-gc nesting exceeds limit")
		}
		vm.noGCDepth++
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	case bytecode.OpExitNoGc:
		if vm.noGCDepth > 0 {
			vm.noGCDepth--
		}
		fr.AdvanceIP(d.Op)
		return value.Null, false, nil

	// ---- return -------------------------------------------------------------

	case bytecode.OpReturn:
		return vm.doReturn(vm.reg(fr, d.A))

	case bytecode.OpReturn0:
		return vm.doReturn(value.Null)

	case bytecode.OpHalt:
		return vm.doReturn(value.Null)

	default:
		return value.Null, false, vm.invalidOpcode(uint8(d.Op))
	}
}

func bitwiseOp(op bytecode.Opcode, a, b int64) int64 {
	switch op {
	case bytecode.OpBitAnd:
		return a & b
	case bytecode.OpBitOr:
		return a | b
	case bytecode.OpBitXor:
		return a ^ b
	case bytecode.OpShl:
		return a << uint(b&63)
	case bytecode.OpShr:
		return a >> uint(b&63)
	default:
		return 0
	}
}

func bitwiseImmOp(op bytecode.Opcode, a, imm int64) int64 {
	switch op {
	case bytecode.OpShlIImm:
		return a << uint(imm&63)
	case bytecode.OpShrIImm:
		return a >> uint(imm&63)
	case bytecode.OpAndIImm:
		return a & imm
	case bytecode.OpOrIImm:
		return a | imm
	case bytecode.OpXorIImm:
		return a ^ imm
	default:
		return 0
	}
}

// relOp implements the register/register ordering comparisons (Lt/Le/Gt/Ge
// and their specialized/guarded variants, which all reduce to the same
// generic numeric comparison here).
func (vm *VM) relOp(fr *frame.CallFrame, d bytecode.Decoded, test func(int) bool) (value.Value, bool, error) {
	cmp, ok, err := vm.compareGeneric(vm.reg(fr, d.B), vm.reg(fr, d.C), d.Op.String())
	if err != nil {
		return value.Null, false, err
	}
	result := ok && test(cmp)
	vm.setReg(fr, d.A, value.Bool(result))
	fr.AdvanceIP(d.Op)
	return value.Null, false, nil
}

// relImmOp implements the eight immediate-operand comparisons: r(a) OP imm16.
func (vm *VM) relImmOp(fr *frame.CallFrame, d bytecode.Decoded) (value.Value, bool, error) {
	cmp, ok, err := vm.compareGeneric(vm.reg(fr, d.A), value.Int(int64(d.Imm)), d.Op.String())
	if err != nil {
		return value.Null, false, err
	}
	var result bool
	if ok {
		switch d.Op {
		case bytecode.OpLtImm, bytecode.OpLtIImm:
			result = cmp < 0
		case bytecode.OpLeImm, bytecode.OpLeIImm:
			result = cmp <= 0
		case bytecode.OpGtImm, bytecode.OpGtIImm:
			result = cmp > 0
		case bytecode.OpGeImm, bytecode.OpGeIImm:
			result = cmp >= 0
		}
	}
	vm.setReg(fr, d.A, value.Bool(result))
	fr.AdvanceIP(d.Op)
	return value.Null, false, nil
}

// loopOp implements the counted-loop family: r(a) is the loop counter;
// ForLoopI decrements and jumps back while > 0, ForLoopIInc increments
// and jumps back while below a bound held in r(a+1), WhileLoopLt jumps
// back while r(a) < r(a+1). All three encode their back-edge offset in
// Imm, consistent with checkControl's verify-time validation of it.
func (vm *VM) loopOp(fr *frame.CallFrame, d bytecode.Decoded) (value.Value, bool, error) {
	switch d.Op {
	case bytecode.OpForLoopI:
		n, ok := vm.reg(fr, d.A).AsInt()
		if !ok {
			return value.Null, false, vm.typeError("ForLoopI", "int", vm.reg(fr, d.A).Kind().String())
		}
		n--
		vm.setReg(fr, d.A, value.Int(n))
		if n > 0 {
			fr.Jump(d.Imm)
		} else {
			fr.AdvanceIP(d.Op)
		}
		return value.Null, false, nil

	case bytecode.OpForLoopIInc:
		n, ok := vm.reg(fr, d.A).AsInt()
		if !ok {
			return value.Null, false, vm.typeError("ForLoopIInc", "int", vm.reg(fr, d.A).Kind().String())
		}
		bound, ok := vm.reg(fr, d.A+1).AsInt()
		if !ok {
			return value.Null, false, vm.typeError("ForLoopIInc", "int", vm.reg(fr, d.A+1).Kind().String())
		}
		n++
		vm.setReg(fr, d.A, value.Int(n))
		if n < bound {
			fr.Jump(d.Imm)
		} else {
			fr.AdvanceIP(d.Op)
		}
		return value.Null, false, nil

	default: // OpWhileLoopLt
		a, aok := vm.reg(fr, d.A).AsInt()
		b, bok := vm.reg(fr, d.A+1).AsInt()
		if !aok || !bok {
			return value.Null, false, vm.typeError("WhileLoopLt", "int", "non-int")
		}
		if a < b {
			fr.Jump(d.Imm)
		} else {
			fr.AdvanceIP(d.Op)
		}
		return value.Null, false, nil
	}
}

// constantString resolves a function constant that must be an interned
// string (the global name operand of GetGlobal/SetGlobal).
func (vm *VM) constantString(fr *frame.CallFrame, idx int) (string, error) {
	if idx >= len(fr.Constants) {
		return "", vm.invalidBytecode("constant index out of range")
	}
	ref, ok := fr.Constants[idx].AsPtr()
	if !ok {
		return "", vm.invalidBytecode("constant is not a string")
	}
	obj := vm.Heap.Get(heap.GcRef(ref))
	if obj == nil || obj.Kind != heap.KindString {
		return "", vm.invalidBytecode("constant is not a string")
	}
	return obj.Str.String(), nil
}
