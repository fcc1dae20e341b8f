package verify

import "github.com/aelys-lang/aelys/lang/bytecode"

// checkRegisters validates that every register operand an instruction
// reads or writes falls within [0, numRegisters). Grounded on
// verifier/bytecode/registers.rs: which operand positions apply depends
// on the opcode's actual arity, not just its wire format, so the buckets
// below mirror the per-opcode doc comments in bytecode/opcode.go. The call
// family's register operands are checked by checkCalls instead.
func checkRegisters(d bytecode.Decoded, numRegs int) error {
	name := d.Op.String()
	switch d.Op {
	// no register read or written here
	case bytecode.OpJump, bytecode.OpCloseUpvals,
		bytecode.OpReturn0, bytecode.OpHalt, bytecode.OpNop,
		bytecode.OpCall, bytecode.OpCallGlobal, bytecode.OpCallGlobalMono, bytecode.OpCallGlobalNative:
		return nil

	// r(a) and the loop bound in r(a+1)
	case bytecode.OpForLoopIInc, bytecode.OpWhileLoopLt:
		if err := checkReg(int(d.A), numRegs, name); err != nil {
			return err
		}
		return checkReg(int(d.A)+1, numRegs, name)

	// only r(a)
	case bytecode.OpLoadI, bytecode.OpLoadK, bytecode.OpLoadBool, bytecode.OpLoadNull,
		bytecode.OpAddI, bytecode.OpSubI,
		bytecode.OpShlIImm, bytecode.OpShrIImm, bytecode.OpAndIImm, bytecode.OpOrIImm, bytecode.OpXorIImm,
		bytecode.OpLtImm, bytecode.OpLeImm, bytecode.OpGtImm, bytecode.OpGeImm,
		bytecode.OpLtIImm, bytecode.OpLeIImm, bytecode.OpGtIImm, bytecode.OpGeIImm,
		bytecode.OpJumpIf, bytecode.OpJumpIfNot, bytecode.OpForLoopI,
		bytecode.OpGetGlobalIdx, bytecode.OpSetGlobalIdx, bytecode.OpGetGlobal, bytecode.OpSetGlobal,
		bytecode.OpMakeClosure, bytecode.OpGetUpval, bytecode.OpSetUpval,
		bytecode.OpLoadMemI, bytecode.OpStoreMemI,
		bytecode.OpArrayNew, bytecode.OpArrayLen, bytecode.OpVecNew,
		bytecode.OpFree, bytecode.OpReturn, bytecode.OpEnterNoGc, bytecode.OpExitNoGc:
		return checkReg(int(d.A), numRegs, name)

	// r(a) and r(b)
	case bytecode.OpMove, bytecode.OpAlloc, bytecode.OpNeg, bytecode.OpNot, bytecode.OpBitNot,
		bytecode.OpVecPush, bytecode.OpVecPop:
		if err := checkReg(int(d.A), numRegs, name); err != nil {
			return err
		}
		return checkReg(int(d.B), numRegs, name)

	// r(a), r(b), r(c)
	default:
		if err := checkReg(int(d.A), numRegs, name); err != nil {
			return err
		}
		if err := checkReg(int(d.B), numRegs, name); err != nil {
			return err
		}
		return checkReg(int(d.C), numRegs, name)
	}
}
