// Package verify implements Aelys's pre-execution structural bytecode
// verifier (spec.md §4.2).
//
// Decomposed into one file per instruction-family concern, mirroring
// aelys-runtime/src/vm/verifier/bytecode/mod.rs's dispatch through
// registers/arithmetic/control/memory/globals/calls/closures checkers,
// each reporting "did I handle this opcode" so the walker can fall
// through to the next concern.
package verify

import (
	"fmt"

	"github.com/aelys-lang/aelys/lang/callsite"
	"github.com/aelys-lang/aelys/lang/function"
)

// Error is one structural verification failure.
type Error struct {
	Offset  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("verify error at offset %d: %s", e.Offset, e.Message)
}

func checkReg(reg, numRegs int, op string) error {
	if reg >= numRegs {
		return fmt.Errorf("%s: register r%d out of range (num_registers=%d)", op, reg, numRegs)
	}
	return nil
}

func checkRegRange(base, count, numRegs int, op string) error {
	if count == 0 {
		return nil
	}
	if base+count > numRegs {
		return fmt.Errorf("%s: register range [%d,%d) out of range (num_registers=%d)", op, base, base+count, numRegs)
	}
	return nil
}

func checkConstIndex(idx, constantsLen int, op string) error {
	if idx >= constantsLen {
		return fmt.Errorf("%s: constant index %d out of range (pool size %d)", op, idx, constantsLen)
	}
	return nil
}

func checkUpvalIndex(idx, upvaluesLen int, op string) error {
	if idx >= upvaluesLen {
		return fmt.Errorf("%s: upvalue index %d out of range (%d upvalues)", op, idx, upvaluesLen)
	}
	return nil
}

func checkJump(ip int, imm int16, bytecodeLen int, op string) error {
	target := ip + int(imm)
	if target < 0 || target >= bytecodeLen {
		return fmt.Errorf("%s: jump target %d out of range (bytecode length %d)", op, target, bytecodeLen)
	}
	return nil
}

func checkCallArgs(base, nargs, numRegs int, op string) error {
	return checkRegRange(base, nargs, numRegs, op)
}

// checkFunctionLimits enforces the size guard that exists purely so
// CallSiteCacheEntry's packed fields (bytecode_len as u32, constants_len
// as u16 in the original) never silently truncate. Go has no such packed
// representation, but the invariant is preserved so a function compiled
// against this limit behaves identically regardless of host.
func checkFunctionLimits(f *function.Function) error {
	if f.Bytecode.Len() > 1<<32-1 {
		return fmt.Errorf("bytecode length %d exceeds maximum %d", f.Bytecode.Len(), uint32(1<<32-1))
	}
	if len(f.Constants) > 1<<16-1 {
		return fmt.Errorf("constants length %d exceeds maximum %d", len(f.Constants), uint16(1<<16-1))
	}
	if len(f.UpvalueDescs) > 255 {
		return fmt.Errorf("upvalue_descriptors length %d exceeds maximum 255", len(f.UpvalueDescs))
	}
	if f.CallSiteCount > callsite.MaxSlots {
		return fmt.Errorf("call_site_count %d exceeds maximum %d", f.CallSiteCount, callsite.MaxSlots)
	}
	return nil
}
