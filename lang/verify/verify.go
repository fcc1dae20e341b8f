package verify

import (
	"fmt"

	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/function"
)

// Function performs the full structural verification pass on f and every
// function nested inside it, mirroring verify_function_value's recursive
// descent. It is idempotent: a function already marked Verified is
// accepted without re-walking its bytecode (spec.md §3.2), matching
// ensure_function_verified's fast path.
func Function(f *function.Function) error {
	if f == nil {
		return fmt.Errorf("verify: nil function")
	}
	if f.Verified {
		return nil
	}
	if err := checkFunctionLimits(f); err != nil {
		return fmt.Errorf("verify %q: %w", f.Name, err)
	}
	if err := walkBytecode(f); err != nil {
		return fmt.Errorf("verify %q: %w", f.Name, err)
	}
	for _, nested := range f.NestedFunctions {
		if err := Function(nested); err != nil {
			return err
		}
	}
	f.Verified = true
	return nil
}

// walkBytecode decodes every instruction in f.Bytecode exactly once,
// advancing by each opcode's real width (three words for a wide
// CallGlobal* site), and routes it through every concern checker in turn.
// Grounded on verifier/bytecode/mod.rs's single-pass dispatch loop.
func walkBytecode(f *function.Function) error {
	words := f.Bytecode.Slice()
	numRegs := int(f.NumRegisters)
	constantsLen := len(f.Constants)
	layoutLen := len(f.GlobalLayout.Names())
	nestedLen := len(f.NestedFunctions)
	upvaluesLen := len(f.UpvalueDescs)
	bytecodeLen := len(words)

	ip := 0
	for ip < bytecodeLen {
		d := bytecode.Decode(words[ip])
		if !d.Op.IsValid() {
			return fmt.Errorf("offset %d: invalid opcode byte %d", ip, uint8(d.Op))
		}

		if err := checkRegisters(d, numRegs); err != nil {
			return fmt.Errorf("offset %d: %w", ip, err)
		}
		if err := checkArithmetic(d, numRegs); err != nil {
			return fmt.Errorf("offset %d: %w", ip, err)
		}
		if err := checkControl(d, ip, bytecodeLen); err != nil {
			return fmt.Errorf("offset %d: %w", ip, err)
		}
		if err := checkMemory(d, numRegs); err != nil {
			return fmt.Errorf("offset %d: %w", ip, err)
		}
		if err := checkGlobalsOp(d, constantsLen, layoutLen); err != nil {
			return fmt.Errorf("offset %d: %w", ip, err)
		}
		if err := checkCalls(d, ip, bytecodeLen, numRegs, constantsLen); err != nil {
			return fmt.Errorf("offset %d: %w", ip, err)
		}
		if err := checkClosures(d, nestedLen, upvaluesLen); err != nil {
			return fmt.Errorf("offset %d: %w", ip, err)
		}
		if err := checkConstantLoad(d, constantsLen); err != nil {
			return fmt.Errorf("offset %d: %w", ip, err)
		}

		ip += d.Op.Width()
	}

	if f.Arity > f.NumRegisters {
		return fmt.Errorf("arity %d exceeds num_registers %d", f.Arity, f.NumRegisters)
	}

	return nil
}

// checkConstantLoad validates LoadK's constant-pool reference; grouped
// here rather than in registers.go since it is a pool-index check, not a
// register-range check.
func checkConstantLoad(d bytecode.Decoded, constantsLen int) error {
	if d.Op == bytecode.OpLoadK {
		return checkConstIndex(int(uint16(d.Imm)), constantsLen, "LoadK")
	}
	return nil
}
