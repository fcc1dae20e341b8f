package verify

import "github.com/aelys-lang/aelys/lang/bytecode"

// checkArithmetic covers the generic/specialized/guarded/immediate
// arithmetic and comparison families (spec.md §4.1's Add/Sub/.../GeIImm
// blocks). Grounded on verifier/bytecode/arithmetic.rs: structurally
// there is nothing beyond the register-range check already performed by
// checkRegisters, because operand *types* are resolved dynamically at
// dispatch time (TypeError is a runtime error, not a verify-time one).
// This function exists as its own concern anyway, mirroring the
// original's per-family decomposition, so a future structural rule (for
// example rejecting a known-dead specialized opcode) has an obvious home.
func checkArithmetic(d bytecode.Decoded, numRegs int) error {
	return nil
}
