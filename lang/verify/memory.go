package verify

import "github.com/aelys-lang/aelys/lang/bytecode"

// checkMemory covers the manual-memory and array/vector opcode families.
// Grounded on verifier/bytecode/memory.rs: handle validity, bounds, and
// double-free/use-after-free are all runtime concerns (manualheap.Alloc/
// Load/Store/Free already raise the matching rterror.Kind), so the only
// structural property left to the verifier is that register operands are
// in range — already covered by checkRegisters. This function documents
// that the family was considered and found to need no family-specific
// structural rule beyond registers, the same way the original's
// memory.rs checker falls through for opcodes it has nothing extra to
// say about.
func checkMemory(d bytecode.Decoded, numRegs int) error {
	return nil
}
