package verify

import "github.com/aelys-lang/aelys/lang/bytecode"

// checkGlobalsOp validates the name-keyed global opcodes' constant-pool
// references and the indexed global opcodes' layout bounds. Grounded on
// verifier/bytecode/globals.rs.
func checkGlobalsOp(d bytecode.Decoded, constantsLen, layoutLen int) error {
	switch d.Op {
	case bytecode.OpGetGlobal, bytecode.OpSetGlobal:
		return checkConstIndex(int(uint16(d.Imm)), constantsLen, d.Op.String())
	case bytecode.OpGetGlobalIdx, bytecode.OpSetGlobalIdx:
		idx := int(uint16(d.Imm))
		if idx >= layoutLen {
			return &Error{Message: "global index out of range for function's global layout"}
		}
		return nil
	default:
		return nil
	}
}
