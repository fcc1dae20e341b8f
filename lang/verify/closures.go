package verify

import (
	"github.com/aelys-lang/aelys/lang/bytecode"
)

// checkClosures validates MakeClosure's prototype reference is within the
// function's NestedFunctions table, and GetUpval/SetUpval's index is
// within the function's declared upvalue descriptor count. Grounded on
// verifier/bytecode/closures.rs.
func checkClosures(d bytecode.Decoded, nestedLen, upvaluesLen int) error {
	switch d.Op {
	case bytecode.OpMakeClosure:
		idx := int(uint16(d.Imm))
		if idx >= nestedLen {
			return &Error{Message: "MakeClosure: nested function index out of range"}
		}
		return nil
	case bytecode.OpGetUpval, bytecode.OpSetUpval:
		return checkUpvalIndex(int(uint16(d.Imm)), upvaluesLen, d.Op.String())
	default:
		return nil
	}
}
