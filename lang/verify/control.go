package verify

import "github.com/aelys-lang/aelys/lang/bytecode"

// checkControl validates jump targets land inside the bytecode buffer.
// Grounded on verifier/bytecode/control.rs. ip is the offset of the jump
// instruction itself; the target is ip + imm, matching frame.Jump's
// saturating-at-zero semantics (negative overflow never escapes the
// buffer at runtime, but the verifier still rejects it up front so a
// malformed module is caught before the frame ever runs).
func checkControl(d bytecode.Decoded, ip, bytecodeLen int) error {
	switch d.Op {
	case bytecode.OpJump, bytecode.OpJumpIf, bytecode.OpJumpIfNot:
		return checkJump(ip, d.Imm, bytecodeLen, d.Op.String())
	case bytecode.OpForLoopI, bytecode.OpForLoopIInc, bytecode.OpWhileLoopLt:
		return checkJump(ip, d.Imm, bytecodeLen, d.Op.String())
	default:
		return nil
	}
}
