package verify

import "github.com/aelys-lang/aelys/lang/bytecode"

// checkCalls validates the Call/CallGlobal* family. Call addresses its
// callee through a register (dest|func|nargs, args at func+1..func+nargs);
// the CallGlobal* family instead resolves its callee by name, so its B
// field indexes the constant pool for the interned name string rather than
// a register, and its argument window sits at dest+1..dest+nargs since
// there is no separate func register to offset from. A wide CallGlobal*
// instruction must also have its two trailing cache words present in the
// buffer (the decoder advances by three words past one of these, so a
// truncated tail would otherwise desync every subsequent offset in the
// function). Grounded on verifier/bytecode/calls.rs.
func checkCalls(d bytecode.Decoded, ip, bytecodeLen, numRegs, constantsLen int) error {
	switch d.Op {
	case bytecode.OpCall:
		name := d.Op.String()
		if err := checkReg(int(d.A), numRegs, name); err != nil {
			return err
		}
		if err := checkReg(int(d.B), numRegs, name); err != nil {
			return err
		}
		return checkCallArgs(int(d.B)+1, int(d.C), numRegs, name)

	case bytecode.OpCallGlobal, bytecode.OpCallGlobalMono, bytecode.OpCallGlobalNative:
		name := d.Op.String()
		if err := checkReg(int(d.A), numRegs, name); err != nil {
			return err
		}
		if err := checkConstIndex(int(d.B), constantsLen, name); err != nil {
			return err
		}
		if err := checkCallArgs(int(d.A)+1, int(d.C), numRegs, name); err != nil {
			return err
		}
		if ip+3 > bytecodeLen {
			return &Error{Offset: ip, Message: name + ": wide call site missing trailing cache words"}
		}
		return nil

	default:
		return nil
	}
}
