package function

import "github.com/aelys-lang/aelys/lang/bytecode"

// EmitA appends a format-A instruction (three register operands).
func (f *Function) EmitA(op bytecode.Opcode, a, b, c uint8, line uint32) {
	f.emitRaw(bytecode.EncodeA(op, a, b, c), line)
}

// EmitB appends a format-B instruction (one register, a 16-bit immediate).
func (f *Function) EmitB(op bytecode.Opcode, a uint8, imm int16, line uint32) {
	f.emitRaw(bytecode.EncodeB(op, a, imm), line)
}

// EmitC appends a format-C call instruction (dest|func|nargs).
func (f *Function) EmitC(op bytecode.Opcode, dest, fn, nargs uint8, line uint32) {
	f.emitRaw(bytecode.EncodeC(op, dest, fn, nargs), line)
}

// EmitCacheWords appends the two data words a CallGlobal* site requires
// immediately after its instruction word.
func (f *Function) EmitCacheWords(line uint32) {
	f.emitRaw(0, line)
	f.emitRaw(0, line)
	f.CallSiteCount++
}

func (f *Function) emitRaw(word uint32, line uint32) {
	f.builder = append(f.builder, word)
	f.addLine(line)
}

func (f *Function) addLine(line uint32) {
	if n := len(f.Lines); n > 0 && f.Lines[n-1].Line == line && f.Lines[n-1].Count < 0xFFFF {
		f.Lines[n-1].Count++
		return
	}
	f.Lines = append(f.Lines, LineRun{Count: 1, Line: line})
}

// CurrentOffset returns the word offset the next emitted instruction will
// occupy — used by the caller to back-patch jump targets.
func (f *Function) CurrentOffset() int {
	return len(f.builder)
}

// PatchJumpImm rewrites the immediate field of an already-emitted format-B
// jump instruction, used for forward jumps whose target wasn't known at
// emit time.
func (f *Function) PatchJumpImm(offset int, imm int16) {
	d := bytecode.Decode(f.builder[offset])
	f.builder[offset] = bytecode.EncodeB(d.Op, d.A, imm)
}
