// Package frame implements Aelys's live call-frame activation record.
//
// Grounded on aelys-runtime/src/vm/frame.rs: the original caches raw
// pointer+length pairs for bytecode/constants/upvalues for dispatch-loop
// speed; Go slices already carry their own length and are safe to share,
// so CallFrame keeps slices instead of reproducing the pointer pairs —
// the field *shape* (what's cached, and that it's cached per frame rather
// than looked up through the function object on every instruction) is
// what's grounded here, not the exact Rust representation.
package frame

import (
	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// CallFrame is one activation record on the VM's frame stack.
type CallFrame struct {
	FunctionRef heap.GcRef // the Function or Closure object this frame runs
	IP          int        // instruction pointer, a word offset into Bytecode

	// RegisterBase is this frame's offset into the VM's shared register
	// stack; the frame sees its locals as r0..r(NumRegisters-1) at
	// RegisterBase+0..RegisterBase+NumRegisters-1.
	RegisterBase int
	NumRegisters int

	// ReturnDest is the register index, in the CALLER's window, that
	// receives this frame's return value.
	ReturnDest int

	Bytecode  bytecode.Buffer
	Constants []value.Value

	// Upvalues is nil for a plain function call, and the closure's
	// captured upvalue list for a closure call.
	Upvalues []heap.GcRef

	GlobalMappingID uint64
}

// New builds a frame for an ordinary (non-closure) function call.
func New(functionRef heap.GcRef, registerBase, returnDest int, bc bytecode.Buffer, constants []value.Value, numRegisters int) *CallFrame {
	return &CallFrame{
		FunctionRef:  functionRef,
		RegisterBase: registerBase,
		ReturnDest:   returnDest,
		Bytecode:     bc,
		Constants:    constants,
		NumRegisters: numRegisters,
	}
}

// NewWithUpvalues builds a frame for a closure call.
func NewWithUpvalues(functionRef heap.GcRef, registerBase, returnDest int, bc bytecode.Buffer, constants []value.Value, upvalues []heap.GcRef, numRegisters int) *CallFrame {
	f := New(functionRef, registerBase, returnDest, bc, constants, numRegisters)
	f.Upvalues = upvalues
	return f
}

// AdvanceIP moves past the current instruction: 1 word normally, 3 past
// a CallGlobal* site (instruction plus two inline-cache data words).
func (f *CallFrame) AdvanceIP(op bytecode.Opcode) {
	f.IP += op.Width()
}

// Jump performs a signed relative jump from the current IP, saturating
// at 0 rather than underflowing on a large negative offset — matching
// aelys-runtime/src/vm/frame.rs's jump exactly.
func (f *CallFrame) Jump(offset int16) {
	next := f.IP + int(offset)
	if next < 0 {
		next = 0
	}
	f.IP = next
}

// RegisterIndex translates a frame-local register number into the VM's
// shared register-stack index.
func (f *CallFrame) RegisterIndex(local uint8) int {
	return f.RegisterBase + int(local)
}
