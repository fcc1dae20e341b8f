// Package function implements Aelys's compiled, immutable-after-finalize
// unit of execution: Function, its upvalue descriptors, and its global
// name layout.
//
// Grounded on aelys-bytecode/src/bytecode/function/mod.rs.
package function

import (
	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/value"
)

// UpvalueDescriptor says where a closure's Nth upvalue comes from: either
// a register in the immediately enclosing frame (IsLocal) or an upvalue
// already captured by that enclosing closure (transitive capture).
type UpvalueDescriptor struct {
	IsLocal bool
	Index   uint8
}

// Function is a compiled unit. Once FinalizeBytecode has run, Bytecode
// and Constants are never resized; the only permitted mutation is an
// in-place patch of the two cache words following a CallGlobal* site.
type Function struct {
	Name             string // empty means anonymous
	Arity            uint8
	NumRegisters     uint8
	CallSiteCount    uint16 // pre-allocated call-site cache slots
	Bytecode         bytecode.Buffer
	Constants        []value.Value
	NestedFunctions  []*Function
	UpvalueDescs     []UpvalueDescriptor
	Lines            []LineRun // run-length encoded (count, line) pairs
	GlobalLayout     *GlobalLayout
	GlobalLayoutHash uint64

	// Verified is set to true the first time the verifier accepts this
	// function; verification is idempotent (spec.md §3.2).
	Verified bool

	builder []uint32 // temporary storage during compilation, see builder.go
}

// LineRun is a run-length encoded (instruction count, source line) pair.
type LineRun struct {
	Count uint16
	Line  uint32
}

// New creates an empty function ready for emission via its Emit* methods.
func New(name string, arity uint8) *Function {
	return &Function{
		Name:         name,
		Arity:        arity,
		GlobalLayout: EmptyLayout(),
	}
}

// FinalizeBytecode freezes the instruction stream built up via the emit
// helpers into an immutable Buffer, and grows NumRegisters to cover the
// highest register field requiredRegisters finds, up to the format's
// 8-bit limit. A call's argument window and a loop's bound register
// r(a+1) are not counted.
func (f *Function) FinalizeBytecode() {
	if len(f.builder) > 0 {
		f.Bytecode = bytecode.NewBuffer(f.builder)
		f.builder = nil
	}
	needed := requiredRegisters(f.Bytecode.Slice())
	if needed > int(f.NumRegisters) {
		if needed > 255 {
			needed = 255
		}
		f.NumRegisters = uint8(needed)
	}
	for _, nested := range f.NestedFunctions {
		nested.FinalizeBytecode()
	}
}

// requiredRegisters scans decoded instructions for the highest register
// index referenced and returns count = highest + 1. It is a conservative
// static scan, not a liveness analysis: the compiler is expected to size
// num_registers correctly, this only raises it if bytecode reaches higher.
func requiredRegisters(words []uint32) int {
	max := -1
	i := 0
	for i < len(words) {
		d := bytecode.Decode(words[i])
		switch d.Op {
		case bytecode.OpLoadI, bytecode.OpLoadK, bytecode.OpLoadBool,
			bytecode.OpAddI, bytecode.OpSubI,
			bytecode.OpShlIImm, bytecode.OpShrIImm, bytecode.OpAndIImm, bytecode.OpOrIImm, bytecode.OpXorIImm,
			bytecode.OpLtImm, bytecode.OpLeImm, bytecode.OpGtImm, bytecode.OpGeImm,
			bytecode.OpLtIImm, bytecode.OpLeIImm, bytecode.OpGtIImm, bytecode.OpGeIImm,
			bytecode.OpJump, bytecode.OpJumpIf, bytecode.OpJumpIfNot,
			bytecode.OpForLoopI, bytecode.OpForLoopIInc, bytecode.OpWhileLoopLt,
			bytecode.OpGetGlobalIdx, bytecode.OpSetGlobalIdx, bytecode.OpGetGlobal, bytecode.OpSetGlobal,
			bytecode.OpMakeClosure, bytecode.OpGetUpval, bytecode.OpSetUpval, bytecode.OpCloseUpvals,
			bytecode.OpLoadMemI, bytecode.OpStoreMemI,
			bytecode.OpArrayNew, bytecode.OpArrayLen, bytecode.OpVecNew:
			if int(d.A) > max {
				max = int(d.A)
			}
		default:
			if int(d.A) > max {
				max = int(d.A)
			}
			if int(d.B) > max {
				max = int(d.B)
			}
			if int(d.C) > max {
				max = int(d.C)
			}
		}
		i += d.Op.Width()
	}
	return max + 1
}

// LineFor returns the source line for the instruction at the given word
// offset by walking the run-length-encoded line table.
func (f *Function) LineFor(offset int) uint32 {
	remaining := offset
	for _, run := range f.Lines {
		if remaining < int(run.Count) {
			return run.Line
		}
		remaining -= int(run.Count)
	}
	if len(f.Lines) == 0 {
		return 0
	}
	return f.Lines[len(f.Lines)-1].Line
}
