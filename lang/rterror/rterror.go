// Package rterror defines the structured runtime error taxonomy surfaced
// to hosts embedding the Aelys VM.
//
// The Kind enumeration and message rendering are grounded verbatim on
// aelys-common/src/error/runtime.rs from the original implementation this
// specification was distilled from.
package rterror

import (
	"fmt"
	"strings"

	gostack "github.com/go-stack/stack"
)

// Kind classifies a RuntimeError. The set is closed and exhaustive per
// spec.md §6.3.
type Kind int

const (
	TypeError Kind = iota
	DivisionByZero
	UndefinedVariable
	NotCallable
	ArityMismatch
	StackOverflow
	InvalidAllocationSize
	OutOfMemory
	InvalidMemoryHandle
	DoubleFree
	UseAfterFree
	MemoryOutOfBounds
	NegativeMemoryIndex
	InvalidConstantIndex
	InvalidOpcode
	InvalidRegister
	InvalidBytecode
	CapabilityDenied
	NativeError
	IndexOutOfBounds
)

// StackFrame is one entry of a RuntimeError's stack trace, most-recent-call
// first.
type StackFrame struct {
	FunctionName string // empty means "<script>"
	Line         uint32
	Column       uint32
}

// RuntimeError is the single structured error type every fallible VM
// operation returns.
type RuntimeError struct {
	Kind      Kind
	Operation string // set for TypeError
	Expected  string // set for TypeError
	Got       string // set for TypeError
	Name      string // set for UndefinedVariable / NotCallable
	Hint      string // optional "did you mean" suggestion, UndefinedVariable only
	Expected8 uint8  // set for ArityMismatch.expected
	Got8      uint8  // set for ArityMismatch.got
	Size      int64  // set for InvalidAllocationSize
	Requested uint64 // set for OutOfMemory
	Max       uint64 // set for OutOfMemory / InvalidConstantIndex / InvalidRegister
	Offset    int    // set for MemoryOutOfBounds
	MemSize   int    // set for MemoryOutOfBounds
	Value     int64  // set for NegativeMemoryIndex
	Index     int    // set for InvalidConstantIndex / InvalidRegister
	Opcode    uint8  // set for InvalidOpcode
	Message   string // set for InvalidBytecode
	CapName   string // set for CapabilityDenied
	Code      int32  // set for NativeError
	IndexVal  int64  // set for IndexOutOfBounds.index
	Length    int64  // set for IndexOutOfBounds.length

	StackTrace []StackFrame
	// GoStack is a debug-build-only annotation of the Go-level call stack
	// that produced this error, independent of the Aelys stack trace above.
	GoStack string
}

func (k Kind) String() string {
	switch k {
	case TypeError:
		return "TypeError"
	case DivisionByZero:
		return "DivisionByZero"
	case UndefinedVariable:
		return "UndefinedVariable"
	case NotCallable:
		return "NotCallable"
	case ArityMismatch:
		return "ArityMismatch"
	case StackOverflow:
		return "StackOverflow"
	case InvalidAllocationSize:
		return "InvalidAllocationSize"
	case OutOfMemory:
		return "OutOfMemory"
	case InvalidMemoryHandle:
		return "InvalidMemoryHandle"
	case DoubleFree:
		return "DoubleFree"
	case UseAfterFree:
		return "UseAfterFree"
	case MemoryOutOfBounds:
		return "MemoryOutOfBounds"
	case NegativeMemoryIndex:
		return "NegativeMemoryIndex"
	case InvalidConstantIndex:
		return "InvalidConstantIndex"
	case InvalidOpcode:
		return "InvalidOpcode"
	case InvalidRegister:
		return "InvalidRegister"
	case InvalidBytecode:
		return "InvalidBytecode"
	case CapabilityDenied:
		return "CapabilityDenied"
	case NativeError:
		return "NativeError"
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	default:
		return "Unknown"
	}
}

// message renders the one-line human-readable description of the error,
// matching RuntimeErrorKind::message() in the original.
func (e *RuntimeError) message() string {
	switch e.Kind {
	case TypeError:
		return fmt.Sprintf("type error in '%s': expected %s, got %s", e.Operation, e.Expected, e.Got)
	case DivisionByZero:
		return "division by zero"
	case UndefinedVariable:
		return fmt.Sprintf("undefined variable '%s'", e.Name)
	case NotCallable:
		return fmt.Sprintf("'%s' is not callable", e.Name)
	case ArityMismatch:
		return fmt.Sprintf("expected %d arguments, got %d", e.Expected8, e.Got8)
	case StackOverflow:
		return "stack overflow"
	case InvalidAllocationSize:
		return fmt.Sprintf("invalid allocation size: %d (must be > 0)", e.Size)
	case OutOfMemory:
		return fmt.Sprintf("out of memory: requested %d bytes (max %d bytes)", e.Requested, e.Max)
	case InvalidMemoryHandle:
		return "invalid memory handle"
	case DoubleFree:
		return "double free: pointer was already freed"
	case UseAfterFree:
		return "use after free: pointer was already freed"
	case MemoryOutOfBounds:
		return fmt.Sprintf("memory access out of bounds: offset %d exceeds size %d", e.Offset, e.MemSize)
	case NegativeMemoryIndex:
		return fmt.Sprintf("negative memory index: %d", e.Value)
	case InvalidConstantIndex:
		return fmt.Sprintf("invalid constant index: %d (max: %d)", e.Index, e.Max)
	case InvalidOpcode:
		return fmt.Sprintf("invalid opcode: %d", e.Opcode)
	case InvalidRegister:
		return fmt.Sprintf("invalid register index: %d (max: %d)", e.Index, e.Max)
	case InvalidBytecode:
		return fmt.Sprintf("invalid bytecode: %s", e.Message)
	case CapabilityDenied:
		return fmt.Sprintf("capability denied: %s", e.CapName)
	case NativeError:
		return fmt.Sprintf("native error: code %d", e.Code)
	case IndexOutOfBounds:
		return fmt.Sprintf("index out of bounds: index %d is out of bounds for length %d", e.IndexVal, e.Length)
	default:
		return e.Kind.String()
	}
}

const maxTraceFrames = 50

// Error implements the error interface, rendering the message and a
// capped stack trace the way the original's Display impl does.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error: %s", e.message())

	if len(e.StackTrace) > 0 {
		b.WriteString("\nstack trace (most recent call first):\n")
		n := len(e.StackTrace)
		if n > maxTraceFrames {
			n = maxTraceFrames
		}
		for _, frame := range e.StackTrace[:n] {
			name := frame.FunctionName
			if name == "" {
				name = "<script>"
			}
			fmt.Fprintf(&b, "  %s (line %d)\n", name, frame.Line)
		}
		if len(e.StackTrace) > maxTraceFrames {
			fmt.Fprintf(&b, "  ... %d more frames\n", len(e.StackTrace)-maxTraceFrames)
		}
	}

	if e.Hint != "" {
		fmt.Fprintf(&b, "hint: %s\n", e.Hint)
	}

	return strings.TrimRight(b.String(), "\n")
}

// New builds a RuntimeError of the given kind and attaches the current
// Go-level call stack for debug-build diagnostics, mirroring the teacher's
// use of go-stack/stack in go-probe's own error paths.
func New(kind Kind) *RuntimeError {
	return &RuntimeError{
		Kind:    kind,
		GoStack: fmt.Sprintf("%+v", gostack.Trace().TrimRuntime()),
	}
}
