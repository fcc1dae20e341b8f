package vm

import (
	"github.com/aelys-lang/aelys/lang/frame"
	"github.com/aelys-lang/aelys/lang/rterror"
)

// withTrace attaches the current frame stack to err (most-recent-call
// first), matching the original's convention of capturing a trace at the
// point an error is raised rather than unwinding to collect one.
func (vm *VM) withTrace(err *rterror.RuntimeError) *rterror.RuntimeError {
	trace := make([]rterror.StackFrame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		trace = append(trace, rterror.StackFrame{
			FunctionName: vm.frameFunctionName(fr),
			Line:         vm.frameLine(fr),
		})
	}
	err.StackTrace = trace
	return err
}

func (vm *VM) frameFunctionName(fr *frame.CallFrame) string {
	fn := vm.resolveFunction(fr.FunctionRef)
	if fn == nil {
		return ""
	}
	return fn.Name
}

func (vm *VM) frameLine(fr *frame.CallFrame) uint32 {
	fn := vm.resolveFunction(fr.FunctionRef)
	if fn == nil {
		return 0
	}
	return fn.LineFor(fr.IP)
}

func (vm *VM) typeError(op string, expected, got string) error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.TypeError, Operation: op, Expected: expected, Got: got})
}

func (vm *VM) invalidRegister(idx, max int) error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.InvalidRegister, Index: idx, Max: uint64(max)})
}

func (vm *VM) invalidOpcode(op uint8) error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.InvalidOpcode, Opcode: op})
}

func (vm *VM) notCallable(name string) error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.NotCallable, Name: name})
}

func (vm *VM) arityMismatch(expected, got uint8) error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.ArityMismatch, Expected8: expected, Got8: got})
}

func (vm *VM) stackOverflow() error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.StackOverflow})
}

func (vm *VM) divisionByZero() error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.DivisionByZero})
}

func (vm *VM) capabilityDenied(name string) error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.CapabilityDenied, CapName: name})
}

func (vm *VM) indexOutOfBounds(idx, length int64) error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.IndexOutOfBounds, IndexVal: idx, Length: length})
}

func (vm *VM) undefinedVariable(name string) error {
	e := &rterror.RuntimeError{Kind: rterror.UndefinedVariable, Name: name}
	e.Hint = rterror.UndefinedVariableHint(name, vm.Globals.Names())
	return vm.withTrace(e)
}

func (vm *VM) invalidBytecode(msg string) error {
	return vm.withTrace(&rterror.RuntimeError{Kind: rterror.InvalidBytecode, Message: msg})
}

// negativeIndexErr builds a NegativeMemoryIndex error for an attachTrace
// call site where the index originates from manual-memory opcode operands
// rather than from lang/manualheap itself (which never sees the raw,
// possibly-negative Value before this package's operand translation).
func negativeIndexErr(v int64) *rterror.RuntimeError {
	return &rterror.RuntimeError{Kind: rterror.NegativeMemoryIndex, Value: v}
}

// currentLine returns the source line of the currently executing
// instruction, for manual-memory allocation/free bookkeeping.
func (vm *VM) currentLine() uint32 {
	if len(vm.frames) == 0 {
		return 0
	}
	return vm.frameLine(vm.currentFrame())
}

// attachTrace stamps vm's current call stack onto an error produced deeper
// in the call graph (lang/manualheap, lang/globals) that had no access to
// frame state when it was raised.
func (vm *VM) attachTrace(err error) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*rterror.RuntimeError); ok {
		return vm.withTrace(re)
	}
	return err
}
