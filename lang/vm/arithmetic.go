package vm

import (
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
)

// Generic/specialized/guarded arithmetic and comparison handlers.
//
// Grounded on arithmetic/{mod.rs,numbers.rs}: the generic opcode (Add)
// dynamically dispatches on both operands' kinds and always succeeds for
// any int/float combination (Add also concatenates two strings), raising
// TypeError for any other operand kinds. dispatch.go routes the
// specialized (AddII, AddFF) and guarded (AddIIG, AddFFG) opcodes through
// these same generic handlers, so every variant checks operand kinds at
// runtime and behaves exactly like its generic opcode. Integer results
// are wrapped into the 48-bit range by wrapInt, matching numbers.rs's
// wrapping_add family rather than raising on overflow; value.Int itself
// does not clip.

func wrapInt(n int64) int64 {
	const mask = int64(1) << 48
	n &= mask - 1
	if n >= value.MaxInt+1 {
		n -= mask
	}
	return n
}

func (vm *VM) addGeneric(a, b value.Value, op string) (value.Value, error) {
	if ai, ok := a.AsInt(); ok {
		if bi, ok := b.AsInt(); ok {
			return value.Int(wrapInt(ai + bi)), nil
		}
	}
	af, aok := a.AsNumber()
	bf, bok := b.AsNumber()
	if aok && bok {
		return value.Float(af + bf), nil
	}
	if result, ok, err := vm.tryConcatStrings(a, b); ok || err != nil {
		return result, err
	}
	return value.Null, vm.typeError(op, "number or string", mismatchedKind(a, b))
}

// tryConcatStrings implements arithmetic/mod.rs's try_concat_strings
// fallback: Add succeeds on string+string by interning the concatenation
// of both operands' rendered text (spec.md §4.5, scenario 7). Neither
// operand being a heap string is reported as ok == false, not an error,
// so addGeneric can fall through to its own TypeError with the right
// "number or string" wording.
func (vm *VM) tryConcatStrings(a, b value.Value) (value.Value, bool, error) {
	if !vm.isHeapString(a) || !vm.isHeapString(b) {
		return value.Null, false, nil
	}
	concatenated := vm.ToDisplayString(a) + vm.ToDisplayString(b)
	ref, err := vm.Heap.InternString(concatenated)
	if err != nil {
		return value.Null, true, vm.attachTrace(err)
	}
	return value.Ptr(uint32(ref)), true, nil
}

func (vm *VM) isHeapString(v value.Value) bool {
	ref, ok := v.AsPtr()
	if !ok {
		return false
	}
	obj := vm.Heap.Get(heap.GcRef(ref))
	return obj != nil && obj.Kind == heap.KindString
}

func (vm *VM) subGeneric(a, b value.Value, op string) (value.Value, error) {
	if ai, ok := a.AsInt(); ok {
		if bi, ok := b.AsInt(); ok {
			return value.Int(wrapInt(ai - bi)), nil
		}
	}
	af, aok := a.AsNumber()
	bf, bok := b.AsNumber()
	if aok && bok {
		return value.Float(af - bf), nil
	}
	return value.Null, vm.typeError(op, "number", mismatchedKind(a, b))
}

func (vm *VM) mulGeneric(a, b value.Value, op string) (value.Value, error) {
	if ai, ok := a.AsInt(); ok {
		if bi, ok := b.AsInt(); ok {
			return value.Int(wrapInt(ai * bi)), nil
		}
	}
	af, aok := a.AsNumber()
	bf, bok := b.AsNumber()
	if aok && bok {
		return value.Float(af * bf), nil
	}
	return value.Null, vm.typeError(op, "number", mismatchedKind(a, b))
}

func (vm *VM) divGeneric(a, b value.Value, op string) (value.Value, error) {
	if ai, ok := a.AsInt(); ok {
		if bi, ok := b.AsInt(); ok {
			if bi == 0 {
				return value.Null, vm.divisionByZero()
			}
			return value.Int(wrapInt(ai / bi)), nil
		}
	}
	af, aok := a.AsNumber()
	bf, bok := b.AsNumber()
	if aok && bok {
		if _, bIsInt := b.AsInt(); bIsInt && bf == 0 {
			return value.Null, vm.divisionByZero()
		}
		return value.Float(af / bf), nil
	}
	return value.Null, vm.typeError(op, "number", mismatchedKind(a, b))
}

func (vm *VM) modGeneric(a, b value.Value, op string) (value.Value, error) {
	if ai, ok := a.AsInt(); ok {
		if bi, ok := b.AsInt(); ok {
			if bi == 0 {
				return value.Null, vm.divisionByZero()
			}
			return value.Int(wrapInt(ai % bi)), nil
		}
	}
	af, aok := a.AsNumber()
	bf, bok := b.AsNumber()
	if aok && bok {
		if bf == 0 {
			return value.Null, vm.divisionByZero()
		}
		r := af - bf*float64(int64(af/bf))
		return value.Float(r), nil
	}
	return value.Null, vm.typeError(op, "number", mismatchedKind(a, b))
}

func (vm *VM) negGeneric(a value.Value, op string) (value.Value, error) {
	if ai, ok := a.AsInt(); ok {
		return value.Int(wrapInt(-ai)), nil
	}
	if af, ok := a.AsFloat(); ok {
		return value.Float(-af), nil
	}
	return value.Null, vm.typeError(op, "number", a.Kind().String())
}

func mismatchedKind(a, b value.Value) string {
	if _, ok := a.AsNumber(); !ok {
		return a.Kind().String()
	}
	return b.Kind().String()
}

// compareGeneric implements Lt/Le/Gt/Ge's dynamic ordering: numeric
// cross-kind comparison, NaN never orders as true against anything
// (matching value.Value.IsNaN's float-comparison caveat), and any other
// kind combination is a TypeError.
func (vm *VM) compareGeneric(a, b value.Value, op string) (cmp int, ok bool, err error) {
	af, aok := a.AsNumber()
	bf, bok := b.AsNumber()
	if !aok || !bok {
		return 0, false, vm.typeError(op, "number", mismatchedKind(a, b))
	}
	if a.IsNaN() || b.IsNaN() {
		return 0, false, nil
	}
	switch {
	case af < bf:
		return -1, true, nil
	case af > bf:
		return 1, true, nil
	default:
		return 0, true, nil
	}
}

func boolValue(b bool) value.Value { return value.Bool(b) }
