// Package value implements Aelys's tagged runtime value representation.
package value

import "math"

// Kind identifies which alternative a Value currently holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindPtr
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindPtr:
		return "object"
	default:
		return "unknown"
	}
}

// MaxInt and MinInt bound the 48-bit signed integer range a Value's
// integer payload can hold. A compiler that emits an integer constant
// outside this range should raise IntegerOverflow before the runtime
// ever sees it.
const (
	MaxInt = 1<<47 - 1
	MinInt = -(1 << 47)
)

// Value is a tagged union carrying exactly one of int48, float64, bool,
// null, or a GcRef-shaped object pointer (an index into the managed heap).
// Unlike the original's NaN-boxed 64-bit encoding, this Go port keeps the
// tag explicit: Go has no safe way to alias a float64's NaN payload with an
// integer without unsafe.Pointer tricks, and the verifier/dispatch-loop
// invariants this runtime cares about don't depend on the physical encoding,
// only on the Kind/payload semantics — so there is nothing to gain from
// reproducing the bit-packing and real correctness risk in getting it wrong
// with no way to test it.
type Value struct {
	kind  Kind
	i     int64
	f     float64
	ptr   uint32
}

var Null = Value{kind: KindNull}

func Int(n int64) Value {
	return Value{kind: KindInt, i: n}
}

func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

// Ptr wraps a managed-heap slot index (a GcRef's raw index) as a Value.
func Ptr(index uint32) Value {
	return Value{kind: KindPtr, ptr: index}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.i != 0, true
}

// AsPtr returns the managed-heap slot index this Value addresses, if it
// holds an object pointer.
func (v Value) AsPtr() (uint32, bool) {
	if v.kind != KindPtr {
		return 0, false
	}
	return v.ptr, true
}

// AsNumber widens an int or float Value to float64, for code paths (string
// formatting, guarded arithmetic fallback) that don't care which.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal implements Aelys's by-value equality: numbers compare across
// kinds (1 == 1.0), everything else requires identical Kind and payload.
// Object pointers compare by slot index; content equality for strings is
// guaranteed upstream by interning (see lang/heap).
func Equal(a, b Value) bool {
	if a.kind == KindInt && b.kind == KindInt {
		return a.i == b.i
	}
	if (a.kind == KindInt || a.kind == KindFloat) && (b.kind == KindInt || b.kind == KindFloat) {
		af, _ := a.AsNumber()
		bf, _ := b.AsNumber()
		return af == bf
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.i == b.i
	case KindPtr:
		return a.ptr == b.ptr
	default:
		return false
	}
}

// IsNaN reports whether a float Value holds NaN, used by comparison
// handlers that must treat NaN as ordering-incomparable.
func (v Value) IsNaN() bool {
	return v.kind == KindFloat && math.IsNaN(v.f)
}
