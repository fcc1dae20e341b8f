// Package heap implements Aelys's managed, garbage-collected object heap:
// a slab of object slots with a free list, content-hash string interning,
// and worklist-based mark-sweep collection.
//
// Grounded on aelys-bytecode/src/heap/gc.rs (mark/sweep/estimate_object_size)
// and aelys-runtime/src/vm/alloc.rs (allocation/interning entry points).
package heap

import (
	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/value"
)

// GcRef is a stable index into the managed heap's object slab. Index
// stability for an object's lifetime, and reuse of freed slots via the
// free list, are both required by spec.md §3.2.
type GcRef uint32

// Kind identifies which ObjectKind variant an Object holds.
type Kind uint8

const (
	KindString Kind = iota
	KindFunction
	KindClosure
	KindUpvalue
	KindNative
	KindArray
	KindVec
)

// UpvalueLocation is either Open (views a live stack slot) or Closed
// (owns a copied-out Value). See spec.md §4.7.
type UpvalueLocation struct {
	Open       bool
	StackIndex int // valid when Open
	Closed     value.Value
}

// NativeFunc is the Go-implemented native function ABI (spec.md §6.2): it
// receives the VM and already-arity-checked arguments and returns a Value
// or a structured error. The concrete error type lives in lang/rterror;
// this package only needs the shape, not the type, to avoid an import
// cycle (heap is a dependency of vm, not the reverse).
type NativeFunc func(vmState any, args []value.Value) (value.Value, error)

// ForeignFunc is the alternate FFI-shaped native ABI: a raw pointer-width
// argument vector and a single pointer-width return value, for natives
// bound to a C-ABI function pointer rather than implemented in Go.
//
// This is not in spec.md; it supplements aelys-runtime/src/vm/alloc.rs's
// alloc_foreign/NativeFunctionImpl::Foreign, which models natives
// registered via a raw function pointer distinct from ones implemented
// directly in the host language. It exists as a deliberately separate,
// narrower path so the common (Go-native) case never pays for unsafe
// pointer traffic.
type ForeignFunc func(args []uintptr) uintptr

// Object is a heap slot: a GC mark bit plus exactly one payload kind.
type Object struct {
	Marked bool
	Kind   Kind

	Str      *StringObj
	Func     *FunctionObj
	Closure  *ClosureObj
	Upvalue  *UpvalueObj
	Native   *NativeObj
	Array    *ArrayObj
	VecData  *VecObj
}

type StringObj struct {
	Bytes []byte
	Hash  uint64
}

func (s *StringObj) String() string { return string(s.Bytes) }

// FunctionObj wraps a compiled Function as a heap object.
type FunctionObj struct {
	Fn *function.Function
}

// ClosureObj pairs a function with its captured upvalues. Per spec.md
// §3.2, len(Upvalues) == len(Fn.UpvalueDescs) always.
type ClosureObj struct {
	FunctionRef GcRef
	Upvalues    []GcRef // each points to an UpvalueObj
}

type UpvalueObj struct {
	Location UpvalueLocation
}

// NativeObj describes a registered native function. Exactly one of Go or
// Foreign is set, per the alloc_native / alloc_foreign split above.
type NativeObj struct {
	Name    string
	Arity   uint8
	Go      NativeFunc
	Foreign ForeignFunc
}

// ElemKind specializes Array/Vec storage by element type, avoiding boxing
// every element as a Value the way a generic []Value would.
type ElemKind uint8

const (
	ElemInt ElemKind = iota
	ElemFloat
	ElemBool
	ElemRef
)

// ArrayObj is a fixed-length, element-type-specialized array.
type ArrayObj struct {
	Elem  ElemKind
	Ints  []int64
	Flts  []float64
	Bools []bool
	Refs  []value.Value // used when Elem == ElemRef; may itself hold GcRefs
}

func (a *ArrayObj) Len() int {
	switch a.Elem {
	case ElemInt:
		return len(a.Ints)
	case ElemFloat:
		return len(a.Flts)
	case ElemBool:
		return len(a.Bools)
	default:
		return len(a.Refs)
	}
}

// VecObj is a growable, element-type-specialized vector; same storage
// shape as ArrayObj but resizable.
type VecObj struct {
	Elem  ElemKind
	Ints  []int64
	Flts  []float64
	Bools []bool
	Refs  []value.Value
}
