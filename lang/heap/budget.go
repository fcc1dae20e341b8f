package heap

import (
	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/rterror"
)

// reserve enforces spec.md §4.9's combined budget check before any
// allocation: bytes_allocated + manual_heap.bytes_allocated + request
// must not exceed max_heap_bytes.
func (h *Heap) reserve(request uint64) error {
	other := uint64(0)
	if h.OtherBytes != nil {
		other = h.OtherBytes()
	}
	if h.bytesAllocated+other+request > h.MaxHeapBytes {
		return &rterror.RuntimeError{
			Kind:      rterror.OutOfMemory,
			Requested: request,
			Max:       h.MaxHeapBytes,
		}
	}
	return nil
}

func estimateStringSize(n int) uint64 {
	const headerSize = 24
	return headerSize + uint64(n)
}

func estimateFunctionSize(fn *function.Function) uint64 {
	const headerSize = 64
	return headerSize + uint64(fn.Bytecode.Len())*4 + uint64(len(fn.Constants))*16
}

func estimateClosureSize(nUpvalues int) uint64 {
	const headerSize = 24
	return headerSize + uint64(nUpvalues)*4
}

func estimateUpvalueSize() uint64 {
	return 24
}

func estimateNativeSize() uint64 {
	return 40
}

func estimateArraySize(a *ArrayObj) uint64 {
	const headerSize = 24
	switch a.Elem {
	case ElemInt:
		return headerSize + uint64(len(a.Ints))*8
	case ElemFloat:
		return headerSize + uint64(len(a.Flts))*8
	case ElemBool:
		return headerSize + uint64(len(a.Bools))
	default:
		return headerSize + uint64(len(a.Refs))*16
	}
}

func estimateVecSize(v *VecObj) uint64 {
	const headerSize = 24
	switch v.Elem {
	case ElemInt:
		return headerSize + uint64(cap(v.Ints))*8
	case ElemFloat:
		return headerSize + uint64(cap(v.Flts))*8
	case ElemBool:
		return headerSize + uint64(cap(v.Bools))
	default:
		return headerSize + uint64(cap(v.Refs))*16
	}
}

// EstimateObjectSize mirrors aelys-bytecode/src/heap/gc.rs's
// estimate_object_size, used by Sweep to keep bytes_allocated accurate.
func EstimateObjectSize(obj *Object) uint64 {
	switch obj.Kind {
	case KindString:
		return estimateStringSize(len(obj.Str.Bytes))
	case KindFunction:
		return estimateFunctionSize(obj.Func.Fn)
	case KindClosure:
		return estimateClosureSize(len(obj.Closure.Upvalues))
	case KindUpvalue:
		return estimateUpvalueSize()
	case KindNative:
		return estimateNativeSize()
	case KindArray:
		return estimateArraySize(obj.Array)
	case KindVec:
		return estimateVecSize(obj.VecData)
	default:
		return 0
	}
}
