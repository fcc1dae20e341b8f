package heap

// Mark traces every object reachable from root via a worklist (never
// recursion, so a deep object graph can't blow the Go call stack),
// following aelys-bytecode/src/heap/gc.rs's mark exactly: a Function's
// constants, a Closure's function and upvalues, an Upvalue's closed
// value, and Array/Vec reference-kind elements.
func (h *Heap) Mark(root GcRef) {
	worklist := []GcRef{root}

	for len(worklist) > 0 {
		r := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		obj := h.Get(r)
		if obj == nil || obj.Marked {
			continue
		}
		obj.Marked = true

		switch obj.Kind {
		case KindFunction:
			for _, c := range obj.Func.Fn.Constants {
				if p, ok := c.AsPtr(); ok {
					worklist = append(worklist, GcRef(p))
				}
			}
		case KindClosure:
			worklist = append(worklist, obj.Closure.FunctionRef)
			worklist = append(worklist, obj.Closure.Upvalues...)
		case KindUpvalue:
			if !obj.Upvalue.Location.Open {
				if p, ok := obj.Upvalue.Location.Closed.AsPtr(); ok {
					worklist = append(worklist, GcRef(p))
				}
			}
		case KindString, KindNative:
			// leaf objects, nothing to trace
		case KindArray:
			if obj.Array.Elem == ElemRef {
				for _, v := range obj.Array.Refs {
					if p, ok := v.AsPtr(); ok {
						worklist = append(worklist, GcRef(p))
					}
				}
			}
		case KindVec:
			if obj.VecData.Elem == ElemRef {
				for _, v := range obj.VecData.Refs {
					if p, ok := v.AsPtr(); ok {
						worklist = append(worklist, GcRef(p))
					}
				}
			}
		}
	}
}

// Sweep frees every unmarked object, returning the number of slots freed.
// Unmarks every surviving object so the next cycle starts clean, and
// regrows the collection threshold from live bytes.
func (h *Heap) Sweep() int {
	freed := 0

	for idx, obj := range h.objects {
		if obj == nil {
			continue
		}
		if !obj.Marked {
			h.bytesAllocated -= minU64(h.bytesAllocated, EstimateObjectSize(obj))
			if obj.Kind == KindString {
				delete(h.internTable, obj.Str.Hash)
			}
			h.objects[idx] = nil
			h.freeList = append(h.freeList, uint32(idx))
			freed++
			continue
		}
		obj.Marked = false
	}

	grown := h.bytesAllocated * gcGrowthFactor
	if grown < initialGCThreshold {
		grown = initialGCThreshold
	}
	h.nextGC = grown

	return freed
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Live reports whether a slot currently holds a live object. It does not
// tell a recycled slot from the original object; the call-site cache's
// cheap re-check uses Get and compares the object's kind instead.
func (h *Heap) Live(ref GcRef) bool {
	return h.Get(ref) != nil
}
