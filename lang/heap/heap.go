package heap

import (
	"github.com/cespare/xxhash/v2"

	"github.com/aelys-lang/aelys/lang/function"
)

// Heap is the managed object slab: a slice of slots (nil = free), a free
// list for reuse, and a content-hash intern table for strings.
type Heap struct {
	objects  []*Object
	freeList []uint32

	internTable map[uint64]GcRef

	bytesAllocated uint64
	nextGC         uint64

	// MaxHeapBytes bounds this heap plus whatever the host's manual heap
	// has allocated; the budget check in budget.go enforces the combined
	// total the way spec.md §4.9 requires.
	MaxHeapBytes uint64

	// OtherBytes reports bytes allocated outside this heap (the manual
	// heap) that must also be counted against MaxHeapBytes. lang/vm wires
	// this to ManualHeap.BytesAllocated.
	OtherBytes func() uint64
}

const (
	initialGCThreshold = 1 << 20 // 1 MiB, mirrors aelys-bytecode's INITIAL_GC_THRESHOLD
	gcGrowthFactor     = 2
)

// New creates an empty heap budgeted against maxHeapBytes.
func New(maxHeapBytes uint64) *Heap {
	return &Heap{
		internTable:  make(map[uint64]GcRef),
		nextGC:       initialGCThreshold,
		MaxHeapBytes: maxHeapBytes,
	}
}

func (h *Heap) Get(ref GcRef) *Object {
	if int(ref) >= len(h.objects) {
		return nil
	}
	return h.objects[ref]
}

func (h *Heap) BytesAllocated() uint64 { return h.bytesAllocated }
func (h *Heap) NextGC() uint64         { return h.nextGC }

// ShouldCollect reports whether bytes_allocated has reached the next GC
// threshold (spec.md §4.9's scheduling rule). The caller (lang/vm) is
// responsible for also checking no_gc_depth == 0 before acting on this.
func (h *Heap) ShouldCollect() bool {
	return h.bytesAllocated >= h.nextGC
}

// insert places obj into a free slot (if any) or appends a new one,
// returning its stable GcRef.
func (h *Heap) insert(obj *Object) GcRef {
	if n := len(h.freeList); n > 0 {
		idx := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		h.objects[idx] = obj
		return GcRef(idx)
	}
	idx := len(h.objects)
	h.objects = append(h.objects, obj)
	return GcRef(idx)
}

func hashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// findInterned looks up an existing string object by content hash,
// confirming actual byte equality to guard against a hash collision
// (treated, per spec.md §9, as "different layout" for globals but as a
// genuine miss here — string interning must never merge unequal content).
func (h *Heap) findInterned(s []byte) (GcRef, bool) {
	hash := hashBytes(s)
	ref, ok := h.internTable[hash]
	if !ok {
		return 0, false
	}
	obj := h.Get(ref)
	if obj == nil || obj.Kind != KindString || string(obj.Str.Bytes) != string(s) {
		return 0, false
	}
	return ref, true
}

// InternString returns the canonical GcRef for the given content,
// allocating a new String object only on first sight. Idempotent per
// spec.md §8 invariant 3.
func (h *Heap) InternString(s string) (GcRef, error) {
	bytes := []byte(s)
	if ref, ok := h.findInterned(bytes); ok {
		return ref, nil
	}
	if err := h.reserve(estimateStringSize(len(bytes))); err != nil {
		return 0, err
	}
	hash := hashBytes(bytes)
	obj := &Object{Kind: KindString, Str: &StringObj{Bytes: bytes, Hash: hash}}
	ref := h.insert(obj)
	h.internTable[hash] = ref
	h.bytesAllocated += estimateStringSize(len(bytes))
	return ref, nil
}

// AllocFunction registers a compiled Function as a heap object.
func (h *Heap) AllocFunction(fn *function.Function) (GcRef, error) {
	size := estimateFunctionSize(fn)
	if err := h.reserve(size); err != nil {
		return 0, err
	}
	obj := &Object{Kind: KindFunction, Func: &FunctionObj{Fn: fn}}
	h.bytesAllocated += size
	return h.insert(obj), nil
}

// AllocClosure creates a Closure object over a function and its captured
// upvalues. Caller must ensure len(upvalues) == len(fn.UpvalueDescs).
func (h *Heap) AllocClosure(functionRef GcRef, upvalues []GcRef) (GcRef, error) {
	size := estimateClosureSize(len(upvalues))
	if err := h.reserve(size); err != nil {
		return 0, err
	}
	obj := &Object{Kind: KindClosure, Closure: &ClosureObj{FunctionRef: functionRef, Upvalues: upvalues}}
	h.bytesAllocated += size
	return h.insert(obj), nil
}

// AllocUpvalue creates an open upvalue viewing the given stack index.
func (h *Heap) AllocUpvalue(stackIndex int) (GcRef, error) {
	if err := h.reserve(estimateUpvalueSize()); err != nil {
		return 0, err
	}
	obj := &Object{Kind: KindUpvalue, Upvalue: &UpvalueObj{Location: UpvalueLocation{Open: true, StackIndex: stackIndex}}}
	h.bytesAllocated += estimateUpvalueSize()
	return h.insert(obj), nil
}

// AllocNative registers a Go-implemented native function.
func (h *Heap) AllocNative(name string, arity uint8, fn NativeFunc) (GcRef, error) {
	if err := h.reserve(estimateNativeSize()); err != nil {
		return 0, err
	}
	obj := &Object{Kind: KindNative, Native: &NativeObj{Name: name, Arity: arity, Go: fn}}
	h.bytesAllocated += estimateNativeSize()
	return h.insert(obj), nil
}

// AllocForeign registers an FFI-ABI native function. See ForeignFunc's
// doc comment: this supplements spec.md, it is not named there.
func (h *Heap) AllocForeign(name string, arity uint8, fn ForeignFunc) (GcRef, error) {
	if err := h.reserve(estimateNativeSize()); err != nil {
		return 0, err
	}
	obj := &Object{Kind: KindNative, Native: &NativeObj{Name: name, Arity: arity, Foreign: fn}}
	h.bytesAllocated += estimateNativeSize()
	return h.insert(obj), nil
}

// AllocArray creates a fixed-length, element-type-specialized array.
func (h *Heap) AllocArray(arr *ArrayObj) (GcRef, error) {
	size := estimateArraySize(arr)
	if err := h.reserve(size); err != nil {
		return 0, err
	}
	obj := &Object{Kind: KindArray, Array: arr}
	h.bytesAllocated += size
	return h.insert(obj), nil
}

// AllocVec creates a growable, element-type-specialized vector.
func (h *Heap) AllocVec(vec *VecObj) (GcRef, error) {
	size := estimateVecSize(vec)
	if err := h.reserve(size); err != nil {
		return 0, err
	}
	obj := &Object{Kind: KindVec, VecData: vec}
	h.bytesAllocated += size
	return h.insert(obj), nil
}
