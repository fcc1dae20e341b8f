package bytecode

// Buffer is the shared, immutable-after-finalize instruction stream.
//
// Grounded on aelys-bytecode/src/bytecode/buffer.rs's BytecodeBuffer,
// which wraps an Arc<UnsafeCell<Box<[u32]>>> so multiple call frames can
// share one instruction stream by pointer while still patching the two
// inline-cache words that follow a CallGlobal* site in place. Go slices
// already share a backing array across copies, so Buffer needs no interior
// mutability trick — Patch just writes through the shared backing array.
// This is safe ONLY under the single-threaded dispatch invariant of
// spec.md §5; a future multi-threaded dispatcher would need Patch to use
// atomic word stores, never patching opcode words, exactly as the
// original's own doc comment prescribes.
type Buffer struct {
	words []uint32
}

// NewBuffer wraps a finalized instruction stream. The caller must not
// retain or mutate words outside of Patch after this call.
func NewBuffer(words []uint32) Buffer {
	return Buffer{words: words}
}

func Empty() Buffer { return Buffer{} }

func (b Buffer) Len() int { return len(b.words) }

// Read returns the instruction word at offset without bounds checking;
// callers must have verified the function first.
func (b Buffer) Read(offset int) uint32 { return b.words[offset] }

// Patch overwrites a cache word in place. Used only for the two words
// following a CallGlobal* instruction.
func (b Buffer) Patch(offset int, val uint32) { b.words[offset] = val }

func (b Buffer) Slice() []uint32 { return b.words }
