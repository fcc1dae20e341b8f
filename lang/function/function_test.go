package function

import (
	"testing"

	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/value"
)

func TestFinalizeBytecodeGrowsNumRegistersToCoverHighestTouched(t *testing.T) {
	f := New("f", 0)
	f.NumRegisters = 1
	f.EmitA(bytecode.OpAdd, 4, 0, 1, 1)
	f.EmitA(bytecode.OpReturn, 4, 0, 0, 1)
	f.FinalizeBytecode()

	if f.NumRegisters < 5 {
		t.Fatalf("expected NumRegisters to grow to at least 5 to cover r4, got %d", f.NumRegisters)
	}
}

func TestFinalizeBytecodeNeverShrinksNumRegisters(t *testing.T) {
	f := New("f", 0)
	f.NumRegisters = 10
	f.EmitA(bytecode.OpReturn, 0, 0, 0, 1)
	f.FinalizeBytecode()

	if f.NumRegisters != 10 {
		t.Fatalf("expected a pre-set NumRegisters higher than what bytecode touches to be preserved, got %d", f.NumRegisters)
	}
}

func TestFinalizeBytecodeRecursesIntoNestedFunctions(t *testing.T) {
	nested := New("inner", 0)
	nested.NumRegisters = 1
	nested.EmitA(bytecode.OpAdd, 3, 0, 1, 1)
	nested.EmitA(bytecode.OpReturn, 3, 0, 0, 1)

	outer := New("outer", 0)
	outer.NestedFunctions = []*Function{nested}
	outer.EmitA(bytecode.OpReturn, 0, 0, 0, 1)
	outer.FinalizeBytecode()

	if nested.NumRegisters < 4 {
		t.Fatalf("expected FinalizeBytecode to also finalize nested functions, got NumRegisters=%d", nested.NumRegisters)
	}
}

func TestLineForWalksRunLengthEncodedTable(t *testing.T) {
	f := New("f", 0)
	f.EmitA(bytecode.OpMove, 0, 0, 0, 10) // offset 0, line 10
	f.EmitA(bytecode.OpMove, 0, 0, 0, 10) // offset 1, line 10
	f.EmitA(bytecode.OpReturn, 0, 0, 0, 11) // offset 2, line 11
	f.FinalizeBytecode()

	if got := f.LineFor(0); got != 10 {
		t.Fatalf("expected line 10 at offset 0, got %d", got)
	}
	if got := f.LineFor(1); got != 10 {
		t.Fatalf("expected line 10 at offset 1, got %d", got)
	}
	if got := f.LineFor(2); got != 11 {
		t.Fatalf("expected line 11 at offset 2, got %d", got)
	}
}

func TestLineForPastEndReturnsLastLine(t *testing.T) {
	f := New("f", 0)
	f.EmitA(bytecode.OpReturn, 0, 0, 0, 5)
	f.FinalizeBytecode()

	if got := f.LineFor(100); got != 5 {
		t.Fatalf("expected an out-of-range offset to fall back to the last known line, got %d", got)
	}
}

func TestPatchJumpImmRewritesImmediateInPlace(t *testing.T) {
	f := New("f", 0)
	jumpOffset := f.CurrentOffset()
	f.EmitB(bytecode.OpJump, 0, 0, 1)
	f.PatchJumpImm(jumpOffset, 7)
	f.FinalizeBytecode()

	d := bytecode.Decode(f.Bytecode.Slice()[jumpOffset])
	if d.Imm != 7 {
		t.Fatalf("expected the patched immediate 7, got %d", d.Imm)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	f := New("roundtrip", 2)
	f.NumRegisters = 3
	f.Constants = []value.Value{value.Int(1), value.Float(2.5), value.Bool(true), value.Null}
	f.UpvalueDescs = []UpvalueDescriptor{{IsLocal: true, Index: 0}, {IsLocal: false, Index: 1}}
	f.EmitA(bytecode.OpAdd, 2, 0, 1, 1)
	f.EmitA(bytecode.OpReturn, 2, 0, 0, 1)
	f.FinalizeBytecode()

	blob, err := Serialize(f)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if back.Name != f.Name || back.Arity != f.Arity || back.NumRegisters != f.NumRegisters {
		t.Fatalf("expected name/arity/num_registers to round-trip, got %#v", back)
	}
	if len(back.Bytecode.Slice()) != len(f.Bytecode.Slice()) {
		t.Fatalf("expected bytecode word count to round-trip, got %d want %d", len(back.Bytecode.Slice()), len(f.Bytecode.Slice()))
	}
	for i, w := range f.Bytecode.Slice() {
		if back.Bytecode.Slice()[i] != w {
			t.Fatalf("bytecode word %d mismatch: got %x want %x", i, back.Bytecode.Slice()[i], w)
		}
	}
	if len(back.Constants) != len(f.Constants) {
		t.Fatalf("expected %d constants, got %d", len(f.Constants), len(back.Constants))
	}
	if len(back.UpvalueDescs) != 2 || back.UpvalueDescs[0].IsLocal != true || back.UpvalueDescs[1].Index != 1 {
		t.Fatalf("expected upvalue descriptors to round-trip, got %#v", back.UpvalueDescs)
	}
}

func TestDeserializeRejectsGarbageInput(t *testing.T) {
	if _, err := Deserialize([]byte("not a valid aelys blob")); err == nil {
		t.Fatal("expected Deserialize to reject a non-magic-prefixed blob")
	}
}

func TestGlobalLayoutIDIsOrderAndContentSensitive(t *testing.T) {
	a := NewGlobalLayout([]string{"a", "b"})
	b := NewGlobalLayout([]string{"a", "b"})
	c := NewGlobalLayout([]string{"b", "a"})
	d := NewGlobalLayout([]string{"ab"})

	if a.ID() != b.ID() {
		t.Fatal("expected identical name lists to share a mapping id")
	}
	if a.ID() == c.ID() {
		t.Fatal("expected reordered names to get a different mapping id")
	}
	if a.ID() == d.ID() {
		t.Fatal("expected concatenated names to not collide with the separated pair")
	}
}

func TestEmptyGlobalLayoutIsShared(t *testing.T) {
	a := EmptyLayout()
	b := NewGlobalLayout(nil)
	if !a.IsEmpty() || !b.IsEmpty() {
		t.Fatal("expected both to report IsEmpty")
	}
	if a.ID() != b.ID() {
		t.Fatal("expected both empty-layout constructions to share mapping id 0")
	}
}
