package function

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/snappy"

	"github.com/aelys-lang/aelys/lang/value"
)

// magic tags a serialized function blob, grounded on
// probe-lang/integration/engine.go's IsPROBEContract magic-prefix pattern,
// generalized from a single blockchain contract encoding to Aelys's
// Function ABI.
var magic = [4]byte{'A', 'E', 'L', 'Y'}

const formatVersion = 1

// Serialize encodes the round-trippable subset of a Function named in
// spec.md §8 invariant 2 — name, arity, num_registers, bytecode,
// constants, upvalue_descriptors — as a snappy-compressed binary blob.
// Nested functions, line tables, and global layout are not part of that
// invariant and are re-derived by the compiler on reload; Serialize omits
// them deliberately rather than silently keeping stale copies.
func Serialize(f *Function) ([]byte, error) {
	var raw bytes.Buffer
	raw.Write(magic[:])
	raw.WriteByte(formatVersion)

	writeString(&raw, f.Name)
	raw.WriteByte(f.Arity)
	raw.WriteByte(f.NumRegisters)

	words := f.Bytecode.Slice()
	binary.Write(&raw, binary.LittleEndian, uint32(len(words)))
	for _, w := range words {
		binary.Write(&raw, binary.LittleEndian, w)
	}

	binary.Write(&raw, binary.LittleEndian, uint16(len(f.Constants)))
	for _, c := range f.Constants {
		if err := writeValue(&raw, c); err != nil {
			return nil, err
		}
	}

	raw.WriteByte(uint8(len(f.UpvalueDescs)))
	for _, u := range f.UpvalueDescs {
		if u.IsLocal {
			raw.WriteByte(1)
		} else {
			raw.WriteByte(0)
		}
		raw.WriteByte(u.Index)
	}

	return snappy.Encode(nil, raw.Bytes()), nil
}

// Deserialize decodes a blob produced by Serialize back into a Function
// with a fresh, empty global layout (the host re-links globals on load).
func Deserialize(blob []byte) (*Function, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("aelys: decompressing function blob: %w", err)
	}
	r := bytes.NewReader(raw)

	var gotMagic [4]byte
	if _, err := r.Read(gotMagic[:]); err != nil || gotMagic != magic {
		return nil, fmt.Errorf("aelys: not an Aelys function blob")
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("aelys: unsupported function blob version %d", version)
	}

	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	arity, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	numRegs, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	var wordCount uint32
	if err := binary.Read(r, binary.LittleEndian, &wordCount); err != nil {
		return nil, err
	}
	words := make([]uint32, wordCount)
	for i := range words {
		if err := binary.Read(r, binary.LittleEndian, &words[i]); err != nil {
			return nil, err
		}
	}

	var constCount uint16
	if err := binary.Read(r, binary.LittleEndian, &constCount); err != nil {
		return nil, err
	}
	constants := make([]value.Value, constCount)
	for i := range constants {
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		constants[i] = v
	}

	upvalCount, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	upvals := make([]UpvalueDescriptor, upvalCount)
	for i := range upvals {
		isLocal, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		idx, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		upvals[i] = UpvalueDescriptor{IsLocal: isLocal != 0, Index: idx}
	}

	f := New(name, arity)
	f.NumRegisters = numRegs
	f.builder = words
	f.FinalizeBytecode()
	f.Constants = constants
	f.UpvalueDescs = upvals
	return f, nil
}

// value tags for the constant-pool encoding.
const (
	tagNull uint8 = iota
	tagInt
	tagFloat
	tagBool
	tagPtr
)

func writeValue(w *bytes.Buffer, v value.Value) error {
	switch v.Kind() {
	case value.KindNull:
		w.WriteByte(tagNull)
	case value.KindInt:
		w.WriteByte(tagInt)
		n, _ := v.AsInt()
		binary.Write(w, binary.LittleEndian, n)
	case value.KindFloat:
		w.WriteByte(tagFloat)
		f, _ := v.AsFloat()
		binary.Write(w, binary.LittleEndian, math.Float64bits(f))
	case value.KindBool:
		w.WriteByte(tagBool)
		b, _ := v.AsBool()
		if b {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case value.KindPtr:
		w.WriteByte(tagPtr)
		p, _ := v.AsPtr()
		binary.Write(w, binary.LittleEndian, p)
	default:
		return fmt.Errorf("aelys: cannot serialize value kind %v", v.Kind())
	}
	return nil
}

func readValue(r *bytes.Reader) (value.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return value.Null, err
	}
	switch tag {
	case tagNull:
		return value.Null, nil
	case tagInt:
		var n int64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.Null, err
		}
		return value.Int(n), nil
	case tagFloat:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return value.Null, err
		}
		return value.Float(math.Float64frombits(bits)), nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return value.Null, err
		}
		return value.Bool(b != 0), nil
	case tagPtr:
		var p uint32
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			return value.Null, err
		}
		return value.Ptr(p), nil
	default:
		return value.Null, fmt.Errorf("aelys: unknown constant tag %d", tag)
	}
}

func writeString(w *bytes.Buffer, s string) {
	binary.Write(w, binary.LittleEndian, uint16(len(s)))
	w.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
