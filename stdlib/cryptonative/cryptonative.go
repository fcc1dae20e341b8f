// Package cryptonative registers optional hashing natives on top of the
// manual heap: sha3_256 and shake256, reading their input from a manual
// allocation and writing the digest into a fresh one. Not part of the
// six core builtins spec.md §4.11 requires — this supplements the
// distilled spec the way the original's stdlib/crypto module supplements
// the bare runtime, grounded on probe-lang/stdlib/crypto's pattern of a
// native that allocates and returns a new handle rather than mutating
// its argument in place.
package cryptonative

import (
	"golang.org/x/crypto/sha3"

	"github.com/aelys-lang/aelys/lang/host"
	"github.com/aelys-lang/aelys/lang/rterror"
	"github.com/aelys-lang/aelys/lang/value"
	"github.com/aelys-lang/aelys/lang/vm"
)

// Register installs sha3_256(handle, len) and shake256(handle, len,
// outLen) on h.
func Register(h *host.Host) error {
	if _, err := h.AllocNative("sha3_256", 2, builtinSHA3_256); err != nil {
		return err
	}
	if _, err := h.AllocNative("shake256", 3, builtinShake256); err != nil {
		return err
	}
	for _, name := range []string{"sha3_256", "shake256"} {
		ref, _ := h.CallableFunction(name)
		h.SetGlobal(name, value.Ptr(uint32(ref)))
	}
	return nil
}

func asVM(vmState any) *vm.VM {
	return vmState.(*vm.VM)
}

// readManualBytes drains length int-valued slots (each truncated to a
// byte, matching how Aelys source represents a byte buffer as an Array
// of small ints) starting at offset 0 of handle.
func readManualBytes(m *vm.VM, handle value.Value, length int64) ([]byte, error) {
	buf := make([]byte, length)
	for i := int64(0); i < length; i++ {
		v, err := m.LoadManual(handle, value.Int(i))
		if err != nil {
			return nil, err
		}
		n, ok := v.AsInt()
		if !ok {
			return nil, &rterror.RuntimeError{
				Kind: rterror.TypeError, Operation: "sha3_256", Expected: "int byte", Got: m.TypeName(v),
			}
		}
		buf[i] = byte(n)
	}
	return buf, nil
}

// writeManualBytes allocates a fresh handle of len(data) slots and
// stores each byte as an int, the inverse of readManualBytes.
func writeManualBytes(m *vm.VM, data []byte) (value.Value, error) {
	handle, err := m.Alloc(value.Int(int64(len(data))))
	if err != nil {
		return value.Null, err
	}
	for i, b := range data {
		if err := m.StoreManual(handle, value.Int(int64(i)), value.Int(int64(b))); err != nil {
			return value.Null, err
		}
	}
	return handle, nil
}

func builtinSHA3_256(vmState any, args []value.Value) (value.Value, error) {
	m := asVM(vmState)
	length, ok := args[1].AsInt()
	if !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "sha3_256", Expected: "int", Got: m.TypeName(args[1]),
		}
	}
	input, err := readManualBytes(m, args[0], length)
	if err != nil {
		return value.Null, err
	}
	digest := sha3.Sum256(input)
	return writeManualBytes(m, digest[:])
}

func builtinShake256(vmState any, args []value.Value) (value.Value, error) {
	m := asVM(vmState)
	length, ok := args[1].AsInt()
	if !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "shake256", Expected: "int", Got: m.TypeName(args[1]),
		}
	}
	outLen, ok := args[2].AsInt()
	if !ok {
		return value.Null, &rterror.RuntimeError{
			Kind: rterror.TypeError, Operation: "shake256", Expected: "int", Got: m.TypeName(args[2]),
		}
	}
	input, err := readManualBytes(m, args[0], length)
	if err != nil {
		return value.Null, err
	}
	out := make([]byte, outLen)
	sha3.ShakeSum256(out, input)
	return writeManualBytes(m, out)
}
