// Package host is Aelys's embedding surface: the API a Go program uses to
// load compiled functions, wire native callbacks, and drive execution
// without touching lang/vm's internals directly.
//
// Grounded on probe-lang/integration/engine.go's ExecutionContext — a thin
// façade a host application builds once, registers its native surface on,
// and then calls repeatedly — generalized from that package's chain-specific
// bindings to spec.md §7's generic embedding surface.
package host

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aelys-lang/aelys/lang/config"
	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/heap"
	"github.com/aelys-lang/aelys/lang/value"
	"github.com/aelys-lang/aelys/lang/vm"
)

// Logger is the structured-logging surface lang/host accepts (lang/vm
// takes no logger),
// satisfied trivially by a no-op default — the same "accept an interface,
// default to silence" shape probe-lang/integration/engine.go uses for its
// own pluggable ExecutionContext collaborators.
type Logger interface {
	Debug(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Host owns one Aelys VM instance plus the bookkeeping an embedder needs:
// a stable correlation id for log correlation across a process that may
// run many Hosts concurrently, and a name-to-ref index of loaded functions
// so callers can invoke by name instead of juggling heap.GcRef values.
type Host struct {
	ID     string
	vm     *vm.VM
	log    Logger
	byName map[string]heap.GcRef
}

// New builds a Host with a default VmConfig.
func New() *Host {
	return WithConfig(config.Default(), nil)
}

// WithConfig builds a Host over the given config and logger; a nil logger
// gets the silent default, matching New.
func WithConfig(cfg *config.VmConfig, logger Logger) *Host {
	if logger == nil {
		logger = noopLogger{}
	}
	h := &Host{
		ID:     uuid.NewString(),
		vm:     vm.New(cfg),
		log:    logger,
		byName: make(map[string]heap.GcRef),
	}
	h.log.Debug("host started", "id", h.ID)
	return h
}

// AllocFunction registers a compiled function under name so it can later be
// invoked via CallFunctionByName, and returns its heap reference for direct
// use (e.g. as an argument to AllocClosure-shaped call sites).
func (h *Host) AllocFunction(name string, fn *function.Function) (heap.GcRef, error) {
	if fn.Name == "" {
		fn.Name = name
	}
	ref, err := h.vm.Heap.AllocFunction(fn)
	if err != nil {
		return 0, fmt.Errorf("host: alloc function %q: %w", name, err)
	}
	h.byName[name] = ref
	return ref, nil
}

// AllocString interns a string on the managed heap, returning its ref.
func (h *Host) AllocString(s string) (heap.GcRef, error) {
	ref, err := h.vm.Heap.InternString(s)
	if err != nil {
		return 0, fmt.Errorf("host: alloc string: %w", err)
	}
	return ref, nil
}

// AllocNative registers a Go-implemented native function, by spec.md §6.2's
// NativeFunc shape, under name.
func (h *Host) AllocNative(name string, arity uint8, fn heap.NativeFunc) (heap.GcRef, error) {
	ref, err := h.vm.Heap.AllocNative(name, arity, fn)
	if err != nil {
		return 0, fmt.Errorf("host: alloc native %q: %w", name, err)
	}
	h.byName[name] = ref
	return ref, nil
}

// AllocForeign registers an FFI-shaped native function, under name.
func (h *Host) AllocForeign(name string, arity uint8, fn heap.ForeignFunc) (heap.GcRef, error) {
	ref, err := h.vm.Heap.AllocForeign(name, arity, fn)
	if err != nil {
		return 0, fmt.Errorf("host: alloc foreign %q: %w", name, err)
	}
	h.byName[name] = ref
	return ref, nil
}

// SetGlobal binds a global variable by name to v, making it visible to
// GetGlobal and to CallGlobal*'s by-name resolution.
func (h *Host) SetGlobal(name string, v value.Value) {
	h.vm.Globals.Set(name, v)
}

// GetGlobal reads a global variable by name.
func (h *Host) GetGlobal(name string) (value.Value, bool) {
	return h.vm.Globals.Get(name)
}

// RegisterBuiltins exposes every (name, ref) pair in fns as both a global
// binding and a byName entry, the shape stdlib/builtins and
// stdlib/cryptonative use to install themselves on a freshly built Host.
func (h *Host) RegisterBuiltins(fns map[string]heap.GcRef) {
	for name, ref := range fns {
		h.byName[name] = ref
		h.vm.Globals.Set(name, value.Ptr(uint32(ref)))
	}
}

// CallableFunction resolves a name registered via AllocFunction/AllocNative
// /AllocForeign/RegisterBuiltins to its heap reference.
func (h *Host) CallableFunction(name string) (heap.GcRef, bool) {
	ref, ok := h.byName[name]
	return ref, ok
}

// Execute runs fnRef with args to completion, surfacing its return value or
// the RuntimeError that stopped it.
func (h *Host) Execute(fnRef heap.GcRef, args []value.Value) (value.Value, error) {
	result, err := h.vm.ExecuteFunction(fnRef, args)
	if err != nil {
		h.log.Warn("execution failed", "id", h.ID, "err", err.Error())
	}
	return result, err
}

// CallFunctionByName looks a function up by the name it was registered
// under and executes it, the common case for a host driving a script
// entry point rather than juggling heap.GcRef values directly.
func (h *Host) CallFunctionByName(name string, args ...value.Value) (value.Value, error) {
	ref, ok := h.CallableFunction(name)
	if !ok {
		return value.Null, fmt.Errorf("host: no function registered under %q", name)
	}
	return h.Execute(ref, args)
}

// VM exposes the underlying VM for callers that need lower-level access
// (disassembly tooling, direct heap inspection) the façade doesn't cover.
func (h *Host) VM() *vm.VM {
	return h.vm
}
