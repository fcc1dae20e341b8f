// Command aelysvm is a thin bytecode-runner CLI: no lexer/parser lives
// here (spec.md places source compilation out of the runtime's scope),
// so it assembles one of a few built-in demo programs directly via
// lang/function.Function's Emit* methods, then disassembles, executes, or dumps VM state
// against it.
//
// Usage:
//
//	aelysvm -demo <name> -cmd <disasm|run|state>
//
// Grounded on probe-lang/cmd/probec/main.go's flag-driven, single-file
// command texture, generalized from "compile one source file" to "run
// one assembled demo program" since this runtime has no front end.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/olekukonko/tablewriter"

	"github.com/aelys-lang/aelys/lang/bytecode"
	"github.com/aelys-lang/aelys/lang/config"
	"github.com/aelys-lang/aelys/lang/function"
	"github.com/aelys-lang/aelys/lang/host"
	"github.com/aelys-lang/aelys/stdlib/builtins"
)

const version = "0.1.0"

func main() {
	var (
		demo = flag.String("demo", "sumloop", "Demo program: sumloop, manualmem, closure")
		cmd  = flag.String("cmd", "run", "Action: disasm, run, state")
		ver  = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *ver {
		fmt.Printf("aelysvm %s\n", version)
		return
	}

	fn, err := buildDemo(*demo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch *cmd {
	case "disasm":
		disassemble(fn)
	case "run":
		runDemo(fn)
	case "state":
		dumpState(fn)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", *cmd)
		os.Exit(1)
	}
}

// buildDemo assembles one of the named end-to-end scenarios from
// spec.md §8's testable-properties table directly as bytecode, since
// there is no compiler front end to produce it from source text.
func buildDemo(name string) (*function.Function, error) {
	switch name {
	case "sumloop":
		return buildSumLoop(), nil
	case "manualmem":
		return buildManualMem(), nil
	case "closure":
		return buildClosure(), nil
	default:
		return nil, fmt.Errorf("unknown demo %q (want sumloop, manualmem, closure)", name)
	}
}

// buildSumLoop assembles spec.md §8 scenario 3: summing 0..10 via
// ForLoopIInc's increment-and-jump-back-while-below-bound loop.
func buildSumLoop() *function.Function {
	f := function.New("sumloop_demo", 0)
	f.NumRegisters = 3
	f.EmitB(bytecode.OpLoadI, 0, 0, 1)    // ip0: r0 = 0, loop counter i
	f.EmitB(bytecode.OpLoadI, 1, 10, 1)   // ip1: r1 = 10, the bound
	f.EmitB(bytecode.OpLoadI, 2, 0, 1)    // ip2: r2 = 0, running sum
	f.EmitA(bytecode.OpAdd, 2, 2, 0, 1)   // ip3: sum += i
	f.EmitB(bytecode.OpForLoopIInc, 0, -1, 1) // ip4: i++; loop to ip3 while i < bound
	f.EmitA(bytecode.OpReturn, 2, 0, 0, 1)     // ip5
	f.FinalizeBytecode()
	return f
}

// buildManualMem assembles spec.md §8 scenario 1: alloc/store/load/free
// round-tripping two values through the manual heap.
func buildManualMem() *function.Function {
	f := function.New("manualmem_demo", 0)
	f.NumRegisters = 6
	f.EmitB(bytecode.OpLoadI, 0, 10, 1)   // r0 = 10, allocation size
	f.EmitA(bytecode.OpAlloc, 1, 0, 0, 1) // r1 = alloc(10)
	f.EmitB(bytecode.OpLoadI, 2, 0, 1)    // r2 = 0, offset
	f.EmitB(bytecode.OpLoadI, 3, 42, 1)   // r3 = 42
	f.EmitA(bytecode.OpStoreMem, 1, 2, 3, 1)
	f.EmitB(bytecode.OpLoadI, 2, 9, 1)  // r2 = 9, offset
	f.EmitB(bytecode.OpLoadI, 3, 100, 1) // r3 = 100
	f.EmitA(bytecode.OpStoreMem, 1, 2, 3, 1)
	f.EmitB(bytecode.OpLoadI, 2, 0, 1)
	f.EmitA(bytecode.OpLoadMem, 4, 1, 2, 1) // r4 = load(p, 0)
	f.EmitB(bytecode.OpLoadI, 2, 9, 1)
	f.EmitA(bytecode.OpLoadMem, 5, 1, 2, 1) // r5 = load(p, 9)
	f.EmitA(bytecode.OpFree, 1, 0, 0, 1)
	f.EmitA(bytecode.OpAdd, 4, 4, 5, 1) // r4 = r4 + r5
	f.EmitA(bytecode.OpReturn, 4, 0, 0, 1)
	f.FinalizeBytecode()
	return f
}

// buildClosure assembles spec.md §8 scenario 5 end to end: a closure
// over x=10 is built and immediately called with y=5, yielding 15 — the
// CLI has no way to feed a second call into an already-returned closure,
// so both halves of "outer(10)(5)" happen inside one nullary function.
func buildClosure() *function.Function {
	inner := function.New("", 1)
	inner.NumRegisters = 2
	inner.UpvalueDescs = []function.UpvalueDescriptor{{IsLocal: true, Index: 0}}
	inner.EmitB(bytecode.OpGetUpval, 1, 0, 1) // r1 = x
	inner.EmitA(bytecode.OpAdd, 1, 1, 0, 1)   // r1 = x + y (y is the arg in r0)
	inner.EmitA(bytecode.OpReturn, 1, 0, 0, 1)
	inner.FinalizeBytecode()

	outer := function.New("closure_demo", 0)
	outer.NumRegisters = 4
	outer.NestedFunctions = []*function.Function{inner}
	outer.EmitB(bytecode.OpLoadI, 0, 10, 1)      // r0 = 10, the captured x
	outer.EmitB(bytecode.OpMakeClosure, 1, 0, 1) // r1 = closure over inner, capturing r0
	outer.EmitB(bytecode.OpLoadI, 2, 5, 1)       // r2 = 5, the argument (calleeLocal+1)
	outer.EmitC(bytecode.OpCall, 3, 1, 1, 1)     // r3 = r1(r2)
	outer.EmitA(bytecode.OpReturn, 3, 0, 0, 1)
	outer.FinalizeBytecode()
	return outer
}

// disassemble prints every instruction word as opcode + operands,
// color-coding opcode families the way a human scanning output benefits
// from most: control flow in yellow, calls in cyan, everything else
// plain.
func disassemble(fn *function.Function) {
	out := colorable.NewColorableStdout()
	words := fn.Bytecode.Slice()
	ip := 0
	for ip < len(words) {
		d := bytecode.Decode(words[ip])
		line := fmt.Sprintf("%4d: %-16s a=%-3d b=%-3d c=%-3d imm=%d", ip, d.Op.String(), d.A, d.B, d.C, d.Imm)
		switch {
		case d.Op == bytecode.OpJump || d.Op == bytecode.OpJumpIf || d.Op == bytecode.OpJumpIfNot:
			color.New(color.FgYellow).Fprintln(out, line)
		case d.Op == bytecode.OpCall || d.Op == bytecode.OpCallGlobal || d.Op == bytecode.OpCallGlobalMono || d.Op == bytecode.OpCallGlobalNative:
			color.New(color.FgCyan).Fprintln(out, line)
		default:
			fmt.Fprintln(out, line)
		}
		ip += d.Op.Width()
	}
}

// runDemo executes fn as a root call with no arguments (every demo here
// is nullary or has its sole argument baked into the bytecode) and
// prints the resulting value.
func runDemo(fn *function.Function) {
	h := host.WithConfig(config.Default(), nil)
	if err := builtins.Register(h); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	ref, err := h.AllocFunction(fn.Name, fn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	result, err := h.Execute(ref, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("=> %s\n", h.VM().ToDisplayString(result))
}

// dumpState prints a small table describing the function's static shape
// (arity, register count, constant/bytecode sizes) — there is no live
// frame to inspect once execution has returned, so this reports the
// function's compiled metadata rather than a mid-run snapshot.
func dumpState(fn *function.Function) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"field", "value"})
	table.Append([]string{"name", fn.Name})
	table.Append([]string{"arity", fmt.Sprintf("%d", fn.Arity)})
	table.Append([]string{"num_registers", fmt.Sprintf("%d", fn.NumRegisters)})
	table.Append([]string{"bytecode_words", fmt.Sprintf("%d", fn.Bytecode.Len())})
	table.Append([]string{"constants", fmt.Sprintf("%d", len(fn.Constants))})
	table.Append([]string{"nested_functions", fmt.Sprintf("%d", len(fn.NestedFunctions))})
	table.Append([]string{"upvalue_descs", fmt.Sprintf("%d", len(fn.UpvalueDescs))})
	table.Render()
}
