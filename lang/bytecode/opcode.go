// Package bytecode defines Aelys's instruction encoding: the Opcode
// enumeration, the three 32-bit instruction formats, and the shared
// mutable-after-finalize instruction buffer dispatch reads from.
//
// Grounded on probe-lang/lang/vm/opcodes.go's Opcode/opcodeInfo table
// texture (teacher), generalized to the register-VM opcode set spec.md
// §4.1 names.
package bytecode

// Opcode identifies an instruction. Values are assigned by family to keep
// related opcodes contiguous, the way the teacher groups arithmetic,
// comparisons, control flow, etc.
type Opcode uint8

const (
	OpNop Opcode = iota

	// register moves and constant loads
	OpMove
	OpLoadI    // format B: r(a) = imm16 (sign-extended)
	OpLoadK    // format B: r(a) = constants[imm16]
	OpLoadBool // format B: r(a) = bool(imm16 != 0)
	OpLoadNull

	// generic arithmetic (dynamic type dispatch)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// specialized int/int arithmetic (compiler knows both operands are int)
	OpAddII
	OpSubII
	OpMulII
	OpDivII
	OpModII

	// specialized float/float arithmetic
	OpAddFF
	OpSubFF
	OpMulFF
	OpDivFF
	OpModFF

	// guarded int/int arithmetic: check tags at runtime, fall back to generic
	OpAddIIG
	OpSubIIG
	OpMulIIG
	OpDivIIG
	OpModIIG

	// guarded float/float arithmetic
	OpAddFFG
	OpSubFFG
	OpMulFFG
	OpDivFFG
	OpModFFG

	// immediate arithmetic: format B, r(a) = r(a) op imm16
	OpAddI
	OpSubI

	// bitwise, generic
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpShr

	// bitwise, int-immediate (format B)
	OpShlIImm
	OpShrIImm
	OpAndIImm
	OpOrIImm
	OpXorIImm

	// comparisons, generic (always yield bool)
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpNot

	// comparisons, specialized int/int
	OpEqII
	OpNeII
	OpLtII
	OpLeII
	OpGtII
	OpGeII

	// comparisons, specialized float/float
	OpEqFF
	OpNeFF
	OpLtFF
	OpLeFF
	OpGtFF
	OpGeFF

	// comparisons, guarded int/int
	OpEqIIG
	OpNeIIG
	OpLtIIG
	OpLeIIG
	OpGtIIG
	OpGeIIG

	// comparisons, guarded float/float
	OpEqFFG
	OpNeFFG
	OpLtFFG
	OpLeFFG
	OpGtFFG
	OpGeFFG

	// comparisons against an immediate (format B)
	OpLtImm
	OpLeImm
	OpGtImm
	OpGeImm
	OpLtIImm
	OpLeIImm
	OpGtIImm
	OpGeIImm

	// control flow (format B unless noted)
	OpJump
	OpJumpIf
	OpJumpIfNot

	// counted loops (format B: r(a) is the loop counter register)
	OpForLoopI
	OpForLoopIInc
	OpWhileLoopLt

	// globals
	OpGetGlobalIdx // format B: r(a) = globals_by_index[imm16]
	OpSetGlobalIdx // format B: globals_by_index[imm16] = r(a)
	OpGetGlobal    // format B: r(a) = globals[constants[imm16].(string)]
	OpSetGlobal    // format B: globals[constants[imm16].(string)] = r(a)

	// calls (format C: dest|func|nargs, args in r(func+1..func+nargs))
	OpCall
	OpCallGlobal       // dest|name-const|nargs, args in r(dest+1..dest+nargs); occupies 3 words: instruction + 2 cache words
	OpCallGlobalMono   // occupies 3 words
	OpCallGlobalNative // occupies 3 words

	// closures
	OpMakeClosure // format B: r(a) = closure over nested_functions[imm16]
	OpGetUpval    // format B: r(a) = upvalues[imm16]
	OpSetUpval    // format B: upvalues[imm16] = r(a)
	OpCloseUpvals // format B: close every open upvalue at or above frame register a (imm16 unused)

	// manual memory
	OpAlloc    // format A: r(a) = alloc(r(b)); c unused
	OpFree     // format A: free(r(a))
	OpLoadMem  // format A: r(a) = manual_heap.load(r(b), r(c))
	OpLoadMemI // format B: r(a) = manual_heap.load(r(a), imm16) — offset immediate, handle in r(a) before write
	OpStoreMem // format A: manual_heap.store(r(a), r(b), r(c))
	OpStoreMemI

	// arrays/vectors (format A unless noted)
	OpArrayNew  // format B: r(a) = new fixed array of length imm16
	OpArrayGet  // r(a) = r(b)[r(c)]
	OpArraySet  // r(a)[r(b)] = r(c)
	OpArrayLen  // format B: r(a) = len(r(a))  (b,c unused)
	OpVecNew    // new growable vector, format B: r(a) = new vec with capacity imm16
	OpVecPush   // r(a).push(r(b))
	OpVecPop    // r(a) = r(b).pop()

	// GC scope brackets
	OpEnterNoGc
	OpExitNoGc

	// return
	OpReturn  // format A: return r(a)
	OpReturn0 // return null
	OpHalt

	opcodeCount
)

// operandFormat is the instruction's bit layout.
type operandFormat uint8

const (
	formatA operandFormat = iota // op:8 | a:8 | b:8 | c:8
	formatB                      // op:8 | a:8 | imm:16
	formatC                      // same bits as A, dest|func|nargs
)

type opcodeInfo struct {
	name   string
	format operandFormat
	// wide marks the three CallGlobal* variants that consume two
	// trailing cache words the decoder must skip as data, not instructions.
	wide bool
}

var opcodeTable = [opcodeCount]opcodeInfo{
	OpNop:      {"Nop", formatA, false},
	OpMove:     {"Move", formatA, false},
	OpLoadI:    {"LoadI", formatB, false},
	OpLoadK:    {"LoadK", formatB, false},
	OpLoadBool: {"LoadBool", formatB, false},
	OpLoadNull: {"LoadNull", formatA, false},

	OpAdd: {"Add", formatA, false},
	OpSub: {"Sub", formatA, false},
	OpMul: {"Mul", formatA, false},
	OpDiv: {"Div", formatA, false},
	OpMod: {"Mod", formatA, false},
	OpNeg: {"Neg", formatA, false},

	OpAddII: {"AddII", formatA, false},
	OpSubII: {"SubII", formatA, false},
	OpMulII: {"MulII", formatA, false},
	OpDivII: {"DivII", formatA, false},
	OpModII: {"ModII", formatA, false},

	OpAddFF: {"AddFF", formatA, false},
	OpSubFF: {"SubFF", formatA, false},
	OpMulFF: {"MulFF", formatA, false},
	OpDivFF: {"DivFF", formatA, false},
	OpModFF: {"ModFF", formatA, false},

	OpAddIIG: {"AddIIG", formatA, false},
	OpSubIIG: {"SubIIG", formatA, false},
	OpMulIIG: {"MulIIG", formatA, false},
	OpDivIIG: {"DivIIG", formatA, false},
	OpModIIG: {"ModIIG", formatA, false},

	OpAddFFG: {"AddFFG", formatA, false},
	OpSubFFG: {"SubFFG", formatA, false},
	OpMulFFG: {"MulFFG", formatA, false},
	OpDivFFG: {"DivFFG", formatA, false},
	OpModFFG: {"ModFFG", formatA, false},

	OpAddI: {"AddI", formatB, false},
	OpSubI: {"SubI", formatB, false},

	OpBitAnd: {"BitAnd", formatA, false},
	OpBitOr:  {"BitOr", formatA, false},
	OpBitXor: {"BitXor", formatA, false},
	OpBitNot: {"BitNot", formatA, false},
	OpShl:    {"Shl", formatA, false},
	OpShr:    {"Shr", formatA, false},

	OpShlIImm: {"ShlIImm", formatB, false},
	OpShrIImm: {"ShrIImm", formatB, false},
	OpAndIImm: {"AndIImm", formatB, false},
	OpOrIImm:  {"OrIImm", formatB, false},
	OpXorIImm: {"XorIImm", formatB, false},

	OpEq:  {"Eq", formatA, false},
	OpNe:  {"Ne", formatA, false},
	OpLt:  {"Lt", formatA, false},
	OpLe:  {"Le", formatA, false},
	OpGt:  {"Gt", formatA, false},
	OpGe:  {"Ge", formatA, false},
	OpNot: {"Not", formatA, false},

	OpEqII: {"EqII", formatA, false},
	OpNeII: {"NeII", formatA, false},
	OpLtII: {"LtII", formatA, false},
	OpLeII: {"LeII", formatA, false},
	OpGtII: {"GtII", formatA, false},
	OpGeII: {"GeII", formatA, false},

	OpEqFF: {"EqFF", formatA, false},
	OpNeFF: {"NeFF", formatA, false},
	OpLtFF: {"LtFF", formatA, false},
	OpLeFF: {"LeFF", formatA, false},
	OpGtFF: {"GtFF", formatA, false},
	OpGeFF: {"GeFF", formatA, false},

	OpEqIIG: {"EqIIG", formatA, false},
	OpNeIIG: {"NeIIG", formatA, false},
	OpLtIIG: {"LtIIG", formatA, false},
	OpLeIIG: {"LeIIG", formatA, false},
	OpGtIIG: {"GtIIG", formatA, false},
	OpGeIIG: {"GeIIG", formatA, false},

	OpEqFFG: {"EqFFG", formatA, false},
	OpNeFFG: {"NeFFG", formatA, false},
	OpLtFFG: {"LtFFG", formatA, false},
	OpLeFFG: {"LeFFG", formatA, false},
	OpGtFFG: {"GtFFG", formatA, false},
	OpGeFFG: {"GeFFG", formatA, false},

	OpLtImm:  {"LtImm", formatB, false},
	OpLeImm:  {"LeImm", formatB, false},
	OpGtImm:  {"GtImm", formatB, false},
	OpGeImm:  {"GeImm", formatB, false},
	OpLtIImm: {"LtIImm", formatB, false},
	OpLeIImm: {"LeIImm", formatB, false},
	OpGtIImm: {"GtIImm", formatB, false},
	OpGeIImm: {"GeIImm", formatB, false},

	OpJump:      {"Jump", formatB, false},
	OpJumpIf:    {"JumpIf", formatB, false},
	OpJumpIfNot: {"JumpIfNot", formatB, false},

	OpForLoopI:    {"ForLoopI", formatB, false},
	OpForLoopIInc: {"ForLoopIInc", formatB, false},
	OpWhileLoopLt: {"WhileLoopLt", formatB, false},

	OpGetGlobalIdx: {"GetGlobalIdx", formatB, false},
	OpSetGlobalIdx: {"SetGlobalIdx", formatB, false},
	OpGetGlobal:    {"GetGlobal", formatB, false},
	OpSetGlobal:    {"SetGlobal", formatB, false},

	OpCall:             {"Call", formatC, false},
	OpCallGlobal:       {"CallGlobal", formatC, true},
	OpCallGlobalMono:   {"CallGlobalMono", formatC, true},
	OpCallGlobalNative: {"CallGlobalNative", formatC, true},

	OpMakeClosure: {"MakeClosure", formatB, false},
	OpGetUpval:    {"GetUpval", formatB, false},
	OpSetUpval:    {"SetUpval", formatB, false},
	OpCloseUpvals: {"CloseUpvals", formatB, false},

	OpAlloc:     {"Alloc", formatA, false},
	OpFree:      {"Free", formatA, false},
	OpLoadMem:   {"LoadMem", formatA, false},
	OpLoadMemI:  {"LoadMemI", formatB, false},
	OpStoreMem:  {"StoreMem", formatA, false},
	OpStoreMemI: {"StoreMemI", formatB, false},

	OpArrayNew: {"ArrayNew", formatB, false},
	OpArrayGet: {"ArrayGet", formatA, false},
	OpArraySet: {"ArraySet", formatA, false},
	OpArrayLen: {"ArrayLen", formatB, false},
	OpVecNew:   {"VecNew", formatB, false},
	OpVecPush:  {"VecPush", formatA, false},
	OpVecPop:   {"VecPop", formatA, false},

	OpEnterNoGc: {"EnterNoGc", formatA, false},
	OpExitNoGc:  {"ExitNoGc", formatA, false},

	OpReturn:  {"Return", formatA, false},
	OpReturn0: {"Return0", formatA, false},
	OpHalt:    {"Halt", formatA, false},
}

// IsValid reports whether the byte is a known opcode. Used by the
// verifier's structural check (spec.md §4.2).
func (op Opcode) IsValid() bool {
	return op < opcodeCount
}

func (op Opcode) String() string {
	if !op.IsValid() {
		return "Unknown"
	}
	if opcodeTable[op].name == "" {
		return "Unknown"
	}
	return opcodeTable[op].name
}

// IsWide reports whether this opcode occupies three words (instruction
// plus two inline-cache data words the decoder must skip).
func (op Opcode) IsWide() bool {
	return op.IsValid() && opcodeTable[op].wide
}

// Width returns how many 32-bit words this instruction occupies.
func (op Opcode) Width() int {
	if op.IsWide() {
		return 3
	}
	return 1
}
