// Package bytecode defines the linear instruction representation that the
// compiler emits and the VM executes: the opcode set, the per-instruction
// operand encoding, and the pooled side tables (extra operands, interned
// strings, debug line map) a compiled Module carries around its code.
package bytecode

// OpCode names one of the instructions of the register machine described in
// spec.md §4.1. Grouping mirrors the spec's grouping; exact values are not
// part of any external contract (nothing outside this module persists a raw
// OpCode byte across builds) except the on-disk format in internal/modfmt,
// which always round-trips within a single build.
type OpCode uint8

const (
	// Literals
	OpNop OpCode = iota
	OpPrimitive // data.primitive: null/true/false
	OpInt       // data.int
	OpNum       // data.num
	OpStr       // data.str{offset,len}

	// Aggregates
	OpBuildTuple
	OpBuildList
	OpBuildMap
	OpBuildError
	OpBuildErrorNull
	OpBuildTagged
	OpBuildTaggedNull
	OpBuildRange
	OpBuildRangeStep
	OpBuildFunc
	OpBuildFuncCapture

	// Bindings & movement
	OpDiscard
	OpCopyUn
	OpCopy
	OpMove
	OpLoadGlobal
	OpLoadCapture
	OpLoadThis
	OpImport

	// Arithmetic
	OpDivFloor
	OpDiv
	OpMul
	OpPow
	OpRem
	OpAdd
	OpSub

	// Bitwise
	OpLShift
	OpRShift
	OpBitAnd
	OpBitOr
	OpBitXor

	// Comparison
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanEqual
	OpGreaterThan
	OpGreaterThanEqual
	OpIn

	// Mutation
	OpAppend

	// Type
	OpAs
	OpIs

	// Unary
	OpNegate
	OpBoolNot
	OpBitNot

	// Errors & tags
	OpUnwrapError
	OpUnwrapTagged
	OpUnwrapTaggedOrNull

	// Sequence shape
	OpCheckLen
	OpAssertLen

	// Indexed access
	OpGet
	OpGetOrNull
	OpSet

	// Control
	OpPushErrHandler
	OpPopErrHandler
	OpJump
	OpJumpIfTrue
	OpJumpIfFalse
	OpJumpIfNull
	OpUnwrapErrorOrJump

	// Iteration
	OpIterInit
	OpIterNext

	// Calls & returns
	OpCall
	OpCallOne
	OpCallZero
	OpThisCall
	OpThisCallZero
	OpRet
	OpRetNull
	OpThrow

	opCodeCount
)

var opNames = [opCodeCount]string{
	OpNop:                "nop",
	OpPrimitive:          "primitive",
	OpInt:                "int",
	OpNum:                "num",
	OpStr:                "str",
	OpBuildTuple:         "build_tuple",
	OpBuildList:          "build_list",
	OpBuildMap:           "build_map",
	OpBuildError:         "build_error",
	OpBuildErrorNull:     "build_error_null",
	OpBuildTagged:        "build_tagged",
	OpBuildTaggedNull:    "build_tagged_null",
	OpBuildRange:         "build_range",
	OpBuildRangeStep:     "build_range_step",
	OpBuildFunc:          "build_func",
	OpBuildFuncCapture:   "build_func_capture",
	OpDiscard:            "discard",
	OpCopyUn:             "copy_un",
	OpCopy:               "copy",
	OpMove:               "move",
	OpLoadGlobal:         "load_global",
	OpLoadCapture:        "load_capture",
	OpLoadThis:           "load_this",
	OpImport:             "import",
	OpDivFloor:           "div_floor",
	OpDiv:                "div",
	OpMul:                "mul",
	OpPow:                "pow",
	OpRem:                "rem",
	OpAdd:                "add",
	OpSub:                "sub",
	OpLShift:             "l_shift",
	OpRShift:             "r_shift",
	OpBitAnd:             "bit_and",
	OpBitOr:              "bit_or",
	OpBitXor:             "bit_xor",
	OpEqual:              "equal",
	OpNotEqual:           "not_equal",
	OpLessThan:           "less_than",
	OpLessThanEqual:      "less_than_equal",
	OpGreaterThan:        "greater_than",
	OpGreaterThanEqual:   "greater_than_equal",
	OpIn:                 "in",
	OpAppend:             "append",
	OpAs:                 "as",
	OpIs:                 "is",
	OpNegate:             "negate",
	OpBoolNot:            "bool_not",
	OpBitNot:             "bit_not",
	OpUnwrapError:        "unwrap_error",
	OpUnwrapTagged:       "unwrap_tagged",
	OpUnwrapTaggedOrNull: "unwrap_tagged_or_null",
	OpCheckLen:           "check_len",
	OpAssertLen:          "assert_len",
	OpGet:                "get",
	OpGetOrNull:          "get_or_null",
	OpSet:                "set",
	OpPushErrHandler:     "push_err_handler",
	OpPopErrHandler:      "pop_err_handler",
	OpJump:               "jump",
	OpJumpIfTrue:         "jump_if_true",
	OpJumpIfFalse:        "jump_if_false",
	OpJumpIfNull:         "jump_if_null",
	OpUnwrapErrorOrJump:  "unwrap_error_or_jump",
	OpIterInit:           "iter_init",
	OpIterNext:           "iter_next",
	OpCall:               "call",
	OpCallOne:            "call_one",
	OpCallZero:           "call_zero",
	OpThisCall:           "this_call",
	OpThisCallZero:       "this_call_zero",
	OpRet:                "ret",
	OpRetNull:            "ret_null",
	OpThrow:              "throw",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "unknown"
}

// noResult is the set of opcodes with has_result == false (spec.md §4.1).
var noResult = map[OpCode]bool{
	OpDiscard:        true,
	OpCopy:           true,
	OpMove:           true,
	OpAppend:         true,
	OpCheckLen:       true,
	OpAssertLen:      true,
	OpSet:            true,
	OpPushErrHandler: true,
	OpPopErrHandler:  true,
	OpJump:           true,
	OpJumpIfTrue:     true,
	OpJumpIfFalse:    true,
	OpJumpIfNull:     true,
	OpRet:            true,
	OpRetNull:        true,
	OpThrow:          true,
	// OpIterNext writes its yielded element itself, via IterNextData.Dst
	// (which aliases the instruction's own result register) — the generic
	// post-switch write would otherwise clobber it with the zero Value.
	OpIterNext: true,
}

// HasResult reports whether op writes a result into its instruction-as-register
// slot, per spec.md §4.1.
func HasResult(op OpCode) bool {
	return !noResult[op]
}

// needsDebug is the set of opcodes that can fault at run time and therefore
// must carry a source offset in the debug line map (spec.md §4.1).
var needsDebug = map[OpCode]bool{
	OpDivFloor:           true,
	OpDiv:                true,
	OpMul:                true,
	OpPow:                true,
	OpRem:                true,
	OpAdd:                true,
	OpSub:                true,
	OpLShift:             true,
	OpRShift:             true,
	OpBitAnd:             true,
	OpBitOr:              true,
	OpBitXor:             true,
	OpLessThan:           true,
	OpLessThanEqual:      true,
	OpGreaterThan:        true,
	OpGreaterThanEqual:   true,
	OpIn:                 true,
	OpAppend:             true,
	OpAs:                 true,
	OpNegate:             true,
	OpBitNot:             true,
	OpUnwrapError:        true,
	OpUnwrapTagged:       true,
	OpUnwrapTaggedOrNull: true,
	OpAssertLen:          true,
	OpGet:                true,
	OpSet:                true,
	OpImport:             true,
	OpUnwrapErrorOrJump:  true,
	OpIterInit:           true,
	OpIterNext:           true,
	OpCall:                true,
	OpCallOne:             true,
	OpCallZero:            true,
	OpThisCall:            true,
	OpThisCallZero:        true,
	OpBuildRange:          true,
	OpBuildRangeStep:      true,
}

// NeedsDebugInfo reports whether op can fault at run time and therefore
// requires a debug_info.lines entry (spec.md §4.1).
func NeedsDebugInfo(op OpCode) bool {
	return needsDebug[op]
}
