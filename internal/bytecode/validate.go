package bytecode

import "fmt"

// Body is a view of one function (or the module top level) for validation:
// the instruction indices that make up it, in execution order, plus the
// number of leading parameter registers.
type Body struct {
	Instrs []uint32 // instruction indices into Module.Code/Data
	Params int
}

// Validate checks invariants 1-3 of spec.md §8 against a single body. The
// bytecode and compiler tests call it as a self-check; modfmt.Read and
// `debug:read` do not call it, so a module loaded from disk runs without
// being validated.
func (m *Module) Validate(b Body) error {
	pos := make(map[uint32]int, len(b.Instrs))
	for i, idx := range b.Instrs {
		pos[idx] = i
	}

	refOK := func(r Ref, atPos int) bool {
		if int(r) < b.Params {
			return true
		}
		// r must name an earlier instruction in this body.
		target := uint32(r) - uint32(b.Params)
		if int(target) >= len(b.Instrs) {
			return false
		}
		p, ok := pos[b.Instrs[target]]
		return ok && p < atPos
	}

	for i, idx := range b.Instrs {
		op := m.Code[idx]
		d := m.Data[idx]
		for _, r := range m.operandRefs(op, d) {
			if !refOK(r, i) {
				return fmt.Errorf("bytecode: instruction %d (%s) has out-of-range operand ref %d", i, op, r)
			}
		}
		if NeedsDebugInfo(op) {
			if _, ok := m.Debug.Offset(int(idx)); !ok {
				return fmt.Errorf("bytecode: instruction %d (%s) needs debug info but has none", i, op)
			}
		}
	}
	return nil
}

// operandRefs extracts the Refs an instruction's data references, for the
// opcodes that carry register operands (as opposed to pool offsets or
// literal constants; string-pool offsets are not range-checked against
// Strings length, here or in modfmt.Read). Several opcodes
// pack their operand registers into the Extra pool (aggregate builders,
// calls, property/tag lookups); those are decoded from m.Extra directly by
// the conventions the compiler uses (see internal/compiler/aggregates.go).
func (m *Module) operandRefs(op OpCode, d Data) []Ref {
	switch op {
	case OpBuildRange, OpBuildRangeStep:
		return append([]Ref{d.Range.Start}, extraAsRefs(m.ExtraSlice(d.Range.Extra, 1))...)
	case OpAdd, OpSub, OpMul, OpDiv, OpDivFloor, OpPow, OpRem,
		OpLShift, OpRShift, OpBitAnd, OpBitOr, OpBitXor,
		OpEqual, OpNotEqual, OpLessThan, OpLessThanEqual,
		OpGreaterThan, OpGreaterThanEqual, OpIn,
		OpCopy, OpMove, OpGet, OpGetOrNull:
		return []Ref{d.Bin.Lhs, d.Bin.Rhs}
	case OpCheckLen, OpAssertLen:
		// Bin.Rhs is the literal expected length, not a register.
		return []Ref{d.Bin.Lhs}
	case OpAs, OpIs:
		return []Ref{d.BinTy.Operand}
	case OpDiscard, OpCopyUn, OpNegate, OpBoolNot, OpBitNot,
		OpUnwrapError, OpBuildError, OpThrow, OpRet, OpIterInit:
		return []Ref{d.Un.Operand}
	// OpLoadGlobal's operand addresses a register in the module frame
	// (frame 0), not this body; OpLoadCapture's addresses this function's
	// capture list, not a register at all; OpBuildFunc's names a Module.Funcs
	// index. None are body-local register refs this invariant can check.
	case OpBuildTagged, OpUnwrapTagged, OpUnwrapTaggedOrNull, OpLoadThis:
		// extra pool layout: {operand, str.offset, str.len}
		return extraAsRefs(m.ExtraSlice(d.Extra.Offset, 1))
	case OpThisCallZero:
		// extra pool layout: {operand, str.offset, str.len}
		return extraAsRefs(m.ExtraSlice(d.Extra.Offset, 1))
	case OpThisCall:
		// extra pool layout: {operand, str.offset, str.len, arg...}
		words := m.ExtraSlice(d.Extra.Offset, d.Extra.Len)
		refs := extraAsRefs(words[:1])
		return append(refs, extraAsRefs(words[3:])...)
	case OpBuildTuple, OpBuildList:
		return extraAsRefs(m.ExtraSlice(d.Extra.Offset, d.Extra.Len))
	case OpBuildFuncCapture:
		// extra pool layout: {Funcs index, capture...}
		return extraAsRefs(m.ExtraSlice(d.Extra.Offset, d.Extra.Len)[1:])
	case OpBuildMap:
		return extraAsRefs(m.ExtraSlice(d.Extra.Offset, d.Extra.Len*2))
	case OpCall:
		return extraAsRefs(m.ExtraSlice(d.Extra.Offset, d.Extra.Len))
	case OpCallOne:
		return []Ref{d.Bin.Lhs, d.Bin.Rhs}
	case OpCallZero:
		return []Ref{d.Un.Operand}
	case OpSet:
		return extraAsRefs(m.ExtraSlice(d.Extra.Offset, d.Extra.Len))
	case OpAppend:
		return []Ref{d.Bin.Lhs, d.Bin.Rhs}
	case OpJumpIfTrue, OpJumpIfFalse, OpJumpIfNull, OpUnwrapErrorOrJump:
		return []Ref{d.JumpCond.Operand}
	case OpIterNext:
		return []Ref{d.IterNext.Iter}
	default:
		return nil
	}
}

func extraAsRefs(words []uint32) []Ref {
	refs := make([]Ref, len(words))
	for i, w := range words {
		refs[i] = Ref(w)
	}
	return refs
}
