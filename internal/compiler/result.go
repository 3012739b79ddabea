package compiler

import "quill/internal/bytecode"

// ResultKind is the caller-to-callee hint of spec.md §4.2.
type ResultKind int

const (
	ResultRt ResultKind = iota
	ResultLval
	ResultValue
	ResultDiscard
)

// LvalKind distinguishes the binding forms a Result{Kind: ResultLval} names.
type LvalKind int

const (
	LvalLet LvalKind = iota
	LvalConst
	LvalAssign
	LvalAugAssign
)

// Result is what a caller passes down when compiling a node: either "put
// the value in this exact register" (Rt), "this node is the target of a
// binding form, the value is already in Ref" (Lval), "give me any value,
// runtime or compile-time" (Value), or "I'm discarding the value, emit only
// for side effects" (Discard).
type Result struct {
	Kind     ResultKind
	Reg      Ref
	LvalKind LvalKind
	AugOp    string
}

// cvalueKind is the compile-time-Value variant tag of spec.md §4.2.
type cvalueKind int

const (
	cvEmpty cvalueKind = iota
	cvRt
	cvRef
	cvNull
	cvInt
	cvNum
	cvBool
	cvStr
)

// CValue is what compileExpr returns: either a value already materialised
// into a specific register (Rt), a symbolic reference to a named register
// that must not be treated as freeable (Ref — spec.md §4.2 distinguishes
// this from Rt precisely so constant-folding and register reuse never
// clobber a live local), a compile-time constant eligible for folding, or
// Empty (statements with no value, e.g. assignment).
type CValue struct {
	kind cvalueKind
	reg  Ref
	i    int64
	f    float64
	b    bool
	s    string
}

func cvEmptyValue() CValue         { return CValue{kind: cvEmpty} }
func cvRtValue(r Ref) CValue       { return CValue{kind: cvRt, reg: r} }
func cvRefValue(r Ref) CValue      { return CValue{kind: cvRef, reg: r} }
func cvNullValue() CValue          { return CValue{kind: cvNull} }
func cvIntValue(i int64) CValue    { return CValue{kind: cvInt, i: i} }
func cvNumValue(f float64) CValue  { return CValue{kind: cvNum, f: f} }
func cvBoolValue(b bool) CValue    { return CValue{kind: cvBool, b: b} }
func cvStrValue(s string) CValue   { return CValue{kind: cvStr, s: s} }

func (v CValue) isConst() bool {
	switch v.kind {
	case cvNull, cvInt, cvNum, cvBool, cvStr:
		return true
	}
	return false
}

func (v CValue) hasRegister() bool { return v.kind == cvRt || v.kind == cvRef }

// materialize forces v into a register, emitting the relevant literal
// opcode for compile-time constants (spec.md §4.2 "materialised into a
// register on demand").
func (c *Compiler) materialize(v CValue, tokPos int) Ref {
	switch v.kind {
	case cvRt, cvRef:
		return v.reg
	case cvNull:
		return c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: bytecode.PrimitiveNull}, tokPos)
	case cvBool:
		p := byte(bytecode.PrimitiveFalse)
		if v.b {
			p = bytecode.PrimitiveTrue
		}
		return c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: p}, tokPos)
	case cvInt:
		return c.emitD(bytecode.OpInt, bytecode.Data{Int: v.i}, tokPos)
	case cvNum:
		return c.emitD(bytecode.OpNum, bytecode.Data{Num: v.f}, tokPos)
	case cvStr:
		sd := c.mod.InternString(v.s)
		return c.emitD(bytecode.OpStr, bytecode.Data{Str: sd}, tokPos)
	default:
		// cvEmpty materialised is a compiler bug: callers must check Kind
		// before calling into a context that needs a value.
		return c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: bytecode.PrimitiveNull}, tokPos)
	}
}

// maybeRt returns v's register if it already has one, materialising
// compile-time constants to a fresh register otherwise. ok is false only
// for cvEmpty, which has no meaningful value to produce.
func (c *Compiler) maybeRt(v CValue) (Ref, bool) {
	if v.kind == cvEmpty {
		return 0, false
	}
	return c.materializeAuto(v), true
}

func (c *Compiler) materializeAuto(v CValue) Ref {
	return c.materialize(v, 0)
}

// deliver routes a compiled CValue to the Result hint the caller asked for,
// the glue between compileExpr's bottom-up return and the top-down hint
// threading of spec.md §4.2.
func (c *Compiler) deliver(v CValue, hint Result, tokPos int) CValue {
	switch hint.Kind {
	case ResultRt:
		r := c.materialize(v, tokPos)
		if r != hint.Reg {
			c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: hint.Reg, Rhs: r}})
		}
		return cvRtValue(hint.Reg)
	case ResultDiscard:
		if v.hasRegister() {
			c.emit(bytecode.OpDiscard, bytecode.Data{Un: bytecode.UnData{Operand: v.reg}})
		}
		return cvEmptyValue()
	default: // ResultValue, ResultLval (lval targets handle their own value directly)
		return v
	}
}
