package compiler

import (
	"quill/internal/ast"
	"quill/internal/bytecode"
)

// compileInfix lowers a binary operator, short-circuiting `and`/`or` via
// conditional jumps (spec.md §4.2: "never evaluating the untaken branch")
// and constant-folding everything else when both sides are compile-time
// values.
func (c *Compiler) compileInfix(n *ast.Infix) CValue {
	if n.Op == "and" || n.Op == "or" {
		return c.compileShortCircuit(n)
	}
	if n.Op == ".." || n.Op == "..=" {
		return c.compileRange(n)
	}
	l := c.compileExpr(n.Left, Result{Kind: ResultValue})
	r := c.compileExpr(n.Right, Result{Kind: ResultValue})
	if l.isConst() && r.isConst() {
		if folded, ok := foldBinary(n.Op, l, r); ok {
			return folded
		}
	}
	lr := c.materialize(l, n.Pos())
	rr := c.materialize(r, n.Pos())
	op, ok := infixOpcode(n.Op)
	if !ok {
		c.errorf(n.Pos(), "unknown operator %q", n.Op)
		return cvNullValue()
	}
	res := c.emitD(op, bytecode.Data{Bin: bytecode.BinData{Lhs: lr, Rhs: rr}}, n.Pos())
	return cvRtValue(res)
}

func infixOpcode(op string) (bytecode.OpCode, bool) {
	switch op {
	case "+":
		return bytecode.OpAdd, true
	case "-":
		return bytecode.OpSub, true
	case "*":
		return bytecode.OpMul, true
	case "/":
		return bytecode.OpDiv, true
	case "//":
		return bytecode.OpDivFloor, true
	case "%":
		return bytecode.OpRem, true
	case "**":
		return bytecode.OpPow, true
	case "<<":
		return bytecode.OpLShift, true
	case ">>":
		return bytecode.OpRShift, true
	case "&":
		return bytecode.OpBitAnd, true
	case "|":
		return bytecode.OpBitOr, true
	case "^":
		return bytecode.OpBitXor, true
	case "==":
		return bytecode.OpEqual, true
	case "!=":
		return bytecode.OpNotEqual, true
	case "<":
		return bytecode.OpLessThan, true
	case "<=":
		return bytecode.OpLessThanEqual, true
	case ">":
		return bytecode.OpGreaterThan, true
	case ">=":
		return bytecode.OpGreaterThanEqual, true
	case "in":
		return bytecode.OpIn, true
	default:
		return 0, false
	}
}

// compileRange lowers `a..b` to build_range (exclusive end, implicit step 1)
// and `a..=b` to build_range_step (inclusive end, an explicit step operand —
// here always the literal 1, since this grammar has no step clause syntax;
// the VM treats build_range_step's end as inclusive precisely so `..=`
// has a distinct, useful meaning without a third opcode).
func (c *Compiler) compileRange(n *ast.Infix) CValue {
	start := c.compileExpr(n.Left, Result{Kind: ResultValue})
	end := c.compileExpr(n.Right, Result{Kind: ResultValue})
	startR := c.materialize(start, n.Pos())
	endR := c.materialize(end, n.Pos())
	if n.Op == ".." {
		off := c.mod.PushExtraSlice([]uint32{uint32(endR)})
		r := c.emitD(bytecode.OpBuildRange, bytecode.Data{Range: bytecode.RangeData{Start: startR, Extra: off}}, n.Pos())
		return cvRtValue(r)
	}
	stepR := c.emitD(bytecode.OpInt, bytecode.Data{Int: 1}, n.Pos())
	off := c.mod.PushExtraSlice([]uint32{uint32(endR), uint32(stepR)})
	r := c.emitD(bytecode.OpBuildRangeStep, bytecode.Data{Range: bytecode.RangeData{Start: startR, Extra: off}}, n.Pos())
	return cvRtValue(r)
}

// compileShortCircuit lowers `and`/`or` to conditional jumps so the right
// operand is never evaluated when the left already decides the result.
func (c *Compiler) compileShortCircuit(n *ast.Infix) CValue {
	l := c.compileExpr(n.Left, Result{Kind: ResultValue})
	lr := c.materialize(l, n.Pos())
	dst := c.here()
	var skip Ref
	if n.Op == "and" {
		skip = c.emitD(bytecode.OpJumpIfFalse, bytecode.Data{JumpCond: bytecode.JumpCondData{Operand: lr}}, n.Pos())
	} else {
		skip = c.emitD(bytecode.OpJumpIfTrue, bytecode.Data{JumpCond: bytecode.JumpCondData{Operand: lr}}, n.Pos())
	}
	r := c.compileExpr(n.Right, Result{Kind: ResultRt, Reg: dst})
	_ = r
	end := c.emit(bytecode.OpJump, bytecode.Data{})
	c.patchJumpHere(skip)
	c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: dst, Rhs: lr}})
	c.patchJumpHere(end)
	return cvRtValue(dst)
}
