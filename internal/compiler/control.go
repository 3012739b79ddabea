package compiler

import (
	"quill/internal/ast"
	"quill/internal/bytecode"
)

func (c *Compiler) compileIf(n *ast.If, hint Result) CValue {
	cond := c.compileExpr(n.Cond, Result{Kind: ResultValue})
	condR := c.materialize(cond, n.Pos())
	elseJump := c.emitD(bytecode.OpJumpIfFalse, bytecode.Data{JumpCond: bytecode.JumpCondData{Operand: condR}}, n.Pos())

	dst := c.here()
	thenV := c.compileExpr(n.ThenBranch, Result{Kind: ResultValue})
	thenR, thenHas := c.maybeRt(thenV)
	if thenHas && thenR != dst {
		c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: dst, Rhs: thenR}})
	}
	endJump := c.emit(bytecode.OpJump, bytecode.Data{})
	c.patchJumpHere(elseJump)
	if n.ElseBranch != nil {
		elseV := c.compileExpr(n.ElseBranch, Result{Kind: ResultValue})
		elseR, elseHas := c.maybeRt(elseV)
		if elseHas {
			c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: dst, Rhs: elseR}})
		}
	} else {
		c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: bytecode.PrimitiveNull}, n.Pos())
		c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: dst, Rhs: c.here() - 1}})
	}
	c.patchJumpHere(endJump)
	return c.deliver(cvRtValue(dst), hint, n.Pos())
}

// compileWhile lowers `while cond body` to a backward-jumping condition
// check; break/continue jumps are accumulated on the loop scope and patched
// once the loop's instruction range is known (spec.md §4.2).
func (c *Compiler) compileWhile(n *ast.While, hint Result) CValue {
	loopScope := c.pushScope(scopeLoop)
	condStart := c.here()
	cond := c.compileExpr(n.Cond, Result{Kind: ResultValue})
	condR := c.materialize(cond, n.Pos())
	exitJump := c.emitD(bytecode.OpJumpIfFalse, bytecode.Data{JumpCond: bytecode.JumpCondData{Operand: condR}}, n.Pos())
	c.compileExpr(n.Body, Result{Kind: ResultDiscard})
	back := c.emit(bytecode.OpJump, bytecode.Data{})
	c.patchJumpTo(back, condStart)
	c.patchJumpHere(exitJump)
	for _, j := range loopScope.breakJumps {
		c.patchJumpHere(j)
	}
	for _, j := range loopScope.continueJumps {
		c.patchJumpTo(j, condStart)
	}
	c.popScope()
	return c.deliver(cvNullValue(), hint, n.Pos())
}

// compileFor lowers `for pattern in iterable body` via iter_init/iter_next
// (spec.md §4.1 Iteration), binding pattern fresh each iteration so nested
// closures capture the current element rather than a shared loop slot.
func (c *Compiler) compileFor(n *ast.For, hint Result) CValue {
	iterable := c.compileExpr(n.Iterable, Result{Kind: ResultValue})
	iterSrc := c.materialize(iterable, n.Pos())
	iterReg := c.emitD(bytecode.OpIterInit, bytecode.Data{Un: bytecode.UnData{Operand: iterSrc}}, n.Pos())

	loopScope := c.pushScope(scopeLoop)
	top := c.here()
	dst := c.here()
	exitJump := c.emitD(bytecode.OpIterNext, bytecode.Data{IterNext: bytecode.IterNextData{Iter: iterReg, Dst: dst}}, n.Pos())

	c.pushScope(scopeBlock)
	c.bindPattern(n.Pattern, cvRtValue(dst), false)
	c.compileExpr(n.Body, Result{Kind: ResultDiscard})
	c.popScope()

	back := c.emit(bytecode.OpJump, bytecode.Data{})
	c.patchJumpTo(back, top)
	c.patchJumpHere(exitJump)
	for _, j := range loopScope.breakJumps {
		c.patchJumpHere(j)
	}
	for _, j := range loopScope.continueJumps {
		c.patchJumpTo(j, top)
	}
	c.popScope()
	return c.deliver(cvNullValue(), hint, n.Pos())
}

// compileMatch lowers a match expression to a chain of pattern tests,
// falling through to the next case's test on mismatch and jumping to a
// shared end label after a matched body (spec.md §4.2's aggregate-pattern
// compilation extended to match arms: literal patterns compare with equal,
// Tagged patterns unwrap_tagged_or_null, the wildcard arm binds nothing).
func (c *Compiler) compileMatch(n *ast.Match, hint Result) CValue {
	subject := c.compileExpr(n.Subject, Result{Kind: ResultValue})
	subjR := c.materialize(subject, n.Pos())
	dst := c.here()
	var endJumps []Ref
	var nextCaseJump Ref
	haveNext := false
	for _, kase := range n.Cases {
		if haveNext {
			c.patchJumpHere(nextCaseJump)
			haveNext = false
		}
		c.pushScope(scopeBlock)
		matched := c.compileMatchPattern(kase.Pattern, subjR, kase.Pos())
		if kase.Guard != nil {
			g := c.compileExpr(kase.Guard, Result{Kind: ResultValue})
			gr := c.materialize(g, kase.Pos())
			combined := c.emit(bytecode.OpBitAnd, bytecode.Data{Bin: bytecode.BinData{Lhs: matched, Rhs: gr}})
			matched = combined
		}
		nextCaseJump = c.emitD(bytecode.OpJumpIfFalse, bytecode.Data{JumpCond: bytecode.JumpCondData{Operand: matched}}, kase.Pos())
		haveNext = true
		bodyV := c.compileExpr(kase.Body, Result{Kind: ResultValue})
		if r, ok := c.maybeRt(bodyV); ok && r != dst {
			c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: dst, Rhs: r}})
		}
		c.popScope()
		endJumps = append(endJumps, c.emit(bytecode.OpJump, bytecode.Data{}))
	}
	if haveNext {
		c.patchJumpHere(nextCaseJump)
	}
	// No arm matched: the result is null (spec.md leaves non-exhaustive
	// match as a null fallthrough rather than a runtime fault).
	c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: bytecode.PrimitiveNull}, n.Pos())
	c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: dst, Rhs: c.here() - 1}})
	for _, j := range endJumps {
		c.patchJumpHere(j)
	}
	return c.deliver(cvRtValue(dst), hint, n.Pos())
}

// compileMatchPattern evaluates to a bool register: true if subjR matches
// pattern, binding any names the pattern introduces into the current scope
// as a side effect.
func (c *Compiler) compileMatchPattern(pattern ast.Node, subjR Ref, tokPos int) Ref {
	if pattern == nil {
		// wildcard arm
		return c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: bytecode.PrimitiveTrue}, tokPos)
	}
	switch p := pattern.(type) {
	case *ast.Identifier:
		ref := c.emitD(bytecode.OpCopyUn, bytecode.Data{Un: bytecode.UnData{Operand: subjR}}, tokPos)
		c.declareLocal(p.Name, ref, false)
		return c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: bytecode.PrimitiveTrue}, tokPos)
	case *ast.TaggedLit:
		unwrapped := c.emitD(bytecode.OpUnwrapTaggedOrNull, c.tagRefData(subjR, p.Name), tokPos)
		present := c.emitD(bytecode.OpJumpIfNull, bytecode.Data{JumpCond: bytecode.JumpCondData{Operand: unwrapped}}, tokPos)
		ok := c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: bytecode.PrimitiveTrue}, tokPos)
		skip := c.emit(bytecode.OpJump, bytecode.Data{})
		c.patchJumpHere(present)
		notOk := c.emitD(bytecode.OpPrimitive, bytecode.Data{Primitive: bytecode.PrimitiveFalse}, tokPos)
		c.patchJumpHere(skip)
		_ = notOk
		if p.Inner != nil {
			c.bindPattern(p.Inner, cvRtValue(unwrapped), false)
		}
		return ok
	default:
		lit := c.compileExpr(pattern, Result{Kind: ResultValue})
		litR := c.materialize(lit, tokPos)
		return c.emitD(bytecode.OpEqual, bytecode.Data{Bin: bytecode.BinData{Lhs: subjR, Rhs: litR}}, tokPos)
	}
}

// compileJump lowers break/continue/return. break/continue record their
// placeholder jump for the enclosing loop to patch once its bounds are
// known; return emits ret/ret_null directly since the target (function
// exit) is always "now".
func (c *Compiler) compileJump(n *ast.Jump, hint Result) CValue {
	switch n.Kind {
	case ast.JumpReturn:
		if n.Value != nil {
			v := c.compileExpr(n.Value, Result{Kind: ResultValue})
			r := c.materialize(v, n.Pos())
			c.emitRet(r)
		} else {
			c.emit(bytecode.OpRetNull, bytecode.Data{})
		}
	case ast.JumpBreak:
		if n.Value != nil {
			c.compileExpr(n.Value, Result{Kind: ResultDiscard})
		}
		loop := c.cur().scope.enclosingLoop()
		if loop == nil {
			c.errorf(n.Pos(), "break outside loop")
			return cvNullValue()
		}
		ref := c.emit(bytecode.OpJump, bytecode.Data{})
		loop.breakJumps = append(loop.breakJumps, ref)
	case ast.JumpContinue:
		loop := c.cur().scope.enclosingLoop()
		if loop == nil {
			c.errorf(n.Pos(), "continue outside loop")
			return cvNullValue()
		}
		ref := c.emit(bytecode.OpJump, bytecode.Data{})
		loop.continueJumps = append(loop.continueJumps, ref)
	}
	return cvNullValue()
}

// compileCatch lowers `try expr catch |name| handler`: push_err_handler
// before the guarded expression, pop_err_handler after, with the handler
// body jumped to when the pushed handler catches a raised error, or by
// unwrap_error_or_jump when the guarded expression's value is itself an
// error (spec.md §4.2's "error-handler stack" scan, and §8's push/pop
// balance invariant).
func (c *Compiler) compileCatch(n *ast.Catch, hint Result) CValue {
	if n.Handler == nil {
		return c.deliver(c.compileTryPropagate(&ast.PrefixOp{Base: n.Base, Op: "try", Operand: n.Try}), hint, n.Pos())
	}
	c.cur().handlerDepth++
	handlerJump := c.emit(bytecode.OpPushErrHandler, bytecode.Data{})
	dst := c.here()
	tryV := c.compileExpr(n.Try, Result{Kind: ResultValue})
	tryR, tryHas := c.maybeRt(tryV)
	if tryHas && tryR != dst {
		c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: dst, Rhs: tryR}})
	}
	c.emit(bytecode.OpPopErrHandler, bytecode.Data{})
	errJump := c.emitD(bytecode.OpUnwrapErrorOrJump, bytecode.Data{JumpCond: bytecode.JumpCondData{Operand: dst}}, n.Pos())
	skipHandler := c.emit(bytecode.OpJump, bytecode.Data{})

	c.patchJumpHere(handlerJump)
	c.patchJumpHere(errJump)
	c.pushScope(scopeBlock)
	if n.ErrName != "" {
		errReg := c.emitD(bytecode.OpUnwrapError, bytecode.Data{Un: bytecode.UnData{Operand: dst}}, n.Pos())
		c.declareLocal(n.ErrName, errReg, false)
	}
	handlerV := c.compileExpr(n.Handler, Result{Kind: ResultValue})
	if r, ok := c.maybeRt(handlerV); ok {
		c.emit(bytecode.OpMove, bytecode.Data{Bin: bytecode.BinData{Lhs: dst, Rhs: r}})
	}
	c.popScope()
	c.patchJumpHere(skipHandler)
	c.cur().handlerDepth--
	return c.deliver(cvRtValue(dst), hint, n.Pos())
}

func (c *Compiler) compileImport(n *ast.Import) CValue {
	sd := c.mod.InternString(n.Path)
	r := c.emitD(bytecode.OpImport, bytecode.Data{Str: sd}, n.Pos())
	return cvRtValue(r)
}
