package compiler

import (
	"quill/internal/ast"
	"quill/internal/bytecode"
)

// compileDecl lowers let/const/assign/aug-assign, including destructuring
// patterns on the left (spec.md §4.2 "destructuring compilation"). Decls
// produce no value: the result is cvEmpty passed through deliver, which
// under a ResultRt hint still materializes null into the hinted register.
func (c *Compiler) compileDecl(n *ast.Decl, hint Result) CValue {
	switch n.Kind {
	case ast.DeclLet, ast.DeclConst:
		c.compileBindingPattern(n.Target, n.Value, n.Kind == ast.DeclConst)
	case ast.DeclAssign:
		c.compileAssign(n.Target, n.Value)
	case ast.DeclAugAssign:
		c.compileAugAssign(n)
	}
	return c.deliver(cvEmptyValue(), hint, n.Pos())
}

// compileBindingPattern binds pattern to the compiled value, recursing into
// Tuple/List patterns via check_len/assert_len + get (spec.md §4.2).
func (c *Compiler) compileBindingPattern(pattern ast.Node, value ast.Node, constant bool) {
	v := c.compileExpr(value, Result{Kind: ResultValue})
	c.bindPattern(pattern, v, constant)
}

func (c *Compiler) bindPattern(pattern ast.Node, v CValue, constant bool) {
	switch p := pattern.(type) {
	case *ast.Discard:
		if v.hasRegister() {
			c.emit(bytecode.OpDiscard, bytecode.Data{Un: bytecode.UnData{Operand: v.reg}})
		}
	case *ast.Identifier:
		ref := c.bindFreshRegister(v, p.Pos())
		c.declareLocal(p.Name, ref, !constant)
	case *ast.Tuple:
		c.destructure(p.Elements, v, p.Pos(), constant, false)
	case *ast.List:
		c.destructure(p.Elements, v, p.Pos(), constant, true)
	default:
		c.errorf(pattern.Pos(), "invalid binding pattern %T", pattern)
	}
}

// bindFreshRegister materializes v into a register guaranteed distinct from
// any other binding's register (spec.md's aliasing concern: `let x = y`
// must not make x and y the same mutable slot). A value that is already
// the unique owner of a fresh register (any cvRt result, or a compile-time
// constant about to be materialized) needs no extra copy; only a bare
// cvRef — aliasing an existing binding's register directly — does.
func (c *Compiler) bindFreshRegister(v CValue, tokPos int) Ref {
	if v.kind == cvRef {
		return c.emitD(bytecode.OpCopyUn, bytecode.Data{Un: bytecode.UnData{Operand: v.reg}}, tokPos)
	}
	return c.materialize(v, tokPos)
}

// destructure implements check_len/assert_len + per-element get, recursing
// for nested patterns. List patterns are length-checked with check_len
// (spec.md's "at least" shape); Tuple patterns use assert_len (exact shape).
func (c *Compiler) destructure(elems []ast.Node, v CValue, tokPos int, constant bool, isList bool) {
	src := c.materialize(v, tokPos)
	n := int64(len(elems))
	if isList {
		c.emitD(bytecode.OpCheckLen, bytecode.Data{Bin: bytecode.BinData{Lhs: src, Rhs: Ref(n)}}, tokPos)
	} else {
		c.emitD(bytecode.OpAssertLen, bytecode.Data{Bin: bytecode.BinData{Lhs: src, Rhs: Ref(n)}}, tokPos)
	}
	for i, el := range elems {
		if _, ok := el.(*ast.Discard); ok {
			continue
		}
		idx := c.emitD(bytecode.OpInt, bytecode.Data{Int: int64(i)}, tokPos)
		elRef := c.emitD(bytecode.OpGet, bytecode.Data{Bin: bytecode.BinData{Lhs: src, Rhs: idx}}, tokPos)
		c.bindPattern(el, cvRtValue(elRef), constant)
	}
}

// compileAssign lowers `target = value` for an existing binding (Identifier)
// or a destructuring re-assignment pattern, and index-assignment (`a[i] =
// value`, lowered to `set`).
func (c *Compiler) compileAssign(target ast.Node, value ast.Node) {
	if suf, ok := target.(*ast.Suffix); ok && suf.Kind == ast.SuffixIndex {
		obj := c.compileExpr(suf.Object, Result{Kind: ResultValue})
		idx := c.compileExpr(suf.Index, Result{Kind: ResultValue})
		v := c.compileExpr(value, Result{Kind: ResultValue})
		objR := c.materialize(obj, suf.Pos())
		idxR := c.materialize(idx, suf.Pos())
		valR := c.materialize(v, suf.Pos())
		c.emitD(bytecode.OpSet, bytecode.Data{Extra: bytecode.ExtraData{
			Offset: c.mod.PushExtraSlice([]uint32{uint32(objR), uint32(idxR), uint32(valR)}),
			Len:    3,
		}}, suf.Pos())
		return
	}
	v := c.compileExpr(value, Result{Kind: ResultValue})
	c.assignCValueTo(target, v)
}

// assignCValueTo binds an already-compiled value to an assignment target,
// recursing for destructuring. Split from compileAssign so destructureAssign
// can route each extracted element straight in without re-entering the
// general expression compiler.
func (c *Compiler) assignCValueTo(target ast.Node, v CValue) {
	switch t := target.(type) {
	case *ast.Discard:
		if v.hasRegister() {
			c.emit(bytecode.OpDiscard, bytecode.Data{Un: bytecode.UnData{Operand: v.reg}})
		}
	case *ast.Identifier:
		kind, ref, ok := c.resolve(len(c.funcs)-1, t.Name)
		if !ok {
			c.errorf(t.Pos(), "assignment to undeclared name %q", t.Name)
			return
		}
		if kind == accessGlobal {
			c.errorf(t.Pos(), "cannot assign to global %q from this scope", t.Name)
			return
		}
		r := c.materialize(v, t.Pos())
		c.emit(bytecode.OpCopy, bytecode.Data{Bin: bytecode.BinData{Lhs: ref, Rhs: r}})
	case *ast.Tuple:
		c.destructureAssign(t.Elements, v, t.Pos(), false)
	case *ast.List:
		c.destructureAssign(t.Elements, v, t.Pos(), true)
	default:
		c.errorf(target.Pos(), "invalid assignment target %T", target)
	}
}

func (c *Compiler) destructureAssign(elems []ast.Node, v CValue, tokPos int, isList bool) {
	src := c.materialize(v, tokPos)
	n := int64(len(elems))
	if isList {
		c.emitD(bytecode.OpCheckLen, bytecode.Data{Bin: bytecode.BinData{Lhs: src, Rhs: Ref(n)}}, tokPos)
	} else {
		c.emitD(bytecode.OpAssertLen, bytecode.Data{Bin: bytecode.BinData{Lhs: src, Rhs: Ref(n)}}, tokPos)
	}
	for i, el := range elems {
		if _, ok := el.(*ast.Discard); ok {
			continue
		}
		idx := c.emitD(bytecode.OpInt, bytecode.Data{Int: int64(i)}, tokPos)
		elRef := c.emitD(bytecode.OpGet, bytecode.Data{Bin: bytecode.BinData{Lhs: src, Rhs: idx}}, tokPos)
		c.assignCValueTo(el, cvRtValue(elRef))
	}
}

func (c *Compiler) compileAugAssign(n *ast.Decl) {
	ident, ok := n.Target.(*ast.Identifier)
	if !ok {
		c.errorf(n.Pos(), "augmented assignment requires a plain name target")
		return
	}
	kind, ref, ok := c.resolve(len(c.funcs)-1, ident.Name)
	if !ok {
		c.errorf(n.Pos(), "assignment to undeclared name %q", ident.Name)
		return
	}
	if kind == accessGlobal {
		c.errorf(n.Pos(), "cannot assign to global %q from this scope", ident.Name)
		return
	}
	rhs := c.compileExpr(n.Value, Result{Kind: ResultValue})
	rhsR := c.materialize(rhs, n.Pos())
	op, opOk := infixOpcode(n.Op)
	if !opOk {
		c.errorf(n.Pos(), "unknown augmenting operator %q", n.Op)
		return
	}
	res := c.emitD(op, bytecode.Data{Bin: bytecode.BinData{Lhs: ref, Rhs: rhsR}}, n.Pos())
	c.emit(bytecode.OpCopy, bytecode.Data{Bin: bytecode.BinData{Lhs: ref, Rhs: res}})
}
