package compiler

import (
	"quill/internal/ast"
	"quill/internal/bytecode"
)

// tagRefData packs an operand register together with an interned tag name
// into the extra pool as {operand, str.offset, str.len}, the convention this
// compiler uses wherever an opcode needs both a Ref and a name (tagged
// construction/unwrap, native calls, property suffixes).
func (c *Compiler) tagRefData(operand Ref, name string) bytecode.Data {
	sd := c.mod.InternString(name)
	off := c.mod.PushExtraSlice([]uint32{uint32(operand), sd.Offset, sd.Len})
	return bytecode.Data{Extra: bytecode.ExtraData{Offset: off, Len: 3}}
}

func (c *Compiler) compileTuple(n *ast.Tuple) CValue {
	refs := make([]uint32, len(n.Elements))
	for i, el := range n.Elements {
		v := c.compileExpr(el, Result{Kind: ResultValue})
		refs[i] = uint32(c.materialize(v, el.Pos()))
	}
	off := c.mod.PushExtraSlice(refs)
	r := c.emitD(bytecode.OpBuildTuple, bytecode.Data{Extra: bytecode.ExtraData{Offset: off, Len: uint32(len(refs))}}, n.Pos())
	return cvRtValue(r)
}

func (c *Compiler) compileList(n *ast.List) CValue {
	refs := make([]uint32, len(n.Elements))
	for i, el := range n.Elements {
		v := c.compileExpr(el, Result{Kind: ResultValue})
		refs[i] = uint32(c.materialize(v, el.Pos()))
	}
	off := c.mod.PushExtraSlice(refs)
	r := c.emitD(bytecode.OpBuildList, bytecode.Data{Extra: bytecode.ExtraData{Offset: off, Len: uint32(len(refs))}}, n.Pos())
	return cvRtValue(r)
}

func (c *Compiler) compileMap(n *ast.Map) CValue {
	words := make([]uint32, 0, len(n.Keys)*2)
	for i := range n.Keys {
		k := c.compileExpr(n.Keys[i], Result{Kind: ResultValue})
		v := c.compileExpr(n.Values[i], Result{Kind: ResultValue})
		kr := c.materialize(k, n.Keys[i].Pos())
		vr := c.materialize(v, n.Values[i].Pos())
		words = append(words, uint32(kr), uint32(vr))
	}
	off := c.mod.PushExtraSlice(words)
	r := c.emitD(bytecode.OpBuildMap, bytecode.Data{Extra: bytecode.ExtraData{Offset: off, Len: uint32(len(words) / 2)}}, n.Pos())
	return cvRtValue(r)
}

func (c *Compiler) compileErrorLit(n *ast.ErrorLit) CValue {
	if n.Inner == nil {
		r := c.emitD(bytecode.OpBuildErrorNull, bytecode.Data{}, n.Pos())
		return cvRtValue(r)
	}
	inner := c.compileExpr(n.Inner, Result{Kind: ResultValue})
	innerR := c.materialize(inner, n.Pos())
	r := c.emitD(bytecode.OpBuildError, bytecode.Data{Un: bytecode.UnData{Operand: innerR}}, n.Pos())
	return cvRtValue(r)
}

func (c *Compiler) compileTaggedLit(n *ast.TaggedLit) CValue {
	if n.Inner == nil {
		sd := c.mod.InternString(n.Name)
		r := c.emitD(bytecode.OpBuildTaggedNull, bytecode.Data{Str: sd}, n.Pos())
		return cvRtValue(r)
	}
	inner := c.compileExpr(n.Inner, Result{Kind: ResultValue})
	innerR := c.materialize(inner, n.Pos())
	r := c.emitD(bytecode.OpBuildTagged, c.tagRefData(innerR, n.Name), n.Pos())
	return cvRtValue(r)
}

// compileNative lowers `native("name", args...)` to a call through the
// predeclared host-FFI register for name (spec.md §6): no dedicated opcode,
// just the ordinary call family aimed at the reserved register.
func (c *Compiler) compileNative(n *ast.Native) CValue {
	ref, ok := c.nativeIndex[n.Name]
	if !ok {
		c.errorf(n.Pos(), "unregistered native %q", n.Name)
		return cvNullValue()
	}
	return c.compileCallTo(ref, n.Args, n.Pos())
}

// compileCallTo emits the appropriate call/call_one/call_zero opcode for a
// callee already materialised in calleeR, per spec.md's fixed-arity fast
// paths for 0/1 argument calls and the general extra-pool path otherwise.
func (c *Compiler) compileCallTo(calleeR Ref, args []ast.Node, tokPos int) CValue {
	switch len(args) {
	case 0:
		r := c.emitD(bytecode.OpCallZero, bytecode.Data{Un: bytecode.UnData{Operand: calleeR}}, tokPos)
		return cvRtValue(r)
	case 1:
		a := c.compileExpr(args[0], Result{Kind: ResultValue})
		ar := c.materialize(a, tokPos)
		r := c.emitD(bytecode.OpCallOne, bytecode.Data{Bin: bytecode.BinData{Lhs: calleeR, Rhs: ar}}, tokPos)
		return cvRtValue(r)
	default:
		words := make([]uint32, len(args)+1)
		words[0] = uint32(calleeR)
		for i, a := range args {
			v := c.compileExpr(a, Result{Kind: ResultValue})
			words[i+1] = uint32(c.materialize(v, a.Pos()))
		}
		off := c.mod.PushExtraSlice(words)
		r := c.emitD(bytecode.OpCall, bytecode.Data{Extra: bytecode.ExtraData{Offset: off, Len: uint32(len(words))}}, tokPos)
		return cvRtValue(r)
	}
}

// compileSuffix lowers call/index/property/method-call postfix forms.
func (c *Compiler) compileSuffix(n *ast.Suffix) CValue {
	switch n.Kind {
	case ast.SuffixCall:
		callee := c.compileExpr(n.Object, Result{Kind: ResultValue})
		calleeR := c.materialize(callee, n.Pos())
		return c.compileCallTo(calleeR, n.Args, n.Pos())
	case ast.SuffixIndex:
		obj := c.compileExpr(n.Object, Result{Kind: ResultValue})
		idx := c.compileExpr(n.Index, Result{Kind: ResultValue})
		objR := c.materialize(obj, n.Pos())
		idxR := c.materialize(idx, n.Pos())
		r := c.emitD(bytecode.OpGet, bytecode.Data{Bin: bytecode.BinData{Lhs: objR, Rhs: idxR}}, n.Pos())
		return cvRtValue(r)
	case ast.SuffixProperty:
		obj := c.compileExpr(n.Object, Result{Kind: ResultValue})
		objR := c.materialize(obj, n.Pos())
		r := c.emitD(bytecode.OpLoadThis, c.tagRefData(objR, n.Property), n.Pos())
		return cvRtValue(r)
	case ast.SuffixMethodCall:
		obj := c.compileExpr(n.Object, Result{Kind: ResultValue})
		objR := c.materialize(obj, n.Pos())
		return c.compileThisCall(objR, n.Property, n.Args, n.Pos())
	default:
		c.errorf(n.Pos(), "unsupported suffix kind")
		return cvNullValue()
	}
}

// compileThisCall lowers `obj.method(args)` to this_call/this_call_zero:
// the callee is looked up by name on obj at call time and invoked with obj
// bound as the implicit receiver (spec.md's This-bound call family).
func (c *Compiler) compileThisCall(objR Ref, method string, args []ast.Node, tokPos int) CValue {
	sd := c.mod.InternString(method)
	if len(args) == 0 {
		off := c.mod.PushExtraSlice([]uint32{uint32(objR), sd.Offset, sd.Len})
		r := c.emitD(bytecode.OpThisCallZero, bytecode.Data{Extra: bytecode.ExtraData{Offset: off, Len: 3}}, tokPos)
		return cvRtValue(r)
	}
	words := make([]uint32, 0, 3+len(args))
	words = append(words, uint32(objR), sd.Offset, sd.Len)
	for _, a := range args {
		v := c.compileExpr(a, Result{Kind: ResultValue})
		words = append(words, uint32(c.materialize(v, a.Pos())))
	}
	off := c.mod.PushExtraSlice(words)
	r := c.emitD(bytecode.OpThisCall, bytecode.Data{Extra: bytecode.ExtraData{Offset: off, Len: uint32(len(words))}}, tokPos)
	return cvRtValue(r)
}
