package compiler

import (
	"quill/internal/ast"
	"quill/internal/bytecode"
)

// compileFn compiles a function literal to a FuncDef and emits the
// appropriate build_func/build_func_capture instruction in the enclosing
// function (spec.md §4.2 capture analysis: a function with no free
// variables from an enclosing frame needs no capture list at all).
func (c *Compiler) compileFn(n *ast.Fn) CValue {
	fn := newFuncCtx(len(n.Params))
	c.funcs = append(c.funcs, fn)
	for i, p := range n.Params {
		fn.scope.declare(p, Ref(i), true)
	}
	bodyV := c.compileExpr(n.Body, Result{Kind: ResultValue})
	if r, ok := c.maybeRt(bodyV); ok {
		c.emitRet(r)
	} else {
		c.emit(bytecode.OpRetNull, bytecode.Data{})
	}
	captures := fn.captures
	c.funcs = c.funcs[:len(c.funcs)-1]

	funcIdx := c.mod.AddFunc(fn.params, len(captures), fn.instrs)
	if len(captures) == 0 {
		r := c.emitD(bytecode.OpBuildFunc, bytecode.Data{Un: bytecode.UnData{Operand: Ref(funcIdx)}}, n.Pos())
		return cvRtValue(r)
	}
	words := make([]uint32, len(captures)+1)
	words[0] = funcIdx
	for i, capturedRef := range captures {
		words[i+1] = uint32(capturedRef)
	}
	off := c.mod.PushExtraSlice(words)
	r := c.emitD(bytecode.OpBuildFuncCapture, bytecode.Data{Extra: bytecode.ExtraData{Offset: off, Len: uint32(len(words))}}, n.Pos())
	return cvRtValue(r)
}
