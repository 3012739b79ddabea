// Package compiler lowers an internal/ast tree to internal/bytecode,
// implementing spec.md §4.2: scope/symbol resolution, capture analysis,
// constant folding, short-circuit evaluation, and jump patching.
//
// Grounded on internal/compregister/compiler.go: the Scope/RegisterAllocator/
// LoopInfo shapes carry over almost directly, generalized to the Result-hint
// / compile-time-Value dichotomy spec.md §4.2 specifies.
package compiler

import (
	"fmt"

	"quill/internal/ast"
	"quill/internal/bytecode"
)

type Ref = bytecode.Ref

// Diag is one compile-time diagnostic (spec.md §7: "accumulated by the
// compiler into a shared list; the first one triggers a sentinel return;
// all are rendered together").
type Diag struct {
	Message string
	TokPos  int
}

func (d *Diag) Error() string { return fmt.Sprintf("compile error at token %d: %s", d.TokPos, d.Message) }

// scopeKind distinguishes the lexical scope shapes spec.md §4.2 names.
type scopeKind int

const (
	scopeFnRoot scopeKind = iota
	scopeBlock
	scopeLoop
)

type binding struct {
	ref     Ref
	mutable bool
	// observed is never set by this compiler: no register is exempted from
	// the VM's `discard` check, which raises on any error value.
	observed bool
}

// scope is one lexical level within a single function body (or the module
// top level, which is itself treated as the outermost function).
type scope struct {
	kind   scopeKind
	parent *scope
	locals map[string]*binding

	// loop-only fields: pending break/continue jump Refs, patched once the
	// loop's instruction range is known.
	breakJumps    []Ref
	continueJumps []Ref
}

func newScope(kind scopeKind, parent *scope) *scope {
	return &scope{kind: kind, parent: parent, locals: make(map[string]*binding)}
}

func (s *scope) declare(name string, ref Ref, mutable bool) *binding {
	b := &binding{ref: ref, mutable: mutable}
	s.locals[name] = b
	return b
}

func (s *scope) lookupLocal(name string) (*binding, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.locals[name]; ok {
			return b, true
		}
	}
	return nil, false
}

func (s *scope) enclosingLoop() *scope {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.kind == scopeLoop {
			return sc
		}
	}
	return nil
}

// funcCtx is one function's (or the module top level's) compilation state:
// its own scope chain, its capture list (empty for the module top level,
// which has no enclosing frame to capture from), and its error-handler
// nesting depth (for the balance invariant of spec.md §8).
type funcCtx struct {
	scope      *scope
	params     int // parameter count; for the module top level, the native-slot count
	instrs     []uint32
	// captures, in order, are Refs into the *parent* frame's registers
	// (spec.md §9: "the values live in the enclosing frame's registers at
	// that moment ... copied by reference"). captureIndex maps a captured
	// name to its index in this list; captureLocalRef maps it to the
	// register in THIS function's own frame that holds the loaded value
	// (the result of an OpLoadCapture emitted the first time it's used).
	captures        []Ref
	captureIndex    map[string]int
	captureLocalRef map[string]Ref
	handlerDepth    int
}

func newFuncCtx(params int) *funcCtx {
	return &funcCtx{
		scope:           newScope(scopeFnRoot, nil),
		params:          params,
		captureIndex:    make(map[string]int),
		captureLocalRef: make(map[string]Ref),
	}
}

// Compiler lowers a parsed program to a bytecode.Module.
type Compiler struct {
	mod    *bytecode.Module
	funcs  []*funcCtx // stack; funcs[0] is the module top level
	errs   []error

	nativeNames []string
	nativeIndex map[string]Ref
}

// New returns a Compiler whose module top level reserves one register per
// entry of nativeNames (spec.md §6 Host FFI), populated by the embedding
// host before the module runs — mirroring
// internal/compregister.NewCompilerWithGlobals's predeclared-name table.
func New(nativeNames []string) *Compiler {
	c := &Compiler{
		nativeNames: nativeNames,
		nativeIndex: make(map[string]Ref, len(nativeNames)),
	}
	for i, n := range nativeNames {
		c.nativeIndex[n] = Ref(i)
	}
	top := newFuncCtx(len(nativeNames))
	c.funcs = []*funcCtx{top}
	return c
}

func (c *Compiler) cur() *funcCtx { return c.funcs[len(c.funcs)-1] }

func (c *Compiler) errorf(pos int, format string, args ...interface{}) {
	c.errs = append(c.errs, &Diag{Message: fmt.Sprintf(format, args...), TokPos: pos})
}

// Compile lowers a top-level statement list into a finished Module. It is
// the non-incremental entry point; Continue (repl.go's collaborator) is the
// "compile more into this module" entry point spec.md §9 describes.
func Compile(path, source string, stmts []ast.Node, nativeNames []string) (*bytecode.Module, error) {
	c := New(nativeNames)
	c.mod = bytecode.NewModule(path, source)
	c.mod.NativeNames = append([]string(nil), nativeNames...)
	c.compileTop(stmts)
	if len(c.errs) > 0 {
		return nil, c.errs[0]
	}
	c.mod.Main = c.cur().instrs
	return c.mod, nil
}

// NewRepl returns a Compiler with an attached, otherwise-empty Module ready
// for Continue, the REPL's entry point: unlike Compile, it never finalizes
// the module with a trailing OpRetNull or assigns Main, since the REPL
// keeps growing the same top-level body one line at a time.
func NewRepl(path string, nativeNames []string) *Compiler {
	c := New(nativeNames)
	c.mod = bytecode.NewModule(path, "")
	c.mod.NativeNames = append([]string(nil), nativeNames...)
	return c
}

// Module returns the Module a NewRepl Compiler is incrementally building.
func (c *Compiler) Module() *bytecode.Module { return c.mod }

// Continue compiles one more line of REPL input into the module top
// level's body (spec.md §9's "compile more into this module" entry point).
// It reports the body-local instruction range [from, to) the new line
// occupies — the caller grows its persistent vm.Frame with
// InstrsSince(from, to) and resumes execution at from — and the register
// holding the line's value, if it produced one (a bare `let` or a
// discarded expression statement does not).
func (c *Compiler) Continue(stmts []ast.Node) (from, to int, valueRef Ref, hasValue bool, err error) {
	from = len(c.cur().instrs)
	before := len(c.errs)
	for i, stmt := range stmts {
		hint := Result{Kind: ResultDiscard}
		if i == len(stmts)-1 {
			hint = Result{Kind: ResultValue}
		}
		cv := c.compileStmt(stmt, hint)
		if i == len(stmts)-1 && hint.Kind == ResultValue {
			if r, ok := c.maybeRt(cv); ok {
				valueRef, hasValue = r, true
			}
		}
	}
	to = len(c.cur().instrs)
	if len(c.errs) > before {
		return from, to, 0, false, c.errs[before]
	}
	return from, to, valueRef, hasValue, nil
}

// InstrsSince returns the module-code indices the top-level body
// accumulated in [from, to), the slice a host grows a vm.Frame with after
// a successful Continue.
func (c *Compiler) InstrsSince(from, to int) []uint32 {
	return c.cur().instrs[from:to]
}

// compileTop compiles the top-level statement list into the module frame,
// discarding intermediate statement values except the last, whose value (if
// any) becomes the script's result.
func (c *Compiler) compileTop(stmts []ast.Node) {
	for i, stmt := range stmts {
		hint := Result{Kind: ResultDiscard}
		if i == len(stmts)-1 {
			hint = Result{Kind: ResultValue}
		}
		cv := c.compileStmt(stmt, hint)
		if i == len(stmts)-1 && hint.Kind == ResultValue {
			if r, ok := c.maybeRt(cv); ok {
				c.emitRet(r)
				continue
			}
		}
	}
	if len(stmts) == 0 || !endsInReturn(c.mod, c.cur().instrs) {
		c.emit(bytecode.OpRetNull, bytecode.Data{})
	}
}

func endsInReturn(mod *bytecode.Module, instrs []uint32) bool {
	if len(instrs) == 0 {
		return false
	}
	last := instrs[len(instrs)-1]
	op := mod.Code[last]
	return op == bytecode.OpRet || op == bytecode.OpRetNull
}

func (c *Compiler) emitRet(r Ref) {
	c.emit(bytecode.OpRet, bytecode.Data{Un: bytecode.UnData{Operand: r}})
}

// emit appends an instruction to the current function's body and records
// its instruction-as-register index; it is the sole mutation point for
// Module.Code/Data from the compiler so body tracking never drifts from the
// module's own arrays.
func (c *Compiler) emit(op bytecode.OpCode, data bytecode.Data) Ref {
	idx := c.mod.Emit(op, data)
	c.cur().instrs = append(c.cur().instrs, uint32(idx))
	return Ref(c.cur().params + len(c.cur().instrs) - 1)
}

// markDebug records tokPos (the AST node's token index) as the debug entry
// for the instruction just emitted by emit, for opcodes where
// bytecode.NeedsDebugInfo is true.
func (c *Compiler) markDebug(op bytecode.OpCode, tokPos int) {
	if !bytecode.NeedsDebugInfo(op) {
		return
	}
	idx := c.cur().instrs[len(c.cur().instrs)-1]
	c.mod.Debug.Set(int(idx), tokPos)
}

// emitD emits op with data and, if op needs debug info, records tokPos.
func (c *Compiler) emitD(op bytecode.OpCode, data bytecode.Data, tokPos int) Ref {
	r := c.emit(op, data)
	c.markDebug(op, tokPos)
	return r
}

// here returns the instruction-as-register index the *next* emitted
// instruction in the current function will receive.
func (c *Compiler) here() Ref {
	return Ref(c.cur().params + len(c.cur().instrs))
}

// instrIndexOf maps an instruction-as-register Ref, known to name an
// instruction in the CURRENT function body, back to its index in
// Module.Code/Data.
func (c *Compiler) instrIndexOf(ref Ref) int {
	local := int(ref) - c.cur().params
	return int(c.cur().instrs[local])
}

// patchJumpTo rewrites the jump at jumpRef (forward or backward) so it
// lands at instruction-as-register target, resolving the compiler's forward-
// jump placeholders per spec.md §4.2.
func (c *Compiler) patchJumpTo(jumpRef, target Ref) {
	modIdx := c.instrIndexOf(jumpRef)
	delta := int32(target) - int32(jumpRef)
	d := c.mod.Data[modIdx]
	switch c.mod.Code[modIdx] {
	case bytecode.OpJump, bytecode.OpPushErrHandler:
		d.Jump.Offset = delta
	case bytecode.OpJumpIfTrue, bytecode.OpJumpIfFalse, bytecode.OpJumpIfNull, bytecode.OpUnwrapErrorOrJump:
		d.JumpCond.Offset = delta
	case bytecode.OpIterNext:
		d.IterNext.Offset = delta
	}
	c.mod.Data[modIdx] = d
}

// patchJumpHere patches jumpRef to land at the instruction about to be
// emitted next.
func (c *Compiler) patchJumpHere(jumpRef Ref) {
	c.patchJumpTo(jumpRef, c.here())
}
