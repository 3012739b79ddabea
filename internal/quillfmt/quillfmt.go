// Package quillfmt renders an internal/ast tree back to canonical source
// text, backing the `fmt` CLI subcommand spec.md §6 names as one of the
// "easy parts" outside the core ("tokenize+parse+render").
//
// Grounded on internal/formatter/formatter.go: the same indent-tracking
// Formatter-over-strings.Builder shape and the same per-statement-kind
// switch, retargeted from the donor's parser.Stmt/Expr node set onto this
// module's internal/ast node set.
package quillfmt

import (
	"fmt"
	"strings"

	"quill/internal/ast"
)

// Format renders stmts as canonical top-level source text.
func Format(stmts []ast.Node) string {
	f := &formatter{indentStr: "    "}
	for i, s := range stmts {
		f.stmt(s)
		if i < len(stmts)-1 && blankLineBetween(s, stmts[i+1]) {
			f.out.WriteString("\n")
		}
	}
	return f.out.String()
}

type formatter struct {
	indent    int
	indentStr string
	out       strings.Builder
}

// blankLineBetween separates adjacent function literals bound by a Decl
// and imports from the statements following them, the same two cases the
// donor's needsBlankLine names.
func blankLineBetween(curr, next ast.Node) bool {
	if isFnDecl(curr) || isFnDecl(next) {
		return true
	}
	_, currImport := curr.(*ast.Import)
	_, nextImport := next.(*ast.Import)
	return currImport && !nextImport
}

func isFnDecl(n ast.Node) bool {
	d, ok := n.(*ast.Decl)
	if !ok {
		return false
	}
	_, ok = d.Value.(*ast.Fn)
	return ok
}

func (f *formatter) writeIndent() {
	f.out.WriteString(strings.Repeat(f.indentStr, f.indent))
}

func (f *formatter) line(parts ...string) {
	f.writeIndent()
	for _, p := range parts {
		f.out.WriteString(p)
	}
	f.out.WriteString("\n")
}

func (f *formatter) stmt(n ast.Node) {
	if n == nil {
		return
	}
	switch s := n.(type) {
	case *ast.Decl:
		f.declStmt(s)
	case *ast.Jump:
		f.jumpStmt(s)
	case *ast.Import:
		f.line("import ", fmt.Sprintf("%q", s.Path))
	case *ast.While:
		f.writeIndent()
		f.out.WriteString("while ")
		f.out.WriteString(f.expr(s.Cond))
		f.out.WriteString(" ")
		f.block(s.Body)
	case *ast.For:
		f.writeIndent()
		f.out.WriteString("for ")
		f.out.WriteString(f.expr(s.Pattern))
		f.out.WriteString(" in ")
		f.out.WriteString(f.expr(s.Iterable))
		f.out.WriteString(" ")
		f.block(s.Body)
	case *ast.If:
		f.writeIndent()
		f.out.WriteString(f.ifExpr(s))
		f.out.WriteString("\n")
	default:
		f.line(f.expr(n))
	}
}

func (f *formatter) declStmt(s *ast.Decl) {
	f.writeIndent()
	switch s.Kind {
	case ast.DeclLet:
		f.out.WriteString("let ")
		f.out.WriteString(f.expr(s.Target))
		f.out.WriteString(" = ")
	case ast.DeclConst:
		f.out.WriteString("const ")
		f.out.WriteString(f.expr(s.Target))
		f.out.WriteString(" = ")
	case ast.DeclAssign:
		f.out.WriteString(f.expr(s.Target))
		f.out.WriteString(" = ")
	case ast.DeclAugAssign:
		f.out.WriteString(f.expr(s.Target))
		f.out.WriteString(" " + s.Op + "= ")
	}
	f.out.WriteString(f.expr(s.Value))
	f.out.WriteString("\n")
}

func (f *formatter) jumpStmt(s *ast.Jump) {
	f.writeIndent()
	switch s.Kind {
	case ast.JumpBreak:
		f.out.WriteString("break")
	case ast.JumpContinue:
		f.out.WriteString("continue")
	case ast.JumpReturn:
		f.out.WriteString("return")
	}
	if s.Value != nil {
		f.out.WriteString(" ")
		f.out.WriteString(f.expr(s.Value))
	}
	f.out.WriteString("\n")
}

func (f *formatter) block(n ast.Node) {
	b, ok := n.(*ast.Block)
	if !ok {
		f.out.WriteString(f.expr(n))
		f.out.WriteString("\n")
		return
	}
	f.out.WriteString("{\n")
	f.indent++
	for _, st := range b.Stmts {
		f.stmt(st)
	}
	f.indent--
	f.writeIndent()
	f.out.WriteString("}\n")
}

// expr renders n inline, for use both as a standalone expression
// statement and nested inside another construct.
func (f *formatter) expr(n ast.Node) string {
	switch e := n.(type) {
	case nil:
		return ""
	case *ast.Literal:
		return literalText(e.Value)
	case *ast.Identifier:
		return e.Name
	case *ast.Discard:
		return "_"
	case *ast.Grouped:
		return "(" + f.expr(e.Inner) + ")"
	case *ast.PrefixOp:
		return e.Op + " " + f.expr(e.Operand)
	case *ast.Infix:
		return f.expr(e.Left) + " " + e.Op + " " + f.expr(e.Right)
	case *ast.TypeInfix:
		return f.expr(e.Operand) + " " + e.Op + " " + e.Type
	case *ast.Tuple:
		return "(" + f.exprList(e.Elements) + ")"
	case *ast.List:
		return "[" + f.exprList(e.Elements) + "]"
	case *ast.Map:
		parts := make([]string, len(e.Keys))
		for i := range e.Keys {
			parts[i] = f.expr(e.Keys[i]) + ": " + f.expr(e.Values[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *ast.Fn:
		return "fn(" + strings.Join(e.Params, ", ") + ") " + f.exprBlock(e.Body)
	case *ast.Suffix:
		return f.suffix(e)
	case *ast.ErrorLit:
		if e.Inner == nil {
			return "error"
		}
		return "error(" + f.expr(e.Inner) + ")"
	case *ast.TaggedLit:
		if e.Inner == nil {
			return e.Name
		}
		return e.Name + "(" + f.expr(e.Inner) + ")"
	case *ast.If:
		return f.ifExpr(e)
	case *ast.Catch:
		return f.catchExpr(e)
	case *ast.Import:
		return fmt.Sprintf("import %q", e.Path)
	case *ast.Native:
		return "native(" + fmt.Sprintf("%q", e.Name) + ", " + f.exprList(e.Args) + ")"
	case *ast.Match:
		return f.matchExpr(e)
	case *ast.Block:
		return f.exprBlock(e)
	default:
		return fmt.Sprintf("/* unknown node %T */", e)
	}
}

func (f *formatter) exprList(nodes []ast.Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = f.expr(n)
	}
	return strings.Join(parts, ", ")
}

func (f *formatter) exprBlock(n ast.Node) string {
	var sub formatter
	sub.indentStr = f.indentStr
	sub.indent = f.indent
	sub.block(n)
	return strings.TrimRight(sub.out.String(), "\n")
}

func (f *formatter) suffix(s *ast.Suffix) string {
	obj := f.expr(s.Object)
	switch s.Kind {
	case ast.SuffixCall:
		return obj + "(" + f.exprList(s.Args) + ")"
	case ast.SuffixIndex:
		return obj + "[" + f.expr(s.Index) + "]"
	case ast.SuffixProperty:
		return obj + "." + s.Property
	case ast.SuffixMethodCall:
		return obj + "." + s.Property + "(" + f.exprList(s.Args) + ")"
	}
	return obj
}

func (f *formatter) ifExpr(e *ast.If) string {
	out := "if " + f.expr(e.Cond) + " " + f.exprBlock(e.ThenBranch)
	if e.ElseBranch != nil {
		if elseIf, ok := e.ElseBranch.(*ast.If); ok {
			out += " else " + f.ifExpr(elseIf)
		} else {
			out += " else " + f.exprBlock(e.ElseBranch)
		}
	}
	return out
}

func (f *formatter) catchExpr(e *ast.Catch) string {
	out := "try " + f.expr(e.Try)
	if e.Handler != nil {
		out += " catch |" + e.ErrName + "| " + f.exprBlock(e.Handler)
	}
	return out
}

func (f *formatter) matchExpr(e *ast.Match) string {
	var sb strings.Builder
	sb.WriteString("match " + f.expr(e.Subject) + " {\n")
	for _, c := range e.Cases {
		sb.WriteString(f.indentStr)
		sb.WriteString("case ")
		if c.Pattern == nil {
			sb.WriteString("_")
		} else {
			sb.WriteString(f.expr(c.Pattern))
		}
		if c.Guard != nil {
			sb.WriteString(" if " + f.expr(c.Guard))
		}
		sb.WriteString(": " + f.expr(c.Body) + ",\n")
	}
	f.writeIndent()
	sb.WriteString("}")
	return sb.String()
}

func literalText(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("%d", x)
	case float64:
		return fmt.Sprintf("%g", x)
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
