// Package diag renders the byte-offset/token-index errors produced by
// internal/lexer, internal/parser, internal/compiler, and internal/vm into
// source-located, human-readable diagnostics (spec.md §7).
//
// Grounded on internal/errors/errors.go's SentraError: a typed error with a
// source location, rendered as "Type: message", a "at file:line:col" line,
// and the offending source line with a caret under the column.
package diag

import (
	"fmt"
	"strings"

	"quill/internal/compiler"
	"quill/internal/lexer"
	"quill/internal/parser"
)

// Kind classifies which stage raised the diagnostic.
type Kind string

const (
	KindSyntax  Kind = "SyntaxError"
	KindCompile Kind = "CompileError"
	KindRuntime Kind = "RuntimeError"
)

// Diagnostic is a single source-located error, ready to render.
type Diagnostic struct {
	Kind    Kind
	Message string
	Path    string
	Line    int
	Column  int
	Source  string // the offending line's text; empty if unknown
}

// Error implements error so a Diagnostic can be returned/wrapped like any
// other Go error.
func (d *Diagnostic) Error() string { return d.String() }

// String renders the diagnostic in the teacher's SentraError shape: type and
// message, a location line, and a source snippet with a caret.
func (d *Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", d.Kind, d.Message)
	if d.Path != "" && d.Line > 0 {
		fmt.Fprintf(&sb, "  at %s:%d:%d\n", d.Path, d.Line, d.Column)
	}
	if d.Source != "" {
		prefix := fmt.Sprintf("  %d | ", d.Line)
		fmt.Fprintf(&sb, "\n%s%s\n", prefix, d.Source)
		pad := strings.Repeat(" ", len(prefix))
		if d.Column > 1 {
			pad += strings.Repeat(" ", d.Column-1)
		}
		sb.WriteString(pad + "^\n")
	}
	return sb.String()
}

// lineCol converts a byte offset into 1-based line/column plus that line's
// text, clamping offset into [0, len(src)].
func lineCol(src string, offset int) (line, col int, text string) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(src) {
		offset = len(src)
	}
	line, col = 1, 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
			lineStart = i + 1
		} else {
			col++
		}
	}
	end := strings.IndexByte(src[lineStart:], '\n')
	if end < 0 {
		text = src[lineStart:]
	} else {
		text = src[lineStart : lineStart+end]
	}
	return
}

// tokenOffset maps a token index (as carried by parser.Error.Offset and
// compiler.Diag.TokPos) back to the byte offset of that token, clamping to
// the last token when the index names the synthetic EOF position.
func tokenOffset(toks []lexer.Token, idx int) int {
	if len(toks) == 0 {
		return 0
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(toks) {
		idx = len(toks) - 1
	}
	return toks[idx].Offset
}

// FromError classifies err — as returned by lexer.Scan, parser.Parse,
// compiler.Compile, or vm.VM.Run — into a source-located Diagnostic. toks is
// the token stream the error was produced against (nil is fine for a lexer
// error or an error with no source position, such as a VM runtime fault).
func FromError(path, source string, toks []lexer.Token, err error) *Diagnostic {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *lexer.Error:
		line, col, text := lineCol(source, e.Offset)
		return &Diagnostic{Kind: KindSyntax, Message: e.Message, Path: path, Line: line, Column: col, Source: text}
	case *parser.Error:
		line, col, text := lineCol(source, tokenOffset(toks, e.Offset))
		return &Diagnostic{Kind: KindSyntax, Message: e.Message, Path: path, Line: line, Column: col, Source: text}
	case *compiler.Diag:
		line, col, text := lineCol(source, tokenOffset(toks, e.TokPos))
		return &Diagnostic{Kind: KindCompile, Message: e.Message, Path: path, Line: line, Column: col, Source: text}
	default:
		return &Diagnostic{Kind: KindRuntime, Message: err.Error(), Path: path}
	}
}

// Render is a convenience wrapper returning the rendered diagnostic text
// directly, for callers (cmd/quill, internal/repl) that just want a string
// to print to stderr.
func Render(path, source string, toks []lexer.Token, err error) string {
	d := FromError(path, source, toks, err)
	if d == nil {
		return ""
	}
	return d.String()
}
