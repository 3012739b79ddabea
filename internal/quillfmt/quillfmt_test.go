package quillfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/ast"
	"quill/internal/lexer"
	"quill/internal/parser"
)

func mustParse(t *testing.T, src string) []ast.Node {
	t.Helper()
	toks, err := lexer.Scan(src)
	require.NoError(t, err)
	p := parser.New(toks)
	stmts := p.ParseProgram()
	require.Empty(t, p.Errors())
	return stmts
}

func TestFormat_LetAndReturn(t *testing.T) {
	src := `let x = 1
let y = x + 2
return y`
	out := Format(mustParse(t, src))
	assert.Equal(t, "let x = 1\nlet y = x + 2\nreturn y\n", out)
}

func TestFormat_FnLiteral(t *testing.T) {
	src := `let add = fn(a, b) { a + b }`
	out := Format(mustParse(t, src))
	assert.Contains(t, out, "let add = fn(a, b) {\n")
	assert.Contains(t, out, "    a + b\n")
	assert.Contains(t, out, "}\n")
}

func TestFormat_IfElse(t *testing.T) {
	src := `if x > 0 { 1 } else { 0 }`
	out := Format(mustParse(t, src))
	assert.Contains(t, out, "if x > 0 {")
	assert.Contains(t, out, "} else {")
}

func TestFormat_ImportBlankLineBeforeCode(t *testing.T) {
	src := `import "math"
let x = 1`
	out := Format(mustParse(t, src))
	assert.Contains(t, out, "import \"math\"\n\nlet x = 1\n")
}
