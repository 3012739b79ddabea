package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/bytecode"
	"quill/internal/compiler"
	"quill/internal/lexer"
	"quill/internal/parser"
)

func compileSrc(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	toks, err := lexer.Scan(src)
	require.NoError(t, err)
	p := parser.New(toks)
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())
	mod, err := compiler.Compile("test.ql", src, prog, nil)
	require.NoError(t, err)
	return mod
}

func TestCompileEndsTopLevelInReturn(t *testing.T) {
	mod := compileSrc(t, "1 + 1")
	last := mod.Code[mod.Main[len(mod.Main)-1]]
	assert.Contains(t, []bytecode.OpCode{bytecode.OpRet, bytecode.OpRetNull}, last)
}

func TestCompileProducesValidatableTopLevel(t *testing.T) {
	mod := compileSrc(t, `
let x = 1
let y = 2
x + y`)
	err := mod.Validate(bytecode.Body{Instrs: mod.Main, Params: 0})
	assert.NoError(t, err)
}

func TestCompileErrorOnUndeclaredAssignment(t *testing.T) {
	toks, err := lexer.Scan("x = 1")
	require.NoError(t, err)
	p := parser.New(toks)
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())
	_, err = compiler.Compile("test.ql", "x = 1", prog, nil)
	assert.Error(t, err)
}

func TestContinueReportsInstructionRangeAndValueRef(t *testing.T) {
	comp := compiler.NewRepl("<repl>", nil)

	toks, err := lexer.Scan("let x = 10")
	require.NoError(t, err)
	p := parser.New(toks)
	stmts := p.ParseProgram()
	require.Empty(t, p.Errors())

	from, to, _, hasValue, err := comp.Continue(stmts)
	require.NoError(t, err)
	assert.False(t, hasValue, "a bare let produces no REPL value")
	assert.Greater(t, to, from)

	toks2, err := lexer.Scan("x + 1")
	require.NoError(t, err)
	p2 := parser.New(toks2)
	stmts2 := p2.ParseProgram()
	require.Empty(t, p2.Errors())

	from2, to2, _, hasValue2, err := comp.Continue(stmts2)
	require.NoError(t, err)
	assert.True(t, hasValue2)
	assert.Equal(t, to, from2, "the second Continue call starts where the first left off")
	assert.Greater(t, to2, from2)
}

func TestNewReplNeverFinalizesWithReturn(t *testing.T) {
	comp := compiler.NewRepl("<repl>", nil)
	toks, err := lexer.Scan("1 + 1")
	require.NoError(t, err)
	p := parser.New(toks)
	stmts := p.ParseProgram()
	require.Empty(t, p.Errors())
	_, _, _, _, err = comp.Continue(stmts)
	require.NoError(t, err)
	assert.Empty(t, comp.Module().Main, "NewRepl's module never assigns Main; the REPL drives its frame directly from InstrsSince")
}
