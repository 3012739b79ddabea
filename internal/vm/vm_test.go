package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/compiler"
	"quill/internal/lexer"
	"quill/internal/parser"
	"quill/internal/vm"
)

// run compiles and executes src with no natives, returning the module's
// result value. Most of this suite exercises the VM through the real
// front end rather than hand-built bytecode.Module values, since the
// compiler's register allocation is the contract the VM's Frame/Ref
// scheme depends on.
func run(t *testing.T, src string) vm.Value {
	t.Helper()
	toks, err := lexer.Scan(src)
	require.NoError(t, err)
	p := parser.New(toks)
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())
	mod, err := compiler.Compile("test.ql", src, prog, nil)
	require.NoError(t, err)
	machine := vm.New(mod, nil, nil)
	v, err := machine.Run()
	require.NoError(t, err)
	return v
}

func runErr(t *testing.T, src string) error {
	t.Helper()
	toks, err := lexer.Scan(src)
	require.NoError(t, err)
	p := parser.New(toks)
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())
	mod, err := compiler.Compile("test.ql", src, prog, nil)
	require.NoError(t, err)
	machine := vm.New(mod, nil, nil)
	_, err = machine.Run()
	return err
}

func TestArithmetic(t *testing.T) {
	v := run(t, "1 + 2 * 3")
	assert.True(t, v.IsInt())
	assert.Equal(t, int64(7), v.Int64())
}

func TestStringConcat(t *testing.T) {
	v := run(t, `"hello" + " " + "world"`)
	require.True(t, v.IsStr())
	assert.Equal(t, "hello world", v.Str())
}

func TestLetBindingAndMutation(t *testing.T) {
	v := run(t, `
let x = 1
x = x + 41
x`)
	assert.Equal(t, int64(42), v.Int64())
}

func TestIfElse(t *testing.T) {
	v := run(t, `if 1 < 2 { "yes" } else { "no" }`)
	assert.Equal(t, "yes", v.Str())
}

func TestWhileLoop(t *testing.T) {
	v := run(t, `
let i = 0
let sum = 0
while i < 5 {
    sum = sum + i
    i = i + 1
}
sum`)
	assert.Equal(t, int64(10), v.Int64())
}

func TestForOverList(t *testing.T) {
	v := run(t, `
let total = 0
for n in [1, 2, 3, 4] {
    total = total + n
}
total`)
	assert.Equal(t, int64(10), v.Int64())
}

func TestFunctionCallAndClosureCapture(t *testing.T) {
	v := run(t, `
let make_adder = fn(n) {
    fn(x) { x + n }
}
let add5 = make_adder(5)
add5(10)`)
	assert.Equal(t, int64(15), v.Int64())
}

func TestTryCatchRecoversError(t *testing.T) {
	v := run(t, `
let result = try error("boom") catch |e| { "recovered" }
result`)
	assert.Equal(t, "recovered", v.Str())
}

func TestUncaughtErrorPropagatesAsRuntimeError(t *testing.T) {
	err := runErr(t, `error("boom")`)
	assert.Error(t, err)
}

func TestReplFrameGrowsAcrossResumes(t *testing.T) {
	names := []string{}
	comp := compiler.NewRepl("<repl>", names)
	machine := vm.New(comp.Module(), map[string]vm.NativeFn{}, nil)
	fr, err := machine.NewReplFrame()
	require.NoError(t, err)

	evalLine := func(src string) (vm.Value, bool) {
		toks, err := lexer.Scan(src)
		require.NoError(t, err)
		p := parser.New(toks)
		stmts := p.ParseProgram()
		require.Empty(t, p.Errors())
		from, to, _, hasValue, err := comp.Continue(stmts)
		require.NoError(t, err)
		fr.Grow(comp.InstrsSince(from, to))
		v, err := machine.Resume(fr, from)
		require.NoError(t, err)
		return v, hasValue
	}

	_, hasValue := evalLine("let x = 10")
	assert.False(t, hasValue)

	v, hasValue := evalLine("x * 4")
	assert.True(t, hasValue)
	assert.Equal(t, int64(40), v.Int64())
}
