package repl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/natives"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	sess, err := New(natives.New(), nil, &bytes.Buffer{})
	require.NoError(t, err)
	return sess
}

func TestEvalReturnsLastValue(t *testing.T) {
	sess := newSession(t)
	out, err := sess.Eval("1 + 2")
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestEvalBindingsPersistAcrossLines(t *testing.T) {
	sess := newSession(t)
	_, err := sess.Eval("let x = 10")
	require.NoError(t, err)

	out, err := sess.Eval("x * 2")
	require.NoError(t, err)
	assert.Equal(t, "20", out, "a binding from an earlier line must stay visible to a later one")
}

func TestEvalBareLetProducesNoValue(t *testing.T) {
	sess := newSession(t)
	out, err := sess.Eval("let y = 5")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEvalSyntaxErrorReportsDiagnostic(t *testing.T) {
	sess := newSession(t)
	_, err := sess.Eval("let = ")
	assert.Error(t, err)
}

func TestRunExitsOnExitCommand(t *testing.T) {
	in := bytes.NewBufferString("let x = 1\nx\nexit\n")
	var out bytes.Buffer
	err := Run(natives.New(), nil, in, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1\n")
}
