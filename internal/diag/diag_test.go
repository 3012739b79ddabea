package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quill/internal/lexer"
)

func TestLineCol(t *testing.T) {
	src := "let x = 1\nlet y = 2\nlet z = bad\n"
	tests := []struct {
		name       string
		offset     int
		wantLine   int
		wantCol    int
		wantSource string
	}{
		{"start of file", 0, 1, 1, "let x = 1"},
		{"mid first line", 4, 1, 5, "let x = 1"},
		{"start of second line", 10, 2, 1, "let y = 2"},
		{"third line", 22, 3, 3, "let z = bad"},
		{"clamped past end", 1000, 4, 1, ""},
		{"clamped negative", -5, 1, 1, "let x = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, col, text := lineCol(src, tt.offset)
			assert.Equal(t, tt.wantLine, line)
			assert.Equal(t, tt.wantCol, col)
			assert.Equal(t, tt.wantSource, text)
		})
	}
}

func TestTokenOffset(t *testing.T) {
	toks := []lexer.Token{
		{Offset: 0},
		{Offset: 4},
		{Offset: 9},
	}
	assert.Equal(t, 4, tokenOffset(toks, 1))
	assert.Equal(t, 0, tokenOffset(toks, -1), "negative index clamps to first token")
	assert.Equal(t, 9, tokenOffset(toks, 99), "out-of-range index clamps to last token")
	assert.Equal(t, 0, tokenOffset(nil, 0), "empty token slice has no offset to resolve")
}

func TestFromError_LexerError(t *testing.T) {
	src := "let x = @\n"
	err := &lexer.Error{Message: "unexpected character '@'", Offset: 8}
	d := FromError("main.ql", src, nil, err)
	assert.Equal(t, KindSyntax, d.Kind)
	assert.Equal(t, 1, d.Line)
	assert.Equal(t, 9, d.Column)
	assert.Contains(t, d.String(), "SyntaxError")
	assert.Contains(t, d.String(), "at main.ql:1:9")
	assert.Contains(t, d.String(), "^")
}

func TestFromError_PlainRuntimeError(t *testing.T) {
	d := FromError("main.ql", "", nil, assertError("quill: uncaught error: boom"))
	assert.Equal(t, KindRuntime, d.Kind)
	assert.Equal(t, "quill: uncaught error: boom", d.Message)
	assert.Empty(t, d.Line)
}

func TestFromError_Nil(t *testing.T) {
	assert.Nil(t, FromError("main.ql", "", nil, nil))
}

type assertError string

func (e assertError) Error() string { return string(e) }
