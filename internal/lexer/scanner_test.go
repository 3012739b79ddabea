package lexer

import "testing"

// types returns the TokenType of every token Scan produces, EOF included.
func types(t *testing.T, src string) []TokenType {
	t.Helper()
	toks, err := Scan(src)
	if err != nil {
		t.Fatalf("Scan(%q): %v", src, err)
	}
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func assertTypes(t *testing.T, src string, want []TokenType) {
	t.Helper()
	got := types(t, src)
	if len(got) != len(want) {
		t.Fatalf("Scan(%q): got %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Scan(%q): token %d = %s, want %s (full: %v)", src, i, got[i], want[i], got)
		}
	}
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	assertTypes(t, "let x", []TokenType{TokLet, TokIdent, TokEOF})
	assertTypes(t, "fn catch try", []TokenType{TokFn, TokCatch, TokTry, TokEOF})
}

func TestScanNumbers(t *testing.T) {
	assertTypes(t, "42 3.14", []TokenType{TokInt, TokFloat, TokEOF})
}

func TestScanStringLiteral(t *testing.T) {
	toks, err := Scan(`"hello"`)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(toks) != 2 || toks[0].Type != TokString {
		t.Fatalf("expected a single STRING token, got %v", toks)
	}
}

func TestScanOperatorsPreferLongestMatch(t *testing.T) {
	assertTypes(t, "a ..= b", []TokenType{TokIdent, TokDotDotEq, TokIdent, TokEOF})
	assertTypes(t, "a <= b", []TokenType{TokIdent, TokLe, TokIdent, TokEOF})
	assertTypes(t, "a ** b", []TokenType{TokIdent, TokStarStar, TokIdent, TokEOF})
}

func TestScanTracksByteOffsets(t *testing.T) {
	toks, err := Scan("let x")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if toks[0].Offset != 0 {
		t.Fatalf("first token offset = %d, want 0", toks[0].Offset)
	}
	if toks[1].Offset != 4 {
		t.Fatalf("second token offset = %d, want 4", toks[1].Offset)
	}
}

func TestScanRejectsUnterminatedString(t *testing.T) {
	_, err := Scan(`"unterminated`)
	if err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestScanCatchBinderPipe(t *testing.T) {
	assertTypes(t, "|e|", []TokenType{TokPipe, TokIdent, TokPipe, TokEOF})
}
