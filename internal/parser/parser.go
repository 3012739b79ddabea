// Package parser turns a lexer.Token stream into an internal/ast tree. Like
// the lexer, it is an external collaborator of the CORE (spec.md §1): the
// compiler's only contract with it is "delivers a well-formed AST."
// Grounded on internal/parser/parser.go's recursive-descent shape,
// retargeted to emit internal/ast nodes.
package parser

import (
	"fmt"

	"quill/internal/ast"
	"quill/internal/lexer"
)

// Error is a parse-time diagnostic (spec.md §7).
type Error struct {
	Message string
	Offset  int
}

func (e *Error) Error() string { return fmt.Sprintf("parse error at token %d: %s", e.Offset, e.Message) }

// Parser consumes a token slice and builds an AST.
type Parser struct {
	toks []lexer.Token
	pos  int
	errs []error
}

// New returns a Parser over toks (as produced by lexer.Scan).
func New(toks []lexer.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse tokenizes-then-parses src into a top-level statement list.
func Parse(src string) ([]ast.Node, error) {
	toks, err := lexer.Scan(src)
	if err != nil {
		return nil, err
	}
	p := New(toks)
	prog := p.ParseProgram()
	if len(p.errs) > 0 {
		return nil, p.errs[0]
	}
	return prog, nil
}

func (p *Parser) Errors() []error { return p.errs }

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) curType() lexer.TokenType { return p.toks[p.pos].Type }

func (p *Parser) atEnd() bool { return p.curType() == lexer.TokEOF }

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) check(t lexer.TokenType) bool { return p.curType() == t }

func (p *Parser) match(ts ...lexer.TokenType) bool {
	for _, t := range ts {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType, what string) lexer.Token {
	if !p.check(t) {
		p.errorf("expected %s, got %s %q", what, p.curType(), p.cur().Lexeme)
		return p.cur()
	}
	return p.advance()
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errs = append(p.errs, &Error{Message: fmt.Sprintf(format, args...), Offset: p.pos})
}

// ParseProgram parses a sequence of statements separated by ';' until EOF.
func (p *Parser) ParseProgram() []ast.Node {
	var stmts []ast.Node
	for !p.atEnd() {
		stmts = append(stmts, p.parseStatement())
		for p.match(lexer.TokSemi) {
		}
	}
	return stmts
}

func (p *Parser) parseStatement() ast.Node {
	switch p.curType() {
	case lexer.TokLet, lexer.TokConst:
		return p.parseDecl()
	default:
		return p.parseExpr()
	}
}

func (p *Parser) parseDecl() ast.Node {
	tok := p.advance()
	kind := ast.DeclLet
	if tok.Type == lexer.TokConst {
		kind = ast.DeclConst
	}
	target := p.parsePattern()
	p.expect(lexer.TokEq, "'=' in declaration")
	value := p.parseExpr()
	return &ast.Decl{Kind: kind, Target: target, Value: value}
}

// parsePattern parses a destructuring-capable lvalue pattern: an
// identifier, `_`, or a tuple/list of patterns.
func (p *Parser) parsePattern() ast.Node {
	tokOff := p.pos
	switch p.curType() {
	case lexer.TokUnderscore:
		p.advance()
		return &ast.Discard{}
	case lexer.TokIdent:
		name := p.advance()
		return &ast.Identifier{Base: ast.NewBase(tokOff), Name: name.Lexeme}
	case lexer.TokLParen:
		p.advance()
		var elems []ast.Node
		for !p.check(lexer.TokRParen) {
			elems = append(elems, p.parsePattern())
			if !p.match(lexer.TokComma) {
				break
			}
		}
		p.expect(lexer.TokRParen, "')' closing tuple pattern")
		return &ast.Tuple{Elements: elems}
	case lexer.TokLBracket:
		p.advance()
		var elems []ast.Node
		for !p.check(lexer.TokRBracket) {
			elems = append(elems, p.parsePattern())
			if !p.match(lexer.TokComma) {
				break
			}
		}
		p.expect(lexer.TokRBracket, "']' closing list pattern")
		return &ast.List{Elements: elems}
	default:
		p.errorf("expected pattern, got %s", p.curType())
		p.advance()
		return &ast.Discard{}
	}
}
