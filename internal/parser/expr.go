package parser

import (
	"quill/internal/ast"
	"quill/internal/lexer"
)

// parseExpr is the assignment-precedence entry point used everywhere an
// expression is expected.
func (p *Parser) parseExpr() ast.Node {
	return p.parseAssignment()
}

var augOps = map[lexer.TokenType]string{
	lexer.TokPlusEq:  "+",
	lexer.TokMinusEq: "-",
	lexer.TokStarEq:  "*",
	lexer.TokSlashEq: "/",
}

func (p *Parser) parseAssignment() ast.Node {
	tokOff := p.pos
	left := p.parseOr()
	if p.check(lexer.TokEq) {
		p.advance()
		right := p.parseAssignment()
		return &ast.Decl{Base: ast.NewBase(tokOff), Kind: ast.DeclAssign, Target: left, Value: right}
	}
	if op, ok := augOps[p.curType()]; ok {
		p.advance()
		right := p.parseAssignment()
		return &ast.Decl{Base: ast.NewBase(tokOff), Kind: ast.DeclAugAssign, Op: op, Target: left, Value: right}
	}
	return left
}

func (p *Parser) parseOr() ast.Node {
	left := p.parseAnd()
	for p.check(lexer.TokOr) {
		tokOff := p.pos
		p.advance()
		right := p.parseAnd()
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: "or", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Node {
	left := p.parseEquality()
	for p.check(lexer.TokAnd) {
		tokOff := p.pos
		p.advance()
		right := p.parseEquality()
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: "and", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() ast.Node {
	left := p.parseComparison()
	for p.check(lexer.TokEqEq) || p.check(lexer.TokNotEq) {
		tokOff := p.pos
		op := p.advance()
		right := p.parseComparison()
		sym := "=="
		if op.Type == lexer.TokNotEq {
			sym = "!="
		}
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: sym, Left: left, Right: right}
	}
	return left
}

var cmpOps = map[lexer.TokenType]string{
	lexer.TokLt: "<", lexer.TokLe: "<=", lexer.TokGt: ">", lexer.TokGe: ">=",
}

func (p *Parser) parseComparison() ast.Node {
	left := p.parseRange()
	for {
		tokOff := p.pos
		if sym, ok := cmpOps[p.curType()]; ok {
			p.advance()
			right := p.parseRange()
			left = &ast.Infix{Base: ast.NewBase(tokOff), Op: sym, Left: left, Right: right}
			continue
		}
		if p.check(lexer.TokIn) {
			p.advance()
			right := p.parseRange()
			left = &ast.Infix{Base: ast.NewBase(tokOff), Op: "in", Left: left, Right: right}
			continue
		}
		if p.check(lexer.TokIs) || p.check(lexer.TokAs) {
			op := p.advance()
			ty := p.expect(lexer.TokIdent, "type name")
			sym := "is"
			if op.Type == lexer.TokAs {
				sym = "as"
			}
			left = &ast.TypeInfix{Base: ast.NewBase(tokOff), Op: sym, Operand: left, Type: ty.Lexeme}
			continue
		}
		break
	}
	return left
}

// parseRange handles `a..b` and `a..=b` range literals (there is no step
// clause), binding tighter than comparisons so `a < x..y` parses as
// `a < (x..y)`.
func (p *Parser) parseRange() ast.Node {
	left := p.parseBitOr()
	if p.check(lexer.TokDotDot) || p.check(lexer.TokDotDotEq) {
		tokOff := p.pos
		op := p.advance()
		right := p.parseBitOr()
		sym := ".."
		if op.Type == lexer.TokDotDotEq {
			sym = "..="
		}
		return &ast.Infix{Base: ast.NewBase(tokOff), Op: sym, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitOr() ast.Node {
	left := p.parseBitXor()
	for p.check(lexer.TokPipe) {
		tokOff := p.pos
		p.advance()
		right := p.parseBitXor()
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: "|", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitXor() ast.Node {
	left := p.parseBitAnd()
	for p.check(lexer.TokCaret) {
		tokOff := p.pos
		p.advance()
		right := p.parseBitAnd()
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: "^", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Node {
	left := p.parseShift()
	for p.check(lexer.TokAmp) {
		tokOff := p.pos
		p.advance()
		right := p.parseShift()
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: "&", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseShift() ast.Node {
	left := p.parseAdditive()
	for p.check(lexer.TokShl) || p.check(lexer.TokShr) {
		tokOff := p.pos
		op := p.advance()
		right := p.parseAdditive()
		sym := "<<"
		if op.Type == lexer.TokShr {
			sym = ">>"
		}
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: sym, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Node {
	left := p.parseMultiplicative()
	for p.check(lexer.TokPlus) || p.check(lexer.TokMinus) {
		tokOff := p.pos
		op := p.advance()
		right := p.parseMultiplicative()
		sym := "+"
		if op.Type == lexer.TokMinus {
			sym = "-"
		}
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: sym, Left: left, Right: right}
	}
	return left
}

var mulOps = map[lexer.TokenType]string{
	lexer.TokStar: "*", lexer.TokSlash: "/", lexer.TokSlash2: "//", lexer.TokPercent: "%",
}

func (p *Parser) parseMultiplicative() ast.Node {
	left := p.parsePower()
	for {
		sym, ok := mulOps[p.curType()]
		if !ok {
			break
		}
		tokOff := p.pos
		p.advance()
		right := p.parsePower()
		left = &ast.Infix{Base: ast.NewBase(tokOff), Op: sym, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parsePower() ast.Node {
	left := p.parseUnary()
	if p.check(lexer.TokStarStar) {
		tokOff := p.pos
		p.advance()
		right := p.parsePower() // right-associative
		return &ast.Infix{Base: ast.NewBase(tokOff), Op: "**", Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Node {
	tokOff := p.pos
	switch p.curType() {
	case lexer.TokMinus:
		p.advance()
		return &ast.PrefixOp{Base: ast.NewBase(tokOff), Op: "-", Operand: p.parseUnary()}
	case lexer.TokBang:
		p.advance()
		return &ast.PrefixOp{Base: ast.NewBase(tokOff), Op: "!", Operand: p.parseUnary()}
	case lexer.TokTilde:
		p.advance()
		return &ast.PrefixOp{Base: ast.NewBase(tokOff), Op: "~", Operand: p.parseUnary()}
	case lexer.TokTry:
		return p.parseTry()
	default:
		return p.parseSuffix()
	}
}

func (p *Parser) parseTry() ast.Node {
	tokOff := p.pos
	p.advance()
	inner := p.parseBitOr()
	if p.check(lexer.TokCatch) {
		p.advance()
		p.expect(lexer.TokPipe, "'|' opening catch binder")
		name := p.expect(lexer.TokIdent, "catch-bound name")
		p.expect(lexer.TokPipe, "'|' closing catch binder")
		handler := p.parseExpr()
		return &ast.Catch{Base: ast.NewBase(tokOff), Try: inner, ErrName: name.Lexeme, Handler: handler}
	}
	return &ast.PrefixOp{Base: ast.NewBase(tokOff), Op: "try", Operand: inner}
}

func (p *Parser) parseSuffix() ast.Node {
	expr := p.parsePrimary()
	for {
		tokOff := p.pos
		switch p.curType() {
		case lexer.TokLParen:
			p.advance()
			args := p.parseArgs(lexer.TokRParen)
			expr = &ast.Suffix{Base: ast.NewBase(tokOff), Kind: ast.SuffixCall, Object: expr, Args: args}
		case lexer.TokLBracket:
			p.advance()
			idx := p.parseExpr()
			p.expect(lexer.TokRBracket, "']' closing index")
			expr = &ast.Suffix{Base: ast.NewBase(tokOff), Kind: ast.SuffixIndex, Object: expr, Index: idx}
		case lexer.TokDot:
			p.advance()
			name := p.expect(lexer.TokIdent, "property name")
			if p.check(lexer.TokLParen) {
				p.advance()
				args := p.parseArgs(lexer.TokRParen)
				expr = &ast.Suffix{Base: ast.NewBase(tokOff), Kind: ast.SuffixMethodCall, Object: expr, Property: name.Lexeme, Args: args}
			} else {
				expr = &ast.Suffix{Base: ast.NewBase(tokOff), Kind: ast.SuffixProperty, Object: expr, Property: name.Lexeme}
			}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgs(closing lexer.TokenType) []ast.Node {
	var args []ast.Node
	for !p.check(closing) {
		args = append(args, p.parseExpr())
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(closing, "closing delimiter")
	return args
}
