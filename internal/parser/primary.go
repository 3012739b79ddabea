package parser

import (
	"strconv"

	"quill/internal/ast"
	"quill/internal/lexer"
)

func (p *Parser) parsePrimary() ast.Node {
	tokOff := p.pos
	switch p.curType() {
	case lexer.TokInt:
		t := p.advance()
		n, _ := strconv.ParseInt(t.Lexeme, 10, 64)
		return &ast.Literal{Base: ast.NewBase(tokOff), Value: n}
	case lexer.TokFloat:
		t := p.advance()
		f, _ := strconv.ParseFloat(t.Lexeme, 64)
		return &ast.Literal{Base: ast.NewBase(tokOff), Value: f}
	case lexer.TokString:
		t := p.advance()
		return &ast.Literal{Base: ast.NewBase(tokOff), Value: t.Lexeme}
	case lexer.TokTrue:
		p.advance()
		return &ast.Literal{Base: ast.NewBase(tokOff), Value: true}
	case lexer.TokFalse:
		p.advance()
		return &ast.Literal{Base: ast.NewBase(tokOff), Value: false}
	case lexer.TokNull:
		p.advance()
		return &ast.Literal{Base: ast.NewBase(tokOff), Value: nil}
	case lexer.TokUnderscore:
		p.advance()
		return &ast.Discard{Base: ast.NewBase(tokOff)}
	case lexer.TokIdent:
		t := p.advance()
		return &ast.Identifier{Base: ast.NewBase(tokOff), Name: t.Lexeme}
	case lexer.TokUpper:
		return p.parseTagged()
	case lexer.TokError:
		return p.parseErrorLit()
	case lexer.TokNative:
		return p.parseNative()
	case lexer.TokImport:
		return p.parseImport()
	case lexer.TokFn:
		return p.parseFn()
	case lexer.TokIf:
		return p.parseIf()
	case lexer.TokWhile:
		return p.parseWhile()
	case lexer.TokFor:
		return p.parseFor()
	case lexer.TokMatch:
		return p.parseMatch()
	case lexer.TokBreak, lexer.TokContinue, lexer.TokReturn:
		return p.parseJump()
	case lexer.TokLParen:
		return p.parseParenOrTuple()
	case lexer.TokLBracket:
		return p.parseList()
	case lexer.TokLBrace:
		return p.parseBraceExpr()
	default:
		p.errorf("unexpected token %s %q", p.curType(), p.cur().Lexeme)
		p.advance()
		return &ast.Literal{Base: ast.NewBase(tokOff), Value: nil}
	}
}

func (p *Parser) parseTagged() ast.Node {
	tokOff := p.pos
	name := p.advance()
	if p.check(lexer.TokLParen) {
		p.advance()
		inner := p.parseExpr()
		p.expect(lexer.TokRParen, "')' closing tagged value")
		return &ast.TaggedLit{Base: ast.NewBase(tokOff), Name: name.Lexeme, Inner: inner}
	}
	return &ast.TaggedLit{Base: ast.NewBase(tokOff), Name: name.Lexeme}
}

func (p *Parser) parseErrorLit() ast.Node {
	tokOff := p.pos
	p.advance()
	if p.check(lexer.TokLParen) {
		p.advance()
		inner := p.parseExpr()
		p.expect(lexer.TokRParen, "')' closing error value")
		return &ast.ErrorLit{Base: ast.NewBase(tokOff), Inner: inner}
	}
	return &ast.ErrorLit{Base: ast.NewBase(tokOff)}
}

func (p *Parser) parseNative() ast.Node {
	tokOff := p.pos
	p.advance()
	p.expect(lexer.TokLParen, "'(' after native")
	name := p.expect(lexer.TokString, "native function name string")
	var args []ast.Node
	for p.match(lexer.TokComma) {
		args = append(args, p.parseExpr())
	}
	p.expect(lexer.TokRParen, "')' closing native call")
	return &ast.Native{Base: ast.NewBase(tokOff), Name: name.Lexeme, Args: args}
}

func (p *Parser) parseImport() ast.Node {
	tokOff := p.pos
	p.advance()
	path := p.expect(lexer.TokString, "import path string")
	return &ast.Import{Base: ast.NewBase(tokOff), Path: path.Lexeme}
}

func (p *Parser) parseFn() ast.Node {
	tokOff := p.pos
	p.advance()
	p.expect(lexer.TokLParen, "'(' opening parameter list")
	var params []string
	for !p.check(lexer.TokRParen) {
		name := p.expect(lexer.TokIdent, "parameter name")
		params = append(params, name.Lexeme)
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRParen, "')' closing parameter list")
	body := p.parseExpr()
	return &ast.Fn{Base: ast.NewBase(tokOff), Params: params, Body: body}
}

func (p *Parser) parseIf() ast.Node {
	tokOff := p.pos
	p.advance()
	cond := p.parseExpr()
	then := p.parseExpr()
	var els ast.Node
	if p.match(lexer.TokElse) {
		els = p.parseExpr()
	}
	return &ast.If{Base: ast.NewBase(tokOff), Cond: cond, ThenBranch: then, ElseBranch: els}
}

func (p *Parser) parseWhile() ast.Node {
	tokOff := p.pos
	p.advance()
	cond := p.parseExpr()
	body := p.parseExpr()
	return &ast.While{Base: ast.NewBase(tokOff), Cond: cond, Body: body}
}

func (p *Parser) parseFor() ast.Node {
	tokOff := p.pos
	p.advance()
	pattern := p.parsePattern()
	p.expect(lexer.TokIn, "'in' in for loop")
	iterable := p.parseExpr()
	body := p.parseExpr()
	return &ast.For{Base: ast.NewBase(tokOff), Pattern: pattern, Iterable: iterable, Body: body}
}

func (p *Parser) parseJump() ast.Node {
	tokOff := p.pos
	t := p.advance()
	var kind ast.JumpKind
	switch t.Type {
	case lexer.TokBreak:
		kind = ast.JumpBreak
	case lexer.TokContinue:
		kind = ast.JumpContinue
	case lexer.TokReturn:
		kind = ast.JumpReturn
	}
	var value ast.Node
	if kind != ast.JumpContinue && p.canStartExpr() {
		value = p.parseExpr()
	}
	return &ast.Jump{Base: ast.NewBase(tokOff), Kind: kind, Value: value}
}

// canStartExpr reports whether the current token could begin an expression,
// used to decide whether `break`/`return` carries a value.
func (p *Parser) canStartExpr() bool {
	switch p.curType() {
	case lexer.TokSemi, lexer.TokRBrace, lexer.TokRParen, lexer.TokRBracket,
		lexer.TokComma, lexer.TokEOF, lexer.TokElse:
		return false
	default:
		return true
	}
}

func (p *Parser) parseParenOrTuple() ast.Node {
	tokOff := p.pos
	p.advance()
	if p.check(lexer.TokRParen) {
		p.advance()
		return &ast.Tuple{Base: ast.NewBase(tokOff)}
	}
	first := p.parseExpr()
	if p.check(lexer.TokComma) {
		elems := []ast.Node{first}
		for p.match(lexer.TokComma) {
			if p.check(lexer.TokRParen) {
				break
			}
			elems = append(elems, p.parseExpr())
		}
		p.expect(lexer.TokRParen, "')' closing tuple")
		return &ast.Tuple{Base: ast.NewBase(tokOff), Elements: elems}
	}
	p.expect(lexer.TokRParen, "')' closing group")
	return &ast.Grouped{Base: ast.NewBase(tokOff), Inner: first}
}

func (p *Parser) parseList() ast.Node {
	tokOff := p.pos
	p.advance()
	var elems []ast.Node
	for !p.check(lexer.TokRBracket) {
		elems = append(elems, p.parseExpr())
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRBracket, "']' closing list")
	return &ast.List{Base: ast.NewBase(tokOff), Elements: elems}
}

// parseBraceExpr disambiguates `{}`/`{k: v, ...}` (Map) from `{ stmt; ... }`
// (Block). An empty `{}` is a map literal by convention.
func (p *Parser) parseBraceExpr() ast.Node {
	tokOff := p.pos
	p.advance()
	if p.check(lexer.TokRBrace) {
		p.advance()
		return &ast.Map{Base: ast.NewBase(tokOff)}
	}
	if p.looksLikeMapEntry() {
		return p.parseMapBody(tokOff)
	}
	return p.parseBlockBody(tokOff)
}

// looksLikeMapEntry peeks for IDENT/STRING/UPPER_IDENT ':' which only
// appears at the start of a map entry, never at the start of a statement.
func (p *Parser) looksLikeMapEntry() bool {
	t := p.curType()
	if t != lexer.TokIdent && t != lexer.TokString && t != lexer.TokUpper {
		return false
	}
	if p.pos+1 >= len(p.toks) {
		return false
	}
	return p.toks[p.pos+1].Type == lexer.TokColon
}

func (p *Parser) parseMapBody(tokOff int) ast.Node {
	var keys, values []ast.Node
	for !p.check(lexer.TokRBrace) {
		var key ast.Node
		kTokOff := p.pos
		if p.check(lexer.TokString) {
			s := p.advance()
			key = &ast.Literal{Base: ast.NewBase(kTokOff), Value: s.Lexeme}
		} else {
			name := p.advance()
			key = &ast.Literal{Base: ast.NewBase(kTokOff), Value: name.Lexeme}
		}
		p.expect(lexer.TokColon, "':' in map entry")
		val := p.parseExpr()
		keys = append(keys, key)
		values = append(values, val)
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRBrace, "'}' closing map")
	return &ast.Map{Base: ast.NewBase(tokOff), Keys: keys, Values: values}
}

func (p *Parser) parseBlockBody(tokOff int) ast.Node {
	var stmts []ast.Node
	for !p.check(lexer.TokRBrace) && !p.atEnd() {
		stmts = append(stmts, p.parseStatement())
		for p.match(lexer.TokSemi) {
		}
	}
	p.expect(lexer.TokRBrace, "'}' closing block")
	return &ast.Block{Base: ast.NewBase(tokOff), Stmts: stmts}
}

func (p *Parser) parseMatch() ast.Node {
	tokOff := p.pos
	p.advance()
	subject := p.parseExpr()
	p.expect(lexer.TokLBrace, "'{' opening match body")
	var cases []*ast.MatchCase
	for !p.check(lexer.TokRBrace) {
		cTokOff := p.pos
		p.expect(lexer.TokCase, "'case'")
		var pattern ast.Node
		if p.check(lexer.TokUnderscore) {
			p.advance()
		} else {
			pattern = p.parseExpr()
		}
		var guard ast.Node
		if p.match(lexer.TokIf) {
			guard = p.parseExpr()
		}
		p.expect(lexer.TokColon, "':' after case pattern")
		body := p.parseExpr()
		cases = append(cases, &ast.MatchCase{Base: ast.NewBase(cTokOff), Pattern: pattern, Guard: guard, Body: body})
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRBrace, "'}' closing match body")
	return &ast.Match{Base: ast.NewBase(tokOff), Subject: subject, Cases: cases}
}
