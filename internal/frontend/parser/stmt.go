package parser

import (
	"pynux/internal/frontend/ast"
	"pynux/internal/tokens"
)

var compoundOps = map[tokens.TOKEN]ast.BinOp{
	tokens.PLUS_EQUALS_TOKEN:      ast.ADD,
	tokens.MINUS_EQUALS_TOKEN:     ast.SUB,
	tokens.STAR_EQUALS_TOKEN:      ast.MUL,
	tokens.SLASH_EQUALS_TOKEN:     ast.DIV,
	tokens.PERCENT_EQUALS_TOKEN:   ast.MOD,
	tokens.AMPERSAND_EQUALS_TOKEN: ast.BITAND,
	tokens.PIPE_EQUALS_TOKEN:      ast.BITOR,
	tokens.CARET_EQUALS_TOKEN:     ast.BITXOR,
	tokens.SHL_EQUALS_TOKEN:       ast.SHL,
	tokens.SHR_EQUALS_TOKEN:       ast.SHR,
}

// parseStatement parses one statement including its trailing NEWLINE.
func (p *Parser) parseStatement() ast.Statement {
	tok := p.current()

	switch tok.Kind {
	case tokens.RETURN_TOKEN:
		p.advance()
		var value ast.Expression
		if !p.check(tokens.NEWLINE_TOKEN) {
			value = p.parseExpression()
		}
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Return{StmtBase: ast.NewStmtBase(p.span(tok)), Value: value}

	case tokens.IF_TOKEN:
		return p.parseIf()

	case tokens.WHILE_TOKEN:
		p.advance()
		cond := p.parseExpression()
		body := p.parseBlock()
		return &ast.While{StmtBase: ast.NewStmtBase(p.span(tok)), Cond: cond, Body: body}

	case tokens.FOR_TOKEN:
		return p.parseFor()

	case tokens.BREAK_TOKEN:
		p.advance()
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Break{StmtBase: ast.NewStmtBase(p.span(tok))}

	case tokens.CONTINUE_TOKEN:
		p.advance()
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Continue{StmtBase: ast.NewStmtBase(p.span(tok))}

	case tokens.PASS_TOKEN:
		p.advance()
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Pass{StmtBase: ast.NewStmtBase(p.span(tok))}

	case tokens.GLOBAL_TOKEN:
		p.advance()
		names := []string{p.expect(tokens.IDENTIFIER_TOKEN).Value}
		for p.match(tokens.COMMA_TOKEN) {
			names = append(names, p.expect(tokens.IDENTIFIER_TOKEN).Value)
		}
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Global{StmtBase: ast.NewStmtBase(p.span(tok)), Names: names}

	case tokens.DEFER_TOKEN:
		p.advance()
		stmt := p.parseStatement()
		return &ast.Defer{StmtBase: ast.NewStmtBase(p.span(tok)), Inner: stmt}

	case tokens.ASSERT_TOKEN:
		p.advance()
		cond := p.parseExpression()
		var msg ast.Expression
		if p.match(tokens.COMMA_TOKEN) {
			msg = p.parseExpression()
		}
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Assert{StmtBase: ast.NewStmtBase(p.span(tok)), Cond: cond, Msg: msg}

	case tokens.MATCH_TOKEN:
		return p.parseMatch()

	case tokens.TRY_TOKEN:
		return p.parseTry()

	case tokens.RAISE_TOKEN:
		p.advance()
		var exc ast.Expression
		if !p.check(tokens.NEWLINE_TOKEN) {
			exc = p.parseExpression()
		}
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Raise{StmtBase: ast.NewStmtBase(p.span(tok)), Exc: exc}

	case tokens.YIELD_TOKEN:
		p.advance()
		var value ast.Expression
		if !p.check(tokens.NEWLINE_TOKEN) {
			value = p.parseExpression()
		}
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Yield{StmtBase: ast.NewStmtBase(p.span(tok)), Value: value}

	case tokens.WITH_TOKEN:
		return p.parseWith()

	case tokens.ASM_TOKEN:
		p.advance()
		p.expect(tokens.OPEN_PAREN)
		code := p.expect(tokens.STRING_TOKEN).Value
		p.expect(tokens.CLOSE_PAREN)
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Asm{StmtBase: ast.NewStmtBase(p.span(tok)), Code: code}

	case tokens.IDENTIFIER_TOKEN:
		if stmt := p.parseIdentStatement(); stmt != nil {
			return stmt
		}
	}

	// Expression statement or assignment to a complex target.
	expr := p.parseExpression()

	if p.match(tokens.ASSIGN_TOKEN) {
		value := p.parseExpression()
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Assign{StmtBase: ast.NewStmtBase(p.span(tok)), Target: expr, Value: value}
	}
	if op, ok := compoundOps[p.current().Kind]; ok {
		p.advance()
		value := p.parseExpression()
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.AugAssign{StmtBase: ast.NewStmtBase(p.span(tok)), Target: expr, Op: op, Value: value}
	}

	p.expect(tokens.NEWLINE_TOKEN)
	return &ast.ExprStmt{StmtBase: ast.NewStmtBase(p.span(tok)), X: expr}
}

// parseIdentStatement handles statements that begin with a bare
// identifier: declarations, simple assignments, and tuple unpacking.
// It returns nil when the identifier actually begins an expression,
// leaving the parser position untouched.
func (p *Parser) parseIdentStatement() ast.Statement {
	tok := p.current()

	// a, b = value
	if p.peek(1).Kind == tokens.COMMA_TOKEN && p.peek(2).Kind == tokens.IDENTIFIER_TOKEN {
		save := p.pos
		targets := []string{p.advance().Value}
		for p.match(tokens.COMMA_TOKEN) {
			if !p.check(tokens.IDENTIFIER_TOKEN) {
				p.pos = save
				return nil
			}
			targets = append(targets, p.advance().Value)
		}
		if !p.match(tokens.ASSIGN_TOKEN) {
			p.pos = save
			return nil
		}
		first := p.parseExpression()
		value := first
		if p.match(tokens.COMMA_TOKEN) {
			elems := []ast.Expression{first, p.parseExpression()}
			for p.match(tokens.COMMA_TOKEN) {
				elems = append(elems, p.parseExpression())
			}
			value = &ast.TupleLit{ExprBase: ast.NewExprBase(p.span(tok)), Elems: elems}
		}
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.TupleUnpack{StmtBase: ast.NewStmtBase(p.span(tok)), Targets: targets, Value: value}
	}

	// name: type [= value]
	if p.peek(1).Kind == tokens.COLON_TOKEN {
		name := p.advance().Value
		p.advance() // :
		declType := p.parseType()
		var value ast.Expression
		if p.match(tokens.ASSIGN_TOKEN) {
			value = p.parseExpression()
		}
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.VarDecl{
			StmtBase: ast.NewStmtBase(p.span(tok)),
			Name:     name,
			DeclType: declType,
			Value:    value,
		}
	}

	// name = value
	if p.peek(1).Kind == tokens.ASSIGN_TOKEN {
		name := p.advance().Value
		p.advance() // =
		value := p.parseExpression()
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Assign{
			StmtBase: ast.NewStmtBase(p.span(tok)),
			Target:   ast.NewIdent(name, p.span(tok)),
			Value:    value,
		}
	}

	// name op= value
	if op, ok := compoundOps[p.peek(1).Kind]; ok {
		name := p.advance().Value
		p.advance()
		value := p.parseExpression()
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.AugAssign{
			StmtBase: ast.NewStmtBase(p.span(tok)),
			Target:   ast.NewIdent(name, p.span(tok)),
			Op:       op,
			Value:    value,
		}
	}

	return nil
}

func (p *Parser) parseIf() ast.Statement {
	tok := p.advance() // if
	cond := p.parseExpression()
	then := p.parseBlock()

	var elifs []ast.ElifArm
	var elseBody []ast.Statement

	for p.check(tokens.ELIF_TOKEN) {
		p.advance()
		elifCond := p.parseExpression()
		elifs = append(elifs, ast.ElifArm{Cond: elifCond, Body: p.parseBlock()})
	}
	if p.match(tokens.ELSE_TOKEN) {
		elseBody = p.parseBlock()
	}

	return &ast.If{
		StmtBase: ast.NewStmtBase(p.span(tok)),
		Cond:     cond,
		Then:     then,
		Elifs:    elifs,
		Else:     elseBody,
	}
}

func (p *Parser) parseFor() ast.Statement {
	tok := p.advance() // for
	vars := []string{p.expect(tokens.IDENTIFIER_TOKEN).Value}
	for p.match(tokens.COMMA_TOKEN) {
		vars = append(vars, p.expect(tokens.IDENTIFIER_TOKEN).Value)
	}
	p.expect(tokens.IN_TOKEN)
	iter := p.parseExpression()
	body := p.parseBlock()

	return &ast.For{StmtBase: ast.NewStmtBase(p.span(tok)), Vars: vars, Iter: iter, Body: body}
}

func (p *Parser) parseMatch() ast.Statement {
	tok := p.advance() // match
	scrutinee := p.parseExpression()
	p.expect(tokens.COLON_TOKEN)
	p.expect(tokens.NEWLINE_TOKEN)
	p.skipNewlines()
	p.expect(tokens.INDENT_TOKEN)

	var arms []ast.MatchArm
	for p.match(tokens.CASE_TOKEN) {
		pattern := p.parsePattern()
		body := p.parseBlock()
		arms = append(arms, ast.MatchArm{Pattern: pattern, Body: body})
		p.skipNewlines()
	}

	p.expect(tokens.DEDENT_TOKEN)
	return &ast.Match{StmtBase: ast.NewStmtBase(p.span(tok)), Scrutinee: scrutinee, Arms: arms}
}

// parsePattern parses a match pattern: a literal, the wildcard "_",
// or an identifier with optional bindings.
func (p *Parser) parsePattern() ast.Pattern {
	tok := p.current()

	switch tok.Kind {
	case tokens.INT_TOKEN, tokens.STRING_TOKEN, tokens.CHAR_TOKEN,
		tokens.TRUE_TOKEN, tokens.FALSE_TOKEN, tokens.NONE_TOKEN, tokens.MINUS_TOKEN:
		return ast.Pattern{Lit: p.parseExpression()}
	}

	name := p.expect(tokens.IDENTIFIER_TOKEN).Value
	if name == "_" {
		return ast.Pattern{Name: "_"}
	}

	var bindings []string
	if p.match(tokens.OPEN_PAREN) {
		if !p.check(tokens.CLOSE_PAREN) {
			bindings = append(bindings, p.expect(tokens.IDENTIFIER_TOKEN).Value)
			for p.match(tokens.COMMA_TOKEN) {
				bindings = append(bindings, p.expect(tokens.IDENTIFIER_TOKEN).Value)
			}
		}
		p.expect(tokens.CLOSE_PAREN)
	}
	return ast.Pattern{Name: name, Bindings: bindings}
}

func (p *Parser) parseTry() ast.Statement {
	tok := p.advance() // try
	body := p.parseBlock()

	var handlers []ast.ExceptHandler
	var elseBody, finally []ast.Statement

	for p.check(tokens.EXCEPT_TOKEN) {
		p.advance()
		var typeName, name string
		if !p.check(tokens.COLON_TOKEN) {
			typeName = p.expect(tokens.IDENTIFIER_TOKEN).Value
			if p.match(tokens.AS_TOKEN) {
				name = p.expect(tokens.IDENTIFIER_TOKEN).Value
			}
		}
		handlers = append(handlers, ast.ExceptHandler{
			TypeName: typeName,
			Name:     name,
			Body:     p.parseBlock(),
		})
	}

	if p.match(tokens.ELSE_TOKEN) {
		elseBody = p.parseBlock()
	}
	if p.match(tokens.FINALLY_TOKEN) {
		finally = p.parseBlock()
	}

	return &ast.Try{
		StmtBase: ast.NewStmtBase(p.span(tok)),
		Body:     body,
		Handlers: handlers,
		Else:     elseBody,
		Finally:  finally,
	}
}

func (p *Parser) parseWith() ast.Statement {
	tok := p.advance() // with

	var items []ast.WithItem
	for {
		ctx := p.parseExpression()
		var as string
		if p.match(tokens.AS_TOKEN) {
			as = p.expect(tokens.IDENTIFIER_TOKEN).Value
		}
		items = append(items, ast.WithItem{Ctx: ctx, As: as})
		if !p.match(tokens.COMMA_TOKEN) {
			break
		}
	}

	body := p.parseBlock()
	return &ast.With{StmtBase: ast.NewStmtBase(p.span(tok)), Items: items, Body: body}
}
