package parser

import (
	"pynux/internal/frontend/ast"
	"pynux/internal/frontend/lexer"
	"pynux/internal/tokens"
	"pynux/internal/types"
)

// parseExpression parses a full expression (lowest precedence:
// conditional).
func (p *Parser) parseExpression() ast.Expression {
	return p.parseConditional()
}

// parseConditional parses "x if cond else y".
func (p *Parser) parseConditional() ast.Expression {
	start := p.current()
	expr := p.parseOr()

	if p.match(tokens.IF_TOKEN) {
		cond := p.parseOr()
		p.expect(tokens.ELSE_TOKEN)
		elseExpr := p.parseConditional()
		return &ast.Ternary{
			ExprBase: ast.NewExprBase(p.span(start)),
			Cond:     cond,
			Then:     expr,
			Else:     elseExpr,
		}
	}
	return expr
}

func (p *Parser) parseOr() ast.Expression {
	start := p.current()
	left := p.parseAnd()
	for p.match(tokens.OR_TOKEN) {
		right := p.parseAnd()
		left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.OR, X: left, Y: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expression {
	start := p.current()
	left := p.parseNot()
	for p.match(tokens.AND_TOKEN) {
		right := p.parseNot()
		left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.AND, X: left, Y: right}
	}
	return left
}

func (p *Parser) parseNot() ast.Expression {
	start := p.current()
	if p.match(tokens.NOT_TOKEN) {
		return &ast.UnaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.NOT, X: p.parseNot()}
	}
	return p.parseComparison()
}

var comparisonOps = map[tokens.TOKEN]ast.BinOp{
	tokens.EQUALS_TOKEN:         ast.EQ,
	tokens.NOT_EQUALS_TOKEN:     ast.NEQ,
	tokens.LESS_TOKEN:           ast.LT,
	tokens.LESS_EQUALS_TOKEN:    ast.LTE,
	tokens.GREATER_TOKEN:        ast.GT,
	tokens.GREATER_EQUALS_TOKEN: ast.GTE,
}

func (p *Parser) parseComparison() ast.Expression {
	start := p.current()
	left := p.parseBitOr()

	for {
		if op, ok := comparisonOps[p.current().Kind]; ok {
			p.advance()
			right := p.parseBitOr()
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: op, X: left, Y: right}
			continue
		}
		if p.match(tokens.IN_TOKEN) {
			right := p.parseBitOr()
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.IN, X: left, Y: right}
			continue
		}
		if p.check(tokens.NOT_TOKEN) && p.peek(1).Kind == tokens.IN_TOKEN {
			p.advance()
			p.advance()
			right := p.parseBitOr()
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.NOTIN, X: left, Y: right}
			continue
		}
		if p.match(tokens.IS_TOKEN) {
			op := ast.IS
			if p.match(tokens.NOT_TOKEN) {
				op = ast.ISNOT
			}
			right := p.parseBitOr()
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: op, X: left, Y: right}
			continue
		}
		break
	}
	return left
}

func (p *Parser) parseBitOr() ast.Expression {
	start := p.current()
	left := p.parseBitXor()
	for p.match(tokens.PIPE_TOKEN) {
		right := p.parseBitXor()
		left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.BITOR, X: left, Y: right}
	}
	return left
}

func (p *Parser) parseBitXor() ast.Expression {
	start := p.current()
	left := p.parseBitAnd()
	for p.match(tokens.CARET_TOKEN) {
		right := p.parseBitAnd()
		left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.BITXOR, X: left, Y: right}
	}
	return left
}

func (p *Parser) parseBitAnd() ast.Expression {
	start := p.current()
	left := p.parseShift()
	for p.check(tokens.AMPERSAND_TOKEN) {
		p.advance()
		right := p.parseShift()
		left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.BITAND, X: left, Y: right}
	}
	return left
}

func (p *Parser) parseShift() ast.Expression {
	start := p.current()
	left := p.parseAdditive()
	for {
		if p.match(tokens.SHL_TOKEN) {
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.SHL, X: left, Y: p.parseAdditive()}
		} else if p.match(tokens.SHR_TOKEN) {
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.SHR, X: left, Y: p.parseAdditive()}
		} else {
			break
		}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	start := p.current()
	left := p.parseMultiplicative()
	for {
		if p.match(tokens.PLUS_TOKEN) {
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.ADD, X: left, Y: p.parseMultiplicative()}
		} else if p.match(tokens.MINUS_TOKEN) {
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.SUB, X: left, Y: p.parseMultiplicative()}
		} else {
			break
		}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	start := p.current()
	left := p.parseUnary()
	for {
		switch {
		case p.match(tokens.STAR_TOKEN):
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.MUL, X: left, Y: p.parseUnary()}
		case p.match(tokens.SLASH_TOKEN):
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.DIV, X: left, Y: p.parseUnary()}
		case p.match(tokens.DOUBLE_SLASH_TOKEN):
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.IDIV, X: left, Y: p.parseUnary()}
		case p.match(tokens.PERCENT_TOKEN):
			left = &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.MOD, X: left, Y: p.parseUnary()}
		default:
			return left
		}
	}
}

// parseUnary parses -x, ~x, &x, *x.
func (p *Parser) parseUnary() ast.Expression {
	start := p.current()
	switch {
	case p.match(tokens.MINUS_TOKEN):
		return &ast.UnaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.NEG, X: p.parseUnary()}
	case p.match(tokens.TILDE_TOKEN):
		return &ast.UnaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.BITNOT, X: p.parseUnary()}
	case p.match(tokens.AMPERSAND_TOKEN):
		return &ast.AddressOf{ExprBase: ast.NewExprBase(p.span(start)), X: p.parseUnary()}
	case p.match(tokens.STAR_TOKEN):
		return &ast.Deref{ExprBase: ast.NewExprBase(p.span(start)), X: p.parseUnary()}
	}
	return p.parsePower()
}

// parsePower parses a ** b, right associative.
func (p *Parser) parsePower() ast.Expression {
	start := p.current()
	left := p.parsePostfix()
	if p.match(tokens.DOUBLE_STAR_TOKEN) {
		return &ast.BinaryExpr{ExprBase: ast.NewExprBase(p.span(start)), Op: ast.POW, X: left, Y: p.parsePower()}
	}
	return left
}

// parsePostfix parses calls, indexing, slicing, member access, and
// struct literals.
func (p *Parser) parsePostfix() ast.Expression {
	start := p.current()
	expr := p.parsePrimary()

	for {
		switch {
		case p.match(tokens.OPEN_PAREN):
			args, kwargs := p.parseCallArgs()
			expr = &ast.CallExpr{
				ExprBase: ast.NewExprBase(p.span(start)),
				Fn:       expr,
				Args:     args,
				Kwargs:   kwargs,
			}

		case p.match(tokens.OPEN_BRACKET):
			expr = p.parseIndexOrSlice(expr, start)

		case p.match(tokens.DOT_TOKEN):
			name := p.expect(tokens.IDENTIFIER_TOKEN).Value
			if p.match(tokens.OPEN_PAREN) {
				var args []ast.Expression
				if !p.check(tokens.CLOSE_PAREN) {
					args = append(args, p.parseExpression())
					for p.match(tokens.COMMA_TOKEN) {
						args = append(args, p.parseExpression())
					}
				}
				p.expect(tokens.CLOSE_PAREN)
				expr = &ast.MethodCall{
					ExprBase: ast.NewExprBase(p.span(start)),
					Recv:     expr,
					Name:     name,
					Args:     args,
				}
			} else {
				expr = &ast.Attr{
					ExprBase: ast.NewExprBase(p.span(start)),
					X:        expr,
					Name:     name,
				}
			}

		case p.check(tokens.OPEN_CURLY) && p.isStructLitStart(expr):
			expr = p.parseStructLit(expr.(*ast.Ident), start)

		default:
			return expr
		}
	}
}

// isStructLitStart reports whether a '{' after an identifier begins a
// struct literal: T{} or T{field=expr, ...}.
func (p *Parser) isStructLitStart(expr ast.Expression) bool {
	if _, ok := expr.(*ast.Ident); !ok {
		return false
	}
	if p.peek(1).Kind == tokens.CLOSE_CURLY {
		return true
	}
	return p.peek(1).Kind == tokens.IDENTIFIER_TOKEN && p.peek(2).Kind == tokens.ASSIGN_TOKEN
}

func (p *Parser) parseStructLit(name *ast.Ident, start tokens.Token) ast.Expression {
	p.expect(tokens.OPEN_CURLY)
	var fields []ast.Kwarg
	for !p.check(tokens.CLOSE_CURLY) {
		fieldName := p.expect(tokens.IDENTIFIER_TOKEN).Value
		p.expect(tokens.ASSIGN_TOKEN)
		fields = append(fields, ast.Kwarg{Name: fieldName, Value: p.parseExpression()})
		if !p.match(tokens.COMMA_TOKEN) {
			break
		}
	}
	p.expect(tokens.CLOSE_CURLY)
	return &ast.StructLit{
		ExprBase: ast.NewExprBase(p.span(start)),
		TypeName: name.Name,
		Fields:   fields,
	}
}

func (p *Parser) parseCallArgs() ([]ast.Expression, []ast.Kwarg) {
	var args []ast.Expression
	var kwargs []ast.Kwarg

	parseOne := func() {
		arg := p.parseExpression()
		if ident, ok := arg.(*ast.Ident); ok && p.check(tokens.ASSIGN_TOKEN) {
			p.advance()
			kwargs = append(kwargs, ast.Kwarg{Name: ident.Name, Value: p.parseExpression()})
			return
		}
		args = append(args, arg)
	}

	if !p.check(tokens.CLOSE_PAREN) {
		parseOne()
		for p.match(tokens.COMMA_TOKEN) {
			if p.check(tokens.CLOSE_PAREN) {
				break
			}
			parseOne()
		}
	}
	p.expect(tokens.CLOSE_PAREN)
	return args, kwargs
}

func (p *Parser) parseIndexOrSlice(base ast.Expression, start tokens.Token) ast.Expression {
	// [:...] forms
	if p.match(tokens.COLON_TOKEN) {
		var high, step ast.Expression
		if !p.check(tokens.CLOSE_BRACKET, tokens.COLON_TOKEN) {
			high = p.parseExpression()
		}
		if p.match(tokens.COLON_TOKEN) {
			if !p.check(tokens.CLOSE_BRACKET) {
				step = p.parseExpression()
			}
		}
		p.expect(tokens.CLOSE_BRACKET)
		return &ast.Slice{ExprBase: ast.NewExprBase(p.span(start)), X: base, High: high, Step: step}
	}

	low := p.parseExpression()
	if p.match(tokens.COLON_TOKEN) {
		var high, step ast.Expression
		if !p.check(tokens.CLOSE_BRACKET, tokens.COLON_TOKEN) {
			high = p.parseExpression()
		}
		if p.match(tokens.COLON_TOKEN) {
			if !p.check(tokens.CLOSE_BRACKET) {
				step = p.parseExpression()
			}
		}
		p.expect(tokens.CLOSE_BRACKET)
		return &ast.Slice{ExprBase: ast.NewExprBase(p.span(start)), X: base, Low: low, High: high, Step: step}
	}

	p.expect(tokens.CLOSE_BRACKET)
	return &ast.Index{ExprBase: ast.NewExprBase(p.span(start)), X: base, Idx: low}
}

// parsePrimary parses literals, identifiers, casts, grouping, and
// collection displays.
func (p *Parser) parsePrimary() ast.Expression {
	tok := p.current()

	switch tok.Kind {
	case tokens.INT_TOKEN:
		p.advance()
		return &ast.IntLit{ExprBase: ast.NewExprBase(p.span(tok)), Value: tok.Int}

	case tokens.FLOAT_TOKEN:
		p.advance()
		return &ast.FloatLit{ExprBase: ast.NewExprBase(p.span(tok)), Value: tok.Float}

	case tokens.STRING_TOKEN:
		p.advance()
		return &ast.StrLit{ExprBase: ast.NewExprBase(p.span(tok)), Value: tok.Value}

	case tokens.FSTRING_TOKEN:
		p.advance()
		return p.parseFString(tok)

	case tokens.CHAR_TOKEN:
		p.advance()
		return &ast.CharLit{ExprBase: ast.NewExprBase(p.span(tok)), Value: tok.Value[0]}

	case tokens.TRUE_TOKEN:
		p.advance()
		return &ast.BoolLit{ExprBase: ast.NewExprBase(p.span(tok)), Value: true}

	case tokens.FALSE_TOKEN:
		p.advance()
		return &ast.BoolLit{ExprBase: ast.NewExprBase(p.span(tok)), Value: false}

	case tokens.NONE_TOKEN:
		p.advance()
		return &ast.NoneLit{ExprBase: ast.NewExprBase(p.span(tok))}

	case tokens.SELF_TOKEN:
		p.advance()
		return ast.NewIdent("self", p.span(tok))

	case tokens.CAST_TOKEN:
		p.advance()
		p.expect(tokens.OPEN_BRACKET)
		to := p.parseType()
		p.expect(tokens.CLOSE_BRACKET)
		p.expect(tokens.OPEN_PAREN)
		inner := p.parseExpression()
		p.expect(tokens.CLOSE_PAREN)
		return &ast.Cast{ExprBase: ast.NewExprBase(p.span(tok)), To: to, X: inner}

	case tokens.ASM_TOKEN:
		p.advance()
		p.expect(tokens.OPEN_PAREN)
		code := p.expect(tokens.STRING_TOKEN).Value
		p.expect(tokens.CLOSE_PAREN)
		return &ast.AsmExpr{ExprBase: ast.NewExprBase(p.span(tok)), Code: code}

	case tokens.LAMBDA_TOKEN:
		p.advance()
		var params []string
		if !p.check(tokens.COLON_TOKEN) {
			params = append(params, p.expect(tokens.IDENTIFIER_TOKEN).Value)
			for p.match(tokens.COMMA_TOKEN) {
				params = append(params, p.expect(tokens.IDENTIFIER_TOKEN).Value)
			}
		}
		p.expect(tokens.COLON_TOKEN)
		body := p.parseExpression()
		return &ast.Lambda{ExprBase: ast.NewExprBase(p.span(tok)), Params: params, Body: body}

	case tokens.IDENTIFIER_TOKEN:
		return p.parseIdentPrimary()

	case tokens.OPEN_BRACKET:
		return p.parseListDisplay()

	case tokens.OPEN_CURLY:
		return p.parseDictDisplay()

	case tokens.OPEN_PAREN:
		return p.parseParenDisplay()
	}

	p.fail(tok, "unexpected %s in expression", tok.Kind)
	return nil
}

// parseIdentPrimary handles identifiers and the forms that begin with
// one: sizeof(T), T(x) casts, Ptr[T](x).
func (p *Parser) parseIdentPrimary() ast.Expression {
	tok := p.advance()
	name := tok.Value

	switch {
	case name == "sizeof" && p.check(tokens.OPEN_PAREN):
		p.advance()
		of := p.parseType()
		p.expect(tokens.CLOSE_PAREN)
		return &ast.Sizeof{ExprBase: ast.NewExprBase(p.span(tok)), Of: of}

	case name == "Ptr" && p.check(tokens.OPEN_BRACKET):
		p.advance()
		inner := p.parseType()
		p.expect(tokens.CLOSE_BRACKET)
		p.expect(tokens.OPEN_PAREN)
		value := p.parseExpression()
		p.expect(tokens.CLOSE_PAREN)
		return &ast.Cast{
			ExprBase: ast.NewExprBase(p.span(tok)),
			To:       types.NewPointer(inner),
			X:        value,
		}

	case castTargets[name] && p.check(tokens.OPEN_PAREN):
		p.advance()
		inner := p.parseExpression()
		p.expect(tokens.CLOSE_PAREN)
		prim, _ := types.PrimitiveByName(name)
		return &ast.Cast{ExprBase: ast.NewExprBase(p.span(tok)), To: prim, X: inner}
	}

	return ast.NewIdent(name, p.span(tok))
}

func (p *Parser) parseListDisplay() ast.Expression {
	start := p.advance() // [

	if p.match(tokens.CLOSE_BRACKET) {
		return &ast.ListLit{ExprBase: ast.NewExprBase(p.span(start))}
	}

	first := p.parseExpression()

	// List comprehension: [expr for var in iterable if condition].
	// parseOr keeps the 'if' from being eaten as a ternary.
	if p.match(tokens.FOR_TOKEN) {
		varName := p.expect(tokens.IDENTIFIER_TOKEN).Value
		p.expect(tokens.IN_TOKEN)
		iter := p.parseOr()
		var cond ast.Expression
		if p.match(tokens.IF_TOKEN) {
			cond = p.parseOr()
		}
		p.expect(tokens.CLOSE_BRACKET)
		return &ast.Comp{
			ExprBase: ast.NewExprBase(p.span(start)),
			Elem:     first,
			Var:      varName,
			Iter:     iter,
			Cond:     cond,
		}
	}

	elems := []ast.Expression{first}
	for p.match(tokens.COMMA_TOKEN) {
		if p.check(tokens.CLOSE_BRACKET) {
			break
		}
		elems = append(elems, p.parseExpression())
	}
	p.expect(tokens.CLOSE_BRACKET)
	return &ast.ListLit{ExprBase: ast.NewExprBase(p.span(start)), Elems: elems}
}

func (p *Parser) parseDictDisplay() ast.Expression {
	start := p.advance() // {

	if p.match(tokens.CLOSE_CURLY) {
		return &ast.DictLit{ExprBase: ast.NewExprBase(p.span(start))}
	}

	first := p.parseExpression()
	if p.match(tokens.COLON_TOKEN) {
		keys := []ast.Expression{first}
		vals := []ast.Expression{p.parseExpression()}
		for p.match(tokens.COMMA_TOKEN) {
			if p.check(tokens.CLOSE_CURLY) {
				break
			}
			keys = append(keys, p.parseExpression())
			p.expect(tokens.COLON_TOKEN)
			vals = append(vals, p.parseExpression())
		}
		p.expect(tokens.CLOSE_CURLY)
		return &ast.DictLit{ExprBase: ast.NewExprBase(p.span(start)), Keys: keys, Vals: vals}
	}

	// Set display is accepted and treated as a list.
	elems := []ast.Expression{first}
	for p.match(tokens.COMMA_TOKEN) {
		if p.check(tokens.CLOSE_CURLY) {
			break
		}
		elems = append(elems, p.parseExpression())
	}
	p.expect(tokens.CLOSE_CURLY)
	return &ast.ListLit{ExprBase: ast.NewExprBase(p.span(start)), Elems: elems}
}

func (p *Parser) parseParenDisplay() ast.Expression {
	start := p.advance() // (

	if p.match(tokens.CLOSE_PAREN) {
		return &ast.TupleLit{ExprBase: ast.NewExprBase(p.span(start))}
	}

	first := p.parseExpression()
	if p.match(tokens.COMMA_TOKEN) {
		elems := []ast.Expression{first}
		if !p.check(tokens.CLOSE_PAREN) {
			elems = append(elems, p.parseExpression())
			for p.match(tokens.COMMA_TOKEN) {
				if p.check(tokens.CLOSE_PAREN) {
					break
				}
				elems = append(elems, p.parseExpression())
			}
		}
		p.expect(tokens.CLOSE_PAREN)
		return &ast.TupleLit{ExprBase: ast.NewExprBase(p.span(start)), Elems: elems}
	}
	p.expect(tokens.CLOSE_PAREN)
	return first
}

// parseFString splits an f-string body into literal and expression
// parts. Each {...} region is re-fed to the expression parser.
func (p *Parser) parseFString(tok tokens.Token) ast.Expression {
	body := tok.Value
	var parts []ast.FStringPart
	var lit []byte

	flush := func() {
		if len(lit) > 0 {
			parts = append(parts, ast.FStringPart{Text: string(lit)})
			lit = nil
		}
	}

	for i := 0; i < len(body); {
		switch {
		case body[i] == '{' && i+1 < len(body) && body[i+1] == '{':
			lit = append(lit, '{')
			i += 2
		case body[i] == '}' && i+1 < len(body) && body[i+1] == '}':
			lit = append(lit, '}')
			i += 2
		case body[i] == '{':
			j := i + 1
			for j < len(body) && body[j] != '}' {
				j++
			}
			if j >= len(body) {
				p.fail(tok, "unterminated '{' in f-string")
			}
			flush()
			parts = append(parts, ast.FStringPart{Expr: p.parseFragment(tok, body[i+1:j])})
			i = j + 1
		default:
			lit = append(lit, body[i])
			i++
		}
	}
	flush()

	return &ast.FString{ExprBase: ast.NewExprBase(p.span(tok)), Parts: parts, Raw: body}
}

// parseFragment parses one interpolated expression from an f-string.
func (p *Parser) parseFragment(tok tokens.Token, text string) ast.Expression {
	toks, err := lexer.New(p.file, text).Tokenize()
	if err != nil {
		p.fail(tok, "invalid f-string expression %q", text)
	}
	sub := &Parser{tokens: toks, file: p.file}
	expr := sub.parseExpression()
	if !sub.check(tokens.NEWLINE_TOKEN, tokens.EOF_TOKEN) {
		p.fail(tok, "invalid f-string expression %q", text)
	}
	return expr
}
