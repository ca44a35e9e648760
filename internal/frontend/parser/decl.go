package parser

import (
	"strings"

	"pynux/internal/frontend/ast"
	"pynux/internal/tokens"
	"pynux/internal/types"
)

// parseParameter parses "name[: type][= default]".
func (p *Parser) parseParameter() ast.Param {
	name := p.expect(tokens.IDENTIFIER_TOKEN).Value
	param := ast.Param{Name: name}

	if p.match(tokens.COLON_TOKEN) {
		param.Type = p.parseType()
	}
	if p.match(tokens.ASSIGN_TOKEN) {
		param.Default = p.parseExpression()
	}
	return param
}

// parseFunction parses a def block. A leading self parameter is
// stripped here; the checker re-adds it as Ptr[Class] for methods.
func (p *Parser) parseFunction(decorators []string) *ast.FunctionDef {
	tok := p.current()
	p.expect(tokens.DEF_TOKEN)
	name := p.expect(tokens.IDENTIFIER_TOKEN).Value

	p.expect(tokens.OPEN_PAREN)
	var params []ast.Param
	if !p.check(tokens.CLOSE_PAREN) {
		if p.check(tokens.SELF_TOKEN) {
			p.advance()
			p.match(tokens.COMMA_TOKEN)
		}
		if !p.check(tokens.CLOSE_PAREN) {
			params = append(params, p.parseParameter())
			for p.match(tokens.COMMA_TOKEN) {
				params = append(params, p.parseParameter())
			}
		}
	}
	p.expect(tokens.CLOSE_PAREN)

	var retType = p.optReturnType()
	body := p.parseBlock()

	return &ast.FunctionDef{
		DeclBase:   ast.NewDeclBase(p.span(tok)),
		Name:       name,
		Params:     params,
		RetType:    retType,
		Body:       body,
		Decorators: decorators,
	}
}

func (p *Parser) optReturnType() types.Type {
	if p.match(tokens.ARROW_TOKEN) {
		return p.parseType()
	}
	return nil
}

func (p *Parser) parseClass(decorators []string) *ast.ClassDef {
	tok := p.current()
	p.expect(tokens.CLASS_TOKEN)
	name := p.expect(tokens.IDENTIFIER_TOKEN).Value

	var bases []string
	if p.match(tokens.OPEN_PAREN) {
		if !p.check(tokens.CLOSE_PAREN) {
			bases = append(bases, p.expect(tokens.IDENTIFIER_TOKEN).Value)
			for p.match(tokens.COMMA_TOKEN) {
				bases = append(bases, p.expect(tokens.IDENTIFIER_TOKEN).Value)
			}
		}
		p.expect(tokens.CLOSE_PAREN)
	}

	p.expect(tokens.COLON_TOKEN)
	p.expect(tokens.NEWLINE_TOKEN)
	p.skipNewlines()
	p.expect(tokens.INDENT_TOKEN)

	var fields []ast.FieldDef
	var methods []*ast.FunctionDef

	for !p.check(tokens.DEDENT_TOKEN, tokens.EOF_TOKEN) {
		p.skipNewlines()
		if p.check(tokens.DEDENT_TOKEN, tokens.EOF_TOKEN) {
			break
		}

		if p.match(tokens.PASS_TOKEN) {
			p.expect(tokens.NEWLINE_TOKEN)
			continue
		}

		var methodDecorators []string
		for p.match(tokens.AT_TOKEN) {
			methodDecorators = append(methodDecorators, p.expect(tokens.IDENTIFIER_TOKEN).Value)
			p.expect(tokens.NEWLINE_TOKEN)
			p.skipNewlines()
		}

		if p.check(tokens.DEF_TOKEN) {
			methods = append(methods, p.parseFunction(methodDecorators))
			continue
		}
		if len(methodDecorators) > 0 {
			p.fail(p.current(), "expected method after decorator")
		}

		if p.check(tokens.IDENTIFIER_TOKEN) {
			fieldName := p.advance().Value
			p.expect(tokens.COLON_TOKEN)
			fieldType := p.parseType()
			var def ast.Expression
			if p.match(tokens.ASSIGN_TOKEN) {
				def = p.parseExpression()
			}
			p.expect(tokens.NEWLINE_TOKEN)
			fields = append(fields, ast.FieldDef{Name: fieldName, Type: fieldType, Default: def})
			continue
		}

		p.fail(p.current(), "expected field or method in class, found %s", p.current().Kind)
	}

	p.expect(tokens.DEDENT_TOKEN)
	return &ast.ClassDef{
		DeclBase:   ast.NewDeclBase(p.span(tok)),
		Name:       name,
		Bases:      bases,
		Fields:     fields,
		Methods:    methods,
		Decorators: decorators,
	}
}

// parseStruct parses a struct block: fields only, no methods.
func (p *Parser) parseStruct(decorators []string) *ast.StructDef {
	tok := p.current()
	p.expect(tokens.STRUCT_TOKEN)
	name := p.expect(tokens.IDENTIFIER_TOKEN).Value

	packed := false
	for _, d := range decorators {
		if d == "packed" {
			packed = true
		}
	}

	return &ast.StructDef{
		DeclBase: ast.NewDeclBase(p.span(tok)),
		Name:     name,
		Fields:   p.parseFieldBlock(),
		Packed:   packed,
	}
}

func (p *Parser) parseUnion() *ast.UnionDef {
	tok := p.current()
	p.expect(tokens.UNION_TOKEN)
	name := p.expect(tokens.IDENTIFIER_TOKEN).Value

	return &ast.UnionDef{
		DeclBase: ast.NewDeclBase(p.span(tok)),
		Name:     name,
		Fields:   p.parseFieldBlock(),
	}
}

func (p *Parser) parseFieldBlock() []ast.FieldDef {
	p.expect(tokens.COLON_TOKEN)
	p.expect(tokens.NEWLINE_TOKEN)
	p.skipNewlines()
	p.expect(tokens.INDENT_TOKEN)

	var fields []ast.FieldDef
	for !p.check(tokens.DEDENT_TOKEN, tokens.EOF_TOKEN) {
		p.skipNewlines()
		if p.check(tokens.DEDENT_TOKEN, tokens.EOF_TOKEN) {
			break
		}
		if p.match(tokens.PASS_TOKEN) {
			p.expect(tokens.NEWLINE_TOKEN)
			continue
		}

		fieldName := p.expect(tokens.IDENTIFIER_TOKEN).Value
		p.expect(tokens.COLON_TOKEN)
		fieldType := p.parseType()
		p.expect(tokens.NEWLINE_TOKEN)
		fields = append(fields, ast.FieldDef{Name: fieldName, Type: fieldType})
	}

	p.expect(tokens.DEDENT_TOKEN)
	return fields
}

func (p *Parser) parseExtern() *ast.ExternDef {
	tok := p.current()
	p.expect(tokens.EXTERN_TOKEN)
	p.expect(tokens.DEF_TOKEN)
	name := p.expect(tokens.IDENTIFIER_TOKEN).Value

	p.expect(tokens.OPEN_PAREN)
	var params []ast.Param
	if !p.check(tokens.CLOSE_PAREN) {
		params = append(params, p.parseParameter())
		for p.match(tokens.COMMA_TOKEN) {
			params = append(params, p.parseParameter())
		}
	}
	p.expect(tokens.CLOSE_PAREN)

	retType := p.optReturnType()
	p.expect(tokens.NEWLINE_TOKEN)

	return &ast.ExternDef{
		DeclBase: ast.NewDeclBase(p.span(tok)),
		Name:     name,
		Params:   params,
		RetType:  retType,
	}
}

func (p *Parser) parseImport() *ast.Import {
	tok := p.current()

	// from module import names | *
	if p.match(tokens.FROM_TOKEN) {
		parts := []string{p.expect(tokens.IDENTIFIER_TOKEN).Value}
		for p.match(tokens.DOT_TOKEN) {
			parts = append(parts, p.expect(tokens.IDENTIFIER_TOKEN).Value)
		}
		module := strings.Join(parts, ".")

		p.expect(tokens.IMPORT_TOKEN)

		if p.match(tokens.STAR_TOKEN) {
			p.expect(tokens.NEWLINE_TOKEN)
			return &ast.Import{DeclBase: ast.NewDeclBase(p.span(tok)), Module: module, Star: true}
		}

		names := []string{p.expect(tokens.IDENTIFIER_TOKEN).Value}
		for p.match(tokens.COMMA_TOKEN) {
			names = append(names, p.expect(tokens.IDENTIFIER_TOKEN).Value)
		}
		p.expect(tokens.NEWLINE_TOKEN)
		return &ast.Import{DeclBase: ast.NewDeclBase(p.span(tok)), Module: module, Names: names}
	}

	// import module [as alias]
	p.expect(tokens.IMPORT_TOKEN)
	parts := []string{p.expect(tokens.IDENTIFIER_TOKEN).Value}
	for p.match(tokens.DOT_TOKEN) {
		parts = append(parts, p.expect(tokens.IDENTIFIER_TOKEN).Value)
	}
	module := strings.Join(parts, ".")

	var alias string
	if p.match(tokens.AS_TOKEN) {
		alias = p.expect(tokens.IDENTIFIER_TOKEN).Value
	}
	p.expect(tokens.NEWLINE_TOKEN)

	return &ast.Import{DeclBase: ast.NewDeclBase(p.span(tok)), Module: module, Alias: alias}
}
