package parser

import (
	"pynux/internal/diagnostics"
	"pynux/internal/frontend/ast"
	"pynux/internal/source"
	"pynux/internal/tokens"
)

// Parser holds temporary state during parsing of a single file. It is
// created per translation unit and dropped afterwards.
type Parser struct {
	tokens []tokens.Token
	pos    int
	file   string
}

// Parse builds the AST for one token stream. It fails with the first
// parse error; there is no recovery.
func Parse(toks []tokens.Token, file string) (prog *ast.Program, err error) {
	p := &Parser{tokens: toks, file: file}

	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(*diagnostics.Diagnostic); ok {
				prog, err = nil, d
				return
			}
			panic(r)
		}
	}()

	prog = p.parseProgram()
	return prog, nil
}

func (p *Parser) fail(tok tokens.Token, format string, args ...any) {
	panic(diagnostics.Errorf(diagnostics.Parse, p.file, tok.Start, format, args...))
}

func (p *Parser) current() tokens.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(offset int) tokens.Token {
	pos := p.pos + offset
	if pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	if pos < 0 {
		return p.tokens[0]
	}
	return p.tokens[pos]
}

func (p *Parser) advance() tokens.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kinds ...tokens.TOKEN) bool {
	cur := p.current().Kind
	for _, k := range kinds {
		if cur == k {
			return true
		}
	}
	return false
}

func (p *Parser) match(kinds ...tokens.TOKEN) bool {
	if p.check(kinds...) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind tokens.TOKEN) tokens.Token {
	if !p.check(kind) {
		p.fail(p.current(), "expected %s, found %s", kind, p.current().Kind)
	}
	return p.advance()
}

func (p *Parser) skipNewlines() {
	for p.check(tokens.NEWLINE_TOKEN) {
		p.advance()
	}
}

// span builds a source span from a start token to the previous token.
func (p *Parser) span(start tokens.Token) source.Span {
	end := start
	if p.pos > 0 {
		end = p.tokens[p.pos-1]
	}
	return source.NewSpan(start.Start, end.End)
}

// parseBlock parses ": NEWLINE INDENT stmts DEDENT".
func (p *Parser) parseBlock() []ast.Statement {
	p.expect(tokens.COLON_TOKEN)
	p.expect(tokens.NEWLINE_TOKEN)
	p.skipNewlines()
	p.expect(tokens.INDENT_TOKEN)

	var stmts []ast.Statement
	for !p.check(tokens.DEDENT_TOKEN, tokens.EOF_TOKEN) {
		p.skipNewlines()
		if p.check(tokens.DEDENT_TOKEN, tokens.EOF_TOKEN) {
			break
		}
		stmts = append(stmts, p.parseStatement())
	}

	p.expect(tokens.DEDENT_TOKEN)
	return stmts
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}

	p.skipNewlines()

	for !p.check(tokens.EOF_TOKEN) {
		var decorators []string
		for p.match(tokens.AT_TOKEN) {
			decorators = append(decorators, p.expect(tokens.IDENTIFIER_TOKEN).Value)
			p.expect(tokens.NEWLINE_TOKEN)
			p.skipNewlines()
		}

		switch {
		case p.check(tokens.FROM_TOKEN, tokens.IMPORT_TOKEN):
			prog.Imports = append(prog.Imports, p.parseImport())

		case p.check(tokens.EXTERN_TOKEN):
			prog.Decls = append(prog.Decls, p.parseExtern())

		case p.check(tokens.DEF_TOKEN):
			prog.Decls = append(prog.Decls, p.parseFunction(decorators))

		case p.check(tokens.CLASS_TOKEN):
			prog.Decls = append(prog.Decls, p.parseClass(decorators))

		case p.check(tokens.STRUCT_TOKEN):
			prog.Decls = append(prog.Decls, p.parseStruct(decorators))

		case p.check(tokens.UNION_TOKEN):
			prog.Decls = append(prog.Decls, p.parseUnion())

		case p.check(tokens.IDENTIFIER_TOKEN) && p.peek(1).Kind == tokens.COLON_TOKEN:
			prog.Decls = append(prog.Decls, p.parseGlobalVar())

		default:
			p.fail(p.current(), "unexpected %s at top level", p.current().Kind)
		}
		p.skipNewlines()
	}

	return prog
}

// parseGlobalVar parses a module-level "name: type [= value]".
func (p *Parser) parseGlobalVar() *ast.GlobalVar {
	start := p.current()
	name := p.expect(tokens.IDENTIFIER_TOKEN).Value
	p.expect(tokens.COLON_TOKEN)
	declType := p.parseType()

	var value ast.Expression
	if p.match(tokens.ASSIGN_TOKEN) {
		value = p.parseExpression()
	}
	p.expect(tokens.NEWLINE_TOKEN)

	return &ast.GlobalVar{
		DeclBase: ast.NewDeclBase(p.span(start)),
		Name:     name,
		DeclType: declType,
		Value:    value,
	}
}
