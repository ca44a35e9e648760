package parser

import (
	"pynux/internal/tokens"
	"pynux/internal/types"
)

// parseType parses a type annotation: after ':' on declarations and
// after '->' on functions. Type names are ordinary identifiers; the
// checker resolves named types to their definitions.
func (p *Parser) parseType() types.Type {
	if p.match(tokens.VOLATILE_TOKEN) {
		inner := p.parseType()
		if ptr, ok := inner.(*types.Pointer); ok {
			return &types.Pointer{Elem: ptr.Elem, Volatile: true}
		}
		// volatile on a non-pointer has no layout effect; the type
		// itself is unchanged.
		return inner
	}

	tok := p.current()
	if tok.Kind != tokens.IDENTIFIER_TOKEN {
		p.fail(tok, "expected type, found %s", tok.Kind)
	}
	name := p.advance().Value

	switch name {
	case "Ptr":
		p.expect(tokens.OPEN_BRACKET)
		inner := p.parseType()
		p.expect(tokens.CLOSE_BRACKET)
		return types.NewPointer(inner)

	case "Array":
		p.expect(tokens.OPEN_BRACKET)
		sizeTok := p.expect(tokens.INT_TOKEN)
		p.expect(tokens.COMMA_TOKEN)
		elem := p.parseType()
		p.expect(tokens.CLOSE_BRACKET)
		return types.NewArray(int(sizeTok.Int), elem)

	case "List":
		p.expect(tokens.OPEN_BRACKET)
		elem := p.parseType()
		p.expect(tokens.CLOSE_BRACKET)
		return &types.List{Elem: elem}

	case "Dict":
		p.expect(tokens.OPEN_BRACKET)
		key := p.parseType()
		p.expect(tokens.COMMA_TOKEN)
		val := p.parseType()
		p.expect(tokens.CLOSE_BRACKET)
		return &types.Dict{Key: key, Val: val}

	case "Tuple":
		p.expect(tokens.OPEN_BRACKET)
		elems := []types.Type{p.parseType()}
		for p.match(tokens.COMMA_TOKEN) {
			elems = append(elems, p.parseType())
		}
		p.expect(tokens.CLOSE_BRACKET)
		return &types.Tuple{Elems: elems}

	case "Optional":
		p.expect(tokens.OPEN_BRACKET)
		inner := p.parseType()
		p.expect(tokens.CLOSE_BRACKET)
		return &types.Optional{Inner: inner}

	case "Fn":
		p.expect(tokens.OPEN_BRACKET)
		ret := p.parseType()
		var params []types.Type
		for p.match(tokens.COMMA_TOKEN) {
			params = append(params, p.parseType())
		}
		p.expect(tokens.CLOSE_BRACKET)
		return &types.Func{Ret: ret, Params: params}

	case "str":
		return types.TypeStr
	}

	if prim, ok := types.PrimitiveByName(name); ok {
		return prim
	}

	// User-defined type name.
	return &types.Named{Name: name}
}

// castTargets are the primitive names usable in the T(x) cast
// shorthand.
var castTargets = map[string]bool{
	"int8": true, "int16": true, "int32": true, "int64": true,
	"uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "bool": true, "char": true,
	"int": true, "float": true,
}
