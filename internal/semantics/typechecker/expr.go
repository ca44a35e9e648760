package typechecker

import (
	"pynux/internal/frontend/ast"
	"pynux/internal/types"
)

// checkExpr annotates an expression with its type and binding. It
// returns a possibly rewritten node (method calls, string helpers)
// along with the type.
func (c *Checker) checkExpr(e ast.Expression) (ast.Expression, types.Type) {
	switch e := e.(type) {
	case *ast.IntLit:
		e.SetType(types.TypeInt32)

	case *ast.FloatLit:
		e.SetType(types.TypeFloat32)

	case *ast.StrLit:
		e.SetType(types.TypeStr)

	case *ast.CharLit:
		e.SetType(types.TypeChar)

	case *ast.BoolLit:
		e.SetType(types.TypeBool)

	case *ast.NoneLit:
		e.SetType(types.TypeNone)

	case *ast.FString:
		for i := range e.Parts {
			if e.Parts[i].Expr != nil {
				expr, _ := c.checkExpr(e.Parts[i].Expr)
				e.Parts[i].Expr = expr
			}
		}
		e.SetType(types.TypeStr)

	case *ast.Ident:
		c.resolveIdent(e)

	case *ast.BinaryExpr:
		x, xt := c.checkExpr(e.X)
		y, yt := c.checkExpr(e.Y)
		xt, yt = adaptLiteral(x, xt, yt), adaptLiteral(y, yt, xt)
		e.X, e.Y = x, y
		e.SetType(c.binaryResult(e, e.Op, xt, yt))

	case *ast.UnaryExpr:
		x, xt := c.checkExpr(e.X)
		e.X = x
		switch e.Op {
		case ast.NEG:
			if !types.IsInteger(xt) {
				c.fail(e, "cannot negate %s", xt)
			}
			e.SetType(xt)
		case ast.NOT:
			if xt.Equals(types.TypeVoid) {
				c.fail(e, "operand of not has no value")
			}
			e.SetType(types.TypeBool)
		case ast.BITNOT:
			if !types.IsInteger(xt) {
				c.fail(e, "cannot complement %s", xt)
			}
			e.SetType(xt)
		}

	case *ast.AddressOf:
		x, xt := c.checkLvalue(e.X)
		e.X = x
		e.SetType(types.NewPointer(xt))

	case *ast.Deref:
		x, xt := c.checkExpr(e.X)
		e.X = x
		ptr, ok := xt.(*types.Pointer)
		if !ok {
			c.fail(e, "cannot dereference %s", xt)
		}
		e.SetType(ptr.Elem)

	case *ast.Index:
		return c.checkIndex(e)

	case *ast.Slice:
		x, xt := c.checkExpr(e.X)
		e.X = x
		if !types.IsStr(xt) {
			if _, isArr := xt.(*types.Array); !isArr {
				c.fail(e, "cannot slice %s", xt)
			}
		}
		for _, part := range []*ast.Expression{&e.Low, &e.High, &e.Step} {
			if *part != nil {
				expr, pt := c.checkExpr(*part)
				*part = expr
				if !types.IsInteger(pt) {
					c.fail(e, "slice bound must be an integer, found %s", pt)
				}
			}
		}
		e.SetType(types.TypeStr)

	case *ast.CallExpr:
		return c.checkCall(e)

	case *ast.MethodCall:
		return c.checkMethodCall(e)

	case *ast.Attr:
		c.checkAttr(e)

	case *ast.ListLit:
		elemType := types.Type(types.TypeInt32)
		for i, el := range e.Elems {
			expr, et := c.checkExpr(el)
			e.Elems[i] = expr
			if i == 0 {
				elemType = c.valueType(et)
			}
		}
		e.SetType(&types.List{Elem: elemType})

	case *ast.DictLit:
		keyType := types.Type(types.TypeInt32)
		valType := types.Type(types.TypeInt32)
		for i := range e.Keys {
			key, kt := c.checkExpr(e.Keys[i])
			val, vt := c.checkExpr(e.Vals[i])
			e.Keys[i], e.Vals[i] = key, val
			if i == 0 {
				keyType, valType = c.valueType(kt), c.valueType(vt)
			}
		}
		e.SetType(&types.Dict{Key: keyType, Val: valType})

	case *ast.TupleLit:
		elems := make([]types.Type, len(e.Elems))
		for i, el := range e.Elems {
			expr, et := c.checkExpr(el)
			e.Elems[i] = expr
			elems[i] = c.valueType(et)
		}
		e.SetType(&types.Tuple{Elems: elems})

	case *ast.Comp:
		c.checkComp(e)

	case *ast.Ternary:
		e.Cond = c.checkCond(e.Cond)
		then, tt := c.checkExpr(e.Then)
		els, et := c.checkExpr(e.Else)
		e.Then, e.Else = then, els
		switch {
		case tt.Equals(et):
			e.SetType(tt)
		case types.Widens(tt, et):
			e.SetType(et)
		case types.Widens(et, tt):
			e.SetType(tt)
		default:
			c.fail(e, "conditional arms have mismatched types %s and %s", tt, et)
		}

	case *ast.Lambda:
		c.fail(e, "lambda expressions are not supported")

	case *ast.Cast:
		x, _ := c.checkExpr(e.X)
		e.X = x
		e.To = c.resolveType(e, e.To)
		e.SetType(e.To)

	case *ast.Sizeof:
		e.Of = c.resolveType(e, e.Of)
		e.SetType(types.TypeInt32)

	case *ast.AsmExpr:
		e.SetType(types.TypeInt32)

	case *ast.StructLit:
		c.checkStructLit(e)

	default:
		c.fail(e, "unsupported expression %T", e)
	}

	return e, e.Type()
}

// resolveIdent binds a name use: local slot first, then module
// global, then function or imported symbol.
func (c *Checker) resolveIdent(e *ast.Ident) {
	if c.frame != nil {
		if local, ok := c.frame.Lookup(e.Name); ok {
			e.Local = local
			e.SetType(local.Type)
			return
		}
	}
	if g, ok := c.mod.Globals[e.Name]; ok {
		e.Global = g.Name
		e.SetType(g.Type)
		return
	}
	if sig, ok := c.mod.Funcs[e.Name]; ok {
		e.FuncRef = sig.Name
		e.SetType(&types.Func{Ret: sig.Ret, Params: sig.Params})
		return
	}
	if sym, ok := c.mod.Imported[e.Name]; ok {
		e.FuncRef = sym
		e.SetType(&types.Func{Ret: types.TypeInt32})
		return
	}
	c.fail(e, "undefined name %s", e.Name)
}

func (c *Checker) checkIndex(e *ast.Index) (ast.Expression, types.Type) {
	x, xt := c.checkExpr(e.X)
	e.X = x
	idx, it := c.checkExpr(e.Idx)
	e.Idx = idx
	if !types.IsInteger(it) {
		c.fail(e, "index must be an integer, found %s", it)
	}

	switch t := xt.(type) {
	case *types.Array:
		e.SetType(t.Elem)
	case *types.Pointer:
		e.SetType(t.Elem)
	case *types.List:
		e.SetType(t.Elem)
	case *types.Dict:
		e.SetType(t.Val)
	case *types.Tuple:
		lit, ok := idx.(*ast.IntLit)
		if !ok || int(lit.Value) >= len(t.Elems) || lit.Value < 0 {
			c.fail(e, "tuple index must be a constant within bounds")
		}
		e.SetType(t.Elems[lit.Value])
	default:
		c.fail(e, "cannot index %s", xt)
	}
	return e, e.Type()
}

func (c *Checker) checkAttr(e *ast.Attr) {
	x, xt := c.checkExpr(e.X)
	e.X = x

	target := xt
	if ptr, ok := xt.(*types.Pointer); ok {
		e.Indirect = true
		target = ptr.Elem
	}

	switch t := target.(type) {
	case *types.Struct:
		f, ok := t.Field(e.Name)
		if !ok {
			c.fail(e, "%s has no field %s", t.Name, e.Name)
		}
		e.Field = f
		e.SetType(f.Type)
	case *types.Union:
		f, ok := t.Field(e.Name)
		if !ok {
			c.fail(e, "%s has no field %s", t.Name, e.Name)
		}
		e.Field = f
		e.SetType(f.Type)
	default:
		c.fail(e, "%s has no fields", xt)
	}
}

func (c *Checker) checkComp(e *ast.Comp) {
	if c.frame == nil {
		c.fail(e, "list comprehension is not allowed at module level")
	}
	call, ok := e.Iter.(*ast.CallExpr)
	if !ok {
		c.fail(e, "list comprehensions support only range() iterables")
	}
	fn, ok := call.Fn.(*ast.Ident)
	if !ok || fn.Name != "range" {
		c.fail(e, "list comprehensions support only range() iterables")
	}
	if len(call.Args) < 1 || len(call.Args) > 2 {
		c.fail(e, "comprehension range() takes 1 or 2 arguments")
	}
	for i, a := range call.Args {
		arg, at := c.checkExpr(a)
		call.Args[i] = arg
		if !types.IsInteger(at) {
			c.fail(e, "range argument must be an integer, found %s", at)
		}
	}
	call.Intrinsic = "range"
	call.SetType(types.TypeInt32)

	e.VarSlot = c.frame.Define(e.Var, types.TypeInt32)
	e.EndSlot = c.frame.Hidden(types.TypeInt32)

	elem, et := c.checkExpr(e.Elem)
	e.Elem = elem
	if e.Cond != nil {
		e.Cond = c.checkCond(e.Cond)
	}
	e.SetType(&types.List{Elem: c.valueType(et)})
}

func (c *Checker) checkStructLit(e *ast.StructLit) {
	st, ok := c.mod.Structs[e.TypeName]
	if !ok {
		c.fail(e, "unknown struct type %s", e.TypeName)
	}
	e.Struct = st

	seen := make(map[string]bool)
	for i := range e.Fields {
		f, ok := st.Field(e.Fields[i].Name)
		if !ok {
			c.fail(e, "%s has no field %s", st.Name, e.Fields[i].Name)
		}
		value, vt := c.checkExpr(e.Fields[i].Value)
		e.Fields[i].Value = value
		if !c.assignable(vt, f.Type, value) {
			c.fail(e, "cannot assign %s to field %s of type %s", vt, f.Name, f.Type)
		}
		seen[f.Name] = true
	}
	for _, f := range st.Fields {
		if !seen[f.Name] {
			c.fail(e, "missing field %s in %s literal", f.Name, st.Name)
		}
	}

	if c.frame == nil {
		c.fail(e, "struct literal outside a function")
	}
	e.Slot = c.frame.Hidden(st)
	e.SetType(types.NewPointer(st))
}

// checkLvalue checks an expression used as an assignment target or
// address-of operand and returns its storage type.
func (c *Checker) checkLvalue(e ast.Expression) (ast.Expression, types.Type) {
	switch e := e.(type) {
	case *ast.Ident:
		c.resolveIdent(e)
		if e.FuncRef != "" {
			c.fail(e, "%s is not an lvalue", e.Name)
		}
		return e, e.Type()
	case *ast.Index:
		return c.checkIndex(e)
	case *ast.Attr:
		c.checkAttr(e)
		return e, e.Type()
	case *ast.Deref:
		expr, t := c.checkExpr(e)
		return expr, t
	}
	c.fail(e, "cannot take the address of a non-lvalue")
	return nil, nil
}

// binaryResult types a binary operation per the operator rules.
func (c *Checker) binaryResult(n ast.Node, op ast.BinOp, xt, yt types.Type) types.Type {
	switch op {
	case ast.ADD, ast.SUB, ast.MUL, ast.DIV, ast.IDIV, ast.MOD, ast.POW,
		ast.SHL, ast.SHR, ast.BITAND, ast.BITOR, ast.BITXOR:
		if types.IsFloat(xt) || types.IsFloat(yt) {
			c.fail(n, "float arithmetic is not supported: no soft-float helpers on this target")
		}
		// Pointer arithmetic: Ptr +- integer, Ptr - Ptr.
		if px, ok := xt.(*types.Pointer); ok {
			if op == ast.ADD || op == ast.SUB {
				if types.IsInteger(yt) {
					return px
				}
				if py, ok := yt.(*types.Pointer); ok && op == ast.SUB && px.Elem.Equals(py.Elem) {
					return types.TypeInt32
				}
			}
			c.fail(n, "invalid pointer arithmetic %s %s %s", xt, op, yt)
		}
		if types.IsInteger(xt) && types.IsInteger(yt) {
			return c.widen(n, op, xt, yt)
		}
		c.fail(n, "operator %s needs integer operands, found %s and %s", op, xt, yt)

	case ast.EQ, ast.NEQ, ast.LT, ast.LTE, ast.GT, ast.GTE:
		if types.IsInteger(xt) && types.IsInteger(yt) {
			c.widen(n, op, xt, yt)
			return types.TypeBool
		}
		_, xp := xt.(*types.Pointer)
		_, yp := yt.(*types.Pointer)
		if (xp || xt.Equals(types.TypeNone)) && (yp || yt.Equals(types.TypeNone)) {
			return types.TypeBool
		}
		c.fail(n, "cannot compare %s and %s", xt, yt)

	case ast.AND, ast.OR:
		if xt.Equals(types.TypeVoid) || yt.Equals(types.TypeVoid) {
			c.fail(n, "boolean operand has no value")
		}
		return types.TypeBool

	case ast.IN, ast.NOTIN:
		if !types.IsStr(yt) {
			c.fail(n, "operator in needs a string on the right, found %s", yt)
		}
		if !types.IsInteger(xt) {
			c.fail(n, "operator in needs a character on the left, found %s", xt)
		}
		return types.TypeBool

	case ast.IS, ast.ISNOT:
		return types.TypeBool
	}

	c.fail(n, "unsupported operator %s", op)
	return nil
}

// adaptLiteral retypes a bare integer literal to the other operand's
// integer type, so 0 compares against uint32 without a cast.
func adaptLiteral(x ast.Expression, xt, other types.Type) types.Type {
	lit, ok := x.(*ast.IntLit)
	if !ok || !types.IsInteger(other) {
		return xt
	}
	lit.SetType(other)
	return other
}

// widen checks integer operand compatibility and returns the wider
// type. Same signedness is required.
func (c *Checker) widen(n ast.Node, op ast.BinOp, xt, yt types.Type) types.Type {
	if xt.Equals(yt) {
		return xt
	}
	if types.Widens(xt, yt) {
		return yt
	}
	if types.Widens(yt, xt) {
		return xt
	}
	c.fail(n, "mismatched operand types %s and %s for %s", xt, yt, op)
	return nil
}
