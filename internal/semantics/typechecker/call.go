package typechecker

import (
	"pynux/internal/frontend/ast"
	"pynux/internal/types"
)

// intrinsicSig describes a built-in resolved directly to instructions
// or ABI calls. A negative max arity means variadic.
type intrinsicSig struct {
	min, max int
	ret      types.Type
}

var intrinsics = map[string]intrinsicSig{
	"len":   {1, 1, types.TypeInt32},
	"ord":   {1, 1, types.TypeInt32},
	"chr":   {1, 1, types.TypeChar},
	"abs":   {1, 1, types.TypeInt32},
	"min":   {2, -1, types.TypeInt32},
	"max":   {2, -1, types.TypeInt32},
	"print": {0, -1, types.TypeVoid},
	"input": {0, 1, types.TypeStr},

	// barriers and core hints
	"dmb":   {0, 0, types.TypeVoid},
	"dsb":   {0, 0, types.TypeVoid},
	"isb":   {0, 0, types.TypeVoid},
	"wfi":   {0, 0, types.TypeVoid},
	"wfe":   {0, 0, types.TypeVoid},
	"sev":   {0, 0, types.TypeVoid},
	"clrex": {0, 0, types.TypeVoid},

	// bit manipulation instructions
	"clz":   {1, 1, types.TypeUint32},
	"rbit":  {1, 1, types.TypeUint32},
	"rev":   {1, 1, types.TypeUint32},
	"rev16": {1, 1, types.TypeUint32},

	// interrupt masking
	"critical_enter": {0, 0, types.TypeUint32},
	"critical_exit":  {1, 1, types.TypeVoid},

	// ldrex/strex sequences
	"atomic_load":  {1, 1, types.TypeInt32},
	"atomic_store": {2, 2, types.TypeVoid},
	"atomic_add":   {2, 2, types.TypeInt32},
	"atomic_sub":   {2, 2, types.TypeInt32},
	"atomic_swap":  {2, 2, types.TypeInt32},
	"atomic_cas":   {3, 3, types.TypeInt32},

	// single-bit and bit-field helpers
	"bit_set":    {2, 2, types.TypeUint32},
	"bit_clear":  {2, 2, types.TypeUint32},
	"bit_toggle": {2, 2, types.TypeUint32},
	"bit_check":  {2, 2, types.TypeBool},
	"bits_get":   {3, 3, types.TypeUint32},
	"bits_set":   {4, 4, types.TypeUint32},
}

// stringMethods maps str method names to their runtime helpers.
var stringMethods = map[string]struct {
	symbol string
	ret    types.Type
}{
	"upper":      {"__pynux_str_upper", types.TypeStr},
	"lower":      {"__pynux_str_lower", types.TypeStr},
	"strip":      {"__pynux_str_strip", types.TypeStr},
	"lstrip":     {"__pynux_str_lstrip", types.TypeStr},
	"rstrip":     {"__pynux_str_rstrip", types.TypeStr},
	"startswith": {"__pynux_str_startswith", types.TypeBool},
	"endswith":   {"__pynux_str_endswith", types.TypeBool},
	"find":       {"__pynux_str_find", types.TypeInt32},
	"replace":    {"__pynux_str_replace", types.TypeStr},
	"split":      {"__pynux_str_split", types.TypeStr},
	"join":       {"__pynux_str_join", types.TypeStr},
	"isdigit":    {"__pynux_str_isdigit", types.TypeBool},
	"isalpha":    {"__pynux_str_isalpha", types.TypeBool},
}

func (c *Checker) checkCall(e *ast.CallExpr) (ast.Expression, types.Type) {
	ident, direct := e.Fn.(*ast.Ident)

	if direct {
		if sig, ok := intrinsics[ident.Name]; ok {
			return c.checkIntrinsic(e, ident.Name, sig)
		}
		if ident.Name == "range" {
			c.fail(e, "range() is only valid as a for-loop iterable")
		}
		if ident.Name == "free" {
			// free is a runtime no-op but still a real symbol.
			e.Symbol = "free"
		}
	}

	fn, ft := c.checkExpr(e.Fn)
	e.Fn = fn

	// Resolve keyword arguments against the declared parameter list.
	if len(e.Kwargs) > 0 {
		c.resolveKwargs(e)
	}

	for i, a := range e.Args {
		arg, _ := c.checkExpr(a)
		e.Args[i] = arg
	}

	sig, isFunc := ft.(*types.Func)
	if !isFunc {
		c.fail(e, "%s is not callable", ft)
	}

	if direct && ident.FuncRef != "" {
		e.Symbol = ident.FuncRef
		c.completeArgs(e, ident.FuncRef)
	}

	// Arity and argument checks only when the signature is known
	// (imported symbols compile against the linker's knowledge).
	if len(sig.Params) > 0 || (direct && c.knownSignature(ident)) {
		if len(e.Args) != len(sig.Params) {
			c.fail(e, "wrong number of arguments: %d for %d", len(e.Args), len(sig.Params))
		}
		for i, a := range e.Args {
			at := a.Type()
			if !c.assignable(at, sig.Params[i], a) {
				c.fail(e, "argument %d: cannot pass %s as %s", i+1, at, sig.Params[i])
			}
		}
	}

	e.SetType(sig.Ret)
	return e, e.Type()
}

// knownSignature reports whether the callee's parameter list is
// authoritative (defined or extern in this unit, not imported).
func (c *Checker) knownSignature(ident *ast.Ident) bool {
	_, ok := c.mod.Funcs[ident.Name]
	return ok
}

// completeArgs appends parameter defaults for a short argument list.
func (c *Checker) completeArgs(e *ast.CallExpr, symbol string) {
	def, ok := c.defs[symbol]
	if !ok {
		return
	}
	for i := len(e.Args); i < len(def.Params); i++ {
		if def.Params[i].Default == nil {
			break
		}
		arg, _ := c.checkExpr(def.Params[i].Default)
		e.Args = append(e.Args, arg)
	}
}

// resolveKwargs folds name=value arguments into positional order.
func (c *Checker) resolveKwargs(e *ast.CallExpr) {
	ident, ok := e.Fn.(*ast.Ident)
	if !ok {
		c.fail(e, "keyword arguments need a named function")
	}
	def, ok := c.defs[ident.Name]
	if !ok {
		c.fail(e, "keyword arguments need a function defined in this unit")
	}

	byName := make(map[string]ast.Expression, len(e.Kwargs))
	for _, kw := range e.Kwargs {
		byName[kw.Name] = kw.Value
	}

	for i := len(e.Args); i < len(def.Params); i++ {
		p := def.Params[i]
		if v, ok := byName[p.Name]; ok {
			e.Args = append(e.Args, v)
			delete(byName, p.Name)
			continue
		}
		if p.Default != nil {
			e.Args = append(e.Args, p.Default)
			continue
		}
		c.fail(e, "missing argument %s", p.Name)
	}
	for name := range byName {
		c.fail(e, "unknown keyword argument %s", name)
	}
	e.Kwargs = nil
}

func (c *Checker) checkIntrinsic(e *ast.CallExpr, name string, sig intrinsicSig) (ast.Expression, types.Type) {
	if len(e.Kwargs) > 0 {
		c.fail(e, "%s takes no keyword arguments", name)
	}
	if len(e.Args) < sig.min || (sig.max >= 0 && len(e.Args) > sig.max) {
		c.fail(e, "wrong number of arguments to %s", name)
	}
	for i, a := range e.Args {
		arg, _ := c.checkExpr(a)
		e.Args[i] = arg
	}

	// Pointer-taking intrinsics get a shallow sanity check.
	switch name {
	case "atomic_load", "atomic_store", "atomic_add", "atomic_sub", "atomic_swap", "atomic_cas":
		if _, ok := e.Args[0].Type().(*types.Pointer); !ok {
			c.fail(e, "%s needs a pointer argument, found %s", name, e.Args[0].Type())
		}
	case "len":
		t := e.Args[0].Type()
		switch t.(type) {
		case *types.Pointer, *types.Array, *types.List:
		default:
			c.fail(e, "len() needs a string, array, or list, found %s", t)
		}
	}

	e.Intrinsic = name
	e.SetType(sig.ret)
	return e, e.Type()
}

// checkMethodCall lowers recv.name(args): string helpers for str
// receivers, lowered free functions for class receivers.
func (c *Checker) checkMethodCall(e *ast.MethodCall) (ast.Expression, types.Type) {
	recv, rt := c.checkExpr(e.Recv)
	e.Recv = recv

	if types.IsStr(rt) {
		helper, ok := stringMethods[e.Name]
		if !ok {
			c.fail(e, "str has no method %s", e.Name)
		}
		call := &ast.CallExpr{
			ExprBase: ast.NewExprBase(e.Loc()),
			Fn:       ast.NewIdent(helper.symbol, e.Loc()),
			Args:     append([]ast.Expression{recv}, e.Args...),
			Symbol:   helper.symbol,
		}
		for i := 1; i < len(call.Args); i++ {
			arg, _ := c.checkExpr(call.Args[i])
			call.Args[i] = arg
		}
		call.Fn.SetType(&types.Func{Ret: helper.ret})
		call.SetType(helper.ret)
		return call, helper.ret
	}

	// Class method: receiver by pointer.
	var st *types.Struct
	self := recv
	switch t := rt.(type) {
	case *types.Struct:
		st = t
		addr := &ast.AddressOf{ExprBase: ast.NewExprBase(e.Loc()), X: recv}
		addr.SetType(types.NewPointer(st))
		self = addr
	case *types.Pointer:
		if s, ok := t.Elem.(*types.Struct); ok {
			st = s
		}
	}
	if st == nil {
		c.fail(e, "%s has no method %s", rt, e.Name)
	}

	symbol := st.Name + "_" + e.Name
	sig, ok := c.mod.Funcs[symbol]
	if !ok {
		c.fail(e, "%s has no method %s", st.Name, e.Name)
	}

	call := &ast.CallExpr{
		ExprBase: ast.NewExprBase(e.Loc()),
		Fn:       ast.NewIdent(symbol, e.Loc()),
		Args:     append([]ast.Expression{self}, e.Args...),
		Symbol:   symbol,
	}
	for i := 1; i < len(call.Args); i++ {
		arg, _ := c.checkExpr(call.Args[i])
		call.Args[i] = arg
	}
	if len(call.Args) != len(sig.Params) {
		c.fail(e, "wrong number of arguments to %s: %d for %d", symbol, len(call.Args), len(sig.Params))
	}
	call.Fn.SetType(&types.Func{Ret: sig.Ret, Params: sig.Params})
	call.SetType(sig.Ret)
	return call, sig.Ret
}
