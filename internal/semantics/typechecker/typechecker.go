package typechecker

import (
	"fmt"

	"pynux/internal/diagnostics"
	"pynux/internal/frontend/ast"
	"pynux/internal/semantics/symbols"
	"pynux/internal/source"
	"pynux/internal/types"
)

// Checker annotates every expression with its resolved type, resolves
// every identifier to a binding, validates operations, and rewrites
// surface sugar into the lower-level forms the generator consumes.
// One Checker handles one translation unit and is then dropped.
type Checker struct {
	file string
	mod  *symbols.Module

	// state for the function currently being checked
	frame      *symbols.Frame
	retType    types.Type
	loopDepth  int
	globalDecl map[string]bool

	// defs gives access to parameter default expressions when
	// completing call argument lists.
	defs map[string]*ast.FunctionDef

	// seeded marks runtime ABI signatures that source may restate
	// with extern without a duplicate-declaration error.
	seeded map[string]bool
}

// Check runs both passes over a parsed program. The program is
// annotated in place; desugared statements replace their surface
// forms. It fails with the first type error.
func Check(prog *ast.Program, file string) (mod *symbols.Module, err error) {
	c := &Checker{
		file: file,
		mod:  symbols.NewModule(),
		defs: make(map[string]*ast.FunctionDef),
	}
	c.seeded = seedRuntime(c.mod)

	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(*diagnostics.Diagnostic); ok {
				mod, err = nil, d
				return
			}
			panic(r)
		}
	}()

	c.collect(prog)
	c.checkDecls(prog)
	return c.mod, nil
}

func (c *Checker) failAt(pos source.Position, format string, args ...any) {
	panic(diagnostics.Errorf(diagnostics.Type, c.file, pos, format, args...))
}

func (c *Checker) fail(n ast.Node, format string, args ...any) {
	c.failAt(n.Loc().Start, format, args...)
}

// resolveType replaces Named placeholders with their struct/union
// definitions and normalizes nested types.
func (c *Checker) resolveType(n ast.Node, t types.Type) types.Type {
	switch t := t.(type) {
	case nil:
		return types.TypeVoid
	case *types.Named:
		if resolved, ok := c.mod.ResolveNamed(t.Name); ok {
			return resolved
		}
		c.fail(n, "unknown type %s", t.Name)
	case *types.Pointer:
		return &types.Pointer{Elem: c.resolveType(n, t.Elem), Volatile: t.Volatile}
	case *types.Array:
		return types.NewArray(t.Len, c.resolveType(n, t.Elem))
	case *types.Optional:
		return &types.Optional{Inner: c.resolveType(n, t.Inner)}
	case *types.List:
		return &types.List{Elem: c.resolveType(n, t.Elem)}
	case *types.Dict:
		return &types.Dict{Key: c.resolveType(n, t.Key), Val: c.resolveType(n, t.Val)}
	case *types.Tuple:
		elems := make([]types.Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = c.resolveType(n, e)
		}
		return &types.Tuple{Elems: elems}
	case *types.Func:
		params := make([]types.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = c.resolveType(n, p)
		}
		return &types.Func{Ret: c.resolveType(n, t.Ret), Params: params}
	}
	return t
}

// collect builds the module scope: struct/union/class layouts,
// function signatures, externs, globals, and imported names.
// Declarations are collected in source order, so aggregates must be
// defined before use in other aggregates.
func (c *Checker) collect(prog *ast.Program) {
	for _, imp := range prog.Imports {
		for _, name := range imp.Names {
			c.mod.Imported[name] = name
		}
		if imp.Alias != "" {
			c.mod.Imported[imp.Alias] = imp.Module
		}
	}

	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.StructDef:
			c.collectStruct(d)
		case *ast.UnionDef:
			c.collectUnion(d)
		case *ast.ClassDef:
			c.collectClass(d)
		case *ast.FunctionDef:
			c.collectFunction(d, "")
		case *ast.ExternDef:
			c.collectExtern(d)
		case *ast.GlobalVar:
			c.collectGlobal(d)
		}
	}

	// Class methods become free functions; collect their signatures
	// after every class layout is known.
	for _, decl := range prog.Decls {
		if cls, ok := decl.(*ast.ClassDef); ok {
			for _, m := range cls.Methods {
				c.collectFunction(m, cls.Name)
			}
		}
	}
}

func (c *Checker) collectStruct(d *ast.StructDef) {
	if _, ok := c.mod.ResolveNamed(d.Name); ok {
		c.fail(d, "duplicate declaration of %s", d.Name)
	}
	fields := make([]types.Field, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = types.Field{Name: f.Name, Type: c.resolveType(d, f.Type)}
	}
	d.Sem = types.NewStruct(d.Name, fields, d.Packed)
	c.mod.Structs[d.Name] = d.Sem
}

func (c *Checker) collectUnion(d *ast.UnionDef) {
	if _, ok := c.mod.ResolveNamed(d.Name); ok {
		c.fail(d, "duplicate declaration of %s", d.Name)
	}
	fields := make([]types.Field, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = types.Field{Name: f.Name, Type: c.resolveType(d, f.Type)}
	}
	d.Sem = types.NewUnion(d.Name, fields)
	c.mod.Unions[d.Name] = d.Sem
}

// collectClass flattens a derived class into a struct holding the
// base class's fields followed by its own. There is no dynamic
// dispatch; methods lower to free functions.
func (c *Checker) collectClass(d *ast.ClassDef) {
	if _, ok := c.mod.ResolveNamed(d.Name); ok {
		c.fail(d, "duplicate declaration of %s", d.Name)
	}

	var fields []types.Field
	for _, baseName := range d.Bases {
		base, ok := c.mod.Structs[baseName]
		if !ok {
			c.fail(d, "unknown base class %s", baseName)
		}
		for _, f := range base.Fields {
			fields = append(fields, types.Field{Name: f.Name, Type: f.Type})
		}
	}
	for _, f := range d.Fields {
		fields = append(fields, types.Field{Name: f.Name, Type: c.resolveType(d, f.Type)})
	}

	packed := false
	for _, dec := range d.Decorators {
		if dec == "packed" {
			packed = true
		}
	}

	d.Sem = types.NewStruct(d.Name, fields, packed)
	c.mod.Structs[d.Name] = d.Sem
}

// collectFunction records a function signature. For methods, owner is
// the class name: the symbol becomes Class_method and self: Ptr[Class]
// is prepended.
func (c *Checker) collectFunction(d *ast.FunctionDef, owner string) {
	name := d.Name
	if owner != "" {
		name = owner + "_" + d.Name
		selfType := types.NewPointer(c.mod.Structs[owner])
		d.Params = append([]ast.Param{{Name: "self", Type: selfType}}, d.Params...)
		d.Name = name
	}

	if _, ok := c.mod.Funcs[name]; ok && !c.seeded[name] {
		c.fail(d, "duplicate declaration of %s", name)
	}

	sig := &symbols.FuncSig{Name: name, Ret: c.resolveType(d, d.RetType)}
	for i := range d.Params {
		if d.Params[i].Type == nil {
			d.Params[i].Type = types.TypeInt32
		}
		d.Params[i].Type = c.resolveType(d, d.Params[i].Type)
		sig.Params = append(sig.Params, d.Params[i].Type)
	}
	for _, dec := range d.Decorators {
		if dec == "interrupt" {
			sig.Interrupt = true
			d.Interrupt = true
		}
	}

	d.Sig = sig
	c.mod.Funcs[name] = sig
	c.defs[name] = d
}

func (c *Checker) collectExtern(d *ast.ExternDef) {
	if _, ok := c.mod.Funcs[d.Name]; ok && !c.seeded[d.Name] {
		c.fail(d, "duplicate declaration of %s", d.Name)
	}
	sig := &symbols.FuncSig{Name: d.Name, Ret: c.resolveType(d, d.RetType), Extern: true}
	for i := range d.Params {
		if d.Params[i].Type == nil {
			d.Params[i].Type = types.TypeInt32
		}
		sig.Params = append(sig.Params, c.resolveType(d, d.Params[i].Type))
	}
	c.mod.Funcs[d.Name] = sig
}

func (c *Checker) collectGlobal(d *ast.GlobalVar) {
	if _, ok := c.mod.Globals[d.Name]; ok {
		c.fail(d, "duplicate declaration of %s", d.Name)
	}
	t := c.resolveType(d, d.DeclType)
	c.mod.Globals[d.Name] = &symbols.Global{Name: d.Name, Type: t}
}

// checkDecls runs the second pass: function bodies and global
// initializers. Class methods are hoisted to top-level declarations
// directly after their class.
func (c *Checker) checkDecls(prog *ast.Program) {
	var decls []ast.Decl
	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.FunctionDef:
			c.checkFunction(d)
			decls = append(decls, d)
		case *ast.ClassDef:
			decls = append(decls, d)
			for _, m := range d.Methods {
				c.checkFunction(m)
				decls = append(decls, m)
			}
			d.Methods = nil
		case *ast.GlobalVar:
			c.checkGlobalVar(d)
			decls = append(decls, d)
		default:
			decls = append(decls, decl)
		}
	}
	prog.Decls = decls
}

func (c *Checker) checkGlobalVar(d *ast.GlobalVar) {
	d.DeclType = c.resolveType(d, d.DeclType)
	if d.Value == nil {
		return
	}
	value, vt := c.checkExpr(d.Value)
	d.Value = value
	if !c.assignable(vt, d.DeclType, value) {
		c.fail(d, "cannot assign %s to global %s of type %s", vt, d.Name, d.DeclType)
	}
}

func (c *Checker) checkFunction(d *ast.FunctionDef) {
	c.frame = symbols.NewFrame()
	c.retType = d.Sig.Ret
	c.loopDepth = 0
	c.globalDecl = make(map[string]bool)

	for _, p := range d.Params {
		if _, dup := c.frame.Lookup(p.Name); dup {
			c.fail(d, "duplicate parameter %s", p.Name)
		}
		l := c.frame.Define(p.Name, p.Type)
		l.IsParam = true
	}

	d.Body = c.checkBlock(d.Body)
	d.Frame = c.frame
	c.frame = nil
}

func (c *Checker) checkBlock(stmts []ast.Statement) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, c.checkStmt(s)...)
	}
	return out
}

// checkStmt checks one statement. Desugaring statements (for, with,
// match) return their replacement sequence.
func (c *Checker) checkStmt(s ast.Statement) []ast.Statement {
	switch s := s.(type) {
	case *ast.VarDecl:
		c.checkVarDecl(s)

	case *ast.Assign:
		return c.checkAssign(s)

	case *ast.AugAssign:
		c.checkAugAssign(s)

	case *ast.TupleUnpack:
		c.checkTupleUnpack(s)

	case *ast.ExprStmt:
		x, _ := c.checkExpr(s.X)
		s.X = x

	case *ast.Return:
		c.checkReturn(s)

	case *ast.If:
		s.Cond = c.checkCond(s.Cond)
		s.Then = c.checkBlock(s.Then)
		for i := range s.Elifs {
			s.Elifs[i].Cond = c.checkCond(s.Elifs[i].Cond)
			s.Elifs[i].Body = c.checkBlock(s.Elifs[i].Body)
		}
		s.Else = c.checkBlock(s.Else)

	case *ast.While:
		s.Cond = c.checkCond(s.Cond)
		c.loopDepth++
		s.Body = c.checkBlock(s.Body)
		c.loopDepth--

	case *ast.For:
		return c.lowerFor(s)

	case *ast.Break:
		if c.loopDepth == 0 {
			c.fail(s, "break outside of loop")
		}

	case *ast.Continue:
		if c.loopDepth == 0 {
			c.fail(s, "continue outside of loop")
		}

	case *ast.Pass:

	case *ast.Global:
		for _, name := range s.Names {
			if _, ok := c.mod.Globals[name]; !ok {
				c.fail(s, "no global named %s", name)
			}
			c.globalDecl[name] = true
		}

	case *ast.Defer:
		inner := c.checkStmt(s.Inner)
		if len(inner) != 1 {
			c.fail(s, "cannot defer this statement")
		}
		s.Inner = inner[0]

	case *ast.Assert:
		s.Cond = c.checkCond(s.Cond)
		if s.Msg != nil {
			msg, mt := c.checkExpr(s.Msg)
			s.Msg = msg
			if !types.IsStr(mt) {
				c.fail(s, "assert message must be a string, found %s", mt)
			}
		}

	case *ast.Raise:
		if s.Exc != nil {
			exc, _ := c.checkExpr(s.Exc)
			s.Exc = exc
		}

	case *ast.Try:
		c.checkTry(s)

	case *ast.With:
		return c.lowerWith(s)

	case *ast.Match:
		return c.lowerMatch(s)

	case *ast.Asm:

	case *ast.Yield:
		c.fail(s, "yield is not supported: generators have no lowering on this target")

	default:
		c.fail(s, "unsupported statement %T", s)
	}

	return []ast.Statement{s}
}

func (c *Checker) checkVarDecl(s *ast.VarDecl) {
	if _, dup := c.frame.Lookup(s.Name); dup {
		c.fail(s, "duplicate declaration of %s", s.Name)
	}
	s.DeclType = c.resolveType(s, s.DeclType)
	if s.Value != nil {
		value, vt := c.checkExpr(s.Value)
		s.Value = value
		if !c.assignable(vt, s.DeclType, value) {
			c.fail(s, "cannot assign %s to %s of type %s", vt, s.Name, s.DeclType)
		}
	}
	s.Local = c.frame.Define(s.Name, s.DeclType)
}

// checkAssign handles both stores to existing bindings and the
// introduction of new locals by plain assignment.
func (c *Checker) checkAssign(s *ast.Assign) []ast.Statement {
	value, vt := c.checkExpr(s.Value)
	s.Value = value

	if ident, ok := s.Target.(*ast.Ident); ok {
		// global X makes assignment target the module scope.
		if c.globalDecl[ident.Name] {
			g := c.mod.Globals[ident.Name]
			ident.Global = g.Name
			ident.SetType(g.Type)
			if !c.assignable(vt, g.Type, value) {
				c.fail(s, "cannot assign %s to global %s of type %s", vt, ident.Name, g.Type)
			}
			return []ast.Statement{s}
		}
		if local, ok := c.frame.Lookup(ident.Name); ok {
			ident.Local = local
			ident.SetType(local.Type)
			if !c.assignable(vt, local.Type, value) {
				c.fail(s, "cannot assign %s to %s of type %s", vt, ident.Name, local.Type)
			}
			return []ast.Statement{s}
		}
		// Assignment to a never-declared name introduces a local of
		// the RHS's type.
		if vt.Equals(types.TypeVoid) {
			c.fail(s, "cannot assign a void value to %s", ident.Name)
		}
		local := c.frame.Define(ident.Name, c.valueType(vt))
		ident.Local = local
		ident.SetType(local.Type)
		return []ast.Statement{s}
	}

	target, tt := c.checkLvalue(s.Target)
	s.Target = target
	if !c.assignable(vt, tt, value) {
		c.fail(s, "cannot assign %s to target of type %s", vt, tt)
	}
	return []ast.Statement{s}
}

func (c *Checker) checkAugAssign(s *ast.AugAssign) {
	target, tt := c.checkLvalue(s.Target)
	s.Target = target
	value, vt := c.checkExpr(s.Value)
	vt = adaptLiteral(value, vt, tt)
	s.Value = value

	result := c.binaryResult(s, s.Op, tt, vt)
	if !types.Assignable(result, tt) && !result.Equals(tt) {
		c.fail(s, "result of %s is %s, not assignable back to %s", s.Op, result, tt)
	}
}

func (c *Checker) checkTupleUnpack(s *ast.TupleUnpack) {
	value, vt := c.checkExpr(s.Value)
	s.Value = value

	elemTypes := make([]types.Type, len(s.Targets))
	if tup, ok := vt.(*types.Tuple); ok && len(tup.Elems) == len(s.Targets) {
		copy(elemTypes, tup.Elems)
	} else {
		for i := range elemTypes {
			elemTypes[i] = types.TypeInt32
		}
	}

	s.Slots = make([]*symbols.Local, len(s.Targets))
	for i, name := range s.Targets {
		if local, ok := c.frame.Lookup(name); ok {
			s.Slots[i] = local
		} else {
			s.Slots[i] = c.frame.Define(name, elemTypes[i])
		}
	}
}

func (c *Checker) checkReturn(s *ast.Return) {
	if s.Value == nil {
		if !c.retType.Equals(types.TypeVoid) {
			c.fail(s, "missing return value in function returning %s", c.retType)
		}
		return
	}
	if c.retType.Equals(types.TypeVoid) {
		c.fail(s, "return with a value in a void function")
	}
	value, vt := c.checkExpr(s.Value)
	s.Value = value
	if !c.assignable(vt, c.retType, value) {
		c.fail(s, "cannot return %s from function returning %s", vt, c.retType)
	}
}

func (c *Checker) checkTry(s *ast.Try) {
	s.FlagSlot = c.frame.Hidden(types.TypeInt32)
	s.Body = c.checkBlock(s.Body)
	for i := range s.Handlers {
		h := &s.Handlers[i]
		if h.Name != "" {
			if local, ok := c.frame.Lookup(h.Name); ok {
				h.Slot = local
			} else {
				h.Slot = c.frame.Define(h.Name, types.TypeInt32)
			}
		}
		h.Body = c.checkBlock(h.Body)
	}
	s.Else = c.checkBlock(s.Else)
	s.Finally = c.checkBlock(s.Finally)
}

// checkCond checks a condition expression. Conditions accept any
// scalar value; zero is false.
func (c *Checker) checkCond(e ast.Expression) ast.Expression {
	expr, t := c.checkExpr(e)
	if t.Equals(types.TypeVoid) {
		c.fail(e, "condition has no value")
	}
	return expr
}

// valueType normalizes a type for storage in an inferred local:
// arrays decay, None becomes a char pointer.
func (c *Checker) valueType(t types.Type) types.Type {
	if a, ok := t.(*types.Array); ok {
		return types.NewPointer(a.Elem)
	}
	if t.Equals(types.TypeNone) {
		return types.TypeStr
	}
	return t
}

// assignable wraps types.Assignable with the literal rules that need
// the expression: None to pointers/Optionals.
func (c *Checker) assignable(src, dst types.Type, value ast.Expression) bool {
	if lit, ok := value.(*ast.IntLit); ok && types.IsInteger(dst) && !types.IsFloat(dst) {
		lit.SetType(dst)
		return true
	}
	if src.Equals(types.TypeNone) {
		if _, ok := dst.(*types.Pointer); ok {
			return true
		}
		if _, ok := dst.(*types.Optional); ok {
			return true
		}
		return false
	}
	return types.Assignable(src, dst)
}

func (c *Checker) describe(t types.Type) string {
	return fmt.Sprintf("%s", t)
}
