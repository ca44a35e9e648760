package typechecker

import (
	"pynux/internal/frontend/ast"
	"pynux/internal/semantics/symbols"
	"pynux/internal/source"
	"pynux/internal/types"
)

// slotIdent synthesizes an identifier bound to an existing slot.
func slotIdent(l *symbols.Local, span source.Span) *ast.Ident {
	ident := &ast.Ident{ExprBase: ast.NewExprBase(span), Name: l.Name, Local: l}
	ident.SetType(l.Type)
	return ident
}

func intLit(v int64, span source.Span) *ast.IntLit {
	lit := &ast.IntLit{ExprBase: ast.NewExprBase(span), Value: v}
	lit.SetType(types.TypeInt32)
	return lit
}

// lowerFor rewrites the surface for-in loop: range iterables become
// ForRange, everything else becomes an indexed ForIter walk.
func (c *Checker) lowerFor(s *ast.For) []ast.Statement {
	if call, ok := s.Iter.(*ast.CallExpr); ok {
		if fn, ok := call.Fn.(*ast.Ident); ok && fn.Name == "range" {
			return c.lowerForRange(s, call)
		}
	}
	return c.lowerForIter(s)
}

func (c *Checker) lowerForRange(s *ast.For, call *ast.CallExpr) []ast.Statement {
	if len(s.Vars) != 1 {
		c.fail(s, "range loops bind exactly one variable")
	}
	if len(call.Args) < 1 || len(call.Args) > 3 {
		c.fail(s, "range() takes 1 to 3 arguments")
	}
	for i, a := range call.Args {
		arg, at := c.checkExpr(a)
		call.Args[i] = arg
		if !types.IsInteger(at) {
			c.fail(s, "range argument must be an integer, found %s", at)
		}
	}

	span := s.Loc()
	var start, stop, step ast.Expression
	switch len(call.Args) {
	case 1:
		start, stop, step = intLit(0, span), call.Args[0], intLit(1, span)
	case 2:
		start, stop, step = call.Args[0], call.Args[1], intLit(1, span)
	default:
		start, stop, step = call.Args[0], call.Args[1], call.Args[2]
	}

	loop := &ast.ForRange{
		StmtBase: ast.NewStmtBase(span),
		Var:      s.Vars[0],
		Start:    start,
		Stop:     stop,
		Step:     step,
	}
	loop.VarSlot = c.frame.Define(s.Vars[0], types.TypeInt32)
	loop.StopSlot = c.frame.Hidden(types.TypeInt32)
	loop.StepSlot = c.frame.Hidden(types.TypeInt32)

	c.loopDepth++
	loop.Body = c.checkBlock(s.Body)
	c.loopDepth--

	return []ast.Statement{loop}
}

// lowerForIter walks a heap sequence with the [len, cap, elems...]
// list layout by index.
func (c *Checker) lowerForIter(s *ast.For) []ast.Statement {
	iter, it := c.checkExpr(s.Iter)

	elemTypes := make([]types.Type, len(s.Vars))
	for i := range elemTypes {
		elemTypes[i] = types.TypeInt32
	}
	if lt, ok := it.(*types.List); ok && len(s.Vars) == 1 {
		elemTypes[0] = c.valueType(lt.Elem)
	}

	loop := &ast.ForIter{
		StmtBase: ast.NewStmtBase(s.Loc()),
		Vars:     s.Vars,
		Iter:     iter,
	}
	loop.VarSlots = make([]*symbols.Local, len(s.Vars))
	for i, name := range s.Vars {
		loop.VarSlots[i] = c.frame.Define(name, elemTypes[i])
	}
	loop.IterSlot = c.frame.Hidden(types.TypeInt32)
	loop.IdxSlot = c.frame.Hidden(types.TypeInt32)
	loop.LenSlot = c.frame.Hidden(types.TypeInt32)

	c.loopDepth++
	loop.Body = c.checkBlock(s.Body)
	c.loopDepth--

	return []ast.Statement{loop}
}

// lowerWith rewrites "with ctx as n: body" into
//
//	h = ctx
//	n = __pynux_context_enter(h)
//	try:
//	    body
//	finally:
//	    __pynux_context_exit(h)
//
// Multiple items nest right-to-left. Exit on the exceptional path
// depends on the raise stub, which halts.
func (c *Checker) lowerWith(s *ast.With) []ast.Statement {
	span := s.Loc()
	body := c.checkBlock(s.Body)

	for i := len(s.Items) - 1; i >= 0; i-- {
		item := s.Items[i]
		ctx, _ := c.checkExpr(item.Ctx)

		hidden := c.frame.Hidden(types.NewPointer(types.TypeVoid))
		hidden.Name = "<with>"

		store := &ast.Assign{
			StmtBase: ast.NewStmtBase(span),
			Target:   slotIdent(hidden, span),
			Value:    ctx,
		}

		enter := &ast.CallExpr{
			ExprBase: ast.NewExprBase(span),
			Fn:       ast.NewIdent("__pynux_context_enter", span),
			Args:     []ast.Expression{slotIdent(hidden, span)},
			Symbol:   "__pynux_context_enter",
		}
		enter.SetType(types.NewPointer(types.TypeVoid))

		var enterStmt ast.Statement
		if item.As != "" {
			local, ok := c.frame.Lookup(item.As)
			if !ok {
				local = c.frame.Define(item.As, types.NewPointer(types.TypeVoid))
			}
			enterStmt = &ast.Assign{
				StmtBase: ast.NewStmtBase(span),
				Target:   slotIdent(local, span),
				Value:    enter,
			}
		} else {
			enterStmt = &ast.ExprStmt{StmtBase: ast.NewStmtBase(span), X: enter}
		}

		exit := &ast.CallExpr{
			ExprBase: ast.NewExprBase(span),
			Fn:       ast.NewIdent("__pynux_context_exit", span),
			Args:     []ast.Expression{slotIdent(hidden, span)},
			Symbol:   "__pynux_context_exit",
		}
		exit.SetType(types.TypeVoid)

		try := &ast.Try{
			StmtBase: ast.NewStmtBase(span),
			Body:     body,
			Finally:  []ast.Statement{&ast.ExprStmt{StmtBase: ast.NewStmtBase(span), X: exit}},
		}
		try.FlagSlot = c.frame.Hidden(types.TypeInt32)

		body = []ast.Statement{store, enterStmt, try}
	}

	return body
}

// lowerMatch reduces a match over simple patterns (literals, the
// wildcard, identifier capture) to an if/elif chain on a scrutinee
// copy. Variant patterns with bindings have no lowering.
func (c *Checker) lowerMatch(s *ast.Match) []ast.Statement {
	span := s.Loc()
	scrutinee, st := c.checkExpr(s.Scrutinee)
	if !types.IsInteger(st) && !types.IsStr(st) {
		c.fail(s, "match scrutinee must be an integer or string, found %s", st)
	}

	hidden := c.frame.Hidden(c.valueType(st))
	hidden.Name = "<match>"
	store := &ast.Assign{
		StmtBase: ast.NewStmtBase(span),
		Target:   slotIdent(hidden, span),
		Value:    scrutinee,
	}

	chain := &ast.If{StmtBase: ast.NewStmtBase(span)}
	haveCond := false

	for _, arm := range s.Arms {
		p := arm.Pattern

		switch {
		case p.Lit != nil:
			lit, lt := c.checkExpr(p.Lit)
			var cond ast.Expression
			if types.IsStr(st) {
				if !types.IsStr(lt) {
					c.fail(s, "pattern type %s does not match scrutinee %s", lt, st)
				}
				cmp := &ast.CallExpr{
					ExprBase: ast.NewExprBase(span),
					Fn:       ast.NewIdent("__pynux_strcmp", span),
					Args:     []ast.Expression{slotIdent(hidden, span), lit},
					Symbol:   "__pynux_strcmp",
				}
				cmp.SetType(types.TypeInt32)
				eq := &ast.BinaryExpr{
					ExprBase: ast.NewExprBase(span),
					Op:       ast.EQ, X: cmp, Y: intLit(0, span),
				}
				eq.SetType(types.TypeBool)
				cond = eq
			} else {
				eq := &ast.BinaryExpr{
					ExprBase: ast.NewExprBase(span),
					Op:       ast.EQ, X: slotIdent(hidden, span), Y: lit,
				}
				eq.SetType(types.TypeBool)
				cond = eq
			}

			body := c.checkBlock(arm.Body)
			if !haveCond {
				chain.Cond, chain.Then = cond, body
				haveCond = true
			} else {
				chain.Elifs = append(chain.Elifs, ast.ElifArm{Cond: cond, Body: body})
			}

		case p.Name == "_":
			chain.Else = c.checkBlock(arm.Body)

		case len(p.Bindings) == 0:
			// Capture pattern: bind the scrutinee and always match.
			local, ok := c.frame.Lookup(p.Name)
			if !ok {
				local = c.frame.Define(p.Name, hidden.Type)
			}
			bind := &ast.Assign{
				StmtBase: ast.NewStmtBase(span),
				Target:   slotIdent(local, span),
				Value:    slotIdent(hidden, span),
			}
			chain.Else = append([]ast.Statement{bind}, c.checkBlock(arm.Body)...)

		default:
			c.fail(s, "unsupported match pattern %s(...)", p.Name)
		}

		if chain.Else != nil {
			break // irrefutable arm; later arms are unreachable
		}
	}

	if !haveCond {
		// Only irrefutable arms: the chain is just its else branch.
		return append([]ast.Statement{store}, chain.Else...)
	}
	return []ast.Statement{store, chain}
}
