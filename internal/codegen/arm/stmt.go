package arm

import (
	"pynux/internal/frontend/ast"
	"pynux/internal/types"
)

func (g *Generator) genStmt(s ast.Statement) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		if fstr, ok := s.X.(*ast.FString); ok {
			// A bare f-string statement prints its fragments.
			g.genFStringPrint(fstr)
			return
		}
		g.genExpr(s.X)

	case *ast.VarDecl:
		g.genVarDecl(s)

	case *ast.Assign:
		g.genAssign(s.Target, s.Value)

	case *ast.AugAssign:
		g.genAugAssign(s)

	case *ast.TupleUnpack:
		g.genTupleUnpack(s)

	case *ast.Return:
		g.runDefers()
		if s.Value != nil {
			g.genExpr(s.Value)
		}
		g.genEpilogue()

	case *ast.If:
		g.genIf(s)

	case *ast.While:
		g.genWhile(s)

	case *ast.ForRange:
		g.genForRange(s)

	case *ast.ForIter:
		g.genForIter(s)

	case *ast.Break:
		g.emit("b %s", g.loops[len(g.loops)-1].breakLabel)

	case *ast.Continue:
		g.emit("b %s", g.loops[len(g.loops)-1].continueLabel)

	case *ast.Pass:
		g.emit("@ pass")

	case *ast.Global:
		// bindings were resolved by the checker

	case *ast.Defer:
		g.defers = append(g.defers, s.Inner)

	case *ast.Assert:
		g.genAssert(s)

	case *ast.Raise:
		if s.Exc != nil {
			g.genExpr(s.Exc)
			g.emit("bl __pynux_raise")
		} else {
			g.emit("bl __pynux_reraise")
		}

	case *ast.Try:
		g.genTry(s)

	case *ast.Asm:
		g.genAsmText(s.Code)

	default:
		g.fail(s, "statement %T reached the generator unchecked", s)
	}
}

func (g *Generator) genVarDecl(s *ast.VarDecl) {
	if s.Value == nil {
		return
	}

	// Array initialized from a list literal fills the slot in place.
	if arr, ok := s.DeclType.(*types.Array); ok {
		if lit, ok := s.Value.(*ast.ListLit); ok {
			elemSize := arr.Elem.Size()
			for i, elem := range lit.Elems {
				g.genExpr(elem)
				g.emit("add r1, r7, #%d", s.Local.Offset+i*elemSize)
				g.storeIndirect(arr.Elem, "r0", "r1")
			}
			return
		}
	}

	g.genExpr(s.Value)
	g.storeToSlot("r0", s.Local)
}

// genAssign evaluates the value and stores it through the target.
func (g *Generator) genAssign(target ast.Expression, value ast.Expression) {
	g.genExpr(value)

	switch t := target.(type) {
	case *ast.Ident:
		if t.Local != nil {
			g.storeToSlot("r0", t.Local)
			return
		}
		g.emit("ldr r1, =%s", t.Global)
		g.storeIndirect(t.Type(), "r0", "r1")

	case *ast.Index:
		g.pushTemp()
		g.genIndexAddr(t)
		g.popTemp("r1")
		g.storeIndirect(t.Type(), "r1", "r0")

	case *ast.Attr:
		g.pushTemp()
		g.genAttrAddr(t)
		g.popTemp("r1")
		g.storeIndirect(t.Type(), "r1", "r0")

	case *ast.Deref:
		g.pushTemp()
		g.genExpr(t.X)
		g.popTemp("r1")
		g.storeIndirect(t.Type(), "r1", "r0")

	default:
		g.fail(target, "assignment target %T reached the generator unchecked", target)
	}
}

// genAugAssign loads the target, applies the operator, and stores the
// result. Index and attribute targets are evaluated twice, matching
// the stack discipline.
func (g *Generator) genAugAssign(s *ast.AugAssign) {
	bin := &ast.BinaryExpr{
		ExprBase: ast.NewExprBase(s.Loc()),
		Op:       s.Op,
		X:        s.Target,
		Y:        s.Value,
	}
	bin.SetType(s.Target.Type())
	g.genAssign(s.Target, bin)
}

func (g *Generator) genTupleUnpack(s *ast.TupleUnpack) {
	g.genExpr(s.Value)
	for i, slot := range s.Slots {
		g.emit("ldr r1, [r0, #%d]", i*4)
		g.storeToSlot("r1", slot)
	}
}

func (g *Generator) genIf(s *ast.If) {
	endLabel := g.newLabel("endif")

	arms := make([]ast.ElifArm, 0, len(s.Elifs)+1)
	arms = append(arms, ast.ElifArm{Cond: s.Cond, Body: s.Then})
	arms = append(arms, s.Elifs...)

	for i, arm := range arms {
		var next string
		if i < len(arms)-1 || len(s.Else) > 0 {
			next = g.newLabel("else")
		} else {
			next = endLabel
		}

		g.genExpr(arm.Cond)
		g.emit("cmp r0, #0")
		g.emit("beq %s", next)
		for _, stmt := range arm.Body {
			g.genStmt(stmt)
		}
		g.emit("b %s", endLabel)

		if next != endLabel {
			g.label(next)
		}
	}

	for _, stmt := range s.Else {
		g.genStmt(stmt)
	}
	g.label(endLabel)
}

func (g *Generator) genWhile(s *ast.While) {
	start := g.newLabel("while")
	end := g.newLabel("endwhile")
	g.loops = append(g.loops, loopLabels{breakLabel: end, continueLabel: start})

	g.label(start)
	g.genExpr(s.Cond)
	g.emit("cmp r0, #0")
	g.emit("beq %s", end)

	for _, stmt := range s.Body {
		g.genStmt(stmt)
	}

	g.emit("b %s", start)
	g.label(end)

	g.loops = g.loops[:len(g.loops)-1]
}

// genForRange emits the counting loop: the stop and step values are
// loaded once before the first iteration.
func (g *Generator) genForRange(s *ast.ForRange) {
	start := g.newLabel("for")
	cont := g.newLabel("forcont")
	end := g.newLabel("endfor")
	g.loops = append(g.loops, loopLabels{breakLabel: end, continueLabel: cont})

	g.genExpr(s.Start)
	g.storeToSlot("r0", s.VarSlot)
	g.genExpr(s.Stop)
	g.storeToSlot("r0", s.StopSlot)
	g.genExpr(s.Step)
	g.storeToSlot("r0", s.StepSlot)

	g.label(start)
	g.loadFromSlot("r0", s.VarSlot)
	g.loadFromSlot("r1", s.StopSlot)

	// A negative step counts down until the variable reaches the
	// stop bound from above.
	down := g.newLabel("fordown")
	body := g.newLabel("forbody")
	g.loadFromSlot("r2", s.StepSlot)
	g.emit("cmp r2, #0")
	g.emit("blt %s", down)
	g.emit("cmp r0, r1")
	g.emit("bge %s", end)
	g.emit("b %s", body)
	g.label(down)
	g.emit("cmp r0, r1")
	g.emit("ble %s", end)
	g.label(body)

	for _, stmt := range s.Body {
		g.genStmt(stmt)
	}

	g.label(cont)
	g.loadFromSlot("r0", s.VarSlot)
	g.loadFromSlot("r1", s.StepSlot)
	g.emit("adds r0, r0, r1")
	g.storeToSlot("r0", s.VarSlot)
	g.emit("b %s", start)

	g.label(end)
	g.loops = g.loops[:len(g.loops)-1]
}

// genForIter walks a heap sequence with the [len, cap, elems...]
// layout by index, unpacking tuples when several variables bind.
func (g *Generator) genForIter(s *ast.ForIter) {
	start := g.newLabel("foriter")
	cont := g.newLabel("foritercont")
	end := g.newLabel("endforiter")
	g.loops = append(g.loops, loopLabels{breakLabel: end, continueLabel: cont})

	g.genExpr(s.Iter)
	g.storeToSlot("r0", s.IterSlot)
	g.emit("ldr r0, [r0]")
	g.storeToSlot("r0", s.LenSlot)
	g.emit("movs r0, #0")
	g.storeToSlot("r0", s.IdxSlot)

	g.label(start)
	g.loadFromSlot("r0", s.IdxSlot)
	g.loadFromSlot("r1", s.LenSlot)
	g.emit("cmp r0, r1")
	g.emit("bge %s", end)

	// element address: iter + 8 + idx*4
	g.loadFromSlot("r1", s.IterSlot)
	g.emit("lsls r0, r0, #2")
	g.emit("adds r0, r1, r0")
	g.emit("ldr r0, [r0, #8]")

	if len(s.VarSlots) == 1 {
		g.storeToSlot("r0", s.VarSlots[0])
	} else {
		// The element is a tuple pointer; spread its cells.
		for i, slot := range s.VarSlots {
			g.emit("ldr r1, [r0, #%d]", i*4)
			g.storeToSlot("r1", slot)
		}
	}

	for _, stmt := range s.Body {
		g.genStmt(stmt)
	}

	g.label(cont)
	g.loadFromSlot("r0", s.IdxSlot)
	g.emit("adds r0, r0, #1")
	g.storeToSlot("r0", s.IdxSlot)
	g.emit("b %s", start)

	g.label(end)
	g.loops = g.loops[:len(g.loops)-1]
}

func (g *Generator) genAssert(s *ast.Assert) {
	ok := g.newLabel("assert_ok")

	g.genExpr(s.Cond)
	g.emit("cmp r0, #0")
	g.emit("bne %s", ok)

	if s.Msg != nil {
		g.genExpr(s.Msg)
		g.emit("bl __pynux_assert_fail_msg")
	} else {
		g.emit("bl __pynux_assert_fail")
	}

	g.label(ok)
}

// genTry emits the block structure of try/except/else/finally. The
// runtime raise stub halts, so the error flag stays zero and handlers
// are reached only through the structural check; the finally block
// runs on the non-exceptional path.
func (g *Generator) genTry(s *ast.Try) {
	handler := g.newLabel("except")
	finally := g.newLabel("finally")

	g.emit("movs r0, #0")
	g.storeToSlot("r0", s.FlagSlot)

	for _, stmt := range s.Body {
		g.genStmt(stmt)
	}

	g.loadFromSlot("r0", s.FlagSlot)
	g.emit("cmp r0, #0")
	g.emit("bne %s", handler)

	for _, stmt := range s.Else {
		g.genStmt(stmt)
	}
	g.emit("b %s", finally)

	g.label(handler)
	for i := range s.Handlers {
		h := &s.Handlers[i]
		if h.Slot != nil {
			g.loadFromSlot("r0", s.FlagSlot)
			g.storeToSlot("r0", h.Slot)
		}
		for _, stmt := range h.Body {
			g.genStmt(stmt)
		}
		g.emit("movs r0, #0")
		g.storeToSlot("r0", s.FlagSlot)
		break // only the first handler participates in the stub model
	}

	g.label(finally)
	for _, stmt := range s.Finally {
		g.genStmt(stmt)
	}
}
