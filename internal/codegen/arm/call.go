package arm

import (
	"fmt"

	"pynux/internal/frontend/ast"
	"pynux/internal/types"
)

// genCall lowers a call. Arguments evaluate left to right; the first
// four travel in r0..r3 and the remainder in a pre-allocated outgoing
// area so arg[4] sits at [sp, #0] at the bl.
func (g *Generator) genCall(e *ast.CallExpr) {
	if e.Intrinsic != "" {
		g.genIntrinsic(e)
		return
	}

	indirect := e.Symbol == ""
	if indirect {
		// Evaluate the callee first, keeping left-to-right order of
		// the whole call expression.
		g.genExpr(e.Fn)
		g.pushTemp()
	}

	nreg := len(e.Args)
	if nreg > 4 {
		nreg = 4
	}
	nstack := len(e.Args) - nreg

	for i := 0; i < nreg; i++ {
		g.genExpr(e.Args[i])
		g.pushTemp()
	}

	stackArea := 0
	if nstack > 0 {
		stackArea = (nstack*4 + 7) &^ 7
		g.emit("sub sp, sp, #%d", stackArea)
		for i := 0; i < nstack; i++ {
			g.genExpr(e.Args[4+i])
			g.emit("str r0, [sp, #%d]", i*4)
		}
		// register arguments wait above the outgoing area
		for i := 0; i < nreg; i++ {
			g.emit("ldr r%d, [sp, #%d]", i, stackArea+(nreg-1-i)*8)
		}
	} else {
		for i := nreg - 1; i >= 0; i-- {
			g.popTemp(fmt.Sprintf("r%d", i))
		}
	}

	if indirect {
		off := stackArea + nreg*8
		if nstack > 0 {
			g.emit("ldr r4, [sp, #%d]", off)
			g.emit("mov ip, r4")
		} else {
			g.emit("pop {r4, r5}")
			g.emit("mov ip, r4")
		}
		g.emit("blx ip")
	} else {
		g.emit("bl %s", e.Symbol)
	}

	if nstack > 0 {
		cleanup := stackArea + nreg*8
		if indirect {
			cleanup += 8
		}
		g.emit("add sp, sp, #%d", cleanup)
	}
}

// genIntrinsic dispatches checker-recognized built-ins.
func (g *Generator) genIntrinsic(e *ast.CallExpr) {
	switch e.Intrinsic {
	case "print":
		g.genPrint(e.Args)
	case "input":
		g.genInput(e.Args)
	case "len":
		g.genLen(e.Args[0])
	case "ord":
		g.genOrd(e.Args[0])
	case "chr":
		g.genExpr(e.Args[0])
		g.emit("uxtb r0, r0")
	case "abs":
		g.genAbs(e.Args[0])
	case "min":
		g.genMinMax(e.Args, true)
	case "max":
		g.genMinMax(e.Args, false)
	default:
		g.genMachineIntrinsic(e)
	}
}

// genPrint emits one print helper call per argument, chosen by the
// argument's static type, with space separators and a trailing
// newline.
func (g *Generator) genPrint(args []ast.Expression) {
	for i, arg := range args {
		if i > 0 {
			g.emit("movs r0, #32")
			g.emit("bl uart_putc")
		}
		g.genPrintValue(arg)
	}
	g.emit("movs r0, #10")
	g.emit("bl uart_putc")
}

func (g *Generator) genPrintValue(arg ast.Expression) {
	if fstr, ok := arg.(*ast.FString); ok {
		g.genFStringPrint(fstr)
		return
	}

	t := arg.Type()
	switch {
	case types.IsStr(t):
		g.genExpr(arg)
		g.emit("bl print_str")
	case t.Equals(types.TypeChar):
		g.genExpr(arg)
		g.emit("bl uart_putc")
	case t.Equals(types.TypeBool):
		g.genPrintBool(arg)
	default:
		g.genExpr(arg)
		g.emit("bl print_int")
	}
}

func (g *Generator) genPrintBool(arg ast.Expression) {
	trueLabel := g.internString("True")
	falseLabel := g.internString("False")

	isFalse := g.newLabel("bfalse")
	done := g.newLabel("bdone")
	g.genExpr(arg)
	g.emit("cmp r0, #0")
	g.emit("beq %s", isFalse)
	g.emit("ldr r0, =%s", trueLabel)
	g.emit("b %s", done)
	g.label(isFalse)
	g.emit("ldr r0, =%s", falseLabel)
	g.label(done)
	g.emit("bl print_str")
}

// genFStringPrint emits one call per fragment: print_str for literal
// text, a typed printer for each interpolated expression.
func (g *Generator) genFStringPrint(fstr *ast.FString) {
	for _, part := range fstr.Parts {
		if part.Expr == nil {
			if part.Text == "" {
				continue
			}
			g.emit("ldr r0, =%s", g.internString(part.Text))
			g.emit("bl print_str")
			continue
		}
		g.genPrintValue(part.Expr)
	}
}

func (g *Generator) genInput(args []ast.Expression) {
	if len(args) > 0 {
		g.genExpr(args[0])
		g.emit("bl print_str")
	}
	g.emit("movs r0, #128")
	g.emit("bl malloc")
	g.pushTemp()
	g.emit("bl __pynux_read_line")
	g.popTemp("r0")
}

// genLen resolves compile-time lengths where it can, falling back to
// strlen or the list header.
func (g *Generator) genLen(arg ast.Expression) {
	if lit, ok := arg.(*ast.StrLit); ok {
		g.loadConst("r0", int64(len(lit.Value)))
		return
	}
	switch t := arg.Type().(type) {
	case *types.Array:
		g.loadConst("r0", int64(t.Len))
	case *types.List:
		g.genExpr(arg)
		g.emit("ldr r0, [r0]")
	default:
		g.genExpr(arg)
		g.emit("bl __pynux_strlen")
	}
}

func (g *Generator) genOrd(arg ast.Expression) {
	g.genExpr(arg)
	if types.IsStr(arg.Type()) {
		g.emit("ldrb r0, [r0]")
	}
}

func (g *Generator) genAbs(arg ast.Expression) {
	g.genExpr(arg)
	if g.target.hasIT() {
		g.emit("cmp r0, #0")
		g.emit("it lt")
		g.emit("rsblt r0, r0, #0")
		return
	}
	done := g.newLabel("absdone")
	g.emit("cmp r0, #0")
	g.emit("bge %s", done)
	g.emit("rsbs r0, r0, #0")
	g.label(done)
}

func (g *Generator) genMinMax(args []ast.Expression, isMin bool) {
	g.genExpr(args[0])
	for _, arg := range args[1:] {
		g.pushTemp()
		g.genExpr(arg)
		g.popTemp("r1")
		// r1 = best so far, r0 = candidate
		g.emit("cmp r0, r1")
		if g.target.hasIT() {
			if isMin {
				g.emit("it ge")
				g.emit("movge r0, r1")
			} else {
				g.emit("it le")
				g.emit("movle r0, r1")
			}
			continue
		}
		keep := g.newLabel("mm")
		if isMin {
			g.emit("blt %s", keep)
		} else {
			g.emit("bgt %s", keep)
		}
		g.emit("mov r0, r1")
		g.label(keep)
	}
}
