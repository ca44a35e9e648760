package arm

import (
	"pynux/internal/frontend/ast"
)

// genMachineIntrinsic lowers the instruction-level intrinsics:
// barriers, core hints, bit tricks, interrupt masking, and
// ldrex/strex sequences.
func (g *Generator) genMachineIntrinsic(e *ast.CallExpr) {
	name := e.Intrinsic

	switch name {
	case "dmb", "dsb", "isb", "wfi", "wfe", "sev":
		g.emit("%s", name)
		return
	case "clrex":
		g.requireV7(e, "clrex")
		g.emit("clrex")
		return
	case "critical_enter":
		g.emit("mrs r0, primask")
		g.emit("cpsid i")
		return
	case "critical_exit":
		g.genExpr(e.Args[0])
		g.emit("msr primask, r0")
		return
	}

	switch name {
	case "clz", "rbit":
		g.requireV7(e, name)
		g.genExpr(e.Args[0])
		g.emit("%s r0, r0", name)
		return
	case "rev", "rev16":
		g.genExpr(e.Args[0])
		g.emit("%s r0, r0", name)
		return
	}

	switch name {
	case "atomic_load":
		g.genExpr(e.Args[0])
		g.emit("ldr r0, [r0]")
		return
	case "atomic_store":
		g.genTwoArgs(e)
		g.emit("str r1, [r0]")
		return
	case "atomic_add", "atomic_sub":
		g.requireV7(e, name)
		g.genTwoArgs(e)
		retry := g.newLabel("atomic")
		g.label(retry)
		g.emit("ldrex r2, [r0]")
		if name == "atomic_add" {
			g.emit("adds r2, r2, r1")
		} else {
			g.emit("subs r2, r2, r1")
		}
		g.emit("strex r3, r2, [r0]")
		g.emit("cmp r3, #0")
		g.emit("bne %s", retry)
		g.emit("mov r0, r2")
		return
	case "atomic_swap":
		g.requireV7(e, name)
		g.genTwoArgs(e)
		retry := g.newLabel("swap")
		g.label(retry)
		g.emit("ldrex r2, [r0]")
		g.emit("strex r3, r1, [r0]")
		g.emit("cmp r3, #0")
		g.emit("bne %s", retry)
		g.emit("mov r0, r2")
		return
	case "atomic_cas":
		g.requireV7(e, name)
		g.genThreeArgs(e)
		retry := g.newLabel("cas")
		failed := g.newLabel("casfail")
		done := g.newLabel("casdone")
		g.label(retry)
		g.emit("ldrex r3, [r0]")
		g.emit("cmp r3, r1")
		g.emit("bne %s", failed)
		g.emit("strex r3, r2, [r0]")
		g.emit("cmp r3, #0")
		g.emit("bne %s", retry)
		g.emit("movs r0, #1")
		g.emit("b %s", done)
		g.label(failed)
		g.emit("clrex")
		g.emit("movs r0, #0")
		g.label(done)
		return
	}

	switch name {
	case "bit_set":
		g.genTwoArgs(e)
		g.emit("movs r2, #1")
		g.emit("lsls r2, r2, r1")
		g.emit("orrs r0, r0, r2")
	case "bit_clear":
		g.genTwoArgs(e)
		g.emit("movs r2, #1")
		g.emit("lsls r2, r2, r1")
		g.emit("bics r0, r0, r2")
	case "bit_toggle":
		g.genTwoArgs(e)
		g.emit("movs r2, #1")
		g.emit("lsls r2, r2, r1")
		g.emit("eors r0, r0, r2")
	case "bit_check":
		g.genTwoArgs(e)
		g.emit("lsrs r0, r0, r1")
		g.emit("movs r2, #1")
		g.emit("ands r0, r0, r2")
	case "bits_get":
		g.genThreeArgs(e)
		g.emit("lsrs r0, r0, r1")
		g.emit("movs r3, #1")
		g.emit("lsls r3, r3, r2")
		g.emit("subs r3, r3, #1")
		g.emit("ands r0, r0, r3")
	case "bits_set":
		g.genFourArgs(e)
		g.emit("movs r4, #1")
		g.emit("lsls r4, r4, r2")
		g.emit("subs r4, r4, #1")
		g.emit("ands r3, r3, r4")
		g.emit("lsls r3, r3, r1")
		g.emit("lsls r4, r4, r1")
		g.emit("bics r0, r0, r4")
		g.emit("orrs r0, r0, r3")
	default:
		g.fail(e, "intrinsic %s reached the generator unchecked", name)
	}
}

// requireV7 rejects instructions absent from the v6-M subset.
func (g *Generator) requireV7(e ast.Expression, name string) {
	if g.target == CortexM0Plus {
		g.fail(e, "%s is not available on cortex-m0plus", name)
	}
}

func (g *Generator) genTwoArgs(e *ast.CallExpr) {
	g.genExpr(e.Args[0])
	g.pushTemp()
	g.genExpr(e.Args[1])
	g.emit("mov r1, r0")
	g.popTemp("r0")
}

func (g *Generator) genThreeArgs(e *ast.CallExpr) {
	g.genExpr(e.Args[0])
	g.pushTemp()
	g.genExpr(e.Args[1])
	g.pushTemp()
	g.genExpr(e.Args[2])
	g.emit("mov r2, r0")
	g.popTemp("r1")
	g.popTemp("r0")
}

func (g *Generator) genFourArgs(e *ast.CallExpr) {
	g.genExpr(e.Args[0])
	g.pushTemp()
	g.genExpr(e.Args[1])
	g.pushTemp()
	g.genExpr(e.Args[2])
	g.pushTemp()
	g.genExpr(e.Args[3])
	// The last argument waits in r4 while the others are popped.
	g.emit("mov r4, r0")
	g.popTemp("r2")
	g.popTemp("r1")
	g.popTemp("r0")
	g.emit("mov r3, r4")
}
