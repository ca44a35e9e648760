package arm

import (
	"fmt"
	"math"
	"strconv"

	"pynux/internal/frontend/ast"
	"pynux/internal/types"
)

// float32Bits is the IEEE 754 single-precision bit pattern of a float
// literal, stored as an integer word.
func float32Bits(v float64) uint32 {
	return math.Float32bits(float32(v))
}

// genExpr lowers an expression to a sequence leaving its value in r0.
// Sub-expressions evaluate left to right; binary operations push the
// LHS, evaluate the RHS, and pop the LHS into r1.
func (g *Generator) genExpr(e ast.Expression) {
	switch e := e.(type) {
	case *ast.IntLit:
		g.loadConst("r0", e.Value)

	case *ast.FloatLit:
		g.emit("ldr r0, =%d  @ float %g", float32Bits(e.Value), e.Value)

	case *ast.BoolLit:
		if e.Value {
			g.emit("movs r0, #1")
		} else {
			g.emit("movs r0, #0")
		}

	case *ast.CharLit:
		g.emit("movs r0, #%d", e.Value)

	case *ast.StrLit:
		g.emit("ldr r0, =%s", g.internString(e.Value))

	case *ast.NoneLit:
		g.emit("movs r0, #0")

	case *ast.FString:
		// As a value the raw body is interned; printing contexts
		// expand the parts instead.
		g.emit("ldr r0, =%s", g.internString(e.Raw))

	case *ast.Ident:
		g.genIdent(e)

	case *ast.BinaryExpr:
		g.genBinary(e)

	case *ast.UnaryExpr:
		g.genUnary(e)

	case *ast.AddressOf:
		g.genAddr(e.X)

	case *ast.Deref:
		g.genExpr(e.X)
		g.loadIndirect(e.Type(), "r0", "r0")

	case *ast.Index:
		g.genIndexAddr(e)
		g.loadIndirect(e.Type(), "r0", "r0")

	case *ast.Slice:
		g.genSlice(e)

	case *ast.Attr:
		g.genAttrAddr(e)
		g.loadIndirect(e.Type(), "r0", "r0")

	case *ast.CallExpr:
		g.genCall(e)

	case *ast.Ternary:
		elseLabel := g.newLabel("else")
		endLabel := g.newLabel("endif")
		g.genExpr(e.Cond)
		g.emit("cmp r0, #0")
		g.emit("beq %s", elseLabel)
		g.genExpr(e.Then)
		g.emit("b %s", endLabel)
		g.label(elseLabel)
		g.genExpr(e.Else)
		g.label(endLabel)

	case *ast.Cast:
		g.genExpr(e.X)
		g.genCastAdjust(e.To)

	case *ast.Sizeof:
		g.loadConst("r0", int64(e.Of.Size()))

	case *ast.AsmExpr:
		g.genAsmText(e.Code)

	case *ast.ListLit:
		g.genListLit(e)

	case *ast.DictLit:
		g.genDictLit(e)

	case *ast.TupleLit:
		g.genTupleLit(e)

	case *ast.Comp:
		g.genComp(e)

	case *ast.StructLit:
		g.genStructLit(e)

	default:
		g.fail(e, "expression %T reached the generator unchecked", e)
	}
}

func (g *Generator) genIdent(e *ast.Ident) {
	switch {
	case e.Local != nil:
		g.loadFromSlot("r0", e.Local)
	case e.Global != "":
		t := e.Type()
		g.emit("ldr r0, =%s", e.Global)
		if !isAggregate(t) {
			g.loadIndirect(t, "r0", "r0")
		}
	case e.FuncRef != "":
		g.emit("ldr r0, =%s", e.FuncRef)
	default:
		g.fail(e, "identifier %s reached the generator unbound", e.Name)
	}
}

// genAddr leaves the address of an lvalue in r0.
func (g *Generator) genAddr(e ast.Expression) {
	switch e := e.(type) {
	case *ast.Ident:
		switch {
		case e.Local != nil:
			g.emit("add r0, r7, #%d", e.Local.Offset)
		case e.Global != "":
			g.emit("ldr r0, =%s", e.Global)
		default:
			g.fail(e, "cannot take the address of %s", e.Name)
		}
	case *ast.Index:
		g.genIndexAddr(e)
	case *ast.Attr:
		g.genAttrAddr(e)
	case *ast.Deref:
		g.genExpr(e.X)
	default:
		g.fail(e, "address of a non-lvalue reached the generator")
	}
}

// genIndexAddr computes &base[idx] in r0, scaling by the element
// size. Negative indices count from the end of the sequence.
func (g *Generator) genIndexAddr(e *ast.Index) {
	elem := e.Type()
	size := elem.Size()
	if size == 0 {
		size = 4
	}

	g.genExpr(e.X)
	g.pushTemp()
	g.genExpr(e.Idx)
	g.popTemp("r1") // r1 = base, r0 = idx

	xt := e.X.Type()
	if arr, ok := xt.(*types.Array); ok {
		done := g.newLabel("idxdone")
		g.emit("cmp r0, #0")
		g.emit("bge %s", done)
		g.loadConst("r2", int64(arr.Len))
		g.emit("adds r0, r0, r2")
		g.label(done)
	} else if types.IsStr(xt) {
		done := g.newLabel("idxdone")
		g.emit("cmp r0, #0")
		g.emit("bge %s", done)
		g.emit("push {r0, r1}")
		g.emit("mov r0, r1")
		g.emit("bl __pynux_strlen")
		g.emit("pop {r1, r2}") // r1 = idx, r2 = base
		g.emit("adds r0, r0, r1")
		g.emit("mov r1, r2")
		g.label(done)
	}

	g.scaleReg("r0", size)
	g.emit("adds r0, r1, r0")
}

// scaleReg multiplies reg by an element size.
func (g *Generator) scaleReg(reg string, size int) {
	switch size {
	case 1:
	case 2:
		g.emit("lsls %s, %s, #1", reg, reg)
	case 4:
		g.emit("lsls %s, %s, #2", reg, reg)
	case 8:
		g.emit("lsls %s, %s, #3", reg, reg)
	default:
		g.loadConst("r3", int64(size))
		g.emit("muls %s, r3, %s", reg, reg)
	}
}

func (g *Generator) genAttrAddr(e *ast.Attr) {
	if e.Indirect {
		g.genExpr(e.X)
	} else {
		g.genAddr(e.X)
	}
	if e.Field.Offset != 0 {
		g.emit("adds r0, r0, #%d", e.Field.Offset)
	}
}

// genSlice lowers s[a:b:c] to __pynux_slice(s, a, b, c); a missing
// high bound passes the -1 "to end" sentinel.
func (g *Generator) genSlice(e *ast.Slice) {
	g.genExpr(e.X)
	g.pushTemp()

	if e.Low != nil {
		g.genExpr(e.Low)
	} else {
		g.emit("movs r0, #0")
	}
	g.pushTemp()

	if e.High != nil {
		g.genExpr(e.High)
	} else {
		g.emit("ldr r0, =-1")
	}
	g.pushTemp()

	if e.Step != nil {
		g.genExpr(e.Step)
	} else {
		g.emit("movs r0, #1")
	}
	// The step waits in r4 while the other arguments are popped.
	g.emit("mov r4, r0")
	g.popTemp("r2")
	g.popTemp("r1")
	g.popTemp("r0")
	g.emit("mov r3, r4")
	g.emit("bl __pynux_slice")
}

func (g *Generator) genBinary(e *ast.BinaryExpr) {
	switch e.Op {
	case ast.AND:
		g.genShortCircuit(e, true)
		return
	case ast.OR:
		g.genShortCircuit(e, false)
		return
	}

	g.genExpr(e.X)
	g.pushTemp()
	g.genExpr(e.Y)

	switch e.Op {
	case ast.DIV, ast.IDIV, ast.MOD, ast.POW, ast.IN, ast.NOTIN:
		// helpers take the LHS in r0 and the RHS in r1
		g.emit("mov r1, r0")
		g.popTemp("r0")
		g.genBinaryCall(e)
		return
	}

	g.popTemp("r1") // r1 = LHS, r0 = RHS

	switch e.Op {
	case ast.ADD:
		if pt, ok := e.Type().(*types.Pointer); ok {
			g.genPointerAdd(e, pt)
			return
		}
		g.emit("adds r0, r1, r0")
	case ast.SUB:
		if pt, ok := e.Type().(*types.Pointer); ok {
			g.genPointerSub(e, pt)
			return
		}
		if isPtrDiff(e) {
			g.emit("subs r0, r1, r0")
			g.ptrDiffScale(e)
			return
		}
		g.emit("subs r0, r1, r0")
	case ast.MUL:
		g.emit("muls r0, r1, r0")
	case ast.BITAND:
		g.emit("ands r0, r0, r1")
	case ast.BITOR:
		g.emit("orrs r0, r0, r1")
	case ast.BITXOR:
		g.emit("eors r0, r0, r1")
	case ast.SHL:
		g.emit("mov r2, r0")
		g.emit("mov r0, r1")
		g.emit("lsls r0, r0, r2")
	case ast.SHR:
		g.emit("mov r2, r0")
		g.emit("mov r0, r1")
		if types.IsSigned(e.Type()) {
			g.emit("asrs r0, r0, r2")
		} else {
			g.emit("lsrs r0, r0, r2")
		}
	case ast.EQ, ast.NEQ, ast.LT, ast.LTE, ast.GT, ast.GTE, ast.IS, ast.ISNOT:
		g.genCompare(e)
	default:
		g.fail(e, "operator %s reached the generator unchecked", e.Op)
	}
}

// genBinaryCall finishes division, modulo, power, and membership with
// the LHS in r0 and the RHS in r1.
func (g *Generator) genBinaryCall(e *ast.BinaryExpr) {
	unsigned := !types.IsSigned(e.X.Type())

	switch e.Op {
	case ast.DIV, ast.IDIV:
		if unsigned {
			g.emit("bl __aeabi_uidivmod")
		} else {
			g.emit("bl __aeabi_idiv")
		}
	case ast.MOD:
		if unsigned {
			g.emit("bl __aeabi_uidivmod")
		} else {
			g.emit("bl __aeabi_idivmod")
		}
		g.emit("mov r0, r1")
	case ast.POW:
		g.emit("bl __pynux_pow")
	case ast.IN:
		g.emit("bl __pynux_in")
	case ast.NOTIN:
		g.emit("bl __pynux_in")
		g.emit("movs r1, #1")
		g.emit("eors r0, r0, r1")
	}
}

// genPointerAdd scales the integer operand by the element size.
// Either side may be the pointer; r1 holds the LHS.
func (g *Generator) genPointerAdd(e *ast.BinaryExpr, pt *types.Pointer) {
	size := pt.Elem.Size()
	if size == 0 {
		size = 1
	}
	if _, ok := e.X.Type().(*types.Pointer); ok {
		g.scaleReg("r0", size) // r0 is the integer
	} else {
		// integer + pointer: scale the LHS in r1
		g.emit("mov r2, r0")
		g.emit("mov r0, r1")
		g.scaleReg("r0", size)
		g.emit("mov r1, r2")
	}
	g.emit("adds r0, r1, r0")
}

func (g *Generator) genPointerSub(e *ast.BinaryExpr, pt *types.Pointer) {
	size := pt.Elem.Size()
	if size == 0 {
		size = 1
	}
	g.scaleReg("r0", size)
	g.emit("subs r0, r1, r0")
}

func isPtrDiff(e *ast.BinaryExpr) bool {
	_, xp := e.X.Type().(*types.Pointer)
	_, yp := e.Y.Type().(*types.Pointer)
	return xp && yp
}

func (g *Generator) ptrDiffScale(e *ast.BinaryExpr) {
	pt := e.X.Type().(*types.Pointer)
	size := pt.Elem.Size()
	switch size {
	case 0, 1:
	case 2:
		g.emit("asrs r0, r0, #1")
	case 4:
		g.emit("asrs r0, r0, #2")
	case 8:
		g.emit("asrs r0, r0, #3")
	default:
		g.loadConst("r1", int64(size))
		g.emit("bl __aeabi_idiv")
	}
}

var signedCond = map[ast.BinOp][2]string{
	ast.EQ:    {"eq", "ne"},
	ast.NEQ:   {"ne", "eq"},
	ast.IS:    {"eq", "ne"},
	ast.ISNOT: {"ne", "eq"},
	ast.LT:    {"lt", "ge"},
	ast.LTE:   {"le", "gt"},
	ast.GT:    {"gt", "le"},
	ast.GTE:   {"ge", "lt"},
}

var unsignedCond = map[ast.BinOp][2]string{
	ast.EQ:    {"eq", "ne"},
	ast.NEQ:   {"ne", "eq"},
	ast.IS:    {"eq", "ne"},
	ast.ISNOT: {"ne", "eq"},
	ast.LT:    {"lo", "hs"},
	ast.LTE:   {"ls", "hi"},
	ast.GT:    {"hi", "ls"},
	ast.GTE:   {"hs", "lo"},
}

// genCompare materializes a comparison of r1 (LHS) against r0 (RHS)
// as 0/1 in r0: IT blocks on Thumb-2 targets, branches on v6-M.
func (g *Generator) genCompare(e *ast.BinaryExpr) {
	conds := signedCond
	if !types.IsSigned(e.X.Type()) {
		conds = unsignedCond
	}
	cond := conds[e.Op]

	g.emit("cmp r1, r0")
	if g.target.hasIT() {
		g.emit("ite %s", cond[0])
		g.emit("mov%s r0, #1", cond[0])
		g.emit("mov%s r0, #0", cond[1])
		return
	}

	trueLabel := g.newLabel("cmpt")
	doneLabel := g.newLabel("cmpd")
	g.emit("b%s %s", cond[0], trueLabel)
	g.emit("movs r0, #0")
	g.emit("b %s", doneLabel)
	g.label(trueLabel)
	g.emit("movs r0, #1")
	g.label(doneLabel)
}

// genShortCircuit lowers and/or without evaluating the RHS when the
// LHS decides the result.
func (g *Generator) genShortCircuit(e *ast.BinaryExpr, isAnd bool) {
	short := g.newLabel("sc")
	done := g.newLabel("scdone")

	g.genExpr(e.X)
	g.emit("cmp r0, #0")
	if isAnd {
		g.emit("beq %s", short)
	} else {
		g.emit("bne %s", short)
	}
	g.genExpr(e.Y)
	g.emit("cmp r0, #0")
	if isAnd {
		g.emit("beq %s", short)
	} else {
		g.emit("bne %s", short)
	}
	if isAnd {
		g.emit("movs r0, #1")
	} else {
		g.emit("movs r0, #0")
	}
	g.emit("b %s", done)
	g.label(short)
	if isAnd {
		g.emit("movs r0, #0")
	} else {
		g.emit("movs r0, #1")
	}
	g.label(done)
}

func (g *Generator) genUnary(e *ast.UnaryExpr) {
	g.genExpr(e.X)

	switch e.Op {
	case ast.NEG:
		g.emit("rsbs r0, r0, #0")
	case ast.NOT:
		if g.target.hasIT() {
			g.emit("cmp r0, #0")
			g.emit("ite eq")
			g.emit("moveq r0, #1")
			g.emit("movne r0, #0")
		} else {
			trueLabel := g.newLabel("nott")
			doneLabel := g.newLabel("notd")
			g.emit("cmp r0, #0")
			g.emit("beq %s", trueLabel)
			g.emit("movs r0, #0")
			g.emit("b %s", doneLabel)
			g.label(trueLabel)
			g.emit("movs r0, #1")
			g.label(doneLabel)
		}
	case ast.BITNOT:
		g.emit("mvns r0, r0")
	}
}

// genCastAdjust truncates or extends r0 for a narrowing cast. Casts
// are otherwise unchecked bit patterns.
func (g *Generator) genCastAdjust(to types.Type) {
	prim, ok := to.(*types.Primitive)
	if !ok {
		return
	}
	switch prim.String() {
	case "int8":
		g.emit("sxtb r0, r0")
	case "uint8", "char":
		g.emit("uxtb r0, r0")
	case "int16":
		g.emit("sxth r0, r0")
	case "uint16":
		g.emit("uxth r0, r0")
	case "bool":
		if g.target.hasIT() {
			g.emit("cmp r0, #0")
			g.emit("ite ne")
			g.emit("movne r0, #1")
			g.emit("moveq r0, #0")
		} else {
			done := g.newLabel("bcast")
			g.emit("cmp r0, #0")
			g.emit("beq %s", done)
			g.emit("movs r0, #1")
			g.label(done)
		}
	}
}

// genAsmText copies inline assembly verbatim, keeping labels at
// column zero and indenting instructions.
func (g *Generator) genAsmText(code string) {
	for _, line := range splitLines(code) {
		trimmed := trimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed[len(trimmed)-1] == ':' || trimmed[0] == '.' {
			g.raw(trimmed)
		} else {
			g.emit("%s", trimmed)
		}
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// genListLit heap-allocates [len, cap, elems...].
func (g *Generator) genListLit(e *ast.ListLit) {
	n := len(e.Elems)
	g.loadConst("r0", int64((n+2)*4))
	g.emit("bl malloc")
	g.pushTemp()

	g.loadConst("r1", int64(n))
	g.emit("str r1, [r0]")
	g.emit("str r1, [r0, #4]")

	for i, elem := range e.Elems {
		g.genExpr(elem)
		g.emit("ldr r1, [sp]") // list pointer
		g.emit("str r0, [r1, #%d]", (i+2)*4)
	}

	g.popTemp("r0")
}

// genDictLit emits constant dictionaries into .data as
// [count, k0, v0, ...]; non-constant ones build on the heap.
func (g *Generator) genDictLit(e *ast.DictLit) {
	if blob, ok := g.constDictBlob(e); ok {
		g.emit("ldr r0, =%s", blob)
		return
	}

	n := len(e.Keys)
	g.loadConst("r0", int64((n*2+1)*4))
	g.emit("bl malloc")
	g.pushTemp()

	g.loadConst("r1", int64(n))
	g.emit("str r1, [r0]")

	for i := range e.Keys {
		g.genExpr(e.Keys[i])
		g.emit("ldr r1, [sp]")
		g.emit("str r0, [r1, #%d]", (i*2+1)*4)
		g.genExpr(e.Vals[i])
		g.emit("ldr r1, [sp]")
		g.emit("str r0, [r1, #%d]", (i*2+2)*4)
	}

	g.popTemp("r0")
}

func (g *Generator) constDictBlob(e *ast.DictLit) (string, bool) {
	words := []int64{int64(len(e.Keys))}
	for i := range e.Keys {
		k, ok := constInitializer(e.Keys[i])
		if !ok {
			return "", false
		}
		v, ok := constInitializer(e.Vals[i])
		if !ok {
			return "", false
		}
		words = append(words, k, v)
	}

	label := g.nextDataLabel()
	g.data = append(g.data, label+":")
	for _, w := range words {
		g.data = append(g.data, "    .word "+strconv.FormatInt(w, 10))
	}
	g.data = append(g.data, "    .align 2")
	return label, true
}

func (g *Generator) nextDataLabel() string {
	label := fmt.Sprintf(".LD%d", g.dataCount)
	g.dataCount++
	return label
}

func (g *Generator) genTupleLit(e *ast.TupleLit) {
	n := len(e.Elems)
	if n == 0 {
		g.emit("movs r0, #0")
		return
	}
	g.loadConst("r0", int64(n*4))
	g.emit("bl malloc")
	g.pushTemp()

	for i, elem := range e.Elems {
		g.genExpr(elem)
		g.emit("ldr r1, [sp]")
		g.emit("str r0, [r1, #%d]", i*4)
	}

	g.popTemp("r0")
}

// genComp builds a list comprehension over a range iterable.
func (g *Generator) genComp(e *ast.Comp) {
	call := e.Iter.(*ast.CallExpr)

	// capacity for up to 256 elements plus the [len, cap] header
	g.loadConst("r0", 1032)
	g.emit("bl malloc")
	g.pushTemp()
	g.emit("movs r1, #0")
	g.emit("str r1, [r0]")
	g.loadConst("r1", 256)
	g.emit("str r1, [r0, #4]")

	if len(call.Args) == 1 {
		g.emit("movs r0, #0")
		g.storeToSlot("r0", e.VarSlot)
		g.genExpr(call.Args[0])
	} else {
		g.genExpr(call.Args[0])
		g.storeToSlot("r0", e.VarSlot)
		g.genExpr(call.Args[1])
	}
	g.storeToSlot("r0", e.EndSlot)

	start := g.newLabel("comp")
	cont := g.newLabel("compcont")
	end := g.newLabel("endcomp")

	g.label(start)
	g.loadFromSlot("r0", e.VarSlot)
	g.loadFromSlot("r1", e.EndSlot)
	g.emit("cmp r0, r1")
	g.emit("bge %s", end)

	if e.Cond != nil {
		g.genExpr(e.Cond)
		g.emit("cmp r0, #0")
		g.emit("beq %s", cont)
	}

	g.genExpr(e.Elem)
	// append: list[2 + len] = value; len += 1
	g.emit("ldr r1, [sp]")
	g.emit("ldr r2, [r1]")
	g.emit("adds r3, r2, #2")
	g.emit("lsls r3, r3, #2")
	g.emit("adds r3, r1, r3")
	g.emit("str r0, [r3]")
	g.emit("adds r2, r2, #1")
	g.emit("str r2, [r1]")

	g.label(cont)
	g.loadFromSlot("r0", e.VarSlot)
	g.emit("adds r0, r0, #1")
	g.storeToSlot("r0", e.VarSlot)
	g.emit("b %s", start)

	g.label(end)
	g.popTemp("r0")
}

// genStructLit fills the literal's backing slot field by field and
// yields its address.
func (g *Generator) genStructLit(e *ast.StructLit) {
	base := e.Slot.Offset
	for _, kw := range e.Fields {
		f, _ := e.Struct.Field(kw.Name)
		g.genExpr(kw.Value)
		g.emit("add r1, r7, #%d", base+f.Offset)
		g.storeIndirect(f.Type, "r0", "r1")
	}
	g.emit("add r0, r7, #%d", base)
}
