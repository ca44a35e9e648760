package arm

import (
	"fmt"
	"path/filepath"
	"strings"

	"pynux/internal/diagnostics"
	"pynux/internal/frontend/ast"
	"pynux/internal/semantics/symbols"
	"pynux/internal/source"
	"pynux/internal/types"
)

// Target selects the .cpu directive and the legal instruction set.
// cortex-m0plus has no IT blocks, no movw, no clz/rbit, and no
// exclusives; the generator emits branch sequences instead and
// rejects what cannot be expressed.
type Target string

const (
	CortexM3     Target = "cortex-m3"
	CortexM0Plus Target = "cortex-m0plus"
	CortexM4     Target = "cortex-m4"
)

// ValidTarget reports whether name is a supported --target value.
func ValidTarget(name string) bool {
	switch Target(name) {
	case CortexM3, CortexM0Plus, CortexM4:
		return true
	}
	return false
}

func (t Target) hasIT() bool { return t != CortexM0Plus }

// loopLabels tracks break/continue targets.
type loopLabels struct {
	breakLabel    string
	continueLabel string
}

// Generator emits GAS-syntax ARM Thumb-2 assembly for one checked
// translation unit. All state is per-unit; nothing survives a
// compile.
type Generator struct {
	target Target
	file   string
	mod    *symbols.Module

	text strings.Builder
	data []string
	bss  []string

	strLabels map[string]string
	strOrder  []string
	dataCount int

	// per-function state
	fnName     string
	frameSize  int
	interrupt  bool
	labelCount int
	loops      []loopLabels
	defers     []ast.Statement
}

// New creates a generator for the given target CPU.
func New(target Target, file string, mod *symbols.Module) *Generator {
	return &Generator{
		target:    target,
		file:      file,
		mod:       mod,
		strLabels: make(map[string]string),
	}
}

func (g *Generator) failAt(pos source.Position, format string, args ...any) {
	panic(diagnostics.Errorf(diagnostics.Emit, g.file, pos, format, args...))
}

func (g *Generator) fail(n ast.Node, format string, args ...any) {
	g.failAt(n.Loc().Start, format, args...)
}

func (g *Generator) emit(format string, args ...any) {
	g.text.WriteString("    ")
	fmt.Fprintf(&g.text, format, args...)
	g.text.WriteByte('\n')
}

func (g *Generator) label(name string) {
	g.text.WriteString(name)
	g.text.WriteString(":\n")
}

func (g *Generator) raw(line string) {
	g.text.WriteString(line)
	g.text.WriteByte('\n')
}

// newLabel returns a fresh label scoped to the current function.
func (g *Generator) newLabel(hint string) string {
	g.labelCount++
	return fmt.Sprintf(".L%s_%s%d", g.fnName, hint, g.labelCount)
}

// internString returns the .rodata label for a literal, deduplicated
// by content in first-occurrence order.
func (g *Generator) internString(s string) string {
	if label, ok := g.strLabels[s]; ok {
		return label
	}
	label := fmt.Sprintf(".LC%d", len(g.strOrder))
	g.strLabels[s] = label
	g.strOrder = append(g.strOrder, s)
	return label
}

// Generate emits the assembly for a checked program. An empty program
// produces empty output.
func Generate(prog *ast.Program, target Target, file string, mod *symbols.Module) (out string, err error) {
	g := New(target, file, mod)

	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(*diagnostics.Diagnostic); ok {
				out, err = "", d
				return
			}
			panic(r)
		}
	}()

	return g.generate(prog), nil
}

func (g *Generator) generate(prog *ast.Program) string {
	if len(prog.Decls) == 0 {
		return ""
	}

	var out strings.Builder
	out.WriteString("    .syntax unified\n")
	fmt.Fprintf(&out, "    .cpu %s\n", g.target)
	out.WriteString("    .thumb\n\n")
	out.WriteString("    .section .text\n")

	var globals []*ast.GlobalVar
	hasMain, hasKernelMain := false, false

	for _, decl := range prog.Decls {
		switch d := decl.(type) {
		case *ast.FunctionDef:
			g.genFunction(d)
			if d.Name == "main" {
				hasMain = true
			}
			if d.Name == "kernel_main" {
				hasKernelMain = true
			}
		case *ast.GlobalVar:
			globals = append(globals, d)
		case *ast.ExternDef, *ast.StructDef, *ast.UnionDef, *ast.ClassDef:
			// no code; layout and signatures live in the module scope
		}
	}

	g.genGlobals(globals)
	g.genInit(globals)

	if !hasMain && hasKernelMain {
		g.raw("")
		g.emit(".global main")
		g.emit(".thumb_set main, kernel_main")
	}

	out.WriteString(g.text.String())

	if len(g.strOrder) > 0 {
		out.WriteString("\n    .section .rodata\n")
		for _, s := range g.strOrder {
			fmt.Fprintf(&out, "%s:\n", g.strLabels[s])
			fmt.Fprintf(&out, "    .asciz \"%s\"\n", escapeAsm(s))
			out.WriteString("    .align 2\n")
		}
	}
	if len(g.data) > 0 {
		out.WriteString("\n    .section .data\n")
		for _, line := range g.data {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}
	if len(g.bss) > 0 {
		out.WriteString("\n    .section .bss\n")
		for _, line := range g.bss {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}

	return out.String()
}

// pushedBytes is the size of the callee-save area of the prologue.
func (g *Generator) pushedBytes() int {
	if g.interrupt {
		if g.target == CortexM0Plus {
			return 32 // r0-r5, r7, lr
		}
		return 36 // r0-r5, r7, r12, lr
	}
	return 20 // r4-r7, lr
}

func (g *Generator) genFunction(d *ast.FunctionDef) {
	g.fnName = d.Name
	g.labelCount = 0
	g.loops = nil
	g.defers = nil
	g.interrupt = d.Interrupt

	// Pad the frame so sp is 8-byte aligned throughout the body.
	frame := d.Frame.Size()
	for (frame+g.pushedBytes())%8 != 0 {
		frame += 4
	}
	g.frameSize = frame

	g.raw("")
	g.emit(".global %s", d.Name)
	g.emit(".type %s, %%function", d.Name)
	g.label(d.Name)

	if g.interrupt {
		if g.target == CortexM0Plus {
			g.emit("push {r0-r5, r7, lr}")
		} else {
			g.emit("push {r0-r5, r7, r12, lr}")
		}
	} else {
		g.emit("push {r4-r7, lr}")
	}
	if frame > 0 {
		g.emit("sub sp, sp, #%d", frame)
	}
	g.emit("add r7, sp, #0")

	// Spill register parameters into their slots; stack parameters
	// are copied from the caller's outgoing area.
	for i, p := range d.Params {
		local, _ := d.Frame.Lookup(p.Name)
		if i < 4 {
			g.storeToSlot(fmt.Sprintf("r%d", i), local)
		} else {
			callerOff := g.frameSize + g.pushedBytes() + (i-4)*4
			g.emit("ldr r0, [r7, #%d]", callerOff)
			g.storeToSlot("r0", local)
		}
	}

	for _, stmt := range d.Body {
		g.genStmt(stmt)
	}

	// Fall-off return: run deferred statements, return zero.
	last := ast.Statement(nil)
	if len(d.Body) > 0 {
		last = d.Body[len(d.Body)-1]
	}
	if _, ok := last.(*ast.Return); !ok {
		g.runDefers()
		g.emit("movs r0, #0")
		g.genEpilogue()
	}

	g.emit(".size %s, . - %s", d.Name, d.Name)
	g.emit(".ltorg")
}

func (g *Generator) genEpilogue() {
	if g.frameSize > 0 {
		g.emit("add sp, sp, #%d", g.frameSize)
	}
	if g.interrupt {
		if g.target == CortexM0Plus {
			// v6-M pop cannot reach r12/lr; the stacked EXC_RETURN
			// is consumed through pc instead.
			g.emit("pop {r0-r5, r7, pc}")
		} else {
			g.emit("pop {r0-r5, r7, r12, lr}")
			g.emit("bx lr")
		}
		return
	}
	g.emit("pop {r4-r7, pc}")
}

func (g *Generator) runDefers() {
	for i := len(g.defers) - 1; i >= 0; i-- {
		g.genStmt(g.defers[i])
	}
}

// genGlobals lays out module variables: non-zero constant initializers
// in .data, everything else zeroed in .bss.
func (g *Generator) genGlobals(globals []*ast.GlobalVar) {
	for _, d := range globals {
		size := d.DeclType.Size()
		if size == 0 {
			size = 4
		}

		if init, ok := constInitializer(d.Value); ok && init != 0 {
			g.data = append(g.data, fmt.Sprintf("    .global %s", d.Name))
			g.data = append(g.data, d.Name+":")
			switch d.DeclType.Size() {
			case 1:
				g.data = append(g.data, fmt.Sprintf("    .byte %d", init))
			case 2:
				g.data = append(g.data, fmt.Sprintf("    .short %d", init))
			default:
				g.data = append(g.data, fmt.Sprintf("    .word %d", init))
			}
			g.data = append(g.data, "    .align 2")
			continue
		}

		g.bss = append(g.bss, fmt.Sprintf("    .global %s", d.Name))
		g.bss = append(g.bss, d.Name+":")
		g.bss = append(g.bss, fmt.Sprintf("    .space %d", size))
		g.bss = append(g.bss, "    .align 2")
	}
}

// genInit emits the synthetic __init_<unit> sequence for globals with
// non-constant initializers, only when any exist.
func (g *Generator) genInit(globals []*ast.GlobalVar) {
	var pending []*ast.GlobalVar
	for _, d := range globals {
		if d.Value == nil {
			continue
		}
		if _, ok := constInitializer(d.Value); ok {
			continue
		}
		pending = append(pending, d)
	}
	if len(pending) == 0 {
		return
	}

	unit := strings.TrimSuffix(filepath.Base(g.file), filepath.Ext(g.file))
	unit = sanitizeSymbol(unit)
	name := "__init_" + unit

	g.fnName = name
	g.labelCount = 0
	g.interrupt = false
	g.frameSize = 4 // 20 pushed + 4 keeps sp 8-byte aligned

	g.raw("")
	g.emit(".global %s", name)
	g.emit(".type %s, %%function", name)
	g.label(name)
	g.emit("push {r4-r7, lr}")
	g.emit("sub sp, sp, #%d", g.frameSize)
	g.emit("add r7, sp, #0")

	for _, d := range pending {
		if arr, ok := d.DeclType.(*types.Array); ok {
			if lit, ok := d.Value.(*ast.ListLit); ok {
				elemSize := arr.Elem.Size()
				for i, elem := range lit.Elems {
					g.genExpr(elem)
					g.emit("ldr r1, =%s", d.Name)
					if i > 0 {
						g.emit("adds r1, r1, #%d", i*elemSize)
					}
					g.storeIndirect(arr.Elem, "r0", "r1")
				}
				continue
			}
		}
		g.genExpr(d.Value)
		g.emit("ldr r1, =%s", d.Name)
		g.storeIndirect(d.DeclType, "r0", "r1")
	}

	g.genEpilogue()
	g.emit(".size %s, . - %s", name, name)
	g.emit(".ltorg")
}

// constInitializer extracts a compile-time constant scalar value.
func constInitializer(e ast.Expression) (int64, bool) {
	switch e := e.(type) {
	case nil:
		return 0, false
	case *ast.IntLit:
		return e.Value, true
	case *ast.BoolLit:
		if e.Value {
			return 1, true
		}
		return 0, true
	case *ast.CharLit:
		return int64(e.Value), true
	case *ast.NoneLit:
		return 0, true
	case *ast.UnaryExpr:
		if e.Op == ast.NEG {
			if v, ok := constInitializer(e.X); ok {
				return -v, true
			}
		}
	}
	return 0, false
}

func sanitizeSymbol(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// escapeAsm renders a string for .asciz, matching the exact bytes of
// the decoded literal.
func escapeAsm(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			if c < 32 || c >= 127 {
				fmt.Fprintf(&sb, "\\%03o", c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// --- slot and memory access helpers ---

// sizeOfScalar returns the access width for loads and stores. 64-bit
// values are carried in their low word; their storage stays 8 bytes.
func sizeOfScalar(t types.Type) int {
	if s := t.Size(); s == 1 || s == 2 {
		return s
	}
	return 4
}

func isAggregate(t types.Type) bool {
	switch t.(type) {
	case *types.Struct, *types.Union, *types.Array:
		return true
	}
	return false
}

func signedSmall(t types.Type) bool {
	return types.IsSigned(t) && t.Size() < 4
}

// loadFromSlot loads a local's value into reg. Aggregates yield their
// address (arrays decay, structs travel by pointer).
func (g *Generator) loadFromSlot(reg string, l *symbols.Local) {
	if isAggregate(l.Type) {
		g.emit("add %s, r7, #%d", reg, l.Offset)
		return
	}
	switch sizeOfScalar(l.Type) {
	case 1:
		g.emit("ldrb %s, [r7, #%d]", reg, l.Offset)
		if signedSmall(l.Type) {
			g.emit("sxtb %s, %s", reg, reg)
		}
	case 2:
		g.emit("ldrh %s, [r7, #%d]", reg, l.Offset)
		if signedSmall(l.Type) {
			g.emit("sxth %s, %s", reg, reg)
		}
	default:
		g.emit("ldr %s, [r7, #%d]", reg, l.Offset)
	}
}

func (g *Generator) storeToSlot(reg string, l *symbols.Local) {
	switch sizeOfScalar(l.Type) {
	case 1:
		g.emit("strb %s, [r7, #%d]", reg, l.Offset)
	case 2:
		g.emit("strh %s, [r7, #%d]", reg, l.Offset)
	default:
		g.emit("str %s, [r7, #%d]", reg, l.Offset)
	}
}

// loadIndirect loads a value of type t from the address in addrReg
// into valueReg.
func (g *Generator) loadIndirect(t types.Type, valueReg, addrReg string) {
	if isAggregate(t) {
		if valueReg != addrReg {
			g.emit("mov %s, %s", valueReg, addrReg)
		}
		return
	}
	switch sizeOfScalar(t) {
	case 1:
		g.emit("ldrb %s, [%s]", valueReg, addrReg)
		if signedSmall(t) {
			g.emit("sxtb %s, %s", valueReg, valueReg)
		}
	case 2:
		g.emit("ldrh %s, [%s]", valueReg, addrReg)
		if signedSmall(t) {
			g.emit("sxth %s, %s", valueReg, valueReg)
		}
	default:
		g.emit("ldr %s, [%s]", valueReg, addrReg)
	}
}

func (g *Generator) storeIndirect(t types.Type, valueReg, addrReg string) {
	switch sizeOfScalar(t) {
	case 1:
		g.emit("strb %s, [%s]", valueReg, addrReg)
	case 2:
		g.emit("strh %s, [%s]", valueReg, addrReg)
	default:
		g.emit("str %s, [%s]", valueReg, addrReg)
	}
}

// pushTemp saves r0 on an 8-byte aligned slot so sp stays 8-byte
// aligned at every bl site. The r3 word is padding.
func (g *Generator) pushTemp() {
	g.emit("push {r0, r3}")
}

// popTemp restores a pushed temporary into reg and drops the padding
// word without touching any other register.
func (g *Generator) popTemp(reg string) {
	g.emit("pop {%s}", reg)
	g.emit("add sp, sp, #4")
}

// loadConst materializes an integer constant in reg.
func (g *Generator) loadConst(reg string, v int64) {
	switch {
	case v >= 0 && v <= 255:
		g.emit("movs %s, #%d", reg, v)
	case v >= 0 && v <= 65535 && g.target != CortexM0Plus:
		g.emit("movw %s, #%d", reg, v)
	default:
		g.emit("ldr %s, =%d", reg, int32(v))
	}
}
