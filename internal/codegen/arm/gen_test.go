package arm

import (
	"strings"
	"testing"

	"pynux/internal/frontend/lexer"
	"pynux/internal/frontend/parser"
	"pynux/internal/semantics/typechecker"
)

func compile(t *testing.T, src string, target Target) string {
	t.Helper()
	toks, err := lexer.New("test.py", src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	prog, err := parser.Parse(toks, "test.py")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	mod, err := typechecker.Check(prog, "test.py")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	asm, err := Generate(prog, target, "test.py", mod)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	return asm
}

func TestHeaderDirectives(t *testing.T) {
	asm := compile(t, "def main() -> int32:\n    return 0\n", CortexM3)

	lines := strings.Split(asm, "\n")
	if !strings.Contains(lines[0], ".syntax unified") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], ".cpu cortex-m3") {
		t.Errorf("second line = %q", lines[1])
	}
	if !strings.Contains(lines[2], ".thumb") {
		t.Errorf("third line = %q", lines[2])
	}
}

func TestTargetDirective(t *testing.T) {
	for _, target := range []Target{CortexM3, CortexM0Plus, CortexM4} {
		asm := compile(t, "def main() -> int32:\n    return 0\n", target)
		if !strings.Contains(asm, ".cpu "+string(target)) {
			t.Errorf("missing .cpu %s", target)
		}
	}
}

func TestEmptyProgram(t *testing.T) {
	if asm := compile(t, "", CortexM3); asm != "" {
		t.Errorf("empty source produced %q", asm)
	}
	if asm := compile(t, "# only a comment\n\n", CortexM3); asm != "" {
		t.Errorf("comment-only source produced %q", asm)
	}
}

// Callee-saved registers must be pushed and popped symmetrically.
func TestCalleeSavedBalance(t *testing.T) {
	asm := compile(t, `def helper(a: int32) -> int32:
    return a * 2

def main() -> int32:
    print_int(helper(21))
    return 0
`, CortexM3)

	pushes := strings.Count(asm, "push {r4-r7, lr}")
	pops := strings.Count(asm, "pop {r4-r7, pc}")
	if pushes != 2 {
		t.Errorf("prologue pushes = %d, want 2", pushes)
	}
	if pops < 2 {
		t.Errorf("epilogue pops = %d, want >= 2", pops)
	}
}

// Identical string literals share one .rodata label.
func TestStringInterning(t *testing.T) {
	asm := compile(t, `def main() -> int32:
    print_str("dup")
    print_str("dup")
    print_str("other")
    return 0
`, CortexM3)

	if got := strings.Count(asm, `.asciz "dup"`); got != 1 {
		t.Errorf(".asciz \"dup\" count = %d, want 1", got)
	}
	if got := strings.Count(asm, "ldr r0, =.LC0"); got != 2 {
		t.Errorf("uses of first label = %d, want 2", got)
	}
}

// Compiling the same file twice yields byte-identical assembly.
func TestLayoutStability(t *testing.T) {
	src := `counter: int32 = 5

def main() -> int32:
    s = "text"
    for i in range(3):
        print_int(i)
    return 0
`
	a := compile(t, src, CortexM3)
	b := compile(t, src, CortexM3)
	if a != b {
		t.Error("re-compilation produced different output")
	}
}

// Every temp push is 8 bytes and every outgoing area is 8-aligned, so
// sp stays 8-byte aligned at every bl site. The accounting check:
// stack adjustments around calls come only in multiples of 8.
func TestStackAdjustmentsAligned(t *testing.T) {
	asm := compile(t, `def many(a: int32, b: int32, c: int32, d: int32, e: int32, f: int32) -> int32:
    return a + b + c + d + e + f

def main() -> int32:
    print_int(many(1, 2, 3, 4, 5, 6))
    return 0
`, CortexM3)

	if !strings.Contains(asm, "bl many") {
		t.Fatal("call to many missing")
	}
	// the outgoing area for two stack args rounds up to 8
	if !strings.Contains(asm, "sub sp, sp, #8") {
		t.Error("expected an 8-byte outgoing argument area")
	}
}

// Stack parameters beyond the fourth are read from the caller's
// outgoing area: arg[4] at [sp, #0] on entry.
func TestStackParameterAccess(t *testing.T) {
	asm := compile(t, `def six(a: int32, b: int32, c: int32, d: int32, e: int32, f: int32) -> int32:
    return e + f

def main() -> int32:
    return six(1, 2, 3, 4, 5, 6)
`, CortexM3)

	// six's frame: 6 slots of 4 bytes = 24, padded to 28 so that
	// 28 + 20 pushed is 8-aligned. arg[4] lives at 28 + 20 + 0.
	if !strings.Contains(asm, "ldr r0, [r7, #48]") {
		t.Error("stack parameter e not loaded from [r7, #48]")
	}
	if !strings.Contains(asm, "ldr r0, [r7, #52]") {
		t.Error("stack parameter f not loaded from [r7, #52]")
	}
}

func TestDivisionHelpers(t *testing.T) {
	asm := compile(t, `def main() -> int32:
    x: int32 = -10
    print_int(x / 3)
    y: uint32 = 10
    z = y % 3
    p = 2 ** 8
    return 0
`, CortexM3)

	for _, want := range []string{"bl __aeabi_idiv", "bl __aeabi_uidivmod", "bl __pynux_pow"} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestComparisonsByTarget(t *testing.T) {
	src := "def f(a: int32, b: int32) -> bool:\n    return a < b\n"

	m3 := compile(t, src, CortexM3)
	if !strings.Contains(m3, "ite lt") {
		t.Error("cortex-m3 should use IT blocks")
	}

	m0 := compile(t, src, CortexM0Plus)
	if strings.Contains(m0, "ite ") {
		t.Error("cortex-m0plus must not use IT blocks")
	}
	if !strings.Contains(m0, "blt") {
		t.Error("cortex-m0plus comparison should branch")
	}
}

func TestUnsignedComparison(t *testing.T) {
	asm := compile(t, "def f(a: uint32, b: uint32) -> bool:\n    return a < b\n", CortexM3)
	if !strings.Contains(asm, "ite lo") {
		t.Error("unsigned < should use the lo condition")
	}
}

func TestShortCircuit(t *testing.T) {
	asm := compile(t, `def side() -> int32:
    return 1

def f(a: int32) -> bool:
    return a > 0 and side() > 0
`, CortexM3)

	// The RHS call must sit behind a conditional branch.
	idx := strings.Index(asm, "bl side")
	if idx < 0 {
		t.Fatal("call to side missing")
	}
	before := asm[strings.Index(asm, "f:"):idx]
	if !strings.Contains(before, "beq") {
		t.Error("and does not short-circuit around the RHS")
	}
}

func TestSliceLowering(t *testing.T) {
	asm := compile(t, `def main() -> int32:
    s: Ptr[char] = "abcdef"
    print_str(s[1:4:1])
    return 0
`, CortexM3)

	if !strings.Contains(asm, "bl __pynux_slice") {
		t.Error("slice did not lower to __pynux_slice")
	}
}

func TestSliceDefaults(t *testing.T) {
	asm := compile(t, `def f(s: Ptr[char]) -> Ptr[char]:
    return s[2:]
`, CortexM3)

	// missing high bound passes the -1 sentinel
	if !strings.Contains(asm, "ldr r0, =-1") {
		t.Error("open slice end must pass -1")
	}
}

func TestMembershipLowering(t *testing.T) {
	asm := compile(t, `def f(c: char, s: Ptr[char]) -> bool:
    return c in s
`, CortexM3)
	if !strings.Contains(asm, "bl __pynux_in") {
		t.Error("in did not lower to __pynux_in")
	}
}

func TestGlobalSections(t *testing.T) {
	asm := compile(t, `a: int32 = 7
b: int32 = 0
c: int32

def main() -> int32:
    return a
`, CortexM3)

	dataIdx := strings.Index(asm, ".section .data")
	bssIdx := strings.Index(asm, ".section .bss")
	if dataIdx < 0 || bssIdx < 0 {
		t.Fatal("missing data/bss sections")
	}
	data := asm[dataIdx:bssIdx]
	if !strings.Contains(data, "a:") || !strings.Contains(data, ".word 7") {
		t.Error("a should be in .data with .word 7")
	}
	bss := asm[bssIdx:]
	if !strings.Contains(bss, "c:") || !strings.Contains(bss, ".space 4") {
		t.Error("c should be zeroed in .bss")
	}
}

func TestNonConstantGlobalInit(t *testing.T) {
	asm := compile(t, `msg: Ptr[char] = "boot"

def main() -> int32:
    return 0
`, CortexM3)

	if !strings.Contains(asm, "__init_test:") {
		t.Error("missing synthetic __init_test sequence")
	}
}

func TestNoInitWhenAllConstant(t *testing.T) {
	asm := compile(t, `a: int32 = 1

def main() -> int32:
    return 0
`, CortexM3)

	if strings.Contains(asm, "__init_") {
		t.Error("constant-only globals must not emit an init sequence")
	}
}

func TestKernelMainAlias(t *testing.T) {
	asm := compile(t, "def kernel_main() -> int32:\n    return 0\n", CortexM3)
	if !strings.Contains(asm, ".thumb_set main, kernel_main") {
		t.Error("missing kernel_main alias")
	}

	asm = compile(t, "def main() -> int32:\n    return 0\n", CortexM3)
	if strings.Contains(asm, ".thumb_set") {
		t.Error("alias must not be emitted when main exists")
	}
}

func TestInterruptPrologue(t *testing.T) {
	asm := compile(t, `@interrupt
def systick() -> void:
    pass
`, CortexM3)

	if !strings.Contains(asm, "push {r0-r5, r7, r12, lr}") {
		t.Error("interrupt prologue missing")
	}
	if !strings.Contains(asm, "bx lr") {
		t.Error("interrupt epilogue must return with bx lr")
	}
}

func TestInlineAsmVerbatim(t *testing.T) {
	asm := compile(t, `def f() -> int32:
    asm("mov r0, #42")
    return 0
`, CortexM3)
	if !strings.Contains(asm, "mov r0, #42") {
		t.Error("inline asm not copied verbatim")
	}
}

func TestEscapedStringBytes(t *testing.T) {
	asm := compile(t, `def main() -> int32:
    print_str("a\n\t\"\\\x01")
    return 0
`, CortexM3)

	if !strings.Contains(asm, `.asciz "a\n\t\"\\\001"`) {
		t.Errorf("escape rendering wrong in:\n%s", asm)
	}
}

func TestAtomicsRejectedOnM0(t *testing.T) {
	src := `def f(p: Ptr[int32]) -> int32:
    return atomic_add(p, 1)
`
	if out := compileErr(t, src, CortexM0Plus); out == "" {
		t.Error("atomic_add should fail on cortex-m0plus")
	}
	asm := compile(t, src, CortexM3)
	if !strings.Contains(asm, "ldrex") || !strings.Contains(asm, "strex") {
		t.Error("atomic_add should emit an exclusive sequence")
	}
}

func compileErr(t *testing.T, src string, target Target) string {
	t.Helper()
	toks, err := lexer.New("test.py", src).Tokenize()
	if err != nil {
		return err.Error()
	}
	prog, err := parser.Parse(toks, "test.py")
	if err != nil {
		return err.Error()
	}
	mod, err := typechecker.Check(prog, "test.py")
	if err != nil {
		return err.Error()
	}
	if _, err := Generate(prog, target, "test.py", mod); err != nil {
		return err.Error()
	}
	return ""
}

func TestCriticalSection(t *testing.T) {
	asm := compile(t, `def f() -> int32:
    m = critical_enter()
    critical_exit(m)
    return 0
`, CortexM3)

	if !strings.Contains(asm, "mrs r0, primask") || !strings.Contains(asm, "cpsid i") {
		t.Error("critical_enter lowering missing")
	}
	if !strings.Contains(asm, "msr primask, r0") {
		t.Error("critical_exit lowering missing")
	}
}

func TestLabelUniqueness(t *testing.T) {
	asm := compile(t, `def f(a: int32) -> int32:
    if a > 0:
        return 1
    while a < 10:
        a = a + 1
    return a

def g(a: int32) -> int32:
    if a > 0:
        return 1
    return 0
`, CortexM3)

	seen := map[string]bool{}
	for _, line := range strings.Split(asm, "\n") {
		if strings.HasPrefix(line, ".L") && strings.HasSuffix(line, ":") {
			if seen[line] {
				t.Errorf("duplicate label %s", line)
			}
			seen[line] = true
		}
	}
}
