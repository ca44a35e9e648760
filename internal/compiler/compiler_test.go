package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustCompile(t *testing.T, src string) string {
	t.Helper()
	asm, err := CompileSource(src, "test.py", "")
	if err != nil {
		t.Fatalf("CompileSource() error: %v", err)
	}
	return asm
}

// The six end-to-end scenarios: assembling and running them on the
// runtime produces the UART output in the spec; here the emitted
// shapes are pinned.
func TestScenarioHello(t *testing.T) {
	asm := mustCompile(t, "def main() -> int32:\n    print_str(\"Hi!\\n\")\n    return 0\n")

	for _, want := range []string{
		".global main",
		"bl print_str",
		`.asciz "Hi!\n"`,
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestScenarioAdd(t *testing.T) {
	asm := mustCompile(t, `def add(a: int32, b: int32) -> int32:
    return a + b
def main() -> int32:
    print_int(add(2, 40))
    return 0
`)

	for _, want := range []string{"add:", "bl add", "bl print_int", "adds r0, r1, r0"} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestScenarioForRange(t *testing.T) {
	asm := mustCompile(t, `def main() -> int32:
    for i in range(3):
        print_int(i)
    return 0
`)

	if !strings.Contains(asm, ".Lmain_for") {
		t.Error("missing loop label")
	}
	if !strings.Contains(asm, "bl print_int") {
		t.Error("missing loop body call")
	}
}

func TestScenarioGlobal(t *testing.T) {
	asm := mustCompile(t, `c: int32 = 0
def main() -> int32:
    global c
    c = 7
    print_int(c)
    return 0
`)

	for _, want := range []string{"ldr r1, =c", "str r0, [r1]", ".space 4"} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestScenarioSlice(t *testing.T) {
	asm := mustCompile(t, `def main() -> int32:
    s: Ptr[char] = "abcdef"
    print_str(s[1:4:1])
    return 0
`)

	if !strings.Contains(asm, "bl __pynux_slice") {
		t.Error("missing slice helper call")
	}
	if !strings.Contains(asm, `.asciz "abcdef"`) {
		t.Error("missing interned literal")
	}
}

func TestScenarioSignedDivision(t *testing.T) {
	asm := mustCompile(t, `def main() -> int32:
    x: int32 = -10
    print_int(x / 3)
    return 0
`)

	if !strings.Contains(asm, "bl __aeabi_idiv") {
		t.Error("signed division must call __aeabi_idiv")
	}
}

func TestEmptyAndCommentOnly(t *testing.T) {
	if asm := mustCompile(t, ""); asm != "" {
		t.Errorf("empty source produced %q", asm)
	}
	if asm := mustCompile(t, "# nothing here\n\n# still nothing\n"); asm != "" {
		t.Errorf("comment-only source produced %q", asm)
	}
}

func TestInt32BoundaryLiteral(t *testing.T) {
	asm := mustCompile(t, `def main() -> int32:
    x: int32 = -2147483648
    return 0
`)
	if !strings.Contains(asm, "-2147483648") {
		t.Error("INT32_MIN literal lost")
	}
}

func TestDeepNestingCompiles(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("def main() -> int32:\n")
	sb.WriteString("    x: int32 = 1\n")
	for i := 0; i < 64; i++ {
		sb.WriteString(strings.Repeat(" ", 4*(i+1)))
		sb.WriteString("if x > 0:\n")
	}
	sb.WriteString(strings.Repeat(" ", 4*65))
	sb.WriteString("x = 2\n")
	sb.WriteString("    return x\n")

	mustCompile(t, sb.String())
}

func TestDiagnosticFormat(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		stage string
	}{
		{"lex", "x = 1 $ 2\n", ": lex: "},
		{"parse", "def f(:\n    pass\n", ": parse: "},
		{"type", "def f() -> int32:\n    return y\n", ": type: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource(tt.src, "prog.py", "")
			if err == nil {
				t.Fatal("expected an error")
			}
			msg := err.Error()
			if !strings.HasPrefix(msg, "prog.py:") {
				t.Errorf("diagnostic %q lacks file prefix", msg)
			}
			if !strings.Contains(msg, tt.stage) {
				t.Errorf("diagnostic %q lacks stage tag %q", msg, tt.stage)
			}
		})
	}
}

func TestUnknownTarget(t *testing.T) {
	if _, err := CompileSource("def main() -> int32:\n    return 0\n", "t.py", "cortex-a53"); err == nil {
		t.Error("expected unknown target error")
	}
}

func TestCompileWritesOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "prog.py")
	if err := os.WriteFile(in, []byte("def main() -> int32:\n    return 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := Compile(Options{InputFile: in})
	if !result.Success {
		t.Fatalf("Compile failed: %v", result.Err)
	}

	out := filepath.Join(dir, "prog.s")
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("default output missing: %v", err)
	}
	if !strings.Contains(string(data), ".global main") {
		t.Error("output file lacks main")
	}

	custom := filepath.Join(dir, "custom.s")
	result = Compile(Options{InputFile: in, OutputFile: custom})
	if !result.Success {
		t.Fatalf("Compile failed: %v", result.Err)
	}
	if _, err := os.Stat(custom); err != nil {
		t.Errorf("custom output missing: %v", err)
	}
}

func TestMissingInput(t *testing.T) {
	result := Compile(Options{InputFile: "/nonexistent/input.py"})
	if result.Success {
		t.Error("expected failure for a missing input file")
	}
}

// Two fresh pipelines over the same source agree byte for byte.
func TestReproducible(t *testing.T) {
	src := `from lib.io import print_str

greeting: Ptr[char] = "hello"

def shout(n: int32) -> int32:
    for i in range(n):
        print_str(greeting)
    return n

def main() -> int32:
    return shout(3)
`
	a := mustCompile(t, src)
	b := mustCompile(t, src)
	if a != b {
		t.Error("independent compiles differ")
	}
}
