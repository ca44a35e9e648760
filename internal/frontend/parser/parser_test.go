package parser

import (
	"reflect"
	"testing"

	"pynux/internal/frontend/ast"
	"pynux/internal/frontend/lexer"
	"pynux/internal/types"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.New("test.py", src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	prog, err := Parse(toks, "test.py")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return prog
}

func parseError(t *testing.T, src string) error {
	t.Helper()
	toks, err := lexer.New("test.py", src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	_, err = Parse(toks, "test.py")
	return err
}

func TestParseFunction(t *testing.T) {
	prog := mustParse(t, "def add(a: int32, b: int32) -> int32:\n    return a + b\n")

	if len(prog.Decls) != 1 {
		t.Fatalf("decls = %d, want 1", len(prog.Decls))
	}
	fn, ok := prog.Decls[0].(*ast.FunctionDef)
	if !ok {
		t.Fatalf("decl is %T, want FunctionDef", prog.Decls[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 {
		t.Errorf("fn = %s/%d params", fn.Name, len(fn.Params))
	}
	if !fn.RetType.Equals(types.TypeInt32) {
		t.Errorf("ret type = %s, want int32", fn.RetType)
	}
	ret, ok := fn.Body[0].(*ast.Return)
	if !ok {
		t.Fatalf("body[0] is %T, want Return", fn.Body[0])
	}
	bin, ok := ret.Value.(*ast.BinaryExpr)
	if !ok || bin.Op != ast.ADD {
		t.Errorf("return value = %T, want a + b", ret.Value)
	}
}

func TestExpressionShapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want func(e ast.Expression) bool
	}{
		{
			"precedence", "1 + 2 * 3",
			func(e ast.Expression) bool {
				b, ok := e.(*ast.BinaryExpr)
				if !ok || b.Op != ast.ADD {
					return false
				}
				r, ok := b.Y.(*ast.BinaryExpr)
				return ok && r.Op == ast.MUL
			},
		},
		{
			"power right assoc", "2 ** 3 ** 2",
			func(e ast.Expression) bool {
				b, ok := e.(*ast.BinaryExpr)
				if !ok || b.Op != ast.POW {
					return false
				}
				_, leftIsLit := b.X.(*ast.IntLit)
				r, ok := b.Y.(*ast.BinaryExpr)
				return leftIsLit && ok && r.Op == ast.POW
			},
		},
		{
			"ternary", "1 if x else 2",
			func(e ast.Expression) bool {
				_, ok := e.(*ast.Ternary)
				return ok
			},
		},
		{
			"address of", "&x",
			func(e ast.Expression) bool {
				_, ok := e.(*ast.AddressOf)
				return ok
			},
		},
		{
			"deref", "*p",
			func(e ast.Expression) bool {
				_, ok := e.(*ast.Deref)
				return ok
			},
		},
		{
			"cast shorthand", "int32(x)",
			func(e ast.Expression) bool {
				c, ok := e.(*ast.Cast)
				return ok && c.To.Equals(types.TypeInt32)
			},
		},
		{
			"generic cast", "cast[Ptr[char]](x)",
			func(e ast.Expression) bool {
				c, ok := e.(*ast.Cast)
				return ok && types.IsStr(c.To)
			},
		},
		{
			"sizeof", "sizeof(int64)",
			func(e ast.Expression) bool {
				s, ok := e.(*ast.Sizeof)
				return ok && s.Of.Equals(types.TypeInt64)
			},
		},
		{
			"slice", "s[1:4:2]",
			func(e ast.Expression) bool {
				s, ok := e.(*ast.Slice)
				return ok && s.Low != nil && s.High != nil && s.Step != nil
			},
		},
		{
			"open slice", "s[:]",
			func(e ast.Expression) bool {
				s, ok := e.(*ast.Slice)
				return ok && s.Low == nil && s.High == nil && s.Step == nil
			},
		},
		{
			"not in", "x not in s",
			func(e ast.Expression) bool {
				b, ok := e.(*ast.BinaryExpr)
				return ok && b.Op == ast.NOTIN
			},
		},
		{
			"is not", "p is not None",
			func(e ast.Expression) bool {
				b, ok := e.(*ast.BinaryExpr)
				return ok && b.Op == ast.ISNOT
			},
		},
		{
			"method call", "s.upper()",
			func(e ast.Expression) bool {
				m, ok := e.(*ast.MethodCall)
				return ok && m.Name == "upper"
			},
		},
		{
			"struct literal", "Point{x=1, y=2}",
			func(e ast.Expression) bool {
				s, ok := e.(*ast.StructLit)
				return ok && s.TypeName == "Point" && len(s.Fields) == 2
			},
		},
		{
			"list comprehension", "[i * 2 for i in range(10) if i > 0]",
			func(e ast.Expression) bool {
				c, ok := e.(*ast.Comp)
				return ok && c.Var == "i" && c.Cond != nil
			},
		},
		{
			"dict literal", "{1: 2, 3: 4}",
			func(e ast.Expression) bool {
				d, ok := e.(*ast.DictLit)
				return ok && len(d.Keys) == 2
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustParse(t, "def f() -> int32:\n    v = "+tt.src+"\n    return 0\n")
			fn := prog.Decls[0].(*ast.FunctionDef)
			assign := fn.Body[0].(*ast.Assign)
			if !tt.want(assign.Value) {
				t.Errorf("unexpected shape %T for %q", assign.Value, tt.src)
			}
		})
	}
}

func TestParseFString(t *testing.T) {
	prog := mustParse(t, "def f() -> int32:\n    s = f\"x is {x + 1}!\"\n    return 0\n")
	fn := prog.Decls[0].(*ast.FunctionDef)
	fstr := fn.Body[0].(*ast.Assign).Value.(*ast.FString)

	if len(fstr.Parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(fstr.Parts))
	}
	if fstr.Parts[0].Text != "x is " {
		t.Errorf("part 0 = %q", fstr.Parts[0].Text)
	}
	if _, ok := fstr.Parts[1].Expr.(*ast.BinaryExpr); !ok {
		t.Errorf("part 1 = %T, want BinaryExpr", fstr.Parts[1].Expr)
	}
	if fstr.Parts[2].Text != "!" {
		t.Errorf("part 2 = %q", fstr.Parts[2].Text)
	}
}

func TestParseControlFlow(t *testing.T) {
	src := `def f(n: int32) -> int32:
    if n > 10:
        return 1
    elif n > 5:
        return 2
    else:
        return 3
`
	prog := mustParse(t, src)
	fn := prog.Decls[0].(*ast.FunctionDef)
	ifs, ok := fn.Body[0].(*ast.If)
	if !ok {
		t.Fatalf("body[0] = %T", fn.Body[0])
	}
	if len(ifs.Elifs) != 1 || ifs.Else == nil {
		t.Errorf("elifs=%d else=%v", len(ifs.Elifs), ifs.Else != nil)
	}
}

func TestParseForAndWhile(t *testing.T) {
	src := `def f() -> int32:
    for i in range(10):
        continue
    for k, v in pairs:
        break
    while True:
        pass
    return 0
`
	prog := mustParse(t, src)
	fn := prog.Decls[0].(*ast.FunctionDef)

	f0 := fn.Body[0].(*ast.For)
	if !reflect.DeepEqual(f0.Vars, []string{"i"}) {
		t.Errorf("for vars = %v", f0.Vars)
	}
	f1 := fn.Body[1].(*ast.For)
	if !reflect.DeepEqual(f1.Vars, []string{"k", "v"}) {
		t.Errorf("unpack vars = %v", f1.Vars)
	}
	if _, ok := fn.Body[2].(*ast.While); !ok {
		t.Errorf("body[2] = %T", fn.Body[2])
	}
}

func TestParseTryExcept(t *testing.T) {
	src := `def f() -> int32:
    try:
        risky()
    except ValueError as e:
        pass
    finally:
        cleanup()
    return 0
`
	prog := mustParse(t, src)
	fn := prog.Decls[0].(*ast.FunctionDef)
	try, ok := fn.Body[0].(*ast.Try)
	if !ok {
		t.Fatalf("body[0] = %T", fn.Body[0])
	}
	if len(try.Handlers) != 1 || try.Handlers[0].TypeName != "ValueError" || try.Handlers[0].Name != "e" {
		t.Errorf("handlers = %+v", try.Handlers)
	}
	if len(try.Finally) != 1 {
		t.Errorf("finally stmts = %d", len(try.Finally))
	}
}

func TestParseMatch(t *testing.T) {
	src := `def f(x: int32) -> int32:
    match x:
        case 1:
            return 1
        case _:
            return 0
`
	prog := mustParse(t, src)
	fn := prog.Decls[0].(*ast.FunctionDef)
	m, ok := fn.Body[0].(*ast.Match)
	if !ok {
		t.Fatalf("body[0] = %T", fn.Body[0])
	}
	if len(m.Arms) != 2 {
		t.Fatalf("arms = %d", len(m.Arms))
	}
	if m.Arms[0].Pattern.Lit == nil {
		t.Error("arm 0 should be a literal pattern")
	}
	if m.Arms[1].Pattern.Name != "_" {
		t.Error("arm 1 should be the wildcard")
	}
}

func TestParseClass(t *testing.T) {
	src := `class Dog(Animal):
    name: Ptr[char]
    age: int32

    def speak(self) -> int32:
        return 1
`
	prog := mustParse(t, src)
	cls, ok := prog.Decls[0].(*ast.ClassDef)
	if !ok {
		t.Fatalf("decl = %T", prog.Decls[0])
	}
	if !reflect.DeepEqual(cls.Bases, []string{"Animal"}) {
		t.Errorf("bases = %v", cls.Bases)
	}
	if len(cls.Fields) != 2 || len(cls.Methods) != 1 {
		t.Errorf("fields=%d methods=%d", len(cls.Fields), len(cls.Methods))
	}
}

func TestParseStructUnion(t *testing.T) {
	src := `@packed
struct Header:
    magic: uint32
    flags: uint8

union Word:
    w: uint32
    b: Array[4, uint8]
`
	prog := mustParse(t, src)
	st, ok := prog.Decls[0].(*ast.StructDef)
	if !ok || !st.Packed || len(st.Fields) != 2 {
		t.Errorf("struct = %+v", prog.Decls[0])
	}
	un, ok := prog.Decls[1].(*ast.UnionDef)
	if !ok || len(un.Fields) != 2 {
		t.Errorf("union = %+v", prog.Decls[1])
	}
}

func TestParseExternAndImports(t *testing.T) {
	src := `from lib.io import print_str, print_int
import lib.math as m

extern def uart_putc(c: int32)

c: int32 = 0
`
	prog := mustParse(t, src)
	if len(prog.Imports) != 2 {
		t.Fatalf("imports = %d", len(prog.Imports))
	}
	if prog.Imports[0].Module != "lib.io" || len(prog.Imports[0].Names) != 2 {
		t.Errorf("import 0 = %+v", prog.Imports[0])
	}
	if prog.Imports[1].Alias != "m" {
		t.Errorf("import 1 alias = %q", prog.Imports[1].Alias)
	}
	if _, ok := prog.Decls[0].(*ast.ExternDef); !ok {
		t.Errorf("decl 0 = %T", prog.Decls[0])
	}
	gv, ok := prog.Decls[1].(*ast.GlobalVar)
	if !ok || gv.Name != "c" {
		t.Errorf("decl 1 = %+v", prog.Decls[1])
	}
}

func TestParseDecorators(t *testing.T) {
	src := `@interrupt
def systick() -> void:
    pass
`
	prog := mustParse(t, src)
	fn := prog.Decls[0].(*ast.FunctionDef)
	if !reflect.DeepEqual(fn.Decorators, []string{"interrupt"}) {
		t.Errorf("decorators = %v", fn.Decorators)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing colon", "def f()\n    pass\n"},
		{"missing paren", "def f(:\n    pass\n"},
		{"bad top level", "return 1\n"},
		{"missing block", "def f():\npass\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := parseError(t, tt.src); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

// Parsing the same tokens twice yields equal ASTs.
func TestParseDeterministic(t *testing.T) {
	src := "def f(a: int32) -> int32:\n    return a * 2\n"
	toks, err := lexer.New("test.py", src).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	a, err := Parse(toks, "test.py")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse(toks, "test.py")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("parsing the same tokens twice produced different ASTs")
	}
}
