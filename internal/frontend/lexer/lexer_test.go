package lexer

import (
	"strings"
	"testing"

	"pynux/internal/tokens"
)

func mustTokenize(t *testing.T, src string) []tokens.Token {
	t.Helper()
	toks, err := New("test.py", src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	return toks
}

func kinds(toks []tokens.Token) []tokens.TOKEN {
	out := make([]tokens.TOKEN, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestSimpleFunction(t *testing.T) {
	src := "def main() -> int32:\n    return 0\n"
	toks := mustTokenize(t, src)

	want := []tokens.TOKEN{
		tokens.DEF_TOKEN, tokens.IDENTIFIER_TOKEN, tokens.OPEN_PAREN,
		tokens.CLOSE_PAREN, tokens.ARROW_TOKEN, tokens.IDENTIFIER_TOKEN,
		tokens.COLON_TOKEN, tokens.NEWLINE_TOKEN, tokens.INDENT_TOKEN,
		tokens.RETURN_TOKEN, tokens.INT_TOKEN, tokens.NEWLINE_TOKEN,
		tokens.DEDENT_TOKEN, tokens.EOF_TOKEN,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTypeNamesAreIdentifiers(t *testing.T) {
	toks := mustTokenize(t, "x: int32 = 0\n")
	if toks[0].Kind != tokens.IDENTIFIER_TOKEN || toks[0].Value != "x" {
		t.Errorf("first token = %v %q", toks[0].Kind, toks[0].Value)
	}
	if toks[2].Kind != tokens.IDENTIFIER_TOKEN || toks[2].Value != "int32" {
		t.Errorf("type name lexed as %v, want identifier", toks[2].Kind)
	}
}

func TestNumericLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"42", 42},
		{"0x2A", 42},
		{"0b101010", 42},
		{"0o52", 42},
		{"1_000_000", 1000000},
		{"2147483648", 2147483648}, // magnitude of INT32_MIN
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks := mustTokenize(t, tt.src+"\n")
			if toks[0].Kind != tokens.INT_TOKEN {
				t.Fatalf("kind = %v, want INT", toks[0].Kind)
			}
			if toks[0].Int != tt.want {
				t.Errorf("value = %d, want %d", toks[0].Int, tt.want)
			}
		})
	}
}

func TestFloatLiteral(t *testing.T) {
	toks := mustTokenize(t, "3.14\n")
	if toks[0].Kind != tokens.FLOAT_TOKEN {
		t.Fatalf("kind = %v, want FLOAT", toks[0].Kind)
	}
	if toks[0].Float != 3.14 {
		t.Errorf("value = %g, want 3.14", toks[0].Float)
	}
}

func TestStringEscapes(t *testing.T) {
	toks := mustTokenize(t, `s = "a\n\t\\\"\0\x41"`+"\n")
	var str *tokens.Token
	for i := range toks {
		if toks[i].Kind == tokens.STRING_TOKEN {
			str = &toks[i]
			break
		}
	}
	if str == nil {
		t.Fatal("no string token")
	}
	want := "a\n\t\\\"\x00A"
	if str.Value != want {
		t.Errorf("decoded = %q, want %q", str.Value, want)
	}
}

func TestCharLiteral(t *testing.T) {
	tests := []struct {
		src  string
		want byte
	}{
		{`'a'`, 'a'},
		{`'\n'`, '\n'},
		{`'\0'`, 0},
		{`'\x41'`, 'A'},
	}
	for _, tt := range tests {
		toks := mustTokenize(t, "c = "+tt.src+"\n")
		if toks[2].Kind != tokens.CHAR_TOKEN {
			t.Fatalf("%s: kind = %v, want CHAR", tt.src, toks[2].Kind)
		}
		if toks[2].Value[0] != tt.want {
			t.Errorf("%s: value = %q, want %q", tt.src, toks[2].Value[0], tt.want)
		}
	}
}

func TestFStringToken(t *testing.T) {
	toks := mustTokenize(t, `f"x is {x}"`+"\n")
	if toks[0].Kind != tokens.FSTRING_TOKEN {
		t.Fatalf("kind = %v, want FSTRING", toks[0].Kind)
	}
	if toks[0].Value != "x is {x}" {
		t.Errorf("payload = %q", toks[0].Value)
	}
}

func TestIndentDedentBalance(t *testing.T) {
	src := strings.Join([]string{
		"def f():",
		"    if a:",
		"        if b:",
		"            pass",
		"    return 0",
		"",
	}, "\n")
	toks := mustTokenize(t, src)

	depth := 0
	for _, tok := range toks {
		switch tok.Kind {
		case tokens.INDENT_TOKEN:
			depth++
		case tokens.DEDENT_TOKEN:
			depth--
		}
		if depth < 0 {
			t.Fatal("dedent below zero")
		}
	}
	if depth != 0 {
		t.Errorf("unbalanced indentation: depth %d at EOF", depth)
	}
}

func TestDeepNesting(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("def f():\n")
	for i := 0; i < 64; i++ {
		sb.WriteString(strings.Repeat(" ", 4*(i+1)))
		sb.WriteString("if x:\n")
	}
	sb.WriteString(strings.Repeat(" ", 4*65))
	sb.WriteString("pass\n")

	toks := mustTokenize(t, sb.String())
	indents := 0
	for _, tok := range toks {
		if tok.Kind == tokens.INDENT_TOKEN {
			indents++
		}
	}
	if indents != 65 {
		t.Errorf("indents = %d, want 65", indents)
	}
}

func TestBlankAndCommentLines(t *testing.T) {
	src := "def f():\n\n    # comment only\n    pass\n"
	toks := mustTokenize(t, src)

	indents, dedents := 0, 0
	for _, tok := range toks {
		switch tok.Kind {
		case tokens.INDENT_TOKEN:
			indents++
		case tokens.DEDENT_TOKEN:
			dedents++
		}
	}
	if indents != 1 || dedents != 1 {
		t.Errorf("indents=%d dedents=%d, want 1/1", indents, dedents)
	}
}

func TestBracketsSuppressNewlines(t *testing.T) {
	src := "x = f(1,\n      2,\n      3)\n"
	toks := mustTokenize(t, src)

	newlines := 0
	for _, tok := range toks {
		if tok.Kind == tokens.NEWLINE_TOKEN {
			newlines++
		}
		if tok.Kind == tokens.INDENT_TOKEN {
			t.Error("INDENT emitted inside brackets")
		}
	}
	if newlines != 1 {
		t.Errorf("newlines = %d, want 1", newlines)
	}
}

func TestInconsistentIndentError(t *testing.T) {
	src := "def f():\n        pass\n    pass\n"
	if _, err := New("test.py", src).Tokenize(); err == nil {
		t.Error("expected inconsistent indentation error")
	}
}

func TestUnterminatedString(t *testing.T) {
	if _, err := New("test.py", `s = "abc`+"\n").Tokenize(); err == nil {
		t.Error("expected unterminated string error")
	}
}

func TestUnknownCharacter(t *testing.T) {
	if _, err := New("test.py", "x = 1 $ 2\n").Tokenize(); err == nil {
		t.Error("expected unknown character error")
	}
}

func TestCRLFNormalized(t *testing.T) {
	toks := mustTokenize(t, "x = 1\r\ny = 2\r\n")
	newlines := 0
	for _, tok := range toks {
		if tok.Kind == tokens.NEWLINE_TOKEN {
			newlines++
		}
	}
	if newlines != 2 {
		t.Errorf("newlines = %d, want 2", newlines)
	}
}

func TestEmptySource(t *testing.T) {
	toks := mustTokenize(t, "")
	if len(toks) != 1 || toks[0].Kind != tokens.EOF_TOKEN {
		t.Errorf("empty source tokens = %v", kinds(toks))
	}
}

// Relexing the same source must yield the identical sequence: the
// lexer has no hidden state across runs.
func TestDeterministic(t *testing.T) {
	src := "def f(a: int32) -> int32:\n    s = \"hi\"\n    return a + 1\n"
	a := mustTokenize(t, src)
	b := mustTokenize(t, src)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("token %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
