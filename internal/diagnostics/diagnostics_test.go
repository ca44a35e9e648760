package diagnostics

import (
	"testing"

	"pynux/internal/source"
)

func TestDiagnosticFormat(t *testing.T) {
	d := Errorf(Parse, "kernel.py", source.Position{Line: 12, Column: 5},
		"expected %s, found %s", ":", "newline")

	want := "kernel.py:12:5: parse: expected :, found newline"
	if got := d.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStageTags(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{Lex, "lex"},
		{Parse, "parse"},
		{Type, "type"},
		{Emit, "emit"},
	}
	for _, tt := range tests {
		if string(tt.stage) != tt.want {
			t.Errorf("stage = %q, want %q", tt.stage, tt.want)
		}
	}
}
