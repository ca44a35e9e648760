package diagnostics

import (
	"fmt"

	"pynux/internal/source"
)

// Stage identifies the pipeline stage that produced a diagnostic.
type Stage string

const (
	Lex   Stage = "lex"
	Parse Stage = "parse"
	Type  Stage = "type"
	Emit  Stage = "emit"
)

// Diagnostic is a single compile error. Each pipeline stage returns
// its output or the first Diagnostic it encountered; there is no
// recovery within a file.
type Diagnostic struct {
	File    string
	Pos     source.Position
	Stage   Stage
	Message string
}

// Error renders the one-line user-visible form:
// <file>:<line>:<col>: <stage>: <message>
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Pos.Line, d.Pos.Column, d.Stage, d.Message)
}

// Errorf creates a diagnostic at pos with a formatted message.
func Errorf(stage Stage, file string, pos source.Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		File:    file,
		Pos:     pos,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}
