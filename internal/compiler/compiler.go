package compiler

import (
	"fmt"
	"os"
	"strings"

	"pynux/internal/codegen/arm"
	"pynux/internal/frontend/lexer"
	"pynux/internal/frontend/parser"
	"pynux/internal/semantics/typechecker"
)

// Options for compiling one translation unit.
type Options struct {
	// InputFile is the source path; Source overrides it for
	// in-memory compilation.
	InputFile string
	Source    string
	// OutputFile receives the assembly; empty means the input path
	// with a .s extension; with no input path nothing is written and
	// the text is only returned in Result.Assembly.
	OutputFile string
	// Target selects the CPU (default cortex-m3).
	Target string
}

// Result of compilation.
type Result struct {
	Success  bool
	Assembly string
	// Err is the first diagnostic encountered, already formatted as
	// file:line:col: stage: message.
	Err error
}

// CompileSource runs the full pipeline over source text and returns
// the assembly. Each invocation owns fresh lexer, parser, checker,
// and generator state, so compiles are independent and reproducible.
func CompileSource(src, file, target string) (string, error) {
	if target == "" {
		target = string(arm.CortexM3)
	}
	if !arm.ValidTarget(target) {
		return "", fmt.Errorf("unknown target %q", target)
	}

	toks, err := lexer.New(file, src).Tokenize()
	if err != nil {
		return "", err
	}

	prog, err := parser.Parse(toks, file)
	if err != nil {
		return "", err
	}

	mod, err := typechecker.Check(prog, file)
	if err != nil {
		return "", err
	}

	return arm.Generate(prog, arm.Target(target), file, mod)
}

// Compile reads, compiles, and writes one unit per the options.
func Compile(opts Options) Result {
	src := opts.Source
	file := opts.InputFile
	if src == "" {
		data, err := os.ReadFile(opts.InputFile)
		if err != nil {
			return Result{Err: err}
		}
		src = string(data)
	}
	if file == "" {
		file = "<source>"
	}

	asm, err := CompileSource(src, file, opts.Target)
	if err != nil {
		return Result{Err: err}
	}

	out := opts.OutputFile
	if out == "" && opts.InputFile != "" {
		out = withSuffix(opts.InputFile, ".s")
	}
	if out != "" {
		if err := os.WriteFile(out, []byte(asm), 0o644); err != nil {
			return Result{Err: err}
		}
	}

	return Result{Success: true, Assembly: asm}
}

func withSuffix(path, suffix string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		return path[:i] + suffix
	}
	return path + suffix
}
