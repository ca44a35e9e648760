package main

import (
	"flag"
	"fmt"
	"os"

	"pynux/internal/compiler"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: pynux compile <input.py> [-o <out.s>] [--target=<cpu>]")
	fmt.Fprintln(os.Stderr, "\nTargets: cortex-m3 (default), cortex-m0plus, cortex-m4")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}

	switch args[0] {
	case "-v", "--version":
		fmt.Printf("pynux compiler version %s\n", version)
		return 0
	case "compile":
	default:
		usage()
		return 1
	}

	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	output := fs.String("o", "", "Output file (.s)")
	target := fs.String("target", "cortex-m3", "Target CPU")
	fs.Usage = usage

	// Accept "compile input.py -o out.s" as well as flag-first order.
	rest := args[1:]
	var inputs []string
	for len(rest) > 0 {
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		rest = fs.Args()
		if len(rest) > 0 {
			inputs = append(inputs, rest[0])
			rest = rest[1:]
		}
	}

	if len(inputs) != 1 {
		usage()
		return 1
	}

	result := compiler.Compile(compiler.Options{
		InputFile:  inputs[0],
		OutputFile: *output,
		Target:     *target,
	})
	if !result.Success {
		fmt.Fprintln(os.Stderr, result.Err)
		return 1
	}
	return 0
}
