package ast

import (
	"pynux/internal/semantics/symbols"
	"pynux/internal/types"
)

// Param is one function parameter.
type Param struct {
	Name    string
	Type    types.Type
	Default Expression
}

// FunctionDef is a def block. Frame and Sig are populated by the
// checker; Interrupt reflects the @interrupt decorator.
type FunctionDef struct {
	DeclBase
	Name       string
	Params     []Param
	RetType    types.Type
	Body       []Statement
	Decorators []string

	Frame     *symbols.Frame
	Sig       *symbols.FuncSig
	Interrupt bool
}

// GlobalVar is a module-level typed assignment.
type GlobalVar struct {
	DeclBase
	Name     string
	DeclType types.Type
	Value    Expression
}

// FieldDef is a struct/union/class field as written.
type FieldDef struct {
	Name    string
	Type    types.Type
	Default Expression
}

// StructDef is a struct block; Packed reflects the @packed decorator.
type StructDef struct {
	DeclBase
	Name   string
	Fields []FieldDef
	Packed bool

	Sem *types.Struct
}

// UnionDef is a union block. All fields share offset 0.
type UnionDef struct {
	DeclBase
	Name   string
	Fields []FieldDef

	Sem *types.Union
}

// ClassDef is a class. The checker flattens base-class fields in
// front of its own and lowers methods to free functions taking
// self: Ptr[Class].
type ClassDef struct {
	DeclBase
	Name       string
	Bases      []string
	Fields     []FieldDef
	Methods    []*FunctionDef
	Decorators []string

	Sem *types.Struct
}

// ExternDef declares a symbol provided by another unit or the runtime.
type ExternDef struct {
	DeclBase
	Name    string
	Params  []Param
	RetType types.Type
}

// Import records an import; linkage is flat, so only the names are
// kept and the linker verifies existence.
type Import struct {
	DeclBase
	Module string
	Names  []string
	Alias  string
	Star   bool
}
