package ast

import (
	"pynux/internal/source"
	"pynux/internal/types"
)

// Node is the base interface for all AST nodes
type Node interface {
	INode()
	Loc() source.Span
}

// Expression represents any node that produces a value. After
// checking, every expression carries its resolved type.
type Expression interface {
	Node
	Expr()
	Type() types.Type
	SetType(t types.Type)
}

// Statement represents any node that performs an action
type Statement interface {
	Node
	Stmt()
}

// Decl represents a top-level declaration (function, global, struct,
// union, class, extern, import)
type Decl interface {
	Node
	Decl()
}

// Base carries the source span shared by every node.
type Base struct {
	Span source.Span
}

func (b *Base) INode()           {}
func (b *Base) Loc() source.Span { return b.Span }

// ExprBase adds the resolved type populated during checking.
type ExprBase struct {
	Base
	Ty types.Type
}

func (e *ExprBase) Expr()                {}
func (e *ExprBase) Type() types.Type     { return e.Ty }
func (e *ExprBase) SetType(t types.Type) { e.Ty = t }

// StmtBase marks statement nodes.
type StmtBase struct {
	Base
}

func (s *StmtBase) Stmt() {}

// DeclBase marks declaration nodes.
type DeclBase struct {
	Base
}

func (d *DeclBase) Decl() {}

// NewExprBase seeds an expression node with its span.
func NewExprBase(span source.Span) ExprBase { return ExprBase{Base: Base{Span: span}} }

// NewStmtBase seeds a statement node with its span.
func NewStmtBase(span source.Span) StmtBase { return StmtBase{Base: Base{Span: span}} }

// NewDeclBase seeds a declaration node with its span.
func NewDeclBase(span source.Span) DeclBase { return DeclBase{Base: Base{Span: span}} }

// Program is the root node: one parsed translation unit.
type Program struct {
	Base
	Imports []*Import
	Decls   []Decl
}
