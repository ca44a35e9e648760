package types

import (
	"fmt"
	"strings"
)

// Type is the semantic representation of pynux types.
//
// Design principles:
// - Types are immutable after creation
// - Equality is structural (deep comparison)
// - All types can be displayed as strings
type Type interface {
	// String returns the source-level spelling of the type
	String() string

	// Equals checks structural equality with another type
	Equals(other Type) bool

	// Size returns the size in bytes (0 for void)
	Size() int

	// isType is a marker method to prevent external implementation
	isType()
}

// Primitive represents built-in scalar types (int32, bool, char, ...).
type Primitive struct {
	name   string
	size   int
	signed bool
	float  bool
}

func (p *Primitive) String() string { return p.name }
func (p *Primitive) Size() int      { return p.size }
func (p *Primitive) isType()        {}
func (p *Primitive) Equals(other Type) bool {
	o, ok := other.(*Primitive)
	return ok && p.name == o.name
}

// Signed reports whether the primitive is a signed integer.
func (p *Primitive) Signed() bool { return p.signed }

// IsFloat reports whether the primitive is a floating-point type.
func (p *Primitive) IsFloat() bool { return p.float }

// Pointer represents Ptr[T]. Pointers are 4-byte unsigned addresses.
// Str is the same type with the trailing-NUL invariant; it compares
// equal to Ptr[char].
type Pointer struct {
	Elem     Type
	Volatile bool
}

func NewPointer(elem Type) *Pointer { return &Pointer{Elem: elem} }

func (p *Pointer) String() string { return fmt.Sprintf("Ptr[%s]", p.Elem) }
func (p *Pointer) Size() int      { return 4 }
func (p *Pointer) isType()        {}
func (p *Pointer) Equals(other Type) bool {
	o, ok := other.(*Pointer)
	return ok && p.Elem.Equals(o.Elem)
}

// Array represents Array[N, T]: N contiguous elements, stack-allocable.
// As a value it decays to Ptr[T].
type Array struct {
	Len  int
	Elem Type
}

func NewArray(length int, elem Type) *Array { return &Array{Len: length, Elem: elem} }

func (a *Array) String() string { return fmt.Sprintf("Array[%d, %s]", a.Len, a.Elem) }
func (a *Array) Size() int      { return a.Len * a.Elem.Size() }
func (a *Array) isType()        {}
func (a *Array) Equals(other Type) bool {
	o, ok := other.(*Array)
	return ok && a.Len == o.Len && a.Elem.Equals(o.Elem)
}

// Func represents Fn[Ret, A, B]: a function signature. As a value it
// is a 4-byte code pointer.
type Func struct {
	Ret    Type
	Params []Type
}

func (f *Func) String() string {
	parts := make([]string, 0, len(f.Params)+1)
	parts = append(parts, f.Ret.String())
	for _, p := range f.Params {
		parts = append(parts, p.String())
	}
	return fmt.Sprintf("Fn[%s]", strings.Join(parts, ", "))
}
func (f *Func) Size() int { return 4 }
func (f *Func) isType()   {}
func (f *Func) Equals(other Type) bool {
	o, ok := other.(*Func)
	if !ok || len(f.Params) != len(o.Params) || !f.Ret.Equals(o.Ret) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Equals(o.Params[i]) {
			return false
		}
	}
	return true
}

// Field is a named member of a struct or union with its byte offset.
type Field struct {
	Name   string
	Type   Type
	Offset int
}

// Struct represents a struct or flattened class. Layout follows
// natural alignment unless Packed.
type Struct struct {
	Name   string
	Fields []Field
	Packed bool
	size   int
}

// NewStruct computes field offsets and total size. Natural alignment
// pads each field to min(size, 4) bytes; packed layout uses none.
func NewStruct(name string, fields []Field, packed bool) *Struct {
	offset := 0
	for i := range fields {
		if !packed {
			offset = alignUp(offset, alignOf(fields[i].Type))
		}
		fields[i].Offset = offset
		offset += fields[i].Type.Size()
	}
	if !packed {
		offset = alignUp(offset, 4)
	}
	return &Struct{Name: name, Fields: fields, Packed: packed, size: offset}
}

func (s *Struct) String() string { return s.Name }
func (s *Struct) Size() int      { return s.size }
func (s *Struct) isType()        {}
func (s *Struct) Equals(other Type) bool {
	o, ok := other.(*Struct)
	return ok && s.Name == o.Name
}

// Field looks up a member by name.
func (s *Struct) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Union represents a union: all fields at offset 0, size of the widest.
type Union struct {
	Name   string
	Fields []Field
	size   int
}

func NewUnion(name string, fields []Field) *Union {
	size := 0
	for i := range fields {
		fields[i].Offset = 0
		if fs := fields[i].Type.Size(); fs > size {
			size = fs
		}
	}
	return &Union{Name: name, Fields: fields, size: alignUp(size, 4)}
}

func (u *Union) String() string { return u.Name }
func (u *Union) Size() int      { return u.size }
func (u *Union) isType()        {}
func (u *Union) Equals(other Type) bool {
	o, ok := other.(*Union)
	return ok && u.Name == o.Name
}

func (u *Union) Field(name string) (Field, bool) {
	for _, f := range u.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Optional represents Optional[T], stored as T with a sentinel for None.
type Optional struct {
	Inner Type
}

func (o *Optional) String() string { return fmt.Sprintf("Optional[%s]", o.Inner) }
func (o *Optional) Size() int      { return o.Inner.Size() }
func (o *Optional) isType()        {}
func (o *Optional) Equals(other Type) bool {
	t, ok := other.(*Optional)
	return ok && o.Inner.Equals(t.Inner)
}

// List represents List[T], lowered to the heap list layout
// [len, cap, elems...].
type List struct {
	Elem Type
}

func (l *List) String() string { return fmt.Sprintf("List[%s]", l.Elem) }
func (l *List) Size() int      { return 4 }
func (l *List) isType()        {}
func (l *List) Equals(other Type) bool {
	o, ok := other.(*List)
	return ok && l.Elem.Equals(o.Elem)
}

// Dict represents Dict[K, V], lowered to the [count, k0, v0, ...] layout.
type Dict struct {
	Key Type
	Val Type
}

func (d *Dict) String() string { return fmt.Sprintf("Dict[%s, %s]", d.Key, d.Val) }
func (d *Dict) Size() int      { return 4 }
func (d *Dict) isType()        {}
func (d *Dict) Equals(other Type) bool {
	o, ok := other.(*Dict)
	return ok && d.Key.Equals(o.Key) && d.Val.Equals(o.Val)
}

// Tuple represents Tuple[A, B, ...]: contiguous heap cells.
type Tuple struct {
	Elems []Type
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return fmt.Sprintf("Tuple[%s]", strings.Join(parts, ", "))
}
func (t *Tuple) Size() int { return 4 }
func (t *Tuple) isType()   {}
func (t *Tuple) Equals(other Type) bool {
	o, ok := other.(*Tuple)
	if !ok || len(t.Elems) != len(o.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equals(o.Elems[i]) {
			return false
		}
	}
	return true
}

// Named is a placeholder for a user-defined type spelled by name in
// source. The checker resolves it to a Struct or Union.
type Named struct {
	Name string
}

func (n *Named) String() string { return n.Name }
func (n *Named) Size() int      { return 4 }
func (n *Named) isType()        {}
func (n *Named) Equals(other Type) bool {
	o, ok := other.(*Named)
	return ok && n.Name == o.Name
}

func alignUp(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) &^ (a - 1)
}

func alignOf(t Type) int {
	if a, ok := t.(*Array); ok {
		return alignOf(a.Elem)
	}
	if s := t.Size(); s < 4 && s > 0 {
		return s
	}
	return 4
}
