package types

// Built-in scalar type singletons. Identity is by name, so these can
// be compared with Equals against freshly constructed values too.
var (
	TypeInt8    = &Primitive{name: "int8", size: 1, signed: true}
	TypeInt16   = &Primitive{name: "int16", size: 2, signed: true}
	TypeInt32   = &Primitive{name: "int32", size: 4, signed: true}
	TypeInt64   = &Primitive{name: "int64", size: 8, signed: true}
	TypeUint8   = &Primitive{name: "uint8", size: 1}
	TypeUint16  = &Primitive{name: "uint16", size: 2}
	TypeUint32  = &Primitive{name: "uint32", size: 4}
	TypeUint64  = &Primitive{name: "uint64", size: 8}
	TypeFloat32 = &Primitive{name: "float32", size: 4, signed: true, float: true}
	TypeFloat64 = &Primitive{name: "float64", size: 8, signed: true, float: true}
	TypeBool    = &Primitive{name: "bool", size: 1}
	TypeChar    = &Primitive{name: "char", size: 1}
	TypeVoid    = &Primitive{name: "void", size: 0}
)

// TypeStr is Ptr[char] carrying the NUL-terminated invariant. It is
// structurally identical to Ptr[char] and compares equal to it.
var TypeStr = NewPointer(TypeChar)

// TypeNone is the type of the None literal, assignable to any pointer
// and any Optional.
var TypeNone = &Primitive{name: "None", size: 4}

var primitivesByName = map[string]*Primitive{
	"int8":    TypeInt8,
	"int16":   TypeInt16,
	"int32":   TypeInt32,
	"int64":   TypeInt64,
	"uint8":   TypeUint8,
	"uint16":  TypeUint16,
	"uint32":  TypeUint32,
	"uint64":  TypeUint64,
	"float32": TypeFloat32,
	"float64": TypeFloat64,
	"bool":    TypeBool,
	"char":    TypeChar,
	"void":    TypeVoid,
	// Python-compat aliases
	"int":   TypeInt32,
	"float": TypeFloat32,
}

// PrimitiveByName resolves a primitive type spelling, including the
// int/float aliases.
func PrimitiveByName(name string) (*Primitive, bool) {
	p, ok := primitivesByName[name]
	return p, ok
}

// IsInteger reports whether t is an integral primitive (char and bool
// count: they are 1-byte unsigned integers at the machine level).
func IsInteger(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && !p.float && p.size > 0 && p.name != "None"
}

// IsSigned reports whether t is a signed integer primitive.
func IsSigned(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.signed && !p.float
}

// IsFloat reports whether t is float32 or float64.
func IsFloat(t Type) bool {
	p, ok := t.(*Primitive)
	return ok && p.float
}

// IsStr reports whether t is Ptr[char] (the str type).
func IsStr(t Type) bool {
	p, ok := t.(*Pointer)
	return ok && p.Elem.Equals(TypeChar)
}

// Widens reports whether src implicitly widens to dst: an integer
// conversion to a larger integer of the same signedness.
func Widens(src, dst Type) bool {
	s, ok1 := src.(*Primitive)
	d, ok2 := dst.(*Primitive)
	if !ok1 || !ok2 || s.float || d.float {
		return false
	}
	return s.signed == d.signed && s.size < d.size
}

// Assignable reports whether a value of type src may initialize or be
// assigned to a slot of type dst without an explicit cast. None and
// array decay are handled by the checker before calling this.
func Assignable(src, dst Type) bool {
	if src.Equals(dst) {
		return true
	}
	if Widens(src, dst) {
		return true
	}
	// Array[N, T] decays to Ptr[T] when used as a value.
	if a, ok := src.(*Array); ok {
		if p, ok := dst.(*Pointer); ok {
			return a.Elem.Equals(p.Elem)
		}
	}
	// T is assignable to Optional[T].
	if o, ok := dst.(*Optional); ok {
		return Assignable(src, o.Inner)
	}
	return false
}
