package types

import (
	"testing"
)

func TestPrimitiveString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeInt32, "int32"},
		{TypeUint8, "uint8"},
		{TypeBool, "bool"},
		{TypeVoid, "void"},
		{NewPointer(TypeChar), "Ptr[char]"},
		{NewArray(8, TypeInt16), "Array[8, int16]"},
		{&Optional{Inner: NewPointer(TypeInt32)}, "Optional[Ptr[int32]]"},
		{&Dict{Key: TypeInt32, Val: TypeInt32}, "Dict[int32, int32]"},
		{&Func{Ret: TypeInt32, Params: []Type{TypeInt32, TypeChar}}, "Fn[int32, int32, char]"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestPrimitiveSize(t *testing.T) {
	tests := []struct {
		typ  Type
		want int
	}{
		{TypeInt8, 1},
		{TypeInt16, 2},
		{TypeInt32, 4},
		{TypeInt64, 8},
		{TypeBool, 1},
		{TypeChar, 1},
		{TypeVoid, 0},
		{NewPointer(TypeInt64), 4},
		{NewArray(10, TypeInt32), 40},
		{NewArray(3, TypeChar), 3},
	}

	for _, tt := range tests {
		if got := tt.typ.Size(); got != tt.want {
			t.Errorf("%s.Size() = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestEquals(t *testing.T) {
	tests := []struct {
		a, b  Type
		equal bool
	}{
		{TypeInt32, TypeInt32, true},
		{TypeInt32, TypeUint32, false},
		{NewPointer(TypeChar), TypeStr, true},
		{NewPointer(TypeChar), NewPointer(TypeInt8), false},
		{NewArray(4, TypeInt32), NewArray(4, TypeInt32), true},
		{NewArray(4, TypeInt32), NewArray(5, TypeInt32), false},
		{&Optional{Inner: TypeInt32}, &Optional{Inner: TypeInt32}, true},
	}

	for _, tt := range tests {
		if got := tt.a.Equals(tt.b); got != tt.equal {
			t.Errorf("%s.Equals(%s) = %v, want %v", tt.a, tt.b, got, tt.equal)
		}
	}
}

func TestStructLayoutNatural(t *testing.T) {
	s := NewStruct("Point", []Field{
		{Name: "tag", Type: TypeChar},
		{Name: "x", Type: TypeInt32},
		{Name: "y", Type: TypeInt16},
	}, false)

	wantOffsets := []int{0, 4, 8}
	for i, f := range s.Fields {
		if f.Offset != wantOffsets[i] {
			t.Errorf("field %s offset = %d, want %d", f.Name, f.Offset, wantOffsets[i])
		}
	}
	if s.Size() != 12 {
		t.Errorf("struct size = %d, want 12", s.Size())
	}
}

func TestStructLayoutPacked(t *testing.T) {
	s := NewStruct("Packet", []Field{
		{Name: "tag", Type: TypeChar},
		{Name: "x", Type: TypeInt32},
		{Name: "y", Type: TypeInt16},
	}, true)

	wantOffsets := []int{0, 1, 5}
	for i, f := range s.Fields {
		if f.Offset != wantOffsets[i] {
			t.Errorf("field %s offset = %d, want %d", f.Name, f.Offset, wantOffsets[i])
		}
	}
	if s.Size() != 7 {
		t.Errorf("packed struct size = %d, want 7", s.Size())
	}
}

func TestUnionLayout(t *testing.T) {
	u := NewUnion("Word", []Field{
		{Name: "b", Type: TypeUint8},
		{Name: "w", Type: TypeUint32},
		{Name: "d", Type: TypeUint64},
	})

	for _, f := range u.Fields {
		if f.Offset != 0 {
			t.Errorf("union field %s offset = %d, want 0", f.Name, f.Offset)
		}
	}
	if u.Size() != 8 {
		t.Errorf("union size = %d, want 8", u.Size())
	}
}

func TestWidens(t *testing.T) {
	tests := []struct {
		src, dst Type
		want     bool
	}{
		{TypeInt8, TypeInt32, true},
		{TypeInt16, TypeInt64, true},
		{TypeUint8, TypeUint16, true},
		{TypeInt8, TypeUint32, false}, // signedness mismatch
		{TypeInt32, TypeInt32, false}, // not a widening
		{TypeInt32, TypeInt16, false}, // narrowing
		{TypeFloat32, TypeFloat64, false},
	}

	for _, tt := range tests {
		if got := Widens(tt.src, tt.dst); got != tt.want {
			t.Errorf("Widens(%s, %s) = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestAssignable(t *testing.T) {
	tests := []struct {
		src, dst Type
		want     bool
	}{
		{TypeInt32, TypeInt32, true},
		{TypeInt8, TypeInt32, true},
		{NewArray(4, TypeInt32), NewPointer(TypeInt32), true},
		{NewArray(4, TypeInt32), NewPointer(TypeInt8), false},
		{TypeInt32, &Optional{Inner: TypeInt32}, true},
		{TypeUint32, TypeInt32, false},
	}

	for _, tt := range tests {
		if got := Assignable(tt.src, tt.dst); got != tt.want {
			t.Errorf("Assignable(%s, %s) = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
}
