// Package types implements Action!'s fundamental and composite type system,
// including the numeric promotion rules of the promotion table.
package types

import "fmt"

// Fundamental is one of the four scalar value types, plus the internal
// VOID marker used for procedures without a return value.
type Fundamental byte

const (
	BYTE Fundamental = iota
	CHAR
	INT
	CARD
	VOID
)

func (f Fundamental) String() string {
	switch f {
	case BYTE:
		return "BYTE"
	case CHAR:
		return "CHAR"
	case INT:
		return "INT"
	case CARD:
		return "CARD"
	case VOID:
		return "VOID"
	default:
		return fmt.Sprintf("Fundamental(%d)", byte(f))
	}
}

// Width returns the storage width in bytes of a fundamental type.
func (f Fundamental) Width() int {
	switch f {
	case BYTE, CHAR:
		return 1
	case INT, CARD:
		return 2
	default:
		return 0
	}
}

// Signed reports whether f is sign-extended when widened to 16 bits.
func (f Fundamental) Signed() bool {
	return f == INT
}

// rank orders fundamental types for promotion: BYTE/CHAR < INT < CARD.
func (f Fundamental) rank() int {
	switch f {
	case BYTE, CHAR:
		return 0
	case INT:
		return 1
	case CARD:
		return 2
	default:
		return -1
	}
}

// Promote returns the result type of a binary arithmetic operator given
// its two fundamental operand types: the wider of the two by the
// BYTE/CHAR < INT < CARD ordering.
func Promote(a, b Fundamental) Fundamental {
	if a.rank() >= b.rank() {
		return widenScalar(a)
	}
	return widenScalar(b)
}

// widenScalar maps CHAR to itself (CHAR is treated as BYTE for arithmetic
// but keeps its own tag when it is the wider operand) — callers that need
// the arithmetic-equivalent width should use Width()/Signed() rather than
// switching on CHAR vs BYTE.
func widenScalar(f Fundamental) Fundamental { return f }

// Type is implemented by every representable Action! type: the four
// Fundamental values plus the composite kinds below.
type Type interface {
	isType()
	String() string
	// Size returns the storage width in bytes.
	Size() int
}

func (Fundamental) isType() {}

// Size implements Type for Fundamental.
func (f Fundamental) Size() int { return f.Width() }

// Field is one named member of a RecordType.
type Field struct {
	Name string
	Type Fundamental
}

// RecordType is a named ordered list of fundamental-typed fields.
type RecordType struct {
	Name   string
	Fields []Field
}

func (*RecordType) isType() {}

func (r *RecordType) String() string { return r.Name }

// Size returns the sum of field widths.
func (r *RecordType) Size() int {
	n := 0
	for _, f := range r.Fields {
		n += f.Type.Width()
	}
	return n
}

// FieldOffset returns the byte offset of the named field, or -1 if absent.
func (r *RecordType) FieldOffset(name string) int {
	off := 0
	for _, f := range r.Fields {
		if f.Name == name {
			return off
		}
		off += f.Type.Width()
	}
	return -1
}

// Field looks up a field by name.
func (r *RecordType) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// PointerType references a fundamental or record type; stored as a CARD
// (2-byte address) at runtime.
type PointerType struct {
	Elem Type
}

func (*PointerType) isType() {}

func (p *PointerType) String() string { return p.Elem.String() + " POINTER" }

// Size is always 2: a pointer is a CARD address.
func (p *PointerType) Size() int { return 2 }

// ArrayType is a fundamental element type plus an optional compile-time
// length. Arrays decay to CARD addresses when passed by value.
type ArrayType struct {
	Elem   Fundamental
	Length int // 0 means unspecified (no dimension given)
}

func (*ArrayType) isType() {}

func (a *ArrayType) String() string {
	return fmt.Sprintf("%s ARRAY(%d)", a.Elem, a.Length)
}

// Size returns the element width times length; 0 if length is unspecified.
func (a *ArrayType) Size() int { return a.Elem.Width() * a.Length }

// Fund returns the fundamental type carried by t, for types whose runtime
// representation is a scalar (Fundamental itself, or a PointerType/
// ArrayType, both of which are represented as CARD addresses).
func Fund(t Type) Fundamental {
	switch v := t.(type) {
	case Fundamental:
		return v
	case *PointerType:
		return CARD
	case *ArrayType:
		return CARD
	case *RecordType:
		return VOID // records have no scalar representation
	default:
		return VOID
	}
}

// IsBoolean reports whether a BYTE value produced by a relational
// comparison should be interpreted as a boolean (0 = false, nonzero =
// true). Booleans have no distinct type; this documents the convention.
func IsBoolean(f Fundamental) bool { return f == BYTE }
