// Package rtype defines the primitive value types that flow through the
// encoded row layout (internal/row). It is the Go counterpart of the
// source's Type enum: every field in a row schema is one of these kinds,
// and the kind alone determines the field's size and alignment in the
// row's static section.
package rtype

// Type identifies the primitive kind of a row field.
type Type uint8

const (
	Undefined Type = iota
	Boolean
	Int1
	Int2
	Int4
	Int8
	Int16
	Uint1
	Uint2
	Uint4
	Uint8
	Uint16
	Float4
	Float8
	Utf8
	Blob
	Decimal
)

// fixed width/alignment table. Variable-width kinds (Utf8, Blob, Decimal)
// store a (u32 offset, u32 length) pointer into the dynamic section, so
// their static-section footprint is always 8 bytes aligned to 4.
var widths = map[Type]struct {
	size  int
	align int
}{
	Boolean: {1, 1},
	Int1:    {1, 1},
	Int2:    {2, 2},
	Int4:    {4, 4},
	Int8:    {8, 8},
	Int16:   {16, 16},
	Uint1:   {1, 1},
	Uint2:   {2, 2},
	Uint4:   {4, 4},
	Uint8:   {8, 8},
	Uint16:  {16, 16},
	Float4:  {4, 4},
	Float8:  {8, 8},
	Utf8:    {8, 4},
	Blob:    {8, 4},
	Decimal: {8, 4},
}

// Size returns the number of bytes the type occupies in a row's static
// section. For variable-width kinds this is the size of the
// (offset, length) pointer, not the payload itself.
func (t Type) Size() int {
	w, ok := widths[t]
	if !ok {
		panic("rtype: unknown type")
	}
	return w.size
}

// Alignment returns the type's required alignment in the static section.
func (t Type) Alignment() int {
	w, ok := widths[t]
	if !ok {
		panic("rtype: unknown type")
	}
	return w.align
}

// IsDynamic reports whether values of this type are stored out-of-line in
// the row's dynamic section.
func (t Type) IsDynamic() bool {
	switch t {
	case Utf8, Blob, Decimal:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case Boolean:
		return "Boolean"
	case Int1:
		return "Int1"
	case Int2:
		return "Int2"
	case Int4:
		return "Int4"
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Uint1:
		return "Uint1"
	case Uint2:
		return "Uint2"
	case Uint4:
		return "Uint4"
	case Uint8:
		return "Uint8"
	case Uint16:
		return "Uint16"
	case Float4:
		return "Float4"
	case Float8:
		return "Float8"
	case Utf8:
		return "Utf8"
	case Blob:
		return "Blob"
	case Decimal:
		return "Decimal"
	default:
		return "Undefined"
	}
}
