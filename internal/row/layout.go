package row

import (
	"fmt"

	"github.com/reifydb/reifydb-sub012/internal/rtype"
)

// Field describes one schema entry's precomputed placement in the static
// section.
type Field struct {
	Offset int
	Size   int
	Align  int
	Type   rtype.Type
}

// Layout is a precomputed, immutable description of a row's binary shape:
// the null bitmap size, the per-field offset table, and the static
// section's total size and alignment. It is shared by reference across
// every row that conforms to the same schema (spec §4.A: "the layout is
// shared by reference; immutable after construction").
type Layout struct {
	Fields            []Field
	BitmapSize        int
	StaticSectionSize int
	Alignment         int
}

func alignUp(offset, align int) int {
	return (offset + align - 1) &^ (align - 1)
}

// NewLayout computes the field table for an ordered sequence of types,
// walking the list once: align the running offset up to each field's
// alignment, record it, advance by the field's size, then pad the whole
// static section up to the maximum field alignment (spec §4.A "Key
// algorithm — offset computation").
func NewLayout(kinds []rtype.Type) *Layout {
	if len(kinds) == 0 {
		panic("row: layout requires at least one field")
	}

	bitmapSize := (len(kinds) + 7) / 8
	offset := bitmapSize
	maxAlign := 1
	fields := make([]Field, 0, len(kinds))

	for _, k := range kinds {
		size := k.Size()
		align := k.Alignment()

		offset = alignUp(offset, align)
		fields = append(fields, Field{Offset: offset, Size: size, Align: align, Type: k})
		offset += size
		if align > maxAlign {
			maxAlign = align
		}
	}

	return &Layout{
		Fields:            fields,
		BitmapSize:        bitmapSize,
		StaticSectionSize: alignUp(offset-bitmapSize, maxAlign),
		Alignment:         maxAlign,
	}
}

// TotalStaticSize is the bitmap plus the static section, i.e. the length
// of a freshly allocated row with no dynamic payloads.
func (l *Layout) TotalStaticSize() int {
	return l.BitmapSize + l.StaticSectionSize
}

// DataOffset is where the static section begins, right after the bitmap.
func (l *Layout) DataOffset() int { return l.BitmapSize }

// AllocateRow returns a zero-initialized row sized for the static section;
// every null bit starts clear (every field undefined).
func (l *Layout) AllocateRow() EncodedRow {
	return NewRow(make([]byte, l.TotalStaticSize()))
}

// DataSlice returns the static section (bitmap excluded).
func (l *Layout) DataSlice(r EncodedRow) []byte {
	return r.data[l.DataOffset():l.TotalStaticSize()]
}

// DynamicSection returns the bytes appended after the static section.
func (l *Layout) DynamicSection(r EncodedRow) []byte {
	if r.Len() <= l.TotalStaticSize() {
		return nil
	}
	return r.data[l.TotalStaticSize():]
}

// IsDefined reports whether the null bit for field i is set.
func (l *Layout) IsDefined(r EncodedRow, i int) bool {
	byteIdx := i / 8
	bit := uint(i % 8)
	return r.data[byteIdx]&(1<<bit) != 0
}

// AllDefined reports whether every field's null bit is set. An
// empty/zero-field layout is never considered fully defined (spec §8:
// "all_defined(allocate_row) is false if N > 0" generalizes to: a row
// with no fields at all carries no meaningful "all defined" claim).
func (l *Layout) AllDefined(r EncodedRow) bool {
	n := len(l.Fields)
	if n == 0 {
		return false
	}
	for i := 0; i < l.BitmapSize; i++ {
		bitsInByte := 8
		if i == l.BitmapSize-1 && n%8 != 0 {
			bitsInByte = n % 8
		}
		var mask byte
		if bitsInByte == 8 {
			mask = 0xFF
		} else {
			mask = (1 << uint(bitsInByte)) - 1
		}
		if r.data[i]&mask != mask {
			return false
		}
	}
	return true
}

func (l *Layout) setValid(r *EncodedRow, i int, valid bool) {
	byteIdx := i / 8
	bit := uint(i % 8)
	if valid {
		r.data[byteIdx] |= 1 << bit
	} else {
		r.data[byteIdx] &^= 1 << bit
	}
}

// SetUndefined clears the null bit for field i. The slot's payload is left
// as-is; per spec §4.A it becomes meaningless and must not be read.
func (l *Layout) SetUndefined(r *EncodedRow, i int) {
	r.ensureUnique()
	l.setValid(r, i, false)
}

func (l *Layout) checkType(i int, want rtype.Type) {
	if l.Fields[i].Type != want {
		panic(fmt.Sprintf("row: field %d is %s, not %s", i, l.Fields[i].Type, want))
	}
}
