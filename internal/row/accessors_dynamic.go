package row

import (
	"encoding/binary"
	"math/big"

	"github.com/reifydb/reifydb-sub012/internal/rtype"
)

// appendDynamic grows r's dynamic section by payload, ensuring the row is
// uniquely owned first, and writes the resulting (offset, length) pointer
// into field i's static-section slot. offset is measured from the start of
// the dynamic section (i.e. from TotalStaticSize()), not from byte zero.
func (l *Layout) appendDynamic(r *EncodedRow, i int, payload []byte) {
	r.ensureUnique()

	staticEnd := l.TotalStaticSize()
	dynLen := len(r.data) - staticEnd
	if dynLen < 0 {
		dynLen = 0
	}

	grown := make([]byte, len(r.data)+len(payload))
	copy(grown, r.data)
	copy(grown[len(r.data):], payload)
	r.data = grown

	off := l.Fields[i].Offset
	binary.LittleEndian.PutUint32(r.data[off:], uint32(dynLen))
	binary.LittleEndian.PutUint32(r.data[off+4:], uint32(len(payload)))
	l.setValid(r, i, true)
}

// dynamicSlice resolves field i's (offset, length) pointer into a slice of
// the row's dynamic section.
func (l *Layout) dynamicSlice(r EncodedRow, i int) []byte {
	off := l.Fields[i].Offset
	dynOff := binary.LittleEndian.Uint32(r.data[off:])
	length := binary.LittleEndian.Uint32(r.data[off+4:])
	start := l.TotalStaticSize() + int(dynOff)
	return r.data[start : start+int(length)]
}

// SetUtf8 appends a string's bytes to the dynamic section and points the
// field at them.
func (l *Layout) SetUtf8(r *EncodedRow, i int, v string) {
	l.checkType(i, rtype.Utf8)
	l.appendDynamic(r, i, []byte(v))
}

// GetUtf8 returns field i's string payload.
func (l *Layout) GetUtf8(r EncodedRow, i int) string {
	l.checkType(i, rtype.Utf8)
	return string(l.dynamicSlice(r, i))
}

// SetBlob appends raw bytes to the dynamic section and points the field at
// them. The payload is copied; callers may reuse v afterward.
func (l *Layout) SetBlob(r *EncodedRow, i int, v []byte) {
	l.checkType(i, rtype.Blob)
	l.appendDynamic(r, i, v)
}

// GetBlob returns field i's byte payload. The returned slice aliases the
// row's backing array and must not be mutated.
func (l *Layout) GetBlob(r EncodedRow, i int) []byte {
	l.checkType(i, rtype.Blob)
	return l.dynamicSlice(r, i)
}

// SetDecimal accepts a *big.Rat, big.Rat, string, int, int64, or float64 and
// stores its canonical string form in the dynamic section.
func (l *Layout) SetDecimal(r *EncodedRow, i int, v any) error {
	l.checkType(i, rtype.Decimal)
	rat, ok := decimalFromAny(v)
	if !ok {
		return errUnsupportedDecimal(v)
	}
	l.appendDynamic(r, i, []byte(decimalToString(rat)))
	return nil
}

// GetDecimal parses field i's payload back into a *big.Rat.
func (l *Layout) GetDecimal(r EncodedRow, i int) (*big.Rat, error) {
	l.checkType(i, rtype.Decimal)
	return decimalFromString(string(l.dynamicSlice(r, i)))
}

func errUnsupportedDecimal(v any) error {
	return &unsupportedDecimalError{v: v}
}

type unsupportedDecimalError struct{ v any }

func (e *unsupportedDecimalError) Error() string {
	return "row: unsupported decimal value"
}
