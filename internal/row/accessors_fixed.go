package row

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/reifydb/reifydb-sub012/internal/rtype"
)

// SetBool writes a boolean field and marks it defined.
func (l *Layout) SetBool(r *EncodedRow, i int, v bool) {
	l.checkType(i, rtype.Boolean)
	r.ensureUnique()
	off := l.Fields[i].Offset
	if v {
		r.data[off] = 1
	} else {
		r.data[off] = 0
	}
	l.setValid(r, i, true)
}

// GetBool reads a boolean field. Undefined behavior if the field's null
// bit is clear, per spec §4.A.
func (l *Layout) GetBool(r EncodedRow, i int) bool {
	l.checkType(i, rtype.Boolean)
	return r.data[l.Fields[i].Offset] != 0
}

func (l *Layout) setUintN(r *EncodedRow, i int, want rtype.Type, n int, v uint64) {
	l.checkType(i, want)
	r.ensureUnique()
	off := l.Fields[i].Offset
	switch n {
	case 1:
		r.data[off] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(r.data[off:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(r.data[off:], uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(r.data[off:], v)
	}
	l.setValid(r, i, true)
}

func (l *Layout) getUintN(r EncodedRow, i int, want rtype.Type, n int) uint64 {
	l.checkType(i, want)
	off := l.Fields[i].Offset
	switch n {
	case 1:
		return uint64(r.data[off])
	case 2:
		return uint64(binary.LittleEndian.Uint16(r.data[off:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(r.data[off:]))
	case 8:
		return binary.LittleEndian.Uint64(r.data[off:])
	}
	return 0
}

func (l *Layout) SetInt1(r *EncodedRow, i int, v int8)  { l.setUintN(r, i, rtype.Int1, 1, uint64(uint8(v))) }
func (l *Layout) GetInt1(r EncodedRow, i int) int8      { return int8(l.getUintN(r, i, rtype.Int1, 1)) }
func (l *Layout) SetInt2(r *EncodedRow, i int, v int16) { l.setUintN(r, i, rtype.Int2, 2, uint64(uint16(v))) }
func (l *Layout) GetInt2(r EncodedRow, i int) int16     { return int16(l.getUintN(r, i, rtype.Int2, 2)) }
func (l *Layout) SetInt4(r *EncodedRow, i int, v int32) { l.setUintN(r, i, rtype.Int4, 4, uint64(uint32(v))) }
func (l *Layout) GetInt4(r EncodedRow, i int) int32     { return int32(l.getUintN(r, i, rtype.Int4, 4)) }
func (l *Layout) SetInt8(r *EncodedRow, i int, v int64) { l.setUintN(r, i, rtype.Int8, 8, uint64(v)) }
func (l *Layout) GetInt8(r EncodedRow, i int) int64     { return int64(l.getUintN(r, i, rtype.Int8, 8)) }

func (l *Layout) SetUint1(r *EncodedRow, i int, v uint8)   { l.setUintN(r, i, rtype.Uint1, 1, uint64(v)) }
func (l *Layout) GetUint1(r EncodedRow, i int) uint8       { return uint8(l.getUintN(r, i, rtype.Uint1, 1)) }
func (l *Layout) SetUint2(r *EncodedRow, i int, v uint16)  { l.setUintN(r, i, rtype.Uint2, 2, uint64(v)) }
func (l *Layout) GetUint2(r EncodedRow, i int) uint16      { return uint16(l.getUintN(r, i, rtype.Uint2, 2)) }
func (l *Layout) SetUint4(r *EncodedRow, i int, v uint32)  { l.setUintN(r, i, rtype.Uint4, 4, uint64(v)) }
func (l *Layout) GetUint4(r EncodedRow, i int) uint32      { return uint32(l.getUintN(r, i, rtype.Uint4, 4)) }
func (l *Layout) SetUint8(r *EncodedRow, i int, v uint64)  { l.setUintN(r, i, rtype.Uint8, 8, v) }
func (l *Layout) GetUint8(r EncodedRow, i int) uint64      { return l.getUintN(r, i, rtype.Uint8, 8) }

// SetFloat4 writes an IEEE-754 single-precision field.
func (l *Layout) SetFloat4(r *EncodedRow, i int, v float32) {
	l.setUintN(r, i, rtype.Float4, 4, uint64(math.Float32bits(v)))
}

// GetFloat4 reads an IEEE-754 single-precision field.
func (l *Layout) GetFloat4(r EncodedRow, i int) float32 {
	return math.Float32frombits(uint32(l.getUintN(r, i, rtype.Float4, 4)))
}

// SetFloat8 writes an IEEE-754 double-precision field.
func (l *Layout) SetFloat8(r *EncodedRow, i int, v float64) {
	l.setUintN(r, i, rtype.Float8, 8, math.Float64bits(v))
}

// GetFloat8 reads an IEEE-754 double-precision field.
func (l *Layout) GetFloat8(r EncodedRow, i int) float64 {
	return math.Float64frombits(l.getUintN(r, i, rtype.Float8, 8))
}

// --- 128-bit signed/unsigned, little-endian two's complement ---

func put128LE(buf []byte, v *big.Int, signed bool) {
	var mag big.Int
	if signed && v.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		mag.Add(mod, v)
	} else {
		mag.Set(v)
	}
	be := mag.Bytes()
	for i := 0; i < 16; i++ {
		buf[i] = 0
	}
	for i := 0; i < len(be) && i < 16; i++ {
		buf[i] = be[len(be)-1-i]
	}
}

func get128LE(buf []byte, signed bool) *big.Int {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = buf[15-i]
	}
	v := new(big.Int).SetBytes(be)
	if signed && buf[15]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		v.Sub(v, mod)
	}
	return v
}

// SetInt16 writes a 128-bit signed field as little-endian two's complement.
func (l *Layout) SetInt16(r *EncodedRow, i int, v *big.Int) {
	l.checkType(i, rtype.Int16)
	r.ensureUnique()
	put128LE(r.data[l.Fields[i].Offset:l.Fields[i].Offset+16], v, true)
	l.setValid(r, i, true)
}

// GetInt16 reads a 128-bit signed field.
func (l *Layout) GetInt16(r EncodedRow, i int) *big.Int {
	l.checkType(i, rtype.Int16)
	off := l.Fields[i].Offset
	return get128LE(r.data[off:off+16], true)
}

// SetUint16 writes a 128-bit unsigned field as little-endian bytes.
func (l *Layout) SetUint16(r *EncodedRow, i int, v *big.Int) {
	l.checkType(i, rtype.Uint16)
	r.ensureUnique()
	put128LE(r.data[l.Fields[i].Offset:l.Fields[i].Offset+16], v, false)
	l.setValid(r, i, true)
}

// GetUint16 reads a 128-bit unsigned field.
func (l *Layout) GetUint16(r EncodedRow, i int) *big.Int {
	l.checkType(i, rtype.Uint16)
	off := l.Fields[i].Offset
	return get128LE(r.data[off:off+16], false)
}
