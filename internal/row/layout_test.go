package row

import (
	"math/big"
	"testing"

	"github.com/reifydb/reifydb-sub012/internal/rtype"
)

func TestAllDefinedFalseOnFreshAllocation(t *testing.T) {
	l := NewLayout([]rtype.Type{rtype.Int4, rtype.Boolean, rtype.Utf8})
	r := l.AllocateRow()
	if l.AllDefined(r) {
		t.Fatal("freshly allocated row must not be all-defined")
	}
	for i := range l.Fields {
		if l.IsDefined(r, i) {
			t.Fatalf("field %d should start undefined", i)
		}
	}
}

func TestRoundTripFixedWidth(t *testing.T) {
	l := NewLayout([]rtype.Type{
		rtype.Boolean, rtype.Int1, rtype.Int2, rtype.Int4, rtype.Int8,
		rtype.Uint1, rtype.Uint2, rtype.Uint4, rtype.Uint8,
		rtype.Float4, rtype.Float8,
	})
	r := l.AllocateRow()

	l.SetBool(&r, 0, true)
	l.SetInt1(&r, 1, -12)
	l.SetInt2(&r, 2, -1234)
	l.SetInt4(&r, 3, -123456)
	l.SetInt8(&r, 4, -123456789012)
	l.SetUint1(&r, 5, 200)
	l.SetUint2(&r, 6, 60000)
	l.SetUint4(&r, 7, 4000000000)
	l.SetUint8(&r, 8, 18000000000000000000)
	l.SetFloat4(&r, 9, 3.5)
	l.SetFloat8(&r, 10, 2.718281828)

	if got := l.GetBool(r, 0); got != true {
		t.Errorf("GetBool = %v", got)
	}
	if got := l.GetInt1(r, 1); got != -12 {
		t.Errorf("GetInt1 = %v", got)
	}
	if got := l.GetInt2(r, 2); got != -1234 {
		t.Errorf("GetInt2 = %v", got)
	}
	if got := l.GetInt4(r, 3); got != -123456 {
		t.Errorf("GetInt4 = %v", got)
	}
	if got := l.GetInt8(r, 4); got != -123456789012 {
		t.Errorf("GetInt8 = %v", got)
	}
	if got := l.GetUint1(r, 5); got != 200 {
		t.Errorf("GetUint1 = %v", got)
	}
	if got := l.GetUint2(r, 6); got != 60000 {
		t.Errorf("GetUint2 = %v", got)
	}
	if got := l.GetUint4(r, 7); got != 4000000000 {
		t.Errorf("GetUint4 = %v", got)
	}
	if got := l.GetUint8(r, 8); got != 18000000000000000000 {
		t.Errorf("GetUint8 = %v", got)
	}
	if got := l.GetFloat4(r, 9); got != 3.5 {
		t.Errorf("GetFloat4 = %v", got)
	}
	if got := l.GetFloat8(r, 10); got != 2.718281828 {
		t.Errorf("GetFloat8 = %v", got)
	}
	if !l.AllDefined(r) {
		t.Error("expected all fields defined after setting each")
	}
}

func TestRoundTrip128Bit(t *testing.T) {
	l := NewLayout([]rtype.Type{rtype.Int16, rtype.Uint16})
	r := l.AllocateRow()

	neg := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 100))
	l.SetInt16(&r, 0, neg)
	if got := l.GetInt16(r, 0); got.Cmp(neg) != 0 {
		t.Errorf("GetInt16 = %s, want %s", got, neg)
	}

	big1 := new(big.Int).Lsh(big.NewInt(1), 127)
	big1.Add(big1, big.NewInt(1))
	l.SetUint16(&r, 1, big1)
	if got := l.GetUint16(r, 1); got.Cmp(big1) != 0 {
		t.Errorf("GetUint16 = %s, want %s", got, big1)
	}
}

func TestRoundTripDynamicSections(t *testing.T) {
	l := NewLayout([]rtype.Type{rtype.Utf8, rtype.Blob, rtype.Decimal})
	r := l.AllocateRow()

	l.SetUtf8(&r, 0, "hello, reify")
	l.SetBlob(&r, 1, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err := l.SetDecimal(&r, 2, "12.50"); err != nil {
		t.Fatalf("SetDecimal: %v", err)
	}

	if got := l.GetUtf8(r, 0); got != "hello, reify" {
		t.Errorf("GetUtf8 = %q", got)
	}
	if got := l.GetBlob(r, 1); string(got) != "\xDE\xAD\xBE\xEF" {
		t.Errorf("GetBlob = %x", got)
	}
	dec, err := l.GetDecimal(r, 2)
	if err != nil {
		t.Fatalf("GetDecimal: %v", err)
	}
	if dec.RatString() != "25/2" {
		t.Errorf("GetDecimal = %s, want 25/2", dec.RatString())
	}
}

func TestSetUndefinedClearsBit(t *testing.T) {
	l := NewLayout([]rtype.Type{rtype.Int4})
	r := l.AllocateRow()
	l.SetInt4(&r, 0, 7)
	if !l.IsDefined(r, 0) {
		t.Fatal("expected defined after Set")
	}
	l.SetUndefined(&r, 0)
	if l.IsDefined(r, 0) {
		t.Fatal("expected undefined after SetUndefined")
	}
}

func TestCloneIsCopyOnWrite(t *testing.T) {
	l := NewLayout([]rtype.Type{rtype.Int4})
	r := l.AllocateRow()
	l.SetInt4(&r, 0, 1)

	clone := r.Clone()
	if !r.Identical(clone) {
		t.Fatal("clone should share backing array before mutation")
	}

	l.SetInt4(&clone, 0, 2)
	if r.Identical(clone) {
		t.Fatal("clone should diverge after mutation")
	}
	if got := l.GetInt4(r, 0); got != 1 {
		t.Errorf("original mutated: GetInt4 = %d, want 1", got)
	}
	if got := l.GetInt4(clone, 0); got != 2 {
		t.Errorf("clone GetInt4 = %d, want 2", got)
	}
}

func TestAlignmentPadding(t *testing.T) {
	l := NewLayout([]rtype.Type{rtype.Boolean, rtype.Int8})
	if l.Fields[1].Offset%8 != 0 {
		t.Errorf("Int8 field must be 8-byte aligned, got offset %d", l.Fields[1].Offset)
	}
	if l.StaticSectionSize%l.Alignment != 0 {
		t.Errorf("static section size %d must be padded to alignment %d", l.StaticSectionSize, l.Alignment)
	}
}
