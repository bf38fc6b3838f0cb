// Package row implements the encoded row layout described in spec §4.A/§6:
// a schema-driven binary tuple format with a null bitmap, a fixed-alignment
// static section, and a dynamic section for variable-width payloads.
//
// Rows are copy-on-write. Cloning a row is a cheap reference-count bump;
// the first mutation through a cloned handle allocates a private copy.
// This mirrors the source's Arc<EncodedRowLayoutInner> / CowVec split
// described in spec §4.A and §5.
package row

import "sync/atomic"

// EncodedRow is a copy-on-write byte buffer holding a row's bitmap,
// static section, and (optionally) dynamic section.
type EncodedRow struct {
	data   []byte
	shared *int32
}

// NewRow wraps a freshly allocated buffer as a uniquely-owned row.
func NewRow(data []byte) EncodedRow {
	one := int32(1)
	return EncodedRow{data: data, shared: &one}
}

// Clone returns a new handle to the same underlying bytes. No copy happens
// until one of the two handles is mutated.
func (r EncodedRow) Clone() EncodedRow {
	if r.shared != nil {
		atomic.AddInt32(r.shared, 1)
	}
	return EncodedRow{data: r.data, shared: r.shared}
}

// ensureUnique clones the backing buffer if it is still shared with another
// handle, giving this handle exclusive ownership before a mutation.
func (r *EncodedRow) ensureUnique() {
	if r.shared == nil {
		one := int32(1)
		r.shared = &one
		return
	}
	if atomic.LoadInt32(r.shared) > 1 {
		cp := make([]byte, len(r.data))
		copy(cp, r.data)
		atomic.AddInt32(r.shared, -1)
		one := int32(1)
		r.data = cp
		r.shared = &one
	}
}

// Bytes returns the row's raw backing bytes. Callers must not mutate the
// returned slice; use the Layout setters instead.
func (r EncodedRow) Bytes() []byte { return r.data }

// Len returns the row's total length in bytes, bitmap + static + dynamic.
func (r EncodedRow) Len() int { return len(r.data) }

func (r EncodedRow) ptr() *byte {
	if len(r.data) == 0 {
		return nil
	}
	return &r.data[0]
}

// Identical reports whether two rows currently share the same backing
// array (used by tests asserting copy-on-write semantics).
func (r EncodedRow) Identical(o EncodedRow) bool {
	return r.ptr() == o.ptr()
}
