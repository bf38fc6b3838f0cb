package txn

import (
	"context"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/storage"
)

// QueryTransaction reads a fixed snapshot version. It never writes and has
// no commit (spec §4.D.1 "QueryTransaction — read at a snapshot version,
// no writes, no commit").
type QueryTransaction struct {
	backend storage.Backend
	version uint64
}

// Version returns the snapshot version this transaction reads at.
func (qt *QueryTransaction) Version() uint64 { return qt.version }

// Get reads k as of the transaction's snapshot.
func (qt *QueryTransaction) Get(ctx context.Context, k key.EncodedKey) (storage.MultiVersionRecord, bool, error) {
	return qt.backend.Get(ctx, k, qt.version)
}

// Contains is a cheaper existence check at the transaction's snapshot.
func (qt *QueryTransaction) Contains(ctx context.Context, k key.EncodedKey) (bool, error) {
	return qt.backend.Contains(ctx, k, qt.version)
}

// Range iterates [start, end) as of the transaction's snapshot.
func (qt *QueryTransaction) Range(ctx context.Context, start, end key.EncodedKey) (storage.Iterator, error) {
	return qt.backend.Range(ctx, start, end, qt.version)
}

// RangeRev is Range in descending key order.
func (qt *QueryTransaction) RangeRev(ctx context.Context, start, end key.EncodedKey) (storage.Iterator, error) {
	return qt.backend.RangeRev(ctx, start, end, qt.version)
}
