package txn

import (
	"context"
	"sort"
	"sync"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/reifyerr"
	"github.com/reifydb/reifydb-sub012/internal/storage"
)

type pendingKind uint8

const (
	pendingSet pendingKind = iota
	pendingUnset
	pendingRemove
	pendingDrop
)

type pendingOp struct {
	kind             pendingKind
	key              key.EncodedKey
	values           []byte
	previousValues   []byte
	upToVersion      *uint64
	keepLastVersions *int
}

// rangeRead records a predicate the transaction read, for serializable
// conflict checking (spec §4.D.2 step 4 "Key-range reads record predicate
// entries (range, V0)").
type rangeRead struct {
	start key.EncodedKey
	end   key.EncodedKey
}

// CommandTransaction reads at a snapshot and buffers writes locally until
// Commit applies them atomically (spec §4.D.1 "CommandTransaction").
type CommandTransaction struct {
	mgr       *Manager
	version   uint64
	isolation IsolationLevel

	mu         sync.Mutex
	pending    []pendingOp
	pendingIdx map[string]int // key string -> index in pending, for write-write collapse
	readKeys   map[string]struct{}
	readRanges []rangeRead
	closed     bool
}

func newCommandTransaction(mgr *Manager, version uint64, isolation IsolationLevel) *CommandTransaction {
	return &CommandTransaction{
		mgr:        mgr,
		version:    version,
		isolation:  isolation,
		pendingIdx: make(map[string]int),
	}
}

// Version returns the snapshot version this transaction reads at.
func (ct *CommandTransaction) Version() uint64 { return ct.version }

// Set buffers a write. Write-write within this transaction collapses to
// the latest value at the key's original position (spec §4.D.4).
func (ct *CommandTransaction) Set(k key.EncodedKey, values []byte) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.upsert(pendingOp{kind: pendingSet, key: k, values: values})
}

// Unset buffers a tombstone write. previousValues, if the caller already
// knows it, is carried through to CDC as the delete's pre-image.
func (ct *CommandTransaction) Unset(k key.EncodedKey, previousValues []byte) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.upsert(pendingOp{kind: pendingUnset, key: k, previousValues: previousValues})
}

// Remove buffers a physical delete of every version of k.
func (ct *CommandTransaction) Remove(k key.EncodedKey) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.upsert(pendingOp{kind: pendingRemove, key: k})
}

// Drop buffers a retention trim of k's historical versions (spec §4.B.2).
// Drop deltas are excluded from CDC.
func (ct *CommandTransaction) Drop(k key.EncodedKey, upToVersion *uint64, keepLastVersions *int) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ks := string(k)
	if idx, ok := ct.pendingIdx[ks]; ok && ct.pending[idx].kind != pendingDrop {
		// A Drop on a key already written by Set/Unset in this
		// transaction still needs both effects applied in order; keep
		// both by appending rather than collapsing.
		ct.pending = append(ct.pending, pendingOp{kind: pendingDrop, key: k, upToVersion: upToVersion, keepLastVersions: keepLastVersions})
		return
	}
	ct.upsert(pendingOp{kind: pendingDrop, key: k, upToVersion: upToVersion, keepLastVersions: keepLastVersions})
}

func (ct *CommandTransaction) upsert(op pendingOp) {
	ks := string(op.key)
	if idx, ok := ct.pendingIdx[ks]; ok {
		ct.pending[idx] = op
		return
	}
	ct.pendingIdx[ks] = len(ct.pending)
	ct.pending = append(ct.pending, op)
}

// Get observes read-your-own-writes: it consults the pending-write set
// first, then falls through to storage at the snapshot version (spec
// §4.D.4).
func (ct *CommandTransaction) Get(ctx context.Context, k key.EncodedKey) (storage.MultiVersionRecord, bool, error) {
	ct.mu.Lock()
	if idx, ok := ct.pendingIdx[string(k)]; ok {
		op := ct.pending[idx]
		ct.mu.Unlock()
		switch op.kind {
		case pendingSet:
			return storage.MultiVersionRecord{Key: k, Values: op.values, Version: ct.version}, true, nil
		case pendingUnset, pendingRemove:
			return storage.MultiVersionRecord{}, false, nil
		}
		// pendingDrop does not shadow a read; fall through to storage.
	} else {
		if ct.isolation == Serializable {
			if ct.readKeys == nil {
				ct.readKeys = make(map[string]struct{})
			}
			ct.readKeys[string(k)] = struct{}{}
		}
		ct.mu.Unlock()
	}
	return ct.mgr.backend.Get(ctx, k, ct.version)
}

// Contains is Get reduced to a boolean.
func (ct *CommandTransaction) Contains(ctx context.Context, k key.EncodedKey) (bool, error) {
	_, ok, err := ct.Get(ctx, k)
	return ok, err
}

// Range merges the pending-write set with a storage range read using the
// same first-writer-wins discipline as the tier's merging iterator (spec
// §4.D.4 "Range iteration merges pending writes with the storage range").
func (ct *CommandTransaction) Range(ctx context.Context, start, end key.EncodedKey) (storage.Iterator, error) {
	ct.mu.Lock()
	if ct.isolation == Serializable {
		ct.readRanges = append(ct.readRanges, rangeRead{start: start, end: end})
	}
	overrides := make(map[string]*pendingOp, len(ct.pending))
	for i := range ct.pending {
		op := &ct.pending[i]
		ks := string(op.key)
		if ks < string(start) || (end != nil && ks >= string(end)) {
			continue
		}
		overrides[ks] = op
	}
	ct.mu.Unlock()

	it, err := ct.mgr.backend.Range(ctx, start, end, ct.version)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	merged := make(map[string]storage.MultiVersionRecord)
	for it.Next() {
		rec := it.Record()
		merged[string(rec.Key)] = rec
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	for ks, op := range overrides {
		switch op.kind {
		case pendingSet:
			merged[ks] = storage.MultiVersionRecord{Key: op.key, Values: op.values, Version: ct.version}
		case pendingUnset, pendingRemove:
			delete(merged, ks)
		}
	}

	out := make([]storage.MultiVersionRecord, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i].Key) < string(out[j].Key) })

	return &sliceIterator{records: out, idx: -1}, nil
}

// Commit runs the optimistic/serializable protocol and applies the
// pending-write set atomically (spec §4.D.2). A conflict leaves the
// underlying storage untouched; the caller may retry on a fresh
// transaction.
func (ct *CommandTransaction) Commit(ctx context.Context) (uint64, error) {
	ct.mu.Lock()
	if ct.closed {
		ct.mu.Unlock()
		return 0, reifyerr.New(reifyerr.CodeInternal, "transaction already closed")
	}
	ct.closed = true
	ct.mu.Unlock()

	return ct.mgr.commit(ctx, ct)
}

// Rollback discards the pending-write set without touching storage (spec
// §4.D.2 "Aborts simply discard the pending-write set").
func (ct *CommandTransaction) Rollback() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.closed = true
	ct.pending = nil
	ct.pendingIdx = nil
}

func (ct *CommandTransaction) writtenKeyStrings() []string {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	seen := make(map[string]struct{}, len(ct.pending))
	out := make([]string, 0, len(ct.pending))
	for _, op := range ct.pending {
		ks := string(op.key)
		if _, ok := seen[ks]; ok {
			continue
		}
		seen[ks] = struct{}{}
		out = append(out, ks)
	}
	return out
}

func (ct *CommandTransaction) readKeyStrings() []string {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	out := make([]string, 0, len(ct.readKeys))
	for k := range ct.readKeys {
		out = append(out, k)
	}
	return out
}

// materializeDeltas converts the pending-write set into storage deltas, in
// the order writes occurred (spec §4.D.2 step 6, §5 "changes are ordered
// by seq, which equals the order deltas were in the pending-write set").
func (ct *CommandTransaction) materializeDeltas() []storage.Delta {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	deltas := make([]storage.Delta, 0, len(ct.pending))
	for _, op := range ct.pending {
		switch op.kind {
		case pendingSet:
			deltas = append(deltas, storage.Delta{Kind: storage.DeltaSet, Key: op.key, Values: op.values})
		case pendingUnset:
			deltas = append(deltas, storage.Delta{Kind: storage.DeltaUnset, Key: op.key, PreviousValues: op.previousValues})
		case pendingRemove:
			deltas = append(deltas, storage.Delta{Kind: storage.DeltaRemove, Key: op.key})
		case pendingDrop:
			deltas = append(deltas, storage.Delta{Kind: storage.DeltaDrop, Key: op.key, UpToVersion: op.upToVersion, KeepLastVersions: op.keepLastVersions})
		}
	}
	return deltas
}

type sliceIterator struct {
	records []storage.MultiVersionRecord
	idx     int
}

func (it *sliceIterator) Next() bool {
	it.idx++
	return it.idx < len(it.records)
}

func (it *sliceIterator) Record() storage.MultiVersionRecord { return it.records[it.idx] }
func (it *sliceIterator) Err() error                         { return nil }
func (it *sliceIterator) Close() error                       { return nil }
