// Package txn implements the MVCC command/query transaction protocol of
// spec §4.D: optimistic and serializable isolation, read-set/write-set
// conflict detection, commit-version issuance, and CDC emission on commit.
// It sits above internal/storage (the versioned backend) and internal/cdc
// (the change-feed producer), grounded on the teacher's MVCCManager in
// internal/storage/mvcc.go — the same shape (a manager tracking active/
// committed transactions behind one mutex, a monotonic version counter,
// per-transaction read/write sets) generalized from table/rowID keys to
// spec.md's EncodedKey and from table-level conflict checks to exact
// key-level ones.
package txn

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reifydb/reifydb-sub012/internal/cdc"
	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/reifyerr"
	"github.com/reifydb/reifydb-sub012/internal/stats"
	"github.com/reifydb/reifydb-sub012/internal/storage"
	"github.com/reifydb/reifydb-sub012/internal/storage/sequence"
	"github.com/reifydb/reifydb-sub012/internal/txn/singlelock"
)

func defaultNowMs() uint64 { return uint64(time.Now().UnixMilli()) }

// IsolationLevel selects how aggressively Commit checks for conflicts
// (spec §4.D.2 step 4, "(Serializable only)").
type IsolationLevel uint8

const (
	Optimistic IsolationLevel = iota
	Serializable
)

// defaultRetainWindow bounds how many trailing commit versions the
// manager's write log keeps for conflict checking (spec §4.D.2 step 8,
// "trim the log below the retained-versions floor"). A transaction that
// stays open longer than this many commits will fail every write with a
// conflict regardless of actual overlap — acceptable, since a commit
// latch this far behind is already pathological.
const defaultRetainWindow = 1 << 20

// writeLogEntry is one committed transaction's write set, kept for
// conflict checks against transactions still open at an earlier snapshot.
type writeLogEntry struct {
	version uint64
	keys    []string
}

// Manager owns the commit latch, the version sequence, and the recent-
// writes log every open transaction's commit validates against. One
// Manager corresponds to one database (spec §5 "the commit latch is the
// only global lock").
type Manager struct {
	backend  storage.Backend
	producer *cdc.Producer
	stats    *stats.Tracker

	versions *sequence.Sequence[uint64]

	latch sync.Mutex

	logMu        sync.Mutex
	writeLog     []writeLogEntry
	retainWindow uint64

	locks *singlelock.Table

	nowMs func() uint64
}

// NewManager constructs a transaction manager over backend, posting CDC
// work items to producer and current/historical counter updates to
// statsTracker on every commit (spec §4.E). Either may be nil. nowMs
// supplies the commit timestamp (spec §4.D.2 step 7 "now_ms"); pass nil to
// use time.Now.
func NewManager(backend storage.Backend, producer *cdc.Producer, statsTracker *stats.Tracker, nowMs func() uint64) *Manager {
	if nowMs == nil {
		nowMs = defaultNowMs
	}
	return &Manager{
		backend:      backend,
		producer:     producer,
		stats:        statsTracker,
		versions:     sequence.New[uint64](0, ^uint64(0)),
		retainWindow: defaultRetainWindow,
		locks:        singlelock.New(),
		nowMs:        nowMs,
	}
}

// CurrentVersion returns the most recently assigned commit version,
// suitable as a cdc.Consumer's CurrentVersionFunc.
func (m *Manager) CurrentVersion(context.Context) (uint64, error) {
	return m.versions.Current(), nil
}

// Begin opens a read-only query transaction at the current snapshot
// version (spec §4.D.1 "QueryTransaction").
func (m *Manager) Begin(context.Context) (*QueryTransaction, error) {
	return &QueryTransaction{backend: m.backend, version: m.versions.Current()}, nil
}

// BeginCommand opens a command transaction that buffers writes locally
// until Commit (spec §4.D.1 "CommandTransaction").
func (m *Manager) BeginCommand(ctx context.Context, isolation IsolationLevel) (*CommandTransaction, error) {
	qt, err := m.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return newCommandTransaction(m, qt.version, isolation), nil
}

// BeginAdmin opens a command transaction carrying DDL authority; the
// isolation rules are identical to CommandTransaction (spec §4.D.1).
func (m *Manager) BeginAdmin(ctx context.Context, isolation IsolationLevel) (*AdminTransaction, error) {
	ct, err := m.BeginCommand(ctx, isolation)
	if err != nil {
		return nil, err
	}
	return &AdminTransaction{CommandTransaction: ct}, nil
}

// WithSingleCommand acquires the single-version lock layer's per-key
// locks for keys, runs f against a fresh serializable command
// transaction, commits on success, and rolls back (releasing the locks on
// every exit path) on failure or panic (spec §4.D.3 "with_single_command
// acquires, runs f, commits or rolls back, and guarantees release on
// every exit path").
func (m *Manager) WithSingleCommand(ctx context.Context, keys []key.EncodedKey, f func(ct *CommandTransaction) error) (version uint64, err error) {
	lockErr := m.locks.WithSingleCommand(keys, func() error {
		ct, beginErr := m.BeginCommand(ctx, Serializable)
		if beginErr != nil {
			return beginErr
		}
		defer func() {
			if r := recover(); r != nil {
				ct.Rollback()
				panic(r)
			}
		}()

		if runErr := f(ct); runErr != nil {
			ct.Rollback()
			return runErr
		}

		vc, commitErr := ct.Commit(ctx)
		if commitErr != nil {
			return commitErr
		}
		version = vc
		return nil
	})
	return version, lockErr
}

// commit runs the optimistic/serializable protocol of spec §4.D.2 and
// returns the assigned commit version.
func (m *Manager) commit(ctx context.Context, ct *CommandTransaction) (uint64, error) {
	m.latch.Lock()
	defer m.latch.Unlock()

	v1 := m.versions.Current()

	writes := ct.writtenKeyStrings()
	if len(writes) > 0 && v1-ct.version > m.retainWindow {
		// The write log no longer covers (ct.version, v1]; see
		// defaultRetainWindow.
		return 0, reifyerr.New(reifyerr.CodeConflict, "snapshot older than the retained write log")
	}
	if conflict := m.anyWriteSince(ct.version, v1, writes); conflict {
		return 0, reifyerr.New(reifyerr.CodeConflict, "write-write conflict")
	}
	if ct.isolation == Serializable {
		reads := ct.readKeyStrings()
		if conflict := m.anyWriteSince(ct.version, v1, reads); conflict {
			return 0, reifyerr.New(reifyerr.CodeConflict, "read-write conflict (key)")
		}
		if conflict := m.anyRangeWriteSince(ct.version, v1, ct.readRanges); conflict {
			return 0, reifyerr.New(reifyerr.CodeConflict, "read-write conflict (range)")
		}
	}

	vc, err := m.versions.Next()
	if err != nil {
		return 0, reifyerr.Wrap(reifyerr.CodeSequenceExhausted, "commit version sequence exhausted", err)
	}

	deltas := ct.materializeDeltas()
	if err := m.backend.Commit(ctx, deltas, vc); err != nil {
		return 0, reifyerr.Wrap(reifyerr.CodeIO, "storage commit failed", err)
	}

	if m.producer != nil {
		m.producer.Post(cdc.WorkItem{
			Version:     vc,
			TimestampMs: m.nowMs(),
			Deltas:      toDeltaViews(deltas),
		})
	}

	if m.stats != nil {
		recordStats(m.stats, deltas)
	}

	if len(writes) > 0 {
		m.recordWrites(vc, writes)
	}

	return vc, nil
}

// anyWriteSince reports whether any key in keys was written by a
// committed transaction with version in (v0, v1] (spec §4.D.2 step 3/4).
func (m *Manager) anyWriteSince(v0, v1 uint64, keys []string) bool {
	if len(keys) == 0 || v0 >= v1 {
		return false
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}

	m.logMu.Lock()
	defer m.logMu.Unlock()

	i := sort.Search(len(m.writeLog), func(i int) bool { return m.writeLog[i].version > v0 })
	for ; i < len(m.writeLog) && m.writeLog[i].version <= v1; i++ {
		for _, k := range m.writeLog[i].keys {
			if _, ok := want[k]; ok {
				return true
			}
		}
	}
	return false
}

// anyRangeWriteSince reports whether any committed write in (v0, v1]
// landed inside one of the transaction's read ranges (spec §4.D.2 step 4
// "Key-range reads record predicate entries").
func (m *Manager) anyRangeWriteSince(v0, v1 uint64, ranges []rangeRead) bool {
	if len(ranges) == 0 || v0 >= v1 {
		return false
	}

	m.logMu.Lock()
	defer m.logMu.Unlock()

	i := sort.Search(len(m.writeLog), func(i int) bool { return m.writeLog[i].version > v0 })
	for ; i < len(m.writeLog) && m.writeLog[i].version <= v1; i++ {
		for _, k := range m.writeLog[i].keys {
			for _, r := range ranges {
				if withinRange(k, r) {
					return true
				}
			}
		}
	}
	return false
}

func withinRange(k string, r rangeRead) bool {
	if k < string(r.start) {
		return false
	}
	if r.end != nil && k >= string(r.end) {
		return false
	}
	return true
}

func (m *Manager) recordWrites(version uint64, keys []string) {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	m.writeLog = append(m.writeLog, writeLogEntry{version: version, keys: keys})

	floor := version
	if floor > m.retainWindow {
		floor -= m.retainWindow
	} else {
		floor = 0
	}
	drop := 0
	for drop < len(m.writeLog) && m.writeLog[drop].version < floor {
		drop++
	}
	if drop > 0 {
		m.writeLog = append(m.writeLog[:0], m.writeLog[drop:]...)
	}
}

// recordStats accounts for a commit's Set/Unset deltas against the live
// counters (spec §4.E, §8 invariant 5). Remove and Drop are not rolling
// current/historical transitions in the same sense — Drop is accounted by
// the retention sweep that issues it (internal/storage/retention), and
// Remove has no tracked counter.
func recordStats(tracker *stats.Tracker, deltas []storage.Delta) {
	for _, d := range deltas {
		switch d.Kind {
		case storage.DeltaSet:
			tracker.RecordSet(len(d.Key), len(d.Values))
		case storage.DeltaUnset:
			tracker.RecordUnset(len(d.Key), len(d.PreviousValues))
		}
	}
}

func toDeltaViews(deltas []storage.Delta) []cdc.DeltaView {
	views := make([]cdc.DeltaView, len(deltas))
	for i, d := range deltas {
		var kind cdc.DeltaViewKind
		switch d.Kind {
		case storage.DeltaSet:
			kind = cdc.DeltaViewSet
		case storage.DeltaUnset:
			kind = cdc.DeltaViewUnset
			if d.PreviousValues != nil {
				views[i] = cdc.DeltaView{Kind: kind, Key: d.Key.Bytes(), Values: d.PreviousValues}
				continue
			}
		case storage.DeltaRemove:
			kind = cdc.DeltaViewRemove
		case storage.DeltaDrop:
			kind = cdc.DeltaViewDrop
		}
		views[i] = cdc.DeltaView{Kind: kind, Key: d.Key.Bytes(), Values: d.Values}
	}
	return views
}
