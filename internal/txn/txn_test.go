package txn

import (
	"context"
	"testing"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/reifyerr"
	"github.com/reifydb/reifydb-sub012/internal/stats"
	"github.com/reifydb/reifydb-sub012/internal/storage/memstore"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(memstore.New(), nil, nil, func() uint64 { return 0 })
}

func TestCommitIssuesMonotonicVersions(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	ct1, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	ct1.Set(key.RowKey(1, 1), []byte("a"))
	v1, err := ct1.Commit(ctx)
	must(t, err)

	ct2, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	ct2.Set(key.RowKey(1, 2), []byte("b"))
	v2, err := ct2.Commit(ctx)
	must(t, err)

	if v2 <= v1 {
		t.Fatalf("v2=%d should be > v1=%d", v2, v1)
	}
}

// TestScenarioS4OptimisticConflict mirrors spec scenario S4.
func TestScenarioS4OptimisticConflict(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)
	k := key.RowKey(1, 1)

	seed, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	seed.Set(k, []byte("seed"))
	if _, err := seed.Commit(ctx); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	t1, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	t2, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)

	t1.Set(k, []byte("t1"))
	t2.Set(k, []byte("t2"))

	vc1, err := t1.Commit(ctx)
	if err != nil {
		t.Fatalf("t1 should commit cleanly: %v", err)
	}

	_, err = t2.Commit(ctx)
	if err == nil {
		t.Fatal("t2 should fail with conflict")
	}
	if !reifyerr.Is(err, reifyerr.CodeConflict) {
		t.Fatalf("expected CodeConflict, got %v", err)
	}

	final, ok, err := mgr.backend.Get(ctx, k, vc1)
	must(t, err)
	if !ok || string(final.Values) != "t1" {
		t.Fatalf("final value = %q, ok=%v, want t1", final.Values, ok)
	}
}

func TestWriteWriteCollapsesToLatestValue(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)
	k := key.RowKey(1, 1)

	ct, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	ct.Set(k, []byte("first"))
	ct.Set(k, []byte("second"))

	vc, err := ct.Commit(ctx)
	must(t, err)

	rec, ok, err := mgr.backend.Get(ctx, k, vc)
	must(t, err)
	if !ok || string(rec.Values) != "second" {
		t.Fatalf("got %q, want second", rec.Values)
	}
}

func TestReadYourOwnWrites(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)
	k := key.RowKey(1, 1)

	ct, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)

	if _, ok, err := ct.Get(ctx, k); err != nil || ok {
		t.Fatalf("expected no value before write, ok=%v err=%v", ok, err)
	}

	ct.Set(k, []byte("pending"))
	rec, ok, err := ct.Get(ctx, k)
	must(t, err)
	if !ok || string(rec.Values) != "pending" {
		t.Fatalf("got %q, ok=%v, want pending", rec.Values, ok)
	}

	ct.Unset(k, rec.Values)
	if _, ok, err := ct.Get(ctx, k); err != nil || ok {
		t.Fatalf("expected no value after unset, ok=%v err=%v", ok, err)
	}
}

func TestSerializableReadWriteConflict(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)
	k := key.RowKey(1, 1)

	seed, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	seed.Set(k, []byte("seed"))
	must(t, seedCommit(ctx, seed))

	reader, err := mgr.BeginCommand(ctx, Serializable)
	must(t, err)
	if _, _, err := reader.Get(ctx, k); err != nil {
		t.Fatalf("Get: %v", err)
	}

	writer, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	writer.Set(k, []byte("writer"))
	if _, err := writer.Commit(ctx); err != nil {
		t.Fatalf("writer commit: %v", err)
	}

	reader.Set(key.RowKey(1, 2), []byte("unrelated"))
	if _, err := reader.Commit(ctx); err == nil {
		t.Fatal("serializable reader should conflict on a key it read that was since written")
	} else if !reifyerr.Is(err, reifyerr.CodeConflict) {
		t.Fatalf("expected CodeConflict, got %v", err)
	}
}

func TestRangeMergesPendingWrites(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t)

	seed, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	seed.Set(key.RowKey(1, 1), []byte("a"))
	seed.Set(key.RowKey(1, 3), []byte("c"))
	must(t, seedCommit(ctx, seed))

	ct, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	ct.Set(key.RowKey(1, 2), []byte("pending-b"))
	ct.Unset(key.RowKey(1, 1), []byte("a"))

	it, err := ct.Range(ctx, key.RowKeyPrefix(1), nil)
	must(t, err)
	defer it.Close()

	var got []string
	for it.Next() {
		got = append(got, string(it.Record().Values))
	}
	must(t, it.Err())

	if len(got) != 2 || got[0] != "pending-b" || got[1] != "c" {
		t.Fatalf("got %v, want [pending-b c] (row 1 unset, row 2 pending, row 3 committed)", got)
	}
}

func TestCommitRecordsStats(t *testing.T) {
	ctx := context.Background()
	tracker := stats.New(nil)
	mgr := NewManager(memstore.New(), nil, tracker, func() uint64 { return 0 })
	k := key.RowKey(1, 1)

	ct, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	ct.Set(k, []byte("v"))
	must(t, seedCommit(ctx, ct))

	snap := tracker.Snapshot()
	if snap.CurrentCount != 1 {
		t.Fatalf("CurrentCount = %d, want 1 after one Set commit", snap.CurrentCount)
	}

	ct2, err := mgr.BeginCommand(ctx, Optimistic)
	must(t, err)
	ct2.Unset(k, []byte("v"))
	must(t, seedCommit(ctx, ct2))

	snap = tracker.Snapshot()
	if snap.CurrentCount != 0 || snap.HistoricalCount != 1 {
		t.Fatalf("after Unset: CurrentCount=%d HistoricalCount=%d, want 0,1", snap.CurrentCount, snap.HistoricalCount)
	}
}

func seedCommit(ctx context.Context, ct *CommandTransaction) error {
	_, err := ct.Commit(ctx)
	return err
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
