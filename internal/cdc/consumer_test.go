package cdc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/storage"
	"github.com/reifydb/reifydb-sub012/internal/storage/memstore"
)

func putCdcRecord(t *testing.T, backend storage.Backend, c Cdc) {
	t.Helper()
	encoded, err := EncodeCdc(c)
	if err != nil {
		t.Fatalf("EncodeCdc: %v", err)
	}
	if err := backend.Commit(context.Background(), []storage.Delta{
		{Kind: storage.DeltaSet, Key: key.CdcKey(c.Version), Values: encoded},
	}, c.Version); err != nil {
		t.Fatalf("Commit CDC(%d): %v", c.Version, err)
	}
}

// TestConsumerDeliversAvailableRecordsOnceWatermarkClears exercises the
// Ready -> WaitingForConsume path: the watermark is already at or past the
// current version, so the actor should consume immediately without passing
// through WaitingForWatermark.
func TestConsumerDeliversAvailableRecordsOnceWatermarkClears(t *testing.T) {
	backend := memstore.New()
	putCdcRecord(t, backend, Cdc{Version: 1, Changes: []SequencedChange{{Seq: 1, Change: Change{Kind: ChangeInsert, Key: key.RowKey(1, 1), Post: []byte("v1")}}}})
	putCdcRecord(t, backend, Cdc{Version: 2, Changes: []SequencedChange{{Seq: 1, Change: Change{Kind: ChangeInsert, Key: key.RowKey(1, 2), Post: []byte("v2")}}}})

	c := NewConsumer(NewConsumerID(), backend, 10*time.Millisecond, 0)
	c.CurrentVersion = func(context.Context) (uint64, error) { return 2, nil }
	c.DoneUntil = func(context.Context) (uint64, error) { return 2, nil }

	var mu sync.Mutex
	var delivered []Cdc
	done := make(chan struct{})
	c.Consume = func(ctx context.Context, records []Cdc) error {
		mu.Lock()
		delivered = append(delivered, records...)
		n := len(delivered)
		mu.Unlock()
		if n >= 2 {
			close(done)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for consumer to deliver both records")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 2 || delivered[0].Version != 1 || delivered[1].Version != 2 {
		t.Fatalf("delivered = %+v, want versions [1, 2]", delivered)
	}
}

// TestConsumerWaitsForWatermarkBeforeConsuming exercises the
// WaitingForWatermark path: DoneUntil initially lags CurrentVersion, then
// catches up, and delivery should only happen after it does.
func TestConsumerWaitsForWatermarkBeforeConsuming(t *testing.T) {
	backend := memstore.New()
	putCdcRecord(t, backend, Cdc{Version: 1, Changes: []SequencedChange{{Seq: 1, Change: Change{Kind: ChangeInsert, Key: key.RowKey(1, 1), Post: []byte("v1")}}}})

	c := NewConsumer(NewConsumerID(), backend, 10*time.Millisecond, 0)
	c.CurrentVersion = func(context.Context) (uint64, error) { return 1, nil }

	var doneUntil uint64
	var muDone sync.Mutex
	c.DoneUntil = func(context.Context) (uint64, error) {
		muDone.Lock()
		defer muDone.Unlock()
		return doneUntil, nil
	}

	delivered := make(chan []Cdc, 1)
	c.Consume = func(ctx context.Context, records []Cdc) error {
		delivered <- records
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case <-delivered:
		t.Fatal("consumer delivered before the watermark caught up")
	case <-time.After(120 * time.Millisecond):
	}

	muDone.Lock()
	doneUntil = 1
	muDone.Unlock()

	select {
	case records := <-delivered:
		if len(records) != 1 || records[0].Version != 1 {
			t.Fatalf("delivered = %+v, want version 1", records)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery after watermark caught up")
	}
}

// TestConsumerProceedsAfterWatermarkRetriesExhausted mirrors the original
// actor's "timeout — proceed anyway" fallback: if DoneUntil never catches
// up, the consumer still consumes once its retries run out.
func TestConsumerProceedsAfterWatermarkRetriesExhausted(t *testing.T) {
	backend := memstore.New()
	putCdcRecord(t, backend, Cdc{Version: 1, Changes: []SequencedChange{{Seq: 1, Change: Change{Kind: ChangeInsert, Key: key.RowKey(1, 1), Post: []byte("v1")}}}})

	c := NewConsumer(NewConsumerID(), backend, 10*time.Millisecond, 0)
	c.CurrentVersion = func(context.Context) (uint64, error) { return 1, nil }
	c.DoneUntil = func(context.Context) (uint64, error) { return 0, nil }

	delivered := make(chan []Cdc, 1)
	c.Consume = func(ctx context.Context, records []Cdc) error {
		delivered <- records
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case records := <-delivered:
		if len(records) != 1 {
			t.Fatalf("delivered = %+v", records)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for fallback delivery after exhausted retries")
	}
}

func TestConsumerPersistsCheckpointAcrossRestarts(t *testing.T) {
	backend := memstore.New()
	putCdcRecord(t, backend, Cdc{Version: 1, Changes: []SequencedChange{{Seq: 1, Change: Change{Kind: ChangeInsert, Key: key.RowKey(1, 1), Post: []byte("v1")}}}})
	putCdcRecord(t, backend, Cdc{Version: 2, Changes: []SequencedChange{{Seq: 1, Change: Change{Kind: ChangeInsert, Key: key.RowKey(1, 2), Post: []byte("v2")}}}})

	id := NewConsumerID()

	first := NewConsumer(id, backend, 10*time.Millisecond, 0)
	first.CurrentVersion = func(context.Context) (uint64, error) { return 1, nil }
	first.DoneUntil = func(context.Context) (uint64, error) { return 1, nil }
	firstDelivered := make(chan []Cdc, 1)
	first.Consume = func(ctx context.Context, records []Cdc) error {
		firstDelivered <- records
		return nil
	}

	ctx1, cancel1 := context.WithCancel(context.Background())
	go first.Run(ctx1)
	select {
	case records := <-firstDelivered:
		if len(records) != 1 || records[0].Version != 1 {
			t.Fatalf("first delivery = %+v, want version 1", records)
		}
	case <-time.After(2 * time.Second):
		cancel1()
		t.Fatal("timed out waiting for first consumer's delivery")
	}
	cancel1()

	second := NewConsumer(id, backend, 10*time.Millisecond, 0)
	second.CurrentVersion = func(context.Context) (uint64, error) { return 2, nil }
	second.DoneUntil = func(context.Context) (uint64, error) { return 2, nil }
	secondDelivered := make(chan []Cdc, 1)
	second.Consume = func(ctx context.Context, records []Cdc) error {
		secondDelivered <- records
		return nil
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go second.Run(ctx2)

	select {
	case records := <-secondDelivered:
		if len(records) != 1 || records[0].Version != 2 {
			t.Fatalf("second delivery = %+v, want only version 2 (checkpoint should resume past 1)", records)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second consumer's delivery")
	}
}
