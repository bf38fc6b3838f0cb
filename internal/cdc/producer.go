package cdc

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/storage"
)

// recvTimeout bounds how long the producer's worker loop waits for a work
// item before re-checking its running flag (spec §5).
const recvTimeout = 100 * time.Millisecond

// cleanupInterval is how often the producer prunes CDC records the
// watermark has already passed.
const cleanupInterval = 30 * time.Second

// WatermarkFunc reports the version below which every registered consumer
// has already checkpointed — cleanup drops CDC records strictly below it.
type WatermarkFunc func(ctx context.Context) (uint64, error)

// Producer is the single background worker that synthesizes CDC records
// from committed deltas (spec §2 component C, §5 "single named background
// thread with an unbounded channel as its inbox").
type Producer struct {
	backend   storage.Backend
	watermark WatermarkFunc
	bus       func(keyBytes, valueBytes int) // stats.Tracker.RecordCdc, injected to avoid an import cycle

	queue   *unboundedQueue
	running atomic.Bool
	done    chan struct{}
}

// NewProducer constructs a producer writing into backend. recordCdc may be
// nil; when set it is called once per CDC record written, with the
// record's key/value byte lengths, so a stats.Tracker can account for it.
func NewProducer(backend storage.Backend, watermark WatermarkFunc, recordCdc func(keyBytes, valueBytes int)) *Producer {
	return &Producer{
		backend:   backend,
		watermark: watermark,
		bus:       recordCdc,
		queue:     newUnboundedQueue(),
		done:      make(chan struct{}),
	}
}

// Post enqueues a commit's deltas for CDC synthesis. It never blocks (spec
// §5 "CDC posting is non-blocking try-send").
func (p *Producer) Post(item WorkItem) {
	p.queue.TrySend(item)
}

// Run starts the worker loop and blocks until the context is cancelled or
// Shutdown is called. Callers typically invoke it via `go p.Run(ctx)`.
func (p *Producer) Run(ctx context.Context) {
	p.running.Store(true)
	defer close(p.done)

	lastCleanup := time.Now()
	for p.running.Load() {
		if time.Since(lastCleanup) >= cleanupInterval {
			if err := p.cleanup(ctx); err != nil {
				log.Printf("cdc: cleanup failed: %v", err)
			}
			lastCleanup = time.Now()
		}

		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.queue.Out():
			if !ok {
				return
			}
			p.processWorkItem(ctx, item)
		case <-time.After(recvTimeout):
			// Nothing arrived within recv_timeout; loop back to
			// check running/cleanup.
		}
	}

	// Shutdown cleared running and closes the queue; process whatever is
	// still queued until the pump closes Out.
	for item := range p.queue.Out() {
		p.processWorkItem(ctx, item)
	}
}

// Shutdown stops the worker loop cooperatively and waits for it to drain
// (spec §5 "Shutdown is cooperative; no wait is unbounded" — bounded here
// by the caller's ctx passed to Run). If Run is not running, it closes the
// queue and returns without waiting.
func (p *Producer) Shutdown() {
	wasRunning := p.running.Swap(false)
	p.queue.Close()
	if wasRunning {
		<-p.done
	}
}

func (p *Producer) cleanup(ctx context.Context) error {
	wm, err := p.watermark(ctx)
	if err != nil || wm == 0 {
		return err
	}

	it, err := p.backend.Range(ctx, key.CdcKeyLowerBound(), key.CdcKey(wm), wm)
	if err != nil {
		return err
	}
	defer it.Close()

	var deltas []storage.Delta
	for it.Next() {
		rec := it.Record()
		deltas = append(deltas, storage.Delta{Kind: storage.DeltaRemove, Key: rec.Key})
	}
	if err := it.Err(); err != nil {
		return err
	}
	if len(deltas) == 0 {
		return nil
	}
	return p.backend.Commit(ctx, deltas, wm)
}

func (p *Producer) processWorkItem(ctx context.Context, item WorkItem) {
	var changes []SequencedChange
	var seq uint16

	for _, d := range item.Deltas {
		k := key.EncodedKey(d.Key)
		if key.ExcludedFromCDC(k.Kind()) {
			continue
		}

		seq++
		var change Change
		switch d.Kind {
		case DeltaViewSet:
			pre, hasPre, err := p.backend.Get(ctx, k, item.Version-1)
			if err != nil {
				log.Printf("cdc: previous-version lookup failed for version %d: %v", item.Version, err)
				hasPre = false
			}
			if hasPre {
				change = Change{Kind: ChangeUpdate, Key: k, Pre: pre.Values, Post: d.Values}
			} else {
				change = Change{Kind: ChangeInsert, Key: k, Post: d.Values}
			}
		case DeltaViewUnset:
			var pre []byte
			if len(d.Values) > 0 {
				pre = d.Values
			}
			change = Change{Kind: ChangeDelete, Key: k, Pre: pre}
		case DeltaViewRemove, DeltaViewDrop:
			seq--
			continue
		}

		changes = append(changes, SequencedChange{Seq: seq, Change: change})
	}

	if len(changes) == 0 {
		return
	}

	record := Cdc{Version: item.Version, TimestampMs: item.TimestampMs, Changes: changes}
	encoded, err := EncodeCdc(record)
	if err != nil {
		log.Printf("cdc: encode failed for version %d: %v", item.Version, err)
		return
	}

	cdcKey := key.CdcKey(item.Version)
	if err := p.backend.Commit(ctx, []storage.Delta{
		{Kind: storage.DeltaSet, Key: cdcKey, Values: encoded},
	}, item.Version); err != nil {
		log.Printf("cdc: write failed for version %d: %v", item.Version, err)
		return
	}

	if p.bus != nil {
		p.bus(len(cdcKey), len(encoded))
	}
}
