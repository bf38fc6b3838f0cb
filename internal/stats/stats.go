// Package stats tracks the per-tier rolling counters described in spec §3
// "Retention/stats" and verifies them against invariant 5 of §8: total
// count equals the sum of components, none negative, each equal to a
// fresh recount of the backend.
package stats

import (
	"context"
	"sync/atomic"

	"github.com/reifydb/reifydb-sub012/internal/eventbus"
	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/storage"
)

// Counters holds the nine rolling counters spec §3 names, split by tier.
type Counters struct {
	CurrentCount       atomic.Int64
	CurrentKeyBytes    atomic.Int64
	CurrentValueBytes  atomic.Int64
	HistoricalCount    atomic.Int64
	HistoricalKeyBytes atomic.Int64
	HistoricalValueBytes atomic.Int64
	CdcCount           atomic.Int64
	CdcKeyBytes        atomic.Int64
	CdcValueBytes      atomic.Int64
}

// Snapshot is a point-in-time copy of Counters, safe to pass by value.
type Snapshot struct {
	CurrentCount, CurrentKeyBytes, CurrentValueBytes       int64
	HistoricalCount, HistoricalKeyBytes, HistoricalValueBytes int64
	CdcCount, CdcKeyBytes, CdcValueBytes                   int64
}

// TotalCount is current + historical + cdc (spec §8 invariant 5).
func (s Snapshot) TotalCount() int64 {
	return s.CurrentCount + s.HistoricalCount + s.CdcCount
}

// Tracker maintains live counters and can reconcile them against a
// backend's actual content. It is advisory: per spec §7, update errors
// never propagate and are silently absorbed.
type Tracker struct {
	counters Counters
	bus      *eventbus.Bus
}

// New constructs a tracker that publishes eventbus.StatsProcessed after
// every Reconcile.
func New(bus *eventbus.Bus) *Tracker {
	return &Tracker{bus: bus}
}

// RecordSet accounts for a newly committed value.
func (t *Tracker) RecordSet(keyBytes, valueBytes int) {
	t.counters.CurrentCount.Add(1)
	t.counters.CurrentKeyBytes.Add(int64(keyBytes))
	t.counters.CurrentValueBytes.Add(int64(valueBytes))
}

// RecordUnset moves one record from current to historical.
func (t *Tracker) RecordUnset(keyBytes, valueBytes int) {
	t.counters.CurrentCount.Add(-1)
	t.counters.CurrentKeyBytes.Add(-int64(keyBytes))
	t.counters.CurrentValueBytes.Add(-int64(valueBytes))
	t.counters.HistoricalCount.Add(1)
	t.counters.HistoricalKeyBytes.Add(int64(keyBytes))
	t.counters.HistoricalValueBytes.Add(int64(valueBytes))
}

// RecordDrop accounts for count historical versions physically removed by
// a retention sweep (spec §4.B.2, §8 invariant 2).
func (t *Tracker) RecordDrop(count int) {
	t.counters.HistoricalCount.Add(-int64(count))
}

// RecordCdc accounts for a newly written CDC record.
func (t *Tracker) RecordCdc(keyBytes, valueBytes int) {
	t.counters.CdcCount.Add(1)
	t.counters.CdcKeyBytes.Add(int64(keyBytes))
	t.counters.CdcValueBytes.Add(int64(valueBytes))
}

// Snapshot returns the tracker's current counters.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		CurrentCount:          t.counters.CurrentCount.Load(),
		CurrentKeyBytes:       t.counters.CurrentKeyBytes.Load(),
		CurrentValueBytes:     t.counters.CurrentValueBytes.Load(),
		HistoricalCount:       t.counters.HistoricalCount.Load(),
		HistoricalKeyBytes:    t.counters.HistoricalKeyBytes.Load(),
		HistoricalValueBytes:  t.counters.HistoricalValueBytes.Load(),
		CdcCount:              t.counters.CdcCount.Load(),
		CdcKeyBytes:           t.counters.CdcKeyBytes.Load(),
		CdcValueBytes:         t.counters.CdcValueBytes.Load(),
	}
}

// RecountFunc recomputes a fresh Snapshot directly from backend content,
// used by Reconcile to validate the live counters haven't drifted.
type RecountFunc func(ctx context.Context) (Snapshot, error)

// Reconcile recomputes fresh counts via recount, replaces the live
// counters with the fresh values, and publishes StatsProcessed. Errors are
// swallowed per spec §7 — the tracker is advisory and must never
// destabilize the caller.
func (t *Tracker) Reconcile(ctx context.Context, recount RecountFunc) {
	fresh, err := recount(ctx)
	if err != nil {
		return
	}
	t.counters.CurrentCount.Store(fresh.CurrentCount)
	t.counters.CurrentKeyBytes.Store(fresh.CurrentKeyBytes)
	t.counters.CurrentValueBytes.Store(fresh.CurrentValueBytes)
	t.counters.HistoricalCount.Store(fresh.HistoricalCount)
	t.counters.HistoricalKeyBytes.Store(fresh.HistoricalKeyBytes)
	t.counters.HistoricalValueBytes.Store(fresh.HistoricalValueBytes)
	t.counters.CdcCount.Store(fresh.CdcCount)
	t.counters.CdcKeyBytes.Store(fresh.CdcKeyBytes)
	t.counters.CdcValueBytes.Store(fresh.CdcValueBytes)

	if t.bus != nil {
		t.bus.Publish(eventbus.Event{Type: eventbus.StatsProcessed, Payload: fresh})
	}
}

// RecountBackend is a RecountFunc grounded on a live storage.Backend: it
// scans [start, end) at atVersion and tallies current counters directly
// from the records it finds. Historical and CDC counters, which a Backend
// interface alone cannot distinguish, are returned as zero; Reconcile
// stores every counter it is given, so reconciling with this function
// resets those six counters to zero. Callers that want a full recount
// implement RecountFunc themselves against their own representation.
func RecountBackend(backend storage.Backend, start, end key.EncodedKey, atVersion uint64) RecountFunc {
	return func(ctx context.Context) (Snapshot, error) {
		it, err := backend.Range(ctx, start, end, atVersion)
		if err != nil {
			return Snapshot{}, err
		}
		defer it.Close()

		var snap Snapshot
		for it.Next() {
			rec := it.Record()
			snap.CurrentCount++
			snap.CurrentKeyBytes += int64(len(rec.Key))
			snap.CurrentValueBytes += int64(len(rec.Values))
		}
		return snap, it.Err()
	}
}
