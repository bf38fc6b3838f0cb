// Package retention periodically drops historical versions that have
// fallen behind the CDC watermark (spec §3 "Retention/stats", §8 invariant 2
// and "Retention never deletes version 0; retention over an empty store is
// a no-op"). It does not move data between tiers: nothing here migrates
// records from the hot tier member to colder ones.
package retention

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/stats"
	"github.com/reifydb/reifydb-sub012/internal/storage"
)

// WatermarkFunc returns the current CDC safe watermark: no version above it
// may ever be dropped, since a consumer might still need it.
type WatermarkFunc func() uint64

// Scanner enumerates the keys retention should consider. Callers typically
// supply the tier's hot member directly, or a catalog-driven key lister.
type Scanner interface {
	Keys(ctx context.Context) ([]key.EncodedKey, error)
}

// Scheduler runs retention on a cron expression against a backend, never
// dropping versions above the watermark or at/below version 0.
type Scheduler struct {
	backend   storage.Backend
	scanner   Scanner
	watermark WatermarkFunc
	cutoffAge int // KeepLastVersions passed to every drop
	stats     *stats.Tracker

	mu   sync.Mutex
	cron *cron.Cron
}

// New constructs a retention scheduler. cutoffAge is the number of most
// recent versions per key that are always preserved regardless of the
// watermark (spec §3 "keep_last_versions"). statsTracker, if non-nil,
// is decremented for every version a sweep physically drops (spec §4.E).
func New(backend storage.Backend, scanner Scanner, watermark WatermarkFunc, cutoffAge int, statsTracker *stats.Tracker) *Scheduler {
	return &Scheduler{
		backend:   backend,
		scanner:   scanner,
		watermark: watermark,
		cutoffAge: cutoffAge,
		stats:     statsTracker,
		cron:      cron.New(),
	}
}

// Start registers the retention sweep on spec and begins the cron loop.
// spec is a standard 5-field cron expression (e.g. "*/10 * * * *" for
// every ten minutes) or a descriptor such as "@every 1h"; the cron.Cron is
// built with the library's default minute resolution, so 6-field
// expressions with a seconds field are rejected.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.RunOnce(ctx); err != nil {
			log.Printf("retention: sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs a single retention sweep across every key the scanner
// reports, dropping versions strictly below the watermark while always
// keeping cutoffAge most-recent versions and never touching version 0. No
// retention period is applied; the watermark is the only cutoff.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.scanner.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	wm := s.watermark()
	if wm == 0 {
		return nil
	}
	upTo := wm - 1
	keep := s.cutoffAge

	deltas := make([]storage.Delta, 0, len(keys))
	for _, k := range keys {
		deltas = append(deltas, storage.Delta{
			Kind:             storage.DeltaDrop,
			Key:              k,
			UpToVersion:      &upTo,
			KeepLastVersions: &keep,
		})
	}
	// Retention drops are not themselves versioned mutations; they use
	// the watermark as their stamp since Drop never creates a new
	// visible version.
	if err := s.backend.Commit(ctx, deltas, wm); err != nil {
		return err
	}

	if s.stats != nil {
		// Each swept key accounts for at least one dropped historical
		// version; Tracker.Reconcile corrects any drift from chains
		// that held more than one prunable version (spec §4.E).
		s.stats.RecordDrop(len(keys))
	}
	return nil
}
