// Package reifydb wires the storage tier, MVCC transaction layer, CDC
// pipeline, and stats tracker into one constructable database core (spec
// §1 "these four subsystems are tightly coupled"). It follows the
// teacher's NewDB/OpenDB shape (internal/storage/db.go in the teacher
// repo): a single constructor assembling every subsystem from a
// configuration struct, returned as one handle the caller drives.
package reifydb

import (
	"context"
	"fmt"
	"log"

	"github.com/reifydb/reifydb-sub012/config"
	"github.com/reifydb/reifydb-sub012/internal/cdc"
	"github.com/reifydb/reifydb-sub012/internal/eventbus"
	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/stats"
	"github.com/reifydb/reifydb-sub012/internal/storage"
	"github.com/reifydb/reifydb-sub012/internal/storage/memstore"
	"github.com/reifydb/reifydb-sub012/internal/storage/retention"
	"github.com/reifydb/reifydb-sub012/internal/storage/sqlitestore"
	"github.com/reifydb/reifydb-sub012/internal/txn"
)

// DB is the assembled storage-and-transaction core: a tier, a transaction
// manager over it, a CDC producer feeding from commits, and the stats
// tracker/event bus observing both.
type DB struct {
	cfg config.Config

	tier     *storage.Tier
	sqlite   *sqlitestore.Store // nil unless cfg.Tier == TierMemorySQLite
	Manager  *txn.Manager
	Producer *cdc.Producer
	Stats    *stats.Tracker
	Events   *eventbus.Bus
	retain   *retention.Scheduler
}

// Open assembles a DB from cfg (spec §6 "set by the enclosing database
// constructor"). The caller is responsible for calling Run in a goroutine
// and Close on shutdown.
func Open(cfg config.Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var db DB
	db.cfg = cfg

	members := []storage.Backend{memstore.New()}
	if cfg.Tier == config.TierMemorySQLite {
		store, err := sqlitestore.Open(cfg.SQLitePath, sqlitestore.Options{
			Journal: cfg.SQLiteJournal,
			Sync:    cfg.SQLiteSync,
		})
		if err != nil {
			return nil, fmt.Errorf("reifydb: open sqlite tier: %w", err)
		}
		db.sqlite = store
		members = append(members, store)
	}
	db.tier = storage.NewTier(members...)

	db.Events = eventbus.New()
	db.Stats = stats.New(db.Events)

	db.Producer = cdc.NewProducer(db.tier, db.watermark, db.Stats.RecordCdc)
	db.Manager = txn.NewManager(db.tier, db.Producer, db.Stats, nil)

	db.retain = retention.New(db.tier, retentionScanner{tier: db.tier}, db.syncWatermark, 1, db.Stats)

	return &db, nil
}

// watermark reports the current commit version as the CDC producer's safe
// cleanup point (spec §5 "CDC posting is non-blocking"; the producer's
// own cleanup pass uses this to prune CDC records every consumer has
// already checkpointed past). Without a registered consumer set tracking
// per-consumer checkpoints, it conservatively reports the latest commit
// version, i.e. CDC records are eligible for cleanup immediately after
// the next commit — callers that need consumers to keep up should layer a
// lower watermark from their own checkpoint bookkeeping before attaching
// this producer.
func (db *DB) watermark(ctx context.Context) (uint64, error) {
	return db.Manager.CurrentVersion(ctx)
}

// syncWatermark adapts watermark to retention.WatermarkFunc's synchronous
// signature, swallowing errors to 0 (a 0 watermark makes RunOnce a no-op,
// the safe default when the version lookup itself fails).
func (db *DB) syncWatermark() uint64 {
	v, err := db.watermark(context.Background())
	if err != nil {
		return 0
	}
	return v
}

// Run starts the CDC producer's worker loop and the retention scheduler.
// It blocks until ctx is cancelled; call it via `go db.Run(ctx)`.
func (db *DB) Run(ctx context.Context, retentionCron string) {
	go db.Producer.Run(ctx)
	if retentionCron != "" {
		if err := db.retain.Start(ctx, retentionCron); err != nil {
			log.Printf("reifydb: retention scheduler failed to start: %v", err)
		}
	}
	<-ctx.Done()
}

// Close stops the producer, the retention scheduler, and any owned
// storage resources.
func (db *DB) Close() error {
	db.retain.Stop()
	db.Producer.Shutdown()
	return db.tier.Close()
}

// NewConsumer builds a CDC consumer actor wired to this database's
// backend and current-version/watermark functions, using cfg's poll
// interval and max batch size. cfg.CDCMailboxCapacity is not applied: the
// consumer's mailbox capacity is fixed inside internal/cdc.
func (db *DB) NewConsumer(id cdc.ConsumerID, consume cdc.ConsumeFunc) *cdc.Consumer {
	c := cdc.NewConsumer(id, db.tier, db.cfg.CDCPollInterval, db.cfg.CDCMaxBatchSize)
	c.CurrentVersion = db.Manager.CurrentVersion
	c.DoneUntil = db.watermark
	c.Consume = consume
	return c
}

// retentionScanner adapts the tier into retention.Scanner by range-
// scanning row keys, the only kind subject to the retention policy's
// per-key keep_last_versions bound (spec §4.B.2).
type retentionScanner struct {
	tier *storage.Tier
}

// rowKindLowerBound and rowKindUpperBound bracket every KindRow key
// regardless of table, since key.RowKeyPrefix requires a table ID and
// retention sweeps across all tables in one pass.
var (
	rowKindLowerBound = key.EncodedKey{byte(key.KindRow)}
	rowKindUpperBound = key.EncodedKey{byte(key.KindRow) + 1}
)

func (s retentionScanner) Keys(ctx context.Context) ([]key.EncodedKey, error) {
	it, err := s.tier.Range(ctx, rowKindLowerBound, rowKindUpperBound, ^uint64(0))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys []key.EncodedKey
	for it.Next() {
		keys = append(keys, it.Record().Key)
	}
	return keys, it.Err()
}
