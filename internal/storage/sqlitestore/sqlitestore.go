// Package sqlitestore implements the embedded single-file SQL backend
// named in spec §4.B.1: a durable, disk-resident storage.Backend over a
// single SQLite file via modernc.org/sqlite (pure-Go, no cgo), used as the
// cold tier behind memstore's hot in-memory tier.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS versions (
	k       BLOB NOT NULL,
	version INTEGER NOT NULL,
	values_ BLOB,
	PRIMARY KEY (k, version)
);
CREATE INDEX IF NOT EXISTS versions_by_key ON versions(k, version);
`

// JournalMode and SyncMode select the embedded engine's durability/
// throughput tradeoff (spec §6 "the embedded-SQL journal/sync mode").
type JournalMode string

const (
	JournalWAL    JournalMode = "WAL"
	JournalDelete JournalMode = "DELETE"
)

type SyncMode string

const (
	SyncFull   SyncMode = "FULL"
	SyncNormal SyncMode = "NORMAL"
	SyncOff    SyncMode = "OFF"
)

// Options configures Open.
type Options struct {
	Journal JournalMode
	Sync    SyncMode
}

// Store is a storage.Backend persisting multi-version records into a single
// SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens path as an embedded single-file SQL backend.
func Open(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers per connection

	if opts.Journal == "" {
		opts.Journal = JournalWAL
	}
	if opts.Sync == "" {
		opts.Sync = SyncNormal
	}

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA journal_mode=%s", opts.Journal),
		fmt.Sprintf("PRAGMA synchronous=%s", opts.Sync),
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, k key.EncodedKey, version uint64) (storage.MultiVersionRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, values_ FROM versions WHERE k = ? AND version <= ? ORDER BY version DESC LIMIT 1`,
		[]byte(k), version)

	var v uint64
	var values []byte
	if err := row.Scan(&v, &values); err != nil {
		if err == sql.ErrNoRows {
			return storage.MultiVersionRecord{}, false, nil
		}
		return storage.MultiVersionRecord{}, false, fmt.Errorf("sqlitestore: get: %w", err)
	}
	if values == nil {
		return storage.MultiVersionRecord{}, false, nil
	}
	return storage.MultiVersionRecord{Key: k, Values: values, Version: v}, true, nil
}

func (s *Store) Contains(ctx context.Context, k key.EncodedKey, version uint64) (bool, error) {
	_, ok, err := s.Get(ctx, k, version)
	return ok, err
}

func (s *Store) Range(ctx context.Context, start, end key.EncodedKey, version uint64) (storage.Iterator, error) {
	return s.query(ctx, start, end, version, "ASC")
}

func (s *Store) RangeRev(ctx context.Context, start, end key.EncodedKey, version uint64) (storage.Iterator, error) {
	return s.query(ctx, start, end, version, "DESC")
}

func (s *Store) query(ctx context.Context, start, end key.EncodedKey, version uint64, order string) (storage.Iterator, error) {
	// Resolve the winning (max version ≤ snapshot) row per key, then
	// restrict to the requested range and drop tombstones.
	q := fmt.Sprintf(`
		SELECT k, version, values_ FROM (
			SELECT k, version, values_,
			       ROW_NUMBER() OVER (PARTITION BY k ORDER BY version DESC) AS rn
			FROM versions
			WHERE version <= ? AND k >= ?%s
		) WHERE rn = 1 AND values_ IS NOT NULL
		ORDER BY k %s`,
		endClause(end), order)

	args := []any{version, []byte(start)}
	if end != nil {
		args = append(args, []byte(end))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: range: %w", err)
	}
	return &rowsIterator{rows: rows}, nil
}

func endClause(end key.EncodedKey) string {
	if end == nil {
		return ""
	}
	return " AND k < ?"
}

func (s *Store) Commit(ctx context.Context, deltas []storage.Delta, version uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	defer tx.Rollback()

	for _, d := range deltas {
		switch d.Kind {
		case storage.DeltaSet:
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO versions (k, version, values_) VALUES (?, ?, ?)`,
				[]byte(d.Key), version, d.Values); err != nil {
				return fmt.Errorf("sqlitestore: set: %w", err)
			}
		case storage.DeltaUnset:
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO versions (k, version, values_) VALUES (?, ?, NULL)`,
				[]byte(d.Key), version); err != nil {
				return fmt.Errorf("sqlitestore: unset: %w", err)
			}
		case storage.DeltaRemove:
			if _, err := tx.ExecContext(ctx, `DELETE FROM versions WHERE k = ?`, []byte(d.Key)); err != nil {
				return fmt.Errorf("sqlitestore: remove: %w", err)
			}
		case storage.DeltaDrop:
			if err := s.applyDrop(ctx, tx, d); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *Store) applyDrop(ctx context.Context, tx *sql.Tx, d storage.Delta) error {
	keep := 0
	if d.KeepLastVersions != nil {
		keep = *d.KeepLastVersions
	}
	upTo := int64(-1)
	if d.UpToVersion != nil {
		upTo = int64(*d.UpToVersion)
	}

	q := `
		DELETE FROM versions WHERE k = ? AND version NOT IN (
			SELECT version FROM versions WHERE k = ? ORDER BY version DESC LIMIT ?
		)`
	if upTo >= 0 {
		q += ` AND version <= ?`
		_, err := tx.ExecContext(ctx, q, []byte(d.Key), []byte(d.Key), keep, upTo)
		return err
	}
	_, err := tx.ExecContext(ctx, q, []byte(d.Key), []byte(d.Key), keep)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

type rowsIterator struct {
	rows    *sql.Rows
	current storage.MultiVersionRecord
	err     error
}

func (it *rowsIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	var k, values []byte
	var version uint64
	if it.err = it.rows.Scan(&k, &version, &values); it.err != nil {
		return false
	}
	it.current = storage.MultiVersionRecord{Key: key.EncodedKey(k), Values: values, Version: version}
	return true
}

func (it *rowsIterator) Record() storage.MultiVersionRecord { return it.current }
func (it *rowsIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}
func (it *rowsIterator) Close() error { return it.rows.Close() }
