// Package storage defines the versioned key/value storage contract shared
// by every backend and tier (spec §3 "Multi-version value record", §4.B).
// A Backend stores MultiVersionRecords keyed by (key, version) and answers
// point and range reads as of a version: the largest version of a key that
// is ≤ the requested version, skipping tombstones.
package storage

import (
	"context"

	"github.com/reifydb/reifydb-sub012/internal/key"
)

// DeltaKind discriminates the four mutation shapes a transaction can commit
// (spec §3 "Delta").
type DeltaKind uint8

const (
	DeltaSet DeltaKind = iota
	DeltaUnset
	DeltaRemove
	DeltaDrop
)

// Delta is one pending mutation within a transaction's write set.
type Delta struct {
	Kind DeltaKind
	Key  key.EncodedKey

	// Values holds the new payload for DeltaSet.
	Values []byte

	// PreviousValues, for DeltaUnset, is the pre-image the caller already
	// knows (read-your-own-writes paths supply it); storage still
	// resolves the authoritative pre-image from the prior version.
	PreviousValues []byte

	// UpToVersion and KeepLastVersions parameterize DeltaDrop: physically
	// remove historical versions at or below UpToVersion (nil = all),
	// always preserving the newest KeepLastVersions versions (nil = 0).
	UpToVersion      *uint64
	KeepLastVersions *int
}

// MultiVersionRecord is the storage tier's primary indexed record: a value
// (or tombstone, Values == nil) for a key as of a specific version.
type MultiVersionRecord struct {
	Key     key.EncodedKey
	Values  []byte
	Version uint64
}

// IsTombstone reports whether this record represents a deletion.
func (r MultiVersionRecord) IsTombstone() bool { return r.Values == nil }

// Iterator walks MultiVersionRecords in key order, already resolved to the
// single visible version for the iterator's snapshot.
type Iterator interface {
	Next() bool
	Record() MultiVersionRecord
	Err() error
	Close() error
}

// Backend is the storage contract every tier member (memory, embedded SQL)
// implements. Implementations are internally synchronized: reads take
// shared access, writes briefly upgrade (spec §5 "Shared-resource policy").
//
// Backends do not track the rolling current/historical/cdc counters of
// spec §3 "Retention/stats" themselves — internal/stats.Tracker is the
// single source of truth for those, updated from the commit and retention
// paths that know which delta kind is being applied.
type Backend interface {
	// Get returns the value visible to version, i.e. the largest
	// non-tombstone version of k that is ≤ version. ok is false if no
	// such version exists or the latest visible one is a tombstone.
	Get(ctx context.Context, k key.EncodedKey, version uint64) (rec MultiVersionRecord, ok bool, err error)

	// Contains is a cheaper existence check with the same visibility
	// rule as Get.
	Contains(ctx context.Context, k key.EncodedKey, version uint64) (bool, error)

	// Range iterates keys in [start, end) as of version, ascending.
	Range(ctx context.Context, start, end key.EncodedKey, version uint64) (Iterator, error)

	// RangeRev is Range in descending key order.
	RangeRev(ctx context.Context, start, end key.EncodedKey, version uint64) (Iterator, error)

	// Commit applies deltas atomically, all stamped with version.
	Commit(ctx context.Context, deltas []Delta, version uint64) error

	// Close releases backend resources.
	Close() error
}
