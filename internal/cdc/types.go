// Package cdc implements the change-data-capture pipeline of spec §2
// component C: a background producer synthesizes Insert/Update/Delete
// records from commit deltas, and consumers drive progress through a
// watermarked, per-consumer checkpoint protocol.
package cdc

import (
	"github.com/google/uuid"

	"github.com/reifydb/reifydb-sub012/internal/key"
)

// ConsumerID identifies a CDC consumer. Checkpoints are keyed by it
// (spec §3 "Consumer checkpoint").
type ConsumerID uuid.UUID

// NewConsumerID generates a fresh random consumer identifier.
func NewConsumerID() ConsumerID { return ConsumerID(uuid.New()) }

// ParseConsumerID parses a canonical UUID string into a ConsumerID.
func ParseConsumerID(s string) (ConsumerID, error) {
	u, err := uuid.Parse(s)
	return ConsumerID(u), err
}

func (c ConsumerID) String() string { return uuid.UUID(c).String() }

// ChangeKind discriminates a SequencedChange's payload shape. Values match
// the on-disk kind byte of spec §6 (Insert=1, Update=2, Delete=3).
type ChangeKind uint8

const (
	ChangeInsert ChangeKind = 1
	ChangeUpdate ChangeKind = 2
	ChangeDelete ChangeKind = 3
)

// Change is one row-level mutation within a commit. Exactly the fields
// relevant to Kind are populated: Insert carries Post only, Update carries
// both, Delete carries Pre (optionally).
type Change struct {
	Kind ChangeKind
	Key  key.EncodedKey
	Pre  []byte
	Post []byte
}

// SequencedChange orders a Change within its parent Cdc record (spec §3
// "sequence numbers order the changes within that commit").
type SequencedChange struct {
	Seq    uint16
	Change Change
}

// Cdc is the change-data-capture record synthesized for one committed
// transaction. At most one exists per commit version (spec §3, §8
// invariant 3).
type Cdc struct {
	Version     uint64
	TimestampMs uint64
	Changes     []SequencedChange
}

// Checkpoint is a consumer's last-processed commit version.
type Checkpoint struct {
	ConsumerID          ConsumerID
	LastProcessedVersion uint64
}
