package key

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// EncodedKey is the wire representation of a key: a kind discriminator byte
// followed by kind-specific payload bytes. Ordering is lexicographic over
// the raw bytes, which is what gives row keys their natural table_id/
// row_number sort order.
type EncodedKey []byte

// Kind returns the key's discriminator, or KindUndefined for an empty key.
func (k EncodedKey) Kind() Kind {
	if len(k) == 0 {
		return KindUndefined
	}
	return Kind(k[0])
}

// Bytes returns the raw encoded key.
func (k EncodedKey) Bytes() []byte { return k }

func newKey(kind Kind, payload []byte) EncodedKey {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(kind)
	copy(buf[1:], payload)
	return EncodedKey(buf)
}

// RowKey encodes (table_id, row_number) big-endian so that keys for a
// table's rows sort numerically by row number within the table's prefix.
func RowKey(tableID, rowNumber uint64) EncodedKey {
	payload := make([]byte, 16)
	binary.BigEndian.PutUint64(payload[0:8], tableID)
	binary.BigEndian.PutUint64(payload[8:16], rowNumber)
	return newKey(KindRow, payload)
}

// DecodeRowKey is the inverse of RowKey. It fails if k is not a KindRow key
// of the expected length.
func DecodeRowKey(k EncodedKey) (tableID, rowNumber uint64, err error) {
	if k.Kind() != KindRow {
		return 0, 0, fmt.Errorf("key: not a row key: kind=%s", k.Kind())
	}
	if len(k) != 17 {
		return 0, 0, fmt.Errorf("key: malformed row key: len=%d", len(k))
	}
	tableID = binary.BigEndian.Uint64(k[1:9])
	rowNumber = binary.BigEndian.Uint64(k[9:17])
	return tableID, rowNumber, nil
}

// RowKeyPrefix returns the shared prefix of every row key for tableID,
// suitable for a range scan over the table's rows.
func RowKeyPrefix(tableID uint64) EncodedKey {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, tableID)
	return newKey(KindRow, payload)
}

// CdcKey encodes the CDC record key for a commit version (spec §6).
func CdcKey(version uint64) EncodedKey {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, version)
	return newKey(KindCdc, payload)
}

// CdcKeyLowerBound is the inclusive lower bound of the CDC key space,
// suitable as the start of a range scan over all CDC records.
func CdcKeyLowerBound() EncodedKey {
	return newKey(KindCdc, nil)
}

// DecodeCdcKey is the inverse of CdcKey.
func DecodeCdcKey(k EncodedKey) (version uint64, err error) {
	if k.Kind() != KindCdc {
		return 0, fmt.Errorf("key: not a cdc key: kind=%s", k.Kind())
	}
	if len(k) != 9 {
		return 0, fmt.Errorf("key: malformed cdc key: len=%d", len(k))
	}
	return binary.BigEndian.Uint64(k[1:9]), nil
}

// CdcConsumerKey encodes the checkpoint key for a named CDC consumer
// (spec §6).
func CdcConsumerKey(consumerID uuid.UUID) EncodedKey {
	return newKey(KindCdcConsumer, consumerID[:])
}

// DecodeCdcConsumerKey is the inverse of CdcConsumerKey.
func DecodeCdcConsumerKey(k EncodedKey) (uuid.UUID, error) {
	if k.Kind() != KindCdcConsumer {
		return uuid.UUID{}, fmt.Errorf("key: not a cdc consumer key: kind=%s", k.Kind())
	}
	if len(k) != 17 {
		return uuid.UUID{}, fmt.Errorf("key: malformed cdc consumer key: len=%d", len(k))
	}
	var id uuid.UUID
	copy(id[:], k[1:17])
	return id, nil
}

// SystemSequenceKey encodes the persisted counter for a named system
// sequence (e.g. table IDs, namespace IDs).
func SystemSequenceKey(name string) EncodedKey {
	return newKey(KindSystemSequence, []byte(name))
}

// RowSequenceKey encodes the per-table row-number sequence.
func RowSequenceKey(tableID uint64) EncodedKey {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, tableID)
	return newKey(KindRowSequence, payload)
}
