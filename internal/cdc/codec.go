package cdc

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// wireChange and wireCdc mirror Change/Cdc but with byte-slice Key fields,
// since gob doesn't need our EncodedKey named type — it round-trips []byte
// fine, this indirection just keeps the exported types free of gob tags.
type wireChange struct {
	Kind ChangeKind
	Key  []byte
	Pre  []byte
	Post []byte
}

type wireSequencedChange struct {
	Seq    uint16
	Change wireChange
}

type wireCdc struct {
	Version     uint64
	TimestampMs uint64
	Changes     []wireSequencedChange
}

// EncodeCdc serializes a Cdc record for storage under its CdcKey (spec §6
// "CDC record on-disk format"), following the teacher's GOB-based
// persistence convention.
func EncodeCdc(c Cdc) ([]byte, error) {
	w := wireCdc{Version: c.Version, TimestampMs: c.TimestampMs}
	for _, sc := range c.Changes {
		w.Changes = append(w.Changes, wireSequencedChange{
			Seq: sc.Seq,
			Change: wireChange{
				Kind: sc.Change.Kind,
				Key:  []byte(sc.Change.Key),
				Pre:  sc.Change.Pre,
				Post: sc.Change.Post,
			},
		})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("cdc: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCdc is the inverse of EncodeCdc.
func DecodeCdc(data []byte) (Cdc, error) {
	var w wireCdc
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return Cdc{}, fmt.Errorf("cdc: decode: %w", err)
	}
	c := Cdc{Version: w.Version, TimestampMs: w.TimestampMs}
	for _, wsc := range w.Changes {
		c.Changes = append(c.Changes, SequencedChange{
			Seq: wsc.Seq,
			Change: Change{
				Kind: wsc.Change.Kind,
				Key:  wsc.Change.Key,
				Pre:  wsc.Change.Pre,
				Post: wsc.Change.Post,
			},
		})
	}
	return c, nil
}

// EncodeCheckpoint serializes a consumer's last-processed version (spec §6
// "Consumer checkpoint format").
func EncodeCheckpoint(lastProcessedVersion uint64) []byte {
	var buf bytes.Buffer
	gob.NewEncoder(&buf).Encode(lastProcessedVersion)
	return buf.Bytes()
}

// DecodeCheckpoint is the inverse of EncodeCheckpoint.
func DecodeCheckpoint(data []byte) (uint64, error) {
	var v uint64
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return 0, fmt.Errorf("cdc: decode checkpoint: %w", err)
	}
	return v, nil
}
