package cdc

import "testing"

func TestEncodeDecodeCdcRoundTrip(t *testing.T) {
	want := Cdc{
		Version:     42,
		TimestampMs: 1_700_000_000_000,
		Changes: []SequencedChange{
			{Seq: 1, Change: Change{Kind: ChangeInsert, Key: []byte("k1"), Post: []byte("v1")}},
			{Seq: 2, Change: Change{Kind: ChangeUpdate, Key: []byte("k2"), Pre: []byte("old"), Post: []byte("new")}},
			{Seq: 3, Change: Change{Kind: ChangeDelete, Key: []byte("k3"), Pre: []byte("gone")}},
		},
	}

	encoded, err := EncodeCdc(want)
	if err != nil {
		t.Fatalf("EncodeCdc: %v", err)
	}

	got, err := DecodeCdc(encoded)
	if err != nil {
		t.Fatalf("DecodeCdc: %v", err)
	}

	if got.Version != want.Version || got.TimestampMs != want.TimestampMs {
		t.Fatalf("header mismatch: got %+v, want %+v", got, want)
	}
	if len(got.Changes) != len(want.Changes) {
		t.Fatalf("change count: got %d, want %d", len(got.Changes), len(want.Changes))
	}
	for i := range want.Changes {
		g, w := got.Changes[i], want.Changes[i]
		if g.Seq != w.Seq || g.Change.Kind != w.Change.Kind ||
			string(g.Change.Key) != string(w.Change.Key) ||
			string(g.Change.Pre) != string(w.Change.Pre) ||
			string(g.Change.Post) != string(w.Change.Post) {
			t.Fatalf("change[%d] mismatch: got %+v, want %+v", i, g, w)
		}
	}
}

func TestEncodeDecodeCdcEmptyChanges(t *testing.T) {
	want := Cdc{Version: 1, TimestampMs: 0, Changes: nil}
	encoded, err := EncodeCdc(want)
	if err != nil {
		t.Fatalf("EncodeCdc: %v", err)
	}
	got, err := DecodeCdc(encoded)
	if err != nil {
		t.Fatalf("DecodeCdc: %v", err)
	}
	if got.Version != want.Version || len(got.Changes) != 0 {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeCheckpointRoundTrip(t *testing.T) {
	encoded := EncodeCheckpoint(1234)
	got, err := DecodeCheckpoint(encoded)
	if err != nil {
		t.Fatalf("DecodeCheckpoint: %v", err)
	}
	if got != 1234 {
		t.Fatalf("got %d, want 1234", got)
	}
}

func TestDecodeCheckpointRejectsGarbage(t *testing.T) {
	if _, err := DecodeCheckpoint([]byte("not a gob stream")); err == nil {
		t.Fatal("expected an error decoding garbage bytes")
	}
}

func TestDecodeCdcRejectsGarbage(t *testing.T) {
	if _, err := DecodeCdc([]byte("not a gob stream")); err == nil {
		t.Fatal("expected an error decoding garbage bytes")
	}
}
