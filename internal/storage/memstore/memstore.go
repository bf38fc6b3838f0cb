// Package memstore implements an in-memory, ordered, versioned
// storage.Backend (spec §4.B "memory backend"): a sorted key index over
// per-key version chains, held entirely in RAM.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/reifydb/reifydb-sub012/internal/key"
	"github.com/reifydb/reifydb-sub012/internal/storage"
)

type versionedEntry struct {
	version uint64
	values  []byte // nil = tombstone
}

// Store is an in-memory multi-version backend. Zero value is not usable;
// construct with New.
type Store struct {
	mu sync.RWMutex

	// keys is kept sorted so Range/RangeRev can binary-search a window.
	keys    []string
	entries map[string][]versionedEntry
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string][]versionedEntry)}
}

func (s *Store) indexOf(k string) (int, bool) {
	i := sort.SearchStrings(s.keys, k)
	return i, i < len(s.keys) && s.keys[i] == k
}

func (s *Store) insertKey(k string) {
	i := sort.SearchStrings(s.keys, k)
	s.keys = append(s.keys, "")
	copy(s.keys[i+1:], s.keys[i:])
	s.keys[i] = k
}

// visible finds the entry for version v using the "largest version ≤ v"
// rule (spec §8 invariant 1). Chains are kept sorted ascending by version.
func visible(chain []versionedEntry, v uint64) (versionedEntry, bool) {
	i := sort.Search(len(chain), func(i int) bool { return chain[i].version > v })
	if i == 0 {
		return versionedEntry{}, false
	}
	return chain[i-1], true
}

func (s *Store) Get(_ context.Context, k key.EncodedKey, version uint64) (storage.MultiVersionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.entries[string(k)]
	if !ok {
		return storage.MultiVersionRecord{}, false, nil
	}
	e, ok := visible(chain, version)
	if !ok || e.values == nil {
		return storage.MultiVersionRecord{}, false, nil
	}
	return storage.MultiVersionRecord{Key: k, Values: e.values, Version: e.version}, true, nil
}

func (s *Store) Contains(ctx context.Context, k key.EncodedKey, version uint64) (bool, error) {
	_, ok, err := s.Get(ctx, k, version)
	return ok, err
}

func (s *Store) Range(_ context.Context, start, end key.EncodedKey, version uint64) (storage.Iterator, error) {
	return s.rangeIter(start, end, version, false), nil
}

func (s *Store) RangeRev(_ context.Context, start, end key.EncodedKey, version uint64) (storage.Iterator, error) {
	return s.rangeIter(start, end, version, true), nil
}

func (s *Store) rangeIter(start, end key.EncodedKey, version uint64, reverse bool) *memIterator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := sort.SearchStrings(s.keys, string(start))
	var hi int
	if end == nil {
		hi = len(s.keys)
	} else {
		hi = sort.SearchStrings(s.keys, string(end))
	}

	records := make([]storage.MultiVersionRecord, 0, hi-lo)
	for i := lo; i < hi && i < len(s.keys); i++ {
		k := s.keys[i]
		e, ok := visible(s.entries[k], version)
		if !ok || e.values == nil {
			continue
		}
		records = append(records, storage.MultiVersionRecord{
			Key: key.EncodedKey(k), Values: e.values, Version: e.version,
		})
	}
	if reverse {
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
	}
	return &memIterator{records: records, idx: -1}
}

func (s *Store) Commit(_ context.Context, deltas []storage.Delta, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range deltas {
		ks := string(d.Key)
		switch d.Kind {
		case storage.DeltaSet:
			s.appendVersion(ks, version, d.Values)
		case storage.DeltaUnset:
			s.appendVersion(ks, version, nil)
		case storage.DeltaRemove:
			delete(s.entries, ks)
			if i, ok := s.indexOf(ks); ok {
				s.keys = append(s.keys[:i], s.keys[i+1:]...)
			}
		case storage.DeltaDrop:
			s.applyDrop(ks, d)
		}
	}
	return nil
}

func (s *Store) appendVersion(ks string, version uint64, values []byte) {
	if _, ok := s.entries[ks]; !ok {
		s.insertKey(ks)
	}
	s.entries[ks] = append(s.entries[ks], versionedEntry{version: version, values: values})
}

func (s *Store) applyDrop(ks string, d storage.Delta) {
	chain, ok := s.entries[ks]
	if !ok {
		return
	}
	keep := 0
	if d.KeepLastVersions != nil {
		keep = *d.KeepLastVersions
	}
	cutoff := chain[len(chain)-1].version + 1
	if d.UpToVersion != nil {
		cutoff = *d.UpToVersion + 1
	}

	keepFromIdx := len(chain) - keep
	pruned := chain[:0:0]
	for i, e := range chain {
		if i >= keepFromIdx || e.version >= cutoff {
			pruned = append(pruned, e)
		}
	}
	if len(pruned) == 0 {
		delete(s.entries, ks)
		if i, ok := s.indexOf(ks); ok {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
		}
		return
	}
	s.entries[ks] = pruned
}

func (s *Store) Close() error { return nil }

type memIterator struct {
	records []storage.MultiVersionRecord
	idx     int
}

func (it *memIterator) Next() bool {
	it.idx++
	return it.idx < len(it.records)
}

func (it *memIterator) Record() storage.MultiVersionRecord { return it.records[it.idx] }
func (it *memIterator) Err() error                         { return nil }
func (it *memIterator) Close() error                       { return nil }
