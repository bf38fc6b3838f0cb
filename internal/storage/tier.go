package storage

import (
	"bytes"
	"container/heap"
	"context"

	"github.com/reifydb/reifydb-sub012/internal/key"
)

// Tier composes backends into a hot→warm→cold stack (spec §4.B "hot/warm/
// cold tiering with merging iterator"). Point reads and range scans consult
// members in order and the first tier holding a visible version for a key
// wins; Commit always writes to the hot (first) member.
type Tier struct {
	members []Backend
}

// NewTier builds a tier from its members, ordered hottest first. At least
// one member is required.
func NewTier(members ...Backend) *Tier {
	if len(members) == 0 {
		panic("storage: tier requires at least one backend")
	}
	return &Tier{members: members}
}

func (t *Tier) Get(ctx context.Context, k key.EncodedKey, version uint64) (MultiVersionRecord, bool, error) {
	for _, m := range t.members {
		rec, ok, err := m.Get(ctx, k, version)
		if err != nil {
			return MultiVersionRecord{}, false, err
		}
		if ok {
			return rec, true, nil
		}
	}
	return MultiVersionRecord{}, false, nil
}

func (t *Tier) Contains(ctx context.Context, k key.EncodedKey, version uint64) (bool, error) {
	_, ok, err := t.Get(ctx, k, version)
	return ok, err
}

func (t *Tier) Range(ctx context.Context, start, end key.EncodedKey, version uint64) (Iterator, error) {
	return t.merge(ctx, start, end, version, false)
}

func (t *Tier) RangeRev(ctx context.Context, start, end key.EncodedKey, version uint64) (Iterator, error) {
	return t.merge(ctx, start, end, version, true)
}

func (t *Tier) merge(ctx context.Context, start, end key.EncodedKey, version uint64, reverse bool) (Iterator, error) {
	sources := make([]Iterator, 0, len(t.members))
	for _, m := range t.members {
		var it Iterator
		var err error
		if reverse {
			it, err = m.RangeRev(ctx, start, end, version)
		} else {
			it, err = m.Range(ctx, start, end, version)
		}
		if err != nil {
			for _, opened := range sources {
				opened.Close()
			}
			return nil, err
		}
		sources = append(sources, it)
	}
	return newMergingIterator(sources, reverse), nil
}

// Commit writes to the hottest member only (spec §4.B). Nothing in this
// module copies or moves data from the hot member down to colder members.
func (t *Tier) Commit(ctx context.Context, deltas []Delta, version uint64) error {
	return t.members[0].Commit(ctx, deltas, version)
}

func (t *Tier) Close() error {
	var firstErr error
	for _, m := range t.members {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// mergeItem is one source's current head, tagged with its tier rank so
// ties resolve to the hotter (lower-ranked) tier.
type mergeItem struct {
	rec     MultiVersionRecord
	srcIdx  int
	reverse bool
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	c := bytes.Compare(h[i].rec.Key, h[j].rec.Key)
	if c != 0 {
		if h[i].reverse {
			return c > 0
		}
		return c < 0
	}
	return h[i].srcIdx < h[j].srcIdx
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergingIterator fans in multiple per-tier iterators into one stream,
// deduplicating keys so the hotter tier's record wins (spec §4.B
// "first-tier-wins semantics").
type mergingIterator struct {
	sources []Iterator
	h       mergeHeap
	current MultiVersionRecord
	err     error
	started bool
	reverse bool
}

func newMergingIterator(sources []Iterator, reverse bool) *mergingIterator {
	return &mergingIterator{sources: sources, h: make(mergeHeap, 0, len(sources)), reverse: reverse}
}

func (m *mergingIterator) fillFrom(idx int, reverse bool) {
	src := m.sources[idx]
	if src.Next() {
		heap.Push(&m.h, mergeItem{rec: src.Record(), srcIdx: idx, reverse: reverse})
	} else if err := src.Err(); err != nil {
		m.err = err
	}
}

func (m *mergingIterator) Next() bool {
	if m.err != nil {
		return false
	}
	if !m.started {
		m.started = true
		for i := range m.sources {
			m.fillFrom(i, m.reverse)
		}
	}

	for {
		if m.h.Len() == 0 {
			return false
		}
		top := heap.Pop(&m.h).(mergeItem)
		m.fillFrom(top.srcIdx, top.reverse)

		// Drain and discard any colder-tier duplicates of this key.
		for m.h.Len() > 0 && bytes.Equal(m.h[0].rec.Key, top.rec.Key) {
			dup := heap.Pop(&m.h).(mergeItem)
			m.fillFrom(dup.srcIdx, dup.reverse)
		}

		m.current = top.rec
		return true
	}
}

func (m *mergingIterator) Record() MultiVersionRecord { return m.current }
func (m *mergingIterator) Err() error                 { return m.err }
func (m *mergingIterator) Close() error {
	var firstErr error
	for _, s := range m.sources {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
