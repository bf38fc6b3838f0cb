// Package sequence implements the monotonic counters backing commit
// versions, row numbers, and catalog object IDs (spec §3 "Commit version",
// §7 "sequence_exhausted"). It generalizes the source's per-width macro
// expansion into one generic saturating counter (an explicit redesign, see
// DESIGN.md).
package sequence

import (
	"errors"
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// ErrExhausted is returned when advancing a sequence would overflow its
// maximum value.
var ErrExhausted = errors.New("sequence: exhausted")

// Unsigned is the set of integer widths a Sequence can be built over.
type Unsigned interface {
	constraints.Unsigned
}

// Sequence is a monotonically increasing, saturating counter. It never
// wraps: once advancing would exceed Max, every further call fails with
// ErrExhausted rather than silently overflowing.
type Sequence[T Unsigned] struct {
	value atomic.Uint64
	max   uint64
}

// New constructs a sequence starting at start (the next call to Next
// returns start+1, following spec §3's "version 0 reserved" convention),
// saturating at max.
func New[T Unsigned](start T, max T) *Sequence[T] {
	s := &Sequence[T]{max: uint64(max)}
	s.value.Store(uint64(start))
	return s
}

// Next returns the next value in the sequence, or ErrExhausted if the
// sequence has reached its maximum.
func (s *Sequence[T]) Next() (T, error) {
	return s.NextBatched(1)
}

// NextBatched reserves a contiguous block of n values and returns the
// last one, advancing the counter by n. It fails with ErrExhausted if the
// reservation would exceed max — including when the sequence sits within n
// of max (spec §8 "next_batched on a sequence at max-k for k<incr fails").
func (s *Sequence[T]) NextBatched(n T) (T, error) {
	inc := uint64(n)
	for {
		cur := s.value.Load()
		next := cur + inc
		if next < cur || next > s.max {
			return 0, ErrExhausted
		}
		if s.value.CompareAndSwap(cur, next) {
			return T(next), nil
		}
	}
}

// Current returns the sequence's current value without advancing it.
func (s *Sequence[T]) Current() T {
	return T(s.value.Load())
}
