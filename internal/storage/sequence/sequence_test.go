package sequence

import "testing"

func TestNextIncrementsMonotonically(t *testing.T) {
	s := New[uint64](0, 100)
	v1, err := s.Next()
	must(t, err)
	v2, err := s.Next()
	must(t, err)
	if v1 != 1 || v2 != 2 {
		t.Fatalf("got (%d, %d), want (1, 2)", v1, v2)
	}
}

func TestNextBatchedAdvancesByN(t *testing.T) {
	s := New[uint64](0, 100)
	last, err := s.NextBatched(10)
	must(t, err)
	if last != 10 {
		t.Fatalf("last = %d, want 10", last)
	}
	if s.Current() != 10 {
		t.Fatalf("Current = %d, want 10", s.Current())
	}
}

func TestNextBatchedFailsWhenWithinKOfMax(t *testing.T) {
	s := New[uint64](95, 100)
	if _, err := s.NextBatched(10); err != ErrExhausted {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	// The failed reservation must not have advanced the counter.
	if s.Current() != 95 {
		t.Fatalf("Current = %d, want 95 (unchanged)", s.Current())
	}
}

func TestNextExhaustsAtMax(t *testing.T) {
	s := New[uint8](254, 255)
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next at 254->255: %v", err)
	}
	if _, err := s.Next(); err != ErrExhausted {
		t.Fatalf("Next at max: err = %v, want ErrExhausted", err)
	}
}
