package key

import "testing"

// TestCDCExclusionIsExhaustive stands in for the source's compiler-enforced
// exhaustive match over KeyKind: every variant in allKinds must have an
// explicit entry in cdcExclusion, so adding a new Kind without deciding its
// CDC policy fails the build (of this test) rather than silently defaulting.
func TestCDCExclusionIsExhaustive(t *testing.T) {
	for _, k := range allKinds {
		if _, ok := cdcExclusion[k]; !ok {
			t.Errorf("kind %s has no explicit CDC-exclusion entry", k)
		}
	}
}

func TestExcludedFromCDCMatchesSpecList(t *testing.T) {
	excluded := []Kind{
		KindFlowNodeState, KindFlowNodeInternalState, KindCdcConsumer,
		KindMetric, KindSystemSequence, KindRowSequence, KindColumnSequence,
		KindDictionarySequence, KindSystemVersion, KindTransactionVersion,
		KindFlowVersion, KindRingBufferMetadata, KindIndex, KindSubscription,
		KindSubscriptionColumn, KindSubscriptionRow,
	}
	want := make(map[Kind]bool, len(excluded))
	for _, k := range excluded {
		want[k] = true
	}

	for _, k := range allKinds {
		if got := ExcludedFromCDC(k); got != want[k] {
			t.Errorf("ExcludedFromCDC(%s) = %v, want %v", k, got, want[k])
		}
	}
}

func TestRowKeyRoundTrip(t *testing.T) {
	k := RowKey(42, 7)
	tableID, rowNumber, err := DecodeRowKey(k)
	if err != nil {
		t.Fatalf("DecodeRowKey: %v", err)
	}
	if tableID != 42 || rowNumber != 7 {
		t.Errorf("got (%d, %d), want (42, 7)", tableID, rowNumber)
	}
}

func TestRowKeySortsByRowNumberWithinTable(t *testing.T) {
	a := RowKey(1, 5)
	b := RowKey(1, 6)
	if !lessBytes(a, b) {
		t.Errorf("expected RowKey(1,5) < RowKey(1,6)")
	}
}

func lessBytes(a, b EncodedKey) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func TestCdcKeyRoundTrip(t *testing.T) {
	k := CdcKey(9001)
	v, err := DecodeCdcKey(k)
	if err != nil {
		t.Fatalf("DecodeCdcKey: %v", err)
	}
	if v != 9001 {
		t.Errorf("got %d, want 9001", v)
	}
}
