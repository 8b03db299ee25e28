package proof

import "testing"

func TestSplitAt_ExactKeyLeavesNoDegenerateHalf(t *testing.T) {
	q := NewQuery(Key([]byte{5}))
	left, right := q.SplitAt([]byte{5})

	if len(left.Items) != 0 {
		t.Fatalf("left.Items = %v, want empty (split key excluded from both halves)", left.Items)
	}
	if len(right.Items) != 0 {
		t.Fatalf("right.Items = %v, want empty (split key excluded from both halves)", right.Items)
	}
}

func TestSplitAt_RangeStraddlingKeyDuplicatesBothSides(t *testing.T) {
	q := NewQuery(RangeInclusive([]byte{1}, []byte{9}))
	left, right := q.SplitAt([]byte{5})

	if len(left.Items) != 1 {
		t.Fatalf("left.Items = %v, want one clamped item", left.Items)
	}
	if len(right.Items) != 1 {
		t.Fatalf("right.Items = %v, want one clamped item", right.Items)
	}
	if left.Items[0].Contains([]byte{5}) {
		t.Fatalf("left half must not contain the split key itself")
	}
	if right.Items[0].Contains([]byte{5}) {
		t.Fatalf("right half must not contain the split key itself")
	}
	if !left.Items[0].Contains([]byte{3}) {
		t.Fatalf("left half should still contain keys strictly below the split key")
	}
	if !right.Items[0].Contains([]byte{7}) {
		t.Fatalf("right half should still contain keys strictly above the split key")
	}
}

func TestSplitAt_ItemsEntirelyOnOneSideAreUntouched(t *testing.T) {
	q := NewQuery(Key([]byte{1}), Key([]byte{9}))
	left, right := q.SplitAt([]byte{5})

	if len(left.Items) != 1 || !left.Items[0].Contains([]byte{1}) {
		t.Fatalf("left.Items = %v, want the Key(1) item untouched", left.Items)
	}
	if len(right.Items) != 1 || !right.Items[0].Contains([]byte{9}) {
		t.Fatalf("right.Items = %v, want the Key(9) item untouched", right.Items)
	}
}
