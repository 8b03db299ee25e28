package proof

import (
	"testing"

	"github.com/groveforest/groveforest/element"
	"github.com/groveforest/groveforest/merk"
	"github.com/groveforest/groveforest/storage"
)

func newKVTree(t *testing.T, keys ...int) *merk.Tree {
	t.Helper()
	db := storage.NewMemoryStore()
	nodes := storage.NewTable(db, []byte("n"))
	aux := storage.NewTable(db, []byte("a"))
	tr, err := merk.Open(nodes, aux, nil, merk.CommitHooks{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var batch merk.Batch
	for _, k := range keys {
		val := []byte{byte(k)}
		batch = append(batch, merk.Op{
			Key:     []byte{byte(k)},
			Kind:    merk.OpPut,
			Value:   element.Encode(element.Item{Value: val}),
			Feature: merk.BasicFeature(),
		})
	}
	if _, err := tr.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}
	return tr
}

// TestProduce_SingleMatch mirrors the single-leaf-match shape of a
// three-node tree {3,5,7} queried for key 5: the matched node sits between
// two unqueried subtrees, each of which collapses into a single Hash push
// since the query never descends into them.
func TestProduce_SingleMatch(t *testing.T) {
	tr := newKVTree(t, 3, 5, 7)
	q := NewQuery(Key([]byte{5}))

	res, err := Produce(tr, q, nil, nil, true, nil, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(res.ResultSet) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res.ResultSet))
	}
	got := res.ResultSet[0]
	if got.Kind != NodeKVValueHashKind {
		t.Fatalf("expected NodeKVValueHashKind, got %v", got.Kind)
	}
	if string(got.Key) != "\x05" || string(got.Value) != "\x05" {
		t.Fatalf("unexpected matched node %+v", got)
	}

	var pushes []OperatorKind
	var combines []OperatorKind
	for _, op := range res.Ops {
		switch op.Kind {
		case OpPush, OpPushInverted:
			pushes = append(pushes, op.Kind)
		default:
			combines = append(combines, op.Kind)
		}
	}
	if len(pushes) != 3 {
		t.Fatalf("expected 3 pushes (Hash, KVValueHash, Hash), got %d", len(pushes))
	}
	if len(combines) != 2 || combines[0] != OpParent || combines[1] != OpChild {
		t.Fatalf("expected [Parent, Child] combine ops, got %v", combines)
	}

	verifyRoundTrip(t, tr, res.Ops, q, nil, nil, true)
}

// TestProduce_DoubleMatch covers a query that selects both leaves of a
// three-node tree {3,5,7}, leaving the root (key 5) as a pure routing node
// revealed only as an opaque kv_hash.
func TestProduce_DoubleMatch(t *testing.T) {
	tr := newKVTree(t, 3, 5, 7)
	q := NewQuery(Key([]byte{3}), Key([]byte{7}))

	res, err := Produce(tr, q, nil, nil, true, nil, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(res.ResultSet) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res.ResultSet))
	}
	for _, n := range res.ResultSet {
		if n.Kind != NodeKVValueHashKind {
			t.Fatalf("expected NodeKVValueHashKind, got %v", n.Kind)
		}
	}

	foundRoutingNode := false
	for _, op := range res.Ops {
		if (op.Kind == OpPush || op.Kind == OpPushInverted) && op.Node.Kind == NodeKVHashKind {
			foundRoutingNode = true
		}
	}
	if !foundRoutingNode {
		t.Fatal("expected the unmatched root node to be pushed as a bare KVHash")
	}

	verifyRoundTrip(t, tr, res.Ops, q, nil, nil, true)
}

// TestProduce_OffsetExcludesMatch confirms a node that collides with the
// query but is skipped by a positive offset is revealed as key+value_hash
// only (NodeKVDigestKind), never the value itself.
func TestProduce_OffsetExcludesMatch(t *testing.T) {
	tr := newKVTree(t, 3, 5, 7)
	q := NewQuery(RangeFull())
	offset := 1

	res, err := Produce(tr, q, nil, &offset, true, nil, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if offset != 0 {
		t.Fatalf("expected offset to be consumed down to 0, got %d", offset)
	}
	if len(res.ResultSet) != 2 {
		t.Fatalf("expected 2 results after skipping the first, got %d", len(res.ResultSet))
	}

	var digestNodes int
	for _, op := range res.Ops {
		if (op.Kind == OpPush || op.Kind == OpPushInverted) && op.Node.Kind == NodeKVDigestKind {
			digestNodes++
			if op.Node.Value != nil {
				t.Fatal("KVDigest node must not reveal a value")
			}
		}
	}
	if digestNodes != 1 {
		t.Fatalf("expected exactly 1 offset-excluded KVDigest node, got %d", digestNodes)
	}

	verifyRoundTrip(t, tr, res.Ops, q, nil, &offset, true)
}

// TestProduce_RightToLeft exercises descending traversal, which must use
// the Inverted push/combine operator family throughout.
func TestProduce_RightToLeft(t *testing.T) {
	tr := newKVTree(t, 3, 5, 7)
	q := NewQuery(RangeFull())

	res, err := Produce(tr, q, nil, nil, false, nil, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	for _, op := range res.Ops {
		switch op.Kind {
		case OpPush, OpParent, OpChild:
			t.Fatalf("right-to-left proof must not use ascending operator %v", op.Kind)
		}
	}
	verifyRoundTrip(t, tr, res.Ops, q, nil, nil, false)
}

// TestProduce_LimitExhaustedByFirstSideStopsSelfMatch covers a node whose
// own key would match the query, but whose first-side recursion already
// consumed the query's entire limit: the self node must fall back to a
// bare KVHash push rather than being counted as a second match, or the
// proof would carry more results than limit allows and a verifier with
// the same limit would reject it (spec §8 "Proof completeness for
// limits").
func TestProduce_LimitExhaustedByFirstSideStopsSelfMatch(t *testing.T) {
	tr := newKVTree(t, 3, 5, 7)
	q := NewQuery(RangeInclusive([]byte{3}, []byte{7}))
	limit := 1

	res, err := Produce(tr, q, &limit, nil, true, nil, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(res.ResultSet) != 1 {
		t.Fatalf("expected exactly 1 result for limit=1, got %d", len(res.ResultSet))
	}
	if string(res.ResultSet[0].Key) != "\x03" {
		t.Fatalf("expected the first in-order match (key 3), got %+v", res.ResultSet[0])
	}
	if !res.Truncated {
		t.Fatal("expected Truncated to be set once the limit cut the result set short")
	}

	verifyLimit := 1
	verifyRoundTrip(t, tr, res.Ops, q, &verifyLimit, nil, true)
}

func verifyRoundTrip(t *testing.T, tr *merk.Tree, ops []Operator, q *Query, limit, offset *int, leftToRight bool) {
	t.Helper()
	encoded, err := Encode(ops)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	l, o := limit, offset
	if l != nil {
		v := *l
		l = &v
	}
	if o != nil {
		v := *o
		o = &v
	}

	res, err := VerifyQuery(encoded, q, l, o, leftToRight, tr.RootHash(), nil)
	if err != nil {
		t.Fatalf("VerifyQuery: %v", err)
	}
	if len(decoded) != len(ops) {
		t.Fatalf("decoded op count %d != original %d", len(decoded), len(ops))
	}
	_ = res
}

func TestVerifyQuery_RejectsTamperedRoot(t *testing.T) {
	tr := newKVTree(t, 3, 5, 7)
	q := NewQuery(Key([]byte{5}))
	res, err := Produce(tr, q, nil, nil, true, nil, nil)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	encoded, err := Encode(res.Ops)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	bogus := tr.RootHash()
	bogus[0] ^= 0xFF
	if _, err := VerifyQuery(encoded, q, nil, nil, true, bogus, nil); err == nil {
		t.Fatal("expected VerifyQuery to reject a tampered expected root")
	}
}
