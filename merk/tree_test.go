package merk

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/groveforest/groveforest/costs"
	"github.com/groveforest/groveforest/element"
	"github.com/groveforest/groveforest/storage"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	db := storage.NewMemoryStore()
	nodes := storage.NewTable(db, []byte("n"))
	aux := storage.NewTable(db, []byte("a"))
	tr, err := Open(nodes, aux, nil, CommitHooks{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tr
}

func putOp(key, value string) Op {
	return Op{Key: []byte(key), Kind: OpPut, Value: element.Encode(element.Item{Value: []byte(value)}), Feature: BasicFeature()}
}

func delOp(key string) Op {
	return Op{Key: []byte(key), Kind: OpDelete}
}

func TestTree_PutGet(t *testing.T) {
	tr := newTestTree(t)
	if _, err := tr.Apply(Batch{putOp("b", "2"), putOp("a", "1"), putOp("c", "3")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for k, v := range map[string]string{"a": "1", "b": "2", "c": "3"} {
		raw, _, err := tr.Get([]byte(k))
		if err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
		e, err := element.Decode(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", k, err)
		}
		if string(e.(element.Item).Value) != v {
			t.Fatalf("got %q want %q", e.(element.Item).Value, v)
		}
	}
}

func TestTree_GetMissing(t *testing.T) {
	tr := newTestTree(t)
	if _, err := tr.Apply(Batch{putOp("a", "1")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, _, err := tr.Get([]byte("zzz")); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTree_RootHashChangesOnWrite(t *testing.T) {
	tr := newTestTree(t)
	h0 := tr.RootHash()
	if _, err := tr.Apply(Batch{putOp("a", "1")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	h1 := tr.RootHash()
	if h0 == h1 {
		t.Fatal("root hash did not change after insert")
	}
	if _, err := tr.Apply(Batch{putOp("a", "2")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	h2 := tr.RootHash()
	if h1 == h2 {
		t.Fatal("root hash did not change after value update")
	}
}

func TestTree_DeleteRemovesKey(t *testing.T) {
	tr := newTestTree(t)
	if _, err := tr.Apply(Batch{putOp("a", "1"), putOp("b", "2")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := tr.Apply(Batch{delOp("a")}); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if _, _, err := tr.Get([]byte("a")); err != storage.ErrNotFound {
		t.Fatalf("expected deleted key absent, got err=%v", err)
	}
	if _, _, err := tr.Get([]byte("b")); err != nil {
		t.Fatalf("b should remain: %v", err)
	}
}

func TestTree_DeleteNonexistentIsNoop(t *testing.T) {
	tr := newTestTree(t)
	if _, err := tr.Apply(Batch{putOp("a", "1")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	h := tr.RootHash()
	if _, err := tr.Apply(Batch{delOp("nope")}); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if tr.RootHash() != h {
		t.Fatal("deleting an absent key changed the root hash")
	}
}

func TestTree_AVLBalanceUnderSequentialInsert(t *testing.T) {
	tr := newTestTree(t)
	var batch Batch
	for i := 0; i < 200; i++ {
		batch = append(batch, putOp(fmt.Sprintf("k%04d", i), "v"))
	}
	if _, err := tr.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}
	height, err := checkBalanced(tr)
	if err != nil {
		t.Fatalf("tree not balanced: %v", err)
	}
	// height of a balanced 200-node AVL tree is well under 20.
	if height > 20 {
		t.Fatalf("height %d looks unbalanced for 200 nodes", height)
	}
}

func TestTree_InOrderKeysAfterRandomOps(t *testing.T) {
	tr := newTestTree(t)
	keys := []string{"m", "d", "t", "b", "f", "q", "z", "a", "c", "e"}
	var batch Batch
	for _, k := range keys {
		batch = append(batch, putOp(k, k))
	}
	if _, err := tr.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := tr.Apply(Batch{delOp("d"), delOp("q")}); err != nil {
		t.Fatalf("apply delete: %v", err)
	}

	var got []string
	if err := tr.Ascend(func(key, value []byte) bool {
		got = append(got, string(key))
		return true
	}); err != nil {
		t.Fatalf("ascend: %v", err)
	}
	want := []string{"a", "b", "c", "e", "f", "m", "t", "z"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("not strictly increasing at %d: %v", i, got)
		}
	}
}

func TestTree_DescendIsReverseOfAscend(t *testing.T) {
	tr := newTestTree(t)
	var batch Batch
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		batch = append(batch, putOp(k, k))
	}
	if _, err := tr.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}
	var asc, desc []string
	tr.Ascend(func(k, v []byte) bool { asc = append(asc, string(k)); return true })
	tr.Descend(func(k, v []byte) bool { desc = append(desc, string(k)); return true })
	for i := range asc {
		if asc[i] != desc[len(desc)-1-i] {
			t.Fatalf("ascend %v descend %v not mirror images", asc, desc)
		}
	}
}

func TestTree_ReopenRecoversRootHash(t *testing.T) {
	db := storage.NewMemoryStore()
	nodes := storage.NewTable(db, []byte("n"))
	aux := storage.NewTable(db, []byte("a"))
	tr, err := Open(nodes, aux, nil, CommitHooks{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := tr.Apply(Batch{putOp("a", "1"), putOp("b", "2")}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := tr.RootHash()

	reopened, err := Open(nodes, aux, nil, CommitHooks{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.RootHash() != want {
		t.Fatalf("reopened root hash %x != %x", reopened.RootHash(), want)
	}
	raw, _, err := reopened.Get([]byte("a"))
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	e, err := element.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(e.(element.Item).Value, []byte("1")) {
		t.Fatalf("got %q", e.(element.Item).Value)
	}
}

func TestTree_FlagsUpdateHookCanVeto(t *testing.T) {
	db := storage.NewMemoryStore()
	nodes := storage.NewTable(db, []byte("n"))
	aux := storage.NewTable(db, []byte("a"))
	hooks := CommitHooks{
		FlagsUpdate: func(oldCost uint32, oldFlags, newFlags []byte) bool {
			return false
		},
	}
	tr, err := Open(nodes, aux, nil, hooks)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := tr.Apply(Batch{putOp("a", "1")}); err != nil {
		t.Fatalf("initial insert should not invoke the hook: %v", err)
	}
	before := tr.RootHash()
	longer := Op{Key: []byte("a"), Kind: OpPut, Value: element.Encode(element.Item{Value: []byte("a much longer value than before")}), Feature: BasicFeature()}
	if _, err := tr.Apply(Batch{longer}); err == nil {
		t.Fatal("expected flags_update hook veto to fail Apply")
	}
	if tr.RootHash() != before {
		t.Fatal("rejected apply must leave the tree unchanged")
	}
	raw, _, err := tr.Get([]byte("a"))
	if err != nil {
		t.Fatalf("get after veto: %v", err)
	}
	got, err := element.Decode(raw)
	if err != nil {
		t.Fatalf("decode after veto: %v", err)
	}
	if item, ok := got.(element.Item); !ok || string(item.Value) != "1" {
		t.Fatalf("rejected apply must not be visible to Get, got %#v", got)
	}
}

// checkBalanced walks the tree verifying the AVL invariant and strictly
// increasing in-order keys, returning the tree's height.
func checkBalanced(tr *Tree) (int, error) {
	var cost costs.OperationCost
	w := NewWalker(tr.store, tr.cache, &cost)
	var prev []byte
	first := true
	height, err := checkNode(w, tr.root, &prev, &first)
	return height, err
}

func checkNode(w *Walker, link *Link, prev *[]byte, first *bool) (int, error) {
	if link == nil {
		return 0, nil
	}
	node, err := w.loadLink(link)
	if err != nil {
		return 0, err
	}
	lh, err := checkNode(w, node.Left, prev, first)
	if err != nil {
		return 0, err
	}
	if *first {
		*first = false
	} else if bytes.Compare(*prev, node.Key) >= 0 {
		return 0, fmt.Errorf("keys not strictly increasing at %q", node.Key)
	}
	*prev = node.Key
	rh, err := checkNode(w, node.Right, prev, first)
	if err != nil {
		return 0, err
	}
	diff := lh - rh
	if diff < -1 || diff > 1 {
		return 0, fmt.Errorf("unbalanced at key %q: left=%d right=%d", node.Key, lh, rh)
	}
	if lh > rh {
		return lh + 1, nil
	}
	return rh + 1, nil
}
