package restore

import (
	"testing"

	"github.com/groveforest/groveforest/element"
	"github.com/groveforest/groveforest/merk"
	"github.com/groveforest/groveforest/storage"
)

func buildSourceTree(t *testing.T, keys ...int) (*merk.Tree, storage.KVStore) {
	t.Helper()
	nodes := storage.NewMemoryStore()
	aux := storage.NewMemoryStore()
	tr, err := merk.Open(nodes, aux, nil, merk.CommitHooks{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var batch merk.Batch
	for _, k := range keys {
		batch = append(batch, merk.Op{
			Key:     []byte{byte(k)},
			Kind:    merk.OpPut,
			Value:   element.Encode(element.Item{Value: []byte{byte(k)}}),
			Feature: merk.BasicFeature(),
		})
	}
	if _, err := tr.Apply(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}
	return tr, nodes
}

func collectPreOrder(t *testing.T, store storage.KVStore, link *merk.Link) []ChunkEntry {
	t.Helper()
	if link == nil {
		return nil
	}
	raw, err := store.Get(link.Key)
	if err != nil {
		t.Fatalf("get %x: %v", link.Key, err)
	}
	node, err := merk.Decode(link.Key, raw)
	if err != nil {
		t.Fatalf("decode %x: %v", link.Key, err)
	}
	entries := []ChunkEntry{{Key: link.Key, Raw: raw}}
	entries = append(entries, collectPreOrder(t, store, node.Left)...)
	entries = append(entries, collectPreOrder(t, store, node.Right)...)
	return entries
}

// TestRestore_SingleTrunkChunk covers the case where the whole subtree fits
// in one trunk chunk, with no boundaries left for leaf chunks.
func TestRestore_SingleTrunkChunk(t *testing.T) {
	src, nodes := buildSourceTree(t, 1, 2, 3, 4, 5, 6, 7)
	entries := collectPreOrder(t, nodes, src.Root())

	dstNodes := storage.NewMemoryStore()
	dstAux := storage.NewMemoryStore()
	r := NewRestorer(dstNodes, dstAux, src.RootHash(), nil)

	if err := r.ProcessTrunkChunk(entries); err != nil {
		t.Fatalf("ProcessTrunkChunk: %v", err)
	}
	if r.State() != Done {
		t.Fatalf("expected Done, got state=%d", r.State())
	}
	if r.PendingLeaves() != 0 {
		t.Fatalf("expected no pending leaves, got %d", r.PendingLeaves())
	}

	dst, err := merk.Open(dstNodes, dstAux, nil, merk.CommitHooks{})
	if err != nil {
		t.Fatalf("Open restored tree: %v", err)
	}
	if dst.RootHash() != src.RootHash() {
		t.Fatalf("restored root hash %x != source %x", dst.RootHash(), src.RootHash())
	}
}

// TestRestore_TrunkThenLeafChunk defers the root's right subtree to a
// separate leaf chunk, exercising the AwaitingLeaves branch and the
// parent-link rewrite attachLeaf performs once the deferred subtree
// arrives.
func TestRestore_TrunkThenLeafChunk(t *testing.T) {
	src, nodes := buildSourceTree(t, 1, 2, 3, 4, 5, 6, 7)
	root := src.Root()
	rootRaw, err := nodes.Get(root.Key)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	rootNode, err := merk.Decode(root.Key, rootRaw)
	if err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if rootNode.Right == nil {
		t.Fatal("expected root to have a right child for this tree shape")
	}

	leafEntries := collectPreOrder(t, nodes, rootNode.Right)

	// Defer the right subtree: mark its link as a pending boundary by
	// clearing its key, matching the trunk-chunk wire convention (spec
	// §4.6 "Link... Key may be empty").
	rootNode.Right.Key = nil
	mutatedRootRaw, err := merk.Encode(rootNode)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	trunkEntries := []ChunkEntry{{Key: root.Key, Raw: mutatedRootRaw}}
	trunkEntries = append(trunkEntries, collectPreOrder(t, nodes, rootNode.Left)...)

	dstNodes := storage.NewMemoryStore()
	dstAux := storage.NewMemoryStore()
	r := NewRestorer(dstNodes, dstAux, src.RootHash(), nil)

	if err := r.ProcessTrunkChunk(trunkEntries); err != nil {
		t.Fatalf("ProcessTrunkChunk: %v", err)
	}
	if r.State() != AwaitingLeaves {
		t.Fatalf("expected AwaitingLeaves, got state=%d", r.State())
	}
	if r.PendingLeaves() != 1 {
		t.Fatalf("expected 1 pending leaf, got %d", r.PendingLeaves())
	}

	if err := r.ProcessLeafChunk(0, leafEntries); err != nil {
		t.Fatalf("ProcessLeafChunk: %v", err)
	}
	if r.State() != Done {
		t.Fatalf("expected Done, got state=%d", r.State())
	}

	dst, err := merk.Open(dstNodes, dstAux, nil, merk.CommitHooks{})
	if err != nil {
		t.Fatalf("Open restored tree: %v", err)
	}
	if dst.RootHash() != src.RootHash() {
		t.Fatalf("restored root hash %x != source %x", dst.RootHash(), src.RootHash())
	}
	for k := 1; k <= 7; k++ {
		raw, _, err := dst.Get([]byte{byte(k)})
		if err != nil {
			t.Fatalf("get key %d: %v", k, err)
		}
		e, err := element.Decode(raw)
		if err != nil {
			t.Fatalf("decode key %d: %v", k, err)
		}
		if string(e.(element.Item).Value) != string([]byte{byte(k)}) {
			t.Fatalf("key %d: unexpected value %v", k, e.(element.Item).Value)
		}
	}
}

// TestRestore_RejectsTamperedChunk confirms a trunk chunk with a corrupted
// byte in the root node's encoding (here the last byte of its right
// link's key) is rejected and leaves the session in AwaitingTrunk.
func TestRestore_RejectsTamperedChunk(t *testing.T) {
	src, nodes := buildSourceTree(t, 1, 2, 3)
	entries := collectPreOrder(t, nodes, src.Root())
	entries[0].Raw = append([]byte{}, entries[0].Raw...)
	entries[0].Raw[len(entries[0].Raw)-1] ^= 0xFF

	dstNodes := storage.NewMemoryStore()
	dstAux := storage.NewMemoryStore()
	r := NewRestorer(dstNodes, dstAux, src.RootHash(), nil)

	if err := r.ProcessTrunkChunk(entries); err == nil {
		t.Fatal("expected ProcessTrunkChunk to reject a tampered chunk")
	}
	if r.State() != AwaitingTrunk {
		t.Fatalf("expected state to remain AwaitingTrunk after rejection, got %d", r.State())
	}
}
