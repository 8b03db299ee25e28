// Package merk implements one AVL-balanced, Merkle-hashed subtree (spec
// §4.2 "Balanced-Tree Engine"): apply(batch) -> new_root_hash, get(key),
// ordered iteration, and the lazy Walker that backs proof production and
// chunked restore.
package merk

import (
	"bytes"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/groveforest/groveforest/costs"
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/log"
	"github.com/groveforest/groveforest/storage"
)

var logger = log.Default().Module("merk")

// Tree owns one subtree's on-disk nodes (via store) and the two aux
// markers the block-store contract reserves (spec §6): root-key and
// last-root-hash. Nodes belonging to a Tree live exclusively under store;
// callers are expected to have already scoped store to this subtree's
// stable byte prefix (spec §6 "Prefixing"), typically with
// storage.NewTable.
type Tree struct {
	store storage.KVStore
	aux   storage.KVStore
	cache *fastcache.Cache
	hooks CommitHooks

	root     *Link
	rootHash grovehash.Hash
}

// Open loads a Tree's root pointer from aux's root-key marker, if one
// exists. An empty tree (no marker) is a valid, empty Tree.
func Open(store, aux storage.KVStore, cache *fastcache.Cache, hooks CommitHooks) (*Tree, error) {
	t := &Tree{store: store, aux: aux, cache: cache, hooks: hooks}
	rootKey, err := aux.Get([]byte(storage.RootKeyMarker))
	if err != nil {
		if err == storage.ErrNotFound {
			return t, nil
		}
		return nil, groveerr.Wrap(groveerr.StorageError, "merk.Open", err)
	}
	lastHash, err := aux.Get([]byte(storage.LastRootHashMarker))
	if err != nil && err != storage.ErrNotFound {
		return nil, groveerr.Wrap(groveerr.StorageError, "merk.Open", err)
	}
	t.root = &Link{State: LinkReference, Key: append([]byte{}, rootKey...)}
	if len(lastHash) == grovehash.Size {
		t.root.Hash = grovehash.BytesToHash(lastHash)
		t.rootHash = t.root.Hash
	}
	return t, nil
}

// RootHash returns the subtree's current root hash, grovehash.Zero for an
// empty tree (spec §3 invariant 4, null hash for absent children applies
// equally to an absent root).
func (t *Tree) RootHash() grovehash.Hash {
	return t.rootHash
}

// IsEmpty reports whether the tree currently has no root.
func (t *Tree) IsEmpty() bool {
	return t.root == nil
}

// Root returns the tree's root link, nil for an empty tree. Proof
// production walks a tree via its Root and NewWalker rather than through
// Get/Apply, since it needs to inspect cached child hashes without
// necessarily loading every child.
func (t *Tree) Root() *Link {
	return t.root
}

// Store exposes the tree's node store, used by proof production to build
// its own Walker scoped to this subtree.
func (t *Tree) Store() storage.KVStore {
	return t.store
}

// Cache exposes the tree's decoded-node cache, nil if caching is disabled.
func (t *Tree) Cache() *fastcache.Cache {
	return t.cache
}

// Get fetches the raw value bytes stored at key, or storage.ErrNotFound.
func (t *Tree) Get(key []byte) ([]byte, costs.OperationCost, error) {
	var cost costs.OperationCost
	w := NewWalker(t.store, t.cache, &cost)
	link := t.root
	for link != nil {
		node, err := w.loadLink(link)
		if err != nil {
			return nil, cost, err
		}
		switch bytes.Compare(key, node.Key) {
		case 0:
			return node.Value, cost, nil
		case -1:
			link = node.Left
		default:
			link = node.Right
		}
	}
	return nil, cost, storage.ErrNotFound
}

// SumAggregate walks the whole tree and sums every summed node's
// Feature.Sum (spec §3 invariant 5: "Sum equals the algebraic sum of
// every SumItem and nested SumTree.Sum in its subtree"). A nested
// SumTree's own Feature.Sum already holds its own aggregate by the time
// it was last committed, so this is a single pass over this tree's own
// nodes, not a recursive descent into other subtrees.
func (t *Tree) SumAggregate() (int64, costs.OperationCost, error) {
	var cost costs.OperationCost
	w := NewWalker(t.store, t.cache, &cost)

	var total int64
	var walk func(link *Link) error
	walk = func(link *Link) error {
		if link == nil {
			return nil
		}
		node, err := w.loadLink(link)
		if err != nil {
			return err
		}
		if node.Feature.IsSummed() {
			total += node.Feature.Sum
		}
		if err := walk(node.Left); err != nil {
			return err
		}
		return walk(node.Right)
	}
	if err := walk(t.root); err != nil {
		return 0, cost, err
	}
	return total, cost, nil
}

// Apply applies batch to the tree in ascending key order, runs the commit
// pass, and returns the accumulated OperationCost (spec §4.2).
//
// Failure semantics: if a cost hook vetoes a change, Apply returns a
// CorruptedCodeExecution error and leaves the in-memory tree exactly as it was before the
// call (spec §4.2 "Failure semantics").
func (t *Tree) Apply(batch Batch) (costs.OperationCost, error) {
	var cost costs.OperationCost
	w := NewWalker(t.store, t.cache, &cost)

	savedRoot, savedHash := t.root, t.rootHash
	var removedNodes []removalRecord

	for _, op := range normalize(batch) {
		if op.Kind.IsDelete() {
			newRoot, removed, err := deleteKey(w, t.root, op.Key)
			if err != nil {
				t.root, t.rootHash = savedRoot, savedHash
				return cost, err
			}
			t.root = newRoot
			if removed != nil {
				removedNodes = append(removedNodes, removalRecord{node: removed, layered: op.Kind.IsLayered()})
			}
			continue
		}
		newRoot, err := insertKey(w, t.root, op.Key, op.Value, op.Feature, op.Flags)
		if err != nil {
			t.root, t.rootHash = savedRoot, savedHash
			return cost, err
		}
		t.root = newRoot
	}

	if err := t.commit(w, removedNodes, &cost); err != nil {
		t.root, t.rootHash = savedRoot, savedHash
		return cost, err
	}
	logger.Debug("batch applied", "ops", len(batch), "root_hash", t.rootHash)
	return cost, nil
}

// removalRecord pairs a removed node with whether its delete op was one of
// the Layered variants, which route storage-removal accounting through
// the split_removal_bytes hook instead of a flat BasicStorageRemoval.
type removalRecord struct {
	node    *Node
	layered bool
}

// commit runs the bottom-up hashing and write-batch pass (spec §4.2 steps
// 1-4): recompute hashes for every touched node, invoke cost hooks,
// persist uncommitted nodes and the root-key/last-root-hash markers, and
// delete storage for removed nodes.
func (t *Tree) commit(w *Walker, removed []removalRecord, cost *costs.OperationCost) error {
	if t.root != nil {
		newRoot, err := commitLink(w, t.root, t.hooks, cost)
		if err != nil {
			return err
		}
		t.root = newRoot
		t.rootHash = t.root.Hash
		if err := t.aux.Put([]byte(storage.RootKeyMarker), t.root.Key); err != nil {
			return groveerr.Wrap(groveerr.StorageError, "merk.commit", err)
		}
		if err := t.aux.Put([]byte(storage.LastRootHashMarker), t.rootHash[:]); err != nil {
			return groveerr.Wrap(groveerr.StorageError, "merk.commit", err)
		}
	} else {
		t.rootHash = grovehash.Zero
		if err := t.aux.Delete([]byte(storage.RootKeyMarker)); err != nil {
			return groveerr.Wrap(groveerr.StorageError, "merk.commit", err)
		}
	}

	for _, rec := range removed {
		n := rec.node
		keyBytes := uint32(len(n.Key))
		valueBytes := uint32(len(n.Value))
		if rec.layered {
			kb, vb := t.hooks.splitRemovalBytes(n.Flags, keyBytes, valueBytes)
			cost.StorageRemovedBytes.AddSectioned(string(n.Flags), "default", kb+vb)
		} else {
			cost.StorageRemovedBytes.AddBasic(keyBytes + valueBytes)
		}
		if err := w.delete(n.Key); err != nil {
			return err
		}
	}
	return nil
}

// commitLink recursively commits link's subtree post-order: children
// first, then this node's own hash and its on-disk write. Links already in
// LinkReference state (never loaded into memory) are returned unchanged;
// every other link is rehashed and rewritten.
func commitLink(w *Walker, link *Link, hooks CommitHooks, cost *costs.OperationCost) (*Link, error) {
	if link.State == LinkReference {
		return link, nil
	}
	node := link.Node
	if node == nil {
		return nil, groveerr.New(groveerr.CorruptedCodeExecution, "merk.commitLink", "modified link missing node")
	}

	if node.Left != nil {
		newLeft, err := commitLink(w, node.Left, hooks, cost)
		if err != nil {
			return nil, err
		}
		node.Left = newLeft
	}
	if node.Right != nil {
		newRight, err := commitLink(w, node.Right, hooks, cost)
		if err != nil {
			return nil, err
		}
		node.Right = newRight
	}

	hash := node.recomputeHashes()
	cost.AddHash(1)

	raw, err := Encode(node)
	if err != nil {
		return nil, err
	}

	oldCost := uint32(len(node.origRaw))
	if !node.isNew && node.origRaw != nil && len(raw) != len(node.origRaw) {
		if !hooks.flagsUpdate(oldCost, node.oldFlags, node.Flags) {
			return nil, groveerr.New(groveerr.CorruptedCodeExecution, "merk.commitLink", "flags_update hook rejected change to key %x", node.Key)
		}
	}

	if _, err := w.put(node); err != nil {
		return nil, err
	}
	if node.isNew {
		cost.StorageAddedBytes += uint64(len(raw))
	} else {
		cost.StorageReplacedBytes += uint64(len(raw))
	}

	link.Hash = hash
	link.Key = node.Key
	link.ChildHeights = [2]uint8{node.Left.Height(), node.Right.Height()}
	if node.Feature.IsSummed() {
		sum := node.Feature.Sum
		link.Sum = &sum
	} else {
		link.Sum = nil
	}
	link.State = LinkUncommitted
	link.Node = node
	node.origRaw = raw
	node.isNew = false

	return link, nil
}
