// Package proof implements the proof operator VM (spec §4.3), the proof
// producer (spec §4.4), and the proof verifier (spec §4.5) for one Merk
// subtree. The VM is a small stack machine, grounded on the teacher's
// recursive proof-collection code in trie/bintrie/proof.go, generalized
// from a fixed sibling-hash list into a replayable operator stream so a
// verifier can reconstruct an arbitrary partial tree rather than just one
// root hash.
package proof

import (
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/merk"
)

// NodeKind tags the seven Push payload variants (spec §4.3, §6 "Push
// payload is tag-dispatched over the Node variants").
type NodeKind uint8

const (
	NodeHashKind NodeKind = iota + 1
	NodeKVHashKind
	NodeKVKind
	NodeKVValueHashKind
	NodeKVDigestKind
	NodeKVRefValueHashKind
	NodeKVValueHashFeatureTypeKind
)

// Node is the payload of a Push/PushInverted operator: one of seven
// shapes trading off how much of a tree node a proof reveals.
type Node struct {
	Kind NodeKind

	// Hash: an opaque subtree summary, used for out-of-query subtrees
	// (NodeHashKind only).
	Hash grovehash.Hash

	// KVHash: the node's kv_hash only, with no key revealed — a "pure
	// routing node" (spec §4.4 step 4) (NodeKVHashKind only).
	KVHash grovehash.Hash

	// Key: present on every variant that reveals a key (every kind
	// except NodeHashKind and NodeKVHashKind).
	Key []byte

	// Value: the full value bytes (NodeKVKind, NodeKVValueHashKind,
	// NodeKVValueHashFeatureTypeKind).
	Value []byte

	// ValueHash: the node's own value_hash (KVValueHash, KVDigest,
	// KVRefValueHash, KVValueHashFeatureType).
	ValueHash grovehash.Hash

	// FeatureIsSummed/FeatureSum: present only for
	// KVValueHashFeatureTypeKind.
	FeatureIsSummed bool
	FeatureSum      int64

	// RefValue: the raw bytes of the value this node's Reference element
	// resolves to (NodeKVRefValueHashKind only). The verifier hashes
	// this locally; value_hash for this node is computed as
	// H(node_value_hash || H(referenced_value)) (spec §4.3), which lets
	// a proof bind a reference to its target without materializing the
	// target's own tree position.
	RefValue []byte
}

// hasKey reports whether this Node carries a key, which gates both the
// key-order invariant (spec §4.3) and result-set collection.
func (n Node) hasKey() bool {
	return n.Kind != NodeHashKind && n.Kind != NodeKVHashKind
}

// hasKV reports whether this Node should be collected as a matched result
// by the query result collector (spec §4.5 "collects matched KV nodes
// into result_set").
func (n Node) hasKV() bool {
	switch n.Kind {
	case NodeKVKind, NodeKVValueHashKind, NodeKVValueHashFeatureTypeKind, NodeKVRefValueHashKind:
		return true
	default:
		return false
	}
}

// valueHash returns the value_hash this Node asserts, per spec §4.3's
// description of each variant.
func (n Node) valueHash() grovehash.Hash {
	switch n.Kind {
	case NodeKVKind:
		return grovehash.Sum(n.Value)
	case NodeKVValueHashKind, NodeKVDigestKind, NodeKVValueHashFeatureTypeKind:
		return n.ValueHash
	case NodeKVRefValueHashKind:
		return grovehash.Sum(n.ValueHash[:], grovehash.Sum(n.RefValue)[:])
	default:
		return grovehash.Zero
	}
}

// ownKVHash returns the kv_hash this Node contributes to its own subtree
// hash. For NodeKVHashKind it is the carried value directly; for every
// keyed variant it is recomputed from (Key, valueHash()) so it matches
// exactly what the commit pass wrote (spec §3 invariant 4). NodeHashKind
// has no kv_hash of its own — it already stands for a whole subtree.
func (n Node) ownKVHash() grovehash.Hash {
	switch n.Kind {
	case NodeHashKind:
		return grovehash.Zero
	case NodeKVHashKind:
		return n.KVHash
	default:
		return merk.ComputeKVHash(n.Key, n.valueHash())
	}
}

// leafHash computes n's tree hash taken alone, with no children attached
// yet: NodeHashKind is already a whole-subtree summary and is returned
// as-is, every other variant folds its own kv_hash with null child
// hashes, to be replaced by real child hashes as Parent/Child operators
// attach them (spec §4.3 "Tree hash computation... exactly as in §3
// invariant 4").
func (n Node) leafHash() grovehash.Hash {
	if n.Kind == NodeHashKind {
		return n.Hash
	}
	return merk.NodeHash(n.ownKVHash(), grovehash.Zero, grovehash.Zero)
}
