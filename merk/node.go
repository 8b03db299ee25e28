package merk

import (
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/internal/codec"
)

// Node is one AVL tree node (spec §3 "Tree node"): key, value bytes (an
// encoded Element, see package element), derived value_hash, links to at
// most two children, and a feature type.
type Node struct {
	Key       []byte
	Value     []byte
	ValueHash grovehash.Hash
	KVHash    grovehash.Hash
	Feature   FeatureType
	Flags     []byte

	Left  *Link
	Right *Link

	// dirty marks that ValueHash needs recomputing from Value during the
	// commit pass (spec §4.2 step 1).
	dirty bool

	// origRaw is the encoded bytes this node was decoded from, used by
	// the commit pass to detect a byte-size change and invoke the cost
	// hooks (spec §4.2 step 3). Nil for a freshly-inserted node.
	origRaw []byte

	// isNew marks a node created by this apply (no prior on-disk form),
	// so the commit pass charges StorageAddedBytes instead of
	// StorageReplacedBytes.
	isNew bool

	// oldFlags snapshots Flags immediately before an update to an
	// existing node, for the flags_update cost hook.
	oldFlags []byte
}

// cloneNode returns a shallow copy of n. insertKey/deleteKey/rebalance use
// this before mutating any field reached through a Link, since a Link
// loaded during one Apply call caches its decoded Node (Walker.loadLink)
// and a failed Apply rolls back only the root Link pointer, not that
// cache — mutating a loaded Node in place would leave the pre-commit tree
// permanently corrupted even after rollback.
func cloneNode(n *Node) *Node {
	cp := *n
	return &cp
}

// NewNode creates a freshly-inserted leaf node with both hashes computed.
func NewNode(key, value []byte, feature FeatureType) *Node {
	n := &Node{Key: key, Value: value, Feature: feature, isNew: true}
	n.ValueHash = grovehash.Sum(value)
	n.KVHash = computeKVHash(key, n.ValueHash)
	return n
}

// SetValue replaces the node's value and marks it dirty so the next commit
// pass recomputes value_hash and kv_hash (spec §4.2 step 1).
func (n *Node) SetValue(value []byte) {
	n.Value = value
	n.dirty = true
}

// Height is 1 + max(child heights), 0 for a childless leaf's children.
func (n *Node) Height() uint8 {
	return 1 + max8(n.Left.Height(), n.Right.Height())
}

// BalanceFactor is height(left) - height(right); AVL requires this stay in
// {-1, 0, 1} for every node (spec §3 invariant 1).
func (n *Node) BalanceFactor() int {
	return int(n.Left.Height()) - int(n.Right.Height())
}

// kvDigest is the canonical byte serialization H is applied to in order to
// produce kv_hash (spec §3 invariant 4): a length-prefixed key followed by
// the value hash.
func kvDigest(key []byte, valueHash grovehash.Hash) []byte {
	buf := codec.PutBytes(nil, key)
	buf = append(buf, valueHash[:]...)
	return buf
}

func computeKVHash(key []byte, valueHash grovehash.Hash) grovehash.Hash {
	return grovehash.Sum(kvDigest(key, valueHash))
}

// ComputeKVHash is the exported form of computeKVHash (spec §3 invariant
// 4), used by package proof so proof replay produces byte-identical
// kv_hash values to the ones the commit pass writes.
func ComputeKVHash(key []byte, valueHash grovehash.Hash) grovehash.Hash {
	return computeKVHash(key, valueHash)
}

// NodeHash computes H(kv_hash || left_child_hash || right_child_hash),
// substituting the null hash for an absent child (spec §3 invariant 4).
func NodeHash(kvHash, left, right grovehash.Hash) grovehash.Hash {
	return grovehash.NodeHash(kvHash, left, right)
}

func linkHash(l *Link) grovehash.Hash {
	if l == nil {
		return grovehash.Zero
	}
	return l.Hash
}

// recomputeHashes recomputes value_hash (if dirty), kv_hash, and returns
// the node hash, without touching children. Callers invoke this bottom-up
// during the commit pass (spec §4.2 steps 1-2).
func (n *Node) recomputeHashes() grovehash.Hash {
	if n.dirty {
		n.ValueHash = grovehash.Sum(n.Value)
		n.dirty = false
	}
	n.KVHash = computeKVHash(n.Key, n.ValueHash)
	return NodeHash(n.KVHash, linkHash(n.Left), linkHash(n.Right))
}

// specializedCostForKeyValue returns the storage-written-bytes estimate
// for a single key/value pair at commit time (spec §4.1 "Cost
// estimation"): the encoded node overhead is key length, value length (and
// its varint length prefix), the 32-byte value hash, and — for summed
// nodes — room for the sum cached alongside it, counted at the maximum
// varint length (codec.MaxVarintLen64).
func specializedCostForKeyValue(keyLen, valueLen int, isSumNode bool) uint32 {
	cost := keyLen + codec.BytesRequiredSpace(make([]byte, valueLen)) + grovehash.Size
	if isSumNode {
		cost += codec.MaxVarintLen64
	}
	return uint32(cost)
}

// layeredCost returns the storage-written-bytes estimate for a tree-marker
// element (Tree/SumTree): the key length plus the 32-byte root hash, plus
// codec.MaxVarintLen64 bytes for a SumTree's sum field (spec §4.1 "Cost
// estimation... for tree markers").
func layeredCost(keyLen int, isSumNode bool) uint32 {
	cost := keyLen + grovehash.Size
	if isSumNode {
		cost += codec.MaxVarintLen64
	}
	return uint32(cost)
}
