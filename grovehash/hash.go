// Package grovehash defines the 32-byte digest type used throughout
// groveforest (spec §3 "Hash") and the canonical hashing primitive built on
// it. Every Merk node hash, kv-hash, and combining-value binding in restore
// goes through this package so the digest algorithm has exactly one home.
package grovehash

import "golang.org/x/crypto/blake2b"

// Size is the fixed digest length in bytes.
const Size = 32

// Hash is a fixed 32-byte digest.
type Hash [Size]byte

// Zero is the null hash used for absent children (spec §3 invariant 4).
var Zero Hash

// IsZero reports whether h is the null hash.
func (h Hash) IsZero() bool { return h == Zero }

// Bytes returns h as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// BytesToHash copies b into the rightmost bytes of a Hash, zero-padding on
// the left if b is shorter and keeping only the last Size bytes if b is
// longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > Size {
		b = b[len(b)-Size:]
	}
	copy(h[Size-len(b):], b)
	return h
}

// Sum computes the canonical digest H(data) (spec §3 invariant 4). It uses
// BLAKE2b-256 rather than a hand-rolled hash: golang.org/x/crypto is a
// direct dependency across the retrieval pack and blake2b is its
// general-purpose fixed-output hash primitive, so content-addressed node
// hashing rides the same library instead of reimplementing a digest.
func Sum(data ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors for an oversized key, which we never pass.
		panic("grovehash: " + err.Error())
	}
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// NodeHash computes a tree node's hash from its kv-hash and both child
// hashes, using Zero for an absent child (spec §3 invariant 4):
//
//	node_hash = H(kv_hash || left_child_hash || right_child_hash)
func NodeHash(kvHash, left, right Hash) Hash {
	return Sum(kvHash[:], left[:], right[:])
}

// Combine binds a subtree hash to a combining value during restore (spec
// §4.6, §9 "Combining value"):
//
//	combine_hash(v, tree_hash) = H(H(v) || tree_hash)
func Combine(combiningValue []byte, treeHash Hash) Hash {
	inner := Sum(combiningValue)
	return Sum(inner[:], treeHash[:])
}
