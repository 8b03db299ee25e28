// Package restore implements the chunked restore protocol (spec §4.6): a
// Restorer receives a trunk chunk covering the top layers of a subtree,
// then one leaf chunk per boundary the trunk left open. Each node is
// written to storage once its hash matches the hash its parent's link
// claims; the trunk's root hash is compared with the trusted root after
// its nodes are written, and no root marker is written until finalize.
// It builds directly on merk's own node codec — a chunk is just
// the literal on-disk bytes for a contiguous top slice of the tree,
// grounded the same way trie/database.go treats a "dirty" subtree as a
// batch of still-to-be-committed node blobs.
package restore

import (
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/log"
	"github.com/groveforest/groveforest/storage"
)

var logger = log.Default().Module("restore")

// State is the restore session's position in the protocol's state
// machine (spec §4.6): AwaitingTrunk -> AwaitingLeaves(n) -> Finalizing ->
// Done.
type State uint8

const (
	AwaitingTrunk State = iota
	AwaitingLeaves
	Finalizing
	Done
)

// ChunkEntry is one node's raw on-disk bytes within a chunk, in pre-order
// (a node always precedes its children in the list).
type ChunkEntry struct {
	Key []byte
	Raw []byte
}

// Restorer drives one subtree's restore session. It is not safe for
// concurrent use.
type Restorer struct {
	state State

	store storage.KVStore
	aux   storage.KVStore

	expectedRootHash grovehash.Hash
	combiningValue   []byte

	rootKey  []byte
	rootHash grovehash.Hash

	leafHashes  []grovehash.Hash
	parentKeys  [][]byte
	parentSides []bool // true = left child, false = right child
	leavesDone  []bool
	remaining   int
}

// NewRestorer begins a restore session for a subtree whose true root hash
// is expectedRootHash (optionally bound to combiningValue per spec §4.6 /
// §9's combining-value convention; pass nil when the subtree's hash
// stands alone).
func NewRestorer(store, aux storage.KVStore, expectedRootHash grovehash.Hash, combiningValue []byte) *Restorer {
	return &Restorer{
		store:            store,
		aux:              aux,
		expectedRootHash: expectedRootHash,
		combiningValue:   combiningValue,
		state:            AwaitingTrunk,
	}
}

// State reports the restore session's current state.
func (r *Restorer) State() State {
	return r.state
}

// PendingLeaves reports how many leaf chunks are still outstanding.
func (r *Restorer) PendingLeaves() int {
	return r.remaining
}

// Reset discards this session's in-memory bookkeeping and returns it to
// AwaitingTrunk, so a caller can retry from scratch after any chunk
// failed verification (spec §4.6 "discard and restart"). Nodes already
// written to store are left in place: they are stored under their node
// keys and harmless until a root marker in aux points at them, which only
// finalize does, so a retried session simply overwrites them.
func (r *Restorer) Reset() {
	r.state = AwaitingTrunk
	r.rootKey = nil
	r.rootHash = grovehash.Zero
	r.leafHashes = nil
	r.parentKeys = nil
	r.parentSides = nil
	r.leavesDone = nil
	r.remaining = 0
}

// rootCombinedHash folds combiningValue over a freshly computed subtree
// hash the same way the trusted expected_root_hash was produced, so the
// two sides of the comparison use the same convention.
func (r *Restorer) rootCombinedHash(h grovehash.Hash) grovehash.Hash {
	if r.combiningValue == nil {
		return h
	}
	return grovehash.Combine(r.combiningValue, h)
}
