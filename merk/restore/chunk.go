package restore

import (
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/merk"
)

// ProcessTrunkChunk consumes the subtree's top layers. entries must be in
// pre-order: a node before either of its children. A child slot whose
// on-disk Link carries an empty Key (spec §3 "Link... Key may be empty in
// the narrow window restore leaves between writing a trunk chunk and its
// corresponding leaf") marks a boundary: that side's subtree is deferred
// to a later leaf chunk, identified only by the Link's Hash.
//
// On success the session moves to AwaitingLeaves (or straight to Done, if
// the whole subtree fit in the trunk chunk with no boundaries).
func (r *Restorer) ProcessTrunkChunk(entries []ChunkEntry) error {
	if r.state != AwaitingTrunk {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessTrunkChunk", "not awaiting a trunk chunk (state=%d)", r.state)
	}
	if len(entries) == 0 {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessTrunkChunk", "empty trunk chunk")
	}

	idx := 0
	hash, err := r.decodeSubtree(&idx, entries, nil)
	if err != nil {
		return err
	}
	if r.rootCombinedHash(hash) != r.expectedRootHash {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessTrunkChunk", "trunk root hash does not match the expected root")
	}
	if idx != len(entries) {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessTrunkChunk", "trunk chunk has %d unconsumed trailing entries", len(entries)-idx)
	}

	r.rootKey = entries[0].Key
	r.rootHash = hash
	r.remaining = len(r.leafHashes)
	logger.Debug("trunk chunk verified", "entries", len(entries), "pending_leaves", r.remaining)
	if r.remaining == 0 {
		r.state = Finalizing
		return r.finalize()
	}
	r.state = AwaitingLeaves
	r.leavesDone = make([]bool, r.remaining)
	return nil
}

// ProcessLeafChunk consumes the leafIndex'th deferred subtree (in the
// order ProcessTrunkChunk discovered boundaries, left to right), verifies
// it against the hash the trunk claimed for that boundary, writes it to
// storage, and rewrites the trunk-boundary node's link to point at the
// leaf's real root key.
func (r *Restorer) ProcessLeafChunk(leafIndex int, entries []ChunkEntry) error {
	if r.state != AwaitingLeaves {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessLeafChunk", "not awaiting leaf chunks (state=%d)", r.state)
	}
	if leafIndex < 0 || leafIndex >= len(r.leafHashes) {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessLeafChunk", "leaf index %d out of range", leafIndex)
	}
	if r.leavesDone[leafIndex] {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessLeafChunk", "leaf %d already restored", leafIndex)
	}
	if len(entries) == 0 {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessLeafChunk", "empty leaf chunk")
	}

	idx := 0
	target := r.leafHashes[leafIndex]
	if _, err := r.decodeSubtree(&idx, entries, &target); err != nil {
		return err
	}
	if idx != len(entries) {
		return groveerr.New(groveerr.ChunkRestoring, "restore.ProcessLeafChunk", "leaf chunk has %d unconsumed trailing entries", len(entries)-idx)
	}

	if err := r.attachLeaf(leafIndex, entries[0].Key); err != nil {
		return err
	}

	r.leavesDone[leafIndex] = true
	r.remaining--
	logger.Debug("leaf chunk verified", "leaf_index", leafIndex, "entries", len(entries), "pending_leaves", r.remaining)
	if r.remaining == 0 {
		r.state = Finalizing
		return r.finalize()
	}
	return nil
}

// decodeSubtree verifies and persists one node and, recursively, every
// descendant present in entries (stopping at boundaries), returning the
// node's computed hash. When expected is non-nil, the computed hash must
// equal it exactly; callers that still need to fold a combining value
// over the result (the overall root) pass nil and check the returned
// hash themselves.
func (r *Restorer) decodeSubtree(idx *int, entries []ChunkEntry, expected *grovehash.Hash) (grovehash.Hash, error) {
	if *idx >= len(entries) {
		return grovehash.Zero, groveerr.New(groveerr.ChunkRestoring, "restore.decodeSubtree", "chunk ended before expected node")
	}
	entry := entries[*idx]
	*idx++

	node, err := merk.Decode(entry.Key, entry.Raw)
	if err != nil {
		return grovehash.Zero, groveerr.Wrap(groveerr.ChunkRestoring, "restore.decodeSubtree", err)
	}

	leftHash, err := r.resolveChild(idx, entries, node, node.Left, true)
	if err != nil {
		return grovehash.Zero, err
	}
	rightHash, err := r.resolveChild(idx, entries, node, node.Right, false)
	if err != nil {
		return grovehash.Zero, err
	}

	kvHash := merk.ComputeKVHash(node.Key, node.ValueHash)
	nodeHash := merk.NodeHash(kvHash, leftHash, rightHash)
	if expected != nil && nodeHash != *expected {
		return grovehash.Zero, groveerr.New(groveerr.ChunkRestoring, "restore.decodeSubtree", "node %x hash mismatch", entry.Key)
	}

	if err := r.store.Put(entry.Key, entry.Raw); err != nil {
		return grovehash.Zero, groveerr.Wrap(groveerr.StorageError, "restore.decodeSubtree", err)
	}

	return nodeHash, nil
}

// resolveChild handles one child slot: recurses into it if its bytes are
// present in this chunk, records it as a pending leaf boundary if its Key
// is empty, or returns the null hash if the slot is absent. A present
// child's Link.Key must equal the key of the next entry in the chunk, and
// its claimed Link.Hash becomes the expected hash for its own subtree, so
// any tampering anywhere below this node is caught the moment its
// ancestor's hash is checked against the trusted root.
func (r *Restorer) resolveChild(idx *int, entries []ChunkEntry, parent *merk.Node, link *merk.Link, isLeft bool) (grovehash.Hash, error) {
	if link == nil {
		return grovehash.Zero, nil
	}
	if len(link.Key) == 0 {
		r.leafHashes = append(r.leafHashes, link.Hash)
		r.parentKeys = append(r.parentKeys, parent.Key)
		r.parentSides = append(r.parentSides, isLeft)
		return link.Hash, nil
	}
	if *idx < len(entries) && string(entries[*idx].Key) != string(link.Key) {
		return grovehash.Zero, groveerr.New(groveerr.ChunkRestoring, "restore.resolveChild", "node %x links to child %x but the chunk's next entry is %x", parent.Key, link.Key, entries[*idx].Key)
	}
	claimed := link.Hash
	return r.decodeSubtree(idx, entries, &claimed)
}

// attachLeaf rewrites the on-disk parent node recorded for leafIndex so
// its boundary link's Key points at rootKey, the leaf subtree's real root
// (spec §4.6 "parent-link rewriting: empty key -> known leaf root key,
// left/right by parity").
func (r *Restorer) attachLeaf(leafIndex int, rootKey []byte) error {
	parentKey := r.parentKeys[leafIndex]
	raw, err := r.store.Get(parentKey)
	if err != nil {
		return groveerr.Wrap(groveerr.StorageError, "restore.attachLeaf", err)
	}
	node, err := merk.Decode(parentKey, raw)
	if err != nil {
		return groveerr.Wrap(groveerr.ChunkRestoring, "restore.attachLeaf", err)
	}

	var link *merk.Link
	if r.parentSides[leafIndex] {
		link = node.Left
	} else {
		link = node.Right
	}
	if link == nil || len(link.Key) != 0 {
		return groveerr.New(groveerr.CorruptedCodeExecution, "restore.attachLeaf", "parent link for leaf %d is not a pending boundary", leafIndex)
	}
	link.Key = append([]byte{}, rootKey...)

	newRaw, err := merk.Encode(node)
	if err != nil {
		return err
	}
	if err := r.store.Put(parentKey, newRaw); err != nil {
		return groveerr.Wrap(groveerr.StorageError, "restore.attachLeaf", err)
	}
	return nil
}
