package restore

import (
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/merk"
	"github.com/groveforest/groveforest/storage"
)

// finalize walks the now-fully-restored tree bottom-up, recomputing each
// node's child_heights from the children actually on disk and rewriting
// any node whose trunk-chunk-claimed heights don't match (spec §4.6
// "Finalizing... recompute child_heights bottom-up"). Heights play no
// part in node_hash (spec §3 invariant 4 only folds kv_hash and child
// hashes), so a corrupt or stale height would pass every hash check in
// ProcessTrunkChunk/ProcessLeafChunk silently; this pass is the only
// place that catches it.
func (r *Restorer) finalize() error {
	if r.state != Finalizing {
		return groveerr.New(groveerr.ChunkRestoring, "restore.finalize", "not in Finalizing state (state=%d)", r.state)
	}
	if r.rootKey != nil {
		if _, _, err := r.finalizeSubtree(r.rootKey); err != nil {
			return err
		}
	}
	if err := r.aux.Put([]byte(storage.RootKeyMarker), r.rootKey); err != nil {
		return groveerr.Wrap(groveerr.StorageError, "restore.finalize", err)
	}
	if err := r.aux.Put([]byte(storage.LastRootHashMarker), r.rootHash[:]); err != nil {
		return groveerr.Wrap(groveerr.StorageError, "restore.finalize", err)
	}
	r.state = Done
	logger.Info("restore finalized", "root_key", r.rootKey, "root_hash", r.rootHash)
	return nil
}

// finalizeSubtree returns the true (left_height, right_height) pair for
// the node stored at key, fixing up its on-disk encoding in place if its
// children's claimed heights were wrong.
func (r *Restorer) finalizeSubtree(key []byte) (leftHeight, rightHeight uint8, err error) {
	raw, err := r.store.Get(key)
	if err != nil {
		return 0, 0, groveerr.Wrap(groveerr.StorageError, "restore.finalizeSubtree", err)
	}
	node, err := merk.Decode(key, raw)
	if err != nil {
		return 0, 0, groveerr.Wrap(groveerr.ChunkRestoring, "restore.finalizeSubtree", err)
	}

	dirty := false
	if node.Left != nil {
		lh, rh, err := r.finalizeSubtree(node.Left.Key)
		if err != nil {
			return 0, 0, err
		}
		if node.Left.ChildHeights[0] != lh || node.Left.ChildHeights[1] != rh {
			node.Left.ChildHeights = [2]uint8{lh, rh}
			dirty = true
		}
		leftHeight = 1 + max8(lh, rh)
	}
	if node.Right != nil {
		lh, rh, err := r.finalizeSubtree(node.Right.Key)
		if err != nil {
			return 0, 0, err
		}
		if node.Right.ChildHeights[0] != lh || node.Right.ChildHeights[1] != rh {
			node.Right.ChildHeights = [2]uint8{lh, rh}
			dirty = true
		}
		rightHeight = 1 + max8(lh, rh)
	}

	if dirty {
		newRaw, err := merk.Encode(node)
		if err != nil {
			return 0, 0, err
		}
		if err := r.store.Put(key, newRaw); err != nil {
			return 0, 0, groveerr.Wrap(groveerr.StorageError, "restore.finalizeSubtree", err)
		}
	}

	return leftHeight, rightHeight, nil
}

func max8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
