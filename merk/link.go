package merk

import "github.com/groveforest/groveforest/grovehash"

// LinkState is a child link's position in the lifecycle spec §3 describes:
// Reference -> Loaded -> Modified -> Uncommitted -> Reference.
type LinkState uint8

const (
	// LinkReference is an on-disk child known only by hash; Key may be
	// empty in the narrow window restore leaves between writing a trunk
	// chunk and its corresponding leaf (spec §4.6).
	LinkReference LinkState = iota
	// LinkLoaded is a child decoded into memory, not yet touched.
	LinkLoaded
	// LinkModified is a child whose subtree changed; its hash is stale
	// and must be recomputed by the commit pass.
	LinkModified
	// LinkUncommitted has a freshly recomputed hash, not yet flushed to
	// the block store.
	LinkUncommitted
)

// Link is the compact reference a parent node keeps to one child (spec §3
// "Link", §6 "a link is [hash:32][child_heights:2][sum?:1+zigzag_varint]
// [key_len:1][key:..]"). ChildHeights caches the child's own
// (left_height, right_height) pair so the parent can derive the child's
// height without loading it.
type Link struct {
	State        LinkState
	Hash         grovehash.Hash
	Key          []byte
	ChildHeights [2]uint8
	Sum          *int64 // non-nil only for links to Summed children
	Node         *Node  // populated once State >= LinkLoaded
}

// Height returns the cached height of the node this link points to,
// without requiring the child to be loaded.
func (l *Link) Height() uint8 {
	if l == nil {
		return 0
	}
	if l.Node != nil {
		return l.Node.Height()
	}
	return 1 + max8(l.ChildHeights[0], l.ChildHeights[1])
}

func max8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

// IsLoaded reports whether the link's node is currently resident in
// memory (Loaded, Modified, or Uncommitted).
func (l *Link) IsLoaded() bool {
	return l != nil && l.Node != nil
}
