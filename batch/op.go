// Package batch implements the cross-subtree batch engine (spec §4.7): a
// flat list of operations addressed by (path, key) across many Merks is
// split per subtree, applied bottom-up, and every changed subtree's new
// root hash is spliced into its parent's Tree/SumTree marker before the
// parent level runs. Grounded the same way trie/trie_committer.go commits
// a trie bottom-up, one level of recursion at a time, except here each
// "level" is a full Merk rather than a single node.
package batch

import (
	"github.com/groveforest/groveforest/element"
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/merk"
)

// OpKind enumerates the operations a GroveOp batch accepts. The first
// seven mirror merk.OpKind one for one; ReplaceTreeRootKey and
// InsertTreeWithRootHash are issued only by the engine itself while
// splicing a child subtree's new root hash into its parent, and are
// rejected by Validate if found in a caller-submitted batch (spec §4.7
// step 1: "ReplaceTreeRootKey/InsertTreeWithRootHash are internal-only;
// a user batch carrying one fails with InvalidBatchOperation").
type OpKind uint8

const (
	Put OpKind = iota
	PutReference
	PutCombinedReference
	Delete
	DeleteLayered
	DeleteLayeredMaybeSpecialized
	DeleteMaybeSpecialized

	ReplaceTreeRootKey
	InsertTreeWithRootHash
)

// IsDelete reports whether kind removes the key rather than writing it.
func (k OpKind) IsDelete() bool {
	switch k {
	case Delete, DeleteLayered, DeleteLayeredMaybeSpecialized, DeleteMaybeSpecialized:
		return true
	default:
		return false
	}
}

func (k OpKind) internalOnly() bool {
	return k == ReplaceTreeRootKey || k == InsertTreeWithRootHash
}

// merkKind maps a GroveOp's kind onto the merk.OpKind its target subtree
// applies. ReplaceTreeRootKey and InsertTreeWithRootHash both become a
// plain put: the only thing special about them is who was allowed to
// construct them.
func (k OpKind) merkKind() merk.OpKind {
	switch k {
	case Put, ReplaceTreeRootKey, InsertTreeWithRootHash:
		return merk.OpPut
	case PutReference:
		return merk.OpPutReference
	case PutCombinedReference:
		return merk.OpPutCombinedReference
	case Delete:
		return merk.OpDelete
	case DeleteLayered:
		return merk.OpDeleteLayered
	case DeleteLayeredMaybeSpecialized:
		return merk.OpDeleteLayeredMaybeSpecialized
	case DeleteMaybeSpecialized:
		return merk.OpDeleteMaybeSpecialized
	default:
		return merk.OpPut
	}
}

// GroveOp is one (path, key) batch entry addressed against the forest
// rather than a single subtree (spec §4.7 "Operations are addressed by
// (path, key) across many Merks"). Element carries the value for every
// kind but the Delete variants, which ignore it.
type GroveOp struct {
	Path    [][]byte
	Key     []byte
	Kind    OpKind
	Element element.Element
	Flags   element.Flags
}

// Batch is the caller-facing input to Apply.
type Batch []GroveOp

// Validate checks a caller-submitted batch against the rules Apply
// depends on: no internal-only op kinds, every put carries an Element,
// and a Tree/SumTree element may only be used to declare a fresh empty
// subtree — a user can never claim an arbitrary root hash for a subtree
// they did not actually build, since only the engine (after it has run
// that subtree's own ops) is allowed to write a non-zero one in.
func Validate(ops Batch) error {
	for _, op := range ops {
		if op.Kind.internalOnly() {
			return groveerr.New(groveerr.InvalidBatchOperation, "batch.Validate",
				"op kind %d is internal-only and cannot appear in a user-submitted batch", op.Kind)
		}
		if op.Kind.IsDelete() {
			continue
		}
		if op.Element == nil {
			return groveerr.New(groveerr.InvalidBatchOperation, "batch.Validate",
				"put op at key %x is missing its element", op.Key)
		}
		if !element.IsTreeMarker(op.Element) {
			continue
		}
		switch e := op.Element.(type) {
		case element.Tree:
			if e.RootHash != grovehash.Zero {
				return groveerr.New(groveerr.InvalidBatchOperation, "batch.Validate",
					"tree element at key %x must start empty (zero root hash); only the engine advances a tree's root hash", op.Key)
			}
		case element.SumTree:
			if e.RootHash != grovehash.Zero || e.Sum != 0 {
				return groveerr.New(groveerr.InvalidBatchOperation, "batch.Validate",
					"sum tree element at key %x must start empty (zero root hash, zero sum)", op.Key)
			}
		}
	}
	return nil
}
