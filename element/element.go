// Package element implements the user-visible value kinds carried by a Merk
// node (spec §3 "Element") and their wire encoding (spec §6 "Element
// payload"). The Go idiom for the tagged-variant value spec.md describes is
// an interface implemented by a small closed set of concrete types, the
// same pattern the teacher's trie package uses for its node union
// (hashNode/valueNode/shortNode/fullNode all implementing node).
package element

import "github.com/groveforest/groveforest/grovehash"

// Kind identifies which Element variant a value holds.
type Kind byte

const (
	KindItem Kind = iota + 1
	KindReference
	KindTree
	KindSumItem
	KindSumTree
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "Item"
	case KindReference:
		return "Reference"
	case KindTree:
		return "Tree"
	case KindSumItem:
		return "SumItem"
	case KindSumTree:
		return "SumTree"
	default:
		return "Unknown"
	}
}

// Flags is opaque caller-defined metadata (spec §3 "flags"), used by the
// cost ledger's split-removal attribution. Callers should keep it under
// ~255 bytes; the codec does not enforce this but the commit pass's cost
// hooks receive it verbatim.
type Flags []byte

// Element is the value stored at a Merk key. It is a closed tagged union:
// Item, Reference, Tree, SumItem, SumTree.
type Element interface {
	Kind() Kind
	GetFlags() Flags
	// IsSumNode reports whether this element contributes to (and must be
	// counted in) an ancestor SumTree's aggregate sum.
	IsSumNode() bool
}

// Item is opaque leaf bytes.
type Item struct {
	Value []byte
	Flags Flags
}

func (Item) Kind() Kind           { return KindItem }
func (i Item) GetFlags() Flags    { return i.Flags }
func (Item) IsSumNode() bool      { return false }

// Reference is a logical pointer to another (path, key), resolved and
// dereferenced by the database layer with a hop limit of 10 and cycle
// detection (spec §3 "Reference", invariant 7). See reference.go for the
// path-resolution variants.
type Reference struct {
	Path  RefPath
	Flags Flags
}

func (Reference) Kind() Kind        { return KindReference }
func (r Reference) GetFlags() Flags { return r.Flags }
func (Reference) IsSumNode() bool   { return false }

// Tree marks that a nested subtree lives at this key; RootHash is that
// subtree's current root hash (spec §3 invariant 6).
type Tree struct {
	RootHash grovehash.Hash
	Flags    Flags
}

func (Tree) Kind() Kind        { return KindTree }
func (t Tree) GetFlags() Flags { return t.Flags }
func (Tree) IsSumNode() bool   { return false }

// SumItem is a numeric leaf aggregated by any ancestor SumTree.
type SumItem struct {
	Value int64
	Flags Flags
}

func (SumItem) Kind() Kind        { return KindSumItem }
func (s SumItem) GetFlags() Flags { return s.Flags }
func (SumItem) IsSumNode() bool   { return true }

// SumTree is a Tree whose Sum equals the algebraic sum of every SumItem and
// nested SumTree.Sum in its subtree (spec §3 invariant 5).
type SumTree struct {
	RootHash grovehash.Hash
	Sum      int64
	Flags    Flags
}

func (SumTree) Kind() Kind        { return KindSumTree }
func (s SumTree) GetFlags() Flags { return s.Flags }
func (SumTree) IsSumNode() bool   { return true }

// IsTreeMarker reports whether e is Tree or SumTree, the two variants that
// address a nested subtree.
func IsTreeMarker(e Element) bool {
	switch e.Kind() {
	case KindTree, KindSumTree:
		return true
	default:
		return false
	}
}
