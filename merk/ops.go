package merk

import (
	"sort"

	"github.com/groveforest/groveforest/element"
)

// OpKind enumerates the batch-entry operations a Merk accepts (spec §4.2
// "Operations on input batch").
type OpKind uint8

const (
	OpPut OpKind = iota
	OpPutReference
	OpPutCombinedReference
	OpDelete
	OpDeleteLayered
	OpDeleteLayeredMaybeSpecialized
	OpDeleteMaybeSpecialized
)

// Op is one (key, Op) batch entry. Value holds the already-encoded
// element.Element payload for Put* kinds; Flags is carried alongside so
// the commit pass's cost hooks can inspect it without re-decoding Value.
type Op struct {
	Key     []byte
	Kind    OpKind
	Value   []byte
	Flags   element.Flags
	Feature FeatureType

	// RefPath is used by OpPutReference/OpPutCombinedReference; Value is
	// still the encoded element.Reference payload, RefPath is kept
	// alongside for callers that need it before encoding.
	RefPath element.RefPath
}

// Batch is a set of Ops to apply to one Merk, as accepted by Apply. Spec
// §4.2: "Batches are applied in ascending key order; per key the single
// final effect wins."
type Batch []Op

// IsDelete reports whether kind removes the key rather than writing it.
func (k OpKind) IsDelete() bool {
	switch k {
	case OpDelete, OpDeleteLayered, OpDeleteLayeredMaybeSpecialized, OpDeleteMaybeSpecialized:
		return true
	default:
		return false
	}
}

// IsLayered reports whether kind is one of the Layered delete variants,
// which additionally attribute the deletion's storage refund using the
// split_removal_bytes hook rather than a flat BasicStorageRemoval.
func (k OpKind) IsLayered() bool {
	return k == OpDeleteLayered || k == OpDeleteLayeredMaybeSpecialized
}

// normalize sorts a Batch into ascending key order and collapses repeated
// keys to their last effect, matching "Batches are applied in ascending
// key order; per key the single final effect wins."
func normalize(b Batch) Batch {
	last := map[string]int{}
	order := make([]string, 0, len(b))
	for i, op := range b {
		k := string(op.Key)
		if _, ok := last[k]; !ok {
			order = append(order, k)
		}
		last[k] = i
	}
	sort.Strings(order)
	out := make(Batch, 0, len(order))
	for _, k := range order {
		out = append(out, b[last[k]])
	}
	return out
}
