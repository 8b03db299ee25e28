package merk

// FeatureKind discriminates the two node feature types of spec §3: plain
// nodes versus nodes participating in an ancestor SumTree's aggregate.
type FeatureKind uint8

const (
	Basic FeatureKind = iota
	Summed
)

// FeatureType is a node's feature_type field (spec §3 "Tree node",
// §6 "Encoded tree-node value"). Summed nodes carry their own contribution
// to the enclosing SumTree (a SumItem's value or a nested SumTree's sum);
// Tree.SumAggregate adds these up over every node. This mirrors the per-link cached Sum field but lives on the node itself
// so a freshly-loaded node knows its own kind before any child is touched.
type FeatureType struct {
	Kind FeatureKind
	Sum  int64 // meaningful only when Kind == Summed
}

// BasicFeature is the feature type of ordinary (non-summed) nodes.
func BasicFeature() FeatureType { return FeatureType{Kind: Basic} }

// SummedFeature builds a Summed feature type carrying the node's own
// aggregate sum.
func SummedFeature(sum int64) FeatureType { return FeatureType{Kind: Summed, Sum: sum} }

func (f FeatureType) IsSummed() bool { return f.Kind == Summed }
