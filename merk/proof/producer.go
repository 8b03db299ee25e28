package proof

import (
	"github.com/groveforest/groveforest/costs"
	"github.com/groveforest/groveforest/merk"
)

// SubtreeOpener resolves a subquery's Path (relative to the node that
// carries a Tree/SumTree element) to the nested merk.Tree it points at.
// Package proof stays ignorant of how paths map to subtrees — that is the
// top-level path-to-Merk database's job — so a caller wires this in.
type SubtreeOpener interface {
	Open(path [][]byte) (*merk.Tree, error)
}

// ValueClassifier lets a caller teach the producer how to recognize a
// Reference element's raw value bytes and resolve them, so the producer
// can emit NodeKVRefValueHashKind instead of a plain KV node. Nil-safe: a
// producer without a classifier never emits that variant.
type ValueClassifier interface {
	ResolveReference(value []byte) (resolved []byte, isReference bool, err error)
}

// SubProof is a nested proof produced by descending into another Merk via
// a subquery, keyed by the key of the node whose subquery triggered it.
type SubProof struct {
	ParentKey []byte
	Ops       []Operator
	Result    []Node
}

// Result is everything Produce returns: the top-level operator stream,
// the matched leaf nodes in emission order, any nested subqueries'
// proofs, and whether limit exhaustion cut the traversal short.
type Result struct {
	Ops       []Operator
	ResultSet []Node
	SubProofs []SubProof
	Truncated bool
}

type producer struct {
	walker     *merk.Walker
	classifier ValueClassifier
	opener     SubtreeOpener

	limit, offset *int
	leftToRight   bool
	truncated     bool
	results       []Node
	subProofs     []SubProof
}

// Produce walks tree following query, emitting an operator stream a
// verifier can replay to recompute tree.RootHash() and recover the
// matched key/value pairs (spec §4.4).
func Produce(tree *merk.Tree, query *Query, limit, offset *int, leftToRight bool, opener SubtreeOpener, classifier ValueClassifier) (*Result, error) {
	var cost costs.OperationCost
	w := merk.NewWalker(tree.Store(), tree.Cache(), &cost)

	p := &producer{
		walker:      w,
		classifier:  classifier,
		opener:      opener,
		limit:       limit,
		offset:      offset,
		leftToRight: leftToRight,
	}

	ops, err := p.build(tree.Root(), query)
	if err != nil {
		return nil, err
	}
	return &Result{Ops: ops, ResultSet: p.results, SubProofs: p.subProofs, Truncated: p.truncated}, nil
}

// build recursively produces the operator stream for the subtree at link
// restricted to q, returning nil ops (and no error) if link is nil or q
// has nothing left to match in this subtree.
func (p *producer) build(link *merk.Link, q *Query) ([]Operator, error) {
	if link == nil || len(q.Items) == 0 {
		return nil, nil
	}
	if p.limit != nil && *p.limit == 0 {
		p.truncated = true
		return []Operator{{Kind: p.pushKind(), Node: Node{Kind: NodeHashKind, Hash: link.Hash}}}, nil
	}

	node, err := p.walker.LoadLink(link)
	if err != nil {
		return nil, err
	}

	leftQ, rightQ := q.SplitAt(node.Key)
	firstLink, firstQ := node.Left, leftQ
	secondLink, secondQ := node.Right, rightQ
	if !p.leftToRight {
		firstLink, secondLink = secondLink, firstLink
		firstQ, secondQ = secondQ, firstQ
	}

	firstOps, err := p.sideOps(firstLink, firstQ)
	if err != nil {
		return nil, err
	}

	// A node's key can fall into one of three buckets (spec §4.4 step 4
	// node-emission policy): it's a real match (revealed in full); it
	// collides with the query's range but is skipped by a positive
	// offset (revealed as key+value_hash so the verifier can confirm the
	// skip without learning the value); or it's purely structural,
	// outside the query entirely (revealed as an opaque kv_hash, no key).
	contains := q.Contains(node.Key)
	offsetExcluded := false
	if contains && p.offset != nil && *p.offset > 0 {
		*p.offset--
		offsetExcluded = true
	}
	limitExhausted := p.limit != nil && *p.limit == 0
	if limitExhausted {
		// The first side's recursion may have already consumed the last
		// remaining result (it shares p.limit with this frame): re-check
		// before treating this node as a match, same as build's own entry
		// guard does for re-entrant calls, so the producer never emits more
		// than limit results in a single proof.
		p.truncated = true
	}
	matched := contains && !offsetExcluded && !limitExhausted

	var self Operator
	switch {
	case matched:
		if p.limit != nil {
			*p.limit--
		}
		self = p.buildMatchedOp(node, q)
		p.results = append(p.results, self.Node)
		if item, ok := q.itemFor(node.Key); ok {
			if sub := q.subqueryFor(item); sub != nil && p.opener != nil {
				if err := p.runSubquery(node, sub); err != nil {
					return nil, err
				}
			}
		}
	case offsetExcluded:
		self = Operator{Kind: p.pushKind(), Node: Node{Kind: NodeKVDigestKind, Key: node.Key, ValueHash: node.ValueHash}}
	default:
		self = Operator{Kind: p.pushKind(), Node: Node{Kind: NodeKVHashKind, KVHash: merk.ComputeKVHash(node.Key, node.ValueHash)}}
	}

	secondOps, err := p.sideOps(secondLink, secondQ)
	if err != nil {
		return nil, err
	}

	// Emission order matters: the VM treats whichever operand a Parent/
	// ParentInverted op finds on top of the stack as the continuing
	// accumulator, so self must be pushed after the first side's ops
	// (making self the freshly-pushed top when the attach op runs), not
	// before (spec §4.4 step 3's in-order left/self/right walk).
	ops := append([]Operator{}, firstOps...)
	ops = append(ops, self)
	if len(firstOps) > 0 {
		ops = append(ops, attachOp(true, p.leftToRight))
	}
	ops = append(ops, secondOps...)
	if len(secondOps) > 0 {
		ops = append(ops, attachOp(false, p.leftToRight))
	}
	return ops, nil
}

// pushKind returns the Push operator variant matching the producer's
// traversal direction: OpPush enforces strictly increasing keys across
// pushes, OpPushInverted strictly decreasing (spec §4.3 key-order
// invariant).
func (p *producer) pushKind() OperatorKind {
	if p.leftToRight {
		return OpPush
	}
	return OpPushInverted
}

// sideOps produces the operator stream for one child, falling back to a
// single Hash-stub push when the query doesn't touch that side at all but
// the child link still exists (its hash is needed for the parent's own
// hash, spec §4.3 "Tree hash computation").
func (p *producer) sideOps(link *merk.Link, q *Query) ([]Operator, error) {
	if link == nil {
		return nil, nil
	}
	if len(q.Items) == 0 {
		return []Operator{{Kind: p.pushKind(), Node: Node{Kind: NodeHashKind, Hash: link.Hash}}}, nil
	}
	return p.build(link, q)
}

// attachOp picks the operator that combines a side's already-pushed
// subtree with the node below it on the stack. The first side (processed
// before self is pushed) is always combined with a Parent-family op,
// since self ends up on top of the stack right after being pushed and
// must remain the continuing accumulator (spec §4.3's VM: Parent/
// ParentInverted treat the freshly-pushed top as parent). The second side
// (processed after self) is always combined with a Child-family op,
// since the side's own ops end up on top and must attach INTO the
// accumulator sitting below. Left-to-right traversal attaches the first
// side on the left (Parent) and the second on the right (Child);
// right-to-left inverts both (ParentInverted, ChildInverted).
func attachOp(isFirstSide, leftToRight bool) Operator {
	if isFirstSide {
		if leftToRight {
			return Operator{Kind: OpParent}
		}
		return Operator{Kind: OpParentInverted}
	}
	if leftToRight {
		return Operator{Kind: OpChild}
	}
	return Operator{Kind: OpChildInverted}
}

// buildMatchedOp builds the Push operator for a node the query actually
// selected as a result: the full key/value plus an explicit value_hash, so
// a verifier recovers the result without having to hash the value itself
// (spec §4.4 step 4 "push KVValueHash(key, value, value_hash)"). A
// Reference element's value is swapped for its resolved target
// (KVRefValueHash); a summed element's feature sum rides along too
// (KVValueHashFeatureType) so SumTree aggregation can be checked.
func (p *producer) buildMatchedOp(node *merk.Node, q *Query) Operator {
	if p.classifier != nil {
		if resolved, isRef, err := p.classifier.ResolveReference(node.Value); err == nil && isRef {
			return Operator{Kind: p.pushKind(), Node: Node{
				Kind:      NodeKVRefValueHashKind,
				Key:       node.Key,
				ValueHash: node.ValueHash,
				RefValue:  resolved,
			}}
		}
	}
	if node.Feature.IsSummed() {
		return Operator{Kind: p.pushKind(), Node: Node{
			Kind:            NodeKVValueHashFeatureTypeKind,
			Key:             node.Key,
			Value:           node.Value,
			ValueHash:       node.ValueHash,
			FeatureIsSummed: true,
			FeatureSum:      node.Feature.Sum,
		}}
	}
	return Operator{Kind: p.pushKind(), Node: Node{Kind: NodeKVValueHashKind, Key: node.Key, Value: node.Value, ValueHash: node.ValueHash}}
}

// runSubquery descends into the nested Merk a matched node's Tree/SumTree
// element points to and appends its proof to p.subProofs (spec §4.4
// "Subqueries").
func (p *producer) runSubquery(node *merk.Node, sub *Subquery) error {
	nested, err := p.opener.Open(sub.Path)
	if err != nil {
		return err
	}
	res, err := Produce(nested, sub.Query, p.limit, p.offset, p.leftToRight, p.opener, p.classifier)
	if err != nil {
		return err
	}
	if res.Truncated {
		p.truncated = true
	}
	p.subProofs = append(p.subProofs, SubProof{ParentKey: node.Key, Ops: res.Ops, Result: res.ResultSet})
	p.subProofs = append(p.subProofs, res.SubProofs...)
	return nil
}
