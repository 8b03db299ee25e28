package proof

import (
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/grovehash"
)

// VerifyResult is what a successful VerifyQuery run recovers: the matched
// key/value pairs plus the limit/offset left over, so a caller chaining
// paginated queries knows where the next page should start (spec §4.5).
type VerifyResult struct {
	ResultSet []Node
	Limit     *int
	Offset    *int
}

// VerifyQuery replays proofBytes against query and checks the
// reconstructed root hash against expectedRoot, optionally folded through
// combine first (spec §4.5 "verify_query(bytes, query, limit, offset,
// left_to_right, expected_root) -> {result_set, limit, offset}").combine
// may be nil when the subtree's hash is used directly as the root.
func VerifyQuery(proofBytes []byte, query *Query, limit, offset *int, leftToRight bool, expectedRoot grovehash.Hash, combine func(grovehash.Hash) grovehash.Hash) (*VerifyResult, error) {
	ops, err := Decode(proofBytes)
	if err != nil {
		return nil, err
	}

	v := &verifier{query: query, limit: limit, offset: offset, leftToRight: leftToRight}
	tree, err := Execute(ops, true, v.visit)
	if err != nil {
		return nil, err
	}

	root := tree.Hash
	if combine != nil {
		root = combine(root)
	}
	if root != expectedRoot {
		return nil, groveerr.New(groveerr.InvalidProof, "proof.VerifyQuery", "proof root hash does not match expected root")
	}

	return &VerifyResult{ResultSet: v.results, Limit: v.limit, Offset: v.offset}, nil
}

// verifier collects query-matched nodes as Execute's visit hook fires, in
// emission (in-order, or reverse if left_to_right is false) order, and
// enforces the producer's own limit/offset bookkeeping is consistent: a
// node claimed as a match must actually fall inside query, and the number
// of matches collected must not exceed limit.
type verifier struct {
	query       *Query
	limit       *int
	offset      *int
	leftToRight bool
	results     []Node
}

func (v *verifier) visit(n Node) error {
	// Nodes with no key (Hash, KVHash) are pure routing structure outside
	// the query entirely and never participate in offset/limit
	// bookkeeping. A keyed node that collides with the query but isn't a
	// full match (KVDigest) still consumes offset, matching the
	// producer's own accounting (spec §4.4 step 4 / §4.5).
	if !n.hasKey() {
		return nil
	}
	if !v.query.Contains(n.Key) {
		return groveerr.New(groveerr.InvalidProof, "proof.verifier.visit", "proof includes key %x outside the query", n.Key)
	}
	if v.offset != nil && *v.offset > 0 {
		*v.offset--
		return nil
	}
	if !n.hasKV() {
		return nil
	}
	if v.limit != nil {
		if *v.limit == 0 {
			return groveerr.New(groveerr.InvalidProof, "proof.verifier.visit", "proof includes more results than limit allows")
		}
		*v.limit--
	}
	v.results = append(v.results, n)
	return nil
}
