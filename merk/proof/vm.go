package proof

import (
	"bytes"

	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/grovehash"
)

// OperatorKind enumerates the six proof-stream operators (spec §4.3).
type OperatorKind uint8

const (
	OpPush OperatorKind = iota + 1
	OpPushInverted
	OpParent
	OpChild
	OpParentInverted
	OpChildInverted
)

// Operator is one entry in a proof operator stream. Node is only
// meaningful for OpPush/OpPushInverted.
type Operator struct {
	Kind OperatorKind
	Node Node
}

// Tree is the VM's output: one partial (possibly collapsed) subtree with
// its computed hash, as execute returns via its single surviving stack
// entry (spec §4.3 "execute(ops, collapse, visit) -> Tree").
type Tree struct {
	Hash grovehash.Hash
	// kv is this node's own kv_hash, Zero for a NodeHashKind leaf.
	kv          grovehash.Hash
	Node        *Node // the pushed Node this Tree was built from, nil once collapsed away as a child
	Left, Right *Tree
}

// VisitFn is invoked once per pushed Node, in emission order; returning an
// error aborts execution with that error (spec §4.3 "visit hook").
type VisitFn func(Node) error

// Execute runs ops against the stack machine described in spec §4.3.
// collapse=true hashes each subtree into an opaque summary as soon as it
// is attached as a child, reclaiming memory; collapse=false retains the
// full decoded subtree.
func Execute(ops []Operator, collapse bool, visit VisitFn) (*Tree, error) {
	var stack []*Tree
	var lastKey []byte
	var lastInvKey []byte
	haveLastKey, haveLastInvKey := false, false

	for _, op := range ops {
		switch op.Kind {
		case OpPush, OpPushInverted:
			n := op.Node
			if n.hasKey() {
				if op.Kind == OpPush {
					if haveLastKey && bytes.Compare(n.Key, lastKey) <= 0 {
						return nil, groveerr.New(groveerr.InvalidProof, "proof.Execute", "incorrect key ordering")
					}
					lastKey = append([]byte{}, n.Key...)
					haveLastKey = true
				} else {
					if haveLastInvKey && bytes.Compare(n.Key, lastInvKey) >= 0 {
						return nil, groveerr.New(groveerr.InvalidProof, "proof.Execute", "incorrect key ordering")
					}
					lastInvKey = append([]byte{}, n.Key...)
					haveLastInvKey = true
				}
			}
			if visit != nil {
				if err := visit(n); err != nil {
					return nil, err
				}
			}
			node := n
			stack = append(stack, &Tree{Hash: n.leafHash(), kv: n.ownKVHash(), Node: &node})

		case OpParent, OpChild, OpParentInverted, OpChildInverted:
			if len(stack) < 2 {
				return nil, groveerr.New(groveerr.InvalidProof, "proof.Execute", "stack underflow")
			}
			top := stack[len(stack)-1]
			second := stack[len(stack)-2]
			stack = stack[:len(stack)-2]

			// Parent/ParentInverted combine the node just pushed (top of
			// stack) as the continuing accumulator, attaching the
			// already-built subtree below it (second) as its child:
			// producers always push a side's recursive ops before
			// pushing the node itself, so the freshly-pushed top is the
			// one carrying the real kv to keep. Child/ChildInverted
			// invert this: the freshly-pushed top is the subtree being
			// attached into the accumulator sitting below it at second.
			var parent, child *Tree
			if isParentOp(op.Kind) {
				parent, child = top, second
			} else {
				parent, child = second, top
			}

			left := isLeftAttach(op.Kind)
			if left {
				parent.Left = child
			} else {
				parent.Right = child
			}
			lh, rh := grovehash.Zero, grovehash.Zero
			if parent.Left != nil {
				lh = parent.Left.Hash
			}
			if parent.Right != nil {
				rh = parent.Right.Hash
			}
			parent.Hash = nodeHashFrom(parent.kv, lh, rh)
			if collapse {
				if left {
					parent.Left = nil
				} else {
					parent.Right = nil
				}
			}
			stack = append(stack, parent)

		default:
			return nil, groveerr.New(groveerr.InvalidProof, "proof.Execute", "unknown operator %d", op.Kind)
		}
	}

	if len(stack) != 1 {
		return nil, groveerr.New(groveerr.InvalidProof, "proof.Execute", "expected one item")
	}
	return stack[0], nil
}

// isParentOp reports whether op's stack top is the continuing accumulator
// (Parent/ParentInverted) rather than the subtree being attached
// (Child/ChildInverted).
func isParentOp(op OperatorKind) bool {
	switch op {
	case OpParent, OpParentInverted:
		return true
	default:
		return false
	}
}

// isLeftAttach reports whether op attaches its child on the left:
// Parent/ChildInverted attach left, Child/ParentInverted attach right
// (spec §4.3 "ParentInverted/ChildInverted — same but attach on the
// opposite side").
func isLeftAttach(op OperatorKind) bool {
	switch op {
	case OpParent, OpChildInverted:
		return true
	default:
		return false
	}
}

func nodeHashFrom(kv, left, right grovehash.Hash) grovehash.Hash {
	return grovehash.NodeHash(kv, left, right)
}
