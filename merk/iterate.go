package merk

import (
	"bytes"

	"github.com/groveforest/groveforest/costs"
)

// VisitFn is called once per key in traversal order; returning false stops
// the traversal early.
type VisitFn func(key, value []byte) bool

// Ascend performs a left-to-right in-order traversal of the whole tree.
func (t *Tree) Ascend(visit VisitFn) error {
	var cost costs.OperationCost
	w := NewWalker(t.store, t.cache, &cost)
	_, err := ascend(w, t.root, visit)
	return err
}

// Descend performs a right-to-left in-order traversal of the whole tree.
func (t *Tree) Descend(visit VisitFn) error {
	var cost costs.OperationCost
	w := NewWalker(t.store, t.cache, &cost)
	_, err := descend(w, t.root, visit)
	return err
}

// AscendRange visits keys in [start, end) left to right. A nil start means
// unbounded below; a nil end means unbounded above.
func (t *Tree) AscendRange(start, end []byte, visit VisitFn) error {
	var cost costs.OperationCost
	w := NewWalker(t.store, t.cache, &cost)
	_, err := ascend(w, t.root, func(key, value []byte) bool {
		if start != nil && bytes.Compare(key, start) < 0 {
			return true
		}
		if end != nil && bytes.Compare(key, end) >= 0 {
			return false
		}
		return visit(key, value)
	})
	return err
}

func ascend(w *Walker, link *Link, visit VisitFn) (bool, error) {
	if link == nil {
		return true, nil
	}
	node, err := w.loadLink(link)
	if err != nil {
		return false, err
	}
	more, err := ascend(w, node.Left, visit)
	if err != nil || !more {
		return more, err
	}
	if !visit(node.Key, node.Value) {
		return false, nil
	}
	return ascend(w, node.Right, visit)
}

func descend(w *Walker, link *Link, visit VisitFn) (bool, error) {
	if link == nil {
		return true, nil
	}
	node, err := w.loadLink(link)
	if err != nil {
		return false, err
	}
	more, err := descend(w, node.Right, visit)
	if err != nil || !more {
		return more, err
	}
	if !visit(node.Key, node.Value) {
		return false, nil
	}
	return descend(w, node.Left, visit)
}
