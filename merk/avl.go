package merk

import "bytes"

// wrapLink lifts a freshly-touched in-memory node into a Modified link
// pointing at it.
func wrapLink(n *Node) *Link {
	if n == nil {
		return nil
	}
	return &Link{State: LinkModified, Node: n, Key: n.Key}
}

// insertKey inserts or replaces key under link, rebalancing the spine it
// touches (spec §3 invariant 1, §4.2 "Balancing").
func insertKey(w *Walker, link *Link, key, value []byte, feature FeatureType, flags []byte) (*Link, error) {
	if link == nil {
		n := NewNode(key, value, feature)
		n.Flags = flags
		return wrapLink(n), nil
	}
	node, err := w.loadLink(link)
	if err != nil {
		return nil, err
	}
	node = cloneNode(node)
	switch bytes.Compare(key, node.Key) {
	case 0:
		node.oldFlags = node.Flags
		node.SetValue(value)
		node.Feature = feature
		node.Flags = flags
		return wrapLink(node), nil
	case -1:
		newLeft, err := insertKey(w, node.Left, key, value, feature, flags)
		if err != nil {
			return nil, err
		}
		node.Left = newLeft
	default:
		newRight, err := insertKey(w, node.Right, key, value, feature, flags)
		if err != nil {
			return nil, err
		}
		node.Right = newRight
	}
	node, err = rebalance(w, node)
	if err != nil {
		return nil, err
	}
	return wrapLink(node), nil
}

// deleteKey removes key from the subtree rooted at link, returning the
// updated link and the removed node (nil if key was absent) for cost
// attribution.
func deleteKey(w *Walker, link *Link, key []byte) (*Link, *Node, error) {
	if link == nil {
		return nil, nil, nil
	}
	node, err := w.loadLink(link)
	if err != nil {
		return nil, nil, err
	}
	node = cloneNode(node)
	switch bytes.Compare(key, node.Key) {
	case 0:
		removed := &Node{Key: append([]byte{}, node.Key...), Value: node.Value, Flags: node.Flags, Feature: node.Feature}
		switch {
		case node.Left == nil:
			return node.Right, removed, nil
		case node.Right == nil:
			return node.Left, removed, nil
		default:
			newRight, succ, err := removeMin(w, node.Right)
			if err != nil {
				return nil, nil, err
			}
			merged := &Node{
				Key:       succ.Key,
				Value:     succ.Value,
				ValueHash: succ.ValueHash,
				Feature:   succ.Feature,
				Flags:     succ.Flags,
				Left:      node.Left,
				Right:     newRight,
				origRaw:   succ.origRaw,
				isNew:     succ.isNew,
			}
			merged, err = rebalance(w, merged)
			if err != nil {
				return nil, nil, err
			}
			return wrapLink(merged), removed, nil
		}
	case -1:
		newLeft, removed, err := deleteKey(w, node.Left, key)
		if err != nil {
			return nil, nil, err
		}
		if removed == nil {
			return wrapLink(node), nil, nil
		}
		node.Left = newLeft
		node, err = rebalance(w, node)
		if err != nil {
			return nil, nil, err
		}
		return wrapLink(node), removed, nil
	default:
		newRight, removed, err := deleteKey(w, node.Right, key)
		if err != nil {
			return nil, nil, err
		}
		if removed == nil {
			return wrapLink(node), nil, nil
		}
		node.Right = newRight
		node, err = rebalance(w, node)
		if err != nil {
			return nil, nil, err
		}
		return wrapLink(node), removed, nil
	}
}

// removeMin removes and returns the minimum-keyed node under link, along
// with the resulting link for the remainder of the subtree.
func removeMin(w *Walker, link *Link) (*Link, *Node, error) {
	node, err := w.loadLink(link)
	if err != nil {
		return nil, nil, err
	}
	if node.Left == nil {
		return node.Right, node, nil
	}
	node = cloneNode(node)
	newLeft, removed, err := removeMin(w, node.Left)
	if err != nil {
		return nil, nil, err
	}
	node.Left = newLeft
	node, err = rebalance(w, node)
	if err != nil {
		return nil, nil, err
	}
	return wrapLink(node), removed, nil
}

// rebalance restores the AVL property at node, performing a single or
// double rotation if its balance factor has escaped {-1, 0, 1}.
func rebalance(w *Walker, node *Node) (*Node, error) {
	switch bf := node.BalanceFactor(); {
	case bf > 1:
		leftNode, err := w.loadLink(node.Left)
		if err != nil {
			return nil, err
		}
		if leftNode.BalanceFactor() < 0 {
			newLeft, err := rotateLeft(w, leftNode)
			if err != nil {
				return nil, err
			}
			node.Left = wrapLink(newLeft)
		}
		return rotateRight(w, node)
	case bf < -1:
		rightNode, err := w.loadLink(node.Right)
		if err != nil {
			return nil, err
		}
		if rightNode.BalanceFactor() > 0 {
			newRight, err := rotateRight(w, rightNode)
			if err != nil {
				return nil, err
			}
			node.Right = wrapLink(newRight)
		}
		return rotateLeft(w, node)
	default:
		return node, nil
	}
}

// rotateLeft performs a standard AVL left rotation, preserving in-order
// key sequence (spec §4.2 "Rotations must preserve in-order key
// sequence").
func rotateLeft(w *Walker, node *Node) (*Node, error) {
	rightNode, err := w.loadLink(node.Right)
	if err != nil {
		return nil, err
	}
	// A rebalance triggered by a delete on the opposite side can rotate a
	// child that insertKey/deleteKey never visited (and so never cloned),
	// so both nodes being rewired here must be cloned before mutation
	// regardless of what the caller already did.
	node = cloneNode(node)
	rightNode = cloneNode(rightNode)
	node.Right = rightNode.Left
	rightNode.Left = wrapLink(node)
	return rightNode, nil
}

// rotateRight performs a standard AVL right rotation.
func rotateRight(w *Walker, node *Node) (*Node, error) {
	leftNode, err := w.loadLink(node.Left)
	if err != nil {
		return nil, err
	}
	node = cloneNode(node)
	leftNode = cloneNode(leftNode)
	node.Left = leftNode.Right
	leftNode.Right = wrapLink(node)
	return leftNode, nil
}
