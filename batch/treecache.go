package batch

import "github.com/groveforest/groveforest/merk"

// TreeOpener opens (or creates) the Merk addressed by path, already
// scoped to that subtree's own storage prefix and aux markers. The batch
// engine never decides how a path maps to storage; that stays the
// caller's concern (spec's explicit Non-goal: "the top-level
// path-to-Merk database").
type TreeOpener interface {
	Open(path [][]byte) (*merk.Tree, error)
}

// RunMode distinguishes how aggressively TreeCache may reuse an already
// open Tree handle across the ops that make up one Apply call.
type RunMode int

const (
	// Transactional treats the whole Apply call as one unit: once a path
	// is opened it is reused for every op that touches it, so later ops
	// in the same batch always see earlier ones' in-memory effect before
	// anything about the batch is considered durable.
	Transactional RunMode = iota
	// NonTransactional reopens a path's Tree fresh every time a new
	// level's pass reaches it, trading cache reuse for not assuming
	// nobody else wrote to that subtree meanwhile. True cross-writer
	// isolation is out of scope (spec's Non-goals exclude "transactional
	// isolation across writers"); this only controls TreeCache's own
	// reuse policy within a single Apply call.
	NonTransactional
)

// TreeCache opens each path touched by a batch at most once per Apply
// call (Transactional) or once per level pass that reaches it
// (NonTransactional), so sibling ops against the same subtree don't each
// pay Open's cost.
type TreeCache struct {
	opener TreeOpener
	mode   RunMode
	trees  map[string]*merk.Tree
}

func NewTreeCache(opener TreeOpener, mode RunMode) *TreeCache {
	return &TreeCache{opener: opener, mode: mode, trees: make(map[string]*merk.Tree)}
}

// Get returns the cached Tree for path, opening it on first use. The entry
// stays cached until Forget drops it, which only happens in
// NonTransactional mode.
func (c *TreeCache) Get(path [][]byte) (*merk.Tree, error) {
	sig := pathSignature(path)
	if t, ok := c.trees[sig]; ok {
		return t, nil
	}
	t, err := c.opener.Open(path)
	if err != nil {
		return nil, err
	}
	c.trees[sig] = t
	return t, nil
}

// Forget drops path's cached handle, used in NonTransactional mode after
// a level pass finishes with it.
func (c *TreeCache) Forget(path [][]byte) {
	if c.mode != NonTransactional {
		return
	}
	delete(c.trees, pathSignature(path))
}
