package element

import "github.com/cockroachdb/errors"

// RefKind identifies how a RefPath's target is computed relative to where
// the reference is stored (spec §3 "Reference variants").
type RefKind byte

const (
	// RefAbsolute names the target path and key outright.
	RefAbsolute RefKind = iota + 1
	// RefUpstreamFromRoot keeps the first KeepSegments path segments from
	// the root, then appends Append and terminates at Key.
	RefUpstreamFromRoot
	// RefUpstreamFromElementHeight pops PopSegments segments off the
	// reference's own storage path, then appends Append and Key.
	RefUpstreamFromElementHeight
	// RefSibling targets a different key under the same parent path as the
	// reference's own storage location.
	RefSibling
	// RefCousin targets a key under a sibling of the reference's parent:
	// pop one segment, swap in SwapSegment, then terminate at Key.
	RefCousin
)

// RefPath describes a reference's target, in one of several forms relative
// to where the reference itself is stored. Only RefAbsolute is meaningful
// once detached from its storage location, which is why non-absolute
// references must be rewritten to RefAbsolute at aggregation boundaries
// (spec §3 "Reference variants": "the storage path from which a reference
// was read is not recoverable later").
type RefPath struct {
	Kind RefKind

	// Used by RefAbsolute.
	AbsolutePath [][]byte
	AbsoluteKey  []byte

	// Used by RefUpstreamFromRoot.
	KeepSegments int

	// Used by RefUpstreamFromElementHeight and RefCousin.
	PopSegments int

	// Appended after the kept/popped prefix, for Upstream* kinds.
	Append [][]byte

	// Terminal key for Upstream*/Sibling/Cousin kinds.
	Key []byte

	// Used by RefCousin: the path segment substituted in place of the
	// popped one.
	SwapSegment []byte
}

// ErrReferenceLimit is returned when a reference chain exceeds the 10-hop
// cap (spec §3 invariant 7, §8 "Reference hop cap").
var ErrReferenceLimit = errors.New("element: reference chain exceeds hop limit")

// ErrCyclicReference is returned when following a reference chain revisits
// a (path, key) pair already seen in the current resolution.
var ErrCyclicReference = errors.New("element: cyclic reference")

// MaxReferenceHops is the hop cap referenced throughout spec.md §3, §4.7,
// and §8.
const MaxReferenceHops = 10

// Resolve rewrites p to an absolute (path, key) pair given the (path, key)
// at which the reference carrying p is stored. It never mutates p.
func (p RefPath) Resolve(storedPath [][]byte, storedKey []byte) (absPath [][]byte, absKey []byte, err error) {
	switch p.Kind {
	case RefAbsolute:
		return clonePath(p.AbsolutePath), append([]byte{}, p.AbsoluteKey...), nil

	case RefUpstreamFromRoot:
		if p.KeepSegments > len(storedPath) {
			return nil, nil, errors.Newf("element: upstream-from-root keeps %d segments but stored path has %d", p.KeepSegments, len(storedPath))
		}
		base := storedPath[:p.KeepSegments]
		return joinPath(base, p.Append), append([]byte{}, p.Key...), nil

	case RefUpstreamFromElementHeight:
		if p.PopSegments > len(storedPath) {
			return nil, nil, errors.Newf("element: upstream-from-element-height pops %d segments but stored path has %d", p.PopSegments, len(storedPath))
		}
		base := storedPath[:len(storedPath)-p.PopSegments]
		return joinPath(base, p.Append), append([]byte{}, p.Key...), nil

	case RefSibling:
		return clonePath(storedPath), append([]byte{}, p.Key...), nil

	case RefCousin:
		if len(storedPath) == 0 {
			return nil, nil, errors.New("element: cousin reference at root has no parent to swap")
		}
		base := clonePath(storedPath[:len(storedPath)-1])
		base = append(base, append([]byte{}, p.SwapSegment...))
		return base, append([]byte{}, p.Key...), nil

	default:
		return nil, nil, errors.Newf("element: unknown reference kind %d", p.Kind)
	}
}

// Absolute returns p unchanged; it does not rewrite p into absolute form
// (Resolve does that).
func (p RefPath) Absolute() RefPath {
	return p
}

func clonePath(path [][]byte) [][]byte {
	out := make([][]byte, len(path))
	for i, seg := range path {
		out[i] = append([]byte{}, seg...)
	}
	return out
}

func joinPath(base, append_ [][]byte) [][]byte {
	out := make([][]byte, 0, len(base)+len(append_))
	for _, seg := range base {
		out = append(out, append([]byte{}, seg...))
	}
	for _, seg := range append_ {
		out = append(out, append([]byte{}, seg...))
	}
	return out
}

// PathKey is an opaque identity for a (path, key) pair, used by hop-limit
// and cycle-detection bookkeeping while walking a reference chain.
type PathKey string

// QualifyPathKey builds the PathKey for path ∘ key, the same
// concatenation the batch engine uses for ops_by_qualified_paths (spec
// §4.7 step 2).
func QualifyPathKey(path [][]byte, key []byte) PathKey {
	var b []byte
	for _, seg := range path {
		b = append(b, byte(len(seg)))
		b = append(b, seg...)
	}
	b = append(b, 0xff)
	b = append(b, key...)
	return PathKey(b)
}

// Chain tracks the (path,key) pairs visited while dereferencing a
// reference, enforcing the hop cap and cycle detection required by spec §3
// invariant 7 and §8.
type Chain struct {
	seen map[PathKey]struct{}
	hops int
}

// NewChain creates an empty reference-resolution chain.
func NewChain() *Chain {
	return &Chain{seen: make(map[PathKey]struct{})}
}

// Visit records a hop to (path, key). It fails with ErrReferenceLimit once
// more than MaxReferenceHops hops have been taken, and with
// ErrCyclicReference if (path, key) was already visited in this chain.
func (c *Chain) Visit(path [][]byte, key []byte) error {
	c.hops++
	if c.hops > MaxReferenceHops {
		return ErrReferenceLimit
	}
	pk := QualifyPathKey(path, key)
	if _, ok := c.seen[pk]; ok {
		return ErrCyclicReference
	}
	c.seen[pk] = struct{}{}
	return nil
}
