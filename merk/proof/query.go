package proof

import (
	"bytes"
	"sort"
)

// QueryItemKind tags one of the ten range shapes a QueryItem can take
// (spec §4.4 "Query items").
type QueryItemKind uint8

const (
	ItemKey QueryItemKind = iota + 1
	ItemRange                 // [Start, End)
	ItemRangeInclusive        // [Start, End]
	ItemRangeFull             // (-inf, +inf)
	ItemRangeFrom             // [Start, +inf)
	ItemRangeTo               // (-inf, End)
	ItemRangeToInclusive      // (-inf, End]
	ItemRangeAfter            // (Start, +inf)
	ItemRangeAfterTo          // (Start, End)
	ItemRangeAfterToInclusive // (Start, End]
)

// QueryItem is one clause of a Query: a single key or a bound range over
// the subtree's key space.
type QueryItem struct {
	Kind  QueryItemKind
	Start []byte
	End   []byte
}

func Key(k []byte) QueryItem                     { return QueryItem{Kind: ItemKey, Start: k} }
func RangeItem(start, end []byte) QueryItem      { return QueryItem{Kind: ItemRange, Start: start, End: end} }
func RangeInclusive(start, end []byte) QueryItem {
	return QueryItem{Kind: ItemRangeInclusive, Start: start, End: end}
}
func RangeFull() QueryItem             { return QueryItem{Kind: ItemRangeFull} }
func RangeFrom(start []byte) QueryItem { return QueryItem{Kind: ItemRangeFrom, Start: start} }
func RangeTo(end []byte) QueryItem     { return QueryItem{Kind: ItemRangeTo, End: end} }
func RangeToInclusive(end []byte) QueryItem {
	return QueryItem{Kind: ItemRangeToInclusive, End: end}
}
func RangeAfter(start []byte) QueryItem { return QueryItem{Kind: ItemRangeAfter, Start: start} }
func RangeAfterTo(start, end []byte) QueryItem  { return QueryItem{Kind: ItemRangeAfterTo, Start: start, End: end} }
func RangeAfterToInclusive(start, end []byte) QueryItem {
	return QueryItem{Kind: ItemRangeAfterToInclusive, Start: start, End: end}
}

// lowerBound returns the item's lower key and whether it is inclusive.
// A nil bound means unbounded below.
func (q QueryItem) lowerBound() (bound []byte, inclusive bool) {
	switch q.Kind {
	case ItemKey:
		return q.Start, true
	case ItemRange, ItemRangeInclusive:
		return q.Start, true
	case ItemRangeFull, ItemRangeTo, ItemRangeToInclusive:
		return nil, true
	case ItemRangeFrom:
		return q.Start, true
	case ItemRangeAfter, ItemRangeAfterTo, ItemRangeAfterToInclusive:
		return q.Start, false
	default:
		return nil, true
	}
}

// upperBound returns the item's upper key and whether it is inclusive. A
// nil bound means unbounded above.
func (q QueryItem) upperBound() (bound []byte, inclusive bool) {
	switch q.Kind {
	case ItemKey:
		return q.Start, true
	case ItemRange:
		return q.End, false
	case ItemRangeInclusive:
		return q.End, true
	case ItemRangeFull, ItemRangeFrom, ItemRangeAfter:
		return nil, true
	case ItemRangeTo:
		return q.End, false
	case ItemRangeToInclusive:
		return q.End, true
	case ItemRangeAfterTo:
		return q.End, false
	case ItemRangeAfterToInclusive:
		return q.End, true
	default:
		return nil, true
	}
}

// Contains reports whether key falls within this item's bound.
func (q QueryItem) Contains(key []byte) bool {
	if lo, incl := q.lowerBound(); lo != nil {
		c := bytes.Compare(key, lo)
		if incl && c < 0 {
			return false
		}
		if !incl && c <= 0 {
			return false
		}
	}
	if hi, incl := q.upperBound(); hi != nil {
		c := bytes.Compare(key, hi)
		if incl && c > 0 {
			return false
		}
		if !incl && c >= 0 {
			return false
		}
	}
	return true
}

// seekKey returns the key a producer should seek to in order to find the
// first tree key this item could match, along with whether the item has a
// lower bound to seek to at all (false for items unbounded below).
func (q QueryItem) seekKey() (key []byte, hasSeek bool) {
	lo, _ := q.lowerBound()
	if lo == nil {
		return nil, false
	}
	return lo, true
}

// compareLower orders two items by their lower bound, treating "unbounded
// below" as less than any concrete bound. Ties break by inclusivity
// (inclusive sorts before exclusive at the same key, spec §4.4 "collider
// duplication" needs a stable tie-break).
func compareLower(a, b QueryItem) int {
	al, ai := a.lowerBound()
	bl, bi := b.lowerBound()
	if al == nil && bl == nil {
		return 0
	}
	if al == nil {
		return -1
	}
	if bl == nil {
		return 1
	}
	if c := bytes.Compare(al, bl); c != 0 {
		return c
	}
	if ai == bi {
		return 0
	}
	if ai {
		return -1
	}
	return 1
}

// overlaps reports whether a and b's bounds share at least one key, meaning
// they should be merged into a single item rather than kept separate.
// Adjacent items that share no key, such as [a, b) and [b, c], are not
// merged (spec
// §4.4 "Query item normalization").
func overlaps(a, b QueryItem) bool {
	aLo, aLoIncl := a.lowerBound()
	aHi, aHiIncl := a.upperBound()
	bLo, bLoIncl := b.lowerBound()
	bHi, bHiIncl := b.upperBound()

	if aHi != nil && bLo != nil {
		c := bytes.Compare(aHi, bLo)
		if c < 0 {
			return false
		}
		if c == 0 && !(aHiIncl && bLoIncl) {
			return false
		}
	}
	if bHi != nil && aLo != nil {
		c := bytes.Compare(bHi, aLo)
		if c < 0 {
			return false
		}
		if c == 0 && !(bHiIncl && aLoIncl) {
			return false
		}
	}
	return true
}

// merge combines two overlapping items into the smallest item covering
// both. Only called when overlaps(a, b) is true.
func merge(a, b QueryItem) QueryItem {
	aLo, aLoIncl := a.lowerBound()
	bLo, bLoIncl := b.lowerBound()
	aHi, aHiIncl := a.upperBound()
	bHi, bHiIncl := b.upperBound()

	var lo []byte
	loIncl := true
	unboundedLo := aLo == nil || bLo == nil
	if !unboundedLo {
		switch bytes.Compare(aLo, bLo) {
		case -1:
			lo, loIncl = aLo, aLoIncl
		case 1:
			lo, loIncl = bLo, bLoIncl
		default:
			lo, loIncl = aLo, aLoIncl || bLoIncl
		}
	}

	var hi []byte
	hiIncl := true
	unboundedHi := aHi == nil || bHi == nil
	if !unboundedHi {
		switch bytes.Compare(aHi, bHi) {
		case 1:
			hi, hiIncl = aHi, aHiIncl
		case -1:
			hi, hiIncl = bHi, bHiIncl
		default:
			hi, hiIncl = aHi, aHiIncl || bHiIncl
		}
	}

	return boundsToItem(lo, loIncl, unboundedLo, hi, hiIncl, unboundedHi)
}

func boundsToItem(lo []byte, loIncl, unboundedLo bool, hi []byte, hiIncl, unboundedHi bool) QueryItem {
	switch {
	case unboundedLo && unboundedHi:
		return RangeFull()
	case unboundedLo:
		if hiIncl {
			return RangeToInclusive(hi)
		}
		return RangeTo(hi)
	case unboundedHi:
		if loIncl {
			return RangeFrom(lo)
		}
		return RangeAfter(lo)
	default:
		if loIncl && hiIncl {
			return RangeInclusive(lo, hi)
		}
		if loIncl && !hiIncl {
			return RangeItem(lo, hi)
		}
		if !loIncl && hiIncl {
			return RangeAfterToInclusive(lo, hi)
		}
		return RangeAfterTo(lo, hi)
	}
}

// Subquery descends into a nested Merk (found via a Tree/SumTree element's
// root hash, spec §4.4 "Subqueries") at Path before evaluating Query
// against it.
type Subquery struct {
	Path  [][]byte
	Query *Query
}

// Query is an ordered, non-overlapping set of QueryItems plus optional
// subqueries (spec §4.4). ItemSubqueries keys on the encoded lower bound
// of the QueryItem it attaches to, implementing "conditional subqueries":
// a different nested query per matched item.
type Query struct {
	Items           []QueryItem
	LeftToRight     bool
	DefaultSubquery *Subquery
	ItemSubqueries  map[string]*Subquery
}

// NewQuery builds a left-to-right Query from the given items, normalizing
// overlapping/touching items into their minimal covering item and sorting
// by lower bound (spec §4.4 "Query item normalization").
func NewQuery(items ...QueryItem) *Query {
	q := &Query{LeftToRight: true}
	for _, it := range items {
		q.Insert(it)
	}
	return q
}

// Insert adds item to the query, merging it with any existing item it
// overlaps or touches.
func (q *Query) Insert(item QueryItem) {
	merged := item
	out := q.Items[:0:0]
	for _, existing := range q.Items {
		if overlaps(merged, existing) {
			merged = merge(merged, existing)
		} else {
			out = append(out, existing)
		}
	}
	out = append(out, merged)
	sort.Slice(out, func(i, j int) bool { return compareLower(out[i], out[j]) < 0 })
	q.Items = out
}

// SetSubquery installs a default subquery applied to every item that has
// no conditional subquery of its own.
func (q *Query) SetSubquery(path [][]byte, sub *Query) {
	q.DefaultSubquery = &Subquery{Path: path, Query: sub}
}

// SetConditionalSubquery installs a subquery specific to item, overriding
// the default subquery for keys matched by it.
func (q *Query) SetConditionalSubquery(item QueryItem, path [][]byte, sub *Query) {
	if q.ItemSubqueries == nil {
		q.ItemSubqueries = make(map[string]*Subquery)
	}
	q.ItemSubqueries[itemKey(item)] = &Subquery{Path: path, Query: sub}
}

// subqueryFor returns the subquery that should apply to a result matched
// by item, preferring a conditional subquery over the default.
func (q *Query) subqueryFor(item QueryItem) *Subquery {
	if q.ItemSubqueries != nil {
		if sub, ok := q.ItemSubqueries[itemKey(item)]; ok {
			return sub
		}
	}
	return q.DefaultSubquery
}

func itemKey(item QueryItem) string {
	lo, _ := item.lowerBound()
	return string(lo)
}

// Contains reports whether key is matched by any item in the query.
func (q *Query) Contains(key []byte) bool {
	_, ok := q.itemFor(key)
	return ok
}

func (q *Query) itemFor(key []byte) (QueryItem, bool) {
	for _, it := range q.Items {
		if it.Contains(key) {
			return it, true
		}
	}
	return QueryItem{}, false
}

// collide finds the item whose bound first intersects or follows key,
// using binary search over the sorted, non-overlapping item list (spec
// §4.4 step 2 "binary search for colliding QueryItem"). idx is the index
// of that item (or len(Items) if none), and collides reports whether key
// itself falls inside it.
func (q *Query) collide(key []byte) (idx int, collides bool) {
	idx = sort.Search(len(q.Items), func(i int) bool {
		hi, incl := q.Items[i].upperBound()
		if hi == nil {
			return true
		}
		c := bytes.Compare(hi, key)
		if incl {
			return c >= 0
		}
		return c > 0
	})
	if idx < len(q.Items) && q.Items[idx].Contains(key) {
		return idx, true
	}
	return idx, false
}

// SplitAt splits the query around key for recursive descent into a tree
// node's two children (spec §4.4 step 2 "left/right split with collider
// duplication"): items strictly left of the split point form left, items
// strictly right form right, and an item straddling key is duplicated
// into both halves so each side still knows the exact bound it owns.
func (q *Query) SplitAt(key []byte) (left, right *Query) {
	left = &Query{LeftToRight: q.LeftToRight, DefaultSubquery: q.DefaultSubquery, ItemSubqueries: q.ItemSubqueries}
	right = &Query{LeftToRight: q.LeftToRight, DefaultSubquery: q.DefaultSubquery, ItemSubqueries: q.ItemSubqueries}

	idx, collides := q.collide(key)
	left.Items = append(left.Items, q.Items[:idx]...)
	right.Items = append(right.Items, q.Items[idx+boolToInt(collides):]...)
	if collides {
		// key itself is consumed by the node at this split point, so it's
		// excluded from both halves regardless of the colliding item's own
		// inclusivity: only add a half when the item genuinely still has
		// room on that side (lo/hi strictly beyond key), otherwise an
		// exact-boundary item (e.g. a single Key(key) clause) would leave
		// behind a degenerate, forever-empty range that still forces a
		// needless descent.
		item := q.Items[idx]
		if lo, _ := item.lowerBound(); lo == nil || bytes.Compare(lo, key) < 0 {
			left.Items = append(left.Items, clampUpper(item, key))
		}
		if hi, _ := item.upperBound(); hi == nil || bytes.Compare(hi, key) > 0 {
			right.Items = append(right.Items, clampLower(item, key))
		}
	}
	return left, right
}

func clampUpper(item QueryItem, key []byte) QueryItem {
	lo, loIncl := item.lowerBound()
	return boundsToItem(lo, loIncl, lo == nil, key, false, false)
}

func clampLower(item QueryItem, key []byte) QueryItem {
	hi, hiIncl := item.upperBound()
	return boundsToItem(key, false, false, hi, hiIncl, hi == nil)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
