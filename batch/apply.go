package batch

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/groveforest/groveforest/costs"
	"github.com/groveforest/groveforest/element"
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/log"
	"github.com/groveforest/groveforest/merk"
)

var logger = log.Default().Module("batch")

// Result is the batch engine's output (spec §4.7 step 6): nothing further
// to flush beyond what each subtree's own Apply already wrote through its
// Tree's store, plus the accumulated cost ledger across every level.
type Result struct {
	Cost costs.OperationCost
}

// Apply runs the cross-subtree batch engine end to end (spec §4.7):
// validate, resolve references, index by level, execute bottom-up
// (opening each path's Tree through the tree cache on first use) splicing
// each child's new root hash into its parent, and return the accumulated
// cost. opener resolves a path to
// its Merk; mode controls how aggressively TreeCache reuses open handles.
//
// Failure semantics: any error aborts the whole batch; no partial writes
// beyond whatever levels already committed are undone, since each level's
// own merk.Tree.Apply already rolled back the in-memory state for that
// one subtree (spec §4.7 "Failure semantics": "any error during level
// execution aborts the batch; no partial writes are flushed" refers to
// the *untouched* levels above the failure — the caller is expected to
// discard the destination storage on error, same as restore's disposable
// failure model).
func Apply(ops Batch, opener TreeOpener, mode RunMode) (Result, error) {
	if err := Validate(ops); err != nil {
		return Result{}, err
	}

	grove := make([]GroveOp, len(ops))
	copy(grove, ops)

	if err := resolveReferences(grove); err != nil {
		return Result{}, err
	}

	idx := indexByLevel(grove)
	last := deepestLevel(idx)
	if last < 0 {
		return Result{}, nil
	}

	declared := declaredMarkers(grove)
	cache := NewTreeCache(opener, mode)
	var total costs.OperationCost

	logger.Debug("applying batch", "ops", len(ops), "deepest_level", last)
	for level := last; level >= 0; level-- {
		paths, ok := idx[level]
		if !ok {
			continue
		}
		logger.Debug("applying level", "level", level, "subtrees", len(paths))
		for _, sig := range sortedSigs(paths) {
			levelOps := paths[sig]
			path := levelOps[0].Path

			tree, err := cache.Get(path)
			if err != nil {
				return Result{Cost: total}, groveerr.Wrap(groveerr.StorageError, "batch.Apply", err)
			}

			merkBatch, err := toMerkBatch(levelOps)
			if err != nil {
				return Result{Cost: total}, err
			}

			cost, err := tree.Apply(merkBatch)
			total.Add(cost)
			if err != nil {
				return Result{Cost: total}, err
			}

			if level > 0 {
				parentPath := path[:len(path)-1]
				parentKey := path[len(path)-1]
				marker, err := markerFor(declared, cache, parentPath, parentKey, &total)
				if err != nil {
					return Result{Cost: total}, err
				}
				splice, err := spliceRootHash(marker, tree)
				if err != nil {
					return Result{Cost: total}, err
				}
				idx.addOp(len(parentPath), parentPath, GroveOp{
					Path:    parentPath,
					Key:     parentKey,
					Kind:    ReplaceTreeRootKey,
					Element: splice,
				})
			}
			cache.Forget(path)
		}
	}

	logger.Info("batch applied", "ops", len(ops), "storage_added_bytes", total.StorageAddedBytes)
	return Result{Cost: total}, nil
}

// declaredMarkers indexes every Tree/SumTree declaration present in the
// original batch by the qualified (path, key) it was inserted at, so
// spliceRootHash can recover which variant (and flags) a freshly-applied
// child subtree's owning marker should keep without having to inspect
// that child's own ops, which say nothing about how its parent addresses
// it.
func declaredMarkers(ops []GroveOp) map[element.PathKey]element.Element {
	out := make(map[element.PathKey]element.Element)
	for _, op := range ops {
		if op.Element == nil || !element.IsTreeMarker(op.Element) {
			continue
		}
		out[element.QualifyPathKey(op.Path, op.Key)] = op.Element
	}
	return out
}

// markerFor resolves the Tree/SumTree marker owning the subtree at
// (parentPath, parentKey): the batch's own declaration if this subtree
// was freshly created in this batch, otherwise the marker already on
// disk (the subtree must have existed before this batch touched it, per
// spec §3 invariant 6).
func markerFor(declared map[element.PathKey]element.Element, cache *TreeCache, parentPath [][]byte, parentKey []byte, total *costs.OperationCost) (element.Element, error) {
	if e, ok := declared[element.QualifyPathKey(parentPath, parentKey)]; ok {
		return e, nil
	}
	parent, err := cache.Get(parentPath)
	if err != nil {
		return nil, groveerr.Wrap(groveerr.StorageError, "batch.markerFor", err)
	}
	raw, cost, err := parent.Get(parentKey)
	total.Add(cost)
	if err != nil {
		return nil, groveerr.Wrap(groveerr.InvalidPath, "batch.markerFor",
			errors.Newf("no existing Tree/SumTree marker at key %x to propagate root hash into", parentKey))
	}
	e, err := element.Decode(raw)
	if err != nil {
		return nil, groveerr.Wrap(groveerr.CorruptedData, "batch.markerFor", err)
	}
	if !element.IsTreeMarker(e) {
		return nil, groveerr.New(groveerr.WrongElementType, "batch.markerFor", "key %x is not a Tree/SumTree marker", parentKey)
	}
	return e, nil
}

// addOp splices op into idx at level, creating the level/path group if it
// doesn't exist yet. Used to carry a child subtree's new root hash up into
// its parent level after that parent level has already been indexed from
// the original batch (spec §4.7 step 4: "splice a ReplaceTreeRootKey op
// into the parent level").
func (idx levelIndex) addOp(level int, path [][]byte, op GroveOp) {
	group, ok := idx[level]
	if !ok {
		group = make(map[string][]GroveOp)
		idx[level] = group
	}
	sig := pathSignature(path)
	group[sig] = append(group[sig], op)
}

func sortedSigs(paths map[string][]GroveOp) []string {
	sigs := make([]string, 0, len(paths))
	for sig := range paths {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	return sigs
}

// spliceRootHash builds the Element a ReplaceTreeRootKey op carries: marker
// carries the variant (Tree vs SumTree) and flags the owning key should
// keep; only the root hash (and sum, for SumTree) advances to reflect the
// subtree's freshly committed state.
func spliceRootHash(marker element.Element, tree *merk.Tree) (element.Element, error) {
	switch e := marker.(type) {
	case element.SumTree:
		sum, _, err := tree.SumAggregate()
		if err != nil {
			return nil, groveerr.Wrap(groveerr.StorageError, "batch.spliceRootHash", err)
		}
		return element.SumTree{RootHash: tree.RootHash(), Sum: sum, Flags: e.Flags}, nil
	default:
		var flags element.Flags
		if t, ok := marker.(element.Tree); ok {
			flags = t.Flags
		}
		return element.Tree{RootHash: tree.RootHash(), Flags: flags}, nil
	}
}

// toMerkBatch lowers a level's GroveOps (including any ReplaceTreeRootKey
// ops spliced in from a child level) into the merk.Batch its Tree accepts.
func toMerkBatch(ops []GroveOp) (merk.Batch, error) {
	out := make(merk.Batch, 0, len(ops))
	for _, op := range ops {
		mop := merk.Op{
			Key:  op.Key,
			Kind: op.Kind.merkKind(),
		}
		if op.Kind.IsDelete() {
			out = append(out, mop)
			continue
		}
		if op.Element == nil {
			return nil, groveerr.New(groveerr.InvalidBatchOperation, "batch.toMerkBatch", "put op at key %x missing element", op.Key)
		}
		mop.Value = element.Encode(op.Element)
		mop.Flags = op.Element.GetFlags()
		mop.Feature = featureFor(op.Element)
		if ref, ok := op.Element.(element.Reference); ok {
			mop.RefPath = ref.Path
		}
		out = append(out, mop)
	}
	return out, nil
}

func featureFor(e element.Element) merk.FeatureType {
	switch v := e.(type) {
	case element.SumItem:
		return merk.SummedFeature(v.Value)
	case element.SumTree:
		return merk.SummedFeature(v.Sum)
	default:
		return merk.BasicFeature()
	}
}

// resolveReferences rewrites every Reference element in ops to absolute
// form (spec §4.7 step 5), preferring the batch's own qualified-path index
// over the live store since a sibling op in the same batch may have moved
// the key the reference targets. Hop-cap and cycle detection is delegated
// to element.Chain; a chain that only ever resolves one hop through the
// batch's own index still counts against the cap.
func resolveReferences(ops []GroveOp) error {
	byQualified := make(map[element.PathKey]GroveOp, len(ops))
	for _, op := range ops {
		byQualified[element.QualifyPathKey(op.Path, op.Key)] = op
	}

	for i, op := range ops {
		ref, ok := op.Element.(element.Reference)
		if !ok {
			continue
		}
		chain := element.NewChain()
		if err := chain.Visit(op.Path, op.Key); err != nil {
			return groveerr.Wrap(groveerr.ReferenceLimit, "batch.resolveReferences", err)
		}
		absPath, absKey, err := ref.Path.Resolve(op.Path, op.Key)
		if err != nil {
			return groveerr.Wrap(groveerr.InvalidBatchOperation, "batch.resolveReferences", err)
		}
		if err := chain.Visit(absPath, absKey); err != nil {
			if err == element.ErrCyclicReference {
				return groveerr.Wrap(groveerr.CyclicReference, "batch.resolveReferences", err)
			}
			return groveerr.Wrap(groveerr.ReferenceLimit, "batch.resolveReferences", err)
		}
		// Follow further hops while the target is itself an
		// unresolved reference present in this same batch.
		for {
			target, ok := byQualified[element.QualifyPathKey(absPath, absKey)]
			if !ok {
				break
			}
			nextRef, ok := target.Element.(element.Reference)
			if !ok {
				break
			}
			nextPath, nextKey, err := nextRef.Path.Resolve(absPath, absKey)
			if err != nil {
				return groveerr.Wrap(groveerr.InvalidBatchOperation, "batch.resolveReferences", err)
			}
			if err := chain.Visit(nextPath, nextKey); err != nil {
				if err == element.ErrCyclicReference {
					return groveerr.Wrap(groveerr.CyclicReference, "batch.resolveReferences", err)
				}
				return groveerr.Wrap(groveerr.ReferenceLimit, "batch.resolveReferences", err)
			}
			absPath, absKey = nextPath, nextKey
		}
		ops[i].Element = element.Reference{
			Path: element.RefPath{
				Kind:         element.RefAbsolute,
				AbsolutePath: absPath,
				AbsoluteKey:  absKey,
			},
			Flags: ref.Flags,
		}
	}
	return nil
}
