package batch

import "github.com/groveforest/groveforest/internal/codec"

// levelIndex groups ops by subtree depth (len(Path)) and, within a
// level, by which exact path they target (spec §4.7 step 2:
// "ops_by_level_paths groups the batch bottom-up by path depth so every
// level can be fully applied before its parent level runs").
type levelIndex map[int]map[string][]GroveOp

// pathSignature is a collision-free byte encoding of a path, used as the
// levelIndex's per-level map key. Length-prefixed per segment (rather
// than element.QualifyPathKey's path+key scheme) since here the key is
// never part of the signature — two different keys under the same path
// belong in the same group.
func pathSignature(path [][]byte) string {
	var buf []byte
	for _, seg := range path {
		buf = codec.PutBytes(buf, seg)
	}
	return string(buf)
}

func indexByLevel(ops []GroveOp) levelIndex {
	idx := make(levelIndex)
	for _, op := range ops {
		lvl := len(op.Path)
		group, ok := idx[lvl]
		if !ok {
			group = make(map[string][]GroveOp)
			idx[lvl] = group
		}
		sig := pathSignature(op.Path)
		group[sig] = append(group[sig], op)
	}
	return idx
}

func deepestLevel(idx levelIndex) int {
	max := -1
	for lvl := range idx {
		if lvl > max {
			max = lvl
		}
	}
	return max
}
