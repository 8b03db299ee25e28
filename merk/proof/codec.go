package proof

import (
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/internal/codec"
)

const (
	opPushTag           byte = 0x01
	opPushInvertedTag   byte = 0x02
	opParentTag         byte = 0x10
	opChildTag          byte = 0x11
	opParentInvertedTag byte = 0x12
	opChildInvertedTag  byte = 0x13
)

var opTagByKind = map[OperatorKind]byte{
	OpPush:           opPushTag,
	OpPushInverted:   opPushInvertedTag,
	OpParent:         opParentTag,
	OpChild:          opChildTag,
	OpParentInverted: opParentInvertedTag,
	OpChildInverted:  opChildInvertedTag,
}

var opKindByTag = map[byte]OperatorKind{
	opPushTag:           OpPush,
	opPushInvertedTag:   OpPushInverted,
	opParentTag:         OpParent,
	opChildTag:          OpChild,
	opParentInvertedTag: OpParentInverted,
	opChildInvertedTag:  OpChildInverted,
}

// Encode serializes an operator stream for transmission (spec §4.3 "Proof
// bytes"): each operator is a 1-byte tag, Push/PushInverted followed by
// the Node payload.
func Encode(ops []Operator) ([]byte, error) {
	var buf []byte
	for _, op := range ops {
		tag, ok := opTagByKind[op.Kind]
		if !ok {
			return nil, groveerr.New(groveerr.InvalidProof, "proof.Encode", "unknown operator kind %d", op.Kind)
		}
		buf = append(buf, tag)
		if op.Kind == OpPush || op.Kind == OpPushInverted {
			var err error
			buf, err = encodeNode(buf, op.Node)
			if err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

// Decode parses an operator stream produced by Encode.
func Decode(buf []byte) ([]Operator, error) {
	var ops []Operator
	pos := 0
	for pos < len(buf) {
		kind, ok := opKindByTag[buf[pos]]
		if !ok {
			return nil, groveerr.New(groveerr.InvalidProof, "proof.Decode", "unknown operator tag %#x", buf[pos])
		}
		pos++
		op := Operator{Kind: kind}
		if kind == OpPush || kind == OpPushInverted {
			n, k, err := decodeNode(buf[pos:])
			if err != nil {
				return nil, err
			}
			op.Node = n
			pos += k
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func encodeNode(buf []byte, n Node) ([]byte, error) {
	buf = append(buf, byte(n.Kind))
	switch n.Kind {
	case NodeHashKind:
		buf = append(buf, n.Hash[:]...)
	case NodeKVHashKind:
		buf = append(buf, n.KVHash[:]...)
	case NodeKVKind:
		buf = codec.PutBytes(buf, n.Key)
		buf = codec.PutBytes(buf, n.Value)
	case NodeKVValueHashKind:
		buf = codec.PutBytes(buf, n.Key)
		buf = codec.PutBytes(buf, n.Value)
		buf = append(buf, n.ValueHash[:]...)
	case NodeKVDigestKind:
		buf = codec.PutBytes(buf, n.Key)
		buf = append(buf, n.ValueHash[:]...)
	case NodeKVRefValueHashKind:
		buf = codec.PutBytes(buf, n.Key)
		buf = append(buf, n.ValueHash[:]...)
		buf = codec.PutBytes(buf, n.RefValue)
	case NodeKVValueHashFeatureTypeKind:
		buf = codec.PutBytes(buf, n.Key)
		buf = codec.PutBytes(buf, n.Value)
		buf = append(buf, n.ValueHash[:]...)
		if n.FeatureIsSummed {
			buf = append(buf, 1)
			buf = codec.PutZigzagVarint(buf, n.FeatureSum)
		} else {
			buf = append(buf, 0)
		}
	default:
		return nil, groveerr.New(groveerr.InvalidProof, "proof.encodeNode", "unknown node kind %d", n.Kind)
	}
	return buf, nil
}

func decodeNode(buf []byte) (Node, int, error) {
	if len(buf) < 1 {
		return Node{}, 0, groveerr.New(groveerr.InvalidProof, "proof.decodeNode", "truncated node")
	}
	kind := NodeKind(buf[0])
	pos := 1
	n := Node{Kind: kind}

	readHash := func() (grovehash.Hash, error) {
		if len(buf) < pos+grovehash.Size {
			return grovehash.Zero, groveerr.New(groveerr.InvalidProof, "proof.decodeNode", "truncated hash")
		}
		h := grovehash.BytesToHash(buf[pos : pos+grovehash.Size])
		pos += grovehash.Size
		return h, nil
	}
	readBytes := func() ([]byte, error) {
		b, k, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return nil, groveerr.Wrap(groveerr.InvalidProof, "proof.decodeNode", err)
		}
		pos += k
		return append([]byte{}, b...), nil
	}

	switch kind {
	case NodeHashKind:
		h, err := readHash()
		if err != nil {
			return Node{}, 0, err
		}
		n.Hash = h
	case NodeKVHashKind:
		h, err := readHash()
		if err != nil {
			return Node{}, 0, err
		}
		n.KVHash = h
	case NodeKVKind:
		key, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		val, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		n.Key, n.Value = key, val
	case NodeKVValueHashKind:
		key, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		val, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		h, err := readHash()
		if err != nil {
			return Node{}, 0, err
		}
		n.Key, n.Value, n.ValueHash = key, val, h
	case NodeKVDigestKind:
		key, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		h, err := readHash()
		if err != nil {
			return Node{}, 0, err
		}
		n.Key, n.ValueHash = key, h
	case NodeKVRefValueHashKind:
		key, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		h, err := readHash()
		if err != nil {
			return Node{}, 0, err
		}
		ref, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		n.Key, n.ValueHash, n.RefValue = key, h, ref
	case NodeKVValueHashFeatureTypeKind:
		key, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		val, err := readBytes()
		if err != nil {
			return Node{}, 0, err
		}
		h, err := readHash()
		if err != nil {
			return Node{}, 0, err
		}
		n.Key, n.Value, n.ValueHash = key, val, h
		if len(buf) < pos+1 {
			return Node{}, 0, groveerr.New(groveerr.InvalidProof, "proof.decodeNode", "truncated feature tag")
		}
		summed := buf[pos]
		pos++
		if summed == 1 {
			sum, k := codec.ZigzagVarint(buf[pos:])
			if k <= 0 {
				return Node{}, 0, groveerr.New(groveerr.InvalidProof, "proof.decodeNode", "truncated feature sum")
			}
			n.FeatureIsSummed = true
			n.FeatureSum = sum
			pos += k
		}
	default:
		return Node{}, 0, groveerr.New(groveerr.InvalidProof, "proof.decodeNode", "unknown node kind %d", kind)
	}
	return n, pos, nil
}
