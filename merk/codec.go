package merk

import (
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/internal/codec"
)

const (
	featureBasic  byte = 0
	featureSummed byte = 1

	linkAbsent  byte = 0
	linkPresent byte = 1
)

// Encode serializes n's value stream per spec §6 "Encoded tree-node
// value": [feature_type:1][value_len:varint][value:..][value_hash:32]
// [left?:1][if left: link][right?:1][if right: link]. n's key is not
// included; callers store it out of band as the block-store key.
func Encode(n *Node) ([]byte, error) {
	var buf []byte
	switch n.Feature.Kind {
	case Basic:
		buf = append(buf, featureBasic)
	case Summed:
		buf = append(buf, featureSummed)
		buf = codec.PutZigzagVarint(buf, n.Feature.Sum)
	default:
		return nil, groveerr.New(groveerr.CorruptedCodeExecution, "merk.Encode", "unknown feature kind %d", n.Feature.Kind)
	}
	buf = codec.PutBytes(buf, n.Value)
	buf = append(buf, n.ValueHash[:]...)

	var err error
	if buf, err = encodeLink(buf, n.Left); err != nil {
		return nil, err
	}
	if buf, err = encodeLink(buf, n.Right); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode parses the value stream Encode produces. key is the out-of-band
// storage key for the resulting node. Decode fails with CorruptedData on
// malformed input (spec §4.1).
func Decode(key, buf []byte) (*Node, error) {
	if len(buf) < 1 {
		return nil, groveerr.New(groveerr.CorruptedData, "merk.Decode", "empty node payload")
	}
	pos := 0
	n := &Node{Key: append([]byte{}, key...)}

	switch buf[pos] {
	case featureBasic:
		pos++
		n.Feature = BasicFeature()
	case featureSummed:
		pos++
		sum, k := codec.ZigzagVarint(buf[pos:])
		if k <= 0 {
			return nil, groveerr.New(groveerr.CorruptedData, "merk.Decode", "truncated feature sum")
		}
		pos += k
		n.Feature = SummedFeature(sum)
	default:
		return nil, groveerr.New(groveerr.CorruptedData, "merk.Decode", "unknown feature tag %d", buf[pos])
	}

	value, k, err := codec.GetBytes(buf[pos:])
	if err != nil {
		return nil, groveerr.Wrap(groveerr.CorruptedData, "merk.Decode", err)
	}
	n.Value = append([]byte{}, value...)
	pos += k

	if len(buf) < pos+grovehash.Size {
		return nil, groveerr.New(groveerr.CorruptedData, "merk.Decode", "truncated value_hash")
	}
	n.ValueHash = grovehash.BytesToHash(buf[pos : pos+grovehash.Size])
	n.KVHash = computeKVHash(n.Key, n.ValueHash)
	pos += grovehash.Size

	left, k, err := decodeLink(buf[pos:])
	if err != nil {
		return nil, err
	}
	n.Left = left
	pos += k

	right, _, err := decodeLink(buf[pos:])
	if err != nil {
		return nil, err
	}
	n.Right = right

	return n, nil
}

// encodeLink appends [left?:1][if present: link] (spec §6).
func encodeLink(buf []byte, l *Link) ([]byte, error) {
	if l == nil {
		return append(buf, linkAbsent), nil
	}
	buf = append(buf, linkPresent)
	buf = append(buf, l.Hash[:]...)
	buf = append(buf, l.ChildHeights[0], l.ChildHeights[1])
	if l.Sum != nil {
		buf = append(buf, linkPresent)
		buf = codec.PutZigzagVarint(buf, *l.Sum)
	} else {
		buf = append(buf, linkAbsent)
	}
	if len(l.Key) > 255 {
		return nil, groveerr.New(groveerr.CorruptedCodeExecution, "merk.Encode", "link key length %d exceeds 255", len(l.Key))
	}
	buf = append(buf, byte(len(l.Key)))
	buf = append(buf, l.Key...)
	return buf, nil
}

func decodeLink(buf []byte) (*Link, int, error) {
	if len(buf) < 1 {
		return nil, 0, groveerr.New(groveerr.CorruptedData, "merk.Decode", "missing link presence byte")
	}
	pos := 1
	if buf[0] == linkAbsent {
		return nil, pos, nil
	}
	if buf[0] != linkPresent {
		return nil, 0, groveerr.New(groveerr.CorruptedData, "merk.Decode", "invalid link presence byte %d", buf[0])
	}
	if len(buf) < pos+grovehash.Size+2+1 {
		return nil, 0, groveerr.New(groveerr.CorruptedData, "merk.Decode", "truncated link")
	}
	l := &Link{State: LinkReference}
	l.Hash = grovehash.BytesToHash(buf[pos : pos+grovehash.Size])
	pos += grovehash.Size
	l.ChildHeights[0] = buf[pos]
	l.ChildHeights[1] = buf[pos+1]
	pos += 2

	sumPresent := buf[pos]
	pos++
	switch sumPresent {
	case linkAbsent:
	case linkPresent:
		sum, k := codec.ZigzagVarint(buf[pos:])
		if k <= 0 {
			return nil, 0, groveerr.New(groveerr.CorruptedData, "merk.Decode", "truncated link sum")
		}
		l.Sum = &sum
		pos += k
	default:
		return nil, 0, groveerr.New(groveerr.CorruptedData, "merk.Decode", "invalid link sum presence byte %d", sumPresent)
	}

	if len(buf) < pos+1 {
		return nil, 0, groveerr.New(groveerr.CorruptedData, "merk.Decode", "missing link key length")
	}
	keyLen := int(buf[pos])
	pos++
	if len(buf) < pos+keyLen {
		return nil, 0, groveerr.New(groveerr.CorruptedData, "merk.Decode", "truncated link key")
	}
	l.Key = append([]byte{}, buf[pos:pos+keyLen]...)
	pos += keyLen

	return l, pos, nil
}
