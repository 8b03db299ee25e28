package element

import (
	"github.com/cockroachdb/errors"
	"github.com/groveforest/groveforest/grovehash"
	"github.com/groveforest/groveforest/internal/codec"
)

// ErrCorruptedData mirrors spec §7's CorruptedData kind for malformed
// element payloads.
var ErrCorruptedData = errors.New("element: corrupted data")

const (
	flagAbsent  byte = 0
	flagPresent byte = 1
)

// Encode serializes e as an Element payload (spec §6):
//
//	[flag_option:1][if flags: flags_len:varint][flags:..][element_tag:1][element_body]
func Encode(e Element) []byte {
	var buf []byte
	if flags := e.GetFlags(); len(flags) > 0 {
		buf = append(buf, flagPresent)
		buf = codec.PutBytes(buf, flags)
	} else {
		buf = append(buf, flagAbsent)
	}
	buf = append(buf, byte(e.Kind()))
	switch v := e.(type) {
	case Item:
		buf = codec.PutBytes(buf, v.Value)
	case Reference:
		buf = append(buf, encodeRefPath(v.Path)...)
	case Tree:
		buf = append(buf, v.RootHash[:]...)
	case SumItem:
		buf = codec.PutZigzagVarint(buf, v.Value)
	case SumTree:
		buf = append(buf, v.RootHash[:]...)
		buf = codec.PutZigzagVarint(buf, v.Sum)
	}
	return buf
}

// Decode parses an Element payload produced by Encode. It fails with
// ErrCorruptedData on any malformed input (spec §4.1 "decode fails with
// CorruptedData on malformed input").
func Decode(buf []byte) (Element, error) {
	if len(buf) < 1 {
		return nil, errors.Wrap(ErrCorruptedData, "empty payload")
	}
	pos := 0
	var flags Flags
	switch buf[pos] {
	case flagAbsent:
		pos++
	case flagPresent:
		pos++
		f, n, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return nil, errors.Wrap(ErrCorruptedData, "flags")
		}
		flags = append(Flags{}, f...)
		pos += n
	default:
		return nil, errors.Wrap(ErrCorruptedData, "flag option")
	}
	if pos >= len(buf) {
		return nil, errors.Wrap(ErrCorruptedData, "missing element tag")
	}
	kind := Kind(buf[pos])
	pos++
	body := buf[pos:]

	switch kind {
	case KindItem:
		v, _, err := codec.GetBytes(body)
		if err != nil {
			return nil, errors.Wrap(ErrCorruptedData, "item body")
		}
		return Item{Value: append([]byte{}, v...), Flags: flags}, nil

	case KindReference:
		ref, _, err := decodeRefPath(body)
		if err != nil {
			return nil, errors.Wrap(err, "reference body")
		}
		return Reference{Path: ref, Flags: flags}, nil

	case KindTree:
		if len(body) < grovehash.Size {
			return nil, errors.Wrap(ErrCorruptedData, "tree body")
		}
		return Tree{RootHash: grovehash.BytesToHash(body[:grovehash.Size]), Flags: flags}, nil

	case KindSumItem:
		v, n := codec.ZigzagVarint(body)
		if n <= 0 {
			return nil, errors.Wrap(ErrCorruptedData, "sum item body")
		}
		return SumItem{Value: v, Flags: flags}, nil

	case KindSumTree:
		if len(body) < grovehash.Size {
			return nil, errors.Wrap(ErrCorruptedData, "sum tree body")
		}
		sum, n := codec.ZigzagVarint(body[grovehash.Size:])
		if n <= 0 {
			return nil, errors.Wrap(ErrCorruptedData, "sum tree sum")
		}
		return SumTree{RootHash: grovehash.BytesToHash(body[:grovehash.Size]), Sum: sum, Flags: flags}, nil

	default:
		return nil, errors.Wrapf(ErrCorruptedData, "unknown element tag %d", kind)
	}
}

// encodeRefPath serializes a RefPath: [ref_kind:1][kind-specific fields].
func encodeRefPath(p RefPath) []byte {
	var buf []byte
	buf = append(buf, byte(p.Kind))
	switch p.Kind {
	case RefAbsolute:
		buf = encodePathSegments(buf, p.AbsolutePath)
		buf = codec.PutBytes(buf, p.AbsoluteKey)
	case RefUpstreamFromRoot:
		buf = codec.PutUvarint(buf, uint64(p.KeepSegments))
		buf = encodePathSegments(buf, p.Append)
		buf = codec.PutBytes(buf, p.Key)
	case RefUpstreamFromElementHeight:
		buf = codec.PutUvarint(buf, uint64(p.PopSegments))
		buf = encodePathSegments(buf, p.Append)
		buf = codec.PutBytes(buf, p.Key)
	case RefSibling:
		buf = codec.PutBytes(buf, p.Key)
	case RefCousin:
		buf = codec.PutUvarint(buf, uint64(p.PopSegments))
		buf = codec.PutBytes(buf, p.SwapSegment)
		buf = codec.PutBytes(buf, p.Key)
	}
	return buf
}

func decodeRefPath(buf []byte) (RefPath, int, error) {
	if len(buf) < 1 {
		return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "reference kind")
	}
	kind := RefKind(buf[0])
	pos := 1
	var p RefPath
	p.Kind = kind

	switch kind {
	case RefAbsolute:
		segs, n, err := decodePathSegments(buf[pos:])
		if err != nil {
			return RefPath{}, 0, err
		}
		pos += n
		p.AbsolutePath = segs
		key, n, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "absolute key")
		}
		p.AbsoluteKey = append([]byte{}, key...)
		pos += n

	case RefUpstreamFromRoot:
		v, n := codec.Uvarint(buf[pos:])
		if n <= 0 {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "keep segments")
		}
		p.KeepSegments = int(v)
		pos += n
		segs, n, err := decodePathSegments(buf[pos:])
		if err != nil {
			return RefPath{}, 0, err
		}
		pos += n
		p.Append = segs
		key, n, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "upstream key")
		}
		p.Key = append([]byte{}, key...)
		pos += n

	case RefUpstreamFromElementHeight:
		v, n := codec.Uvarint(buf[pos:])
		if n <= 0 {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "pop segments")
		}
		p.PopSegments = int(v)
		pos += n
		segs, n, err := decodePathSegments(buf[pos:])
		if err != nil {
			return RefPath{}, 0, err
		}
		pos += n
		p.Append = segs
		key, n, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "upstream key")
		}
		p.Key = append([]byte{}, key...)
		pos += n

	case RefSibling:
		key, n, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "sibling key")
		}
		p.Key = append([]byte{}, key...)
		pos += n

	case RefCousin:
		v, n := codec.Uvarint(buf[pos:])
		if n <= 0 {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "cousin pop segments")
		}
		p.PopSegments = int(v)
		pos += n
		swap, n, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "cousin swap segment")
		}
		p.SwapSegment = append([]byte{}, swap...)
		pos += n
		key, n, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return RefPath{}, 0, errors.Wrap(ErrCorruptedData, "cousin key")
		}
		p.Key = append([]byte{}, key...)
		pos += n

	default:
		return RefPath{}, 0, errors.Wrapf(ErrCorruptedData, "unknown reference kind %d", kind)
	}
	return p, pos, nil
}

func encodePathSegments(buf []byte, segs [][]byte) []byte {
	buf = codec.PutUvarint(buf, uint64(len(segs)))
	for _, seg := range segs {
		buf = codec.PutBytes(buf, seg)
	}
	return buf
}

func decodePathSegments(buf []byte) ([][]byte, int, error) {
	count, n := codec.Uvarint(buf)
	if n <= 0 {
		return nil, 0, errors.Wrap(ErrCorruptedData, "path segment count")
	}
	pos := n
	segs := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		seg, m, err := codec.GetBytes(buf[pos:])
		if err != nil {
			return nil, 0, errors.Wrap(ErrCorruptedData, "path segment")
		}
		segs = append(segs, append([]byte{}, seg...))
		pos += m
	}
	return segs, pos, nil
}
