// Package codec implements the LEB128-style variable-length integer and
// zigzag encodings shared by the node codec (spec §4.1) and the element
// payload wire format (spec §6). encoding/binary's Uvarint/PutUvarint
// already implement the LEB128 algorithm the spec calls for byte-for-byte;
// no third-party library in the pack supplies a different varint codec, so
// this thin layer is the stdlib primitive plus the length-prefix and
// zigzag conventions the wire formats need on top of it.
package codec

import "encoding/binary"

// MaxVarintLen64 is the largest possible encoding of a uint64 varint.
const MaxVarintLen64 = binary.MaxVarintLen64

// PutUvarint appends the LEB128 encoding of v to buf.
func PutUvarint(buf []byte, v uint64) []byte {
	var tmp [MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Uvarint decodes a LEB128 varint from buf, returning the value and the
// number of bytes consumed. n is 0 on error (buffer too short) and
// negative if the value overflows 64 bits.
func Uvarint(buf []byte) (uint64, int) {
	return binary.Uvarint(buf)
}

// VarintSize returns the number of bytes PutUvarint would emit for v, used
// to compute a length-prefixed field's "required space" (spec §4.1:
// len + varint_size(len)).
func VarintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// PutBytes appends a length-prefixed byte string: varint(len(b)) || b.
func PutBytes(buf []byte, b []byte) []byte {
	buf = PutUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// GetBytes decodes a length-prefixed byte string, returning the bytes (a
// sub-slice of buf, not copied) and the number of bytes consumed.
func GetBytes(buf []byte) ([]byte, int, error) {
	n, sz := Uvarint(buf)
	if sz <= 0 {
		return nil, 0, ErrShortBuffer
	}
	total := sz + int(n)
	if total > len(buf) || int(n) < 0 {
		return nil, 0, ErrShortBuffer
	}
	return buf[sz:total], total, nil
}

// BytesRequiredSpace returns len(b) + varint_size(len(b)), the total wire
// footprint of a length-prefixed field (spec §4.1).
func BytesRequiredSpace(b []byte) int {
	return len(b) + VarintSize(uint64(len(b)))
}

// ZigZagEncode maps a signed int64 to an unsigned value so small-magnitude
// negatives stay small after varint encoding.
func ZigZagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// ZigZagDecode reverses ZigZagEncode.
func ZigZagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// PutZigzagVarint appends the zigzag-varint encoding of a signed value.
func PutZigzagVarint(buf []byte, v int64) []byte {
	return PutUvarint(buf, ZigZagEncode(v))
}

// ZigzagVarint decodes a zigzag-varint encoded signed value.
func ZigzagVarint(buf []byte) (int64, int) {
	u, n := Uvarint(buf)
	if n <= 0 {
		return 0, n
	}
	return ZigZagDecode(u), n
}
