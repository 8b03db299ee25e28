package codec

import "testing"

func TestUvarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40} {
		buf := PutUvarint(nil, v)
		if len(buf) != VarintSize(v) {
			t.Fatalf("VarintSize(%d) = %d, encoded length %d", v, VarintSize(v), len(buf))
		}
		got, n := Uvarint(buf)
		if n != len(buf) || got != v {
			t.Fatalf("roundtrip %d: got %d consumed %d", v, got, n)
		}
	}
}

func TestZigzagRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, -128, 1 << 40, -(1 << 40)} {
		buf := PutZigzagVarint(nil, v)
		got, n := ZigzagVarint(buf)
		if n != len(buf) || got != v {
			t.Fatalf("roundtrip %d: got %d consumed %d", v, got, n)
		}
	}
}

func TestPutBytesGetBytes(t *testing.T) {
	buf := PutBytes(nil, []byte("hello"))
	b, n, err := GetBytes(buf)
	if err != nil {
		t.Fatalf("GetBytes: %v", err)
	}
	if n != len(buf) || string(b) != "hello" {
		t.Fatalf("got %q consumed %d", b, n)
	}
}

func TestGetBytes_ShortBuffer(t *testing.T) {
	if _, _, err := GetBytes([]byte{5, 'a', 'b'}); err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}
