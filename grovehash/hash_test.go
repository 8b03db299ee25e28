package grovehash

import "testing"

func TestSum_Deterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Fatal("Sum is not deterministic")
	}
}

func TestSum_DiffersOnInput(t *testing.T) {
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Fatal("different inputs hashed to the same digest")
	}
}

func TestNodeHash_ZeroForAbsentChildren(t *testing.T) {
	kv := Sum([]byte("kv"))
	leaf := NodeHash(kv, Zero, Zero)
	if leaf.IsZero() {
		t.Fatal("leaf hash should not be zero")
	}
	// Hashing with explicit zero children must match the concatenation of
	// kv||Zero||Zero used for a node with no children.
	again := Sum(kv[:], Zero[:], Zero[:])
	if leaf != again {
		t.Fatal("NodeHash does not match manual concatenation")
	}
}

func TestCombine_BindsToParent(t *testing.T) {
	root := Sum([]byte("trunk"))
	c1 := Combine([]byte("parent-a"), root)
	c2 := Combine([]byte("parent-b"), root)
	if c1 == c2 {
		t.Fatal("different combining values produced the same binding")
	}
}

func TestBytesToHash_Truncates(t *testing.T) {
	long := make([]byte, 40)
	for i := range long {
		long[i] = byte(i)
	}
	h := BytesToHash(long)
	want := long[len(long)-Size:]
	if !bytesEqual(h.Bytes(), want) {
		t.Fatalf("got %x want %x", h.Bytes(), want)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
