package element

import (
	"bytes"
	"testing"

	"github.com/groveforest/groveforest/grovehash"
)

func TestEncodeDecode_Item(t *testing.T) {
	e := Item{Value: []byte("payload")}
	decoded, err := Decode(Encode(e))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(Item)
	if !ok || !bytes.Equal(got.Value, e.Value) {
		t.Fatalf("got %#v", decoded)
	}
}

func TestEncodeDecode_ItemWithFlags(t *testing.T) {
	e := Item{Value: []byte("v"), Flags: Flags("epoch=3")}
	decoded, err := Decode(Encode(e))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(Item)
	if !bytes.Equal(got.Flags, e.Flags) {
		t.Fatalf("flags = %q, want %q", got.Flags, e.Flags)
	}
}

func TestEncodeDecode_Tree(t *testing.T) {
	h := grovehash.Sum([]byte("root"))
	e := Tree{RootHash: h}
	decoded, err := Decode(Encode(e))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(Tree)
	if got.RootHash != h {
		t.Fatalf("root hash mismatch")
	}
}

func TestEncodeDecode_SumItem(t *testing.T) {
	for _, v := range []int64{0, 42, -42, 1 << 40, -(1 << 40)} {
		e := SumItem{Value: v}
		decoded, err := Decode(Encode(e))
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if decoded.(SumItem).Value != v {
			t.Fatalf("got %d want %d", decoded.(SumItem).Value, v)
		}
	}
}

func TestEncodeDecode_SumTree(t *testing.T) {
	h := grovehash.Sum([]byte("sumtree"))
	e := SumTree{RootHash: h, Sum: -17}
	decoded, err := Decode(Encode(e))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(SumTree)
	if got.RootHash != h || got.Sum != -17 {
		t.Fatalf("got %#v", got)
	}
}

func TestEncodeDecode_ReferenceAbsolute(t *testing.T) {
	e := Reference{Path: RefPath{
		Kind:         RefAbsolute,
		AbsolutePath: [][]byte{[]byte("a"), []byte("b")},
		AbsoluteKey:  []byte("k"),
	}}
	decoded, err := Decode(Encode(e))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(Reference)
	if got.Path.Kind != RefAbsolute || string(got.Path.AbsoluteKey) != "k" {
		t.Fatalf("got %#v", got.Path)
	}
	if len(got.Path.AbsolutePath) != 2 || string(got.Path.AbsolutePath[1]) != "b" {
		t.Fatalf("path = %v", got.Path.AbsolutePath)
	}
}

func TestDecode_CorruptedData(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := Decode([]byte{flagAbsent, byte(KindTree), 1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated tree body")
	}
}

func TestReferenceResolve_UpstreamFromRoot(t *testing.T) {
	p := RefPath{Kind: RefUpstreamFromRoot, KeepSegments: 1, Append: [][]byte{[]byte("x")}, Key: []byte("k")}
	path, key, err := p.Resolve([][]byte{[]byte("a"), []byte("b"), []byte("c")}, []byte("leaf"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(path) != 2 || string(path[0]) != "a" || string(path[1]) != "x" || string(key) != "k" {
		t.Fatalf("path=%v key=%s", path, key)
	}
}

func TestReferenceResolve_Sibling(t *testing.T) {
	p := RefPath{Kind: RefSibling, Key: []byte("other")}
	path, key, err := p.Resolve([][]byte{[]byte("a")}, []byte("me"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(path) != 1 || string(path[0]) != "a" || string(key) != "other" {
		t.Fatalf("path=%v key=%s", path, key)
	}
}

func TestChain_HopLimitAndCycles(t *testing.T) {
	c := NewChain()
	for i := 0; i < MaxReferenceHops; i++ {
		if err := c.Visit([][]byte{[]byte("p")}, []byte{byte(i)}); err != nil {
			t.Fatalf("hop %d: %v", i, err)
		}
	}
	if err := c.Visit([][]byte{[]byte("p")}, []byte{99}); err != ErrReferenceLimit {
		t.Fatalf("expected ErrReferenceLimit, got %v", err)
	}
}

func TestChain_CycleDetection(t *testing.T) {
	c := NewChain()
	if err := c.Visit([][]byte{[]byte("p")}, []byte("k")); err != nil {
		t.Fatalf("visit: %v", err)
	}
	if err := c.Visit([][]byte{[]byte("p")}, []byte("k")); err != ErrCyclicReference {
		t.Fatalf("expected ErrCyclicReference, got %v", err)
	}
}
