package storage

import (
	"bytes"
	"testing"
)

func TestTable_PrefixIsolation(t *testing.T) {
	backing := NewMemoryStore()
	a := NewTable(backing, []byte{0x01})
	b := NewTable(backing, []byte{0x02})

	a.Put([]byte("x"), []byte("from-a"))
	b.Put([]byte("x"), []byte("from-b"))

	got, err := a.Get([]byte("x"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("from-a")) {
		t.Fatalf("got %q, want from-a", got)
	}
	got, _ = b.Get([]byte("x"))
	if !bytes.Equal(got, []byte("from-b")) {
		t.Fatalf("got %q, want from-b", got)
	}
}

func TestTable_IteratorStripsPrefix(t *testing.T) {
	backing := NewMemoryStore()
	tbl := NewTable(backing, []byte{0xAA})
	tbl.Put([]byte("k1"), []byte("v1"))
	tbl.Put([]byte("k2"), []byte("v2"))

	it := tbl.NewIterator(nil, nil, false)
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestTable_BatchIsAtomic(t *testing.T) {
	backing := NewMemoryStore()
	tbl := NewTable(backing, []byte{0x01})

	batch := tbl.NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	if err := batch.Write(); err != nil {
		t.Fatalf("write: %v", err)
	}

	if ok, _ := tbl.Has([]byte("a")); !ok {
		t.Fatal("expected a present")
	}
	if ok, _ := tbl.Has([]byte("b")); !ok {
		t.Fatal("expected b present")
	}
}
