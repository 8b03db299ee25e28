package storage

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	m := NewMemoryStore()
	if _, err := m.Get([]byte("nope")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	m := NewMemoryStore()
	key, val := []byte("k"), []byte("v")

	if err := m.Put(key, val); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := m.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, val) {
		t.Fatalf("got %q, want %q", got, val)
	}

	if err := m.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := m.Has(key); ok {
		t.Fatal("expected key absent after delete")
	}
}

func TestMemoryStore_BatchAtomicity(t *testing.T) {
	m := NewMemoryStore()
	b := m.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	b.Delete([]byte("c"))

	if err := b.Write(); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := b.Write(); !errors.Is(err, ErrBatchAlreadyWritten) {
		t.Fatalf("expected ErrBatchAlreadyWritten, got %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
}

func TestMemoryStore_IteratorOrderAndDirection(t *testing.T) {
	m := NewMemoryStore()
	for _, k := range []string{"k1", "k2", "k3", "k4"} {
		m.Put([]byte(k), []byte(k))
	}

	var forward []string
	it := m.NewIterator([]byte("k"), nil, false)
	for it.Next() {
		forward = append(forward, string(it.Key()))
	}
	it.Release()
	want := []string{"k1", "k2", "k3", "k4"}
	if !equalStrings(forward, want) {
		t.Fatalf("forward = %v, want %v", forward, want)
	}

	var backward []string
	rit := m.NewIterator([]byte("k"), nil, true)
	for rit.Next() {
		backward = append(backward, string(rit.Key()))
	}
	rit.Release()
	wantRev := []string{"k4", "k3", "k2", "k1"}
	if !equalStrings(backward, wantRev) {
		t.Fatalf("backward = %v, want %v", backward, wantRev)
	}
}

func TestMemoryStore_IteratorStartBound(t *testing.T) {
	m := NewMemoryStore()
	for _, k := range []string{"k1", "k2", "k3"} {
		m.Put([]byte(k), []byte(k))
	}
	it := m.NewIterator([]byte("k"), []byte("k2"), false)
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	if !equalStrings(got, []string{"k2", "k3"}) {
		t.Fatalf("got %v", got)
	}
}

func equalStrings(a, b []string) bool {
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
