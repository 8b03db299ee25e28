package storage

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryStore is an in-memory KVStore. It is safe for concurrent use and is
// the default backend for tests and for small, ephemeral forests; Pebble
// and LevelDB (pebble.go, leveldb.go) back production deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MemoryStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	return nil
}

func (m *MemoryStore) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Len returns the number of entries, mainly for tests asserting on restore
// byte-for-byte equality (spec §8 "Roundtrip of restore").
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: m}
}

func (m *MemoryStore) NewIterator(prefix, start []byte, reverse bool) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.data {
		kb := []byte(k)
		if len(prefix) > 0 && !bytes.HasPrefix(kb, prefix) {
			continue
		}
		if len(start) > 0 {
			if reverse && bytes.Compare(kb, start) > 0 {
				continue
			}
			if !reverse && bytes.Compare(kb, start) < 0 {
				continue
			}
		}
		keys = append(keys, k)
	}
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	} else {
		sort.Strings(keys)
	}

	items := make([]memKV, len(keys))
	for i, k := range keys {
		v := make([]byte, len(m.data[k]))
		copy(v, m.data[k])
		items[i] = memKV{key: []byte(k), value: v}
	}
	return &memoryIterator{items: items, pos: -1}
}

type memKV struct {
	key, value []byte
}

type memoryOp struct {
	key, value []byte
	delete     bool
}

type memoryBatch struct {
	store   *MemoryStore
	ops     []memoryOp
	size    int
	written bool
}

func (b *memoryBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memoryOp{key: append([]byte{}, key...), value: append([]byte{}, value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memoryOp{key: append([]byte{}, key...), delete: true})
	b.size += len(key)
	return nil
}

func (b *memoryBatch) ValueSize() int { return b.size }

func (b *memoryBatch) Write() error {
	if b.written {
		return ErrBatchAlreadyWritten
	}
	b.written = true

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.store.data, string(op.key))
		} else {
			b.store.data[string(op.key)] = op.value
		}
	}
	return nil
}

func (b *memoryBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
	b.written = false
}

type memoryIterator struct {
	items []memKV
	pos   int
}

func (it *memoryIterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}

func (it *memoryIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].key
}

func (it *memoryIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].value
}

func (it *memoryIterator) Error() error { return nil }
func (it *memoryIterator) Release()     {}

var (
	_ KVStore = (*MemoryStore)(nil)
	_ Batch   = (*memoryBatch)(nil)
	_ Iterator = (*memoryIterator)(nil)
)
