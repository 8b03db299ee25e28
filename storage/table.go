package storage

import "sync"

// Table wraps a KVStore, prepending a fixed prefix to every key. Each Merk
// gets its own Table keyed by its path-derived prefix (spec §6 "prefixing:
// every subtree addresses its storage with a stable per-subtree byte prefix
// derived from its path; prefixes never collide"). Keys returned by
// iterators have the table's prefix stripped so callers see the same keys
// they wrote.
type Table struct {
	db     KVStore
	prefix []byte
}

// NewTable creates a Table over db scoped to prefix.
func NewTable(db KVStore, prefix []byte) *Table {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &Table{db: db, prefix: p}
}

func (t *Table) prefixed(key []byte) []byte {
	out := make([]byte, len(t.prefix)+len(key))
	copy(out, t.prefix)
	copy(out[len(t.prefix):], key)
	return out
}

func (t *Table) Has(key []byte) (bool, error) { return t.db.Has(t.prefixed(key)) }
func (t *Table) Get(key []byte) ([]byte, error) { return t.db.Get(t.prefixed(key)) }
func (t *Table) Put(key, value []byte) error   { return t.db.Put(t.prefixed(key), value) }
func (t *Table) Delete(key []byte) error       { return t.db.Delete(t.prefixed(key)) }
func (t *Table) Close() error                  { return nil }

// Prefix returns the table's key prefix.
func (t *Table) Prefix() []byte { return t.prefix }

func (t *Table) NewBatch() Batch {
	return &tableBatch{table: t}
}

func (t *Table) NewIterator(prefix, start []byte, reverse bool) Iterator {
	fullPrefix := t.prefixed(prefix)
	var fullStart []byte
	if len(start) > 0 {
		fullStart = t.prefixed(start)
	}
	inner := t.db.NewIterator(fullPrefix, fullStart, reverse)
	return &tableIterator{inner: inner, stripLen: len(t.prefix)}
}

type tableBatchOp struct {
	key, value []byte
	delete     bool
}

type tableBatch struct {
	mu    sync.Mutex
	table *Table
	ops   []tableBatchOp
	size  int
}

func (b *tableBatch) Put(key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefixed := b.table.prefixed(key)
	b.ops = append(b.ops, tableBatchOp{key: prefixed, value: append([]byte{}, value...)})
	b.size += len(prefixed) + len(value)
	return nil
}

func (b *tableBatch) Delete(key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefixed := b.table.prefixed(key)
	b.ops = append(b.ops, tableBatchOp{key: prefixed, delete: true})
	b.size += len(prefixed)
	return nil
}

func (b *tableBatch) ValueSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Write delegates to a single underlying batch so the write stays atomic
// even though the Table sits on top of an arbitrary KVStore.
func (b *tableBatch) Write() error {
	b.mu.Lock()
	ops := b.ops
	b.mu.Unlock()

	underlying := b.table.db.NewBatch()
	for _, op := range ops {
		if op.delete {
			if err := underlying.Delete(op.key); err != nil {
				return err
			}
		} else if err := underlying.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return underlying.Write()
}

func (b *tableBatch) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = b.ops[:0]
	b.size = 0
}

type tableIterator struct {
	inner    Iterator
	stripLen int
}

func (it *tableIterator) Next() bool  { return it.inner.Next() }
func (it *tableIterator) Error() error { return it.inner.Error() }
func (it *tableIterator) Release()     { it.inner.Release() }

func (it *tableIterator) Key() []byte {
	k := it.inner.Key()
	if k == nil || len(k) < it.stripLen {
		return nil
	}
	return k[it.stripLen:]
}

func (it *tableIterator) Value() []byte { return it.inner.Value() }

var (
	_ KVStore  = (*Table)(nil)
	_ Batch    = (*tableBatch)(nil)
	_ Iterator = (*tableIterator)(nil)
)
