package storage

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/groveforest/groveforest/log"
)

// PebbleStore backs a KVStore with a cockroachdb/pebble instance: a real
// embedded LSM-tree engine offering atomic batches and range iteration
// natively, so groveforest's prefix/column-family contract maps directly
// onto pebble's own primitives instead of being emulated in memory.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (creating if absent) a Pebble database at dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "storage: open pebble at %q", dir)
	}
	log.Default().Module("storage").Info("opened pebble store", "dir", dir)
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Has(key []byte) (bool, error) {
	v, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	_ = v
	return true, nil
}

func (p *PebbleStore) Get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (p *PebbleStore) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleStore) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func (p *PebbleStore) NewBatch() Batch {
	return &pebbleBatch{db: p.db, batch: p.db.NewBatch()}
}

// NewIterator returns a pebble iterator bounded to [prefix, prefixEnd),
// positioned at start. Pebble iterates forward or backward over the same
// bounded range natively (Prev), so the proof producer's bidirectional
// traversal (spec §4.4) is a thin wrapper rather than a full scan+reverse.
func (p *PebbleStore) NewIterator(prefix, start []byte, reverse bool) Iterator {
	upper := prefixUpperBound(prefix)
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return &errIterator{err: err}
	}
	pi := &pebbleIterator{it: it, started: false, reverse: reverse}
	if reverse {
		if len(start) > 0 {
			pi.started = it.SeekLT(append(append([]byte{}, start...), 0xff))
			// SeekLT with the bump gives us the last key <= start.
			if pi.started && bytes.Compare(it.Key(), start) > 0 {
				pi.started = it.Prev()
			}
		} else {
			pi.started = it.Last()
		}
	} else {
		if len(start) > 0 {
			pi.started = it.SeekGE(start)
		} else {
			pi.started = it.First()
		}
	}
	return pi
}

func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := append([]byte{}, prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff: unbounded above
}

type pebbleBatch struct {
	db    *pebble.DB
	batch *pebble.Batch
}

func (b *pebbleBatch) Put(key, value []byte) error { return b.batch.Set(key, value, nil) }
func (b *pebbleBatch) Delete(key []byte) error     { return b.batch.Delete(key, nil) }
func (b *pebbleBatch) ValueSize() int              { return int(b.batch.Len()) }
func (b *pebbleBatch) Write() error                { return b.batch.Commit(pebble.Sync) }
func (b *pebbleBatch) Reset()                      { b.batch.Reset() }

type pebbleIterator struct {
	it      *pebble.Iterator
	started bool
	first   bool
	reverse bool
}

func (it *pebbleIterator) Next() bool {
	if !it.started {
		return false
	}
	if !it.first {
		it.first = true
		return it.it.Valid()
	}
	if it.reverse {
		return it.it.Prev()
	}
	return it.it.Next()
}

func (it *pebbleIterator) Key() []byte {
	if !it.it.Valid() {
		return nil
	}
	return append([]byte{}, it.it.Key()...)
}

func (it *pebbleIterator) Value() []byte {
	if !it.it.Valid() {
		return nil
	}
	return append([]byte{}, it.it.Value()...)
}

func (it *pebbleIterator) Error() error { return it.it.Error() }
func (it *pebbleIterator) Release()     { it.it.Close() }

type errIterator struct{ err error }

func (e *errIterator) Next() bool    { return false }
func (e *errIterator) Key() []byte   { return nil }
func (e *errIterator) Value() []byte { return nil }
func (e *errIterator) Error() error  { return e.err }
func (e *errIterator) Release()      {}

var (
	_ KVStore  = (*PebbleStore)(nil)
	_ Batch    = (*pebbleBatch)(nil)
	_ Iterator = (*pebbleIterator)(nil)
)
