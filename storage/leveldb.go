package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/groveforest/groveforest/log"
)

// LevelDBStore backs a KVStore with syndtr/goleveldb, a second real ordered
// engine demonstrating that the block-store contract (spec §6) is engine
// agnostic. Operators who already run LevelDB-based infrastructure (as the
// wider ecosystem commonly does) can point groveforest at it without any
// change above the storage package.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if absent) a LevelDB database at dir.
func OpenLevelDB(dir string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	log.Default().Module("storage").Info("opened leveldb store", "dir", dir)
	return &LevelDBStore{db: db}, nil
}

func (l *LevelDBStore) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err == ldberrors.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (l *LevelDBStore) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDBStore) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDBStore) Close() error { return l.db.Close() }

func (l *LevelDBStore) NewBatch() Batch {
	return &levelDBBatch{db: l.db, batch: new(leveldb.Batch)}
}

func (l *LevelDBStore) NewIterator(prefix, start []byte, reverse bool) Iterator {
	rng := util.BytesPrefix(prefix)
	it := l.db.NewIterator(rng, nil)
	positioned := false
	if reverse {
		if len(start) > 0 {
			positioned = it.Seek(start)
			if positioned && string(it.Key()) > string(start) {
				positioned = it.Prev()
			} else if !positioned {
				positioned = it.Last()
			}
		} else {
			positioned = it.Last()
		}
	} else {
		if len(start) > 0 {
			positioned = it.Seek(start)
		} else {
			positioned = it.First()
		}
	}
	return &levelDBIterator{it: it, positioned: positioned, reverse: reverse}
}

type levelDBBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelDBBatch) Put(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *levelDBBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *levelDBBatch) ValueSize() int { return b.batch.Len() }
func (b *levelDBBatch) Write() error   { return b.db.Write(b.batch, nil) }
func (b *levelDBBatch) Reset()         { b.batch.Reset() }

type levelDBIterator struct {
	it         iterator.Iterator
	positioned bool
	started    bool
	reverse    bool
}

func (it *levelDBIterator) Next() bool {
	if !it.positioned {
		return false
	}
	if !it.started {
		it.started = true
		return it.it.Valid()
	}
	if it.reverse {
		return it.it.Prev()
	}
	return it.it.Next()
}

func (it *levelDBIterator) Key() []byte {
	if !it.it.Valid() {
		return nil
	}
	return append([]byte{}, it.it.Key()...)
}

func (it *levelDBIterator) Value() []byte {
	if !it.it.Valid() {
		return nil
	}
	return append([]byte{}, it.it.Value()...)
}

func (it *levelDBIterator) Error() error { return it.it.Error() }
func (it *levelDBIterator) Release()     { it.it.Release() }

var (
	_ KVStore  = (*LevelDBStore)(nil)
	_ Batch    = (*levelDBBatch)(nil)
	_ Iterator = (*levelDBIterator)(nil)
)
