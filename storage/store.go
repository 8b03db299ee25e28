// Package storage defines the block-store collaborator contract that the
// rest of groveforest builds on: an ordered byte-keyed store offering
// atomic batches, prefixed column families, and bidirectional iterators.
// groveforest never depends on a specific storage engine beyond this
// surface; see memory.go, pebble.go and leveldb.go for concrete backends.
package storage

import "github.com/cockroachdb/errors"

// ErrNotFound is returned by Get/an Iterator-less point lookup when the key
// is absent. Backends must translate their native not-found error into this
// sentinel so callers can use errors.Is uniformly.
var ErrNotFound = errors.New("storage: key not found")

// ErrBatchAlreadyWritten is returned when Write is called a second time on
// the same Batch.
var ErrBatchAlreadyWritten = errors.New("storage: batch already written")

// Reader is the read half of the block-store contract.
type Reader interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Has reports whether key is present.
	Has(key []byte) (bool, error)
}

// Writer is the write half of the block-store contract.
type Writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Batch buffers Put/Delete operations and applies them to the backing store
// atomically when Write is called. MemoryStore's batch returns
// ErrBatchAlreadyWritten from a second Write until Reset is called; the
// Table, Pebble and LevelDB batches do not track this themselves.
type Batch interface {
	Writer
	// ValueSize reports the buffered size in bytes, used by callers that
	// want to flush before a batch grows unbounded.
	ValueSize() int
	// Write commits all buffered operations atomically.
	Write() error
	// Reset clears buffered operations so the Batch can be reused.
	Reset()
}

// Iterator walks key/value pairs in a KVStore. Direction is fixed at
// creation time (see KVStore.NewIterator); repositioning requires a new
// iterator. The iterator must be Released when no longer needed.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// KVStore is the full block-store collaborator contract (spec §6): point
// reads/writes, atomic batches, and ordered prefix iteration in either
// direction.
type KVStore interface {
	Reader
	Writer
	NewBatch() Batch
	// NewIterator returns an iterator over all keys carrying prefix, at or
	// after (resp. at or before, when reverse) start. A nil start iterates
	// the whole prefix range. Keys returned include the prefix.
	NewIterator(prefix, start []byte, reverse bool) Iterator
	Close() error
}

// Column family / auxiliary key-space conventions (spec §6). Each Merk
// addresses node storage through a path-derived prefix (see Table); within
// that prefix these reserved suffixes hold metadata rather than tree nodes.
const (
	// RootKeyMarker is the auxiliary key holding the current root node's
	// storage key.
	RootKeyMarker = "r"
	// LastRootHashMarker is the auxiliary key holding the last committed
	// root hash, written by merk's commit pass and by restore's finalize
	// and read back by merk.Open as the tree's root hash.
	LastRootHashMarker = "h"
)

// Namespace byte prepended before a subtree's path-derived prefix to
// separate node data from the small amount of auxiliary metadata sharing
// the same physical KVStore, per spec §6 ("a dedicated family for main node
// data; a separate family or key-space for auxiliary metadata").
const (
	NodeFamily = 0x01
	AuxFamily  = 0x02
)
