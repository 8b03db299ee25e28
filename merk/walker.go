package merk

import (
	"github.com/VictoriaMetrics/fastcache"

	"github.com/groveforest/groveforest/costs"
	"github.com/groveforest/groveforest/groveerr"
	"github.com/groveforest/groveforest/storage"
)

// Walker is the lazy tree accessor spec §4.2 describes: "child links are
// loaded on demand via fetch(key) against the block store... the only
// entry point that mutates links." A Walker is scoped to one subtree's
// storage (typically a storage.Table already prefixed by the subtree's
// path) and an optional shared decoded-node cache.
type Walker struct {
	store storage.KVStore
	cache *fastcache.Cache
	cost  *costs.OperationCost
}

// NewWalker builds a Walker over store, recording costs into cost. cache
// may be nil to disable node caching.
func NewWalker(store storage.KVStore, cache *fastcache.Cache, cost *costs.OperationCost) *Walker {
	return &Walker{store: store, cache: cache, cost: cost}
}

// fetch decodes the node stored at key, consulting the cache first.
func (w *Walker) fetch(key []byte) (*Node, []byte, error) {
	if w.cache != nil {
		if raw, ok := w.cache.HasGet(nil, key); ok {
			n, err := Decode(key, raw)
			if err == nil {
				return n, raw, nil
			}
		}
	}
	w.cost.AddSeek()
	raw, err := w.store.Get(key)
	if err != nil {
		return nil, nil, groveerr.Wrap(groveerr.StorageError, "merk.Walker.fetch", err)
	}
	w.cost.StorageLoadedBytes += uint64(len(raw))
	n, err := Decode(key, raw)
	if err != nil {
		return nil, nil, err
	}
	if w.cache != nil {
		w.cache.Set(key, raw)
	}
	return n, raw, nil
}

// LoadLink is the exported form of loadLink, used by package proof to
// walk a subtree's links without otherwise reaching into merk internals.
func (w *Walker) LoadLink(l *Link) (*Node, error) {
	return w.loadLink(l)
}

// loadLink resolves l to its Node, fetching from storage and transitioning
// LinkReference -> LinkLoaded if it has not been resolved yet.
func (w *Walker) loadLink(l *Link) (*Node, error) {
	if l == nil {
		return nil, nil
	}
	if l.Node != nil {
		return l.Node, nil
	}
	if len(l.Key) == 0 {
		return nil, groveerr.New(groveerr.CorruptedCodeExecution, "merk.Walker.loadLink", "link has no key outside restore's trunk/leaf window")
	}
	n, raw, err := w.fetch(l.Key)
	if err != nil {
		return nil, err
	}
	n.origRaw = raw
	l.Node = n
	l.State = LinkLoaded
	return n, nil
}

// put writes a node's encoded form directly to the backing store, used by
// the commit pass for every Uncommitted node.
func (w *Walker) put(n *Node) (raw []byte, err error) {
	raw, err = Encode(n)
	if err != nil {
		return nil, err
	}
	if err := w.store.Put(n.Key, raw); err != nil {
		return nil, groveerr.Wrap(groveerr.StorageError, "merk.Walker.put", err)
	}
	if w.cache != nil {
		w.cache.Set(n.Key, raw)
	}
	return raw, nil
}

// delete removes a node's encoded form from the backing store.
func (w *Walker) delete(key []byte) error {
	if err := w.store.Delete(key); err != nil {
		return groveerr.Wrap(groveerr.StorageError, "merk.Walker.delete", err)
	}
	if w.cache != nil {
		w.cache.Del(key)
	}
	return nil
}
