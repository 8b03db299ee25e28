// Package costs implements the operation-cost ledger returned by every
// public Merk and batch operation (spec §6 "Cost ledger").
package costs

// RemovalKind discriminates the three shapes storage-removal accounting can
// take, matching the tagged union in spec §6.
type RemovalKind uint8

const (
	// NoStorageRemoval means the operation removed nothing.
	NoStorageRemoval RemovalKind = iota
	// BasicStorageRemoval carries a single removed-byte count, used when
	// the caller supplied no split_removal_bytes hook.
	BasicStorageRemoval
	// SectionedStorageRemoval attributes removed bytes per identity and
	// epoch, populated by the split_removal_bytes cost hook (spec §4.2
	// step 3).
	SectionedStorageRemoval
)

// StorageRemoval is the tagged storage_removed_bytes field of
// OperationCost.
type StorageRemoval struct {
	Kind RemovalKind

	// Basic holds the removed-byte count when Kind == BasicStorageRemoval.
	Basic uint32

	// Sectioned holds identity -> epoch -> removed bytes when
	// Kind == SectionedStorageRemoval.
	Sectioned map[string]map[string]uint32
}

// AddBasic accumulates n removed bytes, promoting NoStorageRemoval to
// BasicStorageRemoval on first use. Mixing Basic and Sectioned removal
// within one OperationCost is a caller error; AddBasic panics if the
// receiver already holds Sectioned data.
func (r *StorageRemoval) AddBasic(n uint32) {
	switch r.Kind {
	case NoStorageRemoval:
		r.Kind = BasicStorageRemoval
		r.Basic = n
	case BasicStorageRemoval:
		r.Basic += n
	case SectionedStorageRemoval:
		panic("costs: AddBasic on a SectionedStorageRemoval ledger")
	}
}

// AddSectioned attributes n removed bytes to (identity, epoch), promoting
// NoStorageRemoval to SectionedStorageRemoval on first use.
func (r *StorageRemoval) AddSectioned(identity, epoch string, n uint32) {
	switch r.Kind {
	case NoStorageRemoval:
		r.Kind = SectionedStorageRemoval
		r.Sectioned = map[string]map[string]uint32{}
	case BasicStorageRemoval:
		panic("costs: AddSectioned on a BasicStorageRemoval ledger")
	}
	byEpoch, ok := r.Sectioned[identity]
	if !ok {
		byEpoch = map[string]uint32{}
		r.Sectioned[identity] = byEpoch
	}
	byEpoch[epoch] += n
}

// Total sums all removed bytes regardless of attribution shape.
func (r StorageRemoval) Total() uint64 {
	switch r.Kind {
	case BasicStorageRemoval:
		return uint64(r.Basic)
	case SectionedStorageRemoval:
		var total uint64
		for _, byEpoch := range r.Sectioned {
			for _, n := range byEpoch {
				total += uint64(n)
			}
		}
		return total
	default:
		return 0
	}
}

// OperationCost is the ledger every public Merk and batch operation
// returns (spec §6). Zero value is the cost of a no-op.
type OperationCost struct {
	SeekCount            uint64
	StorageAddedBytes    uint64
	StorageReplacedBytes uint64
	StorageLoadedBytes   uint64
	HashNodeCalls        uint64
	StorageRemovedBytes  StorageRemoval
}

// Add merges other into c in place. Storage-removal attribution is merged
// by kind: Basic+Basic sums, Sectioned+Sectioned unions per (identity,
// epoch), None+X takes X, and mismatched non-None kinds panic since that
// indicates a caller mixed hook styles within one accumulation.
func (c *OperationCost) Add(other OperationCost) {
	c.SeekCount += other.SeekCount
	c.StorageAddedBytes += other.StorageAddedBytes
	c.StorageReplacedBytes += other.StorageReplacedBytes
	c.StorageLoadedBytes += other.StorageLoadedBytes
	c.HashNodeCalls += other.HashNodeCalls

	switch {
	case other.StorageRemovedBytes.Kind == NoStorageRemoval:
		// nothing to merge
	case c.StorageRemovedBytes.Kind == NoStorageRemoval:
		c.StorageRemovedBytes = other.StorageRemovedBytes
	case c.StorageRemovedBytes.Kind == BasicStorageRemoval && other.StorageRemovedBytes.Kind == BasicStorageRemoval:
		c.StorageRemovedBytes.Basic += other.StorageRemovedBytes.Basic
	case c.StorageRemovedBytes.Kind == SectionedStorageRemoval && other.StorageRemovedBytes.Kind == SectionedStorageRemoval:
		for identity, byEpoch := range other.StorageRemovedBytes.Sectioned {
			for epoch, n := range byEpoch {
				c.StorageRemovedBytes.AddSectioned(identity, epoch, n)
			}
		}
	default:
		panic("costs: cannot merge mismatched storage-removal attribution kinds")
	}
}

// AddSeek increments the seek counter, used by the Merk walker every time
// it descends across a lazily-resolved Link (spec §4.2 "Walker").
func (c *OperationCost) AddSeek() {
	c.SeekCount++
}

// AddHash increments the hash_node_calls counter.
func (c *OperationCost) AddHash(n uint64) {
	c.HashNodeCalls += n
}
