package merk

// FlagsUpdateHook may veto an incompatible flag change on a node whose
// encoded size changed (spec §4.2 step 3). oldCost is the node's
// previously committed storage-written-bytes estimate.
type FlagsUpdateHook func(oldCost uint32, oldFlags, newFlags []byte) bool

// SplitRemovalBytesHook attributes a node's removed key/value bytes to
// epochs or identities encoded in flags (spec §4.2 step 3). It returns the
// portion of each removal to charge; callers that don't need attribution
// can return the inputs unchanged.
type SplitRemovalBytesHook func(flags []byte, removedKeyBytes, removedValueBytes uint32) (keyRemoval, valueRemoval uint32)

// CommitHooks bundles the two optional cost hooks the commit pass
// consults. A nil hook is treated as a no-op: FlagsUpdate always allows
// the change, SplitRemovalBytes attributes the full removal with no
// splitting.
type CommitHooks struct {
	FlagsUpdate       FlagsUpdateHook
	SplitRemovalBytes SplitRemovalBytesHook
}

func (h CommitHooks) flagsUpdate(oldCost uint32, oldFlags, newFlags []byte) bool {
	if h.FlagsUpdate == nil {
		return true
	}
	return h.FlagsUpdate(oldCost, oldFlags, newFlags)
}

func (h CommitHooks) splitRemovalBytes(flags []byte, removedKeyBytes, removedValueBytes uint32) (uint32, uint32) {
	if h.SplitRemovalBytes == nil {
		return removedKeyBytes, removedValueBytes
	}
	return h.SplitRemovalBytes(flags, removedKeyBytes, removedValueBytes)
}
