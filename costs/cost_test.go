package costs

import "testing"

func TestStorageRemoval_BasicAccumulates(t *testing.T) {
	var r StorageRemoval
	r.AddBasic(10)
	r.AddBasic(5)
	if r.Kind != BasicStorageRemoval || r.Basic != 15 {
		t.Fatalf("got %+v", r)
	}
	if r.Total() != 15 {
		t.Fatalf("total = %d", r.Total())
	}
}

func TestStorageRemoval_SectionedAccumulates(t *testing.T) {
	var r StorageRemoval
	r.AddSectioned("alice", "epoch0", 3)
	r.AddSectioned("alice", "epoch0", 4)
	r.AddSectioned("bob", "epoch1", 2)
	if r.Total() != 9 {
		t.Fatalf("total = %d", r.Total())
	}
	if r.Sectioned["alice"]["epoch0"] != 7 {
		t.Fatalf("alice/epoch0 = %d", r.Sectioned["alice"]["epoch0"])
	}
}

func TestStorageRemoval_MixedKindsPanic(t *testing.T) {
	var r StorageRemoval
	r.AddBasic(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic mixing Basic then Sectioned")
		}
	}()
	r.AddSectioned("x", "y", 1)
}

func TestOperationCost_AddMergesAllFields(t *testing.T) {
	a := OperationCost{SeekCount: 1, StorageAddedBytes: 2, HashNodeCalls: 3}
	a.StorageRemovedBytes.AddBasic(5)
	b := OperationCost{SeekCount: 10, StorageLoadedBytes: 4, HashNodeCalls: 1}
	b.StorageRemovedBytes.AddBasic(7)

	a.Add(b)

	if a.SeekCount != 11 || a.StorageAddedBytes != 2 || a.StorageLoadedBytes != 4 || a.HashNodeCalls != 4 {
		t.Fatalf("got %+v", a)
	}
	if a.StorageRemovedBytes.Total() != 12 {
		t.Fatalf("removed = %d", a.StorageRemovedBytes.Total())
	}
}

func TestOperationCost_AddNoneTakesOther(t *testing.T) {
	var a OperationCost
	var b OperationCost
	b.StorageRemovedBytes.AddSectioned("alice", "e0", 3)
	a.Add(b)
	if a.StorageRemovedBytes.Kind != SectionedStorageRemoval {
		t.Fatalf("got kind %v", a.StorageRemovedBytes.Kind)
	}
}
