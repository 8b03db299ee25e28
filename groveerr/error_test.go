package groveerr

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestNew_FormatsMessage(t *testing.T) {
	err := New(InvalidPath, "merk.get", "key %x not found", []byte{0xab})
	want := `InvalidPath (merk.get): key ab not found`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNew_NoOp(t *testing.T) {
	err := New(CorruptedData, "", "bad node")
	want := `CorruptedData: bad node`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap_NilError(t *testing.T) {
	if Wrap(StorageError, "storage.get", nil) != nil {
		t.Fatalf("Wrap(nil) should return nil, not a non-nil *Error")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(StorageError, "storage.put", cause)
	if err.Unwrap() != cause {
		t.Fatalf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
}

func TestIs_MatchesKindThroughWrapping(t *testing.T) {
	err := New(CyclicReference, "batch.resolveReferences", "reference cycle detected")
	wrapped := errors.Wrap(err, "applying batch")

	if !Is(wrapped, CyclicReference) {
		t.Fatalf("Is(wrapped, CyclicReference) = false, want true")
	}
	if Is(wrapped, ReferenceLimit) {
		t.Fatalf("Is(wrapped, ReferenceLimit) = true, want false")
	}
}

func TestIs_NonGroveError(t *testing.T) {
	if Is(errors.New("plain error"), StorageError) {
		t.Fatalf("Is(plain error, StorageError) = true, want false")
	}
}
