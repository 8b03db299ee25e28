// Package groveerr defines the structured error taxonomy every package in
// this module reports through (spec §7 "Error Handling Design"). It plays
// the same role the teacher's codebase gives cockroachdb/errors: typed,
// wrapped errors that still satisfy errors.Is/As against a stable sentinel
// per kind.
package groveerr

import "github.com/cockroachdb/errors"

// Kind enumerates the error taxonomy of spec §7.
type Kind string

const (
	InvalidProof           Kind = "InvalidProof"
	ChunkRestoring         Kind = "ChunkRestoring"
	CorruptedData          Kind = "CorruptedData"
	CorruptedCodeExecution Kind = "CorruptedCodeExecution"
	InvalidPath            Kind = "InvalidPath"
	InvalidBatchOperation  Kind = "InvalidBatchOperation"
	CyclicReference        Kind = "CyclicReference"
	ReferenceLimit         Kind = "ReferenceLimit"
	WrongElementType       Kind = "WrongElementType"
	RequestAmountExceeded  Kind = "RequestAmountExceeded"
	NotSupported           Kind = "NotSupported"
	StorageError           Kind = "StorageError"
	CostError              Kind = "CostError"
)

// Error is the structured error type every operation in this module
// returns for an expected-taxonomy failure. Op names the operation that
// failed (e.g. "merk.apply", "proof.verify_query"); Err is the underlying
// cause, often a plain message built with errors.Newf.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind) + " (" + e.Op + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error carrying kind and op, wrapping a message formed
// from format/args the way errors.Newf would.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.Newf(format, args...)}
}

// Wrap builds an *Error carrying kind and op around an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a *Error of the given kind, looking through
// any wrapping.
func Is(err error, kind Kind) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}
