package codec

import "github.com/cockroachdb/errors"

// ErrShortBuffer is returned when a buffer ends before a length-prefixed
// field can be fully decoded.
var ErrShortBuffer = errors.New("codec: buffer too short")
