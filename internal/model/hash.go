package model

import (
	"bytes"
	"encoding/hex"
)

// Hash is an opaque content digest identifying a chunk or a content-tree
// root. It is produced by the hashing subsystem and treated here as an
// immutable value: equality and ordering are byte-wise, and the length is
// fixed by whatever algorithm the hashing subsystem uses (32 bytes for the
// default SHA-256).
type Hash struct {
	Bytes []byte
}

// NewHash copies b into a Hash. The copy keeps the index tables safe from
// callers that reuse their buffers.
func NewHash(b []byte) Hash {
	return Hash{Bytes: bytes.Clone(b)}
}

// Equal reports whether two hashes have identical bytes.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h.Bytes, other.Bytes)
}

// Compare orders hashes byte-wise, like bytes.Compare.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h.Bytes, other.Bytes)
}

// IsZero reports whether the hash is empty (no digest assigned).
func (h Hash) IsZero() bool {
	return len(h.Bytes) == 0
}

// String returns the full lowercase hex encoding of the digest.
func (h Hash) String() string {
	return hex.EncodeToString(h.Bytes)
}

// Short returns an abbreviated hex form for log output.
func (h Hash) Short() string {
	s := h.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
