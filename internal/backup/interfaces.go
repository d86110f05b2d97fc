package backup

import (
	"io"

	"hoard/internal/model"
)

// Chunker splits a data stream into content-defined chunks. Implementations
// live in the chunking subsystem; the driver only requires that identical
// data produces identical chunk sequences, or deduplication degrades.
type Chunker interface {
	// Split reads r to EOF, calling emit once per chunk in stream order.
	// A non-nil error from emit aborts the split and is returned as-is.
	Split(r io.Reader, emit func(chunk []byte) error) error
}

// Hasher produces the content digest for a chunk or tree node. Provided by
// the hashing subsystem; the driver treats digests as opaque model.Hash
// values.
type Hasher interface {
	Sum(data []byte) model.Hash
}

// TreeBuilder assembles per-chunk hashes into a content tree. It is the
// only component that understands tree_ref contents; the snapshot index
// stores them without interpretation.
type TreeBuilder interface {
	// Build returns the root hash of the tree over chunks, plus an opaque
	// reference sufficient to recover the chunk list at restore time.
	Build(chunks []model.Hash) (root model.Hash, treeRef []byte, err error)

	// Walk recovers the leaf chunk hashes, in stream order, from a
	// reference previously returned by Build.
	Walk(treeRef []byte) ([]model.Hash, error)
}

// BlobStore persists raw chunk bytes under their content hash. The ref
// returned by Put is an opaque locator (a pack-file offset, an object key)
// that the chunk index records and hands back at restore time.
type BlobStore interface {
	Put(hash model.Hash, data []byte) (ref []byte, err error)
	Get(ref []byte) ([]byte, error)
}
