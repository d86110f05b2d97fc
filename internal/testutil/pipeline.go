package testutil

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"hoard/internal/model"
)

// FixedChunker is a backup.Chunker that splits streams into fixed-size
// chunks. Deterministic and boring on purpose; content-defined chunking
// belongs to the real chunking subsystem.
type FixedChunker struct {
	Size int
}

func (c FixedChunker) Split(r io.Reader, emit func(chunk []byte) error) error {
	size := c.Size
	if size <= 0 {
		size = 4096
	}

	buf := make([]byte, size)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if eerr := emit(bytes.Clone(buf[:n])); eerr != nil {
				return eerr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// FlatTreeBuilder is a backup.TreeBuilder that encodes the chunk list as a
// flat concatenation of fixed-width digests. The root is the digest of that
// concatenation.
type FlatTreeBuilder struct {
	Hasher   SHA256Hasher
	HashSize int // defaults to 32
}

func (b FlatTreeBuilder) hashSize() int {
	if b.HashSize > 0 {
		return b.HashSize
	}
	return 32
}

func (b FlatTreeBuilder) Build(chunks []model.Hash) (model.Hash, []byte, error) {
	treeRef := make([]byte, 0, len(chunks)*b.hashSize())
	for _, h := range chunks {
		if len(h.Bytes) != b.hashSize() {
			return model.Hash{}, nil, fmt.Errorf("chunk hash has %d bytes, want %d", len(h.Bytes), b.hashSize())
		}
		treeRef = append(treeRef, h.Bytes...)
	}
	return b.Hasher.Sum(treeRef), treeRef, nil
}

func (b FlatTreeBuilder) Walk(treeRef []byte) ([]model.Hash, error) {
	size := b.hashSize()
	if len(treeRef)%size != 0 {
		return nil, fmt.Errorf("tree ref length %d is not a multiple of %d", len(treeRef), size)
	}

	hashes := make([]model.Hash, 0, len(treeRef)/size)
	for off := 0; off < len(treeRef); off += size {
		hashes = append(hashes, model.NewHash(treeRef[off:off+size]))
	}
	return hashes, nil
}

// MemoryBlobStore is an in-memory backup.BlobStore. Blob refs are the hash
// bytes themselves. Safe for concurrent use.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte // ref -> data
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(hash model.Hash, data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent: storing the same hash multiple times is safe.
	s.blobs[string(hash.Bytes)] = bytes.Clone(data)
	return bytes.Clone(hash.Bytes), nil
}

func (s *MemoryBlobStore) Get(ref []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[string(ref)]
	if !ok {
		return nil, fmt.Errorf("blob not found for ref %x", ref)
	}
	return bytes.Clone(data), nil
}

// Len returns the number of stored blobs. Useful for dedup assertions.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
