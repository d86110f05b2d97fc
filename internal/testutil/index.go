package testutil

import (
	"testing"

	"hoard/internal/index"
	"hoard/internal/index/chunk"
	"hoard/internal/index/snapshot"
)

// NewTestSnapshotIndex creates an in-memory snapshot index with schema
// applied. The index is automatically closed when the test completes.
func NewTestSnapshotIndex(t *testing.T) *snapshot.Index {
	t.Helper()

	ix, err := snapshot.Open(":memory:", index.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to open snapshot index: %v", err)
	}

	t.Cleanup(func() {
		ix.Close()
	})

	return ix
}

// NewTestChunkIndex creates an in-memory chunk index with schema applied.
// The index is automatically closed when the test completes.
func NewTestChunkIndex(t *testing.T) *chunk.Index {
	t.Helper()

	ix, err := chunk.Open(":memory:", index.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to open chunk index: %v", err)
	}

	t.Cleanup(func() {
		ix.Close()
	})

	return ix
}
