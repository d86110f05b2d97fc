package backup_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"hoard/internal/backup"
	"hoard/internal/index"
	"hoard/internal/index/chunk"
	"hoard/internal/index/snapshot"
	"hoard/internal/testutil"
)

// fileIndices opens file-backed indices in dir so a close-and-reopen cycle
// can stand in for a process crash.
func fileIndices(t *testing.T, dir string) (*chunk.Index, *snapshot.Index) {
	t.Helper()
	logger := index.NewNopLogger()

	chunks, err := chunk.Open(filepath.Join(dir, chunk.DBFileName), logger)
	if err != nil {
		t.Fatalf("opening chunk index: %v", err)
	}
	snaps, err := snapshot.Open(filepath.Join(dir, snapshot.DBFileName), logger)
	if err != nil {
		chunks.Close()
		t.Fatalf("opening snapshot index: %v", err)
	}
	return chunks, snaps
}

func fileService(chunks *chunk.Index, snaps *snapshot.Index, blobs backup.BlobStore) *backup.Service {
	return backup.NewService(
		testutil.FixedChunker{Size: 8},
		testutil.SHA256Hasher{},
		testutil.FlatTreeBuilder{},
		blobs,
		chunks,
		snaps,
		index.NewNopLogger(),
		testutil.FixedClock(),
		testutil.NewStubIDGenerator(),
	)
}

// A crash between backups must roll the engine back to the last checkpoint:
// the checkpointed snapshot survives with all of its chunks, and nothing of
// the unflushed run remains in either index.
func TestCrashRecovery_RevertsToLastCheckpoint(t *testing.T) {
	dir := t.TempDir()
	blobs := testutil.NewMemoryBlobStore()

	chunks, snaps := fileIndices(t, dir)
	svc := fileService(chunks, snaps, blobs)

	root1, err := svc.Backup("host1/etc", strings.NewReader("first version of the data"))
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if err := svc.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}

	root2, err := svc.Backup("host1/etc", strings.NewReader("second version, never checkpointed"))
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	// Crash: both actors roll back their open transactions.
	if err := chunks.Close(); err != nil {
		t.Fatalf("closing chunk index: %v", err)
	}
	if err := snaps.Close(); err != nil {
		t.Fatalf("closing snapshot index: %v", err)
	}

	chunks, snaps = fileIndices(t, dir)
	defer chunks.Close()
	defer snaps.Close()
	svc = fileService(chunks, snaps, blobs)

	rec, err := svc.LatestRoot("host1/etc")
	if err != nil {
		t.Fatalf("LatestRoot() after restart error = %v", err)
	}
	if rec == nil {
		t.Fatal("checkpointed snapshot lost after restart")
	}
	if !rec.Hash.Equal(root1) {
		t.Errorf("LatestRoot() after restart = %s, want the checkpointed root %s", rec.Hash, root1)
	}
	if rec.Hash.Equal(root2) {
		t.Error("unflushed snapshot survived the crash")
	}

	// The surviving snapshot must be fully restorable: every chunk it
	// references was flushed before it was.
	var restored bytes.Buffer
	if err := svc.Restore("host1/etc", &restored); err != nil {
		t.Fatalf("Restore() after restart error = %v", err)
	}
	if restored.String() != "first version of the data" {
		t.Errorf("Restore() after restart = %q, want the checkpointed data", restored.String())
	}
}

// Repeated checkpoints with nothing new to commit must not disturb state.
func TestCheckpoint_Idempotent(t *testing.T) {
	dir := t.TempDir()
	blobs := testutil.NewMemoryBlobStore()

	chunks, snaps := fileIndices(t, dir)
	defer chunks.Close()
	defer snaps.Close()
	svc := fileService(chunks, snaps, blobs)

	root, err := svc.Backup("fam", strings.NewReader("some data to keep"))
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.Checkpoint(); err != nil {
			t.Fatalf("Checkpoint() #%d error = %v", i+1, err)
		}
	}

	rec, err := svc.LatestRoot("fam")
	if err != nil {
		t.Fatalf("LatestRoot() error = %v", err)
	}
	if rec == nil || !rec.Hash.Equal(root) {
		t.Errorf("LatestRoot() = %+v, want root %s", rec, root)
	}
}
