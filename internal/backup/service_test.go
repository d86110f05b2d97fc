package backup_test

import (
	"bytes"
	"strings"
	"testing"

	"hoard/internal/backup"
	"hoard/internal/index"
	"hoard/internal/testutil"
)

func newTestService(t *testing.T) (*backup.Service, *testutil.MemoryBlobStore) {
	t.Helper()

	blobs := testutil.NewMemoryBlobStore()
	svc := backup.NewService(
		testutil.FixedChunker{Size: 8},
		testutil.SHA256Hasher{},
		testutil.FlatTreeBuilder{},
		blobs,
		testutil.NewTestChunkIndex(t),
		testutil.NewTestSnapshotIndex(t),
		index.NewNopLogger(),
		testutil.FixedClock(),
		testutil.NewStubIDGenerator(),
	)
	return svc, blobs
}

func TestService_BackupAndRestore(t *testing.T) {
	svc, _ := newTestService(t)

	data := "the quick brown fox jumps over the lazy dog"
	root, err := svc.Backup("host1/etc", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if root.IsZero() {
		t.Fatal("Backup() returned zero root hash")
	}

	if err := svc.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint() error = %v", err)
	}

	rec, err := svc.LatestRoot("host1/etc")
	if err != nil {
		t.Fatalf("LatestRoot() error = %v", err)
	}
	if rec == nil {
		t.Fatal("LatestRoot() = nil after backup")
	}
	if !rec.Hash.Equal(root) {
		t.Errorf("LatestRoot() hash = %s, want %s", rec.Hash, root)
	}

	var restored bytes.Buffer
	if err := svc.Restore("host1/etc", &restored); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.String() != data {
		t.Errorf("Restore() = %q, want %q", restored.String(), data)
	}
}

func TestService_DeduplicatesChunks(t *testing.T) {
	svc, blobs := newTestService(t)

	data := strings.Repeat("chunkity", 16)
	if _, err := svc.Backup("fam", strings.NewReader(data)); err != nil {
		t.Fatalf("first Backup() error = %v", err)
	}
	stored := blobs.Len()
	if stored == 0 {
		t.Fatal("no blobs stored by first backup")
	}

	// The same data again: every chunk is already indexed, so nothing new
	// reaches the blob store.
	if _, err := svc.Backup("fam", strings.NewReader(data)); err != nil {
		t.Fatalf("second Backup() error = %v", err)
	}
	if blobs.Len() != stored {
		t.Errorf("blob count grew from %d to %d on identical data", stored, blobs.Len())
	}
}

func TestService_SecondBackupBecomesLatest(t *testing.T) {
	svc, _ := newTestService(t)

	root1, err := svc.Backup("fam", strings.NewReader("version one"))
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	root2, err := svc.Backup("fam", strings.NewReader("version two!"))
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if root1.Equal(root2) {
		t.Fatal("different data produced identical roots")
	}

	rec, err := svc.LatestRoot("fam")
	if err != nil {
		t.Fatalf("LatestRoot() error = %v", err)
	}
	if rec == nil || !rec.Hash.Equal(root2) {
		t.Errorf("LatestRoot() = %+v, want the second backup's root", rec)
	}

	var restored bytes.Buffer
	if err := svc.Restore("fam", &restored); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.String() != "version two!" {
		t.Errorf("Restore() = %q, want the second backup's data", restored.String())
	}
}

func TestService_EmptyStream(t *testing.T) {
	svc, _ := newTestService(t)

	root, err := svc.Backup("fam", strings.NewReader(""))
	if err != nil {
		t.Fatalf("Backup() of empty stream error = %v", err)
	}
	if root.IsZero() {
		t.Fatal("empty stream still has a tree root (hash of zero chunks)")
	}

	var restored bytes.Buffer
	if err := svc.Restore("fam", &restored); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.Len() != 0 {
		t.Errorf("Restore() of empty backup wrote %d bytes", restored.Len())
	}
}

func TestService_RestoreUnknownFamily(t *testing.T) {
	svc, _ := newTestService(t)

	var buf bytes.Buffer
	if err := svc.Restore("nobody", &buf); err == nil {
		t.Error("Restore() of unknown family succeeded, want error")
	}
}
