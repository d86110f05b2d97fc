// Package chunk maps content hashes to the location of their stored bytes.
//
// Every chunk the chunker produces, and every interior node of a content
// tree, gets one row here, keyed by its hash. The blob_ref column is the
// opaque locator the blob store handed back at Put time; height records the
// chunk's level in the content tree (0 for leaf data). Lookups are how the
// engine deduplicates: a hash that is already present never travels to the
// blob store again.
package chunk

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hoard/internal/config"
	"hoard/internal/database"
	"hoard/internal/database/migrations"
	"hoard/internal/index"
	"hoard/internal/model"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DBFileName is the on-disk file name of the chunk index within a data
// directory.
const DBFileName = "chunks.db"

// Entry is one chunk-location row.
type Entry struct {
	ID      int64
	Hash    model.Hash
	Height  int64
	BlobRef []byte
}

type op int

const (
	opInsert op = iota + 1
	opLookup
)

type request struct {
	op      op
	hash    model.Hash
	height  int64
	blobRef []byte
}

type response struct {
	entry *Entry
}

// Index is the chunk index actor. All methods are safe for concurrent use;
// requests are served one at a time in arrival order.
type Index struct {
	actor *index.Actor[request, response]
}

// Open opens (creating and migrating if needed) the chunk index at path and
// starts its actor. path may be ":memory:".
func Open(path string, logger index.Logger) (*Index, error) {
	db, err := database.OpenConnection(path)
	if err != nil {
		return nil, fmt.Errorf("opening chunk index: %w", err)
	}

	if err := migrations.Up(db, migrationFiles, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating chunk index: %w", err)
	}

	actor, err := index.NewActor("chunk", db, handle, logger)
	if err != nil {
		return nil, fmt.Errorf("starting chunk index: %w", err)
	}

	return &Index{actor: actor}, nil
}

// CheckStatus reports whether the chunk index at path is at the latest
// schema version, without starting an actor or migrating anything.
func CheckStatus(path string) error {
	db, err := database.OpenConnection(path)
	if err != nil {
		return fmt.Errorf("opening chunk index: %w", err)
	}
	defer db.Close()

	return migrations.CheckStatus(db, migrationFiles, "migrations")
}

// NewFromConfig opens the chunk index described by cfg.
func NewFromConfig(cfg config.IndexConfig, logger index.Logger) (*Index, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite index")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating index data directory: %w", err)
		}
		return Open(filepath.Join(cfg.DataDir, DBFileName), logger)
	case "memory":
		return Open(":memory:", logger)
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}

// Insert records the location of the chunk with the given hash. Inserting a
// hash that is already present is a no-op; the first recorded location
// wins, which is what content addressing demands. Durable only after the
// next Flush.
func (ix *Index) Insert(hash model.Hash, height int64, blobRef []byte) error {
	_, err := ix.actor.Call(request{op: opInsert, hash: hash, height: height, blobRef: blobRef})
	return err
}

// Lookup returns the entry for hash, or nil if the chunk is unknown.
func (ix *Index) Lookup(hash model.Hash) (*Entry, error) {
	resp, err := ix.actor.Call(request{op: opLookup, hash: hash})
	if err != nil {
		return nil, err
	}
	return resp.entry, nil
}

// Flush commits all pending inserts, making them crash-durable. The chunk
// index must flush before the snapshot index; see index.Coordinator.
func (ix *Index) Flush() error { return ix.actor.Flush() }

// Close discards unflushed inserts and releases the database.
func (ix *Index) Close() error { return ix.actor.Close() }

func handle(tx *sql.Tx, req request) (response, error) {
	switch req.op {
	case opInsert:
		return response{}, insert(tx, req)
	case opLookup:
		entry, err := lookup(tx, req.hash)
		return response{entry: entry}, err
	default:
		return response{}, fmt.Errorf("unknown chunk request op %d", req.op)
	}
}

func insert(tx *sql.Tx, req request) error {
	_, err := tx.Exec(
		"INSERT OR IGNORE INTO chunk_index (hash, height, blob_ref) VALUES (?, ?, ?)",
		req.hash.Bytes, req.height, req.blobRef)
	if err != nil {
		return fmt.Errorf("inserting chunk entry: %w", err)
	}
	return nil
}

func lookup(tx *sql.Tx, hash model.Hash) (*Entry, error) {
	row := tx.QueryRow(
		"SELECT id, height, blob_ref FROM chunk_index WHERE hash = ?",
		hash.Bytes)

	var entry Entry
	err := row.Scan(&entry.ID, &entry.Height, &entry.BlobRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // unknown chunk
	}
	if err != nil {
		return nil, fmt.Errorf("querying chunk entry: %w", err)
	}

	entry.Hash = hash
	return &entry, nil
}

var _ index.Flusher = (*Index)(nil)
