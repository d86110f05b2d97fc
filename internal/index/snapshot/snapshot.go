// Package snapshot records the append-only history of backup snapshots.
//
// Each row ties a family (a named backup series such as "host1/etc") to
// the root hash of the content tree a backup run produced, plus an opaque
// reference the tree collaborator can use to reconstruct that tree. Rows
// are never updated or deleted; "the latest snapshot for a family" is
// simply the row with the greatest id.
package snapshot

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

// DBFileName is the on-disk file name of the snapshot index within a data
// directory.
const DBFileName = "snapshots.db"

// Record is one committed (or pending) entry of the snapshot history.
type Record struct {
	ID      int64
	Family  string
	Hash    model.Hash
	TreeRef []byte
}

type op int

const (
	opAdd op = iota + 1
	opLatest
	opFamilies
	opHistory
)

type request struct {
	op      op
	family  string
	hash    model.Hash
	treeRef []byte
	limit   int64
}

type response struct {
	record   *Record
	families []string
	history  []Record
}

// Index is the snapshot index actor. All methods are safe for concurrent
// use; requests are served one at a time in arrival order.
type Index struct {
	actor *index.Actor[request, response]
}

// Open opens (creating and migrating if needed) the snapshot index at path
// and starts its actor. path may be ":memory:" for an isolated index with
// identical transactional semantics.
func Open(path string, logger index.Logger) (*Index, error) {
	db, err := database.OpenConnection(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot index: %w", err)
	}

	if err := migrations.Up(db, migrationFiles, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating snapshot index: %w", err)
	}

	actor, err := index.NewActor("snapshot", db, handle, logger)
	if err != nil {
		return nil, fmt.Errorf("starting snapshot index: %w", err)
	}

	return &Index{actor: actor}, nil
}

// CheckStatus reports whether the snapshot index at path is at the latest
// schema version, without starting an actor or migrating anything.
func CheckStatus(path string) error {
	db, err := database.OpenConnection(path)
	if err != nil {
		return fmt.Errorf("opening snapshot index: %w", err)
	}
	defer db.Close()

	return migrations.CheckStatus(db, migrationFiles, "migrations")
}

// NewFromConfig opens the snapshot index described by cfg.
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

// Add appends one snapshot record for family. The record is visible to
// Latest/History on this index immediately, but durable only after the next
// successful Flush. treeRef is stored opaquely; this index never interprets
// it.
func (ix *Index) Add(family string, hash model.Hash, treeRef []byte) error {
	_, err := ix.actor.Call(request{op: opAdd, family: family, hash: hash, treeRef: treeRef})
	return err
}

// Latest returns the most recently added record for family, or nil if the
// family has no snapshots. Families are matched by exact equality.
func (ix *Index) Latest(family string) (*Record, error) {
	resp, err := ix.actor.Call(request{op: opLatest, family: family})
	if err != nil {
		return nil, err
	}
	return resp.record, nil
}

// Families returns every family with at least one snapshot, sorted.
func (ix *Index) Families() ([]string, error) {
	resp, err := ix.actor.Call(request{op: opFamilies})
	if err != nil {
		return nil, err
	}
	return resp.families, nil
}

// History returns up to limit records for family, newest first.
func (ix *Index) History(family string, limit int) ([]Record, error) {
	resp, err := ix.actor.Call(request{op: opHistory, family: family, limit: int64(limit)})
	if err != nil {
		return nil, err
	}
	return resp.history, nil
}

// Flush commits all pending adds, making them crash-durable. Callers must
// flush the chunk index first; see index.Coordinator.
func (ix *Index) Flush() error { return ix.actor.Flush() }

// Close discards unflushed adds and releases the database.
func (ix *Index) Close() error { return ix.actor.Close() }

// handle runs on the actor goroutine inside the open transaction.
func handle(tx *sql.Tx, req request) (response, error) {
	switch req.op {
	case opAdd:
		return response{}, add(tx, req)
	case opLatest:
		rec, err := latest(tx, req.family)
		return response{record: rec}, err
	case opFamilies:
		fams, err := families(tx)
		return response{families: fams}, err
	case opHistory:
		recs, err := history(tx, req.family, req.limit)
		return response{history: recs}, err
	default:
		return response{}, fmt.Errorf("unknown snapshot request op %d", req.op)
	}
}

func add(tx *sql.Tx, req request) error {
	_, err := tx.Exec(
		"INSERT INTO snapshot_index (family, hash, tree_ref) VALUES (?, ?, ?)",
		[]byte(req.family), req.hash.Bytes, req.treeRef)
	if err != nil {
		return fmt.Errorf("inserting snapshot record: %w", err)
	}
	return nil
}

func latest(tx *sql.Tx, family string) (*Record, error) {
	row := tx.QueryRow(
		"SELECT id, hash, tree_ref FROM snapshot_index WHERE family = ? ORDER BY id DESC LIMIT 1",
		[]byte(family))

	var rec Record
	var hash []byte
	err := row.Scan(&rec.ID, &hash, &rec.TreeRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not an error: family has no snapshots
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	rec.Family = family
	rec.Hash = model.NewHash(hash)
	return &rec, nil
}

func families(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query("SELECT DISTINCT family FROM snapshot_index ORDER BY family")
	if err != nil {
		return nil, fmt.Errorf("querying families: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var family []byte
		if err := rows.Scan(&family); err != nil {
			return nil, fmt.Errorf("scanning family: %w", err)
		}
		result = append(result, string(family))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating families: %w", err)
	}
	return result, nil
}

func history(tx *sql.Tx, family string, limit int64) ([]Record, error) {
	rows, err := tx.Query(
		"SELECT id, hash, tree_ref FROM snapshot_index WHERE family = ? ORDER BY id DESC LIMIT ?",
		[]byte(family), limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot history: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		var hash []byte
		if err := rows.Scan(&rec.ID, &hash, &rec.TreeRef); err != nil {
			return nil, fmt.Errorf("scanning snapshot record: %w", err)
		}
		rec.Family = family
		rec.Hash = model.NewHash(hash)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot history: %w", err)
	}
	return result, nil
}

// Compile-time check that Index satisfies the coordinator's contract.
var _ index.Flusher = (*Index)(nil)
