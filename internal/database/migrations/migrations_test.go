package migrations

import (
	"testing"
	"testing/fstest"

	"hoard/internal/database"
)

var testMigrations = fstest.MapFS{
	"files/1_create_things.up.sql": &fstest.MapFile{
		Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT);"),
	},
	"files/1_create_things.down.sql": &fstest.MapFile{
		Data: []byte("DROP TABLE things;"),
	},
	"files/2_add_column.up.sql": &fstest.MapFile{
		Data: []byte("ALTER TABLE things ADD COLUMN size INTEGER;"),
	},
	"files/2_add_column.down.sql": &fstest.MapFile{
		Data: []byte("ALTER TABLE things DROP COLUMN size;"),
	},
}

func TestUpAndCheckStatus(t *testing.T) {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	// Fresh database is not at the latest version.
	if err := CheckStatus(db, testMigrations, "files"); err == nil {
		t.Error("CheckStatus() on unmigrated database = nil, want error")
	}

	if err := Up(db, testMigrations, "files"); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	if err := CheckStatus(db, testMigrations, "files"); err != nil {
		t.Errorf("CheckStatus() after Up = %v, want nil", err)
	}

	// Both migrations applied: the second migration's column exists.
	if _, err := db.Exec("INSERT INTO things (name, size) VALUES ('a', 1)"); err != nil {
		t.Errorf("schema incomplete after migration: %v", err)
	}
}

func TestUp_IsIdempotent(t *testing.T) {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := Up(db, testMigrations, "files"); err != nil {
		t.Fatalf("first Up() error = %v", err)
	}
	if err := Up(db, testMigrations, "files"); err != nil {
		t.Fatalf("second Up() error = %v", err)
	}
}
