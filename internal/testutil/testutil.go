// Package testutil provides shared test helpers for setting up song libraries and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/songbook/internal/index"
	"github.com/starford/songbook/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "songbook-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLibrary creates a temporary library directory with a storage.Provider.
func TestLibrary(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// SeedLibrary writes songs (path → content) into store and syncs them into db.
func SeedLibrary(t *testing.T, store storage.Provider, db *index.DB, songs map[string]string) {
	t.Helper()
	for p, content := range songs {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	if err := index.Sync(db, store, slog.New(slog.NewJSONHandler(io.Discard, nil))); err != nil {
		t.Fatalf("sync: %v", err)
	}
}
