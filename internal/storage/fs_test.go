package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/songbook/internal/checksum"
)

func tempLibrary(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempLibrary(t)
	content := []byte("# Hallelujah\n[C]I heard there was a [Am]secret chord\n")
	if err := s.Write("cohen/hallelujah.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("cohen/hallelujah.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDeleteAndMove(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("a.md", []byte("[G]"))
	if err := s.Move("a.md", "folk/a.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.Read("a.md"); err == nil {
		t.Error("old path should not exist")
	}
	if err := s.Delete("folk/a.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("folk/a.md"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read after delete err = %v, want not-exist", err)
	}
}

func TestList_SongsOnly(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("a.md", []byte("[A]"))
	_ = s.Write("sub/b.md", []byte("[B]"))
	_ = s.Write("readme.txt", []byte("not a song"))
	_ = s.Write(".git/notes.md", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(items), items)
	}
	for _, it := range items {
		if it.Path == "sub/b.md" && it.Checksum != checksum.Sum([]byte("[B]")) {
			t.Errorf("checksum for %s = %s", it.Path, it.Checksum)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempLibrary(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error reading %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error writing %q", p)
		}
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("song.md", []byte("v1"))
	if err := s.Write("song.md", []byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("song.md")
	if string(got) != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".songbook-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_BadRoot(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
	f, _ := os.CreateTemp(t.TempDir(), "songbook-*")
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestIsSong(t *testing.T) {
	for name, want := range map[string]bool{"a.md": true, ".md": false, ".hidden.md": false, "a.txt": false, "md": false} {
		if got := IsSong(name); got != want {
			t.Errorf("IsSong(%q) = %v, want %v", name, got, want)
		}
	}
}
