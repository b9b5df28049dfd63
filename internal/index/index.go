package index

import "github.com/starford/songbook/internal/music"

// SongIndex defines the interface for song indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type SongIndex interface {
	UpsertSong(s SongRow, body string, chords []ChordRow) error
	DeleteSong(path string) error
	GetChecksum(path string) (string, error)
	GetSong(path string) (*SongRow, error)
	ListSongs(f ListFilter) ([]SongRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	SongsWithChord(c music.Chord) ([]string, error)
	ChordStats() ([]ChordCount, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies SongIndex at compile time.
var _ SongIndex = (*DB)(nil)
