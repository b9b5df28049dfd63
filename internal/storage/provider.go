// Package storage defines the song library file-system abstraction.
package storage

import "github.com/starford/songbook/internal/models"

// SongExt is the file extension of chord sheets in the library.
const SongExt = ".md"

// Provider is the interface for library file operations. All paths are
// relative to the library root.
type Provider interface {
	// List returns metadata for every chord sheet under dir.
	List(dir string) ([]models.SongMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}

// IsSong reports whether a file name is a chord sheet.
func IsSong(name string) bool {
	return len(name) > len(SongExt) && name[len(name)-len(SongExt):] == SongExt && name[0] != '.'
}
