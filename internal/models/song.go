// Package models defines the domain types for the songbook.
package models

import "time"

// SongMetadata is a lightweight representation returned by storage listings.
type SongMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChordUsage counts the songs a chord symbol appears in.
type ChordUsage struct {
	Chord string `json:"chord"`
	Songs int    `json:"songs"`
}
