package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/songbook/internal/index"
	"github.com/starford/songbook/internal/models"
	"github.com/starford/songbook/internal/music"
	"github.com/starford/songbook/internal/songservice"
)

// maxText bounds chord text accepted in request bodies.
const maxText = 1 << 20

// CreateSongRequest is the request body for creating a song.
type CreateSongRequest struct {
	Path    string `json:"path" example:"folk/greensleeves.md"`
	Content string `json:"content" example:"---\ntitle: Greensleeves\n---\n[Am]Alas my [G]love"`
}

// Validate validates the create request.
func (r CreateSongRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Content, validation.Required, validation.Length(0, maxText)),
	)
}

// UpdateSongRequest is the request body for updating a song.
type UpdateSongRequest struct {
	Content string `json:"content" example:"[G]Amazing [C]grace"`
}

// Validate validates the update request.
func (r UpdateSongRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required, validation.Length(0, maxText)),
	)
}

// TransposeRequest is the request body for POST /transpose and
// POST /transpose/{path}. To, when set, picks the offset that moves the
// song's key to that key by the shortest path and overrides Semitones.
type TransposeRequest struct {
	Text      string `json:"text,omitempty" example:"[C]Hello [G/B]world"`
	Semitones int    `json:"semitones" example:"2"`
	Spelling  string `json:"spelling,omitempty" example:"flat"`
	To        string `json:"to,omitempty" example:"Bb"`
}

// Validate validates the transpose request.
func (r TransposeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Length(0, maxText)),
		validation.Field(&r.Semitones, validation.Min(-music.MaxOffset), validation.Max(music.MaxOffset)),
		validation.Field(&r.Spelling, validation.By(isSpelling)),
		validation.Field(&r.To, validation.By(isKey)),
	)
}

// TransposeResponse is returned by POST /transpose.
type TransposeResponse struct {
	Text        string `json:"text"`
	OriginalKey string `json:"original_key,omitempty"`
	Key         string `json:"key,omitempty"`
	Camelot     string `json:"camelot,omitempty"`
	Semitones   int    `json:"semitones"`
	Spelling    string `json:"spelling"`
}

// KeyRequest is the request body for POST /key.
type KeyRequest struct {
	Text string `json:"text" example:"[Em]Hello [C]world"`
}

// Validate validates the key request.
func (r KeyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Length(0, maxText)),
	)
}

// KeyResponse is returned by POST /key. PitchClass is -1 when no key was found.
type KeyResponse struct {
	Key        string `json:"key,omitempty"`
	PitchClass int    `json:"pitch_class"`
	Minor      bool   `json:"minor"`
	Camelot    string `json:"camelot,omitempty"`
	Found      bool   `json:"found"`
}

// SongDetail is the full song response type (aliased from the domain layer).
type SongDetail = songservice.SongDetail

// SongListItem is a lightweight item in a list response (aliased from the domain layer).
type SongListItem = songservice.SongListItem

// TransposedSong is a stored song rendered at an offset (aliased from the domain layer).
type TransposedSong = songservice.TransposedSong

// SongListResponse wraps paginated song listings.
type SongListResponse struct {
	Songs []SongListItem `json:"songs"`
	Total int            `json:"total" example:"42"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// ChordsResponse wraps the library chord inventory.
type ChordsResponse struct {
	Chords []models.ChordUsage `json:"chords"`
}

// ChordSongsResponse lists songs that use one chord.
type ChordSongsResponse struct {
	Chord string   `json:"chord" example:"Bbm"`
	Songs []string `json:"songs"`
}

func isSpelling(v any) error {
	s, _ := v.(string)
	if _, err := music.ParseSpelling(s); err != nil {
		return errors.New("must be sharp or flat")
	}
	return nil
}

func isKey(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := music.ParseKey(s); err != nil {
		return errors.New("must be a key such as G, Em or Bb minor")
	}
	return nil
}
