// Package songservice coordinates the chord-sheet library on disk, the SQLite
// index and the transposition engine. The REST API, MCP server and shell all
// go through it.
package songservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/starford/songbook/internal/apperr"
	"github.com/starford/songbook/internal/checksum"
	"github.com/starford/songbook/internal/index"
	"github.com/starford/songbook/internal/models"
	"github.com/starford/songbook/internal/music"
	"github.com/starford/songbook/internal/parser"
	"github.com/starford/songbook/internal/session"
	"github.com/starford/songbook/internal/storage"
)

// SongDetail is the full representation of a song.
type SongDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Artist      string         `json:"artist,omitempty"`
	Key         string         `json:"key,omitempty"`
	KeyDeclared bool           `json:"key_declared"`
	Camelot     string         `json:"camelot,omitempty"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Chords      []string       `json:"chords"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SongListItem is a lightweight item in a list response.
type SongListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist,omitempty"`
	Key       string    `json:"key,omitempty"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListOptions selects songs for ListSongs. Key and Chord are given as text
// ("Bb", "F# minor", "D/F#") and matched regardless of spelling.
type ListOptions struct {
	Limit  int
	Offset int
	Tag    string
	Key    string
	Chord  string
	Sort   string
}

// TransposeOptions controls TransposeSong and SaveTransposed. When Target is
// set it wins over Semitones. A nil Spelling uses the service default.
type TransposeOptions struct {
	Semitones int
	Spelling  *music.Spelling
	Target    *music.PitchClass
}

// TransposedSong is a stored song rendered at an offset.
type TransposedSong struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Semitones   int            `json:"semitones"`
	Spelling    music.Spelling `json:"spelling"`
	OriginalKey string         `json:"original_key,omitempty"`
	Key         string         `json:"key,omitempty"`
	Camelot     string         `json:"camelot,omitempty"`
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       *index.DB
	spelling music.Spelling
}

// NewService creates a new song service. spelling is the default used when
// a caller does not choose one.
func NewService(store storage.Provider, db *index.DB, spelling music.Spelling) *Service {
	return &Service{store: store, db: db, spelling: spelling}
}

// DefaultSpelling returns the spelling used when none is requested.
func (s *Service) DefaultSpelling() music.Spelling { return s.spelling }

// GetSong reads a song from storage and parses it.
func (s *Service) GetSong(_ context.Context, p string) (*SongDetail, error) {
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.buildSongDetail(p, data)
}

// CreateSong writes a new song and indexes it.
func (s *Service) CreateSong(_ context.Context, p string, content []byte) (*SongDetail, error) {
	if !storage.IsSong(path.Base(p)) {
		return nil, fmt.Errorf("songservice: %q is not a %s file: %w", p, storage.SongExt, apperr.ErrInvalidInput)
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(p, content); err != nil {
		return nil, err
	}
	return s.buildSongDetail(p, content)
}

// UpdateSong writes updated content with optimistic concurrency. An empty
// ifMatch skips the check.
func (s *Service) UpdateSong(_ context.Context, p string, content []byte, ifMatch string) (*SongDetail, error) {
	existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(p, content); err != nil {
		return nil, err
	}
	return s.buildSongDetail(p, content)
}

// DeleteSong removes a song from storage and index.
func (s *Service) DeleteSong(_ context.Context, p string) error {
	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteSong(p)
}

// ListSongs returns paginated songs matching opts.
func (s *Service) ListSongs(_ context.Context, opts ListOptions) ([]SongListItem, int, error) {
	f := index.ListFilter{
		Limit:  opts.Limit,
		Offset: opts.Offset,
		Tag:    opts.Tag,
		Sort:   opts.Sort,
	}
	if opts.Key != "" {
		k, err := music.ParseKey(opts.Key)
		if err != nil {
			return nil, 0, fmt.Errorf("songservice: key %q: %w", opts.Key, apperr.ErrInvalidInput)
		}
		root, minor := int(k.Root), k.Minor
		f.KeyRoot = &root
		f.KeyMinor = &minor
	}
	if opts.Chord != "" {
		c, err := music.ParseChord(opts.Chord)
		if err != nil {
			return nil, 0, fmt.Errorf("songservice: chord %q: %w", opts.Chord, apperr.ErrInvalidInput)
		}
		f.Chord = &c
	}

	rows, total, err := s.db.ListSongs(f)
	if err != nil {
		return nil, 0, err
	}
	items := make([]SongListItem, len(rows))
	for i, r := range rows {
		items[i] = SongListItem{
			Path:      r.Path,
			Title:     r.Title,
			Artist:    r.Artist,
			Key:       r.KeyLabel,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Chords returns every chord in the library with the number of songs using
// it, rendered in spelling. Enharmonic spellings are counted together.
func (s *Service) Chords(_ context.Context, spelling music.Spelling) ([]models.ChordUsage, error) {
	stats, err := s.db.ChordStats()
	if err != nil {
		return nil, err
	}
	out := make([]models.ChordUsage, len(stats))
	for i, st := range stats {
		out[i] = models.ChordUsage{Chord: st.Chord.Render(spelling), Songs: st.Songs}
	}
	return out, nil
}

// SongsWithChord returns the paths of songs that use chord in any spelling.
func (s *Service) SongsWithChord(_ context.Context, chord string) ([]string, error) {
	c, err := music.ParseChord(chord)
	if err != nil {
		return nil, fmt.Errorf("songservice: chord %q: %w", chord, apperr.ErrInvalidInput)
	}
	paths, err := s.db.SongsWithChord(c)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(paths), nil
}

// TransposeSong renders a stored song transposed without writing it. The
// frontmatter is returned untouched; only chord markers in the body move.
func (s *Service) TransposeSong(_ context.Context, p string, opts TransposeOptions) (*TransposedSong, error) {
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	view, err := s.render(res, opts)
	if err != nil {
		return nil, err
	}
	return &TransposedSong{
		Path:        p,
		Title:       res.Title,
		Content:     res.Header + view.Text,
		Semitones:   view.Offset,
		Spelling:    view.Spelling,
		OriginalKey: view.OriginalKey,
		Key:         view.CurrentKey,
		Camelot:     view.Camelot,
	}, nil
}

// SaveTransposed transposes a stored song and writes it back. When the key
// is known the frontmatter key is set to the new key.
func (s *Service) SaveTransposed(_ context.Context, p string, opts TransposeOptions, ifMatch string) (*SongDetail, error) {
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(data) {
		return nil, apperr.ErrConflict
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	view, err := s.render(res, opts)
	if err != nil {
		return nil, err
	}

	out := []byte(res.Header + view.Text)
	if view.KeyFound {
		if out, err = parser.SetKey(out, view.CurrentKey); err != nil {
			return nil, fmt.Errorf("songservice: set key: %w", err)
		}
	}
	if err := s.store.Write(p, out); err != nil {
		return nil, err
	}
	if err := s.IndexFile(p, out); err != nil {
		return nil, err
	}
	return s.buildSongDetail(p, out)
}

// render runs the parsed body through a one-shot session.
func (s *Service) render(res *parser.Result, opts TransposeOptions) (session.View, error) {
	spelling := s.spelling
	if opts.Spelling != nil {
		spelling = *opts.Spelling
	}
	sess := session.New(spelling)
	if res.DeclaredKey != nil {
		sess.DeclareKey(*res.DeclaredKey)
	}
	if opts.Target != nil {
		if _, ok := sess.ToKey(res.Body, *opts.Target); !ok {
			return session.View{}, apperr.ErrNoKey
		}
	} else {
		sess.SetOffset(opts.Semitones)
	}
	return sess.Render(res.Body), nil
}

// IndexFile parses data and upserts it into the index.
func (s *Service) IndexFile(p string, data []byte) error {
	return index.IndexFile(s.db, p, data)
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// buildSongDetail constructs a SongDetail from raw data without re-reading the file.
func (s *Service) buildSongDetail(p string, data []byte) (*SongDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	d := &SongDetail{
		Path:        p,
		Title:       res.Title,
		Artist:      res.Artist,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Chords:      nonNilSlice(res.Chords),
		Frontmatter: res.Frontmatter,
		UpdatedAt:   time.Now(),
	}
	if k, ok := res.Key(); ok {
		d.Key = k.Label(index.SpellingOf(res))
		d.KeyDeclared = res.DeclaredKey != nil
		d.Camelot = k.Camelot()
	}
	return d, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
