package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/songbook/internal/apperr"
	"github.com/starford/songbook/internal/music"
)

// NoKey is the key_root value of songs without a known key.
const NoKey = -1

// SongRow represents a row in the songs table.
type SongRow struct {
	Path        string
	Title       string
	Artist      string
	KeyLabel    string
	KeyRoot     int
	KeyMinor    bool
	KeyDeclared bool
	Checksum    string
	Tags        []string
	Chords      []string
	UpdatedAt   time.Time
}

// ChordRow is one distinct chord of a song.
type ChordRow struct {
	Text  string
	Chord music.Chord
}

// ChordCount is a chord shape with the number of songs using it.
type ChordCount struct {
	Chord music.Chord
	Songs int
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Snippet string `json:"snippet"`
}

// ListFilter selects and orders songs for ListSongs.
type ListFilter struct {
	Limit  int
	Offset int
	Tag    string
	// KeyRoot filters by key pitch class; nil means any key.
	KeyRoot *int
	// KeyMinor filters by mode; nil means either.
	KeyMinor *bool
	// Chord filters to songs containing a chord of this shape, regardless of spelling.
	Chord *music.Chord
	// Sort is one of title, artist, path, updated_at. Defaults to title.
	Sort string
}

var sortColumns = map[string]string{
	"":           "title COLLATE NOCASE, path",
	"title":      "title COLLATE NOCASE, path",
	"artist":     "artist COLLATE NOCASE, title COLLATE NOCASE, path",
	"path":       "path",
	"updated_at": "updated_at DESC, path",
}

// UpsertSong inserts or replaces a song, its FTS entry, and its chord
// inventory within a transaction.
func (db *DB) UpsertSong(s SongRow, body string, chords []ChordRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(nonNil(s.Tags))
	chordsJSON, _ := json.Marshal(nonNil(s.Chords))
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO songs (path, title, artist, key_label, key_root, key_minor, declared, checksum, tags, chords, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			artist     = excluded.artist,
			key_label  = excluded.key_label,
			key_root   = excluded.key_root,
			key_minor  = excluded.key_minor,
			declared   = excluded.declared,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			chords     = excluded.chords,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, s.Path, s.Title, s.Artist, s.KeyLabel, s.KeyRoot, s.KeyMinor, s.KeyDeclared, s.Checksum,
		string(tagsJSON), string(chordsJSON), body, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert song: %w", err)
	}

	if err := ftsUpsert(tx, s.Path, s.Title, s.Artist, body, s.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM song_chords WHERE path = ?`, s.Path); err != nil {
		return fmt.Errorf("index: clear chords: %w", err)
	}
	if len(chords) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO song_chords (path, chord, root, quality, bass) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare chord insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range chords {
			if _, err := stmt.Exec(s.Path, c.Text, int(c.Chord.Root), c.Chord.Quality, bassValue(c.Chord)); err != nil {
				return fmt.Errorf("index: insert chord: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteSong removes a song, its FTS entry, and its chord inventory.
func (db *DB) DeleteSong(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM song_chords WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete chords: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM songs WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete song: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a song, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM songs WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed song.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM songs`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllPaths returns every indexed song path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	sums, err := db.AllChecksums()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(sums))
	for p := range sums {
		out[p] = struct{}{}
	}
	return out, nil
}

const songColumns = `path, title, artist, key_label, key_root, key_minor, declared, checksum, tags, chords, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(sc scanner) (SongRow, error) {
	var (
		r            SongRow
		tags, chords string
	)
	if err := sc.Scan(&r.Path, &r.Title, &r.Artist, &r.KeyLabel, &r.KeyRoot, &r.KeyMinor,
		&r.KeyDeclared, &r.Checksum, &tags, &chords, &r.UpdatedAt); err != nil {
		return SongRow{}, err
	}
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	_ = json.Unmarshal([]byte(chords), &r.Chords)
	return r, nil
}

// GetSong returns the indexed row for path, or apperr.ErrNotFound.
func (db *DB) GetSong(path string) (*SongRow, error) {
	r, err := scanSong(db.conn.QueryRow(`SELECT `+songColumns+` FROM songs WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get song: %w", err)
	}
	return &r, nil
}

// ListSongs returns a page of songs matching f and the total match count.
func (db *DB) ListSongs(f ListFilter) ([]SongRow, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	order, ok := sortColumns[f.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q: %w", f.Sort, apperr.ErrInvalidInput)
	}

	var (
		conds []string
		args  []any
	)
	if f.Tag != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM json_each(songs.tags) WHERE json_each.value = ?)`)
		args = append(args, f.Tag)
	}
	if f.KeyRoot != nil {
		conds = append(conds, `key_root = ?`)
		args = append(args, *f.KeyRoot)
	}
	if f.KeyMinor != nil {
		conds = append(conds, `key_minor = ?`)
		args = append(args, *f.KeyMinor)
	}
	if f.Chord != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM song_chords sc WHERE sc.path = songs.path AND sc.root = ? AND sc.quality = ? AND sc.bass = ?)`)
		args = append(args, int(f.Chord.Root), f.Chord.Quality, bassValue(*f.Chord))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM songs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count songs: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+songColumns+` FROM songs`+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list songs: %w", err)
	}
	defer rows.Close()

	var out []SongRow
	for rows.Next() {
		r, err := scanSong(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// SongsWithChord returns the paths of songs containing a chord of the same
// shape as c (root, quality and bass), whatever its spelling.
func (db *DB) SongsWithChord(c music.Chord) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT path FROM song_chords
		WHERE root = ? AND quality = ? AND bass = ?
		ORDER BY path
	`, int(c.Root), c.Quality, bassValue(c))
	if err != nil {
		return nil, fmt.Errorf("index: songs with chord: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ChordStats returns every chord shape in the library with its song count,
// most used first.
func (db *DB) ChordStats() ([]ChordCount, error) {
	rows, err := db.conn.Query(`
		SELECT root, quality, bass, count(DISTINCT path) AS n
		FROM song_chords
		GROUP BY root, quality, bass
		ORDER BY n DESC, root, quality, bass
	`)
	if err != nil {
		return nil, fmt.Errorf("index: chord stats: %w", err)
	}
	defer rows.Close()

	var out []ChordCount
	for rows.Next() {
		var (
			root, bass, n int
			quality       string
		)
		if err := rows.Scan(&root, &quality, &bass, &n); err != nil {
			return nil, err
		}
		c := music.Chord{Root: music.PitchClass(root), Quality: quality}
		if bass >= 0 {
			c.Bass = music.PitchClass(bass)
			c.HasBass = true
		}
		out = append(out, ChordCount{Chord: c, Songs: n})
	}
	return out, rows.Err()
}

func bassValue(c music.Chord) int {
	if !c.HasBass {
		return -1
	}
	return int(c.Bass)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
