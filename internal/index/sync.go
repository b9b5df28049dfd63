package index

import (
	"log/slog"
	"time"

	"github.com/starford/songbook/internal/checksum"
	"github.com/starford/songbook/internal/music"
	"github.com/starford/songbook/internal/parser"
	"github.com/starford/songbook/internal/storage"
)

// Sync walks the library and brings the index up to date:
//   - new/changed songs are parsed and upserted
//   - songs removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	var indexed, removed int
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteSong(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("sync: done",
		slog.Int("songs", len(metas)),
		slog.Int("indexed", indexed),
		slog.Int("removed", removed))
	return nil
}

// IndexFile parses a chord sheet and upserts it into the index.
func IndexFile(db *DB, path string, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	row, chords := BuildRow(path, data, res)
	return db.UpsertSong(row, res.Body, chords)
}

// BuildRow converts a parse result into an index row and chord inventory.
// Key labels use the spelling of the chord sheet's own key: flat when the
// declared key text or the first chord is spelled with a flat.
func BuildRow(path string, data []byte, res *parser.Result) (SongRow, []ChordRow) {
	row := SongRow{
		Path:      path,
		Title:     res.Title,
		Artist:    res.Artist,
		KeyRoot:   NoKey,
		Checksum:  checksum.Sum(data),
		Tags:      res.Tags,
		Chords:    res.Chords,
		UpdatedAt: time.Now(),
	}
	if k, ok := res.Key(); ok {
		row.KeyRoot = int(k.Root)
		row.KeyMinor = k.Minor
		row.KeyDeclared = res.DeclaredKey != nil
		row.KeyLabel = k.Label(SpellingOf(res))
	}

	chords := make([]ChordRow, 0, len(res.Chords))
	for _, text := range res.Chords {
		c, err := music.ParseChord(text)
		if err != nil {
			continue
		}
		chords = append(chords, ChordRow{Text: text, Chord: c})
	}
	return row, chords
}

// SpellingOf guesses the spelling a chord sheet is written in from its key
// text: flat when the key (declared, else first chord) carries a 'b' accidental.
func SpellingOf(res *parser.Result) music.Spelling {
	text := ""
	if raw, ok := res.Frontmatter["key"].(string); ok && res.DeclaredKey != nil {
		text = raw
	} else if len(res.Chords) > 0 {
		text = res.Chords[0]
	}
	return music.SpellingOf(text)
}
