// Package session holds the mutable transposition state of one interactive
// client (offset, spelling, declared key) and renders text through the
// stateless music package.
package session

import (
	"github.com/starford/songbook/internal/music"
)

// View is the rendered state for a piece of song text.
type View struct {
	Text        string         `json:"text"`
	Offset      int            `json:"offset"`
	Spelling    music.Spelling `json:"spelling"`
	OriginalKey string         `json:"original_key,omitempty"`
	CurrentKey  string         `json:"key,omitempty"`
	Camelot     string         `json:"camelot,omitempty"`
	KeyFound    bool           `json:"key_found"`
}

// Session is a transposition session. It is not safe for concurrent use;
// each UI owns its own session.
type Session struct {
	offset   int
	spelling music.Spelling
	declared *music.Key
}

// New returns a session at offset 0 with the given spelling.
func New(spelling music.Spelling) *Session {
	return &Session{spelling: spelling}
}

// Offset returns the current semitone offset, always within [-12, 12].
func (s *Session) Offset() int { return s.offset }

// Spelling returns the current spelling.
func (s *Session) Spelling() music.Spelling { return s.spelling }

// DeclaredKey returns the declared key override, if any.
func (s *Session) DeclaredKey() (music.Key, bool) {
	if s.declared == nil {
		return music.Key{}, false
	}
	return *s.declared, true
}

// Up raises the offset by one semitone.
func (s *Session) Up() int { return s.Shift(1) }

// Down lowers the offset by one semitone.
func (s *Session) Down() int { return s.Shift(-1) }

// Shift adds n semitones to the running offset.
func (s *Session) Shift(n int) int {
	s.offset = music.WrapOffset(s.offset + n)
	return s.offset
}

// SetOffset replaces the offset.
func (s *Session) SetOffset(n int) int {
	s.offset = music.WrapOffset(n)
	return s.offset
}

// Reset returns the offset to 0. Spelling and declared key are kept.
func (s *Session) Reset() { s.offset = 0 }

// SetSpelling changes the spelling.
func (s *Session) SetSpelling(sp music.Spelling) { s.spelling = sp }

// ToggleSpelling flips between sharp and flat spelling.
func (s *Session) ToggleSpelling() music.Spelling {
	s.spelling = s.spelling.Toggle()
	return s.spelling
}

// DeclareKey overrides key detection with k.
func (s *Session) DeclareKey(k music.Key) {
	s.declared = &k
}

// ClearKey drops the declared key; detection applies again.
func (s *Session) ClearKey() { s.declared = nil }

// SourceKey returns the key of the untransposed text: the declared key when
// set, otherwise the first-chord heuristic.
func (s *Session) SourceKey(text string) (music.Key, bool) {
	if s.declared != nil {
		return *s.declared, true
	}
	return music.ImpliedKey(text)
}

// ToKey sets the offset so that text's source key lands on target by the
// shortest path. It returns false, leaving the offset alone, when no source
// key is known.
func (s *Session) ToKey(text string, target music.PitchClass) (int, bool) {
	k, ok := s.SourceKey(text)
	if !ok {
		return s.offset, false
	}
	s.offset = music.TransposeToTargetKey(k.Root, target)
	return s.offset, true
}

// Render transposes text with the current offset and spelling.
func (s *Session) Render(text string) View {
	v := View{
		Text:     music.Transpose(text, s.offset, s.spelling),
		Offset:   s.offset,
		Spelling: s.spelling,
	}
	if k, ok := s.SourceKey(text); ok {
		cur := k.Transpose(s.offset)
		v.KeyFound = true
		v.OriginalKey = k.Label(s.spelling)
		v.CurrentKey = cur.Label(s.spelling)
		v.Camelot = cur.Camelot()
	}
	return v
}

// Table builds the reference table for the current spelling.
func (s *Session) Table() music.ReferenceTable {
	return music.BuildReferenceTable(s.spelling)
}
