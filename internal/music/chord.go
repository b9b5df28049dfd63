package music

import (
	"errors"
	"regexp"
)

// ErrUnparsable reports chord or key text that does not follow the chord grammar.
var ErrUnparsable = errors.New("music: unparsable chord")

// chordRe is <root><suffix>(/<bass>)? with the suffix restricted to known
// quality tokens. Root letters are case-insensitive; the suffix is kept as written.
var chordRe = regexp.MustCompile(`^([A-Ga-g][#b]?)((?:maj|min|dim|aug|sus[24]?|add[0-9]+|m|M|[0-9]+|[#b][0-9]+|\+|°|ø)*)(?:/([A-Ga-g][#b]?))?$`)

// Chord is a parsed chord symbol.
type Chord struct {
	Root    PitchClass
	Quality string
	Bass    PitchClass
	HasBass bool
}

// ParseChord parses chord text such as "G", "F#m7", "Bbmaj7" or "D/F#".
// It returns ErrUnparsable when the text does not match the grammar; callers
// are expected to keep the original text in that case.
func ParseChord(text string) (Chord, error) {
	m := chordRe.FindStringSubmatch(text)
	if m == nil {
		return Chord{}, ErrUnparsable
	}
	root, ok := LookupNote(m[1])
	if !ok {
		return Chord{}, ErrUnparsable
	}
	c := Chord{Root: root, Quality: m[2]}
	if m[3] != "" {
		bass, ok := LookupNote(m[3])
		if !ok {
			return Chord{}, ErrUnparsable
		}
		c.Bass = bass
		c.HasBass = true
	}
	return c, nil
}

// String renders the chord with sharp spelling.
func (c Chord) String() string {
	return c.Render(Sharp)
}

// Render renders the chord untransposed under the given spelling.
func (c Chord) Render(s Spelling) string {
	return TransposeChord(c, 0, s)
}

// IsMinor reports whether the quality marks a minor triad (m, min, m7, ...),
// as opposed to maj/M qualities.
func (c Chord) IsMinor() bool {
	q := c.Quality
	if len(q) >= 3 && q[:3] == "maj" {
		return false
	}
	return len(q) > 0 && q[0] == 'm'
}
