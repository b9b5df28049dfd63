package music

import (
	"strconv"
	"strings"
)

// DetectKey returns the root of the first chord marker in text that parses.
// This is a first-chord heuristic: quality, frequency and position of later
// chords are never considered. ok is false when no marker parses.
func DetectKey(text string) (key PitchClass, ok bool) {
	c, ok := FirstChord(text)
	if !ok {
		return 0, false
	}
	return c.Root, true
}

// FirstChord returns the first chord marker in text that parses.
func FirstChord(text string) (Chord, bool) {
	for _, sp := range Segment(text) {
		if !sp.Marker {
			continue
		}
		if c, err := ParseChord(sp.Inner); err == nil {
			return c, true
		}
	}
	return Chord{}, false
}

// ImpliedKey is DetectKey with a mode: the key is minor when the first
// chord is minor. The root is always DetectKey's.
func ImpliedKey(text string) (Key, bool) {
	c, ok := FirstChord(text)
	if !ok {
		return Key{}, false
	}
	return Key{Root: c.Root, Minor: c.IsMinor()}, true
}

// TransposeToTargetKey returns the semitone offset moving current to target
// along the shorter way around the pitch-class circle, in [-6, 6]. A tritone
// resolves to +6.
func TransposeToTargetKey(current, target PitchClass) int {
	offset := (int(Normalize(int(target))) - int(Normalize(int(current))) + 12) % 12
	if offset > 6 {
		offset -= 12
	}
	return offset
}

// Key is a tonal center with a mode.
type Key struct {
	Root  PitchClass
	Minor bool
}

// ParseKey parses declared key text: "G", "Em", "Bbm", "F# minor", "C major".
func ParseKey(s string) (Key, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return Key{}, ErrUnparsable
	}
	c, err := ParseChord(fields[0])
	if err != nil || c.HasBass {
		return Key{}, ErrUnparsable
	}
	k := Key{Root: c.Root}
	switch c.Quality {
	case "":
	case "m", "min":
		k.Minor = true
	case "M", "maj":
	default:
		return Key{}, ErrUnparsable
	}
	if len(fields) == 2 {
		if c.Quality != "" {
			return Key{}, ErrUnparsable
		}
		switch strings.ToLower(fields[1]) {
		case "minor", "min", "m":
			k.Minor = true
		case "major", "maj":
		default:
			return Key{}, ErrUnparsable
		}
	}
	return k, nil
}

// Transpose returns k shifted by semitones.
func (k Key) Transpose(semitones int) Key {
	return Key{Root: k.Root.Add(semitones), Minor: k.Minor}
}

// Label renders k as a chord-style key name, e.g. "Eb" or "F#m".
func (k Key) Label(s Spelling) string {
	if k.Minor {
		return k.Root.Name(s) + "m"
	}
	return k.Root.Name(s)
}

// Camelot returns the Camelot wheel code of k: "8B" for C major, "8A" for A minor.
func (k Key) Camelot() string {
	major := k.Root
	letter := "B"
	if k.Minor {
		major = k.Root.Add(3)
		letter = "A"
	}
	n := (int(major)*7+7)%12 + 1
	return strconv.Itoa(n) + letter
}
