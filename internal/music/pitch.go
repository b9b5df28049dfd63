// Package music implements chord parsing, transposition, key detection and
// the transposition reference table. Everything here is a pure function over
// its inputs; the only package state is a set of immutable lookup tables.
package music

import (
	"fmt"
	"strings"
)

// PitchClass is one of the twelve pitch classes, 0 (C) through 11 (B).
type PitchClass int

// Normalize maps any integer onto [0,11].
func Normalize(n int) PitchClass {
	return PitchClass(((n % 12) + 12) % 12)
}

// Add shifts p by n semitones, wrapping around the octave.
func (p PitchClass) Add(n int) PitchClass {
	return Normalize(int(Normalize(int(p))) + n%12)
}

// Name renders p with the given spelling.
func (p PitchClass) Name(s Spelling) string {
	return s.names()[Normalize(int(p))]
}

// Spelling selects the enharmonic names used to render pitch classes.
type Spelling int

const (
	Sharp Spelling = iota
	Flat
)

var (
	sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	flatNames  = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

	// naturals maps upper-case note letters to their pitch class.
	naturals = map[byte]PitchClass{
		'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
	}
)

func (s Spelling) names() *[12]string {
	if s == Flat {
		return &flatNames
	}
	return &sharpNames
}

// Names returns a copy of the 12 note names for the spelling in canonical order.
func (s Spelling) Names() [12]string {
	return *s.names()
}

// String implements fmt.Stringer.
func (s Spelling) String() string {
	if s == Flat {
		return "flat"
	}
	return "sharp"
}

// Toggle returns the other spelling.
func (s Spelling) Toggle() Spelling {
	if s == Flat {
		return Sharp
	}
	return Flat
}

// SpellingOf returns the spelling a note or chord name is written in:
// Flat when its root carries a 'b' accidental ("Bb", "Ebm7"), Sharp otherwise.
func SpellingOf(name string) Spelling {
	if len(name) > 1 && name[1] == 'b' {
		return Flat
	}
	return Sharp
}

// ParseSpelling accepts "sharp", "flat", "#" or "b" (case-insensitive).
// An empty string yields Sharp.
func ParseSpelling(s string) (Spelling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sharp", "sharps", "#":
		return Sharp, nil
	case "flat", "flats", "b":
		return Flat, nil
	}
	return Sharp, fmt.Errorf("music: unknown spelling %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Spelling) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Spelling) UnmarshalText(b []byte) error {
	v, err := ParseSpelling(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// LookupNote resolves a note name (letter plus optional '#' or 'b') to a
// pitch class. Theoretical spellings such as E#, Fb and Cb are accepted.
func LookupNote(name string) (PitchClass, bool) {
	if len(name) == 0 || len(name) > 2 {
		return 0, false
	}
	pc, ok := naturals[upper(name[0])]
	if !ok {
		return 0, false
	}
	if len(name) == 1 {
		return pc, true
	}
	switch name[1] {
	case '#':
		return pc.Add(1), true
	case 'b':
		return pc.Add(-1), true
	}
	return 0, false
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
