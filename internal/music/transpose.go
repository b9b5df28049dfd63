package music

import "strings"

// MaxOffset bounds a running transposition offset; see WrapOffset.
const MaxOffset = 12

// TransposeChord shifts the root (and bass, if any) of c by semitones and
// renders the result with spelling s. The quality is copied verbatim.
// Any integer offset is accepted; offsets are periodic in 12.
func TransposeChord(c Chord, semitones int, s Spelling) string {
	var b strings.Builder
	b.WriteString(c.Root.Add(semitones).Name(s))
	b.WriteString(c.Quality)
	if c.HasBass {
		b.WriteByte('/')
		b.WriteString(c.Bass.Add(semitones).Name(s))
	}
	return b.String()
}

// WrapOffset folds a running offset back into [-MaxOffset, MaxOffset]:
// above 12 subtracts 12, below -12 adds 12.
func WrapOffset(offset int) int {
	for offset > MaxOffset {
		offset -= 12
	}
	for offset < -MaxOffset {
		offset += 12
	}
	return offset
}

// Transpose rewrites every chord marker in text, shifting it by semitones and
// spelling it with s. Markers whose content does not parse, and all text
// outside markers, are copied through byte for byte. The scan is a single
// pass over the input, so substituted output is never re-examined.
func Transpose(text string, semitones int, s Spelling) string {
	return Join(TransposeSpans(Segment(text), semitones, s))
}

// TransposeSpans returns a copy of spans with every parsable marker transposed.
func TransposeSpans(spans []Span, semitones int, s Spelling) []Span {
	out := make([]Span, len(spans))
	for i, sp := range spans {
		out[i] = sp
		if !sp.Marker {
			continue
		}
		c, err := ParseChord(sp.Inner)
		if err != nil {
			continue
		}
		out[i] = markerSpan(TransposeChord(c, semitones, s))
	}
	return out
}
