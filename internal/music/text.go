package music

import (
	"regexp"
	"strings"
)

// Chord marker delimiters.
const (
	MarkerOpen  = "["
	MarkerClose = "]"
)

// markerRe matches a bracketed marker on a single line with no nested brackets.
var markerRe = regexp.MustCompile(`\[([^\[\]\n]*)\]`)

// Span is one piece of song text: either literal text or a chord marker.
// Text always holds the exact source bytes; Inner is the marker content.
type Span struct {
	Text   string
	Marker bool
	Inner  string
}

func markerSpan(inner string) Span {
	return Span{Text: MarkerOpen + inner + MarkerClose, Marker: true, Inner: inner}
}

// Segment splits text into literal and marker spans. Joining the spans
// reproduces text exactly.
func Segment(text string) []Span {
	locs := markerRe.FindAllStringSubmatchIndex(text, -1)
	spans := make([]Span, 0, 2*len(locs)+1)
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			spans = append(spans, Span{Text: text[last:loc[0]]})
		}
		spans = append(spans, Span{Text: text[loc[0]:loc[1]], Marker: true, Inner: text[loc[2]:loc[3]]})
		last = loc[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}
	return spans
}

// Join concatenates span texts.
func Join(spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		b.WriteString(sp.Text)
	}
	return b.String()
}

// Chords returns the parsable chord markers of text, in order of first
// appearance and without duplicates. Chords are compared by their text.
func Chords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sp := range Segment(text) {
		if !sp.Marker {
			continue
		}
		if _, err := ParseChord(sp.Inner); err != nil {
			continue
		}
		if _, dup := seen[sp.Inner]; dup {
			continue
		}
		seen[sp.Inner] = struct{}{}
		out = append(out, sp.Inner)
	}
	return out
}
