package music

import (
	"errors"
	"testing"
)

func TestLookupNote_Enharmonics(t *testing.T) {
	cases := map[string]PitchClass{
		"C": 0, "B#": 0, "c": 0,
		"C#": 1, "Db": 1,
		"E": 4, "Fb": 4,
		"F": 5, "E#": 5,
		"Gb": 6, "F#": 6,
		"Ab": 8, "G#": 8,
		"Bb": 10, "bb": 10,
		"B": 11, "Cb": 11,
	}
	for name, want := range cases {
		got, ok := LookupNote(name)
		if !ok {
			t.Errorf("LookupNote(%q) not resolved", name)
			continue
		}
		if got != want {
			t.Errorf("LookupNote(%q) = %d, want %d", name, got, want)
		}
	}
	for _, bad := range []string{"", "H", "C##", "Cx", "X"} {
		if _, ok := LookupNote(bad); ok {
			t.Errorf("LookupNote(%q) resolved, want failure", bad)
		}
	}
}

func TestPitchClassAdd_Wraps(t *testing.T) {
	if got := PitchClass(11).Add(1); got != 0 {
		t.Errorf("B+1 = %d, want 0", got)
	}
	if got := PitchClass(0).Add(-1); got != 11 {
		t.Errorf("C-1 = %d, want 11", got)
	}
	if got := PitchClass(2).Add(-26); got != 0 {
		t.Errorf("D-26 = %d, want 0", got)
	}
}

func TestParseChord(t *testing.T) {
	c, err := ParseChord("D/F#")
	if err != nil {
		t.Fatalf("ParseChord: %v", err)
	}
	if c.Root != 2 || !c.HasBass || c.Bass != 6 || c.Quality != "" {
		t.Errorf("D/F# parsed as %+v", c)
	}

	c, err = ParseChord("Bbmaj7")
	if err != nil {
		t.Fatalf("ParseChord: %v", err)
	}
	if c.Root != 10 || c.Quality != "maj7" || c.HasBass {
		t.Errorf("Bbmaj7 parsed as %+v", c)
	}

	for _, ok := range []string{"G", "Am", "F#m7b5", "Csus4", "Cadd9", "E7#9", "Cdim7", "C+", "CM7", "g", "Ebmin", "Am/G"} {
		if _, err := ParseChord(ok); err != nil {
			t.Errorf("ParseChord(%q) failed: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "Xyz", "H7", "add", "C/", "C/X", " G", "G ", "Chorus", "x"} {
		if _, err := ParseChord(bad); !errors.Is(err, ErrUnparsable) {
			t.Errorf("ParseChord(%q) err = %v, want ErrUnparsable", bad, err)
		}
	}
}

func TestChordIsMinor(t *testing.T) {
	for text, want := range map[string]bool{"Am": true, "Am7": true, "Cmin": true, "Cmaj7": false, "CM7": false, "G": false} {
		c, err := ParseChord(text)
		if err != nil {
			t.Fatalf("ParseChord(%q): %v", text, err)
		}
		if c.IsMinor() != want {
			t.Errorf("%s IsMinor = %v, want %v", text, c.IsMinor(), want)
		}
	}
}

func TestTransposeChord_Periodic(t *testing.T) {
	c, _ := ParseChord("F#m7/C#")
	for _, s := range []Spelling{Sharp, Flat} {
		for n := -30; n <= 30; n++ {
			if got, want := TransposeChord(c, n, s), TransposeChord(c, ((n%12)+12)%12, s); got != want {
				t.Errorf("TransposeChord(%d, %s) = %q, want %q", n, s, got, want)
			}
		}
	}
}

func TestTransposeChord_Spelling(t *testing.T) {
	c, _ := ParseChord("C#m")
	if got := TransposeChord(c, 0, Flat); got != "Dbm" {
		t.Errorf("got %q, want Dbm", got)
	}
	c, _ = ParseChord("Cb")
	if got := TransposeChord(c, 0, Sharp); got != "B" {
		t.Errorf("got %q, want B", got)
	}
}

func TestTranspose_Scenarios(t *testing.T) {
	if got := Transpose("[G]Amazing [C]grace", 2, Sharp); got != "[A]Amazing [D]grace" {
		t.Errorf("got %q", got)
	}
	if got := Transpose("[D/F#]test", -2, Sharp); got != "[C/E]test" {
		t.Errorf("got %q", got)
	}
	plain := "no chords here\n  just  lyrics\r\n"
	for _, n := range []int{-13, -1, 0, 5, 99} {
		if got := Transpose(plain, n, Flat); got != plain {
			t.Errorf("offset %d changed plain text: %q", n, got)
		}
	}
	if got := Transpose("", 3, Sharp); got != "" {
		t.Errorf("empty input produced %q", got)
	}
}

func TestTranspose_MalformedMarkersKept(t *testing.T) {
	in := "[Xyz] la [G] [ ] [Chorus]\n[unclosed [C]"
	want := "[Xyz] la [Bb] [ ] [Chorus]\n[unclosed [Eb]"
	if got := Transpose(in, 3, Flat); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	for n := -12; n <= 12; n++ {
		if got := Transpose("[Xyz]", n, Sharp); got != "[Xyz]" {
			t.Errorf("offset %d: got %q", n, got)
		}
	}
}

func TestTranspose_NoDoubleTransposition(t *testing.T) {
	// A second pass would turn [A] into [B].
	if got := Transpose("[G][A]", 2, Sharp); got != "[A][B]" {
		t.Errorf("got %q, want [A][B]", got)
	}
}

func TestTranspose_RoundTrip(t *testing.T) {
	in := "[Em]Verse [C/G]line [Bbmaj7]\n[F#m7b5] end"
	for _, s := range []Spelling{Sharp, Flat} {
		for n := -12; n <= 12; n++ {
			back := Transpose(Transpose(in, n, s), -n, s)
			// Pitch classes must survive; compare under one spelling.
			if Transpose(back, 0, Sharp) != Transpose(in, 0, Sharp) {
				t.Errorf("round trip %d/%s: %q", n, s, back)
			}
		}
	}
}

func TestTranspose_ZeroOnlyRespells(t *testing.T) {
	in := "[C#m] lyric [Ab/Eb]"
	if got := Transpose(in, 0, Flat); got != "[Dbm] lyric [Ab/Eb]" {
		t.Errorf("got %q", got)
	}
	if got := Transpose(in, 0, Sharp); got != "[C#m] lyric [G#/D#]" {
		t.Errorf("got %q", got)
	}
}

func TestWrapOffset(t *testing.T) {
	cases := map[int]int{0: 0, 12: 12, 13: 1, -12: -12, -13: -1, 25: 1, -25: -1}
	for in, want := range cases {
		if got := WrapOffset(in); got != want {
			t.Errorf("WrapOffset(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestSegment_Lossless(t *testing.T) {
	in := "a [G] b\n[[wiki]] [x\n]"
	spans := Segment(in)
	if Join(spans) != in {
		t.Fatalf("Join(Segment) = %q", Join(spans))
	}
	var markers []string
	for _, sp := range spans {
		if sp.Marker {
			markers = append(markers, sp.Inner)
		}
	}
	if len(markers) != 2 || markers[0] != "G" || markers[1] != "wiki" {
		t.Errorf("markers = %v", markers)
	}
}

func TestChords_DistinctInOrder(t *testing.T) {
	got := Chords("[G] a [D/F#] b [G] c [Xyz] [Em]")
	want := []string{"G", "D/F#", "Em"}
	if len(got) != len(want) {
		t.Fatalf("Chords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Chords[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDetectKey(t *testing.T) {
	k, ok := DetectKey("[Em]verse [G]chorus")
	if !ok || k != 4 {
		t.Errorf("DetectKey = %d,%v want 4,true", k, ok)
	}
	k, ok = DetectKey("[Intro] [Xyz] [Bb7] [C]")
	if !ok || k != 10 {
		t.Errorf("DetectKey skipping unparsable = %d,%v want 10,true", k, ok)
	}
	if _, ok := DetectKey("no chords"); ok {
		t.Error("DetectKey found a key in plain text")
	}
	if _, ok := DetectKey("[Xyz] only"); ok {
		t.Error("DetectKey found a key among unparsable markers")
	}
}

func TestTransposeToTargetKey(t *testing.T) {
	if got := TransposeToTargetKey(0, 11); got != -1 {
		t.Errorf("C->B = %d, want -1", got)
	}
	if got := TransposeToTargetKey(7, 9); got != 2 {
		t.Errorf("G->A = %d, want 2", got)
	}
	if got := TransposeToTargetKey(0, 6); got != 6 {
		t.Errorf("C->F# = %d, want 6", got)
	}
	for c := PitchClass(0); c < 12; c++ {
		for tg := PitchClass(0); tg < 12; tg++ {
			got := TransposeToTargetKey(c, tg)
			if got < -6 || got > 6 {
				t.Errorf("TransposeToTargetKey(%d,%d) = %d out of range", c, tg, got)
			}
			if c.Add(got) != tg {
				t.Errorf("TransposeToTargetKey(%d,%d) = %d does not reach target", c, tg, got)
			}
		}
	}
}

func TestParseKey(t *testing.T) {
	cases := map[string]Key{
		"G":        {Root: 7},
		"Em":       {Root: 4, Minor: true},
		"Bbm":      {Root: 10, Minor: true},
		"F# minor": {Root: 6, Minor: true},
		"C major":  {Root: 0},
		"Dmaj":     {Root: 2},
	}
	for in, want := range cases {
		got, err := ParseKey(in)
		if err != nil {
			t.Errorf("ParseKey(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseKey(%q) = %+v, want %+v", in, got, want)
		}
	}
	for _, bad := range []string{"", "G7", "D/F#", "Em minor", "C dorian", "Xyz"} {
		if _, err := ParseKey(bad); err == nil {
			t.Errorf("ParseKey(%q) succeeded", bad)
		}
	}
}

func TestKeyLabelAndCamelot(t *testing.T) {
	cases := []struct {
		key     Key
		label   string
		camelot string
	}{
		{Key{Root: 0}, "C", "8B"},
		{Key{Root: 9, Minor: true}, "Am", "8A"},
		{Key{Root: 7}, "G", "9B"},
		{Key{Root: 4, Minor: true}, "Em", "9A"},
		{Key{Root: 11}, "B", "1B"},
		{Key{Root: 5}, "F", "7B"},
		{Key{Root: 3, Minor: true}, "Ebm", "2A"},
	}
	for _, tc := range cases {
		if got := tc.key.Label(Flat); got != tc.label {
			t.Errorf("Label = %q, want %q", got, tc.label)
		}
		if got := tc.key.Camelot(); got != tc.camelot {
			t.Errorf("%s Camelot = %q, want %q", tc.label, got, tc.camelot)
		}
	}
}

func TestBuildReferenceTable(t *testing.T) {
	for _, s := range []Spelling{Sharp, Flat} {
		tbl := BuildReferenceTable(s)
		if len(tbl.Rows) != 13 {
			t.Fatalf("rows = %d, want 13", len(tbl.Rows))
		}
		row0, ok := tbl.Row(0)
		if !ok {
			t.Fatal("row 0 missing")
		}
		if row0.Notes != s.Names() {
			t.Errorf("%s row 0 = %v, want %v", s, row0.Notes, s.Names())
		}
		for i, row := range tbl.Rows {
			if row.Offset != i-6 {
				t.Errorf("row %d offset = %d", i, row.Offset)
			}
			for j, cell := range row.Notes {
				if want := Normalize(j + row.Offset).Name(s); cell != want {
					t.Errorf("cell(%d,%d) = %q, want %q", row.Offset, j, cell, want)
				}
			}
		}
	}
	flat := BuildReferenceTable(Flat)
	if r, _ := flat.Row(-6); r.Notes[0] != "Gb" {
		t.Errorf("flat row -6 col C = %q, want Gb", r.Notes[0])
	}
	if _, ok := flat.Row(7); ok {
		t.Error("row 7 should not exist")
	}
}

func TestParseSpelling(t *testing.T) {
	for in, want := range map[string]Spelling{"": Sharp, "sharp": Sharp, "#": Sharp, "FLAT": Flat, "b": Flat} {
		got, err := ParseSpelling(in)
		if err != nil || got != want {
			t.Errorf("ParseSpelling(%q) = %v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseSpelling("natural"); err == nil {
		t.Error("ParseSpelling(natural) succeeded")
	}
}

func TestSpellingOf(t *testing.T) {
	for in, want := range map[string]Spelling{
		"Bb": Flat, "Ebm7": Flat, "bb": Flat, "Db/Ab": Flat,
		"A#": Sharp, "C": Sharp, "B": Sharp, "": Sharp, "Bm": Sharp,
	} {
		if got := SpellingOf(in); got != want {
			t.Errorf("SpellingOf(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestImpliedKey(t *testing.T) {
	k, ok := ImpliedKey("[N.C.] [Am7] [F] [C] [G]")
	if !ok || k.Root != 9 || !k.Minor {
		t.Errorf("ImpliedKey = %+v,%v want Am", k, ok)
	}
	k, ok = ImpliedKey("[Cmaj7] [Am]")
	if !ok || k.Root != 0 || k.Minor {
		t.Errorf("ImpliedKey = %+v,%v want C major", k, ok)
	}
}
