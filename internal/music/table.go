package music

import (
	"fmt"
	"strings"
)

// Reference table bounds: one row per offset from -6 to +6.
const (
	TableMinOffset = -6
	TableMaxOffset = 6
	TableRows      = TableMaxOffset - TableMinOffset + 1
)

// ReferenceRow is the 12 pitch classes shifted by Offset.
type ReferenceRow struct {
	Offset int        `json:"offset"`
	Notes  [12]string `json:"notes"`
}

// ReferenceTable maps every pitch class under every offset in [-6, 6].
type ReferenceTable struct {
	Spelling Spelling                `json:"spelling"`
	Header   [12]string              `json:"header"`
	Rows     [TableRows]ReferenceRow `json:"rows"`
}

// BuildReferenceTable builds the table for spelling s. Cell (i, j) is the
// name of pitch class (j + i) mod 12; row 0 is the unshifted spelling.
func BuildReferenceTable(s Spelling) ReferenceTable {
	t := ReferenceTable{Spelling: s, Header: s.Names()}
	for r := range t.Rows {
		offset := TableMinOffset + r
		row := ReferenceRow{Offset: offset}
		for j := range row.Notes {
			row.Notes[j] = PitchClass(j).Add(offset).Name(s)
		}
		t.Rows[r] = row
	}
	return t
}

// Row returns the row for offset, or false when offset is outside [-6, 6].
func (t ReferenceTable) Row(offset int) (ReferenceRow, bool) {
	if offset < TableMinOffset || offset > TableMaxOffset {
		return ReferenceRow{}, false
	}
	return t.Rows[offset-TableMinOffset], true
}

// Text renders t as aligned plain text, header first.
func (t ReferenceTable) Text() string {
	var b strings.Builder
	b.WriteString("      ")
	for _, h := range t.Header {
		fmt.Fprintf(&b, "%-4s", h)
	}
	b.WriteByte('\n')
	for _, row := range t.Rows {
		fmt.Fprintf(&b, "%+3d   ", row.Offset)
		for _, n := range row.Notes {
			fmt.Fprintf(&b, "%-4s", n)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
