package mcpserver

// ChordSheetContract describes the chord sheet format that LLM consumers
// should follow when creating songs.
const ChordSheetContract = `# Songbook Chord Sheet Format

Every song stored in the songbook is a Markdown file with inline chord markers.

## Structure

` + "```" + `markdown
---
title: Song title          # REQUIRED – used in listings and search
artist: Performer          # OPTIONAL
key: Em                    # OPTIONAL – overrides key detection
tags:                      # OPTIONAL – YAML list or comma-separated string
  - folk
  - waltz
---

# Song title

[Em]Lyrics with [C]chords in square [G]brackets right [D]before the syllable.
` + "```" + `

## Rules

1. **Chords** go inside single square brackets: ` + "`" + `[Am7]` + "`" + `, ` + "`" + `[F#m]` + "`" + `, ` + "`" + `[D/F#]` + "`" + `.
   A chord is a root (A-G with optional # or b), an optional quality
   (m, maj7, sus4, dim, aug, add9, 7, b5, ...) and an optional /bass note.
2. **Section labels** such as ` + "`" + `[Chorus]` + "`" + ` are allowed. Anything in brackets that is
   not a chord is kept verbatim and never transposed.
3. **Markers** stay on one line and do not nest. No spaces inside a chord marker.
4. **Key.** When ` + "`" + `key` + "`" + ` is absent the key is taken from the first chord: its root,
   minor when the chord is minor. Declare ` + "`" + `key` + "`" + ` when the song starts off the tonic.
   Accepted forms: ` + "`" + `G` + "`" + `, ` + "`" + `Em` + "`" + `, ` + "`" + `Bbm` + "`" + `, ` + "`" + `F# minor` + "`" + `, ` + "`" + `C major` + "`" + `.
5. **Spelling.** Write chords the way musicians read them in that key (Bb in F major,
   F# in D major). Transposition output uses one spelling throughout.
6. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
7. **Encoding** is UTF-8 with a trailing newline.

## Transposition

- Offsets range from -12 to +12 semitones; larger values wrap.
- Transposing to a key picks the shortest path (at most 6 semitones either way).
- Saving a transposed song rewrites the body markers and the frontmatter ` + "`" + `key` + "`" + `.

## Example

` + "```" + `markdown
---
title: House of the Rising Sun
artist: Traditional
key: Am
tags: [folk, blues]
---

# House of the Rising Sun

There [Am]is a [C]house in [D]New Or[F]leans
They [Am]call the [C]Rising [E]Sun

[Chorus]
` + "```" + `
`
