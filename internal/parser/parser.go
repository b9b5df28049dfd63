// Package parser extracts frontmatter, chords and key information from
// Markdown chord sheets.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/songbook/internal/music"
)

// Result holds the output of parsing a chord sheet.
type Result struct {
	Frontmatter map[string]any
	// Header is the raw frontmatter block including delimiters; Header+Body
	// reproduces the input.
	Header string
	Body   string
	Title  string
	Artist string
	Tags   []string
	Chords []string

	// DeclaredKey is the frontmatter "key", when present and parsable.
	DeclaredKey *music.Key
	// DetectedKey is the first-chord heuristic applied to the body.
	DetectedKey *music.Key
}

// Key returns the declared key, falling back to the detected one.
func (r *Result) Key() (music.Key, bool) {
	if r.DeclaredKey != nil {
		return *r.DeclaredKey, true
	}
	if r.DetectedKey != nil {
		return *r.DetectedKey, true
	}
	return music.Key{}, false
}

// Parse splits a chord sheet into frontmatter and body and derives its
// metadata. Malformed frontmatter is treated as part of the body.
func Parse(data []byte) (*Result, error) {
	fm, header, body := splitFrontmatter(data)

	r := &Result{
		Frontmatter: fm,
		Header:      header,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Artist:      stringField(fm, "artist"),
		Tags:        extractTags(fm),
		Chords:      music.Chords(body),
	}
	if raw := stringField(fm, "key"); raw != "" {
		if k, err := music.ParseKey(raw); err == nil {
			r.DeclaredKey = &k
		}
	}
	if k, ok := music.ImpliedKey(body); ok {
		r.DetectedKey = &k
	}
	return r, nil
}

// splitFrontmatter separates a leading YAML block fenced by --- lines from the
// body. Without a valid block, header is empty and body is the whole input.
func splitFrontmatter(data []byte) (map[string]any, string, string) {
	const delim = "---"
	s := string(data)
	trimmed := strings.TrimLeft(s, "\n\r")
	lead := len(s) - len(trimmed)

	if !strings.HasPrefix(trimmed, delim) {
		return nil, "", s
	}
	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, "", s
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil {
		return nil, "", s
	}

	// The body starts on the line after the closing delimiter.
	end := lead + len(delim) + idx + 1 + len(delim)
	if nl := strings.IndexByte(s[end:], '\n'); nl >= 0 {
		end += nl + 1
	} else {
		end = len(s)
	}
	return fm, s[:end], s[end:]
}

// extractTags reads frontmatter "tags" as a YAML list or a comma-separated string.
func extractTags(fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t := stringField(fm, "title"); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func stringField(fm map[string]any, name string) string {
	switch v := fm[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// SetKey returns data with the frontmatter "key" set to label. Other
// frontmatter fields keep their order; the body is untouched. A frontmatter
// block is added when data has none.
func SetKey(data []byte, label string) ([]byte, error) {
	fm, header, body := splitFrontmatter(data)
	if fm == nil && header == "" {
		var b bytes.Buffer
		fmt.Fprintf(&b, "---\nkey: %s\n---\n", label)
		b.WriteString(body)
		return b.Bytes(), nil
	}

	trimmed := strings.TrimLeft(header, "\n\r")
	inner := trimmed[3:strings.LastIndex(trimmed, "\n---")]

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(inner), &doc); err != nil {
		return nil, fmt.Errorf("parser: frontmatter: %w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parser: frontmatter is not a mapping")
	}
	set := false
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == "key" {
			m.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: label}
			set = true
			break
		}
	}
	if !set {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "key"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: label},
		)
	}

	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("---\n")
	out.Write(b.Bytes())
	out.WriteString("---\n")
	out.WriteString(body)
	return out.Bytes(), nil
}
