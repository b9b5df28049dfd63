// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes songbook tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/songbook/internal/apperr"
	"github.com/starford/songbook/internal/music"
	"github.com/starford/songbook/internal/session"
	"github.com/starford/songbook/internal/songservice"
)

// FormatURI is the resource URI of the chord sheet format contract.
const FormatURI = "songbook://chord-sheet-format"

// Server wraps the MCP server with songbook tools.
type Server struct {
	mcp *server.MCPServer
	svc *songservice.Service
}

// New creates a new MCP server with all songbook tools registered.
func New(svc *songservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Songbook",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("transpose_text",
		mcp.WithDescription("Transpose every [chord] marker in the given text. "+
			"Text outside brackets and markers that are not chords are left untouched."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text with inline [chord] markers")),
		mcp.WithNumber("semitones", mcp.Description("Offset in semitones, -12..12 (ignored when 'to' is set)")),
		mcp.WithString("spelling", mcp.Description("sharp or flat")),
		mcp.WithString("to", mcp.Description("Target key, e.g. G, Em, Bb minor")),
	), s.transposeText)

	s.mcp.AddTool(mcp.NewTool("detect_key",
		mcp.WithDescription("Guess the key of chord text from its first chord."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text with inline [chord] markers")),
	), s.detectKey)

	s.mcp.AddTool(mcp.NewTool("reference_table",
		mcp.WithDescription("Return the 13x12 transposition table (offsets -6..+6 by the 12 pitch classes)."),
		mcp.WithString("spelling", mcp.Description("sharp or flat")),
	), s.referenceTable)

	s.mcp.AddTool(mcp.NewTool("list_songs",
		mcp.WithDescription("List songs in the library, optionally filtered by tag, key or chord."),
		mcp.WithString("tag", mcp.Description("Only songs with this tag")),
		mcp.WithString("key", mcp.Description("Only songs in this key, any spelling")),
		mcp.WithString("chord", mcp.Description("Only songs using this chord, any spelling")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of songs (default 50)")),
	), s.listSongs)

	s.mcp.AddTool(mcp.NewTool("read_song",
		mcp.WithDescription("Read the full content of a chord sheet."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the song (e.g. folk/song.md)")),
	), s.readSong)

	s.mcp.AddTool(mcp.NewTool("search_songs",
		mcp.WithDescription("Full-text search through song titles, artists, lyrics and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchSongs)

	s.mcp.AddTool(mcp.NewTool("transpose_song",
		mcp.WithDescription("Render a stored song transposed. Set save=true to write it back "+
			"with its frontmatter key updated."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the song")),
		mcp.WithNumber("semitones", mcp.Description("Offset in semitones, -12..12 (ignored when 'to' is set)")),
		mcp.WithString("spelling", mcp.Description("sharp or flat")),
		mcp.WithString("to", mcp.Description("Target key")),
		mcp.WithBoolean("save", mcp.Description("Write the transposed song back to the library")),
	), s.transposeSong)

	s.mcp.AddTool(mcp.NewTool("create_song",
		mcp.WithDescription("Create a new chord sheet at the specified path. "+
			"Content MUST follow the chord sheet format (YAML frontmatter with title, "+
			"optional artist, key and tags, body with inline [chord] markers). Read the "+
			"contract first via the get_song_contract tool or the "+FormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new song (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Chord sheet following the format contract")),
	), s.createSong)

	s.mcp.AddTool(mcp.NewTool("get_song_contract",
		mcp.WithDescription("Returns the chord sheet format contract. "+
			"Call this before creating songs to ensure correct structure."),
	), s.getSongContract)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Chord Sheet Format",
			mcp.WithResourceDescription("Chord sheet format that all songs must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// spellingArg reads the optional spelling argument, falling back to the
// service default.
func (s *Server) spellingArg(req mcp.CallToolRequest) (music.Spelling, error) {
	text := req.GetString("spelling", "")
	if text == "" {
		return s.svc.DefaultSpelling(), nil
	}
	return music.ParseSpelling(text)
}

// offsetArgs reads semitones and the optional target key.
func offsetArgs(req mcp.CallToolRequest) (int, *music.Key, error) {
	f := req.GetFloat("semitones", 0)
	if f != math.Trunc(f) {
		return 0, nil, fmt.Errorf("semitones must be a whole number, got %v", f)
	}
	n := int(f)
	if n < -music.MaxOffset || n > music.MaxOffset {
		return 0, nil, fmt.Errorf("semitones must be between %d and %d", -music.MaxOffset, music.MaxOffset)
	}
	to := req.GetString("to", "")
	if to == "" {
		return n, nil, nil
	}
	k, err := music.ParseKey(to)
	if err != nil {
		return 0, nil, fmt.Errorf("unknown key %q", to)
	}
	return n, &k, nil
}

func toJSON(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) transposeText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sp, err := s.spellingArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, target, err := offsetArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sess := session.New(sp)
	if target != nil {
		if _, ok := sess.ToKey(text, target.Root); !ok {
			return mcp.NewToolResultError("text has no chords to take a key from"), nil
		}
	} else {
		sess.SetOffset(n)
	}
	return toJSON(sess.Render(text)), nil
}

func (s *Server) detectKey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k, ok := music.ImpliedKey(text)
	if !ok {
		return mcp.NewToolResultText("no key: the text has no parsable chord"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s (Camelot %s)", k.Label(s.svc.DefaultSpelling()), k.Camelot())), nil
}

func (s *Server) referenceTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sp, err := s.spellingArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(music.BuildReferenceTable(sp).Text()), nil
}

func (s *Server) listSongs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListSongs(ctx, songservice.ListOptions{
		Limit: req.GetInt("limit", 50),
		Tag:   req.GetString("tag", ""),
		Key:   req.GetString("key", ""),
		Chord: req.GetString("chord", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if total == 0 {
		return mcp.NewToolResultText("no songs found"), nil
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s\t%s", it.Path, it.Title)
		if it.Key != "" {
			fmt.Fprintf(&b, "\t%s", it.Key)
		}
		b.WriteByte('\n')
	}
	if total > len(items) {
		fmt.Fprintf(&b, "... %d more\n", total-len(items))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readSong(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	song, err := s.svc.GetSong(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(song.Content), nil
}

func (s *Server) searchSongs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toJSON(results), nil
}

func (s *Server) transposeSong(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sp, err := s.spellingArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, target, err := offsetArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := songservice.TransposeOptions{Semitones: n, Spelling: &sp}
	if target != nil {
		opts.Target = &target.Root
	}

	if req.GetBool("save", false) {
		song, err := s.svc.SaveTransposed(ctx, path, opts, "")
		if err != nil {
			return toolError(path, err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("saved: %s (key %s)", path, song.Key)), nil
	}
	out, err := s.svc.TransposeSong(ctx, path, opts)
	if err != nil {
		return toolError(path, err), nil
	}
	return mcp.NewToolResultText(out.Content), nil
}

func (s *Server) createSong(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	song, err := s.svc.CreateSong(ctx, path, []byte(content))
	if err != nil {
		return toolError(path, err), nil
	}
	msg := fmt.Sprintf("created: %s", path)
	if song.Key != "" {
		msg += fmt.Sprintf(" (key %s)", song.Key)
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) getSongContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ChordSheetContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     ChordSheetContract,
		},
	}, nil
}

func toolError(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("song already exists: %s", path))
	case errors.Is(err, apperr.ErrNoKey):
		return mcp.NewToolResultError(fmt.Sprintf("%s has no chords to take a key from", path))
	}
	return mcp.NewToolResultError(err.Error())
}
