// Package shell is an interactive transposition prompt. It keeps one
// session.Session over a loaded song and re-renders it after every command.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/starford/songbook/internal/checksum"
	"github.com/starford/songbook/internal/parser"
	"github.com/starford/songbook/internal/session"
	"github.com/starford/songbook/internal/songservice"
)

// Shell drives a transposition session from typed commands.
type Shell struct {
	ctx  context.Context
	svc  *songservice.Service
	sess *session.Session
	out  io.Writer

	// Loaded song. path is empty for pasted text.
	path   string
	sum    string
	header string
	body   string
}

// New returns a shell writing to out, starting in the service's default spelling.
func New(ctx context.Context, svc *songservice.Service, out io.Writer) *Shell {
	return &Shell{
		ctx:  ctx,
		svc:  svc,
		sess: session.New(svc.DefaultSpelling()),
		out:  out,
	}
}

func (sh *Shell) completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("load"),
		readline.PcItem("paste"),
		readline.PcItem("up"),
		readline.PcItem("down"),
		readline.PcItem("reset"),
		readline.PcItem("shift"),
		readline.PcItem("to"),
		readline.PcItem("key",
			readline.PcItem("clear"),
		),
		readline.PcItem("sharp"),
		readline.PcItem("flat"),
		readline.PcItem("toggle"),
		readline.PcItem("show"),
		readline.PcItem("table"),
		readline.PcItem("status"),
		readline.PcItem("save"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// Run reads commands until exit, EOF or interrupt. When path is non-empty
// that song is loaded first.
func (sh *Shell) Run(path string) error {
	fmt.Fprintf(sh.out, "Songbook transposition shell. Type 'help' for commands.\n")
	if path != "" {
		sh.load(path)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "songbook> ",
		HistoryFile:  filepath.Join(homeDir, ".songbook_history"),
		AutoComplete: sh.completer(),
		Stdout:       sh.out,
	})
	if err != nil {
		return fmt.Errorf("shell: init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(sh.out, "bye")
				return nil
			}
			return fmt.Errorf("shell: read: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !sh.handleCommand(line) {
			return nil
		}
	}
}

// load reads a song from the library and resets the session to it.
func (sh *Shell) load(path string) {
	song, err := sh.svc.GetSong(sh.ctx, path)
	if err != nil {
		fmt.Fprintf(sh.out, "cannot load %s: %v\n", path, err)
		return
	}
	res, err := parser.Parse([]byte(song.Content))
	if err != nil {
		fmt.Fprintf(sh.out, "cannot parse %s: %v\n", path, err)
		return
	}

	sh.path = path
	sh.sum = song.Checksum
	sh.header = res.Header
	sh.body = res.Body
	sh.sess.Reset()
	sh.sess.ClearKey()
	if res.DeclaredKey != nil {
		sh.sess.DeclareKey(*res.DeclaredKey)
	}
	fmt.Fprintf(sh.out, "loaded %s (%s)\n", path, song.Title)
	sh.show()
}

// paste replaces the loaded song with ad-hoc text that cannot be saved.
func (sh *Shell) paste(text string) {
	sh.path = ""
	sh.sum = ""
	sh.header = ""
	sh.body = text
	sh.sess.Reset()
	sh.sess.ClearKey()
	sh.show()
}

func (sh *Shell) loaded() bool {
	if sh.body == "" && sh.path == "" {
		fmt.Fprintln(sh.out, "no song loaded (use 'load PATH' or 'paste TEXT')")
		return false
	}
	return true
}

func (sh *Shell) show() {
	if !sh.loaded() {
		return
	}
	v := sh.sess.Render(sh.body)
	fmt.Fprint(sh.out, v.Text)
	if !strings.HasSuffix(v.Text, "\n") {
		fmt.Fprintln(sh.out)
	}
	sh.status()
}

func (sh *Shell) status() {
	v := sh.sess.Render(sh.body)
	fmt.Fprintf(sh.out, "offset %+d, %s", v.Offset, v.Spelling)
	if v.KeyFound {
		fmt.Fprintf(sh.out, ", key %s -> %s (%s)", v.OriginalKey, v.CurrentKey, v.Camelot)
	} else {
		fmt.Fprint(sh.out, ", no key")
	}
	if _, ok := sh.sess.DeclaredKey(); ok {
		fmt.Fprint(sh.out, " [declared]")
	}
	if sh.path != "" {
		fmt.Fprintf(sh.out, ", %s", sh.path)
	}
	fmt.Fprintln(sh.out)
}

// save writes the song back at the current offset, then reloads it.
func (sh *Shell) save() {
	if sh.path == "" {
		fmt.Fprintln(sh.out, "nothing to save: pasted text has no path")
		return
	}
	if sh.sess.Offset() == 0 {
		fmt.Fprintln(sh.out, "offset is 0, nothing to save")
		return
	}
	sp := sh.sess.Spelling()
	song, err := sh.svc.SaveTransposed(sh.ctx, sh.path, songservice.TransposeOptions{
		Semitones: sh.sess.Offset(),
		Spelling:  &sp,
	}, sh.sum)
	if err != nil {
		fmt.Fprintf(sh.out, "save failed: %v\n", err)
		return
	}
	fmt.Fprintf(sh.out, "saved %s (key %s, %s)\n", sh.path, song.Key, checksum.ETag(song.Checksum))
	sh.load(sh.path)
}
