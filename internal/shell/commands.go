package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/songbook/internal/music"
)

// handleCommand runs one command line. It returns false on exit.
func (sh *Shell) handleCommand(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	switch cmd {
	case "exit", "quit", "q":
		fmt.Fprintln(sh.out, "bye")
		return false

	case "help", "h":
		sh.help()

	case "load", "l":
		if len(args) != 1 {
			fmt.Fprintln(sh.out, "usage: load PATH")
			return true
		}
		sh.load(args[0])

	case "paste":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), parts[0]))
		if text == "" {
			fmt.Fprintln(sh.out, "usage: paste TEXT")
			return true
		}
		sh.paste(text)

	case "up", "+":
		if sh.loaded() {
			sh.sess.Up()
			sh.show()
		}

	case "down", "-":
		if sh.loaded() {
			sh.sess.Down()
			sh.show()
		}

	case "reset", "r":
		sh.sess.Reset()
		if sh.loaded() {
			sh.show()
		}

	case "shift":
		if len(args) != 1 {
			fmt.Fprintln(sh.out, "usage: shift N (-12 to +12)")
			return true
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < -music.MaxOffset || n > music.MaxOffset {
			fmt.Fprintf(sh.out, "invalid offset: %s\n", args[0])
			return true
		}
		if sh.loaded() {
			sh.sess.SetOffset(n)
			sh.show()
		}

	case "to":
		k, ok := sh.keyArg(args, "to KEY")
		if !ok || !sh.loaded() {
			return true
		}
		if _, found := sh.sess.ToKey(sh.body, k.Root); !found {
			fmt.Fprintln(sh.out, "no key: the song has no parsable chord (declare one with 'key KEY')")
			return true
		}
		sh.show()

	case "key":
		if len(args) == 1 && args[0] == "clear" {
			sh.sess.ClearKey()
			sh.status()
			return true
		}
		k, ok := sh.keyArg(args, "key KEY|clear")
		if !ok {
			return true
		}
		sh.sess.DeclareKey(k)
		sh.status()

	case "sharp", "#":
		sh.sess.SetSpelling(music.Sharp)
		if sh.loaded() {
			sh.show()
		}

	case "flat", "b":
		sh.sess.SetSpelling(music.Flat)
		if sh.loaded() {
			sh.show()
		}

	case "toggle", "t":
		sh.sess.ToggleSpelling()
		if sh.loaded() {
			sh.show()
		}

	case "show", "p":
		sh.show()

	case "table":
		fmt.Fprint(sh.out, sh.sess.Table().Text())

	case "status", "s":
		sh.status()

	case "save", "w":
		sh.save()

	default:
		fmt.Fprintf(sh.out, "unknown command: %s (type 'help')\n", cmd)
	}
	return true
}

// keyArg parses a key from the remaining words ("F#", "E minor").
func (sh *Shell) keyArg(args []string, usage string) (music.Key, bool) {
	if len(args) == 0 {
		fmt.Fprintf(sh.out, "usage: %s\n", usage)
		return music.Key{}, false
	}
	text := strings.Join(args, " ")
	k, err := music.ParseKey(text)
	if err != nil {
		fmt.Fprintf(sh.out, "unknown key: %s\n", text)
		return music.Key{}, false
	}
	return k, true
}

func (sh *Shell) help() {
	fmt.Fprint(sh.out, `Commands:
  load PATH       Load a song from the library
  paste TEXT      Transpose ad-hoc text instead of a song
  up / down       Shift by one semitone
  shift N         Set the offset (-12 to +12)
  to KEY          Shift so the song lands in KEY
  key KEY|clear   Declare the original key, or go back to detection
  sharp / flat    Choose the spelling
  toggle          Switch between sharp and flat
  reset           Back to offset 0
  show            Print the transposed song
  table           Print the transposition reference table
  status          Show offset, spelling and key
  save            Write the transposed song back
  help            Show this help
  exit            Leave the shell
`)
}
