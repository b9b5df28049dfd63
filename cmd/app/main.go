package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/songbook/internal"
	"github.com/starford/songbook/internal/index"
	"github.com/starford/songbook/internal/music"
	"github.com/starford/songbook/internal/parser"
	pkgconfig "github.com/starford/songbook/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr),
	)
}

func shell(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunShell(ctx, cmd.Args().First(),
		internal.WithConfig(cfg),
		internal.WithLogOutput(io.Discard),
	)
}

// readInput reads the file named by the first argument, or stdin for none or "-".
func readInput(cmd *cli.Command) (string, error) {
	name := cmd.Args().First()
	if name == "" || name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// spellingFlag returns --spelling, or the fallback when the flag is unset.
func spellingFlag(cmd *cli.Command, fallback func() (music.Spelling, error)) (music.Spelling, error) {
	sp, err := pickSpelling(cmd.String("spelling"), fallback)
	if err != nil {
		return music.Sharp, cli.Exit(err.Error(), 2)
	}
	return sp, nil
}

func pickSpelling(flag string, fallback func() (music.Spelling, error)) (music.Spelling, error) {
	if strings.TrimSpace(flag) == "" {
		return fallback()
	}
	return music.ParseSpelling(flag)
}

// configSpelling is transpose.spelling from the config file.
func configSpelling(cmd *cli.Command) func() (music.Spelling, error) {
	return func() (music.Spelling, error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return music.Sharp, err
		}
		return cfg.Transpose.DefaultSpelling(), nil
	}
}

// sheetSpelling is the spelling the sheet's own key is written in.
func sheetSpelling(sheet *parser.Result) func() (music.Spelling, error) {
	return func() (music.Spelling, error) { return index.SpellingOf(sheet), nil }
}

// describeKey formats the detected key of sheet, or false when it has none.
func describeKey(sheet *parser.Result, sp music.Spelling) (string, bool) {
	k, ok := sheet.Key()
	if !ok {
		return "", false
	}
	source := "first chord"
	if sheet.DeclaredKey != nil {
		source = "declared"
	}
	return fmt.Sprintf("%s (Camelot %s, %s)", k.Label(sp), k.Camelot(), source), true
}

func transpose(_ context.Context, cmd *cli.Command) error {
	text, err := readInput(cmd)
	if err != nil {
		return err
	}
	sheet, err := parser.Parse([]byte(text))
	if err != nil {
		return err
	}
	sp, err := spellingFlag(cmd, configSpelling(cmd))
	if err != nil {
		return err
	}

	semitones := int(cmd.Int("semitones"))
	if semitones < -music.MaxOffset || semitones > music.MaxOffset {
		return cli.Exit(fmt.Sprintf("semitones must be between %d and %d", -music.MaxOffset, music.MaxOffset), 2)
	}
	current, found := sheet.Key()
	if to := cmd.String("to"); to != "" {
		target, err := music.ParseKey(to)
		if err != nil {
			return cli.Exit(fmt.Sprintf("unknown key %q", to), 2)
		}
		if !found {
			return cli.Exit("no key: the text has no parsable chord", 1)
		}
		semitones = music.TransposeToTargetKey(current.Root, target.Root)
	}

	fmt.Fprint(os.Stdout, sheet.Header+music.Transpose(sheet.Body, semitones, sp))
	if found {
		fmt.Fprintf(os.Stderr, "%+d semitones: %s -> %s\n", semitones, current.Label(index.SpellingOf(sheet)), current.Transpose(semitones).Label(sp))
	}
	return nil
}

func key(_ context.Context, cmd *cli.Command) error {
	text, err := readInput(cmd)
	if err != nil {
		return err
	}
	sheet, err := parser.Parse([]byte(text))
	if err != nil {
		return err
	}
	sp, err := spellingFlag(cmd, sheetSpelling(sheet))
	if err != nil {
		return err
	}
	line, ok := describeKey(sheet, sp)
	if !ok {
		return cli.Exit("no key: the text has no parsable chord", 1)
	}
	fmt.Fprintln(os.Stdout, line)
	return nil
}

func table(_ context.Context, cmd *cli.Command) error {
	sp, err := spellingFlag(cmd, configSpelling(cmd))
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, music.BuildReferenceTable(sp).Text())
	return nil
}

func newSpellingFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "spelling",
		Aliases: []string{"p"},
		Usage:   "Accidental spelling: sharp or flat (default: the sheet's own for key, transpose.spelling otherwise)",
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "songbook",
		Usage:   "Chord sheet library with transposition, full-text search and live updates",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and library watcher",
				Action: serve,
			},
			{
				Name:      "transpose",
				Usage:     "Transpose the chord markers in a file or stdin",
				ArgsUsage: "[FILE]",
				Action:    transpose,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "semitones",
						Aliases: []string{"s"},
						Usage:   "Offset in semitones, -12..12",
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "Target key (overrides --semitones)",
					},
					newSpellingFlag(),
				},
			},
			{
				Name:      "key",
				Usage:     "Detect the key of a file or stdin from its first chord",
				ArgsUsage: "[FILE]",
				Action:    key,
				Flags:     []cli.Flag{newSpellingFlag()},
			},
			{
				Name:   "table",
				Usage:  "Print the transposition reference table",
				Action: table,
				Flags:  []cli.Flag{newSpellingFlag()},
			},
			{
				Name:      "shell",
				Usage:     "Interactive transposition shell over the library",
				ArgsUsage: "[SONG]",
				Action:    shell,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
