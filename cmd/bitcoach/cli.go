package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/bitcoach/internal/config"
	"github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/ops"
	"github.com/hpungsan/bitcoach/internal/session"
	"github.com/hpungsan/bitcoach/internal/terminal"
	"github.com/hpungsan/bitcoach/internal/web"
)

// maxStdinBytes caps replies piped to lint.
const maxStdinBytes = 1 << 20

// app holds what the commands share.
type app struct {
	db       *sql.DB
	cfg      *config.Config
	baseDir  string // ~/.bitcoach; empty disables repo overlays and exports
	newModel ops.ModelFactory
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app) *cli.App {
	if a == nil {
		a = &app{}
	}
	cliApp := &cli.App{
		Name:    "bitcoach",
		Usage:   "Hint-only coach for micro:bit MicroPython projects",
		Version: Version,
		Commands: []*cli.Command{
			a.chatCmd(),
			a.collectCmd(),
			a.promptCmd(),
			a.payloadCmd(),
			a.lintCmd(),
			a.historyCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// configFor returns the configuration for a workspace, applying its repo overlay.
func (a *app) configFor(dir string) (*config.Config, error) {
	if a.baseDir == "" {
		return a.cfg, nil
	}
	return config.LoadWithRepo(a.baseDir, dir)
}

func workspaceArg(c *cli.Context) string {
	if c.NArg() > 0 {
		return c.Args().First()
	}
	return "."
}

// chatCmd creates the chat command.
func (a *app) chatCmd() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Start a coaching session for a workspace (say \"thanks\" to finish)",
		ArgsUsage: "[dir]",
		Action: func(c *cli.Context) error {
			dir := workspaceArg(c)
			cfg, err := a.configFor(dir)
			if err != nil {
				return outputError(err)
			}

			s, err := ops.StartSession(c.Context, cfg, ops.StartInput{
				Workspace: dir,
				NewModel:  a.newModel,
				DB:        a.db,
			})
			if err != nil {
				return outputError(err)
			}

			host := terminal.New(c.App.Reader, c.App.Writer, cfg.Registration)
			_ = host.Notice(fmt.Sprintf("%s: %d file(s) attached. Say %q when you're done.",
				cfg.Registration.Label, len(s.Files()), cfg.TerminationPhrase))

			err = session.Run(c.Context, s, host)
			if err == nil || stderrors.Is(err, io.EOF) {
				return nil
			}
			return outputError(err)
		},
	}
}

// collectCmd creates the collect command.
func (a *app) collectCmd() *cli.Command {
	return &cli.Command{
		Name:      "collect",
		Usage:     "Show the .py files a session would attach",
		ArgsUsage: "[dir]",
		Action: func(c *cli.Context) error {
			dir := workspaceArg(c)
			cfg, err := a.configFor(dir)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Collect(c.Context, cfg, ops.CollectInput{Workspace: dir})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// promptCmd creates the prompt command.
func (a *app) promptCmd() *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "Print the coaching policy prompt",
		Action: func(c *cli.Context) error {
			cfg, err := a.configFor(".")
			if err != nil {
				return outputError(err)
			}
			_, err = fmt.Fprintln(c.App.Writer, ops.BuildPrompt(cfg).Text())
			return err
		},
	}
}

// payloadCmd creates the payload command.
func (a *app) payloadCmd() *cli.Command {
	return &cli.Command{
		Name:  "payload",
		Usage: "Print the policy payload for hosts that build their own requests",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "guidelines", Aliases: []string{"g"}, Usage: "Markdown file whose first section becomes policy_excerpt"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := a.configFor(".")
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Payload(cfg, ops.PayloadInput{GuidelinesPath: c.String("guidelines")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// lintCmd creates the lint command.
func (a *app) lintCmd() *cli.Command {
	return &cli.Command{
		Name:  "lint",
		Usage: "Check a coach reply against the example rules (reads the reply from stdin)",
		Action: func(c *cli.Context) error {
			reply, err := readWithLimit(c.App.Reader, maxStdinBytes)
			if err != nil {
				return outputError(err)
			}
			if reply == "" {
				return outputError(errors.NewInvalidRequest("reply must be piped via stdin"))
			}

			cfg, err := a.configFor(".")
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, ops.Lint(cfg, reply))
		},
	}
}

// historyCmd groups the transcript archive commands.
func (a *app) historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect archived session transcripts",
		Subcommands: []*cli.Command{
			a.historyListCmd(),
			a.historyShowCmd(),
			a.historyExportCmd(),
			a.historyPurgeCmd(),
			a.historyServeCmd(),
		},
	}
}

func (a *app) requireDB() error {
	if a.db == nil {
		return outputError(errors.NewInvalidRequest("transcript archive is not available"))
	}
	return nil
}

func (a *app) historyListCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List archived transcripts, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace directory"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			input := ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			}
			if workspace := c.String("workspace"); workspace != "" {
				input.Workspace = &workspace
			}

			output, err := ops.List(a.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func (a *app) historyShowCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an archived transcript",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-turns", Usage: "Exclude turns from output"},
		},
		Action: func(c *cli.Context) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			input := ops.FetchInput{ID: c.Args().First()}
			if c.Bool("no-turns") {
				includeTurns := false
				input.IncludeTurns = &includeTurns
			}

			output, err := ops.Fetch(a.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func (a *app) historyExportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export archived transcripts to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.bitcoach/exports/<workspace>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace directory"},
		},
		Action: func(c *cli.Context) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			input := ops.ExportInput{Path: c.String("path")}
			if workspace := c.String("workspace"); workspace != "" {
				input.Workspace = &workspace
			}

			output, err := ops.Export(c.Context, a.db, a.baseDir, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func (a *app) historyPurgeCmd() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete archived transcripts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace directory"},
			&cli.StringFlag{Name: "older-than", Usage: "Only purge sessions that ended more than N days ago (e.g., 30d)"},
		},
		Action: func(c *cli.Context) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			input := ops.PurgeInput{}
			if workspace := c.String("workspace"); workspace != "" {
				input.Workspace = &workspace
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, a.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func (a *app) historyServeCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse archived transcripts in a local web viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8340, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			if err := a.requireDB(); err != nil {
				return err
			}
			srv, err := web.NewServer(a.db, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			fmt.Fprintf(c.App.Writer, "Transcript viewer at http://%s\n", srv.Addr)
			if err := web.Run(srv); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if coachErr, ok := err.(*errors.CoachError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", coachErr.Code, coachErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readWithLimit reads at most limit bytes and trims surrounding whitespace.
func readWithLimit(r io.Reader, limit int64) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("input exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
