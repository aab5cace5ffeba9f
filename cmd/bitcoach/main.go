package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/bitcoach/internal/config"
	"github.com/hpungsan/bitcoach/internal/db"
	"github.com/hpungsan/bitcoach/internal/logging"
	"github.com/hpungsan/bitcoach/internal/mcp"
	"github.com/hpungsan/bitcoach/internal/transport"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"chat": true, "collect": true, "prompt": true,
	"payload": true, "lint": true, "history": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _     _ _                      _
  | |__ (_) |_ ___ ___   __ _  ___| |__
  | '_ \| | __/ __/ _ \ / _' |/ __| '_ \
  | |_) | | || (_| (_) | (_| | (__| | | |
  |_.__/|_|\__\___\___/ \__,_|\___|_| |_|

  Hint-only coach for micro:bit MicroPython

  Usage: bitcoach chat [dir]
         bitcoach --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".bitcoach")
	cwd, _ := os.Getwd()

	// Process environment wins over both files
	if err := config.LoadEnv(cwd, baseDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewLogger("main")
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warnf("unknown tools in disabled_tools: %s", strings.Join(unknown, ", "))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	// CLI mode: known subcommand
	if isCLIMode(os.Args) {
		cliApp := newCLIApp(&app{
			db:       database,
			cfg:      cfg,
			baseDir:  baseDir,
			newModel: transport.New,
		})
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'bitcoach --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	err = mcp.Run(mcp.Options{
		Config:    cfg,
		GlobalDir: baseDir,
		DB:        database,
		NewModel:  transport.New,
	}, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}
