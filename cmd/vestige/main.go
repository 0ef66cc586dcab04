package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Sruimeng/vestige/internal/api"
	"github.com/Sruimeng/vestige/internal/config"
	"github.com/Sruimeng/vestige/internal/db"
	"github.com/Sruimeng/vestige/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"fetch": true, "filters": true, "plan": true,
	"archive": true, "entry": true, "latest": true,
	"purge": true, "export": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
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
  __   _____ ___ _____ ___ ___ ___
  \ \ / / __/ __|_   _|_ _/ __| __|
   \ V /| _|\__ \ | |  | | (_ | _|
    \_/ |___|___/ |_| |___\___|___|

  Time capsules from -500 to 2100

  Usage: vestige <command> [options]
         vestige serve
         vestige --help

  MCP server mode requires piped input.`)
}

// newLogger builds a production zap logger writing to stderr; stdout is
// reserved for command output and the MCP transport.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// loadConfig merges ~/.vestige/config.json with the nearest repo
// .vestige/config.json above the working directory; env overrides win.
func loadConfig(baseDir string) (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.Load(baseDir)
	}
	return config.LoadWithRepo(baseDir, cwd)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(&env{})
		if err := app.Run(os.Args); err != nil {
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

	baseDir := filepath.Join(homeDir, ".vestige")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := loadConfig(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "warning: unknown disabled_tools entries: %s\n", strings.Join(unknown, ", "))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	client := api.NewFromConfig(cfg, api.WithLogger(logger.Named("api")))
	e := &env{
		db:      database,
		cfg:     cfg,
		baseDir: baseDir,
		backend: client,
		fetcher: client,
		log:     logger,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(e)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'vestige --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	deps := mcp.Deps{
		DB:      database,
		Config:  cfg,
		BaseDir: baseDir,
		Backend: client,
		Logger:  logger.Named("mcp"),
	}
	if err := mcp.Run(deps, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
