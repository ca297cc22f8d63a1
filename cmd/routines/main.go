package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/routines/internal/config"
	"github.com/hpungsan/routines/internal/db"
	"github.com/hpungsan/routines/internal/interpreter"
	"github.com/hpungsan/routines/internal/logging"
	"github.com/hpungsan/routines/internal/mcp"
	"github.com/hpungsan/routines/internal/ops"
	"github.com/hpungsan/routines/internal/registry"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// registryTimeout bounds one call to a remote registry.
const registryTimeout = 15 * time.Second

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"list": true, "show": true, "edit": true, "save": true,
	"delete": true, "validate": true, "parse": true, "serve": true,
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
   ___          _   _
  | _ \___ _  _| |_(_)_ _  ___ ___
  |   / _ \ || |  _| | ' \/ -_|_-<
  |_|_\___/\_,_|\__|_|_||_\___/__/

  Named voice-command routines

  Usage: routines <command> [options]
         routines --help

  MCP server mode requires piped input.`)
}

// deps holds everything a command needs, built once per process.
type deps struct {
	cfg       *config.Config
	logger    *zap.Logger
	sync      *ops.Synchronizer
	transport registry.Transport
	closers   []func() error
}

func (r *deps) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// newDeps loads config, opens the log and the registry, and seeds the cache.
func newDeps(ctx context.Context, baseDir string) (*deps, error) {
	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	rt := &deps{cfg: cfg, logger: zap.NewNop()}

	logs, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	} else {
		rt.logger = logs.Logger
		rt.closers = append(rt.closers, logs.Close)
	}

	if cfg.RegistryURL != "" {
		rt.transport = registry.NewHTTPTransport(cfg.RegistryURL, registryTimeout)
	} else {
		var database *sql.DB
		database, err = db.Init(baseDir)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db.ConfigurePool(database, cfg)
		rt.closers = append(rt.closers, database.Close)
		rt.transport = registry.NewStore(database)
	}

	parser, err := interpreter.New(cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build interpreter: %w", err)
	}

	rt.sync = ops.NewSynchronizer(registry.NewClient(rt.transport), parser, ops.NewCache(), rt.logger)
	if err := rt.sync.Load(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load routines: %w", err)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		rt.logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	return rt, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before any setup
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'routines --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	rt, err := newDeps(context.Background(), filepath.Join(homeDir, ".routines"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode() {
		app := newCLIApp(rt)
		err = app.Run(os.Args)
	} else {
		err = mcp.Run(rt.sync, rt.cfg, rt.logger, Version)
	}
	rt.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
