// Command migrate owns the PostgreSQL schema of the ledger. SQLite databases
// are created by the server itself and never pass through here.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("usage")

// command is one CLI verb. Offline commands only touch the migrations directory.
type command struct {
	usage   string
	help    string
	offline bool
	run     func(env *cliEnv, args []string) error
}

type cliEnv struct {
	log  *zap.Logger
	path string
	m    *migration.Migrator
}

var commands = map[string]command{
	"up":      {usage: "up", help: "Apply all pending migrations", run: func(e *cliEnv, _ []string) error { return e.m.Up() }},
	"down":    {usage: "down", help: "Roll back all migrations", run: func(e *cliEnv, _ []string) error { return e.m.Down() }},
	"step":    {usage: "step <n>", help: "Apply n migrations, negative n rolls back", run: runStep},
	"goto":    {usage: "goto <version>", help: "Migrate up or down to a version", run: runGoto},
	"version": {usage: "version", help: "Show the applied version", run: runVersion},
	"force":   {usage: "force <version>", help: "Record a version without running it, clears a dirty state", run: runForce},
	"create":  {usage: "create <name> [description]", help: "Scaffold the next numbered migration pair", offline: true, run: runCreate},
	"list":    {usage: "list", help: "List migrations on disk", offline: true, run: runList},
}

var commandOrder = []string{"up", "down", "step", "goto", "version", "force", "create", "list"}

func main() {
	path := flag.String("path", "", "migrations directory (default ./migrations)")
	level := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout", TimeFormat: logger.DefaultTimeFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	err = run(log, *path, flag.Arg(0), flag.Args()[1:])
	logger.Sync(log)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	case err != nil:
		log.Error("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		logger.Sync(log)
		os.Exit(1)
	}
}

func run(log *zap.Logger, path, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	dir, err := resolveMigrationsPath(path)
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}
	env := &cliEnv{log: log, path: dir}
	log.Debug("Running migration command", zap.String("command", name), zap.String("migrations_path", dir))

	if cmd.offline {
		return cmd.run(env, args)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if env.m, err = migration.New(db, dir, log); err != nil {
		return err
	}
	defer env.m.Close()
	return cmd.run(env, args)
}

func openDatabase() (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("migrations target postgres, configured driver is %q", cfg.Database.Driver)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", errUsage, what, args[0])
	}
	return n, nil
}

func runStep(e *cliEnv, args []string) error {
	n, err := intArg(args, "step count")
	if err != nil {
		return err
	}
	return e.m.Steps(n)
}

func runGoto(e *cliEnv, args []string) error {
	v, err := intArg(args, "version")
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%w: version cannot be negative", errUsage)
	}
	return e.m.GoTo(uint(v))
}

func runForce(e *cliEnv, args []string) error {
	v, err := intArg(args, "version")
	if err != nil {
		return err
	}
	return e.m.Force(v)
}

func runVersion(e *cliEnv, _ []string) error {
	version, dirty, err := e.m.Version()
	if err != nil {
		return err
	}
	e.log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func runCreate(e *cliEnv, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migration name required", errUsage)
	}
	var description string
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(e.path, args[0], description)
	if err != nil {
		return err
	}
	e.log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList(e *cliEnv, _ []string) error {
	found, err := migration.ListMigrations(e.path)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		e.log.Info("No migrations found")
	}
	for _, m := range found {
		suffix := ""
		if !m.HasDown {
			suffix = " (no down)"
		}
		fmt.Printf("  %06d  %s%s\n", m.Version, m.Name, suffix)
	}
	return nil
}

// resolveMigrationsPath tries ./migrations, then the repository layout
// relative to the binary
func resolveMigrationsPath(path string) (string, error) {
	if path != "" {
		return filepath.Abs(path)
	}
	candidates := []string{defaultMigrationsPath}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return filepath.Abs(c)
		}
	}
	return filepath.Abs(defaultMigrationsPath)
}

func printUsage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Ledger schema migrations\n\nUsage:\n  migrate [flags] <command> [arguments]\n\nCommands:")
	for _, name := range commandOrder {
		c := commands[name]
		fmt.Fprintf(out, "  %-28s %s\n", c.usage, c.help)
	}
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nThe database comes from the LEDGER_DATABASE_* settings, see config.toml.")
}
