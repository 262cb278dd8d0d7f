// Package migration applies the ledger's SQL migrations with golang-migrate
// and scaffolds new migration files.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// VersionTable keeps the ledger's bookkeeping apart from other schemas sharing the database
const VersionTable = "ledger_schema_migrations"

type Migrator struct {
	engine *migrate.Migrate
	log    *zap.Logger
}

func New(db *sql.DB, dir string, log *zap.Logger) (*Migrator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	target, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: VersionTable})
	if err != nil {
		return nil, fmt.Errorf("migration target: %w", err)
	}
	engine, err := migrate.NewWithDatabaseInstance(fileSource(dir), "postgres", target)
	if err != nil {
		return nil, fmt.Errorf("migration source %s: %w", dir, err)
	}
	engine.Log = engineLog{log: log.Named("migrate")}
	return &Migrator{engine: engine, log: log}, nil
}

func fileSource(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return "file://" + filepath.ToSlash(dir)
}

// engineLog routes golang-migrate's own progress lines into zap at debug
type engineLog struct{ log *zap.Logger }

func (l engineLog) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l engineLog) Verbose() bool { return l.log.Core().Enabled(zap.DebugLevel) }

// run executes op and reports the version it left behind. An up-to-date
// schema is success.
func (m *Migrator) run(op string, fn func() error) error {
	switch err := fn(); {
	case errors.Is(err, migrate.ErrNoChange):
		m.log.Info("Schema already current", zap.String("operation", op))
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", op, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Schema migrated", zap.String("operation", op), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (m *Migrator) Up() error   { return m.run("up", m.engine.Up) }
func (m *Migrator) Down() error { return m.run("down", m.engine.Down) }

// Steps moves n versions, backwards when n is negative
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("step %+d", n), func() error { return m.engine.Steps(n) })
}

func (m *Migrator) GoTo(version uint) error {
	return m.run(fmt.Sprintf("goto %d", version), func() error { return m.engine.Migrate(version) })
}

// Version is 0 on a database that never ran a migration
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.engine.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force stamps version without running SQL; used to recover from a dirty state
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing schema version, no SQL is executed", zap.Int("version", version))
	if err := m.engine.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) Close() error {
	return errors.Join(m.engine.Close())
}
