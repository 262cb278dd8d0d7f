package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	applogger "github.com/erp/ledger/internal/infrastructure/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Database pairs the GORM handle with its pool
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

type openOptions struct {
	log gormlogger.Interface
}

// Option adjusts how Open connects
type Option func(*openOptions)

// WithSQLLog sends GORM statements to log. Without it GORM stays silent.
func WithSQLLog(log *zap.Logger, level gormlogger.LogLevel, slow time.Duration) Option {
	return func(o *openOptions) {
		o.log = applogger.NewSQLLogger(log, applogger.SQLLogConfig{Level: level, SlowThreshold: slow})
	}
}

// Open connects to cfg's database, sizes the pool and verifies the link
func Open(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := openOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	gcfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	if o.log != nil {
		gcfg.Logger = o.log
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("connection pool: %w", err)
	}
	sizePool(pool, cfg)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return &Database{DB: db, sql: pool}, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		return postgres.Open(cfg.DSN()), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func sizePool(pool *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.Driver == DriverSQLite {
		// an in-memory database lives and dies with its only connection
		pool.SetMaxOpenConns(1)
		return
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

// SQL exposes the pool for health checks and pool metrics
func (d *Database) SQL() *sql.DB { return d.sql }

func (d *Database) PingContext(ctx context.Context) error { return d.sql.PingContext(ctx) }

func (d *Database) Stats() sql.DBStats { return d.sql.Stats() }

func (d *Database) Close() error { return d.sql.Close() }

// AutoMigrate creates the ledger tables from the models. SQLite only,
// PostgreSQL schemas come from the files under migrations/.
func (d *Database) AutoMigrate() error {
	return AutoMigrate(d.DB)
}
