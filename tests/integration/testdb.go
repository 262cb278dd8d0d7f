// Package integration runs the ledger against real PostgreSQL containers
// started by testcontainers, with the schema applied by the migration tool.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormlogger "gorm.io/gorm/logger"
)

const (
	pgImage    = "postgres:16-alpine"
	pgDatabase = "ledger_test"
	pgUser     = "ledger"
	pgPassword = "ledger-test"
)

// TestDB is a migrated database in its own container, opened through the
// same persistence.Open the server uses
type TestDB struct {
	*persistence.Database
	t *testing.T
}

// NewTestDB starts a container and applies every migration. Everything is
// torn down on test cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests need docker")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, pgImage,
		tcpostgres.WithDatabase(pgDatabase),
		tcpostgres.WithUsername(pgUser),
		tcpostgres.WithPassword(pgPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Driver:       persistence.DriverPostgres,
		Host:         host,
		Port:         port.Int(),
		User:         pgUser,
		Password:     pgPassword,
		DBName:       pgDatabase,
		SSLMode:      "disable",
		MaxOpenConns: 20, // the concurrency tests hold many transactions open
		MaxIdleConns: 5,
	}
	var opts []persistence.Option
	if os.Getenv("TEST_DB_DEBUG") != "" {
		opts = append(opts, persistence.WithSQLLog(zaptest.NewLogger(t), gormlogger.Info, 0))
	}
	db, err := persistence.Open(&cfg, opts...)
	require.NoError(t, err, "open postgres")
	t.Cleanup(func() { _ = db.Close() })

	dir := findMigrationsPath()
	require.NotEmpty(t, dir, "migrations directory not found")
	m, err := migration.New(db.SQL(), dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return &TestDB{Database: db, t: t}
}

// CleanTables empties every ledger table, the version table excepted
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	require.NoError(tdb.t, tdb.DB.Raw(
		"SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> ?", migration.VersionTable,
	).Scan(&tables).Error)
	if len(tables) == 0 {
		return
	}
	quoted := make([]string, len(tables))
	for i, name := range tables {
		quoted[i] = `"` + name + `"`
	}
	require.NoError(tdb.t, tdb.DB.Exec("TRUNCATE TABLE "+strings.Join(quoted, ", ")+" CASCADE").Error)
}

func (tdb *TestDB) CreateProduct(code, name string, threshold decimal.Decimal) *inventory.Product {
	tdb.t.Helper()

	p := &inventory.Product{ID: uuid.New(), Code: code, Name: name, Unit: "pcs", ReorderThreshold: threshold}
	require.NoError(tdb.t, persistence.NewGormProductRepository(tdb.DB).Save(context.Background(), p))
	return p
}

func (tdb *TestDB) CreateWarehouse(code, name string, kind inventory.WarehouseKind) *inventory.Warehouse {
	tdb.t.Helper()

	w := &inventory.Warehouse{ID: uuid.New(), Code: code, Name: name, Kind: kind}
	require.NoError(tdb.t, persistence.NewGormWarehouseRepository(tdb.DB).Save(context.Background(), w))
	return w
}

// BatchQuantity reads the stored quantity, bypassing the repositories
func (tdb *TestDB) BatchQuantity(productID uuid.UUID, lot string, warehouseID uuid.UUID) decimal.Decimal {
	tdb.t.Helper()

	var q decimal.Decimal
	require.NoError(tdb.t, tdb.DB.Raw(
		"SELECT quantity FROM batches WHERE product_id = ? AND lot_code = ? AND warehouse_id = ?",
		productID, lot, warehouseID,
	).Scan(&q).Error)
	return q
}

// findMigrationsPath walks up from this file to the repository's migrations directory
func findMigrationsPath() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	for dir := filepath.Dir(file); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}
