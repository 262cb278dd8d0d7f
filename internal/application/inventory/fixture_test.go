package inventory_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	appinv "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/strategy/batch"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ledgerFixture runs the ledger over real gorm repositories on in-memory SQLite
type ledgerFixture struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	ledger  *appinv.Ledger
	user    shared.Principal
	today   time.Time
	ticks   atomic.Int64
	product *inventory.Product
	other   *inventory.Product
	mainWH  *inventory.Warehouse
	storeWH *inventory.Warehouse
	errorWH *inventory.Warehouse
	errorB  *inventory.Warehouse
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	database, err := persistence.Open(&config.DatabaseConfig{Driver: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.AutoMigrate())

	db := database.DB
	f := &ledgerFixture{
		t:     t,
		ctx:   context.Background(),
		db:    db,
		today: time.Date(2023, 12, 1, 10, 30, 0, 0, time.UTC),
		user:  shared.Principal{ID: uuid.New(), Name: "alice", Role: shared.RoleStaff},
	}

	f.product = f.seedProduct("P-001", "Milk", decimal.NewFromInt(20))
	f.other = f.seedProduct("P-002", "Yogurt", decimal.Zero)
	f.mainWH = f.seedWarehouse("W1", "Main", inventory.WarehouseKindRegular)
	f.storeWH = f.seedWarehouse("W2", "Store", inventory.WarehouseKindRegular)
	f.errorWH = f.seedWarehouse("ERR1", "Damaged", inventory.WarehouseKindError)
	f.errorB = f.seedWarehouse("ERR2", "Returns", inventory.WarehouseKindError)

	f.ledger = appinv.NewLedger(
		persistence.NewGormTransactionScope(db, 0),
		persistence.NewGormRepositories(db),
		persistence.NewGormReportRepository(db),
		batch.NewFEFOBatchStrategy(),
		appinv.DefaultOptions(),
	)
	// every reading is a second later so documents keep their creation order
	f.ledger.SetClock(func() time.Time {
		return f.today.Add(time.Duration(f.ticks.Add(1)) * time.Second)
	})
	return f
}

func (f *ledgerFixture) seedProduct(code, name string, threshold decimal.Decimal) *inventory.Product {
	p := &inventory.Product{
		ID:               uuid.New(),
		Code:             code,
		Name:             name,
		Unit:             "pcs",
		ReorderThreshold: threshold,
	}
	require.NoError(f.t, persistence.NewGormProductRepository(f.db).Save(f.ctx, p))
	return p
}

func (f *ledgerFixture) seedWarehouse(code, name string, kind inventory.WarehouseKind) *inventory.Warehouse {
	w := &inventory.Warehouse{ID: uuid.New(), Code: code, Name: name, Kind: kind}
	require.NoError(f.t, persistence.NewGormWarehouseRepository(f.db).Save(f.ctx, w))
	return w
}

func date(s string) *time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &d
}

func qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// receive books one lot into a warehouse and returns the resulting batch
func (f *ledgerFixture) receive(wh *inventory.Warehouse, product *inventory.Product, lot string, quantity int64, expiry *time.Time) *inventory.Batch {
	f.t.Helper()
	_, err := f.ledger.CreateReceipt(f.ctx, f.user, appinv.ReceiptRequest{
		WarehouseID: wh.ID,
		Lines: []appinv.ReceiptLineRequest{{
			ProductID:       product.ID,
			LotCode:         lot,
			Quantity:        qty(quantity),
			ManufactureDate: *date("2023-06-01"),
			ExpiryDate:      expiry,
		}},
	})
	require.NoError(f.t, err)
	return f.batch(product, lot, wh)
}

func (f *ledgerFixture) batch(product *inventory.Product, lot string, wh *inventory.Warehouse) *inventory.Batch {
	f.t.Helper()
	b, err := persistence.NewGormBatchRepository(f.db).FindByKey(f.ctx, inventory.BatchKey{
		ProductID:   product.ID,
		LotCode:     lot,
		WarehouseID: wh.ID,
	})
	require.NoError(f.t, err)
	return b
}

func (f *ledgerFixture) batchByID(id uuid.UUID) *inventory.Batch {
	f.t.Helper()
	b, err := persistence.NewGormBatchRepository(f.db).FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

// totalStock sums every batch of a product across all warehouses
func (f *ledgerFixture) totalStock(product *inventory.Product) decimal.Decimal {
	f.t.Helper()
	var total decimal.Decimal
	require.NoError(f.t, f.db.Raw("SELECT COALESCE(SUM(quantity), 0) FROM batches WHERE product_id = ?", product.ID).
		Scan(&total).Error)
	return total
}

// documentCount counts persisted documents
func (f *ledgerFixture) documentCount() int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Table("documents").Count(&n).Error)
	return n
}

func assertQty(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(qty(want)), append([]any{"want %d, got %s", want, got}, msgAndArgs...)...)
}
