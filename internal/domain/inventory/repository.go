package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchRepository defines the interface for batch persistence.
// Lock* methods take row locks held until the surrounding transaction ends,
// so they are only meaningful inside a TransactionScope.
type BatchRepository interface {
	// FindByID finds a batch by its surrogate ID
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindByKey finds the batch for a product and lot in a warehouse
	FindByKey(ctx context.Context, key BatchKey) (*Batch, error)

	// FindByBarcode finds a batch by its global barcode
	FindByBarcode(ctx context.Context, barcode string) (*Batch, error)

	// FindByProductWarehouse returns the batches of a product in a warehouse,
	// sorted by expiry ascending with undated batches last, then by lot code
	FindByProductWarehouse(ctx context.Context, productID, warehouseID uuid.UUID) ([]Batch, error)

	// FindByProductLot returns the batches of a lot across all warehouses
	FindByProductLot(ctx context.Context, productID uuid.UUID, lotCode string) ([]Batch, error)

	// FindByWarehouse returns every batch in a warehouse, ordered by product then lot
	FindByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]Batch, error)

	// LockByID finds a batch and locks its row for update
	LockByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// LockByKey finds the batch for a key and locks its row for update
	LockByKey(ctx context.Context, key BatchKey) (*Batch, error)

	// LockByProductWarehouse locks every batch of a product in a warehouse,
	// returned in FEFO order
	LockByProductWarehouse(ctx context.Context, productID, warehouseID uuid.UUID) ([]Batch, error)

	// LockByWarehouse locks every batch in a warehouse
	LockByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]Batch, error)

	// Upsert inserts a new batch or updates all columns of an existing one
	Upsert(ctx context.Context, batch *Batch) error

	// AdjustQuantity adds delta to the quantity of a batch on behalf of a document.
	// It fails with ErrInsufficientStock, leaving the row untouched, if the result
	// would be negative, and with ErrNotFound if the batch does not exist.
	AdjustQuantity(ctx context.Context, batchID uuid.UUID, delta decimal.Decimal, documentID uuid.UUID) error

	// BarcodeExists checks whether a barcode is already taken
	BarcodeExists(ctx context.Context, barcode string) (bool, error)

	// KeyExists checks whether a batch already holds the key
	KeyExists(ctx context.Context, key BatchKey) (bool, error)
}

// DocumentRepository defines the interface for document persistence
type DocumentRepository interface {
	// FindByID finds a document with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// FindByNumber finds a document with its lines by its number
	FindByNumber(ctx context.Context, number string) (*Document, error)

	// FindChildren returns the documents whose parent is the given document, oldest first
	FindChildren(ctx context.Context, parentID uuid.UUID) ([]Document, error)

	// LockByID finds a document with its lines and locks the header row
	LockByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// NumberExists checks whether a document number is already taken
	NumberExists(ctx context.Context, number string) (bool, error)

	// Create persists the header of a new document. Lines are written with AppendLines
	// once the batches they reference exist.
	Create(ctx context.Context, doc *Document) error

	// AppendLines persists lines of an existing document
	AppendLines(ctx context.Context, lines []DocumentLine) error
}

// CountRepository defines the interface for count persistence
type CountRepository interface {
	// FindByID finds a count with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Count, error)

	// LockByID finds a count with its lines and locks the count row
	LockByID(ctx context.Context, id uuid.UUID) (*Count, error)

	// Create persists a new count and its snapshot lines
	Create(ctx context.Context, count *Count) error

	// Save persists the state of a count and its lines
	Save(ctx context.Context, count *Count) error
}

// LotSequenceRepository hands out derived lot code suffixes
type LotSequenceRepository interface {
	// Next locks the sequence of a parent lot, returns its current value and advances it.
	// A new sequence starts at 1.
	Next(ctx context.Context, productID uuid.UUID, parentLotCode string) (int, error)
}

// ProductRepository reads product master data
type ProductRepository interface {
	// FindByID finds a product by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs returns the products found among ids, keyed by ID
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
}

// WarehouseRepository reads warehouse master data
type WarehouseRepository interface {
	// FindByID finds a warehouse by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)

	// FindByIDs returns the warehouses found among ids, keyed by ID
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Warehouse, error)

	// FindByKind returns all warehouses of a kind
	FindByKind(ctx context.Context, kind WarehouseKind) ([]Warehouse, error)
}

// ExpiryFilter narrows the expiry report
type ExpiryFilter struct {
	WarehouseID *uuid.UUID
	// Until is the last expiry date included; expired batches are always included
	Until time.Time
}

// StockFilter narrows the stock reports to a warehouse, a product or both
type StockFilter struct {
	WarehouseID *uuid.UUID
	ProductID   *uuid.UUID
}

// MovementFilter selects receipt and issue lines created in [From, To)
type MovementFilter struct {
	From        time.Time
	To          time.Time
	WarehouseID *uuid.UUID
}

// ReportRepository runs read-side queries that span tables
type ReportRepository interface {
	// ExpiringBatches returns batches with stock expiring on or before filter.Until,
	// soonest first
	ExpiringBatches(ctx context.Context, filter ExpiryFilter) ([]ExpiryReportItem, error)

	// ProductStockTotals returns every product with its total quantity across warehouses
	ProductStockTotals(ctx context.Context) ([]ProductStock, error)

	// BatchMovements returns every document line touching a batch, oldest first
	BatchMovements(ctx context.Context, batchID uuid.UUID) ([]BatchMovement, error)

	// StockBatches returns batches holding stock in FEFO order within each
	// warehouse and product
	StockBatches(ctx context.Context, filter StockFilter) ([]StockBatch, error)

	// Movements returns the receipt and issue lines of a period, oldest first
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}
