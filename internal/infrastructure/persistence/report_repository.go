package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReportRepository runs the read-side ledger reports. Queries are composed
// with squirrel and executed through gorm so they share its connection,
// logger and tracing.
type GormReportRepository struct {
	db      *gorm.DB
	builder squirrel.StatementBuilderType
}

// NewGormReportRepository creates a new GormReportRepository
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{
		db: db,
		// gorm rewrites ? into the dialect's placeholders
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

type expiringBatchRow struct {
	BatchID       uuid.UUID
	ProductID     uuid.UUID
	ProductCode   string
	ProductName   string
	WarehouseID   uuid.UUID
	WarehouseCode string
	LotCode       string
	Barcode       string
	ExpiryDate    time.Time
	Quantity      decimal.Decimal
}

// ExpiringBatches returns batches with stock expiring on or before filter.Until, soonest first
func (r *GormReportRepository) ExpiringBatches(ctx context.Context, filter inventory.ExpiryFilter) ([]inventory.ExpiryReportItem, error) {
	q := r.builder.
		Select(
			"b.id AS batch_id",
			"b.product_id",
			"p.code AS product_code",
			"p.name AS product_name",
			"b.warehouse_id",
			"w.code AS warehouse_code",
			"b.lot_code",
			"b.barcode",
			"b.expiry_date",
			"b.quantity",
		).
		From("batches b").
		Join("products p ON p.id = b.product_id").
		Join("warehouses w ON w.id = b.warehouse_id").
		Where(squirrel.Gt{"b.quantity": 0}).
		Where(squirrel.NotEq{"b.expiry_date": nil}).
		Where(squirrel.LtOrEq{"b.expiry_date": filter.Until}).
		OrderBy("b.expiry_date ASC", "p.code ASC", "b.lot_code ASC")

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"b.warehouse_id": *filter.WarehouseID})
	}

	var rows []expiringBatchRow
	if err := r.raw(ctx, q, &rows); err != nil {
		return nil, err
	}

	items := make([]inventory.ExpiryReportItem, len(rows))
	for i, row := range rows {
		items[i] = inventory.ExpiryReportItem{
			BatchID:       row.BatchID,
			ProductID:     row.ProductID,
			ProductCode:   row.ProductCode,
			ProductName:   row.ProductName,
			WarehouseID:   row.WarehouseID,
			WarehouseCode: row.WarehouseCode,
			LotCode:       row.LotCode,
			Barcode:       row.Barcode,
			ExpiryDate:    row.ExpiryDate,
			Quantity:      row.Quantity,
		}
	}
	return items, nil
}

type productStockRow struct {
	ProductID        uuid.UUID
	ProductCode      string
	ProductName      string
	Unit             string
	ReorderThreshold decimal.Decimal
	TotalQuantity    decimal.Decimal
}

// ProductStockTotals returns every product with its quantity summed across warehouses.
// Products without batches report zero.
func (r *GormReportRepository) ProductStockTotals(ctx context.Context) ([]inventory.ProductStock, error) {
	q := r.builder.
		Select(
			"p.id AS product_id",
			"p.code AS product_code",
			"p.name AS product_name",
			"p.unit",
			"p.reorder_threshold",
			"COALESCE(SUM(b.quantity), 0) AS total_quantity",
		).
		From("products p").
		LeftJoin("batches b ON b.product_id = p.id").
		GroupBy("p.id", "p.code", "p.name", "p.unit", "p.reorder_threshold").
		OrderBy("p.code ASC")

	var rows []productStockRow
	if err := r.raw(ctx, q, &rows); err != nil {
		return nil, err
	}

	out := make([]inventory.ProductStock, len(rows))
	for i, row := range rows {
		out[i] = inventory.ProductStock(row)
	}
	return out, nil
}

type batchMovementRow struct {
	DocumentID     uuid.UUID
	DocumentNumber string
	Kind           string
	Purpose        string
	Reference      string
	LineNo         int
	WarehouseID    uuid.UUID
	Quantity       decimal.Decimal
	CreatedByName  string
	CreatedAt      time.Time
}

// BatchMovements returns every document line touching a batch, oldest first
func (r *GormReportRepository) BatchMovements(ctx context.Context, batchID uuid.UUID) ([]inventory.BatchMovement, error) {
	q := r.builder.
		Select(
			"d.id AS document_id",
			"d.number AS document_number",
			"d.kind",
			"d.purpose",
			"d.reference",
			"l.line_no",
			"l.warehouse_id",
			"l.quantity",
			"d.created_by_name",
			"d.created_at",
		).
		From("document_lines l").
		Join("documents d ON d.id = l.document_id").
		Where(squirrel.Eq{"l.batch_id": batchID}).
		OrderBy("d.created_at ASC", "d.number ASC", "l.line_no ASC")

	var rows []batchMovementRow
	if err := r.raw(ctx, q, &rows); err != nil {
		return nil, err
	}

	out := make([]inventory.BatchMovement, len(rows))
	for i, row := range rows {
		out[i] = inventory.BatchMovement{
			DocumentID:     row.DocumentID,
			DocumentNumber: row.DocumentNumber,
			Kind:           inventory.DocumentKind(row.Kind),
			Purpose:        row.Purpose,
			Reference:      row.Reference,
			LineNo:         row.LineNo,
			WarehouseID:    row.WarehouseID,
			Quantity:       row.Quantity,
			CreatedByName:  row.CreatedByName,
			CreatedAt:      row.CreatedAt,
		}
	}
	return out, nil
}

type stockBatchRow struct {
	BatchID       uuid.UUID
	ProductID     uuid.UUID
	ProductCode   string
	ProductName   string
	Unit          string
	WarehouseID   uuid.UUID
	WarehouseCode string
	WarehouseKind string
	LotCode       string
	Barcode       string
	ExpiryDate    *time.Time
	Quantity      decimal.Decimal
}

// StockBatches returns batches holding stock, grouped by warehouse and product
// and in FEFO order within each group
func (r *GormReportRepository) StockBatches(ctx context.Context, filter inventory.StockFilter) ([]inventory.StockBatch, error) {
	q := r.builder.
		Select(
			"b.id AS batch_id",
			"b.product_id",
			"p.code AS product_code",
			"p.name AS product_name",
			"p.unit",
			"b.warehouse_id",
			"w.code AS warehouse_code",
			"w.kind AS warehouse_kind",
			"b.lot_code",
			"b.barcode",
			"b.expiry_date",
			"b.quantity",
		).
		From("batches b").
		Join("products p ON p.id = b.product_id").
		Join("warehouses w ON w.id = b.warehouse_id").
		Where(squirrel.Gt{"b.quantity": 0}).
		OrderBy("w.code ASC", "p.code ASC", "b.expiry_date IS NULL", "b.expiry_date ASC", "b.lot_code ASC")

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"b.warehouse_id": *filter.WarehouseID})
	}
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"b.product_id": *filter.ProductID})
	}

	var rows []stockBatchRow
	if err := r.raw(ctx, q, &rows); err != nil {
		return nil, err
	}

	out := make([]inventory.StockBatch, len(rows))
	for i, row := range rows {
		out[i] = inventory.StockBatch{
			BatchID:       row.BatchID,
			ProductID:     row.ProductID,
			ProductCode:   row.ProductCode,
			ProductName:   row.ProductName,
			Unit:          row.Unit,
			WarehouseID:   row.WarehouseID,
			WarehouseCode: row.WarehouseCode,
			WarehouseKind: inventory.WarehouseKind(row.WarehouseKind),
			LotCode:       row.LotCode,
			Barcode:       row.Barcode,
			ExpiryDate:    row.ExpiryDate,
			Quantity:      row.Quantity,
		}
	}
	return out, nil
}

type movementRow struct {
	DocumentID     uuid.UUID
	DocumentNumber string
	Kind           string
	Purpose        string
	CreatedAt      time.Time
	LineNo         int
	WarehouseID    uuid.UUID
	WarehouseCode  string
	ProductID      uuid.UUID
	ProductCode    string
	ProductName    string
	BatchID        uuid.UUID
	LotCode        string
	Quantity       decimal.Decimal
}

// Movements returns receipt and issue lines created in [filter.From, filter.To), oldest first.
// Transfers appear through the issue and receipt they own.
func (r *GormReportRepository) Movements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	q := r.builder.
		Select(
			"d.id AS document_id",
			"d.number AS document_number",
			"d.kind",
			"d.purpose",
			"d.created_at",
			"l.line_no",
			"l.warehouse_id",
			"w.code AS warehouse_code",
			"l.product_id",
			"p.code AS product_code",
			"p.name AS product_name",
			"l.batch_id",
			"l.lot_code",
			"l.quantity",
		).
		From("document_lines l").
		Join("documents d ON d.id = l.document_id").
		Join("products p ON p.id = l.product_id").
		Join("warehouses w ON w.id = l.warehouse_id").
		Where(squirrel.Eq{"d.kind": []string{
			inventory.DocumentKindReceipt.String(),
			inventory.DocumentKindIssue.String(),
		}}).
		Where(squirrel.GtOrEq{"d.created_at": filter.From}).
		Where(squirrel.Lt{"d.created_at": filter.To}).
		OrderBy("d.created_at ASC", "d.number ASC", "l.line_no ASC")

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"l.warehouse_id": *filter.WarehouseID})
	}

	var rows []movementRow
	if err := r.raw(ctx, q, &rows); err != nil {
		return nil, err
	}

	out := make([]inventory.Movement, len(rows))
	for i, row := range rows {
		out[i] = inventory.Movement{
			DocumentID:     row.DocumentID,
			DocumentNumber: row.DocumentNumber,
			Kind:           inventory.DocumentKind(row.Kind),
			Purpose:        row.Purpose,
			CreatedAt:      row.CreatedAt,
			LineNo:         row.LineNo,
			WarehouseID:    row.WarehouseID,
			WarehouseCode:  row.WarehouseCode,
			ProductID:      row.ProductID,
			ProductCode:    row.ProductCode,
			ProductName:    row.ProductName,
			BatchID:        row.BatchID,
			LotCode:        row.LotCode,
			Quantity:       row.Quantity,
		}
	}
	return out, nil
}

func (r *GormReportRepository) raw(ctx context.Context, q squirrel.SelectBuilder, dest any) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build report query: %w", err)
	}
	return translateError(r.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error)
}

var _ inventory.ReportRepository = (*GormReportRepository)(nil)
