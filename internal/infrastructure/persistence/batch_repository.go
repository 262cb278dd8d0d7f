package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fefoOrder sorts soonest expiry first, undated batches last, ties by lot code
const fefoOrder = "expiry_date IS NULL, expiry_date ASC, lot_code ASC"

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByKey finds the batch for a product and lot in a warehouse
func (r *GormBatchRepository) FindByKey(ctx context.Context, key inventory.BatchKey) (*inventory.Batch, error) {
	return r.first(r.whereKey(r.db.WithContext(ctx), key))
}

// FindByBarcode finds a batch by its barcode
func (r *GormBatchRepository) FindByBarcode(ctx context.Context, barcode string) (*inventory.Batch, error) {
	return r.first(r.db.WithContext(ctx).Where("barcode = ?", barcode))
}

// FindByProductWarehouse returns the batches of a product in a warehouse in FEFO order
func (r *GormBatchRepository) FindByProductWarehouse(ctx context.Context, productID, warehouseID uuid.UUID) ([]inventory.Batch, error) {
	return r.find(r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		Order(fefoOrder))
}

// FindByProductLot returns the batches of a lot across all warehouses
func (r *GormBatchRepository) FindByProductLot(ctx context.Context, productID uuid.UUID, lotCode string) ([]inventory.Batch, error) {
	return r.find(r.db.WithContext(ctx).
		Where("product_id = ? AND lot_code = ?", productID, lotCode).
		Order("warehouse_id"))
}

// FindByWarehouse returns every batch in a warehouse, ordered by product then lot
func (r *GormBatchRepository) FindByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]inventory.Batch, error) {
	return r.find(r.db.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		Order("product_id, lot_code"))
}

// LockByID finds a batch and locks its row for update
func (r *GormBatchRepository) LockByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	return r.first(r.locked(ctx).Where("id = ?", id))
}

// LockByKey finds the batch for a key and locks its row for update
func (r *GormBatchRepository) LockByKey(ctx context.Context, key inventory.BatchKey) (*inventory.Batch, error) {
	return r.first(r.whereKey(r.locked(ctx), key))
}

// LockByProductWarehouse locks every batch of a product in a warehouse, in FEFO order.
// Rows are locked in that order so concurrent issues of one product cannot deadlock.
func (r *GormBatchRepository) LockByProductWarehouse(ctx context.Context, productID, warehouseID uuid.UUID) ([]inventory.Batch, error) {
	return r.find(r.locked(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		Order(fefoOrder))
}

// LockByWarehouse locks every batch in a warehouse
func (r *GormBatchRepository) LockByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]inventory.Batch, error) {
	return r.find(r.locked(ctx).
		Where("warehouse_id = ?", warehouseID).
		Order("product_id, lot_code"))
}

// Upsert inserts a new batch or updates all columns of an existing one
func (r *GormBatchRepository) Upsert(ctx context.Context, batch *inventory.Batch) error {
	model := models.BatchModelFromDomain(batch)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	return translateError(err)
}

// AdjustQuantity adds delta to a batch with a guarded update, so the row can
// never be written below zero even if the caller's copy is stale.
func (r *GormBatchRepository) AdjustQuantity(ctx context.Context, batchID uuid.UUID, delta decimal.Decimal, documentID uuid.UUID) error {
	if delta.IsZero() {
		return nil
	}

	updates := map[string]any{
		"quantity":   gorm.Expr("quantity + ?", delta),
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	}
	if delta.IsPositive() {
		updates["last_receipt_id"] = documentID
	} else {
		updates["last_issue_id"] = documentID
	}

	result := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("id = ? AND quantity + ? >= 0", batchID, delta).
		Updates(updates)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	exists, err := r.exists(r.db.WithContext(ctx).Where("id = ?", batchID))
	if err != nil {
		return err
	}
	if !exists {
		return shared.ErrNotFound
	}
	return shared.NewDomainError(shared.CodeInsufficientStock,
		"batch "+batchID.String()+" cannot cover "+delta.Neg().String())
}

// BarcodeExists checks whether a barcode is already taken
func (r *GormBatchRepository) BarcodeExists(ctx context.Context, barcode string) (bool, error) {
	return r.exists(r.db.WithContext(ctx).Where("barcode = ?", barcode))
}

// KeyExists checks whether a batch already holds the key
func (r *GormBatchRepository) KeyExists(ctx context.Context, key inventory.BatchKey) (bool, error) {
	return r.exists(r.whereKey(r.db.WithContext(ctx), key))
}

func (r *GormBatchRepository) locked(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *GormBatchRepository) whereKey(db *gorm.DB, key inventory.BatchKey) *gorm.DB {
	return db.Where("product_id = ? AND lot_code = ? AND warehouse_id = ?", key.ProductID, key.LotCode, key.WarehouseID)
}

func (r *GormBatchRepository) first(query *gorm.DB) (*inventory.Batch, error) {
	var model models.BatchModel
	if err := query.First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

func (r *GormBatchRepository) find(query *gorm.DB) ([]inventory.Batch, error) {
	var ms []models.BatchModel
	if err := query.Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	return models.BatchModelsToDomain(ms), nil
}

func (r *GormBatchRepository) exists(query *gorm.DB) (bool, error) {
	var count int64
	if err := query.Model(&models.BatchModel{}).Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

var _ inventory.BatchRepository = (*GormBatchRepository)(nil)
