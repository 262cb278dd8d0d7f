package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductRepository reads products using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the products found among ids, keyed by ID
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*inventory.Product, error) {
	out := make(map[uuid.UUID]*inventory.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var ms []models.ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	for i := range ms {
		out[ms[i].ID] = ms[i].ToDomain()
	}
	return out, nil
}

// Save inserts or updates a product. Master data is owned elsewhere; this
// serves seeding and tests.
func (r *GormProductRepository) Save(ctx context.Context, product *inventory.Product) error {
	return translateError(r.db.WithContext(ctx).Save(models.ProductModelFromDomain(product)).Error)
}

// GormWarehouseRepository reads warehouses using GORM
type GormWarehouseRepository struct {
	db *gorm.DB
}

// NewGormWarehouseRepository creates a new GormWarehouseRepository
func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

// FindByID finds a warehouse by its ID
func (r *GormWarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Warehouse, error) {
	var model models.WarehouseModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the warehouses found among ids, keyed by ID
func (r *GormWarehouseRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*inventory.Warehouse, error) {
	out := make(map[uuid.UUID]*inventory.Warehouse, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var ms []models.WarehouseModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	for i := range ms {
		out[ms[i].ID] = ms[i].ToDomain()
	}
	return out, nil
}

// FindByKind returns all warehouses of a kind, ordered by code
func (r *GormWarehouseRepository) FindByKind(ctx context.Context, kind inventory.WarehouseKind) ([]inventory.Warehouse, error) {
	var ms []models.WarehouseModel
	if err := r.db.WithContext(ctx).Where("kind = ?", kind).Order("code").Find(&ms).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]inventory.Warehouse, len(ms))
	for i := range ms {
		out[i] = *ms[i].ToDomain()
	}
	return out, nil
}

// Save inserts or updates a warehouse
func (r *GormWarehouseRepository) Save(ctx context.Context, warehouse *inventory.Warehouse) error {
	return translateError(r.db.WithContext(ctx).Save(models.WarehouseModelFromDomain(warehouse)).Error)
}

var (
	_ inventory.ProductRepository   = (*GormProductRepository)(nil)
	_ inventory.WarehouseRepository = (*GormWarehouseRepository)(nil)
)
