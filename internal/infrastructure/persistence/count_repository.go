package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCountRepository implements CountRepository using GORM
type GormCountRepository struct {
	db *gorm.DB
}

// NewGormCountRepository creates a new GormCountRepository
func NewGormCountRepository(db *gorm.DB) *GormCountRepository {
	return &GormCountRepository{db: db}
}

// FindByID finds a count with its lines
func (r *GormCountRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Count, error) {
	return r.first(r.db.WithContext(ctx), id)
}

// LockByID finds a count with its lines and locks the count row
func (r *GormCountRepository) LockByID(ctx context.Context, id uuid.UUID) (*inventory.Count, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// Create persists a new count and its snapshot lines
func (r *GormCountRepository) Create(ctx context.Context, count *inventory.Count) error {
	model := models.CountModelFromDomain(count)
	return translateError(r.db.WithContext(ctx).Create(model).Error)
}

// Save persists the state of a count and its lines.
// Snapshot lines never change membership, so each line is updated in place.
func (r *GormCountRepository) Save(ctx context.Context, count *inventory.Count) error {
	model := models.CountModelFromDomain(count)
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.CountModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"status":        model.Status,
			"recorded_at":   model.RecordedAt,
			"reconciled_at": model.ReconciledAt,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    model.UpdatedAt,
		}).Error; err != nil {
		return translateError(err)
	}

	for i := range model.Lines {
		line := &model.Lines[i]
		if err := db.Model(&models.CountLineModel{}).
			Where("id = ?", line.ID).
			Updates(map[string]any{
				"counted_quantity": line.CountedQuantity,
				"recorded_at":      line.RecordedAt,
			}).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

func (r *GormCountRepository) first(query *gorm.DB, id uuid.UUID) (*inventory.Count, error) {
	var model models.CountModel
	if err := query.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_id ASC, lot_code ASC")
		}).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

var _ inventory.CountRepository = (*GormCountRepository)(nil)
