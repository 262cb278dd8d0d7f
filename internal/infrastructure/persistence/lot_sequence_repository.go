package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLotSequenceRepository hands out derived lot code suffixes from the lot_sequences table
type GormLotSequenceRepository struct {
	db *gorm.DB
}

// NewGormLotSequenceRepository creates a new GormLotSequenceRepository
func NewGormLotSequenceRepository(db *gorm.DB) *GormLotSequenceRepository {
	return &GormLotSequenceRepository{db: db}
}

// Next returns the current value for a parent lot and advances it.
// The row lock serialises concurrent splits of the same lot.
func (r *GormLotSequenceRepository) Next(ctx context.Context, productID uuid.UUID, parentLotCode string) (int, error) {
	db := r.db.WithContext(ctx)
	now := time.Now().UTC()

	seed := &models.LotSequenceModel{
		ProductID:     productID,
		ParentLotCode: parentLotCode,
		NextValue:     1,
		UpdatedAt:     now,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return 0, translateError(err)
	}

	var seq models.LotSequenceModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND parent_lot_code = ?", productID, parentLotCode).
		First(&seq).Error; err != nil {
		return 0, translateError(err)
	}

	if err := db.Model(&models.LotSequenceModel{}).
		Where("product_id = ? AND parent_lot_code = ?", productID, parentLotCode).
		Updates(map[string]any{
			"next_value": seq.NextValue + 1,
			"updated_at": now,
		}).Error; err != nil {
		return 0, translateError(err)
	}
	return seq.NextValue, nil
}

var _ inventory.LotSequenceRepository = (*GormLotSequenceRepository)(nil)
