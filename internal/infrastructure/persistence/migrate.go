package persistence

import (
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// LedgerModels lists every table the ledger owns, in dependency order
func LedgerModels() []any {
	return []any{
		&models.ProductModel{},
		&models.WarehouseModel{},
		&models.BatchModel{},
		&models.DocumentModel{},
		&models.DocumentLineModel{},
		&models.CountModel{},
		&models.CountLineModel{},
		&models.LotSequenceModel{},
	}
}

// AutoMigrate creates or updates the ledger tables from the models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(LedgerModels()...)
}
