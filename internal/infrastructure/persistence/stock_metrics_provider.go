package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMetricsProvider feeds the periodic stock gauges from the ledger tables
type StockMetricsProvider struct {
	db      *gorm.DB
	reports *GormReportRepository
}

// NewStockMetricsProvider creates a new StockMetricsProvider
func NewStockMetricsProvider(db *gorm.DB) *StockMetricsProvider {
	return &StockMetricsProvider{db: db, reports: NewGormReportRepository(db)}
}

// GetExpiredBatchCountByWarehouse returns the number of expired batches still holding stock, per warehouse
func (p *StockMetricsProvider) GetExpiredBatchCountByWarehouse(ctx context.Context, today time.Time) (map[uuid.UUID]int64, error) {
	var rows []struct {
		WarehouseID uuid.UUID
		Count       int64
	}
	if err := p.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Select("warehouse_id, COUNT(*) AS count").
		Where("quantity > 0 AND expiry_date IS NOT NULL AND expiry_date < ?", today).
		Group("warehouse_id").
		Scan(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		out[row.WarehouseID] = row.Count
	}
	return out, nil
}

// GetLowStockCount returns the number of products below their reorder threshold
func (p *StockMetricsProvider) GetLowStockCount(ctx context.Context, defaultThreshold decimal.Decimal) (int64, error) {
	stock, err := p.reports.ProductStockTotals(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(inventory.SuggestReorders(stock, defaultThreshold))), nil
}

var _ telemetry.StockMetricsProvider = (*StockMetricsProvider)(nil)
