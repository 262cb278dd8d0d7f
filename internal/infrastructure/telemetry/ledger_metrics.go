package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when ledger metrics are built without a meter
var ErrMeterNil = errors.New("ledger metrics: meter is nil")

// defaultStockInterval is how often stock health gauges refresh when no interval is set
const defaultStockInterval = 5 * time.Minute

// StockMetricsProvider reads the stock health figures behind the periodic
// gauges, so telemetry need not depend on the inventory domain.
type StockMetricsProvider interface {
	// GetExpiredBatchCountByWarehouse counts expired batches still holding stock, per warehouse
	GetExpiredBatchCountByWarehouse(ctx context.Context, today time.Time) (map[uuid.UUID]int64, error)

	// GetLowStockCount counts products whose total stock is below their reorder threshold
	GetLowStockCount(ctx context.Context, defaultThreshold decimal.Decimal) (int64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	CollectInterval  time.Duration
	StockProvider    StockMetricsProvider
	DefaultThreshold decimal.Decimal
}

// LedgerMetrics counts committed documents and rejections and samples stock health.
type LedgerMetrics struct {
	log   *zap.Logger
	stock StockMetricsProvider

	documents  metric.Int64Counter
	moved      metric.Float64Counter
	rejections metric.Int64Counter
	drawn      metric.Float64Histogram
	expired    metric.Int64Gauge
	lowStock   metric.Int64Gauge

	start sync.Once
	stop  sync.Once
	done  chan struct{}
}

// NewLedgerMetrics declares the ledger instruments on cfg.Meter.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	in := NewInstruments(cfg.Meter)
	lm := &LedgerMetrics{
		log:   log,
		stock: cfg.StockProvider,
		done:  make(chan struct{}),

		documents:  in.Counter("ledger_documents_total", "Committed ledger documents", "{documents}"),
		moved:      in.FloatCounter("ledger_quantity_moved_total", "Stock quantity moved by committed documents", "{units}"),
		rejections: in.Counter("ledger_rejections_total", "Ledger operations refused by a business rule", "{operations}"),
		drawn: in.Histogram("ledger_allocation_batches", "Batches one FEFO allocation draws from", "{batches}",
			AllocationBatchBuckets...),
		expired:  in.Gauge("ledger_expired_stock_batches", "Expired batches still holding stock", "{batches}"),
		lowStock: in.Gauge("ledger_low_stock_products", "Products below their reorder threshold", "{products}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return lm, nil
}

// RecordDocument counts a committed document and the quantity its lines moved.
func (lm *LedgerMetrics) RecordDocument(ctx context.Context, kind string, quantity decimal.Decimal) {
	attrs := With(AttrDocumentKind.String(kind))
	lm.documents.Add(ctx, 1, attrs)
	lm.moved.Add(ctx, quantity.InexactFloat64(), attrs)
}

// RecordRejection counts an operation refused with a domain error code.
func (lm *LedgerMetrics) RecordRejection(ctx context.Context, code string) {
	if code == "" {
		code = "INTERNAL"
	}
	lm.rejections.Add(ctx, 1, With(AttrErrorCode.String(code)))
}

// RecordAllocation records how many batches one FEFO allocation used.
func (lm *LedgerMetrics) RecordAllocation(ctx context.Context, warehouseID uuid.UUID, batches int) {
	lm.drawn.Record(ctx, float64(batches), With(AttrWarehouseID.String(warehouseID.String())))
}

// StartPeriodicCollection samples the stock gauges now and then every
// interval until ctx ends or Stop is called. Only the first call starts a loop.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration, defaultThreshold decimal.Decimal) {
	if interval <= 0 {
		interval = defaultStockInterval
	}
	lm.start.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				lm.sampleStock(ctx, defaultThreshold)
				select {
				case <-lm.done:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	})
}

func (lm *LedgerMetrics) sampleStock(ctx context.Context, defaultThreshold decimal.Decimal) {
	if lm.stock == nil {
		return
	}

	if perWarehouse, err := lm.stock.GetExpiredBatchCountByWarehouse(ctx, time.Now()); err != nil {
		lm.log.Warn("Expired batch sampling failed", zap.Error(err))
	} else {
		for warehouseID, n := range perWarehouse {
			lm.expired.Record(ctx, n, With(AttrWarehouseID.String(warehouseID.String())))
		}
	}

	if n, err := lm.stock.GetLowStockCount(ctx, defaultThreshold); err != nil {
		lm.log.Warn("Low stock sampling failed", zap.Error(err))
	} else {
		lm.lowStock.Record(ctx, n)
	}
}

// Stop ends periodic collection. It is safe to call more than once.
func (lm *LedgerMetrics) Stop() {
	lm.stop.Do(func() { close(lm.done) })
}
