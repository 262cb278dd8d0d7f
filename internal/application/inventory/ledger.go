package inventory

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the entry point to the batch inventory ledger. It groups the
// processors that mutate stock and the query service that reads it.
type Ledger struct {
	core *core

	Receipts  *ReceiptService
	Issues    *IssueService
	Transfers *TransferService
	Counts    *CountService
	Discards  *DiscardService
	Queries   *QueryService
}

// NewLedger wires the ledger services.
// scope runs mutations in a transaction, reads serves queries outside one,
// and planner allocates issues.
func NewLedger(
	scope TransactionScope,
	reads TransactionalRepositories,
	reports inventory.ReportRepository,
	planner strategy.BatchManagementStrategy,
	opts Options,
) *Ledger {
	opts = opts.withDefaults()
	c := &core{
		scope:   scope,
		reads:   reads,
		reports: reports,
		factory: NewDocumentFactory(opts.IDRetryAttempts),
		planner: planner,
		opts:    opts,
		logger:  zap.NewNop(),
	}
	return &Ledger{
		core:      c,
		Receipts:  &ReceiptService{core: c},
		Issues:    &IssueService{core: c},
		Transfers: &TransferService{core: c},
		Counts:    &CountService{core: c},
		Discards:  &DiscardService{core: c},
		Queries:   &QueryService{core: c},
	}
}

// SetLogger sets the logger used by every service
func (l *Ledger) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l.core.logger = logger
}

// SetLedgerMetrics sets the ledger metrics (optional)
func (l *Ledger) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	l.core.metrics = m
}

// SetClock replaces the clock that stamps documents and decides "today"
func (l *Ledger) SetClock(clock func() time.Time) {
	l.core.factory.SetClock(clock)
}

// SetRandomSource replaces the source of document numbers, barcodes and lot codes
func (l *Ledger) SetRandomSource(r RandomSource) {
	l.core.factory.SetRandomSource(r)
}

// Options returns the effective options
func (l *Ledger) Options() Options {
	return l.core.opts
}

// CreateReceipt brings stock into a warehouse
func (l *Ledger) CreateReceipt(ctx context.Context, principal shared.Principal, req ReceiptRequest) (*DocumentResponse, error) {
	return l.Receipts.CreateReceipt(ctx, principal, req)
}

// CreateIssue takes stock out of a warehouse
func (l *Ledger) CreateIssue(ctx context.Context, principal shared.Principal, req IssueRequest) (*DocumentResponse, error) {
	return l.Issues.CreateIssue(ctx, principal, req)
}

// ReverseIssue compensates an issue with a receipt
func (l *Ledger) ReverseIssue(ctx context.Context, principal shared.Principal, issueID uuid.UUID, req ReverseIssueRequest) (*DocumentResponse, error) {
	return l.Issues.ReverseIssue(ctx, principal, issueID, req)
}

// SuggestAllocation previews a FEFO allocation
func (l *Ledger) SuggestAllocation(ctx context.Context, principal shared.Principal, productID, warehouseID uuid.UUID, quantity decimal.Decimal) (*AllocationPlan, error) {
	return l.Queries.SuggestAllocation(ctx, principal, productID, warehouseID, quantity)
}

// CreateTransfer moves stock between warehouses
func (l *Ledger) CreateTransfer(ctx context.Context, principal shared.Principal, req TransferRequest) (*TransferResult, error) {
	return l.Transfers.CreateTransfer(ctx, principal, req)
}

// StartCount opens a physical count
func (l *Ledger) StartCount(ctx context.Context, principal shared.Principal, req StartCountRequest) (*StartCountResult, error) {
	return l.Counts.StartCount(ctx, principal, req)
}

// RecordCount stores physical counts
func (l *Ledger) RecordCount(ctx context.Context, principal shared.Principal, countID uuid.UUID, req RecordCountRequest) (*RecordCountResult, error) {
	return l.Counts.RecordCount(ctx, principal, countID, req)
}

// Reconcile applies a count's corrections
func (l *Ledger) Reconcile(ctx context.Context, principal shared.Principal, countID uuid.UUID) (*ReconcileResult, error) {
	return l.Counts.Reconcile(ctx, principal, countID)
}

// Discard writes off stock from error warehouses
func (l *Ledger) Discard(ctx context.Context, principal shared.Principal, req DiscardRequest) (*DocumentResponse, error) {
	return l.Discards.Discard(ctx, principal, req)
}

// GetDocument returns a document
func (l *Ledger) GetDocument(ctx context.Context, principal shared.Principal, id uuid.UUID) (*DocumentResponse, error) {
	return l.Queries.GetDocument(ctx, principal, id)
}

// FindBatchByBarcode looks up a batch by barcode
func (l *Ledger) FindBatchByBarcode(ctx context.Context, principal shared.Principal, barcode string) (*BatchLookupResponse, error) {
	return l.Queries.FindBatchByBarcode(ctx, principal, barcode)
}

// BatchHistory returns the movements of a batch
func (l *Ledger) BatchHistory(ctx context.Context, principal shared.Principal, batchID uuid.UUID) (*BatchHistoryResponse, error) {
	return l.Queries.BatchHistory(ctx, principal, batchID)
}

// ExpiryReport lists expired and expiring stock
func (l *Ledger) ExpiryReport(ctx context.Context, principal shared.Principal, filter ExpiryReportFilter) ([]ExpiryReportItemResponse, error) {
	return l.Queries.ExpiryReport(ctx, principal, filter)
}

// ReorderSuggestions lists products to reorder
func (l *Ledger) ReorderSuggestions(ctx context.Context, principal shared.Principal) ([]ReorderSuggestionResponse, error) {
	return l.Queries.ReorderSuggestions(ctx, principal)
}

// StockOnHand reports stock per warehouse and product
func (l *Ledger) StockOnHand(ctx context.Context, principal shared.Principal, filter StockReportFilter) (*StockReportResponse, error) {
	return l.Queries.StockOnHand(ctx, principal, filter)
}

// ProductBatches lists the batches of a product holding stock
func (l *Ledger) ProductBatches(ctx context.Context, principal shared.Principal, productID uuid.UUID, warehouseID *uuid.UUID) (*ProductBatchesResponse, error) {
	return l.Queries.ProductBatches(ctx, principal, productID, warehouseID)
}

// MovementReport lists receipts and issues of a period
func (l *Ledger) MovementReport(ctx context.Context, principal shared.Principal, filter MovementReportFilter) (*MovementReportResponse, error) {
	return l.Queries.MovementReport(ctx, principal, filter)
}

// GetCountReport returns a count with its summary
func (l *Ledger) GetCountReport(ctx context.Context, principal shared.Principal, countID uuid.UUID) (*CountReportResponse, error) {
	return l.Queries.GetCountReport(ctx, principal, countID)
}
