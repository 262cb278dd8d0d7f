package handler

import (
	"context"
	"time"

	inventoryapp "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService is the set of ledger operations exposed over HTTP.
// *inventoryapp.Ledger implements it.
type LedgerService interface {
	CreateReceipt(ctx context.Context, p shared.Principal, req inventoryapp.ReceiptRequest) (*inventoryapp.DocumentResponse, error)
	CreateIssue(ctx context.Context, p shared.Principal, req inventoryapp.IssueRequest) (*inventoryapp.DocumentResponse, error)
	ReverseIssue(ctx context.Context, p shared.Principal, issueID uuid.UUID, req inventoryapp.ReverseIssueRequest) (*inventoryapp.DocumentResponse, error)
	SuggestAllocation(ctx context.Context, p shared.Principal, productID, warehouseID uuid.UUID, quantity decimal.Decimal) (*inventoryapp.AllocationPlan, error)
	CreateTransfer(ctx context.Context, p shared.Principal, req inventoryapp.TransferRequest) (*inventoryapp.TransferResult, error)
	StartCount(ctx context.Context, p shared.Principal, req inventoryapp.StartCountRequest) (*inventoryapp.StartCountResult, error)
	RecordCount(ctx context.Context, p shared.Principal, countID uuid.UUID, req inventoryapp.RecordCountRequest) (*inventoryapp.RecordCountResult, error)
	Reconcile(ctx context.Context, p shared.Principal, countID uuid.UUID) (*inventoryapp.ReconcileResult, error)
	Discard(ctx context.Context, p shared.Principal, req inventoryapp.DiscardRequest) (*inventoryapp.DocumentResponse, error)
	GetDocument(ctx context.Context, p shared.Principal, id uuid.UUID) (*inventoryapp.DocumentResponse, error)
	FindBatchByBarcode(ctx context.Context, p shared.Principal, barcode string) (*inventoryapp.BatchLookupResponse, error)
	BatchHistory(ctx context.Context, p shared.Principal, batchID uuid.UUID) (*inventoryapp.BatchHistoryResponse, error)
	ExpiryReport(ctx context.Context, p shared.Principal, filter inventoryapp.ExpiryReportFilter) ([]inventoryapp.ExpiryReportItemResponse, error)
	ReorderSuggestions(ctx context.Context, p shared.Principal) ([]inventoryapp.ReorderSuggestionResponse, error)
	GetCountReport(ctx context.Context, p shared.Principal, countID uuid.UUID) (*inventoryapp.CountReportResponse, error)
	StockOnHand(ctx context.Context, p shared.Principal, filter inventoryapp.StockReportFilter) (*inventoryapp.StockReportResponse, error)
	ProductBatches(ctx context.Context, p shared.Principal, productID uuid.UUID, warehouseID *uuid.UUID) (*inventoryapp.ProductBatchesResponse, error)
	MovementReport(ctx context.Context, p shared.Principal, filter inventoryapp.MovementReportFilter) (*inventoryapp.MovementReportResponse, error)
}

var _ LedgerService = (*inventoryapp.Ledger)(nil)

// LedgerHandler handles the batch ledger API endpoints
type LedgerHandler struct {
	BaseHandler
	ledger LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledger LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// CreateReceipt receives stock into a warehouse
//
//	POST /receipts
func (h *LedgerHandler) CreateReceipt(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req inventoryapp.ReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	doc, err := h.ledger.CreateReceipt(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// CreateIssue issues stock out of a warehouse, FEFO unless mode is explicit
//
//	POST /issues
func (h *LedgerHandler) CreateIssue(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req inventoryapp.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	doc, err := h.ledger.CreateIssue(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// ReverseIssue books a compensating receipt for an issue. The body is optional.
//
//	POST /issues/:id/reverse
func (h *LedgerHandler) ReverseIssue(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req inventoryapp.ReverseIssueRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	doc, err := h.ledger.ReverseIssue(c.Request.Context(), p, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// SuggestAllocation previews the FEFO plan for a quantity without reserving it
//
//	GET /allocations/suggest?product_id=&warehouse_id=&quantity=
func (h *LedgerHandler) SuggestAllocation(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var q dto.SuggestAllocationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	quantity, err := decimal.NewFromString(q.Quantity)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "quantity", Message: "Must be a decimal number"}})
		return
	}
	plan, err := h.ledger.SuggestAllocation(c.Request.Context(), p,
		uuid.MustParse(q.ProductID), uuid.MustParse(q.WarehouseID), quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// CreateTransfer moves lots between warehouses
//
//	POST /transfers
func (h *LedgerHandler) CreateTransfer(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req inventoryapp.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.ledger.CreateTransfer(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// StartCount snapshots a warehouse for a physical count
//
//	POST /counts
func (h *LedgerHandler) StartCount(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req inventoryapp.StartCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.ledger.StartCount(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// RecordCount stores counted quantities and returns the discrepancies
//
//	POST /counts/:id/entries
func (h *LedgerHandler) RecordCount(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req inventoryapp.RecordCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.ledger.RecordCount(c.Request.Context(), p, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reconcile books the corrective receipts and issues of a count
//
//	POST /counts/:id/reconcile
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result, err := h.ledger.Reconcile(c.Request.Context(), p, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetCountReport returns a count with its lines and summary
//
//	GET /counts/:id
func (h *LedgerHandler) GetCountReport(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	report, err := h.ledger.GetCountReport(c.Request.Context(), p, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Discard writes off stock held in error warehouses
//
//	POST /discards
func (h *LedgerHandler) Discard(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req inventoryapp.DiscardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	doc, err := h.ledger.Discard(c.Request.Context(), p, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// GetDocument returns a document with its lines and child documents
//
//	GET /documents/:id
func (h *LedgerHandler) GetDocument(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.ledger.GetDocument(c.Request.Context(), p, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// FindBatchByBarcode resolves a scanned barcode
//
//	GET /batches/barcode/:code
func (h *LedgerHandler) FindBatchByBarcode(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req dto.BarcodeRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BindError(c, err)
		return
	}
	lookup, err := h.ledger.FindBatchByBarcode(c.Request.Context(), p, req.Code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lookup)
}

// BatchHistory lists every movement of a batch in time order
//
//	GET /batches/:id/history
func (h *LedgerHandler) BatchHistory(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	history, err := h.ledger.BatchHistory(c.Request.Context(), p, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}

// ExpiryReport lists batches expired or expiring within the horizon
//
//	GET /reports/expiry?warehouse_id=&days=
func (h *LedgerHandler) ExpiryReport(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var q dto.ExpiryReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	items, err := h.ledger.ExpiryReport(c.Request.Context(), p, inventoryapp.ExpiryReportFilter{
		WarehouseID: optionalID(q.WarehouseID),
		Days:        q.Days,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// ReorderSuggestions lists products below their reorder threshold
//
//	GET /reports/reorder
func (h *LedgerHandler) ReorderSuggestions(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	items, err := h.ledger.ReorderSuggestions(c.Request.Context(), p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// StockOnHand reports stock per warehouse and product
//
//	GET /reports/stock?warehouse_id=&product_id=
func (h *LedgerHandler) StockOnHand(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var q dto.StockReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	report, err := h.ledger.StockOnHand(c.Request.Context(), p, inventoryapp.StockReportFilter{
		WarehouseID: optionalID(q.WarehouseID),
		ProductID:   optionalID(q.ProductID),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// ProductBatches lists the batches of a product holding stock
//
//	GET /products/:id/batches?warehouse_id=
func (h *LedgerHandler) ProductBatches(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var q dto.ProductBatchesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	batches, err := h.ledger.ProductBatches(c.Request.Context(), p, id, optionalID(q.WarehouseID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// MovementReport lists receipts and issues between two days
//
//	GET /reports/movements?from=&to=&warehouse_id=
func (h *LedgerHandler) MovementReport(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var q dto.MovementReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	// the binding already checked both layouts
	from, _ := time.Parse(time.DateOnly, q.From)
	to, _ := time.Parse(time.DateOnly, q.To)
	report, err := h.ledger.MovementReport(c.Request.Context(), p, inventoryapp.MovementReportFilter{
		From:        from,
		To:          to,
		WarehouseID: optionalID(q.WarehouseID),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// optionalID parses a query id the binding has already validated
func optionalID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id := uuid.MustParse(raw)
	return &id
}
