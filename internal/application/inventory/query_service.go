package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QueryService answers read-only questions about stock and documents.
// It reads outside any transaction and takes no locks.
type QueryService struct {
	*core
}

// SuggestAllocation returns the FEFO plan an issue of quantity would use right now,
// with the shortage it would fail on. Nothing is reserved.
func (s *QueryService) SuggestAllocation(
	ctx context.Context,
	principal shared.Principal,
	productID, warehouseID uuid.UUID,
	quantity decimal.Decimal,
) (*AllocationPlan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "suggest_allocation")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrProductID, productID.String(),
		telemetry.SpanAttrWarehouseID, warehouseID.String(),
		telemetry.SpanAttrQuantity, quantity.String(),
	)

	plan, err := s.suggest(ctx, principal, productID, warehouseID, quantity)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return plan, nil
}

func (s *QueryService) suggest(
	ctx context.Context,
	principal shared.Principal,
	productID, warehouseID uuid.UUID,
	quantity decimal.Decimal,
) (*AllocationPlan, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.reads.Products().FindByID(ctx, productID); err != nil {
		return nil, err
	}
	if _, err := requireWarehouse(ctx, s.reads, warehouseID); err != nil {
		return nil, err
	}
	batches, err := s.reads.Batches().FindByProductWarehouse(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}

	result, err := s.planner.SelectBatches(ctx, strategy.BatchSelectionContext{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    quantity,
		Date:        s.today(),
	}, inventory.ToStrategyBatches(batches))
	if err != nil {
		return nil, err
	}

	lines := make([]AllocationLine, len(result.Selections))
	for i, sel := range result.Selections {
		lines[i] = AllocationLine{
			BatchID:    sel.BatchID,
			LotCode:    sel.LotCode,
			ExpiryDate: sel.ExpiryDate,
			Quantity:   sel.Quantity,
		}
	}
	return &AllocationPlan{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Requested:   quantity,
		Allocated:   result.TotalQty,
		Shortage:    result.ShortfallQty,
		Lines:       lines,
	}, nil
}

// GetDocument returns a document with its lines and the documents it owns
func (s *QueryService) GetDocument(ctx context.Context, principal shared.Principal, id uuid.UUID) (*DocumentResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.reads.Documents().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := s.reads.Documents().FindChildren(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := ToDocumentResponse(doc)
	if len(children) > 0 {
		resp.Children = make([]DocumentSummary, len(children))
		for i := range children {
			resp.Children[i] = ToDocumentSummary(&children[i])
		}
	}
	return &resp, nil
}

// FindBatchByBarcode looks up a batch by its barcode with product, warehouse and expiry status
func (s *QueryService) FindBatchByBarcode(ctx context.Context, principal shared.Principal, barcode string) (*BatchLookupResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	barcode = strings.TrimSpace(barcode)
	if !inventory.IsValidBarcode(barcode) {
		return nil, fmt.Errorf("%w: barcode %q must be %d digits", shared.ErrValidation, barcode, inventory.BarcodeLength)
	}

	batch, err := s.reads.Batches().FindByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	product, err := s.reads.Products().FindByID(ctx, batch.ProductID)
	if err != nil {
		return nil, err
	}
	warehouse, err := s.reads.Warehouses().FindByID(ctx, batch.WarehouseID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	resp := &BatchLookupResponse{
		Batch:         ToBatchResponse(batch),
		ProductCode:   product.Code,
		ProductName:   product.Name,
		Unit:          product.Unit,
		WarehouseCode: warehouse.Code,
		WarehouseName: warehouse.Name,
		WarehouseKind: warehouse.Kind.String(),
		ExpiryStatus:  string(batch.ExpiryStatus(today, s.opts.ExpiringWindowDays)),
	}
	if days, ok := batch.DaysUntilExpiry(today); ok {
		resp.DaysUntilExpiry = &days
	}
	return resp, nil
}

// BatchHistory returns a batch and every document line that touched it, oldest first
func (s *QueryService) BatchHistory(ctx context.Context, principal shared.Principal, batchID uuid.UUID) (*BatchHistoryResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	batch, err := s.reads.Batches().FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	movements, err := s.reports.BatchMovements(ctx, batchID)
	if err != nil {
		return nil, err
	}

	out := make([]BatchMovementResponse, len(movements))
	for i, m := range movements {
		out[i] = BatchMovementResponse{
			DocumentID:     m.DocumentID,
			DocumentNumber: m.DocumentNumber,
			Kind:           m.Kind.String(),
			Purpose:        m.Purpose,
			Reference:      m.Reference,
			LineNo:         m.LineNo,
			WarehouseID:    m.WarehouseID,
			Quantity:       m.SignedQuantity(),
			CreatedByName:  m.CreatedByName,
			CreatedAt:      m.CreatedAt,
		}
	}
	return &BatchHistoryResponse{Batch: ToBatchResponse(batch), Movements: out}, nil
}

// ExpiryReport lists batches with stock that are expired or expire within the horizon
func (s *QueryService) ExpiryReport(ctx context.Context, principal shared.Principal, filter ExpiryReportFilter) ([]ExpiryReportItemResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	if filter.Days < 0 {
		return nil, fmt.Errorf("%w: days must not be negative", shared.ErrValidation)
	}
	days := filter.Days
	if days == 0 {
		days = s.opts.ExpiringWindowDays
	}

	today := s.today()
	items, err := s.reports.ExpiringBatches(ctx, inventory.ExpiryFilter{
		WarehouseID: filter.WarehouseID,
		Until:       today.AddDate(0, 0, days),
	})
	if err != nil {
		return nil, err
	}

	out := make([]ExpiryReportItemResponse, len(items))
	for i, it := range items {
		left := shared.DaysBetween(today, it.ExpiryDate)
		out[i] = ExpiryReportItemResponse{
			BatchID:         it.BatchID,
			ProductID:       it.ProductID,
			ProductCode:     it.ProductCode,
			ProductName:     it.ProductName,
			WarehouseID:     it.WarehouseID,
			WarehouseCode:   it.WarehouseCode,
			LotCode:         it.LotCode,
			Barcode:         it.Barcode,
			ExpiryDate:      it.ExpiryDate,
			Quantity:        it.Quantity,
			DaysUntilExpiry: left,
			Severity:        string(inventory.ClassifyExpiry(left, s.opts.CriticalWindowDays)),
		}
	}
	return out, nil
}

// ReorderSuggestions lists products whose total stock is below their reorder threshold
func (s *QueryService) ReorderSuggestions(ctx context.Context, principal shared.Principal) ([]ReorderSuggestionResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	stock, err := s.reports.ProductStockTotals(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := inventory.SuggestReorders(stock, s.opts.DefaultReorderThreshold)
	out := make([]ReorderSuggestionResponse, len(suggestions))
	for i, r := range suggestions {
		out[i] = ReorderSuggestionResponse{
			ProductID:         r.ProductID,
			ProductCode:       r.ProductCode,
			ProductName:       r.ProductName,
			Unit:              r.Unit,
			TotalQuantity:     r.TotalQuantity,
			ReorderThreshold:  r.ReorderThreshold,
			SuggestedQuantity: r.SuggestedQuantity,
		}
	}
	return out, nil
}

// StockOnHand reports the stock of each product per warehouse with its batch
// count and earliest expiry. Empty batches are left out.
func (s *QueryService) StockOnHand(ctx context.Context, principal shared.Principal, filter StockReportFilter) (*StockReportResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	batches, err := s.reports.StockBatches(ctx, inventory.StockFilter{
		WarehouseID: filter.WarehouseID,
		ProductID:   filter.ProductID,
	})
	if err != nil {
		return nil, err
	}

	today := s.today()
	stock := inventory.SummarizeStock(batches)
	resp := &StockReportResponse{Items: make([]StockOnHandResponse, len(stock))}
	products := make(map[uuid.UUID]struct{})
	for i, st := range stock {
		item := StockOnHandResponse{
			WarehouseID:    st.WarehouseID,
			WarehouseCode:  st.WarehouseCode,
			ProductID:      st.ProductID,
			ProductCode:    st.ProductCode,
			ProductName:    st.ProductName,
			Unit:           st.Unit,
			BatchCount:     st.BatchCount,
			TotalQuantity:  st.TotalQuantity,
			EarliestExpiry: st.EarliestExpiry,
			ExpiryStatus:   string(inventory.ClassifyExpiryDate(st.EarliestExpiry, today, s.opts.ExpiringWindowDays)),
		}
		if st.EarliestExpiry != nil {
			days := shared.DaysBetween(today, *st.EarliestExpiry)
			item.DaysUntilExpiry = &days
		}
		resp.Items[i] = item
		resp.TotalQuantity = resp.TotalQuantity.Add(st.TotalQuantity)
		products[st.ProductID] = struct{}{}
	}
	resp.Products = len(products)
	return resp, nil
}

// ProductBatches lists the batches of a product that hold stock, optionally in one warehouse
func (s *QueryService) ProductBatches(ctx context.Context, principal shared.Principal, productID uuid.UUID, warehouseID *uuid.UUID) (*ProductBatchesResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	product, err := s.reads.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	batches, err := s.reports.StockBatches(ctx, inventory.StockFilter{
		WarehouseID: warehouseID,
		ProductID:   &productID,
	})
	if err != nil {
		return nil, err
	}

	today := s.today()
	resp := &ProductBatchesResponse{
		ProductID:   product.ID,
		ProductCode: product.Code,
		ProductName: product.Name,
		Unit:        product.Unit,
		Batches:     make([]ProductBatchResponse, len(batches)),
	}
	for i, b := range batches {
		item := ProductBatchResponse{
			BatchID:       b.BatchID,
			WarehouseID:   b.WarehouseID,
			WarehouseCode: b.WarehouseCode,
			WarehouseKind: b.WarehouseKind.String(),
			LotCode:       b.LotCode,
			Barcode:       b.Barcode,
			ExpiryDate:    b.ExpiryDate,
			Quantity:      b.Quantity,
			ExpiryStatus:  string(inventory.ClassifyExpiryDate(b.ExpiryDate, today, s.opts.ExpiringWindowDays)),
		}
		if b.ExpiryDate != nil {
			days := shared.DaysBetween(today, *b.ExpiryDate)
			item.DaysUntilExpiry = &days
		}
		resp.Batches[i] = item
		resp.TotalQuantity = resp.TotalQuantity.Add(b.Quantity)
	}
	return resp, nil
}

// MovementReport lists the receipt and issue lines created between two days,
// both included, with the quantities moved in and out
func (s *QueryService) MovementReport(ctx context.Context, principal shared.Principal, filter MovementReportFilter) (*MovementReportResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	if filter.From.IsZero() || filter.To.IsZero() {
		return nil, fmt.Errorf("%w: from and to are required", shared.ErrValidation)
	}
	from, to := shared.DateOf(filter.From), shared.DateOf(filter.To)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to %s is before from %s", shared.ErrValidation,
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	movements, err := s.reports.Movements(ctx, inventory.MovementFilter{
		From:        from,
		To:          to.AddDate(0, 0, 1),
		WarehouseID: filter.WarehouseID,
	})
	if err != nil {
		return nil, err
	}

	out := make([]MovementResponse, len(movements))
	for i, m := range movements {
		out[i] = MovementResponse{
			DocumentID:     m.DocumentID,
			DocumentNumber: m.DocumentNumber,
			Kind:           m.Kind.String(),
			Purpose:        m.Purpose,
			CreatedAt:      m.CreatedAt,
			LineNo:         m.LineNo,
			WarehouseID:    m.WarehouseID,
			WarehouseCode:  m.WarehouseCode,
			ProductID:      m.ProductID,
			ProductCode:    m.ProductCode,
			ProductName:    m.ProductName,
			BatchID:        m.BatchID,
			LotCode:        m.LotCode,
			Quantity:       m.Quantity,
		}
	}
	sum := inventory.SummarizeMovements(movements)
	return &MovementReportResponse{
		From:      from,
		To:        to,
		Movements: out,
		Summary: MovementSummaryResponse{
			Receipts:  sum.Receipts,
			Issues:    sum.Issues,
			Received:  sum.Received,
			Issued:    sum.Issued,
			NetChange: sum.NetChange,
		},
	}, nil
}

// GetCountReport returns a count with its lines, a summary and the corrections it produced
func (s *QueryService) GetCountReport(ctx context.Context, principal shared.Principal, countID uuid.UUID) (*CountReportResponse, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	count, err := s.reads.Counts().FindByID(ctx, countID)
	if err != nil {
		return nil, err
	}
	doc, err := s.reads.Documents().FindByID(ctx, countID)
	if err != nil {
		return nil, err
	}
	children, err := s.reads.Documents().FindChildren(ctx, countID)
	if err != nil {
		return nil, err
	}

	corrections := make([]DocumentSummary, len(children))
	for i := range children {
		corrections[i] = ToDocumentSummary(&children[i])
	}
	summary := count.Summary()
	return &CountReportResponse{
		Document:       ToDocumentResponse(doc),
		Status:         count.Status.String(),
		OmissionPolicy: string(count.OmissionPolicy),
		RecordedAt:     count.RecordedAt,
		ReconciledAt:   count.ReconciledAt,
		Lines:          ToCountLineResponses(count.Lines),
		Summary: CountSummaryResponse{
			TotalLines:    summary.TotalLines,
			CountedLines:  summary.CountedLines,
			Discrepancies: summary.Discrepancies,
			NetDelta:      summary.NetDelta,
		},
		Corrections: corrections,
	}, nil
}
