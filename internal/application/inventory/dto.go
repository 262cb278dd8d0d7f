package inventory

import (
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IssueMode selects how an issue picks batches
type IssueMode string

const (
	// IssueModeFEFO plans across the batches of a product, earliest expiry first
	IssueModeFEFO IssueMode = "fefo"
	// IssueModeExplicit consumes a batch named by lot code
	IssueModeExplicit IssueMode = "explicit"
)

// ReceiptLineRequest is one incoming line of a receipt
type ReceiptLineRequest struct {
	ProductID       uuid.UUID       `json:"product_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	ManufactureDate time.Time       `json:"manufacture_date"`
	ExpiryDate      *time.Time      `json:"expiry_date"`
	LotCode         string          `json:"lot_code" binding:"omitempty,max=48"` // generated when empty
}

// ReceiptRequest represents a request to receive stock into a warehouse
type ReceiptRequest struct {
	WarehouseID uuid.UUID            `json:"warehouse_id" binding:"required"`
	Purpose     string               `json:"purpose" binding:"omitempty,max=255"`
	Reference   string               `json:"reference" binding:"omitempty,max=255"`
	Lines       []ReceiptLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// IssueLineRequest is one outgoing line of an issue.
// LotCode and Barcode are only read in explicit mode.
type IssueLineRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	LotCode   string          `json:"lot_code" binding:"omitempty,max=64"`
	Barcode   string          `json:"barcode" binding:"omitempty,barcode"`
}

// IssueRequest represents a request to issue stock from a warehouse
type IssueRequest struct {
	WarehouseID uuid.UUID          `json:"warehouse_id" binding:"required"`
	Mode        IssueMode          `json:"mode" binding:"omitempty,oneof=fefo explicit"`
	Purpose     string             `json:"purpose" binding:"omitempty,max=255"`
	Reference   string             `json:"reference" binding:"omitempty,max=255"`
	Lines       []IssueLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// TransferLineRequest is one lot moved by a transfer
type TransferLineRequest struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	LotCode   string          `json:"lot_code" binding:"required,max=64"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// TransferRequest represents a request to move stock between warehouses
type TransferRequest struct {
	SourceWarehouseID uuid.UUID             `json:"source_warehouse_id" binding:"required"`
	DestWarehouseID   uuid.UUID             `json:"dest_warehouse_id" binding:"required"`
	Purpose           string                `json:"purpose" binding:"omitempty,max=255"`
	Reference         string                `json:"reference" binding:"omitempty,max=255"`
	Lines             []TransferLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// StartCountRequest represents a request to start a physical count of a warehouse
type StartCountRequest struct {
	WarehouseID    uuid.UUID `json:"warehouse_id" binding:"required"`
	OmissionPolicy string    `json:"omission_policy"` // UNCHANGED or ZERO; configured default when empty
}

// CountEntryRequest is one physical count. It names a batch by ID, barcode,
// or product and lot code.
type CountEntryRequest struct {
	BatchID         *uuid.UUID      `json:"batch_id"`
	Barcode         string          `json:"barcode"`
	ProductID       *uuid.UUID      `json:"product_id"`
	LotCode         string          `json:"lot_code"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
}

// RecordCountRequest carries the physical counts of a count document
type RecordCountRequest struct {
	Entries []CountEntryRequest `json:"entries" binding:"required,min=1,dive"`
}

// DiscardLineRequest is one lot written off. WarehouseID disambiguates
// when the lot sits in several error warehouses.
type DiscardLineRequest struct {
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	LotCode     string          `json:"lot_code" binding:"required,max=64"`
	Quantity    decimal.Decimal `json:"quantity"`
	WarehouseID *uuid.UUID      `json:"warehouse_id"`
}

// DiscardRequest represents a request to write off stock from error warehouses
type DiscardRequest struct {
	Reason string               `json:"reason" binding:"required,max=255"`
	Lines  []DiscardLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReverseIssueRequest represents a request to reverse an issue with a compensating receipt
type ReverseIssueRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// ExpiryReportFilter narrows the expiry report
type ExpiryReportFilter struct {
	WarehouseID *uuid.UUID
	Days        int // horizon in days; the configured window when zero
}

// StockReportFilter narrows the stock on hand report
type StockReportFilter struct {
	WarehouseID *uuid.UUID
	ProductID   *uuid.UUID
}

// MovementReportFilter selects a period of receipts and issues. Both days are included.
type MovementReportFilter struct {
	From        time.Time
	To          time.Time
	WarehouseID *uuid.UUID
}

// DocumentLineResponse represents a document line in API responses
type DocumentLineResponse struct {
	LineNo        int             `json:"line_no"`
	BatchID       uuid.UUID       `json:"batch_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	LotCode       string          `json:"lot_code"`
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	SourceBatchID *uuid.UUID      `json:"source_batch_id,omitempty"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID              uuid.UUID              `json:"id"`
	Number          string                 `json:"number"`
	Kind            string                 `json:"kind"`
	Purpose         string                 `json:"purpose"`
	Reference       string                 `json:"reference,omitempty"`
	ParentID        *uuid.UUID             `json:"parent_id,omitempty"`
	WarehouseID     uuid.UUID              `json:"warehouse_id"`
	DestWarehouseID *uuid.UUID             `json:"dest_warehouse_id,omitempty"`
	CreatedByID     uuid.UUID              `json:"created_by_id"`
	CreatedByName   string                 `json:"created_by_name"`
	CreatedByRole   string                 `json:"created_by_role"`
	CreatedAt       time.Time              `json:"created_at"`
	TotalQuantity   decimal.Decimal        `json:"total_quantity"`
	Lines           []DocumentLineResponse `json:"lines"`
	Children        []DocumentSummary      `json:"children,omitempty"`
}

// DocumentSummary identifies a related document
type DocumentSummary struct {
	ID      uuid.UUID `json:"id"`
	Number  string    `json:"number"`
	Kind    string    `json:"kind"`
	Purpose string    `json:"purpose"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	LotCode         string          `json:"lot_code"`
	Barcode         string          `json:"barcode"`
	ManufactureDate time.Time       `json:"manufacture_date"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	LastReceiptID   *uuid.UUID      `json:"last_receipt_id,omitempty"`
	LastIssueID     *uuid.UUID      `json:"last_issue_id,omitempty"`
	ParentBatchID   *uuid.UUID      `json:"parent_batch_id,omitempty"`
	Version         int             `json:"version"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TransferResult is a transfer document with the issue and receipt it owns
type TransferResult struct {
	Transfer DocumentResponse `json:"transfer"`
	Issue    DocumentResponse `json:"issue"`
	Receipt  DocumentResponse `json:"receipt"`
}

// CountLineResponse represents a count snapshot line
type CountLineResponse struct {
	BatchID         uuid.UUID        `json:"batch_id"`
	ProductID       uuid.UUID        `json:"product_id"`
	LotCode         string           `json:"lot_code"`
	Barcode         string           `json:"barcode"`
	SystemQuantity  decimal.Decimal  `json:"system_quantity"`
	CountedQuantity *decimal.Decimal `json:"counted_quantity,omitempty"`
	Counted         bool             `json:"counted"`
	Delta           decimal.Decimal  `json:"delta"`
}

// StartCountResult is the count document and its batch snapshot
type StartCountResult struct {
	Document       DocumentResponse    `json:"document"`
	OmissionPolicy string              `json:"omission_policy"`
	Snapshot       []CountLineResponse `json:"snapshot"`
}

// DiscrepancyResponse is a counted batch that differs from the system
type DiscrepancyResponse struct {
	BatchID         uuid.UUID       `json:"batch_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	LotCode         string          `json:"lot_code"`
	SystemQuantity  decimal.Decimal `json:"system_quantity"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
	Delta           decimal.Decimal `json:"delta"`
}

// RecordCountResult lists the discrepancies after recording
type RecordCountResult struct {
	CountID       uuid.UUID             `json:"count_id"`
	Status        string                `json:"status"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
}

// ReconcileResult lists the corrective documents a reconcile produced.
// Skipped holds snapshot batches that had left the counted warehouse.
type ReconcileResult struct {
	CountID  uuid.UUID          `json:"count_id"`
	Receipts []DocumentResponse `json:"receipts"`
	Issues   []DocumentResponse `json:"issues"`
	Skipped  []uuid.UUID        `json:"skipped,omitempty"`
}

// CountSummaryResponse aggregates a count
type CountSummaryResponse struct {
	TotalLines    int             `json:"total_lines"`
	CountedLines  int             `json:"counted_lines"`
	Discrepancies int             `json:"discrepancies"`
	NetDelta      decimal.Decimal `json:"net_delta"`
}

// CountReportResponse is a count with its lines, summary and corrections
type CountReportResponse struct {
	Document       DocumentResponse     `json:"document"`
	Status         string               `json:"status"`
	OmissionPolicy string               `json:"omission_policy"`
	RecordedAt     *time.Time           `json:"recorded_at,omitempty"`
	ReconciledAt   *time.Time           `json:"reconciled_at,omitempty"`
	Lines          []CountLineResponse  `json:"lines"`
	Summary        CountSummaryResponse `json:"summary"`
	Corrections    []DocumentSummary    `json:"corrections"`
}

// AllocationLine is one step of an allocation plan
type AllocationLine struct {
	BatchID    uuid.UUID       `json:"batch_id"`
	LotCode    string          `json:"lot_code"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// AllocationPlan is a FEFO plan with the quantity it could not cover
type AllocationPlan struct {
	ProductID   uuid.UUID        `json:"product_id"`
	WarehouseID uuid.UUID        `json:"warehouse_id"`
	Requested   decimal.Decimal  `json:"requested"`
	Allocated   decimal.Decimal  `json:"allocated"`
	Shortage    decimal.Decimal  `json:"shortage"`
	Lines       []AllocationLine `json:"lines"`
}

// BatchLookupResponse is a batch found by barcode with its references resolved
type BatchLookupResponse struct {
	Batch           BatchResponse `json:"batch"`
	ProductCode     string        `json:"product_code"`
	ProductName     string        `json:"product_name"`
	Unit            string        `json:"unit"`
	WarehouseCode   string        `json:"warehouse_code"`
	WarehouseName   string        `json:"warehouse_name"`
	WarehouseKind   string        `json:"warehouse_kind"`
	ExpiryStatus    string        `json:"expiry_status"`
	DaysUntilExpiry *int          `json:"days_until_expiry,omitempty"`
}

// BatchMovementResponse is one entry in a batch history. Quantity is signed.
type BatchMovementResponse struct {
	DocumentID     uuid.UUID       `json:"document_id"`
	DocumentNumber string          `json:"document_number"`
	Kind           string          `json:"kind"`
	Purpose        string          `json:"purpose"`
	Reference      string          `json:"reference,omitempty"`
	LineNo         int             `json:"line_no"`
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	CreatedByName  string          `json:"created_by_name"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BatchHistoryResponse is a batch with every movement that touched it
type BatchHistoryResponse struct {
	Batch     BatchResponse           `json:"batch"`
	Movements []BatchMovementResponse `json:"movements"`
}

// ExpiryReportItemResponse is one entry of the expiry report
type ExpiryReportItemResponse struct {
	BatchID         uuid.UUID       `json:"batch_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	ProductCode     string          `json:"product_code"`
	ProductName     string          `json:"product_name"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	WarehouseCode   string          `json:"warehouse_code"`
	LotCode         string          `json:"lot_code"`
	Barcode         string          `json:"barcode"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	Quantity        decimal.Decimal `json:"quantity"`
	DaysUntilExpiry int             `json:"days_until_expiry"`
	Severity        string          `json:"severity"`
}

// ReorderSuggestionResponse proposes a quantity to reorder
type ReorderSuggestionResponse struct {
	ProductID         uuid.UUID       `json:"product_id"`
	ProductCode       string          `json:"product_code"`
	ProductName       string          `json:"product_name"`
	Unit              string          `json:"unit"`
	TotalQuantity     decimal.Decimal `json:"total_quantity"`
	ReorderThreshold  decimal.Decimal `json:"reorder_threshold"`
	SuggestedQuantity decimal.Decimal `json:"suggested_quantity"`
}

// ToDocumentResponse converts a domain Document to DocumentResponse
func ToDocumentResponse(doc *inventory.Document) DocumentResponse {
	lines := make([]DocumentLineResponse, len(doc.Lines))
	for i, l := range doc.Lines {
		lines[i] = DocumentLineResponse{
			LineNo:        l.LineNo,
			BatchID:       l.BatchID,
			ProductID:     l.ProductID,
			LotCode:       l.LotCode,
			WarehouseID:   l.WarehouseID,
			Quantity:      l.Quantity,
			SourceBatchID: l.SourceBatchID,
		}
	}
	return DocumentResponse{
		ID:              doc.ID,
		Number:          doc.Number,
		Kind:            doc.Kind.String(),
		Purpose:         doc.Purpose,
		Reference:       doc.Reference,
		ParentID:        doc.ParentID,
		WarehouseID:     doc.WarehouseID,
		DestWarehouseID: doc.DestWarehouseID,
		CreatedByID:     doc.CreatedByID,
		CreatedByName:   doc.CreatedByName,
		CreatedByRole:   doc.CreatedByRole.String(),
		CreatedAt:       doc.CreatedAt,
		TotalQuantity:   doc.TotalQuantity(),
		Lines:           lines,
	}
}

// ToDocumentResponses converts a slice of domain Documents
func ToDocumentResponses(docs []*inventory.Document) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = ToDocumentResponse(d)
	}
	return out
}

// ToDocumentSummary converts a domain Document to DocumentSummary
func ToDocumentSummary(doc *inventory.Document) DocumentSummary {
	return DocumentSummary{ID: doc.ID, Number: doc.Number, Kind: doc.Kind.String(), Purpose: doc.Purpose}
}

// ToBatchResponse converts a domain Batch to BatchResponse
func ToBatchResponse(b *inventory.Batch) BatchResponse {
	return BatchResponse{
		ID:              b.ID,
		ProductID:       b.ProductID,
		WarehouseID:     b.WarehouseID,
		LotCode:         b.LotCode,
		Barcode:         b.Barcode,
		ManufactureDate: b.ManufactureDate,
		ExpiryDate:      b.ExpiryDate,
		Quantity:        b.Quantity,
		LastReceiptID:   b.LastReceiptID,
		LastIssueID:     b.LastIssueID,
		ParentBatchID:   b.ParentBatchID,
		Version:         b.Version,
		UpdatedAt:       b.UpdatedAt,
	}
}

// ToCountLineResponses converts count lines
func ToCountLineResponses(lines []inventory.CountLine) []CountLineResponse {
	out := make([]CountLineResponse, len(lines))
	for i, l := range lines {
		r := CountLineResponse{
			BatchID:        l.BatchID,
			ProductID:      l.ProductID,
			LotCode:        l.LotCode,
			Barcode:        l.Barcode,
			SystemQuantity: l.SystemQuantity,
			Counted:        l.Counted,
			Delta:          l.Delta(),
		}
		if l.Counted {
			counted := l.CountedQuantity
			r.CountedQuantity = &counted
		}
		out[i] = r
	}
	return out
}

// ToDiscrepancyResponses converts discrepancies
func ToDiscrepancyResponses(ds []inventory.Discrepancy) []DiscrepancyResponse {
	out := make([]DiscrepancyResponse, len(ds))
	for i, d := range ds {
		out[i] = DiscrepancyResponse{
			BatchID:         d.BatchID,
			ProductID:       d.ProductID,
			LotCode:         d.LotCode,
			SystemQuantity:  d.SystemQuantity,
			CountedQuantity: d.CountedQuantity,
			Delta:           d.Delta,
		}
	}
	return out
}

// ToCountEntries converts request entries to domain entries
func ToCountEntries(reqs []CountEntryRequest) []inventory.CountEntry {
	out := make([]inventory.CountEntry, len(reqs))
	for i, r := range reqs {
		out[i] = inventory.CountEntry{
			BatchID:         r.BatchID,
			Barcode:         r.Barcode,
			ProductID:       r.ProductID,
			LotCode:         r.LotCode,
			CountedQuantity: r.CountedQuantity,
		}
	}
	return out
}

// StockOnHandResponse is the stock of one product in one warehouse
type StockOnHandResponse struct {
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	WarehouseCode   string          `json:"warehouse_code"`
	ProductID       uuid.UUID       `json:"product_id"`
	ProductCode     string          `json:"product_code"`
	ProductName     string          `json:"product_name"`
	Unit            string          `json:"unit"`
	BatchCount      int             `json:"batch_count"`
	TotalQuantity   decimal.Decimal `json:"total_quantity"`
	EarliestExpiry  *time.Time      `json:"earliest_expiry,omitempty"`
	DaysUntilExpiry *int            `json:"days_until_expiry,omitempty"`
	ExpiryStatus    string          `json:"expiry_status"`
}

// StockReportResponse is the stock on hand with its totals
type StockReportResponse struct {
	Items         []StockOnHandResponse `json:"items"`
	Products      int                   `json:"products"`
	TotalQuantity decimal.Decimal       `json:"total_quantity"`
}

// ProductBatchResponse is one batch of a product holding stock
type ProductBatchResponse struct {
	BatchID         uuid.UUID       `json:"batch_id"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	WarehouseCode   string          `json:"warehouse_code"`
	WarehouseKind   string          `json:"warehouse_kind"`
	LotCode         string          `json:"lot_code"`
	Barcode         string          `json:"barcode"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	DaysUntilExpiry *int            `json:"days_until_expiry,omitempty"`
	ExpiryStatus    string          `json:"expiry_status"`
}

// ProductBatchesResponse lists the batches of a product in FEFO order per warehouse
type ProductBatchesResponse struct {
	ProductID     uuid.UUID              `json:"product_id"`
	ProductCode   string                 `json:"product_code"`
	ProductName   string                 `json:"product_name"`
	Unit          string                 `json:"unit"`
	TotalQuantity decimal.Decimal        `json:"total_quantity"`
	Batches       []ProductBatchResponse `json:"batches"`
}

// MovementResponse is one receipt or issue line of the movement report
type MovementResponse struct {
	DocumentID     uuid.UUID       `json:"document_id"`
	DocumentNumber string          `json:"document_number"`
	Kind           string          `json:"kind"`
	Purpose        string          `json:"purpose"`
	CreatedAt      time.Time       `json:"created_at"`
	LineNo         int             `json:"line_no"`
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	WarehouseCode  string          `json:"warehouse_code"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductCode    string          `json:"product_code"`
	ProductName    string          `json:"product_name"`
	BatchID        uuid.UUID       `json:"batch_id"`
	LotCode        string          `json:"lot_code"`
	Quantity       decimal.Decimal `json:"quantity"`
}

// MovementSummaryResponse totals the movement report
type MovementSummaryResponse struct {
	Receipts  int             `json:"receipts"`
	Issues    int             `json:"issues"`
	Received  decimal.Decimal `json:"received"`
	Issued    decimal.Decimal `json:"issued"`
	NetChange decimal.Decimal `json:"net_change"`
}

// MovementReportResponse lists the movements of a period
type MovementReportResponse struct {
	From      time.Time               `json:"from"`
	To        time.Time               `json:"to"`
	Movements []MovementResponse      `json:"movements"`
	Summary   MovementSummaryResponse `json:"summary"`
}
