package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentNumberDigits is the count of random digits after the kind prefix
const DocumentNumberDigits = 6

// DocumentKind discriminates movement documents
type DocumentKind string

const (
	DocumentKindReceipt  DocumentKind = "RECEIPT"
	DocumentKindIssue    DocumentKind = "ISSUE"
	DocumentKindTransfer DocumentKind = "TRANSFER"
	DocumentKindCount    DocumentKind = "COUNT"
)

// Default purposes recorded when the caller gives none, and the fixed purposes
// of documents the ledger generates itself.
const (
	PurposeSupplierReceipt = "supplier receipt"
	PurposeSale            = "sale"
	PurposeDiscard         = "discard"
	PurposeIssueReversal   = "issue reversal"
	PurposeCountIncrease   = "count adjustment increase"
	PurposeCountDecrease   = "count adjustment decrease"
	PurposeStockCount      = "stock count"
	PurposeTransfer        = "inter-warehouse transfer"
)

// IsValid checks if the kind is a known DocumentKind
func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindReceipt, DocumentKindIssue, DocumentKindTransfer, DocumentKindCount:
		return true
	}
	return false
}

// String returns the string representation of DocumentKind
func (k DocumentKind) String() string {
	return string(k)
}

// NumberPrefix returns the prefix of document numbers of this kind
func (k DocumentKind) NumberPrefix() string {
	switch k {
	case DocumentKindReceipt:
		return "PNK"
	case DocumentKindIssue:
		return "PXK"
	case DocumentKindTransfer:
		return "PCK"
	case DocumentKindCount:
		return "PKK"
	}
	return ""
}

// IsIncrease returns true for documents whose lines add stock
func (k DocumentKind) IsIncrease() bool {
	return k == DocumentKindReceipt
}

// FormatDocumentNumber renders a document number from its kind and random part
func FormatDocumentNumber(kind DocumentKind, n int) string {
	return fmt.Sprintf("%s%0*d", kind.NumberPrefix(), DocumentNumberDigits, n)
}

// IsValidDocumentNumber checks number carries the kind prefix followed by digits only
func IsValidDocumentNumber(kind DocumentKind, number string) bool {
	rest, ok := strings.CutPrefix(number, kind.NumberPrefix())
	if !ok || len(rest) != DocumentNumberDigits {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DocumentLine links a document to one batch it touched
type DocumentLine struct {
	ID          uuid.UUID
	DocumentID  uuid.UUID
	LineNo      int
	BatchID     uuid.UUID
	ProductID   uuid.UUID
	LotCode     string
	WarehouseID uuid.UUID
	Quantity    decimal.Decimal // always positive; direction follows the document kind
	// SourceBatchID records lineage on transfer receipt lines
	SourceBatchID *uuid.UUID
}

// SignedQuantity returns the quantity as a change to the batch
func (l DocumentLine) SignedQuantity(kind DocumentKind) decimal.Decimal {
	if kind.IsIncrease() {
		return l.Quantity
	}
	return l.Quantity.Neg()
}

// Document records one stock movement and who made it.
// Transfers own an Issue and a Receipt; counts own their corrections.
type Document struct {
	shared.BaseEntity
	Number          string
	Kind            DocumentKind
	Purpose         string
	Reference       string
	ParentID        *uuid.UUID
	WarehouseID     uuid.UUID
	DestWarehouseID *uuid.UUID
	CreatedByID     uuid.UUID
	CreatedByName   string
	CreatedByRole   shared.Role
	Lines           []DocumentLine
}

// NewDocument creates a document header. Lines are added as batches are touched.
func NewDocument(kind DocumentKind, number string, warehouseID uuid.UUID, principal shared.Principal, now time.Time) (*Document, error) {
	if !kind.IsValid() {
		return nil, validationErrorf("unknown document kind %q", kind)
	}
	if !IsValidDocumentNumber(kind, number) {
		return nil, validationErrorf("document number %q does not match kind %s", number, kind)
	}
	if warehouseID == uuid.Nil {
		return nil, validationErrorf("warehouse ID is required")
	}
	if err := principal.Validate(); err != nil {
		return nil, err
	}

	return &Document{
		BaseEntity:    shared.NewBaseEntityAt(now),
		Number:        number,
		Kind:          kind,
		WarehouseID:   warehouseID,
		CreatedByID:   principal.ID,
		CreatedByName: principal.Name,
		CreatedByRole: principal.Role,
		Lines:         make([]DocumentLine, 0),
	}, nil
}

// WithPurpose sets the purpose, falling back to def when purpose is blank
func (d *Document) WithPurpose(purpose, def string) *Document {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		purpose = def
	}
	d.Purpose = purpose
	return d
}

// WithReference sets the external reference
func (d *Document) WithReference(reference string) *Document {
	d.Reference = strings.TrimSpace(reference)
	return d
}

// LinkTo makes the document a child of parent
func (d *Document) LinkTo(parent *Document) {
	id := parent.ID
	d.ParentID = &id
}

// AddLine records a movement of quantity against the batch
func (d *Document) AddLine(batch *Batch, quantity decimal.Decimal) (*DocumentLine, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: line quantity %s", shared.ErrInvalidQuantity, quantity)
	}
	d.Lines = append(d.Lines, DocumentLine{
		ID:          uuid.New(),
		DocumentID:  d.ID,
		LineNo:      len(d.Lines) + 1,
		BatchID:     batch.ID,
		ProductID:   batch.ProductID,
		LotCode:     batch.LotCode,
		WarehouseID: batch.WarehouseID,
		Quantity:    quantity,
	})
	return &d.Lines[len(d.Lines)-1], nil
}

// TotalQuantity returns the sum of all line quantities
func (d *Document) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Quantity)
	}
	return total
}

// BatchIDs returns the distinct batches touched by the document, in line order
func (d *Document) BatchIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(d.Lines))
	ids := make([]uuid.UUID, 0, len(d.Lines))
	for _, l := range d.Lines {
		if _, ok := seen[l.BatchID]; ok {
			continue
		}
		seen[l.BatchID] = struct{}{}
		ids = append(ids, l.BatchID)
	}
	return ids
}
