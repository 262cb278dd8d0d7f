package inventory

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BarcodeLength is the number of digits in a batch barcode
const BarcodeLength = 13

// BatchKey identifies a live batch: at most one batch per product and lot within a warehouse
type BatchKey struct {
	ProductID   uuid.UUID
	LotCode     string
	WarehouseID uuid.UUID
}

// String returns a readable form of the key for error messages
func (k BatchKey) String() string {
	return fmt.Sprintf("product %s lot %s in warehouse %s", k.ProductID, k.LotCode, k.WarehouseID)
}

// ExpiryStatus classifies a batch by its distance to expiry
type ExpiryStatus string

const (
	ExpiryStatusExpired      ExpiryStatus = "EXPIRED"
	ExpiryStatusExpiringSoon ExpiryStatus = "EXPIRING_SOON"
	ExpiryStatusGood         ExpiryStatus = "GOOD"
)

// Batch is a quantity of one product sharing a lot, dates and location.
// It is the only mutable stock record; every quantity change is tied to a document.
type Batch struct {
	shared.BaseAggregateRoot
	ProductID       uuid.UUID
	WarehouseID     uuid.UUID
	LotCode         string
	Barcode         string
	ManufactureDate time.Time
	ExpiryDate      *time.Time // nil for undated stock
	Quantity        decimal.Decimal
	LastReceiptID   *uuid.UUID
	LastIssueID     *uuid.UUID
	ParentBatchID   *uuid.UUID // set on batches split off by a partial transfer
}

// NewBatch creates a batch holding the initial quantity of a receipt or split
func NewBatch(key BatchKey, barcode string, manufactureDate time.Time, expiryDate *time.Time, quantity decimal.Decimal) (*Batch, error) {
	if key.ProductID == uuid.Nil {
		return nil, validationErrorf("product ID is required")
	}
	if key.WarehouseID == uuid.Nil {
		return nil, validationErrorf("warehouse ID is required")
	}
	if err := ValidateLotCode(key.LotCode); err != nil {
		return nil, err
	}
	if !IsValidBarcode(barcode) {
		return nil, validationErrorf("barcode %q must be %d digits", barcode, BarcodeLength)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", shared.ErrInvalidQuantity, quantity)
	}
	if err := ValidateBatchDates(manufactureDate, expiryDate); err != nil {
		return nil, err
	}

	mfg := shared.DateOf(manufactureDate)
	var exp *time.Time
	if expiryDate != nil {
		d := shared.DateOf(*expiryDate)
		exp = &d
	}

	return &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         key.ProductID,
		WarehouseID:       key.WarehouseID,
		LotCode:           key.LotCode,
		Barcode:           barcode,
		ManufactureDate:   mfg,
		ExpiryDate:        exp,
		Quantity:          quantity,
	}, nil
}

// ValidateBatchDates rejects an expiry date earlier than the manufacture date
func ValidateBatchDates(manufactureDate time.Time, expiryDate *time.Time) error {
	if manufactureDate.IsZero() {
		return validationErrorf("manufacture date is required")
	}
	if expiryDate != nil && shared.DateOf(*expiryDate).Before(shared.DateOf(manufactureDate)) {
		return validationErrorf("expiry date %s is before manufacture date %s",
			expiryDate.Format(time.DateOnly), manufactureDate.Format(time.DateOnly))
	}
	return nil
}

// IsValidBarcode reports whether code is a well-formed batch barcode
func IsValidBarcode(code string) bool {
	if len(code) != BarcodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Key returns the uniqueness key of the batch
func (b *Batch) Key() BatchKey {
	return BatchKey{ProductID: b.ProductID, LotCode: b.LotCode, WarehouseID: b.WarehouseID}
}

// Apply changes the quantity by delta on behalf of a document.
// A positive delta re-points the last receipt, a negative one the last issue.
// The quantity never goes below zero.
func (b *Batch) Apply(delta decimal.Decimal, documentID uuid.UUID) error {
	if delta.IsZero() {
		return fmt.Errorf("%w: adjustment of zero", shared.ErrInvalidQuantity)
	}
	next := b.Quantity.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: batch %s holds %s, requested %s",
			shared.ErrInsufficientStock, b.LotCode, b.Quantity, delta.Neg())
	}

	b.Quantity = next
	docID := documentID
	if delta.IsPositive() {
		b.LastReceiptID = &docID
	} else {
		b.LastIssueID = &docID
	}
	b.IncrementVersion()
	return nil
}

// MoveTo relocates the whole batch; barcode and lot code are kept
func (b *Batch) MoveTo(warehouseID uuid.UUID) error {
	if warehouseID == uuid.Nil {
		return validationErrorf("destination warehouse is required")
	}
	if warehouseID == b.WarehouseID {
		return validationErrorf("batch %s is already in warehouse %s", b.LotCode, warehouseID)
	}
	b.WarehouseID = warehouseID
	b.IncrementVersion()
	return nil
}

// IsExpiredOn returns true if the expiry date is strictly before the calendar date of today
func (b *Batch) IsExpiredOn(today time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return shared.DateOf(*b.ExpiryDate).Before(shared.DateOf(today))
}

// DaysUntilExpiry returns the days left until expiry, negative once expired.
// The second value is false for undated batches.
func (b *Batch) DaysUntilExpiry(today time.Time) (int, bool) {
	return daysUntil(b.ExpiryDate, today)
}

// ExpiryStatus classifies the batch against today and a warning window in days
func (b *Batch) ExpiryStatus(today time.Time, windowDays int) ExpiryStatus {
	return ClassifyExpiryDate(b.ExpiryDate, today, windowDays)
}

// ClassifyExpiryDate classifies an optional expiry date against today and a
// warning window in days. Undated stock is always good.
func ClassifyExpiryDate(expiry *time.Time, today time.Time, windowDays int) ExpiryStatus {
	days, dated := daysUntil(expiry, today)
	switch {
	case !dated:
		return ExpiryStatusGood
	case days < 0:
		return ExpiryStatusExpired
	case days <= windowDays:
		return ExpiryStatusExpiringSoon
	}
	return ExpiryStatusGood
}

func daysUntil(expiry *time.Time, today time.Time) (int, bool) {
	if expiry == nil {
		return 0, false
	}
	return shared.DaysBetween(today, *expiry), true
}

// HasStock returns true if the batch holds a positive quantity
func (b *Batch) HasStock() bool {
	return b.Quantity.IsPositive()
}

// ToStrategyBatch converts the batch into the planner's input shape
func (b *Batch) ToStrategyBatch() strategy.Batch {
	return strategy.Batch{
		ID:              b.ID,
		ProductID:       b.ProductID,
		WarehouseID:     b.WarehouseID,
		LotCode:         b.LotCode,
		Quantity:        b.Quantity,
		ManufactureDate: b.ManufactureDate,
		ExpiryDate:      b.ExpiryDate,
	}
}

// ToStrategyBatches converts a slice of batches for planning
func ToStrategyBatches(batches []Batch) []strategy.Batch {
	out := make([]strategy.Batch, 0, len(batches))
	for i := range batches {
		out = append(out, batches[i].ToStrategyBatch())
	}
	return out
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrValidation, fmt.Sprintf(format, args...))
}
