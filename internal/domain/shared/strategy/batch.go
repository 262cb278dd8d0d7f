package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is the planner's read-only view of a stock batch
type Batch struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	WarehouseID     uuid.UUID
	LotCode         string
	Quantity        decimal.Decimal
	ManufactureDate time.Time
	ExpiryDate      *time.Time
}

// BatchSelection is one step of an allocation plan
type BatchSelection struct {
	BatchID    uuid.UUID
	LotCode    string
	Quantity   decimal.Decimal
	ExpiryDate *time.Time
}

// BatchSelectionContext describes what needs to be allocated
type BatchSelectionContext struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    decimal.Decimal
	// Date is "today"; batches expiring strictly before it are never selected
	Date time.Time
}

// BatchSelectionResult contains the ordered plan and any unmet remainder
type BatchSelectionResult struct {
	Selections   []BatchSelection
	TotalQty     decimal.Decimal
	ShortfallQty decimal.Decimal
}

// IsSatisfied returns true when the plan covers the full request
func (r BatchSelectionResult) IsSatisfied() bool {
	return r.ShortfallQty.IsZero()
}

// BatchManagementStrategy selects batches to consume.
// Implementations are pure: they never mutate the batches they are given.
type BatchManagementStrategy interface {
	Strategy
	// SelectBatches builds an ordered allocation plan over a snapshot of batches
	SelectBatches(ctx context.Context, selCtx BatchSelectionContext, batches []Batch) (BatchSelectionResult, error)
	// ConsidersExpiry returns true if the strategy excludes expired batches
	ConsidersExpiry() bool
}
