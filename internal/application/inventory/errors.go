package inventory

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShortageError reports a FEFO allocation that could not cover a request.
// It matches shared.ErrInsufficientStock with errors.Is.
type ShortageError struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Requested   decimal.Decimal
	Available   decimal.Decimal
	Shortage    decimal.Decimal
}

// Error implements the error interface
func (e *ShortageError) Error() string {
	return fmt.Sprintf("%s: product %s needs %s, %s available, short by %s",
		shared.ErrInsufficientStock.Message, e.ProductID, e.Requested, e.Available, e.Shortage)
}

// Unwrap exposes the sentinel to errors.Is
func (e *ShortageError) Unwrap() error {
	return shared.ErrInsufficientStock
}
