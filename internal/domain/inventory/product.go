package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReorderThreshold applies to products without their own threshold
var DefaultReorderThreshold = decimal.NewFromInt(10)

// Product is a read-only reference owned by master data
type Product struct {
	ID               uuid.UUID
	Code             string
	Name             string
	Category         string
	Unit             string
	SalePrice        decimal.Decimal
	ReorderThreshold decimal.Decimal
}

// EffectiveReorderThreshold returns the product threshold, or fallback when unset
func (p *Product) EffectiveReorderThreshold(fallback decimal.Decimal) decimal.Decimal {
	if p.ReorderThreshold.IsPositive() {
		return p.ReorderThreshold
	}
	return fallback
}
