package batch

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// usable reports whether b can feed req on the day cutoff. Zero product or
// warehouse IDs in req match any batch; a batch expiring on cutoff still counts.
func usable(b strategy.Batch, req strategy.BatchSelectionContext, cutoff time.Time) bool {
	switch {
	case !b.Quantity.IsPositive():
		return false
	case req.ProductID != uuid.Nil && b.ProductID != req.ProductID:
		return false
	case req.WarehouseID != uuid.Nil && b.WarehouseID != req.WarehouseID:
		return false
	case b.ExpiryDate != nil && shared.DateOf(*b.ExpiryDate).Before(cutoff):
		return false
	}
	return true
}

// fill draws from ordered until want is covered or the batches run out
func fill(ordered []strategy.Batch, want decimal.Decimal) strategy.BatchSelectionResult {
	res := strategy.BatchSelectionResult{
		Selections:   []strategy.BatchSelection{},
		TotalQty:     decimal.Zero,
		ShortfallQty: want,
	}
	for _, b := range ordered {
		if !res.ShortfallQty.IsPositive() {
			break
		}
		take := decimal.Min(res.ShortfallQty, b.Quantity)
		res.Selections = append(res.Selections, strategy.BatchSelection{
			BatchID:    b.ID,
			LotCode:    b.LotCode,
			Quantity:   take,
			ExpiryDate: b.ExpiryDate,
		})
		res.TotalQty = res.TotalQty.Add(take)
		res.ShortfallQty = res.ShortfallQty.Sub(take)
	}
	return res
}
