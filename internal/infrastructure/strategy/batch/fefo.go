// Package batch holds the batch selection policies behind allocation plans.
package batch

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
)

// FEFOBatchStrategy plans First Expired First Out: earliest expiry date
// first, undated batches last, lot code as the tie-breaker.
type FEFOBatchStrategy struct {
	strategy.Descriptor
}

var _ strategy.BatchManagementStrategy = (*FEFOBatchStrategy)(nil)

func NewFEFOBatchStrategy() *FEFOBatchStrategy {
	return &FEFOBatchStrategy{
		Descriptor: strategy.Describe("fefo", strategy.KindBatchSelection,
			"First Expired First Out: earliest expiry first, expired batches skipped"),
	}
}

// SelectBatches works on a copy; batches is left as given
func (s *FEFOBatchStrategy) SelectBatches(
	_ context.Context,
	req strategy.BatchSelectionContext,
	batches []strategy.Batch,
) (strategy.BatchSelectionResult, error) {
	if !req.Quantity.IsPositive() {
		return strategy.BatchSelectionResult{}, fmt.Errorf("%w: requested %s", shared.ErrInvalidQuantity, req.Quantity)
	}

	today := req.Date
	if today.IsZero() {
		today = time.Now()
	}
	cutoff := shared.DateOf(today)

	candidates := make([]strategy.Batch, 0, len(batches))
	for _, b := range batches {
		if usable(b, req, cutoff) {
			candidates = append(candidates, b)
		}
	}
	slices.SortStableFunc(candidates, compareFEFO)

	return fill(candidates, req.Quantity), nil
}

func (s *FEFOBatchStrategy) ConsidersExpiry() bool { return true }

func compareFEFO(a, b strategy.Batch) int {
	if c := compareExpiry(a.ExpiryDate, b.ExpiryDate); c != 0 {
		return c
	}
	return cmp.Compare(a.LotCode, b.LotCode)
}

// compareExpiry orders by calendar date; nil sorts after any date
func compareExpiry(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return shared.DateOf(*a).Compare(shared.DateOf(*b))
}
