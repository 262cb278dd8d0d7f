package inventory

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpirySeverity grades an entry of the expiry report
type ExpirySeverity string

const (
	ExpirySeverityExpired  ExpirySeverity = "EXPIRED"
	ExpirySeverityCritical ExpirySeverity = "CRITICAL"
	ExpirySeverityWarning  ExpirySeverity = "WARNING"
)

// ClassifyExpiry grades a batch by the days left until its expiry
func ClassifyExpiry(daysUntilExpiry, criticalDays int) ExpirySeverity {
	switch {
	case daysUntilExpiry < 0:
		return ExpirySeverityExpired
	case daysUntilExpiry <= criticalDays:
		return ExpirySeverityCritical
	}
	return ExpirySeverityWarning
}

// ExpiryReportItem is one batch on the expiry report
type ExpiryReportItem struct {
	BatchID         uuid.UUID
	ProductID       uuid.UUID
	ProductCode     string
	ProductName     string
	WarehouseID     uuid.UUID
	WarehouseCode   string
	LotCode         string
	Barcode         string
	ExpiryDate      time.Time
	Quantity        decimal.Decimal
	DaysUntilExpiry int
	Severity        ExpirySeverity
}

// ProductStock is a product with its stock summed over all warehouses
type ProductStock struct {
	ProductID        uuid.UUID
	ProductCode      string
	ProductName      string
	Unit             string
	ReorderThreshold decimal.Decimal
	TotalQuantity    decimal.Decimal
}

// ReorderSuggestion proposes topping a product back up to its threshold
type ReorderSuggestion struct {
	ProductID         uuid.UUID
	ProductCode       string
	ProductName       string
	Unit              string
	TotalQuantity     decimal.Decimal
	ReorderThreshold  decimal.Decimal
	SuggestedQuantity decimal.Decimal
}

// SuggestReorders returns products below threshold, largest shortage first.
// Products without a threshold use fallback.
func SuggestReorders(stock []ProductStock, fallback decimal.Decimal) []ReorderSuggestion {
	out := make([]ReorderSuggestion, 0)
	for _, s := range stock {
		threshold := s.ReorderThreshold
		if !threshold.IsPositive() {
			threshold = fallback
		}
		if !s.TotalQuantity.LessThan(threshold) {
			continue
		}
		out = append(out, ReorderSuggestion{
			ProductID:         s.ProductID,
			ProductCode:       s.ProductCode,
			ProductName:       s.ProductName,
			Unit:              s.Unit,
			TotalQuantity:     s.TotalQuantity,
			ReorderThreshold:  threshold,
			SuggestedQuantity: threshold.Sub(s.TotalQuantity),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].SuggestedQuantity.Cmp(out[j].SuggestedQuantity); c != 0 {
			return c > 0
		}
		return out[i].ProductCode < out[j].ProductCode
	})
	return out
}

// BatchMovement is one document line in the history of a batch
type BatchMovement struct {
	DocumentID     uuid.UUID
	DocumentNumber string
	Kind           DocumentKind
	Purpose        string
	Reference      string
	LineNo         int
	WarehouseID    uuid.UUID
	Quantity       decimal.Decimal
	CreatedByName  string
	CreatedAt      time.Time
}

// SignedQuantity returns the movement as a change to the batch
func (m BatchMovement) SignedQuantity() decimal.Decimal {
	if m.Kind.IsIncrease() {
		return m.Quantity
	}
	return m.Quantity.Neg()
}

// StockBatch is a batch holding stock, joined with its product and warehouse
type StockBatch struct {
	BatchID       uuid.UUID
	ProductID     uuid.UUID
	ProductCode   string
	ProductName   string
	Unit          string
	WarehouseID   uuid.UUID
	WarehouseCode string
	WarehouseKind WarehouseKind
	LotCode       string
	Barcode       string
	ExpiryDate    *time.Time
	Quantity      decimal.Decimal
}

// StockOnHand is the stock of one product in one warehouse
type StockOnHand struct {
	WarehouseID    uuid.UUID
	WarehouseCode  string
	ProductID      uuid.UUID
	ProductCode    string
	ProductName    string
	Unit           string
	BatchCount     int
	TotalQuantity  decimal.Decimal
	EarliestExpiry *time.Time
}

// SummarizeStock folds batches into one entry per warehouse and product,
// ordered by warehouse code then product code
func SummarizeStock(batches []StockBatch) []StockOnHand {
	type key struct{ warehouse, product uuid.UUID }
	index := make(map[key]int)
	out := make([]StockOnHand, 0)
	for _, b := range batches {
		k := key{b.WarehouseID, b.ProductID}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, StockOnHand{
				WarehouseID:   b.WarehouseID,
				WarehouseCode: b.WarehouseCode,
				ProductID:     b.ProductID,
				ProductCode:   b.ProductCode,
				ProductName:   b.ProductName,
				Unit:          b.Unit,
			})
		}
		entry := &out[i]
		entry.BatchCount++
		entry.TotalQuantity = entry.TotalQuantity.Add(b.Quantity)
		if b.ExpiryDate != nil && (entry.EarliestExpiry == nil || b.ExpiryDate.Before(*entry.EarliestExpiry)) {
			d := *b.ExpiryDate
			entry.EarliestExpiry = &d
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WarehouseCode != out[j].WarehouseCode {
			return out[i].WarehouseCode < out[j].WarehouseCode
		}
		return out[i].ProductCode < out[j].ProductCode
	})
	return out
}

// Movement is one receipt or issue line within a reporting period
type Movement struct {
	DocumentID     uuid.UUID
	DocumentNumber string
	Kind           DocumentKind
	Purpose        string
	CreatedAt      time.Time
	LineNo         int
	WarehouseID    uuid.UUID
	WarehouseCode  string
	ProductID      uuid.UUID
	ProductCode    string
	ProductName    string
	BatchID        uuid.UUID
	LotCode        string
	Quantity       decimal.Decimal
}

// MovementSummary totals a period of movements. Receipts and Issues count documents.
type MovementSummary struct {
	Receipts  int
	Issues    int
	Received  decimal.Decimal
	Issued    decimal.Decimal
	NetChange decimal.Decimal
}

// SummarizeMovements totals the quantities moved in and out
func SummarizeMovements(movements []Movement) MovementSummary {
	var sum MovementSummary
	seen := make(map[uuid.UUID]bool)
	for _, m := range movements {
		first := !seen[m.DocumentID]
		seen[m.DocumentID] = true
		if m.Kind.IsIncrease() {
			sum.Received = sum.Received.Add(m.Quantity)
			if first {
				sum.Receipts++
			}
			continue
		}
		sum.Issued = sum.Issued.Add(m.Quantity)
		if first {
			sum.Issues++
		}
	}
	sum.NetChange = sum.Received.Sub(sum.Issued)
	return sum
}
