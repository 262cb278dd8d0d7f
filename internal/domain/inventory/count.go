package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountStatus represents the state of a physical count
type CountStatus string

const (
	CountStatusStarted    CountStatus = "STARTED"
	CountStatusRecorded   CountStatus = "RECORDED"
	CountStatusReconciled CountStatus = "RECONCILED"
)

// IsValid checks if the status is a valid CountStatus
func (s CountStatus) IsValid() bool {
	switch s {
	case CountStatusStarted, CountStatusRecorded, CountStatusReconciled:
		return true
	}
	return false
}

// String returns the string representation of CountStatus
func (s CountStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s CountStatus) CanTransitionTo(target CountStatus) bool {
	switch s {
	case CountStatusStarted:
		return target == CountStatusRecorded
	case CountStatusRecorded:
		// recording again overwrites earlier entries
		return target == CountStatusRecorded || target == CountStatusReconciled
	case CountStatusReconciled:
		return false
	}
	return false
}

// OmissionPolicy decides what reconcile does with snapshot batches nobody counted
type OmissionPolicy string

const (
	// OmissionUnchanged leaves uncounted batches alone (spot checks)
	OmissionUnchanged OmissionPolicy = "UNCHANGED"
	// OmissionZero treats uncounted batches as counted at zero (full recounts)
	OmissionZero OmissionPolicy = "ZERO"
)

// ParseOmissionPolicy parses a policy name, case-insensitively
func ParseOmissionPolicy(s string) (OmissionPolicy, error) {
	switch OmissionPolicy(strings.ToUpper(strings.TrimSpace(s))) {
	case OmissionUnchanged:
		return OmissionUnchanged, nil
	case OmissionZero:
		return OmissionZero, nil
	}
	return "", validationErrorf("unknown count omission policy %q", s)
}

// CountLine is one snapshot batch and, once recorded, its physical count
type CountLine struct {
	ID              uuid.UUID
	CountID         uuid.UUID
	BatchID         uuid.UUID
	ProductID       uuid.UUID
	LotCode         string
	Barcode         string
	SystemQuantity  decimal.Decimal
	CountedQuantity decimal.Decimal
	Counted         bool
	RecordedAt      *time.Time
}

// Delta returns counted minus system, or zero when not counted
func (l CountLine) Delta() decimal.Decimal {
	if !l.Counted {
		return decimal.Zero
	}
	return l.CountedQuantity.Sub(l.SystemQuantity)
}

// CountEntry is one submitted physical count.
// It addresses a batch by ID, by barcode, or by product and lot code.
type CountEntry struct {
	BatchID         *uuid.UUID
	Barcode         string
	ProductID       *uuid.UUID
	LotCode         string
	CountedQuantity decimal.Decimal
}

// Discrepancy is a counted batch whose physical quantity differs from the system
type Discrepancy struct {
	BatchID         uuid.UUID
	ProductID       uuid.UUID
	LotCode         string
	SystemQuantity  decimal.Decimal
	CountedQuantity decimal.Decimal
	Delta           decimal.Decimal
}

// CountTarget is the quantity reconcile must bring a batch to
type CountTarget struct {
	BatchID  uuid.UUID
	Quantity decimal.Decimal
}

// CountSummary aggregates a count for reporting
type CountSummary struct {
	TotalLines    int
	CountedLines  int
	Discrepancies int
	NetDelta      decimal.Decimal
}

// Count is the aggregate of a stock-take. Its ID is the ID of the COUNT document.
type Count struct {
	shared.BaseAggregateRoot
	WarehouseID    uuid.UUID
	Status         CountStatus
	OmissionPolicy OmissionPolicy
	RecordedAt     *time.Time
	ReconciledAt   *time.Time
	Lines          []CountLine
}

// NewCount snapshots the batches of a warehouse under a COUNT document
func NewCount(doc *Document, policy OmissionPolicy, batches []Batch) (*Count, error) {
	if doc.Kind != DocumentKindCount {
		return nil, validationErrorf("document %s is not a count", doc.Number)
	}
	if policy != OmissionUnchanged && policy != OmissionZero {
		return nil, validationErrorf("unknown count omission policy %q", policy)
	}

	c := &Count{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: doc.BaseEntity, Version: 1},
		WarehouseID:       doc.WarehouseID,
		Status:            CountStatusStarted,
		OmissionPolicy:    policy,
		Lines:             make([]CountLine, 0, len(batches)),
	}
	for i := range batches {
		b := &batches[i]
		if b.WarehouseID != doc.WarehouseID {
			return nil, validationErrorf("batch %s is not in warehouse %s", b.LotCode, doc.WarehouseID)
		}
		c.Lines = append(c.Lines, CountLine{
			ID:             uuid.New(),
			CountID:        c.ID,
			BatchID:        b.ID,
			ProductID:      b.ProductID,
			LotCode:        b.LotCode,
			Barcode:        b.Barcode,
			SystemQuantity: b.Quantity,
		})
	}
	return c, nil
}

// IsReconciled returns true once corrections have been applied
func (c *Count) IsReconciled() bool {
	return c.Status == CountStatusReconciled
}

// Resolve returns the index of the snapshot line an entry refers to
func (c *Count) Resolve(entry CountEntry) (int, error) {
	match := func(l *CountLine) bool {
		switch {
		case entry.BatchID != nil:
			return l.BatchID == *entry.BatchID
		case entry.Barcode != "":
			return l.Barcode == strings.TrimSpace(entry.Barcode)
		case entry.ProductID != nil && entry.LotCode != "":
			return l.ProductID == *entry.ProductID && l.LotCode == NormalizeLotCode(entry.LotCode)
		}
		return false
	}
	if entry.BatchID == nil && entry.Barcode == "" && (entry.ProductID == nil || entry.LotCode == "") {
		return -1, validationErrorf("entry must name a batch ID, a barcode, or a product and lot code")
	}
	for i := range c.Lines {
		if match(&c.Lines[i]) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: batch is not part of count %s", shared.ErrNotFound, c.ID)
}

// Record stores physical counts. Entries are checked as a whole before any is applied.
// Recording again overwrites the earlier value of each batch.
func (c *Count) Record(entries []CountEntry, now time.Time) ([]Discrepancy, error) {
	if c.IsReconciled() {
		return nil, fmt.Errorf("%w: count %s", shared.ErrAlreadyReconciled, c.ID)
	}
	if !c.Status.CanTransitionTo(CountStatusRecorded) {
		return nil, validationErrorf("cannot record counts in status %s", c.Status)
	}
	if len(entries) == 0 {
		return nil, validationErrorf("at least one count entry is required")
	}

	indexes := make([]int, len(entries))
	for i, e := range entries {
		if e.CountedQuantity.IsNegative() {
			return nil, shared.AtLine(i, fmt.Errorf("%w: counted quantity %s is negative", shared.ErrInvalidQuantity, e.CountedQuantity))
		}
		idx, err := c.Resolve(e)
		if err != nil {
			return nil, shared.AtLine(i, err)
		}
		indexes[i] = idx
	}

	at := now
	for i, idx := range indexes {
		line := &c.Lines[idx]
		line.CountedQuantity = entries[i].CountedQuantity
		line.Counted = true
		line.RecordedAt = &at
	}
	c.Status = CountStatusRecorded
	c.RecordedAt = &at
	c.IncrementVersion()

	return c.Discrepancies(), nil
}

// Discrepancies lists counted lines with a non-zero delta, in snapshot order
func (c *Count) Discrepancies() []Discrepancy {
	out := make([]Discrepancy, 0)
	for _, l := range c.Lines {
		d := l.Delta()
		if d.IsZero() {
			continue
		}
		out = append(out, Discrepancy{
			BatchID:         l.BatchID,
			ProductID:       l.ProductID,
			LotCode:         l.LotCode,
			SystemQuantity:  l.SystemQuantity,
			CountedQuantity: l.CountedQuantity,
			Delta:           d,
		})
	}
	return out
}

// Targets returns the quantity each batch must end at after reconcile.
// Uncounted lines are included at zero only under OmissionZero.
func (c *Count) Targets() []CountTarget {
	out := make([]CountTarget, 0, len(c.Lines))
	for _, l := range c.Lines {
		switch {
		case l.Counted:
			out = append(out, CountTarget{BatchID: l.BatchID, Quantity: l.CountedQuantity})
		case c.OmissionPolicy == OmissionZero:
			out = append(out, CountTarget{BatchID: l.BatchID, Quantity: decimal.Zero})
		}
	}
	return out
}

// EnsureReconcilable checks the count may be reconciled now
func (c *Count) EnsureReconcilable() error {
	if c.IsReconciled() {
		return fmt.Errorf("%w: count %s", shared.ErrAlreadyReconciled, c.ID)
	}
	if !c.Status.CanTransitionTo(CountStatusReconciled) {
		return validationErrorf("count %s has no recorded entries", c.ID)
	}
	return nil
}

// MarkReconciled moves the count to its terminal state
func (c *Count) MarkReconciled(now time.Time) error {
	if err := c.EnsureReconcilable(); err != nil {
		return err
	}
	at := now
	c.Status = CountStatusReconciled
	c.ReconciledAt = &at
	c.IncrementVersion()
	return nil
}

// Summary totals the count lines
func (c *Count) Summary() CountSummary {
	s := CountSummary{TotalLines: len(c.Lines), NetDelta: decimal.Zero}
	for _, l := range c.Lines {
		if !l.Counted {
			continue
		}
		s.CountedLines++
		if d := l.Delta(); !d.IsZero() {
			s.Discrepancies++
			s.NetDelta = s.NetDelta.Add(d)
		}
	}
	return s
}
