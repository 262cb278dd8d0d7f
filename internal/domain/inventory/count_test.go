package inventory

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCount(t *testing.T, policy OmissionPolicy, quantities ...int64) (*Count, []Batch) {
	t.Helper()
	warehouseID := uuid.New()
	doc, err := NewDocument(DocumentKindCount, "PKK000001", warehouseID, testPrincipal(), time.Now())
	require.NoError(t, err)

	batches := make([]Batch, 0, len(quantities))
	for i, q := range quantities {
		key := BatchKey{ProductID: uuid.New(), LotCode: DeriveLotCode("LOT", i+1), WarehouseID: warehouseID}
		barcode := fmt.Sprintf("%013d", i+1)
		b, err := NewBatch(key, barcode, date(2024, 1, 1), nil, decimal.NewFromInt(q))
		require.NoError(t, err)
		batches = append(batches, *b)
	}

	c, err := NewCount(doc, policy, batches)
	require.NoError(t, err)
	return c, batches
}

func TestParseOmissionPolicy(t *testing.T) {
	p, err := ParseOmissionPolicy("zero")
	require.NoError(t, err)
	assert.Equal(t, OmissionZero, p)

	p, err = ParseOmissionPolicy(" Unchanged ")
	require.NoError(t, err)
	assert.Equal(t, OmissionUnchanged, p)

	_, err = ParseOmissionPolicy("skip")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCountStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, CountStatusStarted.CanTransitionTo(CountStatusRecorded))
	assert.False(t, CountStatusStarted.CanTransitionTo(CountStatusReconciled))
	assert.True(t, CountStatusRecorded.CanTransitionTo(CountStatusRecorded))
	assert.True(t, CountStatusRecorded.CanTransitionTo(CountStatusReconciled))
	assert.False(t, CountStatusReconciled.CanTransitionTo(CountStatusRecorded))
}

func TestNewCount(t *testing.T) {
	c, batches := createTestCount(t, OmissionUnchanged, 8, 5)

	assert.Equal(t, CountStatusStarted, c.Status)
	require.Len(t, c.Lines, 2)
	assert.Equal(t, batches[0].ID, c.Lines[0].BatchID)
	assert.True(t, c.Lines[0].SystemQuantity.Equal(decimal.NewFromInt(8)))
	assert.False(t, c.Lines[0].Counted)

	t.Run("rejects non-count document", func(t *testing.T) {
		doc, err := NewDocument(DocumentKindIssue, "PXK000001", uuid.New(), testPrincipal(), time.Now())
		require.NoError(t, err)
		_, err = NewCount(doc, OmissionUnchanged, nil)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestCount_Record(t *testing.T) {
	now := time.Now()

	t.Run("reports discrepancies and moves to recorded", func(t *testing.T) {
		c, batches := createTestCount(t, OmissionUnchanged, 8, 5)
		id := batches[0].ID

		discrepancies, err := c.Record([]CountEntry{
			{BatchID: &id, CountedQuantity: decimal.NewFromInt(6)},
			{Barcode: batches[1].Barcode, CountedQuantity: decimal.NewFromInt(5)},
		}, now)

		require.NoError(t, err)
		assert.Equal(t, CountStatusRecorded, c.Status)
		require.Len(t, discrepancies, 1)
		assert.Equal(t, id, discrepancies[0].BatchID)
		assert.True(t, discrepancies[0].Delta.Equal(decimal.NewFromInt(-2)))
	})

	t.Run("resolves by product and lot code", func(t *testing.T) {
		c, batches := createTestCount(t, OmissionUnchanged, 8)
		pid := batches[0].ProductID

		_, err := c.Record([]CountEntry{{ProductID: &pid, LotCode: "lot-1", CountedQuantity: decimal.NewFromInt(9)}}, now)

		require.NoError(t, err)
		assert.True(t, c.Lines[0].Counted)
		assert.True(t, c.Lines[0].CountedQuantity.Equal(decimal.NewFromInt(9)))
	})

	t.Run("unknown batch names the entry and applies nothing", func(t *testing.T) {
		c, batches := createTestCount(t, OmissionUnchanged, 8)
		id, other := batches[0].ID, uuid.New()

		_, err := c.Record([]CountEntry{
			{BatchID: &id, CountedQuantity: decimal.NewFromInt(1)},
			{BatchID: &other, CountedQuantity: decimal.NewFromInt(1)},
		}, now)

		assert.ErrorIs(t, err, shared.ErrNotFound)
		var le *shared.LineError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, 2, le.Line)
		assert.False(t, c.Lines[0].Counted)
		assert.Equal(t, CountStatusStarted, c.Status)
	})

	t.Run("negative count is rejected", func(t *testing.T) {
		c, batches := createTestCount(t, OmissionUnchanged, 8)
		id := batches[0].ID
		_, err := c.Record([]CountEntry{{BatchID: &id, CountedQuantity: decimal.NewFromInt(-1)}}, now)
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})

	t.Run("re-recording overwrites", func(t *testing.T) {
		c, batches := createTestCount(t, OmissionUnchanged, 8)
		id := batches[0].ID
		_, err := c.Record([]CountEntry{{BatchID: &id, CountedQuantity: decimal.NewFromInt(6)}}, now)
		require.NoError(t, err)

		d, err := c.Record([]CountEntry{{BatchID: &id, CountedQuantity: decimal.NewFromInt(8)}}, now)
		require.NoError(t, err)
		assert.Empty(t, d)
	})

	t.Run("reconciled count rejects entries", func(t *testing.T) {
		c, batches := createTestCount(t, OmissionUnchanged, 8)
		id := batches[0].ID
		_, err := c.Record([]CountEntry{{BatchID: &id, CountedQuantity: decimal.NewFromInt(6)}}, now)
		require.NoError(t, err)
		require.NoError(t, c.MarkReconciled(now))

		_, err = c.Record([]CountEntry{{BatchID: &id, CountedQuantity: decimal.NewFromInt(6)}}, now)
		assert.ErrorIs(t, err, shared.ErrAlreadyReconciled)
	})
}

func TestCount_Targets(t *testing.T) {
	now := time.Now()

	t.Run("unchanged policy skips uncounted batches", func(t *testing.T) {
		c, batches := createTestCount(t, OmissionUnchanged, 8, 5)
		id := batches[0].ID
		_, err := c.Record([]CountEntry{{BatchID: &id, CountedQuantity: decimal.NewFromInt(6)}}, now)
		require.NoError(t, err)

		targets := c.Targets()
		require.Len(t, targets, 1)
		assert.Equal(t, id, targets[0].BatchID)
	})

	t.Run("zero policy zeroes uncounted batches", func(t *testing.T) {
		c, batches := createTestCount(t, OmissionZero, 8, 5)
		id := batches[0].ID
		_, err := c.Record([]CountEntry{{BatchID: &id, CountedQuantity: decimal.NewFromInt(6)}}, now)
		require.NoError(t, err)

		targets := c.Targets()
		require.Len(t, targets, 2)
		assert.Equal(t, batches[1].ID, targets[1].BatchID)
		assert.True(t, targets[1].Quantity.IsZero())
	})
}

func TestCount_Reconcile(t *testing.T) {
	now := time.Now()
	c, batches := createTestCount(t, OmissionUnchanged, 8, 5)

	assert.ErrorIs(t, c.EnsureReconcilable(), shared.ErrValidation)

	id := batches[0].ID
	_, err := c.Record([]CountEntry{{BatchID: &id, CountedQuantity: decimal.NewFromInt(6)}}, now)
	require.NoError(t, err)

	require.NoError(t, c.MarkReconciled(now))
	assert.Equal(t, CountStatusReconciled, c.Status)
	assert.NotNil(t, c.ReconciledAt)

	assert.ErrorIs(t, c.MarkReconciled(now), shared.ErrAlreadyReconciled)

	s := c.Summary()
	assert.Equal(t, 2, s.TotalLines)
	assert.Equal(t, 1, s.CountedLines)
	assert.Equal(t, 1, s.Discrepancies)
	assert.True(t, s.NetDelta.Equal(decimal.NewFromInt(-2)))
}
