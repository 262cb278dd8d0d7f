package inventory

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrincipal() shared.Principal {
	return shared.Principal{ID: uuid.New(), Name: "clerk", Role: shared.RoleStaff}
}

func TestDocumentKind_NumberPrefix(t *testing.T) {
	assert.Equal(t, "PNK", DocumentKindReceipt.NumberPrefix())
	assert.Equal(t, "PXK", DocumentKindIssue.NumberPrefix())
	assert.Equal(t, "PCK", DocumentKindTransfer.NumberPrefix())
	assert.Equal(t, "PKK", DocumentKindCount.NumberPrefix())
	assert.Equal(t, "", DocumentKind("OTHER").NumberPrefix())
}

func TestFormatDocumentNumber(t *testing.T) {
	assert.Equal(t, "PNK000042", FormatDocumentNumber(DocumentKindReceipt, 42))
	assert.True(t, IsValidDocumentNumber(DocumentKindReceipt, "PNK000042"))
	assert.False(t, IsValidDocumentNumber(DocumentKindIssue, "PNK000042"))
	assert.False(t, IsValidDocumentNumber(DocumentKindReceipt, "PNK00042"))
	assert.False(t, IsValidDocumentNumber(DocumentKindReceipt, "PNK00004X"))
}

func TestNewDocument(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	warehouseID := uuid.New()
	principal := testPrincipal()

	t.Run("records creator and time", func(t *testing.T) {
		doc, err := NewDocument(DocumentKindIssue, "PXK123456", warehouseID, principal, now)

		require.NoError(t, err)
		assert.Equal(t, DocumentKindIssue, doc.Kind)
		assert.Equal(t, principal.ID, doc.CreatedByID)
		assert.Equal(t, principal.Role, doc.CreatedByRole)
		assert.Equal(t, now, doc.CreatedAt)
		assert.Empty(t, doc.Lines)
	})

	t.Run("rejects mismatched number", func(t *testing.T) {
		_, err := NewDocument(DocumentKindIssue, "PNK123456", warehouseID, principal, now)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects anonymous principal", func(t *testing.T) {
		_, err := NewDocument(DocumentKindIssue, "PXK123456", warehouseID, shared.Principal{Role: shared.RoleStaff}, now)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("purpose falls back to default", func(t *testing.T) {
		doc, err := NewDocument(DocumentKindIssue, "PXK123456", warehouseID, principal, now)
		require.NoError(t, err)

		doc.WithPurpose("  ", PurposeSale).WithReference(" INV-9 ")
		assert.Equal(t, PurposeSale, doc.Purpose)
		assert.Equal(t, "INV-9", doc.Reference)
	})
}

func TestDocument_AddLine(t *testing.T) {
	doc, err := NewDocument(DocumentKindReceipt, "PNK000001", uuid.New(), testPrincipal(), time.Now())
	require.NoError(t, err)
	b := newTestBatch(t, 10, nil)

	line, err := doc.AddLine(b, decimal.NewFromInt(4))
	require.NoError(t, err)
	assert.Equal(t, 1, line.LineNo)
	assert.Equal(t, b.ID, line.BatchID)
	assert.Equal(t, doc.ID, line.DocumentID)

	_, err = doc.AddLine(b, decimal.NewFromInt(2))
	require.NoError(t, err)

	_, err = doc.AddLine(b, decimal.Zero)
	assert.ErrorIs(t, err, shared.ErrInvalidQuantity)

	assert.True(t, doc.TotalQuantity().Equal(decimal.NewFromInt(6)))
	assert.Equal(t, []uuid.UUID{b.ID}, doc.BatchIDs())
	assert.True(t, doc.Lines[0].SignedQuantity(doc.Kind).Equal(decimal.NewFromInt(4)))
	assert.True(t, doc.Lines[0].SignedQuantity(DocumentKindIssue).Equal(decimal.NewFromInt(-4)))
}

func TestDocument_LinkTo(t *testing.T) {
	parent, err := NewDocument(DocumentKindTransfer, "PCK000001", uuid.New(), testPrincipal(), time.Now())
	require.NoError(t, err)
	child, err := NewDocument(DocumentKindIssue, "PXK000001", uuid.New(), testPrincipal(), time.Now())
	require.NoError(t, err)

	child.LinkTo(parent)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}
