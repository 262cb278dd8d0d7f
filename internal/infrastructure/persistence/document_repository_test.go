package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrincipal = shared.Principal{ID: uuid.New(), Name: "carol", Role: shared.RoleStaff}

func newTestDocument(t *testing.T, kind inventory.DocumentKind, number string, warehouseID uuid.UUID, at time.Time) *inventory.Document {
	t.Helper()
	doc, err := inventory.NewDocument(kind, number, warehouseID, testPrincipal, at)
	require.NoError(t, err)
	return doc
}

func TestGormDocumentRepository_CreateAndAppendLines(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	docs := NewGormDocumentRepository(db)
	warehouseID := uuid.New()
	b := newTestBatch(t, uuid.New(), warehouseID, "L1", "1000000000001", 10, nil)

	doc := newTestDocument(t, inventory.DocumentKindReceipt, "PNK000001", warehouseID, time.Now().UTC())
	doc.WithPurpose("", inventory.PurposeSupplierReceipt).WithReference("PO-1")
	require.NoError(t, docs.Create(ctx, doc))
	_, err := doc.AddLine(b, decimal.NewFromInt(6))
	require.NoError(t, err)
	_, err = doc.AddLine(b, decimal.NewFromInt(4))
	require.NoError(t, err)
	require.NoError(t, docs.AppendLines(ctx, doc.Lines))

	got, err := docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "PNK000001", got.Number)
	assert.Equal(t, inventory.DocumentKindReceipt, got.Kind)
	assert.Equal(t, inventory.PurposeSupplierReceipt, got.Purpose)
	assert.Equal(t, "PO-1", got.Reference)
	assert.Equal(t, "carol", got.CreatedByName)
	assert.Equal(t, shared.RoleStaff, got.CreatedByRole)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 1, got.Lines[0].LineNo)
	assert.Equal(t, 2, got.Lines[1].LineNo)
	assert.True(t, got.TotalQuantity().Equal(decimal.NewFromInt(10)))

	byNumber, err := docs.FindByNumber(ctx, "PNK000001")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byNumber.ID)

	locked, err := docs.LockByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, locked.Lines, 2)

	taken, err := docs.NumberExists(ctx, "PNK000001")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = docs.NumberExists(ctx, "PNK000002")
	require.NoError(t, err)
	assert.False(t, taken)

	dup := newTestDocument(t, inventory.DocumentKindReceipt, "PNK000001", warehouseID, time.Now().UTC())
	assert.ErrorIs(t, docs.Create(ctx, dup), shared.ErrDuplicateKey)

	_, err = docs.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormDocumentRepository_FindChildren(t *testing.T) {
	ctx := context.Background()
	docs := NewGormDocumentRepository(newSQLiteDB(t))
	warehouseID := uuid.New()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	parent := newTestDocument(t, inventory.DocumentKindTransfer, "PCK000001", warehouseID, base)
	require.NoError(t, docs.Create(ctx, parent))

	receipt := newTestDocument(t, inventory.DocumentKindReceipt, "PNK000009", warehouseID, base.Add(2*time.Second))
	receipt.LinkTo(parent)
	issue := newTestDocument(t, inventory.DocumentKindIssue, "PXK000005", warehouseID, base.Add(time.Second))
	issue.LinkTo(parent)
	require.NoError(t, docs.Create(ctx, receipt))
	require.NoError(t, docs.Create(ctx, issue))

	children, err := docs.FindChildren(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, issue.ID, children[0].ID)
	assert.Equal(t, receipt.ID, children[1].ID)
	require.NotNil(t, children[0].ParentID)
	assert.Equal(t, parent.ID, *children[0].ParentID)

	none, err := docs.FindChildren(ctx, issue.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormCountRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	warehouseID := uuid.New()
	productID := uuid.New()

	batches := []inventory.Batch{
		*newTestBatch(t, productID, warehouseID, "B", "1000000000002", 5, nil),
		*newTestBatch(t, productID, warehouseID, "A", "1000000000001", 8, nil),
	}
	doc := newTestDocument(t, inventory.DocumentKindCount, "PKK000001", warehouseID, time.Now().UTC())
	require.NoError(t, NewGormDocumentRepository(db).Create(ctx, doc))

	count, err := inventory.NewCount(doc, inventory.OmissionUnchanged, batches)
	require.NoError(t, err)
	counts := NewGormCountRepository(db)
	require.NoError(t, counts.Create(ctx, count))

	loaded, err := counts.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.CountStatusStarted, loaded.Status)
	assert.Equal(t, inventory.OmissionUnchanged, loaded.OmissionPolicy)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, "A", loaded.Lines[0].LotCode)
	assert.False(t, loaded.Lines[0].Counted)

	batchID := batches[1].ID
	_, err = loaded.Record([]inventory.CountEntry{{BatchID: &batchID, CountedQuantity: decimal.NewFromInt(6)}}, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, counts.Save(ctx, loaded))

	locked, err := counts.LockByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.CountStatusRecorded, locked.Status)
	assert.NotNil(t, locked.RecordedAt)
	require.True(t, locked.Lines[0].Counted)
	assert.True(t, locked.Lines[0].Delta().Equal(decimal.NewFromInt(-2)))
	assert.False(t, locked.Lines[1].Counted)

	_, err = counts.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormLotSequenceRepository_Next(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLotSequenceRepository(newSQLiteDB(t))
	productID := uuid.New()

	for want := 1; want <= 3; want++ {
		got, err := repo.Next(ctx, productID, "L1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := repo.Next(ctx, productID, "L2")
	require.NoError(t, err)
	assert.Equal(t, 1, got, "each parent lot has its own sequence")

	got, err = repo.Next(ctx, uuid.New(), "L1")
	require.NoError(t, err)
	assert.Equal(t, 1, got, "each product has its own sequence")
}

func TestGormReferenceRepositories(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	products := NewGormProductRepository(db)
	warehouses := NewGormWarehouseRepository(db)

	p := &inventory.Product{ID: uuid.New(), Code: "P1", Name: "Milk", Unit: "l", ReorderThreshold: decimal.NewFromInt(5)}
	require.NoError(t, products.Save(ctx, p))
	regular := &inventory.Warehouse{ID: uuid.New(), Code: "W1", Name: "Main", Kind: inventory.WarehouseKindRegular}
	damaged := &inventory.Warehouse{ID: uuid.New(), Code: "E1", Name: "Damaged", Kind: inventory.WarehouseKindError}
	require.NoError(t, warehouses.Save(ctx, regular))
	require.NoError(t, warehouses.Save(ctx, damaged))

	got, err := products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Milk", got.Name)
	assert.True(t, got.ReorderThreshold.Equal(decimal.NewFromInt(5)))

	found, err := products.FindByIDs(ctx, []uuid.UUID{p.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	errs, err := warehouses.FindByKind(ctx, inventory.WarehouseKindError)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, damaged.ID, errs[0].ID)

	byID, err := warehouses.FindByIDs(ctx, []uuid.UUID{regular.ID, damaged.ID})
	require.NoError(t, err)
	assert.True(t, byID[damaged.ID].IsErrorKind())
	assert.False(t, byID[regular.ID].IsErrorKind())

	_, err = warehouses.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
