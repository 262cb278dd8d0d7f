package inventory

import (
	"context"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockBatchRepository is a mock implementation of inventory.BatchRepository
type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) batch(args mock.Arguments) (*inventory.Batch, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Batch), args.Error(1)
}

func (m *MockBatchRepository) batches(args mock.Arguments) ([]inventory.Batch, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Batch), args.Error(1)
}

func (m *MockBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	return m.batch(m.Called(ctx, id))
}

func (m *MockBatchRepository) FindByKey(ctx context.Context, key inventory.BatchKey) (*inventory.Batch, error) {
	return m.batch(m.Called(ctx, key))
}

func (m *MockBatchRepository) FindByBarcode(ctx context.Context, barcode string) (*inventory.Batch, error) {
	return m.batch(m.Called(ctx, barcode))
}

func (m *MockBatchRepository) FindByProductWarehouse(ctx context.Context, productID, warehouseID uuid.UUID) ([]inventory.Batch, error) {
	return m.batches(m.Called(ctx, productID, warehouseID))
}

func (m *MockBatchRepository) FindByProductLot(ctx context.Context, productID uuid.UUID, lotCode string) ([]inventory.Batch, error) {
	return m.batches(m.Called(ctx, productID, lotCode))
}

func (m *MockBatchRepository) FindByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]inventory.Batch, error) {
	return m.batches(m.Called(ctx, warehouseID))
}

func (m *MockBatchRepository) LockByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	return m.batch(m.Called(ctx, id))
}

func (m *MockBatchRepository) LockByKey(ctx context.Context, key inventory.BatchKey) (*inventory.Batch, error) {
	return m.batch(m.Called(ctx, key))
}

func (m *MockBatchRepository) LockByProductWarehouse(ctx context.Context, productID, warehouseID uuid.UUID) ([]inventory.Batch, error) {
	return m.batches(m.Called(ctx, productID, warehouseID))
}

func (m *MockBatchRepository) LockByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]inventory.Batch, error) {
	return m.batches(m.Called(ctx, warehouseID))
}

func (m *MockBatchRepository) Upsert(ctx context.Context, batch *inventory.Batch) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *MockBatchRepository) AdjustQuantity(ctx context.Context, batchID uuid.UUID, delta decimal.Decimal, documentID uuid.UUID) error {
	return m.Called(ctx, batchID, delta, documentID).Error(0)
}

func (m *MockBatchRepository) BarcodeExists(ctx context.Context, barcode string) (bool, error) {
	args := m.Called(ctx, barcode)
	return args.Bool(0), args.Error(1)
}

func (m *MockBatchRepository) KeyExists(ctx context.Context, key inventory.BatchKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockDocumentRepository is a mock implementation of inventory.DocumentRepository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) document(args mock.Arguments) (*inventory.Document, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Document, error) {
	return m.document(m.Called(ctx, id))
}

func (m *MockDocumentRepository) FindByNumber(ctx context.Context, number string) (*inventory.Document, error) {
	return m.document(m.Called(ctx, number))
}

func (m *MockDocumentRepository) FindChildren(ctx context.Context, parentID uuid.UUID) ([]inventory.Document, error) {
	args := m.Called(ctx, parentID)
	return args.Get(0).([]inventory.Document), args.Error(1)
}

func (m *MockDocumentRepository) LockByID(ctx context.Context, id uuid.UUID) (*inventory.Document, error) {
	return m.document(m.Called(ctx, id))
}

func (m *MockDocumentRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *inventory.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentRepository) AppendLines(ctx context.Context, lines []inventory.DocumentLine) error {
	return m.Called(ctx, lines).Error(0)
}

// MockCountRepository is a mock implementation of inventory.CountRepository
type MockCountRepository struct {
	mock.Mock
}

func (m *MockCountRepository) count(args mock.Arguments) (*inventory.Count, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Count), args.Error(1)
}

func (m *MockCountRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Count, error) {
	return m.count(m.Called(ctx, id))
}

func (m *MockCountRepository) LockByID(ctx context.Context, id uuid.UUID) (*inventory.Count, error) {
	return m.count(m.Called(ctx, id))
}

func (m *MockCountRepository) Create(ctx context.Context, count *inventory.Count) error {
	return m.Called(ctx, count).Error(0)
}

func (m *MockCountRepository) Save(ctx context.Context, count *inventory.Count) error {
	return m.Called(ctx, count).Error(0)
}

// MockLotSequenceRepository is a mock implementation of inventory.LotSequenceRepository
type MockLotSequenceRepository struct {
	mock.Mock
}

func (m *MockLotSequenceRepository) Next(ctx context.Context, productID uuid.UUID, parentLotCode string) (int, error) {
	args := m.Called(ctx, productID, parentLotCode)
	return args.Int(0), args.Error(1)
}

// MockProductRepository is a mock implementation of inventory.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Product), args.Error(1)
}

func (m *MockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*inventory.Product, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[uuid.UUID]*inventory.Product), args.Error(1)
}

// MockWarehouseRepository is a mock implementation of inventory.WarehouseRepository
type MockWarehouseRepository struct {
	mock.Mock
}

func (m *MockWarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Warehouse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Warehouse), args.Error(1)
}

func (m *MockWarehouseRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*inventory.Warehouse, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[uuid.UUID]*inventory.Warehouse), args.Error(1)
}

func (m *MockWarehouseRepository) FindByKind(ctx context.Context, kind inventory.WarehouseKind) ([]inventory.Warehouse, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).([]inventory.Warehouse), args.Error(1)
}

// mockRepositories bundles the mocks as TransactionalRepositories
type mockRepositories struct {
	batches    *MockBatchRepository
	documents  *MockDocumentRepository
	counts     *MockCountRepository
	sequences  *MockLotSequenceRepository
	products   *MockProductRepository
	warehouses *MockWarehouseRepository
}

func newMockRepositories() *mockRepositories {
	return &mockRepositories{
		batches:    new(MockBatchRepository),
		documents:  new(MockDocumentRepository),
		counts:     new(MockCountRepository),
		sequences:  new(MockLotSequenceRepository),
		products:   new(MockProductRepository),
		warehouses: new(MockWarehouseRepository),
	}
}

func (r *mockRepositories) Batches() inventory.BatchRepository { return r.batches }
func (r *mockRepositories) Documents() inventory.DocumentRepository { return r.documents }
func (r *mockRepositories) Counts() inventory.CountRepository { return r.counts }
func (r *mockRepositories) LotSequences() inventory.LotSequenceRepository { return r.sequences }
func (r *mockRepositories) Products() inventory.ProductRepository { return r.products }
func (r *mockRepositories) Warehouses() inventory.WarehouseRepository { return r.warehouses }

// sequence returns a RandomSource yielding values in order, then repeating the last
func sequence(values ...int) RandomSource {
	i := 0
	return func(n int) int {
		v := values[min(i, len(values)-1)]
		i++
		return v % n
	}
}
