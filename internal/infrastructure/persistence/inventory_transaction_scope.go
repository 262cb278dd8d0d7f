package persistence

import (
	"context"
	"fmt"
	"time"

	appinv "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormTransactionScope creates a new GormTransactionScope.
// A positive lockTimeout bounds row lock waits on PostgreSQL.
func NewGormTransactionScope(db *gorm.DB, lockTimeout time.Duration) *GormTransactionScope {
	return &GormTransactionScope{db: db, lockTimeout: lockTimeout}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.boundLockWait(tx); err != nil {
			return err
		}
		return fn(NewGormRepositories(tx))
	})
	return translateError(err)
}

func (s *GormTransactionScope) boundLockWait(tx *gorm.DB) error {
	if s.lockTimeout <= 0 || tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	// SET LOCAL does not accept bind parameters
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
	if err := tx.Exec(stmt).Error; err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

// GormRepositories provides access to all ledger repositories over one gorm handle.
// Inside Execute the handle is the transaction; built from the root DB it serves reads.
type GormRepositories struct {
	tx *gorm.DB
}

// NewGormRepositories creates repositories bound to db
func NewGormRepositories(db *gorm.DB) *GormRepositories {
	return &GormRepositories{tx: db}
}

// Batches returns the batch repository
func (r *GormRepositories) Batches() inventory.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

// Documents returns the document repository
func (r *GormRepositories) Documents() inventory.DocumentRepository {
	return NewGormDocumentRepository(r.tx)
}

// Counts returns the count repository
func (r *GormRepositories) Counts() inventory.CountRepository {
	return NewGormCountRepository(r.tx)
}

// LotSequences returns the derived lot code sequence repository
func (r *GormRepositories) LotSequences() inventory.LotSequenceRepository {
	return NewGormLotSequenceRepository(r.tx)
}

// Products returns the product repository
func (r *GormRepositories) Products() inventory.ProductRepository {
	return NewGormProductRepository(r.tx)
}

// Warehouses returns the warehouse repository
func (r *GormRepositories) Warehouses() inventory.WarehouseRepository {
	return NewGormWarehouseRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

// Ensure GormRepositories implements TransactionalRepositories
var _ appinv.TransactionalRepositories = (*GormRepositories)(nil)
