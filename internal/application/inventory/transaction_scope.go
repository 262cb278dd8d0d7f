package inventory

import (
	"context"

	"github.com/erp/ledger/internal/domain/inventory"
)

// TransactionScope provides transactional access to ledger repositories.
// Every repository handed to fn shares one database transaction, which commits
// when fn returns nil and rolls back otherwise.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within a transaction.
// The same interface serves read paths outside a transaction.
type TransactionalRepositories interface {
	// Batches returns the batch repository
	Batches() inventory.BatchRepository
	// Documents returns the document repository
	Documents() inventory.DocumentRepository
	// Counts returns the count repository
	Counts() inventory.CountRepository
	// LotSequences returns the derived lot code sequence repository
	LotSequences() inventory.LotSequenceRepository
	// Products returns the product reference repository
	Products() inventory.ProductRepository
	// Warehouses returns the warehouse reference repository
	Warehouses() inventory.WarehouseRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing with in-memory repositories.
type NoOpTransactionScope struct {
	repos TransactionalRepositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories.
func NewNoOpTransactionScope(repos TransactionalRepositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s.repos)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
