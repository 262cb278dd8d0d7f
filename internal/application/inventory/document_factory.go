package inventory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// RandomSource returns a uniformly distributed integer in [0, n)
type RandomSource func(n int) int

const (
	documentNumberSpace = 1_000_000
	lotCodePrefix       = "LO"
	lotCodeSpace        = 1_000_000
	// a barcode is drawn as 6 high and 7 low digits so that int stays within 32 bits
	barcodeHighSpace = 1_000_000
	barcodeLowSpace  = 10_000_000
)

// DocumentFactory mints documents, barcodes and lot codes that do not collide
// with existing ones. Each draw is checked against the store and retried a bounded
// number of times; exhaustion surfaces as ErrDuplicateKey.
type DocumentFactory struct {
	random   RandomSource
	attempts int
	clock    func() time.Time
}

// NewDocumentFactory creates a factory retrying each draw up to attempts times
func NewDocumentFactory(attempts int) *DocumentFactory {
	if attempts <= 0 {
		attempts = DefaultOptions().IDRetryAttempts
	}
	return &DocumentFactory{
		random:   rand.IntN,
		attempts: attempts,
		clock:    time.Now,
	}
}

// SetRandomSource replaces the random source
func (f *DocumentFactory) SetRandomSource(r RandomSource) {
	f.random = r
}

// SetClock replaces the clock used to stamp documents
func (f *DocumentFactory) SetClock(clock func() time.Time) {
	f.clock = clock
}

// Now returns the factory's current time
func (f *DocumentFactory) Now() time.Time {
	return f.clock()
}

// New creates an unsaved document of kind with a fresh number, stamped with
// the principal and the current time.
func (f *DocumentFactory) New(
	ctx context.Context,
	docs inventory.DocumentRepository,
	kind inventory.DocumentKind,
	warehouseID uuid.UUID,
	principal shared.Principal,
) (*inventory.Document, error) {
	number, err := f.draw(ctx, "document number", func() string {
		return inventory.FormatDocumentNumber(kind, f.random(documentNumberSpace))
	}, docs.NumberExists)
	if err != nil {
		return nil, err
	}
	return inventory.NewDocument(kind, number, warehouseID, principal, f.clock())
}

// NewBarcode draws a barcode not used by any batch
func (f *DocumentFactory) NewBarcode(ctx context.Context, batches inventory.BatchRepository) (string, error) {
	return f.draw(ctx, "barcode", func() string {
		return fmt.Sprintf("%06d%07d", f.random(barcodeHighSpace), f.random(barcodeLowSpace))
	}, batches.BarcodeExists)
}

// NewLotCode draws a lot code free for the product in the warehouse
func (f *DocumentFactory) NewLotCode(ctx context.Context, batches inventory.BatchRepository, productID, warehouseID uuid.UUID) (string, error) {
	return f.draw(ctx, "lot code", func() string {
		return fmt.Sprintf("%s%06d", lotCodePrefix, f.random(lotCodeSpace))
	}, func(ctx context.Context, code string) (bool, error) {
		return batches.KeyExists(ctx, inventory.BatchKey{ProductID: productID, LotCode: code, WarehouseID: warehouseID})
	})
}

// NewDerivedLotCode returns the next derived lot code of parent that is free in the warehouse
func (f *DocumentFactory) NewDerivedLotCode(
	ctx context.Context,
	repos TransactionalRepositories,
	productID uuid.UUID,
	parentLotCode string,
	warehouseID uuid.UUID,
) (string, error) {
	for i := 0; i < f.attempts; i++ {
		n, err := repos.LotSequences().Next(ctx, productID, parentLotCode)
		if err != nil {
			return "", err
		}
		code := inventory.DeriveLotCode(parentLotCode, n)
		if len(code) > inventory.MaxLotCodeLength {
			return "", fmt.Errorf("%w: lot %s has no room for another split suffix, transfer it whole",
				shared.ErrValidation, parentLotCode)
		}
		taken, err := repos.Batches().KeyExists(ctx, inventory.BatchKey{ProductID: productID, LotCode: code, WarehouseID: warehouseID})
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free lot code derived from %s after %d attempts", shared.ErrDuplicateKey, parentLotCode, f.attempts)
}

func (f *DocumentFactory) draw(
	ctx context.Context,
	what string,
	next func() string,
	exists func(context.Context, string) (bool, error),
) (string, error) {
	for i := 0; i < f.attempts; i++ {
		candidate := next()
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free %s after %d attempts", shared.ErrDuplicateKey, what, f.attempts)
}
