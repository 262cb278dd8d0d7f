package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// core holds what every ledger service shares. Services keep a pointer so that
// setters on the Ledger reach all of them.
type core struct {
	scope   TransactionScope
	reads   TransactionalRepositories
	reports inventory.ReportRepository
	factory *DocumentFactory
	planner strategy.BatchManagementStrategy
	opts    Options
	logger  *zap.Logger
	metrics *telemetry.LedgerMetrics
}

func (c *core) today() time.Time {
	return shared.DateOf(c.factory.Now())
}

func (c *core) log(ctx context.Context) *zap.Logger {
	return logger.For(ctx, c.logger)
}

// committed logs and counts documents after their transaction commits
func (c *core) committed(ctx context.Context, op string, docs ...*inventory.Document) {
	for _, doc := range docs {
		c.log(ctx).Info("Ledger document committed",
			zap.String("operation", op),
			zap.String("document_id", doc.ID.String()),
			zap.String("number", doc.Number),
			zap.String("kind", doc.Kind.String()),
			zap.Int("lines", len(doc.Lines)),
			zap.String("created_by", doc.CreatedByName),
		)
		if c.metrics != nil {
			c.metrics.RecordDocument(ctx, doc.Kind.String(), doc.TotalQuantity())
		}
	}
}

// rejected logs a failed operation. Business-rule rejections are warnings,
// anything without a domain code is an error.
func (c *core) rejected(ctx context.Context, op string, err error) {
	code := shared.CodeOf(err)
	if code == "" {
		c.log(ctx).Error("Ledger operation failed", zap.String("operation", op), zap.Error(err))
	} else {
		c.log(ctx).Warn("Ledger operation rejected",
			zap.String("operation", op),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRejection(ctx, code)
	}
}

// draft creates an unsaved document for principal
func (c *core) draft(
	ctx context.Context,
	repos TransactionalRepositories,
	kind inventory.DocumentKind,
	warehouseID uuid.UUID,
	principal shared.Principal,
) (*inventory.Document, error) {
	return c.factory.New(ctx, repos.Documents(), kind, warehouseID, principal)
}

// move applies delta to a locked batch, persists it through the guarded update
// and records the line on doc.
func move(
	ctx context.Context,
	repos TransactionalRepositories,
	doc *inventory.Document,
	batch *inventory.Batch,
	delta decimal.Decimal,
) (*inventory.DocumentLine, error) {
	if err := batch.Apply(delta, doc.ID); err != nil {
		return nil, err
	}
	if err := repos.Batches().AdjustQuantity(ctx, batch.ID, delta, doc.ID); err != nil {
		return nil, err
	}
	return doc.AddLine(batch, delta.Abs())
}

func requireWarehouse(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*inventory.Warehouse, error) {
	if id == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "warehouse ID is required")
	}
	return repos.Warehouses().FindByID(ctx, id)
}

// requireProducts checks every line's product exists, naming the first missing line
func requireProducts(ctx context.Context, repos TransactionalRepositories, ids []uuid.UUID) (map[uuid.UUID]*inventory.Product, error) {
	found, err := repos.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, shared.AtLine(i, shared.NewDomainError(shared.CodeNotFound, "product "+id.String()+" not found"))
		}
	}
	return found, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
