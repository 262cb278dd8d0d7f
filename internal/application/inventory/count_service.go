package inventory

import (
	"context"
	"strings"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CountService runs physical counts: Started -> Recorded -> Reconciled
type CountService struct {
	*core
}

// StartCount opens a count of a warehouse and snapshots the system quantity of every batch in it
func (s *CountService) StartCount(ctx context.Context, principal shared.Principal, req StartCountRequest) (*StartCountResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "start_count")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrWarehouseID, req.WarehouseID.String(),
		telemetry.SpanAttrPrincipalID, principal.ID.String(),
	)

	doc, count, err := s.start(ctx, principal, req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "start_count", err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentNumber, doc.Number)
	s.committed(ctx, "start_count", doc)
	return &StartCountResult{
		Document:       ToDocumentResponse(doc),
		OmissionPolicy: string(count.OmissionPolicy),
		Snapshot:       ToCountLineResponses(count.Lines),
	}, nil
}

func (s *CountService) start(ctx context.Context, principal shared.Principal, req StartCountRequest) (*inventory.Document, *inventory.Count, error) {
	if err := principal.Validate(); err != nil {
		return nil, nil, err
	}
	policy := s.opts.DefaultOmissionPolicy
	if strings.TrimSpace(req.OmissionPolicy) != "" {
		p, err := inventory.ParseOmissionPolicy(req.OmissionPolicy)
		if err != nil {
			return nil, nil, err
		}
		policy = p
	}

	var (
		doc   *inventory.Document
		count *inventory.Count
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := requireWarehouse(ctx, repos, req.WarehouseID); err != nil {
			return err
		}
		batches, err := repos.Batches().FindByWarehouse(ctx, req.WarehouseID)
		if err != nil {
			return err
		}

		doc, err = s.draft(ctx, repos, inventory.DocumentKindCount, req.WarehouseID, principal)
		if err != nil {
			return err
		}
		doc.WithPurpose(inventory.PurposeStockCount, "")
		count, err = inventory.NewCount(doc, policy, batches)
		if err != nil {
			return err
		}
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.Counts().Create(ctx, count)
	})
	if err != nil {
		return nil, nil, err
	}
	return doc, count, nil
}

// RecordCount stores physical counts against the snapshot and returns the discrepancies.
// Recording again before reconcile overwrites earlier entries.
func (s *CountService) RecordCount(ctx context.Context, principal shared.Principal, countID uuid.UUID, req RecordCountRequest) (*RecordCountResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "record_count")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, countID.String(),
		telemetry.SpanAttrLineCount, len(req.Entries),
		telemetry.SpanAttrPrincipalID, principal.ID.String(),
	)

	if err := principal.Validate(); err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "record_count", err)
		return nil, err
	}

	var (
		count         *inventory.Count
		discrepancies []inventory.Discrepancy
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		count, err = repos.Counts().LockByID(ctx, countID)
		if err != nil {
			return err
		}
		discrepancies, err = count.Record(ToCountEntries(req.Entries), s.factory.Now())
		if err != nil {
			return err
		}
		return repos.Counts().Save(ctx, count)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "record_count", err)
		return nil, err
	}

	s.log(ctx).Info("Count recorded",
		zap.String("count_id", count.ID.String()),
		zap.Int("entries", len(req.Entries)),
		zap.Int("discrepancies", len(discrepancies)),
	)
	return &RecordCountResult{
		CountID:       count.ID,
		Status:        count.Status.String(),
		Discrepancies: ToDiscrepancyResponses(discrepancies),
	}, nil
}

type reconcileDocs struct {
	receipts []*inventory.Document
	issues   []*inventory.Document
	skipped  []uuid.UUID
}

// Reconcile brings every counted batch to its physical quantity with one corrective
// document per non-zero delta, then closes the count. A second call fails with
// ErrAlreadyReconciled, so corrections apply exactly once.
func (s *CountService) Reconcile(ctx context.Context, principal shared.Principal, countID uuid.UUID) (*ReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reconcile_count")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, countID.String(),
		telemetry.SpanAttrPrincipalID, principal.ID.String(),
	)

	docs, err := s.reconcile(ctx, principal, countID)
	if err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "reconcile_count", err)
		return nil, err
	}

	s.committed(ctx, "reconcile_count", docs.receipts...)
	s.committed(ctx, "reconcile_count", docs.issues...)
	return &ReconcileResult{
		CountID:  countID,
		Receipts: ToDocumentResponses(docs.receipts),
		Issues:   ToDocumentResponses(docs.issues),
		Skipped:  docs.skipped,
	}, nil
}

func (s *CountService) reconcile(ctx context.Context, principal shared.Principal, countID uuid.UUID) (*reconcileDocs, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}

	docs := &reconcileDocs{
		receipts: make([]*inventory.Document, 0),
		issues:   make([]*inventory.Document, 0),
	}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		count, err := repos.Counts().LockByID(ctx, countID)
		if err != nil {
			return err
		}
		if err := count.EnsureReconcilable(); err != nil {
			return err
		}
		countDoc, err := repos.Documents().FindByID(ctx, count.ID)
		if err != nil {
			return err
		}
		held, err := repos.Batches().LockByWarehouse(ctx, count.WarehouseID)
		if err != nil {
			return err
		}
		present := make(map[uuid.UUID]*inventory.Batch, len(held))
		for i := range held {
			present[held[i].ID] = &held[i]
		}

		for _, target := range count.Targets() {
			batch, ok := present[target.BatchID]
			if !ok {
				// relocated whole by a transfer; there is nothing left here to correct
				s.log(ctx).Warn("Count target left the warehouse, skipping",
					zap.String("count_id", count.ID.String()),
					zap.String("batch_id", target.BatchID.String()),
					zap.String("counted_quantity", target.Quantity.String()),
				)
				docs.skipped = append(docs.skipped, target.BatchID)
				continue
			}
			doc, err := s.correct(ctx, repos, principal, countDoc, batch, target)
			if err != nil {
				return err
			}
			switch {
			case doc == nil:
			case doc.Kind == inventory.DocumentKindReceipt:
				docs.receipts = append(docs.receipts, doc)
			default:
				docs.issues = append(docs.issues, doc)
			}
		}

		if err := count.MarkReconciled(s.factory.Now()); err != nil {
			return err
		}
		return repos.Counts().Save(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// correct sets one locked batch to its counted quantity. It returns nil when the
// batch already holds it.
func (s *CountService) correct(
	ctx context.Context,
	repos TransactionalRepositories,
	principal shared.Principal,
	countDoc *inventory.Document,
	batch *inventory.Batch,
	target inventory.CountTarget,
) (*inventory.Document, error) {
	delta := target.Quantity.Sub(batch.Quantity)
	if delta.IsZero() {
		return nil, nil
	}

	kind, purpose := inventory.DocumentKindReceipt, inventory.PurposeCountIncrease
	if delta.IsNegative() {
		kind, purpose = inventory.DocumentKindIssue, inventory.PurposeCountDecrease
	}
	doc, err := s.draft(ctx, repos, kind, countDoc.WarehouseID, principal)
	if err != nil {
		return nil, err
	}
	doc.WithPurpose(purpose, "").WithReference(countDoc.Number)
	doc.LinkTo(countDoc)
	if err := repos.Documents().Create(ctx, doc); err != nil {
		return nil, err
	}
	if _, err := move(ctx, repos, doc, batch, delta); err != nil {
		return nil, err
	}
	if err := repos.Documents().AppendLines(ctx, doc.Lines); err != nil {
		return nil, err
	}
	return doc, nil
}
