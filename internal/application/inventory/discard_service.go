package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// DiscardService writes off stock held in error warehouses
type DiscardService struct {
	*core
}

// Discard records one Issue document writing off every line of req.
// Only batches in ERROR warehouses can be discarded and all lines must share
// one warehouse; expiry is not checked.
func (s *DiscardService) Discard(ctx context.Context, principal shared.Principal, req DiscardRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "discard")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrLineCount, len(req.Lines),
		telemetry.SpanAttrPrincipalID, principal.ID.String(),
	)

	doc, err := s.discard(ctx, principal, req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "discard", err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentNumber, doc.Number)
	s.committed(ctx, "discard", doc)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

func (s *DiscardService) discard(ctx context.Context, principal shared.Principal, req DiscardRequest) (*inventory.Document, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a discard reason is required", shared.ErrValidation)
	}
	if err := validateDiscardLines(req.Lines); err != nil {
		return nil, err
	}

	var doc *inventory.Document
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		// resolve every line before the document exists so a bad line leaves no trace
		batchIDs := make([]uuid.UUID, len(req.Lines))
		var warehouseID uuid.UUID
		for i, line := range req.Lines {
			id, err := s.resolve(ctx, repos, line)
			if err != nil {
				return shared.AtLine(i, err)
			}
			batch, err := repos.Batches().LockByID(ctx, id)
			if err != nil {
				return shared.AtLine(i, err)
			}
			if i == 0 {
				warehouseID = batch.WarehouseID
			} else if batch.WarehouseID != warehouseID {
				// the issue document belongs to exactly one warehouse
				return shared.AtLine(i, fmt.Errorf("%w: lot %s is in another error warehouse than line 1, discard each warehouse separately",
					shared.ErrValidation, batch.LotCode))
			}
			batchIDs[i] = id
		}

		var err error
		doc, err = s.draft(ctx, repos, inventory.DocumentKindIssue, warehouseID, principal)
		if err != nil {
			return err
		}
		doc.WithPurpose(inventory.PurposeDiscard, "").WithReference("Reason: " + reason)
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}

		for i, line := range req.Lines {
			batch, err := repos.Batches().LockByID(ctx, batchIDs[i])
			if err != nil {
				return shared.AtLine(i, err)
			}
			if _, err := move(ctx, repos, doc, batch, line.Quantity.Neg()); err != nil {
				return shared.AtLine(i, err)
			}
		}
		return repos.Documents().AppendLines(ctx, doc.Lines)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// resolve finds the batch a discard line refers to among ERROR warehouses
func (s *DiscardService) resolve(ctx context.Context, repos TransactionalRepositories, line DiscardLineRequest) (uuid.UUID, error) {
	lot := inventory.NormalizeLotCode(line.LotCode)

	if line.WarehouseID != nil {
		wh, err := requireWarehouse(ctx, repos, *line.WarehouseID)
		if err != nil {
			return uuid.Nil, err
		}
		if !wh.IsErrorKind() {
			return uuid.Nil, fmt.Errorf("%w: warehouse %s is not an error warehouse", shared.ErrValidation, wh.Label())
		}
		batch, err := repos.Batches().LockByKey(ctx, inventory.BatchKey{ProductID: line.ProductID, LotCode: lot, WarehouseID: wh.ID})
		if err != nil {
			return uuid.Nil, err
		}
		return batch.ID, nil
	}

	candidates, err := repos.Batches().FindByProductLot(ctx, line.ProductID, lot)
	if err != nil {
		return uuid.Nil, err
	}
	if len(candidates) == 0 {
		return uuid.Nil, fmt.Errorf("%w: lot %s of product %s", shared.ErrNotFound, lot, line.ProductID)
	}

	warehouseIDs := make([]uuid.UUID, len(candidates))
	for i := range candidates {
		warehouseIDs[i] = candidates[i].WarehouseID
	}
	warehouses, err := repos.Warehouses().FindByIDs(ctx, warehouseIDs)
	if err != nil {
		return uuid.Nil, err
	}

	var matches []uuid.UUID
	for i := range candidates {
		if wh, ok := warehouses[candidates[i].WarehouseID]; ok && wh.IsErrorKind() {
			matches = append(matches, candidates[i].ID)
		}
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("%w: lot %s is not held in an error warehouse", shared.ErrValidation, lot)
	case 1:
		return matches[0], nil
	}
	return uuid.Nil, fmt.Errorf("%w: lot %s is held in %d error warehouses, a warehouse ID is required",
		shared.ErrValidation, lot, len(matches))
}

func validateDiscardLines(lines []DiscardLineRequest) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", shared.ErrValidation)
	}
	for i, l := range lines {
		if l.ProductID == uuid.Nil {
			return shared.AtLine(i, fmt.Errorf("%w: product ID is required", shared.ErrValidation))
		}
		if err := inventory.ValidateLotCode(inventory.NormalizeLotCode(l.LotCode)); err != nil {
			return shared.AtLine(i, err)
		}
		if !l.Quantity.IsPositive() {
			return shared.AtLine(i, fmt.Errorf("%w: got %s", shared.ErrInvalidQuantity, l.Quantity))
		}
	}
	return nil
}
