package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// IssueService takes stock out of a warehouse, either planned FEFO across a
// product's batches or from a named batch.
type IssueService struct {
	*core
}

// CreateIssue records one Issue document for all lines of req.
// In FEFO mode a line that cannot be fully covered fails the whole issue
// with a ShortageError; nothing is ever allocated partially.
func (s *IssueService) CreateIssue(ctx context.Context, principal shared.Principal, req IssueRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_issue")
	defer span.End()

	mode := req.Mode
	if mode == "" {
		mode = IssueModeFEFO
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrWarehouseID, req.WarehouseID.String(),
		telemetry.SpanAttrLineCount, len(req.Lines),
		telemetry.SpanAttrPrincipalID, principal.ID.String(),
		"issue_mode", string(mode),
	)

	doc, err := s.issue(ctx, principal, mode, req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "create_issue", err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentNumber, doc.Number)
	s.committed(ctx, "create_issue", doc)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

func (s *IssueService) issue(ctx context.Context, principal shared.Principal, mode IssueMode, req IssueRequest) (*inventory.Document, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	if mode != IssueModeFEFO && mode != IssueModeExplicit {
		return nil, fmt.Errorf("%w: unknown issue mode %q", shared.ErrValidation, mode)
	}
	if err := validateIssueLines(mode, req.Lines); err != nil {
		return nil, err
	}

	var doc *inventory.Document
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := requireWarehouse(ctx, repos, req.WarehouseID); err != nil {
			return err
		}
		productIDs := make([]uuid.UUID, len(req.Lines))
		for i, l := range req.Lines {
			productIDs[i] = l.ProductID
		}
		if _, err := requireProducts(ctx, repos, productIDs); err != nil {
			return err
		}

		var err error
		doc, err = s.draft(ctx, repos, inventory.DocumentKindIssue, req.WarehouseID, principal)
		if err != nil {
			return err
		}
		doc.WithPurpose(req.Purpose, inventory.PurposeSale).WithReference(req.Reference)
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}

		if mode == IssueModeFEFO {
			err = s.issueFEFO(ctx, repos, doc, req)
		} else {
			err = s.issueExplicit(ctx, repos, doc, req)
		}
		if err != nil {
			return err
		}
		return repos.Documents().AppendLines(ctx, doc.Lines)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// issueFEFO locks each product's batches once and plans every line against that
// locked view, so later lines see what earlier lines consumed.
func (s *IssueService) issueFEFO(ctx context.Context, repos TransactionalRepositories, doc *inventory.Document, req IssueRequest) error {
	locked := make(map[uuid.UUID][]inventory.Batch)
	today := s.today()

	for i, line := range req.Lines {
		batches, ok := locked[line.ProductID]
		if !ok {
			var err error
			batches, err = repos.Batches().LockByProductWarehouse(ctx, line.ProductID, req.WarehouseID)
			if err != nil {
				return err
			}
			locked[line.ProductID] = batches
		}

		plan, err := s.planner.SelectBatches(ctx, strategy.BatchSelectionContext{
			ProductID:   line.ProductID,
			WarehouseID: req.WarehouseID,
			Quantity:    line.Quantity,
			Date:        today,
		}, inventory.ToStrategyBatches(batches))
		if err != nil {
			return shared.AtLine(i, err)
		}
		if !plan.IsSatisfied() {
			return shared.AtLine(i, &ShortageError{
				ProductID:   line.ProductID,
				WarehouseID: req.WarehouseID,
				Requested:   line.Quantity,
				Available:   plan.TotalQty,
				Shortage:    plan.ShortfallQty,
			})
		}

		for _, sel := range plan.Selections {
			idx := indexOfBatch(batches, sel.BatchID)
			if idx < 0 {
				return shared.AtLine(i, fmt.Errorf("%w: planned batch %s is not locked", shared.ErrConcurrencyConflict, sel.BatchID))
			}
			if _, err := move(ctx, repos, doc, &batches[idx], sel.Quantity.Neg()); err != nil {
				return shared.AtLine(i, err)
			}
			telemetry.AddEvent(trace.SpanFromContext(ctx), "batch_allocated",
				telemetry.SpanAttrBatchID, sel.BatchID,
				telemetry.SpanAttrProductID, line.ProductID,
				telemetry.SpanAttrQuantity, sel.Quantity,
			)
		}
		if s.metrics != nil {
			s.metrics.RecordAllocation(ctx, req.WarehouseID, len(plan.Selections))
		}
	}
	return nil
}

func (s *IssueService) issueExplicit(ctx context.Context, repos TransactionalRepositories, doc *inventory.Document, req IssueRequest) error {
	today := s.today()
	for i, line := range req.Lines {
		key := inventory.BatchKey{
			ProductID:   line.ProductID,
			LotCode:     inventory.NormalizeLotCode(line.LotCode),
			WarehouseID: req.WarehouseID,
		}
		batch, err := repos.Batches().LockByKey(ctx, key)
		if err != nil {
			return shared.AtLine(i, err)
		}
		if barcode := strings.TrimSpace(line.Barcode); barcode != "" && barcode != batch.Barcode {
			return shared.AtLine(i, fmt.Errorf("%w: barcode %s does not match lot %s", shared.ErrValidation, barcode, batch.LotCode))
		}
		if batch.IsExpiredOn(today) {
			return shared.AtLine(i, fmt.Errorf("%w: lot %s expired on %s",
				shared.ErrExpiredBatch, batch.LotCode, batch.ExpiryDate.Format("2006-01-02")))
		}
		if _, err := move(ctx, repos, doc, batch, line.Quantity.Neg()); err != nil {
			return shared.AtLine(i, err)
		}
	}
	return nil
}

// ReverseIssue restores every line of an issue to the batch it came from with
// a compensating Receipt linked to the issue. An issue can be reversed once.
func (s *IssueService) ReverseIssue(ctx context.Context, principal shared.Principal, issueID uuid.UUID, req ReverseIssueRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reverse_issue")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, issueID.String(),
		telemetry.SpanAttrPrincipalID, principal.ID.String(),
	)

	doc, err := s.reverse(ctx, principal, issueID, req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "reverse_issue", err)
		return nil, err
	}

	s.committed(ctx, "reverse_issue", doc)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

func (s *IssueService) reverse(ctx context.Context, principal shared.Principal, issueID uuid.UUID, req ReverseIssueRequest) (*inventory.Document, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}

	var receipt *inventory.Document
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		issue, err := repos.Documents().LockByID(ctx, issueID)
		if err != nil {
			return err
		}
		if issue.Kind != inventory.DocumentKindIssue {
			return fmt.Errorf("%w: document %s is a %s, not an issue", shared.ErrValidation, issue.Number, issue.Kind)
		}
		if issue.ParentID != nil {
			return fmt.Errorf("%w: issue %s was generated by another document and cannot be reversed on its own",
				shared.ErrValidation, issue.Number)
		}
		children, err := repos.Documents().FindChildren(ctx, issue.ID)
		if err != nil {
			return err
		}
		for _, c := range children {
			if c.Kind == inventory.DocumentKindReceipt && c.Purpose == inventory.PurposeIssueReversal {
				return fmt.Errorf("%w: issue %s was already reversed by %s", shared.ErrValidation, issue.Number, c.Number)
			}
		}

		receipt, err = s.draft(ctx, repos, inventory.DocumentKindReceipt, issue.WarehouseID, principal)
		if err != nil {
			return err
		}
		receipt.WithPurpose(inventory.PurposeIssueReversal, "").WithReference(req.Reason)
		receipt.LinkTo(issue)
		if err := repos.Documents().Create(ctx, receipt); err != nil {
			return err
		}

		for i, line := range issue.Lines {
			batch, err := repos.Batches().LockByID(ctx, line.BatchID)
			if err != nil {
				return shared.AtLine(i, err)
			}
			if _, err := move(ctx, repos, receipt, batch, line.Quantity); err != nil {
				return shared.AtLine(i, err)
			}
		}
		return repos.Documents().AppendLines(ctx, receipt.Lines)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func validateIssueLines(mode IssueMode, lines []IssueLineRequest) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", shared.ErrValidation)
	}
	for i, l := range lines {
		if l.ProductID == uuid.Nil {
			return shared.AtLine(i, fmt.Errorf("%w: product ID is required", shared.ErrValidation))
		}
		if !l.Quantity.IsPositive() {
			return shared.AtLine(i, fmt.Errorf("%w: got %s", shared.ErrInvalidQuantity, l.Quantity))
		}
		if mode == IssueModeExplicit && strings.TrimSpace(l.LotCode) == "" {
			return shared.AtLine(i, fmt.Errorf("%w: lot code is required in explicit mode", shared.ErrValidation))
		}
	}
	return nil
}

func indexOfBatch(batches []inventory.Batch, id uuid.UUID) int {
	for i := range batches {
		if batches[i].ID == id {
			return i
		}
	}
	return -1
}
