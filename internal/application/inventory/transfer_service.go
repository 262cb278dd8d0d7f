package inventory

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferService moves stock between warehouses. A transfer of a whole batch
// relocates it; a partial transfer splits it, keeping lineage to the source.
type TransferService struct {
	*core
}

type transferDocs struct {
	transfer *inventory.Document
	issue    *inventory.Document
	receipt  *inventory.Document
}

// CreateTransfer records a Transfer document owning one Issue at the source and
// one Receipt at the destination. The source decrement of every line equals
// its destination increment.
func (s *TransferService) CreateTransfer(ctx context.Context, principal shared.Principal, req TransferRequest) (*TransferResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_transfer")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrWarehouseID, req.SourceWarehouseID.String(),
		telemetry.SpanAttrDestWarehouseID, req.DestWarehouseID.String(),
		telemetry.SpanAttrLineCount, len(req.Lines),
		telemetry.SpanAttrPrincipalID, principal.ID.String(),
	)

	docs, err := s.transfer(ctx, principal, req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "create_transfer", err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentNumber, docs.transfer.Number)
	s.committed(ctx, "create_transfer", docs.transfer, docs.issue, docs.receipt)
	return &TransferResult{
		Transfer: ToDocumentResponse(docs.transfer),
		Issue:    ToDocumentResponse(docs.issue),
		Receipt:  ToDocumentResponse(docs.receipt),
	}, nil
}

func (s *TransferService) transfer(ctx context.Context, principal shared.Principal, req TransferRequest) (*transferDocs, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	if req.SourceWarehouseID == req.DestWarehouseID {
		return nil, fmt.Errorf("%w: source and destination warehouse must differ", shared.ErrValidation)
	}
	if err := validateTransferLines(req.Lines); err != nil {
		return nil, err
	}

	docs := &transferDocs{}
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		src, err := requireWarehouse(ctx, repos, req.SourceWarehouseID)
		if err != nil {
			return err
		}
		dst, err := requireWarehouse(ctx, repos, req.DestWarehouseID)
		if err != nil {
			return err
		}

		if err := s.createHeaders(ctx, repos, principal, req, src, dst, docs); err != nil {
			return err
		}

		for i, line := range req.Lines {
			if err := s.transferLine(ctx, repos, docs, src.ID, dst.ID, line); err != nil {
				return shared.AtLine(i, err)
			}
		}

		if err := repos.Documents().AppendLines(ctx, docs.issue.Lines); err != nil {
			return err
		}
		return repos.Documents().AppendLines(ctx, docs.receipt.Lines)
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *TransferService) createHeaders(
	ctx context.Context,
	repos TransactionalRepositories,
	principal shared.Principal,
	req TransferRequest,
	src, dst *inventory.Warehouse,
	docs *transferDocs,
) error {
	var err error
	docs.transfer, err = s.draft(ctx, repos, inventory.DocumentKindTransfer, src.ID, principal)
	if err != nil {
		return err
	}
	dstID := dst.ID
	docs.transfer.DestWarehouseID = &dstID
	docs.transfer.WithPurpose(req.Purpose, inventory.PurposeTransfer).WithReference(req.Reference)
	if err := repos.Documents().Create(ctx, docs.transfer); err != nil {
		return err
	}

	docs.issue, err = s.draft(ctx, repos, inventory.DocumentKindIssue, src.ID, principal)
	if err != nil {
		return err
	}
	docs.issue.WithPurpose("transfer out to "+dst.Label(), "").WithReference(docs.transfer.Number)
	docs.issue.LinkTo(docs.transfer)
	if err := repos.Documents().Create(ctx, docs.issue); err != nil {
		return err
	}

	docs.receipt, err = s.draft(ctx, repos, inventory.DocumentKindReceipt, dst.ID, principal)
	if err != nil {
		return err
	}
	docs.receipt.WithPurpose("transfer in from "+src.Label(), "").WithReference(docs.transfer.Number)
	docs.receipt.LinkTo(docs.transfer)
	return repos.Documents().Create(ctx, docs.receipt)
}

func (s *TransferService) transferLine(
	ctx context.Context,
	repos TransactionalRepositories,
	docs *transferDocs,
	srcID, dstID uuid.UUID,
	line TransferLineRequest,
) error {
	lot := inventory.NormalizeLotCode(line.LotCode)
	source, err := repos.Batches().LockByKey(ctx, inventory.BatchKey{ProductID: line.ProductID, LotCode: lot, WarehouseID: srcID})
	if err != nil {
		return err
	}
	if source.Quantity.LessThan(line.Quantity) {
		return fmt.Errorf("%w: lot %s holds %s, requested %s", shared.ErrInsufficientStock, source.LotCode, source.Quantity, line.Quantity)
	}

	destKey := inventory.BatchKey{ProductID: line.ProductID, LotCode: lot, WarehouseID: dstID}
	dest, err := repos.Batches().LockByKey(ctx, destKey)
	switch {
	case isNotFound(err):
		dest = nil
	case err != nil:
		return err
	}

	switch {
	case dest != nil:
		return s.mergeInto(ctx, repos, docs, source, dest, line.Quantity)
	case source.Quantity.Equal(line.Quantity):
		return s.relocate(ctx, repos, docs, source, dstID)
	default:
		return s.split(ctx, repos, docs, source, dstID, line)
	}
}

// mergeInto moves quantity into the batch already holding the key at the
// destination. A whole-batch merge leaves the source at zero.
func (s *TransferService) mergeInto(
	ctx context.Context,
	repos TransactionalRepositories,
	docs *transferDocs,
	source, dest *inventory.Batch,
	quantity decimal.Decimal,
) error {
	if _, err := move(ctx, repos, docs.issue, source, quantity.Neg()); err != nil {
		return err
	}
	line, err := move(ctx, repos, docs.receipt, dest, quantity)
	if err != nil {
		return err
	}
	sourceID := source.ID
	line.SourceBatchID = &sourceID
	return nil
}

// relocate reassigns a whole batch to the destination, keeping barcode and lot
func (s *TransferService) relocate(
	ctx context.Context,
	repos TransactionalRepositories,
	docs *transferDocs,
	batch *inventory.Batch,
	dstID uuid.UUID,
) error {
	quantity := batch.Quantity
	if _, err := docs.issue.AddLine(batch, quantity); err != nil {
		return err
	}
	if err := batch.MoveTo(dstID); err != nil {
		return err
	}
	issueID, receiptID := docs.issue.ID, docs.receipt.ID
	batch.LastIssueID = &issueID
	batch.LastReceiptID = &receiptID
	if err := repos.Batches().Upsert(ctx, batch); err != nil {
		return err
	}
	line, err := docs.receipt.AddLine(batch, quantity)
	if err != nil {
		return err
	}
	sourceID := batch.ID
	line.SourceBatchID = &sourceID
	return nil
}

// split takes part of a batch into a new destination batch with a derived lot code
func (s *TransferService) split(
	ctx context.Context,
	repos TransactionalRepositories,
	docs *transferDocs,
	source *inventory.Batch,
	dstID uuid.UUID,
	req TransferLineRequest,
) error {
	if _, err := move(ctx, repos, docs.issue, source, req.Quantity.Neg()); err != nil {
		return err
	}

	lot, err := s.factory.NewDerivedLotCode(ctx, repos, source.ProductID, source.LotCode, dstID)
	if err != nil {
		return err
	}
	barcode, err := s.factory.NewBarcode(ctx, repos.Batches())
	if err != nil {
		return err
	}
	child, err := inventory.NewBatch(
		inventory.BatchKey{ProductID: source.ProductID, LotCode: lot, WarehouseID: dstID},
		barcode, source.ManufactureDate, source.ExpiryDate, req.Quantity,
	)
	if err != nil {
		return err
	}
	parentID, receiptID := source.ID, docs.receipt.ID
	child.ParentBatchID = &parentID
	child.LastReceiptID = &receiptID
	if err := repos.Batches().Upsert(ctx, child); err != nil {
		return err
	}

	line, err := docs.receipt.AddLine(child, req.Quantity)
	if err != nil {
		return err
	}
	line.SourceBatchID = &parentID
	return nil
}

func validateTransferLines(lines []TransferLineRequest) error {
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
