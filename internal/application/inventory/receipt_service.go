package inventory

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// ReceiptService brings stock into a warehouse, merging into existing batches
// or creating new ones.
type ReceiptService struct {
	*core
}

type receiptLine struct {
	req     ReceiptLineRequest
	lotCode string
}

// CreateReceipt records one Receipt document for all lines of req.
// Every line is validated before anything is written; any failure rolls back the whole receipt.
func (s *ReceiptService) CreateReceipt(ctx context.Context, principal shared.Principal, req ReceiptRequest) (*DocumentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_receipt")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrWarehouseID, req.WarehouseID.String(),
		telemetry.SpanAttrLineCount, len(req.Lines),
		telemetry.SpanAttrPrincipalID, principal.ID.String(),
	)

	doc, err := s.receive(ctx, principal, req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.rejected(ctx, "create_receipt", err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDocumentNumber, doc.Number)
	s.committed(ctx, "create_receipt", doc)
	resp := ToDocumentResponse(doc)
	return &resp, nil
}

func (s *ReceiptService) receive(ctx context.Context, principal shared.Principal, req ReceiptRequest) (*inventory.Document, error) {
	if err := principal.Validate(); err != nil {
		return nil, err
	}
	lines, err := validateReceiptLines(req.Lines)
	if err != nil {
		return nil, err
	}

	var doc *inventory.Document
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := requireWarehouse(ctx, repos, req.WarehouseID); err != nil {
			return err
		}
		productIDs := make([]uuid.UUID, len(lines))
		for i, l := range lines {
			productIDs[i] = l.req.ProductID
		}
		if _, err := requireProducts(ctx, repos, productIDs); err != nil {
			return err
		}

		var err error
		doc, err = s.draft(ctx, repos, inventory.DocumentKindReceipt, req.WarehouseID, principal)
		if err != nil {
			return err
		}
		doc.WithPurpose(req.Purpose, inventory.PurposeSupplierReceipt).WithReference(req.Reference)
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}

		for i, l := range lines {
			if err := s.receiveLine(ctx, repos, doc, req.WarehouseID, l); err != nil {
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

// receiveLine merges into the batch holding the key or creates a new one
func (s *ReceiptService) receiveLine(
	ctx context.Context,
	repos TransactionalRepositories,
	doc *inventory.Document,
	warehouseID uuid.UUID,
	l receiptLine,
) error {
	lotCode := l.lotCode
	if lotCode == "" {
		generated, err := s.factory.NewLotCode(ctx, repos.Batches(), l.req.ProductID, warehouseID)
		if err != nil {
			return err
		}
		lotCode = generated
	}
	key := inventory.BatchKey{ProductID: l.req.ProductID, LotCode: lotCode, WarehouseID: warehouseID}

	existing, err := repos.Batches().LockByKey(ctx, key)
	switch {
	case err == nil:
		if !sameExpiry(existing, l.req) {
			return fmt.Errorf("%w: lot %s already exists with a different expiry date", shared.ErrValidation, lotCode)
		}
		_, err = move(ctx, repos, doc, existing, l.req.Quantity)
		return err
	case !isNotFound(err):
		return err
	}

	barcode, err := s.factory.NewBarcode(ctx, repos.Batches())
	if err != nil {
		return err
	}
	batch, err := inventory.NewBatch(key, barcode, l.req.ManufactureDate, l.req.ExpiryDate, l.req.Quantity)
	if err != nil {
		return err
	}
	docID := doc.ID
	batch.LastReceiptID = &docID
	if err := repos.Batches().Upsert(ctx, batch); err != nil {
		return err
	}
	_, err = doc.AddLine(batch, l.req.Quantity)
	return err
}

func validateReceiptLines(reqs []ReceiptLineRequest) ([]receiptLine, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", shared.ErrValidation)
	}
	lines := make([]receiptLine, len(reqs))
	for i, r := range reqs {
		if r.ProductID == uuid.Nil {
			return nil, shared.AtLine(i, fmt.Errorf("%w: product ID is required", shared.ErrValidation))
		}
		if !r.Quantity.IsPositive() {
			return nil, shared.AtLine(i, fmt.Errorf("%w: got %s", shared.ErrInvalidQuantity, r.Quantity))
		}
		if err := inventory.ValidateBatchDates(r.ManufactureDate, r.ExpiryDate); err != nil {
			return nil, shared.AtLine(i, err)
		}
		lot := inventory.NormalizeLotCode(r.LotCode)
		if lot != "" {
			if err := inventory.ValidateReceivedLotCode(lot); err != nil {
				return nil, shared.AtLine(i, err)
			}
		}
		lines[i] = receiptLine{req: r, lotCode: lot}
	}
	return lines, nil
}

func sameExpiry(b *inventory.Batch, r ReceiptLineRequest) bool {
	if b.ExpiryDate == nil || r.ExpiryDate == nil {
		return b.ExpiryDate == nil && r.ExpiryDate == nil
	}
	return shared.DateOf(*b.ExpiryDate).Equal(shared.DateOf(*r.ExpiryDate))
}
