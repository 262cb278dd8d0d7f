package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	inventoryapp "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// MockLedger is a mock implementation of LedgerService
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) doc(args mock.Arguments) (*inventoryapp.DocumentResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.DocumentResponse), args.Error(1)
}

func (m *MockLedger) CreateReceipt(ctx context.Context, p shared.Principal, req inventoryapp.ReceiptRequest) (*inventoryapp.DocumentResponse, error) {
	return m.doc(m.Called(ctx, p, req))
}

func (m *MockLedger) CreateIssue(ctx context.Context, p shared.Principal, req inventoryapp.IssueRequest) (*inventoryapp.DocumentResponse, error) {
	return m.doc(m.Called(ctx, p, req))
}

func (m *MockLedger) ReverseIssue(ctx context.Context, p shared.Principal, id uuid.UUID, req inventoryapp.ReverseIssueRequest) (*inventoryapp.DocumentResponse, error) {
	return m.doc(m.Called(ctx, p, id, req))
}

func (m *MockLedger) SuggestAllocation(ctx context.Context, p shared.Principal, productID, warehouseID uuid.UUID, quantity decimal.Decimal) (*inventoryapp.AllocationPlan, error) {
	args := m.Called(ctx, p, productID, warehouseID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.AllocationPlan), args.Error(1)
}

func (m *MockLedger) CreateTransfer(ctx context.Context, p shared.Principal, req inventoryapp.TransferRequest) (*inventoryapp.TransferResult, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.TransferResult), args.Error(1)
}

func (m *MockLedger) StartCount(ctx context.Context, p shared.Principal, req inventoryapp.StartCountRequest) (*inventoryapp.StartCountResult, error) {
	args := m.Called(ctx, p, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.StartCountResult), args.Error(1)
}

func (m *MockLedger) RecordCount(ctx context.Context, p shared.Principal, id uuid.UUID, req inventoryapp.RecordCountRequest) (*inventoryapp.RecordCountResult, error) {
	args := m.Called(ctx, p, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.RecordCountResult), args.Error(1)
}

func (m *MockLedger) Reconcile(ctx context.Context, p shared.Principal, id uuid.UUID) (*inventoryapp.ReconcileResult, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.ReconcileResult), args.Error(1)
}

func (m *MockLedger) Discard(ctx context.Context, p shared.Principal, req inventoryapp.DiscardRequest) (*inventoryapp.DocumentResponse, error) {
	return m.doc(m.Called(ctx, p, req))
}

func (m *MockLedger) GetDocument(ctx context.Context, p shared.Principal, id uuid.UUID) (*inventoryapp.DocumentResponse, error) {
	return m.doc(m.Called(ctx, p, id))
}

func (m *MockLedger) FindBatchByBarcode(ctx context.Context, p shared.Principal, barcode string) (*inventoryapp.BatchLookupResponse, error) {
	args := m.Called(ctx, p, barcode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.BatchLookupResponse), args.Error(1)
}

func (m *MockLedger) BatchHistory(ctx context.Context, p shared.Principal, id uuid.UUID) (*inventoryapp.BatchHistoryResponse, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.BatchHistoryResponse), args.Error(1)
}

func (m *MockLedger) ExpiryReport(ctx context.Context, p shared.Principal, filter inventoryapp.ExpiryReportFilter) ([]inventoryapp.ExpiryReportItemResponse, error) {
	args := m.Called(ctx, p, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventoryapp.ExpiryReportItemResponse), args.Error(1)
}

func (m *MockLedger) ReorderSuggestions(ctx context.Context, p shared.Principal) ([]inventoryapp.ReorderSuggestionResponse, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventoryapp.ReorderSuggestionResponse), args.Error(1)
}

func (m *MockLedger) GetCountReport(ctx context.Context, p shared.Principal, id uuid.UUID) (*inventoryapp.CountReportResponse, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.CountReportResponse), args.Error(1)
}

func (m *MockLedger) StockOnHand(ctx context.Context, p shared.Principal, filter inventoryapp.StockReportFilter) (*inventoryapp.StockReportResponse, error) {
	args := m.Called(ctx, p, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.StockReportResponse), args.Error(1)
}

func (m *MockLedger) ProductBatches(ctx context.Context, p shared.Principal, productID uuid.UUID, warehouseID *uuid.UUID) (*inventoryapp.ProductBatchesResponse, error) {
	args := m.Called(ctx, p, productID, warehouseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.ProductBatchesResponse), args.Error(1)
}

func (m *MockLedger) MovementReport(ctx context.Context, p shared.Principal, filter inventoryapp.MovementReportFilter) (*inventoryapp.MovementReportResponse, error) {
	args := m.Called(ctx, p, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventoryapp.MovementReportResponse), args.Error(1)
}

var testPrincipal = shared.Principal{
	ID:   uuid.MustParse("7d0b4f5e-2f7a-4c1e-9d3e-1a2b3c4d5e6f"),
	Name: "maria",
	Role: shared.RoleStaff,
}

// setupLedgerRouter registers the handler on a bare engine. When authenticated
// is true every request carries testPrincipal, as the JWT middleware would set it.
func setupLedgerRouter(ledger LedgerService, authenticated bool) *gin.Engine {
	h := NewLedgerHandler(ledger)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.RequestIDKey, "req-test")
		if authenticated {
			c.Set(middleware.PrincipalKey, testPrincipal)
		}
		c.Next()
	})
	g := r.Group("/api/v1/ledger")
	g.POST("/receipts", h.CreateReceipt)
	g.POST("/issues", h.CreateIssue)
	g.POST("/issues/:id/reverse", h.ReverseIssue)
	g.GET("/allocations/suggest", h.SuggestAllocation)
	g.POST("/transfers", h.CreateTransfer)
	g.POST("/counts", h.StartCount)
	g.POST("/counts/:id/entries", h.RecordCount)
	g.POST("/counts/:id/reconcile", h.Reconcile)
	g.GET("/counts/:id", h.GetCountReport)
	g.POST("/discards", h.Discard)
	g.GET("/documents/:id", h.GetDocument)
	g.GET("/batches/barcode/:code", h.FindBatchByBarcode)
	g.GET("/batches/:id/history", h.BatchHistory)
	g.GET("/reports/expiry", h.ExpiryReport)
	g.GET("/reports/reorder", h.ReorderSuggestions)
	g.GET("/reports/stock", h.StockOnHand)
	g.GET("/reports/movements", h.MovementReport)
	g.GET("/products/:id/batches", h.ProductBatches)
	return r
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func sampleDocument(kind string) *inventoryapp.DocumentResponse {
	return &inventoryapp.DocumentResponse{
		ID:            uuid.New(),
		Number:        "RC-20260115-0001",
		Kind:          kind,
		Purpose:       "supplier delivery",
		WarehouseID:   uuid.New(),
		CreatedByID:   testPrincipal.ID,
		CreatedByName: testPrincipal.Name,
		CreatedByRole: testPrincipal.Role.String(),
		CreatedAt:     time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		TotalQuantity: decimal.NewFromInt(10),
	}
}

func TestLedgerHandler_CreateReceipt(t *testing.T) {
	warehouseID := uuid.New()
	productID := uuid.New()
	body := fmt.Sprintf(`{
		"warehouse_id": %q,
		"purpose": "supplier delivery",
		"lines": [{"product_id": %q, "quantity": "10", "manufacture_date": "2026-01-10T00:00:00Z", "expiry_date": "2026-07-10T00:00:00Z"}]
	}`, warehouseID, productID)

	t.Run("created", func(t *testing.T) {
		ledger := new(MockLedger)
		doc := sampleDocument("RECEIPT")
		ledger.On("CreateReceipt", mock.Anything, testPrincipal, mock.MatchedBy(func(req inventoryapp.ReceiptRequest) bool {
			return req.WarehouseID == warehouseID &&
				len(req.Lines) == 1 &&
				req.Lines[0].ProductID == productID &&
				req.Lines[0].Quantity.Equal(decimal.NewFromInt(10)) &&
				req.Lines[0].ExpiryDate != nil
		})).Return(doc, nil)

		w := perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/receipts", body)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decode(t, w)
		assert.True(t, env.Success)
		var got inventoryapp.DocumentResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, doc.ID, got.ID)
		assert.Equal(t, "RECEIPT", got.Kind)
		ledger.AssertExpectations(t)
	})

	t.Run("missing lines fails validation", func(t *testing.T) {
		ledger := new(MockLedger)
		w := perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/receipts",
			fmt.Sprintf(`{"warehouse_id": %q}`, warehouseID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		assert.Equal(t, "req-test", env.Error.RequestID)
		require.Len(t, env.Error.Details, 1)
		assert.Equal(t, "lines", env.Error.Details[0].Field)
		ledger.AssertNotCalled(t, "CreateReceipt", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("nested line field is reported by path", func(t *testing.T) {
		ledger := new(MockLedger)
		w := perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/receipts",
			fmt.Sprintf(`{"warehouse_id": %q, "lines": [{"quantity": "1"}]}`, warehouseID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		require.Len(t, env.Error.Details, 1)
		assert.Equal(t, "lines[0].product_id", env.Error.Details[0].Field)
		assert.Equal(t, "This field is required", env.Error.Details[0].Message)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodPost, "/api/v1/ledger/receipts", `{"warehouse_id":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decode(t, w).Error.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := perform(setupLedgerRouter(new(MockLedger), false), http.MethodPost, "/api/v1/ledger/receipts", body)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, decode(t, w).Error.Code)
	})
}

func TestLedgerHandler_DomainErrors(t *testing.T) {
	warehouseID := uuid.New()
	body := fmt.Sprintf(`{"warehouse_id": %q, "lines": [{"product_id": %q, "quantity": "5"}]}`, warehouseID, uuid.New())

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantLine   int
	}{
		{"insufficient stock on line", shared.AtLine(0, shared.ErrInsufficientStock), http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock, 1},
		{"expired batch", fmt.Errorf("%w: lot L-9", shared.ErrExpiredBatch), http.StatusUnprocessableEntity, dto.ErrCodeExpiredBatch, 0},
		{"invalid quantity", shared.AtLine(0, shared.ErrInvalidQuantity), http.StatusBadRequest, dto.ErrCodeInvalidQuantity, 1},
		{"warehouse missing", fmt.Errorf("%w: warehouse", shared.ErrNotFound), http.StatusNotFound, dto.ErrCodeNotFound, 0},
		{"concurrent update", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict, 0},
		{"infrastructure", fmt.Errorf("connection reset"), http.StatusInternalServerError, dto.ErrCodeInternal, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := new(MockLedger)
			ledger.On("CreateIssue", mock.Anything, testPrincipal, mock.Anything).Return(nil, tt.err)

			w := perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/issues", body)

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Equal(t, tt.wantLine, env.Error.Line)
			assert.Equal(t, "req-test", env.Error.RequestID)
		})
	}
}

func TestLedgerHandler_CreateIssue_ModeValidated(t *testing.T) {
	body := fmt.Sprintf(`{"warehouse_id": %q, "mode": "lifo", "lines": [{"product_id": %q, "quantity": "1"}]}`, uuid.New(), uuid.New())

	w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodPost, "/api/v1/ledger/issues", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "mode", env.Error.Details[0].Field)
	assert.Equal(t, "Must be one of: fefo explicit", env.Error.Details[0].Message)
}

func TestLedgerHandler_ReverseIssue(t *testing.T) {
	issueID := uuid.New()

	t.Run("without body", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("ReverseIssue", mock.Anything, testPrincipal, issueID, inventoryapp.ReverseIssueRequest{}).
			Return(sampleDocument("RECEIPT"), nil)

		w := perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/issues/"+issueID.String()+"/reverse", "")

		assert.Equal(t, http.StatusCreated, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("with reason", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("ReverseIssue", mock.Anything, testPrincipal, issueID, inventoryapp.ReverseIssueRequest{Reason: "wrong customer"}).
			Return(sampleDocument("RECEIPT"), nil)

		w := perform(setupLedgerRouter(ledger, true), http.MethodPost,
			"/api/v1/ledger/issues/"+issueID.String()+"/reverse", `{"reason": "wrong customer"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("second reversal rejected", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("ReverseIssue", mock.Anything, testPrincipal, issueID, mock.Anything).
			Return(nil, fmt.Errorf("%w: issue already reversed", shared.ErrValidation))

		w := perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/issues/"+issueID.String()+"/reverse", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decode(t, w).Error.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodPost, "/api/v1/ledger/issues/not-a-uuid/reverse", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decode(t, w).Error.Code)
	})
}

func TestLedgerHandler_SuggestAllocation(t *testing.T) {
	productID, warehouseID := uuid.New(), uuid.New()

	t.Run("plan", func(t *testing.T) {
		ledger := new(MockLedger)
		plan := &inventoryapp.AllocationPlan{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Requested:   decimal.RequireFromString("7.5"),
			Allocated:   decimal.NewFromInt(5),
			Shortage:    decimal.RequireFromString("2.5"),
		}
		ledger.On("SuggestAllocation", mock.Anything, testPrincipal, productID, warehouseID,
			mock.MatchedBy(func(q decimal.Decimal) bool { return q.Equal(decimal.RequireFromString("7.5")) }),
		).Return(plan, nil)

		path := fmt.Sprintf("/api/v1/ledger/allocations/suggest?product_id=%s&warehouse_id=%s&quantity=7.5", productID, warehouseID)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, path, "")

		assert.Equal(t, http.StatusOK, w.Code)
		var got inventoryapp.AllocationPlan
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
		assert.True(t, got.Shortage.Equal(decimal.RequireFromString("2.5")))
		ledger.AssertExpectations(t)
	})

	t.Run("quantity not a number", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/ledger/allocations/suggest?product_id=%s&warehouse_id=%s&quantity=lots", productID, warehouseID)
		w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodGet, path, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		assert.Equal(t, "quantity", env.Error.Details[0].Field)
	})

	t.Run("missing product", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/ledger/allocations/suggest?warehouse_id=%s&quantity=1", warehouseID)
		w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodGet, path, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "product_id", decode(t, w).Error.Details[0].Field)
	})
}

func TestLedgerHandler_CreateTransfer(t *testing.T) {
	src, dst, productID := uuid.New(), uuid.New(), uuid.New()
	ledger := new(MockLedger)
	result := &inventoryapp.TransferResult{
		Transfer: *sampleDocument("TRANSFER"),
		Issue:    *sampleDocument("ISSUE"),
		Receipt:  *sampleDocument("RECEIPT"),
	}
	ledger.On("CreateTransfer", mock.Anything, testPrincipal, mock.MatchedBy(func(req inventoryapp.TransferRequest) bool {
		return req.SourceWarehouseID == src && req.DestWarehouseID == dst && req.Lines[0].LotCode == "L-0001"
	})).Return(result, nil)

	body := fmt.Sprintf(`{"source_warehouse_id": %q, "dest_warehouse_id": %q, "lines": [{"product_id": %q, "lot_code": "L-0001", "quantity": 3}]}`,
		src, dst, productID)
	w := perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/transfers", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	var got inventoryapp.TransferResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, "TRANSFER", got.Transfer.Kind)
	assert.Equal(t, "ISSUE", got.Issue.Kind)
	assert.Equal(t, "RECEIPT", got.Receipt.Kind)
	ledger.AssertExpectations(t)
}

func TestLedgerHandler_CountLifecycle(t *testing.T) {
	warehouseID, countID, batchID := uuid.New(), uuid.New(), uuid.New()
	base := "/api/v1/ledger/counts"

	t.Run("start", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("StartCount", mock.Anything, testPrincipal,
			inventoryapp.StartCountRequest{WarehouseID: warehouseID, OmissionPolicy: "ZERO"},
		).Return(&inventoryapp.StartCountResult{Document: *sampleDocument("COUNT"), OmissionPolicy: "ZERO"}, nil)

		w := perform(setupLedgerRouter(ledger, true), http.MethodPost, base,
			fmt.Sprintf(`{"warehouse_id": %q, "omission_policy": "ZERO"}`, warehouseID))

		assert.Equal(t, http.StatusCreated, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("record", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("RecordCount", mock.Anything, testPrincipal, countID, mock.MatchedBy(func(req inventoryapp.RecordCountRequest) bool {
			return len(req.Entries) == 1 && *req.Entries[0].BatchID == batchID && req.Entries[0].CountedQuantity.Equal(decimal.NewFromInt(8))
		})).Return(&inventoryapp.RecordCountResult{CountID: countID, Status: "RECORDED"}, nil)

		w := perform(setupLedgerRouter(ledger, true), http.MethodPost, base+"/"+countID.String()+"/entries",
			fmt.Sprintf(`{"entries": [{"batch_id": %q, "counted_quantity": "8"}]}`, batchID))

		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("reconcile twice", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("Reconcile", mock.Anything, testPrincipal, countID).Return(&inventoryapp.ReconcileResult{CountID: countID}, nil).Once()
		ledger.On("Reconcile", mock.Anything, testPrincipal, countID).Return(nil, shared.ErrAlreadyReconciled).Once()
		r := setupLedgerRouter(ledger, true)

		first := perform(r, http.MethodPost, base+"/"+countID.String()+"/reconcile", "")
		second := perform(r, http.MethodPost, base+"/"+countID.String()+"/reconcile", "")

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusConflict, second.Code)
		assert.Equal(t, dto.ErrCodeAlreadyReconciled, decode(t, second).Error.Code)
	})

	t.Run("report", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("GetCountReport", mock.Anything, testPrincipal, countID).Return(&inventoryapp.CountReportResponse{
			Status:  "RECONCILED",
			Summary: inventoryapp.CountSummaryResponse{TotalLines: 3, CountedLines: 2, Discrepancies: 1, NetDelta: decimal.NewFromInt(-2)},
		}, nil)

		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, base+"/"+countID.String(), "")

		assert.Equal(t, http.StatusOK, w.Code)
		var got inventoryapp.CountReportResponse
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
		assert.Equal(t, 1, got.Summary.Discrepancies)
	})
}

func TestLedgerHandler_Discard(t *testing.T) {
	ledger := new(MockLedger)
	ledger.On("Discard", mock.Anything, testPrincipal, mock.MatchedBy(func(req inventoryapp.DiscardRequest) bool {
		return req.Reason == "damaged in transit"
	})).Return(sampleDocument("ISSUE"), nil)

	w := perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/discards",
		fmt.Sprintf(`{"reason": "damaged in transit", "lines": [{"product_id": %q, "lot_code": "L-3", "quantity": "2"}]}`, uuid.New()))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = perform(setupLedgerRouter(ledger, true), http.MethodPost, "/api/v1/ledger/discards",
		fmt.Sprintf(`{"lines": [{"product_id": %q, "lot_code": "L-3", "quantity": "2"}]}`, uuid.New()))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "reason", decode(t, w).Error.Details[0].Field)

	ledger.AssertNumberOfCalls(t, "Discard", 1)
}

func TestLedgerHandler_Queries(t *testing.T) {
	id := uuid.New()

	t.Run("document", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("GetDocument", mock.Anything, testPrincipal, id).Return(sampleDocument("ISSUE"), nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/documents/"+id.String(), "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("document not found", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("GetDocument", mock.Anything, testPrincipal, id).Return(nil, shared.ErrNotFound)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/documents/"+id.String(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("barcode", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("FindBatchByBarcode", mock.Anything, testPrincipal, "2000000000015").
			Return(&inventoryapp.BatchLookupResponse{ExpiryStatus: "GOOD"}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/batches/barcode/2000000000015", "")
		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("barcode malformed", func(t *testing.T) {
		w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodGet, "/api/v1/ledger/batches/barcode/12AB", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "code", decode(t, w).Error.Details[0].Field)
	})

	t.Run("history", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("BatchHistory", mock.Anything, testPrincipal, id).Return(&inventoryapp.BatchHistoryResponse{}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/batches/"+id.String()+"/history", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("expiry report with filter", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("ExpiryReport", mock.Anything, testPrincipal, mock.MatchedBy(func(f inventoryapp.ExpiryReportFilter) bool {
			return f.Days == 14 && f.WarehouseID != nil && *f.WarehouseID == id
		})).Return([]inventoryapp.ExpiryReportItemResponse{{Severity: "CRITICAL"}}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/reports/expiry?days=14&warehouse_id="+id.String(), "")
		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("expiry report default horizon", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("ExpiryReport", mock.Anything, testPrincipal, inventoryapp.ExpiryReportFilter{}).
			Return([]inventoryapp.ExpiryReportItemResponse{}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/reports/expiry", "")
		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("expiry report bad days", func(t *testing.T) {
		w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodGet, "/api/v1/ledger/reports/expiry?days=0x", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("reorder", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("ReorderSuggestions", mock.Anything, testPrincipal).Return([]inventoryapp.ReorderSuggestionResponse{
			{ProductCode: "P-1", SuggestedQuantity: decimal.NewFromInt(40)},
		}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/reports/reorder", "")
		assert.Equal(t, http.StatusOK, w.Code)
		var got []inventoryapp.ReorderSuggestionResponse
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
		require.Len(t, got, 1)
		assert.Equal(t, "P-1", got[0].ProductCode)
	})
}

func TestLedgerHandler_StockReports(t *testing.T) {
	productID, warehouseID := uuid.New(), uuid.New()

	t.Run("stock on hand with filters", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("StockOnHand", mock.Anything, testPrincipal, mock.MatchedBy(func(f inventoryapp.StockReportFilter) bool {
			return f.WarehouseID != nil && *f.WarehouseID == warehouseID && f.ProductID != nil && *f.ProductID == productID
		})).Return(&inventoryapp.StockReportResponse{Products: 1}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet,
			"/api/v1/ledger/reports/stock?warehouse_id="+warehouseID.String()+"&product_id="+productID.String(), "")
		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("stock on hand unfiltered", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("StockOnHand", mock.Anything, testPrincipal, inventoryapp.StockReportFilter{}).
			Return(&inventoryapp.StockReportResponse{}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/reports/stock", "")
		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("stock on hand bad warehouse", func(t *testing.T) {
		w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodGet, "/api/v1/ledger/reports/stock?warehouse_id=nope", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("product batches", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("ProductBatches", mock.Anything, testPrincipal, productID, (*uuid.UUID)(nil)).
			Return(&inventoryapp.ProductBatchesResponse{ProductID: productID}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/products/"+productID.String()+"/batches", "")
		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("product batches unknown product", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("ProductBatches", mock.Anything, testPrincipal, productID, mock.MatchedBy(func(id *uuid.UUID) bool {
			return id != nil && *id == warehouseID
		})).Return(nil, shared.ErrNotFound)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet,
			"/api/v1/ledger/products/"+productID.String()+"/batches?warehouse_id="+warehouseID.String(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("movement report", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("MovementReport", mock.Anything, testPrincipal, inventoryapp.MovementReportFilter{
			From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		}).Return(&inventoryapp.MovementReportResponse{}, nil)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/reports/movements?from=2024-01-01&to=2024-01-31", "")
		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("movement report needs a period", func(t *testing.T) {
		w := perform(setupLedgerRouter(new(MockLedger), true), http.MethodGet, "/api/v1/ledger/reports/movements?from=2024-01-01", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = perform(setupLedgerRouter(new(MockLedger), true), http.MethodGet, "/api/v1/ledger/reports/movements?from=01/01/2024&to=2024-01-31", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("movement report reversed period", func(t *testing.T) {
		ledger := new(MockLedger)
		ledger.On("MovementReport", mock.Anything, testPrincipal, mock.Anything).Return(nil, shared.ErrValidation)
		w := perform(setupLedgerRouter(ledger, true), http.MethodGet, "/api/v1/ledger/reports/movements?from=2024-02-01&to=2024-01-01", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
