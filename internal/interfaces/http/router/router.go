// Package router assembles the gin engine serving the ledger API.
package router

import (
	"net/http"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIPrefix is where versioned API groups are mounted
const APIPrefix = "/api/v1"

type route struct {
	method string
	path   string
	handle gin.HandlerFunc
}

// ledgerRoutes lists the ledger operations, relative to /ledger
func ledgerRoutes(h *handler.LedgerHandler) []route {
	return []route{
		{http.MethodPost, "/receipts", h.CreateReceipt},
		{http.MethodPost, "/issues", h.CreateIssue},
		{http.MethodPost, "/issues/:id/reverse", h.ReverseIssue},
		{http.MethodGet, "/allocations/suggest", h.SuggestAllocation},
		{http.MethodPost, "/transfers", h.CreateTransfer},
		{http.MethodPost, "/counts", h.StartCount},
		{http.MethodPost, "/counts/:id/entries", h.RecordCount},
		{http.MethodPost, "/counts/:id/reconcile", h.Reconcile},
		{http.MethodGet, "/counts/:id", h.GetCountReport},
		{http.MethodPost, "/discards", h.Discard},
		{http.MethodGet, "/documents/:id", h.GetDocument},
		{http.MethodGet, "/batches/barcode/:code", h.FindBatchByBarcode},
		{http.MethodGet, "/batches/:id/history", h.BatchHistory},
		{http.MethodGet, "/reports/expiry", h.ExpiryReport},
		{http.MethodGet, "/reports/reorder", h.ReorderSuggestions},
		{http.MethodGet, "/reports/stock", h.StockOnHand},
		{http.MethodGet, "/reports/movements", h.MovementReport},
		{http.MethodGet, "/products/:id/batches", h.ProductBatches},
	}
}

// mount registers routes under prefix; mw applies to these routes only
func mount(parent *gin.RouterGroup, prefix string, routes []route, mw ...gin.HandlerFunc) *gin.RouterGroup {
	group := parent.Group(prefix, mw...)
	for _, r := range routes {
		group.Handle(r.method, r.path, r.handle)
	}
	return group
}

// EngineConfig carries everything NewEngine wires together.
// Nil MeterProvider and IdempotencyStore disable the corresponding middleware.
type EngineConfig struct {
	Logger           *zap.Logger
	ServiceName      string
	TracingEnabled   bool
	MeterProvider    *telemetry.MeterProvider
	Authenticator    middleware.Authenticator
	IdempotencyStore shared.IdempotencyStore
	IdempotencyTTL   time.Duration
	MaxBodySize      int64
	TrustedProxies   []string
	Ledger           handler.LedgerService
	System           *handler.SystemHandler
}

// NewEngine builds the gin engine.
//
// Every request passes RequestID, tracing, the access log, panic recovery,
// HTTP metrics and the body limit. Ledger routes additionally require a JWT
// and honour Idempotency-Key on POST.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled})...)
	engine.Use(
		logger.AccessLog(log),
		logger.Recover(log, internalError),
		middleware.HTTPMetrics(cfg.MeterProvider),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
		engine.GET("/ready", cfg.System.Ready)
	}

	mount(engine.Group(APIPrefix), "/ledger", ledgerRoutes(handler.NewLedgerHandler(cfg.Ledger)),
		middleware.JWTAuth(middleware.JWTMiddlewareConfig{
			Authenticator: cfg.Authenticator,
			Logger:        log,
		}),
		middleware.AnnotateSpan(),
		middleware.Idempotency(middleware.IdempotencyConfig{
			Store:  cfg.IdempotencyStore,
			TTL:    cfg.IdempotencyTTL,
			Logger: log,
		}),
	)
	return engine, nil
}

// internalError answers a recovered panic in the API's error envelope
func internalError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, "An internal error occurred", middleware.GetRequestID(c)))
}
