package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	inventoryapp "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/strategy/batch"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry comes first so the process logger can tee into the OTLP logs bridge
	providers, err := telemetry.NewProviders(ctx, cfg.Telemetry, cfg.App.Env, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			bootLog.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	log, err := logger.New(logCfg, providers.Logs.ZapCore(cfg.Telemetry.ServiceName, zapcore.InfoLevel))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync(log)

	log.Info("Starting batch inventory ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	db, err := openDatabase(cfg, log, providers)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, providers.Meter, telemetry.DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	ledger, err := newLedger(ctx, cfg, db, log, providers.Meter)
	if err != nil {
		log.Fatal("Failed to initialize ledger", zap.Error(err))
	}

	store, err := cache.OpenIdempotencyStore(ctx, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.App.IsProduction()),
	)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	checks := map[string]handler.Pinger{"database": db}
	if p, ok := store.(handler.Pinger); ok {
		checks["redis"] = p
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Logger:           log,
		ServiceName:      cfg.Telemetry.ServiceName,
		TracingEnabled:   providers.Tracer.IsEnabled(),
		MeterProvider:    providers.Meter,
		Authenticator:    auth.NewJWTService(cfg.JWT),
		IdempotencyStore: store,
		IdempotencyTTL:   cfg.HTTP.IdempotencyTTL,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		Ledger:           ledger,
		System:           handler.NewSystemHandler(telemetry.ServiceVersion, checks),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

// openDatabase connects, installs tracing callbacks and, for SQLite, creates the schema.
// PostgreSQL schemas are owned by cmd/migrate.
func openDatabase(cfg *config.Config, log *zap.Logger, providers *telemetry.Providers) (*persistence.Database, error) {
	db, err := persistence.Open(&cfg.Database,
		persistence.WithSQLLog(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh))
	if err != nil {
		return nil, err
	}
	log.Info("Database connected successfully")

	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         providers.Tracer.IsEnabled() && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err := tracing.RegisterOtelGorm(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	if cfg.Database.Driver == persistence.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("SQLite schema migrated")
	}
	return db, nil
}

// newLedger wires the ledger over GORM and, when metrics are exported, starts
// the periodic stock health collection that stops with ctx.
func newLedger(
	ctx context.Context,
	cfg *config.Config,
	db *persistence.Database,
	log *zap.Logger,
	meter *telemetry.MeterProvider,
) (*inventoryapp.Ledger, error) {
	policy, err := inventory.ParseOmissionPolicy(cfg.Ledger.CountOmissionPolicy)
	if err != nil {
		return nil, err
	}
	threshold := decimal.NewFromFloat(cfg.Ledger.DefaultReorderThreshold)

	ledger := inventoryapp.NewLedger(
		persistence.NewGormTransactionScope(db.DB, cfg.Ledger.LockTimeout),
		persistence.NewGormRepositories(db.DB),
		persistence.NewGormReportRepository(db.DB),
		batch.NewFEFOBatchStrategy(),
		inventoryapp.Options{
			IDRetryAttempts:         cfg.Ledger.IDRetryAttempts,
			DefaultOmissionPolicy:   policy,
			ExpiringWindowDays:      cfg.Ledger.ExpiringWindowDays,
			CriticalWindowDays:      cfg.Ledger.CriticalWindowDays,
			DefaultReorderThreshold: threshold,
		},
	)
	ledger.SetLogger(log.Named("ledger"))

	if meter == nil || !meter.IsEnabled() {
		return ledger, nil
	}
	metrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:            meter.Meter("ledger"),
		Logger:           log,
		CollectInterval:  cfg.Telemetry.StockMetricsInterval,
		StockProvider:    persistence.NewStockMetricsProvider(db.DB),
		DefaultThreshold: threshold,
	})
	if err != nil {
		return nil, err
	}
	metrics.StartPeriodicCollection(ctx, cfg.Telemetry.StockMetricsInterval, threshold)
	go func() {
		<-ctx.Done()
		metrics.Stop()
	}()
	ledger.SetLedgerMetrics(metrics)
	log.Info("Ledger metrics enabled", zap.Duration("stock_interval", cfg.Telemetry.StockMetricsInterval))
	return ledger, nil
}
