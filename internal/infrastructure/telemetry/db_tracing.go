package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL puts bound query variables on spans; development only
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	// DBSystem overrides the db.system value derived from the dialector
	DBSystem string
}

// DBTracingPlugin installs otelgorm and decorates its statement spans with
// table, row count, slow query and lock contention details.
type DBTracingPlugin struct {
	cfg DBTracingConfig
	log *zap.Logger
}

func NewDBTracingPlugin(cfg DBTracingConfig, log *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = defaultSlowQueryThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DBTracingPlugin{cfg: cfg, log: log}
}

// semconv db.system names for gorm dialectors
var dbSystems = map[string]string{
	"postgres": "postgresql",
	"sqlite":   "sqlite",
	"sqlite3":  "sqlite",
}

func dbSystem(dialector string) string {
	if s, ok := dbSystems[dialector]; ok {
		return s
	}
	return dialector
}

// RegisterOtelGorm is a no-op when tracing is disabled
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.cfg.Enabled {
		p.log.Debug("Database tracing disabled")
		return nil
	}
	system := p.cfg.DBSystem
	if system == "" {
		system = dbSystem(db.Dialector.Name())
	}

	// the annotation callbacks go in first so they still see otelgorm's open span
	if err := registerAround(db, "otel_annotate", markStart, p.annotate); err != nil {
		return err
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(system)}
	if !p.cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	p.log.Info("Database tracing enabled",
		zap.String("db_system", system),
		zap.Bool("log_full_sql", p.cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", p.cfg.SlowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) annotate(db *gorm.DB, _ string) {
	stmt := db.Statement
	if stmt.Context == nil {
		return
	}
	span := trace.SpanFromContext(stmt.Context)
	if !span.IsRecording() {
		return
	}

	var attrs []attribute.KeyValue
	if stmt.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", stmt.Table))
	}
	if stmt.RowsAffected >= 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", stmt.RowsAffected))
	}
	span.SetAttributes(attrs...)

	markOutcome(span, db.Error)
	if elapsed, ok := elapsedSince(db); ok && elapsed > p.cfg.SlowQueryThresh {
		markSlow(span, elapsed, p.cfg.SlowQueryThresh)
	}
}

// markOutcome fails the span on real errors only. Not-found is a normal
// answer, and lock contention surfaces as a retry or a conflict upstream.
func markOutcome(span trace.Span, err error) {
	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
	case isLockContention(err):
		span.SetAttributes(attribute.Bool("db.lock_contention", true))
		span.AddEvent("lock_contention", trace.WithAttributes(attribute.String("error", err.Error())))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func markSlow(span trace.Span, elapsed, threshold time.Duration) {
	ms := elapsed.Milliseconds()
	span.SetAttributes(attribute.Bool("db.slow_query", true), attribute.Int64("db.query_duration_ms", ms))
	span.AddEvent("slow_query_warning", trace.WithAttributes(
		attribute.Int64("duration_ms", ms),
		attribute.Int64("threshold_ms", threshold.Milliseconds()),
	))
}
