package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

// DBMetricsConfig holds configuration for database metrics.
type DBMetricsConfig struct {
	Enabled bool
	// SlowQueryThreshold marks a statement slow; 200ms when zero.
	SlowQueryThreshold time.Duration
}

// DBMetrics is a GORM plugin counting statements by verb, timing them, and
// flagging slow ones and the lock contention the ledger's row locks can cause.
// Pool occupancy is observed on collection once ObservePool is called.
type DBMetrics struct {
	meter metric.Meter
	log   *zap.Logger
	slow  time.Duration

	queries    metric.Int64Counter
	latency    metric.Float64Histogram
	slowTotal  metric.Int64Counter
	contention metric.Int64Counter

	mu   sync.Mutex
	pool metric.Registration
}

// NewDBMetrics declares the database instruments on meter.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if log == nil {
		log = zap.NewNop()
	}
	slow := cfg.SlowQueryThreshold
	if slow <= 0 {
		slow = defaultSlowQueryThreshold
	}

	in := NewInstruments(meter)
	m := &DBMetrics{
		meter:      meter,
		log:        log,
		slow:       slow,
		queries:    in.Counter("db_query_total", "Database statements by verb", "{query}"),
		latency:    in.Histogram("db_query_duration_seconds", "Database statement latency", "s", DBDurationBuckets...),
		slowTotal:  in.Counter("db_slow_query_total", "Statements slower than the slow query threshold", "{query}"),
		contention: in.Counter("db_lock_contention_total", "Statements that failed on a lock timeout, serialization failure or deadlock", "{query}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ObservePool reports sqlDB's connection counts on every metric collection
// until Stop is called.
func (m *DBMetrics) ObservePool(sqlDB *sql.DB) error {
	open, err := m.meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	limit, err := m.meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}

	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := sqlDB.Stats()
		o.ObserveInt64(limit, int64(s.MaxOpenConnections))
		o.ObserveInt64(open, int64(s.Idle), With(AttrDBState.String("idle")))
		o.ObserveInt64(open, int64(s.InUse), With(AttrDBState.String("in_use")))
		o.ObserveInt64(open, int64(s.OpenConnections), With(AttrDBState.String("open")))
		return nil
	}, open, limit)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.pool = reg
	m.mu.Unlock()
	return nil
}

// Stop ends pool observation. It is safe to call more than once.
func (m *DBMetrics) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool == nil {
		return
	}
	if err := m.pool.Unregister(); err != nil {
		m.log.Warn("Pool metrics unregister failed", zap.Error(err))
	}
	m.pool = nil
}

// RecordQuery records one finished statement.
func (m *DBMetrics) RecordQuery(ctx context.Context, verb, table string, elapsed time.Duration, err error) {
	verb = strings.ToUpper(verb)
	if verb == "" {
		verb = "UNKNOWN"
	}
	if table == "" {
		table = "unknown"
	}

	byVerb := With(AttrDBOperation.String(verb))
	m.queries.Add(ctx, 1, byVerb)
	m.latency.Record(ctx, elapsed.Seconds(), byVerb)

	byTable := With(AttrDBTable.String(table))
	if elapsed > m.slow {
		m.slowTotal.Add(ctx, 1, byTable)
	}
	if err != nil && isLockContention(err) {
		m.contention.Add(ctx, 1, byTable)
	}
}

// Name implements gorm.Plugin
func (m *DBMetrics) Name() string { return "ledger:db_metrics" }

// Initialize implements gorm.Plugin
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	return registerAround(db, "db_metrics", markStart, m.afterStatement)
}

// afterStatement receives an empty verb for Row and Raw statements
func (m *DBMetrics) afterStatement(db *gorm.DB, verb string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if verb == "" {
		verb = detectOperationType(db.Statement.SQL.String())
	}
	elapsed, _ := elapsedSince(db)
	m.RecordQuery(ctx, verb, db.Statement.Table, elapsed, db.Error)
}

func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	return "OTHER"
}

// RegisterDBMetrics installs database metrics on db and starts observing its
// pool. It returns nil when metrics are disabled; otherwise call Stop on shutdown.
func RegisterDBMetrics(db *gorm.DB, mp *MeterProvider, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || mp == nil || !mp.IsEnabled() {
		return nil, nil
	}

	m, err := NewDBMetrics(mp.Meter("db.client"), cfg, log)
	if err != nil {
		return nil, err
	}
	if err := db.Use(m); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := m.ObservePool(sqlDB); err != nil {
		return nil, err
	}

	m.log.Info("Database metrics registered", zap.Duration("slow_query_threshold", m.slow))
	return m, nil
}
