package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type sqlStateError struct{ code string }

func (e *sqlStateError) Error() string    { return "pq: " + e.code }
func (e *sqlStateError) SQLState() string { return e.code }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newManualMeterProvider(t *testing.T) (*MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	sdk := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = sdk.Shutdown(context.Background()) })
	return wrapMeter(sdk, zap.NewNop()), reader
}

func sumByAttr(t *testing.T, reader *sdkmetric.ManualReader, name string, key attribute.Key) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(key)
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestIsLockContention(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&sqlStateError{"55P03"}, true},
		{&sqlStateError{"40001"}, true},
		{fmt.Errorf("wrapped: %w", &sqlStateError{"40P01"}), true},
		{&sqlStateError{"23505"}, false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isLockContention(tt.err), tt.err.Error())
	}
}

func TestDetectOperationType(t *testing.T) {
	assert.Equal(t, "SELECT", detectOperationType("  select * from batches"))
	assert.Equal(t, "UPDATE", detectOperationType("UPDATE batches SET quantity = quantity - 1"))
	assert.Equal(t, "INSERT", detectOperationType("insert into documents"))
	assert.Equal(t, "DELETE", detectOperationType("DELETE FROM count_lines"))
	assert.Equal(t, "OTHER", detectOperationType("SET LOCAL lock_timeout = '5s'"))
}

func TestDBSystem(t *testing.T) {
	assert.Equal(t, "postgresql", dbSystem("postgres"))
	assert.Equal(t, "sqlite", dbSystem("sqlite"))
	assert.Equal(t, "mysql", dbSystem("mysql"))
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	mp, reader := newManualMeterProvider(t)
	m, err := NewDBMetrics(mp.Meter("db.client"), DBMetricsConfig{SlowQueryThreshold: time.Millisecond}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "select", "batches", time.Microsecond, nil)
	m.RecordQuery(ctx, "", "", 5*time.Millisecond, nil)
	m.RecordQuery(ctx, "update", "batches", time.Microsecond, &sqlStateError{"55P03"})
	m.RecordQuery(ctx, "insert", "documents", time.Microsecond, errors.New("unique violation"))

	assert.Equal(t, map[string]int64{"SELECT": 1, "UNKNOWN": 1, "UPDATE": 1, "INSERT": 1},
		sumByAttr(t, reader, "db_query_total", AttrDBOperation))
	assert.Equal(t, map[string]int64{"unknown": 1},
		sumByAttr(t, reader, "db_slow_query_total", AttrDBTable))
	assert.Equal(t, map[string]int64{"batches": 1},
		sumByAttr(t, reader, "db_lock_contention_total", AttrDBTable))
}

func TestRegisterDBMetrics_Disabled(t *testing.T) {
	db := openTestDB(t)
	mp, _ := newManualMeterProvider(t)

	m, err := RegisterDBMetrics(db, mp, DBMetricsConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = RegisterDBMetrics(db, nil, DBMetricsConfig{Enabled: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRegisterDBMetrics_CountsStatements(t *testing.T) {
	db := openTestDB(t)
	mp, reader := newManualMeterProvider(t)

	m, err := RegisterDBMetrics(db, mp, DBMetricsConfig{Enabled: true}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, m)
	t.Cleanup(m.Stop)

	require.NoError(t, db.Exec("CREATE TABLE batches (id INTEGER PRIMARY KEY, lot_code TEXT)").Error)
	require.NoError(t, db.Table("batches").Create(map[string]any{"id": 1, "lot_code": "L-1"}).Error)
	var n int64
	require.NoError(t, db.Table("batches").Count(&n).Error)
	assert.Equal(t, int64(1), n)

	got := sumByAttr(t, reader, "db_query_total", AttrDBOperation)
	assert.Equal(t, int64(1), got["INSERT"])
	assert.Equal(t, int64(1), got["SELECT"])
	assert.Equal(t, int64(1), got["OTHER"])
}

func TestDBMetrics_ObservePool(t *testing.T) {
	db := openTestDB(t)
	mp, reader := newManualMeterProvider(t)

	m, err := NewDBMetrics(mp.Meter("db.client"), DBMetricsConfig{}, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, m.ObservePool(sqlDB))

	poolMax := func() (int64, bool) {
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		for _, sm := range rm.ScopeMetrics {
			for _, metric := range sm.Metrics {
				if metric.Name != "db_pool_connections_max" {
					continue
				}
				if g, ok := metric.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
					return g.DataPoints[0].Value, true
				}
			}
		}
		return 0, false
	}

	got, ok := poolMax()
	require.True(t, ok)
	assert.Equal(t, int64(1), got)

	m.Stop()
	assert.NotPanics(t, m.Stop)
}

func TestDBTracingPlugin_AnnotatesSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	db := openTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond}, nil)
	require.NoError(t, plugin.RegisterOtelGorm(db))

	require.NoError(t, db.Exec("CREATE TABLE batches (id INTEGER PRIMARY KEY, lot_code TEXT)").Error)
	require.NoError(t, db.Table("batches").Create(map[string]any{"id": 1, "lot_code": "L-1"}).Error)

	var insert sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		for _, kv := range s.Attributes() {
			if kv.Key == "db.sql.table" && kv.Value.AsString() == "batches" {
				insert = s
			}
		}
	}
	require.NotNil(t, insert, "insert span should carry the table name")

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range insert.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(1), attrs["db.rows_affected"].AsInt64())
	assert.True(t, attrs["db.slow_query"].AsBool())
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewDBTracingPlugin(DBTracingConfig{}, nil).RegisterOtelGorm(db))
	assert.Nil(t, db.Callback().Create().Get("otel_annotate:after_create"))
}
