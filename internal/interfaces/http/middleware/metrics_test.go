package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// setupTestMeter returns a router instrumented with a meter backed by a manual reader.
func setupTestMeter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("http.server")))
	router.GET("/api/v1/ledger/documents/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.POST("/api/v1/ledger/issues", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient stock"})
	})
	return router, reader
}

// findMetricByName collects and finds a metric by name.
func findMetricByName(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func attrString(set attribute.Set, key attribute.Key) string {
	v, _ := set.Value(key)
	return v.Emit()
}

func TestHTTPMetrics_NilOrDisabledProvider(t *testing.T) {
	disabled, err := telemetry.NewMeterProvider(context.Background(), telemetry.Target{}, nil, 0, zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, mp := range []*telemetry.MeterProvider{nil, disabled} {
		router := gin.New()
		router.Use(HTTPMetrics(mp))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestHTTPMetrics_RequestTotalUsesRoutePattern(t *testing.T) {
	router, reader := setupTestMeter(t)

	for _, id := range []string{"a", "b", "c"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ledger/documents/"+id, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/ledger/issues", strings.NewReader(`{}`)))

	m := findMetricByName(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		key := attrString(dp.Attributes, telemetry.AttrHTTPMethod) + " " +
			attrString(dp.Attributes, telemetry.AttrHTTPRoute) + " " +
			attrString(dp.Attributes, telemetry.AttrHTTPStatusCode)
		counts[key] += dp.Value
	}
	assert.Equal(t, map[string]int64{
		"GET /api/v1/ledger/documents/:id 200": 3,
		"POST /api/v1/ledger/issues 422":       1,
	}, counts)
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	router, reader := setupTestMeter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	m := findMetricByName(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, "unknown", attrString(sum.DataPoints[0].Attributes, telemetry.AttrHTTPRoute))
}

func TestHTTPMetrics_DurationAndSizes(t *testing.T) {
	router, reader := setupTestMeter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/ledger/issues", strings.NewReader(`{"lines":[]}`)))

	duration := findMetricByName(t, reader, "http_server_request_duration_seconds")
	require.NotNil(t, duration)
	hist := duration.Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	_, hasStatus := hist.DataPoints[0].Attributes.Value(telemetry.AttrHTTPStatusCode)
	assert.False(t, hasStatus)

	reqSize := findMetricByName(t, reader, "http_server_request_size_bytes")
	require.NotNil(t, reqSize)
	assert.Equal(t, float64(len(`{"lines":[]}`)), reqSize.Data.(metricdata.Histogram[float64]).DataPoints[0].Sum)

	respSize := findMetricByName(t, reader, "http_server_response_size_bytes")
	require.NotNil(t, respSize)
	assert.Positive(t, respSize.Data.(metricdata.Histogram[float64]).DataPoints[0].Sum)
}

func TestHTTPMetrics_ActiveRequestsSettle(t *testing.T) {
	router, reader := setupTestMeter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ledger/documents/x", nil))

	m := findMetricByName(t, reader, "http_server_active_requests")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(0), sum.DataPoints[0].Value)
}
