package middleware

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
)

type httpMetrics struct {
	requests  metric.Int64Counter
	latency   metric.Float64Histogram
	reqBytes  metric.Float64Histogram
	respBytes metric.Float64Histogram
	inFlight  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in := telemetry.NewInstruments(meter)
	m := &httpMetrics{
		requests: in.Counter("http_server_request_total", "HTTP requests by route and status", "{request}"),
		latency: in.Histogram("http_server_request_duration_seconds", "HTTP request latency", "s",
			telemetry.HTTPDurationBuckets...),
		reqBytes:  in.Histogram("http_server_request_size_bytes", "HTTP request body size", "By", telemetry.SizeBuckets...),
		respBytes: in.Histogram("http_server_response_size_bytes", "HTTP response body size", "By", telemetry.SizeBuckets...),
		inFlight:  in.UpDownCounter("http_server_active_requests", "HTTP requests being served", "{request}"),
	}
	return m, in.Err()
}

// HTTPMetrics counts and times requests per matched route. A nil or disabled
// meter provider yields a pass-through middleware.
func HTTPMetrics(mp *telemetry.MeterProvider) gin.HandlerFunc {
	if mp == nil || !mp.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(mp.Meter("http.server"))
}

// HTTPMetricsWithMeter is HTTPMetrics over an existing meter
func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		requestSize := c.Request.ContentLength

		metrics.inFlight.Add(ctx, 1)
		c.Next()
		metrics.inFlight.Add(ctx, -1)

		metrics.record(ctx, c, time.Since(start), requestSize)
	}
}

func (m *httpMetrics) record(ctx context.Context, c *gin.Context, elapsed time.Duration, requestSize int64) {
	method := telemetry.AttrHTTPMethod.String(c.Request.Method)
	route := telemetry.AttrHTTPRoute.String(routePattern(c))

	m.requests.Add(ctx, 1, telemetry.With(method, route, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status())))

	// the status is left off the distributions to bound cardinality
	byRoute := telemetry.With(method, route)
	m.latency.Record(ctx, elapsed.Seconds(), byRoute)
	if requestSize > 0 {
		m.reqBytes.Record(ctx, float64(requestSize), byRoute)
	}
	if size := c.Writer.Size(); size > 0 {
		m.respBytes.Record(ctx, float64(size), byRoute)
	}
}

// routePattern returns the matched route pattern (e.g. "/api/v1/ledger/documents/:id")
// rather than the raw path.
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func passThrough(c *gin.Context) {
	c.Next()
}
