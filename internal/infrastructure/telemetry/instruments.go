package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric attribute keys
var (
	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.pool.state")

	AttrDocumentKind = attribute.Key("kind")
	AttrErrorCode    = attribute.Key("code")
	AttrWarehouseID  = attribute.Key("warehouse_id")
	AttrProductID    = attribute.Key("product_id")
)

// Histogram bucket boundaries
var (
	HTTPDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	DBDurationBuckets      = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	AllocationBatchBuckets = []float64{1, 2, 3, 5, 8, 13, 21}
	SizeBuckets            = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}
)

// Instruments declares instruments on one meter. The first failure is kept
// and reported by Err; the failed instrument is replaced by a no-op so a
// metric set can be built without checking every call.
type Instruments struct {
	meter metric.Meter
	err   error
}

// NewInstruments starts a declaration on meter
func NewInstruments(meter metric.Meter) *Instruments {
	return &Instruments{meter: meter}
}

// Err returns the first instrument creation failure
func (in *Instruments) Err() error { return in.err }

func (in *Instruments) failed(name string, err error) bool {
	if err == nil {
		return false
	}
	if in.err == nil {
		in.err = fmt.Errorf("create instrument %s: %w", name, err)
	}
	return true
}

// Counter declares a monotonic integer counter
func (in *Instruments) Counter(name, description, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if in.failed(name, err) {
		return noop.Int64Counter{}
	}
	return c
}

// FloatCounter declares a monotonic counter for fractional amounts such as stock quantities
func (in *Instruments) FloatCounter(name, description, unit string) metric.Float64Counter {
	c, err := in.meter.Float64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if in.failed(name, err) {
		return noop.Float64Counter{}
	}
	return c
}

// UpDownCounter declares an integer that moves both ways, such as requests in flight
func (in *Instruments) UpDownCounter(name, description, unit string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if in.failed(name, err) {
		return noop.Int64UpDownCounter{}
	}
	return c
}

// Histogram declares a distribution. Without buckets the SDK defaults apply.
func (in *Instruments) Histogram(name, description, unit string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	if in.failed(name, err) {
		return noop.Float64Histogram{}
	}
	return h
}

// Gauge declares a point-in-time integer such as open connections or expired batches
func (in *Instruments) Gauge(name, description, unit string) metric.Int64Gauge {
	g, err := in.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if in.failed(name, err) {
		return noop.Int64Gauge{}
	}
	return g
}

// With is shorthand for metric.WithAttributes
func With(attrs ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(attrs...)
}
