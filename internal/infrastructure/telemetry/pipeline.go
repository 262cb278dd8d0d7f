// Package telemetry wires OpenTelemetry traces, metrics and logs for the ledger
// and provides the span and metric helpers its services use.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceVersion is reported as service.version; overridden with -ldflags at build time
var ServiceVersion = "dev"

const (
	shutdownTimeout      = 10 * time.Second
	metricExportInterval = time.Minute
)

// Target is the OTLP collector a signal is exported to.
// A Target without an endpoint leaves the signal on the no-op global provider.
type Target struct {
	Endpoint string
	Insecure bool
}

func (t Target) enabled() bool { return t.Endpoint != "" }

// pipeline is the flush and shutdown lifecycle every signal provider shares.
// A pipeline with no shutdown func is disabled.
type pipeline struct {
	signal   string
	log      *zap.Logger
	flush    func(context.Context) error
	shutdown func(context.Context) error
}

func newPipeline(signal string, log *zap.Logger) pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return pipeline{signal: signal, log: log}
}

// IsEnabled reports whether the signal is exported
func (p *pipeline) IsEnabled() bool { return p.shutdown != nil }

// ForceFlush exports whatever the signal has buffered
func (p *pipeline) ForceFlush(ctx context.Context) error {
	if p.flush == nil {
		return nil
	}
	return p.flush(ctx)
}

// Shutdown flushes and stops the signal, bounded by shutdownTimeout
func (p *pipeline) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := p.shutdown(ctx); err != nil {
		p.log.Error("Telemetry pipeline shutdown failed", zap.String("signal", p.signal), zap.Error(err))
		return fmt.Errorf("shutdown %s pipeline: %w", p.signal, err)
	}
	p.log.Info("Telemetry pipeline stopped", zap.String("signal", p.signal))
	return nil
}

func (p *pipeline) announce(t Target, fields ...zap.Field) {
	if !t.enabled() {
		p.log.Info("Telemetry pipeline disabled", zap.String("signal", p.signal))
		return
	}
	p.log.Info("Telemetry pipeline started",
		append([]zap.Field{zap.String("signal", p.signal), zap.String("collector", t.Endpoint)}, fields...)...)
}

// TracerProvider exports ledger spans
type TracerProvider struct {
	pipeline
	sdk *sdktrace.TracerProvider
}

func wrapTracer(sdk *sdktrace.TracerProvider, log *zap.Logger) *TracerProvider {
	tp := &TracerProvider{pipeline: newPipeline("traces", log), sdk: sdk}
	if sdk != nil {
		tp.flush, tp.shutdown = sdk.ForceFlush, sdk.Shutdown
	}
	return tp
}

// NewTracerProvider exports spans to t and installs itself, with W3C trace
// context and baggage propagation, as the global provider. Root spans are
// sampled by ratio; child spans follow their parent.
func NewTracerProvider(ctx context.Context, t Target, res *resource.Resource, ratio float64, log *zap.Logger) (*TracerProvider, error) {
	if !t.enabled() {
		tp := wrapTracer(nil, log)
		tp.announce(t)
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.Endpoint)}
	if t.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(orDefault(res)),
		sdktrace.WithSampler(newSampler(ratio)),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	tp := wrapTracer(sdk, log)
	tp.announce(t, zap.Float64("sampling_ratio", ratio))
	return tp, nil
}

func newSampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(ratio)
	if ratio >= 1 {
		root = sdktrace.AlwaysSample()
	} else if ratio <= 0 {
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// Tracer returns a named tracer, falling back to the global provider when disabled
func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.sdk == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return tp.sdk.Tracer(name, opts...)
}

// MeterProvider exports ledger, HTTP and database metrics
type MeterProvider struct {
	pipeline
	sdk *sdkmetric.MeterProvider
}

func wrapMeter(sdk *sdkmetric.MeterProvider, log *zap.Logger) *MeterProvider {
	mp := &MeterProvider{pipeline: newPipeline("metrics", log), sdk: sdk}
	if sdk != nil {
		mp.flush, mp.shutdown = sdk.ForceFlush, sdk.Shutdown
	}
	return mp
}

// NewMeterProvider pushes metrics to t every interval (a minute when zero)
// and installs itself as the global provider.
func NewMeterProvider(ctx context.Context, t Target, res *resource.Resource, interval time.Duration, log *zap.Logger) (*MeterProvider, error) {
	if !t.enabled() {
		mp := wrapMeter(nil, log)
		mp.announce(t)
		return mp, nil
	}
	if interval <= 0 {
		interval = metricExportInterval
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(t.Endpoint)}
	if t.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	sdk := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(orDefault(res)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(sdk)

	mp := wrapMeter(sdk, log)
	mp.announce(t, zap.Duration("export_interval", interval))
	return mp, nil
}

// Meter returns a named meter, falling back to the global provider when disabled
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.sdk == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.sdk.Meter(name, opts...)
}

// LoggerProvider exports zap entries as OTLP log records
type LoggerProvider struct {
	pipeline
	sdk *sdklog.LoggerProvider
}

func wrapLogger(sdk *sdklog.LoggerProvider, log *zap.Logger) *LoggerProvider {
	lp := &LoggerProvider{pipeline: newPipeline("logs", log), sdk: sdk}
	if sdk != nil {
		lp.flush, lp.shutdown = sdk.ForceFlush, sdk.Shutdown
	}
	return lp
}

// NewLoggerProvider batches log records to t and installs itself as the global log provider
func NewLoggerProvider(ctx context.Context, t Target, res *resource.Resource, log *zap.Logger) (*LoggerProvider, error) {
	if !t.enabled() {
		lp := wrapLogger(nil, log)
		lp.announce(t)
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(t.Endpoint)}
	if t.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create log exporter: %w", err)
	}

	sdk := sdklog.NewLoggerProvider(
		sdklog.WithResource(orDefault(res)),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(sdk)

	lp := wrapLogger(sdk, log)
	lp.announce(t)
	return lp, nil
}

// ZapCore returns a core that ships entries at or above level through this
// provider under the given instrumentation scope. Tee it into the process
// logger with logger.New(cfg, core). A disabled provider yields a no-op core.
func (lp *LoggerProvider) ZapCore(scope string, level zapcore.Level) zapcore.Core {
	if lp == nil || lp.sdk == nil {
		return zapcore.NewNopCore()
	}
	core := otelzap.NewCore(scope, otelzap.WithLoggerProvider(lp.sdk))
	filtered, err := zapcore.NewIncreaseLevelCore(core, level)
	if err != nil {
		lp.log.Warn("Cannot raise exported log level, exporting every level", zap.Error(err))
		return core
	}
	return filtered
}

// newResource describes the ledger service to every exporter
func newResource(serviceName, environment string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(ServiceVersion),
	}
	if environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment.name", environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}
	return res, nil
}

func orDefault(res *resource.Resource) *resource.Resource {
	if res == nil {
		return resource.Default()
	}
	return res
}

// Providers bundles the tracer, meter and log providers of the process
type Providers struct {
	Tracer *TracerProvider
	Meter  *MeterProvider
	Logs   *LoggerProvider
}

// NewProviders builds every provider from the telemetry configuration.
// Disabled signals get no-op providers, so callers never check for nil.
func NewProviders(ctx context.Context, cfg config.TelemetryConfig, environment string, log *zap.Logger) (*Providers, error) {
	res, err := newResource(cfg.ServiceName, environment)
	if err != nil {
		return nil, err
	}
	target := func(on bool) Target {
		if !cfg.Enabled || !on {
			return Target{}
		}
		return Target{Endpoint: cfg.CollectorEndpoint, Insecure: cfg.Insecure}
	}

	p := &Providers{}
	if p.Tracer, err = NewTracerProvider(ctx, target(true), res, cfg.SamplingRatio, log); err != nil {
		return nil, err
	}
	if p.Meter, err = NewMeterProvider(ctx, target(cfg.MetricsEnabled), res, 0, log); err != nil {
		_ = p.Tracer.Shutdown(ctx)
		return nil, err
	}
	if p.Logs, err = NewLoggerProvider(ctx, target(cfg.LogsEnabled), res, log); err != nil {
		_ = errors.Join(p.Meter.Shutdown(ctx), p.Tracer.Shutdown(ctx))
		return nil, err
	}
	return p, nil
}

// Shutdown flushes and stops every provider, logs last so shutdown errors still export
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Tracer.Shutdown(ctx),
		p.Meter.Shutdown(ctx),
		p.Logs.Shutdown(ctx),
	)
}
