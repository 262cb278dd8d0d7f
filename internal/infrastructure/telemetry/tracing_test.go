package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs a tracer provider backed by an in-memory recorder
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	warehouseID := uuid.New()
	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "create_issue",
		telemetry.SpanAttrWarehouseID, warehouseID,
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ledger.create_issue", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)
	assert.Equal(t, warehouseID.String(), attrMap(spans[0].Attributes())[telemetry.SpanAttrWarehouseID].AsString())
}

func TestStartServiceSpan_NestsUnderParent(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := otel.Tracer("http").Start(context.Background(), "POST /issues")
	_, child := telemetry.StartServiceSpan(ctx, "ledger", "create_issue")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "create_receipt")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentNumber, "RC-20260115-0001",
		telemetry.SpanAttrLineCount, 3,
		telemetry.SpanAttrQuantity, decimal.RequireFromString("12.5"),
		42, "skipped because the key is not a string",
		"dangling",
	)
	telemetry.SetAttribute(span, "ledger.fefo", true)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, "RC-20260115-0001", attrs[telemetry.SpanAttrDocumentNumber].AsString())
	assert.Equal(t, int64(3), attrs[telemetry.SpanAttrLineCount].AsInt64())
	assert.Equal(t, "12.5", attrs[telemetry.SpanAttrQuantity].AsString())
	assert.True(t, attrs["ledger.fefo"].AsBool())
	assert.NotContains(t, attrs, "dangling")
	assert.Len(t, attrs, 4)
}

func TestSpanHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.AddEvent(nil, "event", "k", "v")
		telemetry.RecordError(nil, errors.New("boom"))
	})
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	batchID := uuid.New()
	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "create_issue")
	telemetry.AddEvent(span, "batch_allocated",
		telemetry.SpanAttrBatchID, batchID,
		telemetry.SpanAttrQuantity, decimal.NewFromInt(4),
	)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "batch_allocated", events[0].Name)
	attrs := attrMap(events[0].Attributes)
	assert.Equal(t, batchID.String(), attrs[telemetry.SpanAttrBatchID].AsString())
	assert.Equal(t, "4", attrs[telemetry.SpanAttrQuantity].AsString())
}

func TestRecordError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantCode   string
		wantLine   int64
	}{
		{
			name:       "infrastructure failure marks the span failed",
			err:        errors.New("connection refused"),
			wantStatus: codes.Error,
		},
		{
			name:       "domain rejection keeps status unset",
			err:        fmt.Errorf("%w: lot L-1 expired", shared.ErrExpiredBatch),
			wantStatus: codes.Unset,
			wantCode:   shared.CodeExpiredBatch,
		},
		{
			name:       "line error carries the offending line",
			err:        shared.AtLine(1, shared.ErrInsufficientStock),
			wantStatus: codes.Unset,
			wantCode:   shared.CodeInsufficientStock,
			wantLine:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)

			_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "create_issue")
			telemetry.RecordError(span, tt.err)
			span.End()

			got := sr.Ended()[0]
			assert.Equal(t, tt.wantStatus, got.Status().Code)

			attrs := attrMap(got.Attributes())
			if tt.wantCode == "" {
				assert.NotContains(t, attrs, telemetry.SpanAttrErrorCode)
				require.Len(t, got.Events(), 1)
				assert.Equal(t, "exception", got.Events()[0].Name)
				return
			}
			assert.Equal(t, tt.wantCode, attrs[telemetry.SpanAttrErrorCode].AsString())
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, attrs[telemetry.SpanAttrErrorLine].AsInt64())
			} else {
				assert.NotContains(t, attrs, telemetry.SpanAttrErrorLine)
			}
			require.Len(t, got.Events(), 1)
			assert.Equal(t, "rejected", got.Events()[0].Name)
		})
	}
}

func TestRecordError_NilError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "discard")
	telemetry.RecordError(span, nil)
	span.End()

	got := sr.Ended()[0]
	assert.Equal(t, codes.Unset, got.Status().Code)
	assert.Empty(t, got.Events())
}
