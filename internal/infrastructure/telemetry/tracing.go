package telemetry

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/erp/ledger/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "github.com/erp/ledger"

// Span attribute keys. Metric dimensions are the Attr* keys in instruments.go.
const (
	SpanAttrDocumentID      = "ledger.document_id"
	SpanAttrDocumentNumber  = "ledger.document_number"
	SpanAttrLineCount       = "ledger.line_count"
	SpanAttrWarehouseID     = "ledger.warehouse_id"
	SpanAttrDestWarehouseID = "ledger.dest_warehouse_id"
	SpanAttrProductID       = "ledger.product_id"
	SpanAttrBatchID         = "ledger.batch_id"
	SpanAttrQuantity        = "ledger.quantity"
	SpanAttrPrincipalID     = "ledger.principal_id"
	SpanAttrErrorCode       = "ledger.error_code"
	SpanAttrErrorLine       = "ledger.error_line"
)

// StartServiceSpan opens an internal span "{service}.{method}" tagged with
// alternating key/value pairs; the caller ends it.
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_issue", telemetry.SpanAttrWarehouseID, id)
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, method string, keyValues ...any) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(collect(keyValues)...),
	)
}

// SetAttributes tags span with key/value pairs. Non-string keys and a
// trailing key without value are dropped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span != nil {
		span.SetAttributes(collect(keyValues)...)
	}
}

func SetAttribute(span trace.Span, key string, value any) {
	if span != nil {
		span.SetAttributes(attr(key, value))
	}
}

func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span != nil {
		span.AddEvent(name, trace.WithAttributes(collect(keyValues)...))
	}
}

// RecordError tells business rejections from failures. An error with a
// domain code leaves the span status alone and adds a "rejected" event with
// the code and, for line errors, the line. Anything else fails the span.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	code := shared.CodeOf(err)
	if code == "" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}

	codeAttr := attribute.String(SpanAttrErrorCode, code)
	span.SetAttributes(codeAttr)
	if le := (*shared.LineError)(nil); errors.As(err, &le) {
		span.SetAttributes(attribute.Int(SpanAttrErrorLine, le.Line))
	}
	span.AddEvent("rejected", trace.WithAttributes(codeAttr, attribute.String("message", err.Error())))
}

// pairs walks keyValues two at a time, skipping pairs whose key is not a string
func pairs(keyValues []any) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for i := 1; i < len(keyValues); i += 2 {
			key, ok := keyValues[i-1].(string)
			if !ok {
				continue
			}
			if !yield(key, keyValues[i]) {
				return
			}
		}
	}
}

func collect(keyValues []any) []attribute.KeyValue {
	var out []attribute.KeyValue
	for k, v := range pairs(keyValues) {
		out = append(out, attr(k, v))
	}
	return out
}

func attr(key string, value any) attribute.KeyValue {
	k := attribute.Key(key)
	switch v := value.(type) {
	case string:
		return k.String(v)
	case bool:
		return k.Bool(v)
	case int:
		return k.Int(v)
	case int64:
		return k.Int64(v)
	case float64:
		return k.Float64(v)
	case []string:
		return k.StringSlice(v)
	case fmt.Stringer:
		// ids and decimal quantities keep their canonical text
		return k.String(v.String())
	}
	return k.String(fmt.Sprint(value))
}
