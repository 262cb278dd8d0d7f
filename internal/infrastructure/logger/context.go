package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type loggerKey struct{}

type scopeKey struct{}

// Scope identifies the request a ledger operation runs for. Middleware fills
// it in as the request passes through, and every logger derived from the
// context stamps its non-empty fields on each entry.
type Scope struct {
	RequestID      string
	UserID         string
	Role           string
	IdempotencyKey string
}

func (s Scope) fields() []zap.Field {
	var out []zap.Field
	add := func(name, v string) {
		if v != "" {
			out = append(out, zap.String(name, v))
		}
	}
	add("request_id", s.RequestID)
	add("user_id", s.UserID)
	add("role", s.Role)
	add("idempotency_key", s.IdempotencyKey)
	return out
}

// ScopeFrom returns the request scope carried by ctx
func ScopeFrom(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// scoped records one scope change in ctx and attaches the logger enriched with it
func scoped(ctx context.Context, logger *zap.Logger, set func(*Scope), fields ...zap.Field) (context.Context, *zap.Logger) {
	s := ScopeFrom(ctx)
	set(&s)
	ctx = context.WithValue(ctx, scopeKey{}, s)
	enriched := logger.With(fields...)
	return WithContext(ctx, enriched), enriched
}

// WithRequestID records the request ID
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return scoped(ctx, logger, func(s *Scope) { s.RequestID = requestID }, zap.String("request_id", requestID))
}

// WithPrincipal records the authenticated user and role
func WithPrincipal(ctx context.Context, logger *zap.Logger, userID, role string) (context.Context, *zap.Logger) {
	return scoped(ctx, logger, func(s *Scope) { s.UserID, s.Role = userID, role },
		zap.String("user_id", userID), zap.String("role", role))
}

// WithIdempotencyKey records the client's Idempotency-Key
func WithIdempotencyKey(ctx context.Context, logger *zap.Logger, key string) (context.Context, *zap.Logger) {
	return scoped(ctx, logger, func(s *Scope) { s.IdempotencyKey = key }, zap.String("idempotency_key", key))
}

// WithTraceContext adds trace_id and span_id of the active span, if any
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(zap.String("trace_id", sc.TraceID().String()), zap.String("span_id", sc.SpanID().String()))
}

// L returns the context's logger with trace correlation. The context logger
// already carries the request scope.
//
//	logger.L(ctx).Info("Issue committed", zap.String("number", n))
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}

// For stamps ctx's request scope and trace onto a logger that was not built
// from the request, such as a service's or GORM's.
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if f := ScopeFrom(ctx).fields(); len(f) > 0 {
		base = base.With(f...)
	}
	return WithTraceContext(ctx, base)
}
