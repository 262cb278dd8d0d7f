package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProbePaths are polled by orchestrators and stay out of traces by default
var ProbePaths = []string{"/health", "/ready"}

type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// Untraced paths get no server span; nil means ProbePaths
	Untraced []string
}

// Tracing opens a server span per request, named after the route pattern
// (e.g. "POST /api/v1/ledger/issues/:id/reverse"), and marks it failed on a
// 5xx. Client rejections keep the status otelgin gives them.
func Tracing(cfg TracingConfig) gin.HandlersChain {
	if !cfg.Enabled {
		return gin.HandlersChain{func(c *gin.Context) { c.Next() }}
	}
	untraced := cfg.Untraced
	if untraced == nil {
		untraced = ProbePaths
	}
	traced := func(r *http.Request) bool { return !slices.Contains(untraced, r.URL.Path) }

	return gin.HandlersChain{
		otelgin.Middleware(cfg.ServiceName, otelgin.WithFilter(traced)),
		markServerErrors,
	}
}

func markServerErrors(c *gin.Context) {
	c.Next()

	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	status := c.Writer.Status()
	if status < http.StatusInternalServerError {
		return
	}
	for _, e := range c.Errors {
		span.RecordError(e.Err)
	}
	span.SetStatus(codes.Error, http.StatusText(status))
}

// AnnotateSpan tags the server span with the request ID and the caller.
// It runs after JWTAuth so the principal is known.
func AnnotateSpan() gin.HandlerFunc {
	return func(c *gin.Context) {
		if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
			var attrs []attribute.KeyValue
			if id := GetRequestID(c); id != "" {
				attrs = append(attrs, attribute.String("request_id", id))
			}
			if p, ok := GetPrincipal(c); ok {
				attrs = append(attrs,
					attribute.String("enduser.id", p.ID.String()),
					attribute.String("enduser.role", p.Role.String()),
				)
			}
			span.SetAttributes(attrs...)
		}
		c.Next()
	}
}
