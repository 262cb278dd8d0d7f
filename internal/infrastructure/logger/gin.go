package logger

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// requestIDKey is where the RequestID middleware leaves the ID in the gin context
const requestIDKey = "request_id"

// AccessLog writes one "HTTP Request" entry per request after it completes,
// at warn for 4xx and error for 5xx. Before the handlers run it seeds the
// request context with a logger carrying method, path and request ID, so
// L(ctx) further down logs with the same fields.
func AccessLog(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request
		reqLog := base.With(zap.String("method", req.Method), zap.String("path", req.URL.Path))

		ctx := WithContext(req.Context(), reqLog)
		if id := c.GetString(requestIDKey); id != "" {
			ctx, _ = WithRequestID(ctx, reqLog, id)
		}
		c.Request = req.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		// scope fields picked up since, such as the principal, come from the context
		entry := For(c.Request.Context(), reqLog)
		if ce := entry.Check(levelFor(status), "HTTP Request"); ce != nil {
			ce.Write(accessFields(c, status, time.Since(start))...)
		}
	}
}

func levelFor(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

func accessFields(c *gin.Context, status int, latency time.Duration) []zap.Field {
	fields := make([]zap.Field, 0, 9)
	fields = append(fields,
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_agent", c.Request.UserAgent()),
		zap.Int("body_size", c.Writer.Size()),
	)
	if route := c.FullPath(); route != "" {
		fields = append(fields, zap.String("route", route))
	}
	if q := c.Request.URL.RawQuery; q != "" {
		fields = append(fields, zap.String("query", q))
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
	}
	return fields
}

// Recover turns a handler panic into a logged error and a 500 written by
// respond. A nil respond aborts with an empty 500. gin's own output is
// discarded; broken client connections are aborted without a log entry.
func Recover(base *zap.Logger, respond func(c *gin.Context)) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		For(c.Request.Context(), base).Error("Panic recovered",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stacktrace"),
		)
		if respond == nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		respond(c)
	})
}
