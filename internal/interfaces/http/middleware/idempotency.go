package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader is the request header carrying the client's key
const IdempotencyKeyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLength caps the accepted key length
const MaxIdempotencyKeyLength = 255

// IdempotencyConfig holds configuration for the idempotency middleware
type IdempotencyConfig struct {
	Store  shared.IdempotencyStore
	TTL    time.Duration
	Logger *zap.Logger
}

// Idempotency guards POST requests that carry an Idempotency-Key header.
// The first request with a key claims it; a repeat while the claim holds is
// rejected with 409. The claim is released when the request does not succeed,
// so a failed call may be retried under the same key. Keys are scoped to the
// authenticated principal.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyTTL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if cfg.Store == nil || c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeBadRequest, "Idempotency-Key is too long", GetRequestID(c)))
			return
		}

		storeKey := key
		if p, ok := GetPrincipal(c); ok {
			storeKey = p.ID.String() + ":" + key
		}

		ctx := c.Request.Context()
		claimed, err := cfg.Store.Reserve(ctx, storeKey, ttl)
		if err != nil {
			log.Error("Idempotency store unavailable", zap.String("idempotency_key", key), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeIdempotencyUnavailable, "Request could not be deduplicated, retry later", GetRequestID(c)))
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeIdempotencyKeyReused, "A request with this Idempotency-Key was already received", GetRequestID(c)))
			return
		}

		ctx, _ = logger.WithIdempotencyKey(ctx, logger.FromContext(ctx), key)
		c.Request = c.Request.WithContext(ctx)

		completed := false
		defer func() {
			// a panic leaves completed false
			if completed && c.Writer.Status() < http.StatusMultipleChoices {
				return
			}
			if err := cfg.Store.Release(context.WithoutCancel(ctx), storeKey); err != nil {
				log.Warn("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(err))
			}
		}()

		c.Next()
		completed = true
	}
}
