package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	PrincipalKey  = "principal"
	JWTClaimsKey  = "jwt_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// Authenticator turns a bearer token into the principal it identifies
type Authenticator interface {
	Authenticate(token string) (shared.Principal, *auth.Claims, error)
}

type JWTMiddlewareConfig struct {
	Authenticator Authenticator
	// SkipPaths are served without a token
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultJWTConfig leaves the probe endpoints open
func DefaultJWTConfig(authenticator Authenticator) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{Authenticator: authenticator, SkipPaths: ProbePaths}
}

// authFailure is a 401 answer: the error code and the client-facing message
type authFailure struct {
	code    string
	message string
}

var (
	errNoHeader  = authFailure{dto.ErrCodeUnauthorized, "Missing authorization header"}
	errNotBearer = authFailure{dto.ErrCodeUnauthorized, "Invalid authorization header format"}
	errNoToken   = authFailure{dto.ErrCodeUnauthorized, "Missing token"}
)

// bearerToken pulls the token out of an Authorization header value
func bearerToken(header string) (string, *authFailure) {
	if header == "" {
		return "", &errNoHeader
	}
	rest, ok := strings.CutPrefix(header, BearerPrefix)
	if !ok {
		return "", &errNotBearer
	}
	if token := strings.TrimSpace(rest); token != "" {
		return token, nil
	}
	return "", &errNoToken
}

// JWTAuth requires a valid bearer token. The caller's shared.Principal is
// stored under PrincipalKey and added to the request logger's scope.
func JWTAuth(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if slices.Contains(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		token, fail := bearerToken(c.GetHeader(AuthHeaderKey))
		if fail != nil {
			rejectAuth(c, log, *fail, nil)
			return
		}
		principal, claims, err := cfg.Authenticator.Authenticate(token)
		if err != nil {
			code, message := tokenErrorCode(err)
			rejectAuth(c, log, authFailure{code, message}, err)
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(JWTClaimsKey, claims)
		ctx := c.Request.Context()
		ctx, _ = logger.WithPrincipal(ctx, logger.FromContext(ctx), principal.ID.String(), principal.Role.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func rejectAuth(c *gin.Context, log *zap.Logger, f authFailure, err error) {
	log.Warn("JWT authentication failed",
		zap.String("code", f.code),
		zap.String("path", c.Request.URL.Path),
		zap.NamedError("reason", err),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(f.code, f.message, GetRequestID(c)))
}

func tokenErrorCode(err error) (code, message string) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return dto.ErrCodeTokenInvalid, "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidClaims):
		return dto.ErrCodeTokenInvalid, "Token does not identify a valid principal"
	}
	return dto.ErrCodeTokenInvalid, "Invalid token"
}

// contextValue reads key from c when it holds a T
func contextValue[T any](c *gin.Context, key string) (T, bool) {
	v, _ := c.Get(key)
	t, ok := v.(T)
	return t, ok
}

func GetPrincipal(c *gin.Context) (shared.Principal, bool) {
	return contextValue[shared.Principal](c, PrincipalKey)
}

// GetJWTClaims returns nil on unauthenticated requests
func GetJWTClaims(c *gin.Context) *auth.Claims {
	claims, _ := contextValue[*auth.Claims](c, JWTClaimsKey)
	return claims
}
