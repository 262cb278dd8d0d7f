// Package middleware provides the gin middleware in front of the ledger API.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
)

// MaxRequestIDLength caps client-supplied request IDs
const MaxRequestIDLength = 128

// RequestID tags every request with an ID, echoed in X-Request-ID. A caller's
// ID is reused when it is printable ASCII, cut to MaxRequestIDLength;
// anything else is replaced by a fresh UUID so log lines stay intact.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := clientRequestID(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func clientRequestID(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > MaxRequestIDLength {
		raw = raw[:MaxRequestIDLength]
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x21 || raw[i] > 0x7e {
			return ""
		}
	}
	return raw
}

// GetRequestID is empty outside RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
