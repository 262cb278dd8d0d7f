package dto

import (
	"errors"
	"net/http"

	"github.com/erp/ledger/internal/domain/shared"
)

// Error code constants returned to API clients.
// Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	// ErrCodeValidation is used when the request fails field validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed path or query parameters
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when the body cannot be decoded
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Idempotency error codes
const (
	// ErrCodeIdempotencyKeyReused is used when a POST repeats an Idempotency-Key
	ErrCodeIdempotencyKeyReused = "ERR_IDEMPOTENCY_KEY_REUSED"
	// ErrCodeIdempotencyUnavailable is used when the key store cannot be reached
	ErrCodeIdempotencyUnavailable = "ERR_IDEMPOTENCY_UNAVAILABLE"
)

// Ledger error codes, one per domain error code
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeInsufficientStock   = "ERR_INSUFFICIENT_STOCK"
	ErrCodeExpiredBatch        = "ERR_EXPIRED_BATCH"
	ErrCodeInvalidQuantity     = "ERR_INVALID_QUANTITY"
	ErrCodeDuplicateKey        = "ERR_DUPLICATE_KEY"
	ErrCodeAlreadyReconciled   = "ERR_ALREADY_RECONCILED"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeIdempotencyKeyReused:   http.StatusConflict,
	ErrCodeIdempotencyUnavailable: http.StatusServiceUnavailable,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeInsufficientStock:   http.StatusUnprocessableEntity,
	ErrCodeExpiredBatch:        http.StatusUnprocessableEntity,
	ErrCodeInvalidQuantity:     http.StatusBadRequest,
	ErrCodeDuplicateKey:        http.StatusConflict,
	ErrCodeAlreadyReconciled:   http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeNotFound:            ErrCodeNotFound,
	shared.CodeInsufficientStock:   ErrCodeInsufficientStock,
	shared.CodeExpiredBatch:        ErrCodeExpiredBatch,
	shared.CodeInvalidQuantity:     ErrCodeInvalidQuantity,
	shared.CodeDuplicateKey:        ErrCodeDuplicateKey,
	shared.CodeValidation:          ErrCodeValidation,
	shared.CodeAlreadyReconciled:   ErrCodeAlreadyReconciled,
	shared.CodeConcurrencyConflict: ErrCodeConcurrencyConflict,
	shared.CodeUnauthorized:        ErrCodeUnauthorized,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}

// ErrorFromDomain builds the response error for err together with its status.
// Errors without a domain code are reported as internal errors and their text
// is not exposed.
func ErrorFromDomain(err error) (int, *ErrorInfo) {
	domainCode := shared.CodeOf(err)
	if domainCode == "" {
		return http.StatusInternalServerError, &ErrorInfo{
			Code:    ErrCodeInternal,
			Message: "An unexpected error occurred",
		}
	}

	code := NormalizeErrorCode(domainCode)
	info := &ErrorInfo{
		Code:      code,
		Message:   err.Error(),
		Retryable: shared.IsRetryable(err),
	}
	var le *shared.LineError
	if errors.As(err, &le) {
		info.Line = le.Line
	}
	return GetHTTPStatus(code), info
}
