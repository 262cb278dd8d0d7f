// Package handler adapts HTTP requests onto the ledger services.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler writes the response envelope shared by every endpoint
type BaseHandler struct{}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", middleware.GetRequestID(c), details))
}

// BindError answers a failed ShouldBind* call: field rule violations get
// per-field details, an oversized body 413, undecodable JSON its own code.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var (
		invalid  validator.ValidationErrors
		tooLarge *http.MaxBytesError
		syntax   *json.SyntaxError
		mistyped *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &invalid):
		h.ValidationError(c, middleware.ValidationDetails(err))
	case errors.As(err, &tooLarge):
		h.fail(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
	case errors.As(err, &syntax), errors.As(err, &mistyped),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		h.fail(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
	default:
		h.fail(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Malformed request: "+err.Error())
	}
}

// HandleError maps err onto its status and code. Only 5xx outcomes are
// logged and attached to the gin context, where tracing picks them up.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, info := dto.ErrorFromDomain(err)
	info.RequestID = middleware.GetRequestID(c)
	if status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("Request failed", zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, dto.Response{Success: false, Error: info})
}

// principal writes 401 when the request carries no principal
func (h *BaseHandler) principal(c *gin.Context) (shared.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		h.fail(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
	}
	return p, ok
}

// pathID writes 400 when :id is not a UUID
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.fail(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Invalid ID format")
		return uuid.Nil, false
	}
	return uuid.MustParse(uri.ID), true
}
