package dto

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details.
// Line is the one-based request line a rejection refers to.
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Line      int                `json:"line,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one field that failed validation
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithRequestID creates an error response tagged with the request ID
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	resp := NewErrorResponse(code, message)
	resp.Error.RequestID = requestID
	return resp
}

// NewValidationErrorResponse creates a validation error response with field details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      ErrCodeValidation,
			Message:   message,
			RequestID: requestID,
			Details:   details,
		},
	}
}

// IDRequest represents a request with an ID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// BarcodeRequest represents a request with a barcode path parameter
type BarcodeRequest struct {
	Code string `uri:"code" binding:"required,barcode"`
}

// SuggestAllocationQuery holds the query parameters of an allocation suggestion.
// Quantity is parsed as a decimal by the handler.
type SuggestAllocationQuery struct {
	ProductID   string `form:"product_id" binding:"required,uuid"`
	WarehouseID string `form:"warehouse_id" binding:"required,uuid"`
	Quantity    string `form:"quantity" binding:"required"`
}

// StockReportQuery holds the query parameters of the stock on hand report
type StockReportQuery struct {
	WarehouseID string `form:"warehouse_id" binding:"omitempty,uuid"`
	ProductID   string `form:"product_id" binding:"omitempty,uuid"`
}

// ProductBatchesQuery narrows a product's batches to one warehouse
type ProductBatchesQuery struct {
	WarehouseID string `form:"warehouse_id" binding:"omitempty,uuid"`
}

// MovementReportQuery holds the period of the movement report; both days are included
type MovementReportQuery struct {
	From        string `form:"from" binding:"required,datetime=2006-01-02"`
	To          string `form:"to" binding:"required,datetime=2006-01-02"`
	WarehouseID string `form:"warehouse_id" binding:"omitempty,uuid"`
}

// ExpiryReportQuery holds the query parameters of the expiry report
type ExpiryReportQuery struct {
	WarehouseID string `form:"warehouse_id" binding:"omitempty,uuid"`
	Days        int    `form:"days" binding:"omitempty,min=1,max=3650"`
}
