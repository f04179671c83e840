package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plcbus/adsclient"
)

// Error codes returned in the JSON error envelope.
const (
	ErrCodeSymbolNotFound     = "SYMBOL_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeWriteFailed        = "WRITE_FAILED"
	ErrCodeSubscriptionLimit  = "SUBSCRIPTION_LIMIT_REACHED"
	ErrCodePLCConnectionError = "PLC_CONNECTION_ERROR"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeBatchSizeExceeded  = "BATCH_SIZE_EXCEEDED"
)

// HTTPError represents an HTTP error with status code and error response.
type HTTPError struct {
	StatusCode int
	Response   ErrorResponse
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return e.Response.Error.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, code, message string, details map[string]any) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Response: ErrorResponse{
			Error: ErrorDetail{
				Code:    code,
				Message: message,
				Details: details,
			},
		},
	}
}

// NewSymbolNotFoundError creates a symbol not found error.
func NewSymbolNotFoundError(symbol string) *HTTPError {
	return NewHTTPError(
		http.StatusNotFound,
		ErrCodeSymbolNotFound,
		"Symbol not found in PLC",
		map[string]any{"symbol": symbol},
	)
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, ErrCodeInvalidRequest, message, nil)
}

// NewWriteFailedError creates a write failed error.
func NewWriteFailedError(symbol, reason string) *HTTPError {
	return NewHTTPError(
		http.StatusInternalServerError,
		ErrCodeWriteFailed,
		"Failed to write symbol value",
		map[string]any{"symbol": symbol, "reason": reason},
	)
}

// NewPLCConnectionError creates a PLC connection error.
func NewPLCConnectionError(message string) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, ErrCodePLCConnectionError, message, nil)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, ErrCodeInternalError, message, nil)
}

// NewSubscriptionLimitError creates a subscription limit error.
func NewSubscriptionLimitError(max int) *HTTPError {
	return NewHTTPError(
		http.StatusTooManyRequests,
		ErrCodeSubscriptionLimit,
		"Maximum subscription count reached",
		map[string]any{"maximum": max},
	)
}

// NewBatchSizeExceededError creates a batch size exceeded error.
func NewBatchSizeExceededError(requested, max int) *HTTPError {
	return NewHTTPError(
		http.StatusBadRequest,
		ErrCodeBatchSizeExceeded,
		"Batch size exceeds maximum allowed",
		map[string]any{"requested": requested, "maximum": max},
	)
}

// fromClientError maps adsclient error kinds to HTTP errors.
func fromClientError(err error) *HTTPError {
	var ce *adsclient.ClientError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case adsclient.KindState, adsclient.KindTransport:
			return NewPLCConnectionError(err.Error())
		case adsclient.KindADS, adsclient.KindAMS:
			return NewHTTPError(http.StatusBadGateway, ErrCodePLCConnectionError, err.Error(), nil)
		case adsclient.KindMarshal:
			return NewInvalidRequestError(err.Error())
		}
	}
	return NewInternalError(err.Error())
}

// WriteError writes an error response to the HTTP response writer.
func WriteError(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = fromClientError(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpErr.StatusCode)
	json.NewEncoder(w).Encode(httpErr.Response)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}
