package http

import (
	"fmt"
	"net/http"
)

// Error codes returned by the ops API.
const (
	CodeInvalidRequest   = "ERR_INVALID_REQUEST"
	CodeSymbolNotTracked = "ERR_SYMBOL_NOT_TRACKED"
	CodeInternal         = "ERR_INTERNAL"
)

// AppError is an API error with the HTTP status it maps to.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  []ValidationError `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithError wraps an underlying error. It is logged, never rendered.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// InvalidRequest is a 400 carrying the offending fields.
func InvalidRequest(message string, fields ...ValidationError) *AppError {
	return &AppError{Code: CodeInvalidRequest, Message: message, Fields: fields, Status: http.StatusBadRequest}
}

// SymbolNotTracked is a 404 for a symbol without a live worker.
func SymbolNotTracked(symbol string) *AppError {
	return &AppError{
		Code:    CodeSymbolNotTracked,
		Message: fmt.Sprintf("symbol %s is not tracked", symbol),
		Status:  http.StatusNotFound,
	}
}

// InternalError is a 500.
func InternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError}
}
