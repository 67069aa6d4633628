package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrUnrecognized      = errors.New("unrecognized barcode format")
	ErrQuantityMismatch  = errors.New("quantity mismatch")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Domain error constructors

// Unrecognized is returned when a scanned string matches no known
// barcode format. The decoder collapses every parse failure into this
// single case so callers can fall back to manual entry.
func Unrecognized() *AppError {
	return &AppError{
		Err:        ErrUnrecognized,
		Code:       "UNRECOGNIZED_BARCODE",
		Message:    "unrecognized barcode format",
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// LotNotFound is returned when a withdrawal references a lot that cannot
// be resolved. Withdrawals never auto-create lots.
func LotNotFound() *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "LOT_NOT_FOUND",
		Message:    "product lot not found; check barcode, lot number, or expiry date",
		StatusCode: http.StatusNotFound,
	}
}

// ProductNotFound is returned when a product code resolves to nothing,
// even after leading-zero normalization.
func ProductNotFound(code string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "PRODUCT_NOT_FOUND",
		Message:    fmt.Sprintf("no product found for code %q", code),
		StatusCode: http.StatusNotFound,
	}
}

// QuantityMismatch is returned when the per-lot quantities of a multi-lot
// receipt do not sum to the purchase order's ordered quantity.
func QuantityMismatch(received, ordered int) *AppError {
	return &AppError{
		Err:        ErrQuantityMismatch,
		Code:       "QUANTITY_MISMATCH",
		Message:    fmt.Sprintf("total across lots (%d) does not match ordered quantity (%d)", received, ordered),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// InsufficientStock is returned by the reject negative-stock policy when a
// withdrawal would drive a lot's stock below zero.
func InsufficientStock() *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    "withdrawal exceeds available stock for this lot",
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
