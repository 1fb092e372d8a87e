// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"fabrica/internal/core/id"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientAvail      = "INSUFFICIENT_AVAILABILITY"
	CodeDocumentCommitted      = "DOCUMENT_ALREADY_COMMITTED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Conflict (409)
	CodeAvailabilityConflict = "AVAILABILITY_CONFLICT"
	CodeRecipeExhausted      = "RECIPE_EXHAUSTED"
	CodeConflict             = "CONFLICT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the engine.
// It implements the error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientAvailability reports that an item cannot be covered by stock
// and no production alternative remains.
func NewInsufficientAvailability(itemID id.ID, required, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientAvail,
		Message:    "Insufficient availability",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"item_id":   itemID.String(),
			"required":  required,
			"available": available,
		},
	}
}

// NewAvailabilityConflict is raised by the store at commit time when stock was
// consumed concurrently since the availability check. The resolver reacts by
// advancing to the next recipe candidate for the item.
func NewAvailabilityConflict(itemID id.ID) *AppError {
	return &AppError{
		Code:       CodeAvailabilityConflict,
		Message:    "Stock availability changed during commit",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"item_id": itemID.String()},
	}
}

// NewRecipeExhausted is an internal outcome: no recipe candidate remains for an
// item. Callers convert it to an insufficient-availability error before it
// leaves the resolver.
func NewRecipeExhausted(itemID id.ID) *AppError {
	return &AppError{
		Code:       CodeRecipeExhausted,
		Message:    "No production recipe candidate remains",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"item_id": itemID.String()},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsInsufficientAvailability checks if error is CodeInsufficientAvail.
func IsInsufficientAvailability(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeInsufficientAvail
	}
	return false
}

// AvailabilityConflictItem returns the item carried by an availability-conflict
// error, if err is one. This is the tagged variant the resolver branches on
// instead of using error propagation as control flow.
func AvailabilityConflictItem(err error) (id.ID, bool) {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != CodeAvailabilityConflict {
		return id.Nil(), false
	}
	raw, ok := appErr.Details["item_id"].(string)
	if !ok {
		return id.Nil(), false
	}
	itemID, parseErr := id.Parse(raw)
	if parseErr != nil {
		return id.Nil(), false
	}
	return itemID, true
}
