package errors

import (
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrInvalidCredentials ErrorCode = "40101"
	ErrTokenExpired       ErrorCode = "40102"

	// Authorization errors (403xx)
	ErrForbidden ErrorCode = "40301"

	// Resource errors (404xx)
	ErrReviewNotFound ErrorCode = "40401"
	ErrUserNotFound   ErrorCode = "40402"

	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"

	// Server errors (500xx)
	ErrInternalServer     ErrorCode = "50001"
	ErrStorageUnavailable ErrorCode = "50301"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
}

// Common errors
var (
	ErrInvalidCredentialsError = &APIError{
		Code:       ErrInvalidCredentials,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	ErrReviewNotFoundError = &APIError{
		Code:       ErrReviewNotFound,
		Message:    "Review not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUserNotFoundError = &APIError{
		Code:       ErrUserNotFound,
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrStorageUnavailableError = &APIError{
		Code:       ErrStorageUnavailable,
		Message:    "Storage unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// NewValidationError creates a validation error with details.
// Details names the field at fault so malformed filter criteria are
// rejected explicitly rather than silently ignored.
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewErrorResponse wraps an APIError with the request ID for the response body
func NewErrorResponse(err *APIError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Error:     *err,
		RequestID: requestID,
	}
}
