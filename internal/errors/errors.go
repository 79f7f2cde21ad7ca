package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned when a request body or parameter is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail is returned when registering an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned for missing, malformed, expired or revoked tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrForbidden is returned when the caller is authenticated but lacks the required role.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrUserNotFound is returned when a token refers to a user that no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrCategoryNotFound is returned when a category is missing or inactive.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProductNotFound is returned when a product is missing or inactive.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound is returned when an order is missing or owned by another user.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductUnavailable is returned when an order references a missing or inactive product.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrInsufficientStock is returned when an order asks for more units than are in stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStatusTransition is returned when an order status change is not allowed.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Path   string `json:"path,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var mappings = []struct {
	target error
	status int
	code   string
}{
	{ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{ErrDuplicateEmail, http.StatusBadRequest, "EMAIL_ALREADY_REGISTERED"},
	{ErrProductUnavailable, http.StatusBadRequest, "PRODUCT_UNAVAILABLE"},
	{ErrInsufficientStock, http.StatusBadRequest, "INSUFFICIENT_STOCK"},
	{ErrInvalidStatusTransition, http.StatusBadRequest, "INVALID_STATUS_TRANSITION"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{ErrCategoryNotFound, http.StatusNotFound, "CATEGORY_NOT_FOUND"},
	{ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
}

// MapErrorToHTTP maps domain errors to HTTP errors. Wrapped sentinels keep their
// wrapping message; anything unknown becomes a generic internal error.
func MapErrorToHTTP(err error) *HTTPError {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return NewHTTPError(m.status, err.Error(), m.code)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
