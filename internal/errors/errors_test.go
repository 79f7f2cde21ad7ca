package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR", "validation failed"},
		{"wrapped stock", fmt.Errorf("%w: product 7 has 2 left", ErrInsufficientStock), http.StatusBadRequest, "INSUFFICIENT_STOCK", "insufficient stock: product 7 has 2 left"},
		{"duplicate email", ErrDuplicateEmail, http.StatusBadRequest, "EMAIL_ALREADY_REGISTERED", "email already registered"},
		{"credentials", ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN", "insufficient permissions"},
		{"product not found", ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found"},
		{"database failure", sql.ErrConnDone, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
			assert.Equal(t, tt.wantMsg, httpErr.Message)
			assert.Equal(t, ErrorResponse{Error: tt.wantMsg, Code: tt.wantCode}, httpErr.ToErrorResponse())
		})
	}
}
