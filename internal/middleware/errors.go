package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "autoparts/internal/errors"
	"autoparts/internal/logger"
)

// ErrorHandler renders every error as an errors.ErrorResponse. Outside
// production, internal errors carry the underlying message in Detail.
func ErrorHandler(production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := renderError(err, c, production)
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.FromContext(c.Request().Context()).Error("write error response", "error", err)
		}
	}
}

func renderError(err error, c echo.Context, production bool) (int, apperrors.ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusNotFound {
			return he.Code, apperrors.ErrorResponse{
				Error: "route not found",
				Code:  "NOT_FOUND",
				Path:  c.Request().URL.Path,
			}
		}
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		return he.Code, apperrors.ErrorResponse{Error: msg, Code: statusCode(he.Code)}
	}

	httpErr := apperrors.MapErrorToHTTP(err)
	resp := httpErr.ToErrorResponse()
	if httpErr.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(c.Request().Context()).Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		if !production {
			resp.Detail = err.Error()
		}
	}
	return httpErr.StatusCode, resp
}

// statusCode turns 413 into "REQUEST_ENTITY_TOO_LARGE".
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("HTTP_%d", status)
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}
