package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"autoparts/internal/logger"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler creates a health handler that checks the database with ping.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

// Health godoc
// @Summary Service and database health
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "OK",
		Message:   "auto parts API is running",
		Timestamp: time.Now().UTC(),
		Database:  "connected",
	}
	if err := h.ping(ctx); err != nil {
		logger.FromContext(ctx).Error("health check: database unreachable", "error", err)
		resp.Status = "ERROR"
		resp.Message = "database unavailable"
		resp.Database = "disconnected"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Liveness answers plain "ok" without touching dependencies.
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
