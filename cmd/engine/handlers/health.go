package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chigozzdevv/zecflow-sub000/common/db"
)

// HealthHandler reports service and database health
type HealthHandler struct {
	db      *db.DB
	service string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(database *db.DB, service string) *HealthHandler {
	return &HealthHandler{db: database, service: service}
}

// Health checks service health
// GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	if err := h.db.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "degraded",
			"service": h.service,
			"error":   "database unreachable",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"service": h.service,
	})
}
