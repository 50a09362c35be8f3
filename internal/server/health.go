package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/receipts-api/internal/common"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	version string
	timeout time.Duration
}

func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version, timeout: 2 * time.Second}
}

// HandleHealth returns server health status
func (h *HealthHandler) HandleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return common.NewAppError(common.CodeUnavailable, "database unavailable", err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"version":  h.version,
		"database": "up",
	})
}
