package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DeleteStatsHandler drops the cached statistics snapshot.
func DeleteStatsHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if err := app.Stats.Invalidate(c.Request().Context()); err != nil {
		logger.Error("[Stats] Failed to invalidate cache", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.NoContent(http.StatusNoContent)
}
