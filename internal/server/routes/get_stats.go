package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"

	"github.com/labstack/echo/v4"
)

// GetStatsHandler returns the cached graph statistics, reduced unless
// full=true is requested.
func GetStatsHandler(c echo.Context) error {
	type getStatsParams struct {
		Full bool `query:"full"`
	}

	params := new(getStatsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	var (
		s   stats.GraphStats
		err error
	)
	if params.Full {
		s, err = app.Stats.Get(ctx)
	} else {
		s, err = app.Stats.Reduced(ctx)
	}
	if err != nil {
		logger.Error("[Stats] Failed to load graph statistics", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, s)
}
