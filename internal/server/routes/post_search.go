package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/config"
	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PostSearchHandler runs a semantic search over the served dataset.
func PostSearchHandler(c echo.Context) error {
	type postSearchBody struct {
		Query string `json:"query" validate:"required"`
	}

	data := new(postSearchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if app.Dataset == config.DatasetCases {
		res, err := app.Searcher.CaseSearch(ctx, data.Query)
		if err != nil {
			logger.Error("[Search] Case search failed", "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Search failed"})
		}
		return c.JSON(http.StatusOK, res)
	}

	res, err := app.Searcher.EmailSearch(ctx, data.Query)
	if err != nil {
		logger.Error("[Search] Email search failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Search failed"})
	}
	return c.JSON(http.StatusOK, res)
}
