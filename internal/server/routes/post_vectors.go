package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/vector"

	"github.com/labstack/echo/v4"
)

// PostVectorsHandler returns the stored e-mail chunk vectors with the given ids.
func PostVectorsHandler(c echo.Context) error {
	type postVectorsBody struct {
		IDs []string `json:"ids" validate:"required,min=1,max=1000"`
	}

	data := new(postVectorsBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	if app.Vectors == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Vector index not configured"})
	}

	records, err := app.Vectors.Fetch(c.Request().Context(), vector.NamespaceEmails, data.IDs)
	if err != nil {
		logger.Error("Failed to fetch vectors", "ids", len(data.IDs), "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{"results": records})
}
