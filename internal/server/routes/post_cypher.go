package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PostCypherHandler runs a generated query in a read-only transaction.
func PostCypherHandler(c echo.Context) error {
	type postCypherBody struct {
		Cypher string         `json:"cypher" validate:"required"`
		Params map[string]any `json:"params"`
	}

	data := new(postCypherBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	rows, err := app.Graph.RunReadQuery(c.Request().Context(), data.Cypher, data.Params)
	if err != nil {
		logger.Warn("[Cypher] Query failed", "err", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Query failed"})
	}

	return c.JSON(http.StatusOK, map[string]any{"rows": rows})
}
