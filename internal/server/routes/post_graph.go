package routes

import (
	"net/http"
	"time"

	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"

	"github.com/labstack/echo/v4"
)

type graphResponse struct {
	Data graph.Subgraph `json:"data"`
}

// PostGraphHandler materializes the subgraph around the selected nodes.
// Failures return a bare 500 without a partial result.
func PostGraphHandler(c echo.Context) error {
	type postGraphBody struct {
		SelectedNodes []string `json:"selectedNodes"`
	}

	data := new(postGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	start := time.Now()
	sg, err := app.Materializer.Materialize(ctx, data.SelectedNodes)
	app.Metrics.ObserveMaterialize(app.Dataset, time.Since(start), len(sg.Nodes), len(sg.Links), err)
	if err != nil {
		logger.Error("[Materialize] Failed to build subgraph", "seeds", len(data.SelectedNodes), "err", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, graphResponse{Data: sg})
}
