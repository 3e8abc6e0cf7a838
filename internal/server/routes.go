package server

import (
	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, app *middleware.App) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	if app.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(app.Metrics.Handler()))
	}

	apiRoutes := e.Group("/api")

	// Graph routes
	apiRoutes.POST("/graph", routes.PostGraphHandler)
	apiRoutes.POST("/cypher", routes.PostCypherHandler)
	apiRoutes.POST("/questions", routes.PostQuestionsHandler)

	// Statistics routes
	apiRoutes.GET("/stats", routes.GetStatsHandler)
	apiRoutes.DELETE("/stats", routes.DeleteStatsHandler)

	// Search routes
	apiRoutes.POST("/search", routes.PostSearchHandler)
	apiRoutes.POST("/vectors", routes.PostVectorsHandler)
	apiRoutes.GET("/opinions/:caseId", routes.GetOpinionHandler)
	apiRoutes.GET("/cases/:caseId", routes.GetCaseHandler)

	// Ingest routes
	apiRoutes.POST("/ingest/emails", routes.PostIngestEmailsHandler)
	apiRoutes.POST("/ingest/cases", routes.PostIngestCasesHandler)
}
