package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/internal/storage"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"

	"github.com/labstack/echo/v4"
)

func GetOpinionHandler(c echo.Context) error {
	type getOpinionParams struct {
		CaseID string `param:"caseId" validate:"required,numeric"`
	}

	params := new(getOpinionParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	if app.Documents == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Opinion not found"})
	}

	opinion, err := app.Documents.OpinionForCase(c.Request().Context(), params.CaseID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Opinion not found"})
	}
	if err != nil {
		logger.Error("Failed to load opinion", "case_id", params.CaseID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, opinion)
}
