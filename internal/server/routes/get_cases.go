package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"

	"github.com/labstack/echo/v4"
)

// GetCaseHandler returns the properties of one case node.
func GetCaseHandler(c echo.Context) error {
	type getCaseParams struct {
		CaseID string `param:"caseId" validate:"required,numeric"`
	}

	params := new(getCaseParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	if app.Cases == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Case not found"})
	}

	props, err := app.Cases.CaseByID(c.Request().Context(), params.CaseID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Case not found"})
	}
	if err != nil {
		logger.Error("Failed to load case", "case_id", params.CaseID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, props)
}
