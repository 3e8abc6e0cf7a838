package routes

import (
	"encoding/json"
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/queue"
	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PostIngestEmailsHandler enqueues raw e-mails for the worker and returns
// one job id per message.
func PostIngestEmailsHandler(c echo.Context) error {
	type postIngestBody struct {
		Messages []string `json:"messages" validate:"required,min=1,dive,required"`
	}

	data := new(postIngestBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Ingest queue not configured"})
	}

	ids := make([]string, 0, len(data.Messages))
	for _, raw := range data.Messages {
		msg, err := queue.NewIngestMessage(raw)
		if err != nil {
			logger.Error("[Ingest] Failed to create message", "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		body, err := json.Marshal(msg)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		if err := queue.PublishFIFO(app.Queue, queue.IngestQueue, "application/json", body); err != nil {
			logger.Error("[Ingest] Failed to enqueue message", "id", msg.ID, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"error": "Failed to enqueue messages", "ids": ids})
		}
		ids = append(ids, msg.ID)
	}

	logger.Info("[Ingest] Enqueued e-mails", "count", len(ids))
	return c.JSON(http.StatusAccepted, map[string]any{"ids": ids})
}

// PostIngestCasesHandler enqueues court cases with their opinion texts for
// the worker and returns one job id per case.
func PostIngestCasesHandler(c echo.Context) error {
	type postIngestCase struct {
		Case     queue.Case          `json:"case"`
		Opinions []queue.OpinionText `json:"opinions"`
	}
	type postIngestCasesBody struct {
		Cases []postIngestCase `json:"cases" validate:"required,min=1,dive"`
	}

	data := new(postIngestCasesBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Ingest queue not configured"})
	}

	ids := make([]string, 0, len(data.Cases))
	for _, item := range data.Cases {
		msg, err := queue.NewCaseIngestMessage(item.Case, item.Opinions)
		if err != nil {
			logger.Error("[Ingest] Failed to create message", "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		body, err := json.Marshal(msg)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
		if err := queue.PublishFIFO(app.Queue, queue.CaseIngestQueue, "application/json", body); err != nil {
			logger.Error("[Ingest] Failed to enqueue message", "id", msg.ID, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"error": "Failed to enqueue messages", "ids": ids})
		}
		ids = append(ids, msg.ID)
	}

	logger.Info("[Ingest] Enqueued cases", "count", len(ids))
	return c.JSON(http.StatusAccepted, map[string]any{"ids": ids})
}
