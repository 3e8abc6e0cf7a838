package routes

import (
	"encoding/json"
	"net/http"

	"github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/prompt"

	"github.com/labstack/echo/v4"
)

type questionsChunk struct {
	prompt.Questions
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// PostQuestionsHandler streams generated questions for a subgraph as
// newline delimited JSON. Every line is the partial object decoded so far;
// the last line has done set or carries an error.
func PostQuestionsHandler(c echo.Context) error {
	type postQuestionsBody struct {
		Nodes   []graph.Node `json:"nodes"`
		Links   []graph.Link `json:"links"`
		Summary string       `json:"summary"`
	}

	data := new(postQuestionsBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	sg := graph.Subgraph{Nodes: data.Nodes, Links: data.Links}
	if sg.Nodes == nil {
		sg.Nodes = []graph.Node{}
	}
	if sg.Links == nil {
		sg.Links = []graph.Link{}
	}

	updates, err := app.Questions.Stream(ctx, app.Domain, sg, data.Summary)
	if err != nil {
		logger.Error("[Questions] Failed to start generation", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Response())
	for u := range updates {
		chunk := questionsChunk{Questions: u.Questions, Done: u.Done}
		if u.Err != nil {
			chunk = questionsChunk{Error: "Question generation failed"}
		}
		if err := enc.Encode(chunk); err != nil {
			return err
		}
		c.Response().Flush()
	}
	return nil
}
