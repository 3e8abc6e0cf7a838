package middleware

import (
	"context"

	"github.com/OFFIS-RIT/graph-explorer/internal/metrics"
	"github.com/OFFIS-RIT/graph-explorer/internal/storage"
	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/prompt"
	"github.com/OFFIS-RIT/graph-explorer/pkg/questions"
	"github.com/OFFIS-RIT/graph-explorer/pkg/search"
	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"
	"github.com/OFFIS-RIT/graph-explorer/pkg/vector"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

// CypherRunner executes read-only Cypher.
type CypherRunner interface {
	RunReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// OpinionStore serves the opinion document of a case.
type OpinionStore interface {
	OpinionForCase(ctx context.Context, caseID string) (storage.Opinion, error)
}

// CaseLookup loads the properties of a case node.
type CaseLookup interface {
	CaseByID(ctx context.Context, id string) (map[string]any, error)
}

// VectorFetcher loads vector records by id.
type VectorFetcher interface {
	Fetch(ctx context.Context, namespace string, ids []string) ([]vector.Record, error)
}

// Publisher sends messages to the queue broker.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// App holds the process wide dependencies of the HTTP handlers. Documents,
// Vectors and Queue are nil when their backing service is not configured.
type App struct {
	Dataset      string
	Domain       prompt.Domain
	Materializer *graph.Materializer
	Stats        *stats.Cache
	Questions    *questions.Generator
	Searcher     *search.Searcher
	Graph        CypherRunner
	Cases        CaseLookup
	Documents    OpinionStore
	Vectors      VectorFetcher
	Queue        Publisher
	Metrics      *metrics.Metrics
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
