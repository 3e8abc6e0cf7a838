package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/graph-explorer/internal/config"
	"github.com/OFFIS-RIT/graph-explorer/internal/metrics"
	"github.com/OFFIS-RIT/graph-explorer/internal/queue"
	mid "github.com/OFFIS-RIT/graph-explorer/internal/server/middleware"
	"github.com/OFFIS-RIT/graph-explorer/internal/storage"
	"github.com/OFFIS-RIT/graph-explorer/internal/util"
	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/prompt"
	"github.com/OFFIS-RIT/graph-explorer/pkg/questions"
	"github.com/OFFIS-RIT/graph-explorer/pkg/search"
	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"
	gdb "github.com/OFFIS-RIT/graph-explorer/pkg/store/neo4j"
	"github.com/OFFIS-RIT/graph-explorer/pkg/summarize"
	"github.com/OFFIS-RIT/graph-explorer/pkg/vector"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewEcho creates the HTTP server for app. timeout bounds the context of
// every request; timeout <= 0 disables it.
func NewEcho(app *mid.App, timeout time.Duration) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("16M"))
	if timeout > 0 {
		e.Use(middleware.ContextTimeout(timeout))
	}

	RegisterRoutes(e, app)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataset := config.Dataset()
	domain := prompt.DomainByName(dataset)
	met := metrics.NewMetrics()

	aiClient, err := config.NewAIClient(met.RecordTokens)
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}

	graphClient, err := config.NewGraphClient(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to graph database", "err", err)
	}
	defer graphClient.Close(context.Background())
	graphStore := gdb.NewGraphStore(graphClient)

	if err := config.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}
	conn, err := config.NewVectorPool(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	index := vector.NewIndex(conn)

	var statsStore stats.Store
	if redisURL := util.GetEnv("REDIS_URL"); redisURL != "" {
		rdb, err := stats.NewRedisClient(ctx, redisURL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "err", err)
		}
		defer rdb.Close()
		statsStore = stats.NewRedisStore(rdb, stats.DefaultRedisKey+":"+dataset)
	}
	statsCache := stats.NewCache(stats.CacheParams{
		Source:    graphStore,
		Store:     statsStore,
		TTL:       util.GetEnvSeconds("STATS_TTL_SECONDS", 0),
		OnLookup:  met.StatsLookup,
		OnCompute: met.StatsCompute,
	})

	var (
		source graph.RecordSource
		limit  int
	)
	if dataset == config.DatasetCases {
		source, limit = gdb.NewCaseNeighborhood(graphClient), graph.CaseGraphLimit
	} else {
		source, limit = gdb.NewEmailNeighborhood(graphClient), graph.EmailGraphLimit
	}

	summarizer := summarize.NewSummarizer(summarize.NewSummarizerParams{
		Client:      aiClient,
		MaxTokens:   util.GetEnvInt("SUMMARY_MAX_TOKENS", summarize.DefaultMaxTokens),
		MaxParallel: util.GetEnvInt("AI_PARALLEL_REQ", 15),
		Model:       util.GetEnv("AI_SUMMARY_MODEL"),
		Temperature: util.GetEnvNumeric("AI_SUMMARY_TEMPERATURE", 0),
		Thinking:    util.GetEnv("AI_THINKING"),
	})

	app := &mid.App{
		Dataset: dataset,
		Domain:  domain,
		Materializer: graph.NewMaterializer(graph.NewMaterializerParams{
			Source:           source,
			Limit:            limit,
			NormalizeDegrees: dataset == config.DatasetEmails,
		}),
		Stats: statsCache,
		Questions: questions.NewGenerator(questions.NewGeneratorParams{
			Client:      aiClient,
			Stats:       statsCache,
			Model:       util.GetEnv("AI_QUESTION_MODEL"),
			Temperature: util.GetEnvNumeric("AI_QUESTION_TEMPERATURE", 0),
			Thinking:    util.GetEnv("AI_THINKING"),
		}),
		Graph:   graphStore,
		Cases:   graphStore,
		Vectors: index,
		Metrics: met,
	}

	searchParams := search.NewSearcherParams{
		AI:         aiClient,
		Index:      index,
		Emails:     graphStore,
		Summarizer: summarizer,
	}
	if bucket := util.GetEnv("AWS_BUCKET"); bucket != "" {
		s3Client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		documents := storage.NewDocumentStore(s3Client, bucket)
		app.Documents = documents
		searchParams.Opinions = documents
	}
	app.Searcher = search.NewSearcher(searchParams)

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, []string{queue.IngestQueue, queue.CaseIngestQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}
	app.Queue = ch

	e := NewEcho(app, util.GetEnvSeconds("REQUEST_TIMEOUT_SECONDS", 30))

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port, "dataset", dataset)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
