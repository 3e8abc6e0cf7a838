package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/graph-explorer/internal/config"
	"github.com/OFFIS-RIT/graph-explorer/internal/metrics"
	"github.com/OFFIS-RIT/graph-explorer/internal/queue"
	"github.com/OFFIS-RIT/graph-explorer/internal/storage"
	"github.com/OFFIS-RIT/graph-explorer/internal/util"
	"github.com/OFFIS-RIT/graph-explorer/pkg/extract"
	"github.com/OFFIS-RIT/graph-explorer/pkg/leaselock"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger/console"
	gdb "github.com/OFFIS-RIT/graph-explorer/pkg/store/neo4j"
	"github.com/OFFIS-RIT/graph-explorer/pkg/vector"

	"github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	met := metrics.NewMetrics()
	if addr := util.GetEnv("METRICS_ADDR"); addr != "" {
		go func() {
			logger.Info("Serving metrics", "addr", addr)
			if err := http.ListenAndServe(addr, met.Handler()); err != nil {
				logger.Error("Metrics server stopped", "err", err)
			}
		}()
	}

	// GraphAiClient
	aiClient, err := config.NewAIClient(met.RecordTokens)
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	// Graph store
	graphClient, err := config.NewGraphClient(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to graph database", "err", err)
	}
	defer graphClient.Close(context.Background())

	// Init pgx client
	if err := config.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}
	pgConn, err := config.NewVectorPool(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	ingestParams := queue.NewIngesterParams{
		Graph: gdb.NewGraphStore(graphClient),
		Index: vector.NewIndex(pgConn),
		AI:    aiClient,
		Locker: leaselock.NewLocker(pgConn, leaselock.NewLockerParams{
			TTL:   util.GetEnvSeconds("INGEST_LEASE_SECONDS", 120),
			Owner: hostname() + ":",
		}),
		EmbeddingsPerSecond: util.GetEnvNumeric("AI_EMBED_RPS", 0),
		UpsertBatchSize:     util.GetEnvInt("UPSERT_BATCH_SIZE", queue.UpsertBatchSize),
	}
	if bucket := util.GetEnv("AWS_BUCKET"); bucket != "" {
		s3Client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to create S3 client", "err", err)
		}
		ingestParams.Documents = storage.NewDocumentStore(s3Client, bucket)
	}
	if util.GetEnvBool("CASE_EXTRACT_ENTITIES", true) {
		ingestParams.Extractor = extract.NewExtractor(extract.NewExtractorParams{
			Client:      aiClient,
			MaxParallel: util.GetEnvInt("AI_PARALLEL_REQ", 15),
			Model:       util.GetEnv("AI_EXTRACT_MODEL"),
		})
	}
	ingester := queue.NewIngester(ingestParams)
	handlers := map[string]func(context.Context, []byte) error{
		queue.IngestQueue:     ingester.ProcessIngestMessage,
		queue.CaseIngestQueue: ingester.ProcessCaseMessage,
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue, queue.CaseIngestQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// Only one unacknowledged message at a time
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	emailMsgs := consume(ch, queue.IngestQueue)
	caseMsgs := consume(ch, queue.CaseIngestQueue)
	logger.Info("Listening for messages", "queues", []string{queue.IngestQueue, queue.CaseIngestQueue})

	for {
		var (
			msg amqp091.Delivery
			ok  bool
			key string
		)
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok = <-emailMsgs:
			key = queue.IngestQueue
		case msg, ok = <-caseMsgs:
			key = queue.CaseIngestQueue
		}
		if !ok {
			logger.Info("Message channel closed", "queue", key)
			return
		}
		startTime := time.Now()

		processingErr := handlers[key](ctx, msg.Body)
		if processingErr != nil {
			logger.Error("Error processing message", "queue", key, "err", processingErr)
		}
		met.ObserveIngest(processingErr)
		queue.HandleResult(ch, msg, key, processingErr)

		usage := aiClient.GetMetrics()
		logger.Info(
			"AI Metrics",
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens,
			"duration", formatDuration(time.Duration(usage.DurationMs)*time.Millisecond),
		)
		logger.Info("Processing time", "queue", key, "duration", formatDuration(time.Since(startTime)))
		aiClient.ResetMetrics()
	}
}

func consume(ch *amqp091.Channel, key string) <-chan amqp091.Delivery {
	msgs, err := ch.Consume(
		key,
		key+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", key, "err", err)
	}
	return msgs
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "worker"
	}
	return name
}
