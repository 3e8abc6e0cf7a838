// Package config builds the external clients shared by the server and the
// worker from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graph-explorer/internal/util"
	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"
	oai "github.com/OFFIS-RIT/graph-explorer/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/graph-explorer/pkg/ai/openai"
	gdb "github.com/OFFIS-RIT/graph-explorer/pkg/store/neo4j"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	DatasetEmails = "enron"
	DatasetCases  = "scotus"
)

// Dataset returns the configured dataset, defaulting to the e-mail graph.
func Dataset() string {
	if util.GetEnv("DATASET") == DatasetCases {
		return DatasetCases
	}
	return DatasetEmails
}

// NewAIClient creates the language model client selected by AI_ADAPTER.
// onMetrics, when set, receives the token usage of every request.
func NewAIClient(onMetrics func(ai.ModelMetrics)) (ai.GraphAIClient, error) {
	parallel := int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15))
	dim := util.GetEnvInt("AI_EMBED_DIM", 1536)

	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingDim:   dim,

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: parallel,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create Ollama client: %w", err)
		}
		if onMetrics != nil {
			client.OnMetrics(onMetrics)
		}
		return client, nil
	default:
		client := gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingDim:   dim,

			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),

			MaxConcurrentRequests: parallel,
		})
		if onMetrics != nil {
			client.OnMetrics(onMetrics)
		}
		return client, nil
	}
}

// NewGraphClient creates the Neo4j client and verifies connectivity.
func NewGraphClient(ctx context.Context) (*gdb.Client, error) {
	client, err := gdb.NewClient(gdb.NewClientParams{
		URI:      util.GetEnv("NEO4J_URI"),
		Username: util.GetEnv("NEO4J_USERNAME"),
		Password: util.GetEnv("NEO4J_PASSWORD"),
		Database: util.GetEnv("NEO4J_DATABASE"),
	})
	if err != nil {
		return nil, err
	}
	if err := client.Verify(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("could not reach Neo4j: %w", err)
	}
	return client, nil
}

// NewVectorPool connects to DATABASE_URL with the pgvector types registered
// on every connection.
func NewVectorPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	return pool, nil
}

// RunMigrations applies the SQL migrations under MIGRATIONS_PATH to
// DATABASE_URL.
func RunMigrations() error {
	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	m, err := migrate.New("file://"+util.GetEnvString("MIGRATIONS_PATH", "migrations"), databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
