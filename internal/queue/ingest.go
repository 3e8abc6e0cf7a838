package queue

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/OFFIS-RIT/graph-explorer/internal/storage"
	"github.com/OFFIS-RIT/graph-explorer/internal/util"
	"github.com/OFFIS-RIT/graph-explorer/pkg/extract"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"
	neo4jstore "github.com/OFFIS-RIT/graph-explorer/pkg/store/neo4j"
	"github.com/OFFIS-RIT/graph-explorer/pkg/vector"

	"golang.org/x/time/rate"
)

// ChunkWidth is the maximum length of an embedded body chunk.
const ChunkWidth = 512

// UpsertBatchSize is the number of vectors written per index transaction.
const UpsertBatchSize = 100

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether a failed message should go to the retry queue
// rather than straight to the dead-letter queue.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	return !errors.Is(err, neo4jstore.ErrDecode) && !errors.Is(err, context.Canceled)
}

type graphWriter interface {
	SaveEmail(ctx context.Context, tx store.EmailTransaction) error
	SaveCase(ctx context.Context, c store.CaseRecord) error
}

type opinionWriter interface {
	PutOpinions(ctx context.Context, caseID string, opinions []storage.Opinion) error
}

type entityExtractor interface {
	Extract(ctx context.Context, texts []string) (extract.Result, error)
}

type vectorUpserter interface {
	Upsert(ctx context.Context, namespace string, records []vector.Record) error
}

// locker serializes work on one e-mail transaction or case across workers.
type locker interface {
	WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type embedder interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

// Ingester writes e-mails and court cases to the graph and their text chunks
// to the vector index.
//
// An Ingester should be created using NewIngester.
type Ingester struct {
	graph     graphWriter
	index     vectorUpserter
	ai        embedder
	documents opinionWriter
	extractor entityExtractor
	locker    locker
	limiter   *rate.Limiter
	retry     util.RetryParams
	batchSize int
}

// NewIngesterParams configures NewIngester. EmbeddingsPerSecond <= 0 disables
// rate limiting. Locker is optional; when set each transaction or case is
// written under a lease keyed by its id. Documents stores opinion texts and
// Extractor adds named entities to cases; both are optional.
// UpsertBatchSize defaults to UpsertBatchSize.
type NewIngesterParams struct {
	Graph               graphWriter
	Index               vectorUpserter
	AI                  embedder
	Documents           opinionWriter
	Extractor           entityExtractor
	Locker              locker
	EmbeddingsPerSecond float64
	UpsertBatchSize     int
}

func NewIngester(params NewIngesterParams) *Ingester {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if params.EmbeddingsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(params.EmbeddingsPerSecond), 1)
	}
	batchSize := params.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = UpsertBatchSize
	}
	return &Ingester{
		graph:     params.Graph,
		index:     params.Index,
		ai:        params.AI,
		documents: params.Documents,
		extractor: params.Extractor,
		locker:    params.Locker,
		limiter:   limiter,
		retry: util.RetryParams{
			MaxTries:  3,
			Backoff:   500 * time.Millisecond,
			Retryable: IsRetryable,
		},
		batchSize: batchSize,
	}
}

// ProcessIngestMessage handles one ingest_queue message body. Incomplete
// e-mails are acknowledged without being written.
func (in *Ingester) ProcessIngestMessage(ctx context.Context, body []byte) error {
	msg, err := decodeIngestMessage(body)
	if err != nil {
		return err
	}

	email, err := ParseEmail(msg.Message)
	if errors.Is(err, ErrIncomplete) {
		logger.Warn("[Ingest] Skipping email", "job_id", msg.ID, "reason", err)
		return nil
	}
	if err != nil {
		return err
	}

	if in.locker == nil {
		return in.store(ctx, msg.ID, email)
	}
	return in.locker.WithLease(ctx, "ingest:"+email.TransactionID, func(ctx context.Context) error {
		return in.store(ctx, msg.ID, email)
	})
}

func (in *Ingester) store(ctx context.Context, jobID string, email ParsedEmail) error {
	if err := in.graph.SaveEmail(ctx, email.EmailTransaction); err != nil {
		return graphError(err)
	}

	records, err := in.embedChunks(ctx, email)
	if err != nil {
		return err
	}
	if err := in.upsert(ctx, vector.NamespaceEmails, records); err != nil {
		return err
	}

	logger.Info("[Ingest] Stored email", "job_id", jobID, "transaction_id", email.TransactionID, "chunks", len(records))
	return nil
}

func (in *Ingester) embedChunks(ctx context.Context, email ParsedEmail) ([]vector.Record, error) {
	chunks := util.WrapText(util.SanitizePostgresText(email.Body), ChunkWidth)
	metadata := map[string]string{
		"email_from":      util.SanitizePostgresText(email.From),
		"email_to":        util.SanitizePostgresText(email.RawTo),
		"email_subject":   util.SanitizePostgresText(email.Subject),
		"email_sent_date": util.SanitizePostgresText(email.SentDate),
		"transaction_id":  email.TransactionID,
	}
	return in.embed(ctx, email.TransactionID+"_", chunks, metadata)
}

// embed returns one record per chunk with id idPrefix plus the chunk index.
// Each record carries metadata plus the chunk itself; empty values are stored
// as the null marker.
func (in *Ingester) embed(ctx context.Context, idPrefix string, chunks []string, metadata map[string]string) ([]vector.Record, error) {
	records := make([]vector.Record, 0, len(chunks))
	for i, chunk := range chunks {
		if err := in.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		embedding, err := util.RetryWithContext(ctx, in.retry, func(ctx context.Context) ([]float32, error) {
			return in.ai.GenerateEmbedding(ctx, []byte(chunk))
		})
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}

		meta := maps.Clone(metadata)
		meta["chunk"] = chunk
		records = append(records, vector.Record{
			ID:       idPrefix + strconv.Itoa(i),
			Values:   embedding,
			Metadata: vector.WithNullDefaults(meta, slices.Collect(maps.Keys(meta))...),
		})
	}
	return records, nil
}

// upsert writes records in batches of at most batchSize.
func (in *Ingester) upsert(ctx context.Context, namespace string, records []vector.Record) error {
	return store.ChunkRange(len(records), in.batchSize, func(start, end int) error {
		if err := in.index.Upsert(ctx, namespace, records[start:end]); err != nil {
			return fmt.Errorf("upsert %s chunks %d-%d: %w", namespace, start, end, err)
		}
		return nil
	})
}

func graphError(err error) error {
	if !neo4jstore.IsRetryable(err) {
		return Permanent(err)
	}
	return err
}
