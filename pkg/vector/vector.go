// Package vector is the nearest-neighbour index over text chunk embeddings,
// stored in PostgreSQL with pgvector.
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Namespaces of the two datasets.
const (
	NamespaceEmails = "enron"
	NamespaceCases  = "scotus"
)

// DefaultTopK is the number of neighbours returned to search.
const DefaultTopK = 20

// NullValue marks metadata that was missing at ingest time.
const NullValue = "null"

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Record is one stored embedding.
type Record struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// Match is a query result. Score is the cosine similarity.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// Index queries and writes vector records.
//
// An Index should be created using NewIndex. The connection must have the
// pgvector types registered.
type Index struct {
	conn pgxIConn
}

func NewIndex(conn pgxIConn) *Index {
	return &Index{conn: conn}
}

const queryNearest = `
SELECT id, 1 - (embedding <=> $2) AS score, metadata
FROM vector_records
WHERE namespace = $1
ORDER BY embedding <=> $2
LIMIT $3`

// Query returns the topK records of namespace closest to embedding, most
// similar first.
func (i *Index) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]Match, error) {
	if namespace == "" {
		return nil, errors.New("namespace is required")
	}
	if len(embedding) == 0 {
		return nil, errors.New("embedding is empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	rows, err := i.conn.Query(ctx, queryNearest, namespace, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var (
			m    Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Score, &meta); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		if m.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	return matches, nil
}

const queryFetch = `
SELECT id, embedding, metadata
FROM vector_records
WHERE namespace = $1 AND id = ANY($2)`

// Fetch returns the records with the given ids in the order of ids; unknown
// ids are skipped.
func (i *Index) Fetch(ctx context.Context, namespace string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}

	rows, err := i.conn.Query(ctx, queryFetch, namespace, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch vectors: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Record, len(ids))
	for rows.Next() {
		var (
			r    Record
			vec  pgvector.Vector
			meta []byte
		)
		if err := rows.Scan(&r.ID, &vec, &meta); err != nil {
			return nil, fmt.Errorf("scan vector record: %w", err)
		}
		r.Values = vec.Slice()
		if r.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch vectors: %w", err)
	}

	out := make([]Record, 0, len(byID))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
			delete(byID, id)
		}
	}
	return out, nil
}

const upsertRecord = `
INSERT INTO vector_records (namespace, id, embedding, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (namespace, id) DO UPDATE
SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`

// Upsert writes records in one transaction.
func (i *Index) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if namespace == "" {
		return errors.New("namespace is required")
	}

	tx, err := i.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	for _, r := range records {
		if strings.TrimSpace(r.ID) == "" || len(r.Values) == 0 {
			return fmt.Errorf("invalid vector record %q", r.ID)
		}
		meta, err := json.Marshal(nonNilMetadata(r.Metadata))
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertRecord, namespace, r.ID, pgvector.NewVector(r.Values), meta); err != nil {
			return fmt.Errorf("upsert vector %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// decodeMetadata reads a JSON object, rendering non-string values as JSON.
func decodeMetadata(raw []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(raw) == 0 {
		return out, nil
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	for k, v := range values {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	return out, nil
}

func nonNilMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// WithNullDefaults returns a copy of meta where every key in keys that is
// missing or blank is set to NullValue.
func WithNullDefaults(meta map[string]string, keys ...string) map[string]string {
	out := make(map[string]string, len(meta)+len(keys))
	maps.Copy(out, meta)
	for _, k := range keys {
		if strings.TrimSpace(out[k]) == "" {
			out[k] = NullValue
		}
	}
	return out
}
