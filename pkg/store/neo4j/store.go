package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// GraphStore implements store.GraphStore on a Querier.
//
// A GraphStore should be created using NewGraphStore.
type GraphStore struct {
	q Querier
}

var _ store.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a GraphStore. Closing the store closes q when q
// supports it.
func NewGraphStore(q Querier) *GraphStore {
	return &GraphStore{q: q}
}

func (s *GraphStore) Close(ctx context.Context) error {
	if c, ok := s.q.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}

const emailsByTransactionQuery = `
MATCH (from:EmailAddress)-[:EMAIL_FROM]->(email:Email)-[:EMAIL_TO]->(to:EmailAddress)
WHERE email.id IN $ids
RETURN email.id AS id, from.address AS from, collect(DISTINCT to.address) AS to,
	email.subject AS subject, toString(email.sent_date) AS sentDate, email.body AS body`

func (s *GraphStore) EmailsByTransaction(ctx context.Context, ids []string) ([]store.Email, error) {
	ids = store.DedupeStrings(ids)
	if len(ids) == 0 {
		return []store.Email{}, nil
	}

	rows, err := s.q.Read(ctx, emailsByTransactionQuery, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}

	byID := make(map[string]store.Email, len(rows))
	for _, row := range rows {
		e, err := decodeEmail(row)
		if err != nil {
			return nil, err
		}
		byID[e.TransactionID] = e
	}

	out := make([]store.Email, 0, len(byID))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func decodeEmail(row *neo4j.Record) (store.Email, error) {
	var e store.Email
	var err error
	if e.TransactionID, err = stringAt(row, "id"); err != nil {
		return e, err
	}
	if e.From, err = stringAt(row, "from"); err != nil {
		return e, err
	}
	to, err := stringsAt(row, "to")
	if err != nil {
		return e, err
	}
	e.To = strings.Join(to, ", ")
	if e.Subject, err = stringAt(row, "subject"); err != nil {
		return e, err
	}
	if e.SentDate, err = stringAt(row, "sentDate"); err != nil {
		return e, err
	}
	if e.Body, err = stringAt(row, "body"); err != nil {
		return e, err
	}
	return e, nil
}

func (s *GraphStore) CaseByID(ctx context.Context, id string) (map[string]any, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("c", "Case").WithProperties(map[string]any{"id": caseIDValue(id)})).
		Return("c").
		Build()
	if err != nil {
		return nil, fmt.Errorf("build case query: %w", err)
	}

	rows, err := s.q.Read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query case: %w", err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	n, err := nodeAt(rows[0], "c")
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, store.ErrNotFound
	}
	return jsonMap(n.Props), nil
}

// caseIDValue keeps numeric case ids numeric; the legal graph stores them as
// integers.
func caseIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func (s *GraphStore) RunReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if strings.TrimSpace(cypher) == "" {
		return nil, errors.New("empty query")
	}
	rows, err := s.q.Read(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("run read query: %w", err)
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = recordToMap(row)
	}
	return out, nil
}
