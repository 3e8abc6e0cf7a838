package neo4j

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graph-explorer/pkg/store"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// Relationships are merged rather than created so a retried ingest does not
// duplicate edges.
const (
	linkSenderQuery = `
MATCH (from:EmailAddress {address: $sender}), (email:Email {id: $id})
MERGE (from)-[:EMAIL_FROM]->(email)`

	linkRecipientsQuery = `
MATCH (email:Email {id: $id})
UNWIND $recipients AS address
MATCH (to:EmailAddress {address: address})
MERGE (email)-[:EMAIL_TO]->(to)`
)

// SaveEmail writes the sender and recipient addresses, the e-mail node and
// the EMAIL_FROM/EMAIL_TO edges in one write transaction.
func (s *GraphStore) SaveEmail(ctx context.Context, tx store.EmailTransaction) error {
	stmts, err := emailStatements(tx)
	if err != nil {
		return err
	}
	if err := s.q.Write(ctx, stmts); err != nil {
		return fmt.Errorf("save email %s: %w", tx.TransactionID, err)
	}
	return nil
}

func emailStatements(tx store.EmailTransaction) ([]Statement, error) {
	if tx.TransactionID == "" {
		return nil, errors.New("email transaction id is required")
	}
	if tx.From == "" {
		return nil, errors.New("email sender is required")
	}
	recipients := store.DedupeStrings(tx.To)
	if len(recipients) == 0 {
		return nil, errors.New("email recipient is required")
	}

	stmts := make([]Statement, 0, len(recipients)+4)
	for _, address := range append([]string{tx.From}, recipients...) {
		stmt, err := mergeAddress(address)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	query, params, err := gocypher.NewQueryBuilder().
		Merge(gocypher.N("e", "Email").WithProperties(map[string]any{"id": tx.TransactionID})).
		Set(map[string]any{
			"e.body":      tx.Body,
			"e.subject":   tx.Subject,
			"e.sent_date": tx.SentDate,
		}).
		Return("e").
		Build()
	if err != nil {
		return nil, fmt.Errorf("build email merge: %w", err)
	}
	stmts = append(stmts,
		Statement{Cypher: query, Params: params},
		Statement{Cypher: linkSenderQuery, Params: map[string]any{"sender": tx.From, "id": tx.TransactionID}},
		Statement{Cypher: linkRecipientsQuery, Params: map[string]any{"recipients": recipients, "id": tx.TransactionID}},
	)
	return stmts, nil
}

func mergeAddress(address string) (Statement, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Merge(gocypher.N("a", "EmailAddress").WithProperties(map[string]any{"address": address})).
		Return("a").
		Build()
	if err != nil {
		return Statement{}, fmt.Errorf("build address merge: %w", err)
	}
	return Statement{Cypher: query, Params: params}, nil
}
