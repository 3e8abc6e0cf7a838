// Package store defines the graph database surface used by the explorer.
// pkg/store/neo4j provides the implementation.
package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// Email is an e-mail document as stored in the graph.
type Email struct {
	TransactionID string `json:"transaction_id"`
	From          string `json:"email_from"`
	To            string `json:"email_to"`
	Subject       string `json:"email_subject"`
	SentDate      string `json:"email_sent_date"`
	Body          string `json:"body"`
}

// EmailTransaction is one parsed e-mail ready to be written to the graph.
// SentDate is the raw Date header.
type EmailTransaction struct {
	TransactionID string
	From          string
	To            []string
	Subject       string
	SentDate      string
	Body          string
}

// CaseRecord is one court case ready to be written to the graph. Parties are
// linked by their Role, e.g. Petitioner or Respondent.
type CaseRecord struct {
	ID           int64
	Name         string
	DocketNumber string
	Term         string
	DecidedDate  string
	Parties      []CaseParty
	Advocates    []CaseAdvocate
	Justices     []CaseJustice
	Decisions    []CaseDecision
	Opinions     []CaseOpinion
	// Entities and Relations are extracted from the opinion texts.
	Entities  []CaseEntity
	Relations []CaseRelation
}

type CaseParty struct {
	Name string
	Role string
}

type CaseAdvocate struct {
	Name        string
	Description string
}

type CaseJustice struct {
	ID   int64
	Name string
}

// CaseDecision names the winning party and how each justice voted. A vote is
// stored as a relationship named after Vote, e.g. majority.
type CaseDecision struct {
	WinningParty string
	DecisionType string
	Votes        []CaseVote
}

type CaseVote struct {
	Justice     CaseJustice
	Vote        string
	OpinionType string
}

type CaseOpinion struct {
	ID    string
	Title string
}

// CaseEntity is a named entity such as an organization or a person. Kind is
// its node label.
type CaseEntity struct {
	Name string
	Kind string
}

// CaseRelation links two extracted entities by name.
type CaseRelation struct {
	Head     string
	Relation string
	Tail     string
}

// GraphStore is the graph database surface used outside the materializer.
type GraphStore interface {
	stats.Source

	// EmailsByTransaction returns the e-mails with the given transaction ids
	// in the order of ids; unknown ids are skipped.
	EmailsByTransaction(ctx context.Context, ids []string) ([]Email, error)
	// CaseByID returns the properties of the case with the given domain id
	// or ErrNotFound.
	CaseByID(ctx context.Context, id string) (map[string]any, error)
	// RunReadQuery executes cypher in a read-only transaction and returns
	// JSON friendly rows.
	RunReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	// SaveEmail writes the sender, recipients and the e-mail itself.
	SaveEmail(ctx context.Context, tx EmailTransaction) error
	// SaveCase writes a case with its participants, opinions and extracted
	// entities.
	SaveCase(ctx context.Context, c CaseRecord) error

	Close(ctx context.Context) error
}
