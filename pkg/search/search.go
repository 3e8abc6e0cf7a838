// Package search answers free text queries with semantically similar
// documents and a model-written summary of them.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"
	"github.com/OFFIS-RIT/graph-explorer/pkg/vector"
)

// ErrNotFound is returned by sources for documents that do not exist.
var ErrNotFound = store.ErrNotFound

// Index is the nearest-neighbour lookup used by search.
type Index interface {
	Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error)
}

// EmailSource loads e-mails by transaction id.
type EmailSource interface {
	EmailsByTransaction(ctx context.Context, ids []string) ([]store.Email, error)
}

// OpinionSource loads the opinion texts of a case.
type OpinionSource interface {
	OpinionsForCase(ctx context.Context, caseID string) ([]string, error)
}

// Summarizer condenses documents.
type Summarizer interface {
	SummarizeEmails(ctx context.Context, emails []store.Email) (string, error)
	SummarizeOpinions(ctx context.Context, opinions []string, query string) (string, error)
}

// EmailResult is the answer to an e-mail search.
type EmailResult struct {
	Matches       []vector.Match `json:"matches"`
	Summary       string         `json:"summary"`
	UniqueEmailTo []string       `json:"uniqueEmailTo"`
}

// CaseResult is the answer to a case search.
type CaseResult struct {
	CaseIDs []string `json:"caseIds"`
	Summary string   `json:"summary"`
}

// Searcher runs semantic searches.
//
// A Searcher should be created using NewSearcher. Emails and Opinions may be
// nil when the corresponding dataset is not served.
type Searcher struct {
	ai         ai.GraphAIClient
	index      Index
	emails     EmailSource
	opinions   OpinionSource
	summarizer Summarizer
	topK       int
}

type NewSearcherParams struct {
	AI         ai.GraphAIClient
	Index      Index
	Emails     EmailSource
	Opinions   OpinionSource
	Summarizer Summarizer
	TopK       int
}

func NewSearcher(params NewSearcherParams) *Searcher {
	topK := params.TopK
	if topK <= 0 {
		topK = vector.DefaultTopK
	}
	return &Searcher{
		ai:         params.AI,
		index:      params.Index,
		emails:     params.Emails,
		opinions:   params.Opinions,
		summarizer: params.Summarizer,
		topK:       topK,
	}
}

func (s *Searcher) nearest(ctx context.Context, namespace, query string) ([]vector.Match, error) {
	embedding, err := s.ai.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.index.Query(ctx, namespace, embedding, s.topK)
	if err != nil {
		return nil, err
	}
	logger.Debug("[Search] Nearest neighbours", "namespace", namespace, "matches", len(matches))
	return matches, nil
}

// EmailSearch finds the e-mails closest to query and summarizes them.
func (s *Searcher) EmailSearch(ctx context.Context, query string) (EmailResult, error) {
	if s.emails == nil {
		return EmailResult{}, errors.New("email search is not configured")
	}
	matches, err := s.nearest(ctx, vector.NamespaceEmails, query)
	if err != nil {
		return EmailResult{}, err
	}

	recipients := make([]string, 0, len(matches))
	txIDs := make([]string, 0, len(matches))
	for _, m := range matches {
		recipients = append(recipients, m.Metadata["email_to"])
		txIDs = append(txIDs, m.Metadata["transaction_id"])
	}
	result := EmailResult{
		Matches:       matches,
		UniqueEmailTo: nonNil(store.DedupeStrings(recipients, vector.NullValue)),
	}

	txIDs = store.DedupeStrings(txIDs, vector.NullValue)
	if len(txIDs) == 0 {
		return result, nil
	}
	emails, err := s.emails.EmailsByTransaction(ctx, txIDs)
	if err != nil {
		return EmailResult{}, fmt.Errorf("load emails: %w", err)
	}
	result.Summary, err = s.summarizer.SummarizeEmails(ctx, emails)
	if err != nil {
		return EmailResult{}, err
	}
	return result, nil
}

// CaseSearch finds the cases closest to query and relates their opinions to
// it. Cases without stored opinions are skipped.
func (s *Searcher) CaseSearch(ctx context.Context, query string) (CaseResult, error) {
	if s.opinions == nil {
		return CaseResult{}, errors.New("case search is not configured")
	}
	matches, err := s.nearest(ctx, vector.NamespaceCases, query)
	if err != nil {
		return CaseResult{}, err
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Metadata["case_id"])
	}
	ids = nonNil(store.DedupeStrings(ids, vector.NullValue))
	result := CaseResult{CaseIDs: ids}
	if len(ids) == 0 {
		return result, nil
	}

	var opinions []string
	for _, id := range ids {
		texts, err := s.opinions.OpinionsForCase(ctx, id)
		if errors.Is(err, ErrNotFound) {
			logger.Debug("[Search] No opinions for case", "case_id", id)
			continue
		}
		if err != nil {
			return CaseResult{}, fmt.Errorf("load opinions for case %s: %w", id, err)
		}
		opinions = append(opinions, texts...)
	}

	result.Summary, err = s.summarizer.SummarizeOpinions(ctx, opinions, query)
	if err != nil {
		return CaseResult{}, err
	}
	return result, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
