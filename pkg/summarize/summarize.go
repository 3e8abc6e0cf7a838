// Package summarize condenses documents that may exceed the model's context
// window by summarizing token-sized chunks in parallel and then summarizing
// the partial summaries.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"
)

// DefaultMaxTokens is the largest text summarized in a single request.
const DefaultMaxTokens = 128000

// Policy decides what happens when a chunk fails.
type Policy int

const (
	// FailFast aborts the summary on the first failed chunk.
	FailFast Policy = iota
	// SkipFailed summarizes the chunks that succeeded and fails only when
	// none did.
	SkipFailed
)

// Summarizer runs chunked summaries against a language model.
//
// A Summarizer should be created using NewSummarizer.
type Summarizer struct {
	client      ai.GraphAIClient
	maxTokens   int
	maxParallel int
	policy      Policy
	opts        []ai.GenerateOption
}

// NewSummarizerParams configures NewSummarizer. MaxTokens defaults to
// DefaultMaxTokens; MaxParallel <= 0 runs all chunks at once. Temperature is
// passed to the model only when positive, Thinking only when set.
type NewSummarizerParams struct {
	Client      ai.GraphAIClient
	MaxTokens   int
	MaxParallel int
	Policy      Policy
	Model       string
	Temperature float64
	Thinking    string
}

func NewSummarizer(params NewSummarizerParams) *Summarizer {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	var opts []ai.GenerateOption
	if params.Model != "" {
		opts = append(opts, ai.WithModel(params.Model))
	}
	if params.Temperature > 0 {
		opts = append(opts, ai.WithTemperature(params.Temperature))
	}
	if params.Thinking != "" {
		opts = append(opts, ai.WithThinking(params.Thinking))
	}
	return &Summarizer{
		client:      params.Client,
		maxTokens:   maxTokens,
		maxParallel: params.MaxParallel,
		policy:      params.Policy,
		opts:        opts,
	}
}

// Summarize summarizes text with the prompt built by promptFn. Text of
// maxTokens or more is split into equal token chunks whose summaries are
// summarized again.
func (s *Summarizer) Summarize(ctx context.Context, text string, promptFn func(string) string) (string, error) {
	chunks, err := SplitTokens(text, s.maxTokens)
	if err != nil {
		return "", err
	}
	if len(chunks) <= 1 {
		return s.client.GenerateCompletion(ctx, promptFn(text), s.opts...)
	}

	logger.Debug("[Summarize] Splitting text", "chunks", len(chunks), "max_tokens", s.maxTokens)
	results := RunChunks(ctx, chunks, ChunkParams{
		Policy:      s.policy,
		MaxParallel: s.maxParallel,
	}, func(ctx context.Context, chunk string) (string, error) {
		return s.client.GenerateCompletion(ctx, promptFn(chunk), s.opts...)
	})

	summaries, err := Collect(results, s.policy)
	if err != nil {
		return "", err
	}
	return s.client.GenerateCompletion(ctx, promptFn(strings.Join(summaries, "\n\n")), s.opts...)
}

// SummarizeOpinions summarizes court opinions and relates the summary to
// the user's query. An empty summary yields "" without asking for a relation.
func (s *Summarizer) SummarizeOpinions(ctx context.Context, opinions []string, query string) (string, error) {
	if len(opinions) == 0 {
		return "", nil
	}
	summary, err := s.Summarize(ctx, strings.Join(opinions, "\n\n"), ai.SummarizeOpinionsPrompt)
	if err != nil {
		return "", fmt.Errorf("summarize opinions: %w", err)
	}
	if strings.TrimSpace(summary) == "" {
		return "", nil
	}
	answer, err := s.client.GenerateCompletion(ctx, ai.RelateToQueryPrompt(summary, query), s.opts...)
	if err != nil {
		return "", fmt.Errorf("relate summary to query: %w", err)
	}
	return answer, nil
}

// SummarizeEmails summarizes e-mails.
func (s *Summarizer) SummarizeEmails(ctx context.Context, emails []store.Email) (string, error) {
	if len(emails) == 0 {
		return "", nil
	}
	parts := make([]string, len(emails))
	for i, e := range emails {
		parts[i] = FormatEmail(e)
	}
	summary, err := s.Summarize(ctx, strings.Join(parts, "\n\n"), ai.SummarizeEmailsPrompt)
	if err != nil {
		return "", fmt.Errorf("summarize emails: %w", err)
	}
	return summary, nil
}

// FormatEmail renders e as the text block handed to the model.
func FormatEmail(e store.Email) string {
	return fmt.Sprintf("Sender: %s\nRecipients: %s\nSubject: %s\nDate: %s\nBody: %s",
		e.From, e.To, e.Subject, e.SentDate, e.Body)
}

// SplitTokens splits text into ceil(n/maxTokens) chunks of equal token
// count. Text below maxTokens is returned as a single chunk.
func SplitTokens(text string, maxTokens int) ([]string, error) {
	if maxTokens <= 0 {
		return nil, errors.New("max tokens must be positive")
	}
	enc, err := ai.Encoder()
	if err != nil {
		return nil, err
	}
	tokens := enc.Encode(text, nil, nil)
	n := len(tokens)
	if n < maxTokens {
		return []string{text}, nil
	}

	numChunks := (n + maxTokens - 1) / maxTokens
	size := (n + numChunks - 1) / numChunks
	chunks := make([]string, 0, numChunks)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		chunks = append(chunks, enc.Decode(tokens[start:end]))
	}
	return chunks, nil
}
