// Package questions streams generated questions and Cypher queries about a
// subgraph from a language model.
package questions

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"
	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
	"github.com/OFFIS-RIT/graph-explorer/pkg/prompt"
	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"
)

// StatsProvider returns the reduced statistics embedded in prompts.
type StatsProvider interface {
	Reduced(ctx context.Context) (stats.GraphStats, error)
}

// Update is one element of a question stream. Partial updates carry the
// entries decoded so far; the last update has Done set, or Err on failure.
type Update struct {
	Questions prompt.Questions
	Done      bool
	Err       error
}

// Generator produces questions for subgraphs.
//
// A Generator should be created using NewGenerator.
type Generator struct {
	client ai.GraphAIClient
	stats  StatsProvider
	opts   []ai.GenerateOption
}

// NewGeneratorParams configures NewGenerator. Model overrides the client's
// default chat model when set.
type NewGeneratorParams struct {
	Client ai.GraphAIClient
	Stats  StatsProvider
	Model  string
	// Temperature is passed to the model when positive.
	Temperature float64
	// Thinking sets the reasoning effort, e.g. "low".
	Thinking string
}

func NewGenerator(params NewGeneratorParams) *Generator {
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
	return &Generator{client: params.Client, stats: params.Stats, opts: opts}
}

// Stream starts question generation for sg. Errors before the model starts
// streaming are returned directly; later errors arrive as the final Update.
// The channel is closed after the final update.
func (g *Generator) Stream(ctx context.Context, domain prompt.Domain, sg graph.Subgraph, summary string) (<-chan Update, error) {
	reduced, err := g.stats.Reduced(ctx)
	if err != nil {
		return nil, fmt.Errorf("load graph statistics: %w", err)
	}
	p, err := prompt.BuildQuestionsPrompt(domain, sg, summary, reduced)
	if err != nil {
		return nil, err
	}

	events, err := g.client.GenerateCompletionStreamWithFormat(
		ctx,
		"cypher_questions",
		"Questions about the subgraph, each with a Cypher query answering it.",
		p,
		&prompt.Questions{},
		g.opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("start question stream: %w", err)
	}

	out := make(chan Update)
	go func() {
		defer close(out)
		final, err := collect(ctx, events, out)
		if err != nil {
			logger.Error("[Questions] Generation failed", "err", err)
			send(ctx, out, Update{Err: err})
			return
		}
		send(ctx, out, Update{Questions: final, Done: true})
	}()
	return out, nil
}

// collect decodes the accumulated stream text after every chunk and sends
// an update whenever the decoded object changes.
func collect(ctx context.Context, events <-chan ai.StreamEvent, out chan<- Update) (prompt.Questions, error) {
	var (
		buf  []byte
		last prompt.Questions
	)
	for ev := range events {
		switch ev.Type {
		case ai.StreamError:
			if ev.Err == nil {
				ev.Err = errors.New("stream failed")
			}
			drain(events)
			return prompt.Questions{}, ev.Err
		case ai.StreamContent:
			buf = append(buf, ev.Content...)
			var partial prompt.Questions
			if err := ai.UnmarshalFlexible(string(buf), &partial); err != nil {
				continue
			}
			if reflect.DeepEqual(partial, last) {
				continue
			}
			last = partial
			if !send(ctx, out, Update{Questions: partial}) {
				drain(events)
				return prompt.Questions{}, ctx.Err()
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return prompt.Questions{}, err
	}
	var final prompt.Questions
	if err := ai.UnmarshalFlexible(string(buf), &final); err != nil {
		return prompt.Questions{}, fmt.Errorf("decode questions: %w", err)
	}
	if final.Entries == nil {
		final.Entries = []prompt.Entry{}
	}
	if err := final.Validate(); err != nil {
		return prompt.Questions{}, fmt.Errorf("invalid questions: %w", err)
	}
	return final, nil
}

func send(ctx context.Context, out chan<- Update, u Update) bool {
	select {
	case out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain lets the producer finish so it can release its resources.
func drain(events <-chan ai.StreamEvent) {
	go func() {
		for range events {
		}
	}()
}
