package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"

	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"

	"github.com/ollama/ollama/api"
)

const (
	defaultContext  = 4096
	contextHeadroom = 200
)

func (c *GraphOllamaClient) newRequest(prompt string, options ai.GenerateOptions, stream bool) *api.ChatRequest {
	msgs := make([]api.Message, 0, len(options.SystemPrompts)+1)
	for _, sys := range options.SystemPrompts {
		msgs = append(msgs, api.Message{Role: "system", Content: sys})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: prompt})

	req := &api.ChatRequest{
		Model:    options.Model,
		Messages: msgs,
		Stream:   &stream,
		Options:  map[string]any{"temperature": options.Temperature},
	}

	if options.Thinking != "" {
		req.Think = &api.ThinkValue{
			Value: options.Thinking,
		}
	}

	if numCtx := contextSize(prompt, options.SystemPrompts); numCtx > defaultContext {
		req.Options["num_ctx"] = numCtx
	}
	return req
}

// contextSize estimates the context window needed for the request.
func contextSize(prompt string, system []string) int {
	tokens := contextHeadroom
	for _, text := range append([]string{prompt}, system...) {
		n, err := ai.CountTokens(text)
		if err != nil {
			return defaultContext
		}
		tokens += n
	}
	return tokens
}

func schemaFormat(out any) (json.RawMessage, error) {
	if out == nil {
		return nil, errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, errors.New("out must be a non-nil pointer")
	}

	formatBytes, err := json.Marshal(ai.GenerateSchema(out))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(formatBytes), nil
}

func (c *GraphOllamaClient) record(m api.Metrics) {
	c.metrics.Record(ai.ModelMetrics{
		InputTokens:  m.PromptEvalCount,
		OutputTokens: m.EvalCount,
		TotalTokens:  m.PromptEvalCount + m.EvalCount,
		DurationMs:   m.TotalDuration.Milliseconds(),
	})
}

func (c *GraphOllamaClient) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	var final api.ChatResponse
	if err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		final.Message.Content += cr.Message.Content
		if cr.Done {
			final.Done = true
			final.Metrics = cr.Metrics
		}
		return nil
	}); err != nil {
		return "", err
	}
	c.record(final.Metrics)

	return final.Message.Content, nil
}

// GenerateCompletion sends a single-turn prompt and returns assistant text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.3,
	}, opts...)

	return c.chat(ctx, c.newRequest(prompt, options, false))
}

// GenerateCompletionWithFormat enforces a JSON schema and unmarshals into out.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	format, err := schemaFormat(out)
	if err != nil {
		return err
	}

	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.1,
	}, opts...)

	req := c.newRequest(prompt, options, false)
	req.Format = format

	content, err := c.chat(ctx, req)
	if err != nil {
		return err
	}
	if content == "" {
		return errors.New("empty response from model")
	}
	return ai.UnmarshalFlexible(content, out)
}

// GenerateCompletionStreamWithFormat streams the JSON text of a structured
// completion constrained to the schema of out.
func (c *GraphOllamaClient) GenerateCompletionStreamWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) (<-chan ai.StreamEvent, error) {
	format, err := schemaFormat(out)
	if err != nil {
		return nil, err
	}

	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.chatModel,
		Temperature: 0.2,
	}, opts...)

	req := c.newRequest(prompt, options, true)
	req.Format = format

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	events := make(chan ai.StreamEvent, 16)
	go func() {
		defer c.reqLock.Release(1)
		defer close(events)

		err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
			if s := cr.Message.Content; s != "" {
				select {
				case events <- ai.StreamEvent{Type: ai.StreamContent, Content: s}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if cr.Done {
				c.record(cr.Metrics)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			events <- ai.StreamEvent{Type: ai.StreamError, Err: err}
		}
	}()

	return events, nil
}
