package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"

	"github.com/ollama/ollama/api"
)

// GenerateEmbedding creates a vector embedding for input using the configured
// embedding model. Blank input yields a zero vector of the configured size.
func (c *GraphOllamaClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	if strings.TrimSpace(string(input)) == "" {
		return make([]float32, c.embeddingDim), nil
	}

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(ctx, req)
	if err != nil {
		return nil, err
	}

	c.metrics.Record(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	if len(res.Embeddings) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res.Embeddings))
	}

	dim := c.embeddingDim
	if dim <= 0 {
		dim = len(res.Embeddings[0])
	}
	out := make([]float32, dim)
	for i := 0; i < dim && i < len(res.Embeddings[0]); i++ {
		out[i] = float32(res.Embeddings[0][i])
	}
	return out, nil
}
