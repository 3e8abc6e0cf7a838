package ollama

import (
	"strings"
	"testing"

	"github.com/OFFIS-RIT/graph-explorer/pkg/ai"
)

func TestContextSize(t *testing.T) {
	if _, err := ai.Encoder(); err != nil {
		t.Skipf("tokenizer %s unavailable: %v", ai.TokenEncoding, err)
	}
	if got := contextSize("", nil); got != contextHeadroom {
		t.Fatalf("contextSize(empty) = %d, want %d", got, contextHeadroom)
	}

	long := strings.Repeat("deposition transcript ", 4000)
	if got := contextSize(long, nil); got <= defaultContext {
		t.Fatalf("contextSize(long) = %d, want > %d", got, defaultContext)
	}
}

func TestNewRequest(t *testing.T) {
	c, err := NewGraphOllamaClient(NewGraphOllamaClientParams{ChatModel: "llama3"})
	if err != nil {
		t.Fatalf("NewGraphOllamaClient() error = %v", err)
	}

	options := ai.ApplyOptions(ai.GenerateOptions{Model: "llama3", Temperature: 0.3}, ai.WithSystemPrompts("be brief"))
	req := c.newRequest("hello", options, true)

	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	if req.Stream == nil || !*req.Stream {
		t.Fatal("expected streaming request")
	}
	if _, ok := req.Options["num_ctx"]; ok {
		t.Fatal("short prompt must not raise num_ctx")
	}
}

func TestSchemaFormat_RejectsNonPointer(t *testing.T) {
	type out struct {
		Name string `json:"name"`
	}
	if _, err := schemaFormat(out{}); err == nil {
		t.Fatal("expected error for non-pointer")
	}
	if _, err := schemaFormat(&out{}); err != nil {
		t.Fatalf("schemaFormat() error = %v", err)
	}
}
