package ai

import (
	"testing"
)

type testEntry struct {
	Question string `json:"question"`
	Cypher   string `json:"cypher"`
}

type testQuestions struct {
	Entries []testEntry `json:"entries"`
}

func TestUnmarshalFlexible_Variants(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount int
		wantFirst testEntry
	}{
		{
			name:      "valid json object",
			input:     `{"entries":[{"question":"Who?","cypher":"MATCH (n) RETURN n"}]}`,
			wantCount: 1,
			wantFirst: testEntry{Question: "Who?", Cypher: "MATCH (n) RETURN n"},
		},
		{
			name:      "unquoted keys and trailing comma",
			input:     `{entries:[{question:'Who?',cypher:'RETURN 1',},]}`,
			wantCount: 1,
			wantFirst: testEntry{Question: "Who?", Cypher: "RETURN 1"},
		},
		{
			name:      "double encoded",
			input:     `"{\"entries\":[{\"question\":\"Who?\",\"cypher\":\"RETURN 1\"}]}"`,
			wantCount: 1,
			wantFirst: testEntry{Question: "Who?", Cypher: "RETURN 1"},
		},
		{
			name:      "fenced code block",
			input:     "```json\n{\"entries\":[{\"question\":\"Who?\",\"cypher\":\"RETURN 1\"}]}\n```",
			wantCount: 1,
			wantFirst: testEntry{Question: "Who?", Cypher: "RETURN 1"},
		},
		{
			name:      "truncated mid string",
			input:     `{"entries":[{"question":"Who sent`,
			wantCount: 1,
			wantFirst: testEntry{Question: "Who sent"},
		},
		{
			name:      "duplicate leading brace",
			input:     "{\n{\n  \"entries\": []\n}\n",
			wantCount: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got testQuestions
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if len(got.Entries) != tc.wantCount {
				t.Fatalf("UnmarshalFlexible() entries = %d, want %d", len(got.Entries), tc.wantCount)
			}
			if tc.wantCount > 0 && got.Entries[0] != tc.wantFirst {
				t.Fatalf("UnmarshalFlexible() first = %+v, want %+v", got.Entries[0], tc.wantFirst)
			}
		})
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got testQuestions
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
	if err := UnmarshalFlexible("   ", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for empty input")
	}
}

func TestGenerateSchema_RequiresFields(t *testing.T) {
	schema := GenerateSchema(&testQuestions{})
	if schema == nil {
		t.Fatal("GenerateSchema() returned nil")
	}
}

// requireEncoder skips the test when the tokenizer data cannot be loaded,
// e.g. when running offline.
func requireEncoder(t *testing.T) {
	t.Helper()
	if _, err := Encoder(); err != nil {
		t.Skipf("tokenizer %s unavailable: %v", TokenEncoding, err)
	}
}

func TestCountTokens(t *testing.T) {
	requireEncoder(t)
	n, err := CountTokens("")
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("CountTokens(\"\") = %d, want 0", n)
	}
	n, err = CountTokens("Who emailed whom about the merger?")
	if err != nil {
		t.Fatalf("CountTokens() error = %v", err)
	}
	if n == 0 {
		t.Fatal("CountTokens() returned 0 for non-empty text")
	}
}

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder
	var hooked int
	r.OnRecord(func(m ModelMetrics) { hooked += m.TotalTokens })

	r.Record(ModelMetrics{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, DurationMs: 1000})
	r.Record(ModelMetrics{InputTokens: 5, TotalTokens: 5, DurationMs: 1000})

	got := r.Snapshot()
	if got.TotalTokens != 20 || got.InputTokens != 15 || got.OutputTokens != 5 {
		t.Fatalf("Snapshot() = %+v", got)
	}
	if got.TokenPerSecond != 10 {
		t.Fatalf("TokenPerSecond = %v, want 10", got.TokenPerSecond)
	}
	if hooked != 20 {
		t.Fatalf("hook saw %d tokens, want 20", hooked)
	}

	r.Reset()
	if r.Snapshot().TotalTokens != 0 {
		t.Fatal("Reset() did not clear metrics")
	}
}
