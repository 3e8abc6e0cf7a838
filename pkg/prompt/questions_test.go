package prompt

import (
	"strings"
	"testing"

	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"
)

func testStats() stats.GraphStats {
	return stats.Reduce(stats.GraphStats{
		NodeCounts: map[string]int64{"EmailAddress": 10, "Email": 20},
		EdgeCounts: map[string]int64{"EMAIL_FROM": 20, "EMAIL_TO": 30},
		MostConnectedNodes: []stats.ConnectedNode{
			{NodeType: "EmailAddress", NodeName: "a@x", Connections: 9},
			{NodeType: "EmailAddress", NodeName: "b@x", Connections: 8},
			{NodeType: "EmailAddress", NodeName: "c@x", Connections: 7},
			{NodeType: "EmailAddress", NodeName: "hidden@x", Connections: 1},
		},
		Schema: "EmailAddress {address: String}",
	})
}

func testSubgraph() graph.Subgraph {
	return graph.Subgraph{
		Nodes: []graph.Node{
			{ID: "1", Kind: graph.KindEmailAddress, Label: "EmailAddress", Properties: map[string]any{"address": "a@x"}},
			{ID: "2", Kind: graph.KindEmailAddress, Label: "EmailAddress", Properties: map[string]any{"address": "b@x"}},
		},
		Links: []graph.Link{{Source: "1", Target: "2", Kind: graph.RelEmail, Label: "EMAIL", Key: "tx1"}},
	}
}

func TestBuildQuestionsPrompt(t *testing.T) {
	p, err := BuildQuestionsPrompt(Email, testSubgraph(), "Budget talks.", testStats())
	if err != nil {
		t.Fatalf("BuildQuestionsPrompt returned error: %v", err)
	}

	for _, want := range []string{
		Email.Explanation,
		`"address":"a@x"`,
		"Budget talks.",
		"EmailAddress {address: String}",
		"CONTAINS toLower('value')",
		"LIMIT 25",
		"EmailAddress, Email",
		`"EMAIL_FROM"`,
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, p)
		}
	}
	if strings.Contains(p, "hidden@x") {
		t.Fatalf("prompt should only contain reduced statistics")
	}
}

func TestBuildQuestionsPromptDeterministic(t *testing.T) {
	a, err := BuildQuestionsPrompt(Legal, testSubgraph(), "s", testStats())
	if err != nil {
		t.Fatalf("BuildQuestionsPrompt returned error: %v", err)
	}
	for range 5 {
		b, err := BuildQuestionsPrompt(Legal, testSubgraph(), "s", testStats())
		if err != nil {
			t.Fatalf("BuildQuestionsPrompt returned error: %v", err)
		}
		if a != b {
			t.Fatalf("prompt is not deterministic")
		}
	}
}

func TestBuildQuestionsPromptEmpty(t *testing.T) {
	p, err := BuildQuestionsPrompt(Legal, graph.Subgraph{}, "", stats.GraphStats{})
	if err != nil {
		t.Fatalf("BuildQuestionsPrompt returned error: %v", err)
	}
	if !strings.Contains(p, "Nodes: []") || !strings.Contains(p, "No summary available.") {
		t.Fatalf("unexpected prompt for empty input:\n%s", p)
	}
	if !strings.Contains(p, "toLower(n.name)") {
		t.Fatalf("legal prompt should match on name")
	}
}

func TestQuestionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Questions
		wantErr bool
	}{
		{"empty", Questions{}, false},
		{"complete", Questions{Entries: []Entry{{Question: "q", Cypher: "MATCH (n) RETURN n"}}}, false},
		{"missing cypher", Questions{Entries: []Entry{{Question: "q"}}}, true},
		{"blank question", Questions{Entries: []Entry{{Question: " ", Cypher: "c"}}}, true},
	}
	for _, tt := range tests {
		if err := tt.q.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("%s: expected error %v, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestDomainByName(t *testing.T) {
	if DomainByName("scotus").Name != "legal" || DomainByName("enron").Name != "email" {
		t.Fatalf("unexpected domain mapping")
	}
}
