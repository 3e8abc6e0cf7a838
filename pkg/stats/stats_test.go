package stats

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeSource struct {
	mu        sync.Mutex
	nodes     []TypeCount
	connected []ConnectedNode
	failOn    string
	calls     atomic.Int32
	block     chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		nodes: []TypeCount{{Type: "Case", Count: 120}, {Type: "Justice", Count: 9}},
		connected: []ConnectedNode{
			{NodeType: "Case", NodeName: "a", Connections: 50},
			{NodeType: "Case", NodeName: "b", Connections: 40},
			{NodeType: "Justice", NodeName: "c", Connections: 30},
			{NodeType: "Party", NodeName: "d", Connections: 20},
			{NodeType: "Party", NodeName: "e", Connections: 10},
		},
	}
}

func (f *fakeSource) fail(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeSource) NodeCounts(ctx context.Context) ([]TypeCount, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail("nodes"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TypeCount(nil), f.nodes...), nil
}

func (f *fakeSource) EdgeCounts(context.Context) ([]TypeCount, error) {
	if err := f.fail("edges"); err != nil {
		return nil, err
	}
	return []TypeCount{{Type: "decided_by", Count: 300}, {Type: "case_opinion", Count: 120}}, nil
}

func (f *fakeSource) MostConnectedNodes(_ context.Context, limit int) ([]ConnectedNode, error) {
	if err := f.fail("connected"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return head(f.connected, limit), nil
}

func (f *fakeSource) NodeProperties(context.Context) ([]TypeProperties, error) {
	return []TypeProperties{
		{NodeType: "Case", Properties: []string{"id", "name", "docket", "term", "decided", "href", "citation"}},
		{NodeType: "Justice", Properties: []string{"name"}},
	}, nil
}

func (f *fakeSource) RelationshipPatterns(_ context.Context, limit int) ([]Pattern, error) {
	all := []Pattern{
		{Pattern: "Case-[decided_by]->Justice", Count: 300},
		{Pattern: "Case-[case_opinion]->Opinion", Count: 120},
		{Pattern: "Case-[Petitioner]->Party", Count: 110},
		{Pattern: "Case-[Respondent]->Party", Count: 100},
	}
	return head(all, limit), nil
}

func (f *fakeSource) Schema(context.Context) ([]SchemaEntry, error) {
	if err := f.fail("schema"); err != nil {
		return nil, err
	}
	return []SchemaEntry{
		{
			Label:      "Justice",
			Properties: []SchemaProperty{{Name: "name", Types: []string{"String"}}},
			Incoming:   []SchemaRelation{{Type: "decided_by", Label: "Case"}},
		},
		{
			Label:      "Case",
			Properties: []SchemaProperty{{Name: "name", Types: []string{"String"}}, {Name: "id", Types: []string{"String"}}},
			Outgoing:   []SchemaRelation{{Type: "decided_by", Label: "Justice"}, {Type: "case_opinion", Label: "Opinion"}},
		},
	}, nil
}

func TestAggregate(t *testing.T) {
	s, err := Aggregate(context.Background(), newFakeSource(), AggregateOptions{})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if s.NodeCounts["Case"] != 120 || s.EdgeCounts["decided_by"] != 300 {
		t.Fatalf("counts = %v / %v", s.NodeCounts, s.EdgeCounts)
	}
	if len(s.MostConnectedNodes) != 5 {
		t.Fatalf("most connected = %d, want 5", len(s.MostConnectedNodes))
	}
	if len(s.TopNodeTypes) != 2 || s.TopNodeTypes[0] != "Case" {
		t.Fatalf("top node types = %v", s.TopNodeTypes)
	}
	if !strings.HasPrefix(s.Schema, "Case {id: String, name: String}") {
		t.Fatalf("schema = %q", s.Schema)
	}
}

func TestAggregate_FailureAborts(t *testing.T) {
	for _, name := range []string{"nodes", "edges", "connected", "schema"} {
		t.Run(name, func(t *testing.T) {
			src := newFakeSource()
			src.failOn = name
			s, err := Aggregate(context.Background(), src, AggregateOptions{})
			if err == nil {
				t.Fatal("expected error")
			}
			if s.NodeCounts != nil || s.Schema != "" {
				t.Fatalf("partial statistics returned: %+v", s)
			}
		})
	}
}

func TestReduce(t *testing.T) {
	s, err := Aggregate(context.Background(), newFakeSource(), AggregateOptions{})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	r := Reduce(s)
	if len(r.MostConnectedNodes) != ReducedMostConnected {
		t.Fatalf("most connected = %d, want %d", len(r.MostConnectedNodes), ReducedMostConnected)
	}
	if len(r.RelationshipPatterns) != ReducedPatterns {
		t.Fatalf("patterns = %d, want %d", len(r.RelationshipPatterns), ReducedPatterns)
	}
	if len(r.CommonNodeProperties[0].Properties) != ReducedProperties {
		t.Fatalf("properties = %d, want %d", len(r.CommonNodeProperties[0].Properties), ReducedProperties)
	}
	if len(r.CommonNodeProperties[1].Properties) != 1 {
		t.Fatalf("short property list changed: %v", r.CommonNodeProperties[1].Properties)
	}
	if len(s.MostConnectedNodes) != 5 || len(s.CommonNodeProperties[0].Properties) != 7 {
		t.Fatal("Reduce modified its input")
	}

	short := Reduce(GraphStats{MostConnectedNodes: []ConnectedNode{{NodeName: "only"}}})
	if len(short.MostConnectedNodes) != 1 {
		t.Fatalf("short list = %d, want 1", len(short.MostConnectedNodes))
	}
}

func TestFormatSchema(t *testing.T) {
	src := newFakeSource()
	entries, _ := src.Schema(context.Background())

	got := FormatSchema(entries)
	want := strings.Join([]string{
		"Case {id: String, name: String}",
		"  -[case_opinion]-> Opinion",
		"  -[decided_by]-> Justice",
		"Justice {name: String}",
		"  <-[decided_by]- Case",
	}, "\n")
	if got != want {
		t.Fatalf("FormatSchema() =\n%s\nwant\n%s", got, want)
	}
	if FormatSchema(nil) != "" {
		t.Fatal("FormatSchema(nil) should be empty")
	}
}
