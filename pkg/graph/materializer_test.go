package graph

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct {
	records []Record
	err     error
	calls   int
	seeds   []string
	limit   int
}

func (f *fakeSource) Neighborhood(_ context.Context, seeds []string, limit int) ([]Record, error) {
	f.calls++
	f.seeds = seeds
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func TestMaterialize_EmptySeedsSkipsStore(t *testing.T) {
	src := &fakeSource{}
	m := NewMaterializer(NewMaterializerParams{Source: src})

	for _, seeds := range [][]string{nil, {}, {"", "  "}} {
		sg, err := m.Materialize(context.Background(), seeds)
		if err != nil {
			t.Fatalf("Materialize(%q) error = %v", seeds, err)
		}
		if len(sg.Nodes) != 0 || len(sg.Links) != 0 || sg.Nodes == nil {
			t.Fatalf("Materialize(%q) = %+v, want empty", seeds, sg)
		}
	}
	if src.calls != 0 {
		t.Fatalf("store called %d times", src.calls)
	}
}

func TestMaterialize_DeduplicatesSeedsAndPassesLimit(t *testing.T) {
	src := &fakeSource{records: []Record{emailRecord("a@x.com", "b@x.com", "t1", 1, 1)}}
	m := NewMaterializer(NewMaterializerParams{Source: src, Limit: CaseGraphLimit})

	if _, err := m.Materialize(context.Background(), []string{"a@x.com", " a@x.com", "b@x.com"}); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if len(src.seeds) != 2 || src.seeds[0] != "a@x.com" || src.seeds[1] != "b@x.com" {
		t.Fatalf("seeds = %q", src.seeds)
	}
	if src.limit != CaseGraphLimit {
		t.Fatalf("limit = %d, want %d", src.limit, CaseGraphLimit)
	}
}

func TestMaterialize_UnresolvableSeeds(t *testing.T) {
	m := NewMaterializer(NewMaterializerParams{Source: &fakeSource{}})
	sg, err := m.Materialize(context.Background(), []string{"nobody@x.com"})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if len(sg.Nodes) != 0 || len(sg.Links) != 0 {
		t.Fatalf("got %+v, want empty", sg)
	}
}

func TestMaterialize_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	m := NewMaterializer(NewMaterializerParams{Source: &fakeSource{err: boom, records: []Record{emailRecord("a", "b", "t", 0, 0)}}})

	sg, err := m.Materialize(context.Background(), []string{"a"})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
	if sg.Nodes != nil || sg.Links != nil {
		t.Fatalf("partial result returned: %+v", sg)
	}
}

func TestMaterialize_TruncatesToLimit(t *testing.T) {
	records := []Record{
		emailRecord("a", "b", "t1", 0, 0),
		emailRecord("a", "c", "t2", 0, 0),
		emailRecord("a", "d", "t3", 0, 0),
	}
	m := NewMaterializer(NewMaterializerParams{Source: &fakeSource{records: records}, Limit: 2})

	sg, err := m.Materialize(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if len(sg.Links) != 2 {
		t.Fatalf("links = %d, want 2", len(sg.Links))
	}
}

func TestMaterialize_Idempotent(t *testing.T) {
	src := &fakeSource{records: []Record{
		emailRecord("a", "b", "t1", 1, 3),
		emailRecord("b", "a", "t2", 3, 1),
	}}
	m := NewMaterializer(NewMaterializerParams{Source: src, NormalizeDegrees: true})

	first, err := m.Materialize(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	second, err := m.Materialize(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if len(first.Nodes) != len(second.Nodes) || len(first.Links) != len(second.Links) {
		t.Fatalf("results differ: %+v vs %+v", first, second)
	}
	for i := range first.Nodes {
		if first.Nodes[i].ID != second.Nodes[i].ID || *first.Nodes[i].InEdgesCount != *second.Nodes[i].InEdgesCount {
			t.Fatalf("node %d differs", i)
		}
	}
	assertClosed(t, first)
}
