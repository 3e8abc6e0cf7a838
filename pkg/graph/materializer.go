package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"
)

// Record caps observed for the two datasets.
const (
	CaseGraphLimit  = 400
	EmailGraphLimit = 1000
)

// Materializer resolves seed identifiers into a subgraph.
//
// A Materializer should be created using NewMaterializer.
type Materializer struct {
	source    RecordSource
	limit     int
	normalize bool
}

// NewMaterializerParams configures NewMaterializer.
//
// Limit caps the raw records fetched per call; values <= 0 use
// EmailGraphLimit. NormalizeDegrees enables in-degree normalization.
type NewMaterializerParams struct {
	Source           RecordSource
	Limit            int
	NormalizeDegrees bool
}

// NewMaterializer creates a Materializer reading from params.Source.
//
// Example:
//
//	m := graph.NewMaterializer(graph.NewMaterializerParams{
//		Source:           neo4j.NewEmailNeighborhood(client),
//		Limit:            graph.EmailGraphLimit,
//		NormalizeDegrees: true,
//	})
//	sg, err := m.Materialize(ctx, []string{"jeff.skilling@enron.com"})
func NewMaterializer(params NewMaterializerParams) *Materializer {
	limit := params.Limit
	if limit <= 0 {
		limit = EmailGraphLimit
	}
	return &Materializer{
		source:    params.Source,
		limit:     limit,
		normalize: params.NormalizeDegrees,
	}
}

// Materialize returns the deduplicated single hop subgraph around seeds.
// Blank and repeated seeds are ignored; an empty seed set returns an empty
// subgraph without querying the store. Store failures are returned without a
// partial result.
func (m *Materializer) Materialize(ctx context.Context, seeds []string) (Subgraph, error) {
	unique := UniqueSeeds(seeds)
	if len(unique) == 0 {
		return EmptySubgraph(), nil
	}

	records, err := m.source.Neighborhood(ctx, unique, m.limit)
	if err != nil {
		return Subgraph{}, fmt.Errorf("materialize subgraph: %w", err)
	}
	if len(records) > m.limit {
		records = records[:m.limit]
	}

	sg := BuildSubgraph(records, BuildOptions{NormalizeDegrees: m.normalize})
	logger.Debug("[Materialize] Built subgraph", "seeds", len(unique), "records", len(records), "nodes", len(sg.Nodes), "links", len(sg.Links))
	return sg, nil
}

// UniqueSeeds trims seeds and drops blanks and duplicates, keeping order.
func UniqueSeeds(seeds []string) []string {
	seen := make(map[string]struct{}, len(seeds))
	out := make([]string, 0, len(seeds))
	for _, s := range seeds {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
