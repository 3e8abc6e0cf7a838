package stats

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// AggregateOptions sizes the top-K lists of an aggregation.
type AggregateOptions struct {
	MostConnected int
	Patterns      int
	TopTypes      int
}

func (o AggregateOptions) withDefaults() AggregateOptions {
	if o.MostConnected <= 0 {
		o.MostConnected = 5
	}
	if o.Patterns <= 0 {
		o.Patterns = 5
	}
	if o.TopTypes <= 0 {
		o.TopTypes = 5
	}
	return o
}

// Aggregate runs all statistics queries concurrently. The first failing query
// cancels the others and the aggregation returns no statistics.
func Aggregate(ctx context.Context, src Source, opts AggregateOptions) (GraphStats, error) {
	opts = opts.withDefaults()

	var (
		nodeCounts []TypeCount
		edgeCounts []TypeCount
		connected  []ConnectedNode
		properties []TypeProperties
		patterns   []Pattern
		schema     []SchemaEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nodeCounts, err = src.NodeCounts(gctx)
		return wrap("node counts", err)
	})
	g.Go(func() (err error) {
		edgeCounts, err = src.EdgeCounts(gctx)
		return wrap("edge counts", err)
	})
	g.Go(func() (err error) {
		connected, err = src.MostConnectedNodes(gctx, opts.MostConnected)
		return wrap("most connected nodes", err)
	})
	g.Go(func() (err error) {
		properties, err = src.NodeProperties(gctx)
		return wrap("node properties", err)
	})
	g.Go(func() (err error) {
		patterns, err = src.RelationshipPatterns(gctx, opts.Patterns)
		return wrap("relationship patterns", err)
	})
	g.Go(func() (err error) {
		schema, err = src.Schema(gctx)
		return wrap("schema", err)
	})
	if err := g.Wait(); err != nil {
		return GraphStats{}, err
	}

	return GraphStats{
		NodeCounts:           countMap(nodeCounts),
		EdgeCounts:           countMap(edgeCounts),
		MostConnectedNodes:   nonNil(connected),
		CommonNodeProperties: nonNil(properties),
		RelationshipPatterns: nonNil(patterns),
		Schema:               FormatSchema(schema),
		TopNodeTypes:         topTypes(nodeCounts, opts.TopTypes),
		TopEdgeTypes:         topTypes(edgeCounts, opts.TopTypes),
	}, nil
}

func wrap(query string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("stats %s: %w", query, err)
}

func countMap(counts []TypeCount) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		out[c.Type] += c.Count
	}
	return out
}

func topTypes(counts []TypeCount, n int) []string {
	out := make([]string, 0, n)
	for _, c := range counts {
		if len(out) == n {
			break
		}
		out = append(out, c.Type)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
