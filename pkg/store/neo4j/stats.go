package neo4j

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	nodeCountsQuery = `
MATCH (n)
RETURN coalesce(head(labels(n)), '') AS type, count(n) AS count
ORDER BY count DESC, type`

	edgeCountsQuery = `
MATCH ()-[r]->()
RETURN type(r) AS type, count(r) AS count
ORDER BY count DESC, type`

	mostConnectedQuery = `
MATCH (n)
RETURN coalesce(head(labels(n)), '') AS nodeType,
	toString(coalesce(n.name, n.address, n.id, elementId(n))) AS nodeName,
	COUNT { (n)--() } AS connections
ORDER BY connections DESC, nodeName
LIMIT $limit`

	nodePropertiesQuery = `
MATCH (n)
UNWIND keys(n) AS key
RETURN coalesce(head(labels(n)), '') AS nodeType, collect(DISTINCT key) AS properties
ORDER BY nodeType`

	patternsQuery = `
MATCH (a)-[r]->(b)
RETURN coalesce(head(labels(a)), '') + '-[' + type(r) + ']->' + coalesce(head(labels(b)), '') AS pattern,
	count(*) AS count
ORDER BY count DESC, pattern
LIMIT $limit`

	schemaPropertiesQuery = `
CALL db.schema.nodeTypeProperties()
YIELD nodeLabels, propertyName, propertyTypes
RETURN nodeLabels, propertyName, propertyTypes`

	schemaRelationsQuery = `
MATCH (a)-[r]->(b)
RETURN DISTINCT coalesce(head(labels(a)), '') AS source, type(r) AS type, coalesce(head(labels(b)), '') AS target`
)

func (s *GraphStore) NodeCounts(ctx context.Context) ([]stats.TypeCount, error) {
	return s.typeCounts(ctx, nodeCountsQuery)
}

func (s *GraphStore) EdgeCounts(ctx context.Context) ([]stats.TypeCount, error) {
	return s.typeCounts(ctx, edgeCountsQuery)
}

func (s *GraphStore) typeCounts(ctx context.Context, query string) ([]stats.TypeCount, error) {
	rows, err := s.q.Read(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	out := make([]stats.TypeCount, 0, len(rows))
	for _, row := range rows {
		t, err := stringAt(row, "type")
		if err != nil {
			return nil, err
		}
		count, err := countAt(row, "count")
		if err != nil {
			return nil, err
		}
		out = append(out, stats.TypeCount{Type: t, Count: count})
	}
	return out, nil
}

func (s *GraphStore) MostConnectedNodes(ctx context.Context, limit int) ([]stats.ConnectedNode, error) {
	rows, err := s.q.Read(ctx, mostConnectedQuery, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]stats.ConnectedNode, 0, len(rows))
	for _, row := range rows {
		nodeType, err := stringAt(row, "nodeType")
		if err != nil {
			return nil, err
		}
		name, err := stringAt(row, "nodeName")
		if err != nil {
			return nil, err
		}
		connections, err := countAt(row, "connections")
		if err != nil {
			return nil, err
		}
		out = append(out, stats.ConnectedNode{NodeType: nodeType, NodeName: name, Connections: connections})
	}
	return out, nil
}

func (s *GraphStore) NodeProperties(ctx context.Context) ([]stats.TypeProperties, error) {
	rows, err := s.q.Read(ctx, nodePropertiesQuery, nil)
	if err != nil {
		return nil, err
	}
	out := make([]stats.TypeProperties, 0, len(rows))
	for _, row := range rows {
		nodeType, err := stringAt(row, "nodeType")
		if err != nil {
			return nil, err
		}
		props, err := stringsAt(row, "properties")
		if err != nil {
			return nil, err
		}
		slices.Sort(props)
		out = append(out, stats.TypeProperties{NodeType: nodeType, Properties: props})
	}
	return out, nil
}

func (s *GraphStore) RelationshipPatterns(ctx context.Context, limit int) ([]stats.Pattern, error) {
	rows, err := s.q.Read(ctx, patternsQuery, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]stats.Pattern, 0, len(rows))
	for _, row := range rows {
		pattern, err := stringAt(row, "pattern")
		if err != nil {
			return nil, err
		}
		count, err := countAt(row, "count")
		if err != nil {
			return nil, err
		}
		out = append(out, stats.Pattern{Pattern: pattern, Count: count})
	}
	return out, nil
}

// Schema combines the property introspection procedure with the distinct
// relationship triples, without requiring APOC.
func (s *GraphStore) Schema(ctx context.Context) ([]stats.SchemaEntry, error) {
	propRows, err := s.q.Read(ctx, schemaPropertiesQuery, nil)
	if err != nil {
		return nil, err
	}
	relRows, err := s.q.Read(ctx, schemaRelationsQuery, nil)
	if err != nil {
		return nil, err
	}

	entries := map[string]*stats.SchemaEntry{}
	entry := func(label string) *stats.SchemaEntry {
		e, ok := entries[label]
		if !ok {
			e = &stats.SchemaEntry{Label: label}
			entries[label] = e
		}
		return e
	}

	for _, row := range propRows {
		labels, err := stringsAt(row, "nodeLabels")
		if err != nil {
			return nil, err
		}
		name, err := stringAt(row, "propertyName")
		if err != nil {
			return nil, err
		}
		types, err := stringsAt(row, "propertyTypes")
		if err != nil {
			return nil, err
		}
		for _, label := range labels {
			e := entry(label)
			if name != "" {
				e.Properties = append(e.Properties, stats.SchemaProperty{Name: name, Types: types})
			}
		}
	}

	for _, row := range relRows {
		source, err := stringAt(row, "source")
		if err != nil {
			return nil, err
		}
		relType, err := stringAt(row, "type")
		if err != nil {
			return nil, err
		}
		target, err := stringAt(row, "target")
		if err != nil {
			return nil, err
		}
		src := entry(source)
		src.Outgoing = append(src.Outgoing, stats.SchemaRelation{Type: relType, Label: target})
		dst := entry(target)
		dst.Incoming = append(dst.Incoming, stats.SchemaRelation{Type: relType, Label: source})
	}

	out := make([]stats.SchemaEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b stats.SchemaEntry) int {
		return strings.Compare(a.Label, b.Label)
	})
	return out, nil
}

func countAt(rec *neo4j.Record, key string) (int64, error) {
	v, err := intAt(rec, key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("%w: %q is null", ErrDecode, key)
	}
	return *v, nil
}
