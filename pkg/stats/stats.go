// Package stats aggregates descriptive statistics about the whole graph and
// caches them for prompt grounding.
package stats

import (
	"context"
)

// Sizes of the reduced view embedded in prompts.
const (
	ReducedMostConnected = 3
	ReducedProperties    = 5
	ReducedPatterns      = 3
)

// TypeCount is the number of nodes or relationships of one type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// ConnectedNode is a node ranked by undirected degree.
type ConnectedNode struct {
	NodeType    string `json:"nodeType"`
	NodeName    string `json:"nodeName"`
	Connections int64  `json:"connections"`
}

// TypeProperties lists the property keys seen on nodes of one type.
type TypeProperties struct {
	NodeType   string   `json:"nodeType"`
	Properties []string `json:"properties"`
}

// Pattern is a relationship pattern such as Case-[decided_by]->Justice with
// its frequency.
type Pattern struct {
	Pattern string `json:"pattern"`
	Count   int64  `json:"count"`
}

// SchemaProperty is one property of a node type with its store types.
type SchemaProperty struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

// SchemaRelation is a relationship type seen from one node type, pointing to
// or coming from Label.
type SchemaRelation struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// SchemaEntry is the introspected structure of one node type.
type SchemaEntry struct {
	Label      string           `json:"label"`
	Properties []SchemaProperty `json:"properties"`
	Outgoing   []SchemaRelation `json:"outgoing"`
	Incoming   []SchemaRelation `json:"incoming"`
}

// GraphStats is a snapshot of the graph's shape.
type GraphStats struct {
	NodeCounts           map[string]int64 `json:"nodeCounts"`
	EdgeCounts           map[string]int64 `json:"edgeCounts"`
	MostConnectedNodes   []ConnectedNode  `json:"mostConnectedNodes"`
	CommonNodeProperties []TypeProperties `json:"commonNodeProperties"`
	RelationshipPatterns []Pattern        `json:"relationshipPatterns"`
	Schema               string           `json:"schema"`
	TopNodeTypes         []string         `json:"topNodeTypes"`
	TopEdgeTypes         []string         `json:"topEdgeTypes"`
}

// Source runs the individual statistics queries. Counts are expected in
// descending order.
type Source interface {
	NodeCounts(ctx context.Context) ([]TypeCount, error)
	EdgeCounts(ctx context.Context) ([]TypeCount, error)
	MostConnectedNodes(ctx context.Context, limit int) ([]ConnectedNode, error)
	NodeProperties(ctx context.Context) ([]TypeProperties, error)
	RelationshipPatterns(ctx context.Context, limit int) ([]Pattern, error)
	Schema(ctx context.Context) ([]SchemaEntry, error)
}

// Reduce returns a copy of s with most connected nodes, per type properties
// and patterns truncated for prompt embedding.
func Reduce(s GraphStats) GraphStats {
	out := s
	out.MostConnectedNodes = head(s.MostConnectedNodes, ReducedMostConnected)
	out.RelationshipPatterns = head(s.RelationshipPatterns, ReducedPatterns)

	out.CommonNodeProperties = make([]TypeProperties, len(s.CommonNodeProperties))
	for i, tp := range s.CommonNodeProperties {
		out.CommonNodeProperties[i] = TypeProperties{
			NodeType:   tp.NodeType,
			Properties: head(tp.Properties, ReducedProperties),
		}
	}
	return out
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[:n]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
