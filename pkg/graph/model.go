// Package graph holds the node/link model served to the explorer and the
// pipeline that materializes a deduplicated subgraph from raw store records.
package graph

import (
	"context"
	"encoding/json"
	"maps"
)

// Entity is a store node after decoding at the store boundary.
type Entity struct {
	ID         string
	Labels     []string
	Properties map[string]any
}

// Label returns the primary label, or "" when the node has none.
func (e Entity) Label() string {
	if len(e.Labels) == 0 {
		return ""
	}
	return e.Labels[0]
}

// Relation is a store relationship after decoding at the store boundary.
//
// Key is the identity used for link deduplication. When empty, links are
// deduplicated by their endpoints.
type Relation struct {
	Type       string
	Key        string
	Properties map[string]any
}

// Record is one projected store row. Any field may be nil; a record only
// produces a link when it has a source, a target and a relation.
type Record struct {
	Source       *Entity
	Target       *Entity
	Relation     *Relation
	SourceDegree *int64
	TargetDegree *int64
}

// RecordSource yields the single hop neighborhood of a seed set, capped at
// limit records.
type RecordSource interface {
	Neighborhood(ctx context.Context, seeds []string, limit int) ([]Record, error)
}

// Node is an entity in a materialized subgraph.
type Node struct {
	ID         string
	Kind       EntityKind
	Label      string
	Properties map[string]any
	// InEdgesCount is the degree normalized to [0, 100] within one response.
	InEdgesCount *float64
}

// Link is a relationship in a materialized subgraph.
type Link struct {
	Source     string
	Target     string
	Kind       RelationKind
	Label      string
	Properties map[string]any
	Key        string
}

// Subgraph is the materialized result. Every link references nodes in the
// set and every node is referenced by at least one link.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// EmptySubgraph returns a subgraph that encodes as empty JSON arrays.
func EmptySubgraph() Subgraph {
	return Subgraph{Nodes: []Node{}, Links: []Link{}}
}

// MarshalJSON flattens properties next to id, label and inEdgesCount.
// Reserved keys take precedence over properties of the same name.
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Properties)+3)
	maps.Copy(out, n.Properties)
	out["id"] = n.ID
	out["label"] = n.Label
	if n.InEdgesCount != nil {
		out["inEdgesCount"] = *n.InEdgesCount
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flattened encoding produced by MarshalJSON.
func (n *Node) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*n = Node{}
	if v, ok := raw["id"]; ok {
		n.ID = stringify(v)
		delete(raw, "id")
	}
	if v, ok := raw["label"].(string); ok {
		n.Label = v
		delete(raw, "label")
	}
	if v, ok := raw["inEdgesCount"].(float64); ok {
		n.InEdgesCount = &v
		delete(raw, "inEdgesCount")
	}
	n.Kind = ParseEntityKind(n.Label)
	n.Properties = raw
	return nil
}

// MarshalJSON flattens properties next to source, target and label.
func (l Link) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Properties)+3)
	maps.Copy(out, l.Properties)
	out["source"] = l.Source
	out["target"] = l.Target
	out["label"] = l.Label
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flattened encoding produced by MarshalJSON.
func (l *Link) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = Link{}
	if v, ok := raw["source"]; ok {
		l.Source = stringify(v)
		delete(raw, "source")
	}
	if v, ok := raw["target"]; ok {
		l.Target = stringify(v)
		delete(raw, "target")
	}
	if v, ok := raw["label"].(string); ok {
		l.Label = v
		delete(raw, "label")
	}
	l.Kind = ParseRelationKind(l.Label)
	l.Properties = raw
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
