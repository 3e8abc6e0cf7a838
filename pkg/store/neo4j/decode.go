package neo4j

import (
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrDecode marks a record whose shape does not match the query it came from.
var ErrDecode = errors.New("decode graph record")

func decodeErr(key string, want string, got any) error {
	return fmt.Errorf("%w: %q is %T, want %s", ErrDecode, key, got, want)
}

// nodeAt returns the node under key, or nil when the key is missing or null.
func nodeAt(rec *neo4j.Record, key string) (*neo4j.Node, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := v.(neo4j.Node)
	if !ok {
		return nil, decodeErr(key, "node", v)
	}
	return &n, nil
}

// relationshipAt returns the relationship under key, or nil when the key is
// missing or null.
func relationshipAt(rec *neo4j.Record, key string) (*neo4j.Relationship, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	r, ok := v.(neo4j.Relationship)
	if !ok {
		return nil, decodeErr(key, "relationship", v)
	}
	return &r, nil
}

// intAt returns the integer under key, or nil when missing or null.
func intAt(rec *neo4j.Record, key string) (*int64, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case int64:
		return &t, nil
	case float64:
		i := int64(t)
		return &i, nil
	default:
		return nil, decodeErr(key, "integer", v)
	}
}

// stringAt returns the string under key; null yields "".
func stringAt(rec *neo4j.Record, key string) (string, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", decodeErr(key, "string", v)
	}
	return s, nil
}

// stringsAt returns the list of strings under key, skipping nulls.
func stringsAt(rec *neo4j.Record, key string) ([]string, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, decodeErr(key, "list", v)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item == nil {
			continue
		}
		s, ok := item.(string)
		if !ok {
			return nil, decodeErr(key, "list of strings", v)
		}
		out = append(out, s)
	}
	return out, nil
}

func toEntity(n *neo4j.Node) *graph.Entity {
	if n == nil {
		return nil
	}
	return &graph.Entity{
		ID:         n.ElementId,
		Labels:     n.Labels,
		Properties: scalarProps(n.Props),
	}
}

// scalarProps keeps the properties that can be served as plain JSON values.
// Temporal and spatial values become strings; maps, byte arrays and
// heterogeneous lists are dropped.
func scalarProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if s, ok := scalar(v); ok {
			out[k] = s
		}
	}
	return out
}

func scalar(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string, bool, int64, float64:
		return t, true
	case int:
		return int64(t), true
	case time.Time:
		return t.Format(time.RFC3339Nano), true
	case []byte, map[string]any:
		return nil, false
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			s, ok := scalar(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case fmt.Stringer:
		return t.String(), true
	default:
		return nil, false
	}
}

// jsonValue converts a driver value into something encoding/json renders
// faithfully. Nodes and relationships become maps with their identity,
// type information and properties.
func jsonValue(v any) any {
	switch t := v.(type) {
	case neo4j.Node:
		return map[string]any{
			"elementId":  t.ElementId,
			"labels":     t.Labels,
			"properties": jsonMap(t.Props),
		}
	case neo4j.Relationship:
		return map[string]any{
			"elementId":      t.ElementId,
			"type":           t.Type,
			"startElementId": t.StartElementId,
			"endElementId":   t.EndElementId,
			"properties":     jsonMap(t.Props),
		}
	case neo4j.Path:
		nodes := make([]any, len(t.Nodes))
		for i, n := range t.Nodes {
			nodes[i] = jsonValue(n)
		}
		rels := make([]any, len(t.Relationships))
		for i, r := range t.Relationships {
			rels[i] = jsonValue(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = jsonValue(item)
		}
		return out
	case map[string]any:
		return jsonMap(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case nil, string, bool, int64, float64, []byte:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return t
	}
}

func jsonMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonValue(v)
	}
	return out
}

func recordToMap(rec *neo4j.Record) map[string]any {
	row := make(map[string]any, len(rec.Keys))
	for i, key := range rec.Keys {
		if i < len(rec.Values) {
			row[key] = jsonValue(rec.Values[i])
		}
	}
	return row
}
