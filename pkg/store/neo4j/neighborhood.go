package neo4j

import (
	"context"
	"fmt"
	"maps"

	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// The in-degree of both endpoints is counted in two stages so the optional
// matches do not multiply each other's rows.
const emailNeighborhoodQuery = `
MATCH (from:EmailAddress)-[fromRel:EMAIL_FROM]->(email:Email)-[toRel:EMAIL_TO]->(to:EmailAddress)
WHERE from.address IN $seeds OR to.address IN $seeds
OPTIONAL MATCH (from)<-[fromIn:EMAIL_TO|EMAIL_FROM]-()
WITH from, fromRel, email, toRel, to, count(fromIn) AS fromInEdgesCount
OPTIONAL MATCH (to)<-[toIn:EMAIL_TO|EMAIL_FROM]-()
RETURN from, fromRel, email, toRel, to, fromInEdgesCount, count(toIn) AS toInEdgesCount
LIMIT $limit`

const caseNeighborhoodQuery = `
MATCH (case:Case)-[r]->(connected)
WHERE case.id IN $seeds
RETURN DISTINCT case, r, connected
LIMIT $limit`

// EmailNeighborhood resolves e-mail addresses into sender/recipient records.
// Every e-mail between two addresses becomes one relation keyed by the
// e-mail's id.
type EmailNeighborhood struct {
	q Querier
}

func NewEmailNeighborhood(q Querier) *EmailNeighborhood {
	return &EmailNeighborhood{q: q}
}

func (n *EmailNeighborhood) Neighborhood(ctx context.Context, seeds []string, limit int) ([]graph.Record, error) {
	rows, err := n.q.Read(ctx, emailNeighborhoodQuery, map[string]any{
		"seeds": seeds,
		"limit": int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("query email neighborhood: %w", err)
	}

	out := make([]graph.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeEmailRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeEmailRow(row *neo4j.Record) (graph.Record, error) {
	from, err := nodeAt(row, "from")
	if err != nil {
		return graph.Record{}, err
	}
	to, err := nodeAt(row, "to")
	if err != nil {
		return graph.Record{}, err
	}
	email, err := nodeAt(row, "email")
	if err != nil {
		return graph.Record{}, err
	}
	fromRel, err := relationshipAt(row, "fromRel")
	if err != nil {
		return graph.Record{}, err
	}
	toRel, err := relationshipAt(row, "toRel")
	if err != nil {
		return graph.Record{}, err
	}
	fromDegree, err := intAt(row, "fromInEdgesCount")
	if err != nil {
		return graph.Record{}, err
	}
	toDegree, err := intAt(row, "toInEdgesCount")
	if err != nil {
		return graph.Record{}, err
	}

	rec := graph.Record{
		Source:       toEntity(from),
		Target:       toEntity(to),
		SourceDegree: fromDegree,
		TargetDegree: toDegree,
	}
	if email != nil {
		rec.Relation = emailRelation(email, fromRel, toRel)
	}
	return rec, nil
}

// emailRelation folds the two hops through an e-mail node into one relation.
// E-mail properties win over relationship properties.
func emailRelation(email *neo4j.Node, fromRel, toRel *neo4j.Relationship) *graph.Relation {
	props := map[string]any{}
	if fromRel != nil {
		maps.Copy(props, scalarProps(fromRel.Props))
	}
	if toRel != nil {
		maps.Copy(props, scalarProps(toRel.Props))
	}
	emailProps := scalarProps(email.Props)
	maps.Copy(props, emailProps)

	key := email.ElementId
	if id, ok := emailProps["id"].(string); ok && id != "" {
		key = id
		props["transaction_id"] = id
	}
	return &graph.Relation{
		Type:       string(graph.RelEmail),
		Key:        key,
		Properties: props,
	}
}

// CaseNeighborhood resolves case ids into the case's outgoing relationships.
type CaseNeighborhood struct {
	q Querier
}

func NewCaseNeighborhood(q Querier) *CaseNeighborhood {
	return &CaseNeighborhood{q: q}
}

func (n *CaseNeighborhood) Neighborhood(ctx context.Context, seeds []string, limit int) ([]graph.Record, error) {
	rows, err := n.q.Read(ctx, caseNeighborhoodQuery, map[string]any{
		"seeds": seeds,
		"limit": int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("query case neighborhood: %w", err)
	}

	out := make([]graph.Record, 0, len(rows))
	for _, row := range rows {
		c, err := nodeAt(row, "case")
		if err != nil {
			return nil, err
		}
		connected, err := nodeAt(row, "connected")
		if err != nil {
			return nil, err
		}
		rel, err := relationshipAt(row, "r")
		if err != nil {
			return nil, err
		}

		src := toEntity(c)
		if src != nil {
			if id, ok := src.Properties["id"]; ok {
				src.Properties["caseId"] = id
			}
		}
		rec := graph.Record{Source: src, Target: toEntity(connected)}
		if rel != nil {
			rec.Relation = &graph.Relation{
				Type:       rel.Type,
				Key:        rel.ElementId,
				Properties: scalarProps(rel.Props),
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
