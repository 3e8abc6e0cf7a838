package neo4j

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/store"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// identPattern matches labels and relationship types that can be written
// into Cypher unquoted.
var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// SaveCase writes the case, its parties, advocates, justices, votes, opinions
// and extracted entities in one write transaction. Nodes are merged on their
// id and relationships on their endpoints, type and properties, so saving a
// case again leaves the graph unchanged. Relationships whose type is not a
// plain identifier are skipped.
func (s *GraphStore) SaveCase(ctx context.Context, c store.CaseRecord) error {
	stmts, err := caseStatements(c)
	if err != nil {
		return err
	}
	if err := s.q.Write(ctx, stmts); err != nil {
		return fmt.Errorf("save case %d: %w", c.ID, err)
	}
	return nil
}

type nodeRef struct {
	label string
	id    any
}

type caseWriter struct {
	stmts []Statement
	seen  map[string]struct{}
	err   error
}

func caseStatements(c store.CaseRecord) ([]Statement, error) {
	if c.ID == 0 {
		return nil, errors.New("case id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return nil, errors.New("case name is required")
	}

	w := &caseWriter{seen: map[string]struct{}{}}
	kase := nodeRef{string(graph.KindCase), c.ID}
	w.node(kase, map[string]any{
		"name":          c.Name,
		"docket_number": c.DocketNumber,
		"term":          c.Term,
		"decided_date":  c.DecidedDate,
	})

	for _, p := range c.Parties {
		if p.Name == "" {
			continue
		}
		party := nodeRef{string(graph.KindParty), p.Name}
		w.node(party, map[string]any{"name": p.Name})
		w.link(kase, p.Role, party, nil)
	}
	for _, a := range c.Advocates {
		if a.Name == "" {
			continue
		}
		advocate := nodeRef{string(graph.KindAdvocate), a.Name}
		w.node(advocate, map[string]any{"name": a.Name, "description": a.Description})
		w.link(kase, string(graph.RelAdvocatedBy), advocate, nil)
	}
	for _, j := range c.Justices {
		if justice, ok := w.justice(j); ok {
			w.link(kase, string(graph.RelDecidedBy), justice, nil)
		}
	}
	for _, d := range c.Decisions {
		if d.WinningParty != "" {
			winner := nodeRef{string(graph.KindParty), d.WinningParty}
			w.node(winner, map[string]any{"name": d.WinningParty})
			if d.DecisionType != "" {
				w.link(kase, string(graph.RelWonBy), winner, map[string]any{"decision_type": d.DecisionType})
			}
		}
		for _, v := range d.Votes {
			if justice, ok := w.justice(v.Justice); ok {
				w.link(kase, v.Vote, justice, map[string]any{"opinion_type": v.OpinionType})
			}
		}
	}
	for _, o := range c.Opinions {
		if o.ID == "" {
			continue
		}
		opinion := nodeRef{string(graph.KindOpinion), o.ID}
		w.node(opinion, map[string]any{"title": o.Title, "case_id": c.ID})
		w.link(kase, string(graph.RelCaseOpinion), opinion, nil)
	}

	entities := map[string]nodeRef{}
	for _, e := range c.Entities {
		if e.Name == "" || !identPattern.MatchString(e.Kind) {
			continue
		}
		if _, ok := entities[e.Name]; ok {
			continue
		}
		entity := nodeRef{e.Kind, e.Name}
		entities[e.Name] = entity
		w.node(entity, map[string]any{"name": e.Name})
		w.link(kase, string(graph.RelMentionedIn), entity, nil)
	}
	for _, r := range c.Relations {
		head, ok := entities[r.Head]
		if !ok {
			continue
		}
		tail, ok := entities[r.Tail]
		if !ok {
			continue
		}
		w.link(head, r.Relation, tail, nil)
	}

	if w.err != nil {
		return nil, w.err
	}
	return w.stmts, nil
}

func (w *caseWriter) justice(j store.CaseJustice) (nodeRef, bool) {
	if j.ID == 0 {
		return nodeRef{}, false
	}
	ref := nodeRef{string(graph.KindJustice), j.ID}
	w.node(ref, map[string]any{"name": j.Name})
	return ref, true
}

// node merges n once per case. Empty string properties are not written.
func (w *caseWriter) node(n nodeRef, props map[string]any) {
	if w.err != nil {
		return
	}
	key := fmt.Sprintf("%s/%v", n.label, n.id)
	if _, ok := w.seen[key]; ok {
		return
	}
	w.seen[key] = struct{}{}

	qb := gocypher.NewQueryBuilder().
		Merge(gocypher.N("n", n.label).WithProperties(map[string]any{"id": n.id}))
	if set := nonEmpty("n.", props); len(set) > 0 {
		qb = qb.Set(set)
	}
	query, params, err := qb.Return("n").Build()
	if err != nil {
		w.err = fmt.Errorf("build %s merge: %w", n.label, err)
		return
	}
	w.stmts = append(w.stmts, Statement{Cypher: query, Params: params})
}

func (w *caseWriter) link(from nodeRef, rel string, to nodeRef, props map[string]any) {
	if w.err != nil || !identPattern.MatchString(rel) {
		return
	}
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("a", from.label).WithProperties(map[string]any{"id": from.id})).
		Match(gocypher.N("b", to.label).WithProperties(map[string]any{"id": to.id})).
		Merge(
			gocypher.NRef("a"),
			gocypher.R("r", rel).To().WithProperties(nonEmpty("", props)),
			gocypher.NRef("b"),
		).
		Return("r").
		Build()
	if err != nil {
		w.err = fmt.Errorf("build %s merge: %w", rel, err)
		return
	}
	w.stmts = append(w.stmts, Statement{Cypher: query, Params: params})
}

func nonEmpty(prefix string, props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[prefix+k] = v
	}
	return out
}
