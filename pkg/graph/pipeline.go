package graph

import (
	"maps"
)

// BuildOptions configures BuildSubgraph.
type BuildOptions struct {
	// NormalizeDegrees maps raw degrees to [0, 100] across the returned nodes.
	NormalizeDegrees bool
}

// BuildSubgraph turns raw records into a subgraph: project, deduplicate nodes
// and links with first occurrence winning, prune nodes no link references and
// finally normalize degrees over the surviving nodes.
//
// Normalization intentionally runs last: the [0, 100] range spans only the
// nodes that are returned, so a pruned node with an extreme degree cannot
// compress the scale of the ones that remain. When every surviving node has
// the same degree, all of them normalize to 0.
func BuildSubgraph(records []Record, opts BuildOptions) Subgraph {
	out := EmptySubgraph()
	degrees := map[string]int64{}
	seenNodes := map[string]struct{}{}
	seenLinks := map[string]struct{}{}

	addNode := func(e *Entity, degree *int64) {
		if e == nil || e.ID == "" {
			return
		}
		if _, ok := seenNodes[e.ID]; ok {
			return
		}
		seenNodes[e.ID] = struct{}{}
		out.Nodes = append(out.Nodes, projectNode(e))
		if degree != nil {
			degrees[e.ID] = *degree
		}
	}

	for _, rec := range records {
		addNode(rec.Source, rec.SourceDegree)
		addNode(rec.Target, rec.TargetDegree)

		link, ok := projectLink(rec)
		if !ok {
			continue
		}
		if _, ok := seenLinks[link.Key]; ok {
			continue
		}
		seenLinks[link.Key] = struct{}{}
		out.Links = append(out.Links, link)
	}

	out.Nodes = pruneOrphans(out.Nodes, out.Links)

	if opts.NormalizeDegrees {
		normalizeDegrees(out.Nodes, degrees)
	}
	return out
}

func projectNode(e *Entity) Node {
	label := e.Label()
	return Node{
		ID:         e.ID,
		Kind:       ParseEntityKind(label),
		Label:      label,
		Properties: maps.Clone(e.Properties),
	}
}

func projectLink(rec Record) (Link, bool) {
	if rec.Source == nil || rec.Target == nil || rec.Relation == nil {
		return Link{}, false
	}
	if rec.Source.ID == "" || rec.Target.ID == "" {
		return Link{}, false
	}

	key := rec.Relation.Key
	if key == "" {
		key = rec.Source.ID + "->" + rec.Target.ID
	}
	return Link{
		Source:     rec.Source.ID,
		Target:     rec.Target.ID,
		Kind:       ParseRelationKind(rec.Relation.Type),
		Label:      rec.Relation.Type,
		Properties: maps.Clone(rec.Relation.Properties),
		Key:        key,
	}, true
}

func pruneOrphans(nodes []Node, links []Link) []Node {
	referenced := make(map[string]struct{}, len(links)*2)
	for _, l := range links {
		referenced[l.Source] = struct{}{}
		referenced[l.Target] = struct{}{}
	}

	kept := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := referenced[n.ID]; ok {
			kept = append(kept, n)
		}
	}
	return kept
}

func normalizeDegrees(nodes []Node, degrees map[string]int64) {
	var lo, hi int64
	first := true
	for _, n := range nodes {
		d, ok := degrees[n.ID]
		if !ok {
			continue
		}
		if first || d < lo {
			lo = d
		}
		if first || d > hi {
			hi = d
		}
		first = false
	}

	for i := range nodes {
		d, ok := degrees[nodes[i].ID]
		if !ok {
			continue
		}
		v := 0.0
		if hi > lo {
			v = float64(d-lo) / float64(hi-lo) * 100
		}
		nodes[i].InEdgesCount = &v
	}
}
