package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
	"github.com/OFFIS-RIT/graph-explorer/pkg/stats"
)

// DefaultResultLimit is the LIMIT generated queries are asked to apply.
const DefaultResultLimit = 25

// Entry is one generated question with the query answering it.
type Entry struct {
	Question string `json:"question" jsonschema_description:"A question that can be answered by a Cypher query."`
	Cypher   string `json:"cypher" jsonschema_description:"The Cypher query that answers the question."`
}

// Questions is the structured output of question generation.
type Questions struct {
	Entries []Entry `json:"entries" jsonschema_description:"Questions about the subgraph with their Cypher queries."`
}

// Validate reports an error when an entry lacks its question or query.
func (q Questions) Validate() error {
	var errs []error
	for i, e := range q.Entries {
		if strings.TrimSpace(e.Question) == "" {
			errs = append(errs, fmt.Errorf("entry %d: missing question", i))
		}
		if strings.TrimSpace(e.Cypher) == "" {
			errs = append(errs, fmt.Errorf("entry %d: missing cypher", i))
		}
	}
	return errors.Join(errs...)
}

// BuildQuestionsPrompt composes the question generation prompt for sg. The
// result depends only on its arguments.
func BuildQuestionsPrompt(domain Domain, sg graph.Subgraph, summary string, reduced stats.GraphStats) (string, error) {
	nodes, err := json.Marshal(nonNil(sg.Nodes))
	if err != nil {
		return "", fmt.Errorf("encode nodes: %w", err)
	}
	links, err := json.Marshal(nonNil(sg.Links))
	if err != nil {
		return "", fmt.Errorf("encode links: %w", err)
	}
	st, err := json.Marshal(statsView(reduced))
	if err != nil {
		return "", fmt.Errorf("encode statistics: %w", err)
	}
	schema, err := json.Marshal(map[string]any{
		"nodes": domain.NodeTypes,
		"edges": domain.EdgeTypes,
	})
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = "No summary available."
	}

	var b strings.Builder
	b.WriteString(`Given the following schema and subgraph as well as a summary of content, generate a set of non-trivial questions that can be answered by a Cypher query.
The questions should relate directly to the provided nodes and edges and assume they will be used in the query.
Queries may explore nodes and edges that do not appear in the current subgraph as long as they follow the same schema.
Ensure that at least one node from the subgraph is included in each question.
Prioritize non-trivial questions over obvious ones.
Then generate the corresponding Cypher query for each question.

`)
	fmt.Fprintf(&b, "Domain:\n%s\n\n", domain.Explanation)
	fmt.Fprintf(&b, "Graph Schema:\n%s\n\n", schema)
	if reduced.Schema != "" {
		fmt.Fprintf(&b, "Detailed Schema:\n%s\n\n", reduced.Schema)
	}
	fmt.Fprintf(&b, "Graph Statistics:\n%s\n\n", st)
	fmt.Fprintf(&b, "Sub Graph:\nNodes: %s\nEdges: %s\n\n", nodes, links)
	fmt.Fprintf(&b, "Summary:\n%s\n\n", summary)
	b.WriteString("Query guidelines:\n")
	for i, h := range heuristics(domain) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}
	return b.String(), nil
}

func heuristics(domain Domain) []string {
	preferred := make([]string, len(domain.PreferredTypes))
	for i, k := range domain.PreferredTypes {
		preferred[i] = string(k)
	}
	prop := domain.NameProperty
	return []string{
		fmt.Sprintf("Match names with case-insensitive partial matching, e.g. WHERE toLower(n.%s) CONTAINS toLower('value'), instead of exact equality.", prop),
		"Split multi-word names into their most distinctive part when matching, since stored names may be abbreviated or formatted differently.",
		fmt.Sprintf("Always limit the number of returned rows, e.g. LIMIT %d.", DefaultResultLimit),
		fmt.Sprintf("Prefer anchoring queries on these node types: %s.", strings.Join(preferred, ", ")),
		"Only use node labels, relationship types and properties that exist in the schema.",
		"Only write read-only queries. Never use CREATE, MERGE, SET, DELETE or REMOVE.",
		"Return named values with AS aliases so results are readable.",
	}
}

// statsView keeps the parts of the statistics that ground query writing.
func statsView(s stats.GraphStats) map[string]any {
	return map[string]any{
		"nodeCounts":           s.NodeCounts,
		"edgeCounts":           s.EdgeCounts,
		"mostConnectedNodes":   s.MostConnectedNodes,
		"commonNodeProperties": s.CommonNodeProperties,
		"relationshipPatterns": s.RelationshipPatterns,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
