package stats

import (
	"fmt"
	"slices"
	"strings"
)

// FormatSchema renders introspected node types as human readable lines:
//
//	Case {id: String, name: String}
//	  -[decided_by]-> Justice
//	  <-[case_opinion]- Opinion
//
// Output is sorted and therefore stable for a given input.
func FormatSchema(entries []SchemaEntry) string {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b SchemaEntry) int { return strings.Compare(a.Label, b.Label) })

	var sb strings.Builder
	for _, e := range sorted {
		props := make([]string, 0, len(e.Properties))
		for _, p := range e.Properties {
			if len(p.Types) == 0 {
				props = append(props, p.Name)
				continue
			}
			props = append(props, fmt.Sprintf("%s: %s", p.Name, strings.Join(p.Types, "|")))
		}
		slices.Sort(props)
		fmt.Fprintf(&sb, "%s {%s}\n", e.Label, strings.Join(props, ", "))

		for _, line := range relationLines(e.Outgoing, "  -[%s]-> %s") {
			sb.WriteString(line)
		}
		for _, line := range relationLines(e.Incoming, "  <-[%s]- %s") {
			sb.WriteString(line)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func relationLines(rels []SchemaRelation, format string) []string {
	lines := make([]string, 0, len(rels))
	for _, r := range rels {
		lines = append(lines, fmt.Sprintf(format, r.Type, r.Label)+"\n")
	}
	slices.Sort(lines)
	return slices.Compact(lines)
}
