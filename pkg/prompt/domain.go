// Package prompt composes the instructions sent to the language model for
// generating questions and Cypher queries about a subgraph.
package prompt

import (
	"strings"

	"github.com/OFFIS-RIT/graph-explorer/pkg/graph"
)

// Domain describes one dataset's graph vocabulary.
type Domain struct {
	Name string
	// Explanation describes what node and relationship types mean.
	Explanation string
	NodeTypes   []graph.EntityKind
	EdgeTypes   []graph.RelationKind
	// PreferredTypes are the node types queries should anchor on.
	PreferredTypes []graph.EntityKind
	// NameProperty is the property that identifies nodes in text search.
	NameProperty string
}

// Legal is the Supreme Court case graph.
var Legal = Domain{
	Name: "legal",
	Explanation: strings.TrimSpace(`
The graph describes United States Supreme Court cases.
Case nodes are decisions and carry an id, a name and a docket number.
Party, Justice and Advocate nodes are the participants of a case: parties are linked as Petitioner,
Respondent, Appellant or Appellee, advocates through advocated_by, and justices through decided_by,
majority and minority.
Opinion nodes hold the written opinions of a case and are linked with case_opinion.
ORG, LOC, PER and MISC nodes are named entities extracted from the opinions (organizations, locations,
persons and other concepts); they are linked to cases with mentioned_in and to each other with
relations such as employee_of, based_in or part_of.`),
	NodeTypes:      graph.LegalEntityKinds,
	EdgeTypes:      graph.LegalRelationKinds,
	PreferredTypes: []graph.EntityKind{graph.KindCase, graph.KindJustice, graph.KindParty, graph.KindOpinion},
	NameProperty:   "name",
}

// Email is the Enron e-mail graph.
var Email = Domain{
	Name: "email",
	Explanation: strings.TrimSpace(`
The graph describes the Enron e-mail corpus.
EmailAddress nodes are mailboxes identified by their address property.
Email nodes are single messages with id, subject, sent_date and body properties.
An e-mail is linked from its sender with (EmailAddress)-[:EMAIL_FROM]->(Email) and to each recipient
with (Email)-[:EMAIL_TO]->(EmailAddress).
In the subgraph below every e-mail is collapsed into one EMAIL link from sender to recipient.`),
	NodeTypes:      graph.EmailEntityKinds,
	EdgeTypes:      graph.EmailRelationKinds,
	PreferredTypes: []graph.EntityKind{graph.KindEmailAddress, graph.KindEmail},
	NameProperty:   "address",
}

// DomainByName returns the domain for a dataset name. Unknown names fall
// back to Email.
func DomainByName(name string) Domain {
	switch strings.ToLower(name) {
	case "scotus", "legal":
		return Legal
	default:
		return Email
	}
}
