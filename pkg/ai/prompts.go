package ai

import (
	"fmt"
	"strings"
)

// SummarizeOpinionsPrompt asks for a thematic summary of court opinions.
func SummarizeOpinionsPrompt(text string) string {
	return fmt.Sprintf(`Summarize the following Supreme Court opinions:

%s

Indicate the number of opinions processed. Find the most common themes across all of them.
Whenever mentioning a case, clearly indicate the case name and docket number.`, text)
}

// SummarizeEmailsPrompt asks for a summary of e-mail conversations.
func SummarizeEmailsPrompt(text string) string {
	return fmt.Sprintf(`Summarize the following e-mails:

%s

Indicate the number of e-mails processed. Describe the main topics, who is talking to whom about them
and any notable events, decisions or figures. Whenever mentioning an e-mail, indicate its sender and subject.`, text)
}

// RelateToQueryPrompt asks the model to relate a summary to the user's query.
func RelateToQueryPrompt(summary string, query string) string {
	return fmt.Sprintf(`Relate the following text:

%s

to this query: %s`, summary, query)
}

// ExtractEntitiesPrompt is the system prompt for named entity and relation
// extraction from court opinions.
func ExtractEntitiesPrompt(entityTypes []string, relationTypes []string) string {
	return fmt.Sprintf(`You extract named entities and the relations between them from Supreme Court opinions.

Entity types: %s
ORG are organizations, LOC are locations, PER are persons and MISC are other named concepts such as laws or events.
Only extract entities that are named in the text. Keep the name exactly as written.

Relation types: %s
Only extract a relation when the text states it and both entities were extracted.
Use the entity names for head and tail.`, strings.Join(entityTypes, ", "), strings.Join(relationTypes, ", "))
}
