package graph

// EntityKind is the type tag of a node.
type EntityKind string

const (
	KindEmailAddress EntityKind = "EmailAddress"
	KindEmail        EntityKind = "Email"
	KindCase         EntityKind = "Case"
	KindParty        EntityKind = "Party"
	KindJustice      EntityKind = "Justice"
	KindAdvocate     EntityKind = "Advocate"
	KindOpinion      EntityKind = "Opinion"
	KindOrg          EntityKind = "ORG"
	KindLoc          EntityKind = "LOC"
	KindPer          EntityKind = "PER"
	KindMisc         EntityKind = "MISC"
	// KindOther marks a label outside the known schema. The raw label is
	// kept on the node.
	KindOther EntityKind = "Other"
)

var entityKinds = map[string]EntityKind{}

// LegalEntityKinds are the node types of the court case graph.
var LegalEntityKinds = []EntityKind{
	KindCase, KindParty, KindJustice, KindAdvocate, KindOpinion,
	KindOrg, KindLoc, KindPer, KindMisc,
}

// EmailEntityKinds are the node types of the e-mail graph.
var EmailEntityKinds = []EntityKind{KindEmailAddress, KindEmail}

func init() {
	for _, k := range LegalEntityKinds {
		entityKinds[string(k)] = k
	}
	for _, k := range EmailEntityKinds {
		entityKinds[string(k)] = k
	}
}

// ParseEntityKind maps a store label to its kind.
func ParseEntityKind(label string) EntityKind {
	if k, ok := entityKinds[label]; ok {
		return k
	}
	return KindOther
}

// RelationKind is the type tag of a link.
type RelationKind string

const (
	RelCaseOpinion    RelationKind = "case_opinion"
	RelAlternateName  RelationKind = "alternate_name"
	RelMentionedIn    RelationKind = "mentioned_in"
	RelPetitioner     RelationKind = "Petitioner"
	RelRespondent     RelationKind = "Respondent"
	RelAdvocatedBy    RelationKind = "advocated_by"
	RelDecidedBy      RelationKind = "decided_by"
	RelWonBy          RelationKind = "won_by"
	RelMajority       RelationKind = "majority"
	RelMinority       RelationKind = "minority"
	RelBasedIn        RelationKind = "based_in"
	RelNone           RelationKind = "none"
	RelLivedIn        RelationKind = "lived_in"
	RelReligion       RelationKind = "religion"
	RelEmployeeOf     RelationKind = "employee_of"
	RelWorksFor       RelationKind = "works_for"
	RelParentOf       RelationKind = "parent_of"
	RelChildOf        RelationKind = "child_of"
	RelHasShareholder RelationKind = "has_shareholder"
	RelOwns           RelationKind = "owns"
	RelSiblingOf      RelationKind = "sibling_of"
	RelRelatedTo      RelationKind = "related_to"
	RelAppellant      RelationKind = "Appellant"
	RelAppellee       RelationKind = "Appellee"
	RelCharges        RelationKind = "charges"
	RelOrigin         RelationKind = "origin"
	RelBornIn         RelationKind = "born_in"
	RelSchoolAttended RelationKind = "school_attended"
	RelHasTitle       RelationKind = "has_title"
	RelPartOf         RelationKind = "part_of"
	RelWebsite        RelationKind = "website"

	RelEmailFrom RelationKind = "EMAIL_FROM"
	RelEmailTo   RelationKind = "EMAIL_TO"
	// RelEmail is the collapsed sender to recipient link of one e-mail.
	RelEmail RelationKind = "EMAIL"

	RelOther RelationKind = "Other"
)

// LegalRelationKinds are the relationship types of the court case graph.
var LegalRelationKinds = []RelationKind{
	RelCaseOpinion, RelAlternateName, RelMentionedIn, RelPetitioner, RelRespondent,
	RelAdvocatedBy, RelDecidedBy, RelWonBy, RelMajority, RelMinority, RelBasedIn,
	RelNone, RelLivedIn, RelReligion, RelEmployeeOf, RelWorksFor, RelParentOf,
	RelChildOf, RelHasShareholder, RelOwns, RelSiblingOf, RelRelatedTo, RelAppellant,
	RelAppellee, RelCharges, RelOrigin, RelBornIn, RelSchoolAttended, RelHasTitle,
	RelPartOf, RelWebsite,
}

// EmailRelationKinds are the relationship types of the e-mail graph.
var EmailRelationKinds = []RelationKind{RelEmailFrom, RelEmailTo}

var relationKinds = map[string]RelationKind{RelEmail.String(): RelEmail}

func init() {
	for _, k := range LegalRelationKinds {
		relationKinds[string(k)] = k
	}
	for _, k := range EmailRelationKinds {
		relationKinds[string(k)] = k
	}
}

func (k RelationKind) String() string { return string(k) }

// ParseRelationKind maps a store relationship type to its kind.
func ParseRelationKind(t string) RelationKind {
	if k, ok := relationKinds[t]; ok {
		return k
	}
	return RelOther
}
