package record

import "slices"

// Relation names a relationship field of a Record.
type Relation string

const (
	Parent    Relation = "parent"
	Inverse   Relation = "inverse"
	Followups Relation = "followups"
	Preceding Relation = "preceding"
	Counters  Relation = "counters"
	Concepts  Relation = "concepts"
)

// AllRelations lists every relationship field in reconciliation order.
var AllRelations = []Relation{Parent, Inverse, Followups, Preceding, Counters, Concepts}

// Family describes one kind of record: where it lives, which taxonomy tags it
// may carry and which relationship fields are maintained for it.
type Family struct {
	Name       string
	Dir        string
	Categories []Category
	Relations  []Relation
	// Registry enables the "_ids" side document listing every known id.
	Registry bool
}

// Has reports whether rel is maintained for the family.
func (f Family) Has(rel Relation) bool {
	return slices.Contains(f.Relations, rel)
}

// Allows reports whether c belongs to the family taxonomy.
func (f Family) Allows(c Category) bool {
	return slices.Contains(f.Categories, c)
}

// Built-in families.
var (
	Techniques = Family{
		Name: "techniques",
		Dir:  "techniques",
		Categories: []Category{
			Position,
			Submission, SubmissionChokehold, SubmissionJointLock, SubmissionCompressionLock,
			Sweep,
			Takedown, TakedownThrow,
			Pass,
			Defense, DefenseEscape,
		},
		Relations: AllRelations,
		Registry:  true,
	}

	Articles = Family{
		Name: "articles",
		Dir:  "articles",
		Categories: []Category{
			Position,
			Submission, SubmissionChokehold, SubmissionJointLock, SubmissionCompressionLock,
			Sweep,
			Takedown, TakedownThrow,
			Pass,
			Defense, DefenseEscape,
			Concept,
		},
		Relations: AllRelations,
	}
)

// Families returns the built-in families.
func Families() []Family {
	return []Family{Techniques, Articles}
}

// LookupFamily finds a built-in family by name.
func LookupFamily(name string) (Family, bool) {
	for _, f := range Families() {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}
