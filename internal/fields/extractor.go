// Package fields turns recognized document text into a fixed record of
// identity fields using ordered, independently testable rules.
//
// Extraction never fails: a field whose rules find nothing is left as the
// empty string. The package keeps no mutable state, so an Extractor may be
// shared across goroutines.
package fields

// Match records which rule populated a field.
type Match struct {
	Field Field  `json:"field"`
	Rule  string `json:"rule"`
	Raw   string `json:"raw"`
	Value string `json:"value"`
}

// Extractor applies rule sets field by field.
type Extractor struct {
	sets []FieldRules
}

// NewExtractor builds an extractor from the given rule sets, or from
// DefaultRules when none are given. Fields without rules stay empty.
func NewExtractor(sets ...FieldRules) *Extractor {
	if len(sets) == 0 {
		sets = DefaultRules()
	}
	return &Extractor{sets: sets}
}

var defaultExtractor = NewExtractor()

// Extract runs the default rule set over text.
func Extract(text string) ExtractedFields {
	return defaultExtractor.Extract(text)
}

// Extract returns a fresh record for text.
func (x *Extractor) Extract(text string) ExtractedFields {
	out, _ := x.ExtractWithTrace(text)
	return out
}

// ExtractWithTrace is Extract plus one Match per populated field.
func (x *Extractor) ExtractWithTrace(text string) (ExtractedFields, []Match) {
	var (
		out   ExtractedFields
		trace []Match
	)
	for _, set := range x.sets {
		if out.Get(set.Field) != "" {
			continue
		}
		for _, r := range set.Rules {
			raw, v := r.Apply(text)
			if v == "" {
				continue
			}
			out.Set(set.Field, v)
			trace = append(trace, Match{Field: set.Field, Rule: r.Name, Raw: raw, Value: v})
			break
		}
	}
	return out, trace
}

// Rules returns the extractor's rule sets.
func (x *Extractor) Rules() []FieldRules {
	return x.sets
}
