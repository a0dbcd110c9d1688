package query

import "github.com/agentic-research/dirgraph/api"

// Predicate filters objects during traversal. It is a pure function over the
// object's applied facet set and attribute assignments; implementations must
// not capture mutable state.
type Predicate func(facets []string, attrs []api.AttributeValue) bool

// HasFacet matches objects with the named facet applied. Membership is
// checked over the whole facet set, not just the first applied facet, so the
// predicate stays correct if multi-facet objects ever appear.
func HasFacet(name string) Predicate {
	return func(facets []string, _ []api.AttributeValue) bool {
		for _, f := range facets {
			if f == name {
				return true
			}
		}
		return false
	}
}

// AttributeEquals matches objects carrying the exact attribute assignment.
func AttributeEquals(key api.AttributeKey, value string) Predicate {
	return func(_ []string, attrs []api.AttributeValue) bool {
		for _, av := range attrs {
			if av.Key == key && av.Value == value {
				return true
			}
		}
		return false
	}
}

// All matches when every predicate matches.
func All(preds ...Predicate) Predicate {
	return func(facets []string, attrs []api.AttributeValue) bool {
		for _, p := range preds {
			if !p(facets, attrs) {
				return false
			}
		}
		return true
	}
}

// Any matches when at least one predicate matches.
func Any(preds ...Predicate) Predicate {
	return func(facets []string, attrs []api.AttributeValue) bool {
		for _, p := range preds {
			if p(facets, attrs) {
				return true
			}
		}
		return false
	}
}
