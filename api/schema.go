package api

// ObjectKind declares the attachment behavior of objects carrying a facet.
// Node objects are internal hierarchy members with a single parent; leaf
// objects may be attached under many parents but can never have children.
type ObjectKind string

const (
	KindNode     ObjectKind = "NODE"
	KindLeafNode ObjectKind = "LEAF_NODE"
)

// AttributeType tags the value type of an attribute definition.
// This domain only uses strings, but the tag is open-ended.
type AttributeType string

const (
	TypeString AttributeType = "STRING"
)

// RequiredBehavior controls whether an attribute must be present on every
// object the facet is applied to.
type RequiredBehavior string

const (
	RequiredAlways RequiredBehavior = "REQUIRED_ALWAYS"
	NotRequired    RequiredBehavior = "NOT_REQUIRED"
)

// AttributeDefinition describes one attribute declared by a facet.
type AttributeDefinition struct {
	// Name of the attribute, unique within its facet.
	Name string `json:"name"`
	// Type of the attribute value.
	Type AttributeType `json:"type"`
	// Required controls whether the attribute must be assigned on creation.
	Required RequiredBehavior `json:"required"`
	// Immutable attributes cannot be updated after creation.
	Immutable bool `json:"immutable,omitempty"`
}

// Facet is a named type contract: an object kind plus an ordered set of
// attribute definitions. Every attribute assigned to an object must reference
// a definition declared on a facet applied to that object.
type Facet struct {
	// Name of the facet, unique within a schema.
	Name string `json:"name"`
	// Kind declares single-parent (NODE) vs multi-parent (LEAF_NODE) behavior.
	Kind ObjectKind `json:"kind"`
	// Attributes declared by this facet, in declaration order.
	Attributes []AttributeDefinition `json:"attributes,omitempty"`
}

// AttributeKey identifies an attribute by the facet that declares it.
type AttributeKey struct {
	FacetName string `json:"facet_name"`
	Name      string `json:"name"`
}

// AttributeValue is one typed attribute assignment on an object.
type AttributeValue struct {
	Key   AttributeKey `json:"key"`
	Value string       `json:"value"`
}

// StringValue builds an attribute assignment for a facet-scoped string attribute.
func StringValue(facetName, attrName, value string) AttributeValue {
	return AttributeValue{
		Key:   AttributeKey{FacetName: facetName, Name: attrName},
		Value: value,
	}
}

// RequiredMutableStringAttributes produces a required, mutable STRING
// definition for each name. Every facet in this domain uses plain required
// mutable strings, so this is the only definition shape the builder needs.
func RequiredMutableStringAttributes(names ...string) []AttributeDefinition {
	defs := make([]AttributeDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, AttributeDefinition{
			Name:     name,
			Type:     TypeString,
			Required: RequiredAlways,
		})
	}
	return defs
}
