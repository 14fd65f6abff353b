package domain

// MappingKind selects how a target field is resolved from a raw record.
type MappingKind string

// Supported mapping kinds.
const (
	// MappingDirect copies the value of a single named source column.
	MappingDirect MappingKind = "direct"
	// MappingMultiSource picks from an ordered list of candidate columns.
	MappingMultiSource MappingKind = "multi_source"
	// MappingObject builds a nested structure from sub-field mappings.
	MappingObject MappingKind = "object"
	// MappingReference resolves another entity's composite key.
	MappingReference MappingKind = "reference"
	// MappingTemplate substitutes record values into a string template.
	MappingTemplate MappingKind = "template"
)

// MultiSourceFirstNonEmpty is the only multi-source strategy currently
// supported: return the first candidate column holding a non-empty value.
const MultiSourceFirstNonEmpty = "first_non_empty"

// FieldMapping declares how one target entity field is resolved. Exactly one
// mapping kind applies per declaration; the populated fields depend on Kind.
type FieldMapping struct {
	Kind MappingKind `yaml:"kind" json:"kind"`

	// Source names the column read by a direct mapping.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Sources is the ordered candidate column list for multi_source mappings.
	Sources []string `yaml:"sources,omitempty" json:"sources,omitempty"`
	// Strategy selects the multi-source pick policy. Defaults to
	// first_non_empty when empty.
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	// Default is returned when every candidate column is empty.
	Default string `yaml:"default,omitempty" json:"default,omitempty"`

	// Fields holds the sub-field mappings of an object mapping. Every
	// declared sub-field is initialized in the output even when absent
	// from the source record.
	Fields map[string]FieldMapping `yaml:"fields,omitempty" json:"fields,omitempty"`

	// Entity names the target type of a reference mapping.
	Entity EntityType `yaml:"entity,omitempty" json:"entity,omitempty"`
	// KeySources lists the columns resolving the referenced entity's key
	// fields, in key-field declaration order.
	KeySources []string `yaml:"key_sources,omitempty" json:"key_sources,omitempty"`
	// Prefix is prepended to each key source column name before lookup,
	// allowing generic field lists to be reused per role (e.g. "recipient_").
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`

	// Template is the {field_name} placeholder string for template mappings.
	Template string `yaml:"template,omitempty" json:"template,omitempty"`
}

// RelationshipKind distinguishes containment from plain cross-references.
type RelationshipKind string

// Relationship kinds.
const (
	// RelationshipHierarchical models parent/child containment.
	RelationshipHierarchical RelationshipKind = "hierarchical"
	// RelationshipAssociative models a non-containment cross-reference.
	RelationshipAssociative RelationshipKind = "associative"
)

// Cardinality constrains how many target instances a source instance links to.
type Cardinality string

// Relationship cardinalities.
const (
	CardinalityOneToMany Cardinality = "one_to_many"
	CardinalityManyToOne Cardinality = "many_to_one"
	CardinalityOneToOne  Cardinality = "one_to_one"
)

// Relationship declares a typed link between two entity types. The target's
// composite key is taken from the current record's already-processed target
// store unless KeySources overrides it with explicit columns.
type Relationship struct {
	// Name overrides the derived collection or field name when set.
	Name        string           `yaml:"name,omitempty" json:"name,omitempty"`
	Source      EntityType       `yaml:"source" json:"source"`
	Target      EntityType       `yaml:"target" json:"target"`
	Kind        RelationshipKind `yaml:"kind" json:"kind"`
	Cardinality Cardinality      `yaml:"cardinality" json:"cardinality"`
	// KeySources optionally resolves the target key from explicit columns
	// instead of the target store's key for the current record.
	KeySources []string `yaml:"key_sources,omitempty" json:"key_sources,omitempty"`
	// Prefix applies to KeySources lookups, mirroring reference mappings.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	// SourceKeySources optionally resolves the source instance's key from
	// explicit columns instead of the source store's key for the current
	// record. A list shorter than the source type's key fields is padded
	// with empty components, so a hierarchy inside one keyed namespace
	// addresses the parent level by its leading key columns ("015:" from
	// agency_code alone).
	SourceKeySources []string `yaml:"source_key_sources,omitempty" json:"source_key_sources,omitempty"`
	// SourcePrefix applies to SourceKeySources lookups.
	SourcePrefix string `yaml:"source_prefix,omitempty" json:"source_prefix,omitempty"`
}
