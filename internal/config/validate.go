package config

import (
	"fmt"

	"spendgraph/pkg/domain"
)

// Validate checks the structural invariants that must hold before any record
// is read. Violations are domain.ConfigError values naming the offending
// entity type and field so operators can fix the configuration directly.
func (c *Config) Validate() error {
	if len(c.Entities) == 0 {
		return domain.ConfigError{Reason: "no entities configured"}
	}

	ordersSeen := make(map[int]domain.EntityType)
	for typ, entity := range c.Entities {
		if !entity.Processing.Enabled {
			continue
		}
		if prev, dup := ordersSeen[entity.Processing.Order]; dup {
			return domain.ConfigError{
				Entity: typ,
				Reason: fmt.Sprintf("processing order %d already used by %s", entity.Processing.Order, prev),
			}
		}
		ordersSeen[entity.Processing.Order] = typ

		if err := c.validateEntity(entity); err != nil {
			return err
		}
	}

	for typ, entity := range c.Entities {
		if !entity.Processing.Enabled {
			continue
		}
		for _, rel := range entity.Relationships {
			target, ok := c.Entities[rel.Target]
			if !ok {
				return domain.ConfigError{
					Entity: typ,
					Reason: fmt.Sprintf("relationship targets unknown entity type %q", rel.Target),
				}
			}
			if !target.Processing.Enabled {
				return domain.ConfigError{
					Entity: typ,
					Reason: fmt.Sprintf("relationship targets disabled entity type %q", rel.Target),
				}
			}
			if len(rel.SourceKeySources) > len(entity.KeyFields) {
				return domain.ConfigError{
					Entity: typ,
					Reason: fmt.Sprintf("relationship declares %d source key sources for %d key fields",
						len(rel.SourceKeySources), len(entity.KeyFields)),
				}
			}
			// Dependency ordering: the target must exist in its store
			// before the relationship is wired for the same record.
			if len(rel.KeySources) == 0 && target.Processing.Order > entity.Processing.Order {
				return domain.ConfigError{
					Entity: typ,
					Reason: fmt.Sprintf("relationship target %s orders after its source (%d > %d)",
						rel.Target, target.Processing.Order, entity.Processing.Order),
				}
			}
			switch rel.Kind {
			case domain.RelationshipHierarchical, domain.RelationshipAssociative:
			default:
				return domain.ConfigError{
					Entity: typ,
					Reason: fmt.Sprintf("unknown relationship kind %q", rel.Kind),
				}
			}
			switch rel.Cardinality {
			case domain.CardinalityOneToMany, domain.CardinalityManyToOne, domain.CardinalityOneToOne:
			default:
				return domain.ConfigError{
					Entity: typ,
					Reason: fmt.Sprintf("unknown relationship cardinality %q", rel.Cardinality),
				}
			}
		}
	}
	return nil
}

func (c *Config) validateEntity(entity *Entity) error {
	if len(entity.KeyFields) == 0 {
		return domain.ConfigError{Entity: entity.Type, Reason: "no key fields declared"}
	}
	for _, keyField := range entity.KeyFields {
		m, ok := entity.FieldMappings[keyField]
		if !ok {
			return domain.ConfigError{
				Entity: entity.Type,
				Field:  keyField,
				Reason: "key field has no field mapping",
			}
		}
		if m.Kind == domain.MappingObject {
			return domain.ConfigError{
				Entity: entity.Type,
				Field:  keyField,
				Reason: "key field cannot use an object mapping",
			}
		}
	}
	for field, m := range entity.FieldMappings {
		if err := c.validateMapping(entity.Type, field, m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateMapping(typ domain.EntityType, field string, m domain.FieldMapping) error {
	switch m.Kind {
	case domain.MappingDirect:
		if m.Source == "" {
			return domain.ConfigError{Entity: typ, Field: field, Reason: "direct mapping requires a source column"}
		}
	case domain.MappingMultiSource:
		if len(m.Sources) == 0 {
			return domain.ConfigError{Entity: typ, Field: field, Reason: "multi_source mapping requires source columns"}
		}
		if m.Strategy != "" && m.Strategy != domain.MultiSourceFirstNonEmpty {
			return domain.ConfigError{
				Entity: typ,
				Field:  field,
				Reason: fmt.Sprintf("unsupported multi_source strategy %q", m.Strategy),
			}
		}
	case domain.MappingObject:
		if len(m.Fields) == 0 {
			return domain.ConfigError{Entity: typ, Field: field, Reason: "object mapping declares no sub-fields"}
		}
		for sub, subMapping := range m.Fields {
			if err := c.validateMapping(typ, field+"."+sub, subMapping); err != nil {
				return err
			}
		}
	case domain.MappingReference:
		if _, ok := c.Entities[m.Entity]; !ok {
			return domain.ConfigError{
				Entity: typ,
				Field:  field,
				Reason: fmt.Sprintf("reference mapping targets unknown entity type %q", m.Entity),
			}
		}
		if len(m.KeySources) == 0 {
			return domain.ConfigError{Entity: typ, Field: field, Reason: "reference mapping requires key source columns"}
		}
	case domain.MappingTemplate:
		if m.Template == "" {
			return domain.ConfigError{Entity: typ, Field: field, Reason: "template mapping requires a template"}
		}
	default:
		return domain.ConfigError{
			Entity: typ,
			Field:  field,
			Reason: fmt.Sprintf("unknown mapping kind %q", m.Kind),
		}
	}
	return nil
}

// ValidateHeader verifies that every direct mapping's source column, and at
// least one candidate of every multi-source mapping, exists in the input
// header. A mapping whose sources are entirely absent from the schema is a
// configuration error: it could never resolve for any record in the file.
func (c *Config) ValidateHeader(header []string) error {
	columns := make(map[string]struct{}, len(header))
	for _, col := range header {
		columns[col] = struct{}{}
	}
	for typ, entity := range c.Entities {
		if !entity.Processing.Enabled {
			continue
		}
		for field, m := range entity.FieldMappings {
			if err := validateMappingHeader(typ, field, m, columns); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateMappingHeader(typ domain.EntityType, field string, m domain.FieldMapping, columns map[string]struct{}) error {
	switch m.Kind {
	case domain.MappingDirect:
		if _, ok := columns[m.Source]; !ok {
			return domain.ConfigError{
				Entity: typ,
				Field:  field,
				Reason: fmt.Sprintf("source column %q absent from input schema", m.Source),
			}
		}
	case domain.MappingMultiSource:
		for _, source := range m.Sources {
			if _, ok := columns[source]; ok {
				return nil
			}
		}
		return domain.ConfigError{
			Entity: typ,
			Field:  field,
			Reason: "every multi_source column absent from input schema",
		}
	case domain.MappingObject:
		for sub, subMapping := range m.Fields {
			if err := validateMappingHeader(typ, field+"."+sub, subMapping, columns); err != nil {
				return err
			}
		}
	}
	return nil
}
