package domain

import "fmt"

// ConfigError reports an invalid pipeline configuration: malformed mapping
// declarations, duplicate processing orders, or relationships referencing
// unknown entity types. Configuration errors are fatal before any record is
// read; partial output produced after one is not trustworthy.
type ConfigError struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: entity %s field %s: %s", e.Entity, e.Field, e.Reason)
	}
	if e.Entity != "" {
		return fmt.Sprintf("config: entity %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("config: %s", e.Reason)
}

// FieldResolutionError reports a mapping whose source column is absent from a
// particular record's schema. It is recoverable per field: the field resolves
// to its empty or default value, and the error only matters when the field is
// a key field and key resolution fails as a result.
type FieldResolutionError struct {
	Entity EntityType
	Field  string
	Column string
}

func (e FieldResolutionError) Error() string {
	return fmt.Sprintf("resolve %s.%s: column %q not in record schema", e.Entity, e.Field, e.Column)
}
