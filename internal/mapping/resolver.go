// Package mapping resolves declarative field mappings against raw CSV records
// and builds the deterministic composite keys used for deduplication and
// cross-entity references.
package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"spendgraph/pkg/domain"
)

// Transform is the field-level validation/transformation adapter hook. It
// receives the source column name and raw value and returns the value to
// record, or an error when the value fails validation. A nil Transform is the
// identity.
type Transform func(column, value string) (string, error)

// Resolver turns one raw record into resolved values for one entity type's
// declared fields. It is stateless apart from its configuration and safe for
// reuse across the whole run.
type Resolver struct {
	entity    domain.EntityType
	transform Transform
}

// NewResolver constructs a resolver for the given entity type. transform may
// be nil.
func NewResolver(entity domain.EntityType, transform Transform) *Resolver {
	return &Resolver{entity: entity, transform: transform}
}

var templatePlaceholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// ResolveFields resolves every declared field mapping against the record.
// Each declared field is always present in the result, empty-valued when its
// sources are absent or blank, so the output shape is stable regardless of
// record sparsity. Returned errors are advisory per-field resolution
// failures; the instance is complete and usable even when errors are present.
func (r *Resolver) ResolveFields(rec domain.Record, mappings map[string]domain.FieldMapping) (domain.Instance, []error) {
	out := make(domain.Instance, len(mappings))
	var errs []error
	for field, m := range mappings {
		value, fieldErrs := r.Resolve(rec, field, m)
		out[field] = value
		errs = append(errs, fieldErrs...)
	}
	return out, errs
}

// Resolve resolves a single field mapping. The returned value is a string for
// direct, multi-source, reference, and template kinds, and a map[string]any
// for object kinds. An unknown mapping kind is a configuration bug and
// returns a ConfigError; everything else degrades to empty values plus
// advisory FieldResolutionError entries.
func (r *Resolver) Resolve(rec domain.Record, field string, m domain.FieldMapping) (any, []error) {
	switch m.Kind {
	case domain.MappingDirect:
		return r.resolveDirect(rec, field, m)
	case domain.MappingMultiSource:
		return r.resolveMultiSource(rec, field, m)
	case domain.MappingObject:
		return r.resolveObject(rec, field, m)
	case domain.MappingReference:
		key, _ := r.ResolveReferenceKey(rec, m.KeySources, m.Prefix)
		return key, nil
	case domain.MappingTemplate:
		return r.resolveTemplate(rec, m.Template), nil
	default:
		return "", []error{domain.ConfigError{
			Entity: r.entity,
			Field:  field,
			Reason: fmt.Sprintf("unknown mapping kind %q", m.Kind),
		}}
	}
}

func (r *Resolver) resolveDirect(rec domain.Record, field string, m domain.FieldMapping) (any, []error) {
	raw, ok := rec[m.Source]
	if !ok {
		return "", []error{domain.FieldResolutionError{Entity: r.entity, Field: field, Column: m.Source}}
	}
	value, err := r.applyTransform(m.Source, raw)
	if err != nil {
		return "", []error{fmt.Errorf("transform %s.%s: %w", r.entity, field, err)}
	}
	return value, nil
}

func (r *Resolver) resolveMultiSource(rec domain.Record, field string, m domain.FieldMapping) (any, []error) {
	var errs []error
	for _, source := range m.Sources {
		raw, ok := rec[source]
		if !ok {
			errs = append(errs, domain.FieldResolutionError{Entity: r.entity, Field: field, Column: source})
			continue
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}
		value, err := r.applyTransform(source, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("transform %s.%s: %w", r.entity, field, err))
			continue
		}
		return value, errs
	}
	return m.Default, errs
}

func (r *Resolver) resolveObject(rec domain.Record, field string, m domain.FieldMapping) (any, []error) {
	// Every declared sub-field key is initialized unconditionally so the
	// nested shape is identical for sparse and dense records.
	out := make(map[string]any, len(m.Fields))
	var errs []error
	for sub, subMapping := range m.Fields {
		value, subErrs := r.Resolve(rec, field+"."+sub, subMapping)
		out[sub] = value
		errs = append(errs, subErrs...)
	}
	return out, errs
}

// ResolveReferenceKey computes a referenced entity's composite key from the
// record using the given key source columns, each optionally prefixed. It
// reports ok=false when the key is unresolvable (all segments empty), in
// which case the key string is empty.
func (r *Resolver) ResolveReferenceKey(rec domain.Record, keySources []string, prefix string) (string, bool) {
	return ReferenceKey(rec, keySources, prefix)
}

// ReferenceKey is the resolver-independent form of ResolveReferenceKey, used
// by relationship wiring where no per-entity resolver is in play. An empty
// source name contributes an empty key component without consulting the
// record, so padded source lists keep their segment positions.
func ReferenceKey(rec domain.Record, keySources []string, prefix string) (string, bool) {
	values := make([]string, len(keySources))
	for i, source := range keySources {
		if source == "" {
			continue
		}
		values[i] = rec[prefix+source]
	}
	return BuildKey(values)
}

func (r *Resolver) resolveTemplate(rec domain.Record, template string) string {
	return templatePlaceholder.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		return rec[name]
	})
}

func (r *Resolver) applyTransform(column, value string) (string, error) {
	if r.transform == nil {
		return value, nil
	}
	return r.transform(column, value)
}

// KeyFieldString renders a resolved field value as a key segment. Only scalar
// string values participate in keys; anything else (enforced away by startup
// validation) renders through fmt as a last resort.
func KeyFieldString(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	default:
		return fmt.Sprint(tv)
	}
}
