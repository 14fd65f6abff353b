// Package relation wires cross-entity references after each store processes a
// record: containment collections for hierarchical one-to-many links, single
// reference keys for many-to-one and associative links. Only keys are stored
// during the per-record pass; full payload embedding is a separate
// presentation-time step (see Embed), which keeps the per-record pass O(1)
// per relationship.
package relation

import (
	"github.com/go-openapi/inflect"

	"spendgraph/internal/config"
	"spendgraph/internal/entity"
	"spendgraph/internal/mapping"
	"spendgraph/pkg/domain"
)

// Assembler resolves configured relationship declarations against the stores
// of a single run.
type Assembler struct {
	bySource  map[domain.EntityType][]domain.Relationship
	keyFields map[domain.EntityType]int
	stores    map[domain.EntityType]*entity.Store
}

// NewAssembler indexes the configuration's relationship declarations by
// source type over the supplied stores.
func NewAssembler(cfg *config.Config, stores map[domain.EntityType]*entity.Store) *Assembler {
	bySource := make(map[domain.EntityType][]domain.Relationship)
	keyFields := make(map[domain.EntityType]int)
	for typ, entityCfg := range cfg.Entities {
		if !entityCfg.Processing.Enabled {
			continue
		}
		bySource[typ] = append(bySource[typ], entityCfg.Relationships...)
		keyFields[typ] = len(entityCfg.KeyFields)
	}
	return &Assembler{bySource: bySource, keyFields: keyFields, stores: stores}
}

// Wire applies every relationship declared on the just-processed source type.
// keys holds the composite key each store produced for the current record;
// entity types that skipped the record are absent. Wiring is idempotent:
// replaying the same record never duplicates collection entries.
func (a *Assembler) Wire(source domain.EntityType, rec domain.Record, keys map[domain.EntityType]string) {
	store, ok := a.stores[source]
	if !ok {
		return
	}
	for _, rel := range a.bySource[source] {
		sourceKey := a.sourceKey(rel, rec, keys)
		targetKey := a.targetKey(rel, rec, keys)
		if sourceKey == "" || targetKey == "" {
			continue
		}
		// Under a source key override, the record sitting at the parent
		// level resolves to itself. An instance never links to itself.
		if len(rel.SourceKeySources) > 0 && sourceKey == targetKey {
			continue
		}
		if listValued(rel) {
			store.AppendCollection(sourceKey, CollectionName(rel), targetKey)
		} else {
			store.SetReference(sourceKey, ReferenceFieldName(rel), targetKey)
		}
	}
}

// sourceKey picks the instance the relationship is wired onto: the source
// store's key for the current record, unless SourceKeySources names the
// columns of the linked instance's key. Override lists shorter than the
// source type's key fields are padded with empty components, so the parent
// level of a shared keyed namespace is addressed by its leading columns
// ("015:" from agency_code alone).
func (a *Assembler) sourceKey(rel domain.Relationship, rec domain.Record, keys map[domain.EntityType]string) string {
	if len(rel.SourceKeySources) == 0 {
		return keys[rel.Source]
	}
	sources := rel.SourceKeySources
	if n := a.keyFields[rel.Source]; n > len(sources) {
		padded := make([]string, n)
		copy(padded, sources)
		sources = padded
	}
	key, _ := mapping.ReferenceKey(rec, sources, rel.SourcePrefix)
	return key
}

func (a *Assembler) targetKey(rel domain.Relationship, rec domain.Record, keys map[domain.EntityType]string) string {
	if len(rel.KeySources) > 0 {
		key, _ := mapping.ReferenceKey(rec, rel.KeySources, rel.Prefix)
		return key
	}
	return keys[rel.Target]
}

func listValued(rel domain.Relationship) bool {
	return rel.Cardinality == domain.CardinalityOneToMany
}

// CollectionName derives the containment collection name for a list-valued
// relationship: the explicit name when configured, else the pluralized target
// type name (agency -> agencies, office -> offices, sub_agency ->
// sub_agencies).
func CollectionName(rel domain.Relationship) string {
	if rel.Name != "" {
		return rel.Name
	}
	return inflect.Pluralize(string(rel.Target))
}

// ReferenceFieldName derives the field name for a single-valued relationship:
// the explicit name when configured, else the target type name with a _key
// suffix so reference fields are distinguishable from resolved data fields.
func ReferenceFieldName(rel domain.Relationship) string {
	if rel.Name != "" {
		return rel.Name
	}
	return string(rel.Target) + "_key"
}
