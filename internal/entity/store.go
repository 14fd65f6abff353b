// Package entity owns the deduplicated in-memory collections of extracted
// entity instances, one store per entity type, for the whole run. Growth is
// unbounded by design: instances must be globally deduplicated across the
// entire input, so memory scales with unique-entity count. Eviction would
// break the dedup/merge invariant and is deliberately not offered.
package entity

import (
	"time"

	"go.uber.org/zap"

	"spendgraph/internal/config"
	"spendgraph/internal/mapping"
	"spendgraph/pkg/domain"
)

// Store accumulates the instances of one entity type keyed by composite key.
// It is mutated only by the orchestrator's single processing loop, so it
// carries no locking.
type Store struct {
	typ       domain.EntityType
	keyFields []string
	mappings  map[string]domain.FieldMapping
	resolver  *mapping.Resolver

	entities map[string]domain.Instance

	totalReferences    int64
	skipped            int64
	resolutionFailures int64
	relationshipCounts map[string]int64

	logger *zap.Logger
}

// Stats is the operator-visible counter block for one store.
type Stats struct {
	EntityType         domain.EntityType
	TotalReferences    int64
	UniqueEntities     int
	SkippedRecords     int64
	ResolutionFailures int64
	RelationshipCounts map[string]int64
}

// NewStore constructs a store for the given entity configuration. transform
// is the optional field-level validation adapter; logger must not be nil.
func NewStore(entity *config.Entity, transform mapping.Transform, logger *zap.Logger) *Store {
	return &Store{
		typ:                entity.Type,
		keyFields:          append([]string(nil), entity.KeyFields...),
		mappings:           entity.FieldMappings,
		resolver:           mapping.NewResolver(entity.Type, transform),
		entities:           make(map[string]domain.Instance),
		relationshipCounts: make(map[string]int64),
		logger:             logger.With(zap.String("entity_type", string(entity.Type))),
	}
}

// Type returns the entity type this store owns.
func (s *Store) Type() domain.EntityType { return s.typ }

// ProcessRecord resolves the record's mapped fields, builds the composite
// key, and inserts or merges the instance. It reports ok=false when the key
// is unresolvable (every key field empty); the record is skipped and counted,
// never fatal. On success the key is returned so relationship wiring can link
// to the instance.
func (s *Store) ProcessRecord(rec domain.Record) (string, bool) {
	fields, errs := s.resolver.ResolveFields(rec, s.mappings)
	if len(errs) > 0 {
		s.resolutionFailures += int64(len(errs))
		for _, err := range errs {
			s.logger.Debug("field resolution failure", zap.Error(err))
		}
	}

	keyValues := make([]string, len(s.keyFields))
	for i, keyField := range s.keyFields {
		keyValues[i] = mapping.KeyFieldString(fields[keyField])
	}
	key, ok := mapping.BuildKey(keyValues)
	if !ok {
		s.skipped++
		s.logger.Debug("record skipped: unresolvable composite key")
		return "", false
	}

	s.totalReferences++
	existing, found := s.entities[key]
	if !found {
		s.entities[key] = fields
		return key, true
	}
	mergeInstance(existing, fields)
	return key, true
}

// mergeInstance applies first-write-wins per field: a populated value is
// never overwritten, and emptiness never replaces data. Object values merge
// sub-field by sub-field under the same policy.
func mergeInstance(dst domain.Instance, src domain.Instance) {
	for field, value := range src {
		current, ok := dst[field]
		if !ok || isEmptyValue(current) {
			if !isEmptyValue(value) {
				dst[field] = value
			} else if !ok {
				dst[field] = value
			}
			continue
		}
		currentObj, currentIsObj := current.(map[string]any)
		srcObj, srcIsObj := value.(map[string]any)
		if currentIsObj && srcIsObj {
			mergeObject(currentObj, srcObj)
		}
	}
}

func mergeObject(dst, src map[string]any) {
	for sub, value := range src {
		current, ok := dst[sub]
		if !ok || isEmptyValue(current) {
			if !isEmptyValue(value) || !ok {
				dst[sub] = value
			}
			continue
		}
		currentObj, currentIsObj := current.(map[string]any)
		srcObj, srcIsObj := value.(map[string]any)
		if currentIsObj && srcIsObj {
			mergeObject(currentObj, srcObj)
		}
	}
}

func isEmptyValue(v any) bool {
	switch tv := v.(type) {
	case nil:
		return true
	case string:
		return tv == ""
	case map[string]any:
		for _, sub := range tv {
			if !isEmptyValue(sub) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Get returns the instance stored under key, if any. The returned instance is
// the live map; callers outside the processing loop must treat it as
// read-only or use Snapshot.
func (s *Store) Get(key string) (domain.Instance, bool) {
	instance, ok := s.entities[key]
	return instance, ok
}

// Len returns the number of unique instances.
func (s *Store) Len() int { return len(s.entities) }

// AppendCollection appends childKey to the named collection on the instance
// under key, creating the collection on first use. Duplicate keys are
// ignored, making relationship wiring idempotent under record replays. It
// reports whether the key was newly added.
func (s *Store) AppendCollection(key, collection, childKey string) bool {
	instance, ok := s.entities[key]
	if !ok || childKey == "" {
		return false
	}
	existing, _ := instance[collection].([]string)
	for _, k := range existing {
		if k == childKey {
			return false
		}
	}
	instance[collection] = append(existing, childKey)
	s.relationshipCounts[collection]++
	return true
}

// SetReference sets a single-valued reference field on the instance under
// key. Last write wins: a child logically has exactly one current parent.
func (s *Store) SetReference(key, field, refKey string) {
	instance, ok := s.entities[key]
	if !ok || refKey == "" {
		return
	}
	if prev, _ := instance[field].(string); prev == refKey {
		return
	}
	instance[field] = refKey
	s.relationshipCounts[field]++
}

// Stats returns a copy of the store's counters.
func (s *Store) Stats() Stats {
	counts := make(map[string]int64, len(s.relationshipCounts))
	for name, count := range s.relationshipCounts {
		counts[name] = count
	}
	return Stats{
		EntityType:         s.typ,
		TotalReferences:    s.totalReferences,
		UniqueEntities:     len(s.entities),
		SkippedRecords:     s.skipped,
		ResolutionFailures: s.resolutionFailures,
		RelationshipCounts: counts,
	}
}

// Snapshot captures the full current state for serialization. Instances are
// cloned so a checkpoint written during a run is isolated from later merges.
// Saving never clears the cache: checkpointing is additive persistence, not
// eviction.
func (s *Store) Snapshot() domain.Snapshot {
	entities := make(map[string]domain.Instance, len(s.entities))
	for key, instance := range s.entities {
		entities[key] = instance.Clone()
	}
	stats := s.Stats()
	return domain.Snapshot{
		Metadata: domain.SnapshotMetadata{
			EntityType:         s.typ,
			TotalReferences:    stats.TotalReferences,
			UniqueEntities:     stats.UniqueEntities,
			SkippedRecords:     stats.SkippedRecords,
			RelationshipCounts: stats.RelationshipCounts,
			GeneratedDate:      time.Now().UTC(),
		},
		Entities: entities,
	}
}
