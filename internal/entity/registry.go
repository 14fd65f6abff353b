package entity

import (
	"fmt"

	"go.uber.org/zap"

	"spendgraph/internal/config"
	"spendgraph/internal/mapping"
	"spendgraph/pkg/domain"
)

// Constructor builds a store for one configured entity type.
type Constructor func(entity *config.Entity, transform mapping.Transform, logger *zap.Logger) *Store

// Registry maps entity type names to store constructors. Stores are resolved
// once during orchestrator initialization, never per record. The default
// constructor serves every known type; specialized constructors may be
// registered for types needing extra behavior.
type Registry struct {
	constructors map[domain.EntityType]Constructor
	fallback     Constructor
}

// NewRegistry returns a registry whose fallback constructor is NewStore.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[domain.EntityType]Constructor),
		fallback:     NewStore,
	}
}

// Register installs a specialized constructor for typ.
func (r *Registry) Register(typ domain.EntityType, fn Constructor) {
	r.constructors[typ] = fn
}

// New constructs a store for the entity configuration.
func (r *Registry) New(entity *config.Entity, transform mapping.Transform, logger *zap.Logger) (*Store, error) {
	if entity == nil {
		return nil, fmt.Errorf("nil entity configuration")
	}
	if fn, ok := r.constructors[entity.Type]; ok {
		return fn(entity, transform, logger), nil
	}
	return r.fallback(entity, transform, logger), nil
}
