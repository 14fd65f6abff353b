package relation

import "spendgraph/pkg/domain"

// EmbedChildren returns a copy of the parent snapshot in which every key
// held in the named collection is replaced by the corresponding child
// payload. Keys with no matching child instance are kept as key strings so
// no reference is silently dropped. This is a presentation-time transform
// over finished snapshots; the processing pass itself only ever stores keys.
func EmbedChildren(parent, children domain.Snapshot, collection string) domain.Snapshot {
	out := domain.Snapshot{
		Metadata: parent.Metadata,
		Entities: make(map[string]domain.Instance, len(parent.Entities)),
	}
	for key, instance := range parent.Entities {
		clone := instance.Clone()
		if childKeys, ok := clone[collection].([]string); ok {
			embedded := make([]any, 0, len(childKeys))
			for _, childKey := range childKeys {
				if child, found := children.Entities[childKey]; found {
					embedded = append(embedded, map[string]any(child.Clone()))
				} else {
					embedded = append(embedded, childKey)
				}
			}
			clone[collection] = embedded
		}
		out.Entities[key] = clone
	}
	return out
}
