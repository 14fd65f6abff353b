// Package domain defines the entity model, mapping declarations, relationship
// metadata, and error taxonomy shared by the spendgraph extraction pipeline.
package domain

import "time"

// EntityType identifies a category of entity extracted from transaction rows.
type EntityType string

// Entity type identifiers used in mapping configuration and output buckets.
const (
	// EntityAgency identifies a top-level awarding or funding agency.
	EntityAgency EntityType = "agency"
	// EntitySubAgency identifies a sub-agency beneath an agency.
	EntitySubAgency EntityType = "sub_agency"
	// EntityOffice identifies an awarding or funding office.
	EntityOffice EntityType = "office"
	// EntityRecipient identifies an award recipient.
	EntityRecipient EntityType = "recipient"
	// EntityLocation identifies a place of performance or recipient location.
	EntityLocation EntityType = "location"
	// EntityContract identifies a contract award.
	EntityContract EntityType = "contract"
	// EntityTransaction identifies an individual spending transaction.
	EntityTransaction EntityType = "transaction"
)

// Record is one flat CSV row, keyed by header column name. Values are the raw
// cell strings; type conversion is a downstream concern.
type Record map[string]string

// Instance is a realized entity: resolved field values keyed by field name,
// plus any relationship collections wired in after resolution. Values are
// scalars, nested objects, reference-key strings, or []string collections.
type Instance map[string]any

// Clone returns a deep copy of the instance. Collection slices are copied and
// nested objects are cloned recursively, so a snapshot never observes merges
// applied to the live instance afterwards.
func (in Instance) Clone() Instance {
	if in == nil {
		return nil
	}
	return Instance(cloneObject(in))
}

func cloneObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		switch tv := v.(type) {
		case []string:
			out[k] = append([]string(nil), tv...)
		case map[string]any:
			out[k] = cloneObject(tv)
		default:
			out[k] = v
		}
	}
	return out
}

// SnapshotMetadata describes the state of one entity store at save time.
type SnapshotMetadata struct {
	EntityType         EntityType       `json:"entity_type"`
	TotalReferences    int64            `json:"total_references"`
	UniqueEntities     int              `json:"unique_entities"`
	SkippedRecords     int64            `json:"skipped_records"`
	RelationshipCounts map[string]int64 `json:"relationship_counts,omitempty"`
	GeneratedDate      time.Time        `json:"generated_date"`
}

// Snapshot is the serialized form of one entity store: metadata plus the full
// deduplicated instance map keyed by composite key.
type Snapshot struct {
	Metadata SnapshotMetadata    `json:"metadata"`
	Entities map[string]Instance `json:"entities"`
}

// RunSnapshot bundles every entity store's snapshot for checkpoint
// persistence. Checkpoints are full-state overwrites, never deltas.
type RunSnapshot struct {
	RunID    string                  `json:"run_id"`
	Entities map[EntityType]Snapshot `json:"entities"`
	SavedAt  time.Time               `json:"saved_at"`
}
