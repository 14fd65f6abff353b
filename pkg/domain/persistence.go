package domain

import "context"

// CheckpointStore is a minimal abstraction over durable checkpoint backends.
// Implementations persist the full run snapshot on every save; the canonical
// JSON artifacts remain the primary output, checkpoint mirrors exist so a
// long run's progress survives an abort.
type CheckpointStore interface {
	// SaveSnapshot overwrites the stored state with the supplied snapshot.
	SaveSnapshot(ctx context.Context, snapshot RunSnapshot) error
	// LoadSnapshot returns the last saved snapshot, reporting whether one
	// existed.
	LoadSnapshot(ctx context.Context) (RunSnapshot, bool, error)
	// Close releases backend resources.
	Close() error
}
