// Package sqlite mirrors entity-store checkpoints into a single SQLite table
// as JSON blobs, one bucket per entity type. Each save overwrites the stored
// state, so the database always holds the latest full snapshot.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"spendgraph/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.CheckpointStore = (*Store)(nil)

const metaBucket = "__run"

type runMeta struct {
	RunID   string    `json:"run_id"`
	SavedAt time.Time `json:"saved_at"`
}

// Store is a SQLite-backed checkpoint mirror.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the checkpoint database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "spendgraph.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS checkpoints (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// SaveSnapshot overwrites every entity bucket with the snapshot state.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot domain.RunSnapshot) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for typ, snap := range snapshot.Entities {
		payload, err := json.Marshal(snap)
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", typ, err)
			return retErr
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO checkpoints(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			string(typ), payload); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", typ, err)
			return retErr
		}
	}
	meta, err := json.Marshal(runMeta{RunID: snapshot.RunID, SavedAt: snapshot.SavedAt})
	if err != nil {
		retErr = err
		return retErr
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		metaBucket, meta); err != nil {
		retErr = fmt.Errorf("upsert run meta: %w", err)
		return retErr
	}
	return tx.Commit()
}

// LoadSnapshot returns the last saved snapshot, if any.
func (s *Store) LoadSnapshot(ctx context.Context) (domain.RunSnapshot, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM checkpoints`)
	if err != nil {
		return domain.RunSnapshot{}, false, fmt.Errorf("select checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := domain.RunSnapshot{Entities: make(map[domain.EntityType]domain.Snapshot)}
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return domain.RunSnapshot{}, false, fmt.Errorf("scan: %w", err)
		}
		found = true
		if bucket == metaBucket {
			var meta runMeta
			if err := json.Unmarshal(payload, &meta); err != nil {
				return domain.RunSnapshot{}, false, fmt.Errorf("decode run meta: %w", err)
			}
			out.RunID = meta.RunID
			out.SavedAt = meta.SavedAt
			continue
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return domain.RunSnapshot{}, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
		out.Entities[domain.EntityType(bucket)] = snap
	}
	if err := rows.Err(); err != nil {
		return domain.RunSnapshot{}, false, err
	}
	if !found {
		return domain.RunSnapshot{}, false, nil
	}
	return out, true, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }
