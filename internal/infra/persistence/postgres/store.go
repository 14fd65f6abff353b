// Package postgres mirrors entity-store checkpoints into Postgres using the
// same bucket-per-entity JSON scheme as the SQLite backend.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"spendgraph/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.CheckpointStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	metaBucket    = "__run"
)

var sqlOpen = sql.Open

type runMeta struct {
	RunID   string    `json:"run_id"`
	SavedAt time.Time `json:"saved_at"`
}

// Store is a Postgres-backed checkpoint mirror.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres checkpoint store using the provided DSN and
// ensures the checkpoints table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sqlOpen(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS checkpoints (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveSnapshot overwrites every entity bucket with the snapshot state.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot domain.RunSnapshot) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	upsert := `INSERT INTO checkpoints(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`
	for typ, snap := range snapshot.Entities {
		payload, err := json.Marshal(snap)
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", typ, err)
			return retErr
		}
		if _, err := tx.ExecContext(ctx, upsert, string(typ), payload); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", typ, err)
			return retErr
		}
	}
	meta, err := json.Marshal(runMeta{RunID: snapshot.RunID, SavedAt: snapshot.SavedAt})
	if err != nil {
		retErr = err
		return retErr
	}
	if _, err := tx.ExecContext(ctx, upsert, metaBucket, meta); err != nil {
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

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }
