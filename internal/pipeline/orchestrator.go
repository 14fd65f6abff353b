// Package pipeline drives the per-record extraction loop across all entity
// stores in dependency order, owns checkpointing, and reports the final run
// summary. Processing is single-threaded and batch-sequential: entity
// deduplication across concurrent writers would require locking the shared
// store maps, so records are dispatched strictly in input order by one loop.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spendgraph/internal/blob"
	"spendgraph/internal/chunk"
	"spendgraph/internal/config"
	"spendgraph/internal/entity"
	"spendgraph/internal/mapping"
	"spendgraph/internal/relation"
	"spendgraph/pkg/domain"
)

// State names a phase of the run lifecycle.
type State string

// Run states.
const (
	StateInitializing  State = "initializing"
	StateStreaming     State = "streaming"
	StateCheckpointing State = "checkpointing"
	StateFinalizing    State = "finalizing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Summary is the end-of-run statistics block surfaced to operators. A nonzero
// FailedSaves or FailedChunkSaves marks the run's output as incomplete even
// when every record was processed.
type Summary struct {
	RunID            string                             `json:"run_id"`
	State            State                              `json:"state"`
	RecordsProcessed int64                              `json:"records_processed"`
	RecordsFailed    int64                              `json:"records_failed"`
	ChunksWritten    int                                `json:"chunks_written"`
	Chunks           []chunk.IndexEntry                 `json:"chunks,omitempty"`
	FailedChunkSaves int                                `json:"failed_chunk_saves,omitempty"`
	Entities         map[domain.EntityType]entity.Stats `json:"entities"`
	FailedSaves      map[domain.EntityType]int          `json:"failed_saves,omitempty"`
	StartedAt        time.Time                          `json:"started_at"`
	FinishedAt       time.Time                          `json:"finished_at"`
}

// Orchestrator wires the configured entity stores, relationship assembler,
// and chunk writer, and runs the record loop.
type Orchestrator struct {
	cfg       *config.Config
	order     []*config.Entity
	stores    map[domain.EntityType]*entity.Store
	assembler *relation.Assembler
	writer    *chunk.Writer
	artifacts blob.Store

	checkpoint domain.CheckpointStore

	txMappings map[string]domain.FieldMapping
	txResolver *mapping.Resolver

	metrics *Metrics
	logger  *zap.Logger

	runID            string
	state            State
	recordsProcessed int64
	recordsFailed    int64
	failedSaves      map[domain.EntityType]int
	startedAt        time.Time
}

// New constructs an orchestrator from validated configuration. A duplicate
// processing order or other configuration fault fails construction before
// any record is read. checkpoint may be nil; transform may be nil.
func New(cfg *config.Config, artifacts blob.Store, checkpoint domain.CheckpointStore, transform mapping.Transform, metrics *Metrics, logger *zap.Logger) (*Orchestrator, error) {
	order, err := ProcessingOrder(cfg)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()

	registry := entity.NewRegistry()
	stores := make(map[domain.EntityType]*entity.Store, len(order))
	for _, entityCfg := range order {
		store, err := registry.New(entityCfg, transform, logger)
		if err != nil {
			return nil, err
		}
		stores[entityCfg.Type] = store
	}

	o := &Orchestrator{
		cfg:       cfg,
		order:     order,
		stores:    stores,
		assembler: relation.NewAssembler(cfg, stores),
		artifacts: artifacts,
		writer: chunk.NewWriter(artifacts, chunk.Options{
			BaseName:        cfg.Output.TransactionBaseName,
			RecordsPerChunk: cfg.Output.RecordsPerChunk,
			MaxChunkSizeMB:  cfg.Output.MaxChunkSizeMB,
			CreateIndex:     cfg.Output.CreateIndex,
			Indent:          cfg.Output.Indent,
			EnsureASCII:     cfg.Output.EnsureASCII,
			RunID:           runID,
		}, logger),
		checkpoint:  checkpoint,
		metrics:     metrics,
		logger:      logger.With(zap.String("run_id", runID)),
		runID:       runID,
		state:       StateInitializing,
		failedSaves: make(map[domain.EntityType]int),
	}
	if txEntity, ok := cfg.Entity(cfg.Processing.TransactionEntity); ok {
		o.txMappings = txEntity.FieldMappings
		o.txResolver = mapping.NewResolver(txEntity.Type, transform)
	}
	return o, nil
}

// ProcessingOrder returns the enabled entity configurations sorted by
// ascending processing order, rejecting duplicate order values. Ordering is a
// strict total order so relationship targets exist in their stores before the
// types referencing them are processed.
func ProcessingOrder(cfg *config.Config) ([]*config.Entity, error) {
	enabled := cfg.EnabledEntities()
	seen := make(map[int]domain.EntityType, len(enabled))
	for _, entityCfg := range enabled {
		if prev, dup := seen[entityCfg.Processing.Order]; dup {
			return nil, domain.ConfigError{
				Entity: entityCfg.Type,
				Reason: fmt.Sprintf("processing order %d already used by %s", entityCfg.Processing.Order, prev),
			}
		}
		seen[entityCfg.Processing.Order] = entityCfg.Type
	}
	return enabled, nil
}

// RunID returns the run's unique identifier.
func (o *Orchestrator) RunID() string { return o.runID }

// State returns the current run state.
func (o *Orchestrator) State() State { return o.state }

// Store returns the store for typ, for inspection after a run.
func (o *Orchestrator) Store(typ domain.EntityType) (*entity.Store, bool) {
	store, ok := o.stores[typ]
	return store, ok
}

// Run streams every record from input through the ordered entity stores,
// checkpointing every entity_save_frequency records, and finalizes all
// output. Per-record failures are counted and never abort the run; an abort
// (context cancellation or a fatal header mismatch) still attempts a
// best-effort final save of all stores so partial progress is not lost.
func (o *Orchestrator) Run(ctx context.Context, input io.Reader) (Summary, error) {
	o.startedAt = time.Now().UTC()
	reader, err := NewReader(input, o.cfg.Input.BatchSize)
	if err != nil {
		o.state = StateFailed
		return o.summary(), fmt.Errorf("open input: %w", err)
	}
	if err := o.cfg.ValidateHeader(reader.Header()); err != nil {
		o.state = StateFailed
		o.saveAll(ctx)
		return o.summary(), err
	}

	o.state = StateStreaming
	o.logger.Info("run started",
		zap.Int("entity_types", len(o.order)),
		zap.Int("batch_size", o.cfg.Input.BatchSize))

	saveFrequency := o.cfg.Processing.EntitySaveFrequency
	for {
		batch, err := reader.NextBatch()
		if err == io.EOF {
			break
		}
		if err != nil {
			o.recordsFailed++
			o.metrics.RecordsFailed.Inc()
			o.logger.Warn("malformed input row", zap.Error(err))
		}
		for _, rec := range batch {
			// Aborts land between records, never mid-record, so every
			// store sees a consistent prefix of the input.
			if ctx.Err() != nil {
				o.logger.Warn("run aborted, saving partial progress", zap.Error(ctx.Err()))
				o.finalize(ctx)
				o.state = StateFailed
				return o.summary(), ctx.Err()
			}
			o.processRecord(ctx, rec)
			if saveFrequency > 0 && o.recordsProcessed%int64(saveFrequency) == 0 {
				o.state = StateCheckpointing
				o.saveAll(ctx)
				if err := o.writer.Flush(ctx); err != nil {
					o.logger.Error("chunk flush failed", zap.Error(err))
					o.metrics.SaveFailures.WithLabelValues("transaction_chunks").Inc()
				}
				o.state = StateStreaming
			}
		}
	}

	o.state = StateFinalizing
	o.finalize(ctx)
	o.state = StateDone
	summary := o.summary()
	o.logSummary(summary)
	return summary, nil
}

func (o *Orchestrator) processRecord(ctx context.Context, rec domain.Record) {
	keys := make(map[domain.EntityType]string, len(o.order))
	for _, entityCfg := range o.order {
		store := o.stores[entityCfg.Type]
		key, ok := store.ProcessRecord(rec)
		if ok {
			keys[entityCfg.Type] = key
		} else {
			o.metrics.EntitiesSkipped.WithLabelValues(string(entityCfg.Type)).Inc()
		}
		o.assembler.Wire(entityCfg.Type, rec, keys)
	}

	if o.txMappings != nil {
		fields, _ := o.txResolver.ResolveFields(rec, o.txMappings)
		if err := o.writer.Write(ctx, map[string]any(fields)); err != nil {
			o.logger.Error("chunk write failed", zap.Error(err))
			o.metrics.SaveFailures.WithLabelValues("transaction_chunks").Inc()
		}
	}

	o.recordsProcessed++
	o.metrics.RecordsProcessed.Inc()
}

// saveAll serializes every store's full state to the artifact store and, when
// configured, mirrors the snapshot to the checkpoint backend. A failed save
// is logged and marked in the final statistics but never aborts the run:
// other stores still save, so output is incomplete only for the failed type.
func (o *Orchestrator) saveAll(ctx context.Context) {
	entities := make(map[domain.EntityType]domain.Snapshot, len(o.order))
	for _, entityCfg := range o.order {
		store := o.stores[entityCfg.Type]
		snap := store.Snapshot()
		entities[entityCfg.Type] = snap
		payload, err := chunk.EncodeJSON(snap, o.cfg.Output.Indent, o.cfg.Output.EnsureASCII)
		if err != nil {
			o.recordSaveFailure(entityCfg.Type, err)
			continue
		}
		key := path.Join(o.cfg.Output.EntitiesSubfolder, string(entityCfg.Type)+".json")
		if _, err := o.artifacts.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"run_id": o.runID},
		}); err != nil {
			o.recordSaveFailure(entityCfg.Type, err)
			continue
		}
		o.metrics.UniqueEntities.WithLabelValues(string(entityCfg.Type)).Set(float64(store.Len()))
	}

	if o.checkpoint != nil {
		snapshot := domain.RunSnapshot{RunID: o.runID, Entities: entities, SavedAt: time.Now().UTC()}
		if err := o.checkpoint.SaveSnapshot(ctx, snapshot); err != nil {
			o.logger.Error("checkpoint mirror failed", zap.Error(err))
			o.metrics.SaveFailures.WithLabelValues("checkpoint").Inc()
		}
	}
	o.metrics.Checkpoints.Inc()
	o.logger.Info("entity stores saved", zap.Int64("records_processed", o.recordsProcessed))
}

func (o *Orchestrator) recordSaveFailure(typ domain.EntityType, err error) {
	o.failedSaves[typ]++
	o.metrics.SaveFailures.WithLabelValues(string(typ)).Inc()
	o.logger.Error("entity store save failed",
		zap.String("entity_type", string(typ)),
		zap.Error(err))
}

func (o *Orchestrator) finalize(ctx context.Context) {
	o.saveAll(ctx)
	if err := o.writer.Close(ctx); err != nil {
		o.logger.Error("chunk writer close failed", zap.Error(err))
		o.metrics.SaveFailures.WithLabelValues("transaction_chunks").Inc()
	}
	o.metrics.ChunksWritten.Add(float64(o.writer.ChunksWritten()))
}

func (o *Orchestrator) summary() Summary {
	stats := make(map[domain.EntityType]entity.Stats, len(o.stores))
	for typ, store := range o.stores {
		stats[typ] = store.Stats()
	}
	failed := make(map[domain.EntityType]int, len(o.failedSaves))
	for typ, count := range o.failedSaves {
		failed[typ] = count
	}
	return Summary{
		RunID:            o.runID,
		State:            o.state,
		RecordsProcessed: o.recordsProcessed,
		RecordsFailed:    o.recordsFailed,
		ChunksWritten:    o.writer.ChunksWritten(),
		Chunks:           o.writer.Index(),
		FailedChunkSaves: o.writer.FailedSaves(),
		Entities:         stats,
		FailedSaves:      failed,
		StartedAt:        o.startedAt,
		FinishedAt:       time.Now().UTC(),
	}
}

func (o *Orchestrator) logSummary(s Summary) {
	o.logger.Info("run complete",
		zap.Int64("records_processed", s.RecordsProcessed),
		zap.Int64("records_failed", s.RecordsFailed),
		zap.Int("chunks_written", s.ChunksWritten),
		zap.Int("failed_chunk_saves", s.FailedChunkSaves),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)))
	for typ, stats := range s.Entities {
		o.logger.Info("entity summary",
			zap.String("entity_type", string(typ)),
			zap.Int64("total_references", stats.TotalReferences),
			zap.Int("unique_entities", stats.UniqueEntities),
			zap.Int64("skipped_records", stats.SkippedRecords))
	}
}
