// Package chunk persists per-record transaction output as bounded-size JSON
// chunk files plus an index summarizing chunk metadata, so a downstream
// loader can process chunks independently without re-scanning all files.
package chunk

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spendgraph/internal/blob"
)

// Options configures a Writer.
type Options struct {
	// BaseName prefixes every chunk file: <BaseName>_part<N>.json.
	BaseName string
	// RecordsPerChunk flushes the buffer once this many records are held.
	RecordsPerChunk int
	// MaxChunkSizeMB flushes early once the buffered size estimate crosses
	// this bound, keeping individual artifacts loadable in one pass.
	MaxChunkSizeMB int
	// CreateIndex writes <BaseName>_index.json at Close.
	CreateIndex bool
	Indent      int
	EnsureASCII bool
	// RunID is stamped into artifact metadata.
	RunID string
}

// Metadata heads every chunk document.
type Metadata struct {
	ChunkNumber int       `json:"chunk_number"`
	RecordCount int       `json:"record_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Document is the serialized shape of one chunk file.
type Document struct {
	Metadata Metadata         `json:"metadata"`
	Records  []map[string]any `json:"records"`
}

// IndexEntry summarizes one written chunk for the index file.
type IndexEntry struct {
	ChunkFile   string `json:"chunk_file"`
	RecordCount int    `json:"record_count"`
	ByteSize    int64  `json:"byte_size"`
}

// Writer buffers transaction records and emits bounded JSON chunks through
// the artifact store. It is driven by the orchestrator's single loop and is
// not safe for concurrent use.
type Writer struct {
	store  blob.Store
	opts   Options
	logger *zap.Logger

	buffer        []map[string]any
	bufferedBytes int64
	chunkNumber   int
	index         []IndexEntry
	failedSaves   int
}

// NewWriter constructs a chunk writer over the artifact store.
func NewWriter(store blob.Store, opts Options, logger *zap.Logger) *Writer {
	if opts.BaseName == "" {
		opts.BaseName = "transactions"
	}
	if opts.RecordsPerChunk <= 0 {
		opts.RecordsPerChunk = 10000
	}
	if opts.MaxChunkSizeMB <= 0 {
		opts.MaxChunkSizeMB = 50
	}
	return &Writer{store: store, opts: opts, logger: logger}
}

// Write buffers one record, flushing when either the record-count or the
// size-estimate bound is reached.
func (w *Writer) Write(ctx context.Context, record map[string]any) error {
	w.buffer = append(w.buffer, record)
	w.bufferedBytes += estimateSize(record)
	if len(w.buffer) >= w.opts.RecordsPerChunk || w.bufferedBytes >= int64(w.opts.MaxChunkSizeMB)<<20 {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes the buffered records, if any, as the next chunk file. A failed
// write keeps the buffer and the chunk number, so a later flush retries the
// same records under the same filename.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	number := w.chunkNumber + 1
	doc := Document{
		Metadata: Metadata{
			ChunkNumber: number,
			RecordCount: len(w.buffer),
			GeneratedAt: time.Now().UTC(),
		},
		Records: w.buffer,
	}
	payload, err := EncodeJSON(doc, w.opts.Indent, w.opts.EnsureASCII)
	if err != nil {
		w.failedSaves++
		return fmt.Errorf("encode chunk %d: %w", number, err)
	}
	name := fmt.Sprintf("%s_part%d.json", w.opts.BaseName, number)
	_, err = w.store.Put(ctx, name, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"run_id": w.opts.RunID},
	})
	if err != nil {
		w.failedSaves++
		return fmt.Errorf("write chunk %s: %w", name, err)
	}
	w.chunkNumber = number
	w.index = append(w.index, IndexEntry{
		ChunkFile:   name,
		RecordCount: len(w.buffer),
		ByteSize:    int64(len(payload)),
	})
	w.logger.Info("chunk written",
		zap.String("chunk_file", name),
		zap.Int("record_count", len(w.buffer)),
		zap.Int("byte_size", len(payload)))
	w.buffer = nil
	w.bufferedBytes = 0
	return nil
}

// Close flushes any partial buffer and, when configured, writes the index
// file listing every chunk's filename, record count, and byte size.
func (w *Writer) Close(ctx context.Context) error {
	if err := w.Flush(ctx); err != nil {
		return err
	}
	if !w.opts.CreateIndex {
		return nil
	}
	payload, err := EncodeJSON(w.index, w.opts.Indent, w.opts.EnsureASCII)
	if err != nil {
		w.failedSaves++
		return fmt.Errorf("encode index: %w", err)
	}
	name := w.opts.BaseName + "_index.json"
	if _, err := w.store.Put(ctx, name, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"run_id": w.opts.RunID},
	}); err != nil {
		w.failedSaves++
		return fmt.Errorf("write index %s: %w", name, err)
	}
	return nil
}

// ChunksWritten returns the number of chunk files emitted so far.
func (w *Writer) ChunksWritten() int { return w.chunkNumber }

// Index returns a copy of the index entries accumulated so far.
func (w *Writer) Index() []IndexEntry {
	out := make([]IndexEntry, len(w.index))
	copy(out, w.index)
	return out
}

// FailedSaves returns how many chunk or index writes failed.
func (w *Writer) FailedSaves() int { return w.failedSaves }

// estimateSize approximates a record's serialized footprint without
// marshaling it. Keys, string values, and per-field JSON overhead are
// counted; non-string values use a flat allowance. The bound it feeds is a
// soft cap, so a rough estimate is sufficient.
func estimateSize(record map[string]any) int64 {
	var n int64
	for k, v := range record {
		n += int64(len(k)) + 6
		switch tv := v.(type) {
		case string:
			n += int64(len(tv))
		case []string:
			for _, s := range tv {
				n += int64(len(s)) + 4
			}
		case map[string]any:
			n += estimateSize(tv)
		default:
			n += 16
		}
	}
	return n
}
