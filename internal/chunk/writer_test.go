package chunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"go.uber.org/zap"

	"spendgraph/internal/blob"
)

// flakyStore fails the next n Puts, then delegates.
type flakyStore struct {
	blob.Store
	failures int
}

func (s *flakyStore) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	if s.failures > 0 {
		s.failures--
		return blob.Info{}, errors.New("backend down")
	}
	return s.Store.Put(ctx, key, r, opts)
}

func record(i int) map[string]any {
	return map[string]any{
		"piid":   fmt.Sprintf("GS-00F-%04d", i),
		"amount": fmt.Sprintf("%d.00", i*1000),
	}
}

func readDocument(t *testing.T, store blob.Store, key string) Document {
	t.Helper()
	_, rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return doc
}

func TestWriterExactChunkBoundary(t *testing.T) {
	store := blob.NewMemory()
	w := NewWriter(store, Options{BaseName: "transactions", RecordsPerChunk: 5, RunID: "run-1"}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := w.Write(ctx, record(i)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w.ChunksWritten() != 1 {
		t.Fatalf("chunks=%d want exactly 1 for a full final chunk", w.ChunksWritten())
	}
	doc := readDocument(t, store, "transactions_part1.json")
	if doc.Metadata.ChunkNumber != 1 || doc.Metadata.RecordCount != 5 || len(doc.Records) != 5 {
		t.Fatalf("doc metadata=%+v records=%d", doc.Metadata, len(doc.Records))
	}
}

func TestWriterOverflowsIntoSecondChunk(t *testing.T) {
	store := blob.NewMemory()
	w := NewWriter(store, Options{BaseName: "transactions", RecordsPerChunk: 5, RunID: "run-1"}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if err := w.Write(ctx, record(i)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w.ChunksWritten() != 2 {
		t.Fatalf("chunks=%d want 2", w.ChunksWritten())
	}
	second := readDocument(t, store, "transactions_part2.json")
	if second.Metadata.RecordCount != 1 {
		t.Fatalf("second chunk records=%d want 1", second.Metadata.RecordCount)
	}
}

func TestWriterSizeBoundFlushesEarly(t *testing.T) {
	store := blob.NewMemory()
	w := NewWriter(store, Options{BaseName: "transactions", RecordsPerChunk: 1000, MaxChunkSizeMB: 1, RunID: "run-1"}, zap.NewNop())
	ctx := context.Background()

	big := make([]byte, 600<<10)
	for i := range big {
		big[i] = 'x'
	}
	for i := 0; i < 2; i++ {
		if err := w.Write(ctx, map[string]any{"blob": string(big)}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if w.ChunksWritten() == 0 {
		t.Fatalf("size bound never triggered a flush")
	}
}

func TestWriterIndex(t *testing.T) {
	store := blob.NewMemory()
	w := NewWriter(store, Options{BaseName: "transactions", RecordsPerChunk: 2, CreateIndex: true, RunID: "run-1"}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := w.Write(ctx, record(i)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, rc, err := store.Get(ctx, "transactions_index.json")
	if err != nil {
		t.Fatalf("index missing: %v", err)
	}
	raw, _ := io.ReadAll(rc)
	_ = rc.Close()
	var index []IndexEntry
	if err := json.Unmarshal(raw, &index); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("index entries=%d want 3", len(index))
	}
	total := 0
	for _, entry := range index {
		total += entry.RecordCount
		if entry.ByteSize <= 0 {
			t.Fatalf("entry=%+v", entry)
		}
	}
	if total != 5 {
		t.Fatalf("index record total=%d want 5", total)
	}
}

func TestWriterEmptyCloseWritesNothing(t *testing.T) {
	store := blob.NewMemory()
	w := NewWriter(store, Options{BaseName: "transactions"}, zap.NewNop())
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w.ChunksWritten() != 0 {
		t.Fatalf("chunks=%d", w.ChunksWritten())
	}
	infos, err := store.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, info := range infos {
		if info.Key != "transactions_index.json" {
			t.Fatalf("unexpected artifact %s", info.Key)
		}
	}
}

func TestWriterCountsFailedSaves(t *testing.T) {
	store := &flakyStore{Store: blob.NewMemory(), failures: 1}
	w := NewWriter(store, Options{BaseName: "transactions", RecordsPerChunk: 2, RunID: "run-1"}, zap.NewNop())
	ctx := context.Background()

	if err := w.Write(ctx, record(0)); err != nil {
		t.Fatalf("buffered write: %v", err)
	}
	if err := w.Write(ctx, record(1)); err == nil {
		t.Fatalf("expected flush failure")
	}
	if w.FailedSaves() != 1 {
		t.Fatalf("failed saves=%d want 1", w.FailedSaves())
	}
	if w.ChunksWritten() != 0 {
		t.Fatalf("failed chunk counted as written: %d", w.ChunksWritten())
	}

	// The buffer and chunk number survive the failure, so a retry writes the
	// same records under the same filename.
	if err := w.Flush(ctx); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if w.ChunksWritten() != 1 {
		t.Fatalf("chunks=%d want 1 after retry", w.ChunksWritten())
	}
	doc := readDocument(t, store, "transactions_part1.json")
	if doc.Metadata.ChunkNumber != 1 || doc.Metadata.RecordCount != 2 {
		t.Fatalf("retried chunk metadata=%+v", doc.Metadata)
	}
}

func TestWriterStampsRunID(t *testing.T) {
	store := blob.NewMemory()
	w := NewWriter(store, Options{BaseName: "transactions", RecordsPerChunk: 1, RunID: "run-42"}, zap.NewNop())
	ctx := context.Background()
	if err := w.Write(ctx, record(0)); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := store.Head(ctx, "transactions_part1.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Metadata["run_id"] != "run-42" {
		t.Fatalf("metadata=%v", info.Metadata)
	}
}
