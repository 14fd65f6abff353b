package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"spendgraph/internal/config"
)

func TestOpenFilesystemDefault(t *testing.T) {
	store, err := Open(context.Background(), config.Blob{}, t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver=%q", store.Driver())
	}
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), config.Blob{Driver: "memory"}, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver=%q", store.Driver())
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("v"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "v" {
		t.Fatalf("data=%q", data)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.Blob{Driver: "tape"}, ""); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
