package pipeline

import (
	"io"
	"strings"
	"testing"
)

func TestReaderHeaderAndBatches(t *testing.T) {
	input := "a,b\n1,2\n3,4\n5,6\n"
	r, err := NewReader(strings.NewReader(input), 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	header := r.Header()
	if len(header) != 2 || header[0] != "a" || header[1] != "b" {
		t.Fatalf("header=%v", header)
	}

	first, err := r.NextBatch()
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if len(first) != 2 || first[0]["a"] != "1" || first[1]["b"] != "4" {
		t.Fatalf("first=%v", first)
	}

	second, err := r.NextBatch()
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if len(second) != 1 || second[0]["a"] != "5" {
		t.Fatalf("second=%v", second)
	}

	if _, err := r.NextBatch(); err != io.EOF {
		t.Fatalf("err=%v want io.EOF", err)
	}
}

func TestReaderStripsBOM(t *testing.T) {
	input := "\xef\xbb\xbfagency_code,agency_name\n015,GSA\n"
	r, err := NewReader(strings.NewReader(input), 10)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if header := r.Header(); header[0] != "agency_code" {
		t.Fatalf("BOM not stripped: header=%q", header[0])
	}
	batch, err := r.NextBatch()
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if batch[0]["agency_code"] != "015" || batch[0]["agency_name"] != "GSA" {
		t.Fatalf("batch=%v", batch)
	}
}

func TestReaderRaggedRows(t *testing.T) {
	input := "a,b,c\n1,2\n4,5,6,7\n"
	r, err := NewReader(strings.NewReader(input), 10)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	batch, err := r.NextBatch()
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if batch[0]["c"] != "" {
		t.Fatalf("missing cell must read empty, got %q", batch[0]["c"])
	}
	if batch[1]["a"] != "4" || batch[1]["c"] != "6" {
		t.Fatalf("batch=%v", batch[1])
	}
}

func TestReaderEmptyFile(t *testing.T) {
	if _, err := NewReader(strings.NewReader(""), 10); err == nil {
		t.Fatalf("expected error for missing header")
	}
}

func TestReaderQuotedFields(t *testing.T) {
	input := "name,desc\n\"ACME, Inc.\",\"multi\nline\"\n"
	r, err := NewReader(strings.NewReader(input), 10)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	batch, err := r.NextBatch()
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if batch[0]["name"] != "ACME, Inc." {
		t.Fatalf("name=%q", batch[0]["name"])
	}
	if batch[0]["desc"] != "multi\nline" {
		t.Fatalf("desc=%q", batch[0]["desc"])
	}
}
