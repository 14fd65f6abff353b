package pipeline

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"

	"spendgraph/pkg/domain"
)

// Reader streams CSV rows as records in configurable batches. The header row
// supplies column names; a UTF-8 byte order mark, if present, is stripped so
// utf-8-sig exports read cleanly.
type Reader struct {
	csv       *csv.Reader
	header    []string
	batchSize int
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewReader wraps r, strips an optional BOM, and reads the header row.
func NewReader(r io.Reader, batchSize int) (*Reader, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	buf := bufio.NewReader(r)
	if lead, err := buf.Peek(len(utf8BOM)); err == nil &&
		lead[0] == utf8BOM[0] && lead[1] == utf8BOM[1] && lead[2] == utf8BOM[2] {
		if _, err := buf.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}
	cr := csv.NewReader(buf)
	cr.FieldsPerRecord = -1 // tolerate ragged rows; missing cells read empty
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return &Reader{csv: cr, header: header, batchSize: batchSize}, nil
}

// Header returns the column names from the header row.
func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// NextBatch reads up to the configured batch size of records. It returns
// io.EOF, with an empty batch, once the input is exhausted.
func (r *Reader) NextBatch() ([]domain.Record, error) {
	batch := make([]domain.Record, 0, r.batchSize)
	for len(batch) < r.batchSize {
		row, err := r.csv.Read()
		if err == io.EOF {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
		if err != nil {
			return batch, fmt.Errorf("read row: %w", err)
		}
		rec := make(domain.Record, len(r.header))
		for i, col := range r.header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		batch = append(batch, rec)
	}
	return batch, nil
}
