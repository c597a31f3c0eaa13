package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is the tabular shape every renderer consumes. Rows are keyed by
// header name; missing keys render as empty cells.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) record(row map[string]string, buf []string) []string {
	buf = buf[:0]
	for _, h := range d.Headers {
		buf = append(buf, row[h])
	}
	return buf
}

// CSVExporter renders a Dataset as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter returns a stateless CSV renderer.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the dataset, header row first.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no headers")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("encode header row: %w", err)
	}

	record := make([]string, 0, len(data.Headers))
	for i, row := range data.Rows {
		record = data.record(row, record)
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
