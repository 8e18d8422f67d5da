package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) ContentType() string { return "text/csv" }

func (e *CSVExporter) Extension() string { return FormatCSV }

// Render produces CSV encoded bytes for the dataset. Title and subtitle, when
// set, are written as single-field records followed by a record of empty
// fields as wide as the header row.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	banner := false
	for _, line := range []string{data.Title, data.Subtitle} {
		if line == "" {
			continue
		}
		banner = true
		if err := writer.Write([]string{line}); err != nil {
			return nil, fmt.Errorf("write csv banner: %w", err)
		}
	}
	if banner {
		if err := writer.Write(make([]string, len(data.Headers))); err != nil {
			return nil, fmt.Errorf("write csv banner: %w", err)
		}
	}

	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
