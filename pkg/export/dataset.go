package export

import (
	"fmt"
	"strings"
)

// PresentMark fills a cell for a day the student attended.
const PresentMark = "✓"

// Supported report formats.
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
	FormatCSV  = "csv"
)

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	SheetName string
	Title     string
	Subtitle  string
	Headers   []string
	Rows      []map[string]string
	// Numeric lists headers whose values are written as numbers where the format supports it.
	Numeric map[string]bool
}

// Renderer turns a dataset into a downloadable document.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// NewRenderer resolves a renderer by format name.
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatXLSX:
		return NewXLSXExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	case FormatCSV:
		return NewCSVExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}
