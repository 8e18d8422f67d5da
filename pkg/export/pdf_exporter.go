package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfNameWidth = 50.0
	pdfMark      = "X"
)

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Extension() string { return FormatPDF }

// Render creates a landscape PDF with the title block and table body. The first
// column is wider and holds the row label.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
	}
	if data.Subtitle != "" {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, tr(data.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(5)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageWidth - left - right
	nameWidth := pdfNameWidth
	if len(data.Headers) == 1 {
		nameWidth = usable
	}
	colWidth := 0.0
	if len(data.Headers) > 1 {
		colWidth = (usable - nameWidth) / float64(len(data.Headers)-1)
	}
	width := func(i int) float64 {
		if i == 0 {
			return nameWidth
		}
		return colWidth
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(68, 114, 196)
	pdf.SetTextColor(255, 255, 255)
	for i, header := range data.Headers {
		pdf.CellFormat(width(i), 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			value := row[header]
			if value == PresentMark {
				value = pdfMark
			}
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(width(i), 7, tr(value), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
