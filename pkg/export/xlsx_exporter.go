package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxHeaderRow  = 4
	xlsxNameWidth  = 25
	xlsxDayWidth   = 6
	xlsxTotalWidth = 8
	xlsxHeaderFill = "4472C4"
)

// XLSXExporter renders datasets into a single styled worksheet.
type XLSXExporter struct{}

// NewXLSXExporter builds an xlsx exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string { return FormatXLSX }

// Render lays out the title on row 1, the subtitle on row 2 and the table from row 4.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := data.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	}

	styles, err := newXLSXStyles(f)
	if err != nil {
		return nil, err
	}

	lastCol, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, fmt.Errorf("resolve last column: %w", err)
	}

	if err := writeBanner(f, sheet, 1, lastCol, data.Title, styles.title); err != nil {
		return nil, err
	}
	if err := writeBanner(f, sheet, 2, lastCol, data.Subtitle, styles.subtitle); err != nil {
		return nil, err
	}

	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, xlsxHeaderRow)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, xlsxHeaderRow)
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), xlsxHeaderRow)
	if err := f.SetCellStyle(sheet, first, last, styles.header); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for r, row := range data.Rows {
		rowNum := xlsxHeaderRow + 1 + r
		for c, header := range data.Headers {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			if err := f.SetCellValue(sheet, cell, cellValue(data, header, row[header])); err != nil {
				return nil, fmt.Errorf("write cell %s: %w", cell, err)
			}
			style := styles.centered
			switch {
			case c == 0:
				style = styles.body
			case data.Numeric[header]:
				style = styles.total
			}
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return nil, fmt.Errorf("style cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", xlsxNameWidth); err != nil {
		return nil, fmt.Errorf("size columns: %w", err)
	}
	for i, header := range data.Headers[1:] {
		col, _ := excelize.ColumnNumberToName(i + 2)
		width := float64(xlsxDayWidth)
		if data.Numeric[header] {
			width = xlsxTotalWidth
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return nil, fmt.Errorf("size columns: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

type xlsxStyles struct {
	title, subtitle, header, body, centered, total int
}

func newXLSXStyles(f *excelize.File) (xlsxStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}

	defs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: &excelize.Alignment{Horizontal: "center"}},
		{Font: &excelize.Font{Bold: true, Size: 11}, Alignment: &excelize.Alignment{Horizontal: "center"}},
		{
			Font:      &excelize.Font{Bold: true, Size: 10, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{xlsxHeaderFill}},
			Border:    border,
			Alignment: center,
		},
		{Font: &excelize.Font{Size: 10}, Border: border},
		{Font: &excelize.Font{Size: 10}, Border: border, Alignment: center},
		{Font: &excelize.Font{Bold: true, Size: 10}, Border: border, Alignment: center},
	}
	ids := make([]int, len(defs))
	for i, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return xlsxStyles{}, fmt.Errorf("create xlsx style: %w", err)
		}
		ids[i] = id
	}
	return xlsxStyles{title: ids[0], subtitle: ids[1], header: ids[2], body: ids[3], centered: ids[4], total: ids[5]}, nil
}

func writeBanner(f *excelize.File, sheet string, row int, lastCol, text string, style int) error {
	if text == "" {
		return nil
	}
	first := fmt.Sprintf("A%d", row)
	last := fmt.Sprintf("%s%d", lastCol, row)
	if first != last {
		if err := f.MergeCell(sheet, first, last); err != nil {
			return fmt.Errorf("merge banner: %w", err)
		}
	}
	if err := f.SetCellValue(sheet, first, text); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}
	if err := f.SetCellStyle(sheet, first, last, style); err != nil {
		return fmt.Errorf("style banner: %w", err)
	}
	return nil
}

func cellValue(data Dataset, header, value string) interface{} {
	if data.Numeric[header] {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return value
}
