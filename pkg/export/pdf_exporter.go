package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a Dataset as a landscape A4 table.
type PDFExporter struct{}

// NewPDFExporter returns a stateless PDF renderer.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws the optional title and the table. Long tables flow across
// pages; the header row repeats on each page.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no headers")
	}

	doc := gofpdf.New("L", "mm", "A4", "")
	doc.SetMargins(10, 12, 10)
	doc.SetAutoPageBreak(true, 14)

	pageW, _ := doc.GetPageSize()
	left, _, right, _ := doc.GetMargins()
	colW := (pageW - left - right) / float64(len(data.Headers))

	drawHeader := func() {
		doc.SetFont("Helvetica", "B", 9)
		doc.SetFillColor(230, 230, 230)
		for _, h := range data.Headers {
			doc.CellFormat(colW, 7, h, "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont("Helvetica", "", 8)
	}
	doc.SetHeaderFuncMode(func() {
		if title != "" {
			doc.SetFont("Helvetica", "B", 13)
			doc.CellFormat(0, 9, title, "", 1, "C", false, 0, "")
			doc.Ln(2)
		}
		drawHeader()
	}, true)

	doc.AddPage()

	record := make([]string, 0, len(data.Headers))
	for _, row := range data.Rows {
		record = data.record(row, record)
		for _, cell := range record {
			doc.CellFormat(colW, 6, cell, "1", 0, "", false, 0, "")
		}
		doc.Ln(-1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
