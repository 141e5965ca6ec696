package reporting

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Format is an output encoding for reports.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat reads a format name. An empty name selects CSV.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

func encode(t Table, f Format, stamp string) ([]byte, error) {
	switch f {
	case FormatPDF:
		return encodePDF(t, stamp)
	case FormatXLSX:
		return encodeXLSX(t)
	default:
		return EncodeCSV(t), nil
	}
}

func encodePDF(t Table, stamp string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr("Starland Water Company - "+t.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, tr("Generated "+stamp), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(t.Headers) == 0 {
		return outputPDF(pdf)
	}

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	width := (pageW - left - right) / float64(len(t.Headers))

	header := func() {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(220, 230, 241)
		for _, h := range t.Headers {
			pdf.CellFormat(width, 7, tr(h), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	header()

	_, pageH := pdf.GetPageSize()
	for _, cells := range t.Cells() {
		if pdf.GetY()+6 > pageH-12 {
			pdf.AddPage()
			header()
		}
		for _, c := range cells {
			pdf.CellFormat(width, 6, tr(fit(pdf, c, width-2)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return outputPDF(pdf)
}

// fit shortens text to the cell width.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func outputPDF(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeXLSX(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(t.ID)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headers := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i, line := range t.Values() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func sheetName(id string) string {
	if id == "" {
		return "Report"
	}
	if len(id) > 31 {
		return id[:31]
	}
	return id
}
