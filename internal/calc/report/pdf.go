package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/phpdave11/gofpdf"

	"Facestab/internal/calc/facestab"
)

// greek spells out symbols the core PDF fonts cannot encode.
var greek = strings.NewReplacer("γ", "gamma", "σv", "sigma_v", "φ", "phi", "–", "-")

// WritePDF renders the record as an A4 report.
func WritePDF(w io.Writer, r Record) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(greek.Replace(s)) }

	pdf.SetTitle(text(r.Title), false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, text(r.Title))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", r.Generated.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	section(pdf, "1. Input Parameters")
	table(pdf, text, []string{"Parameter", "Value", "Unit"}, []float64{80, 40, 30}, fieldRows(r.Inputs))

	section(pdf, "2. Analysis Results")
	table(pdf, text, []string{"Result", "Value", "Unit"}, []float64{80, 40, 30}, fieldRows(r.Results))

	section(pdf, "3. Safety Assessment")
	pdf.SetFont("Helvetica", "B", 11)
	switch r.Rating {
	case facestab.RatingStable:
		pdf.SetTextColor(0, 128, 0)
	case facestab.RatingMinorSupport:
		pdf.SetTextColor(200, 120, 0)
	default:
		pdf.SetTextColor(190, 0, 0)
	}
	pdf.MultiCell(0, 6, text(r.Assessment), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, text(verdictText(r.Verdict)), "", "L", false)
	for _, warn := range r.Warnings {
		pdf.MultiCell(0, 6, text("Warning: "+warn), "", "L", false)
	}
	pdf.Ln(4)

	section(pdf, "4. Resistance Curve")
	rows := make([][]string, 0, len(r.Curve))
	for _, c := range r.Curve {
		conv := "yes"
		if !c.Converged {
			conv = "no"
		}
		rows = append(rows, []string{fmt.Sprintf("%.2f", c.X), fmt.Sprintf("%.1f", c.Pressure), conv})
	}
	table(pdf, text, []string{"x [m]", "P [kPa]", "Converged"}, []float64{40, 40, 30}, rows)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Showing %d representative points out of %d.", len(r.Curve), r.TotalRows))
	pdf.Ln(8)

	section(pdf, "5. Recommendations")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range recommendations(r) {
		pdf.MultiCell(0, 6, text("- "+line), "", "L", false)
	}
	return pdf.Output(w)
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
}

func table(pdf *gofpdf.Fpdf, text func(string) string, header []string, widths []float64, rows [][]string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(160, 160, 160)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, text(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, cell := range row {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, text(cell), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func fieldRows(fields []Field) [][]string {
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{f.Label, f.Value, f.Unit})
	}
	return rows
}
