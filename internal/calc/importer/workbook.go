package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"Facestab/internal/calc/facestab"
)

// Columns of an import sheet, after one header row.
var importHeader = []string{
	"title", "height_m", "depth_m", "gamma_kn_m3", "cohesion_kpa", "phi_deg",
	"water_kpa", "surcharge_kpa", "method", "applied_pressure_kpa",
}

// Row is one parsed line of an import sheet. Err is set when the line could
// not be read; such rows are reported, not solved.
type Row struct {
	Line    int              `json:"line"`
	Request facestab.Request `json:"request"`
	Err     string           `json:"error,omitempty"`
}

// ReadRequests parses the first sheet of a workbook into analysis requests.
func ReadRequests(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("empty sheet")
	}
	var out []Row
	for i := 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		req, err := parseRow(rows[i])
		row := Row{Line: i + 1, Request: req}
		if err != nil {
			row.Err = err.Error()
		}
		out = append(out, row)
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string) (facestab.Request, error) {
	// expected: title, height_m, depth_m, gamma, cohesion, phi, water(optional),
	// surcharge(optional), method(optional), applied(optional)
	if len(row) < 6 {
		return facestab.Request{}, fmt.Errorf("need at least 6 columns, got %d", len(row))
	}
	var req facestab.Request
	req.Title = strings.TrimSpace(row[0])
	targets := []*float64{
		&req.Tunnel.HeightM, &req.Tunnel.DepthM, &req.Ground.GammaKNM3,
		&req.Ground.CohesionKPa, &req.Ground.PhiDeg, &req.Ground.WaterKPa,
		&req.Tunnel.SurchargeKPa,
	}
	for i, dst := range targets {
		col := i + 1
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			if col <= 5 {
				return facestab.Request{}, fmt.Errorf("column %s is required", importHeader[col])
			}
			continue
		}
		v, err := toFloat(row[col])
		if err != nil {
			return facestab.Request{}, fmt.Errorf("column %s: %w", importHeader[col], err)
		}
		*dst = v
	}
	if len(row) > 8 {
		req.Method = strings.ToLower(strings.TrimSpace(row[8]))
	}
	if len(row) > 9 && strings.TrimSpace(row[9]) != "" {
		v, err := toFloat(row[9])
		if err != nil {
			return facestab.Request{}, fmt.Errorf("column %s: %w", importHeader[9], err)
		}
		req.AppliedPressureKPa = v
	}
	return req, nil
}

// toFloat accepts a decimal comma as well as a point.
func toFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

// WriteTemplate writes an empty import sheet with the header row.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &importHeader); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

// WriteCurve exports a result as a workbook with a Curve and a Summary sheet.
func WriteCurve(w io.Writer, title string, res facestab.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const curve, summary = "Curve", "Summary"
	if err := f.SetSheetName(f.GetSheetName(0), curve); err != nil {
		return err
	}
	if _, err := f.NewSheet(summary); err != nil {
		return err
	}

	header := []any{"x_m", "pressure_kpa", "converged", "iterations", "attempts", "final_residual", "surcharge_kpa", "failure"}
	if err := f.SetSheetRow(curve, "A1", &header); err != nil {
		return err
	}
	for i, p := range res.Points {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := []any{p.X, p.Pressure, p.Converged, p.Iterations, p.Attempts, p.FinalResidual, p.Surcharge, p.Failure}
		if err := f.SetSheetRow(curve, cell, &vals); err != nil {
			return err
		}
	}

	lines := [][]any{
		{"title", title},
		{"status", string(res.Status)},
		{"overburden", res.Overburden},
		{"rating", string(res.Rating)},
		{"boundary_maximum", res.BoundaryMaximum},
		{"converged", res.Summary.Converged},
		{"failed", res.Summary.Failed},
		{"convergence_rate", res.Summary.ConvergenceRate},
	}
	if g := res.Governing; g != nil {
		lines = append(lines, []any{"governing_x_m", g.X}, []any{"governing_pressure_kpa", g.Pressure})
	}
	if res.SafetyFactor != nil {
		lines = append(lines, []any{"safety_factor", *res.SafetyFactor})
	}
	for i, line := range lines {
		if err := f.SetSheetRow(summary, fmt.Sprintf("A%d", i+1), &line); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
