package report

import (
	"fmt"
	"strings"
	"time"

	"Facestab/internal/calc/facestab"
)

// Field is one labelled value of a report table.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

type CurveRow struct {
	X         float64 `json:"x_m"`
	Pressure  float64 `json:"pressure_kpa"`
	Converged bool    `json:"converged"`
}

// Record is the flattened content of a report, independent of the output format.
type Record struct {
	Title      string           `json:"title"`
	Generated  time.Time        `json:"generated"`
	Inputs     []Field          `json:"inputs"`
	Results    []Field          `json:"results"`
	Rating     facestab.Rating  `json:"rating"`
	Assessment string           `json:"assessment"`
	Verdict    facestab.Verdict `json:"verdict,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
	Curve      []CurveRow       `json:"curve"`
	TotalRows  int              `json:"total_rows"`
	Summary    facestab.Summary `json:"summary"`
}

// maxCurveRows bounds the curve table; the last sample is always kept.
const maxCurveRows = 20

func NewRecord(title string, res facestab.Result, now time.Time) Record {
	if title == "" {
		title = "Tunnel Face Stability Report"
	}
	p := res.Params
	rec := Record{
		Title:     title,
		Generated: now,
		Inputs: []Field{
			{"height_m", "Tunnel height (H)", f1(p.Tunnel.HeightM), "m"},
			{"depth_m", "Cover depth (D)", f1(p.Tunnel.DepthM), "m"},
			{"surcharge_kpa", "Surface surcharge (σv)", f1(p.Tunnel.SurchargeKPa), "kPa"},
			{"gamma_kn_m3", "Unit weight (γ)", f1(p.Ground.GammaKNM3), "kN/m³"},
			{"cohesion_kpa", "Cohesion (c)", f1(p.Ground.CohesionKPa), "kPa"},
			{"phi_deg", "Friction angle (φ)", f1(p.Ground.PhiDeg), "°"},
			{"water_kpa", "Water pressure (u)", f1(p.Ground.WaterKPa), "kPa"},
			{"method", "Overburden method", res.Overburden, ""},
			{"extent_range", "Extent range", fmt.Sprintf("%.2f – %.2f", p.Search.XMinM, p.Search.XMaxM), "m"},
		},
		Rating:     res.Rating,
		Assessment: res.Rating.Describe(),
		Warnings:   res.Warnings,
		Summary:    res.Summary,
		TotalRows:  len(res.Points),
	}
	rec.Results = append(rec.Results, Field{"status", "Status", string(res.Status), ""})
	if g := res.Governing; g != nil {
		rec.Results = append(rec.Results,
			Field{"pressure_kpa", "Required face pressure (P_max)", f1(g.Pressure), "kPa"},
			Field{"x_critical_m", "Critical extent (x_critical)", fmt.Sprintf("%.2f", g.X), "m"},
		)
	}
	if res.SafetyFactor != nil {
		rec.Verdict = facestab.AssessFactor(*res.SafetyFactor)
		rec.Results = append(rec.Results,
			Field{"applied_kpa", "Applied face pressure", f1(p.AppliedPressureKPa), "kPa"},
			Field{"safety_factor", "Safety factor", fmt.Sprintf("%.2f", *res.SafetyFactor), ""},
		)
	}
	rec.Results = append(rec.Results,
		Field{"convergence_rate", "Convergence rate", fmt.Sprintf("%.0f%%", 100*res.Summary.ConvergenceRate), ""},
		Field{"mean_iterations", "Mean iterations", fmt.Sprintf("%.1f", res.Summary.MeanIterations), ""},
	)
	rec.Curve = sampleRows(res.Points)
	return rec
}

func sampleRows(points []facestab.Point) []CurveRow {
	if len(points) == 0 {
		return nil
	}
	step := (len(points) + maxCurveRows - 1) / maxCurveRows
	var rows []CurveRow
	for i := 0; i < len(points); i += step {
		rows = append(rows, row(points[i]))
	}
	if (len(points)-1)%step != 0 {
		rows = append(rows, row(points[len(points)-1]))
	}
	return rows
}

func row(p facestab.Point) CurveRow {
	return CurveRow{X: p.X, Pressure: p.Pressure, Converged: p.Converged}
}

// Map flattens the record into key/value pairs for templating.
func (r Record) Map() map[string]string {
	m := map[string]string{
		"title":      r.Title,
		"generated":  r.Generated.Format("2006-01-02 15:04"),
		"rating":     string(r.Rating),
		"assessment": r.Assessment,
	}
	if r.Verdict != "" {
		m["verdict"] = string(r.Verdict)
	}
	for _, f := range append(append([]Field{}, r.Inputs...), r.Results...) {
		m[f.Key] = f.Value
	}
	return m
}

func f1(v float64) string { return fmt.Sprintf("%.1f", v) }

func verdictText(v facestab.Verdict) string {
	switch v {
	case facestab.VerdictSafe:
		return "SAFE - The tunnel face is stable with adequate safety margin."
	case facestab.VerdictMarginal:
		return "MARGINAL - Face stability is marginal. Additional support measures recommended."
	case facestab.VerdictUnsafe:
		return "UNSAFE - The applied pressure does not hold the face. Immediate support measures required."
	default:
		return "No applied face pressure given; safety factor not calculated."
	}
}

func recommendations(r Record) []string {
	if r.Verdict == facestab.VerdictSafe || (r.Verdict == "" && r.Rating == facestab.RatingStable) {
		return []string{
			"Continue with standard excavation procedures.",
			"Maintain regular monitoring as per standard practice.",
		}
	}
	return []string{
		"Consider additional support measures such as face bolting or grouting.",
		"Monitor face deformation closely during excavation.",
		"Review the soil parameters through additional investigation.",
	}
}

// Markdown renders the record as a plain-text report.
func Markdown(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "## Analysis Date\n%s\n\n", r.Generated.Format("2006-01-02 15:04"))

	b.WriteString("## 1. Input Parameters\n\n")
	writeFields(&b, r.Inputs)

	b.WriteString("\n## 2. Analysis Results\n\n")
	writeFields(&b, r.Results)
	fmt.Fprintf(&b, "\n### Safety Assessment\n**%s**: %s\n\n%s\n", r.Rating, r.Assessment, verdictText(r.Verdict))
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\n> Warning: %s\n", w)
	}

	b.WriteString("\n## 3. Resistance Curve\n\n| x [m] | P [kPa] | converged |\n|---|---|---|\n")
	for _, c := range r.Curve {
		fmt.Fprintf(&b, "| %.2f | %.1f | %t |\n", c.X, c.Pressure, c.Converged)
	}
	fmt.Fprintf(&b, "\nShowing %d of %d points.\n", len(r.Curve), r.TotalRows)

	b.WriteString("\n## 4. Recommendations\n")
	for _, line := range recommendations(r) {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

func writeFields(b *strings.Builder, fields []Field) {
	for _, f := range fields {
		if f.Unit != "" {
			fmt.Fprintf(b, "- %s: %s %s\n", f.Label, f.Value, f.Unit)
		} else {
			fmt.Fprintf(b, "- %s: %s\n", f.Label, f.Value)
		}
	}
}
