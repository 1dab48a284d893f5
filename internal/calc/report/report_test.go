package report

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Facestab/internal/calc/facestab"
)

func sampleResult(n int) facestab.Result {
	p := facestab.Params{
		Tunnel:             facestab.Tunnel{HeightM: 5, DepthM: 10},
		Ground:             facestab.Ground{GammaKNM3: 18, CohesionKPa: 10, PhiDeg: 30},
		Search:             facestab.DefaultSearch(),
		AppliedPressureKPa: 80,
	}
	res := facestab.Result{Status: facestab.StatusComplete, Overburden: "simple", Params: p}
	for i := 0; i < n; i++ {
		x := 0.1 + 0.1*float64(i)
		res.Points = append(res.Points, facestab.Point{X: x, Pressure: 60 - (x-2)*(x-2), Converged: true})
	}
	gov := res.Points[n/2]
	res.Governing = &gov
	res.Rating = facestab.Classify(gov.Pressure)
	sf := 80 / gov.Pressure
	res.SafetyFactor = &sf
	res.Summary = facestab.Summary{Total: n, Evaluated: n, Converged: n, ConvergenceRate: 1, MeanIterations: 4}
	return res
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	rec := NewRecord("", sampleResult(50), now)
	assert.Equal(t, "Tunnel Face Stability Report", rec.Title)
	assert.Equal(t, facestab.RatingMinorSupport, rec.Rating)
	assert.Equal(t, facestab.VerdictMarginal, rec.Verdict)
	assert.Equal(t, 50, rec.TotalRows)
	require.NotEmpty(t, rec.Curve)
	assert.LessOrEqual(t, len(rec.Curve), maxCurveRows+1)
	assert.InDelta(t, 5.0, rec.Curve[len(rec.Curve)-1].X, 1e-9)

	m := rec.Map()
	assert.Equal(t, "5.0", m["height_m"])
	assert.Equal(t, "simple", m["method"])
	assert.Equal(t, "2026-05-01 09:30", m["generated"])
	assert.Contains(t, m, "safety_factor")
}

func TestSampleRowsKeepsEveryPointWhenShort(t *testing.T) {
	assert.Len(t, sampleRows(sampleResult(7).Points), 7)
	assert.Nil(t, sampleRows(nil))
}

func TestMarkdown(t *testing.T) {
	md := Markdown(NewRecord("Face A", sampleResult(30), time.Now()))
	assert.True(t, strings.HasPrefix(md, "# Face A\n"))
	for _, want := range []string{"## 1. Input Parameters", "Required face pressure", "MARGINAL", "| x [m] | P [kPa] |", "face bolting"} {
		assert.Contains(t, md, want)
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, NewRecord("Face A", sampleResult(30), time.Now())))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestHandlerGenerate(t *testing.T) {
	body := `{"title":"Face B","tunnel":{"height_m":5,"depth_m":10},
		"ground":{"gamma_kn_m3":18,"cohesion_kpa":10,"phi_deg":30},
		"search":{"x_min_m":0.5,"x_max_m":4,"samples":6}}`
	w := httptest.NewRecorder()
	(&Handler{}).Generate(w, httptest.NewRequest(http.MethodPost, "/api/tools/facestab/report/pdf", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = httptest.NewRecorder()
	(&Handler{}).Markdown(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# Face B")

	w = httptest.NewRecorder()
	(&Handler{}).Generate(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tunnel":{"height_m":0}}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
