package facestab

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBuildCurveScenario(t *testing.T) {
	res, err := NewEngine(Config{}).BuildCurve(context.Background(), scenarioParams())
	require.NoError(t, err)
	require.Equal(t, StatusComplete, res.Status)
	require.NotNil(t, res.Governing)
	require.Len(t, res.Points, 50)

	gov := res.Governing
	assert.Greater(t, gov.Pressure, 10.0)
	assert.Less(t, gov.Pressure, 100.0)
	assert.False(t, res.BoundaryMaximum)
	assert.Empty(t, res.Warnings)
	assert.Greater(t, gov.X, res.Points[0].X)
	assert.Less(t, gov.X, res.Points[len(res.Points)-1].X)
	assert.Equal(t, Classify(gov.Pressure), res.Rating)
	assert.Equal(t, MethodSimple, res.Overburden)

	assert.Equal(t, 50, res.Summary.Total)
	assert.Equal(t, 50, res.Summary.Converged)
	assert.Equal(t, 1.0, res.Summary.ConvergenceRate)
	assert.LessOrEqual(t, res.Summary.MinIterations, res.Summary.MaxIterations)
	assert.Nil(t, res.SafetyFactor)

	for i, pt := range res.Points {
		assert.LessOrEqual(t, pt.Pressure, gov.Pressure)
		if i > 0 {
			assert.Greater(t, pt.X, res.Points[i-1].X)
			assert.Less(t, math.Abs(pt.Pressure-res.Points[i-1].Pressure), 15.0, "jump at x=%v", pt.X)
		}
	}
}

func TestBuildCurveIsIdempotent(t *testing.T) {
	p := scenarioParams()
	p.Search.Samples = 12
	e := NewEngine(Config{Overburden: Terzaghi{K: 1}})
	a, err := e.BuildCurve(context.Background(), p)
	require.NoError(t, err)
	b, err := e.BuildCurve(context.Background(), p)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("second run differs (-first +second):\n%s", diff)
	}
}

func TestBuildCurveArchingLowersDemand(t *testing.T) {
	p := scenarioParams()
	p.Search.Samples = 15
	simple, err := NewEngine(Config{}).BuildCurve(context.Background(), p)
	require.NoError(t, err)
	arching, err := NewEngine(Config{Overburden: Terzaghi{K: 1}}).BuildCurve(context.Background(), p)
	require.NoError(t, err)
	assert.Less(t, arching.GoverningPressure(), simple.GoverningPressure())
	for i := range p.Search.Extents() {
		assert.LessOrEqual(t, arching.Points[i].Surcharge, simple.Points[i].Surcharge)
	}
}

func TestBuildCurveValidatesFirst(t *testing.T) {
	p := scenarioParams()
	p.Ground.CohesionKPa, p.Ground.PhiDeg = 0, 0
	calls := 0
	e := NewEngine(Config{Progress: func(int, int, Point) { calls++ }})
	res, err := e.BuildCurve(context.Background(), p)
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, res.Points)
	assert.Zero(t, calls)
}

func TestBuildCurveCancellation(t *testing.T) {
	p := scenarioParams()
	p.Search.Samples = 10
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewEngine(Config{Progress: func(done, total int, _ Point) {
		assert.Equal(t, 10, total)
		if done == 2 {
			cancel()
		}
	}})
	res, err := e.BuildCurve(ctx, p)
	require.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusIncomplete, res.Status)
	assert.Len(t, res.Points, 2)
	assert.Equal(t, 2, res.Summary.Evaluated)
	assert.Equal(t, 10, res.Summary.Total)
}

func TestBuildCurveFlagsBoundaryMaximum(t *testing.T) {
	p := scenarioParams()
	p.Search.XMinM, p.Search.XMaxM, p.Search.Samples = 0.5, 1.5, 6
	res, err := NewEngine(Config{}).BuildCurve(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, res.Governing)
	assert.True(t, res.BoundaryMaximum)
	assert.Equal(t, 1.5, res.Governing.X)
	assert.Len(t, res.Warnings, 1)
}

func TestBuildCurveSkipsUnreachableExtents(t *testing.T) {
	p := scenarioParams()
	p.Tunnel.HeightM = 2
	p.Ground = Ground{GammaKNM3: 19, CohesionKPa: 20}
	p.Search.XMinM, p.Search.XMaxM, p.Search.Samples = 0.5, 3, 6
	res, err := NewEngine(Config{}).BuildCurve(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Points, 6)
	for _, pt := range res.Points {
		if pt.X > 2 {
			assert.True(t, pt.InvalidExtent, "x=%v", pt.X)
			assert.False(t, pt.Converged)
		} else {
			assert.True(t, pt.Converged, "x=%v", pt.X)
		}
	}
	assert.Equal(t, 2, res.Summary.Failed)
}

func TestBuildCurveNonConvergent(t *testing.T) {
	p := scenarioParams()
	p.Search.XMinM, p.Search.XMaxM, p.Search.Samples = 0.5, 1, 3
	p.Search.MaxIterations = 1
	p.Search.Tolerance = 1e-12
	p.Search.MaxRetries = Retries(0)
	res, err := NewEngine(Config{}).BuildCurve(context.Background(), p)
	require.ErrorIs(t, err, ErrNonConvergent)
	assert.Equal(t, StatusNonConvergent, res.Status)
	assert.Nil(t, res.Governing)
	assert.Equal(t, RatingUnknown, res.Rating)
	assert.Equal(t, 3, res.Summary.Failed)
	assert.Zero(t, res.GoverningPressure())
}

func TestBuildCurveSafetyFactor(t *testing.T) {
	p := scenarioParams()
	p.Search.Samples = 10
	p.AppliedPressureKPa = 120
	res, err := NewEngine(Config{}).BuildCurve(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, res.SafetyFactor)
	assert.InDelta(t, 120/res.Governing.Pressure, *res.SafetyFactor, 1e-12)
}

func TestParallelMatchesSequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := scenarioParams()
	p.Search.Samples = 20
	seq, err := NewEngine(Config{}).BuildCurve(context.Background(), p)
	require.NoError(t, err)

	p.Search.Workers = 4
	done := 0
	par, err := NewEngine(Config{Progress: func(int, int, Point) { done++ }}).BuildCurve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 20, done)
	require.Len(t, par.Points, 20)
	require.NotNil(t, par.Governing)
	assert.Equal(t, seq.Governing.X, par.Governing.X)
	assert.InDelta(t, seq.Governing.Pressure, par.Governing.Pressure, 1e-4)
	for i := range seq.Points {
		assert.Equal(t, seq.Points[i].X, par.Points[i].X)
		assert.InDelta(t, seq.Points[i].Pressure, par.Points[i].Pressure, 1e-4)
	}
}

func TestParallelCancellationKeepsPrefix(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := scenarioParams()
	p.Search.Samples = 16
	p.Search.Workers = 4
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewEngine(Config{}).BuildCurve(ctx, p)
	require.True(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, StatusIncomplete, res.Status)
	assert.Empty(t, res.Points)
}

func TestBuildCurveWithoutContinuation(t *testing.T) {
	p := scenarioParams()
	p.Search.Samples = 12
	with, err := NewEngine(Config{}).BuildCurve(context.Background(), p)
	require.NoError(t, err)

	off := false
	p.Search.Continuation = &off
	without, err := NewEngine(Config{}).BuildCurve(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, without.Points, 12)

	// Each extent must solve exactly as a cold start from the analytic guess.
	ctrl := NewController(NewLocalSolver(without.Params, Simple{}))
	for _, pt := range without.Points {
		cold, _ := ctrl.SolveWithAdaptation(pt.X, nil)
		assert.Equal(t, cold.Converged, pt.Converged, "x=%v", pt.X)
		assert.Equal(t, cold.Iterations, pt.Iterations, "x=%v", pt.X)
		assert.Equal(t, cold.Attempts, pt.Attempts, "x=%v", pt.X)
		assert.Equal(t, cold.Pressure, pt.Pressure, "x=%v", pt.X)
	}

	require.NotNil(t, without.Governing)
	assert.Equal(t, with.Governing.X, without.Governing.X)
	assert.InDelta(t, with.Governing.Pressure, without.Governing.Pressure, 1e-4)
}
