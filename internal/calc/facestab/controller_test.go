package facestab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanIsBoundedByRetries(t *testing.T) {
	s := solverFor(scenarioParams())
	c := NewController(s)
	last := s.Analytic(1.9)

	for retries := 0; retries <= 5; retries++ {
		c.retries = retries
		assert.Len(t, c.plan(2, nil), retries+1)
		assert.Len(t, c.plan(2, &last), retries+1)
	}

	c.retries = 4
	steps := c.plan(2, &last)
	assert.Equal(t, last, steps[0].guess)
	assert.Equal(t, 1.0, steps[0].damping)
	assert.Equal(t, 0.5, steps[1].damping)
	assert.Equal(t, midpoint(last, s.Analytic(2)), steps[2].guess)
	assert.Equal(t, 0.25, steps[3].damping)
	assert.InDelta(t, s.Analytic(2).Sweep*0.8, steps[3].guess.Sweep, 1e-12)
	assert.InDelta(t, s.Analytic(2).Sweep*0.64, steps[4].guess.Sweep, 1e-12)
}

func TestSolveWithAdaptationSeedsNextExtent(t *testing.T) {
	c := NewController(solverFor(scenarioParams()))
	pt, seed := c.SolveWithAdaptation(1.0, nil)
	require.True(t, pt.Converged, pt.Failure)
	require.NotNil(t, seed)
	assert.Equal(t, 1, pt.Attempts)
	assert.NotNil(t, pt.Geometry)
	assert.NotNil(t, pt.Moments)
	assert.Equal(t, 180.0, pt.Surcharge)

	next, _ := c.SolveWithAdaptation(1.1, seed)
	require.True(t, next.Converged)
	assert.Equal(t, 1, next.Attempts)
}

func TestSolveWithAdaptationFlagsInvalidExtent(t *testing.T) {
	c := NewController(solverFor(scenarioParams()))
	pt, seed := c.SolveWithAdaptation(20, nil)
	assert.Nil(t, seed)
	assert.False(t, pt.Converged)
	assert.True(t, pt.InvalidExtent)
	assert.NotEmpty(t, pt.Failure)
	assert.Equal(t, 1, pt.Attempts)
}

func TestSolveWithAdaptationReportsExhaustion(t *testing.T) {
	p := scenarioParams()
	p.Search.MaxIterations = 1
	p.Search.Tolerance = 1e-15
	p.Search.MaxRetries = Retries(2)
	c := NewController(solverFor(p))
	pt, seed := c.SolveWithAdaptation(2.0, nil)
	assert.Nil(t, seed)
	assert.False(t, pt.Converged)
	assert.False(t, pt.InvalidExtent)
	assert.Equal(t, 3, pt.Attempts)
	assert.Contains(t, pt.Failure, "no convergence after 3 attempts")
	assert.NotEmpty(t, pt.ErrorHistory)
}
