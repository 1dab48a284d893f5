package facestab

import (
	"errors"
	"fmt"
)

// Point is one sample of the resistance curve together with the diagnostics
// needed to explain it.
type Point struct {
	X             float64   `json:"x_m"`
	Pressure      float64   `json:"pressure_kpa"`
	Converged     bool      `json:"converged"`
	Iterations    int       `json:"iterations"`
	Attempts      int       `json:"attempts"`
	FinalResidual float64   `json:"final_residual"`
	ErrorHistory  []float64 `json:"error_history"`
	LastGuess     Guess     `json:"last_guess"`
	Failure       string    `json:"failure,omitempty"`
	InvalidExtent bool      `json:"invalid_extent,omitempty"`
	Surcharge     float64   `json:"surcharge_kpa"`
	Geometry      *Geometry `json:"geometry,omitempty"`
	Moments       *Moments  `json:"moments,omitempty"`
}

// attempt is one entry of the retry plan.
type attempt struct {
	guess   Guess
	damping float64
}

// Controller wraps the local solver with seeding and a bounded retry plan.
type Controller struct {
	solver  *LocalSolver
	damping float64
	retries int
}

// NewController builds a controller from the search settings of the solver's params.
func NewController(s *LocalSolver) *Controller {
	return &Controller{
		solver:  s,
		damping: s.params.Search.Damping,
		retries: s.params.Search.retries(),
	}
}

// plan lists the attempts for one extent:
//  1. the seed (last converged unknowns, or the analytic guess) at full damping
//  2. the same seed at half damping
//  3. midway between the last good unknowns and the analytic guess
//  4. the analytic guess with the sweep shrunk by 0.8 per further retry, quarter damping
func (c *Controller) plan(extent float64, last *Guess) []attempt {
	analytic := c.solver.Analytic(extent)
	seed := analytic
	if last != nil {
		seed = *last
	}
	steps := []attempt{
		{guess: seed, damping: c.damping},
		{guess: seed, damping: c.damping / 2},
	}
	if last != nil {
		steps = append(steps, attempt{guess: midpoint(*last, analytic), damping: c.damping / 2})
	}
	scale := 1.0
	for len(steps) < c.retries+1 {
		scale *= 0.8
		g := analytic
		g.Sweep *= scale
		steps = append(steps, attempt{guess: g, damping: c.damping / 4})
	}
	return steps[:c.retries+1]
}

func midpoint(a, b Guess) Guess {
	return Guess{
		Sweep:       (a.Sweep + b.Sweep) / 2,
		CrestRadius: (a.CrestRadius + b.CrestRadius) / 2,
		Pressure:    a.Pressure,
	}
}

// SolveWithAdaptation produces the curve point for one extent. last is the
// previous converged unknowns, or nil for an analytic start. The returned
// Guess is the new seed state and is nil unless the point converged.
func (c *Controller) SolveWithAdaptation(extent float64, last *Guess) (Point, *Guess) {
	pt := Point{X: extent}
	pr := newProblem(c.solver.params, c.solver.overburden, extent)
	pt.Surcharge = pr.loads.Surcharge

	for _, a := range c.plan(extent, last) {
		pt.Attempts++
		sol, err := c.solver.Solve(extent, a.guess, a.damping)
		if err != nil {
			pt.Failure = err.Error()
			pt.InvalidExtent = errors.Is(err, ErrInvalidGeometry)
			pt.LastGuess = a.guess
			return pt, nil
		}
		pt.Iterations += sol.Iterations
		pt.ErrorHistory = append(pt.ErrorHistory, sol.History...)
		pt.FinalResidual = sol.Residual
		pt.LastGuess = sol.Last
		if sol.Converged {
			g, m := sol.Geometry, sol.Moments
			pt.Converged = true
			pt.Pressure = sol.Pressure
			pt.Geometry = &g
			pt.Moments = &m
			pt.Failure = ""
			seed := sol.Last
			return pt, &seed
		}
	}
	pt.Failure = fmt.Sprintf("no convergence after %d attempts (residual %.3g)", pt.Attempts, pt.FinalResidual)
	return pt, nil
}
