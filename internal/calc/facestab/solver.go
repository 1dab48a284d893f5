package facestab

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	maxSweep      = math.Pi / 2
	maxBacktracks = 10
	// armijo is the fraction of the predicted decrease a damped step must deliver.
	armijo = 1e-4
)

// Guess is a starting point for the unknowns (sweep, crest radius, pressure).
type Guess struct {
	Sweep       float64 `json:"sweep_rad"`
	CrestRadius float64 `json:"crest_radius_m"`
	Pressure    float64 `json:"pressure_kpa"`
}

func (g Guess) vec() [3]float64 { return [3]float64{g.Sweep, g.CrestRadius, g.Pressure} }

func guessOf(u [3]float64) Guess { return Guess{Sweep: u[0], CrestRadius: u[1], Pressure: u[2]} }

// Solution is the outcome of one local solve. Non-convergence is reported
// through Converged, never as an error.
type Solution struct {
	Converged  bool      `json:"converged"`
	Iterations int       `json:"iterations"`
	Residual   float64   `json:"residual"`
	History    []float64 `json:"history"`
	Last       Guess     `json:"last_guess"`
	Restarted  bool      `json:"restarted,omitempty"`
	Geometry   Geometry  `json:"geometry"`
	Moments    Moments   `json:"moments"`
	Pressure   float64   `json:"pressure_kpa"`
}

// LocalSolver zeroes the equilibrium residual for single extents.
type LocalSolver struct {
	params     Params
	overburden Overburden
}

// NewLocalSolver binds a validated parameter set to an overburden strategy.
func NewLocalSolver(p Params, ob Overburden) *LocalSolver {
	return &LocalSolver{params: p, overburden: ob}
}

// Analytic returns the closed-form seed for an extent.
func (s *LocalSolver) Analytic(extent float64) Guess {
	sweep, r := AnalyticGuess(s.params.Tunnel.HeightM, extent, s.params.Ground.phiRad())
	pr := newProblem(s.params, s.overburden, extent)
	return Guess{Sweep: sweep, CrestRadius: r, Pressure: s.pressureAt(pr, [3]float64{sweep, r, 0})}
}

// CheckExtent rejects extents the slip surface cannot reach.
func (s *LocalSolver) CheckExtent(extent float64) error {
	limit := MaxExtent(s.params.Tunnel.HeightM, s.params.Ground.phiRad())
	if !(extent > 0) || extent > limit*(1+1e-9) {
		return fmt.Errorf("%w: extent %.4g m outside (0, %.4g m]", ErrInvalidGeometry, extent, limit)
	}
	return nil
}

// Solve runs damped Newton from guess. damping scales the first trial step of
// every iteration and must be in (0, 1].
func (s *LocalSolver) Solve(extent float64, guess Guess, damping float64) (Solution, error) {
	if err := s.CheckExtent(extent); err != nil {
		return Solution{}, err
	}
	pr := newProblem(s.params, s.overburden, extent)
	tol := s.params.Search.Tolerance

	u := s.clamp(pr, guess.vec())
	if math.IsNaN(u[2]) || math.IsInf(u[2], 0) {
		u[2] = s.pressureAt(pr, u)
	}
	sol := Solution{}
	f, err := pr.Residual(u)
	if err != nil || !finite(f) {
		u = s.perturb(pr, u)
		sol.Restarted = true
		if f, err = pr.Residual(u); err != nil || !finite(f) {
			sol.Residual = math.MaxFloat64
			sol.Last = guessOf(u)
			return sol, nil
		}
	}
	norm := floats.Norm(f[:], 2)
	sol.History = append(sol.History, norm)

	for sol.Iterations < s.params.Search.MaxIterations && norm >= tol {
		delta, ok := newtonStep(pr, u, f)
		if !ok {
			break
		}
		lambda := damping
		accepted := false
		for k := 0; k < maxBacktracks; k++ {
			trial := u
			for i := range trial {
				trial[i] += lambda * delta[i]
			}
			trial = s.clamp(pr, trial)
			ft, err := pr.Residual(trial)
			if err == nil && finite(ft) {
				if nt := floats.Norm(ft[:], 2); nt < (1-armijo*lambda)*norm {
					u, f, norm = trial, ft, nt
					accepted = true
					break
				}
			} else if !sol.Restarted {
				// A NaN mid-iteration resets once from a nudged copy of the seed.
				u = s.perturb(pr, s.clamp(pr, guess.vec()))
				u[2] = s.pressureAt(pr, u)
				sol.Restarted = true
				if f, err = pr.Residual(u); err != nil || !finite(f) {
					break
				}
				norm = floats.Norm(f[:], 2)
				accepted = true
				break
			}
			lambda /= 2
		}
		sol.Iterations++
		sol.History = append(sol.History, norm)
		if !accepted {
			break
		}
	}

	sol.Residual = norm
	sol.Last = guessOf(u)
	sol.Converged = norm < tol
	if !sol.Converged {
		return sol, nil
	}
	g, err := pr.geometry(u)
	if err != nil {
		sol.Converged = false
		return sol, nil
	}
	sol.Geometry = g
	sol.Moments = MomentsOf(g, pr.loads, pr.divisions)
	sol.Pressure = SupportPressure(sol.Moments)
	return sol, nil
}

// newtonStep solves J·δ = -f with a forward-difference Jacobian.
func newtonStep(pr problem, u, f [3]float64) ([3]float64, bool) {
	jac := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		h := 1e-7 * math.Max(math.Abs(u[j]), 1)
		up := u
		up[j] += h
		fp, err := pr.Residual(up)
		if err != nil || !finite(fp) {
			up[j] = u[j] - h
			if fp, err = pr.Residual(up); err != nil || !finite(fp) {
				return [3]float64{}, false
			}
			h = -h
		}
		for i := 0; i < 3; i++ {
			jac.Set(i, j, (fp[i]-f[i])/h)
		}
	}
	var delta mat.VecDense
	rhs := mat.NewVecDense(3, []float64{-f[0], -f[1], -f[2]})
	if err := delta.SolveVec(jac, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return [3]float64{}, false
		}
	}
	out := [3]float64{delta.AtVec(0), delta.AtVec(1), delta.AtVec(2)}
	return out, finite(out)
}

// clamp pulls an iterate back into the physical box: 0 < sweep ≤ 90°,
// positive crest radius, finite pressure.
func (s *LocalSolver) clamp(pr problem, u [3]float64) [3]float64 {
	minR := 1e-6 * pr.height
	if math.IsNaN(u[0]) || math.IsInf(u[0], 0) {
		u[0] = maxSweep / 2
	}
	u[0] = math.Min(math.Max(u[0], 1e-6), maxSweep)
	if math.IsNaN(u[1]) || math.IsInf(u[1], 0) || u[1] < minR {
		_, u[1] = AnalyticGuess(pr.height, pr.extent, pr.loads.PhiRad)
	}
	return u
}

func (s *LocalSolver) perturb(pr problem, u [3]float64) [3]float64 {
	u[0] *= 0.9
	u[1] *= 1.1
	return s.clamp(pr, u)
}

// pressureAt back-computes P for the current geometry iterate.
func (s *LocalSolver) pressureAt(pr problem, u [3]float64) float64 {
	g, err := pr.geometry(u)
	if err != nil {
		return 0
	}
	p := SupportPressure(MomentsOf(g, pr.loads, pr.divisions))
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}

func finite(v [3]float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
