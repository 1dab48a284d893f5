package facestab

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusComplete      Status = "complete"
	StatusIncomplete    Status = "incomplete"
	StatusNonConvergent Status = "non_convergent"
)

// Config is fixed for the lifetime of an Engine.
type Config struct {
	Overburden Overburden
	Logger     *slog.Logger
	// Progress is called after every evaluated sample. Calls are serialised.
	Progress func(done, total int, p Point)
}

type Summary struct {
	Total           int     `json:"total"`
	Evaluated       int     `json:"evaluated"`
	Converged       int     `json:"converged"`
	Failed          int     `json:"failed"`
	ConvergenceRate float64 `json:"convergence_rate"`
	MinIterations   int     `json:"min_iterations"`
	MaxIterations   int     `json:"max_iterations"`
	MeanIterations  float64 `json:"mean_iterations"`
}

type Result struct {
	Status          Status   `json:"status"`
	Overburden      string   `json:"overburden"`
	Params          Params   `json:"params"`
	Points          []Point  `json:"points"`
	Governing       *Point   `json:"governing,omitempty"`
	Rating          Rating   `json:"rating"`
	BoundaryMaximum bool     `json:"boundary_maximum"`
	Warnings        []string `json:"warnings,omitempty"`
	Summary         Summary  `json:"summary"`
	SafetyFactor    *float64 `json:"safety_factor,omitempty"`
}

// GoverningPressure is the required face pressure, or 0 without a governing point.
func (r Result) GoverningPressure() float64 {
	if r.Governing == nil {
		return 0
	}
	return r.Governing.Pressure
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.Overburden == nil {
		cfg.Overburden = Simple{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{cfg: cfg}
}

// Overburden reports the strategy the engine was built with.
func (e *Engine) Overburden() Overburden { return e.cfg.Overburden }

// BuildCurve sweeps the extent range and reduces the samples to the governing
// pressure. On cancellation the points computed so far are returned with
// StatusIncomplete and an error wrapping ErrCancelled.
func (e *Engine) BuildCurve(ctx context.Context, p Params) (Result, error) {
	p.Search = p.Search.WithDefaults()
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	extents := p.Search.Extents()
	log := e.cfg.Logger.With("method", e.cfg.Overburden.Name(), "samples", len(extents))

	res := Result{Overburden: e.cfg.Overburden.Name(), Params: p}
	var points []Point
	var err error
	if p.Search.Workers > 1 && len(extents) > 1 {
		points, err = e.sweepParallel(ctx, p, extents)
	} else {
		points, err = e.sweepSequential(ctx, p, extents, 0, len(extents), newProgress(e.cfg.Progress, len(extents)))
	}
	res.Points = points
	res.Summary = summarise(points, len(extents))

	if err != nil {
		res.Status = StatusIncomplete
		e.reduce(&res, extents, log)
		log.Info("sweep cancelled", "evaluated", res.Summary.Evaluated)
		return res, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	e.reduce(&res, extents, log)
	if res.Governing == nil {
		res.Status = StatusNonConvergent
		log.Info("sweep finished without a converged extent", "failed", res.Summary.Failed)
		return res, fmt.Errorf("%w: none of %d extents converged", ErrNonConvergent, len(extents))
	}
	res.Status = StatusComplete
	log.Info("sweep finished",
		"governing_x", res.Governing.X,
		"pressure_kpa", res.Governing.Pressure,
		"rating", res.Rating,
		"converged", res.Summary.Converged,
		"failed", res.Summary.Failed)
	return res, nil
}

func (e *Engine) reduce(res *Result, extents []float64, log *slog.Logger) {
	for _, pt := range res.Points {
		if !pt.Converged {
			log.Debug("extent not converged", "x", pt.X, "attempts", pt.Attempts,
				"residual", pt.FinalResidual, "reason", pt.Failure)
		}
	}
	idx := governingIndex(res.Points)
	if idx < 0 {
		res.Rating = RatingUnknown
		return
	}
	gov := res.Points[idx]
	res.Governing = &gov
	res.Rating = Classify(gov.Pressure)
	if gov.X == extents[0] || gov.X == extents[len(extents)-1] {
		res.BoundaryMaximum = true
		msg := fmt.Sprintf("governing pressure at search boundary x=%.3g m; widen the extent range", gov.X)
		res.Warnings = append(res.Warnings, msg)
		log.Warn("boundary maximum", "x", gov.X, "pressure_kpa", gov.Pressure)
	}
	if sf, ok := SafetyFactor(res.Params.AppliedPressureKPa, gov.Pressure); ok {
		res.SafetyFactor = &sf
	}
}

// governingIndex is the first converged argmax of the pressure, or -1.
func governingIndex(points []Point) int {
	idx := -1
	for i, pt := range points {
		if !pt.Converged {
			continue
		}
		if idx < 0 || pt.Pressure > points[idx].Pressure {
			idx = i
		}
	}
	return idx
}

func (e *Engine) sweepSequential(ctx context.Context, p Params, extents []float64, from, to int, progress func(Point)) ([]Point, error) {
	ctrl := NewController(NewLocalSolver(p, e.cfg.Overburden))
	points := make([]Point, 0, to-from)
	var seed *Guess
	for i := from; i < to; i++ {
		if err := ctx.Err(); err != nil {
			return points, err
		}
		pt, next := ctrl.SolveWithAdaptation(extents[i], seedFor(seed, p.Search.continuation()))
		if next != nil {
			seed = next
		}
		points = append(points, pt)
		progress(pt)
	}
	return points, nil
}

func seedFor(seed *Guess, continuation bool) *Guess {
	if !continuation {
		return nil
	}
	return seed
}

// sweepParallel splits the extents into contiguous chunks, one per worker.
// Every chunk starts from the analytic guess.
func (e *Engine) sweepParallel(ctx context.Context, p Params, extents []float64) ([]Point, error) {
	workers := min(p.Search.Workers, len(extents))
	size := int(math.Ceil(float64(len(extents)) / float64(workers)))
	chunks := make([][]Point, workers)
	progress := newProgress(e.cfg.Progress, len(extents))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		from, to := w*size, min((w+1)*size, len(extents))
		if from >= to {
			continue
		}
		g.Go(func() error {
			pts, err := e.sweepSequential(gctx, p, extents, from, to, progress)
			chunks[w] = pts
			return err
		})
	}
	err := g.Wait()

	// Keep the contiguous prefix so a cancelled result has no holes.
	var points []Point
	for w := 0; w < workers; w++ {
		from, to := w*size, min((w+1)*size, len(extents))
		if from >= to {
			continue
		}
		points = append(points, chunks[w]...)
		if len(chunks[w]) < to-from {
			break
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return points, err
}

func newProgress(fn func(done, total int, p Point), total int) func(Point) {
	if fn == nil {
		return func(Point) {}
	}
	var mu sync.Mutex
	done := 0
	return func(pt Point) {
		mu.Lock()
		defer mu.Unlock()
		done++
		fn(done, total, pt)
	}
}

func summarise(points []Point, total int) Summary {
	s := Summary{Total: total, Evaluated: len(points)}
	if len(points) == 0 {
		return s
	}
	s.MinIterations = math.MaxInt
	sum := 0
	for _, pt := range points {
		if pt.Converged {
			s.Converged++
		} else {
			s.Failed++
		}
		s.MinIterations = min(s.MinIterations, pt.Iterations)
		s.MaxIterations = max(s.MaxIterations, pt.Iterations)
		sum += pt.Iterations
	}
	s.MeanIterations = float64(sum) / float64(len(points))
	s.ConvergenceRate = float64(s.Converged) / float64(len(points))
	return s
}
