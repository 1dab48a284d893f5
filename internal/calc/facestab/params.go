package facestab

import (
	"math"
)

// Ground holds the soil parameters of the face.
type Ground struct {
	GammaKNM3   float64 `json:"gamma_kn_m3" yaml:"gamma_kn_m3"`
	CohesionKPa float64 `json:"cohesion_kpa" yaml:"cohesion_kpa"`
	PhiDeg      float64 `json:"phi_deg" yaml:"phi_deg"`
	WaterKPa    float64 `json:"water_kpa" yaml:"water_kpa"`
}

func (g Ground) phiRad() float64 { return g.PhiDeg * math.Pi / 180.0 }

// Tunnel holds the face height, cover depth above the crown and surface load.
type Tunnel struct {
	HeightM      float64 `json:"height_m" yaml:"height_m"`
	DepthM       float64 `json:"depth_m" yaml:"depth_m"`
	SurchargeKPa float64 `json:"surcharge_kpa" yaml:"surcharge_kpa"`
}

// Search controls the extent sweep and the nonlinear solver.
type Search struct {
	XMinM         float64 `json:"x_min_m" yaml:"x_min_m"`
	XMaxM         float64 `json:"x_max_m" yaml:"x_max_m"`
	StepM         float64 `json:"step_m,omitempty" yaml:"step_m,omitempty"`
	Samples       int     `json:"samples,omitempty" yaml:"samples,omitempty"`
	Tolerance     float64 `json:"tolerance" yaml:"tolerance"`
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations"`
	Damping       float64 `json:"damping" yaml:"damping"`
	Divisions     int     `json:"divisions" yaml:"divisions"`
	Workers       int     `json:"workers,omitempty" yaml:"workers,omitempty"`
	// MaxRetries bounds the extra attempts per extent; nil means DefaultMaxRetries.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	// Continuation seeds each extent from the previous converged one.
	Continuation *bool `json:"continuation,omitempty" yaml:"continuation,omitempty"`
}

// Params is one complete analysis request.
type Params struct {
	Tunnel Tunnel `json:"tunnel" yaml:"tunnel"`
	Ground Ground `json:"ground" yaml:"ground"`
	Search Search `json:"search" yaml:"search"`
	// AppliedPressureKPa is the face pressure actually provided; zero means none.
	AppliedPressureKPa float64 `json:"applied_pressure_kpa,omitempty" yaml:"applied_pressure_kpa,omitempty"`
}

// DefaultSearch returns the sweep settings used when a request leaves them out.
func DefaultSearch() Search {
	return Search{
		XMinM:         0.1,
		XMaxM:         5.0,
		Samples:       50,
		Tolerance:     1e-8,
		MaxIterations: 50,
		Damping:       1.0,
		Divisions:     100,
		Workers:       1,
		MaxRetries:    Retries(DefaultMaxRetries),
	}
}

const DefaultMaxRetries = 3

// Retries returns a MaxRetries value.
func Retries(n int) *int { return &n }

// WithDefaults fills zero solver settings from DefaultSearch. The extent range
// is left alone so that a missing range still fails validation.
func (s Search) WithDefaults() Search {
	return s.FillFrom(DefaultSearch())
}

// FillFrom copies every unset solver setting from d. Zero numbers and a nil
// MaxRetries count as unset; the extent range is never copied.
func (s Search) FillFrom(d Search) Search {
	if s.StepM == 0 && s.Samples == 0 {
		s.Samples = d.Samples
	}
	if s.Tolerance == 0 {
		s.Tolerance = d.Tolerance
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.Damping == 0 {
		s.Damping = d.Damping
	}
	if s.Divisions == 0 {
		s.Divisions = d.Divisions
	}
	if s.Workers == 0 {
		s.Workers = d.Workers
	}
	if s.MaxRetries == nil {
		s.MaxRetries = d.MaxRetries
	}
	if s.Continuation == nil {
		s.Continuation = d.Continuation
	}
	return s
}

func (s Search) retries() int {
	if s.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *s.MaxRetries
}

func (s Search) continuation() bool {
	return s.Continuation == nil || *s.Continuation
}

// Extents returns the ascending sample positions of the sweep.
func (s Search) Extents() []float64 {
	span := s.XMaxM - s.XMinM
	if s.StepM > 0 {
		n := int(math.Floor(span/s.StepM+1e-9)) + 1
		xs := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			xs = append(xs, s.XMinM+float64(i)*s.StepM)
		}
		return xs
	}
	n := s.Samples
	xs := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = s.XMinM + span*float64(i)/float64(n-1)
	}
	xs[n-1] = s.XMaxM
	return xs
}

// Validate checks every invariant of the parameter set in one pass.
func (p Params) Validate() error {
	ve := &ValidationError{}

	t := p.Tunnel
	if !(t.HeightM > 0) || t.HeightM > 50 {
		ve.add("tunnel.height_m", "must be in (0, 50], got %g", t.HeightM)
	}
	if !(t.DepthM >= 0) || t.DepthM > 100 {
		ve.add("tunnel.depth_m", "must be in [0, 100], got %g", t.DepthM)
	}
	if !(t.SurchargeKPa >= 0) || t.SurchargeKPa > 5000 {
		ve.add("tunnel.surcharge_kpa", "must be in [0, 5000], got %g", t.SurchargeKPa)
	}

	g := p.Ground
	if !(g.GammaKNM3 > 0) || g.GammaKNM3 > 30 {
		ve.add("ground.gamma_kn_m3", "must be in (0, 30], got %g", g.GammaKNM3)
	}
	if !(g.CohesionKPa >= 0) || g.CohesionKPa > 1000 {
		ve.add("ground.cohesion_kpa", "must be in [0, 1000], got %g", g.CohesionKPa)
	}
	if !(g.PhiDeg >= 0) || g.PhiDeg >= 90 {
		ve.add("ground.phi_deg", "must be in [0, 90), got %g", g.PhiDeg)
	}
	if !(g.WaterKPa >= 0) || g.WaterKPa > 1000 {
		ve.add("ground.water_kpa", "must be in [0, 1000], got %g", g.WaterKPa)
	}
	if g.CohesionKPa == 0 && g.PhiDeg == 0 {
		ve.add("ground", "cohesion and friction angle cannot both be zero")
	}

	s := p.Search
	if !(s.XMinM > 0) || math.IsInf(s.XMinM, 0) {
		ve.add("search.x_min_m", "must be positive and finite, got %g", s.XMinM)
	}
	switch {
	case math.IsInf(s.XMaxM, 0):
		ve.add("search.x_max_m", "must be finite, got %g", s.XMaxM)
	case !(s.XMaxM > s.XMinM):
		ve.add("search.x_max_m", "must exceed x_min_m, got %g", s.XMaxM)
	}
	if math.IsInf(s.StepM, 0) {
		ve.add("search.step_m", "must be finite, got %g", s.StepM)
	}
	switch {
	case s.StepM < 0 || math.IsNaN(s.StepM):
		ve.add("search.step_m", "must not be negative, got %g", s.StepM)
	case s.StepM == 0 && (s.Samples < 2 || s.Samples > 10000):
		ve.add("search.samples", "must be in [2, 10000] when no step is given, got %d", s.Samples)
	case s.StepM > 0 && s.XMaxM > s.XMinM && (s.XMaxM-s.XMinM)/s.StepM > 10000:
		ve.add("search.step_m", "gives more than 10000 samples")
	}
	if !(s.Tolerance > 0) || s.Tolerance > 0.1 {
		ve.add("search.tolerance", "must be in (0, 0.1], got %g", s.Tolerance)
	}
	if s.MaxIterations < 1 || s.MaxIterations > 1000 {
		ve.add("search.max_iterations", "must be in [1, 1000], got %d", s.MaxIterations)
	}
	if !(s.Damping > 0) || s.Damping > 1 {
		ve.add("search.damping", "must be in (0, 1], got %g", s.Damping)
	}
	if n := s.retries(); n < 0 || n > 10 {
		ve.add("search.max_retries", "must be in [0, 10], got %d", n)
	}
	if s.Divisions < 10 || s.Divisions > 1000 || s.Divisions%2 != 0 {
		ve.add("search.divisions", "must be even and in [10, 1000], got %d", s.Divisions)
	}
	if s.Workers < 1 || s.Workers > 64 {
		ve.add("search.workers", "must be in [1, 64], got %d", s.Workers)
	}

	if !(p.AppliedPressureKPa >= 0) {
		ve.add("applied_pressure_kpa", "must not be negative, got %g", p.AppliedPressureKPa)
	}
	return ve.orNil()
}

// Preset is a named typical soil.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Ground      Ground `json:"ground"`
}

// Presets returns the built-in soil parameter sets.
func Presets() []Preset {
	return []Preset{
		{Name: "dense_sand", Description: "Dense sand", Ground: Ground{GammaKNM3: 20, CohesionKPa: 0, PhiDeg: 35}},
		{Name: "loose_sand", Description: "Loose sand", Ground: Ground{GammaKNM3: 18, CohesionKPa: 0, PhiDeg: 30}},
		{Name: "stiff_clay", Description: "Stiff clay", Ground: Ground{GammaKNM3: 19, CohesionKPa: 50, PhiDeg: 0}},
		{Name: "soft_clay", Description: "Soft clay", Ground: Ground{GammaKNM3: 17, CohesionKPa: 25, PhiDeg: 0}},
		{Name: "sandy_gravel", Description: "Sandy gravel", Ground: Ground{GammaKNM3: 21, CohesionKPa: 0, PhiDeg: 40}},
		{Name: "silty_sand", Description: "Silty sand", Ground: Ground{GammaKNM3: 19, CohesionKPa: 10, PhiDeg: 28}},
	}
}

// PresetByName looks up a built-in soil.
func PresetByName(name string) (Preset, bool) {
	for _, p := range Presets() {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
