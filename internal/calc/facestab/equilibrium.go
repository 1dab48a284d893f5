package facestab

import (
	"math"

	"gonum.org/v1/gonum/integrate"
)

// Loads are the ground actions for one extent, surcharge already resolved.
type Loads struct {
	Gamma     float64
	Cohesion  float64
	PhiRad    float64
	Water     float64
	Surcharge float64
}

// Moments about the spiral pole, clockwise (towards the tunnel) positive for
// driving terms. Cohesion is stored as a positive resisting magnitude.
type Moments struct {
	Weight      float64 `json:"weight_knm"`
	Surcharge   float64 `json:"surcharge_knm"`
	Water       float64 `json:"water_knm"`
	Friction    float64 `json:"friction_knm"`
	Cohesion    float64 `json:"cohesion_knm"`
	PressureArm float64 `json:"pressure_arm_m2"`
	Wedge       Wedge   `json:"wedge"`
}

// Driving is the net moment the face support has to balance.
func (m Moments) Driving() float64 {
	return m.Weight + m.Surcharge + m.Water + m.Friction - m.Cohesion
}

// MomentsOf evaluates every term of the balance for a geometry.
func MomentsOf(g Geometry, l Loads, divisions int) Moments {
	h, b := g.HeightM, g.ExtentM
	w := g.Wedge(divisions)
	arm := g.PoleY - h/2

	m := Moments{
		Weight:      l.Gamma * w.AreaM2 * (w.CentroidX - g.PoleX),
		Surcharge:   l.Surcharge * b * (b/2 - g.PoleX),
		Water:       l.Water * h * arm,
		PressureArm: h * arm,
		Wedge:       w,
	}
	m.Cohesion = cohesionMoment(g, l.Cohesion)
	// Uniform normal stress equal to the load at mid-face; any stress
	// distribution gives the same zero because the lever arm vanishes pointwise.
	sigmaN := l.Surcharge + l.Gamma*h/2
	m.Friction = sigmaN * math.Tan(l.PhiRad) * frictionLever(g, divisions)
	return m
}

// cohesionMoment integrates c·r·cosφ·ds = c·r²·dψ along the arc.
func cohesionMoment(g Geometry, c float64) float64 {
	if c == 0 {
		return 0
	}
	if g.PhiRad == 0 {
		return c * g.CrestRadius * g.CrestRadius * g.Sweep
	}
	return c * (g.ToeRadius*g.ToeRadius - g.CrestRadius*g.CrestRadius) / (2 * math.Tan(g.PhiRad))
}

// frictionLever integrates the friction lever arm along the arc.
func frictionLever(g Geometry, divisions int) float64 {
	psi := g.nodes(divisions)
	f := make([]float64, len(psi))
	for i, a := range psi {
		d := g.derivative(a)
		f[i] = g.frictionArm(a) * math.Hypot(d.X, d.Y)
	}
	return integrate.Simpsons(psi, f)
}

// SupportPressure isolates P from the moment balance.
func SupportPressure(m Moments) float64 {
	if m.PressureArm == 0 {
		return math.NaN()
	}
	return m.Driving() / m.PressureArm
}

// problem binds everything the residual needs for one extent.
type problem struct {
	height    float64
	extent    float64
	loads     Loads
	divisions int
	momentRef float64
}

func newProblem(p Params, ob Overburden, extent float64) problem {
	phi := p.Ground.phiRad()
	l := Loads{
		Gamma:    p.Ground.GammaKNM3,
		Cohesion: p.Ground.CohesionKPa,
		PhiRad:   phi,
		Water:    p.Ground.WaterKPa,
		Surcharge: ob.Surcharge(p.Tunnel.DepthM, p.Ground.GammaKNM3, phi,
			extent, p.Tunnel.SurchargeKPa),
	}
	h := p.Tunnel.HeightM
	scale := math.Max(l.Gamma*h+l.Surcharge+l.Cohesion+l.Water, 1)
	return problem{
		height:    h,
		extent:    extent,
		loads:     l,
		divisions: p.Search.Divisions,
		momentRef: h * h * scale,
	}
}

func (pr problem) geometry(u [3]float64) (Geometry, error) {
	return NewGeometry(pr.height, pr.extent, pr.loads.PhiRad, u[0], u[1])
}

// Residual returns the toe closure (scaled by H) and the moment imbalance
// (scaled by H²·load) for unknowns (sweep, crest radius, pressure).
func (pr problem) Residual(u [3]float64) ([3]float64, error) {
	g, err := pr.geometry(u)
	if err != nil {
		return [3]float64{}, err
	}
	toe := g.Toe()
	m := MomentsOf(g, pr.loads, pr.divisions)
	return [3]float64{
		toe.X / pr.height,
		toe.Y / pr.height,
		(m.Driving() - u[2]*m.PressureArm) / pr.momentRef,
	}, nil
}
