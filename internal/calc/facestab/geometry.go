package facestab

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
)

// minSweep is the smallest toe-to-crest angle accepted as a real spiral.
const minSweep = 1e-9

// Geometry is the log-spiral slip surface for one extent. Angles are ray
// directions from the pole measured counterclockwise from the downward
// vertical; the origin is the face toe with y pointing up.
type Geometry struct {
	HeightM     float64 `json:"height_m"`
	ExtentM     float64 `json:"extent_m"`
	PhiRad      float64 `json:"phi_rad"`
	Sweep       float64 `json:"sweep_rad"`
	ToeAngle    float64 `json:"toe_angle_rad"`
	CrestAngle  float64 `json:"crest_angle_rad"`
	CrestRadius float64 `json:"crest_radius_m"`
	ToeRadius   float64 `json:"toe_radius_m"`
	PoleX       float64 `json:"pole_x_m"`
	PoleY       float64 `json:"pole_y_m"`
}

// Point2 is a position in the section plane.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewGeometry builds the spiral from its two unknowns. The crest sits at
// (extent, height) with a vertical tangent, which fixes the pole on the line
// through the crest inclined at 180°-φ.
func NewGeometry(height, extent, phiRad, sweep, crestRadius float64) (Geometry, error) {
	if math.IsNaN(sweep) || sweep <= minSweep {
		return Geometry{}, ErrDegenerateSpiral
	}
	if math.IsNaN(crestRadius) || crestRadius <= 0 || math.IsInf(crestRadius, 0) {
		return Geometry{}, fmt.Errorf("%w: crest radius %g", ErrInvalidGeometry, crestRadius)
	}
	tanPhi := math.Tan(phiRad)
	crestAngle := math.Pi/2 - phiRad
	return Geometry{
		HeightM:     height,
		ExtentM:     extent,
		PhiRad:      phiRad,
		Sweep:       sweep,
		ToeAngle:    crestAngle - sweep,
		CrestAngle:  crestAngle,
		CrestRadius: crestRadius,
		ToeRadius:   crestRadius * math.Exp(sweep*tanPhi),
		PoleX:       extent - crestRadius*math.Cos(phiRad),
		PoleY:       height + crestRadius*math.Sin(phiRad),
	}, nil
}

// RadiusAt returns the spiral radius on the ray at angle psi.
func (g Geometry) RadiusAt(psi float64) float64 {
	return g.CrestRadius * math.Exp((g.CrestAngle-psi)*math.Tan(g.PhiRad))
}

// PointAt returns the spiral point on the ray at angle psi.
func (g Geometry) PointAt(psi float64) Point2 {
	r := g.RadiusAt(psi)
	return Point2{X: g.PoleX + r*math.Sin(psi), Y: g.PoleY - r*math.Cos(psi)}
}

// derivative returns dp/dpsi.
func (g Geometry) derivative(psi float64) Point2 {
	r := g.RadiusAt(psi)
	dr := -math.Tan(g.PhiRad) * r
	s, c := math.Sincos(psi)
	return Point2{X: dr*s + r*c, Y: -dr*c + r*s}
}

// Tangent returns the unit tangent in the direction of increasing psi.
func (g Geometry) Tangent(psi float64) Point2 {
	d := g.derivative(psi)
	n := math.Hypot(d.X, d.Y)
	return Point2{X: d.X / n, Y: d.Y / n}
}

// Toe is where the spiral ends at the toe angle; it coincides with the face
// toe (0, 0) once the geometry is solved.
func (g Geometry) Toe() Point2 { return g.PointAt(g.ToeAngle) }

// Crest is the upper end of the spiral at crown level.
func (g Geometry) Crest() Point2 { return g.PointAt(g.CrestAngle) }

// Pole returns the spiral centre.
func (g Geometry) Pole() Point2 { return Point2{X: g.PoleX, Y: g.PoleY} }

// Wedge describes the sliding mass bounded by the spiral, the crown level and the face.
type Wedge struct {
	AreaM2    float64 `json:"area_m2"`
	CentroidX float64 `json:"centroid_x_m"`
	CentroidY float64 `json:"centroid_y_m"`
	ArcLength float64 `json:"arc_length_m"`
}

func (g Geometry) nodes(divisions int) []float64 {
	psi := make([]float64, divisions+1)
	for i := range psi {
		psi[i] = g.ToeAngle + g.Sweep*float64(i)/float64(divisions)
	}
	return psi
}

// Wedge integrates area and centroid by Green's theorem around
// toe -> spiral -> crest -> crown above the face -> toe.
func (g Geometry) Wedge(divisions int) Wedge {
	psi := g.nodes(divisions)
	area := make([]float64, len(psi))
	mx := make([]float64, len(psi))
	my := make([]float64, len(psi))
	ds := make([]float64, len(psi))
	for i, a := range psi {
		p := g.PointAt(a)
		d := g.derivative(a)
		area[i] = p.X*d.Y - p.Y*d.X
		mx[i] = p.X * p.X * d.Y
		my[i] = p.Y * p.Y * d.X
		ds[i] = math.Hypot(d.X, d.Y)
	}
	h, b := g.HeightM, g.ExtentM
	// The crown segment runs from (b, h) back to (0, h); the face segment adds nothing.
	a := 0.5 * (integrate.Simpsons(psi, area) + h*b)
	w := Wedge{AreaM2: a, ArcLength: integrate.Simpsons(psi, ds)}
	if a > 0 {
		w.CentroidX = integrate.Simpsons(psi, mx) / (2 * a)
		w.CentroidY = -(integrate.Simpsons(psi, my) - h*h*b) / (2 * a)
	}
	return w
}

// frictionArm is the lever arm about the pole of a unit friction resultant
// acting on the wedge at angle psi. The resultant leans φ off the inward
// normal, which on a log spiral is the radial direction.
func (g Geometry) frictionArm(psi float64) float64 {
	t := g.Tangent(psi)
	nIn := Point2{X: -t.Y, Y: t.X}
	s, c := math.Sincos(g.PhiRad)
	d := Point2{X: c*nIn.X + s*t.X, Y: c*nIn.Y + s*t.Y}
	p := g.PointAt(psi)
	rx, ry := p.X-g.PoleX, p.Y-g.PoleY
	return rx*d.Y - ry*d.X
}

// MaxExtent is the largest extent whose spiral stays above the invert
// (sweep of 90°).
func MaxExtent(height, phiRad float64) float64 {
	if phiRad == 0 {
		return height
	}
	rho := math.Exp(math.Pi / 2 * math.Tan(phiRad))
	s, c := math.Sincos(phiRad)
	den := rho*c - s
	if den <= 0 {
		return math.Inf(1)
	}
	return height * (c + rho*s) / den
}

// AnalyticGuess seeds the solver with the circle through toe and crest that
// has a vertical tangent at the crest, then sizes the crest radius so the
// vertical closure holds exactly. For φ = 0 it is the exact solution.
func AnalyticGuess(height, extent, phiRad float64) (sweep, crestRadius float64) {
	sweep = math.Min(2*math.Atan(extent/height), math.Pi/2)
	rho := math.Exp(sweep * math.Tan(phiRad))
	den := rho*math.Sin(phiRad+sweep) - math.Sin(phiRad)
	if den > 1e-12 {
		return sweep, height / den
	}
	return sweep, (extent*extent + height*height) / (2 * extent)
}
