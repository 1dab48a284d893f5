package facestab

import (
	"fmt"
	"math"
)

// Overburden turns the cover above the crown into a vertical pressure on the
// wedge top. width is the loaded width, i.e. the extent of the slip surface.
type Overburden interface {
	Name() string
	Surcharge(depthM, gamma, phiRad, widthM, surfaceKPa float64) float64
}

const (
	MethodSimple          = "simple"
	MethodTerzaghi        = "terzaghi"
	MethodTerzaghiRankine = "terzaghi_rankine"
)

// DefaultArchingK is Terzaghi's empirical lateral pressure ratio for a yielding trapdoor.
const DefaultArchingK = 1.0

// Simple carries the full weight of the cover.
type Simple struct{}

func (Simple) Name() string { return MethodSimple }

func (Simple) Surcharge(depthM, gamma, _, _, surfaceKPa float64) float64 {
	return gamma*depthM + surfaceKPa
}

// Terzaghi reduces the cover load by shear on the vertical sides of the
// loosened prism:
//
//	a = 2K tanφ D / B
//	q = γ D (1 - e^-a)/a + σv e^-a
//
// with wall friction equal to φ. As φ → 0 the result tends to Simple.
//
// K defaults to Terzaghi's trapdoor value 1.0. With Rankine set, K is the
// active earth pressure ratio tan²(45° - φ/2) instead, which gives a larger
// load than K = 1 for φ > 0. The cohesion reduction (Bγ - 2c) used in some
// arching formulations is not applied; cohesion acts on the slip surface only.
type Terzaghi struct {
	K       float64
	Rankine bool
}

func (t Terzaghi) Name() string {
	if t.Rankine {
		return MethodTerzaghiRankine
	}
	return MethodTerzaghi
}

// RankineK is the active earth pressure ratio for friction angle phiRad.
func RankineK(phiRad float64) float64 {
	k := math.Tan(math.Pi/4 - phiRad/2)
	return k * k
}

func (t Terzaghi) Surcharge(depthM, gamma, phiRad, widthM, surfaceKPa float64) float64 {
	k := t.K
	switch {
	case t.Rankine:
		k = RankineK(phiRad)
	case k <= 0:
		k = DefaultArchingK
	}
	if widthM <= 0 {
		return Simple{}.Surcharge(depthM, gamma, phiRad, widthM, surfaceKPa)
	}
	a := 2 * k * math.Tan(phiRad) * depthM / widthM
	if a < 1e-12 {
		return Simple{}.Surcharge(depthM, gamma, phiRad, widthM, surfaceKPa)
	}
	return gamma*depthM*(-math.Expm1(-a))/a + surfaceKPa*math.Exp(-a)
}

// OverburdenByName resolves a configured method name.
func OverburdenByName(name string, k float64) (Overburden, error) {
	switch name {
	case "", MethodSimple:
		return Simple{}, nil
	case MethodTerzaghi, "arching":
		return Terzaghi{K: k}, nil
	case MethodTerzaghiRankine:
		return Terzaghi{Rankine: true}, nil
	default:
		return nil, fmt.Errorf("%w: unknown overburden method %q", ErrValidation, name)
	}
}
