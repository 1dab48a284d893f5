package facestab

// Rating is the qualitative face-stability class of a governing pressure.
type Rating string

const (
	RatingUnknown       Rating = ""
	RatingStable        Rating = "stable"
	RatingMinorSupport  Rating = "minor_support_needed"
	RatingStrongSupport Rating = "strong_support_needed"
)

// Classification thresholds in kPa.
const (
	StableBelowKPa = 50.0
	MinorBelowKPa  = 100.0
)

// Classify maps a governing pressure onto a rating. A value on a threshold
// belongs to the higher-demand class.
func Classify(pressureKPa float64) Rating {
	switch {
	case pressureKPa < StableBelowKPa:
		return RatingStable
	case pressureKPa < MinorBelowKPa:
		return RatingMinorSupport
	default:
		return RatingStrongSupport
	}
}

// Describe is the report wording for a rating.
func (r Rating) Describe() string {
	switch r {
	case RatingStable:
		return "Face is stable; no or nominal support required."
	case RatingMinorSupport:
		return "Minor face support needed (e.g. shotcrete, face bolts)."
	case RatingStrongSupport:
		return "Strong face support needed; consider pressurised face or ground improvement."
	default:
		return "No rating: no extent converged."
	}
}

// SafetyFactor is applied/required; ok is false when there is nothing to divide.
func SafetyFactor(appliedKPa, requiredKPa float64) (float64, bool) {
	if appliedKPa <= 0 || requiredKPa <= 0 {
		return 0, false
	}
	return appliedKPa / requiredKPa, true
}

// Verdict grades a safety factor against the applied face pressure.
type Verdict string

const (
	VerdictSafe     Verdict = "safe"
	VerdictMarginal Verdict = "marginal"
	VerdictUnsafe   Verdict = "unsafe"
)

const (
	SafeFactor     = 1.5
	MarginalFactor = 1.2
)

func AssessFactor(sf float64) Verdict {
	switch {
	case sf >= SafeFactor:
		return VerdictSafe
	case sf >= MarginalFactor:
		return VerdictMarginal
	default:
		return VerdictUnsafe
	}
}
