package facestab

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned before any solving when the parameters break an invariant.
	ErrValidation = errors.New("facestab: invalid parameters")

	// ErrInvalidGeometry marks an extent the slip surface cannot physically reach.
	ErrInvalidGeometry = errors.New("facestab: infeasible slip-surface geometry")

	// ErrDegenerateSpiral is returned when toe and crest angles coincide.
	ErrDegenerateSpiral = fmt.Errorf("%w: degenerate spiral", ErrInvalidGeometry)

	// ErrNonConvergent is returned with a result whose sweep produced no converged point.
	ErrNonConvergent = errors.New("facestab: no extent converged")

	// ErrCancelled is returned with a partial result when the sweep was interrupted.
	ErrCancelled = errors.New("facestab: sweep cancelled")
)

// FieldError names one parameter that failed validation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError collects every field problem found in one pass.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
