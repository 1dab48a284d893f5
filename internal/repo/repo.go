package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Facestab/internal/calc/facestab"
)

var ErrNotFound = errors.New("repo: analysis not found")

// Analysis is one stored face-stability run. Request and Result hold the
// JSON documents; the scalar columns are copied out for listing.
type Analysis struct {
	ID                string          `json:"id"`
	Title             string          `json:"title,omitempty"`
	Method            string          `json:"method"`
	Status            string          `json:"status"`
	Rating            string          `json:"rating,omitempty"`
	GoverningX        *float64        `json:"governing_x_m,omitempty"`
	GoverningPressure *float64        `json:"governing_pressure_kpa,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	Request           json.RawMessage `json:"request,omitempty"`
	Result            json.RawMessage `json:"result,omitempty"`
}

type Repository interface {
	SaveAnalysis(ctx context.Context, a Analysis) (string, error)
	GetAnalysis(ctx context.Context, id string) (Analysis, error)
	// ListAnalyses returns the newest analyses first, without the JSON documents.
	ListAnalyses(ctx context.Context, limit int) ([]Analysis, error)
	Close() error
}

func NewAnalysis(req facestab.Request, res facestab.Result) (Analysis, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("marshal request: %w", err)
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return Analysis{}, fmt.Errorf("marshal result: %w", err)
	}
	a := Analysis{
		Title:     req.Title,
		Method:    res.Overburden,
		Status:    string(res.Status),
		Rating:    string(res.Rating),
		CreatedAt: time.Now().UTC(),
		Request:   reqJSON,
		Result:    resJSON,
	}
	if g := res.Governing; g != nil {
		x, p := g.X, g.Pressure
		a.GoverningX, a.GoverningPressure = &x, &p
	}
	return a, nil
}

// Recorder stores engine results through a Repository.
type Recorder struct {
	Repo Repository
}

func (r Recorder) Record(ctx context.Context, req facestab.Request, res facestab.Result) (string, error) {
	a, err := NewAnalysis(req, res)
	if err != nil {
		return "", err
	}
	return r.Repo.SaveAnalysis(ctx, a)
}
