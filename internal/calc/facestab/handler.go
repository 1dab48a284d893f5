package facestab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

const maxRequestBytes = 1 << 20

// Request is the wire form of one analysis: the parameters plus the
// overburden method and an optional soil preset.
type Request struct {
	Params   `yaml:",inline"`
	Method   string  `json:"method,omitempty" yaml:"method,omitempty"`
	ArchingK float64 `json:"arching_k,omitempty" yaml:"arching_k,omitempty"`
	Preset   string  `json:"preset,omitempty" yaml:"preset,omitempty"`
	Title    string  `json:"title,omitempty" yaml:"title,omitempty"`
}

// Resolve applies the preset, fills the search window and every unset solver
// setting from defaults, and picks the overburden strategy.
func (req Request) Resolve(defaults Search) (Params, Overburden, error) {
	p := req.Params
	if req.Preset != "" {
		preset, ok := PresetByName(req.Preset)
		if !ok {
			ve := &ValidationError{}
			ve.add("preset", "unknown preset %q", req.Preset)
			return Params{}, nil, ve
		}
		water := p.Ground.WaterKPa
		p.Ground = preset.Ground
		p.Ground.WaterKPa = water
	}
	if p.Search.XMinM == 0 && p.Search.XMaxM == 0 {
		p.Search.XMinM, p.Search.XMaxM = defaults.XMinM, defaults.XMaxM
	}
	p.Search = p.Search.FillFrom(defaults)
	ob, err := OverburdenByName(req.Method, req.ArchingK)
	if err != nil {
		ve := &ValidationError{}
		ve.add("method", "%s", err.Error())
		return Params{}, nil, ve
	}
	return p, ob, nil
}

// Runner executes requests. Method and ArchingK apply when a request names none.
type Runner struct {
	Defaults Search
	Method   string
	ArchingK float64
	Logger   *slog.Logger
}

func (rn Runner) defaults() Search {
	d := DefaultSearch()
	s := rn.Defaults
	if s.XMinM == 0 && s.XMaxM == 0 {
		s.XMinM, s.XMaxM = d.XMinM, d.XMaxM
	}
	return s.FillFrom(d)
}

func (rn Runner) Run(ctx context.Context, req Request) (Result, error) {
	if req.Method == "" {
		req.Method = rn.Method
	}
	if req.ArchingK == 0 {
		req.ArchingK = rn.ArchingK
	}
	p, ob, err := req.Resolve(rn.defaults())
	if err != nil {
		return Result{}, err
	}
	return NewEngine(Config{Overburden: ob, Logger: rn.Logger}).BuildCurve(ctx, p)
}

// Recorder persists finished analyses and returns their id.
type Recorder interface {
	Record(ctx context.Context, req Request, res Result) (string, error)
}

type Handler struct {
	Runner   Runner
	Recorder Recorder
}

type CalcResponse struct {
	ID string `json:"id,omitempty"`
	Result
}

func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeRequest(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.Runner.Run(r.Context(), req)
	if err != nil && !errors.Is(err, ErrNonConvergent) {
		WriteError(w, StatusOf(err), err)
		return
	}
	out := CalcResponse{Result: res}
	if h.Recorder != nil {
		id, rerr := h.Recorder.Record(r.Context(), req, res)
		if rerr != nil {
			h.logger().Error("store analysis", "err", rerr)
		}
		out.ID = id
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	WriteJSON(w, status, out)
}

func (h *Handler) Presets(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, Presets())
}

func (h *Handler) logger() *slog.Logger {
	if h.Runner.Logger == nil {
		return slog.Default()
	}
	return h.Runner.Logger
}

// DecodeRequest reads a JSON request body of bounded size.
func DecodeRequest(w http.ResponseWriter, r *http.Request) (Request, error) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		return Request{}, fmt.Errorf("invalid request payload: %w", err)
	}
	return req, nil
}

// StatusOf maps engine errors onto HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNonConvergent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: err.Error()}
	var ve *ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	WriteJSON(w, status, body)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
