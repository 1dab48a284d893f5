package report

import (
	"errors"
	"net/http"
	"time"

	"Facestab/internal/calc/facestab"
)

type Handler struct {
	Runner facestab.Runner
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) (Record, bool) {
	req, err := facestab.DecodeRequest(w, r)
	if err != nil {
		facestab.WriteError(w, http.StatusBadRequest, err)
		return Record{}, false
	}
	res, err := h.Runner.Run(r.Context(), req)
	if err != nil && !errors.Is(err, facestab.ErrNonConvergent) {
		facestab.WriteError(w, facestab.StatusOf(err), err)
		return Record{}, false
	}
	return NewRecord(req.Title, res, time.Now()), true
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.record(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\"facestab-report.pdf\"")
	if err := WritePDF(w, rec); err != nil {
		http.Error(w, "Report generation error", http.StatusInternalServerError)
		return
	}
}

func (h *Handler) Markdown(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.record(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(Markdown(rec)))
}
