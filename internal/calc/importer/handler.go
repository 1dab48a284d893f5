package importer

import (
	"errors"
	"net/http"

	"Facestab/internal/calc/batch"
	"Facestab/internal/calc/facestab"
)

type Handler struct {
	Runner facestab.Runner
}

type ImportResult struct {
	Count   int          `json:"count"`
	Skipped []Row        `json:"skipped,omitempty"`
	Batch   batch.Result `json:"batch"`
}

// Import solves every parameter row of an uploaded workbook.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := ReadRequests(file)
	if err != nil {
		http.Error(w, "Invalid file: "+err.Error(), http.StatusBadRequest)
		return
	}
	var in batch.Input
	var skipped []Row
	for _, row := range rows {
		if row.Err != "" {
			skipped = append(skipped, row)
			continue
		}
		in.Items = append(in.Items, row.Request)
	}
	out := ImportResult{Skipped: skipped}
	if len(in.Items) > 0 {
		if out.Batch, err = batch.Run(r.Context(), h.Runner, in); err != nil {
			facestab.WriteError(w, facestab.StatusOf(err), err)
			return
		}
	}
	out.Count = len(in.Items)
	facestab.WriteJSON(w, http.StatusOK, out)
}

// Export runs one request and returns the curve workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	req, err := facestab.DecodeRequest(w, r)
	if err != nil {
		facestab.WriteError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.Runner.Run(r.Context(), req)
	if err != nil && !errors.Is(err, facestab.ErrNonConvergent) {
		facestab.WriteError(w, facestab.StatusOf(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\"facestab-curve.xlsx\"")
	if err := WriteCurve(w, req.Title, res); err != nil {
		http.Error(w, "Export error", http.StatusInternalServerError)
	}
}

func (h *Handler) Template(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\"facestab-import.xlsx\"")
	if err := WriteTemplate(w); err != nil {
		http.Error(w, "Export error", http.StatusInternalServerError)
	}
}
