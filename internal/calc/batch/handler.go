package batch

import (
	"encoding/json"
	"net/http"

	"Facestab/internal/calc/facestab"
)

type Handler struct {
	Runner facestab.Runner
}

func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&input); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	res, err := Run(r.Context(), h.Runner, input)
	if err != nil {
		facestab.WriteError(w, facestab.StatusOf(err), err)
		return
	}
	facestab.WriteJSON(w, http.StatusOK, res)
}
