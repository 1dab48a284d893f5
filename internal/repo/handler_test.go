package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerGetAndList(t *testing.T) {
	r := newSQLite(t)
	req, res := sampleResult()
	id, err := Recorder{Repo: r}.Record(context.Background(), req, res)
	require.NoError(t, err)

	router := mux.NewRouter()
	h := &Handler{Repo: r}
	router.HandleFunc("/api/analyses", h.List).Methods("GET")
	router.HandleFunc("/api/analyses/{id}", h.Get).Methods("GET")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []Analysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}
