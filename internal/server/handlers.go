package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/hypersearch/internal/optimization/search"
	"github.com/copyleftdev/hypersearch/internal/study"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a server error to an HTTP status.
func statusFor(err error) int {
	var invalid *invalidParamsError
	var conflict *conflictError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBusy):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]interface{}{
		"error": err.Error(),
	})
}

// handleCreateSearch handles POST /api/v1/searches with a study definition body.
func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var def study.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, &invalidParamsError{fmt.Errorf("invalid request body: %w", err)})
		return
	}

	state, err := s.startSearch(&def)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/searches/"+state.ID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"search_id": state.ID,
		"status":    StatusPending,
	})
}

// handleListSearches handles GET /api/v1/searches.
func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"searches": s.listSearches(),
	})
}

// handleGetSearch handles GET /api/v1/searches/{id}.
func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	view, err := s.searchStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCancelSearch handles DELETE /api/v1/searches/{id}.
func (s *Server) handleCancelSearch(w http.ResponseWriter, r *http.Request) {
	if err := s.cancelSearch(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancellation requested",
	})
}

// handleListScorers handles GET /api/v1/scorers.
func (s *Server) handleListScorers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scorers":    s.registry.List(),
		"strategies": search.StrategyNames(),
	})
}
