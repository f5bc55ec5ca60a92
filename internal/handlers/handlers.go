package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"printbroker/internal/apperr"
	"printbroker/internal/files"
)

// Handler wraps storage and the file store for all HTTP endpoints.
type Handler struct {
	Store StorageInterface
	Files files.FileStore
}

func NewHandler(store StorageInterface, fileStore files.FileStore) *Handler {
	return &Handler{Store: store, Files: fileStore}
}

// PingHandler answers "ok" for liveness checks.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders domain errors as {error: message} with their mapped
// status. Anything outside the taxonomy is logged and surfaced as a
// generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	if status, ok := apperr.StatusCode(err); ok {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	log.Printf("internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams reads limit and offset from query with defaults and
// caps.
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 20, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}
