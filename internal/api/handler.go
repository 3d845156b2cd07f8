// Package api provides HTTP handlers for the attent server's status surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/attent-app/attent/internal/store"
	"github.com/go-chi/chi/v5"
)

// Version is the server build version, settable at link time.
var Version = "dev"

// StatusHandler serves server and database health.
type StatusHandler struct {
	repo store.Repository
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(repo store.Repository) *StatusHandler {
	return &StatusHandler{repo: repo}
}

// RegisterRoutes registers status routes on the router.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/status", h.Status)
}

// Status reports version and database connectivity.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := h.repo.Ping(ctx) == nil
	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, map[string]any{
		"version":  Version,
		"database": dbOK,
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
