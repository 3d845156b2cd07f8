package session

import (
	"log/slog"
	"net/http"

	"github.com/attent-app/attent/internal/llm"
	"github.com/attent-app/attent/internal/store"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// WebSocketHandler upgrades connections and runs one session engine per
// connection.
type WebSocketHandler struct {
	repo          store.Repository
	provider      llm.Provider
	budgeter      *llm.Budgeter
	opts          Options
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(repo store.Repository, provider llm.Provider, budgeter *llm.Budgeter, opts Options, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		repo:          repo,
		provider:      provider,
		budgeter:      budgeter,
		opts:          opts,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	connID := uuid.NewString()
	logger := slog.Default().With("conn_id", connID[:8])
	logger.Info("WebSocket connection accepted", "ip", r.RemoteAddr)

	engine := NewEngine(h.repo, h.provider, h.budgeter, NewWebSocketTransport(r.Context(), ws), h.opts, logger)
	if err := engine.Run(r.Context()); err != nil {
		logger.Error("Session ended with error", "error", err)
		return
	}
	logger.Info("Session ended")
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
