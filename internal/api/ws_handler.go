package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/grantpilot/api/internal/agent"
	"github.com/grantpilot/api/internal/platform/logger"
	"github.com/grantpilot/api/internal/ws"
)

// WSHandler upgrades HTTP requests to websocket sessions attached to the hub.
type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates the websocket upgrade handler.
func NewWSHandler(hub *ws.Hub, log *slog.Logger) (*WSHandler, error) {
	if hub == nil {
		return nil, ws.ErrNilHub
	}
	if log == nil {
		return nil, agent.ErrNilLogger
	}
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the app's own origin; the API
			// itself carries no session state worth forging.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}, nil
}

// Serve handles GET /ws. The connection is registered with the hub and
// served until either side closes it. A client_id query parameter lets a
// reconnecting observer reclaim its previous identity.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	observerID := r.URL.Query().Get("client_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client, err := ws.NewClient(h.hub, conn, observerID, h.logger)
	if err != nil {
		log.Error("websocket session setup failed", "error", err)
		_ = conn.Close()
		return
	}

	log.Debug("websocket connected", "remote_addr", r.RemoteAddr)
	client.Run()
}
