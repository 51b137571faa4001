// Package watch relays an in-flight exchange over a WebSocket, letting a
// client observe a stream it did not start (e.g. after a reload).
package watch

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mviana/docchat/backend/internal/service/exchange"
	"github.com/mviana/docchat/backend/pkg/utils"
)

// Handler upgrades watch requests and forwards exchange events.
type Handler struct {
	exchanges *exchange.Controller
	upgrader  websocket.Upgrader
}

// New creates the watch handler.
func New(exchanges *exchange.Controller) *Handler {
	return &Handler{
		exchanges: exchanges,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the watch endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations/{id}/watch", h.handleWatch)
}

func (h *Handler) handleWatch(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")

	events, cancel, ok := h.exchanges.Subscribe(conversationID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "no exchange in flight")
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[watch] upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("[watch] write failed: %v", err)
				return
			}
		}
	}
}
