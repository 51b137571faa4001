package conversation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/mviana/docchat/backend/internal/service/chat"
	"github.com/mviana/docchat/backend/internal/service/exchange"
	"github.com/mviana/docchat/backend/pkg/utils"
)

// Handler exposes the conversation store over HTTP.
type Handler struct {
	chatSvc   *chatservice.Service
	exchanges *exchange.Controller
}

// New creates the conversation handler. exchanges may be nil when the
// completion service is not configured.
func New(chatSvc *chatservice.Service, exchanges *exchange.Controller) *Handler {
	return &Handler{chatSvc: chatSvc, exchanges: exchanges}
}

// RegisterRoutes mounts the conversation endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations", h.handleList)
	r.Post("/conversations", h.handleCreate)
	r.Get("/conversations/{id}", h.handleGet)
	r.Post("/conversations/{id}/select", h.handleSelect)
	r.Delete("/conversations/{id}", h.handleDelete)
}

// streamState is the transient, render-visible part of one conversation.
type streamState struct {
	Loading bool   `json:"loading"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"conversations": h.chatSvc.List(),
		"activeId":      h.chatSvc.ActiveID(),
		"degraded":      h.chatSvc.Degraded(),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	conv := h.chatSvc.Create()
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conv, ok := h.chatSvc.Get(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	state := streamState{}
	if h.exchanges != nil {
		status := h.exchanges.Status(id)
		state = streamState{
			Loading: status.Loading,
			Text:    status.StreamedText,
			Error:   status.LastError,
		}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"stream":       state,
	})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.chatSvc.Select(id) {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
