package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	conversationHandler "github.com/mviana/docchat/backend/internal/handler/conversation"
	documentHandler "github.com/mviana/docchat/backend/internal/handler/document"
	"github.com/mviana/docchat/backend/internal/handler/stream"
	"github.com/mviana/docchat/backend/internal/handler/watch"
	middlewarePkg "github.com/mviana/docchat/backend/internal/middleware"
	docmodel "github.com/mviana/docchat/backend/internal/model/document"
	chatService "github.com/mviana/docchat/backend/internal/service/chat"
	"github.com/mviana/docchat/backend/internal/service/exchange"
	"github.com/mviana/docchat/backend/internal/service/ingest"
	"github.com/mviana/docchat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. exchanges is nil when
// the completion service is not configured; the send endpoint then
// answers 503 while the rest of the API keeps working.
func NewRouter(chatSvc *chatService.Service, docStore *docmodel.Store, ingestSvc *ingest.Service, exchanges *exchange.Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	convHandler := conversationHandler.New(chatSvc, exchanges)
	docHandler := documentHandler.New(docStore, ingestSvc)

	var streamHandler *stream.Handler
	var watchHandler *watch.Handler
	if exchanges != nil {
		streamHandler = stream.New(exchanges)
		watchHandler = watch.New(exchanges)
	}

	r.Route("/api", func(api chi.Router) {
		convHandler.RegisterRoutes(api)
		docHandler.RegisterRoutes(api)

		// Send intent: runs one streamed exchange against the
		// conversation and relays it as SSE. Query parameter because
		// EventSource clients cannot POST.
		api.Get("/conversations/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
			conversationID := chi.URLParam(r, "id")
			message := r.URL.Query().Get("message")

			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
				return
			}
			if message == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, conversationID, message); err != nil {
				log.Printf("[stream] error handling request: %v", err)
				utils.RespondError(w, sendErrorStatus(err), err.Error())
			}
		})

		if watchHandler != nil {
			watchHandler.RegisterRoutes(api)
		}
	})

	return r
}

// sendErrorStatus maps send-intent rejections onto HTTP statuses.
func sendErrorStatus(err error) int {
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, exchange.ErrExchangeInFlight):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
