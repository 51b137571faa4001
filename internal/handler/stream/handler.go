// Package stream serves in-flight exchanges over Server-Sent Events.
package stream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mviana/docchat/backend/internal/service/exchange"
	"github.com/mviana/docchat/backend/pkg/utils"
)

// Handler bridges the exchange controller to SSE clients.
type Handler struct {
	exchanges *exchange.Controller
}

// New creates a new stream handler.
func New(exchanges *exchange.Controller) *Handler {
	return &Handler{exchanges: exchanges}
}

// HandleStreamRequest starts one exchange and relays its events until it
// resolves. Validation failures return an error before any SSE bytes go
// out, so the caller can still answer with a JSON status. A client that
// disconnects mid-stream does not stop the exchange; it resolves and
// commits in the background.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, conversationID, message string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	events, err := h.exchanges.Send(ctx, conversationID, message)
	if err != nil {
		return err
	}

	utils.SetupSSEHeaders(w)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, open := <-events:
			if !open {
				return nil
			}
			utils.SendSSEChunk(w, flusher, ev)
		}
	}
}
