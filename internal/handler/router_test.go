package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	chatmodel "github.com/mviana/docchat/backend/internal/model/chat"
	docmodel "github.com/mviana/docchat/backend/internal/model/document"
	"github.com/mviana/docchat/backend/internal/persist"
	chatservice "github.com/mviana/docchat/backend/internal/service/chat"
	"github.com/mviana/docchat/backend/internal/service/exchange"
	"github.com/mviana/docchat/backend/internal/service/ingest"
)

type scriptedCompleter struct {
	fragments []string
}

func (s *scriptedCompleter) Stream(_ context.Context, _ []chatmodel.Message, _ string) (*schema.StreamReader[*schema.Message], error) {
	reader, writer := schema.Pipe[*schema.Message](8)
	go func() {
		defer writer.Close()
		for _, fragment := range s.fragments {
			writer.Send(&schema.Message{Role: schema.Assistant, Content: fragment}, nil)
		}
	}()
	return reader, nil
}

func setupRouter(completer exchange.Completer) (http.Handler, *chatservice.Service) {
	chatSvc := chatservice.NewService(persist.NewMemory(nil))
	docStore := docmodel.NewStore()
	ingestSvc := ingest.NewService(docStore)

	var exchanges *exchange.Controller
	if completer != nil {
		exchanges = exchange.NewController(completer, chatSvc, docStore, time.Second)
	}
	return NewRouter(chatSvc, docStore, ingestSvc, exchanges), chatSvc
}

func TestStreamEndpointDeliversEventsAndCommits(t *testing.T) {
	router, svc := setupRouter(&scriptedCompleter{fragments: []string{"Hi ", "there"}})
	id := svc.ActiveID()

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+id+"/stream?message=Hello", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", ct)
	}

	body := resp.Body.String()
	for _, want := range []string{`"event":"start"`, `"event":"delta"`, `"event":"done"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %s, got %s", want, body)
		}
	}

	conv, _ := svc.Get(id)
	if len(conv.Messages) != 2 {
		t.Fatalf("expected two messages after the exchange, got %d", len(conv.Messages))
	}
	if conv.Messages[1].Content != "Hi there" {
		t.Fatalf("unexpected assistant message %q", conv.Messages[1].Content)
	}
}

func TestStreamEndpointRequiresMessage(t *testing.T) {
	router, svc := setupRouter(&scriptedCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+svc.ActiveID()+"/stream", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamEndpointUnknownConversation(t *testing.T) {
	router, _ := setupRouter(&scriptedCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/missing/stream?message=Hello", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestStreamEndpointUnavailableWithoutCompleter(t *testing.T) {
	router, svc := setupRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+svc.ActiveID()+"/stream?message=Hello", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestWatchEndpointWithoutExchange(t *testing.T) {
	router, svc := setupRouter(&scriptedCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+svc.ActiveID()+"/watch", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
