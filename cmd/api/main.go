package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mviana/docchat/backend/internal/config"
	"github.com/mviana/docchat/backend/internal/handler"
	"github.com/mviana/docchat/backend/internal/model/document"
	"github.com/mviana/docchat/backend/internal/persist"
	"github.com/mviana/docchat/backend/internal/service/ai"
	chatservice "github.com/mviana/docchat/backend/internal/service/chat"
	"github.com/mviana/docchat/backend/internal/service/exchange"
	"github.com/mviana/docchat/backend/internal/service/ingest"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	mirror := persist.NewBoltMirror(cfg.Storage.Path)
	chatSvc := chatservice.NewService(mirror)
	docStore := document.NewStore()
	ingestSvc := ingest.NewService(docStore)

	var exchanges *exchange.Controller
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - check the ARK_* environment variables")
		} else {
			exchanges = exchange.NewController(aiSvc, chatSvc, docStore, cfg.Stream.IdleTimeout)
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("model credentials not configured, send intents will be rejected")
	}

	router := handler.NewRouter(chatSvc, docStore, ingestSvc, exchanges)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("docchat backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
