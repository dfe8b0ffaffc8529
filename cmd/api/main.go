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
	"github.com/zhouzirui/chaptered-writer/backend/internal/config"
	"github.com/zhouzirui/chaptered-writer/backend/internal/handler"
	"github.com/zhouzirui/chaptered-writer/backend/internal/service/ai"
	"github.com/zhouzirui/chaptered-writer/backend/internal/service/progress"
	"github.com/zhouzirui/chaptered-writer/backend/internal/service/writer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// API Key 由每个会话提供，这里只确定后端实现
	generator, err := ai.New(cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize generator: %v", err)
	}
	log.Printf("generator initialized provider=%s default_model=%s", cfg.AI.Provider, cfg.AI.DefaultModel)

	broker := progress.NewBroker(progress.DefaultBufferSize)
	writerService := writer.NewService(generator, cfg.AI.Catalog(), broker)

	router := handler.NewRouter(writerService, broker)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Chaptered writer backend listening on %s", addr)
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
