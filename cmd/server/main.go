package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/gibridargos/live-suhbat/internal/adapters/http"
	"github.com/gibridargos/live-suhbat/internal/app"
	"github.com/gibridargos/live-suhbat/internal/app/chatlog"
	"github.com/gibridargos/live-suhbat/internal/app/orch"
	"github.com/gibridargos/live-suhbat/internal/auth"
	"github.com/gibridargos/live-suhbat/internal/config"
	"github.com/gibridargos/live-suhbat/internal/storage"
	"github.com/gibridargos/live-suhbat/internal/upload"
)

// server holds everything main wires together.
type server struct {
	store    *storage.Store
	pipeline *chatlog.Pipeline
	orch     *orch.Orchestrator
	handler  *gin.Engine
}

func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	pipeline := chatlog.NewPipeline(store, cfg.ChatWorkers, cfg.ChatQueue)
	pipeline.Start(ctx)

	o := &orch.Orchestrator{
		Registry:  app.NewRegistry(),
		Rooms:     app.NewRoomManager(),
		Policy:    app.SimplePolicy{},
		ChatLog:   pipeline,
		ChatLimit: app.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow),
		Metrics:   app.NewMetrics(),
	}

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:       o,
		Auth:       auth.NewService(store),
		Uploads:    upload.NewStore(cfg.UploadDir, cfg.MaxUploadBytes, store),
		History:    store,
		LoginLimit: app.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
	})
	return &server{store: store, pipeline: pipeline, orch: o, handler: r}, nil
}

// close waits for the chat workers, then releases the store. ctx must be
// done before it is called.
func (s *server) close() {
	s.pipeline.Wait()
	if err := s.store.Close(); err != nil {
		log.Error().Err(err).Msg("store close")
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	s, err := newServer(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("live-suhbat server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	s.close()
	log.Info().Msg("Server exited gracefully")
}
