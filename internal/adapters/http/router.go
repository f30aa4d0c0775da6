package http

import (
	"context"
	"path/filepath"

	"github.com/gibridargos/live-suhbat/internal/adapters/signal"
	"github.com/gibridargos/live-suhbat/internal/app"
	"github.com/gibridargos/live-suhbat/internal/app/orch"
	"github.com/gibridargos/live-suhbat/internal/auth"
	"github.com/gibridargos/live-suhbat/internal/config"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/gibridargos/live-suhbat/internal/upload"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionName    = "LiveSuhbatSessions"
	sessionUserKey = "user"
)

// HistoryStore reads persisted chat.
type HistoryStore interface {
	RecentMessages(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error)
}

type Deps struct {
	Orch       *orch.Orchestrator
	Auth       *auth.Service
	Uploads    *upload.Store
	History    HistoryStore
	LoginLimit *app.RateLimiter
}

type handlers struct {
	cfg  *config.Config
	deps Deps
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))

	h := &handlers{cfg: cfg, deps: deps}

	r.Static("/static", cfg.StaticPath)
	r.Static("/uploads", cfg.UploadDir)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})
	r.POST("/login", h.login)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Str("uploads", cfg.UploadDir).Msg("router setup")

	api := r.Group("/api")
	api.POST("/upload", h.upload)
	api.GET("/rooms", h.rooms)
	api.GET("/rooms/:room/messages", h.messages)
	api.GET("/ice", h.ice)
	api.GET("/metrics", h.metrics)

	ctrl := signal.NewSignalWSController(deps.Orch, signal.SettingsFrom(cfg))
	api.GET("/ws/signal", func(c *gin.Context) {
		name, _ := sessions.Default(c).Get(sessionUserKey).(string)
		log.Info().Str("module", "adapters.http").Str("user", name).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, name)
	})

	return r
}
