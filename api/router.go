package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/api/handler"
	"github.com/use-agent/shelfscan/api/middleware"
	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/output"
)

// Deps are the long-lived collaborators of the HTTP API.
type Deps struct {
	Runner    handler.Runner
	Sessions  handler.SessionCounter
	Sink      output.Sink
	Target    output.Target
	Cache     *cache.Cache
	Store     *handler.JobStore
	Logger    *slog.Logger
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	if d.Store == nil {
		d.Store = handler.NewJobStore()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(d.Sessions, d.Store, d.StartTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/sites", handler.Sites())

	jobs := handler.JobDeps{
		Runner: d.Runner,
		Sink:   d.Sink,
		Target: d.Target,
		Cache:  d.Cache,
		Store:  d.Store,
		Logger: d.Logger,
	}
	protected.POST("/jobs", handler.PostJob(jobs))
	protected.GET("/jobs/:id", handler.GetJob(d.Store))

	return r
}
