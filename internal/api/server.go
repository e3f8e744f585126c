// Package api exposes the pipeline over HTTP: a secret-guarded scheduled
// trigger, an operator trigger, and read-only views.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"LearningCurator/internal/config"
	"LearningCurator/internal/domain"
	"LearningCurator/internal/statusdoc"
	"LearningCurator/internal/usecase"
)

const (
	readTimeout  = 10 * time.Second
	idleTimeout  = 120 * time.Second
	writeMargin  = 30 * time.Second
	triggerRoute = "/api/cron/learning"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, opts usecase.RunOptions) (domain.RunSummary, error)
}

// DocumentReader loads the current status document.
type DocumentReader interface {
	Load(ctx context.Context) (*statusdoc.Document, error)
}

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Runner    Runner
	Documents DocumentReader
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
	// RunTimeout bounds a triggered run; the write timeout follows it.
	// Zero leaves the run to the pipeline's own deadline and disables the
	// write timeout.
	RunTimeout time.Duration
}

// Server represents the trigger HTTP server.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// NewServer builds the router. The scheduled trigger refuses every request
// when cfg.CronSecret is empty.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))

	h := &handlers{
		runner:     deps.Runner,
		documents:  deps.Documents,
		secret:     cfg.CronSecret,
		runTimeout: deps.RunTimeout,
		logger:     deps.Logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	router.GET(triggerRoute, h.requireBearer, h.trigger)
	router.POST(triggerRoute, h.trigger)
	router.GET("/api/learning", h.currentLearning)

	return &Server{
		router: router,
		logger: deps.Logger,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeoutFor(deps.RunTimeout),
			IdleTimeout:  idleTimeout,
		},
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("http server listening", "addr", s.server.Addr)
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// writeTimeoutFor keeps the response deadline past the run deadline so a
// finished run always gets its JSON body out. An unbounded run means no
// write timeout.
func writeTimeoutFor(run time.Duration) time.Duration {
	if run <= 0 {
		return 0
	}
	return run + writeMargin
}

func loggingMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
