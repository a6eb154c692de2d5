// Package httpapi exposes the HTTP surface of brainbot: the liveness probe,
// the generic message endpoint, the Telegram webhook, the admin training
// endpoints, and the brain dump.
package httpapi

import (
	"context"
	"embed"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/edgard/brainbot/internal/database"
	"github.com/edgard/brainbot/internal/resolver"
)

//go:embed static
var staticFS embed.FS

// UpdateHandler processes a parsed Telegram webhook update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *models.Update) error
}

// Replier resolves a prompt into reply text.
type Replier interface {
	Resolve(ctx context.Context, prompt string) resolver.Resolution
}

// Server wraps the echo instance and its dependencies.
type Server struct {
	echo    *echo.Echo
	log     *slog.Logger
	addr    string
	store   database.Store
	replier Replier
	updates UpdateHandler
}

// NewServer creates the HTTP server and registers all routes. updates may
// be nil when the Telegram webhook surface is not wanted (polling mode);
// the route then acknowledges and discards.
func NewServer(addr string, store database.Store, replier Replier, updates UpdateHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "httpapi")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.InfoContext(c.Request().Context(), "Handled request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency)
			return nil
		},
	}))

	s := &Server{
		echo:    e,
		log:     log,
		addr:    addr,
		store:   store,
		replier: replier,
		updates: updates,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleLiveness)
	s.echo.POST("/message", s.handleMessage)
	s.echo.POST("/webhook", s.handleWebhook)
	s.echo.POST("/teach", s.handleTeach)
	s.echo.POST("/admin/train", s.handleAdminTrain)
	s.echo.POST("/admin/chat", s.handleAdminChat)
	s.echo.GET("/brain", s.handleBrain)
	s.echo.GET("/admin", s.handleAdminPage)
}

// Echo exposes the underlying echo instance, used by handler tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs the HTTP listener and blocks until the server is shut down.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
