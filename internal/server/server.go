// Package server exposes the orchestration engine and the data layer over
// HTTP: quick-reply and multi-advisor chat generation, relationship
// management, conversation history, feedback, and screenshot analysis.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/replycoach/service/internal/config"
	"github.com/replycoach/service/internal/database"
	"github.com/replycoach/service/internal/engine"
	"github.com/replycoach/service/internal/logger"
)

// Server wraps the HTTP listener and its routes.
type Server struct {
	httpServer      *http.Server
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// NewRouter builds the gin engine with all middleware and routes wired.
// Separate from New so handler tests can drive it through httptest.
func NewRouter(allowedOrigins []string, eng *engine.Engine, store database.Store, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(log))

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsCfg.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsCfg))

	h := &handlers{
		engine: eng,
		store:  store,
		log:    log.With("component", "http"),
	}
	h.register(router)
	return router
}

// New builds the router and the underlying http.Server. Nothing listens
// until Start is called.
func New(cfg config.ServerConfig, eng *engine.Engine, store database.Store, log *slog.Logger) *Server {
	router := NewRouter(cfg.AllowedOrigins, eng, store, log)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log:             log.With("component", "server"),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Start runs the listener until ctx is cancelled, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
