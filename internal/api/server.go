package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/retronews/retronews/internal/config"
	"github.com/retronews/retronews/internal/logger"
)

// Server wraps the HTTP server with its lifecycle.
type Server struct {
	httpServer *http.Server
	log        logger.Interface
}

// NewServer creates the HTTP server around a configured handler.
func NewServer(cfg config.ServerConfig, handler http.Handler, log logger.Interface) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log.WithComponent("server"),
	}
}

// Start serves until Shutdown is called. It blocks; a clean shutdown returns
// nil.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "address", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
