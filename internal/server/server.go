package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"weibalance/internal/api"
	"weibalance/internal/config"
	"weibalance/internal/upstream"
)

// Server represents the main server
type Server struct {
	cfg        *config.Config
	router     *api.Router
	fetcher    *upstream.BalanceFetcher
	httpServer *http.Server
	listener   net.Listener
	logger     zerolog.Logger
}

// New creates a new Server
func New(cfg *config.Config, logger zerolog.Logger) *Server {
	fetcher := upstream.NewBalanceFetcher(cfg.RPCURL, logger)
	if fetcher.Endpoint() == "" {
		logger.Warn().Msg("rpc endpoint not configured, balance requests will fail")
	}

	return &Server{
		cfg:     cfg,
		router:  api.NewRouter(fetcher, cfg.RequestTimeout, logger),
		fetcher: fetcher,
		logger:  logger,
	}
}

// Start binds the listen address and serves in the background. Bind
// failures are returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Addr(), err)
	}
	s.listener = ln

	writeTimeout := 30 * time.Second
	if s.cfg.RequestTimeout >= writeTimeout {
		writeTimeout = s.cfg.RequestTimeout + 5*time.Second
	}

	s.httpServer = &http.Server{
		Handler:      s.router.Engine(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Str("endpoint", s.fetcher.Endpoint()).
			Dur("requestTimeout", s.cfg.RequestTimeout).
			Msg("starting HTTP server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info().Msg("server stopped")
	return nil
}
