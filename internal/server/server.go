package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/zsiec/framekit/internal/config"
	apierrors "github.com/zsiec/framekit/internal/errors"
	"github.com/zsiec/framekit/internal/health"
	"github.com/zsiec/framekit/internal/logger"
	"github.com/zsiec/framekit/internal/pipeline"
)

const healthCheckInterval = 30 * time.Second

// StreamSource lists the streams of this process; pipeline.Registry
// implements it.
type StreamSource interface {
	List() []pipeline.StreamInfo
	Get(id string) (pipeline.StreamInfo, bool)
}

// Server serves the health, version, codec and stream statistics API.
type Server struct {
	config       *config.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       logger.Logger
	streams      StreamSource
	healthMgr    *health.Manager
	errorHandler *apierrors.ErrorHandler

	routesOnce       sync.Once
	additionalRoutes []func(*mux.Router)
}

// New creates a server. Every checker is registered with the health manager.
func New(cfg *config.ServerConfig, log logger.Logger, streams StreamSource, checkers ...health.Checker) *Server {
	log = logger.WithComponent(log, "server")

	s := &Server{
		config:       cfg,
		router:       mux.NewRouter(),
		logger:       log,
		streams:      streams,
		healthMgr:    health.NewManager(log),
		errorHandler: apierrors.NewErrorHandler(log),
	}

	for _, c := range checkers {
		s.healthMgr.Register(c)
	}
	return s
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.ListenAddr, strconv.Itoa(s.config.Port))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.healthMgr.StartPeriodicChecks(ctx, healthCheckInterval)

	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server, waiting up to the configured shutdown timeout.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// Handler returns the fully routed handler. Routes are set up on first use,
// so RegisterRoutes must be called before.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.setupRoutes)
	return s.router
}

// RegisterRoutes adds route handlers to the server.
func (s *Server) RegisterRoutes(registerFunc func(*mux.Router)) {
	s.additionalRoutes = append(s.additionalRoutes, registerFunc)
}

// HealthManager exposes the health manager so callers can register checkers
func (s *Server) HealthManager() *health.Manager {
	return s.healthMgr
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods(http.MethodGet)
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/codecs", s.handleCodecs).Methods(http.MethodGet)
	api.HandleFunc("/codecs/{name}", s.handleCodec).Methods(http.MethodGet)
	api.HandleFunc("/streams", s.handleStreams).Methods(http.MethodGet)
	api.HandleFunc("/streams/{id}", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	for _, registerFunc := range s.additionalRoutes {
		registerFunc(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}
