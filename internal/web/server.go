package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/web/handlers"
	"github.com/epl-xg-merge/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *Config
	state      *handlers.State
	store      handlers.ReviewStore
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server over a finished merge run. store may be nil,
// in which case the review endpoints are not registered.
func NewServer(config *Config, state *handlers.State, store handlers.ReviewStore) *Server {
	server := &Server{
		config: config,
		state:  state,
		store:  store,
	}

	// Setup routes
	server.setupRoutes()

	// Create HTTP server
	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Convert config for handlers (to avoid import cycle)
	handlerConfig := &handlers.Config{}
	handlerConfig.Features.SearchEnabled = s.config.Features.SearchEnabled
	handlerConfig.Features.ReviewEnabled = s.config.Features.ReviewEnabled

	apiHandler := &handlers.APIHandler{State: s.state, Config: handlerConfig}
	recordsHandler := &handlers.RecordsHandler{State: s.state, Config: handlerConfig}
	searchHandler := &handlers.SearchHandler{State: s.state, Config: handlerConfig}

	// API routes
	api := s.router.PathPrefix("/api").Subrouter()

	// Statistics and merged rows
	api.HandleFunc("/stats", apiHandler.GetStats).Methods("GET")
	api.HandleFunc("/records", recordsHandler.ListRecords).Methods("GET")
	api.HandleFunc("/records/{index:[0-9]+}", recordsHandler.GetRecord).Methods("GET")

	// Search endpoints (if enabled)
	if s.config.Features.SearchEnabled {
		api.HandleFunc("/records/{index:[0-9]+}/candidates", searchHandler.SearchRecord).Methods("GET")
		api.HandleFunc("/search", searchHandler.SearchFixture).Methods("GET")
		api.HandleFunc("/search/unmatched", searchHandler.SearchUnmatched).Methods("POST")
	}

	// Review endpoints need the database
	if s.store != nil {
		reviewHandler := &handlers.ReviewHandler{Store: s.store, Config: handlerConfig}
		api.HandleFunc("/runs/latest", reviewHandler.LatestRun).Methods("GET")
		api.HandleFunc("/runs/{id}/candidates", reviewHandler.ListCandidates).Methods("GET")
		api.HandleFunc("/candidates/{id:[0-9]+}/accept", reviewHandler.AcceptCandidate).Methods("POST")
		api.HandleFunc("/candidates/{id:[0-9]+}/reject", reviewHandler.RejectCandidate).Methods("POST")
	}

	// Apply middleware
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging())

	if s.config.Auth.Enabled {
		// Apply authentication middleware to API routes only
		api.Use(middleware.Authentication(s.config.Auth.APIKey))
	}
}

// Start serves until SIGINT, SIGTERM or ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	log := debug.Logger()

	// Setup graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.httpServer.Addr).Info("Starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal
	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("Shutting down server")
	case <-ctx.Done():
		log.Info("Shutting down server")
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "listen")
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}

	log.Info("Server stopped")
	return nil
}
