package metric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server is the debug HTTP server: /metrics, /healthz and /state.
type Server struct {
	addr       string
	metrics    *Metrics
	state      func() any
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer creates a server on addr. state is serialized as JSON on /state.
func NewServer(addr string, m *Metrics, state func() any) *Server {
	return &Server{
		addr:    addr,
		metrics: m,
		state:   state,
		log:     log.With().Str("component", "metric").Logger(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/state", s.serveState)

	return r
}

func (s *Server) serveState(w http.ResponseWriter, _ *http.Request) {
	if s.state == nil {
		http.Error(w, "no state", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state()); err != nil {
		s.log.Error().Err(err).Msg("encode state")
	}
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	s.httpServer = &http.Server{Handler: s.Router()}

	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("starting metrics server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("metrics server")
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info().Msg("stopping metrics server")
	return s.httpServer.Shutdown(ctx)
}
