package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the http server serving the /metrics endpoint for prometheus.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a new server that will start on the specified port,
// and responds to only the `/metrics` endpoint.
func NewServer(log zerolog.Logger, port int) *Server {
	log = log.With().Str("component", "metrics-server").Logger()

	mux := http.NewServeMux()
	endpoint := "/metrics"
	mux.Handle(endpoint, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("address", addr).Str("endpoint", endpoint).Msg("metrics server starting")

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		log:    log,
	}
}

func (s *Server) Start() (<-chan struct{}, error) {
	ready := make(chan struct{})

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	go func() {
		close(ready)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Err(err).Msg("error serving metrics server")
		}
	}()

	return ready, nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Err(err).Msg("error shutting down metrics server")
	}
}
