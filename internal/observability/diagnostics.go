package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// MetricsServer exposes the Prometheus scrape endpoint over HTTP for the
// duration of a run. Solver instruments created through it land on the
// scrape endpoint.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	metrics  *SolverMetrics
}

// NewMetricsServer starts an HTTP server at addr with a /metrics endpoint
// and builds the solver instruments on its meter provider.
func NewMetricsServer(addr string) (*MetricsServer, error) {
	handler, provider, err := PrometheusHandler()
	if err != nil {
		return nil, err
	}

	solverMetrics, err := NewSolverMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, fmt.Errorf("register solver metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	return &MetricsServer{server: srv, listener: listener, metrics: solverMetrics}, nil
}

// Addr returns the address the server is listening on.
func (m *MetricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Metrics returns the solver instruments backing the scrape endpoint.
func (m *MetricsServer) Metrics() *SolverMetrics {
	return m.metrics
}

// Close gracefully shuts down the metrics server.
func (m *MetricsServer) Close() error {
	err := m.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}
