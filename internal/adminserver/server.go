// Package adminserver hosts the health and metrics endpoints every daemon
// in this module exposes, the way the gateway exposes /healthz alongside
// its proxied routes.
package adminserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server hosts /healthz and /metrics on a dedicated listen address.
type Server struct {
	listenAddress string
	serviceName   string
	log           *slog.Logger
}

// New builds a Server. serviceName is used to label the otelhttp span.
func New(listenAddress, serviceName string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{listenAddress: listenAddress, serviceName: serviceName, log: log}
}

// Run starts the admin HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    s.listenAddress,
		Handler: otelhttp.NewHandler(r, s.serviceName+".admin"),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("adminserver: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("adminserver: serve: %w", err)
		}
		return nil
	}
}
