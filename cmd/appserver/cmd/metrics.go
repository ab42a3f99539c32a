package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/appserver"
	"github.com/GoCodeAlone/appserver/health"
)

const metricsShutdownTimeout = 5 * time.Second

// metricsRouter exposes /metrics from gatherer, a /healthz liveness probe and
// the readiness report at /readyz.
func metricsRouter(gatherer prometheus.Gatherer, readiness *health.Aggregator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/readyz", readiness.Handler())
	return r
}

// serveMetrics serves the metrics router on addr until ctx is done. The
// returned channel is closed after shutdown.
func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, readiness *health.Aggregator, logger appserver.Logger) (<-chan struct{}, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           metricsRouter(gatherer, readiness),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}()

	logger.Info("Serving metrics", "address", ln.Addr().String())
	return done, nil
}
