package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/telemetry-monitor/internal/logger"
)

// Path is the HTTP path serving the metrics.
const Path = "/metrics"

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Handler returns the HTTP handler for the gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

// Serve exposes the gatherer on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "Metrics server shutdown failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Metrics endpoint listening", "address", lis.Addr().String(), "path", Path)

	err := srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		<-done

		return nil
	}

	return fmt.Errorf("serve metrics: %w", err)
}
