// Package metrics exposes the Prometheus registry used by the crawler.
// Metrics themselves are declared with promauto in the packages that own
// them (fetcher, crawl, artifact); this package serves and documents them.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry all crawler metrics register with.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler exposing the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves /metrics for the lifetime of a crawl run.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger zerolog.Logger
}

// Listen binds addr and returns a server ready to Serve.
func Listen(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr()).Msg("Serving metrics")
		errCh <- s.srv.Serve(s.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

// Metrics Documentation
//
// Fetch Metrics (pkg/fetcher):
//   - amadown_fetch_attempts_total{result} (Counter): connection attempts, result=ok|timeout|network|read
//   - amadown_fetch_exhausted_total (Counter): fetches that gave up after all attempts
//   - amadown_http_responses_total{status} (Counter): completed reads by HTTP status
//   - amadown_fetch_duration_seconds (Histogram): duration of a completed read
//   - amadown_pause_seconds_total (Counter): time spent in the post-read pause
//
// Crawl Metrics (pkg/crawl):
//   - amadown_pages_captured_total (Counter): pages saved as artifacts
//   - amadown_pages_skipped_total (Counter): pages skipped because an artifact exists
//   - amadown_page_retries_total{reason} (Counter): same-page retries, reason=rate_limited|challenge
//   - amadown_challenges_total{action} (Counter): challenge pages, action=retry|tolerate
//   - amadown_pause_seconds (Gauge): current pacing delay
//   - amadown_targets_total{reason} (Counter): finished targets by stop reason
//
// Artifact Metrics (pkg/artifact):
//   - amadown_artifact_bytes_total (Counter): bytes written to disk
//   - amadown_artifact_errors_total{op} (Counter): store failures, op=exists|save|load|mirror
//
// Example Prometheus Queries:
//
//   # Share of fetches hitting the rate limiter
//   rate(amadown_page_retries_total{reason="rate_limited"}[5m]) /
//   rate(amadown_http_responses_total[5m])
//
//   # Current pacing
//   amadown_pause_seconds
