package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/tribunal/internal/review"
)

const namespace = "tribunal"

// Metrics records round and worker outcomes as Prometheus series. It
// implements review.Observer.
type Metrics struct {
	registry *prometheus.Registry

	rounds        *prometheus.CounterVec
	workerLatency *prometheus.HistogramVec
	workerFailed  *prometheus.CounterVec
	findings      *prometheus.CounterVec
	duplicates    prometheus.Counter
}

var _ review.Observer = (*Metrics)(nil)

// New registers every tribunal series on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rounds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed review rounds by kind and outcome (decision, or failed)",
		}, []string{"kind", "outcome"}),
		workerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_latency_seconds",
			Help:      "Reviewer worker duration from dispatch to return",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"lens", "status"}),
		workerFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_failures_total",
			Help:      "Reviewer workers that failed a round",
		}, []string{"lens"}),
		findings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Consolidated findings by verdict category",
		}, []string{"category"}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Findings dropped by cross-lens deduplication",
		}),
	}
}

// WorkerDone implements review.Observer.
func (m *Metrics) WorkerDone(lens review.Lens, elapsed time.Duration, _ int, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.workerFailed.WithLabelValues(string(lens)).Inc()
	}
	m.workerLatency.WithLabelValues(string(lens), status).Observe(elapsed.Seconds())
}

// RoundDone implements review.Observer.
func (m *Metrics) RoundDone(r *review.Round, err error) {
	if err != nil || r.Verdict == nil {
		m.rounds.WithLabelValues(string(r.Kind), "failed").Inc()
		return
	}
	v := r.Verdict
	m.rounds.WithLabelValues(string(r.Kind), strings.ToLower(string(v.Decision))).Inc()
	m.findings.WithLabelValues("must_fix").Add(float64(len(v.MustFix)))
	m.findings.WithLabelValues("should_fix").Add(float64(len(v.ShouldFix)))
	m.findings.WithLabelValues("refactor").Add(float64(len(v.RefactorOpportunities)))
	m.duplicates.Add(float64(v.DuplicatesRemoved))
}

// Registry exposes the underlying registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is cancelled. The
// listener is bound before Serve returns, so a bad address fails fast.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Debug("serving metrics", "addr", ln.Addr().String())
	return ln.Addr(), nil
}
