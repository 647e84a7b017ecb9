// Package rmmetrics exposes Prometheus metrics for the submit/poll loop.
package rmmetrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "rankmaniac"

// Metrics groups the collectors recorded by the runner. A nil *Metrics
// records nothing.
type Metrics struct {
	Iterations prometheus.Counter
	Transient  *prometheus.CounterVec
	Polls      prometheus.Counter
	Confirmed  prometheus.Gauge
	Outcomes   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_submitted_total",
			Help:      "Iterations accepted by the cluster.",
		}),
		Transient: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transient_errors_total",
			Help:      "Throttled remote calls, by operation.",
		}, []string{"op"}),
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Completion polls issued.",
		}),
		Confirmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "confirmed_iteration",
			Help:      "Highest iteration whose verify output was examined.",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Iterations, m.Transient, m.Polls, m.Confirmed, m.Outcomes)
	return m
}

// IterationSubmitted counts one accepted iteration. All Metrics methods
// are no-ops on a nil receiver.
func (m *Metrics) IterationSubmitted() {
	if m != nil {
		m.Iterations.Inc()
	}
}

// TransientError counts one throttled call of op.
func (m *Metrics) TransientError(op string) {
	if m != nil {
		m.Transient.WithLabelValues(op).Inc()
	}
}

// Polled counts one polling cycle and records the confirmed iteration.
func (m *Metrics) Polled(confirmed int) {
	if m != nil {
		m.Polls.Inc()
		m.Confirmed.Set(float64(confirmed))
	}
}

// Finished counts one run ending in outcome.
func (m *Metrics) Finished(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// Router serves /metrics from gatherer and a /healthz check.
func Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// Serve listens on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
