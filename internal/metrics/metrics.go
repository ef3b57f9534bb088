// Package metrics exposes prometheus collectors for the client and the
// HTTP surface that serves them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"p2p-exchange-client/internal/scheduler"
	"p2p-exchange-client/internal/throttle"
)

const namespace = "p2pclient"

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	apiRequests   *prometheus.CounterVec
	apiDuration   *prometheus.HistogramVec
	throttled     *prometheus.CounterVec
	alertChecks   *prometheus.CounterVec
	alertMatches  prometheus.Counter
	notifications *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	cachedOffers  *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Marketplace API requests by endpoint and status.",
		}, []string{"endpoint", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Marketplace API latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"endpoint"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "blocked_total",
			Help:      "Operations refused by the throttling guard.",
		}, []string{"reason"}),
		alertChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "checks_total",
			Help:      "Per-alert evaluations by result.",
		}, []string{"result"}),
		alertMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "matches_total",
			Help:      "Offers that satisfied an alert.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "notifications_total",
			Help:      "Notification attempts by result.",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Background job runs by outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Background job duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"job"}),
		cachedOffers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "offers",
			Help:      "Cached offers per partition.",
		}, []string{"partition"}),
	}
	m.Registry.MustRegister(
		m.apiRequests,
		m.apiDuration,
		m.throttled,
		m.alertChecks,
		m.alertMatches,
		m.notifications,
		m.jobRuns,
		m.jobDuration,
		m.cachedOffers,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// ObserveRequest matches api.Observer.
func (m *Metrics) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	m.apiRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveThrottle matches throttle.Observer.
func (m *Metrics) ObserveThrottle(_ string, reason throttle.Reason) {
	m.throttled.WithLabelValues(string(reason)).Inc()
}

// ObserveJob matches scheduler.RunObserver.
func (m *Metrics) ObserveJob(name string, outcome scheduler.Outcome, elapsed time.Duration) {
	m.jobRuns.WithLabelValues(name, outcome.String()).Inc()
	m.jobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// AlertChecked counts one alert evaluation. result is ok, error or throttled.
func (m *Metrics) AlertChecked(result string) {
	m.alertChecks.WithLabelValues(result).Inc()
}

// AlertMatched counts matching offers.
func (m *Metrics) AlertMatched(n int) {
	m.alertMatches.Add(float64(n))
}

// NotificationSent counts delivery attempts. result is sent, failed or suppressed.
func (m *Metrics) NotificationSent(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

// SetCachedOffers records partition sizes.
func (m *Metrics) SetCachedOffers(mine, market int64) {
	m.cachedOffers.WithLabelValues("mine").Set(float64(mine))
	m.cachedOffers.WithLabelValues("marketplace").Set(float64(market))
}

// Handler serves /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return r
}

// Serve runs the metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "metrics").Logger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
