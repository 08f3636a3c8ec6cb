package metrics

import (
	"net/http"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors. Each instance owns its registry so
// tests and multiple builds never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	votesTotal       *prometheus.CounterVec
	tallyDuration    *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	liveSubscribers  prometheus.Gauge
	outboxPublished  prometheus.Counter
	outboxRelayFails prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contestvote_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contestvote_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		votesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contestvote_votes_total",
			Help: "Vote submissions by outcome",
		}, []string{"outcome"}),
		tallyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contestvote_tally_duration_seconds",
			Help:    "Category tally duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "contestvote_results_cache_hits_total",
			Help: "Total number of result cache hits",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "contestvote_results_cache_misses_total",
			Help: "Total number of result cache misses",
		}),
		liveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "contestvote_live_subscribers",
			Help: "Connected live result subscribers",
		}),
		outboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "contestvote_outbox_published_total",
			Help: "Outbox rows relayed to the event bus",
		}),
		outboxRelayFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "contestvote_outbox_relay_failures_total",
			Help: "Failed outbox relay cycles",
		}),
	}
}

func (m *Metrics) ObserveVote(outcome string) {
	m.votesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTally(method entities.VotingMethod, elapsed time.Duration) {
	m.tallyDuration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) ObserveRelayCycle(published int, err error) {
	m.outboxPublished.Add(float64(published))
	if err != nil {
		m.outboxRelayFails.Inc()
	}
}

// LiveSubscribers is the gauge the live hub reports its subscriber count to.
func (m *Metrics) LiveSubscribers() prometheus.Gauge {
	return m.liveSubscribers
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeRequest(route string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, httpStatusBucket(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
