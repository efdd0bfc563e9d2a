// Package metrics holds the Prometheus collectors of the quote wizard.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Outcome labels for submissions.
const (
	OutcomeSuccess         = "success"
	OutcomeSubmissionError = "submission_error"
	OutcomeContractError   = "contract_error"
	OutcomeInvalid         = "invalid"
	OutcomeDiscarded       = "discarded"
)

// Collector owns its registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	sessionsStarted *prometheus.CounterVec
	sessionsLive    prometheus.Gauge
	submissions     *prometheus.CounterVec
	submitDuration  *prometheus.HistogramVec
	discarded       prometheus.Counter
	httpRequests    *prometheus.CounterVec
	rateLimited     prometheus.Counter
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quote_wizard",
			Name:      "sessions_started_total",
			Help:      "Wizard sessions started, by product and country.",
		}, []string{"product", "country"}),
		sessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quote_wizard",
			Name:      "sessions_live",
			Help:      "Wizard controllers held in memory.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quote_wizard",
			Name:      "submissions_total",
			Help:      "Quote submissions, by product, country and outcome.",
		}, []string{"product", "country", "outcome"}),
		submitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quote_wizard",
			Name:      "submission_duration_seconds",
			Help:      "Time spent waiting for the recommendation backend.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"product"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quote_wizard",
			Name:      "discarded_responses_total",
			Help:      "Backend responses that arrived after their session was abandoned.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quote_wizard",
			Name:      "http_requests_total",
			Help:      "API requests, by route and status code.",
		}, []string{"route", "code"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quote_wizard",
			Name:      "rate_limited_total",
			Help:      "API requests rejected by the rate limiter.",
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.sessionsStarted,
		c.sessionsLive,
		c.submissions,
		c.submitDuration,
		c.discarded,
		c.httpRequests,
		c.rateLimited,
	)
	return c
}

func (c *Collector) SessionStarted(product, country string) {
	c.sessionsStarted.WithLabelValues(product, country).Inc()
}

func (c *Collector) SetLiveSessions(n int) {
	c.sessionsLive.Set(float64(n))
}

// Submission records one submission attempt.
func (c *Collector) Submission(product, country, outcome string, took time.Duration) {
	c.submissions.WithLabelValues(product, country, outcome).Inc()
	if outcome == OutcomeDiscarded {
		c.discarded.Inc()
	}
	if outcome != OutcomeInvalid {
		c.submitDuration.WithLabelValues(product).Observe(took.Seconds())
	}
}

func (c *Collector) Request(route string, code int) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (c *Collector) RateLimited() {
	c.rateLimited.Inc()
}

// Submissions exposes the submission counter, mostly for tests.
func (c *Collector) Submissions() *prometheus.CounterVec {
	return c.submissions
}

// Registry exposes the underlying registry, mostly for tests.
// HTTPRequests exposes the request counter for inspection in tests.
func (c *Collector) HTTPRequests() *prometheus.CounterVec {
	return c.httpRequests
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
