// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "manuell_oppgave"

// Metrics groups the collectors used across the service. Each instance owns
// its own registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	IncomingMessages  prometheus.Counter
	DuplicateMessages prometheus.Counter
	OppgaveCreated    prometheus.Counter
	OppgaveFinalized  *prometheus.CounterVec
	OppgaveDeleted    prometheus.Counter
	FollowUpCreated   prometheus.Counter
	ReceiptsSent      *prometheus.CounterVec
	StatusUpdates     *prometheus.CounterVec
	ConsumerErrors    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New builds and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.IncomingMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "incoming_message_count",
		Help:      "Number of case messages received for manual review.",
	})
	m.DuplicateMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicate_message_count",
		Help:      "Number of case messages skipped because the case already exists.",
	})
	m.OppgaveCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oppgave_created_count",
		Help:      "Number of external tasks created.",
	})
	m.OppgaveFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oppgave_finalized_count",
		Help:      "Number of cases finalized, by decision outcome.",
	}, []string{"outcome"})
	m.OppgaveDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oppgave_deleted_count",
		Help:      "Number of cases removed by administrators.",
	})
	m.FollowUpCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oppfolgingsoppgave_created_count",
		Help:      "Number of follow-up tasks created for rejected cases.",
	})
	m.ReceiptsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "apprec_sent_count",
		Help:      "Number of receipts published, by receipt status.",
	}, []string{"status"})
	m.StatusUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oppgave_status_update_count",
		Help:      "Number of task status updates applied, by source and status.",
	}, []string{"source", "status"})
	m.ConsumerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "consumer_error_count",
		Help:      "Number of failures while processing consumed records, by topic.",
	}, []string{"topic"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "How many HTTP requests processed, partitioned by status code, method and route.",
	}, []string{"code", "method", "route"})
	m.httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "How long it took to process the request, partitioned by status code, method and route.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"code", "method", "route"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.IncomingMessages,
		m.DuplicateMessages,
		m.OppgaveCreated,
		m.OppgaveFinalized,
		m.OppgaveDeleted,
		m.FollowUpCreated,
		m.ReceiptsSent,
		m.StatusUpdates,
		m.ConsumerErrors,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		m.httpRequests.WithLabelValues(code, c.Request.Method, route).Inc()
		m.httpLatency.WithLabelValues(code, c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordError counts a failed record on topic.
func (m *Metrics) RecordError(topic string) {
	m.ConsumerErrors.WithLabelValues(topic).Inc()
}

// CountReceipt counts a published receipt by status.
func (m *Metrics) CountReceipt(status string) {
	m.ReceiptsSent.WithLabelValues(status).Inc()
}
