package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	registry  *prometheus.Registry
	payments  *prometheus.CounterVec
	deposits  *prometheus.CounterVec
	txRetries *prometheus.CounterVec
	requests  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "payments_total",
			Help:      "Job payment attempts by outcome.",
		}, []string{"outcome"}),
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "deposits_total",
			Help:      "Balance deposit attempts by outcome.",
		}, []string{"outcome"}),
		txRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "tx_retries_total",
			Help:      "Transactions retried after a serialization conflict.",
		}, []string{"operation"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(m.payments, m.deposits, m.txRetries, m.requests)
	return m
}

func (m *Metrics) PaymentAttempt(outcome string) {
	m.payments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DepositAttempt(outcome string) {
	m.deposits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TxRetry(operation string) {
	m.txRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	m.requests.WithLabelValues(method, route, status).Observe(seconds)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
