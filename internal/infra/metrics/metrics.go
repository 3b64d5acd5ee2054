package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики ядра. nil-значение допустимо: методы ничего не делают.
type Metrics struct {
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	paymentChecks    *prometheus.CounterVec
	activePollers    prometheus.Gauge
}

// New регистрирует коллекторы в reg (обычно prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storedesk",
			Name:      "mutations_total",
			Help:      "Optimistic mutations by collection, operation and outcome.",
		}, []string{"collection", "op", "outcome"}),
		mutationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storedesk",
			Name:      "mutation_duration_seconds",
			Help:      "Time from speculative apply to settle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collection", "op"}),
		paymentChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storedesk",
			Name:      "payment_status_checks_total",
			Help:      "Payment provider status checks by result.",
		}, []string{"source", "result"}),
		activePollers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storedesk",
			Name:      "payment_pollers_active",
			Help:      "Polling loops currently waiting for a payment.",
		}),
	}
	reg.MustRegister(m.mutations, m.mutationDuration, m.paymentChecks, m.activePollers)
	return m
}

func (m *Metrics) ObserveMutation(collection, op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(collection, op, outcome).Inc()
	m.mutationDuration.WithLabelValues(collection, op).Observe(d.Seconds())
}

// ObservePaymentCheck: source — "poll" или "manual", result — "active", "pending", "error".
func (m *Metrics) ObservePaymentCheck(source, result string) {
	if m == nil {
		return
	}
	m.paymentChecks.WithLabelValues(source, result).Inc()
}

func (m *Metrics) PollerStarted() {
	if m == nil {
		return
	}
	m.activePollers.Inc()
}

func (m *Metrics) PollerStopped() {
	if m == nil {
		return
	}
	m.activePollers.Dec()
}
