package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics: счётчики ядра рекомендаций на собственном реестре.
// Все методы безопасны для nil, чтобы сервисы работали и без метрик.
type Metrics struct {
	GapRuns          *prometheus.CounterVec
	GapsDetected     prometheus.Counter
	ToBeGenerated    prometheus.Counter
	ControlsAccepted prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	registry         *prometheus.Registry
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		GapRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "control_advisor_gap_runs_total",
				Help: "Gap analysis runs by result",
			},
			[]string{"result"},
		),
		GapsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "control_advisor_gaps_detected_total",
			Help: "Gaps newly recorded by gap analysis",
		}),
		ToBeGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "control_advisor_tobe_generated_total",
			Help: "To-be controls synthesized from gaps",
		}),
		ControlsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "control_advisor_controls_accepted_total",
			Help: "Suggested controls materialized for a risk",
		}),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "control_advisor_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		registry: registry,
	}

	registry.MustRegister(m.GapRuns, m.GapsDetected, m.ToBeGenerated, m.ControlsAccepted, m.RequestDuration)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveGapRun(result string) {
	if m != nil {
		m.GapRuns.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) AddGapsDetected(n int) {
	if m != nil && n > 0 {
		m.GapsDetected.Add(float64(n))
	}
}

func (m *Metrics) AddToBeGenerated(n int) {
	if m != nil && n > 0 {
		m.ToBeGenerated.Add(float64(n))
	}
}

func (m *Metrics) IncControlsAccepted() {
	if m != nil {
		m.ControlsAccepted.Inc()
	}
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}
