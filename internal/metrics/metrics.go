package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	MetricsNamespace         = "seasonal_ai"
	MetricsSubsystemSystem   = "system"
	MetricsSubsystemHTTP     = "http"
	MetricsSubsystemUpstream = "upstream"

	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

type Metrics interface {
	GetRegistry() *prometheus.Registry

	ObserveRequest(handler, statusCode string, elapsed float64)
	ObserveUpstreamCall(call string, err error)
	ObserveTokenUsage(model string, inputTokens, outputTokens int64)
	IncrementRunPolls()
}

type metrics struct {
	registry *prometheus.Registry

	startTime prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	upstreamCallsTotal   *prometheus.CounterVec
	upstreamTokensTotal  *prometheus.CounterVec
	upstreamRunPollTotal prometheus.Counter
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() Metrics {
	m := &metrics{}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: MetricsNamespace,
	}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemSystem,
		Name:      "start_timestamp_seconds",
		Help:      "The time the server started.",
	})
	m.startTime.SetToCurrentTime()
	m.registry.MustRegister(m.startTime)

	m.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemHTTP,
		Name:      "requests_total",
		Help:      "The total number of http requests.",
	}, []string{"handler", "status_code"})
	m.registry.MustRegister(m.httpRequestsTotal)

	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemHTTP,
		Name:      "request_duration_seconds",
		Help:      "Time to execute the http handler.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"handler"})
	m.registry.MustRegister(m.httpRequestDuration)

	m.upstreamCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemUpstream,
		Name:      "calls_total",
		Help:      "The total number of OpenAI API calls.",
	}, []string{"call", "outcome"})
	m.registry.MustRegister(m.upstreamCallsTotal)

	m.upstreamTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemUpstream,
		Name:      "tokens_total",
		Help:      "The total number of tokens consumed by chat completions.",
	}, []string{"model", "direction"})
	m.registry.MustRegister(m.upstreamTokensTotal)

	m.upstreamRunPollTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemUpstream,
		Name:      "run_polls_total",
		Help:      "The total number of assistant run status polls.",
	})
	m.registry.MustRegister(m.upstreamRunPollTotal)

	return m
}

func (m *metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *metrics) ObserveRequest(handler, statusCode string, elapsed float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.With(prometheus.Labels{"handler": handler, "status_code": statusCode}).Inc()
	m.httpRequestDuration.With(prometheus.Labels{"handler": handler}).Observe(elapsed)
}

func (m *metrics) ObserveUpstreamCall(call string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.upstreamCallsTotal.With(prometheus.Labels{"call": call, "outcome": outcome}).Inc()
}

func (m *metrics) ObserveTokenUsage(model string, inputTokens, outputTokens int64) {
	if m == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	if inputTokens > 0 {
		m.upstreamTokensTotal.With(prometheus.Labels{"model": model, "direction": "input"}).Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.upstreamTokensTotal.With(prometheus.Labels{"model": model, "direction": "output"}).Add(float64(outputTokens))
	}
}

func (m *metrics) IncrementRunPolls() {
	if m != nil {
		m.upstreamRunPollTotal.Inc()
	}
}
