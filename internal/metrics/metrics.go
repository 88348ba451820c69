package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the flow counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the broker
type Metrics struct {
	FlowsStarted     prometheus.Counter
	Callbacks        *prometheus.CounterVec
	LoginDecisions   *prometheus.CounterVec
	ConsentDecisions *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	ActiveSessions   prometheus.GaugeFunc
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FlowsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "broker_flows_started_total",
			Help: "Total number of authorization code flows started",
		}),
		Callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_callbacks_total",
			Help: "Authorization callbacks by outcome",
		}, []string{"outcome"}),
		LoginDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_login_decisions_total",
			Help: "Delegated login decisions by outcome",
		}, []string{"outcome"}),
		ConsentDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "broker_consent_decisions_total",
			Help: "Delegated consent decisions by outcome",
		}, []string{"outcome"}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "broker_upstream_request_duration_seconds",
			Help:    "Latency of outbound calls to the authorization server and identity provider",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
	}
}

// RegisterSessionGauge exposes the number of live sessions reported by count.
func (m *Metrics) RegisterSessionGauge(reg prometheus.Registerer, count func() int) {
	if m == nil {
		return
	}
	m.ActiveSessions = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "broker_active_sessions",
		Help: "Number of sessions held by the in-memory session store",
	}, func() float64 { return float64(count()) })
}

func (m *Metrics) IncFlowsStarted() {
	if m == nil {
		return
	}
	m.FlowsStarted.Inc()
}

func (m *Metrics) ObserveCallback(outcome string) {
	if m == nil {
		return
	}
	m.Callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveConsent(outcome string) {
	if m == nil {
		return
	}
	m.ConsentDecisions.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the duration of an outbound call started at start.
func (m *Metrics) ObserveUpstream(service, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.UpstreamDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}
