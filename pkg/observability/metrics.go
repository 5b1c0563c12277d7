package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wflow"

// Metrics holds the collectors of one actor system. A nil *Metrics records nothing.
type Metrics struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	eventsPersisted prometheus.Counter
	sessionsActive  prometheus.Gauge
	sessionsSpawned prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	recoveries      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of commands submitted to sessions",
			},
			[]string{"command", "status"}, // status: success, error, timeout
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Histogram of command processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		eventsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_persisted_total",
			Help:      "Total number of events written to the journal",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of running session processors",
		}),
		sessionsSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_spawned_total",
			Help:      "Total number of session processors started",
		}),
		sessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_ended_total",
				Help:      "Total number of sessions that ended",
			},
			[]string{"outcome"}, // outcome: completed, failed
		),
		recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recoveries_total",
				Help:      "Total number of session recoveries from the journal",
			},
			[]string{"status"}, // status: ok, fallback, failed
		),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commandsTotal, m.commandDuration, m.eventsPersisted,
		m.sessionsActive, m.sessionsSpawned, m.sessionsEnded, m.recoveries,
	}
}

func (m *Metrics) CommandFinished(command, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, status).Inc()
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (m *Metrics) EventsPersisted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsPersisted.Add(float64(n))
}

func (m *Metrics) SessionSpawned() {
	if m == nil {
		return
	}
	m.sessionsSpawned.Inc()
	m.sessionsActive.Inc()
}

// SessionEnded records a removed session; outcome is "completed" or "failed".
func (m *Metrics) SessionEnded(outcome string) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionsEnded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Recovery(status string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(status).Inc()
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the metrics of g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
