// Package prometheus registers and serves the engine's simulation metrics.
// One Metrics value is wired into a System at construction; the scheduler
// updates it after every event, and Handler exposes the registry for
// scraping.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's instrument set on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Scheduler
	EventsTotal     prometheus.Counter
	NullEventsTotal prometheus.Counter
	SimulationTime  prometheus.Gauge
	StepDuration    prometheus.Histogram

	// Per-rule outcomes
	RuleApplications *prometheus.CounterVec
	RuleFailures     *prometheus.CounterVec
	RuleReactivity   *prometheus.GaugeVec

	// Mixture
	AgentCount     prometheus.Gauge
	ComponentCount prometheus.Gauge
}

// Config holds construction parameters for Metrics.
type Config struct {
	// Namespace prefixes every metric name; defaults to "kappaforge".
	Namespace string

	// EnableGoMetrics adds the standard Go runtime collectors.
	EnableGoMetrics bool
}

// New constructs a Metrics set on a fresh registry.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "kappaforge"
	}
	reg := prometheus.NewRegistry()
	if cfg.EnableGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Metrics{
		registry: reg,
		EventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "events_total",
			Help:      "Simulation events executed, null events included.",
		}),
		NullEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "null_events_total",
			Help:      "Events whose rule selection produced no update.",
		}),
		SimulationTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "simulation_time_seconds",
			Help:      "Simulated clock of the running system.",
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "step_duration_seconds",
			Help:      "Wall-clock duration of one Gillespie step.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		RuleApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "rule_applications_total",
			Help:      "Successful applications per rule.",
		}, []string{"rule"}),
		RuleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "rule_failures_total",
			Help:      "Null events per rule.",
		}, []string{"rule"}),
		RuleReactivity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "rule_reactivity",
			Help:      "Current propensity (embeddings × rate) per rule.",
		}, []string{"rule"}),
		AgentCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "mixture_agents",
			Help:      "Agents in the mixture.",
		}),
		ComponentCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "mixture_components",
			Help:      "Connected components of the mixture (component-tracking runs only).",
		}),
	}

	reg.MustRegister(
		m.EventsTotal, m.NullEventsTotal, m.SimulationTime, m.StepDuration,
		m.RuleApplications, m.RuleFailures, m.RuleReactivity,
		m.AgentCount, m.ComponentCount,
	)
	return m
}

// ObserveStep records one completed scheduler step.
func (m *Metrics) ObserveStep(elapsed time.Duration, simTime float64, null bool, ruleName string) {
	m.EventsTotal.Inc()
	m.SimulationTime.Set(simTime)
	m.StepDuration.Observe(elapsed.Seconds())
	if null {
		m.NullEventsTotal.Inc()
		m.RuleFailures.WithLabelValues(ruleName).Inc()
	} else {
		m.RuleApplications.WithLabelValues(ruleName).Inc()
	}
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry for test assertions.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
