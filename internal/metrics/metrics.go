package metrics

import (
	"time"

	"sdm-platform-be/pkg/graph"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sdm"

// Metrics groups the engine's collectors. It implements graph.Observer.
type Metrics struct {
	turns         *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	toolRounds    prometheus.Histogram
	citations     prometheus.Histogram
	jobs          *prometheus.CounterVec
	extractionRun *prometheus.CounterVec
}

var _ graph.Observer = (*Metrics)(nil)

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_node_duration_seconds",
			Help:      "Latency of graph nodes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2.5, 10),
		}, []string{"node", "status"}),
		toolRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_tool_rounds",
			Help:      "Tool rounds executed per turn.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		citations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_citations",
			Help:      "Evidence citations attached per turn.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs by topic and outcome.",
		}, []string{"topic", "outcome"}),
		extractionRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_extractions_total",
			Help:      "Memory extraction runs by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.turns, m.nodeDuration, m.toolRounds, m.citations, m.jobs, m.extractionRun)
	return m
}

func (m *Metrics) NodeFinished(node string, elapsed time.Duration, err error) {
	m.nodeDuration.WithLabelValues(node, outcome(err)).Observe(elapsed.Seconds())
}

func (m *Metrics) TurnFinished(trigger string, state *graph.State, err error) {
	m.turns.WithLabelValues(trigger, outcome(err)).Inc()
	if state != nil {
		m.toolRounds.Observe(float64(state.ToolRounds))
		m.citations.Observe(float64(len(state.TurnCitations)))
	}
}

func (m *Metrics) JobFinished(topic string, err error) {
	m.jobs.WithLabelValues(topic, outcome(err)).Inc()
}

// JobAbandoned counts jobs that exhausted their attempts.
func (m *Metrics) JobAbandoned(topic string) {
	m.jobs.WithLabelValues(topic, "abandoned").Inc()
}

func (m *Metrics) ExtractionFinished(err error) {
	m.extractionRun.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
