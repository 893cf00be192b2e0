// Package prometheus provides the Prometheus collectors and exporter for a
// deskpilot session.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "deskpilot"

// Token direction labels.
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)

// Metrics holds the session collectors. Each Metrics owns a private registry
// so that tests and multiple sessions never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	toolCallsTotal     *prometheus.CounterVec
	toolCallDuration   *prometheus.HistogramVec
	queueDepth         *prometheus.GaugeVec
	droppedAudioChunks prometheus.Counter
	mediaChunksSent    *prometheus.CounterVec
	turnsTotal         prometheus.Counter
	tokensTotal        *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		toolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls",
			},
			[]string{"tool", "status"}, // status: success, error, invalid, unknown
		),
		toolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Duration of tool calls in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Current number of items waiting in a session queue",
			},
			[]string{"queue"}, // outbound, video, inbound_audio
		),
		droppedAudioChunks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_audio_chunks_total",
				Help:      "Inbound audio chunks discarded at turn boundaries and interruptions",
			},
		),
		mediaChunksSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "media_chunks_sent_total",
				Help:      "Media chunks sent to the live session",
			},
			[]string{"kind"}, // audio, image
		),
		turnsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Completed model turns",
			},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Tokens reported by the model",
			},
			[]string{"direction"},
		),
	}

	m.registry.MustRegister(
		m.toolCallsTotal,
		m.toolCallDuration,
		m.queueDepth,
		m.droppedAudioChunks,
		m.mediaChunksSent,
		m.turnsTotal,
		m.tokensTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveToolCall records one dispatched tool call.
func (m *Metrics) ObserveToolCall(tool, status string, d time.Duration) {
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// SetQueueDepth records the current length of a named queue.
func (m *Metrics) SetQueueDepth(queue string, n int) {
	m.queueDepth.WithLabelValues(queue).Set(float64(n))
}

// AddDroppedAudio counts inbound audio chunks discarded by a drain.
func (m *Metrics) AddDroppedAudio(n int) {
	if n > 0 {
		m.droppedAudioChunks.Add(float64(n))
	}
}

// IncMediaSent counts one chunk sent to the session.
func (m *Metrics) IncMediaSent(kind string) {
	m.mediaChunksSent.WithLabelValues(kind).Inc()
}

// IncTurns counts one completed turn.
func (m *Metrics) IncTurns() {
	m.turnsTotal.Inc()
}

// AddTokens records prompt and response token counts.
func (m *Metrics) AddTokens(input, output int) {
	if input > 0 {
		m.tokensTotal.WithLabelValues(DirectionInput).Add(float64(input))
	}
	if output > 0 {
		m.tokensTotal.WithLabelValues(DirectionOutput).Add(float64(output))
	}
}
