package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments used by the bridge.
type Metrics struct {
	ActiveConversations prometheus.Gauge
	SessionEvents       *prometheus.CounterVec
	DownstreamMessages  *prometheus.CounterVec
	UpstreamEvents      *prometheus.CounterVec
	QueueDrops          prometheus.Counter
	ForwardLatency      prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConversations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Number of conversations with a live upstream client.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		DownstreamMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downstream_messages_total",
			Help:      "VoiceAI Connect messages by direction and type.",
		}, []string{"direction", "type"}),
		UpstreamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_events_total",
			Help:      "Upstream connection events by type.",
		}, []string{"event"}),
		QueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_queue_drops_total",
			Help:      "Upstream audio chunks evicted from a full queue.",
		}),
		ForwardLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_latency_ms",
			Help:      "Time to decode and forward one caller audio chunk upstream, in milliseconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) ObserveForwardLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.ForwardLatency.Observe(float64(d.Microseconds()) / 1000)
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) DownstreamMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.DownstreamMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) UpstreamEvent(event string) {
	if m == nil {
		return
	}
	m.UpstreamEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) QueueDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.QueueDrops.Add(float64(n))
}

func (m *Metrics) ConversationOpened() {
	if m == nil {
		return
	}
	m.ActiveConversations.Inc()
}

func (m *Metrics) ConversationClosed() {
	if m == nil {
		return
	}
	m.ActiveConversations.Dec()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
