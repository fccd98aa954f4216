package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "screener"

// Metrics holds the Prometheus collectors of the screening pipeline.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Gauges
	WSClients        *prometheus.GaugeVec
	CachedTokens     prometheus.Gauge
	SubscriberActive prometheus.Gauge

	// Counters
	LogsReceivedTotal      prometheus.Counter
	EventsClassifiedTotal  *prometheus.CounterVec
	TokensSavedTotal       *prometheus.CounterVec
	EnrichmentFailedTotal  *prometheus.CounterVec
	SubscriberErrorsTotal  prometheus.Counter
	BroadcastDroppedTotal  *prometheus.CounterVec
	RelayPublishErrorTotal *prometheus.CounterVec

	// Histograms
	HandleDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		WSClients: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "clients",
			Help:      "Current number of connected WebSocket clients by channel",
		}, []string{"channel"}),
		CachedTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "tokens",
			Help:      "Current number of tokens held by the latest tokens cache",
		}),
		SubscriberActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "subscriber",
			Name:      "connected",
			Help:      "1 while the chain subscription is established",
		}),

		LogsReceivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriber",
			Name:      "logs_received_total",
			Help:      "Total number of logs received from the chain",
		}),
		EventsClassifiedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_classified_total",
			Help:      "Total number of logs classified by event kind",
		}, []string{"kind"}),
		TokensSavedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "tokens_saved_total",
			Help:      "Total number of token saves by outcome",
		}, []string{"outcome"}),
		EnrichmentFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "enrichment_failed_total",
			Help:      "Total number of dropped events by enrichment failure reason",
		}, []string{"reason"}),
		SubscriberErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriber",
			Name:      "errors_total",
			Help:      "Total number of subscription failures",
		}),
		BroadcastDroppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "dropped_total",
			Help:      "Total number of messages dropped for slow clients",
		}, []string{"channel"}),
		RelayPublishErrorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "publish_errors_total",
			Help:      "Total number of failed relay publishes by sink",
		}, []string{"sink"}),

		HandleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "handle_duration_seconds",
			Help:      "Time spent handling one log end to end",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// RecordLogReceived increments the received logs counter
func (m *Metrics) RecordLogReceived() {
	if m == nil {
		return
	}
	m.LogsReceivedTotal.Inc()
}

// RecordEventClassified counts a classified log by kind ("unknown" for misses)
func (m *Metrics) RecordEventClassified(kind string) {
	if m == nil {
		return
	}
	m.EventsClassifiedTotal.WithLabelValues(kind).Inc()
}

// RecordTokenSaved counts a save by outcome: inserted, updated or unchanged
func (m *Metrics) RecordTokenSaved(outcome string) {
	if m == nil {
		return
	}
	m.TokensSavedTotal.WithLabelValues(outcome).Inc()
}

// RecordEnrichmentFailed counts a dropped event
func (m *Metrics) RecordEnrichmentFailed(reason string) {
	if m == nil {
		return
	}
	m.EnrichmentFailedTotal.WithLabelValues(reason).Inc()
}

// RecordSubscriberError increments the subscription failure counter
func (m *Metrics) RecordSubscriberError() {
	if m == nil {
		return
	}
	m.SubscriberErrorsTotal.Inc()
}

// SetSubscriberConnected updates the subscription state gauge
func (m *Metrics) SetSubscriberConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.SubscriberActive.Set(1)
		return
	}
	m.SubscriberActive.Set(0)
}

// UpdateWSClients updates the connected clients gauge of a channel
func (m *Metrics) UpdateWSClients(channel string, count int) {
	if m == nil {
		return
	}
	m.WSClients.WithLabelValues(channel).Set(float64(count))
}

// RecordBroadcastDropped counts a message dropped for a slow client
func (m *Metrics) RecordBroadcastDropped(channel string) {
	if m == nil {
		return
	}
	m.BroadcastDroppedTotal.WithLabelValues(channel).Inc()
}

// RecordRelayError counts a failed publish to an external sink
func (m *Metrics) RecordRelayError(sink string) {
	if m == nil {
		return
	}
	m.RelayPublishErrorTotal.WithLabelValues(sink).Inc()
}

// UpdateCachedTokens updates the cache size gauge
func (m *Metrics) UpdateCachedTokens(n int) {
	if m == nil {
		return
	}
	m.CachedTokens.Set(float64(n))
}

// ObserveHandle records the time taken to handle one log
func (m *Metrics) ObserveHandle(d time.Duration) {
	if m == nil {
		return
	}
	m.HandleDuration.Observe(d.Seconds())
}
