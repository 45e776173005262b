// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Indexer metrics
	EventsProcessed       *prometheus.CounterVec
	EventsSkipped         *prometheus.CounterVec
	EventProcessingErrors *prometheus.CounterVec
	CandleUpdates         *prometheus.CounterVec
	ClaimEntriesAppended  *prometheus.CounterVec

	// Progress metrics
	HighestBlockSeen *prometheus.GaugeVec
	EventsIngested   *prometheus.CounterVec
	WSReconnects     *prometheus.CounterVec

	// Latency metrics
	EventProcessingLatency *prometheus.HistogramVec
	WSMessageLatency       prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	APIRequests *prometheus.CounterVec

	// Health metrics
	LastSuccessfulEvent *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers metrics on reg. Tests use a fresh registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "perp_indexer"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Indexer metrics
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_processed_total",
			Help:      "Total number of events applied to the store by name",
		}, []string{"chain", "event"}),
		EventsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_skipped_total",
			Help:      "Total number of events skipped by reason",
		}, []string{"chain", "reason"}),
		EventProcessingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "event_processing_errors_total",
			Help:      "Total number of event processing errors by event and error type",
		}, []string{"chain", "event", "error_type"}),
		CandleUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "updates_total",
			Help:      "Total number of candle updates by resolution and kind (open/update)",
		}, []string{"resolution", "kind"}),
		ClaimEntriesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "entries_appended_total",
			Help:      "Total number of entries appended to claim records by event name",
		}, []string{"event_name"}),

		// Progress metrics
		HighestBlockSeen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "highest_block_seen",
			Help:      "Highest block number seen per chain",
		}, []string{"chain"}),
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_ingested_total",
			Help:      "Total number of events read from sources",
		}, []string{"chain", "source"}),
		WSReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_reconnects_total",
			Help:      "Total number of websocket reconnect attempts",
		}, []string{"endpoint"}),

		// Latency metrics
		EventProcessingLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "event_processing_latency_seconds",
			Help:      "Event processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		WSMessageLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_message_latency_seconds",
			Help:      "WebSocket message decode latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// API metrics
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),

		// Health metrics
		LastSuccessfulEvent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_event_timestamp",
			Help:      "Block timestamp of the last successfully applied event",
		}, []string{"chain"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventProcessed records a successfully applied event.
func RecordEventProcessed(chain, event string, seconds float64, blockTimestamp int64) {
	DefaultMetrics.EventsProcessed.WithLabelValues(chain, event).Inc()
	DefaultMetrics.EventProcessingLatency.WithLabelValues(event).Observe(seconds)
	DefaultMetrics.LastSuccessfulEvent.WithLabelValues(chain).Set(float64(blockTimestamp))
}

// RecordEventSkipped records an event that was not applied.
func RecordEventSkipped(chain, reason string) {
	DefaultMetrics.EventsSkipped.WithLabelValues(chain, reason).Inc()
}

// RecordEventError records an event processing error.
func RecordEventError(chain, event, errorType string) {
	DefaultMetrics.EventProcessingErrors.WithLabelValues(chain, event, errorType).Inc()
}

// RecordCandleUpdate records a candle open or in-bucket update.
func RecordCandleUpdate(resolution string, opened bool) {
	kind := "update"
	if opened {
		kind = "open"
	}
	DefaultMetrics.CandleUpdates.WithLabelValues(resolution, kind).Inc()
}

// RecordClaimEntries records entries appended to a claim record.
func RecordClaimEntries(eventName string, n int) {
	DefaultMetrics.ClaimEntriesAppended.WithLabelValues(eventName).Add(float64(n))
}

// RecordEventIngested records an event read from a source.
func RecordEventIngested(chain, source string) {
	DefaultMetrics.EventsIngested.WithLabelValues(chain, source).Inc()
}

// UpdateHighestBlock updates the highest block seen gauge.
func UpdateHighestBlock(chain string, block uint64) {
	DefaultMetrics.HighestBlockSeen.WithLabelValues(chain).Set(float64(block))
}

// RecordWSReconnect records a websocket reconnect attempt.
func RecordWSReconnect(endpoint string) {
	DefaultMetrics.WSReconnects.WithLabelValues(endpoint).Inc()
}

// RecordWSMessageLatency records the time spent decoding one websocket frame.
func RecordWSMessageLatency(seconds float64) {
	DefaultMetrics.WSMessageLatency.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordAPIRequest records a served API request.
func RecordAPIRequest(route string, code int) {
	DefaultMetrics.APIRequests.WithLabelValues(route, http.StatusText(code)).Inc()
}
