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
	// Event metrics
	EventsProcessed        *prometheus.CounterVec
	EventsSkipped          *prometheus.CounterVec
	EventProcessingErrors  *prometheus.CounterVec
	EventProcessingLatency *prometheus.HistogramVec

	// Ledger metrics
	SalesRecognized     prometheus.Counter
	SalesSkipped        prometheus.Counter
	PurchasesRecognized prometheus.Counter
	ChainsOpened        prometheus.Counter
	ChainsClosed        prometheus.Counter
	PairsCreated        prometheus.Counter
	MissingRecords      *prometheus.CounterVec

	// Ingestion metrics
	LastProcessedBlock prometheus.Gauge
	ChainHeadBlock     prometheus.Gauge
	WindowsProcessed   prometheus.Counter
	RPCCallLatency     *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulWindow prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "dex_ledger"
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "events_processed_total",
			Help:      "Total number of events applied by type",
		}, []string{"event_type"}),
		EventsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "events_skipped_total",
			Help:      "Total number of events skipped by reason",
		}, []string{"reason"}),
		EventProcessingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "event_processing_errors_total",
			Help:      "Total number of event processing errors by type",
		}, []string{"event_type", "error_type"}),
		EventProcessingLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "event_processing_latency_seconds",
			Help:      "Event processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),

		SalesRecognized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sales_recognized_total",
			Help:      "Total number of sales recognized against a position",
		}),
		SalesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sales_skipped_total",
			Help:      "Total number of swap legs whose sale was already recognized by an open chain",
		}),
		PurchasesRecognized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "terminal_legs_total",
			Help:      "Total number of terminal swap legs that recognized a purchase",
		}),
		ChainsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "chains_opened_total",
			Help:      "Total number of intermediate multi-hop legs",
		}),
		ChainsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "chains_closed_total",
			Help:      "Total number of multi-hop chains closed by a terminal leg",
		}),
		PairsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "pairs_created_total",
			Help:      "Total number of pairs registered from factory events",
		}),
		MissingRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "missing_records_total",
			Help:      "Total number of fatal missing-record errors by event type",
		}, []string{"event_type"}),

		LastProcessedBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_processed_block",
			Help:      "Last block fully applied and checkpointed",
		}),
		ChainHeadBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "chain_head_block",
			Help:      "Latest block reported by the node",
		}),
		WindowsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "windows_processed_total",
			Help:      "Total number of block windows applied",
		}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ethereum RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

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

		LastSuccessfulWindow: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_window_timestamp",
			Help:      "Unix timestamp of last successfully applied block window",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordEvent records one applied event and its latency.
func RecordEvent(eventType string, seconds float64) {
	DefaultMetrics.EventsProcessed.WithLabelValues(eventType).Inc()
	DefaultMetrics.EventProcessingLatency.WithLabelValues(eventType).Observe(seconds)
}

// RecordEventSkipped records an event that was intentionally not applied.
func RecordEventSkipped(reason string) {
	DefaultMetrics.EventsSkipped.WithLabelValues(reason).Inc()
}

// RecordEventError records an event processing error.
func RecordEventError(eventType, errorType string) {
	DefaultMetrics.EventProcessingErrors.WithLabelValues(eventType, errorType).Inc()
	if errorType == "missing_record" {
		DefaultMetrics.MissingRecords.WithLabelValues(eventType).Inc()
	}
}

// SwapOutcome is the subset of a swap attribution result that is counted.
type SwapOutcome struct {
	SaleRecognized bool
	SaleSkipped    bool
	ChainOpened    bool
	ChainClosed    bool
}

// RecordSwap records the ledger effects of one swap.
func RecordSwap(o SwapOutcome) {
	if o.SaleRecognized {
		DefaultMetrics.SalesRecognized.Inc()
	}
	if o.SaleSkipped {
		DefaultMetrics.SalesSkipped.Inc()
	}
	if o.ChainOpened {
		DefaultMetrics.ChainsOpened.Inc()
	} else {
		DefaultMetrics.PurchasesRecognized.Inc()
	}
	if o.ChainClosed {
		DefaultMetrics.ChainsClosed.Inc()
	}
}

// RecordPairCreated increments the pairs created counter.
func RecordPairCreated() {
	DefaultMetrics.PairsCreated.Inc()
}

// RecordWindow records a checkpointed block window.
func RecordWindow(lastBlock uint64, unixSeconds int64) {
	DefaultMetrics.WindowsProcessed.Inc()
	DefaultMetrics.LastProcessedBlock.Set(float64(lastBlock))
	DefaultMetrics.LastSuccessfulWindow.Set(float64(unixSeconds))
}

// UpdateChainHead updates the chain head gauge.
func UpdateChainHead(block uint64) {
	DefaultMetrics.ChainHeadBlock.Set(float64(block))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
