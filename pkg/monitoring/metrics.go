package monitoring

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the ad unit lifecycle
var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// Unit metrics
	UnitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adunit_transitions_total",
			Help: "Total number of unit state transitions",
		},
		[]string{"kind", "from", "to", "cause"},
	)

	UnitLoadResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adunit_load_results_total",
			Help: "Total number of provider load results",
		},
		[]string{"kind", "result"},
	)

	UnitRewardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adunit_rewards_total",
			Help: "Total number of rewards granted by the provider",
		},
		[]string{"kind"},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adunit_provider_errors_total",
			Help: "Total number of failed provider calls",
		},
		[]string{"kind"},
	)

	StaleEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adunit_stale_events_total",
			Help: "Provider callbacks ignored because their handle is no longer current",
		},
	)

	LiveUnits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adunit_live_units",
			Help: "Current number of registered units",
		},
		[]string{"kind"},
	)

	// Scheduler metrics
	ReloadPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adunit_reload_passes_total",
			Help: "Total number of reload passes triggered by the scheduler",
		},
		[]string{"reason"},
	)

	DebounceOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adunit_debounce_outcomes_total",
			Help: "Environment changes by signal and whether they persisted",
		},
		[]string{"signal", "outcome"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adunit_tick_duration_seconds",
			Help:    "Time spent in one scheduler tick",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.016},
		},
	)

	GateState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adunit_gate",
			Help: "Global gate flags (1 = set)",
		},
		[]string{"flag"},
	)

	// Journal metrics
	JournalEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adunit_journal_entries_total",
			Help: "Journal entries by outcome",
		},
		[]string{"outcome"},
	)

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query execution time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"query_type", "table"},
	)

	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"error_type", "table"},
	)

	// Redis metrics
	RedisCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Redis command execution time",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"command"},
	)

	RedisErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"error_type"},
	)

	// System metrics
	SystemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"component", "severity"},
	)
)

// MetricsMiddleware creates a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		// Normalize path to avoid high cardinality
		normalizedPath := normalizePath(path)

		HTTPRequestsTotal.WithLabelValues(method, normalizedPath, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, normalizedPath, status).Observe(duration)
	}
}

// normalizePath reduces cardinality by grouping similar paths
func normalizePath(path string) string {
	switch {
	case path == "/" || path == "/health" || path == "/ready" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/v1/groups/"):
		return "/api/v1/groups/{group}"
	case strings.HasPrefix(path, "/api/v1/units"):
		return "/api/v1/units"
	case strings.HasPrefix(path, "/api/v1/gate"):
		return "/api/v1/gate"
	case strings.HasPrefix(path, "/api/v1/environment"):
		return "/api/v1/environment"
	case strings.HasPrefix(path, "/api/v1/groups"):
		return "/api/v1/groups"
	case path == "/api/v1/remake" || path == "/api/v1/lifecycle/pause" ||
		path == "/api/v1/scheduler" || path == "/api/v1/journal":
		return path
	}
	return "/other"
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTransition records a unit state change
func RecordTransition(kind, from, to, cause string) {
	UnitTransitionsTotal.WithLabelValues(kind, from, to, cause).Inc()
}

// RecordLoadResult records the outcome of a provider load
func RecordLoadResult(kind string, ok bool) {
	result := "failed"
	if ok {
		result = "loaded"
	}
	UnitLoadResultsTotal.WithLabelValues(kind, result).Inc()
}

// RecordReward records a granted reward
func RecordReward(kind string) {
	UnitRewardsTotal.WithLabelValues(kind).Inc()
}

// RecordProviderError records a failed provider call
func RecordProviderError(kind string) {
	ProviderErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordStaleEvent records an ignored provider callback
func RecordStaleEvent() {
	StaleEventsTotal.Inc()
}

// UpdateLiveUnits sets the live unit count for a kind
func UpdateLiveUnits(kind string, count int) {
	LiveUnits.WithLabelValues(kind).Set(float64(count))
}

// RecordReloadPass records a scheduler-triggered reload
func RecordReloadPass(reason string) {
	ReloadPassesTotal.WithLabelValues(reason).Inc()
}

// RecordDebounce records whether an environment change persisted
func RecordDebounce(signal string, persisted bool) {
	outcome := "reverted"
	if persisted {
		outcome = "persisted"
	}
	DebounceOutcomesTotal.WithLabelValues(signal, outcome).Inc()
}

// RecordTick records the time spent in one tick
func RecordTick(duration time.Duration) {
	TickDuration.Observe(duration.Seconds())
}

// UpdateGate publishes the gate flags
func UpdateGate(allow, acceptable bool) {
	GateState.WithLabelValues("allow").Set(boolToFloat(allow))
	GateState.WithLabelValues("acceptable").Set(boolToFloat(acceptable))
}

// RecordJournalEntry records what happened to a journal entry
func RecordJournalEntry(outcome string) {
	JournalEntriesTotal.WithLabelValues(outcome).Inc()
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(queryType, table string, duration time.Duration, err error) {
	DatabaseQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
	if err != nil {
		DatabaseErrorsTotal.WithLabelValues("query_error", table).Inc()
	}
}

// RecordRedisCommand records Redis command metrics
func RecordRedisCommand(command string, duration time.Duration, err error) {
	RedisCommandDuration.WithLabelValues(command).Observe(duration.Seconds())
	if err != nil {
		RedisErrorsTotal.WithLabelValues("command_error").Inc()
	}
}

// RecordSystemError records system errors
func RecordSystemError(component, severity string) {
	SystemErrors.WithLabelValues(component, severity).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
