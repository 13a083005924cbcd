package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lending_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lending_register_total",
			Help: "Total number of user registrations",
		},
	)

	// Tenant operation counter
	TenantOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_tenant_operations_total",
			Help: "Total number of tenant operations",
		},
		[]string{"operation"}, // operation can be "create", "resolve", "add_user", etc.
	)

	// Gateway selection counter by provider and currency
	GatewaySelectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_gateway_selections_total",
			Help: "Total number of gateway selections by provider and currency",
		},
		[]string{"provider", "currency"},
	)

	// Webhook counter by provider and outcome
	WebhookCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_webhooks_total",
			Help: "Total number of webhook deliveries by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome can be "processed", "duplicate", "invalid"
	)

	// Activity counter operations
	CounterOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_activity_counter_operations_total",
			Help: "Total number of unread-counter operations",
		},
		[]string{"operation"}, // operation can be "increment", "decrement", "reset"
	)

	// Outbox events dispatched by type and outcome
	OutboxEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_outbox_events_total",
			Help: "Total number of outbox events dispatched by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome can be "processed", "failed"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lending_errors_total",
			Help: "Total number of authentication and authorization errors",
		},
		[]string{"type"}, // type can be "invalid_token", "tenant_not_found", "membership_denied", etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lending_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lending_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Gateway call duration
	GatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lending_gateway_call_duration_seconds",
			Help:    "Duration of outbound payment gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lending_info",
			Help: "Information about the lending service",
		},
		[]string{"version"},
	)

	// Pending outbox events
	OutboxPendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lending_outbox_pending_events",
			Help: "Number of outbox events awaiting dispatch",
		},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(TenantOperationCounter)
	prometheus.MustRegister(GatewaySelectionCounter)
	prometheus.MustRegister(WebhookCounter)
	prometheus.MustRegister(CounterOperationCounter)
	prometheus.MustRegister(OutboxEventCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(GatewayCallDuration)

	// Register gauges
	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(OutboxPendingGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// TrackGatewayCall measures outbound gateway call durations
func TrackGatewayCall(provider, operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		GatewayCallDuration.With(prometheus.Labels{
			"provider":  provider,
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			// Record metrics
			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication or authorization error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordTenantOperation records a tenant operation
func RecordTenantOperation(operation string) {
	TenantOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordGatewaySelection records which provider was chosen for a currency
func RecordGatewaySelection(provider, currency string) {
	GatewaySelectionCounter.With(prometheus.Labels{
		"provider": provider,
		"currency": currency,
	}).Inc()
}

// RecordWebhook records a webhook delivery outcome
func RecordWebhook(provider, outcome string) {
	WebhookCounter.With(prometheus.Labels{
		"provider": provider,
		"outcome":  outcome,
	}).Inc()
}

// RecordCounterOperation records an unread-counter operation
func RecordCounterOperation(operation string) {
	CounterOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordOutboxEvent records an outbox dispatch outcome
func RecordOutboxEvent(eventType, outcome string) {
	OutboxEventCounter.With(prometheus.Labels{
		"type":    eventType,
		"outcome": outcome,
	}).Inc()
}
