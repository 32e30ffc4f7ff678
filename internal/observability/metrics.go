package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furniplan_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "furniplan_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	inboundMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_inbound_messages_total",
			Help: "Inbound WhatsApp messages by outcome.",
		},
		[]string{"outcome"},
	)
	forwardTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_forward_total",
			Help: "Outbound forwards to WhatsApp by outcome.",
		},
		[]string{"outcome"},
	)
	forwardDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_forward_duration_seconds",
			Help:    "Time spent forwarding a message to WhatsApp.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "furniplan_ws_active_connections",
			Help: "Number of active chat websocket connections.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "furniplan_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		inboundMessagesTotal,
		forwardTotal,
		forwardDuration,
		wsActiveConnections,
		amqpPublishErrorsTotal,
	)
}

const (
	OutcomeStored    = "stored"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeSent      = "sent"
)

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler exposes the default registry.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func IncInbound(outcome string) {
	inboundMessagesTotal.WithLabelValues(outcome).Inc()
}

func ObserveForward(outcome string, d time.Duration) {
	forwardTotal.WithLabelValues(outcome).Inc()
	forwardDuration.Observe(d.Seconds())
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
