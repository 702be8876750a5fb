package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubsync_http_requests_total",
			Help: "Total number of HTTP requests processed by the local API.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubsync_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	channelConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clubsync_channel_connected",
			Help: "1 while the upstream channel is connected, 0 otherwise.",
		},
	)
	channelReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clubsync_channel_reconnects_total",
			Help: "Total number of upstream reconnection attempts.",
		},
	)
	pushEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubsync_push_events_total",
			Help: "Total number of push events received, by type.",
		},
		[]string{"type"},
	)
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubsync_message_sends_total",
			Help: "Total number of optimistic message sends, by outcome.",
		},
		[]string{"outcome"},
	)
	alertsVisible = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clubsync_alerts_visible",
			Help: "Number of alerts currently surfaced after dismissal filtering.",
		},
	)
	dismissalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clubsync_alert_dismissals_total",
			Help: "Total number of alert dismissals recorded.",
		},
	)
	modalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubsync_modal_requests_total",
			Help: "Total number of modal requests, by outcome.",
		},
		[]string{"kind", "outcome"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clubsync_ui_ws_active_connections",
			Help: "Number of attached UI websocket consumers.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubsync_ui_ws_events_total",
			Help: "Total number of UI websocket events.",
		},
		[]string{"event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clubsync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		channelConnected,
		channelReconnectsTotal,
		pushEventsTotal,
		sendsTotal,
		alertsVisible,
		dismissalsTotal,
		modalRequestsTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func SetChannelConnected(connected bool) {
	if connected {
		channelConnected.Set(1)
		return
	}
	channelConnected.Set(0)
}

func IncReconnect() {
	channelReconnectsTotal.Inc()
}

func IncPushEvent(eventType string) {
	pushEventsTotal.WithLabelValues(eventType).Inc()
}

func IncSend(outcome string) {
	sendsTotal.WithLabelValues(outcome).Inc()
}

func SetAlertsVisible(n int) {
	alertsVisible.Set(float64(n))
}

func IncDismissal() {
	dismissalsTotal.Inc()
}

func IncModalRequest(kind, outcome string) {
	modalRequestsTotal.WithLabelValues(kind, outcome).Inc()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
