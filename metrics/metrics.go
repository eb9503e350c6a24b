package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan item outcomes.
const (
	OutcomeKept    = "kept"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	scanItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmarket_scan_items_total",
			Help: "Ids visited by chain scans, by outcome",
		},
		[]string{"scan", "outcome"},
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketmarket_scan_duration_seconds",
			Help:    "Duration of one chain scan",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"scan"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmarket_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketmarket_notifications_total",
			Help: "Monitor notifications by channel and status",
		},
		[]string{"channel", "status"},
	)
)

func ScanItem(scan, outcome string) {
	scanItems.WithLabelValues(scan, outcome).Inc()
}

func ScanDone(scan string, start time.Time) {
	scanDuration.WithLabelValues(scan).Observe(time.Since(start).Seconds())
}

func Notification(channel string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	notifications.WithLabelValues(channel, status).Inc()
}

// Middleware counts requests by matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
