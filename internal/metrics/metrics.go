package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metric definitions for the exchange

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtb",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "handler", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rtb",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"method", "handler"},
	)

	// Auction domain metrics
	auctionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtb",
			Subsystem: "auction",
			Name:      "completed_total",
			Help:      "Total number of completed auctions",
		},
		[]string{"outcome"},
	)

	auctionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rtb",
			Subsystem: "auction",
			Name:      "duration_seconds",
			Help:      "Auction wall-clock duration",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100μs to ~400ms
		},
	)

	bidsGenerated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rtb",
			Subsystem: "auction",
			Name:      "bids_per_auction",
			Help:      "Number of bids generated per auction",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		},
	)

	winningPrice = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rtb",
			Subsystem: "auction",
			Name:      "winning_price_dollars",
			Help:      "Winning bid price distribution",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // $0.001 to ~$2
		},
	)

	// Attribution metrics
	trackingEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rtb",
			Subsystem: "tracking",
			Name:      "events_total",
			Help:      "Total number of attribution events",
		},
		[]string{"kind"},
	)
)

// Collector records auction engine metrics to Prometheus
type Collector struct{}

// NewCollector creates a Prometheus-backed metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordAuction(_ context.Context, won bool) {
	outcome := "no_winner"
	if won {
		outcome = "winner"
	}
	auctionsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAuctionDuration(_ context.Context, d time.Duration) {
	auctionDuration.Observe(d.Seconds())
}

func (c *Collector) RecordBidsGenerated(_ context.Context, count int) {
	bidsGenerated.Observe(float64(count))
}

func (c *Collector) RecordWinningPrice(_ context.Context, price decimal.Decimal) {
	winningPrice.Observe(price.InexactFloat64())
}

func (c *Collector) RecordTrackingEvent(_ context.Context, kind string) {
	trackingEvents.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentHandler wraps an HTTP handler with request metrics
func InstrumentHandler(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		handler(wrapped, r)

		duration := time.Since(start).Seconds()
		status := statusCodeClass(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, handlerName, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, handlerName).Observe(duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// statusCodeClass returns the status code class (2xx, 3xx, 4xx, 5xx)
func statusCodeClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
