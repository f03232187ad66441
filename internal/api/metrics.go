package api

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "Total number of storefront API requests by path and status class",
		},
		[]string{"path", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_api_request_duration_seconds",
			Help:    "Duration of storefront API requests by path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
}

// metricPath replaces variable path segments (product and order ids) so the
// path label stays low-cardinality.
func metricPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/cart/update/"):
		return "/cart/update/{productId}"
	case strings.HasPrefix(path, "/cart/remove/"):
		return "/cart/remove/{productId}"
	case strings.HasPrefix(path, "/orders/") && path != "/orders/mine":
		return "/orders/{id}"
	default:
		return path
	}
}

type requestTimer struct {
	path  string
	start time.Time
}

func startRequestTimer(path string) requestTimer {
	return requestTimer{path: path, start: time.Now()}
}

// observe records the request outcome. status is a class like "2xx", "5xx"
// or "error" for requests that got no response.
func (t requestTimer) observe(status string) {
	apiRequestsTotal.WithLabelValues(t.path, status).Inc()
	apiRequestDuration.WithLabelValues(t.path).Observe(time.Since(t.start).Seconds())
}
