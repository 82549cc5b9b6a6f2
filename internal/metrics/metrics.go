// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SalesIngested counts normalized sales loaded into the warehouse.
	SalesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fudo_sales_ingested_total",
		Help: "Normalized sales loaded into the warehouse.",
	})

	// FetchErrors counts failed fetches against the Fudo API.
	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fudo_fetch_errors_total",
		Help: "Failed fetches against the Fudo API.",
	})

	// RefreshJobs counts refresh jobs by terminal status.
	RefreshJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fudo_refresh_jobs_total",
		Help: "Refresh jobs by terminal status.",
	}, []string{"status"})

	// HTTPRequests counts served requests by path and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fudo_http_requests_total",
		Help: "Served HTTP requests by path and status.",
	}, []string{"path", "status"})

	// HTTPDuration observes request latency per path.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fudo_http_request_duration_seconds",
		Help:    "HTTP request latency by path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
