package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the registered metrics for scraping.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
