package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the Prometheus HTTP handler for all promauto-registered
// metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
