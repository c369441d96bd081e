package validation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationsTotal counts finished validations by verdict
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opml_comb_validations_total",
			Help: "Total number of feed validations",
		},
		[]string{"status"},
	)

	// ValidationDuration tracks wall time per validation, retries included
	ValidationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opml_comb_validation_duration_seconds",
			Help:    "Feed validation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	ValidationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "opml_comb_validation_attempts",
			Help:    "Number of requests issued per feed validation",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
)

func observe(result Result, elapsed time.Duration) {
	ValidationsTotal.WithLabelValues(string(result.Status)).Inc()
	ValidationDuration.WithLabelValues(string(result.Status)).Observe(elapsed.Seconds())
	ValidationAttempts.Observe(float64(result.Attempts))
}
