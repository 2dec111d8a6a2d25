package provider

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "provider",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed availability fetches per service.",
		},
		[]string{"service_id"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slotwatch",
			Subsystem: "provider",
			Name:      "fetch_duration_seconds",
			Help:      "Availability fetch duration per service.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service_id"},
	)

	openDates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "slotwatch",
			Subsystem: "provider",
			Name:      "open_dates",
			Help:      "Number of open dates seen in the latest successful fetch per service.",
		},
		[]string{"service_id"},
	)
)

func recordFetchFailure(serviceID int64) {
	fetchFailures.WithLabelValues(strconv.FormatInt(serviceID, 10)).Inc()
}

func recordFetchSuccess(serviceID int64, dates int) {
	openDates.WithLabelValues(strconv.FormatInt(serviceID, 10)).Set(float64(dates))
}

func observeFetchDuration(serviceID int64, d time.Duration) {
	fetchDuration.WithLabelValues(strconv.FormatInt(serviceID, 10)).Observe(d.Seconds())
}
