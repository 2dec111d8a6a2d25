package cycle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total polling cycles by outcome",
		},
		[]string{"status"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slotwatch",
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Polling cycle duration",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func recordCycle(status string) {
	cyclesTotal.WithLabelValues(status).Inc()
}

func observeCycleDuration(d time.Duration) {
	cycleDuration.Observe(d.Seconds())
}
