package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwatch",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total availability notifications by outcome",
		},
		[]string{"status"},
	)

	dispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slotwatch",
			Subsystem: "notify",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to dispatch one availability batch to all subscribers",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

func recordNotificationSent(status string) {
	notificationsSent.WithLabelValues(status).Inc()
}

func observeDispatchDuration(d time.Duration) {
	dispatchDuration.Observe(d.Seconds())
}
