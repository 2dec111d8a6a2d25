package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "slotwatch",
		Subsystem: "telegram",
		Name:      "commands_total",
		Help:      "Total bot commands received by name",
	},
	[]string{"command"},
)

func recordCommand(cmd string) {
	commandsReceived.WithLabelValues(cmd).Inc()
}
