package connector

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK      = "ok"
	resultError   = "error"
	resultTimeout = "timeout"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vhomebridge",
			Subsystem: "connector",
			Name:      "requests_total",
			Help:      "Connector requests by operation and result.",
		},
		[]string{"op", "result"},
	)

	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vhomebridge",
		Subsystem: "connector",
		Name:      "dropped_callbacks_total",
		Help:      "Callbacks dropped because the inbound queue was full.",
	})
)

func init() { prometheus.MustRegister(requestsTotal, droppedTotal) }
