package coordinator

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vhomebridge",
			Subsystem: "coordinator",
			Name:      "uploads_total",
			Help:      "Property uploads by kind and result.",
		},
		[]string{"kind", "result"},
	)

	serviceCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vhomebridge",
			Subsystem: "coordinator",
			Name:      "service_calls_total",
			Help:      "Host service calls issued for cloud commands.",
		},
		[]string{"domain", "result"},
	)

	registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vhomebridge",
			Subsystem: "coordinator",
			Name:      "registrations_total",
			Help:      "Sub-device registration rounds by reason and result.",
		},
		[]string{"reason", "result"},
	)

	registeredDevices = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vhomebridge",
		Subsystem: "coordinator",
		Name:      "registered_devices",
		Help:      "Devices in the registered set.",
	})

	droppedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vhomebridge",
		Subsystem: "coordinator",
		Name:      "dropped_events_total",
		Help:      "Host events dropped because the inbox was full.",
	})
)

func init() {
	prometheus.MustRegister(uploadsTotal, serviceCallsTotal, registrationsTotal, registeredDevices, droppedEvents)
}
