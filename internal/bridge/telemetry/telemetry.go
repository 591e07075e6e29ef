// Package telemetry records the bridge's produced events as time-series
// points.
//
// Sink implements coordinator.EventSink over a Writer; in production the
// Writer is the InfluxDB client. Points are queued by the client's batching
// write API, so Publish never blocks the coordinator loop.
//
// Mirror is a second EventSink that republishes every event as JSON on the
// bridge's MQTT event topics.
package telemetry

import (
	"github.com/nerrad567/vhome-bridge/internal/bridge/coordinator"
	"github.com/nerrad567/vhome-bridge/internal/bridge/reconnect"
)

// Writer is the subset of the InfluxDB client the sink writes through.
// *influxdb.Client satisfies it.
type Writer interface {
	WriteDeviceState(logicalID, category string, props map[string]any, online bool)
	WriteConnectionPhase(bridgeName, phase, reason string)
	WriteBridgeEvent(event string, count int)
}

// Sink writes coordinator events to a Writer.
//
// Thread Safety: safe for concurrent use if the Writer is.
type Sink struct {
	w Writer
}

// NewSink creates a telemetry sink.
func NewSink(w Writer) *Sink {
	return &Sink{w: w}
}

// Publish implements coordinator.EventSink.
func (s *Sink) Publish(e coordinator.Event) {
	switch ev := e.(type) {
	case coordinator.DeviceStateChanged:
		s.w.WriteDeviceState(ev.LogicalID, ev.Platform, ev.Props, ev.Online)

	case coordinator.BridgeOnline:
		s.w.WriteConnectionPhase(ev.Name, reconnect.PhaseConnected.String(), "established")
		s.w.WriteBridgeEvent(ev.Type(), ev.Devices)

	case coordinator.ReconnectRequest:
		s.w.WriteConnectionPhase(ev.Params.Name, reconnect.PhaseReconnecting.String(), ev.Reason)

	case coordinator.DevicesAdded:
		s.w.WriteBridgeEvent(ev.Type(), len(ev.LogicalIDs))

	case coordinator.DevicesRemoved:
		s.w.WriteBridgeEvent(ev.Type(), len(ev.LogicalIDs))

	case coordinator.RegistrationResult:
		s.w.WriteBridgeEvent(ev.Type(), len(ev.Succeeded))

	case coordinator.AddableDevices:
		s.w.WriteBridgeEvent(ev.Type(), len(ev.Devices))
	}
}

