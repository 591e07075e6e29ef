package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementDeviceState = "device_state"
	MeasurementConnection  = "bridge_connection"
	MeasurementBridgeEvent = "bridge_event"
)

// WriteDeviceState records one uploaded wire-property snapshot. Numbers
// and booleans are stored as-is and anything else as a string; the online
// flag always wins over an "online" prop.
//
// Parameters:
//   - logicalID: The device's cloud-facing logical id
//   - category: Device category (light, climate, ...)
//   - props: Wire properties as uploaded
//   - online: Liveness flag sent with the upload
//
// Example:
//
//	client.WriteDeviceState("01J8.light", "light",
//	    map[string]any{"vivo_std_power": "on", "vivo_std_brightness": 50}, true)
func (c *Client) WriteDeviceState(logicalID, category string, props map[string]any, online bool) {
	fields := make(map[string]any, len(props)+1)
	for k, v := range props {
		if k == "online" {
			continue
		}
		fields[k] = fieldValue(v)
	}
	fields["online"] = online

	c.writePoint(write.NewPoint(MeasurementDeviceState,
		map[string]string{"logical_id": logicalID, "category": category},
		fields, time.Now()))
}

// WriteConnectionPhase records a transition of the cloud connection state machine.
//
// Parameters:
//   - bridgeName: The bound bridge name (may be empty before pairing)
//   - phase: New phase (disconnected, connecting, connected, reconnecting)
//   - reason: Why the transition happened
func (c *Client) WriteConnectionPhase(bridgeName, phase, reason string) {
	c.writePoint(write.NewPoint(MeasurementConnection,
		map[string]string{"bridge": bridgeName, "phase": phase},
		map[string]any{"reason": reason}, time.Now()))
}

// WriteBridgeEvent records a produced bridge event with the number of
// devices it concerned.
//
// Parameters:
//   - event: Event name (devices_added, registration_result, ...)
//   - count: Number of devices carried by the event
func (c *Client) WriteBridgeEvent(event string, count int) {
	c.writePoint(write.NewPoint(MeasurementBridgeEvent,
		map[string]string{"event": event},
		map[string]any{"count": count}, time.Now()))
}

// fieldValue narrows a wire value to a type line protocol can store.
func fieldValue(v any) any {
	switch val := v.(type) {
	case bool, string, float64, float32, int, int64, int32, uint, uint64:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
