// Package influxdb provides InfluxDB connectivity for the vhome bridge.
//
// The bridge optionally records a time series of what it uploads:
//   - Device wire-property snapshots (device_state)
//   - Cloud connection phase transitions (bridge_connection)
//   - Produced bridge events (bridge_event)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("01J8.light", "light", props, true)
//
// All methods are safe for concurrent use. Writes are batched by the
// library and failures arrive on the SetOnError callback.
package influxdb
