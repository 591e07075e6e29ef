package influxdb

import "errors"

// Errors returned by Client. Check with errors.Is.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled means influxdb.enabled is false in config.yaml.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
