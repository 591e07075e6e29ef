package attribute

import "strconv"

// Sensor wire property names.
const (
	WireSensorValue = "vivo_std_sensor_value"
	WirePersonMove  = "vivo_std_person_move"
	WireHumidity    = "vivo_std_humidity"
	WireBattery     = "vivo_std_battery"
	WireIlluminance = "vivo_std_illuminance"
	WireOnOff       = "vivo_std_onoff"
)

// HostState is the pseudo host attribute carrying a sensor's reading.
const HostState = "state"

const hostBatteryLevel = "battery_level"

// Sensor and binary sensor device classes that are bridged.
const (
	SensorClassEnum        = "enum"
	SensorClassTemperature = "temperature"
	SensorClassHumidity    = "humidity"
	SensorClassBattery     = "battery"
	SensorClassIlluminance = "illuminance"
	SensorClassLight       = "light"
	SensorClassOccupancy   = "occupancy"
	SensorClassMotion      = "motion"
	SensorClassMoving      = "moving"
	SensorClassDoor        = "door"
	SensorClassGarageDoor  = "garage_door"
	SensorClassOpening     = "opening"
)

type sensorConverter struct{}

// sensorReadings maps a device class to the descriptor for its state.
var sensorReadings = map[string]PropertyDescriptor{
	SensorClassEnum:        {WireName: WireSensorValue, HostName: HostState, HostToWire: passString},
	SensorClassTemperature: {WireName: WireTemperature, HostName: HostState, HostToWire: sensorTemperature},
	SensorClassHumidity:    {WireName: WireHumidity, HostName: HostState, HostToWire: passNumber},
	SensorClassBattery:     {WireName: WireBattery, HostName: HostState, HostToWire: passNumber},
	SensorClassIlluminance: {WireName: WireIlluminance, HostName: HostState, HostToWire: passNumber},
	SensorClassLight:       {WireName: WireIlluminance, HostName: HostState, HostToWire: passString},
	SensorClassOccupancy:   {WireName: WirePersonMove, HostName: HostState, HostToWire: personMove},
	SensorClassMotion:      {WireName: WirePersonMove, HostName: HostState, HostToWire: personMove},
	SensorClassMoving:      {WireName: WirePersonMove, HostName: HostState, HostToWire: personMove},
	SensorClassDoor:        {WireName: WireOnOff, HostName: HostState, HostToWire: passString},
	SensorClassGarageDoor:  {WireName: WireOnOff, HostName: HostState, HostToWire: passString},
	SensorClassOpening:     {WireName: WireOnOff, HostName: HostState, HostToWire: passString},
}

var batteryLevel = PropertyDescriptor{WireName: WireBattery, HostName: hostBatteryLevel, HostToWire: passNumber}

func (sensorConverter) Category() DeviceCategory { return CategorySensor }

// Properties returns the reading for the sensor's device class and its
// battery level.
func (sensorConverter) Properties(dc DeviceContext) []PropertyDescriptor {
	var props []PropertyDescriptor
	class := dc.DeviceClass()
	if pd, ok := sensorReadings[class]; ok {
		props = append(props, pd)
	}
	if class != SensorClassBattery {
		props = append(props, batteryLevel)
	}
	return props
}

// Model advertises the battery level alongside the reading. Sensors of an
// unknown device class are not modelled.
func (sensorConverter) Model(dc DeviceContext) []PropertyDescriptor {
	pd, ok := sensorReadings[dc.DeviceClass()]
	if !ok {
		return nil
	}
	if pd.WireName == WireBattery {
		return []PropertyDescriptor{pd}
	}
	return []PropertyDescriptor{batteryLevel, pd}
}

func (sensorConverter) Calibrate(attrs map[string]any, newState, oldState string, flush bool) {
	if newState == "" || newState == StateUnavailable {
		return
	}
	if flush || newState != oldState {
		attrs[HostState] = newState
	}
}

func passString(_ DeviceContext, v any) (any, bool) {
	s, ok := v.(string)
	return s, ok
}

// personMove reports on/off occupancy as a boolean.
func personMove(_ DeviceContext, v any) (any, bool) {
	switch v {
	case WireOn:
		return true, true
	case WireOff:
		return false, true
	default:
		return nil, false
	}
}

// sensorTemperature reports a temperature reading in °C with one decimal.
func sensorTemperature(dc DeviceContext, v any) (any, bool) {
	f, ok := toFloat(v)
	if !ok {
		return nil, false
	}
	return strconv.FormatFloat(ToCelsius(f, dc.Unit), 'f', 1, 64), true
}
