package attribute

import "slices"

// Climate wire property names.
const (
	WireMode              = "vivo_std_mode"
	WireTemperature       = "vivo_std_temperature"
	WireWindSpeed         = "vivo_std_wind_speed"
	WireSwingVertical     = "vivo_std_wind_swing_up_down"
	WireSwingHorizontal   = "vivo_std_wind_swing_left_right"
	WireIndoorTemperature = "vivo_std_indoor_temperature"
	WireIndoorHumidity    = "vivo_std_indoor_humidity"
)

// Climate supported_features bits.
const (
	climateFeatureTargetTmp = 1
	climateFeatureHumidity  = 4
	climateFeatureFanMode   = 8
	climateFeatureSwingMode = 32
)

// Climate host attribute names. The two swing axes and hvac_mode are
// pseudo attributes filled by Calibrate.
const (
	hostHVACMode           = "hvac_mode"
	hostHVACModes          = "hvac_modes"
	hostTemperature        = "temperature"
	hostMinTemp            = "min_temp"
	hostMaxTemp            = "max_temp"
	hostTargetTempStep     = "target_temp_step"
	hostFanMode            = "fan_mode"
	hostFanModes           = "fan_modes"
	hostSwingMode          = "swing_mode"
	hostSwingModes         = "swing_modes"
	hostSwingVertical      = "swing_mode_vertical"
	hostSwingHorizontal    = "swing_mode_horizontal"
	hostCurrentTemperature = "current_temperature"
	hostCurrentHumidity    = "current_humidity"
	hostMinHumidity        = "min_humidity"
	hostMaxHumidity        = "max_humidity"
)

// Host swing mode values.
const (
	SwingOff        = "off"
	SwingVertical   = "vertical"
	SwingHorizontal = "horizontal"
	SwingBoth       = "both"
)

// Climate defaults when the entity does not report limits (°C / %).
const (
	defaultClimateMinTemp  = 16
	defaultClimateMaxTemp  = 32
	defaultClimateTempStep = 1
	defaultMinHumidity     = 1
	defaultMaxHumidity     = 100
)

var hvacModeTable = enumTable{
	{host: "cool", wire: "cool"},
	{host: "heat", wire: "heat"},
	{host: "auto", wire: "auto"},
	{host: "heat_cool", wire: "heat_cool"},
	{host: "dry", wire: "dry"},
	{host: "fan_only", wire: "fan"},
}

var climateFanTable = enumTable{
	{host: "auto", wire: "auto"},
	{host: "low", wire: "low"},
	{host: "medium", wire: "middle"},
	{host: "high", wire: "high"},
	{host: "quiet", wire: "mute"},
	{host: "turbo", wire: "strong"},
}

var swingValues = []string{WireOff, WireOn}

type climateConverter struct{}

var climateTable = []PropertyDescriptor{
	{
		WireName:   WirePower,
		HostName:   HostPower,
		HostToWire: onOffToWire,
		WireToHost: onOffToHost(PlatformClimate),
	},
	{
		WireName:   WireMode,
		HostName:   hostHVACMode,
		HostToWire: enumToWire(hvacModeTable),
		WireToHost: enumToHost(hvacModeTable, PlatformClimate, "set_hvac_mode", hostHVACMode),
	},
	{
		WireName:   WireTemperature,
		HostName:   hostTemperature,
		HostToWire: celsiusToWire,
		WireToHost: setTemperature(PlatformClimate),
	},
	{
		WireName:   WireWindSpeed,
		HostName:   hostFanMode,
		HostToWire: enumToWire(climateFanTable),
		WireToHost: enumToHost(climateFanTable, PlatformClimate, "set_fan_mode", hostFanMode),
	},
	{
		WireName:   WireSwingVertical,
		HostName:   hostSwingVertical,
		HostToWire: swingAxisToWire(SwingVertical),
		WireToHost: swingAxisToHost(SwingVertical),
	},
	{
		WireName:   WireSwingHorizontal,
		HostName:   hostSwingHorizontal,
		HostToWire: swingAxisToWire(SwingHorizontal),
		WireToHost: swingAxisToHost(SwingHorizontal),
	},
	{
		WireName:   WireIndoorTemperature,
		HostName:   hostCurrentTemperature,
		HostToWire: celsiusToWire,
	},
	{
		WireName:   WireIndoorHumidity,
		HostName:   hostCurrentHumidity,
		HostToWire: roundToWire,
	},
}

func (climateConverter) Category() DeviceCategory { return CategoryClimate }

func (climateConverter) Properties(DeviceContext) []PropertyDescriptor { return climateTable }

func (climateConverter) Model(dc DeviceContext) []PropertyDescriptor {
	props := []PropertyDescriptor{find(climateTable, WirePower)}

	if modes := hvacModeTable.wireValues(dc.stringList(hostHVACModes), StateOff); len(modes) > 0 {
		props = append(props, withValues(find(climateTable, WireMode), modes))
	}
	if dc.Supports(climateFeatureTargetTmp) {
		lo, hi := temperatureRange(dc, hostMinTemp, hostMaxTemp, defaultClimateMinTemp, defaultClimateMaxTemp)
		step := dc.floatAttr(hostTargetTempStep, defaultClimateTempStep)
		props = append(props, withRange(find(climateTable, WireTemperature), lo, hi, step))
	}
	if dc.Supports(climateFeatureFanMode) {
		if speeds := climateFanTable.wireValues(dc.stringList(hostFanModes)); len(speeds) > 0 {
			props = append(props, withValues(find(climateTable, WireWindSpeed), speeds))
		}
	}
	if dc.Supports(climateFeatureSwingMode) {
		swingModes := dc.stringList(hostSwingModes)
		if slices.Contains(swingModes, SwingVertical) {
			props = append(props, withValues(find(climateTable, WireSwingVertical), swingValues))
		}
		if slices.Contains(swingModes, SwingHorizontal) {
			props = append(props, withValues(find(climateTable, WireSwingHorizontal), swingValues))
		}
	}
	if dc.Attr(hostCurrentTemperature) != nil {
		props = append(props, find(climateTable, WireIndoorTemperature))
	}
	if dc.Supports(climateFeatureHumidity) {
		lo := dc.floatAttr(hostMinHumidity, defaultMinHumidity)
		hi := dc.floatAttr(hostMaxHumidity, defaultMaxHumidity)
		props = append(props, withRange(find(climateTable, WireIndoorHumidity), lo, hi, 1))
	}
	return props
}

// Calibrate splits swing_mode into its two axes and reports the state as
// the hvac mode when it changed.
func (climateConverter) Calibrate(attrs map[string]any, newState, oldState string, flush bool) {
	calibratePower(attrs, newState, oldState, flush)
	if newState != "" && newState != StateUnavailable && (flush || newState != oldState) {
		attrs[hostHVACMode] = newState
	}
	if v, present := attrs[hostSwingMode]; present {
		mode, _ := v.(string)
		if mode == "" {
			mode = SwingOff
		}
		attrs[hostSwingVertical] = mode
		attrs[hostSwingHorizontal] = mode
	}
}

// swingAxisToWire reports whether one axis is active in a four-state host
// swing mode. Axes the device does not support are skipped.
func swingAxisToWire(axis string) HostToWireFunc {
	return func(dc DeviceContext, v any) (any, bool) {
		mode, ok := v.(string)
		if !ok {
			return nil, false
		}
		if !slices.Contains(dc.stringList(hostSwingModes), axis) {
			return nil, false
		}
		switch mode {
		case axis, SwingBoth:
			return WireOn, true
		case SwingOff, otherAxis(axis):
			return WireOff, true
		default:
			return nil, false
		}
	}
}

// swingAxisToHost switches one axis on or off while preserving the other.
// Axes the device does not support are skipped.
func swingAxisToHost(axis string) WireToHostFunc {
	return func(dc DeviceContext, v any) (*ServiceCall, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		if !slices.Contains(dc.stringList(hostSwingModes), axis) {
			return nil, false
		}
		current, _ := dc.Attr(hostSwingMode).(string)
		mode, ok := ComposeSwing(current, axis, s == WireOn)
		if !ok || (s != WireOn && s != WireOff) {
			return nil, false
		}
		return newCall(PlatformClimate, "set_swing_mode", dc.EntityID).with(hostSwingMode, mode), true
	}
}

// ComposeSwing computes the host swing mode after switching one axis.
//
// Parameters:
//   - current: Current host swing mode ("off", "vertical", "horizontal", "both")
//   - axis: SwingVertical or SwingHorizontal
//   - on: Desired state of that axis
//
// Returns:
//   - string: Resulting host swing mode
//   - bool: false if axis is not a swing axis
//
// Example:
//
//	ComposeSwing("both", SwingVertical, false) // "horizontal"
//	ComposeSwing("horizontal", SwingVertical, true) // "both"
func ComposeSwing(current, axis string, on bool) (string, bool) {
	if axis != SwingVertical && axis != SwingHorizontal {
		return "", false
	}
	other := otherAxis(axis)
	otherActive := current == SwingBoth || current == other
	switch {
	case on && otherActive:
		return SwingBoth, true
	case on:
		return axis, true
	case otherActive:
		return other, true
	default:
		return SwingOff, true
	}
}

func otherAxis(axis string) string {
	if axis == SwingVertical {
		return SwingHorizontal
	}
	return SwingVertical
}
