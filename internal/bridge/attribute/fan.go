package attribute

// Fan wire property names.
const (
	WireSwing     = "vivo_std_swing"
	WireSpeedGear = "vivo_std_speed_gear"
)

const (
	hostPreset    = "preset_mode"
	hostPresets   = "preset_modes"
	hostOscillate = "oscillating"
	hostFanSpeed  = "speed"
	hostSpeedStep = "speed_step"
)

// Fan supported_features bits.
const (
	fanFeatSpeed  = 1
	fanFeatOscill = 2
	fanFeatPreset = 8
)

const defaultFanStep = 1

var fanPresetTable = enumTable{
	{host: "normal", wire: "normal"},
	{host: "auto", wire: "auto"},
	{host: "sleep", wire: "sleep"},
	{host: "nature", wire: "natural"},
	{host: "smart", wire: "smart"},
	{host: "baby", wire: "baby"},
}

type fanConverter struct{}

var fanTable = []PropertyDescriptor{
	{
		WireName:   WirePower,
		HostName:   HostPower,
		HostToWire: onOffToWire,
		WireToHost: onOffToHost(PlatformFan),
	},
	{
		WireName:   WireMode,
		HostName:   hostPreset,
		HostToWire: enumToWire(fanPresetTable),
		WireToHost: enumToHost(fanPresetTable, PlatformFan, "set_preset_mode", hostPreset),
	},
	{
		WireName: WireSwing,
		HostName: hostOscillate,
		HostToWire: func(_ DeviceContext, v any) (any, bool) {
			on, ok := v.(bool)
			if !ok {
				return nil, false
			}
			if on {
				return WireOn, true
			}
			return WireOff, true
		},
		WireToHost: func(dc DeviceContext, v any) (*ServiceCall, bool) {
			s, ok := v.(string)
			if !ok || (s != WireOn && s != WireOff) {
				return nil, false
			}
			return newCall(PlatformFan, "oscillate", dc.EntityID).with(hostOscillate, s == WireOn), true
		},
	},
	{
		// Fan speed is a 0–255 level on the host and a 0–100 gear on the wire.
		WireName: WireSpeedGear,
		HostName: hostFanSpeed,
		HostToWire: func(_ DeviceContext, v any) (any, bool) {
			f, ok := toFloat(v)
			if !ok {
				return nil, false
			}
			return PercentToWire(f), true
		},
		WireToHost: func(dc DeviceContext, v any) (*ServiceCall, bool) {
			f, ok := toFloat(v)
			if !ok {
				return nil, false
			}
			return newCall(PlatformFan, "set_speed", dc.EntityID).with(hostFanSpeed, PercentToHost(f)), true
		},
	},
}

func (fanConverter) Category() DeviceCategory { return CategoryFan }

func (fanConverter) Properties(DeviceContext) []PropertyDescriptor { return fanTable }

func (fanConverter) Model(dc DeviceContext) []PropertyDescriptor {
	props := []PropertyDescriptor{find(fanTable, WirePower)}
	if dc.Supports(fanFeatSpeed) {
		step := dc.floatAttr(hostSpeedStep, defaultFanStep)
		props = append(props, withRange(find(fanTable, WireSpeedGear), 0, wirePercentMax, step))
	}
	if dc.Supports(fanFeatOscill) {
		props = append(props, withValues(find(fanTable, WireSwing), swingValues))
	}
	if dc.Supports(fanFeatPreset) {
		if modes := fanPresetTable.wireValues(dc.stringList(hostPresets)); len(modes) > 0 {
			props = append(props, withValues(find(fanTable, WireMode), modes))
		}
	}
	return props
}

func (fanConverter) Calibrate(attrs map[string]any, newState, oldState string, flush bool) {
	calibratePower(attrs, newState, oldState, flush)
}
