package attribute

import (
	"encoding/json"
	"slices"
)

// Light wire property names.
const (
	WirePower            = "vivo_std_power"
	WireBrightness       = "vivo_std_brightness"
	WireColorRGB         = "vivo_std_color_rgb"
	WireLightTemperature = "vivo_std_light_temperature"
)

// Light host attribute names.
const (
	hostBrightness    = "brightness"
	hostRGBColor      = "rgb_color"
	hostColorTempK    = "color_temp_kelvin"
	hostColorModes    = "supported_color_modes"
	hostMinColorTempK = "min_color_temp_kelvin"
	hostMaxColorTempK = "max_color_temp_kelvin"
)

// Colour temperature defaults in kelvin when the light does not report them.
const (
	defaultMinColorTempK = 2000
	defaultMaxColorTempK = 6500
)

// Colour modes that imply dimming, full colour and tunable white.
var (
	dimmableColorModes = []string{"brightness", "color_temp", "hs", "xy", "rgb", "rgbw", "rgbww", "white"}
	rgbColorModes      = []string{"hs", "xy", "rgb", "rgbw", "rgbww"}
	tempColorModes     = []string{"color_temp"}
)

type lightConverter struct{}

var lightTable = []PropertyDescriptor{
	{
		WireName:   WirePower,
		HostName:   HostPower,
		HostToWire: onOffToWire,
		WireToHost: onOffToHost(PlatformLight),
	},
	{
		WireName: WireBrightness,
		HostName: hostBrightness,
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
			return newCall(PlatformLight, "turn_on", dc.EntityID).with(hostBrightness, PercentToHost(f)), true
		},
	},
	{
		WireName:   WireColorRGB,
		HostName:   hostRGBColor,
		HostToWire: rgbToWire,
		WireToHost: func(dc DeviceContext, v any) (*ServiceCall, bool) {
			rgb, ok := parseRGB(v)
			if !ok {
				return nil, false
			}
			return newCall(PlatformLight, "turn_on", dc.EntityID).with(hostRGBColor, rgb), true
		},
	},
	{
		WireName:   WireLightTemperature,
		HostName:   hostColorTempK,
		HostToWire: roundToWire,
		WireToHost: func(dc DeviceContext, v any) (*ServiceCall, bool) {
			f, ok := toFloat(v)
			if !ok {
				return nil, false
			}
			return newCall(PlatformLight, "turn_on", dc.EntityID).with(hostColorTempK, roundInt(f)), true
		},
	},
}

func (lightConverter) Category() DeviceCategory { return CategoryLight }

func (lightConverter) Properties(DeviceContext) []PropertyDescriptor { return lightTable }

// Model is driven by supported_color_modes.
func (lightConverter) Model(dc DeviceContext) []PropertyDescriptor {
	modes := dc.stringList(hostColorModes)
	props := []PropertyDescriptor{find(lightTable, WirePower)}

	if anyOf(modes, dimmableColorModes) {
		props = append(props, withRange(find(lightTable, WireBrightness), 0, wirePercentMax, 1))
	}
	if anyOf(modes, rgbColorModes) {
		props = append(props, find(lightTable, WireColorRGB))
	}
	if anyOf(modes, tempColorModes) {
		lo := dc.floatAttr(hostMinColorTempK, defaultMinColorTempK)
		hi := dc.floatAttr(hostMaxColorTempK, defaultMaxColorTempK)
		props = append(props, withRange(find(lightTable, WireLightTemperature), lo, hi, 1))
	}
	return props
}

func (lightConverter) Calibrate(attrs map[string]any, newState, oldState string, flush bool) {
	calibratePower(attrs, newState, oldState, flush)
}

func anyOf(have, want []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

// rgbToWire reports an [r, g, b] host triple as a list of ints.
func rgbToWire(_ DeviceContext, v any) (any, bool) {
	rgb, ok := parseRGB(v)
	if !ok {
		return nil, false
	}
	return rgb, true
}

// parseRGB accepts an [r, g, b] list or its JSON string encoding.
func parseRGB(v any) ([]int, bool) {
	var items []any
	switch t := v.(type) {
	case string:
		if err := json.Unmarshal([]byte(t), &items); err != nil {
			return nil, false
		}
	case []any:
		items = t
	case []int:
		if len(t) != 3 {
			return nil, false
		}
		return []int{clampInt(t[0], 0, 255), clampInt(t[1], 0, 255), clampInt(t[2], 0, 255)}, true
	default:
		return nil, false
	}
	if len(items) != 3 {
		return nil, false
	}
	rgb := make([]int, 3)
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, false
		}
		rgb[i] = clampInt(roundInt(f), 0, 255)
	}
	return rgb, true
}
