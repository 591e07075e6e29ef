package attribute

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Temperature units as reported by the host.
const (
	UnitCelsius    = "°C"
	UnitFahrenheit = "°F"
	UnitKelvin     = "K"
)

// Percentage ranges.
const (
	hostPercentMax = 255
	wirePercentMax = 100
)

// kelvinOffset is the difference between K and °C.
const kelvinOffset = 273.15

// ToCelsius converts a host temperature to °C.
//
// Parameters:
//   - v: Temperature in the host unit
//   - unit: "°F", "K" or anything else for °C
//
// Returns:
//   - float64: Temperature in °C (unrounded)
func ToCelsius(v float64, unit string) float64 {
	switch unit {
	case UnitFahrenheit:
		return (v - 32) * 5 / 9
	case UnitKelvin:
		return v - kelvinOffset
	default:
		return v
	}
}

// FromCelsius converts a °C temperature to the host unit.
func FromCelsius(v float64, unit string) float64 {
	switch unit {
	case UnitFahrenheit:
		return v*9/5 + 32
	case UnitKelvin:
		return v + kelvinOffset
	default:
		return v
	}
}

// PercentToWire converts a 0–255 host level to a 0–100 wire percentage
// using round(v×100/255). Both input and output are clamped.
func PercentToWire(v float64) int {
	v = clampFloat(v, 0, hostPercentMax)
	return clampInt(roundInt(v*wirePercentMax/hostPercentMax), 0, wirePercentMax)
}

// PercentToHost converts a 0–100 wire percentage to a 0–255 host level
// using round(v×255/100). Both input and output are clamped.
func PercentToHost(v float64) int {
	v = clampFloat(v, 0, wirePercentMax)
	return clampInt(roundInt(v*hostPercentMax/wirePercentMax), 0, hostPercentMax)
}

// roundInt rounds half away from zero.
func roundInt(v float64) int {
	return int(math.Round(v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// toFloat extracts a number from a decoded JSON value or host attribute.
// Numeric strings are accepted; booleans are not.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// enumPair is one host↔wire enumeration mapping.
type enumPair struct {
	host string
	wire string
}

// enumTable is a static bidirectional lookup. Each host and wire value
// appears at most once.
type enumTable []enumPair

func (t enumTable) toWire(host string) (string, bool) {
	for _, p := range t {
		if p.host == host {
			return p.wire, true
		}
	}
	return "", false
}

func (t enumTable) toHost(wire string) (string, bool) {
	for _, p := range t {
		if p.wire == wire {
			return p.host, true
		}
	}
	return "", false
}

// wireValues maps the host's supported values to wire values, in host
// order, dropping unmapped and excluded host values.
func (t enumTable) wireValues(hostValues []string, exclude ...string) []string {
	out := make([]string, 0, len(hostValues))
	for _, h := range hostValues {
		skip := false
		for _, ex := range exclude {
			if h == ex {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if w, ok := t.toWire(h); ok {
			out = append(out, w)
		}
	}
	return out
}

// enumToWire builds a host→wire converter for an enumeration.
func enumToWire(t enumTable) HostToWireFunc {
	return func(_ DeviceContext, v any) (any, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		w, ok := t.toWire(s)
		if !ok {
			return nil, false
		}
		return w, true
	}
}

// enumToHost builds a wire→host converter that calls domain.service with
// the mapped value under key.
func enumToHost(t enumTable, domain, service, key string) WireToHostFunc {
	return func(dc DeviceContext, v any) (*ServiceCall, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		h, ok := t.toHost(s)
		if !ok {
			return nil, false
		}
		return newCall(domain, service, dc.EntityID).with(key, h), true
	}
}

// celsiusToWire converts a host temperature in dc.Unit to whole °C.
func celsiusToWire(dc DeviceContext, v any) (any, bool) {
	f, ok := toFloat(v)
	if !ok {
		return nil, false
	}
	return roundInt(ToCelsius(f, dc.Unit)), true
}

// roundToWire reports a numeric host value as a whole number.
func roundToWire(_ DeviceContext, v any) (any, bool) {
	f, ok := toFloat(v)
	if !ok {
		return nil, false
	}
	return roundInt(f), true
}

// passNumber reports a numeric host value unchanged.
func passNumber(_ DeviceContext, v any) (any, bool) {
	f, ok := toFloat(v)
	if !ok {
		return nil, false
	}
	if f == math.Trunc(f) {
		return int(f), true
	}
	return f, true
}

// setTemperature builds a set_temperature call converting °C back to dc.Unit.
func setTemperature(domain string) WireToHostFunc {
	return func(dc DeviceContext, v any) (*ServiceCall, bool) {
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		return newCall(domain, "set_temperature", dc.EntityID).
			with("temperature", roundInt(FromCelsius(f, dc.Unit))), true
	}
}

// temperatureRange converts a host min/max pair into a °C range.
// Missing limits fall back to the given °C defaults.
func temperatureRange(dc DeviceContext, minKey, maxKey string, defMin, defMax float64) (lo, hi float64) {
	lo = dc.floatAttr(minKey, FromCelsius(defMin, dc.Unit))
	hi = dc.floatAttr(maxKey, FromCelsius(defMax, dc.Unit))
	return float64(roundInt(ToCelsius(lo, dc.Unit))), float64(roundInt(ToCelsius(hi, dc.Unit)))
}
