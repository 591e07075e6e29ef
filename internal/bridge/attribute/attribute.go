package attribute

import (
	"encoding/json"
	"sort"
)

// HostPower is the pseudo host attribute carrying an entity's on/off state.
// Converters fill it from the entity state during calibration.
const HostPower = "power"

// Wire values shared by several categories.
const (
	WireOn  = "on"
	WireOff = "off"
)

// Host states that mean "not currently active".
const (
	StateOff         = "off"
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// Common attribute keys read from host entity attributes.
const (
	attrSupportedFeatures = "supported_features"
	attrDeviceClass       = "device_class"
	attrEntityID          = "entity_id"
)

// DeviceContext is the live host view of one entity that conversions and
// model building read from.
type DeviceContext struct {
	// EntityID is the host entity id, e.g. "light.desk".
	EntityID string

	// Platform is the host platform, e.g. "light".
	Platform string

	// State is the entity's current state string.
	State string

	// Attributes are the entity's current host attributes.
	Attributes map[string]any

	// Unit is the temperature unit host values are expressed in
	// ("°C", "°F" or "K"). Empty means °C.
	Unit string

	// Brand is the integration identifier of the backing device
	// (e.g. "webostv", "apple_tv"). Only media devices use it.
	Brand string
}

// Attr returns a host attribute, or nil if absent.
func (dc DeviceContext) Attr(name string) any {
	if dc.Attributes == nil {
		return nil
	}
	return dc.Attributes[name]
}

// Features returns the entity's supported_features bitmask.
func (dc DeviceContext) Features() int {
	v, ok := toFloat(dc.Attr(attrSupportedFeatures))
	if !ok {
		return 0
	}
	return int(v)
}

// Supports reports whether every bit in mask is set in supported_features.
func (dc DeviceContext) Supports(mask int) bool {
	return dc.Features()&mask == mask
}

// DeviceClass returns the entity's device_class attribute.
func (dc DeviceContext) DeviceClass() string {
	s, _ := dc.Attr(attrDeviceClass).(string)
	return s
}

// floatAttr returns a numeric attribute or def when it is absent or not numeric.
func (dc DeviceContext) floatAttr(name string, def float64) float64 {
	if v, ok := toFloat(dc.Attr(name)); ok {
		return v
	}
	return def
}

// stringList returns a list attribute as strings. Non-string members are skipped.
func (dc DeviceContext) stringList(name string) []string {
	switch v := dc.Attr(name).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ServiceCall is a deferred host service invocation. Converters only describe
// the call; the coordinator decides when to run it.
type ServiceCall struct {
	Domain  string         `json:"domain"`
	Service string         `json:"service"`
	Data    map[string]any `json:"data"`
}

// newCall creates a call targeting one entity.
func newCall(domain, service, entityID string) *ServiceCall {
	return &ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    map[string]any{attrEntityID: entityID},
	}
}

// with adds one data field and returns the call for chaining.
func (c *ServiceCall) with(key string, value any) *ServiceCall {
	c.Data[key] = value
	return c
}

// ValueRange is the numeric range advertised for a property.
// It is serialised as a [min, max, step] array.
type ValueRange struct {
	Min  float64
	Max  float64
	Step float64
}

// MarshalJSON encodes the range as [min, max, step].
func (r ValueRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{r.Min, r.Max, r.Step})
}

// UnmarshalJSON decodes a [min, max, step] array.
func (r *ValueRange) UnmarshalJSON(data []byte) error {
	var arr [3]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	r.Min, r.Max, r.Step = arr[0], arr[1], arr[2]
	return nil
}

// HostToWireFunc converts one host attribute value. ok=false means the value
// does not apply and must be skipped.
type HostToWireFunc func(dc DeviceContext, value any) (any, bool)

// WireToHostFunc converts one wire value into a service call. ok=false means
// the value does not apply and must be skipped.
type WireToHostFunc func(dc DeviceContext, value any) (*ServiceCall, bool)

// PropertyDescriptor pairs one wire property with one host attribute.
type PropertyDescriptor struct {
	WireName   string
	HostName   string
	HostToWire HostToWireFunc
	WireToHost WireToHostFunc

	// Range and Values are model metadata, filled from live host
	// attributes by PropertyConverter.Model.
	Range  *ValueRange
	Values []string
}

// PropertyConverter is the conversion table of one device category.
type PropertyConverter interface {
	// Category returns the device category this converter serves.
	Category() DeviceCategory

	// Properties returns the full conversion table for the device.
	Properties(dc DeviceContext) []PropertyDescriptor

	// Model returns the descriptors the device actually supports, with
	// range and enumeration metadata filled from its live attributes.
	Model(dc DeviceContext) []PropertyDescriptor

	// Calibrate rewrites a host attribute diff in place before conversion.
	// flush is true when the full attribute set is being reported.
	Calibrate(attrs map[string]any, newState, oldState string, flush bool)
}

// ConverterFor returns the converter for a category.
//
// Returns:
//   - PropertyConverter: The category's converter
//   - bool: false for CategoryUnknown
func ConverterFor(category DeviceCategory) (PropertyConverter, bool) {
	switch category {
	case CategoryLight:
		return lightConverter{}, true
	case CategorySwitch:
		return switchConverter{}, true
	case CategoryClimate:
		return climateConverter{}, true
	case CategoryFan:
		return fanConverter{}, true
	case CategoryCover:
		return coverConverter{}, true
	case CategorySensor:
		return sensorConverter{}, true
	case CategoryMedia:
		return mediaConverter{}, true
	case CategoryWaterHeater:
		return waterHeaterConverter{}, true
	default:
		return nil, false
	}
}

// HostToWire converts a host attribute value through a descriptor.
//
// Parameters:
//   - dc: Live view of the entity
//   - pd: Descriptor to convert through
//   - hostValue: Host-native value
//
// Returns:
//   - any: Wire value
//   - bool: false when the descriptor has no host→wire direction or the
//     value does not map
func HostToWire(dc DeviceContext, pd PropertyDescriptor, hostValue any) (any, bool) {
	if pd.HostToWire == nil || hostValue == nil {
		return nil, false
	}
	return pd.HostToWire(dc, hostValue)
}

// WireToHost converts a wire value through a descriptor into a deferred
// service call.
//
// Parameters:
//   - dc: Live view of the entity
//   - pd: Descriptor to convert through
//   - wireValue: Canonical wire value
//
// Returns:
//   - *ServiceCall: Call to invoke on the host
//   - bool: false when the descriptor is read-only or the value does not map
func WireToHost(dc DeviceContext, pd PropertyDescriptor, wireValue any) (*ServiceCall, bool) {
	if pd.WireToHost == nil || wireValue == nil {
		return nil, false
	}
	return pd.WireToHost(dc, wireValue)
}

// ConvertHostAttributes converts every attribute of a host diff that has a
// descriptor. When several descriptors produce the same wire name, the
// later one wins.
//
// Parameters:
//   - conv: Category converter
//   - dc: Live view of the entity
//   - attrs: Host attribute diff (already calibrated)
//
// Returns:
//   - map[string]any: Wire properties, empty if nothing converted
func ConvertHostAttributes(conv PropertyConverter, dc DeviceContext, attrs map[string]any) map[string]any {
	out := make(map[string]any)
	for _, pd := range conv.Properties(dc) {
		hostValue, present := attrs[pd.HostName]
		if !present {
			continue
		}
		if wire, ok := HostToWire(dc, pd, hostValue); ok {
			out[pd.WireName] = wire
		}
	}
	return out
}

// ConvertWireProps converts inbound wire properties into service calls.
// Properties named in order are converted first, in that order; the rest
// follow with power first and then by wire name. Unknown or unmappable
// properties are skipped.
//
// Parameters:
//   - conv: Category converter
//   - dc: Live view of the entity
//   - props: Wire properties from a set command
//   - order: Wire order of props, when known
//
// Returns:
//   - []*ServiceCall: Calls to invoke, possibly empty
func ConvertWireProps(conv PropertyConverter, dc DeviceContext, props map[string]any, order ...string) []*ServiceCall {
	names := make([]string, 0, len(props))
	seen := make(map[string]bool, len(props))
	for _, name := range order {
		if _, ok := props[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	rest := make([]string, 0, len(props)-len(names))
	for name := range props {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if (rest[i] == WirePower) != (rest[j] == WirePower) {
			return rest[i] == WirePower
		}
		return rest[i] < rest[j]
	})
	names = append(names, rest...)

	table := conv.Properties(dc)
	var calls []*ServiceCall
	for _, name := range names {
		pd, ok := lookupWritable(table, name)
		if !ok {
			continue
		}
		if call, ok := WireToHost(dc, pd, props[name]); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// Lookup returns the first descriptor with the given wire name.
func Lookup(conv PropertyConverter, dc DeviceContext, wireName string) (PropertyDescriptor, bool) {
	for _, pd := range conv.Properties(dc) {
		if pd.WireName == wireName {
			return pd, true
		}
	}
	return PropertyDescriptor{}, false
}

func lookupWritable(table []PropertyDescriptor, wireName string) (PropertyDescriptor, bool) {
	for _, pd := range table {
		if pd.WireName == wireName && pd.WireToHost != nil {
			return pd, true
		}
	}
	return PropertyDescriptor{}, false
}

// IsInactive reports whether a host state means the entity is off or gone.
func IsInactive(state string) bool {
	switch state {
	case StateOff, StateUnavailable, StateUnknown, "":
		return true
	default:
		return false
	}
}

// calibratePower copies the entity state into the power pseudo attribute
// whenever the state changed or a full flush is requested.
func calibratePower(attrs map[string]any, newState, oldState string, flush bool) {
	if newState == "" || newState == StateUnavailable {
		return
	}
	if flush || newState != oldState {
		attrs[HostPower] = newState
	}
}

// onOffToWire maps any host state other than "off" to "on".
func onOffToWire(_ DeviceContext, v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	if s == StateOff {
		return WireOff, true
	}
	return WireOn, true
}

// onOffToHost builds a turn_on/turn_off call in the given domain.
func onOffToHost(domain string) WireToHostFunc {
	return func(dc DeviceContext, v any) (*ServiceCall, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		switch s {
		case WireOff:
			return newCall(domain, "turn_off", dc.EntityID), true
		case WireOn:
			return newCall(domain, "turn_on", dc.EntityID), true
		default:
			return nil, false
		}
	}
}

// withRange returns a copy of pd carrying a value range.
func withRange(pd PropertyDescriptor, lo, hi, step float64) PropertyDescriptor {
	pd.Range = &ValueRange{Min: lo, Max: hi, Step: step}
	return pd
}

// withValues returns a copy of pd carrying an enumeration.
func withValues(pd PropertyDescriptor, values []string) PropertyDescriptor {
	pd.Values = values
	return pd
}

// find returns the descriptor for a wire name from a static table.
func find(table []PropertyDescriptor, wireName string) PropertyDescriptor {
	for _, pd := range table {
		if pd.WireName == wireName {
			return pd
		}
	}
	return PropertyDescriptor{WireName: wireName}
}
