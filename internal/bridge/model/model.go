package model

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
)

// Manufacturer is the manufacturer string every bridged device is
// registered under.
const Manufacturer = "万物互联有限公司"

// MaxNameLength is the longest display name, in runes, the cloud accepts.
const MaxNameLength = 100

// Common wire properties carried by every bridged device.
const (
	WireSoftwareVersion = "vivo_std_softver"
	WireHardwareVersion = "vivo_std_hardver"
	WireVendor          = "vivo_std_vendor"
	WireSerialNumber    = "vivo_std_serial_number"
	WireModel           = "vivo_std_model"
	WireOnline          = "online"
)

// UnknownValue fills common properties the host device does not report.
const UnknownValue = "Unknown"

// Property is one advertised capability of a device model.
type Property struct {
	Name       string                `json:"name"`
	ValueRange *attribute.ValueRange `json:"value_range,omitempty"`
	ValueList  []string              `json:"value_list,omitempty"`
}

// Model is the registration record advertised to the cloud for one entity.
type Model struct {
	ProductKey   string     `json:"pky"`
	Manufacturer string     `json:"manufacturer"`
	Name         string     `json:"en,omitempty"`
	LogicalID    string     `json:"logicMac"`
	PhysicalID   string     `json:"phyMac"`
	Props        []Property `json:"props"`
}

// Builder produces device models from host registry entries and states.
//
// The zero value treats unit-less temperatures as °C.
type Builder struct {
	// DefaultUnit is the host's temperature unit for entities that do not
	// report their own.
	DefaultUnit string
}

// Build produces a device model using the zero Builder.
func Build(entity host.Entity, device host.Device, state host.State) (*Model, error) {
	return Builder{}.Build(entity, device, state)
}

// Build produces the model advertised for one entity.
//
// The property list is the category's capability-intersected table with
// ranges and enumerations read from the entity's live attributes, followed
// by the common properties.
//
// Parameters:
//   - entity: Entity registry entry; ID and DeviceID are required
//   - device: Backing device registry entry
//   - state: Current entity state
//
// Returns:
//   - *Model: Registration record
//   - error: ErrUnsupported if the platform is not bridged, the entity has
//     no registry id or device, or no capability matched
func (b Builder) Build(entity host.Entity, device host.Device, state host.State) (*Model, error) {
	platform := entity.Platform()
	category, ok := attribute.CategoryFromPlatform(platform)
	if !ok {
		return nil, fmt.Errorf("%w: platform %q", ErrUnsupported, platform)
	}
	if entity.ID == "" || entity.DeviceID == "" {
		return nil, fmt.Errorf("%w: %s has no registry id or device", ErrUnsupported, entity.EntityID)
	}
	conv, ok := attribute.ConverterFor(category)
	if !ok {
		return nil, fmt.Errorf("%w: category %s", ErrUnsupported, category)
	}

	dc := b.Context(entity, device, state)
	descriptors := conv.Model(dc)
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w: %s has no matching capabilities", ErrUnsupported, entity.EntityID)
	}

	pky, ok := ProductKey(category, dc)
	if !ok {
		return nil, fmt.Errorf("%w: no product key for %s", ErrUnsupported, entity.EntityID)
	}

	props := CommonProperties()
	for _, pd := range descriptors {
		props = append(props, Property{Name: pd.WireName, ValueRange: pd.Range, ValueList: pd.Values})
	}

	return &Model{
		ProductKey:   pky,
		Manufacturer: Manufacturer,
		Name:         SanitizeName(state.FriendlyName()),
		LogicalID:    LogicalID(entity),
		PhysicalID:   entity.DeviceID,
		Props:        props,
	}, nil
}

// Context assembles the converter view of an entity.
func (b Builder) Context(entity host.Entity, device host.Device, state host.State) attribute.DeviceContext {
	return attribute.DeviceContext{
		EntityID:   entity.EntityID,
		Platform:   entity.Platform(),
		State:      state.State,
		Attributes: state.Attributes,
		Unit:       b.unitFor(state),
		Brand:      device.Integration,
	}
}

// unitFor prefers the entity's own temperature unit. Climate and water
// heater entities report temperature_unit; sensors report
// unit_of_measurement.
func (b Builder) unitFor(state host.State) string {
	for _, key := range []string{"temperature_unit", "unit_of_measurement"} {
		if u, ok := state.Attributes[key].(string); ok {
			switch u {
			case attribute.UnitCelsius, attribute.UnitFahrenheit, attribute.UnitKelvin:
				return u
			}
		}
	}
	if b.DefaultUnit != "" {
		return b.DefaultUnit
	}
	return attribute.UnitCelsius
}

// LogicalID is the cloud-facing key of an entity: its stable registry id
// and platform.
func LogicalID(entity host.Entity) string {
	return entity.ID + "." + entity.Platform()
}

// disallowedName matches every character the cloud rejects in a display name.
var disallowedName = regexp.MustCompile(
	`[^a-zA-Z0-9\x{4E00}-\x{9FA5}\x{00A5}|?:#$/!{}()~<>'.,;+=_*￥@%\[\]"&\^《》：；”“’‘【】—，。…\\！]`)

// SanitizeName strips disallowed characters and truncates to MaxNameLength
// runes.
func SanitizeName(name string) string {
	return truncate(disallowedName.ReplaceAllString(name, ""), MaxNameLength)
}

// SelectionName is the label an entity is offered under in the addable
// device list: its friendly name, else the device name, else the entity
// id, followed by the platform.
func SelectionName(entity host.Entity, device host.Device, state host.State) string {
	name := state.FriendlyName()
	if name == "" {
		name = device.DisplayName()
	}
	if name == "" {
		name = entity.EntityID
	}
	return fmt.Sprintf("%s (%s)", truncate(name, MaxNameLength), entity.Platform())
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CommonProperties returns the properties every device model starts with.
func CommonProperties() []Property {
	return []Property{
		{Name: WireSoftwareVersion},
		{Name: WireHardwareVersion},
		{Name: WireVendor},
		{Name: WireSerialNumber},
		{Name: WireModel},
		{Name: WireOnline, ValueList: []string{"true", "false"}},
	}
}

// CommonValues reports a device's registry metadata as wire properties.
// Missing fields read as UnknownValue.
func CommonValues(device host.Device) map[string]any {
	orUnknown := func(s string) string {
		if s == "" {
			return UnknownValue
		}
		return s
	}
	return map[string]any{
		WireSoftwareVersion: orUnknown(device.SWVersion),
		WireHardwareVersion: orUnknown(device.HWVersion),
		WireVendor:          orUnknown(device.Manufacturer),
		WireSerialNumber:    orUnknown(device.SerialNumber),
		WireModel:           orUnknown(device.Model),
	}
}
