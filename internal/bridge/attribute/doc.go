// Package attribute translates device attributes between the host platform's
// native representation and the canonical wire schema used by the cloud bridge.
//
// Every device category (light, switch, climate, fan, cover, sensor,
// media/remote, water heater) has a PropertyConverter holding a static table of
// PropertyDescriptors. A descriptor pairs one wire property name with one host
// attribute name and carries the two conversion functions:
//
//   - HostToWire turns a host attribute value into a wire value
//   - WireToHost turns a wire value into a deferred ServiceCall
//
// Conversions never fail loudly. A value that cannot be mapped (an unknown
// enumeration member, a non-numeric brightness) returns ok=false and the
// caller skips it.
//
// Numeric normalisation:
//
//   - Temperatures are reported in °C on the wire; °F and K host values are
//     converted with (F−32)×5/9 and K−273.15 and rounded
//   - Percentage-like values convert between a 0–255 host range and a 0–100
//     wire range and are always clamped
//
// Two-axis swing (vertical/horizontal) is two independent on/off properties
// on the wire and one four-state enumeration on the host. Commands are
// composed against the current host swing mode so that switching one axis
// never disturbs the other.
//
// All functions in this package are pure and safe for concurrent use.
package attribute
