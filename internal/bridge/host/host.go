package host

import (
	"context"
	"strings"
	"time"

	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
)

// Entity is one entry of the host entity registry.
type Entity struct {
	// ID is the stable registry id. It survives entity renames.
	ID       string `json:"id"`
	EntityID string `json:"entity_id"`
	DeviceID string `json:"device_id,omitempty"`

	// ConfigEntryID is the integration instance that owns the entity.
	ConfigEntryID string `json:"config_entry_id,omitempty"`

	// DisabledBy is non-empty when the entity is disabled.
	DisabledBy string `json:"disabled_by,omitempty"`
}

// Platform returns the part of the entity id before the dot.
func (e Entity) Platform() string {
	platform, _, _ := strings.Cut(e.EntityID, ".")
	return platform
}

// Disabled reports whether the entity is disabled in the registry.
func (e Entity) Disabled() bool {
	return e.DisabledBy != ""
}

// Device is one entry of the host device registry.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	NameByUser   string `json:"name_by_user,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`
	HWVersion    string `json:"hw_version,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`

	// Integration is the domain of the device's first identifier,
	// e.g. "webostv".
	Integration string `json:"integration,omitempty"`

	DisabledBy string `json:"disabled_by,omitempty"`
}

// DisplayName prefers the user-assigned name.
func (d Device) DisplayName() string {
	if d.NameByUser != "" {
		return d.NameByUser
	}
	return d.Name
}

// Disabled reports whether the device is disabled in the registry.
func (d Device) Disabled() bool {
	return d.DisabledBy != ""
}

// State is an entity's current state as held by the host state machine.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
}

// FriendlyName returns the friendly_name attribute, if any.
func (s State) FriendlyName() string {
	name, _ := s.Attributes["friendly_name"].(string)
	return name
}

// StateChange is delivered to state listeners. Old or New is nil when the
// entity appeared or disappeared.
type StateChange struct {
	EntityID string
	Old      *State
	New      *State
}

// Registry event actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionRemove = "remove"
)

// RegistryEventKind distinguishes entity from device registry events.
type RegistryEventKind string

// Registry event kinds.
const (
	EntityRegistryEvent RegistryEventKind = "entity"
	DeviceRegistryEvent RegistryEventKind = "device"
)

// RegistryEvent is a change in the host entity or device registry.
type RegistryEvent struct {
	Kind     RegistryEventKind `json:"-"`
	Action   string            `json:"action"`
	EntityID string            `json:"entity_id,omitempty"`
	DeviceID string            `json:"device_id,omitempty"`

	// Changes holds the previous values of changed fields on update.
	Changes map[string]any `json:"changes,omitempty"`
}

// Host is the bridge's view of the local smart-home platform: its entity
// and device registries, its state machine and its service bus.
//
// Thread Safety:
//   - Implementations must be safe for concurrent use.
//   - Listener callbacks may run on any goroutine; receivers should hand
//     them off rather than block.
type Host interface {
	// Entity looks up an entity registry entry by entity id.
	Entity(entityID string) (Entity, bool)

	// Device looks up a device registry entry by id.
	Device(deviceID string) (Device, bool)

	// State returns an entity's current state.
	State(entityID string) (State, bool)

	// EntityIDs lists entity ids with a state, filtered by platform when
	// platform is non-empty.
	EntityIDs(platform string) []string

	// ConfigEntryExists reports whether an integration config entry is loaded.
	ConfigEntryExists(entryID string) bool

	// TemperatureUnit is the host's default temperature unit.
	TemperatureUnit() string

	// CallService invokes a host service.
	CallService(ctx context.Context, call attribute.ServiceCall) error

	// TrackStateChanges delivers state changes of the given entities to fn.
	// The returned function detaches the listener and is idempotent.
	TrackStateChanges(entityIDs []string, fn func(StateChange)) (func(), error)

	// TrackRegistry delivers registry events to fn.
	TrackRegistry(fn func(RegistryEvent)) (func(), error)

	// Reload asks the host to restart the bridge's integration entry.
	Reload(ctx context.Context, entryID string) error
}
