package mqtt

import "fmt"

// Default topic roots. Deployments may move the cloud connector daemon and
// the host platform onto other roots through configuration.
const (
	// DefaultCloudPrefix is the root of the cloud connector daemon's topics.
	DefaultCloudPrefix = "vhome/cloud"

	// DefaultHostPrefix is the root of the host platform's topics.
	DefaultHostPrefix = "vhome/host"

	// TopicPrefixSystem is the base for the bridge's own system topics.
	TopicPrefixSystem = "vhome/bridge"
)

// Inbound connector event kinds.
const (
	CloudEventState = "state"
	CloudEventData  = "data"
	CloudEventLocal = "local"
)

// Host registry event kinds.
const (
	HostEventEntityRegistry = "entity_registry_updated"
	HostEventDeviceRegistry = "device_registry_updated"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// The zero value uses the default prefixes:
//
//	topics := mqtt.Topics{}
//	topics.CloudRequest("upload")   // "vhome/cloud/req/upload"
//	topics.HostState("light.desk") // "vhome/host/state/light.desk"
type Topics struct {
	CloudPrefix string
	HostPrefix  string
}

func (t Topics) cloud() string {
	if t.CloudPrefix == "" {
		return DefaultCloudPrefix
	}
	return t.CloudPrefix
}

func (t Topics) host() string {
	if t.HostPrefix == "" {
		return DefaultHostPrefix
	}
	return t.HostPrefix
}

// =============================================================================
// Cloud Connector Topics
// =============================================================================

// CloudRequest returns the topic a connector operation is published on.
//
// Example: vhome/cloud/req/bind
func (t Topics) CloudRequest(op string) string {
	return fmt.Sprintf("%s/req/%s", t.cloud(), op)
}

// CloudResponse returns the topic the connector daemon answers on.
//
// Example: vhome/cloud/resp
func (t Topics) CloudResponse() string {
	return t.cloud() + "/resp"
}

// CloudEvent returns the topic for one class of asynchronous connector callback.
//
// Example: vhome/cloud/evt/state
func (t Topics) CloudEvent(kind string) string {
	return fmt.Sprintf("%s/evt/%s", t.cloud(), kind)
}

// AllCloudEvents returns a wildcard matching every connector callback.
//
// Example: vhome/cloud/evt/+
func (t Topics) AllCloudEvents() string {
	return t.cloud() + "/evt/+"
}

// =============================================================================
// Host Platform Topics
// =============================================================================

// HostState returns the retained topic carrying an entity's current state.
//
// Example: vhome/host/state/light.desk
func (t Topics) HostState(entityID string) string {
	return fmt.Sprintf("%s/state/%s", t.host(), entityID)
}

// AllHostStates returns a wildcard matching every entity state topic.
func (t Topics) AllHostStates() string {
	return t.host() + "/state/+"
}

// HostEntity returns the retained topic carrying an entity registry entry.
//
// Example: vhome/host/registry/entity/light.desk
func (t Topics) HostEntity(entityID string) string {
	return fmt.Sprintf("%s/registry/entity/%s", t.host(), entityID)
}

// AllHostEntities returns a wildcard matching every entity registry entry.
func (t Topics) AllHostEntities() string {
	return t.host() + "/registry/entity/+"
}

// HostDevice returns the retained topic carrying a device registry entry.
//
// Example: vhome/host/registry/device/9f2c
func (t Topics) HostDevice(deviceID string) string {
	return fmt.Sprintf("%s/registry/device/%s", t.host(), deviceID)
}

// AllHostDevices returns a wildcard matching every device registry entry.
func (t Topics) AllHostDevices() string {
	return t.host() + "/registry/device/+"
}

// HostConfigEntry returns the retained topic marking a config entry as present.
//
// Example: vhome/host/registry/config_entry/01HXYZ
func (t Topics) HostConfigEntry(entryID string) string {
	return fmt.Sprintf("%s/registry/config_entry/%s", t.host(), entryID)
}

// AllHostConfigEntries returns a wildcard matching every config entry topic.
func (t Topics) AllHostConfigEntries() string {
	return t.host() + "/registry/config_entry/+"
}

// HostEvent returns the topic for a class of host registry event.
//
// Example: vhome/host/event/entity_registry_updated
func (t Topics) HostEvent(kind string) string {
	return fmt.Sprintf("%s/event/%s", t.host(), kind)
}

// AllHostEvents returns a wildcard matching every host registry event.
func (t Topics) AllHostEvents() string {
	return t.host() + "/event/+"
}

// HostServiceCall returns the topic service invocations are published on.
//
// Example: vhome/host/service/call
func (t Topics) HostServiceCall() string {
	return t.host() + "/service/call"
}

// HostRequest returns the topic for a host request/response operation.
//
// Example: vhome/host/req/sync_devices
func (t Topics) HostRequest(op string) string {
	return fmt.Sprintf("%s/req/%s", t.host(), op)
}

// HostResponse returns the topic the host answers requests on.
func (t Topics) HostResponse() string {
	return t.host() + "/resp"
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the topic for the bridge's online/offline status.
//
// Example: vhome/bridge/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SystemEvent returns the topic one kind of coordinator event is mirrored
// to for other local consumers.
//
// Example: vhome/bridge/event/bridge_online
func (Topics) SystemEvent(name string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixSystem, name)
}
