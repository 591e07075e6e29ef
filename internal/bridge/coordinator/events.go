package coordinator

import (
	"github.com/nerrad567/vhome-bridge/internal/bridge/pairing"
	"github.com/nerrad567/vhome-bridge/internal/bridge/reconnect"
)

// Event types.
const (
	EventDeviceStateChanged = "device_state_changed"
	EventDevicesAdded       = "devices_added"
	EventDevicesRemoved     = "devices_removed"
	EventRegistrationResult = "registration_result"
	EventBridgeOnline       = "bridge_online"
	EventReconnectRequest   = "reconnect_request"
	EventAddableDevices     = "addable_devices"
	EventPairingChanged     = "pairing_changed"
)

// Event is something the coordinator reports to its collaborators.
type Event interface {
	Type() string
}

// DeviceStateChanged is emitted for every upload of device properties.
type DeviceStateChanged struct {
	LogicalID string         `json:"logicMac"`
	WireName  string         `json:"dn"`
	EntityID  string         `json:"entity_id"`
	Platform  string         `json:"platform"`
	Props     map[string]any `json:"props"`
	Online    bool           `json:"online"`
	Flush     bool           `json:"flush"`
}

// DevicesAdded lists devices that joined the registered set.
type DevicesAdded struct {
	LogicalIDs []string `json:"logical_ids"`
}

// DevicesRemoved lists devices that left the registered set.
type DevicesRemoved struct {
	LogicalIDs []string `json:"logical_ids"`
	Reason     string   `json:"reason"`
}

// RegistrationResult is the outcome of one registration round.
type RegistrationResult struct {
	Reason    string   `json:"reason"`
	Code      int      `json:"code"`
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// BridgeOnline is emitted once the cloud link is established and the
// device set has been re-synchronised.
type BridgeOnline struct {
	Name    string `json:"name"`
	Devices int    `json:"devices"`
}

// ReconnectRequest is emitted when the link dropped and a retry loop is
// being started.
type ReconnectRequest struct {
	Params reconnect.Params `json:"params"`
	Reason string           `json:"reason"`
}

// AddableDevice is a host entity offered to the cloud for selection.
type AddableDevice struct {
	LogicalID string `json:"logicMac"`
	Name      string `json:"name"`
}

// AddableDevices is the current list of bridgeable but unregistered
// entities.
type AddableDevices struct {
	Devices []AddableDevice `json:"devices"`
}

// PairingChanged reports a pairing session transition.
type PairingChanged struct {
	Session pairing.Session `json:"session"`
}

func (DeviceStateChanged) Type() string { return EventDeviceStateChanged }
func (DevicesAdded) Type() string       { return EventDevicesAdded }
func (DevicesRemoved) Type() string     { return EventDevicesRemoved }
func (RegistrationResult) Type() string { return EventRegistrationResult }
func (BridgeOnline) Type() string       { return EventBridgeOnline }
func (ReconnectRequest) Type() string   { return EventReconnectRequest }
func (AddableDevices) Type() string     { return EventAddableDevices }
func (PairingChanged) Type() string     { return EventPairingChanged }

// EventSink receives coordinator events.
//
// Publish is called from the event loop and must not block.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Publish implements EventSink.
func (f SinkFunc) Publish(e Event) { f(e) }

// MultiSink fans events out to several sinks in order. Nil entries are
// skipped.
type MultiSink []EventSink

// Publish implements EventSink.
func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Publish(Event) {}
