package coordinator

import "github.com/nerrad567/vhome-bridge/internal/bridge/reconnect"

// BridgeConfig is the bridge's persisted binding, stored under the "bridge"
// key. Only MAC survives a bridge removal.
type BridgeConfig struct {
	MAC      string `json:"mac"`
	Name     string `json:"dn,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	UserCode string `json:"user_code,omitempty"`

	// Disabled is set while the bridge device is disabled in the host
	// registry. A disabled bridge stays disconnected and ignores commands.
	Disabled bool `json:"disabled,omitempty"`
}

// Bound reports whether the bridge has been paired with the cloud.
func (b BridgeConfig) Bound() bool { return b.Name != "" }

// Params returns the connection parameters.
func (b BridgeConfig) Params() reconnect.Params {
	return reconnect.Params{Host: b.Host, Port: b.Port, Name: b.Name, UserCode: b.UserCode}
}
