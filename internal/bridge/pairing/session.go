package pairing

import (
	"encoding/json"
	"time"
)

// Flow selects how the bind code reaches the phone app.
type Flow string

// Pairing flows.
const (
	// FlowQR shows the code as a QR code for the user to scan.
	FlowQR Flow = "qr"

	// FlowLAN pushes the code to the app over the local handshake.
	FlowLAN Flow = "lan"
)

// Valid reports whether f is a known flow.
func (f Flow) Valid() bool {
	return f == FlowQR || f == FlowLAN
}

// SessionState is a pairing session's position in the flow.
type SessionState int

// Session states.
const (
	StateIdle SessionState = iota
	StateRequestingCode
	StateAwaitingScan
	StateBound
	StateTimedOut
	StateFailed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateRequestingCode:
		return "requesting_code"
	case StateAwaitingScan:
		return "awaiting_scan"
	case StateBound:
		return "bound"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MarshalJSON encodes the state by name.
func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name. Unknown names decode as StateIdle.
func (s *SessionState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = StateIdle
	for st := StateRequestingCode; st <= StateFailed; st++ {
		if st.String() == name {
			*s = st
			break
		}
	}
	return nil
}

// Terminal reports whether no further transitions follow.
func (s SessionState) Terminal() bool {
	return s == StateBound || s == StateTimedOut || s == StateFailed
}

// Session is one pairing attempt.
type Session struct {
	Flow      Flow         `json:"flow,omitempty"`
	BindCode  string       `json:"bind_code,omitempty"`
	MAC       string       `json:"mac,omitempty"`
	ExpiresAt time.Time    `json:"expires_at,omitzero"`
	State     SessionState `json:"state"`
	Reason    string       `json:"reason,omitempty"`

	// Name is the bridge name assigned by the cloud once bound.
	Name string `json:"name,omitempty"`
}
