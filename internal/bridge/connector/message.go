package connector

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message is an asynchronous connector callback. The variants are
// StateMessage, DataMessage and LocalEventMessage.
type Message interface {
	message()
}

// Link states carried by StateMessage.
const (
	StateEstablished = 0
	StateLost        = 1
)

// ConnectResultRemoved is the connect_result of a link dropped because the
// bridge was removed on the cloud side.
const ConnectResultRemoved = 5

// StateMessage reports a change of the cloud link.
type StateMessage struct {
	State         int
	ConnectResult int
}

// Established reports whether the link came up.
func (m StateMessage) Established() bool { return m.State == StateEstablished }

// Removed reports whether the link was dropped because the bridge was
// removed from the cloud.
func (m StateMessage) Removed() bool {
	return m.State == StateLost && m.ConnectResult == ConnectResultRemoved
}

// Data actions.
const (
	ActionSet   = "set"
	ActionEvent = "event"
)

// DataItem is one entry of an inbound command. SubID is empty when the
// command addresses the bridge itself.
type DataItem struct {
	SubID string         `json:"subId,omitempty"`
	Props map[string]any `json:"props"`

	// Order lists the keys of Props as they appeared on the wire.
	Order []string `json:"-"`

	// subIDSent is set when a decoded item carried a subId key, even an
	// empty one.
	subIDSent bool
}

// UnmarshalJSON decodes an item, keeping the wire order of props.
func (d *DataItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		SubID *string         `json:"subId"`
		Props json.RawMessage `json:"props"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = DataItem{}
	if raw.SubID != nil {
		d.SubID = *raw.SubID
		d.subIDSent = true
	}
	if len(raw.Props) == 0 || string(raw.Props) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.Props, &d.Props); err != nil {
		return fmt.Errorf("decoding props: %w", err)
	}
	order, err := objectKeys(raw.Props)
	if err != nil {
		return fmt.Errorf("decoding props: %w", err)
	}
	d.Order = order
	return nil
}

// AddressesBridge reports whether the item has no subId at all. An item
// with an empty subId addresses an unknown sub-device, not the bridge.
func (d DataItem) AddressesBridge() bool {
	return d.SubID == "" && !d.subIDSent
}

// objectKeys returns the top-level keys of a JSON object in order.
func objectKeys(obj []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Unbind reports whether the item carries the unbind flag.
func (d DataItem) Unbind() bool {
	switch v := d.Props["unbind"].(type) {
	case float64:
		return v == 1
	case int:
		return v == 1
	case json.Number:
		return v.String() == "1"
	}
	return false
}

// DataMessage is an inbound set or event command.
type DataMessage struct {
	Action string
	Body   []DataItem
}

// Local handshake commands.
const (
	LocalHandshake  = 0
	LocalDisconnect = 1
)

// LocalEventMessage reports a local pairing handshake event from the
// phone app.
type LocalEventMessage struct {
	Cmd int
}

func (StateMessage) message()      {}
func (DataMessage) message()       {}
func (LocalEventMessage) message() {}

// wire envelopes

type stateEnvelope struct {
	State   int `json:"state"`
	Payload struct {
		ConnectResult int `json:"connect_result"`
	} `json:"payload"`
}

type dataEnvelope struct {
	Payload struct {
		Act  string     `json:"act"`
		Body []DataItem `json:"body"`
	} `json:"payload"`
}

type localEnvelope struct {
	Payload *struct {
		Cmd int `json:"cmd"`
	} `json:"payload"`
}

// decodeMessage parses a callback of the given kind.
func decodeMessage(kind string, payload []byte) (Message, error) {
	switch kind {
	case "state":
		var env stateEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("decoding state callback: %w", err)
		}
		return StateMessage{State: env.State, ConnectResult: env.Payload.ConnectResult}, nil

	case "data":
		var env dataEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("decoding data callback: %w", err)
		}
		if len(env.Payload.Body) == 0 {
			return nil, ErrEmptyMessage
		}
		return DataMessage{Action: env.Payload.Act, Body: env.Payload.Body}, nil

	case "local":
		var env localEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("decoding local callback: %w", err)
		}
		if env.Payload == nil {
			return nil, ErrEmptyMessage
		}
		return LocalEventMessage{Cmd: env.Payload.Cmd}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, kind)
}
