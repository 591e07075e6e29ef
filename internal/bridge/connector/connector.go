package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/vhome-bridge/internal/bridge/model"
)

// CodeSuccess is the envelope code of a successful cloud call.
const CodeSuccess = 10000

// Response is the {code, data} envelope of cloud binding calls.
type Response struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the call succeeded and carried data.
func (r Response) OK() bool {
	return r.Code == CodeSuccess && len(r.Data) > 0 && string(r.Data) != "null"
}

// Decode unmarshals the envelope's data.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("decoding response data: empty")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// UploadRecord is one entry of a property upload. SubID is empty for the
// bridge itself.
type UploadRecord struct {
	SubID string         `json:"subId,omitempty"`
	Ver   int            `json:"ver"`
	Props map[string]any `json:"props"`
}

// RegisteredSubDevice is one successfully registered device.
type RegisteredSubDevice struct {
	LogicalID  string `json:"logicMac"`
	ProductKey string `json:"pky"`
	Name       string `json:"dn"`
}

// WireName is the id the cloud addresses the device by in commands.
func (d RegisteredSubDevice) WireName() string {
	return d.ProductKey + d.Name
}

// Registration is the data of a successful sub-device registration.
type Registration struct {
	Succeeded []RegisteredSubDevice `json:"succ"`
	Failed    []RegisteredSubDevice `json:"fail"`
}

// Connector is the bridge's handle on the cloud transport.
//
// Integer results follow the transport's convention: 0 means the request
// was accepted. For Connect the link outcome arrives later as a
// StateMessage. Every call may fail with ErrNetwork and is safe to retry.
type Connector interface {
	Connect(ctx context.Context, host string, port int, name, userCode string) (int, error)
	Disconnect(ctx context.Context, name string) (int, error)
	Upload(ctx context.Context, name string, records []UploadRecord) (int, error)

	RequestBindCode(ctx context.Context, mac string) (Response, error)
	Bind(ctx context.Context, code, mac, appName string) (Response, error)
	RegisterSubDevices(ctx context.Context, code, name, mac string, devices []model.Model) (Response, error)

	// SendBindCodeToApp delivers a bind code to the phone app over the
	// local handshake channel.
	SendBindCodeToApp(ctx context.Context, code string) (int, error)
	StartLocalHandshake(ctx context.Context) error
	StopLocalHandshake(ctx context.Context) error
	LocalPort(ctx context.Context) (int, error)

	// Messages delivers asynchronous callbacks in arrival order.
	Messages() <-chan Message
}
