package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/vhome-bridge/internal/bridge/model"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/mqtt"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultQueueSize      = 256
)

// Request operations understood by the connector daemon.
const (
	opConnect        = "connect"
	opDisconnect     = "disconnect"
	opUpload         = "upload"
	opBindCode       = "bind_code"
	opBind           = "bind"
	opRegister       = "register"
	opSendBindCode   = "send_bind_code"
	opHandshakeStart = "handshake_start"
	opHandshakeStop  = "handshake_stop"
	opLocalPort      = "local_port"
)

// MQTTClient is the subset of the MQTT client the connector needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

type requestEnvelope struct {
	ID   string `json:"id"`
	Args any    `json:"args,omitempty"`
}

type responseEnvelope struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// MQTTConnector implements Connector over a request/response MQTT protocol
// spoken by the cloud connector daemon.
//
// Requests are published to {prefix}/req/{op} with a unique id; the daemon
// answers on {prefix}/resp echoing the id. Callbacks arrive on
// {prefix}/evt/{state|data|local}.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Callbacks are queued on a bounded channel. When the consumer falls
//     behind, new callbacks are dropped and counted rather than blocking
//     MQTT delivery, since responses share the delivery goroutine.
type MQTTConnector struct {
	client  MQTTClient
	topics  mqtt.Topics
	qos     byte
	timeout time.Duration
	logger  *logging.Logger

	messages chan Message
	done     chan struct{}

	mu      sync.Mutex
	pending map[string]chan responseEnvelope
	started bool
	closed  bool
}

// NewMQTTConnector creates a connector adapter. Call Start before use.
//
// Parameters:
//   - client: Connected MQTT client
//   - cfg: Connector configuration (topic prefix, timeout, queue size)
//   - qos: QoS for requests and subscriptions
//   - logger: Logger for dropped or malformed callbacks
//
// Returns:
//   - *MQTTConnector: Adapter ready to Start
func NewMQTTConnector(client MQTTClient, cfg config.ConnectorConfig, qos byte, logger *logging.Logger) *MQTTConnector {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &MQTTConnector{
		client:   client,
		topics:   mqtt.Topics{CloudPrefix: cfg.TopicPrefix},
		qos:      qos,
		timeout:  timeout,
		logger:   logger.With("component", "connector"),
		messages: make(chan Message, size),
		done:     make(chan struct{}),
		pending:  make(map[string]chan responseEnvelope),
	}
}

// Start subscribes to the response and callback topics.
func (c *MQTTConnector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}

	if err := c.client.Subscribe(c.topics.CloudResponse(), c.qos, c.handleResponse); err != nil {
		return fmt.Errorf("subscribing to responses: %w", err)
	}
	if err := c.client.Subscribe(c.topics.AllCloudEvents(), c.qos, c.handleEvent); err != nil {
		return fmt.Errorf("subscribing to callbacks: %w", err)
	}
	c.started = true
	return nil
}

// Close unsubscribes and fails all outstanding requests with ErrClosed.
// It is idempotent.
func (c *MQTTConnector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	started := c.started
	c.mu.Unlock()

	if !started {
		return nil
	}
	var errs []error
	for _, topic := range []string{c.topics.CloudResponse(), c.topics.AllCloudEvents()} {
		if err := c.client.Unsubscribe(topic); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Messages implements Connector.
func (c *MQTTConnector) Messages() <-chan Message {
	return c.messages
}

// Connect implements Connector.
func (c *MQTTConnector) Connect(ctx context.Context, host string, port int, name, userCode string) (int, error) {
	return c.intCall(ctx, opConnect, map[string]any{
		"host": host, "port": port, "dn": name, "user_code": userCode,
	})
}

// Disconnect implements Connector.
func (c *MQTTConnector) Disconnect(ctx context.Context, name string) (int, error) {
	return c.intCall(ctx, opDisconnect, map[string]any{"dn": name})
}

// Upload implements Connector.
func (c *MQTTConnector) Upload(ctx context.Context, name string, records []UploadRecord) (int, error) {
	return c.intCall(ctx, opUpload, map[string]any{"dn": name, "data": records})
}

// RequestBindCode implements Connector.
func (c *MQTTConnector) RequestBindCode(ctx context.Context, mac string) (Response, error) {
	return c.responseCall(ctx, opBindCode, map[string]any{"mac": mac})
}

// Bind implements Connector.
func (c *MQTTConnector) Bind(ctx context.Context, code, mac, appName string) (Response, error) {
	return c.responseCall(ctx, opBind, map[string]any{"bcode": code, "mac": mac, "en": appName})
}

// RegisterSubDevices implements Connector.
func (c *MQTTConnector) RegisterSubDevices(ctx context.Context, code, name, mac string, devices []model.Model) (Response, error) {
	if devices == nil {
		devices = []model.Model{}
	}
	return c.responseCall(ctx, opRegister, map[string]any{
		"bcode": code, "dn": name, "mac": mac, "devices": devices,
	})
}

// SendBindCodeToApp implements Connector.
func (c *MQTTConnector) SendBindCodeToApp(ctx context.Context, code string) (int, error) {
	return c.intCall(ctx, opSendBindCode, map[string]any{"code": code})
}

// StartLocalHandshake implements Connector.
func (c *MQTTConnector) StartLocalHandshake(ctx context.Context) error {
	_, err := c.request(ctx, opHandshakeStart, nil)
	return err
}

// StopLocalHandshake implements Connector.
func (c *MQTTConnector) StopLocalHandshake(ctx context.Context) error {
	_, err := c.request(ctx, opHandshakeStop, nil)
	return err
}

// LocalPort implements Connector.
func (c *MQTTConnector) LocalPort(ctx context.Context) (int, error) {
	return c.intCall(ctx, opLocalPort, nil)
}

// PendingCount returns the number of requests awaiting a response.
func (c *MQTTConnector) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ─── Request/response ──────────────────────────────────────────────

func (c *MQTTConnector) intCall(ctx context.Context, op string, args any) (int, error) {
	raw, err := c.request(ctx, op, args)
	if err != nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decoding %s result: %w", op, err)
	}
	return n, nil
}

func (c *MQTTConnector) responseCall(ctx context.Context, op string, args any) (Response, error) {
	raw, err := c.request(ctx, op, args)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("decoding %s result: %w", op, err)
	}
	return resp, nil
}

// request publishes one request and waits for the correlated response or
// the request timeout, whichever comes first.
func (c *MQTTConnector) request(ctx context.Context, op string, args any) (json.RawMessage, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(requestEnvelope{ID: id, Args: args})
	if err != nil {
		return nil, fmt.Errorf("marshalling %s request: %w", op, err)
	}

	ch := make(chan responseEnvelope, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Publish(c.topics.CloudRequest(op), payload, c.qos, false); err != nil {
		requestsTotal.WithLabelValues(op, resultError).Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			requestsTotal.WithLabelValues(op, resultError).Inc()
			return nil, fmt.Errorf("%w: %s: %s", ErrRemote, op, resp.Error)
		}
		requestsTotal.WithLabelValues(op, resultOK).Inc()
		return resp.Result, nil
	case <-ctx.Done():
		requestsTotal.WithLabelValues(op, resultTimeout).Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrNetwork, op, ctx.Err())
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *MQTTConnector) handleResponse(_ string, payload []byte) error {
	var resp responseEnvelope
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("response for unknown request", "id", resp.ID)
		return nil
	}
	select {
	case ch <- resp:
	default:
		c.logger.Debug("duplicate response", "id", resp.ID)
	}
	return nil
}

func (c *MQTTConnector) handleEvent(topic string, payload []byte) error {
	kind := topic[strings.LastIndexByte(topic, '/')+1:]
	msg, err := decodeMessage(kind, payload)
	if errors.Is(err, ErrEmptyMessage) {
		c.logger.Debug("ignoring empty callback", "kind", kind)
		return nil
	}
	if err != nil {
		return err
	}

	select {
	case <-c.done:
	case c.messages <- msg:
	default:
		droppedTotal.Inc()
		c.logger.Warn("callback queue full, dropping", "kind", kind)
	}
	return nil
}
