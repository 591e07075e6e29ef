package mqtt

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/vhome-bridge/internal/infrastructure/config"
)

// Client is the bridge's session with the broker it shares with the host
// platform and the cloud connector daemon.
//
// paho reconnects on its own. On every (re)connect Client replays the
// subscriptions it holds and republishes the retained online status on
// vhome/bridge/status; a will message marks the bridge offline if the
// process dies without Close.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	mu           sync.RWMutex
	connected    bool
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the logging surface Client reports handler failures on.
// *logging.Logger satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one message with wildcards expanded in topic.
// paho calls it on its own goroutine; a returned error is logged and the
// message is still acknowledged.
type MessageHandler func(topic string, payload []byte) error

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{cfg: cfg, subs: make(map[string]subscription)}
}

// Connect dials the broker described by cfg and waits for the first
// session.
//
// Parameters:
//   - cfg: mqtt section of config.yaml
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed if the broker does not accept in time
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)
	c.paho = pahomqtt.NewClient(c.options())

	if err := await(c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The OnConnect callback may not have run yet.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return c, nil
}

// sessionUp runs on every successful (re)connect.
func (c *Client) sessionUp() {
	c.mu.Lock()
	c.connected = true
	subs := maps.Clone(c.subs)
	cb := c.onConnect
	c.mu.Unlock()

	for topic, s := range subs {
		c.paho.Subscribe(topic, s.qos, c.wrapHandler(s.handler))
	}
	c.paho.Publish(Topics{}.SystemStatus(), c.qos(), true, statusPayload(c.cfg.Broker.ClientID, statusOnline, ""))

	if cb != nil {
		cb()
	}
}

// sessionLost runs when paho drops the connection.
func (c *Client) sessionLost(err error) {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnect
	c.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

// Close publishes a graceful offline status, then disconnects. Closing a
// client that never connected is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.paho.Publish(Topics{}.SystemStatus(), c.qos(), true,
			statusPayload(c.cfg.Broker.ClientID, statusOffline, reasonShutdown))
		token.WaitTimeout(opTimeout)
	}
	c.paho.Disconnect(quiesceMillis)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck returns ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether a session is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnected()
}

// SetOnConnect sets a callback run after every (re)connect, once
// subscriptions have been replayed.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback run when the session drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets where handler errors and panics are reported. Without a
// logger they are dropped.
func (c *Client) SetLogger(l Logger) {
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS) //nolint:gosec // validated to 0-2
}

// wrapHandler adapts a MessageHandler to paho and recovers its panics.
func (c *Client) wrapHandler(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.log(); l != nil {
					l.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if l := c.log(); l != nil {
				l.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

// await waits for a paho token and wraps its failure in kind.
func await(token pahomqtt.Token, timeout time.Duration, kind error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", kind, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}
