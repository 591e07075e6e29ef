// Package reconnect owns the cloud link's connection-retry state machine.
//
// A Manager runs at most one retry loop at a time. Each iteration waits a
// fixed backoff and then asks the connector to connect; an accepted request
// ends the loop, and the link outcome arrives later through the connector's
// state callbacks, which the owner reports via MarkConnected or
// MarkDisconnected.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
)

// DefaultBackoff is the fixed delay between retry attempts.
const DefaultBackoff = 5 * time.Second

// ErrRejected indicates the connector refused a connect request.
var ErrRejected = errors.New("reconnect: connect request rejected")

// Phase is the cloud link's connection phase.
type Phase int

// Connection phases.
const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseReconnecting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Params are the connection parameters of a bound bridge.
type Params struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
	UserCode string `json:"user_code"`
}

// Valid reports whether every parameter is set.
func (p Params) Valid() bool {
	return p.Host != "" && p.Port > 0 && p.Name != "" && p.UserCode != ""
}

// State is a snapshot of the connection state.
type State struct {
	Phase       Phase  `json:"-"`
	PhaseName   string `json:"phase"`
	Params      Params `json:"params"`
	LastFailure string `json:"last_failure,omitempty"`
}

// Connector is the connect primitive the manager drives.
type Connector interface {
	Connect(ctx context.Context, host string, port int, name, userCode string) (int, error)
}

// Manager owns the connection state and the retry loop.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Stop blocks until the loop goroutine has exited.
type Manager struct {
	conn    Connector
	backoff time.Duration
	logger  *logging.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	loops atomic.Int64
}

// New creates a manager. A non-positive backoff selects DefaultBackoff.
func New(conn Connector, backoff time.Duration, logger *logging.Logger) *Manager {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Manager{
		conn:    conn,
		backoff: backoff,
		logger:  logger.With("component", "reconnect"),
	}
}

// Connect is the explicit connect entry point. It cancels any pending
// retry loop, records the parameters and issues one connect request. A
// rejected or failed request starts the retry loop.
//
// Parameters:
//   - ctx: Bounds the connect request
//   - p: Connection parameters
//   - reason: Logged with the attempt
//
// Returns:
//   - error: Non-nil when the request failed and a retry loop was started
func (m *Manager) Connect(ctx context.Context, p Params, reason string) error {
	m.Stop()

	m.mu.Lock()
	m.state.Params = p
	m.state.Phase = PhaseConnecting
	m.mu.Unlock()

	code, err := m.conn.Connect(ctx, p.Host, p.Port, p.Name, p.UserCode)
	if err == nil && code != 0 {
		err = fmt.Errorf("%w: code %d", ErrRejected, code)
	}
	if err != nil {
		m.logger.Info("connect failed, retrying", "reason", reason, "error", err)
		m.recordFailure(err.Error())
		m.Start(p, reason)
		return err
	}
	m.logger.Info("connect request accepted", "reason", reason, "host", p.Host, "port", p.Port)
	return nil
}

// Start launches the retry loop. It is a no-op, returning false, while a
// loop is already active.
func (m *Manager) Start(p Params, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.logger.Warn("reconnect already running", "reason", reason)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.state.Params = p
	m.state.Phase = PhaseReconnecting
	m.loops.Add(1)

	go m.loop(ctx, p, reason, done)
	return true
}

// Stop cancels the retry loop and waits for it to exit. Calling Stop with
// no loop running is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	if cancel != nil && m.state.Phase == PhaseReconnecting {
		m.state.Phase = PhaseDisconnected
	}
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// MarkConnected records an established link and stops any retry loop.
func (m *Manager) MarkConnected() {
	m.Stop()
	m.mu.Lock()
	m.state.Phase = PhaseConnected
	m.state.LastFailure = ""
	m.mu.Unlock()
}

// MarkDisconnected records a lost link.
func (m *Manager) MarkDisconnected(reason string) {
	m.mu.Lock()
	if m.cancel == nil {
		m.state.Phase = PhaseDisconnected
	}
	m.state.LastFailure = reason
	m.mu.Unlock()
}

// State returns a snapshot of the connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.PhaseName = s.Phase.String()
	return s
}

// Active reports whether a retry loop is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Loops returns how many retry loops have been started.
func (m *Manager) Loops() int64 {
	return m.loops.Load()
}

func (m *Manager) loop(ctx context.Context, p Params, reason string, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(m.backoff)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		m.logger.Debug("reconnecting", "reason", reason, "attempt", attempt)
		code, err := m.conn.Connect(ctx, p.Host, p.Port, p.Name, p.UserCode)
		if ctx.Err() != nil {
			return
		}
		if err == nil && code == 0 {
			m.logger.Info("reconnect request accepted", "reason", reason, "attempts", attempt)
			m.finish(done)
			return
		}
		if err == nil {
			err = fmt.Errorf("%w: code %d", ErrRejected, code)
		}
		m.recordFailure(err.Error())
		timer.Reset(m.backoff)
	}
}

// finish releases the loop slot if it still belongs to the loop that owns
// done.
func (m *Manager) finish(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != done {
		return
	}
	m.cancel()
	m.cancel, m.done = nil, nil
	m.state.Phase = PhaseConnecting
}

func (m *Manager) recordFailure(reason string) {
	m.mu.Lock()
	m.state.LastFailure = reason
	m.mu.Unlock()
}
