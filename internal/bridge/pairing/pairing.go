package pairing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/vhome-bridge/internal/bridge/connector"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
)

// Flow defaults.
const (
	DefaultQRExpiry       = 300 * time.Second
	DefaultLANExpiry      = 60 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultLatencyReserve = 3 * time.Second
)

// Failure reasons reported on a session.
const (
	ReasonNetworkError = "network_error"
	ReasonTimeout      = "timeout_abort"
	ReasonCancelled    = "cancelled"
	ReasonBadResponse  = "bad_response"
)

// Connector is the subset of the cloud connector the controller uses.
type Connector interface {
	RequestBindCode(ctx context.Context, mac string) (connector.Response, error)
	Bind(ctx context.Context, code, mac, appName string) (connector.Response, error)
	SendBindCodeToApp(ctx context.Context, code string) (int, error)
}

// Options configures a Controller.
type Options struct {
	Connector Connector
	MAC       string
	AppName   string

	// Zero durations select the package defaults.
	QRExpiry       time.Duration
	LANExpiry      time.Duration
	PollInterval   time.Duration
	LatencyReserve time.Duration

	// OnBound receives the connection parameters of a successful bind.
	OnBound func(BindResult)

	// OnChange receives every session transition.
	OnChange func(Session)

	Logger *logging.Logger
}

// BindResult is what a successful bind yields.
type BindResult struct {
	Name     string
	Host     string
	Port     int
	UserCode string
	MAC      string
}

type bindCodeData struct {
	BindCode string `json:"bindCode"`
	ExpireIn int    `json:"expireIn"`
}

type bindData struct {
	Name string   `json:"dn"`
	IP   []string `json:"ip"`
}

// Controller runs the bind-code pairing flow.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - At most one pairing task runs at a time; Start while a task is
//     outstanding returns the existing session.
//   - OnBound and OnChange run on the task goroutine.
type Controller struct {
	opts   Options
	logger *logging.Logger

	mu      sync.Mutex
	session Session
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// New creates a pairing controller.
func New(opts Options) *Controller {
	if opts.QRExpiry <= 0 {
		opts.QRExpiry = DefaultQRExpiry
	}
	if opts.LANExpiry <= 0 {
		opts.LANExpiry = DefaultLANExpiry
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.LatencyReserve <= 0 {
		opts.LatencyReserve = DefaultLatencyReserve
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		opts:    opts,
		logger:  logger.With("component", "pairing"),
		session: Session{State: StateIdle},
	}
}

// Start begins a pairing flow in the background.
//
// Parameters:
//   - flow: FlowQR or FlowLAN
//
// Returns:
//   - Session: The current session
//   - bool: false if a task was already running and has been reused
func (c *Controller) Start(flow Flow) (Session, bool) {
	c.mu.Lock()
	if c.cancel != nil {
		current := c.session
		c.mu.Unlock()
		c.logger.Info("pairing already in progress", "flow", current.Flow)
		return current, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.err = nil
	c.session = Session{Flow: flow, MAC: c.opts.MAC, State: StateRequestingCode}
	snapshot := c.session
	c.mu.Unlock()

	c.notify(snapshot)
	go c.run(ctx, flow, done)
	return snapshot, true
}

// Cancel aborts the running task, if any, and waits for it to exit.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the running task finishes and returns its outcome.
// With no task it returns the last session immediately.
func (c *Controller) Wait(ctx context.Context) (Session, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.Session(), ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.err
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Running reports whether a pairing task is outstanding.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Pending reports whether the controller is polling for a scan.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil && c.session.State == StateAwaitingScan
}

func (c *Controller) run(ctx context.Context, flow Flow, done chan struct{}) {
	result, err := c.pair(ctx, flow)

	c.mu.Lock()
	c.cancel()
	c.cancel, c.done = nil, nil
	c.err = err
	c.mu.Unlock()

	if err == nil && c.opts.OnBound != nil {
		c.opts.OnBound(result)
	}
	close(done)
}

func (c *Controller) pair(ctx context.Context, flow Flow) (BindResult, error) {
	defaultExpiry := c.opts.QRExpiry
	if flow == FlowLAN {
		defaultExpiry = c.opts.LANExpiry
	}

	resp, err := c.opts.Connector.RequestBindCode(ctx, c.opts.MAC)
	if err != nil {
		return BindResult{}, c.fail(ctx, ReasonNetworkError, err)
	}
	var data bindCodeData
	if !resp.OK() || resp.Decode(&data) != nil || data.BindCode == "" {
		return BindResult{}, c.fail(ctx, ReasonNetworkError,
			fmt.Errorf("%w: bind code request returned %d", ErrBindCode, resp.Code))
	}

	expiry := time.Duration(data.ExpireIn) * time.Second
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	window := expiry - c.opts.LatencyReserve
	if window <= 0 {
		window = defaultExpiry - c.opts.LatencyReserve
	}

	if flow == FlowLAN {
		if _, err := c.opts.Connector.SendBindCodeToApp(ctx, data.BindCode); err != nil {
			c.logger.Warn("sending bind code to app failed", "error", err)
		}
	}

	c.transition(func(s *Session) {
		s.State = StateAwaitingScan
		s.BindCode = data.BindCode
		s.ExpiresAt = time.Now().Add(expiry)
	})
	return c.poll(ctx, data.BindCode, window)
}

// poll asks the cloud whether the code has been scanned until it has, the
// window closes or ctx is cancelled. Non-success codes keep polling.
func (c *Controller) poll(ctx context.Context, code string, window time.Duration) (BindResult, error) {
	deadline := time.NewTimer(window)
	defer deadline.Stop()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return BindResult{}, c.fail(ctx, ReasonCancelled, ctx.Err())
		case <-deadline.C:
			c.logger.Warn("pairing timed out", "window", window.String())
			return BindResult{}, c.fail(ctx, ReasonTimeout, ErrTimeout)
		case <-ticker.C:
		}

		resp, err := c.opts.Connector.Bind(ctx, code, c.opts.MAC, c.opts.AppName)
		if err != nil {
			if ctx.Err() != nil {
				return BindResult{}, c.fail(ctx, ReasonCancelled, ctx.Err())
			}
			c.logger.Debug("bind poll failed", "error", err)
			continue
		}
		if resp.Code != connector.CodeSuccess {
			continue
		}

		result, err := c.parseBind(resp, code)
		if err != nil {
			return BindResult{}, c.fail(ctx, ReasonBadResponse, err)
		}
		c.transition(func(s *Session) {
			s.State = StateBound
			s.Name = result.Name
		})
		c.logger.Info("bridge bound", "name", result.Name, "host", result.Host, "port", result.Port)
		return result, nil
	}
}

func (c *Controller) parseBind(resp connector.Response, code string) (BindResult, error) {
	var data bindData
	if err := resp.Decode(&data); err != nil {
		return BindResult{}, err
	}
	if data.Name == "" || len(data.IP) == 0 {
		return BindResult{}, fmt.Errorf("%w: missing dn or ip", ErrBindResponse)
	}
	host, portStr, err := net.SplitHostPort(data.IP[0])
	if err != nil {
		return BindResult{}, fmt.Errorf("%w: %w", ErrBindResponse, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return BindResult{}, fmt.Errorf("%w: port %q", ErrBindResponse, portStr)
	}
	return BindResult{Name: data.Name, Host: host, Port: port, UserCode: code, MAC: c.opts.MAC}, nil
}

// fail records a terminal failure. Cancellation is not logged as an error.
func (c *Controller) fail(ctx context.Context, reason string, err error) error {
	state := StateFailed
	switch {
	case errors.Is(err, ErrTimeout):
		state = StateTimedOut
	case ctx.Err() != nil:
		reason = ReasonCancelled
		err = ErrCancelled
	default:
		c.logger.Warn("pairing failed", "reason", reason, "error", err)
	}
	c.transition(func(s *Session) {
		s.State = state
		s.Reason = reason
	})
	return err
}

func (c *Controller) transition(fn func(*Session)) {
	c.mu.Lock()
	fn(&c.session)
	snapshot := c.session
	c.mu.Unlock()
	c.notify(snapshot)
}

func (c *Controller) notify(s Session) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}
