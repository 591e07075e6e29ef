package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/vhome-bridge/internal/bridge/advert"
	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
	"github.com/nerrad567/vhome-bridge/internal/bridge/connector"
	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
	"github.com/nerrad567/vhome-bridge/internal/bridge/model"
	"github.com/nerrad567/vhome-bridge/internal/bridge/pairing"
	"github.com/nerrad567/vhome-bridge/internal/bridge/reconnect"
	"github.com/nerrad567/vhome-bridge/internal/bridge/store"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
)

// Defaults.
const (
	DefaultCommandPacing  = 2 * time.Second
	DefaultReportDebounce = 2 * time.Second
	DefaultInboxSize      = 1024
	DefaultCommandQueue   = 64
	DefaultStopTimeout    = 10 * time.Second
)

// Identity is what the bridge reports about itself.
type Identity struct {
	MAC         string
	AppName     string
	Version     string
	HardVersion string
	Vendor      string
	InternalURL string

	// DeviceID is the host device that represents the bridge. Empty
	// disables bridge enable/disable tracking.
	DeviceID string

	// EntryID is the host config entry reloaded after bridge removal.
	EntryID string
}

// Options configures a Coordinator.
type Options struct {
	Identity  Identity
	Host      host.Host
	Connector connector.Connector
	Store     store.Store

	// Registrar is optional; nil disables the local advertisement.
	Registrar advert.Registrar

	// Sink is optional; nil discards events.
	Sink EventSink

	// Zero values select the package defaults.
	CommandPacing    time.Duration
	ReportDebounce   time.Duration
	ReconnectBackoff time.Duration
	InboxSize        int

	// Pairing durations, passed to the pairing controller.
	QRExpiry     time.Duration
	LANExpiry    time.Duration
	PollInterval time.Duration

	Logger *logging.Logger
}

// Coordinator runs the bridge.
//
// Thread Safety:
//   - Exported methods are safe for concurrent use.
//   - The device set, bridge config and listener table are owned by the
//     event loop goroutine and never touched elsewhere.
type Coordinator struct {
	opts      Options
	logger    *logging.Logger
	host      host.Host
	conn      connector.Connector
	store     store.Store
	registrar advert.Registrar
	sink      EventSink
	builder   model.Builder

	reconnect *reconnect.Manager
	pairing   *pairing.Controller

	inbox    chan message
	commands chan commandBatch
	dropped  atomic.Uint64

	// Lifecycle.
	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup

	// Loop-owned state.
	bridge         BridgeConfig
	devices        *DeviceSet
	listeners      map[string]func()
	detachRegistry func()
	addableTimer   *time.Timer
	online         bool
}

// New creates a coordinator.
//
// Returns:
//   - *Coordinator: Ready to Start
//   - error: ErrMissingMAC without a mac, ErrInvalidOptions without a
//     host, connector or store
func New(opts Options) (*Coordinator, error) {
	if opts.Identity.MAC == "" {
		return nil, ErrMissingMAC
	}
	if opts.Host == nil || opts.Connector == nil || opts.Store == nil {
		return nil, fmt.Errorf("%w: host, connector and store are required", ErrInvalidOptions)
	}
	if opts.CommandPacing <= 0 {
		opts.CommandPacing = DefaultCommandPacing
	}
	if opts.ReportDebounce <= 0 {
		opts.ReportDebounce = DefaultReportDebounce
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	sink := opts.Sink
	if sink == nil {
		sink = discardSink{}
	}

	c := &Coordinator{
		opts:      opts,
		logger:    logger.With("component", "coordinator"),
		host:      opts.Host,
		conn:      opts.Connector,
		store:     opts.Store,
		registrar: opts.Registrar,
		sink:      sink,
		builder:   model.Builder{DefaultUnit: opts.Host.TemperatureUnit()},
		inbox:     make(chan message, opts.InboxSize),
		commands:  make(chan commandBatch, DefaultCommandQueue),
		devices:   NewDeviceSet(),
		listeners: make(map[string]func()),
		bridge:    BridgeConfig{MAC: opts.Identity.MAC},
	}
	c.reconnect = reconnect.New(opts.Connector, opts.ReconnectBackoff, logger)
	c.pairing = pairing.New(pairing.Options{
		Connector:    opts.Connector,
		MAC:          opts.Identity.MAC,
		AppName:      opts.Identity.AppName,
		QRExpiry:     opts.QRExpiry,
		LANExpiry:    opts.LANExpiry,
		PollInterval: opts.PollInterval,
		OnBound:      c.onBound,
		OnChange:     func(s pairing.Session) { c.sink.Publish(PairingChanged{Session: s}) },
		Logger:       logger,
	})
	return c, nil
}

// Start loads persisted state, attaches host listeners and starts the
// event loop. Connecting (or opening the local handshake) happens on the
// loop right after Start returns.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.stopped {
		return ErrAlreadyStarted
	}

	if err := c.load(ctx); err != nil {
		return err
	}

	detach, err := c.host.TrackRegistry(func(e host.RegistryEvent) {
		c.enqueue(registryMsg{event: e})
	})
	if err != nil {
		return fmt.Errorf("tracking host registry: %w", err)
	}
	c.detachRegistry = detach
	c.attachEnabled()

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	c.wg.Add(3)
	go c.loop(loopCtx)
	go c.pump(loopCtx)
	go c.runCommands(loopCtx)

	c.inbox <- startupMsg{reason: "setup"}

	c.logger.Info("coordinator started",
		"devices", c.devices.Len(),
		"bound", c.bridge.Bound(),
	)
	return nil
}

// Stop shuts the bridge down: disconnect, cancel pairing, release
// listeners, stop reconnecting. Safe to call more than once.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.stopped = true
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.stopped = true
	cancel := c.cancel
	c.mu.Unlock()

	// Shutdown steps run on the loop so they see consistent state.
	reply := make(chan struct{})
	select {
	case c.inbox <- shutdownMsg{reply: reply}:
		select {
		case <-reply:
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}

	cancel()
	c.wg.Wait()
	c.reconnect.Stop()
	c.logger.Info("coordinator stopped")
	return ctx.Err()
}

// Do runs fn on the event loop and waits for it. fn may read loop-owned
// state but must not block.
func (c *Coordinator) Do(ctx context.Context, fn func()) error {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	reply := make(chan struct{})
	select {
	case c.inbox <- callMsg{fn: fn, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrNotRunning
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrNotRunning
	}
}

// Devices returns the registered device records.
func (c *Coordinator) Devices(ctx context.Context) ([]Record, error) {
	var out []Record
	err := c.Do(ctx, func() { out = c.devices.Records() })
	return out, err
}

// Status is a snapshot of the bridge.
type Status struct {
	MAC        string          `json:"mac"`
	Name       string          `json:"name,omitempty"`
	Bound      bool            `json:"bound"`
	Disabled   bool            `json:"disabled"`
	Online     bool            `json:"online"`
	Connection reconnect.State `json:"connection"`
	Pairing    pairing.Session `json:"pairing"`
	Devices    int             `json:"devices"`
	Listeners  int             `json:"listeners"`
	Dropped    uint64          `json:"dropped_events"`
}

// Status returns a snapshot of the bridge.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	var s Status
	err := c.Do(ctx, func() {
		s = Status{
			MAC:       c.bridge.MAC,
			Name:      c.bridge.Name,
			Bound:     c.bridge.Bound(),
			Disabled:  c.bridge.Disabled,
			Online:    c.online,
			Devices:   c.devices.Len(),
			Listeners: len(c.listeners),
		}
	})
	if err != nil {
		return Status{}, err
	}
	s.Connection = c.reconnect.State()
	s.Pairing = c.pairing.Session()
	s.Dropped = c.dropped.Load()
	return s, nil
}

// StartPairing starts a pairing flow, reusing one already in progress.
func (c *Coordinator) StartPairing(flow pairing.Flow) (pairing.Session, bool) {
	return c.pairing.Start(flow)
}

// CancelPairing aborts the pairing flow, if any.
func (c *Coordinator) CancelPairing() {
	c.pairing.Cancel()
}

// PairingSession returns the current pairing session.
func (c *Coordinator) PairingSession() pairing.Session {
	return c.pairing.Session()
}

// Connection returns the connection state.
func (c *Coordinator) Connection() reconnect.State {
	return c.reconnect.State()
}

// ─── Event loop ────────────────────────────────────────────────────

type message interface{ inbox() }

type (
	startupMsg  struct{ reason string }
	shutdownMsg struct{ reply chan struct{} }
	callMsg     struct {
		fn    func()
		reply chan struct{}
	}
	stateMsg    struct{ change host.StateChange }
	registryMsg struct{ event host.RegistryEvent }
	cloudMsg    struct{ msg connector.Message }
	boundMsg    struct{ result pairing.BindResult }
	addableMsg  struct{}
)

func (startupMsg) inbox()  {}
func (shutdownMsg) inbox() {}
func (callMsg) inbox()     {}
func (stateMsg) inbox()    {}
func (registryMsg) inbox() {}
func (cloudMsg) inbox()    {}
func (boundMsg) inbox()    {}
func (addableMsg) inbox()  {}

// enqueue posts a message from a host or transport callback. Those
// callbacks share the transport's delivery goroutine with request
// responses, so a full inbox drops the message instead of blocking.
func (c *Coordinator) enqueue(m message) {
	select {
	case c.inbox <- m:
	default:
		c.dropped.Add(1)
		droppedEvents.Inc()
		c.logger.Warn("coordinator inbox full, dropping event", "type", fmt.Sprintf("%T", m))
	}
}

// post delivers a message from an internal goroutine, waiting for room.
func (c *Coordinator) post(ctx context.Context, m message) {
	select {
	case c.inbox <- m:
	case <-ctx.Done():
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			if c.addableTimer != nil {
				c.addableTimer.Stop()
			}
			return
		case m := <-c.inbox:
			c.dispatch(ctx, m)
		}
	}
}

func (c *Coordinator) dispatch(ctx context.Context, m message) {
	switch m := m.(type) {
	case startupMsg:
		c.startup(ctx, m.reason)
	case shutdownMsg:
		c.shutdown(ctx)
		close(m.reply)
	case callMsg:
		m.fn()
		close(m.reply)
	case stateMsg:
		c.handleStateChange(ctx, m.change)
	case registryMsg:
		c.handleRegistry(ctx, m.event)
	case cloudMsg:
		c.handleCloud(ctx, m.msg)
	case boundMsg:
		c.handleBound(ctx, m.result)
	case addableMsg:
		c.reportAddable(ctx)
	}
}

// pump forwards connector callbacks into the inbox in arrival order.
func (c *Coordinator) pump(ctx context.Context) {
	defer c.wg.Done()
	msgs := c.conn.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			c.post(ctx, cloudMsg{msg: m})
		}
	}
}

func (c *Coordinator) onBound(r pairing.BindResult) {
	c.mu.Lock()
	running := c.running
	done := c.done
	c.mu.Unlock()
	if !running {
		return
	}
	select {
	case c.inbox <- boundMsg{result: r}:
	case <-done:
	}
}

// ─── Persistence ───────────────────────────────────────────────────

func (c *Coordinator) load(ctx context.Context) error {
	var cfg BridgeConfig
	found, err := store.LoadJSON(ctx, c.store, store.KeyBridge, &cfg)
	if err != nil {
		return fmt.Errorf("loading bridge config: %w", err)
	}
	if found {
		if cfg.MAC == "" {
			cfg.MAC = c.opts.Identity.MAC
		}
		c.bridge = cfg
	}

	devices := NewDeviceSet()
	if _, err := store.LoadJSON(ctx, c.store, store.KeyDevices, devices); err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	c.devices = devices
	registeredDevices.Set(float64(devices.Len()))
	return nil
}

func (c *Coordinator) saveDevices(ctx context.Context) {
	registeredDevices.Set(float64(c.devices.Len()))
	if err := store.SaveJSON(ctx, c.store, store.KeyDevices, c.devices); err != nil {
		c.logger.Error("saving devices failed", "error", err)
	}
}

func (c *Coordinator) saveBridge(ctx context.Context) {
	if err := store.SaveJSON(ctx, c.store, store.KeyBridge, c.bridge); err != nil {
		c.logger.Error("saving bridge config failed", "error", err)
	}
}

// ─── Listeners ─────────────────────────────────────────────────────

// attachEnabled attaches a state listener for every record whose entity
// and backing device are enabled.
func (c *Coordinator) attachEnabled() {
	for _, r := range c.devices.Records() {
		if c.recordEnabled(r) {
			c.attach(r.EntityID)
		}
	}
}

func (c *Coordinator) attach(entityID string) {
	if _, ok := c.listeners[entityID]; ok {
		return
	}
	detach, err := c.host.TrackStateChanges([]string{entityID}, func(sc host.StateChange) {
		c.enqueue(stateMsg{change: sc})
	})
	if err != nil {
		c.logger.Warn("attaching state listener failed", "entity_id", entityID, "error", err)
		return
	}
	c.listeners[entityID] = detach
}

func (c *Coordinator) detach(entityID string) {
	if detach, ok := c.listeners[entityID]; ok {
		detach()
		delete(c.listeners, entityID)
	}
}

func (c *Coordinator) detachAll() {
	for id, detach := range c.listeners {
		detach()
		delete(c.listeners, id)
	}
}

// recordEnabled reports whether both the entity and its backing device are
// enabled in the host registry.
func (c *Coordinator) recordEnabled(r Record) bool {
	if e, ok := c.host.Entity(r.EntityID); ok && e.Disabled() {
		return false
	}
	if r.DeviceID != "" {
		if d, ok := c.host.Device(r.DeviceID); ok && d.Disabled() {
			return false
		}
	}
	return true
}

// ─── Command worker ────────────────────────────────────────────────

// commandBatch is the ordered host calls produced by one inbound command.
type commandBatch struct {
	wireName string
	calls    []*attribute.ServiceCall
}

// runCommands invokes command batches one at a time. Every call after the
// first in a batch waits CommandPacing.
func (c *Coordinator) runCommands(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.commands:
			c.invoke(ctx, b)
		}
	}
}

func (c *Coordinator) invoke(ctx context.Context, b commandBatch) {
	for i, call := range b.calls {
		if i > 0 {
			t := time.NewTimer(c.opts.CommandPacing)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		err := c.host.CallService(ctx, *call)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			serviceCallsTotal.WithLabelValues(call.Domain, resultError).Inc()
			c.logger.Warn("service call failed",
				"device", b.wireName,
				"service", call.Domain+"."+call.Service,
				"error", err,
			)
			continue
		}
		serviceCallsTotal.WithLabelValues(call.Domain, resultOK).Inc()
		c.logger.Debug("service called", "device", b.wireName, "service", call.Domain+"."+call.Service)
	}
}
