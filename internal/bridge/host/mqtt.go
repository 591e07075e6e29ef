package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of the MQTT client the adapter needs.
// *mqtt.Client satisfies it; tests substitute a mock.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTHost implements Host over the host platform's MQTT export.
//
// The platform publishes retained registry entries and entity states under
// the host prefix; the adapter mirrors them into memory and fans state
// changes out to listeners:
//
//	{prefix}/state/{entity_id}                retained State JSON
//	{prefix}/registry/entity/{entity_id}      retained Entity JSON
//	{prefix}/registry/device/{device_id}      retained Device JSON
//	{prefix}/registry/config_entry/{entry_id} retained presence marker
//	{prefix}/event/{kind}                     RegistryEvent JSON
//
// An empty retained payload removes the entry.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Listener callbacks run on the MQTT client's delivery goroutine.
type MQTTHost struct {
	client MQTTClient
	topics mqtt.Topics
	qos    byte
	unit   string
	logger *logging.Logger

	mu       sync.RWMutex
	entities map[string]Entity
	devices  map[string]Device
	states   map[string]State
	entries  map[string]struct{}

	lmu               sync.Mutex
	nextListener      int
	stateListeners    map[int]*stateListener
	registryListeners map[int]func(RegistryEvent)
	subscribed        []string
}

type stateListener struct {
	entityIDs map[string]struct{}
	fn        func(StateChange)
}

// NewMQTTHost creates a host adapter. Call Start to begin mirroring.
//
// Parameters:
//   - client: Connected MQTT client
//   - cfg: Host adapter configuration
//   - qos: QoS used for subscriptions and service calls
//   - logger: Logger for malformed payloads
//
// Returns:
//   - *MQTTHost: Adapter ready to Start
func NewMQTTHost(client MQTTClient, cfg config.HostConfig, qos byte, logger *logging.Logger) *MQTTHost {
	unit := cfg.TemperatureUnit
	if unit == "" {
		unit = attribute.UnitCelsius
	}
	return &MQTTHost{
		client:            client,
		topics:            mqtt.Topics{HostPrefix: cfg.TopicPrefix},
		qos:               qos,
		unit:              unit,
		logger:            logger.With("component", "host"),
		entities:          make(map[string]Entity),
		devices:           make(map[string]Device),
		states:            make(map[string]State),
		entries:           make(map[string]struct{}),
		stateListeners:    make(map[int]*stateListener),
		registryListeners: make(map[int]func(RegistryEvent)),
	}
}

// Start subscribes to the host's registry, state and event topics.
// Retained messages arrive immediately and populate the mirror.
func (h *MQTTHost) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{h.topics.AllHostConfigEntries(), h.handleConfigEntry},
		{h.topics.AllHostDevices(), h.handleDevice},
		{h.topics.AllHostEntities(), h.handleEntity},
		{h.topics.AllHostStates(), h.handleState},
		{h.topics.AllHostEvents(), h.handleEvent},
	}

	for _, s := range subs {
		if err := h.client.Subscribe(s.topic, h.qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
		h.lmu.Lock()
		h.subscribed = append(h.subscribed, s.topic)
		h.lmu.Unlock()
	}
	return nil
}

// Stop unsubscribes from every topic and drops all listeners.
func (h *MQTTHost) Stop() {
	h.lmu.Lock()
	topics := h.subscribed
	h.subscribed = nil
	h.stateListeners = make(map[int]*stateListener)
	h.registryListeners = make(map[int]func(RegistryEvent))
	h.lmu.Unlock()

	for _, topic := range topics {
		if err := h.client.Unsubscribe(topic); err != nil {
			h.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}
}

// Entity implements Host.
func (h *MQTTHost) Entity(entityID string) (Entity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entities[entityID]
	return e, ok
}

// Device implements Host.
func (h *MQTTHost) Device(deviceID string) (Device, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d, ok := h.devices[deviceID]
	return d, ok
}

// State implements Host.
func (h *MQTTHost) State(entityID string) (State, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.states[entityID]
	return s, ok
}

// EntityIDs implements Host. The result is sorted.
func (h *MQTTHost) EntityIDs(platform string) []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.states))
	for id := range h.states {
		if platform == "" || strings.HasPrefix(id, platform+".") {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ConfigEntryExists implements Host.
func (h *MQTTHost) ConfigEntryExists(entryID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.entries[entryID]
	return ok
}

// TemperatureUnit implements Host.
func (h *MQTTHost) TemperatureUnit() string {
	return h.unit
}

// CallService publishes a service invocation for the host to execute.
func (h *MQTTHost) CallService(ctx context.Context, call attribute.ServiceCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("marshalling service call: %w", err)
	}
	if err := h.client.Publish(h.topics.HostServiceCall(), payload, h.qos, false); err != nil {
		return fmt.Errorf("%w: %s.%s: %w", ErrServiceCall, call.Domain, call.Service, err)
	}
	return nil
}

// Reload asks the host to restart an integration entry.
func (h *MQTTHost) Reload(ctx context.Context, entryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]string{"entry_id": entryID})
	if err != nil {
		return fmt.Errorf("marshalling reload request: %w", err)
	}
	if err := h.client.Publish(h.topics.HostRequest("reload"), payload, h.qos, false); err != nil {
		return fmt.Errorf("publishing reload request: %w", err)
	}
	return nil
}

// TrackStateChanges implements Host.
func (h *MQTTHost) TrackStateChanges(entityIDs []string, fn func(StateChange)) (func(), error) {
	if fn == nil {
		return nil, ErrNilListener
	}
	ids := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		ids[id] = struct{}{}
	}

	h.lmu.Lock()
	h.nextListener++
	key := h.nextListener
	h.stateListeners[key] = &stateListener{entityIDs: ids, fn: fn}
	h.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.lmu.Lock()
			delete(h.stateListeners, key)
			h.lmu.Unlock()
		})
	}, nil
}

// TrackRegistry implements Host.
func (h *MQTTHost) TrackRegistry(fn func(RegistryEvent)) (func(), error) {
	if fn == nil {
		return nil, ErrNilListener
	}

	h.lmu.Lock()
	h.nextListener++
	key := h.nextListener
	h.registryListeners[key] = fn
	h.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.lmu.Lock()
			delete(h.registryListeners, key)
			h.lmu.Unlock()
		})
	}, nil
}

// ListenerCount returns the number of attached state listeners.
func (h *MQTTHost) ListenerCount() int {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	return len(h.stateListeners)
}

// ─── Message handlers ──────────────────────────────────────────────

func (h *MQTTHost) handleState(topic string, payload []byte) error {
	entityID := lastSegment(topic)

	var next *State
	if len(payload) > 0 {
		var s State
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("decoding state %s: %w", entityID, err)
		}
		if s.EntityID == "" {
			s.EntityID = entityID
		}
		next = &s
	}

	h.mu.Lock()
	var prev *State
	if old, ok := h.states[entityID]; ok {
		prev = &old
	}
	if next != nil {
		h.states[entityID] = *next
	} else {
		delete(h.states, entityID)
	}
	h.mu.Unlock()

	if prev == nil && next == nil {
		return nil
	}

	change := StateChange{EntityID: entityID, Old: prev, New: next}
	for _, fn := range h.stateListenersFor(entityID) {
		fn(change)
	}
	return nil
}

func (h *MQTTHost) stateListenersFor(entityID string) []func(StateChange) {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	var fns []func(StateChange)
	for _, l := range h.stateListeners {
		if _, ok := l.entityIDs[entityID]; ok {
			fns = append(fns, l.fn)
		}
	}
	return fns
}

func (h *MQTTHost) handleEntity(topic string, payload []byte) error {
	entityID := lastSegment(topic)
	if len(payload) == 0 {
		h.mu.Lock()
		delete(h.entities, entityID)
		h.mu.Unlock()
		return nil
	}

	var e Entity
	if err := json.Unmarshal(payload, &e); err != nil {
		return fmt.Errorf("decoding entity %s: %w", entityID, err)
	}
	if e.EntityID == "" {
		e.EntityID = entityID
	}
	h.mu.Lock()
	h.entities[e.EntityID] = e
	h.mu.Unlock()
	return nil
}

func (h *MQTTHost) handleDevice(topic string, payload []byte) error {
	deviceID := lastSegment(topic)
	if len(payload) == 0 {
		h.mu.Lock()
		delete(h.devices, deviceID)
		h.mu.Unlock()
		return nil
	}

	var d Device
	if err := json.Unmarshal(payload, &d); err != nil {
		return fmt.Errorf("decoding device %s: %w", deviceID, err)
	}
	if d.ID == "" {
		d.ID = deviceID
	}
	h.mu.Lock()
	h.devices[d.ID] = d
	h.mu.Unlock()
	return nil
}

func (h *MQTTHost) handleConfigEntry(topic string, payload []byte) error {
	entryID := lastSegment(topic)
	h.mu.Lock()
	if len(payload) == 0 {
		delete(h.entries, entryID)
	} else {
		h.entries[entryID] = struct{}{}
	}
	h.mu.Unlock()
	return nil
}

func (h *MQTTHost) handleEvent(topic string, payload []byte) error {
	var kind RegistryEventKind
	switch lastSegment(topic) {
	case mqtt.HostEventEntityRegistry:
		kind = EntityRegistryEvent
	case mqtt.HostEventDeviceRegistry:
		kind = DeviceRegistryEvent
	default:
		return nil
	}

	var ev RegistryEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decoding %s event: %w", kind, err)
	}
	ev.Kind = kind

	h.lmu.Lock()
	fns := make([]func(RegistryEvent), 0, len(h.registryListeners))
	for _, fn := range h.registryListeners {
		fns = append(fns, fn)
	}
	h.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

func lastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
