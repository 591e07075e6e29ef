package coordinator

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
	"github.com/nerrad567/vhome-bridge/internal/bridge/connector"
	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
	"github.com/nerrad567/vhome-bridge/internal/bridge/model"
	"github.com/nerrad567/vhome-bridge/internal/bridge/store"
)

// ─── Host ──────────────────────────────────────────────────────────

type mockHost struct {
	mu        sync.Mutex
	entities  map[string]host.Entity
	devices   map[string]host.Device
	states    map[string]host.State
	entries   map[string]bool
	listeners map[string]func(host.StateChange)
	registry  func(host.RegistryEvent)
	calls     []attribute.ServiceCall
	reloads   []string
	onDetach  func()
}

func newMockHost() *mockHost {
	return &mockHost{
		entities:  make(map[string]host.Entity),
		devices:   make(map[string]host.Device),
		states:    make(map[string]host.State),
		entries:   make(map[string]bool),
		listeners: make(map[string]func(host.StateChange)),
	}
}

func (h *mockHost) add(e host.Entity, d host.Device, s host.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entities[e.EntityID] = e
	h.devices[d.ID] = d
	s.EntityID = e.EntityID
	h.states[e.EntityID] = s
	if e.ConfigEntryID != "" {
		h.entries[e.ConfigEntryID] = true
	}
}

func (h *mockHost) setEntity(e host.Entity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entities[e.EntityID] = e
}

func (h *mockHost) Entity(id string) (host.Entity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entities[id]
	return e, ok
}

func (h *mockHost) Device(id string) (host.Device, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.devices[id]
	return d, ok
}

func (h *mockHost) State(id string) (host.State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.states[id]
	return s, ok
}

func (h *mockHost) EntityIDs(platform string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for id, e := range h.entities {
		if _, ok := h.states[id]; ok && (platform == "" || e.Platform() == platform) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func (h *mockHost) ConfigEntryExists(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[id]
}

func (h *mockHost) TemperatureUnit() string { return attribute.UnitCelsius }

func (h *mockHost) CallService(_ context.Context, call attribute.ServiceCall) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	return nil
}

func (h *mockHost) TrackStateChanges(ids []string, fn func(host.StateChange)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		h.listeners[id] = fn
	}
	return func() {
		h.mu.Lock()
		for _, id := range ids {
			delete(h.listeners, id)
		}
		hook := h.onDetach
		h.mu.Unlock()
		if hook != nil {
			hook()
		}
	}, nil
}

func (h *mockHost) TrackRegistry(fn func(host.RegistryEvent)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registry = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.registry = nil
	}, nil
}

func (h *mockHost) Reload(_ context.Context, entryID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloads = append(h.reloads, entryID)
	return nil
}

// changeState updates the held state and notifies the entity's listener.
func (h *mockHost) changeState(id, state string, attrs map[string]any) {
	h.mu.Lock()
	old, had := h.states[id]
	cur := host.State{EntityID: id, State: state, Attributes: attrs}
	h.states[id] = cur
	fn := h.listeners[id]
	h.mu.Unlock()

	if fn == nil {
		return
	}
	sc := host.StateChange{EntityID: id, New: &cur}
	if had {
		sc.Old = &old
	}
	fn(sc)
}

func (h *mockHost) emitRegistry(ev host.RegistryEvent) {
	h.mu.Lock()
	fn := h.registry
	h.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (h *mockHost) listening(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.listeners[id]
	return ok
}

func (h *mockHost) serviceCalls() []attribute.ServiceCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.calls)
}

// ─── Connector ─────────────────────────────────────────────────────

type mockConnector struct {
	mu          sync.Mutex
	uploads     []connector.UploadRecord
	connects    int
	disconnects []string
	registered  [][]model.Model
	fail        map[string]bool
	localStart  int
	localStop   int
	msgs        chan connector.Message

	onDisconnect func()
}

func newMockConnector() *mockConnector {
	return &mockConnector{fail: make(map[string]bool), msgs: make(chan connector.Message, 16)}
}

func (m *mockConnector) Connect(context.Context, string, int, string, string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	return 0, nil
}

func (m *mockConnector) Disconnect(_ context.Context, name string) (int, error) {
	m.mu.Lock()
	m.disconnects = append(m.disconnects, name)
	hook := m.onDisconnect
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return 0, nil
}

func (m *mockConnector) Upload(_ context.Context, _ string, records []connector.UploadRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, records...)
	return 0, nil
}

func (m *mockConnector) RequestBindCode(context.Context, string) (connector.Response, error) {
	return connector.Response{Code: 20001}, nil
}

func (m *mockConnector) Bind(context.Context, string, string, string) (connector.Response, error) {
	return connector.Response{Code: 20003}, nil
}

// RegisterSubDevices names every device after its logical id, failing the
// ids listed in fail.
func (m *mockConnector) RegisterSubDevices(_ context.Context, _, _, _ string, devices []model.Model) (connector.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, devices)

	var reg connector.Registration
	for _, d := range devices {
		sub := connector.RegisteredSubDevice{LogicalID: d.LogicalID, ProductKey: d.ProductKey, Name: d.LogicalID}
		if m.fail[d.LogicalID] {
			reg.Failed = append(reg.Failed, sub)
			continue
		}
		reg.Succeeded = append(reg.Succeeded, sub)
	}
	data, _ := json.Marshal(reg)
	return connector.Response{Code: connector.CodeSuccess, Data: data}, nil
}

func (m *mockConnector) SendBindCodeToApp(context.Context, string) (int, error) { return 0, nil }

func (m *mockConnector) StartLocalHandshake(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localStart++
	return nil
}

func (m *mockConnector) StopLocalHandshake(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localStop++
	return nil
}

func (m *mockConnector) LocalPort(context.Context) (int, error) { return 42000, nil }

func (m *mockConnector) Messages() <-chan connector.Message { return m.msgs }

func (m *mockConnector) uploadsFor(subID string) []connector.UploadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []connector.UploadRecord
	for _, u := range m.uploads {
		if u.SubID == subID {
			out = append(out, u)
		}
	}
	return out
}

func (m *mockConnector) uploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

func (m *mockConnector) registrations() [][]model.Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.registered)
}

func (m *mockConnector) disconnected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.disconnects)
}

// ─── Store ─────────────────────────────────────────────────────────

type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	cleared int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
	s.cleared++
	return nil
}

func (s *memoryStore) put(t *testing.T, key string, v any) {
	t.Helper()
	if err := store.SaveJSON(context.Background(), s, key, v); err != nil {
		t.Fatal(err)
	}
}

// ─── Sink ──────────────────────────────────────────────────────────

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) ofType(typ string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type() == typ {
			out = append(out, e)
		}
	}
	return out
}

// ─── Helpers ───────────────────────────────────────────────────────

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
