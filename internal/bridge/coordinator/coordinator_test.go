package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
	"github.com/nerrad567/vhome-bridge/internal/bridge/connector"
	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
	"github.com/nerrad567/vhome-bridge/internal/bridge/model"
	"github.com/nerrad567/vhome-bridge/internal/bridge/pairing"
	"github.com/nerrad567/vhome-bridge/internal/bridge/reconnect"
	"github.com/nerrad567/vhome-bridge/internal/bridge/store"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
)

const (
	testMAC        = "AA:BB:CC:00:11:22"
	testBridgeName = "vb-1"
	lightWire      = "ha_lightreg-light.light"
	kettleWire     = "ha_switchreg-kettle.switch"
)

var (
	lightEntity = host.Entity{ID: "reg-light", EntityID: "light.desk", DeviceID: "dev-light", ConfigEntryID: "entry-hue"}
	lightDevice = host.Device{ID: "dev-light", Name: "Desk", Manufacturer: "Hue", SWVersion: "1.2"}

	kettleEntity = host.Entity{ID: "reg-kettle", EntityID: "switch.kettle", DeviceID: "dev-kettle", ConfigEntryID: "entry-plug"}
	kettleDevice = host.Device{ID: "dev-kettle", Name: "Kettle"}

	lightRecord = Record{
		LogicalID: "reg-light.light",
		WireName:  lightWire,
		EntityID:  "light.desk",
		EntryID:   "entry-hue",
		DeviceID:  "dev-light",
	}
	kettleRecord = Record{
		LogicalID: "reg-kettle.switch",
		WireName:  kettleWire,
		EntityID:  "switch.kettle",
		EntryID:   "entry-plug",
		DeviceID:  "dev-kettle",
	}

	boundBridge = BridgeConfig{MAC: testMAC, Name: testBridgeName, Host: "10.0.0.2", Port: 8883, UserCode: "code-1"}
)

type fixture struct {
	c     *Coordinator
	host  *mockHost
	conn  *mockConnector
	store *memoryStore
	sink  *recordingSink
}

// newFixture starts a coordinator over the given persisted state.
func newFixture(t *testing.T, h *mockHost, bridge *BridgeConfig, records ...Record) *fixture {
	t.Helper()
	f := &fixture{host: h, conn: newMockConnector(), store: newMemoryStore(), sink: &recordingSink{}}
	if bridge != nil {
		f.store.put(t, store.KeyBridge, bridge)
	}
	if len(records) > 0 {
		f.store.put(t, store.KeyDevices, NewDeviceSet(records...))
	}

	c, err := New(Options{
		Identity: Identity{
			MAC:      testMAC,
			AppName:  "vhome",
			Version:  "1.0.0",
			DeviceID: "dev-bridge",
			EntryID:  "entry-bridge",
		},
		Host:             h,
		Connector:        f.conn,
		Store:            f.store,
		Sink:             f.sink,
		CommandPacing:    time.Millisecond,
		ReportDebounce:   10 * time.Millisecond,
		ReconnectBackoff: time.Hour,
		Logger:           logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	f.c = c
	f.sync(t)
	return f
}

// sync waits until every message queued so far has been handled.
func (f *fixture) sync(t *testing.T) {
	t.Helper()
	if err := f.c.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func (f *fixture) deliver(t *testing.T, m connector.Message) {
	t.Helper()
	f.c.enqueue(cloudMsg{msg: m})
	f.sync(t)
}

func (f *fixture) establish(t *testing.T) {
	t.Helper()
	f.deliver(t, connector.StateMessage{State: connector.StateEstablished})
}

func (f *fixture) devices(t *testing.T) []Record {
	t.Helper()
	recs, err := f.c.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	return recs
}

func (f *fixture) status(t *testing.T) Status {
	t.Helper()
	s, err := f.c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	return s
}

func hostWithLight(state string, attrs map[string]any) *mockHost {
	h := newMockHost()
	h.add(lightEntity, lightDevice, host.State{State: state, Attributes: attrs})
	return h
}

func lastUpload(t *testing.T, conn *mockConnector, subID string) connector.UploadRecord {
	t.Helper()
	ups := conn.uploadsFor(subID)
	if len(ups) == 0 {
		t.Fatalf("no upload for %q", subID)
	}
	return ups[len(ups)-1]
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Host: newMockHost(), Connector: newMockConnector(), Store: newMemoryStore()})
	if !errors.Is(err, ErrMissingMAC) {
		t.Errorf("New() without mac error = %v, want ErrMissingMAC", err)
	}

	_, err = New(Options{Identity: Identity{MAC: testMAC}})
	if !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("New() without collaborators error = %v, want ErrInvalidOptions", err)
	}
}

func TestStart_Twice(t *testing.T) {
	f := newFixture(t, newMockHost(), nil)
	if err := f.c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

// ─── Startup ───────────────────────────────────────────────────────

func TestStartup_UnboundOpensLocalHandshake(t *testing.T) {
	f := newFixture(t, newMockHost(), nil)

	f.conn.mu.Lock()
	start, stop, connects := f.conn.localStart, f.conn.localStop, f.conn.connects
	f.conn.mu.Unlock()

	if stop != 1 {
		t.Errorf("StopLocalHandshake calls = %d, want 1", stop)
	}
	if start != 1 {
		t.Errorf("StartLocalHandshake calls = %d, want 1", start)
	}
	if connects != 0 {
		t.Errorf("Connect calls = %d, want 0", connects)
	}
	if s := f.status(t); s.Bound || s.MAC != testMAC {
		t.Errorf("Status() = %+v, want unbound with mac %s", s, testMAC)
	}
}

func TestStartup_BoundConnects(t *testing.T) {
	f := newFixture(t, hostWithLight(attribute.StateUnavailable, nil), &boundBridge, lightRecord)

	f.conn.mu.Lock()
	start, connects := f.conn.localStart, f.conn.connects
	f.conn.mu.Unlock()

	if connects != 1 {
		t.Errorf("Connect calls = %d, want 1", connects)
	}
	if start != 0 {
		t.Errorf("StartLocalHandshake calls = %d, want 0", start)
	}
	if !f.host.listening("light.desk") {
		t.Error("light.desk listener not attached")
	}
	if got := f.c.Connection().Phase; got != reconnect.PhaseConnecting {
		t.Errorf("Connection().Phase = %v, want %v", got, reconnect.PhaseConnecting)
	}
}

func TestStartup_DisabledBridgeStaysDown(t *testing.T) {
	disabled := boundBridge
	disabled.Disabled = true
	f := newFixture(t, newMockHost(), &disabled)

	f.conn.mu.Lock()
	connects := f.conn.connects
	f.conn.mu.Unlock()
	if connects != 0 {
		t.Errorf("Connect calls = %d, want 0", connects)
	}
}

// ─── Established / lost ────────────────────────────────────────────

func TestEstablished_Resync(t *testing.T) {
	f := newFixture(t, hostWithLight("on", map[string]any{"brightness": 255.0}), &boundBridge, lightRecord)
	f.establish(t)

	bridge := f.conn.uploadsFor("")
	if len(bridge) < 2 {
		t.Fatalf("bridge uploads = %d, want metadata and addable list", len(bridge))
	}
	meta := bridge[0].Props
	if meta[model.WireModel] != "vhome" || meta[model.WireSerialNumber] != testMAC || meta[model.WireOnline] != "true" {
		t.Errorf("bridge metadata = %v", meta)
	}
	if _, ok := bridge[1].Props[AddableKey]; !ok {
		t.Errorf("second bridge upload = %v, want %s", bridge[1].Props, AddableKey)
	}

	if n := len(f.conn.registrations()); n != 1 {
		t.Errorf("registrations = %d, want 1", n)
	}

	flush := lastUpload(t, f.conn, lightWire).Props
	want := map[string]any{
		attribute.WirePower:       "on",
		attribute.WireBrightness:  100,
		model.WireOnline:          "true",
		model.WireSoftwareVersion: "1.2",
		model.WireHardwareVersion: model.UnknownValue,
		model.WireVendor:          "Hue",
		model.WireSerialNumber:    model.UnknownValue,
		model.WireModel:           model.UnknownValue,
	}
	for k, v := range want {
		if flush[k] != v {
			t.Errorf("flush[%s] = %v, want %v", k, flush[k], v)
		}
	}

	if got := len(f.sink.ofType(EventBridgeOnline)); got != 1 {
		t.Errorf("BridgeOnline events = %d, want 1", got)
	}
	if got := f.c.Connection().Phase; got != reconnect.PhaseConnected {
		t.Errorf("Connection().Phase = %v, want %v", got, reconnect.PhaseConnected)
	}
	if s := f.status(t); !s.Online {
		t.Error("Status().Online = false, want true")
	}
}

func TestLost_StartsReconnect(t *testing.T) {
	f := newFixture(t, newMockHost(), &boundBridge)
	f.establish(t)
	f.deliver(t, connector.StateMessage{State: connector.StateLost, ConnectResult: 3})

	events := f.sink.ofType(EventReconnectRequest)
	if len(events) != 1 {
		t.Fatalf("ReconnectRequest events = %d, want 1", len(events))
	}
	if got := events[0].(ReconnectRequest).Params; got != boundBridge.Params() {
		t.Errorf("ReconnectRequest.Params = %+v, want %+v", got, boundBridge.Params())
	}
	if got := f.c.Connection().Phase; got != reconnect.PhaseReconnecting {
		t.Errorf("Connection().Phase = %v, want %v", got, reconnect.PhaseReconnecting)
	}
	if s := f.status(t); s.Online {
		t.Error("Status().Online = true after link loss")
	}
}

func TestLost_RemovedClearsBridge(t *testing.T) {
	f := newFixture(t, hostWithLight("on", nil), &boundBridge, lightRecord)
	f.establish(t)
	f.deliver(t, connector.StateMessage{State: connector.StateLost, ConnectResult: connector.ConnectResultRemoved})

	assertBridgeRemoved(t, f, "removed")
}

// ─── State changes ─────────────────────────────────────────────────

func TestStateChange_ActivationUploadsFullState(t *testing.T) {
	f := newFixture(t, hostWithLight(attribute.StateUnavailable, nil), &boundBridge, lightRecord)
	f.establish(t)

	f.host.changeState("light.desk", "on", map[string]any{
		"brightness":           128.0,
		"supported_color_modes": []any{"brightness"},
		"friendly_name":        "Desk Lamp",
	})
	f.sync(t)

	got := lastUpload(t, f.conn, lightWire).Props
	want := map[string]any{
		attribute.WirePower:      "on",
		attribute.WireBrightness: 50,
		model.WireOnline:         "true",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("upload = %v, want %v", got, want)
	}

	events := f.sink.ofType(EventDeviceStateChanged)
	last := events[len(events)-1].(DeviceStateChanged)
	if !last.Flush || !last.Online || last.Platform != "light" {
		t.Errorf("DeviceStateChanged = %+v, want flush online light", last)
	}
}

func TestStateChange_Diff(t *testing.T) {
	tests := []struct {
		name     string
		oldState string
		oldAttrs map[string]any
		newState string
		newAttrs map[string]any
		want     map[string]any
	}{
		{
			name:     "brightness only",
			oldState: "on", oldAttrs: map[string]any{"brightness": 255.0, "friendly_name": "Desk"},
			newState: "on", newAttrs: map[string]any{"brightness": 128.0, "friendly_name": "Desk"},
			want:     map[string]any{attribute.WireBrightness: 50, model.WireOnline: "true"},
		},
		{
			name:     "turned off",
			oldState: "on", oldAttrs: map[string]any{"brightness": 255.0},
			newState: "off", newAttrs: map[string]any{},
			want:     map[string]any{attribute.WirePower: "off", model.WireOnline: "true"},
		},
		{
			name:     "went unavailable",
			oldState: "on", oldAttrs: map[string]any{"brightness": 255.0},
			newState: attribute.StateUnavailable, newAttrs: map[string]any{},
			want:     map[string]any{model.WireOnline: "false"},
		},
		{
			name:     "unmapped attribute",
			oldState: "on", oldAttrs: map[string]any{"friendly_name": "Desk"},
			newState: "on", newAttrs: map[string]any{"friendly_name": "Desk Lamp"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, hostWithLight(tt.oldState, tt.oldAttrs), &boundBridge, lightRecord)
			f.establish(t)
			before := len(f.conn.uploadsFor(lightWire))

			f.host.changeState("light.desk", tt.newState, tt.newAttrs)
			f.sync(t)

			ups := f.conn.uploadsFor(lightWire)
			if tt.want == nil {
				if len(ups) != before {
					t.Errorf("uploads = %d, want %d", len(ups), before)
				}
				return
			}
			if len(ups) != before+1 {
				t.Fatalf("uploads = %d, want %d", len(ups), before+1)
			}
			if got := ups[len(ups)-1].Props; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("upload = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateChange_OfflineNotUploaded(t *testing.T) {
	f := newFixture(t, hostWithLight("off", nil), &boundBridge, lightRecord)

	f.host.changeState("light.desk", "on", nil)
	f.sync(t)

	if n := f.conn.uploadCount(); n != 0 {
		t.Errorf("uploads before link established = %d, want 0", n)
	}
}

// ─── Commands ──────────────────────────────────────────────────────

func TestSet_SwitchTurnOff(t *testing.T) {
	h := newMockHost()
	h.add(kettleEntity, kettleDevice, host.State{State: "on"})
	f := newFixture(t, h, &boundBridge, kettleRecord)
	f.establish(t)
	before := f.conn.uploadCount()

	f.deliver(t, connector.DataMessage{Action: connector.ActionSet, Body: []connector.DataItem{
		{SubID: kettleWire, Props: map[string]any{attribute.WirePower: "off"}},
	}})

	waitFor(t, "service call", func() bool { return len(h.serviceCalls()) == 1 })
	want := attribute.ServiceCall{Domain: "switch", Service: "turn_off", Data: map[string]any{"entity_id": "switch.kettle"}}
	if got := h.serviceCalls()[0]; !reflect.DeepEqual(got, want) {
		t.Errorf("service call = %+v, want %+v", got, want)
	}
	if n := f.conn.uploadCount(); n != before {
		t.Errorf("uploads after set = %d, want %d", n, before)
	}
}

func TestSet_MultipleProps(t *testing.T) {
	f := newFixture(t, hostWithLight("off", nil), &boundBridge, lightRecord)
	f.establish(t)

	f.deliver(t, connector.DataMessage{Action: connector.ActionSet, Body: []connector.DataItem{
		{
			SubID: lightWire,
			Props: map[string]any{attribute.WirePower: "on", attribute.WireBrightness: 50.0},
			Order: []string{attribute.WireBrightness, attribute.WirePower},
		},
	}})

	waitFor(t, "two service calls", func() bool { return len(f.host.serviceCalls()) == 2 })
	calls := f.host.serviceCalls()
	if calls[0].Service != "turn_on" || calls[0].Data["brightness"] != 128 {
		t.Errorf("first call = %+v, want turn_on brightness 128", calls[0])
	}
	if calls[1].Service != "turn_on" {
		t.Errorf("second call = %+v, want turn_on", calls[1])
	}
}

func TestSet_ClimateKeepsWireOrder(t *testing.T) {
	acEntity := host.Entity{ID: "reg-ac", EntityID: "climate.bedroom", DeviceID: "dev-ac", ConfigEntryID: "entry-ac"}
	acRecord := Record{
		LogicalID: "reg-ac.climate",
		WireName:  "ha_climatereg-ac.climate",
		EntityID:  "climate.bedroom",
		EntryID:   "entry-ac",
		DeviceID:  "dev-ac",
	}
	h := newMockHost()
	h.add(acEntity, host.Device{ID: "dev-ac", Name: "Bedroom AC"}, host.State{State: "off", Attributes: map[string]any{
		"supported_features": float64(1),
		"hvac_modes":         []any{"off", "cool", "heat"},
		"min_temp":           float64(7),
		"max_temp":           float64(35),
	}})
	f := newFixture(t, h, &boundBridge, acRecord)
	f.establish(t)

	var item connector.DataItem
	raw := `{"subId":"ha_climatereg-ac.climate","props":{"vivo_std_power":"on","vivo_std_mode":"heat","vivo_std_temperature":25}}`
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	f.deliver(t, connector.DataMessage{Action: connector.ActionSet, Body: []connector.DataItem{item}})

	waitFor(t, "three service calls", func() bool { return len(f.host.serviceCalls()) == 3 })
	var got []string
	for _, c := range f.host.serviceCalls() {
		got = append(got, c.Service)
	}
	want := []string{"turn_on", "set_hvac_mode", "set_temperature"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("services = %v, want %v", got, want)
	}
}

func TestSet_Ignored(t *testing.T) {
	tests := []struct {
		name   string
		state  string
		bridge BridgeConfig
		subID  string
	}{
		{name: "unavailable entity", state: attribute.StateUnavailable, bridge: boundBridge, subID: lightWire},
		{name: "unknown device", state: "on", bridge: boundBridge, subID: "ha_lightnope"},
		{name: "disabled bridge", state: "on", bridge: BridgeConfig{MAC: testMAC, Name: testBridgeName, Host: "h", Port: 1, UserCode: "c", Disabled: true}, subID: lightWire},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := tt.bridge
			f := newFixture(t, hostWithLight(tt.state, nil), &bridge, lightRecord)
			f.establish(t)
			f.deliver(t, connector.DataMessage{Action: connector.ActionSet, Body: []connector.DataItem{
				{SubID: tt.subID, Props: map[string]any{attribute.WirePower: "off"}},
			}})
			time.Sleep(20 * time.Millisecond)
			if calls := f.host.serviceCalls(); len(calls) != 0 {
				t.Errorf("service calls = %+v, want none", calls)
			}
		})
	}
}

// ─── Unbind ────────────────────────────────────────────────────────

func TestEvent_UnbindDevice(t *testing.T) {
	h := hostWithLight("on", nil)
	h.add(kettleEntity, kettleDevice, host.State{State: "on"})
	f := newFixture(t, h, &boundBridge, lightRecord, kettleRecord)
	f.establish(t)

	f.deliver(t, connector.DataMessage{Action: connector.ActionEvent, Body: []connector.DataItem{
		{SubID: kettleWire, Props: map[string]any{"unbind": 1.0}},
		{SubID: lightWire, Props: map[string]any{"unbind": 0.0}},
	}})

	recs := f.devices(t)
	if len(recs) != 1 || recs[0].LogicalID != lightRecord.LogicalID {
		t.Errorf("devices = %+v, want only the light", recs)
	}
	if h.listening("switch.kettle") {
		t.Error("switch.kettle listener still attached")
	}
	removed := f.sink.ofType(EventDevicesRemoved)
	if len(removed) != 1 || !reflect.DeepEqual(removed[0].(DevicesRemoved).LogicalIDs, []string{"reg-kettle.switch"}) {
		t.Errorf("DevicesRemoved = %+v", removed)
	}

	persisted := NewDeviceSet()
	if _, err := store.LoadJSON(context.Background(), f.store, store.KeyDevices, persisted); err != nil {
		t.Fatal(err)
	}
	if persisted.Len() != 1 {
		t.Errorf("persisted devices = %d, want 1", persisted.Len())
	}
}

func TestEvent_UnbindBridge(t *testing.T) {
	f := newFixture(t, hostWithLight("on", nil), &boundBridge, lightRecord)
	f.establish(t)

	f.deliver(t, connector.DataMessage{Action: connector.ActionEvent, Body: []connector.DataItem{
		{Props: map[string]any{"unbind": 1.0}},
	}})

	assertBridgeRemoved(t, f, "unbind")
}

func TestEvent_EmptySubIDKeepsBridge(t *testing.T) {
	f := newFixture(t, hostWithLight("on", nil), &boundBridge, lightRecord)
	f.establish(t)

	var item connector.DataItem
	if err := json.Unmarshal([]byte(`{"subId":"","props":{"unbind":1}}`), &item); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	f.deliver(t, connector.DataMessage{Action: connector.ActionEvent, Body: []connector.DataItem{item}})

	if got := f.conn.disconnected(); len(got) != 0 {
		t.Errorf("Disconnect calls = %v, want none", got)
	}
	if n := len(f.devices(t)); n != 1 {
		t.Errorf("devices = %d, want 1", n)
	}
	if removed := f.sink.ofType(EventDevicesRemoved); len(removed) != 0 {
		t.Errorf("DevicesRemoved = %+v, want none", removed)
	}
	var cfg BridgeConfig
	if _, err := store.LoadJSON(context.Background(), f.store, store.KeyBridge, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg != boundBridge {
		t.Errorf("persisted bridge = %+v, want %+v", cfg, boundBridge)
	}
}

func assertBridgeRemoved(t *testing.T, f *fixture, reason string) {
	t.Helper()

	if got := f.conn.disconnected(); len(got) == 0 || got[0] != testBridgeName {
		t.Errorf("Disconnect calls = %v, want [%s]", got, testBridgeName)
	}
	if n := len(f.devices(t)); n != 0 {
		t.Errorf("devices = %d, want 0", n)
	}
	if f.host.listening("light.desk") {
		t.Error("listener still attached after removal")
	}

	var cfg BridgeConfig
	if _, err := store.LoadJSON(context.Background(), f.store, store.KeyBridge, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg != (BridgeConfig{MAC: testMAC}) {
		t.Errorf("persisted bridge = %+v, want mac only", cfg)
	}

	removed := f.sink.ofType(EventDevicesRemoved)
	if len(removed) != 1 || removed[0].(DevicesRemoved).Reason != reason {
		t.Errorf("DevicesRemoved = %+v, want one with reason %q", removed, reason)
	}

	f.host.mu.Lock()
	reloads := f.host.reloads
	f.host.mu.Unlock()
	if !reflect.DeepEqual(reloads, []string{"entry-bridge"}) {
		t.Errorf("reloads = %v, want [entry-bridge]", reloads)
	}

	f.conn.mu.Lock()
	start := f.conn.localStart
	f.conn.mu.Unlock()
	if start != 1 {
		t.Errorf("StartLocalHandshake calls = %d, want 1 after removal", start)
	}
}

// ─── Registration ──────────────────────────────────────────────────

func TestAddableSelection_Registers(t *testing.T) {
	h := hostWithLight("on", nil)
	h.add(kettleEntity, kettleDevice, host.State{State: "off"})
	f := newFixture(t, h, &boundBridge, lightRecord)
	f.establish(t)

	addable := f.sink.ofType(EventAddableDevices)
	if len(addable) == 0 {
		t.Fatal("no AddableDevices event")
	}
	devs := addable[len(addable)-1].(AddableDevices).Devices
	if len(devs) != 1 || devs[0].LogicalID != "reg-kettle.switch" || devs[0].Name != "Kettle(switch)" {
		t.Errorf("addable = %+v, want the kettle", devs)
	}

	f.deliver(t, connector.DataMessage{Action: connector.ActionSet, Body: []connector.DataItem{
		{Props: map[string]any{AddableKey: []any{"reg-kettle.switch", "reg-gone.light"}}},
	}})

	regs := f.conn.registrations()
	last := regs[len(regs)-1]
	if len(last) != 2 {
		t.Fatalf("registered models = %d, want 2", len(last))
	}

	recs := f.devices(t)
	if len(recs) != 2 || recs[1] != kettleRecord {
		t.Errorf("devices = %+v, want light then kettle %+v", recs, kettleRecord)
	}
	if !h.listening("switch.kettle") {
		t.Error("switch.kettle listener not attached")
	}
	added := f.sink.ofType(EventDevicesAdded)
	if len(added) != 1 || !reflect.DeepEqual(added[0].(DevicesAdded).LogicalIDs, []string{"reg-kettle.switch"}) {
		t.Errorf("DevicesAdded = %+v", added)
	}
	if ups := f.conn.uploadsFor(kettleWire); len(ups) == 0 {
		t.Error("new device not flushed")
	}
}

func TestRegistration_FailedKeepsSet(t *testing.T) {
	h := hostWithLight("on", nil)
	h.add(kettleEntity, kettleDevice, host.State{State: "off"})
	f := newFixture(t, h, &boundBridge, lightRecord)
	f.conn.fail["reg-kettle.switch"] = true
	f.establish(t)

	f.deliver(t, connector.DataMessage{Action: connector.ActionSet, Body: []connector.DataItem{
		{Props: map[string]any{AddableKey: []any{"reg-kettle.switch"}}},
	}})

	if recs := f.devices(t); len(recs) != 1 {
		t.Errorf("devices = %+v, want only the light", recs)
	}
	results := f.sink.ofType(EventRegistrationResult)
	last := results[len(results)-1].(RegistrationResult)
	if !reflect.DeepEqual(last.Failed, []string{"reg-kettle.switch"}) {
		t.Errorf("RegistrationResult.Failed = %v", last.Failed)
	}
}

// ─── Registry events ───────────────────────────────────────────────

func TestRegistry_EntityDisableEnable(t *testing.T) {
	h := hostWithLight("on", nil)
	f := newFixture(t, h, &boundBridge, lightRecord)
	f.establish(t)

	disabled := lightEntity
	disabled.DisabledBy = "user"
	h.setEntity(disabled)
	h.emitRegistry(host.RegistryEvent{
		Kind: host.EntityRegistryEvent, Action: host.ActionUpdate, EntityID: "light.desk",
		Changes: map[string]any{"disabled_by": nil},
	})
	f.sync(t)

	if h.listening("light.desk") {
		t.Error("listener attached after disable")
	}
	if got := lastUpload(t, f.conn, lightWire).Props; !reflect.DeepEqual(got, map[string]any{model.WireOnline: "false"}) {
		t.Errorf("upload after disable = %v, want offline", got)
	}

	h.setEntity(lightEntity)
	h.emitRegistry(host.RegistryEvent{
		Kind: host.EntityRegistryEvent, Action: host.ActionUpdate, EntityID: "light.desk",
		Changes: map[string]any{"disabled_by": "user"},
	})
	f.sync(t)

	if !h.listening("light.desk") {
		t.Error("listener not attached after enable")
	}
	if got := lastUpload(t, f.conn, lightWire).Props[model.WireOnline]; got != "true" {
		t.Errorf("online after enable = %v, want true", got)
	}
}

func TestRegistry_BridgeDeviceDisable(t *testing.T) {
	h := hostWithLight("on", nil)
	f := newFixture(t, h, &boundBridge, lightRecord)
	f.establish(t)

	h.emitRegistry(host.RegistryEvent{
		Kind: host.DeviceRegistryEvent, Action: host.ActionUpdate, DeviceID: "dev-bridge",
		Changes: map[string]any{"disabled_by": nil},
	})
	f.sync(t)

	if s := f.status(t); !s.Disabled || s.Online {
		t.Errorf("Status() = %+v, want disabled and offline", s)
	}
	if got := f.conn.disconnected(); len(got) != 1 {
		t.Errorf("Disconnect calls = %v, want 1", got)
	}

	f.conn.mu.Lock()
	before := f.conn.connects
	f.conn.mu.Unlock()

	h.emitRegistry(host.RegistryEvent{
		Kind: host.DeviceRegistryEvent, Action: host.ActionUpdate, DeviceID: "dev-bridge",
		Changes: map[string]any{"disabled_by": "user"},
	})
	f.sync(t)

	f.conn.mu.Lock()
	after := f.conn.connects
	f.conn.mu.Unlock()
	if after != before+1 {
		t.Errorf("Connect calls = %d, want %d", after, before+1)
	}
	if s := f.status(t); s.Disabled {
		t.Error("Status().Disabled = true after enable")
	}
}

func TestRegistry_EntityRemoved(t *testing.T) {
	sibling := host.Entity{ID: "reg-lamp", EntityID: "light.lamp", DeviceID: "dev-light", ConfigEntryID: "entry-hue"}
	siblingRecord := Record{LogicalID: "reg-lamp.light", WireName: "ha_lightreg-lamp.light", EntityID: "light.lamp", EntryID: "entry-hue", DeviceID: "dev-light"}

	tests := []struct {
		name        string
		entryExists bool
		wantLeft    int
	}{
		{name: "entry still loaded", entryExists: true, wantLeft: 1},
		{name: "entry removed", entryExists: false, wantLeft: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hostWithLight("on", nil)
			h.add(sibling, lightDevice, host.State{State: "on"})
			f := newFixture(t, h, &boundBridge, lightRecord, siblingRecord)
			f.establish(t)
			regsBefore := len(f.conn.registrations())

			h.mu.Lock()
			h.entries["entry-hue"] = tt.entryExists
			h.mu.Unlock()
			h.emitRegistry(host.RegistryEvent{Kind: host.EntityRegistryEvent, Action: host.ActionRemove, EntityID: "light.desk"})
			f.sync(t)

			if n := len(f.devices(t)); n != tt.wantLeft {
				t.Errorf("devices left = %d, want %d", n, tt.wantLeft)
			}
			if h.listening("light.desk") {
				t.Error("removed entity still has a listener")
			}
			if got := len(f.conn.registrations()); got != regsBefore+1 {
				t.Errorf("registrations = %d, want %d", got, regsBefore+1)
			}
		})
	}
}

func TestRegistry_CreateDebouncesAddable(t *testing.T) {
	f := newFixture(t, hostWithLight("on", nil), &boundBridge, lightRecord)
	f.establish(t)
	before := len(f.sink.ofType(EventAddableDevices))

	for range 3 {
		f.host.emitRegistry(host.RegistryEvent{Kind: host.EntityRegistryEvent, Action: host.ActionCreate, EntityID: "switch.new"})
	}
	f.sync(t)

	waitFor(t, "debounced addable report", func() bool {
		return len(f.sink.ofType(EventAddableDevices)) == before+1
	})
	time.Sleep(30 * time.Millisecond)
	if got := len(f.sink.ofType(EventAddableDevices)); got != before+1 {
		t.Errorf("AddableDevices events = %d, want %d", got, before+1)
	}
}

// ─── Pairing ───────────────────────────────────────────────────────

func TestHandleBound_PersistsAndConnects(t *testing.T) {
	f := newFixture(t, newMockHost(), nil)

	f.c.onBound(pairingResult())
	f.sync(t)

	var cfg BridgeConfig
	if _, err := store.LoadJSON(context.Background(), f.store, store.KeyBridge, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "vb-new" || cfg.Host != "10.0.0.9" || cfg.Port != 8883 || cfg.UserCode != "c0de" {
		t.Errorf("persisted bridge = %+v", cfg)
	}
	f.conn.mu.Lock()
	connects := f.conn.connects
	f.conn.mu.Unlock()
	if connects != 1 {
		t.Errorf("Connect calls = %d, want 1", connects)
	}
}

func TestLocalHandshake_StartsLANPairing(t *testing.T) {
	f := newFixture(t, newMockHost(), nil)

	f.deliver(t, connector.LocalEventMessage{Cmd: connector.LocalHandshake})

	// The mock connector refuses bind codes, so the flow ends Failed.
	waitFor(t, "lan pairing attempt", func() bool {
		s := f.c.PairingSession()
		return s.Flow == pairing.FlowLAN && s.State == pairing.StateFailed
	})
	if got := f.c.PairingSession().Reason; got != pairing.ReasonNetworkError {
		t.Errorf("Reason = %q, want %q", got, pairing.ReasonNetworkError)
	}
}

func TestLocalDisconnect_IdleIsNoop(t *testing.T) {
	f := newFixture(t, newMockHost(), nil)

	f.deliver(t, connector.LocalEventMessage{Cmd: connector.LocalDisconnect})
	f.sync(t)

	if got := f.c.PairingSession().State; got != pairing.StateIdle {
		t.Errorf("State = %v, want idle", got)
	}
}

// ─── Pump ──────────────────────────────────────────────────────────

func TestPump_ForwardsMessages(t *testing.T) {
	f := newFixture(t, newMockHost(), &boundBridge)
	f.conn.msgs <- connector.StateMessage{State: connector.StateEstablished}

	waitFor(t, "bridge online", func() bool { return len(f.sink.ofType(EventBridgeOnline)) == 1 })
}

// ─── Stop ──────────────────────────────────────────────────────────

func TestStop_ReleasesListeners(t *testing.T) {
	h := hostWithLight("on", nil)
	f := newFixture(t, h, &boundBridge, lightRecord)
	f.establish(t)
	f.deliver(t, connector.StateMessage{State: connector.StateLost, ConnectResult: 3})
	if got := f.c.Connection().Phase; got != reconnect.PhaseReconnecting {
		t.Fatalf("Connection().Phase = %v, want %v", got, reconnect.PhaseReconnecting)
	}

	// Both hooks run on the event loop, so plain variables are safe to
	// read once Stop returns.
	var phaseAtDisconnect, phaseAtDetach reconnect.Phase
	f.conn.mu.Lock()
	f.conn.onDisconnect = func() { phaseAtDisconnect = f.c.Connection().Phase }
	f.conn.mu.Unlock()
	h.mu.Lock()
	h.onDetach = func() { phaseAtDetach = f.c.Connection().Phase }
	h.mu.Unlock()

	if err := f.c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if h.listening("light.desk") {
		t.Error("state listener attached after Stop")
	}
	h.mu.Lock()
	registry := h.registry
	h.mu.Unlock()
	if registry != nil {
		t.Error("registry listener attached after Stop")
	}
	if got := f.conn.disconnected(); len(got) != 1 || got[0] != testBridgeName {
		t.Errorf("Disconnect calls = %v, want [%s]", got, testBridgeName)
	}
	if phaseAtDisconnect == reconnect.PhaseReconnecting {
		t.Error("reconnect loop still running at Disconnect")
	}
	if phaseAtDetach == reconnect.PhaseReconnecting {
		t.Error("reconnect loop still running when listeners were released")
	}
	if _, err := f.c.Devices(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Devices() after Stop error = %v, want ErrNotRunning", err)
	}
}

func pairingResult() pairing.BindResult {
	return pairing.BindResult{Name: "vb-new", Host: "10.0.0.9", Port: 8883, UserCode: "c0de", MAC: testMAC}
}
