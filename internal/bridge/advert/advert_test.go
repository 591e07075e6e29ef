package advert

import (
	"errors"
	"net"
	"reflect"
	"testing"

	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
)

type fakeServer struct {
	text     []string
	shutdown int
}

func (s *fakeServer) SetText(text []string) { s.text = text }
func (s *fakeServer) Shutdown()             { s.shutdown++ }

type registration struct {
	instance, service, domain string
	port                      int
	text                      []string
}

func newTestRegistrar() (*ZeroconfRegistrar, *[]registration, *[]*fakeServer) {
	var regs []registration
	var servers []*fakeServer
	r := NewZeroconfRegistrar("", "", logging.Discard())
	r.ifaces = func() []net.Interface { return nil }
	r.register = func(instance, service, domain string, port int, text []string, _ []net.Interface) (server, error) {
		regs = append(regs, registration{instance, service, domain, port, text})
		s := &fakeServer{text: text}
		servers = append(servers, s)
		return s, nil
	}
	return r, &regs, &servers
}

func testInfo() Info {
	return Info{
		MAC:         "AA:BB:CC:00:11:22",
		AppName:     "vhome",
		Version:     "1.2.0",
		InternalURL: "http://192.168.1.10:8123",
		Port:        9123,
	}
}

// ─── Info ──────────────────────────────────────────────────────────

func TestInfo_TXT(t *testing.T) {
	info := testInfo()
	want := []string{
		"id=AA:BB:CC:00:11:22",
		"name=vhome",
		"ver=1.2.0",
		"pk=ha_bridge",
		"platform=ha",
		"bind=0",
		"internal_url=http://192.168.1.10:8123",
	}
	if got := info.TXT(); !reflect.DeepEqual(got, want) {
		t.Errorf("TXT() = %v, want %v", got, want)
	}

	info.BridgeName = "bridge-7"
	info.Bind = BindBound
	got := info.TXT()
	if got[5] != "bind=1" || got[len(got)-1] != "dn=bridge-7" {
		t.Errorf("TXT() bound = %v", got)
	}
}

func TestInfo_InstanceName(t *testing.T) {
	if got := testInfo().InstanceName(); got != "vhome-AABBCC001122" {
		t.Errorf("InstanceName() = %q, want vhome-AABBCC001122", got)
	}
}

// ─── ZeroconfRegistrar ─────────────────────────────────────────────

func TestRegister_MissingMAC(t *testing.T) {
	r, regs, _ := newTestRegistrar()
	info := testInfo()
	info.MAC = ""
	if err := r.Register(info); !errors.Is(err, ErrMissingMAC) {
		t.Errorf("Register() error = %v, want ErrMissingMAC", err)
	}
	if err := r.Update(info); !errors.Is(err, ErrMissingMAC) {
		t.Errorf("Update() error = %v, want ErrMissingMAC", err)
	}
	if len(*regs) != 0 {
		t.Errorf("registrations = %d, want 0", len(*regs))
	}
}

func TestRegister_Defaults(t *testing.T) {
	r, regs, _ := newTestRegistrar()
	if err := r.Register(testInfo()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	got := (*regs)[0]
	if got.service != "_vhome._tcp" || got.domain != "local." || got.port != 9123 {
		t.Errorf("registration = %+v", got)
	}
}

func TestUpdate_SetsTextInPlace(t *testing.T) {
	r, regs, servers := newTestRegistrar()
	if err := r.Register(testInfo()); err != nil {
		t.Fatal(err)
	}

	info := testInfo()
	info.Bind = BindBound
	info.BridgeName = "b"
	if err := r.Update(info); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(*regs) != 1 {
		t.Errorf("registrations = %d, want 1 (text update only)", len(*regs))
	}
	if s := (*servers)[0]; s.text[len(s.text)-1] != "dn=b" {
		t.Errorf("text = %v", s.text)
	}

	// A new port needs a fresh registration.
	info.Port = 9999
	if err := r.Update(info); err != nil {
		t.Fatal(err)
	}
	if len(*regs) != 2 || (*servers)[0].shutdown != 1 {
		t.Errorf("registrations = %d, first shutdown = %d", len(*regs), (*servers)[0].shutdown)
	}
	if r.Info().Port != 9999 {
		t.Errorf("Info().Port = %d", r.Info().Port)
	}
}

func TestUpdate_RegistersWhenIdle(t *testing.T) {
	r, regs, _ := newTestRegistrar()
	if err := r.Update(testInfo()); err != nil {
		t.Fatal(err)
	}
	if len(*regs) != 1 {
		t.Errorf("registrations = %d, want 1", len(*regs))
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	r, _, servers := newTestRegistrar()
	r.Shutdown()
	if err := r.Register(testInfo()); err != nil {
		t.Fatal(err)
	}
	r.Shutdown()
	r.Shutdown()
	if (*servers)[0].shutdown != 1 {
		t.Errorf("shutdown calls = %d, want 1", (*servers)[0].shutdown)
	}
}

func TestRegister_Error(t *testing.T) {
	r := NewZeroconfRegistrar("", "", logging.Discard())
	r.ifaces = func() []net.Interface { return nil }
	r.register = func(string, string, string, int, []string, []net.Interface) (server, error) {
		return nil, errors.New("no multicast")
	}
	if err := r.Register(testInfo()); err == nil {
		t.Error("Register() error = nil")
	}
}

func TestFilterInterfaces(t *testing.T) {
	all := []net.Interface{
		{Name: "eth0", Flags: net.FlagUp | net.FlagMulticast},
		{Name: "lo", Flags: net.FlagUp | net.FlagLoopback},
		{Name: "docker0", Flags: net.FlagUp},
		{Name: "veth12ab", Flags: net.FlagUp},
		{Name: "br-5f1", Flags: net.FlagUp},
		{Name: "hassio", Flags: net.FlagUp},
		{Name: "wlan0", Flags: 0},
	}
	got := filterInterfaces(all)
	if len(got) != 1 || got[0].Name != "eth0" {
		t.Errorf("filterInterfaces() = %v, want [eth0]", got)
	}
}
