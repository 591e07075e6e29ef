// Package advert announces the bridge on the local network over mDNS so the
// phone app can find it during LAN pairing.
package advert

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/nerrad567/vhome-bridge/internal/bridge/model"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
)

// Advertisement defaults.
const (
	DefaultService = "_vhome._tcp"
	DefaultDomain  = "local."
	Platform       = "ha"
)

// ErrMissingMAC is returned when the bridge has no hardware identity.
var ErrMissingMAC = errors.New("advert: bridge mac is required")

// BindFlag is the bind state published in the TXT record.
type BindFlag int

// Bind flags understood by the phone app.
const (
	BindUnbound BindFlag = iota
	BindBound
	BindInvalid
)

// Info is everything published about the bridge.
type Info struct {
	MAC         string
	AppName     string
	Version     string
	InternalURL string
	// BridgeName is the cloud-assigned name, empty until bound.
	BridgeName string
	Bind       BindFlag
	Port       int
}

// InstanceName returns "{app}-{mac without colons}".
func (i Info) InstanceName() string {
	return i.AppName + "-" + strings.ReplaceAll(i.MAC, ":", "")
}

// TXT returns the TXT record entries in publication order.
func (i Info) TXT() []string {
	txt := []string{
		"id=" + i.MAC,
		"name=" + i.AppName,
		"ver=" + i.Version,
		"pk=" + model.BridgeProductKey,
		"platform=" + Platform,
		fmt.Sprintf("bind=%d", i.Bind),
		"internal_url=" + i.InternalURL,
	}
	if i.BridgeName != "" {
		txt = append(txt, "dn="+i.BridgeName)
	}
	return txt
}

// Registrar publishes and withdraws the bridge advertisement.
type Registrar interface {
	// Register publishes info, replacing any earlier registration.
	Register(info Info) error
	// Update refreshes the TXT record of the live registration.
	Update(info Info) error
	// Shutdown withdraws the advertisement. Safe to call repeatedly.
	Shutdown()
}

// server is the part of *zeroconf.Server the registrar drives.
type server interface {
	SetText(text []string)
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (server, error) {
	s, err := zeroconf.Register(instance, service, domain, port, text, ifaces)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ZeroconfRegistrar is a Registrar backed by grandcat/zeroconf.
//
// Thread Safety: all methods are safe for concurrent use.
type ZeroconfRegistrar struct {
	service  string
	domain   string
	logger   *logging.Logger
	register registerFunc
	ifaces   func() []net.Interface

	mu     sync.Mutex
	server server
	info   Info
}

// NewZeroconfRegistrar creates a registrar. Empty service or domain select
// the defaults.
func NewZeroconfRegistrar(service, domain string, logger *logging.Logger) *ZeroconfRegistrar {
	if service == "" {
		service = DefaultService
	}
	if domain == "" {
		domain = DefaultDomain
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ZeroconfRegistrar{
		service:  service,
		domain:   domain,
		logger:   logger.With("component", "advert"),
		register: zeroconfRegister,
		ifaces:   advertisedInterfaces,
	}
}

// Register implements Registrar.
func (r *ZeroconfRegistrar) Register(info Info) error {
	if info.MAC == "" {
		return ErrMissingMAC
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.server != nil {
		r.server.Shutdown()
		r.server = nil
	}

	s, err := r.register(info.InstanceName(), r.service, r.domain, info.Port, info.TXT(), r.ifaces())
	if err != nil {
		return fmt.Errorf("registering %s: %w", info.InstanceName(), err)
	}
	r.server = s
	r.info = info
	r.logger.Info("advertised bridge",
		"instance", info.InstanceName(),
		"service", r.service,
		"port", info.Port,
		"bind", int(info.Bind),
	)
	return nil
}

// Update implements Registrar. Without a live registration it registers.
func (r *ZeroconfRegistrar) Update(info Info) error {
	if info.MAC == "" {
		return ErrMissingMAC
	}

	r.mu.Lock()
	s := r.server
	if s != nil && r.info.InstanceName() == info.InstanceName() && r.info.Port == info.Port {
		s.SetText(info.TXT())
		r.info = info
		r.mu.Unlock()
		r.logger.Debug("advertisement updated", "bind", int(info.Bind), "dn", info.BridgeName)
		return nil
	}
	r.mu.Unlock()
	return r.Register(info)
}

// Shutdown implements Registrar.
func (r *ZeroconfRegistrar) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.server == nil {
		return
	}
	r.server.Shutdown()
	r.server = nil
	r.logger.Info("advertisement withdrawn")
}

// Info returns the last published info.
func (r *ZeroconfRegistrar) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// skippedPrefixes are container and bridge interfaces the phone can never
// reach.
var skippedPrefixes = []string{"veth", "docker", "br-", "hassio"}

// advertisedInterfaces returns the up, non-loopback interfaces the
// advertisement is sent on. nil lets zeroconf pick all interfaces.
func advertisedInterfaces() []net.Interface {
	all, err := net.Interfaces()
	if err != nil {
		return nil
	}
	out := filterInterfaces(all)
	if len(out) == 0 {
		return nil
	}
	return out
}

func filterInterfaces(all []net.Interface) []net.Interface {
	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if skipInterface(iface.Name) {
			continue
		}
		out = append(out, iface)
	}
	return out
}

func skipInterface(name string) bool {
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
