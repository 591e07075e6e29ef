package coordinator

import (
	"context"

	"github.com/nerrad567/vhome-bridge/internal/bridge/advert"
	"github.com/nerrad567/vhome-bridge/internal/bridge/pairing"
)

// startup connects a bound bridge, or opens the local handshake so the
// phone app can pair an unbound one, then refreshes the advertisement.
func (c *Coordinator) startup(ctx context.Context, reason string) {
	if err := c.conn.StopLocalHandshake(ctx); err != nil {
		c.logger.Debug("stopping local handshake failed", "error", err)
	}

	bind := advert.BindUnbound
	p := c.bridge.Params()
	switch {
	case c.bridge.Bound() && !p.Valid():
		bind = advert.BindInvalid
	case c.bridge.Bound():
		bind = advert.BindBound
	}

	if bind == advert.BindBound && !c.bridge.Disabled {
		c.logger.Info("connecting bridge", "name", c.bridge.Name, "reason", reason)
		if err := c.reconnect.Connect(ctx, p, reason); err != nil {
			c.logger.Warn("connect failed, retrying in background", "error", err)
		}
	} else {
		c.logger.Info("bridge not connectable, opening local handshake",
			"bound", c.bridge.Bound(),
			"disabled", c.bridge.Disabled,
			"reason", reason,
		)
		if err := c.conn.StartLocalHandshake(ctx); err != nil {
			c.logger.Warn("starting local handshake failed", "error", err)
		}
	}

	c.advertise(ctx, bind)
}

// advertise publishes the bridge on the local network.
func (c *Coordinator) advertise(ctx context.Context, bind advert.BindFlag) {
	if c.registrar == nil {
		return
	}
	port, err := c.conn.LocalPort(ctx)
	if err != nil {
		c.logger.Warn("local port unavailable, skipping advertisement", "error", err)
		return
	}
	id := c.opts.Identity
	info := advert.Info{
		MAC:         c.bridge.MAC,
		AppName:     id.AppName,
		Version:     id.Version,
		InternalURL: id.InternalURL,
		BridgeName:  c.bridge.Name,
		Bind:        bind,
		Port:        port,
	}
	if err := c.registrar.Update(info); err != nil {
		c.logger.Warn("advertising bridge failed", "error", err)
	}
}

// handleBound stores the parameters of a fresh bind and connects.
func (c *Coordinator) handleBound(ctx context.Context, r pairing.BindResult) {
	c.bridge = BridgeConfig{
		MAC:      c.bridge.MAC,
		Name:     r.Name,
		Host:     r.Host,
		Port:     r.Port,
		UserCode: r.UserCode,
	}
	c.saveBridge(ctx)
	c.startup(ctx, "bound")
}

// removeBridge forgets the binding and every registered device, then
// starts over as an unbound bridge.
func (c *Coordinator) removeBridge(ctx context.Context, reason string) {
	if c.bridge.Name != "" {
		if _, err := c.conn.Disconnect(ctx, c.bridge.Name); err != nil {
			c.logger.Warn("disconnect failed", "error", err)
		}
	}
	c.online = false
	c.reconnect.Stop()
	c.detachAll()

	removed := c.devices.Records()
	c.devices.Clear()
	registeredDevices.Set(0)
	c.bridge = BridgeConfig{MAC: c.bridge.MAC}
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("clearing store failed", "error", err)
	}
	c.saveBridge(ctx)

	c.logger.Warn("bridge removed", "reason", reason, "devices", len(removed))
	c.sink.Publish(DevicesRemoved{LogicalIDs: logicalIDs(removed), Reason: reason})

	if entry := c.opts.Identity.EntryID; entry != "" {
		if err := c.host.Reload(ctx, entry); err != nil {
			c.logger.Warn("reloading host entry failed", "entry_id", entry, "error", err)
		}
	}
	c.startup(ctx, reason)
}

// shutdown disconnects, cancels pairing and releases listeners.
func (c *Coordinator) shutdown(ctx context.Context) {
	// No retry or bind may race the disconnect below.
	c.reconnect.Stop()
	c.pairing.Cancel()

	if c.bridge.Name != "" {
		if _, err := c.conn.Disconnect(ctx, c.bridge.Name); err != nil {
			c.logger.Warn("disconnect failed", "error", err)
		}
	}
	c.online = false

	c.detachAll()
	if c.detachRegistry != nil {
		c.detachRegistry()
		c.detachRegistry = nil
	}
	if c.addableTimer != nil {
		c.addableTimer.Stop()
	}
	if c.registrar != nil {
		c.registrar.Shutdown()
	}
}
