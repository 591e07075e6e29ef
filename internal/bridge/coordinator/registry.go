package coordinator

import (
	"context"
	"time"

	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
)

const changeDisabledBy = "disabled_by"

// handleRegistry reacts to host registry changes.
func (c *Coordinator) handleRegistry(ctx context.Context, ev host.RegistryEvent) {
	switch ev.Kind {
	case host.EntityRegistryEvent:
		c.handleEntityEvent(ctx, ev)
	case host.DeviceRegistryEvent:
		c.handleDeviceEvent(ctx, ev)
	}
}

func (c *Coordinator) handleEntityEvent(ctx context.Context, ev host.RegistryEvent) {
	switch ev.Action {
	case host.ActionCreate:
		c.scheduleAddable()

	case host.ActionRemove:
		c.scheduleAddable()
		c.removeEntity(ctx, ev.EntityID)

	case host.ActionUpdate:
		enabled, ok := enabledChange(ev)
		if !ok {
			return
		}
		rec, ok := c.devices.ByEntity(ev.EntityID)
		if !ok {
			c.scheduleAddable()
			return
		}
		c.setRecordEnabled(ctx, rec, enabled)
	}
}

func (c *Coordinator) handleDeviceEvent(ctx context.Context, ev host.RegistryEvent) {
	if ev.Action != host.ActionUpdate {
		return
	}
	enabled, ok := enabledChange(ev)
	if !ok {
		return
	}
	if ev.DeviceID != "" && ev.DeviceID == c.opts.Identity.DeviceID {
		c.setBridgeEnabled(ctx, enabled)
		return
	}
	for _, rec := range c.devices.ByDevice(ev.DeviceID) {
		c.setRecordEnabled(ctx, rec, enabled)
	}
}

// enabledChange reads a disabled_by change. The event carries the old
// value: nil means the entry was enabled and is now disabled.
//
// Returns:
//   - bool: the new enabled state
//   - bool: false if disabled_by did not change
func enabledChange(ev host.RegistryEvent) (bool, bool) {
	old, ok := ev.Changes[changeDisabledBy]
	if !ok {
		return false, false
	}
	return old != nil, true
}

func (c *Coordinator) setRecordEnabled(ctx context.Context, rec Record, enabled bool) {
	if !enabled {
		c.detach(rec.EntityID)
		c.reportOffline(ctx, rec, "disabled")
		return
	}
	if !c.recordEnabled(rec) {
		return
	}
	c.attach(rec.EntityID)
	c.flush(ctx, rec, "enabled")
}

// setBridgeEnabled follows the host's enable state of the bridge device.
// A disabled bridge disconnects and stays down until re-enabled.
func (c *Coordinator) setBridgeEnabled(ctx context.Context, enabled bool) {
	if enabled == !c.bridge.Disabled {
		return
	}
	c.bridge.Disabled = !enabled
	c.saveBridge(ctx)

	if enabled {
		c.logger.Info("bridge enabled")
		if p := c.bridge.Params(); p.Valid() {
			if err := c.reconnect.Connect(ctx, p, "enabled"); err != nil {
				c.logger.Warn("connect after enable failed", "error", err)
			}
		}
		return
	}

	c.logger.Info("bridge disabled")
	c.reconnect.Stop()
	if c.bridge.Name != "" {
		if _, err := c.conn.Disconnect(ctx, c.bridge.Name); err != nil {
			c.logger.Warn("disconnect failed", "error", err)
		}
	}
	c.online = false
}

// removeEntity drops the record of a removed entity. When its config
// entry is gone too, every record of that entry goes with it. The
// remaining set is re-registered so the cloud drops the missing devices.
func (c *Coordinator) removeEntity(ctx context.Context, entityID string) {
	rec, ok := c.devices.ByEntity(entityID)
	if !ok {
		return
	}

	var removed []Record
	if rec.EntryID == "" || c.host.ConfigEntryExists(rec.EntryID) {
		removed = c.devices.RemoveFunc(func(r Record) bool { return r.LogicalID == rec.LogicalID })
	} else {
		removed = c.devices.RemoveFunc(func(r Record) bool { return r.EntryID == rec.EntryID })
	}
	for _, r := range removed {
		c.detach(r.EntityID)
	}
	c.saveDevices(ctx)

	c.logger.Info("devices removed from host", "count", len(removed), "entity_id", entityID)
	c.sink.Publish(DevicesRemoved{LogicalIDs: logicalIDs(removed), Reason: "entity removed"})
	c.registerAll(ctx, "resync")
}

// scheduleAddable debounces the addable device report.
func (c *Coordinator) scheduleAddable() {
	if c.addableTimer != nil {
		c.addableTimer.Stop()
	}
	c.addableTimer = time.AfterFunc(c.opts.ReportDebounce, func() {
		c.enqueue(addableMsg{})
	})
}
