package coordinator

import (
	"context"
	"fmt"

	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
	"github.com/nerrad567/vhome-bridge/internal/bridge/connector"
	"github.com/nerrad567/vhome-bridge/internal/bridge/pairing"
)

// AddableKey is the bridge property that carries the addable device list
// upstream and the user's selection downstream.
const AddableKey = "addable_devs"

// handleCloud dispatches one connector callback.
func (c *Coordinator) handleCloud(ctx context.Context, msg connector.Message) {
	switch m := msg.(type) {
	case connector.StateMessage:
		if m.Established() {
			c.handleEstablished(ctx)
			return
		}
		c.handleLost(ctx, m)

	case connector.DataMessage:
		switch m.Action {
		case connector.ActionSet:
			c.handleSet(ctx, m.Body)
		case connector.ActionEvent:
			c.handleEvent(ctx, m.Body)
		default:
			c.logger.Debug("ignoring data callback", "action", m.Action)
		}

	case connector.LocalEventMessage:
		c.handleLocal(m)
	}
}

// ─── Link state ────────────────────────────────────────────────────

// handleEstablished re-synchronises the cloud once the link is up: bridge
// metadata, the addable list, the full registration and every device's
// current state.
func (c *Coordinator) handleEstablished(ctx context.Context) {
	c.reconnect.MarkConnected()
	c.online = true
	c.logger.Info("cloud link established", "name", c.bridge.Name)

	c.uploadBridgeMetadata(ctx)
	c.reportAddable(ctx)
	c.registerAll(ctx, "established")

	for _, rec := range c.devices.Records() {
		if c.recordEnabled(rec) {
			c.flush(ctx, rec, "established")
		} else {
			c.reportOffline(ctx, rec, "disabled")
		}
	}

	c.sink.Publish(BridgeOnline{Name: c.bridge.Name, Devices: c.devices.Len()})
}

// handleLost starts the retry loop, unless the cloud dropped the link
// because the bridge was removed.
func (c *Coordinator) handleLost(ctx context.Context, m connector.StateMessage) {
	c.online = false
	c.reconnect.MarkDisconnected(fmt.Sprintf("connect_result %d", m.ConnectResult))

	if m.Removed() {
		c.logger.Warn("bridge removed by cloud")
		c.removeBridge(ctx, "removed")
		return
	}

	p := c.bridge.Params()
	if c.bridge.Disabled || !p.Valid() {
		c.logger.Info("cloud link lost, not reconnecting", "disabled", c.bridge.Disabled)
		return
	}
	c.logger.Warn("cloud link lost, reconnecting", "connect_result", m.ConnectResult)
	c.sink.Publish(ReconnectRequest{Params: p, Reason: "offline"})
	c.reconnect.Start(p, "offline")
}

// ─── Commands ──────────────────────────────────────────────────────

// handleSet translates set commands into host service calls. A bridge
// level item carries the user's addable device selection.
func (c *Coordinator) handleSet(ctx context.Context, body []connector.DataItem) {
	if c.bridge.Disabled {
		c.logger.Debug("bridge disabled, ignoring set command")
		return
	}
	for _, item := range body {
		if item.SubID == "" {
			if selection, ok := item.Props[AddableKey]; ok {
				c.selectAddable(ctx, selection)
			}
			continue
		}

		rec, ok := c.devices.ByWireName(item.SubID)
		if !ok {
			c.logger.Warn("set command for unknown device", "sub_id", item.SubID)
			continue
		}
		calls := c.translate(rec, item.Props, item.Order)
		if len(calls) == 0 {
			continue
		}
		select {
		case c.commands <- commandBatch{wireName: rec.WireName, calls: calls}:
		default:
			c.logger.Warn("command queue full, dropping command", "sub_id", item.SubID)
		}
	}
}

// translate converts wire properties into host calls against the
// entity's current state, in the order the cloud sent them. Unavailable
// entities take no commands.
func (c *Coordinator) translate(rec Record, props map[string]any, order []string) []*attribute.ServiceCall {
	state, ok := c.host.State(rec.EntityID)
	if !ok || state.State == attribute.StateUnavailable {
		c.logger.Debug("device unavailable, ignoring command", "entity_id", rec.EntityID)
		return nil
	}
	entity, ok := c.host.Entity(rec.EntityID)
	if !ok {
		return nil
	}
	category, ok := attribute.CategoryFromPlatform(entity.Platform())
	if !ok {
		return nil
	}
	conv, ok := attribute.ConverterFor(category)
	if !ok {
		return nil
	}
	device, _ := c.host.Device(entity.DeviceID)
	return attribute.ConvertWireProps(conv, c.builder.Context(entity, device, state), props, order...)
}

// handleEvent processes unbind events. An unbind with no sub id field
// removes the whole bridge; an empty sub id names nothing.
func (c *Coordinator) handleEvent(ctx context.Context, body []connector.DataItem) {
	names := make(map[string]bool)
	for _, item := range body {
		if !item.Unbind() {
			continue
		}
		if item.AddressesBridge() {
			c.removeBridge(ctx, "unbind")
			return
		}
		if item.SubID == "" {
			c.logger.Warn("unbind with empty sub id, ignoring")
			continue
		}
		names[item.SubID] = true
	}
	if len(names) == 0 {
		return
	}

	removed := c.devices.RemoveFunc(func(r Record) bool { return names[r.WireName] })
	if len(removed) == 0 {
		return
	}
	for _, r := range removed {
		c.detach(r.EntityID)
	}
	c.saveDevices(ctx)
	c.logger.Info("devices unbound", "count", len(removed))
	c.sink.Publish(DevicesRemoved{LogicalIDs: logicalIDs(removed), Reason: "unbind"})
	c.reportAddable(ctx)
}

// ─── Local handshake ───────────────────────────────────────────────

// handleLocal reacts to the phone app's local handshake. Cancelling
// waits for the pairing task, so it runs off the loop.
func (c *Coordinator) handleLocal(m connector.LocalEventMessage) {
	switch m.Cmd {
	case connector.LocalHandshake:
		c.logger.Info("local handshake, starting pairing")
		c.goAsync(func() {
			c.pairing.Cancel()
			c.pairing.Start(pairing.FlowLAN)
		})
	case connector.LocalDisconnect:
		c.goAsync(func() {
			if !c.pairing.Pending() {
				c.pairing.Cancel()
			}
		})
	default:
		c.logger.Debug("ignoring local event", "cmd", m.Cmd)
	}
}

// goAsync runs fn on a goroutine Stop waits for.
func (c *Coordinator) goAsync(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}
