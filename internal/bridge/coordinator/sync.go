package coordinator

import (
	"context"
	"slices"

	"github.com/nerrad567/vhome-bridge/internal/bridge/connector"
	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
	"github.com/nerrad567/vhome-bridge/internal/bridge/model"
)

// registerAll re-registers the whole device set.
func (c *Coordinator) registerAll(ctx context.Context, reason string) {
	c.registerModels(ctx, c.devices.EntityIDs(), reason)
}

// registerModels registers entityIDs as the bridge's complete sub-device
// list. Entities that cannot be modelled are left out.
func (c *Coordinator) registerModels(ctx context.Context, entityIDs []string, reason string) {
	if !c.canUpload() {
		c.logger.Debug("registration skipped, bridge offline", "reason", reason)
		return
	}

	models := make([]model.Model, 0, len(entityIDs))
	entities := make(map[string]string, len(entityIDs))
	for _, id := range entityIDs {
		entity, ok := c.host.Entity(id)
		if !ok {
			continue
		}
		state, ok := c.host.State(id)
		if !ok {
			continue
		}
		device, _ := c.host.Device(entity.DeviceID)
		m, err := c.builder.Build(entity, device, state)
		if err != nil {
			c.logger.Debug("entity not registrable", "entity_id", id, "error", err)
			continue
		}
		models = append(models, *m)
		entities[m.LogicalID] = id
	}
	if len(models) == 0 && len(entityIDs) > 0 {
		c.logger.Warn("no registrable devices", "reason", reason, "requested", len(entityIDs))
		return
	}

	resp, err := c.conn.RegisterSubDevices(ctx, c.bridge.UserCode, c.bridge.Name, c.bridge.MAC, models)
	if err != nil {
		registrationsTotal.WithLabelValues(reason, resultError).Inc()
		c.logger.Warn("registration failed", "reason", reason, "error", err)
		return
	}
	c.handleRegistration(ctx, reason, resp, entities)
}

// handleRegistration reconciles the device set with a registration
// response. Succeeded devices are stored under the name the cloud gave
// them; failed ones leave the set untouched.
func (c *Coordinator) handleRegistration(ctx context.Context, reason string, resp connector.Response, entities map[string]string) {
	var reg connector.Registration
	if !resp.OK() || resp.Decode(&reg) != nil {
		registrationsTotal.WithLabelValues(reason, resultError).Inc()
		c.logger.Warn("registration rejected", "reason", reason, "code", resp.Code)
		c.sink.Publish(RegistrationResult{Reason: reason, Code: resp.Code})
		return
	}

	var added []Record
	succeeded := make([]string, 0, len(reg.Succeeded))
	for _, d := range reg.Succeeded {
		entityID := entities[d.LogicalID]
		if entityID == "" {
			if existing, ok := c.devices.ByLogicalID(d.LogicalID); ok {
				entityID = existing.EntityID
			}
		}
		if entityID == "" {
			c.logger.Warn("registered device has no entity", "logic_mac", d.LogicalID)
			continue
		}

		entity, _ := c.host.Entity(entityID)
		state, _ := c.host.State(entityID)
		rec := Record{
			LogicalID:    d.LogicalID,
			WireName:     d.WireName(),
			EntityID:     entityID,
			FriendlyName: state.FriendlyName(),
			EntryID:      entity.ConfigEntryID,
			DeviceID:     entity.DeviceID,
		}
		if c.devices.Put(rec) {
			added = append(added, rec)
		}
		if c.recordEnabled(rec) {
			c.attach(rec.EntityID)
		}
		succeeded = append(succeeded, d.LogicalID)
	}
	failed := make([]string, 0, len(reg.Failed))
	for _, d := range reg.Failed {
		failed = append(failed, d.LogicalID)
	}

	c.saveDevices(ctx)
	registrationsTotal.WithLabelValues(reason, resultOK).Inc()
	c.logger.Info("devices registered",
		"reason", reason,
		"succeeded", len(succeeded),
		"failed", len(failed),
		"added", len(added),
	)
	c.sink.Publish(RegistrationResult{Reason: reason, Code: resp.Code, Succeeded: succeeded, Failed: failed})

	if len(added) == 0 {
		return
	}
	c.sink.Publish(DevicesAdded{LogicalIDs: logicalIDs(added)})
	for _, rec := range added {
		if c.recordEnabled(rec) {
			c.flush(ctx, rec, "registered")
		} else {
			c.reportOffline(ctx, rec, "disabled")
		}
	}
	c.reportAddable(ctx)
}

// ─── Addable devices ───────────────────────────────────────────────

type candidate struct {
	entity host.Entity
	device host.Device
	state  host.State
}

// addableCandidates lists bridgeable host entities that are not yet
// registered.
func (c *Coordinator) addableCandidates() []candidate {
	registered := make(map[string]bool, c.devices.Len())
	for _, id := range c.devices.EntityIDs() {
		registered[id] = true
	}

	var out []candidate
	for _, id := range c.host.EntityIDs("") {
		if registered[id] {
			continue
		}
		entity, ok := c.host.Entity(id)
		if !ok {
			continue
		}
		state, ok := c.host.State(id)
		if !ok || !model.Addable(entity, state) {
			continue
		}
		device, _ := c.host.Device(entity.DeviceID)
		out = append(out, candidate{entity: entity, device: device, state: state})
	}
	return out
}

// addableDevices lists the entities offered to the cloud for selection.
func (c *Coordinator) addableDevices() []AddableDevice {
	candidates := c.addableCandidates()
	out := make([]AddableDevice, 0, len(candidates))
	for _, cd := range candidates {
		out = append(out, AddableDevice{
			LogicalID: model.LogicalID(cd.entity),
			Name:      model.SanitizeName(model.SelectionName(cd.entity, cd.device, cd.state)),
		})
	}
	return out
}

// reportAddable uploads the addable device list as a bridge property.
func (c *Coordinator) reportAddable(ctx context.Context) {
	if !c.canUpload() {
		return
	}
	devices := c.addableDevices()
	c.upload(ctx, "", map[string]any{AddableKey: devices}, kindAddable)
	c.sink.Publish(AddableDevices{Devices: devices})
}

// selectAddable registers the devices the user picked from the addable
// list, together with everything already registered. The selection is a
// list of logical ids; ids that are no longer addable are ignored.
func (c *Coordinator) selectAddable(ctx context.Context, selection any) {
	items, ok := selection.([]any)
	if !ok {
		c.logger.Warn("malformed addable selection", "value", selection)
		return
	}
	wanted := make(map[string]bool, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			wanted[s] = true
		}
	}

	entityIDs := c.devices.EntityIDs()
	picked := 0
	for _, cd := range c.addableCandidates() {
		if wanted[model.LogicalID(cd.entity)] && !slices.Contains(entityIDs, cd.entity.EntityID) {
			entityIDs = append(entityIDs, cd.entity.EntityID)
			picked++
		}
	}
	if picked == 0 {
		c.logger.Info("addable selection matched no devices", "requested", len(wanted))
		return
	}
	c.registerModels(ctx, entityIDs, "selection")
}

// uploadBridgeMetadata reports the bridge's own identity properties.
func (c *Coordinator) uploadBridgeMetadata(ctx context.Context) {
	id := c.opts.Identity
	c.upload(ctx, "", map[string]any{
		model.WireModel:           id.AppName,
		model.WireOnline:          onlineTrue,
		model.WireSoftwareVersion: id.Version,
		model.WireHardwareVersion: id.HardVersion,
		model.WireVendor:          id.Vendor,
		model.WireSerialNumber:    c.bridge.MAC,
	}, kindBridge)
}
