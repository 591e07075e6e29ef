package coordinator

import (
	"context"
	"maps"
	"reflect"
	"strings"

	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
	"github.com/nerrad567/vhome-bridge/internal/bridge/connector"
	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
	"github.com/nerrad567/vhome-bridge/internal/bridge/model"
)

// Wire values of the online property.
const (
	onlineTrue  = "true"
	onlineFalse = "false"
)

// Upload kinds, used as a metrics label.
const (
	kindState   = "state"
	kindFlush   = "flush"
	kindOffline = "offline"
	kindBridge  = "bridge"
	kindAddable = "addable"
)

// handleStateChange uploads the converted attribute diff of one entity.
// An entity coming back from off or unavailable reports its full
// attribute set, since most properties are only meaningful while active.
func (c *Coordinator) handleStateChange(ctx context.Context, sc host.StateChange) {
	rec, ok := c.devices.ByEntity(sc.EntityID)
	if !ok {
		return
	}
	if sc.New == nil {
		c.reportOffline(ctx, rec, "state removed")
		return
	}
	if sc.Old == nil {
		c.flush(ctx, rec, "state appeared")
		return
	}

	old, cur := *sc.Old, *sc.New
	full := attribute.IsInactive(old.State) && !attribute.IsInactive(cur.State)

	var attrs map[string]any
	if full {
		attrs = maps.Clone(cur.Attributes)
		if attrs == nil {
			attrs = make(map[string]any)
		}
	} else {
		attrs = diffAttributes(old.Attributes, cur.Attributes)
	}

	props := c.convert(rec, cur, old.State, attrs, full)
	availabilityChanged := (old.State == attribute.StateUnavailable) != (cur.State == attribute.StateUnavailable)
	if len(props) == 0 && !availabilityChanged {
		return
	}
	c.uploadDevice(ctx, rec, withOnline(props, cur.State), kindState, full)
}

// flush uploads the full current state of a device, including the common
// metadata properties.
func (c *Coordinator) flush(ctx context.Context, rec Record, reason string) {
	state, ok := c.host.State(rec.EntityID)
	if !ok {
		c.reportOffline(ctx, rec, reason)
		return
	}

	attrs := maps.Clone(state.Attributes)
	if attrs == nil {
		attrs = make(map[string]any)
	}
	props := c.convert(rec, state, "", attrs, true)

	device, _ := c.host.Device(c.deviceIDOf(rec))
	maps.Copy(props, model.CommonValues(device))

	c.logger.Debug("flushing device", "entity_id", rec.EntityID, "reason", reason)
	c.uploadDevice(ctx, rec, withOnline(props, state.State), kindFlush, true)
}

// reportOffline marks a device offline in the cloud.
func (c *Coordinator) reportOffline(ctx context.Context, rec Record, reason string) {
	c.logger.Debug("reporting device offline", "entity_id", rec.EntityID, "reason", reason)
	c.uploadDevice(ctx, rec, map[string]any{model.WireOnline: onlineFalse}, kindOffline, false)
}

// convert runs a host attribute set through the device's category
// converter. attrs is calibrated in place.
func (c *Coordinator) convert(rec Record, state host.State, oldState string, attrs map[string]any, flush bool) map[string]any {
	entity, ok := c.host.Entity(rec.EntityID)
	if !ok {
		entity = host.Entity{EntityID: rec.EntityID, DeviceID: rec.DeviceID}
	}
	category, ok := attribute.CategoryFromPlatform(entity.Platform())
	if !ok {
		return map[string]any{}
	}
	conv, ok := attribute.ConverterFor(category)
	if !ok {
		return map[string]any{}
	}
	device, _ := c.host.Device(entity.DeviceID)
	dc := c.builder.Context(entity, device, state)

	conv.Calibrate(attrs, state.State, oldState, flush)
	return attribute.ConvertHostAttributes(conv, dc, attrs)
}

func (c *Coordinator) deviceIDOf(rec Record) string {
	if e, ok := c.host.Entity(rec.EntityID); ok && e.DeviceID != "" {
		return e.DeviceID
	}
	return rec.DeviceID
}

// withOnline tags props with the device's liveness. An unavailable device
// reports nothing but online=false.
func withOnline(props map[string]any, state string) map[string]any {
	if state == attribute.StateUnavailable {
		return map[string]any{model.WireOnline: onlineFalse}
	}
	props[model.WireOnline] = onlineTrue
	return props
}

// canUpload reports whether the cloud link is up for this bridge.
func (c *Coordinator) canUpload() bool {
	return c.online && c.bridge.Bound() && !c.bridge.Disabled
}

func (c *Coordinator) uploadDevice(ctx context.Context, rec Record, props map[string]any, kind string, flush bool) {
	if !c.upload(ctx, rec.WireName, props, kind) {
		return
	}
	platform, _, _ := strings.Cut(rec.EntityID, ".")
	c.sink.Publish(DeviceStateChanged{
		LogicalID: rec.LogicalID,
		WireName:  rec.WireName,
		EntityID:  rec.EntityID,
		Platform:  platform,
		Props:     props,
		Online:    props[model.WireOnline] == onlineTrue,
		Flush:     flush,
	})
}

// upload sends one record. subID is empty for the bridge itself.
//
// Returns:
//   - bool: true if the upload was attempted
func (c *Coordinator) upload(ctx context.Context, subID string, props map[string]any, kind string) bool {
	if !c.canUpload() {
		c.logger.Debug("upload skipped, bridge offline", "sub_id", subID, "kind", kind)
		return false
	}
	code, err := c.conn.Upload(ctx, c.bridge.Name, []connector.UploadRecord{{SubID: subID, Ver: 0, Props: props}})
	switch {
	case err != nil:
		uploadsTotal.WithLabelValues(kind, resultError).Inc()
		c.logger.Warn("upload failed", "sub_id", subID, "kind", kind, "error", err)
	case code != 0:
		uploadsTotal.WithLabelValues(kind, resultError).Inc()
		c.logger.Warn("upload rejected", "sub_id", subID, "kind", kind, "code", code)
	default:
		uploadsTotal.WithLabelValues(kind, resultOK).Inc()
	}
	return true
}

// diffAttributes returns the attributes that changed, with removed
// attributes mapped to nil.
func diffAttributes(old, cur map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range cur {
		if prev, ok := old[k]; !ok || !reflect.DeepEqual(prev, v) {
			out[k] = v
		}
	}
	for k := range old {
		if _, ok := cur[k]; !ok {
			out[k] = nil
		}
	}
	return out
}
