// Package coordinator synchronises the host's devices with the cloud.
//
// A Coordinator owns the registered device set and drives every side of the
// bridge from one event loop:
//
//   - host state changes are diffed, converted and uploaded
//   - inbound set commands become paced host service calls
//   - registry changes maintain listeners and the persisted device set
//   - link state changes trigger re-sync, reconnect or bridge removal
//   - local handshake events start and cancel LAN pairing
//
// Inputs from the host, the connector and the pairing task are posted to a
// bounded inbox and processed strictly in arrival order, so no two handlers
// ever touch the device set concurrently.
//
// Usage:
//
//	c, err := coordinator.New(coordinator.Options{...})
//	if err := c.Start(ctx); err != nil { ... }
//	defer c.Stop(context.Background())
package coordinator
