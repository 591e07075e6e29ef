// Package api implements the bridge's admin HTTP API and WebSocket event
// stream.
//
// This package provides:
//   - Status, device and pairing endpoints over the coordinator
//   - A WebSocket hub that relays coordinator events to subscribed clients
//   - Prometheus exposition at /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for deployments that expose the API beyond localhost
//
// # Architecture
//
// The server sits beside the coordinator. Reads go through the
// coordinator's event loop (Status, Devices); pairing requests go to the
// pairing controller. The Hub is registered as a coordinator event sink, so
// every produced event is broadcast to clients subscribed to its type.
//
// # Graceful Degradation
//
// Once the coordinator has stopped, bridge endpoints answer 503 while
// health and metrics keep working.
package api
